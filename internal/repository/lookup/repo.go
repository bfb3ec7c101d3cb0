// Package lookup serves the published entity list from Valkey/Redis.
package lookup

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/ragq/internal/db"
	"github.com/kailas-cloud/ragq/internal/domain"
)

var _ domain.LookupFetcher = (*Repo)(nil)

// store is the consumer interface for the KV lookup (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// Repo reads lookup documents stored by the indexing pipeline
// under {prefix}lookup:{bucket}/{key}.
type Repo struct {
	store  store
	prefix string
}

// New creates a KV lookup repository.
func New(s store, keyPrefix string) *Repo {
	return &Repo{store: s, prefix: keyPrefix}
}

// Key returns the storage key of a lookup document.
func (r *Repo) Key(bucket, key string) string {
	return r.prefix + "lookup:" + bucket + "/" + key
}

// FetchObject returns the raw lookup document.
func (r *Repo) FetchObject(ctx context.Context, bucket, key string) ([]byte, error) {
	k := r.Key(bucket, key)
	data, err := r.store.Get(ctx, k)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s not found", domain.ErrObjectStore, k)
		}
		return nil, fmt.Errorf("%w: get %s: %w", domain.ErrObjectStore, k, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", domain.ErrObjectStore, k)
	}
	return data, nil
}
