// Package search adapts the FT index to domain.VectorIndex.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kailas-cloud/ragq/internal/db"
	"github.com/kailas-cloud/ragq/internal/domain"
)

var _ domain.VectorIndex = (*Repo)(nil)

// store is the consumer interface for search operations (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Config names the index and the fields written by the indexing pipeline.
type Config struct {
	Index       string
	VectorField string
	TextField   string
	KeyPrefix   string // stripped from document keys
}

// Repo implements domain.VectorIndex over a Valkey/Redis FT index.
type Repo struct {
	store store
	cfg   Config
}

// New creates a search repository.
func New(s store, cfg Config) *Repo {
	if cfg.TextField == "" {
		cfg.TextField = domain.FieldText
	}
	if cfg.VectorField == "" {
		cfg.VectorField = db.DefaultVectorField
	}
	return &Repo{store: s, cfg: cfg}
}

// Query runs one KNN search and returns the matched passages in score order.
// Entries without a text field are dropped.
func (r *Repo) Query(ctx context.Context, q domain.VectorQuery) ([]domain.Passage, error) {
	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.cfg.Index,
		VectorField:  r.cfg.VectorField,
		Filters:      q.Filter,
		Vector:       q.Vector,
		K:            q.TopK,
		ReturnFields: []string{r.cfg.TextField},
	})
	if err != nil {
		return nil, fmt.Errorf("search knn %s: %w: %w", r.cfg.Index, domain.ErrVectorIndex, err)
	}
	if sr == nil || len(sr.Entries) == 0 {
		return nil, nil
	}

	passages := make([]domain.Passage, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		text, ok := e.Fields[r.cfg.TextField]
		if !ok {
			continue
		}
		passages = append(passages, domain.Passage{
			ID:    strings.TrimPrefix(e.Key, r.cfg.KeyPrefix),
			Score: e.Score,
			Text:  text,
		})
	}
	return passages, nil
}

// Ready reports an error unless the index exists.
func (r *Repo) Ready(ctx context.Context) error {
	ok, err := r.store.IndexExists(ctx, r.cfg.Index)
	if err != nil {
		return fmt.Errorf("index info %s: %w", r.cfg.Index, err)
	}
	if !ok {
		return fmt.Errorf("%s: %w", r.cfg.Index, db.ErrIndexNotFound)
	}
	return nil
}

// IsIndexMissing reports whether err means the index has not been built.
func IsIndexMissing(err error) bool {
	return errors.Is(err, db.ErrIndexNotFound)
}
