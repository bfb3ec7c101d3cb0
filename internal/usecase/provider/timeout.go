package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/ragq/internal/domain"
)

// withTimeout runs fn under a bounded deadline. Expiry is reported as ErrTimeout
// wrapping the original error.
func withTimeout[T any](
	ctx context.Context, d time.Duration, op string,
	fn func(ctx context.Context) (T, error),
) (T, error) {
	if d <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	res, err := fn(ctx)
	if err != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)) {
		var zero T
		return zero, fmt.Errorf("%w: %s after %s: %w", domain.ErrTimeout, op, d, err)
	}
	return res, err
}

// VectorIndex bounds every similarity query.
type VectorIndex struct {
	inner   domain.VectorIndex
	timeout time.Duration
}

var _ domain.VectorIndex = (*VectorIndex)(nil)

// NewVectorIndex wraps idx with a per-query timeout.
func NewVectorIndex(idx domain.VectorIndex, timeout time.Duration) *VectorIndex {
	return &VectorIndex{inner: idx, timeout: timeout}
}

// Query delegates under the timeout.
func (v *VectorIndex) Query(ctx context.Context, q domain.VectorQuery) ([]domain.Passage, error) {
	return withTimeout(ctx, v.timeout, "vector query", func(ctx context.Context) ([]domain.Passage, error) {
		return v.inner.Query(ctx, q)
	})
}

// LookupFetcher bounds every object fetch.
type LookupFetcher struct {
	inner   domain.LookupFetcher
	timeout time.Duration
}

var _ domain.LookupFetcher = (*LookupFetcher)(nil)

// NewLookupFetcher wraps f with a per-fetch timeout.
func NewLookupFetcher(f domain.LookupFetcher, timeout time.Duration) *LookupFetcher {
	return &LookupFetcher{inner: f, timeout: timeout}
}

// FetchObject delegates under the timeout.
func (l *LookupFetcher) FetchObject(ctx context.Context, bucket, key string) ([]byte, error) {
	return withTimeout(ctx, l.timeout, "fetch "+bucket+"/"+key, func(ctx context.Context) ([]byte, error) {
		return l.inner.FetchObject(ctx, bucket, key)
	})
}
