package entity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragq/internal/domain"
)

func TestCache_HitWithinTTL(t *testing.T) {
	loader := &fakeLoader{lookup: testLookup}
	c := NewCache(loader, time.Minute, zap.NewNop())
	ctx := context.Background()

	for range 3 {
		l, err := c.FetchLookup(ctx, "b", "k")
		require.NoError(t, err)
		assert.Equal(t, 3, l.Len())
	}
	assert.EqualValues(t, 1, loader.calls.Load())
}

func TestCache_ExpiresAfterTTL(t *testing.T) {
	loader := &fakeLoader{lookup: testLookup}
	c := NewCache(loader, time.Minute, zap.NewNop())
	now := time.Now()
	c.now = func() time.Time { return now }

	_, err := c.FetchLookup(context.Background(), "b", "k")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = c.FetchLookup(context.Background(), "b", "k")
	require.NoError(t, err)
	assert.EqualValues(t, 2, loader.calls.Load())
}

func TestCache_KeysAreSeparate(t *testing.T) {
	loader := &fakeLoader{lookup: testLookup}
	c := NewCache(loader, time.Minute, zap.NewNop())

	_, _ = c.FetchLookup(context.Background(), "b", "one")
	_, _ = c.FetchLookup(context.Background(), "b", "two")
	assert.EqualValues(t, 2, loader.calls.Load())
}

func TestCache_ErrorIsNotCached(t *testing.T) {
	loader := &fakeLoader{err: domain.ErrLookupRetrieval}
	c := NewCache(loader, time.Minute, zap.NewNop())

	_, err := c.FetchLookup(context.Background(), "b", "k")
	require.ErrorIs(t, err, domain.ErrLookupRetrieval)

	loader.err = nil
	loader.lookup = testLookup
	l, err := c.FetchLookup(context.Background(), "b", "k")
	require.NoError(t, err)
	assert.Equal(t, 3, l.Len())
}

func TestCache_ConcurrentMissesLoadOnce(t *testing.T) {
	loader := &fakeLoader{lookup: testLookup, release: make(chan struct{})}
	c := NewCache(loader, time.Minute, zap.NewNop())

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.FetchLookup(context.Background(), "b", "k")
			errs <- err
		}()
	}
	// let the callers pile up on the in-flight load
	time.Sleep(50 * time.Millisecond)
	close(loader.release)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.EqualValues(t, 1, loader.calls.Load())
}

func TestCache_Invalidate(t *testing.T) {
	loader := &fakeLoader{lookup: testLookup}
	c := NewCache(loader, 0, zap.NewNop())
	ctx := context.Background()

	_, _ = c.FetchLookup(ctx, "b", "k")

	c.Invalidate("b", "k", "v1") // same revision
	_, _ = c.FetchLookup(ctx, "b", "k")
	assert.EqualValues(t, 1, loader.calls.Load())

	c.Invalidate("b", "k", "v2")
	_, _ = c.FetchLookup(ctx, "b", "k")
	assert.EqualValues(t, 2, loader.calls.Load())

	c.Invalidate("b", "k", "")
	_, _ = c.FetchLookup(ctx, "b", "k")
	assert.EqualValues(t, 3, loader.calls.Load())

	c.Invalidate("other", "k", "")
	_, _ = c.FetchLookup(ctx, "b", "k")
	assert.EqualValues(t, 3, loader.calls.Load())
}

func TestCache_CallerCancellationDoesNotFailLoad(t *testing.T) {
	c := NewCache(&fakeLoader{lookup: testLookup}, time.Minute, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.FetchLookup(ctx, "b", "k")
	assert.False(t, errors.Is(err, context.Canceled))
}
