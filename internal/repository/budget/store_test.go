package budget

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/ragq/internal/db"
)

type expireCall struct {
	key string
	ttl time.Duration
	nx  bool
}

type fakeStore struct {
	data      map[string][]byte
	incrs     map[string]int64
	expires   []expireCall
	incrErr   error
	expireErr error
	getErr    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string][]byte{}, incrs: map[string]int64{}}
}

func (f *fakeStore) Get(_ context.Context, key string) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	v, ok := f.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (f *fakeStore) IncrBy(_ context.Context, key string, val int64) error {
	if f.incrErr != nil {
		return f.incrErr
	}
	f.incrs[key] += val
	return nil
}

func (f *fakeStore) Expire(_ context.Context, key string, ttl time.Duration, nx bool) error {
	if f.expireErr != nil {
		return f.expireErr
	}
	f.expires = append(f.expires, expireCall{key, ttl, nx})
	return nil
}

var at = time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)

func TestAdd_IncrementsBothWindows(t *testing.T) {
	fs := newFakeStore()
	s := New(fs, "ragq:", 48*time.Hour, 62*24*time.Hour)

	if err := s.Add(context.Background(), "completion:openai", at, 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	daily := "ragq:budget:completion:openai:daily:2026-10-14"
	monthly := "ragq:budget:completion:openai:monthly:2026-10"
	if fs.incrs[daily] != 10 || fs.incrs[monthly] != 10 {
		t.Errorf("unexpected increments %v", fs.incrs)
	}
	want := []expireCall{{daily, 48 * time.Hour, true}, {monthly, 62 * 24 * time.Hour, true}}
	if len(fs.expires) != 2 || fs.expires[0] != want[0] || fs.expires[1] != want[1] {
		t.Errorf("expires = %+v", fs.expires)
	}
}

func TestAdd_CollectsErrors(t *testing.T) {
	fs := newFakeStore()
	fs.incrErr = errors.New("boom")
	err := New(fs, "", time.Hour, time.Hour).Add(context.Background(), "s", at, 1)
	if err == nil {
		t.Fatal("expected incr error")
	}
	var merr interface{ WrappedErrors() []error }
	if !errors.As(err, &merr) || len(merr.WrappedErrors()) != 2 {
		t.Errorf("expected one error per counter, got %v", err)
	}

	fs = newFakeStore()
	fs.expireErr = errors.New("boom")
	if err := New(fs, "", time.Hour, time.Hour).Add(context.Background(), "s", at, 1); err == nil {
		t.Fatal("expected expire error")
	}
}

func TestUsage(t *testing.T) {
	fs := newFakeStore()
	fs.data["budget:embedding:nebius:daily:2026-10-14"] = []byte("42")
	s := New(fs, "", time.Hour, time.Hour)
	ctx := context.Background()

	daily, monthly, err := s.Usage(ctx, "embedding:nebius", at)
	if err != nil || daily != 42 || monthly != 0 {
		t.Errorf("Usage = %d, %d, %v", daily, monthly, err)
	}

	fs.data["budget:embedding:nebius:monthly:2026-10"] = []byte("x")
	if _, _, err := s.Usage(ctx, "embedding:nebius", at); err == nil {
		t.Error("expected parse error")
	}

	fs.getErr = errors.New("down")
	if _, _, err := s.Usage(ctx, "embedding:nebius", at); err == nil {
		t.Error("expected store error")
	}
}
