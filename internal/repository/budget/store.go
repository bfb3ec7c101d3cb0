// Package budget persists token budget counters in Valkey/Redis.
package budget

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/kailas-cloud/ragq/internal/db"
)

type kv interface {
	Get(ctx context.Context, key string) ([]byte, error)
	IncrBy(ctx context.Context, key string, val int64) error
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// Store keeps one counter per scope and window:
//
//	{prefix}budget:{scope}:daily:2026-10-14
//	{prefix}budget:{scope}:monthly:2026-10
type Store struct {
	kv       kv
	prefix   string
	dailyTTL time.Duration
	monthTTL time.Duration
}

// New creates a budget store. TTLs must outlive their window.
func New(s kv, prefix string, dailyTTL, monthTTL time.Duration) *Store {
	return &Store{kv: s, prefix: prefix, dailyTTL: dailyTTL, monthTTL: monthTTL}
}

type counter struct {
	key string
	ttl time.Duration
}

func (s *Store) counters(scope string, at time.Time) [2]counter {
	at = at.UTC()
	base := s.prefix + "budget:" + scope
	return [2]counter{
		{key: base + ":daily:" + at.Format("2006-01-02"), ttl: s.dailyTTL},
		{key: base + ":monthly:" + at.Format("2006-01"), ttl: s.monthTTL},
	}
}

// Add increments both counters for the windows containing at.
// Each counter's TTL is armed once (NX) so later writes never extend it.
func (s *Store) Add(ctx context.Context, scope string, at time.Time, tokens int64) error {
	var result *multierror.Error
	for _, c := range s.counters(scope, at) {
		if err := s.kv.IncrBy(ctx, c.key, tokens); err != nil {
			result = multierror.Append(result, fmt.Errorf("incr %s: %w", c.key, err))
			continue
		}
		if err := s.kv.Expire(ctx, c.key, c.ttl, true); err != nil {
			result = multierror.Append(result, fmt.Errorf("expire %s: %w", c.key, err))
		}
	}
	return result.ErrorOrNil()
}

// Usage returns the daily and monthly totals for the windows containing at.
// Missing counters read as zero.
func (s *Store) Usage(ctx context.Context, scope string, at time.Time) (daily, monthly int64, err error) {
	cs := s.counters(scope, at)
	if daily, err = s.get(ctx, cs[0].key); err != nil {
		return 0, 0, err
	}
	if monthly, err = s.get(ctx, cs[1].key); err != nil {
		return 0, 0, err
	}
	return daily, monthly, nil
}

func (s *Store) get(ctx context.Context, key string) (int64, error) {
	data, err := s.kv.Get(ctx, key)
	if errors.Is(err, db.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get %s: %w", key, err)
	}
	v, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return v, nil
}
