package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragq/internal/domain"
)

func TestDo_SucceedsOnSecondAttempt(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), Once, zap.NewNop(), "test", func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("flaky")
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" || calls != 2 {
		t.Errorf("got %q after %d calls", got, calls)
	}
}

func TestDo_ReturnsLastError(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Once, zap.NewNop(), "test", func(context.Context) (int, error) {
		calls++
		return 0, fmt.Errorf("attempt %d", calls)
	})
	if calls != 2 {
		t.Fatalf("expected exactly 2 calls, got %d", calls)
	}
	if err == nil || err.Error() != "attempt 2" {
		t.Errorf("expected last error, got %v", err)
	}
}

func TestDo_ZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	_, _ = Do(context.Background(), Policy{}, zap.NewNop(), "test", func(context.Context) (int, error) {
		calls++
		return 0, errors.New("x")
	})
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_BudgetIsNotRetried(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Policy{Attempts: 5}, zap.NewNop(), "test", func(context.Context) (int, error) {
		calls++
		return 0, fmt.Errorf("check: %w", domain.ErrBudgetExceeded)
	})
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	if !errors.Is(err, domain.ErrBudgetExceeded) {
		t.Errorf("expected budget error, got %v", err)
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{errors.New("boom"), true},
		{domain.ErrTimeout, true},
		{domain.ErrBudgetExceeded, false},
		{domain.ErrInvalidQuery, false},
		{context.Canceled, false},
	}
	for _, tc := range tests {
		if got := Retryable(tc.err); got != tc.want {
			t.Errorf("Retryable(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
