// Package provider decorates the completion and embedding adapters with
// per-call timeouts, token budgets and structured logging.
package provider

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragq/internal/domain"
	"github.com/kailas-cloud/ragq/internal/metrics"
)

// BudgetAction defines behavior when a token budget is exhausted.
type BudgetAction string

const (
	// BudgetActionWarn logs a warning but allows the request.
	BudgetActionWarn BudgetAction = "warn"
	// BudgetActionReject blocks the request.
	BudgetActionReject BudgetAction = "reject"
)

// ParseBudgetAction maps a config value to an action. Anything but "reject" warns.
func ParseBudgetAction(s string) BudgetAction {
	if BudgetAction(s) == BudgetActionReject {
		return BudgetActionReject
	}
	return BudgetActionWarn
}

// BudgetStore persists counters per scope for the day and month containing at.
type BudgetStore interface {
	Add(ctx context.Context, scope string, at time.Time, tokens int64) error
	Usage(ctx context.Context, scope string, at time.Time) (daily, monthly int64, err error)
}

const (
	periodDaily   = "daily"
	periodMonthly = "monthly"
)

// window is one budget period. start is the UTC boundary the counter belongs to.
type window struct {
	period string
	limit  int64
	used   int64
	start  time.Time
	floor  func(time.Time) time.Time
}

// roll zeroes the counter once now leaves the window.
func (w *window) roll(now time.Time) {
	if s := w.floor(now); s.After(w.start) {
		w.used = 0
		w.start = s
	}
}

func (w *window) exceeded() bool { return w.limit > 0 && w.used >= w.limit }

func (w *window) remaining() int64 {
	switch {
	case w.limit == 0:
		return -1
	case w.used >= w.limit:
		return 0
	default:
		return w.limit - w.used
	}
}

// BudgetTracker enforces daily and monthly token caps for one kind of call.
// Counters live in memory; an attached store is loaded once and written behind.
type BudgetTracker struct {
	mu       sync.Mutex
	day      window
	month    window
	action   BudgetAction
	kind     string
	provider string
	store    BudgetStore
	now      func() time.Time
	logger   *zap.Logger
}

// NewBudgetTracker creates a tracker for kind ("completion" or "embedding"). A zero limit is unlimited.
func NewBudgetTracker(
	kind, provider string, dailyLimit, monthlyLimit int64,
	action BudgetAction, logger *zap.Logger,
) *BudgetTracker {
	b := &BudgetTracker{
		day:      window{period: periodDaily, limit: dailyLimit, floor: startOfDay},
		month:    window{period: periodMonthly, limit: monthlyLimit, floor: startOfMonth},
		action:   action,
		kind:     kind,
		provider: provider,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger,
	}
	now := b.now()
	b.day.start, b.month.start = startOfDay(now), startOfMonth(now)
	return b
}

// WithStore attaches store and seeds the counters from it.
// A failed load starts from zero.
func (b *BudgetTracker) WithStore(ctx context.Context, store BudgetStore) *BudgetTracker {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.store = store
	daily, monthly, err := store.Usage(ctx, b.scope(), b.now())
	if err != nil {
		b.logger.Warn("Failed to load budget from store",
			zap.String("kind", b.kind), zap.String("provider", b.provider), zap.Error(err))
		return b
	}
	b.day.used, b.month.used = daily, monthly

	b.logger.Info("Budget loaded from store",
		zap.String("kind", b.kind),
		zap.String("provider", b.provider),
		zap.Int64("daily_used", daily),
		zap.Int64("monthly_used", monthly),
	)
	return b
}

func (b *BudgetTracker) scope() string { return b.kind + ":" + b.provider }

func (b *BudgetTracker) roll() time.Time {
	now := b.now()
	b.day.roll(now)
	b.month.roll(now)
	return now
}

// Check returns ErrBudgetExceeded when a cap is reached and the action is reject.
// The warn action only logs.
func (b *BudgetTracker) Check(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.roll()
	if !b.day.exceeded() && !b.month.exceeded() {
		return nil
	}

	if b.action == BudgetActionReject {
		return fmt.Errorf("%w: %s", domain.ErrBudgetExceeded, b.kind)
	}

	b.logger.Warn("Token budget exceeded",
		zap.String("kind", b.kind),
		zap.String("provider", b.provider),
		zap.Int64("daily_used", b.day.used),
		zap.Int64("daily_limit", b.day.limit),
		zap.Int64("monthly_used", b.month.used),
		zap.Int64("monthly_limit", b.month.limit),
	)
	return nil
}

// Record adds consumed tokens and persists them if a store is attached.
func (b *BudgetTracker) Record(tokens int64) {
	if tokens <= 0 {
		return
	}

	b.mu.Lock()
	now := b.roll()
	b.day.used += tokens
	b.month.used += tokens
	dayLeft, monthLeft := b.day.remaining(), b.month.remaining()
	store := b.store
	b.mu.Unlock()

	metrics.BudgetTokensRemaining.WithLabelValues(b.kind, b.provider, periodDaily).Set(float64(dayLeft))
	metrics.BudgetTokensRemaining.WithLabelValues(b.kind, b.provider, periodMonthly).Set(float64(monthLeft))

	if store == nil {
		return
	}

	// detached from the request so a cancelled caller still gets counted
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := store.Add(ctx, b.scope(), now, tokens); err != nil {
		b.logger.Warn("Failed to persist budget",
			zap.String("kind", b.kind), zap.Int64("tokens", tokens), zap.Error(err))
	}
}

func (b *BudgetTracker) read(f func() int64) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.roll()
	return f()
}

// RemainingDaily returns tokens left today (-1 if unlimited).
func (b *BudgetTracker) RemainingDaily() int64 { return b.read(b.day.remaining) }

// RemainingMonthly returns tokens left this month (-1 if unlimited).
func (b *BudgetTracker) RemainingMonthly() int64 { return b.read(b.month.remaining) }

// DailyUsed returns tokens consumed today.
func (b *BudgetTracker) DailyUsed() int64 { return b.read(func() int64 { return b.day.used }) }

// MonthlyUsed returns tokens consumed this month.
func (b *BudgetTracker) MonthlyUsed() int64 { return b.read(func() int64 { return b.month.used }) }

// DailyLimit returns the daily cap (0 if unlimited).
func (b *BudgetTracker) DailyLimit() int64 { return b.day.limit }

// MonthlyLimit returns the monthly cap (0 if unlimited).
func (b *BudgetTracker) MonthlyLimit() int64 { return b.month.limit }

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
