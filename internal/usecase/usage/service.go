// Package usage reports token consumption against the completion and embedding budgets.
package usage

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Period is the aggregation granularity.
type Period string

// Aggregation period constants.
const (
	PeriodDay   Period = "day"
	PeriodMonth Period = "month"
)

// ParsePeriod accepts "day" and "month"; empty means day.
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case "", PeriodDay:
		return PeriodDay, nil
	case PeriodMonth:
		return PeriodMonth, nil
	default:
		return "", fmt.Errorf("unknown period %q", s)
	}
}

// Budget is one tracker's state for the period. Limit 0 means unlimited
// and Remaining is then -1.
type Budget struct {
	Kind      string `json:"kind"`
	Limit     int64  `json:"tokens_limit"`
	Used      int64  `json:"tokens_used"`
	Remaining int64  `json:"tokens_remaining"`
	Exhausted bool   `json:"is_exhausted"`
}

// Report is a usage snapshot for one period, timestamps in unix millis.
type Report struct {
	Period      Period   `json:"period"`
	PeriodStart int64    `json:"period_start"`
	PeriodEnd   int64    `json:"period_end"`
	Budgets     []Budget `json:"budgets"`
}

// Service handles usage reporting.
type Service struct {
	readers map[string]BudgetReader
	now     func() time.Time
}

// New creates a Service over readers keyed by kind ("completion", "embedding").
// Nil readers are skipped; a kind without a reader is reported as unlimited.
func New(readers map[string]BudgetReader) *Service {
	r := make(map[string]BudgetReader, len(readers))
	for k, v := range readers {
		r[k] = v
	}
	return &Service{readers: r, now: time.Now}
}

// GetReport builds a usage report for the given period.
func (s *Service) GetReport(_ context.Context, period Period) Report {
	now := s.now().UTC()
	var start, end time.Time

	switch period {
	case PeriodMonth:
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		end = start.AddDate(0, 1, 0)
	default:
		period = PeriodDay
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		end = start.Add(24 * time.Hour)
	}

	kinds := make([]string, 0, len(s.readers))
	for k := range s.readers {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)

	budgets := make([]Budget, 0, len(kinds))
	for _, k := range kinds {
		br := s.readers[k]
		b := Budget{Kind: k, Remaining: -1}
		if br != nil {
			if period == PeriodMonth {
				b.Limit, b.Used, b.Remaining = br.MonthlyLimit(), br.MonthlyUsed(), br.RemainingMonthly()
			} else {
				b.Limit, b.Used, b.Remaining = br.DailyLimit(), br.DailyUsed(), br.RemainingDaily()
			}
		}
		b.Exhausted = b.Limit > 0 && b.Remaining <= 0
		budgets = append(budgets, b)
	}

	return Report{
		Period:      period,
		PeriodStart: start.UnixMilli(),
		PeriodEnd:   end.UnixMilli(),
		Budgets:     budgets,
	}
}
