package health

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates the database is unreachable.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names reported in Report.Checks.
const (
	ComponentDatabase    = "database"
	ComponentVectorIndex = "vector_index"
	ComponentCompletion  = "completion"
	ComponentEmbedding   = "embedding"
)

// DefaultTimeout bounds each component check.
const DefaultTimeout = 3 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Failed returns the names of failing components, sorted.
func (r Report) Failed() []string {
	var out []string
	for name, res := range r.Checks {
		if res == CheckError {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Deps lists the checked components. Only DB is required.
type Deps struct {
	DB         DBPinger
	Index      IndexChecker
	Completion ProviderChecker
	Embedding  ProviderChecker
}

// Service coordinates health checks.
type Service struct {
	checks  map[string]func(context.Context) error
	timeout time.Duration
}

// New creates a Service. A non-positive timeout uses DefaultTimeout.
func New(deps Deps, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	checks := map[string]func(context.Context) error{
		ComponentDatabase: deps.DB.Ping,
	}
	if deps.Index != nil {
		checks[ComponentVectorIndex] = deps.Index.Ready
	}
	if deps.Completion != nil {
		checks[ComponentCompletion] = deps.Completion.HealthCheck
	}
	if deps.Embedding != nil {
		checks[ComponentEmbedding] = deps.Embedding.HealthCheck
	}
	return &Service{checks: checks, timeout: timeout}
}

// Check runs all component checks concurrently.
func (s *Service) Check(ctx context.Context) Report {
	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		checks = make(map[string]CheckResult, len(s.checks))
	)
	for name, fn := range s.checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			res := CheckOK
			if err := fn(cctx); err != nil {
				res = CheckError
			}
			mu.Lock()
			checks[name] = res
			mu.Unlock()
		}()
	}
	wg.Wait()

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}
	if checks[ComponentDatabase] == CheckError {
		status = Unhealthy
	}

	return Report{Status: status, Checks: checks}
}
