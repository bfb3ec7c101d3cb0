package ragq

import (
	"context"
	"fmt"
	"time"
)

// HealthStatus represents the aggregated system health.
type HealthStatus struct {
	Status string            // "ok", "degraded", "error"
	Checks map[string]string // component → "ok"/"error"
}

// Health checks the database, the passage index and both model providers.
func (c *Client) Health(ctx context.Context) HealthStatus {
	start := time.Now()
	report := c.healthSvc.Check(ctx)
	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	var err error
	if failed := report.Failed(); len(failed) > 0 {
		err = fmt.Errorf("unhealthy components: %v", failed)
	}
	c.obs.observe("health", start, err)
	return HealthStatus{
		Status: string(report.Status),
		Checks: checks,
	}
}
