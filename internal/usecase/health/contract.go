package health

import "context"

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// IndexChecker checks that the vector index exists and answers.
type IndexChecker interface {
	Ready(ctx context.Context) error
}

// ProviderChecker checks a completion or embedding provider.
type ProviderChecker interface {
	HealthCheck(ctx context.Context) error
}
