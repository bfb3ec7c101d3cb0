package domain

// Answer is the synthesized response plus what was used to ground it.
type Answer struct {
	Text       string
	Subqueries []string
	Metadata   MetadataFilter
	Entities   Attribute
	Passages   int
	// Degraded lists optional fields dropped because extraction failed.
	Degraded []string
	// Skipped lists optional retrieval passes that failed.
	Skipped []string
}

// IsDegraded reports whether any optional input was lost.
func (a Answer) IsDegraded() bool {
	return len(a.Degraded) > 0 || len(a.Skipped) > 0
}
