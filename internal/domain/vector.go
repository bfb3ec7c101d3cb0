package domain

import (
	"context"

	"github.com/kailas-cloud/ragq/internal/domain/search/filter"
)

// DefaultTopK is the number of neighbours fetched by each retrieval pass.
const DefaultTopK = 30

// VectorIndex runs similarity search over the pre-built passage index.
type VectorIndex interface {
	Query(ctx context.Context, q VectorQuery) ([]Passage, error)
}

// VectorQuery is a single similarity search.
type VectorQuery struct {
	Vector []float32
	TopK   int
	Filter filter.Expression
}

// Passage is one matched record from the index.
type Passage struct {
	ID    string
	Score float64
	Text  string
}

// ContextList is the ordered passage text handed to answer synthesis.
type ContextList []string
