package answer

import (
	"context"

	"github.com/kailas-cloud/ragq/internal/domain"
	"github.com/kailas-cloud/ragq/internal/usecase/retrieve"
)

// Decomposer splits a question into sub-questions.
type Decomposer interface {
	Decompose(ctx context.Context, q domain.Query) (*domain.SubqueryMap, error)
}

// MetadataExtractor pulls optional year and club constraints.
type MetadataExtractor interface {
	ExtractYears(ctx context.Context, q domain.Query) (domain.Attribute, error)
	ExtractClubs(ctx context.Context, q domain.Query) (domain.Attribute, error)
}

// LookupSource provides the published entity list, cached or not.
type LookupSource interface {
	FetchLookup(ctx context.Context, bucket, key string) (domain.EntityLookup, error)
}

// EntityMatcher finds lookup entities named in the question.
type EntityMatcher interface {
	Match(ctx context.Context, q domain.Query, lookup domain.EntityLookup) (domain.Attribute, error)
}

// Encoder embeds the question and its sub-questions.
type Encoder interface {
	Encode(ctx context.Context, text string) ([]float32, error)
	EncodeMany(ctx context.Context, subs *domain.SubqueryMap) ([][]float32, error)
}

// Retriever runs the similarity-search passes.
type Retriever interface {
	Retrieve(ctx context.Context, in retrieve.Input) (domain.ContextList, retrieve.Report, error)
}

// Synthesizer writes the final answer.
type Synthesizer interface {
	Synthesize(ctx context.Context, q domain.Query, cl domain.ContextList) (string, error)
}
