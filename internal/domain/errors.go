package domain

import (
	"errors"
	"fmt"
)

// Failure kinds raised by the pipeline stages.
var (
	// ErrInvalidQuery signals an empty or oversized user question.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrDecomposition signals that the question could not be split into sub-questions.
	ErrDecomposition = errors.New("decomposition failed")
	// ErrMetadataExtraction signals an unusable year or club extraction.
	ErrMetadataExtraction = errors.New("metadata extraction failed")
	// ErrLookupRetrieval signals that the entity lookup list could not be fetched.
	ErrLookupRetrieval = errors.New("lookup retrieval failed")
	// ErrEntityMatch signals an unusable entity match.
	ErrEntityMatch = errors.New("entity match failed")
	// ErrEncoding signals an embedding failure.
	ErrEncoding = errors.New("encoding failed")
	// ErrRetrieval signals a failed similarity search pass.
	ErrRetrieval = errors.New("retrieval failed")
	// ErrGeneration signals that no answer could be synthesized.
	ErrGeneration = errors.New("generation failed")
)

// Failures raised by the leaf adapters.
var (
	// ErrCompletionProvider signals a completion service failure.
	ErrCompletionProvider = errors.New("completion provider error")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrVectorIndex signals a vector index failure.
	ErrVectorIndex = errors.New("vector index error")
	// ErrObjectStore signals an object store failure.
	ErrObjectStore = errors.New("object store error")
	// ErrTimeout signals that an external call exceeded its deadline.
	ErrTimeout = errors.New("timeout")
	// ErrBudgetExceeded signals an exhausted completion or embedding token budget.
	ErrBudgetExceeded = errors.New("token budget exceeded")
	// ErrMalformedResponse signals model output that could not be parsed.
	ErrMalformedResponse = errors.New("malformed model response")
)

// Stage names used in logs, metrics and StageError.
const (
	StageValidate   = "validate"
	StageDecompose  = "decompose"
	StageYears      = "extract_years"
	StageClubs      = "extract_clubs"
	StageLookup     = "fetch_lookup"
	StageEntities   = "match_entities"
	StageEncode     = "encode"
	StageRetrieve   = "retrieve"
	StageSynthesize = "synthesize"
)

// StageError tags a failure with the pipeline stage and its kind.
// errors.Is matches both the kind and the underlying cause.
type StageError struct {
	Stage string
	Kind  error
	Err   error
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Stage, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %s", e.Stage, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause.
func (e *StageError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewStageError creates a StageError.
func NewStageError(stage string, kind, err error) error {
	return &StageError{Stage: stage, Kind: kind, Err: err}
}

// IsFatal reports whether err aborts a request.
func IsFatal(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrMetadataExtraction), errors.Is(err, ErrEntityMatch):
		return false
	default:
		return true
	}
}

// Kind returns the pipeline failure kind carried by err, or nil.
func Kind(err error) error {
	var se *StageError
	if errors.As(err, &se) {
		return se.Kind
	}
	for _, k := range []error{
		ErrInvalidQuery, ErrDecomposition, ErrMetadataExtraction, ErrLookupRetrieval,
		ErrEntityMatch, ErrEncoding, ErrRetrieval, ErrGeneration,
	} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
