package ragq

import "github.com/kailas-cloud/ragq/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInvalidQuery    = domain.ErrInvalidQuery
	ErrDecomposition   = domain.ErrDecomposition
	ErrLookupRetrieval = domain.ErrLookupRetrieval
	ErrEncoding        = domain.ErrEncoding
	ErrRetrieval       = domain.ErrRetrieval
	ErrGeneration      = domain.ErrGeneration
	ErrTimeout         = domain.ErrTimeout
	ErrBudgetExceeded  = domain.ErrBudgetExceeded
)
