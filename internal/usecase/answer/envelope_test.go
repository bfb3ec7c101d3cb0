package answer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragq/internal/domain"
	"github.com/kailas-cloud/ragq/internal/usecase/retrieve"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
		msg    string
	}{
		{
			"invalid query",
			domain.NewStageError(domain.StageValidate, domain.ErrInvalidQuery,
				fmt.Errorf("%w: user_query is required", domain.ErrInvalidQuery)),
			http.StatusBadRequest, "invalid_query", "invalid query: user_query is required",
		},
		{
			"budget during decomposition",
			domain.NewStageError(domain.StageDecompose, domain.ErrDecomposition, domain.ErrBudgetExceeded),
			http.StatusTooManyRequests, "budget_exceeded", "decomposition failed: token budget exceeded",
		},
		{
			"retrieval",
			domain.NewStageError(domain.StageRetrieve, domain.ErrRetrieval, errors.New("conn reset by 10.0.0.7")),
			http.StatusInternalServerError, "retrieval_failed", "retrieval failed",
		},
		{
			"unknown",
			errors.New("boom"),
			http.StatusInternalServerError, "internal_error", "internal error",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := Classify(tc.err)
			assert.Equal(t, tc.status, f.Status)
			assert.Equal(t, tc.code, f.Code)
			assert.Equal(t, tc.msg, f.Message)
		})
	}
}

func TestSuccessResponse_BodyIsJSONString(t *testing.T) {
	r := successResponse(domain.Answer{Text: `He said "hi"`})
	assert.Equal(t, http.StatusOK, r.StatusCode)
	assert.Equal(t, `"He said \"hi\""`, r.Body)
}

// slowMainIndex stalls the main search and times out every sub-question search.
type slowMainIndex struct{}

func (slowMainIndex) Query(ctx context.Context, q domain.VectorQuery) ([]domain.Passage, error) {
	if q.Vector[0] == 0 {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return nil, fmt.Errorf("vector index: %w: %w", domain.ErrTimeout, context.DeadlineExceeded)
}

func TestClassify_SubqueryTimeoutDuringRetrieval(t *testing.T) {
	r, err := retrieve.New(slowMainIndex{}, retrieve.Config{Workers: 2}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(r.Release)

	_, _, err = r.Retrieve(context.Background(), retrieve.Input{
		Query:      []float32{0},
		Subqueries: [][]float32{{1}},
	})
	require.Error(t, err)

	f := Classify(err)
	assert.Equal(t, http.StatusGatewayTimeout, f.Status)
	assert.Equal(t, "timeout", f.Code)
	assert.Equal(t, "retrieval failed: timeout", f.Message)
}
