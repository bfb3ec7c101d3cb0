package answer

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kailas-cloud/ragq/internal/domain"
)

// Request is the inbound event.
type Request struct {
	UserQuery string `json:"user_query"`
}

// Response is the outbound envelope. Body is itself a JSON document encoded as a string.
type Response struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`

	// Answer is set on success for in-process callers.
	Answer *domain.Answer `json:"-"`
}

// ErrorBody is the JSON carried in Body on failure.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Failure is the client-facing classification of a pipeline error.
type Failure struct {
	Status  int
	Code    string
	Message string
}

type failureRule struct {
	err    error
	status int
	code   string
}

// Checked in order: budget and timeout win over the stage kind that carries them.
var failureRules = []failureRule{
	{domain.ErrInvalidQuery, http.StatusBadRequest, "invalid_query"},
	{domain.ErrBudgetExceeded, http.StatusTooManyRequests, "budget_exceeded"},
	{domain.ErrTimeout, http.StatusGatewayTimeout, "timeout"},
	{domain.ErrDecomposition, http.StatusInternalServerError, "decomposition_failed"},
	{domain.ErrLookupRetrieval, http.StatusInternalServerError, "lookup_retrieval_failed"},
	{domain.ErrEncoding, http.StatusInternalServerError, "encoding_failed"},
	{domain.ErrRetrieval, http.StatusInternalServerError, "retrieval_failed"},
	{domain.ErrGeneration, http.StatusInternalServerError, "generation_failed"},
}

// Classify maps err to a status and a message safe to show clients.
func Classify(err error) Failure {
	for _, r := range failureRules {
		if !errors.Is(err, r.err) {
			continue
		}
		return Failure{Status: r.status, Code: r.code, Message: safeMessage(err, r.err)}
	}
	return Failure{Status: http.StatusInternalServerError, Code: "internal_error", Message: "internal error"}
}

func safeMessage(err, matched error) string {
	if matched == domain.ErrInvalidQuery {
		// validation text is user-facing: "invalid query: user_query is required"
		var se *domain.StageError
		if errors.As(err, &se) && se.Err != nil {
			return se.Err.Error()
		}
		return matched.Error()
	}
	if kind := domain.Kind(err); kind != nil && kind != matched {
		return kind.Error() + ": " + matched.Error()
	}
	return matched.Error()
}

func successResponse(ans domain.Answer) Response {
	body, _ := json.Marshal(ans.Text)
	return Response{StatusCode: http.StatusOK, Body: string(body), Answer: &ans}
}

func failureResponse(f Failure) Response {
	body, _ := json.Marshal(ErrorBody{Error: f.Code, Message: f.Message})
	return Response{StatusCode: f.Status, Body: string(body)}
}
