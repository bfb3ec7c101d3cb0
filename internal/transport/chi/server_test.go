package chi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	answeruc "github.com/kailas-cloud/ragq/internal/usecase/answer"
	healthuc "github.com/kailas-cloud/ragq/internal/usecase/health"
	"github.com/kailas-cloud/ragq/internal/usecase/usage"
)

// --- Fakes ---

type fakeAnswerer struct {
	resp answeruc.Response
	got  []answeruc.Request
}

func (f *fakeAnswerer) Handle(_ context.Context, req answeruc.Request) answeruc.Response {
	f.got = append(f.got, req)
	return f.resp
}

type fakeHealth struct {
	report healthuc.Report
}

func (f *fakeHealth) Check(context.Context) healthuc.Report { return f.report }

type fakeUsage struct {
	periods []usage.Period
}

func (f *fakeUsage) GetReport(_ context.Context, p usage.Period) usage.Report {
	f.periods = append(f.periods, p)
	return usage.Report{Period: p, Budgets: []usage.Budget{{Kind: "completion", Limit: 10, Used: 4, Remaining: 6}}}
}

type panicAnswerer struct{}

func (panicAnswerer) Handle(context.Context, answeruc.Request) answeruc.Response {
	panic("boom")
}

func newTestServer(a Answerer) (*Server, *fakeHealth) {
	h := &fakeHealth{report: healthuc.Report{
		Status: healthuc.Healthy,
		Checks: map[string]healthuc.CheckResult{"database": healthuc.CheckOK},
	}}
	return NewServer(a, h, zap.NewNop()), h
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) answeruc.Response {
	t.Helper()
	var env answeruc.Response
	if err := json.NewDecoder(rr.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return env
}

// --- Tests ---

func TestQuery_Success(t *testing.T) {
	a := &fakeAnswerer{resp: answeruc.Response{StatusCode: http.StatusOK, Body: `"Arsenal won."`}}
	s, _ := newTestServer(a)

	rr := do(t, s.Router(nil), "POST", "/v1/query", `{"user_query":"Who won?"}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
	env := decodeEnvelope(t, rr)
	if env.StatusCode != http.StatusOK || env.Body != `"Arsenal won."` {
		t.Errorf("unexpected envelope %+v", env)
	}
	if len(a.got) != 1 || a.got[0].UserQuery != "Who won?" {
		t.Errorf("unexpected requests %+v", a.got)
	}
}

func TestQuery_StatusMirrorsEnvelope(t *testing.T) {
	a := &fakeAnswerer{resp: answeruc.Response{StatusCode: http.StatusGatewayTimeout, Body: `{"error":"timeout"}`}}
	s, _ := newTestServer(a)

	rr := do(t, s.Router(nil), "POST", "/v1/query", `{"user_query":"Who won?"}`)

	if rr.Code != http.StatusGatewayTimeout {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusGatewayTimeout)
	}
	if env := decodeEnvelope(t, rr); env.StatusCode != http.StatusGatewayTimeout {
		t.Errorf("envelope status: got %d", env.StatusCode)
	}
}

func TestInvoke_AlwaysOK(t *testing.T) {
	a := &fakeAnswerer{resp: answeruc.Response{StatusCode: http.StatusInternalServerError, Body: `{"error":"retrieval_failed"}`}}
	s, _ := newTestServer(a)

	rr := do(t, s.Router(nil), "POST", "/invoke", `{"user_query":"Who won?"}`)

	if rr.Code != http.StatusOK {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	if env := decodeEnvelope(t, rr); env.StatusCode != http.StatusInternalServerError {
		t.Errorf("envelope status: got %d", env.StatusCode)
	}
}

func TestQuery_BadBodies(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"empty", "", http.StatusBadRequest, "bad_request"},
		{"not json", "user_query=x", http.StatusBadRequest, "bad_request"},
		{"wrong type", `{"user_query": 7}`, http.StatusBadRequest, "bad_request"},
		{"too large", `{"user_query":"` + strings.Repeat("x", 200) + `"}`, http.StatusRequestEntityTooLarge, "body_too_large"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := &fakeAnswerer{}
			s, _ := newTestServer(a)
			s.WithMaxBodyBytes(64)

			rr := do(t, s.Router(nil), "POST", "/v1/query", tc.body)

			if rr.Code != tc.status {
				t.Errorf("status: got %d, want %d", rr.Code, tc.status)
			}
			var body answeruc.ErrorBody
			if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error != tc.code {
				t.Errorf("code: got %q, want %q", body.Error, tc.code)
			}
			if len(a.got) != 0 {
				t.Error("pipeline must not run for a rejected body")
			}
		})
	}
}

func TestHealthCheck(t *testing.T) {
	s, h := newTestServer(&fakeAnswerer{})
	router := s.Router([]string{"secret"})

	rr := do(t, router, "GET", "/health", "")
	if rr.Code != http.StatusOK {
		t.Errorf("healthy: got %d, want %d", rr.Code, http.StatusOK)
	}

	h.report = healthuc.Report{
		Status: healthuc.Degraded,
		Checks: map[string]healthuc.CheckResult{"database": healthuc.CheckOK, "embedding": healthuc.CheckError},
	}
	rr = do(t, router, "GET", "/health", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("degraded: got %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}
	var body healthResponse
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "degraded" || body.Checks["embedding"] != "error" {
		t.Errorf("unexpected body %+v", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(&fakeAnswerer{})

	rr := do(t, s.Router([]string{"secret"}), "GET", "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Errorf("got %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestRouter_AuthGuardsQuery(t *testing.T) {
	a := &fakeAnswerer{resp: answeruc.Response{StatusCode: http.StatusOK, Body: `"ok"`}}
	s, _ := newTestServer(a)

	rr := do(t, s.Router([]string{"secret"}), "POST", "/v1/query", `{"user_query":"q"}`)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestRouter_UnknownRoute(t *testing.T) {
	s, _ := newTestServer(&fakeAnswerer{})

	if rr := do(t, s.Router(nil), "GET", "/nope", ""); rr.Code != http.StatusNotFound {
		t.Errorf("got %d, want %d", rr.Code, http.StatusNotFound)
	}
	if rr := do(t, s.Router(nil), "GET", "/v1/query", ""); rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("got %d, want %d", rr.Code, http.StatusMethodNotAllowed)
	}
}

func TestRouter_RecoversPanics(t *testing.T) {
	s, _ := newTestServer(panicAnswerer{})

	rr := do(t, s.Router(nil), "POST", "/v1/query", `{"user_query":"q"}`)
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("got %d, want %d", rr.Code, http.StatusInternalServerError)
	}
	var body answeruc.ErrorBody
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error != "internal_error" {
		t.Errorf("code: got %q", body.Error)
	}
}

func TestUsage(t *testing.T) {
	s, _ := newTestServer(&fakeAnswerer{})
	u := &fakeUsage{}
	h := s.WithUsage(u).Router(nil)

	rr := do(t, h, "GET", "/v1/usage?period=month", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusOK)
	}
	var report usage.Report
	if err := json.NewDecoder(rr.Body).Decode(&report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.Period != usage.PeriodMonth || len(report.Budgets) != 1 || report.Budgets[0].Remaining != 6 {
		t.Errorf("unexpected report %+v", report)
	}

	if rr := do(t, h, "GET", "/v1/usage?period=year", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("bad period: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
	if len(u.periods) != 1 {
		t.Errorf("reporter called %d times, want 1", len(u.periods))
	}
}

func TestUsage_NotMountedWithoutReporter(t *testing.T) {
	s, _ := newTestServer(&fakeAnswerer{})

	if rr := do(t, s.Router(nil), "GET", "/v1/usage", ""); rr.Code != http.StatusNotFound {
		t.Errorf("got %d, want %d", rr.Code, http.StatusNotFound)
	}
}
