package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragq/internal/metrics"
	answeruc "github.com/kailas-cloud/ragq/internal/usecase/answer"
	healthuc "github.com/kailas-cloud/ragq/internal/usecase/health"
	"github.com/kailas-cloud/ragq/internal/usecase/usage"
)

// DefaultMaxBodyBytes caps request bodies.
const DefaultMaxBodyBytes = 64 << 10

var (
	errEmptyBody    = errors.New("request body is required")
	errInvalidBody  = errors.New("invalid request body")
	errBodyTooLarge = errors.New("request body too large")
)

// errorHandler tries to handle a request error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Answerer runs the question pipeline for one event.
type Answerer interface {
	Handle(ctx context.Context, req answeruc.Request) answeruc.Response
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// UsageReporter reports token budgets.
type UsageReporter interface {
	GetReport(ctx context.Context, period usage.Period) usage.Report
}

// Server serves the question pipeline over HTTP.
type Server struct {
	answers       Answerer
	health        HealthChecker
	usage         UsageReporter
	logger        *zap.Logger
	maxBodyBytes  int64
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(answers Answerer, health HealthChecker, logger *zap.Logger) *Server {
	return &Server{
		answers:      answers,
		health:       health,
		logger:       logger,
		maxBodyBytes: DefaultMaxBodyBytes,
		errorHandlers: []errorHandler{
			sentinelHandler(errBodyTooLarge, http.StatusRequestEntityTooLarge, "body_too_large"),
			sentinelHandler(errEmptyBody, http.StatusBadRequest, "bad_request"),
			sentinelHandler(errInvalidBody, http.StatusBadRequest, "bad_request"),
		},
	}
}

// WithMaxBodyBytes overrides the request body cap.
func (s *Server) WithMaxBodyBytes(n int64) *Server {
	if n > 0 {
		s.maxBodyBytes = n
	}
	return s
}

// WithUsage mounts GET /v1/usage.
func (s *Server) WithUsage(u UsageReporter) *Server {
	s.usage = u
	return s
}

// Router mounts the routes behind the standard middleware chain.
func (s *Server) Router(apiKeys []string) http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(s.logger))
	r.Use(BearerAuthMiddleware(apiKeys))
	r.Use(metrics.Middleware())

	r.Post("/v1/query", s.Query)
	r.Post("/invoke", s.Invoke)
	r.Get("/health", s.HealthCheck)
	if s.usage != nil {
		r.Get("/v1/usage", s.Usage)
	}
	r.Get("/metrics", s.Metrics)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})
	return r
}

// Query handles POST /v1/query. The HTTP status mirrors the envelope.
func (s *Server) Query(w http.ResponseWriter, r *http.Request) {
	req, err := s.decode(w, r)
	if err != nil {
		s.handleRequestError(w, err)
		return
	}
	resp := s.answers.Handle(r.Context(), req)
	writeJSON(w, resp.StatusCode, resp)
}

// Invoke handles POST /invoke. Failures travel inside the envelope.
func (s *Server) Invoke(w http.ResponseWriter, r *http.Request) {
	req, err := s.decode(w, r)
	if err != nil {
		s.handleRequestError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.answers.Handle(r.Context(), req))
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, healthResponse{Status: string(report.Status), Checks: checks})
}

// Usage handles GET /v1/usage?period=day|month.
func (s *Server) Usage(w http.ResponseWriter, r *http.Request) {
	period, err := usage.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.usage.GetReport(r.Context(), period))
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request) (answeruc.Request, error) {
	var req answeruc.Request
	body := http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return req, fmt.Errorf("%w: limit %d bytes", errBodyTooLarge, tooLarge.Limit)
		case errors.Is(err, io.EOF):
			return req, errEmptyBody
		default:
			return req, fmt.Errorf("%w: %w", errInvalidBody, err)
		}
	}
	return req, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, answeruc.ErrorBody{Error: code, Message: message})
}

func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, sentinel.Error())
		return true
	}
}

func (s *Server) handleRequestError(w http.ResponseWriter, err error) {
	s.logger.Warn("request rejected", zap.Error(err))
	for _, h := range s.errorHandlers {
		if h(w, err) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
}
