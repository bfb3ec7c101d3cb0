package ragq

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	answeruc "github.com/kailas-cloud/ragq/internal/usecase/answer"
)

// sdkMetrics holds prometheus metrics registered for the SDK.
type sdkMetrics struct {
	operations *prometheus.CounterVec
	failures   *prometheus.CounterVec
	dropped    *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

func newSDKMetrics(reg prometheus.Registerer) (*sdkMetrics, error) {
	m := &sdkMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragq",
			Subsystem: "sdk",
			Name:      "operations_total",
			Help:      "Total SDK operations by type and status (ok, degraded, error).",
		}, []string{"operation", "status"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragq",
			Subsystem: "sdk",
			Name:      "failures_total",
			Help:      "Failed SDK operations by error code (timeout, generation_failed, ...).",
		}, []string{"operation", "code"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragq",
			Subsystem: "sdk",
			Name:      "dropped_total",
			Help:      "Optional fields and retrieval passes dropped from degraded answers.",
		}, []string{"item"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ragq",
			Subsystem: "sdk",
			Name:      "operation_duration_seconds",
			Help:      "SDK operation duration in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"operation"}),
	}
	if err := registerOrReuse(reg, &m.operations); err != nil {
		return nil, err
	}
	for _, c := range []**prometheus.CounterVec{&m.failures, &m.dropped} {
		if err := registerOrReuse(reg, c); err != nil {
			return nil, err
		}
	}
	if err := registerOrReuse(reg, &m.duration); err != nil {
		return nil, err
	}
	return m, nil
}

// registerOrReuse registers a collector or reuses an existing one.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	if err := reg.Register(*c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			existing, ok := are.ExistingCollector.(T)
			if !ok {
				return fmt.Errorf("ragq: metric already registered with incompatible type: %T", are.ExistingCollector)
			}
			*c = existing
			return nil
		}
		return fmt.Errorf("ragq: register metric: %w", err)
	}
	return nil
}

// observer provides logging and metrics for SDK operations.
type observer struct {
	logger  *slog.Logger
	metrics *sdkMetrics
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	var m *sdkMetrics
	if reg != nil {
		var err error
		m, err = newSDKMetrics(reg)
		if err != nil {
			return nil, err
		}
	}
	return &observer{logger: logger, metrics: m}, nil
}

func (o *observer) observe(op string, start time.Time, err error) {
	o.record(op, start, err, nil)
}

// observeAnswer also reports which optional fields or passes were dropped.
func (o *observer) observeAnswer(start time.Time, ans Answer, err error) {
	var dropped []string
	if err == nil {
		dropped = append(append(dropped, ans.Degraded...), ans.SkippedPasses...)
	}
	o.record("ask", start, err, dropped)
}

func (o *observer) record(op string, start time.Time, err error, dropped []string) {
	if o == nil {
		return
	}
	dur := time.Since(start)

	status := "ok"
	switch {
	case err != nil:
		status = "error"
	case len(dropped) > 0:
		status = "degraded"
	}

	if o.metrics != nil {
		o.metrics.operations.WithLabelValues(op, status).Inc()
		o.metrics.duration.WithLabelValues(op).Observe(dur.Seconds())
		if err != nil {
			o.metrics.failures.WithLabelValues(op, answeruc.Classify(err).Code).Inc()
		}
		for _, d := range dropped {
			o.metrics.dropped.WithLabelValues(d).Inc()
		}
	}

	if o.logger == nil {
		return
	}
	switch status {
	case "error":
		o.logger.Warn("operation failed",
			"op", op,
			"duration", dur,
			"error", err,
		)
	case "degraded":
		o.logger.Info("operation degraded",
			"op", op,
			"duration", dur,
			"dropped", dropped,
		)
	default:
		o.logger.Debug("operation completed",
			"op", op,
			"duration", dur,
		)
	}
}
