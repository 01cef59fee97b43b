package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"power-bench/internal/logging"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes run progress. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	samples        *prometheus.CounterVec
	parseFailures  *prometheus.CounterVec
	actionFailures *prometheus.CounterVec
	iterations     *prometheus.CounterVec
	lastPower      *prometheus.GaugeVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		samples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "power_bench_samples_total",
			Help: "Power samples appended to the result log.",
		}, []string{"subject"}),
		parseFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "power_bench_parse_failures_total",
			Help: "Marker lines from the sampling process that could not be parsed.",
		}, []string{"subject"}),
		actionFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "power_bench_action_failures_total",
			Help: "Failed driver iterations by the action that failed.",
		}, []string{"subject", "action"}),
		iterations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "power_bench_driver_iterations_total",
			Help: "Usage-simulation iterations by selected pattern.",
		}, []string{"subject", "pattern"}),
		lastPower: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "power_bench_last_power_milliwatts",
			Help: "Most recent combined power reading.",
		}, []string{"subject"}),
	}
	m.registry.MustRegister(m.samples, m.parseFailures, m.actionFailures, m.iterations, m.lastPower)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveSample(subject string, milliwatts int64) {
	if m == nil {
		return
	}
	m.samples.WithLabelValues(subject).Inc()
	m.lastPower.WithLabelValues(subject).Set(float64(milliwatts))
}

func (m *Metrics) ParseFailure(subject string) {
	if m == nil {
		return
	}
	m.parseFailures.WithLabelValues(subject).Inc()
}

func (m *Metrics) ActionFailure(subject, action string) {
	if m == nil {
		return
	}
	m.actionFailures.WithLabelValues(subject, action).Inc()
}

func (m *Metrics) Iteration(subject, pattern string) {
	if m == nil {
		return
	}
	m.iterations.WithLabelValues(subject, pattern).Inc()
}

// Serve exposes the registry on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	logger := logging.GetLogger()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.WithField("addr", addr).Info("Serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
