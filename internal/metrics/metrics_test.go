package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecord(t *testing.T) {
	m := New()

	m.ObserveSample("Safari", 3500)
	m.ObserveSample("Safari", 4100)
	m.ParseFailure("Safari")
	m.ActionFailure("Brave", "reload")
	m.Iteration("Brave", "search")
	m.Iteration("Brave", "search")

	if got := testutil.ToFloat64(m.samples.WithLabelValues("Safari")); got != 2 {
		t.Fatalf("expected 2 samples, got %v", got)
	}
	if got := testutil.ToFloat64(m.lastPower.WithLabelValues("Safari")); got != 4100 {
		t.Fatalf("expected last power 4100, got %v", got)
	}
	if got := testutil.ToFloat64(m.parseFailures.WithLabelValues("Safari")); got != 1 {
		t.Fatalf("expected 1 parse failure, got %v", got)
	}
	if got := testutil.ToFloat64(m.actionFailures.WithLabelValues("Brave", "reload")); got != 1 {
		t.Fatalf("expected 1 action failure, got %v", got)
	}
	if got := testutil.ToFloat64(m.iterations.WithLabelValues("Brave", "search")); got != 2 {
		t.Fatalf("expected 2 iterations, got %v", got)
	}
	if n := testutil.CollectAndCount(m.samples); n != 1 {
		t.Fatalf("expected one sample series, got %d", n)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveSample("Safari", 1)
	m.ParseFailure("Safari")
	m.ActionFailure("Safari", "reload")
	m.Iteration("Safari", "reload")
	if m.Registry() != nil {
		t.Fatal("expected nil registry")
	}
}
