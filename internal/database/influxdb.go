package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"power-bench/internal/config"
	"power-bench/internal/host"
	"power-bench/internal/logging"
	"power-bench/internal/results"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/sirupsen/logrus"
)

const (
	SampleMeasurement = "power_samples"
	RunMeasurement    = "benchmark_runs"

	writeTimeout = 10 * time.Second
)

var errSinkClosed = errors.New("influxdb sink is closed")

// RunMetadata describes one benchmark invocation.
type RunMetadata struct {
	BenchmarkName     string
	Description       string
	Subjects          []string
	Started           time.Time
	Finished          time.Time
	CollectionSeconds float64
	SimulationSeconds float64
	TotalSamples      int
	ConfigFile        string
}

// InfluxSink mirrors result samples into an InfluxDB bucket as points tagged
// with the benchmark, run and subject. Append only queues the point; a
// background goroutine hands queued points to the batching write API, so a
// slow or unreachable server never holds up the caller. Write failures are
// logged as they happen and counted in the error returned by Close.
type InfluxSink struct {
	client    influxdb2.Client
	writeAPI  api.WriteAPI
	blocking  api.WriteAPIBlocking
	benchmark string
	runID     string

	mu      sync.Mutex
	pending []*write.Point
	closed  bool

	wake        chan struct{}
	forwarded   chan struct{}
	errsDrained chan struct{}
	failed      atomic.Int64
}

func NewInfluxSink(cfg config.InfluxConfig, benchmark, runID string) (*InfluxSink, error) {
	logger := logging.GetLogger()

	client := influxdb2.NewClient(cfg.Host, cfg.Token)

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	health, err := client.Health(ctx)
	if err != nil {
		logger.WithField("host", cfg.Host).WithError(err).Error("Failed to connect to InfluxDB")
		client.Close()
		return nil, fmt.Errorf("connect to influxdb at %s: %w", cfg.Host, err)
	}

	if health.Status != "pass" {
		message := ""
		if health.Message != nil {
			message = *health.Message
		}
		logger.WithFields(logrus.Fields{
			"host":    cfg.Host,
			"status":  health.Status,
			"message": message,
		}).Error("InfluxDB health check failed")
		client.Close()
		return nil, fmt.Errorf("influxdb at %s is not healthy: %s", cfg.Host, health.Status)
	}

	logger.WithFields(logrus.Fields{
		"host":   cfg.Host,
		"bucket": cfg.Bucket,
		"org":    cfg.Org,
		"run_id": runID,
	}).Info("Connected to InfluxDB")

	s := &InfluxSink{
		client:      client,
		writeAPI:    client.WriteAPI(cfg.Org, cfg.Bucket),
		blocking:    client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		benchmark:   benchmark,
		runID:       runID,
		wake:        make(chan struct{}, 1),
		forwarded:   make(chan struct{}),
		errsDrained: make(chan struct{}),
	}
	// Errors must be read before the first write for failures to be reported.
	go s.drainErrors(s.writeAPI.Errors())
	go s.forward()
	return s, nil
}

func (s *InfluxSink) drainErrors(errs <-chan error) {
	defer close(s.errsDrained)
	logger := logging.GetLogger()
	for err := range errs {
		s.failed.Add(1)
		logger.WithField("run_id", s.runID).WithError(err).Warn("Failed to write samples to InfluxDB")
	}
}

// forward moves queued points to the write API until the sink is closed and
// the queue is empty.
func (s *InfluxSink) forward() {
	defer close(s.forwarded)
	for range s.wake {
		s.mu.Lock()
		batch := s.pending
		s.pending = nil
		closed := s.closed
		s.mu.Unlock()

		for _, point := range batch {
			s.writeAPI.WritePoint(point)
		}
		if closed {
			return
		}
	}
}

func (s *InfluxSink) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Append queues sample for writing and returns without waiting for the server.
func (s *InfluxSink) Append(sample results.Sample) error {
	point := influxdb2.NewPoint(SampleMeasurement,
		map[string]string{
			"benchmark": s.benchmark,
			"run_id":    s.runID,
			"subject":   sample.Subject,
		},
		map[string]interface{}{
			"power_mw": sample.Value,
		},
		time.Unix(sample.Timestamp, 0))

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errSinkClosed
	}
	s.pending = append(s.pending, point)
	s.mu.Unlock()

	s.notify()
	return nil
}

// WriteRunMetadata records a single point describing the run and the host it
// ran on.
func (s *InfluxSink) WriteRunMetadata(ctx context.Context, meta RunMetadata) error {
	sys := host.GetHostInfo()

	point := influxdb2.NewPoint(RunMeasurement,
		map[string]string{
			"benchmark": s.benchmark,
			"run_id":    s.runID,
		},
		map[string]interface{}{
			"description":        meta.Description,
			"subjects":           strings.Join(meta.Subjects, ","),
			"total_subjects":     len(meta.Subjects),
			"benchmark_started":  meta.Started.Format(time.RFC3339),
			"benchmark_finished": meta.Finished.Format(time.RFC3339),
			"duration_seconds":   int64(meta.Finished.Sub(meta.Started).Seconds()),
			"collection_seconds": meta.CollectionSeconds,
			"simulation_seconds": meta.SimulationSeconds,
			"total_samples":      meta.TotalSamples,
			"config_file":        meta.ConfigFile,
			"hostname":           sys.Hostname,
			"os_info":            sys.OSInfo,
			"kernel_version":     sys.KernelVersion,
			"cpu_vendor":         sys.CPUVendor,
			"cpu_model":          sys.CPUModel,
			"total_cpu_cores":    sys.TotalCores,
		},
		meta.Finished)

	if err := s.blocking.WritePoint(ctx, point); err != nil {
		return fmt.Errorf("failed to write run metadata: %w", err)
	}
	return nil
}

// Close sends every queued sample, waits for the outstanding batches and
// reports how many of them could not be written.
func (s *InfluxSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.notify()
	<-s.forwarded
	s.client.Close()
	<-s.errsDrained

	if n := s.failed.Load(); n > 0 {
		return fmt.Errorf("%d influxdb sample writes failed", n)
	}
	return nil
}
