// Package sequencer runs the per-subject benchmark phases: reset, prime,
// concurrent usage simulation and power sampling, teardown and cooldown.
package sequencer

import (
	"context"
	"fmt"
	"time"

	"power-bench/internal/action"
	"power-bench/internal/config"
	"power-bench/internal/driver"
	"power-bench/internal/logging"
	"power-bench/internal/results"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
)

const teardownTimeout = 30 * time.Second

// CapabilityFactory builds the action capability bound to subject.
type CapabilityFactory func(subject config.SubjectConfig) (action.Capability, error)

// Simulator is the usage simulation run in the background of each subject.
type Simulator interface {
	Run(ctx context.Context, subject string, capability action.Capability, unitCount int, duration time.Duration) driver.Stats
}

// Collector is the foreground sampling phase of each subject.
type Collector interface {
	Collect(ctx context.Context, subject string, duration time.Duration) ([]results.Sample, error)
}

// Outcome reports what happened to one subject.
type Outcome struct {
	Subject   string
	Units     int
	Samples   int
	Stats     driver.Stats
	Abandoned bool
	Err       error
}

type Sequencer struct {
	cfg          *config.RunConfig
	capabilities CapabilityFactory
	simulator    Simulator
	collector    Collector

	sleep func(ctx context.Context, d time.Duration) error
}

func New(cfg *config.RunConfig, capabilities CapabilityFactory, simulator Simulator, collector Collector) *Sequencer {
	return &Sequencer{
		cfg:          cfg,
		capabilities: capabilities,
		simulator:    simulator,
		collector:    collector,
		sleep:        sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run benchmarks subjects in the given order. A failing subject is logged and
// the next one started; the failures are returned together once every subject
// has been processed. Cancelling ctx stops before the next subject.
func (s *Sequencer) Run(ctx context.Context, subjects []config.SubjectConfig) ([]Outcome, error) {
	logger := logging.GetLogger()

	outcomes := make([]Outcome, 0, len(subjects))
	var result *multierror.Error

	for i, subject := range subjects {
		if ctx.Err() != nil {
			logger.WithField("remaining", len(subjects)-i).Warn("Benchmark interrupted, skipping remaining subjects")
			result = multierror.Append(result, ctx.Err())
			break
		}

		logger.WithFields(logrus.Fields{
			"subject":  subject.Name,
			"position": i + 1,
			"total":    len(subjects),
		}).Info("Benchmarking subject")

		outcome := s.runSubject(ctx, subject)
		outcomes = append(outcomes, outcome)
		if outcome.Err != nil {
			logger.WithField("subject", subject.Name).WithError(outcome.Err).Error("Subject failed, continuing with next subject")
			result = multierror.Append(result, fmt.Errorf("%s: %w", subject.Name, outcome.Err))
		}

		if i < len(subjects)-1 {
			logger.WithField("cooldown", s.cfg.Cooldown()).Info("Cooling down before next subject")
			_ = s.sleep(ctx, s.cfg.Cooldown())
		}
	}

	return outcomes, result.ErrorOrNil()
}

func (s *Sequencer) runSubject(ctx context.Context, subject config.SubjectConfig) Outcome {
	logger := logging.GetLogger().WithField("subject", subject.Name)
	outcome := Outcome{Subject: subject.Name, Units: s.cfg.UnitCount(subject)}

	capability, err := s.capabilities(subject)
	if err != nil {
		outcome.Err = fmt.Errorf("create action capability: %w", err)
		return outcome
	}
	defer func() {
		if err := action.Close(capability); err != nil {
			logger.WithError(err).Warn("Failed to release action capability")
		}
	}()

	s.teardown(ctx, subject.Name, capability)
	_ = s.sleep(ctx, s.cfg.SettleDelay())

	urls := s.cfg.PrimeURLs(outcome.Units)
	logger.WithField("units", len(urls)).Info("Priming subject")
	if err := capability.Perform(ctx, action.Request{Name: action.OpenURLs, URLs: urls}); err != nil {
		logger.WithError(err).Error("Failed to prime subject")
	}
	_ = s.sleep(ctx, s.cfg.LoadDelay())

	outcome.Stats, outcome.Samples, outcome.Abandoned, outcome.Err = s.measure(ctx, subject.Name, capability, outcome.Units)

	s.teardown(ctx, subject.Name, capability)
	return outcome
}

// measure runs the driver in the background while sampling on the calling
// goroutine. The driver is joined for at most the configured join timeout and
// then cancelled.
func (s *Sequencer) measure(ctx context.Context, subject string, capability action.Capability, units int) (driver.Stats, int, bool, error) {
	logger := logging.GetLogger().WithField("subject", subject)

	driverCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan driver.Stats, 1)
	go func() {
		done <- s.simulator.Run(driverCtx, subject, capability, units, s.cfg.SimulationWindow())
	}()

	samples, collectErr := s.collector.Collect(ctx, subject, s.cfg.CollectionWindow())

	var stats driver.Stats
	abandoned := false
	timer := time.NewTimer(s.cfg.JoinTimeout())
	defer timer.Stop()
	select {
	case stats = <-done:
	case <-timer.C:
		abandoned = true
		logger.WithField("join_timeout", s.cfg.JoinTimeout()).Warn("Usage simulation still running after join timeout, abandoning it")
	}

	return stats, len(samples), abandoned, collectErr
}

// teardown closes all units. It runs on a context detached from ctx so an
// interrupted benchmark still leaves the subject clean.
func (s *Sequencer) teardown(ctx context.Context, subject string, capability action.Capability) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), teardownTimeout)
	defer cancel()

	if err := capability.Perform(ctx, action.Request{Name: action.CloseAll}); err != nil {
		logging.GetLogger().WithField("subject", subject).WithError(err).Warn("Failed to close subject units")
	}
}
