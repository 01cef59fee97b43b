package driver

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"power-bench/internal/action"
	"power-bench/internal/catalogue"
	"power-bench/internal/config"
	"power-bench/internal/logging"
	"power-bench/internal/metrics"

	"github.com/sirupsen/logrus"
)

type Options struct {
	FocusPause             catalogue.WaitRange
	FailurePause           time.Duration
	BackForwardProbability float64
	BackForwardDelay       time.Duration
	Schedule               Schedule
	// Seed fixes the random sequence. With a non-zero seed every subject
	// sees the same pattern and wait sequence.
	Seed int64
}

func OptionsFromConfig(cfg *config.RunConfig, cat *catalogue.Catalogue) (Options, error) {
	schedule, err := ScheduleFromConfig(cfg.Driver.Schedule, cat)
	if err != nil {
		return Options{}, err
	}
	d := cfg.Driver
	return Options{
		FocusPause: catalogue.WaitRange{
			Min: config.Seconds(d.FocusPause.Min),
			Max: config.Seconds(d.FocusPause.Max),
		},
		FailurePause:           config.Seconds(d.FailurePause),
		BackForwardProbability: *d.BackForwardProbability,
		BackForwardDelay:       config.Seconds(d.BackForwardDelay),
		Schedule:               schedule,
		Seed:                   d.Seed,
	}, nil
}

// Stats summarises one Run.
type Stats struct {
	Iterations int
	Failures   int
}

// Driver simulates a user cycling through the open units of a subject.
type Driver struct {
	catalogue *catalogue.Catalogue
	opts      Options
	metrics   *metrics.Metrics

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func New(cat *catalogue.Catalogue, opts Options, m *metrics.Metrics) *Driver {
	return &Driver{
		catalogue: cat,
		opts:      opts,
		metrics:   m,
		now:       time.Now,
		sleep:     sleepContext,
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

func (d *Driver) newRand() *rand.Rand {
	seed := d.opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// actionError records which action failed an iteration.
type actionError struct {
	req action.Request
	err error
}

func (e *actionError) Error() string {
	return fmt.Sprintf("%s: %v", e.req, e.err)
}

func (e *actionError) Unwrap() error {
	return e.err
}

// Run issues interactions against capability until duration has elapsed since
// Run was entered or ctx is done. Failed iterations are logged and skipped.
func (d *Driver) Run(ctx context.Context, subject string, capability action.Capability, unitCount int, duration time.Duration) Stats {
	logger := logging.GetDriverLogger().WithField("subject", subject)

	var stats Stats
	if unitCount < 1 {
		logger.WithField("units", unitCount).Warn("No units to drive, skipping usage simulation")
		return stats
	}

	logger.WithFields(logrus.Fields{
		"units":    unitCount,
		"duration": duration,
	}).Info("Starting usage simulation")

	rng := d.newRand()
	start := d.now()

	for i := 1; d.now().Sub(start) < duration; i++ {
		if ctx.Err() != nil {
			break
		}

		err := d.iterate(ctx, rng, subject, capability, unitCount, i)
		stats.Iterations++
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			break
		}

		stats.Failures++
		fields := logrus.Fields{"iteration": i}
		if ae, ok := err.(*actionError); ok {
			fields["action"] = string(ae.req.Name)
			d.metrics.ActionFailure(subject, string(ae.req.Name))
		}
		logger.WithFields(fields).WithError(err).Warn("Usage simulation iteration failed")
		if d.sleep(ctx, d.opts.FailurePause) != nil {
			break
		}
	}

	logger.WithFields(logrus.Fields{
		"iterations": stats.Iterations,
		"failures":   stats.Failures,
		"elapsed":    d.now().Sub(start).Round(time.Millisecond),
	}).Info("Usage simulation completed")
	return stats
}

func (d *Driver) iterate(ctx context.Context, rng *rand.Rand, subject string, capability action.Capability, unitCount, i int) error {
	unit := SelectUnit(i, unitCount)
	if err := d.perform(ctx, capability, action.Request{Name: action.FocusUnit, Unit: unit}); err != nil {
		return err
	}
	if err := d.sleep(ctx, d.opts.FocusPause.Draw(rng)); err != nil {
		return err
	}

	pattern := d.catalogue.Get(d.opts.Schedule.Select(i, rng))
	d.metrics.Iteration(subject, pattern.Name)
	logging.GetDriverLogger().WithFields(logrus.Fields{
		"subject":   subject,
		"iteration": i,
		"unit":      unit,
		"pattern":   pattern.Name,
	}).Debug("Running behavior pattern")

	for _, step := range pattern.Steps {
		if err := d.perform(ctx, capability, step.Action); err != nil {
			return err
		}
		if err := d.sleep(ctx, step.Delay); err != nil {
			return err
		}
	}

	if err := d.sleep(ctx, pattern.Wait.Draw(rng)); err != nil {
		return err
	}

	if rng.Float64() < d.opts.BackForwardProbability {
		for _, name := range []action.Name{action.NavigateBack, action.NavigateForward} {
			if err := d.perform(ctx, capability, action.Request{Name: name}); err != nil {
				return err
			}
			if err := d.sleep(ctx, d.opts.BackForwardDelay); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *Driver) perform(ctx context.Context, capability action.Capability, req action.Request) error {
	if err := capability.Perform(ctx, req); err != nil {
		return &actionError{req: req, err: err}
	}
	return nil
}
