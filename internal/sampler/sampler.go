// Package sampler reads power readings from a long-running measurement
// process and records them as samples.
package sampler

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"power-bench/internal/logging"
	"power-bench/internal/metrics"
	"power-bench/internal/results"

	"github.com/sirupsen/logrus"
)

// ErrLaunch is returned by Collect when the sampling process cannot start.
var ErrLaunch = errors.New("launch sampling process")

const maxLineBytes = 1 << 20

type Sampler struct {
	launcher      Launcher
	parser        Parser
	sink          results.Sink
	metrics       *metrics.Metrics
	progressEvery int

	now func() time.Time
}

func New(launcher Launcher, parser Parser, sink results.Sink, m *metrics.Metrics, progressEvery int) *Sampler {
	return &Sampler{
		launcher:      launcher,
		parser:        parser,
		sink:          sink,
		metrics:       m,
		progressEvery: progressEvery,
		now:           time.Now,
	}
}

// Collect runs the sampling process for duration, appending every parsed
// reading to the sink as soon as it is read. The process is stopped and
// waited for before Collect returns.
func (s *Sampler) Collect(ctx context.Context, subject string, duration time.Duration) ([]results.Sample, error) {
	logger := logging.GetLogger().WithField("subject", subject)

	proc, err := s.launcher.Launch(ctx)
	if err != nil {
		logger.WithError(err).Error("Failed to start sampling process")
		return nil, fmt.Errorf("%w: %w", ErrLaunch, err)
	}

	logger.WithField("duration", duration).Info("Collecting power samples")

	start := s.now()
	timer := time.NewTimer(duration)
	defer timer.Stop()

	lines := make(chan string)
	done := make(chan struct{})
	go pump(proc.Stdout(), lines, done)

	samples := make([]results.Sample, 0)
	streamOpen := true

loop:
	for duration > 0 {
		select {
		case <-ctx.Done():
			logger.Info("Sample collection interrupted")
			break loop
		case <-timer.C:
			break loop
		case line, ok := <-lines:
			if !ok {
				if streamOpen {
					logger.Warn("Sampling process output ended before the collection window")
				}
				streamOpen = false
				lines = nil
				continue
			}
			if s.now().Sub(start) > duration {
				break loop
			}

			value, matched, err := s.parser.Parse(line)
			if !matched {
				continue
			}
			if err != nil {
				s.metrics.ParseFailure(subject)
				logger.WithField("line", line).WithError(err).Warn("Could not parse power value")
				continue
			}

			sample := results.Sample{
				Subject:   subject,
				Timestamp: s.now().Unix(),
				Value:     value,
			}
			if err := s.sink.Append(sample); err != nil {
				logger.WithError(err).Error("Failed to append sample to result log")
			}
			samples = append(samples, sample)
			s.metrics.ObserveSample(subject, value)

			if s.progressEvery > 0 && len(samples)%s.progressEvery == 0 {
				logger.WithField("readings", len(samples)).Info("Collected power readings")
			}
		}
	}

	close(done)
	if err := proc.Stop(); err != nil {
		logger.WithError(err).Warn("Sampling process did not exit cleanly")
	}

	logger.WithFields(logrus.Fields{
		"readings": len(samples),
		"elapsed":  s.now().Sub(start).Round(time.Millisecond),
	}).Info("Power sampling finished")
	return samples, nil
}

// pump forwards lines from r until r ends or done is closed.
func pump(r io.Reader, lines chan<- string, done <-chan struct{}) {
	defer close(lines)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	for scanner.Scan() {
		select {
		case lines <- scanner.Text():
		case <-done:
			return
		}
	}
}
