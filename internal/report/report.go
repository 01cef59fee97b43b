// Package report summarises a result log into per-subject power statistics.
package report

import (
	"fmt"
	"io"
	"strings"

	"power-bench/internal/results"

	"github.com/montanaflynn/stats"
)

// Summary holds the descriptive statistics of one subject's readings, in mW.
type Summary struct {
	Subject string
	Samples int
	Mean    float64
	Min     float64
	Max     float64
	StdDev  float64
}

// Summarize groups samples by subject, keeping the order in which subjects
// first appear.
func Summarize(samples []results.Sample) ([]Summary, error) {
	order := make([]string, 0)
	values := make(map[string]stats.Float64Data)
	for _, s := range samples {
		if _, ok := values[s.Subject]; !ok {
			order = append(order, s.Subject)
		}
		values[s.Subject] = append(values[s.Subject], float64(s.Value))
	}

	summaries := make([]Summary, 0, len(order))
	for _, subject := range order {
		summary, err := summarize(subject, values[subject])
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func summarize(subject string, data stats.Float64Data) (Summary, error) {
	summary := Summary{Subject: subject, Samples: data.Len()}

	var err error
	if summary.Mean, err = stats.Mean(data); err != nil {
		return Summary{}, fmt.Errorf("mean for %s: %w", subject, err)
	}
	if summary.Min, err = stats.Min(data); err != nil {
		return Summary{}, fmt.Errorf("min for %s: %w", subject, err)
	}
	if summary.Max, err = stats.Max(data); err != nil {
		return Summary{}, fmt.Errorf("max for %s: %w", subject, err)
	}
	// Sample deviation is undefined for a single reading.
	if data.Len() > 1 {
		if summary.StdDev, err = stats.StandardDeviationSample(data); err != nil {
			return Summary{}, fmt.Errorf("std dev for %s: %w", subject, err)
		}
	}
	return summary, nil
}

// Render writes summaries as a markdown table.
func Render(w io.Writer, summaries []Summary) error {
	var b strings.Builder
	b.WriteString("| Subject | Samples | Mean Power (mW) | Min Power (mW) | Max Power (mW) | Std Dev (mW) |\n")
	b.WriteString("|---|---:|---:|---:|---:|---:|\n")
	for _, s := range summaries {
		fmt.Fprintf(&b, "| %s | %d | %.1f | %.0f | %.0f | %.1f |\n",
			s.Subject, s.Samples, s.Mean, s.Min, s.Max, s.StdDev)
	}
	_, err := io.WriteString(w, b.String())
	return err
}
