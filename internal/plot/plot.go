// Package plot renders a result log as a pgfplots timeseries of power per
// subject.
package plot

import (
	"bytes"
	"fmt"
	"sort"
	"text/template"
	"time"

	"power-bench/internal/logging"
	"power-bench/internal/results"

	"github.com/sirupsen/logrus"
)

const plotTemplate = `% Generated on {{.GeneratedDate}}
%
% Benchmark: {{.Name}}
% Source: {{.Source}}
% Subjects: {{len .Series}}
% Total Samples: {{.TotalSamples}}
% Aggregation Interval: {{.Interval}}
%
\begin{tikzpicture}
	\begin{axis}[
		xlabel={Time since collection start (s)},
		ylabel={Combined power (mW)},
		width=\textwidth,
		height=0.6\textwidth,
		xmin={{.XMin}}, xmax={{.XMax}},
		ymin={{.YMin}}, ymax={{.YMax}},
		ymajorgrids,
		grid style=dashed,
		legend columns=2,
		legend pos=north east,
	]

{{range .Series}}
% Subject: {{.Subject}} ({{.Samples}} samples)
\addplot+[{{.Style}}]
  coordinates {
{{range .Coordinates}}    {{.}}
{{end}}  };
\addlegendentry{ {{.Subject}} }

{{end}}
	\end{axis}
\end{tikzpicture}
`

const wrapperTemplate = `% Generated on {{.GeneratedDate}}
\begin{center}
    \begin{figure}[H]
    \centering
    \resizebox{1\linewidth}{!}{\input{./{{.PlotFileName}} }}
    \caption[Power per subject]{Combined CPU, GPU and ANE power per subject over the collection window}
    \label{fig:{{.Label}}-power}
    \end{figure}
\end{center}
`

type plotData struct {
	GeneratedDate string
	Name          string
	Source        string
	TotalSamples  int
	Interval      string
	XMin, XMax    string
	YMin, YMax    string
	Series        []series
}

type series struct {
	Subject     string
	Samples     int
	Style       string
	Coordinates []string
}

type wrapperData struct {
	GeneratedDate string
	PlotFileName  string
	Label         string
}

// Options controls a timeseries rendering.
type Options struct {
	Name   string
	Source string
	// Interval averages readings into buckets of this width. Zero keeps every
	// reading.
	Interval    time.Duration
	MinOverride *float64
	MaxOverride *float64
}

type point struct {
	offset int64
	value  float64
}

// Timeseries renders samples as a TikZ picture with one series per subject,
// in first-seen order. Time is relative to each subject's first reading.
func Timeseries(samples []results.Sample, opts Options) (string, error) {
	if len(samples) == 0 {
		return "", fmt.Errorf("no samples to plot")
	}

	order := make([]string, 0)
	points := make(map[string][]point)
	first := make(map[string]int64)
	for _, s := range samples {
		start, ok := first[s.Subject]
		if !ok {
			order = append(order, s.Subject)
			first[s.Subject] = s.Timestamp
			start = s.Timestamp
		}
		points[s.Subject] = append(points[s.Subject], point{offset: s.Timestamp - start, value: float64(s.Value)})
	}

	data := &plotData{
		GeneratedDate: time.Now().Format("2006-01-02 15:04:05"),
		Name:          opts.Name,
		Source:        opts.Source,
		TotalSamples:  len(samples),
		Interval:      "none",
	}
	if opts.Interval > 0 {
		data.Interval = opts.Interval.String()
	}

	var xMax int64
	yMin, yMax := points[order[0]][0].value, points[order[0]][0].value
	for i, subject := range order {
		pts := aggregate(points[subject], opts.Interval)
		sr := series{
			Subject: subject,
			Samples: len(points[subject]),
			Style:   styleFor(i),
		}
		for _, p := range pts {
			sr.Coordinates = append(sr.Coordinates, fmt.Sprintf("(%d, %.2f)", p.offset, p.value))
			if p.offset > xMax {
				xMax = p.offset
			}
			if p.value < yMin {
				yMin = p.value
			}
			if p.value > yMax {
				yMax = p.value
			}
		}
		data.Series = append(data.Series, sr)
	}

	data.XMin = "0"
	data.XMax = fmt.Sprintf("%d", xMax)
	data.YMin, data.YMax = axisLimits(opts.MinOverride, opts.MaxOverride, yMin, yMax)

	logging.GetLogger().WithFields(logrus.Fields{
		"subjects": len(order),
		"samples":  len(samples),
		"interval": data.Interval,
	}).Debug("Rendering power timeseries")

	return render("plot", plotTemplate, data)
}

// Wrapper renders the LaTeX figure that includes the plot file.
func Wrapper(plotFileName, label string) (string, error) {
	return render("wrapper", wrapperTemplate, &wrapperData{
		GeneratedDate: time.Now().Format("2006-01-02 15:04:05"),
		PlotFileName:  plotFileName,
		Label:         label,
	})
}

// aggregate averages points into interval buckets keyed by offset.
func aggregate(pts []point, interval time.Duration) []point {
	step := int64(interval / time.Second)
	if step <= 0 {
		return pts
	}

	sums := make(map[int64]float64)
	counts := make(map[int64]int)
	for _, p := range pts {
		bucket := p.offset / step * step
		sums[bucket] += p.value
		counts[bucket]++
	}

	out := make([]point, 0, len(sums))
	for bucket, sum := range sums {
		out = append(out, point{offset: bucket, value: sum / float64(counts[bucket])})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].offset < out[j].offset })
	return out
}

func axisLimits(minOverride, maxOverride *float64, dataMin, dataMax float64) (string, string) {
	minStr := fmt.Sprintf("%.2f", dataMin*0.95)
	if minOverride != nil {
		minStr = fmt.Sprintf("%.2f", *minOverride)
	}
	maxStr := fmt.Sprintf("%.2f", dataMax*1.05)
	if maxOverride != nil {
		maxStr = fmt.Sprintf("%.2f", *maxOverride)
	}
	return minStr, maxStr
}

func render(name, text string, data interface{}) (string, error) {
	tmpl, err := template.New(name).Parse(text)
	if err != nil {
		return "", fmt.Errorf("failed to parse %s template: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute %s template: %w", name, err)
	}
	return buf.String(), nil
}
