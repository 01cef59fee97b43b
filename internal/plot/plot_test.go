package plot

import (
	"strings"
	"testing"
	"time"

	"power-bench/internal/results"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeseriesOneSeriesPerSubject(t *testing.T) {
	samples := []results.Sample{
		{Subject: "Safari", Timestamp: 100, Value: 1000},
		{Subject: "Safari", Timestamp: 101, Value: 2000},
		{Subject: "Brave", Timestamp: 200, Value: 4000},
		{Subject: "Brave", Timestamp: 202, Value: 3000},
	}

	out, err := Timeseries(samples, Options{Name: "browsers", Source: "results.csv"})
	require.NoError(t, err)

	assert.Equal(t, 2, strings.Count(out, `\addplot+`))
	assert.Less(t, strings.Index(out, "% Subject: Safari"), strings.Index(out, "% Subject: Brave"))
	assert.Contains(t, out, "(0, 1000.00)")
	assert.Contains(t, out, "(1, 2000.00)")
	assert.Contains(t, out, "(2, 3000.00)")
	assert.Contains(t, out, "xmin=0, xmax=2")
	assert.Contains(t, out, "ymin=950.00, ymax=4200.00")
	assert.Contains(t, out, `\addlegendentry{ Brave }`)
}

func TestTimeseriesAggregatesIntoBuckets(t *testing.T) {
	samples := []results.Sample{
		{Subject: "Safari", Timestamp: 10, Value: 1000},
		{Subject: "Safari", Timestamp: 11, Value: 3000},
		{Subject: "Safari", Timestamp: 12, Value: 5000},
	}
	lower, upper := 0.0, 6000.0

	out, err := Timeseries(samples, Options{Interval: 2 * time.Second, MinOverride: &lower, MaxOverride: &upper})
	require.NoError(t, err)

	assert.Contains(t, out, "(0, 2000.00)")
	assert.Contains(t, out, "(2, 5000.00)")
	assert.NotContains(t, out, "(1, ")
	assert.Contains(t, out, "ymin=0.00, ymax=6000.00")
	assert.Contains(t, out, "Aggregation Interval: 2s")
}

func TestTimeseriesRejectsEmptyLog(t *testing.T) {
	_, err := Timeseries(nil, Options{})
	require.Error(t, err)
}

func TestWrapperReferencesPlotFile(t *testing.T) {
	out, err := Wrapper("browsers-power.tikz", "browsers")
	require.NoError(t, err)
	assert.Contains(t, out, `\input{./browsers-power.tikz }`)
	assert.Contains(t, out, `\label{fig:browsers-power}`)
}

func TestStyleForWraps(t *testing.T) {
	assert.Equal(t, styleFor(0), styleFor(len(subjectStyles)))
	assert.Contains(t, styleFor(1), "blue")
}
