package report

import (
	"bytes"
	"testing"

	"power-bench/internal/results"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarizeGroupsInFirstSeenOrder(t *testing.T) {
	samples := []results.Sample{
		{Subject: "Safari", Timestamp: 1, Value: 1000},
		{Subject: "Brave", Timestamp: 2, Value: 4000},
		{Subject: "Safari", Timestamp: 3, Value: 3000},
		{Subject: "Brave", Timestamp: 4, Value: 4000},
		{Subject: "Chrome", Timestamp: 5, Value: 2500},
	}

	summaries, err := Summarize(samples)
	require.NoError(t, err)
	require.Len(t, summaries, 3)

	assert.Equal(t, "Safari", summaries[0].Subject)
	assert.Equal(t, 2, summaries[0].Samples)
	assert.InDelta(t, 2000, summaries[0].Mean, 1e-9)
	assert.InDelta(t, 1000, summaries[0].Min, 1e-9)
	assert.InDelta(t, 3000, summaries[0].Max, 1e-9)
	assert.InDelta(t, 1414.2135, summaries[0].StdDev, 1e-3)

	assert.Equal(t, "Brave", summaries[1].Subject)
	assert.InDelta(t, 0, summaries[1].StdDev, 1e-9)

	assert.Equal(t, "Chrome", summaries[2].Subject)
	assert.Equal(t, 1, summaries[2].Samples)
	assert.Zero(t, summaries[2].StdDev)
}

func TestSummarizeEmpty(t *testing.T) {
	summaries, err := Summarize(nil)
	require.NoError(t, err)
	assert.Empty(t, summaries)
}

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	err := Render(&buf, []Summary{{Subject: "Safari", Samples: 2, Mean: 2000, Min: 1000, Max: 3000, StdDev: 1414.21}})
	require.NoError(t, err)

	assert.Equal(t,
		"| Subject | Samples | Mean Power (mW) | Min Power (mW) | Max Power (mW) | Std Dev (mW) |\n"+
			"|---|---:|---:|---:|---:|---:|\n"+
			"| Safari | 2 | 2000.0 | 1000 | 3000 | 1414.2 |\n",
		buf.String())
}
