package catalogue

import (
	"math/rand"
	"testing"
	"time"

	"power-bench/internal/action"
	"power-bench/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetFallsBackToDefault(t *testing.T) {
	c := Default("news")

	first := c.Get("moonwalk")
	assert.Equal(t, DefaultPattern, first.Name)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, c.Get("moonwalk"))
	}
}

func TestDefaultCatalogueContents(t *testing.T) {
	c := Default("weather")

	for _, name := range []string{QuickScan, DetailedRead, Search, LinkNavigation, Reload, ZoomAdjust} {
		p, ok := c.Lookup(name)
		require.True(t, ok, name)
		assert.NotEmpty(t, p.Steps, name)
		assert.LessOrEqual(t, p.Wait.Min, p.Wait.Max, name)
	}

	search := c.Get(Search)
	assert.Equal(t, action.Find, search.Steps[0].Action.Name)
	assert.Equal(t, "weather", search.Steps[1].Action.Text)

	reload := c.Get(Reload)
	assert.Equal(t, action.Reload, reload.Steps[0].Action.Name)
	assert.Equal(t, 3*time.Second, reload.Steps[0].Delay)
	assert.Equal(t, WaitRange{Min: 4 * time.Second, Max: 6 * time.Second}, reload.Wait)
}

func TestWaitRangeDrawStaysInBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	w := WaitRange{Min: 2 * time.Second, Max: 4 * time.Second}
	for i := 0; i < 1000; i++ {
		d := w.Draw(rng)
		require.GreaterOrEqual(t, d, w.Min)
		require.LessOrEqual(t, d, w.Max)
	}
	assert.Equal(t, time.Second, WaitRange{Min: time.Second, Max: time.Second}.Draw(rng))
}

func TestFromConfigAppendsAndOverrides(t *testing.T) {
	cfg := &config.RunConfig{
		Driver: config.DriverConfig{SearchTerm: "news"},
		Patterns: []config.PatternConfig{
			{
				Name:  "skim",
				Steps: []config.StepConfig{{Action: "page_down", Delay: 0.2}},
				Wait:  config.Range{Min: 1, Max: 2},
			},
			{
				Name:  Reload,
				Steps: []config.StepConfig{{Action: "reload", Delay: 5}},
				Wait:  config.Range{Min: 1, Max: 1},
			},
		},
	}

	c, err := FromConfig(cfg)
	require.NoError(t, err)

	names := c.Names()
	assert.Equal(t, "skim", names[len(names)-1])
	assert.Equal(t, 5*time.Second, c.Get(Reload).Steps[0].Delay)
	assert.Len(t, c.Get(Reload).Steps, 1)
	assert.Equal(t, 200*time.Millisecond, c.Get("skim").Steps[0].Delay)
}

func TestFromConfigRejectsBadSteps(t *testing.T) {
	cases := []config.PatternConfig{
		{Name: "bad", Steps: []config.StepConfig{{Action: "teleport"}}},
		{Name: "reserved", Steps: []config.StepConfig{{Action: "close_all"}}},
		{Name: "empty"},
	}
	for _, pc := range cases {
		_, err := FromConfig(&config.RunConfig{Patterns: []config.PatternConfig{pc}})
		assert.Error(t, err, pc.Name)
	}
}
