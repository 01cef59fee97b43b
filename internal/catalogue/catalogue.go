// Package catalogue holds the named behavior patterns the usage-simulation
// driver replays against a subject.
package catalogue

import (
	"fmt"
	"math/rand"
	"time"

	"power-bench/internal/action"
	"power-bench/internal/config"
)

const (
	QuickScan      = "quick_scan"
	DetailedRead   = "detailed_read"
	Search         = "search"
	LinkNavigation = "link_navigation"
	Reload         = "reload"
	ZoomAdjust     = "zoom_adjust"
	MediaPlayback  = "media_playback"
	FormFill       = "form_fill"
	SocialScroll   = "social_scroll"

	// DefaultPattern is returned for unknown names.
	DefaultPattern = QuickScan
)

// Step issues one action and then pauses for Delay.
type Step struct {
	Action action.Request
	Delay  time.Duration
}

// WaitRange bounds the pause after a pattern has run.
type WaitRange struct {
	Min time.Duration
	Max time.Duration
}

// Draw returns a duration uniformly distributed in [Min, Max].
func (w WaitRange) Draw(rng *rand.Rand) time.Duration {
	if w.Max <= w.Min {
		return w.Min
	}
	return w.Min + time.Duration(rng.Int63n(int64(w.Max-w.Min)+1))
}

type Pattern struct {
	Name  string
	Steps []Step
	Wait  WaitRange
}

// Catalogue is immutable once built.
type Catalogue struct {
	patterns map[string]Pattern
	order    []string
}

// New builds a catalogue. A later pattern replaces an earlier one of the same
// name but keeps its position.
func New(patterns ...Pattern) *Catalogue {
	c := &Catalogue{patterns: make(map[string]Pattern, len(patterns))}
	for _, p := range patterns {
		if _, exists := c.patterns[p.Name]; !exists {
			c.order = append(c.order, p.Name)
		}
		c.patterns[p.Name] = p
	}
	return c
}

// Get returns the named pattern, or the default pattern when name is unknown.
func (c *Catalogue) Get(name string) Pattern {
	if p, ok := c.patterns[name]; ok {
		return p
	}
	return c.patterns[DefaultPattern]
}

func (c *Catalogue) Lookup(name string) (Pattern, bool) {
	p, ok := c.patterns[name]
	return p, ok
}

// Names lists patterns in definition order.
func (c *Catalogue) Names() []string {
	return append([]string(nil), c.order...)
}

type stepDef struct {
	action action.Name
	delay  float64
	text   string
}

type patternDef struct {
	name     string
	min, max float64
	steps    []stepDef
}

func builtins(searchTerm string) []patternDef {
	return []patternDef{
		{QuickScan, 2, 4, []stepDef{
			{action.PageDown, 0.8, ""},
			{action.PageDown, 0.8, ""},
			{action.PageDown, 0.5, ""},
			{action.PageUp, 0.5, ""},
		}},
		{DetailedRead, 4, 7, []stepDef{
			{action.ScrollDown, 2.5, ""},
			{action.ScrollDown, 2.5, ""},
			{action.ScrollDown, 2.0, ""},
			{action.ScrollUp, 1.5, ""},
			{action.ScrollUp, 1.5, ""},
		}},
		{Search, 3, 5, []stepDef{
			{action.Find, 1.0, ""},
			{action.TypeText, 1.0, searchTerm},
			{action.Confirm, 1.0, ""},
			{action.Dismiss, 0.5, ""},
			{action.PageDown, 1.5, ""},
		}},
		{LinkNavigation, 3, 5, []stepDef{
			{action.NextLink, 0.8, ""},
			{action.NextLink, 0.8, ""},
			{action.NextLink, 0.8, ""},
			{action.ScrollDown, 1.0, ""},
			{action.NextLink, 0.8, ""},
		}},
		{Reload, 4, 6, []stepDef{
			{action.Reload, 3.0, ""},
			{action.PageDown, 1.5, ""},
		}},
		{ZoomAdjust, 2, 4, []stepDef{
			{action.ZoomIn, 1.0, ""},
			{action.ScrollDown, 1.5, ""},
			{action.ZoomOut, 1.0, ""},
			{action.ScrollDown, 1.5, ""},
		}},
		{MediaPlayback, 3, 5, []stepDef{
			{action.PlayPause, 2.0, ""},
			{action.ToggleFullscreen, 1.0, ""},
			{action.Dismiss, 1.0, ""},
		}},
		{FormFill, 3, 5, []stepDef{
			{action.NextLink, 0.5, ""},
			{action.TypeText, 1.0, "test search query"},
			{action.Confirm, 2.0, ""},
		}},
		{SocialScroll, 2, 4, []stepDef{
			{action.ScrollDown, 0.3, ""},
			{action.ScrollDown, 0.3, ""},
			{action.ScrollDown, 0.3, ""},
			{action.ScrollDown, 1.0, ""},
			{action.ScrollUp, 0.5, ""},
		}},
	}
}

func (d patternDef) pattern() Pattern {
	p := Pattern{
		Name: d.name,
		Wait: WaitRange{Min: config.Seconds(d.min), Max: config.Seconds(d.max)},
	}
	for _, s := range d.steps {
		p.Steps = append(p.Steps, Step{
			Action: action.Request{Name: s.action, Text: s.text},
			Delay:  config.Seconds(s.delay),
		})
	}
	return p
}

// Default returns the built-in catalogue. searchTerm is typed by the search
// pattern.
func Default(searchTerm string) *Catalogue {
	defs := builtins(searchTerm)
	patterns := make([]Pattern, 0, len(defs))
	for _, d := range defs {
		patterns = append(patterns, d.pattern())
	}
	return New(patterns...)
}

// FromConfig returns the built-in catalogue extended with the patterns
// declared in cfg. Declared patterns override built-ins of the same name.
func FromConfig(cfg *config.RunConfig) (*Catalogue, error) {
	patterns := make([]Pattern, 0)
	for _, d := range builtins(cfg.Driver.SearchTerm) {
		patterns = append(patterns, d.pattern())
	}

	for _, pc := range cfg.Patterns {
		p := Pattern{
			Name: pc.Name,
			Wait: WaitRange{Min: config.Seconds(pc.Wait.Min), Max: config.Seconds(pc.Wait.Max)},
		}
		for i, sc := range pc.Steps {
			name, err := action.ParseName(sc.Action)
			if err != nil {
				return nil, fmt.Errorf("pattern %s step %d: %w", pc.Name, i+1, err)
			}
			if name == action.OpenURLs || name == action.FocusUnit || name == action.CloseAll {
				return nil, fmt.Errorf("pattern %s step %d: %s is reserved for the sequencer", pc.Name, i+1, name)
			}
			p.Steps = append(p.Steps, Step{
				Action: action.Request{Name: name, Text: sc.Text},
				Delay:  config.Seconds(sc.Delay),
			})
		}
		if len(p.Steps) == 0 {
			return nil, fmt.Errorf("pattern %s has no steps", pc.Name)
		}
		patterns = append(patterns, p)
	}
	return New(patterns...), nil
}
