package driver

import (
	"fmt"
	"math/rand"

	"power-bench/internal/catalogue"
	"power-bench/internal/config"
)

// Rule forces Pattern on every iteration divisible by Every.
type Rule struct {
	Every   int
	Pattern string
}

// Schedule picks a pattern per iteration. Rules are checked in order and the
// first match wins; otherwise a pattern is drawn uniformly from Random.
type Schedule struct {
	Rules  []Rule
	Random []string
}

// DefaultSchedule reloads every 8th iteration, searches every 6th, adjusts
// zoom every 4th and otherwise scans, reads or follows links at random.
func DefaultSchedule() Schedule {
	return Schedule{
		Rules: []Rule{
			{Every: 8, Pattern: catalogue.Reload},
			{Every: 6, Pattern: catalogue.Search},
			{Every: 4, Pattern: catalogue.ZoomAdjust},
		},
		Random: []string{catalogue.QuickScan, catalogue.DetailedRead, catalogue.LinkNavigation},
	}
}

// Select returns the pattern name for 1-based iteration i.
func (s Schedule) Select(i int, rng *rand.Rand) string {
	for _, r := range s.Rules {
		if i%r.Every == 0 {
			return r.Pattern
		}
	}
	if len(s.Random) == 0 {
		return catalogue.DefaultPattern
	}
	return s.Random[rng.Intn(len(s.Random))]
}

// ScheduleFromConfig builds a schedule from configuration, filling whatever
// is left empty from DefaultSchedule. Every referenced pattern must exist in cat.
func ScheduleFromConfig(sc config.ScheduleConfig, cat *catalogue.Catalogue) (Schedule, error) {
	s := DefaultSchedule()
	if len(sc.Rules) > 0 {
		s.Rules = make([]Rule, 0, len(sc.Rules))
		for _, r := range sc.Rules {
			if r.Every <= 0 {
				return Schedule{}, fmt.Errorf("schedule rule for %s: every must be greater than 0", r.Pattern)
			}
			s.Rules = append(s.Rules, Rule{Every: r.Every, Pattern: r.Pattern})
		}
	}
	if len(sc.Random) > 0 {
		s.Random = append([]string(nil), sc.Random...)
	}

	for _, r := range s.Rules {
		if _, ok := cat.Lookup(r.Pattern); !ok {
			return Schedule{}, fmt.Errorf("schedule references unknown pattern %q", r.Pattern)
		}
	}
	for _, name := range s.Random {
		if _, ok := cat.Lookup(name); !ok {
			return Schedule{}, fmt.Errorf("schedule references unknown pattern %q", name)
		}
	}
	return s, nil
}

// SelectUnit maps 1-based iteration i onto units 1..unitCount round-robin.
// It returns 0 when there are no units.
func SelectUnit(i, unitCount int) int {
	if unitCount < 1 {
		return 0
	}
	return ((i - 1) % unitCount) + 1
}
