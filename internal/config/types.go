package config

import (
	"fmt"
	"time"
)

// RunConfig is loaded once per process and treated as read-only afterwards.
type RunConfig struct {
	Benchmark BenchmarkInfo   `yaml:"benchmark"`
	Sampler   SamplerConfig   `yaml:"sampler"`
	Driver    DriverConfig    `yaml:"driver"`
	Patterns  []PatternConfig `yaml:"patterns,omitempty"`
	Subjects  []SubjectConfig `yaml:"subjects"`
	Output    OutputConfig    `yaml:"output"`
	Metrics   MetricsConfig   `yaml:"metrics"`

	// Sites is the merged list of inline sites and the sites file.
	Sites []string `yaml:"-"`
}

type BenchmarkInfo struct {
	Name             string   `yaml:"name"`
	Description      string   `yaml:"description"`
	LogLevel         string   `yaml:"log_level"`
	DriverLogLevel   string   `yaml:"driver_log_level"`
	CollectionWindow float64  `yaml:"collection_window"`
	SimulationWindow float64  `yaml:"simulation_window"`
	SettleDelay      *float64 `yaml:"settle_delay"`
	LoadDelay        *float64 `yaml:"load_delay"`
	Cooldown         *float64 `yaml:"cooldown"`
	JoinTimeout      *float64 `yaml:"join_timeout"`
	SitesFile        string   `yaml:"sites_file"`
	Sites            []string `yaml:"sites"`
}

type SamplerConfig struct {
	Command       string   `yaml:"command"`
	Args          []string `yaml:"args"`
	Marker        string   `yaml:"marker"`
	UnitSuffix    string   `yaml:"unit_suffix"`
	StopTimeout   float64  `yaml:"stop_timeout"`
	ProgressEvery int      `yaml:"progress_every"`
}

type DriverConfig struct {
	FocusPause             Range          `yaml:"focus_pause"`
	FailurePause           float64        `yaml:"failure_pause"`
	BackForwardProbability *float64       `yaml:"back_forward_probability"`
	BackForwardDelay       float64        `yaml:"back_forward_delay"`
	SearchTerm             string         `yaml:"search_term"`
	Seed                   int64          `yaml:"seed"`
	Schedule               ScheduleConfig `yaml:"schedule"`
}

// Range is an inclusive [Min, Max] interval in seconds.
type Range struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

type ScheduleConfig struct {
	Rules  []RuleConfig `yaml:"rules"`
	Random []string     `yaml:"random"`
}

type RuleConfig struct {
	Every   int    `yaml:"every"`
	Pattern string `yaml:"pattern"`
}

type PatternConfig struct {
	Name  string       `yaml:"name"`
	Steps []StepConfig `yaml:"steps"`
	Wait  Range        `yaml:"wait"`
}

type StepConfig struct {
	Action string  `yaml:"action"`
	Text   string  `yaml:"text,omitempty"`
	Delay  float64 `yaml:"delay"`
}

const (
	AutomationAppleScript = "applescript"
	AutomationChromeDP    = "chromedp"

	FlavorSafari   = "safari"
	FlavorChromium = "chromium"
)

type SubjectConfig struct {
	Name        string `yaml:"name"`
	Automation  string `yaml:"automation"`
	Application string `yaml:"application"`
	Process     string `yaml:"process"`
	Flavor      string `yaml:"flavor"`
	Units       int    `yaml:"units"`

	// chromedp only
	DebugURL string `yaml:"debug_url,omitempty"`
	ExecPath string `yaml:"exec_path,omitempty"`
	Headless bool   `yaml:"headless,omitempty"`
}

type OutputConfig struct {
	CSV      string       `yaml:"csv"`
	InfluxDB InfluxConfig `yaml:"influxdb"`
}

type InfluxConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Token   string `yaml:"token"`
	Org     string `yaml:"org"`
	Bucket  string `yaml:"bucket"`
}

type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

// optionalSeconds treats an unset value as zero.
func optionalSeconds(v *float64) time.Duration {
	if v == nil {
		return 0
	}
	return seconds(*v)
}

// Seconds converts a YAML seconds value to a duration.
func Seconds(v float64) time.Duration {
	return seconds(v)
}

func (c *RunConfig) CollectionWindow() time.Duration {
	return seconds(c.Benchmark.CollectionWindow)
}

func (c *RunConfig) SimulationWindow() time.Duration {
	return seconds(c.Benchmark.SimulationWindow)
}

func (c *RunConfig) SettleDelay() time.Duration {
	return optionalSeconds(c.Benchmark.SettleDelay)
}

func (c *RunConfig) LoadDelay() time.Duration {
	return optionalSeconds(c.Benchmark.LoadDelay)
}

func (c *RunConfig) Cooldown() time.Duration {
	return optionalSeconds(c.Benchmark.Cooldown)
}

func (c *RunConfig) JoinTimeout() time.Duration {
	return optionalSeconds(c.Benchmark.JoinTimeout)
}

func (c *RunConfig) StopTimeout() time.Duration {
	return seconds(c.Sampler.StopTimeout)
}

// UnitCount returns the configured number of units for the subject, falling
// back to one unit per site.
func (c *RunConfig) UnitCount(subject SubjectConfig) int {
	if subject.Units > 0 {
		return subject.Units
	}
	return len(c.Sites)
}

// PrimeURLs returns n URLs taken from the site list, wrapping around when n
// exceeds the number of sites.
func (c *RunConfig) PrimeURLs(n int) []string {
	if len(c.Sites) == 0 || n <= 0 {
		return nil
	}
	urls := make([]string, n)
	for i := range urls {
		urls[i] = c.Sites[i%len(c.Sites)]
	}
	return urls
}

// Subject looks up a subject by name.
func (c *RunConfig) Subject(name string) (SubjectConfig, bool) {
	for _, s := range c.Subjects {
		if s.Name == name {
			return s, true
		}
	}
	return SubjectConfig{}, false
}

// SelectSubjects returns the subjects named in names, in that order. An empty
// names list returns all configured subjects in file order.
func (c *RunConfig) SelectSubjects(names []string) ([]SubjectConfig, error) {
	if len(names) == 0 {
		out := make([]SubjectConfig, len(c.Subjects))
		copy(out, c.Subjects)
		return out, nil
	}
	out := make([]SubjectConfig, 0, len(names))
	for _, name := range names {
		s, ok := c.Subject(name)
		if !ok {
			return nil, fmt.Errorf("%w: unknown subject %q", ErrInvalid, name)
		}
		out = append(out, s)
	}
	return out, nil
}
