package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"power-bench/internal/logging"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

const (
	DefaultMarker     = "Combined Power (CPU + GPU + ANE):"
	DefaultUnitSuffix = "mW"
	DefaultOutputCSV  = "browser_power_results.csv"
)

// DefaultSamplerArgs samples CPU and GPU power once per second.
var DefaultSamplerArgs = []string{
	"powermetrics", "-i", "1000",
	"--samplers", "cpu_power,gpu_power",
	"-a", "--hide-cpu-duty-cycle", "--show-usage-summary", "--show-extra-power-info",
}

func LoadConfig(path string) (*RunConfig, error) {
	config, _, err := LoadConfigWithContent(path)
	return config, err
}

func LoadConfigWithContent(path string) (*RunConfig, string, error) {
	logger := logging.GetLogger()

	data, err := os.ReadFile(path)
	if err != nil {
		logger.WithField("filepath", path).WithError(err).Error("Failed to read config file")
		return nil, "", err
	}

	originalContent := string(data)

	config, err := Parse([]byte(expandEnvVars(originalContent)))
	if err != nil {
		logger.WithField("filepath", path).WithError(err).Error("Failed to parse config file")
		return nil, "", err
	}

	sites := append([]string(nil), config.Benchmark.Sites...)
	if config.Benchmark.SitesFile != "" {
		sitesPath := config.Benchmark.SitesFile
		if !filepath.IsAbs(sitesPath) {
			sitesPath = filepath.Join(filepath.Dir(path), sitesPath)
		}
		fromFile, err := LoadSites(sitesPath)
		if err != nil {
			logger.WithField("sites_file", sitesPath).WithError(err).Error("Failed to read sites file")
			return nil, "", fmt.Errorf("sites file: %w", err)
		}
		sites = append(sites, fromFile...)
	}
	config.Sites = sites

	if err := validateConfig(config); err != nil {
		return nil, "", err
	}

	return config, originalContent, nil
}

// Parse decodes YAML and applies defaults. It does not resolve the sites file
// or validate.
func Parse(data []byte) (*RunConfig, error) {
	var config RunConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, err
	}
	applyDefaults(&config)
	config.Sites = append([]string(nil), config.Benchmark.Sites...)
	return &config, nil
}

func expandEnvVars(content string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(content, func(match string) string {
		envVar := strings.Trim(match, "${}")
		if value := os.Getenv(envVar); value != "" {
			return value
		}
		return match
	})
}

// LoadSites reads one URL per line. Blank lines and lines starting with '#'
// are ignored.
func LoadSites(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var sites []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		sites = append(sites, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return sites, nil
}

// defaultSeconds fills v only when the key was absent, so an explicit 0 is kept.
func defaultSeconds(v **float64, def float64) {
	if *v == nil {
		*v = &def
	}
}

func applyDefaults(c *RunConfig) {
	b := &c.Benchmark
	if b.Name == "" {
		b.Name = "browser-power"
	}
	if b.LogLevel == "" {
		b.LogLevel = "info"
	}
	if b.CollectionWindow == 0 {
		b.CollectionWindow = 120
	}
	if b.SimulationWindow == 0 {
		b.SimulationWindow = 90
	}
	defaultSeconds(&b.SettleDelay, 2)
	defaultSeconds(&b.LoadDelay, 12)
	defaultSeconds(&b.Cooldown, 15)
	defaultSeconds(&b.JoinTimeout, 5)

	s := &c.Sampler
	if s.Command == "" {
		s.Command = "sudo"
		if len(s.Args) == 0 {
			s.Args = append([]string(nil), DefaultSamplerArgs...)
		}
	}
	if s.Marker == "" {
		s.Marker = DefaultMarker
	}
	if s.UnitSuffix == "" {
		s.UnitSuffix = DefaultUnitSuffix
	}
	if s.StopTimeout == 0 {
		s.StopTimeout = 10
	}
	if s.ProgressEvery == 0 {
		s.ProgressEvery = 15
	}

	d := &c.Driver
	if d.FocusPause == (Range{}) {
		d.FocusPause = Range{Min: 0.5, Max: 1.2}
	}
	if d.FailurePause == 0 {
		d.FailurePause = 1
	}
	if d.BackForwardProbability == nil {
		p := 0.1
		d.BackForwardProbability = &p
	}
	if d.BackForwardDelay == 0 {
		d.BackForwardDelay = 1.5
	}
	if d.SearchTerm == "" {
		d.SearchTerm = "news"
	}

	for i := range c.Subjects {
		subject := &c.Subjects[i]
		if subject.Automation == "" {
			subject.Automation = AutomationAppleScript
		}
		if subject.Application == "" {
			subject.Application = subject.Name
		}
		if subject.Process == "" {
			subject.Process = subject.Application
		}
		if subject.Flavor == "" {
			subject.Flavor = FlavorChromium
			if strings.EqualFold(subject.Application, "Safari") {
				subject.Flavor = FlavorSafari
			}
		}
	}

	if c.Output.CSV == "" {
		c.Output.CSV = DefaultOutputCSV
	}
}

func validateConfig(config *RunConfig) error {
	if config.Benchmark.CollectionWindow <= 0 {
		return fmt.Errorf("%w: collection_window must be greater than 0", ErrInvalid)
	}

	if config.Benchmark.SimulationWindow <= 0 {
		return fmt.Errorf("%w: simulation_window must be greater than 0", ErrInvalid)
	}

	for name, v := range map[string]*float64{
		"settle_delay": config.Benchmark.SettleDelay,
		"load_delay":   config.Benchmark.LoadDelay,
		"cooldown":     config.Benchmark.Cooldown,
		"join_timeout": config.Benchmark.JoinTimeout,
	} {
		if v != nil && *v < 0 {
			return fmt.Errorf("%w: %s must not be negative", ErrInvalid, name)
		}
	}

	if len(config.Subjects) == 0 {
		return fmt.Errorf("%w: at least one subject must be defined", ErrInvalid)
	}

	if len(config.Sites) == 0 {
		return fmt.Errorf("%w: at least one site is required to prime subjects", ErrInvalid)
	}

	focus := config.Driver.FocusPause
	if focus.Min < 0 || focus.Max < focus.Min {
		return fmt.Errorf("%w: focus_pause range [%v, %v] is invalid", ErrInvalid, focus.Min, focus.Max)
	}

	if p := *config.Driver.BackForwardProbability; p < 0 || p > 1 {
		return fmt.Errorf("%w: back_forward_probability must be within [0, 1]", ErrInvalid)
	}

	names := make(map[string]bool)
	for _, subject := range config.Subjects {
		if subject.Name == "" {
			return fmt.Errorf("%w: subject name is required", ErrInvalid)
		}
		if names[subject.Name] {
			return fmt.Errorf("%w: subject %s is defined twice", ErrInvalid, subject.Name)
		}
		names[subject.Name] = true

		switch subject.Automation {
		case AutomationAppleScript:
			if subject.Flavor != FlavorSafari && subject.Flavor != FlavorChromium {
				return fmt.Errorf("%w: subject %s: unknown flavor %q", ErrInvalid, subject.Name, subject.Flavor)
			}
		case AutomationChromeDP:
		default:
			return fmt.Errorf("%w: subject %s: unknown automation %q", ErrInvalid, subject.Name, subject.Automation)
		}

		if subject.Units < 0 {
			return fmt.Errorf("%w: subject %s: units must not be negative", ErrInvalid, subject.Name)
		}
	}

	for _, pattern := range config.Patterns {
		if pattern.Name == "" {
			return fmt.Errorf("%w: pattern name is required", ErrInvalid)
		}
		if pattern.Wait.Min < 0 || pattern.Wait.Max < pattern.Wait.Min {
			return fmt.Errorf("%w: pattern %s: wait range is invalid", ErrInvalid, pattern.Name)
		}
	}

	for _, rule := range config.Driver.Schedule.Rules {
		if rule.Every <= 0 {
			return fmt.Errorf("%w: schedule rule for %s: every must be greater than 0", ErrInvalid, rule.Pattern)
		}
	}

	influx := config.Output.InfluxDB
	if influx.Enabled && (influx.Host == "" || influx.Token == "" || influx.Org == "" || influx.Bucket == "") {
		return fmt.Errorf("%w: incomplete influxdb configuration", ErrInvalid)
	}

	return nil
}
