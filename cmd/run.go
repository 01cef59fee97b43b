package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"power-bench/internal/action"
	"power-bench/internal/catalogue"
	"power-bench/internal/config"
	"power-bench/internal/database"
	"power-bench/internal/driver"
	"power-bench/internal/host"
	"power-bench/internal/logging"
	"power-bench/internal/metrics"
	"power-bench/internal/results"
	"power-bench/internal/sampler"
	"power-bench/internal/sequencer"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type runOptions struct {
	configFile string
	subjects   []string
	appendLog  bool
	seed       int64
	seedSet    bool
	logLevel   bool
}

func newRunCmd() *cobra.Command {
	var opts runOptions

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run a benchmark",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.seedSet = cmd.Flags().Changed("seed")
			opts.logLevel = cmd.Flags().Changed("log-level")
			return runBenchmark(opts)
		},
	}

	runCmd.Flags().StringVarP(&opts.configFile, "config", "c", "", "Path to benchmark configuration file")
	runCmd.Flags().StringSliceVar(&opts.subjects, "subjects", nil, "Comma-separated subjects to benchmark, in order (default: all)")
	runCmd.Flags().BoolVar(&opts.appendLog, "append", false, "Append to an existing result log instead of recreating it")
	runCmd.Flags().Int64Var(&opts.seed, "seed", 0, "Seed for the usage simulation (0 = random)")
	runCmd.MarkFlagRequired("config")
	return runCmd
}

// newCapability picks the automation backend configured for subject.
func newCapability(subject config.SubjectConfig) (action.Capability, error) {
	switch subject.Automation {
	case config.AutomationAppleScript:
		return action.NewAppleScriptCapability(subject), nil
	case config.AutomationChromeDP:
		return action.NewChromeCapability(subject), nil
	default:
		return nil, fmt.Errorf("%w: unknown automation %q for subject %s", config.ErrInvalid, subject.Automation, subject.Name)
	}
}

// applyLogLevels sets the main level from the config unless --log-level was
// given. The driver logger follows the main level unless driver_log_level is set.
func applyLogLevels(cfg *config.RunConfig, cliLevelSet bool) error {
	if !cliLevelSet && cfg.Benchmark.LogLevel != "" {
		if err := logging.SetLogLevel(cfg.Benchmark.LogLevel); err != nil {
			return fmt.Errorf("invalid log level: %w", err)
		}
	}
	driverLevel := cfg.Benchmark.DriverLogLevel
	if driverLevel == "" {
		driverLevel = logging.GetLogger().GetLevel().String()
	}
	if err := logging.SetDriverLogLevel(driverLevel); err != nil {
		return fmt.Errorf("invalid driver log level: %w", err)
	}
	return nil
}

func openSinks(cfg *config.RunConfig, opts runOptions, runID string) (results.MultiSink, *database.InfluxSink, error) {
	var csvLog *results.CSVLog
	var err error
	if opts.appendLog {
		csvLog, err = results.OpenCSV(cfg.Output.CSV)
	} else {
		csvLog, err = results.CreateCSV(cfg.Output.CSV)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open result log: %w", err)
	}
	sinks := results.MultiSink{csvLog}

	if !cfg.Output.InfluxDB.Enabled {
		return sinks, nil, nil
	}
	influx, err := database.NewInfluxSink(cfg.Output.InfluxDB, cfg.Benchmark.Name, runID)
	if err != nil {
		csvLog.Close()
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return append(sinks, influx), influx, nil
}

func runBenchmark(opts runOptions) error {
	logger := logging.GetLogger()

	cfg, _, err := config.LoadConfigWithContent(opts.configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := applyLogLevels(cfg, opts.logLevel); err != nil {
		return err
	}
	if opts.seedSet {
		cfg.Driver.Seed = opts.seed
	}

	subjects, err := cfg.SelectSubjects(opts.subjects)
	if err != nil {
		return err
	}
	cat, err := catalogue.FromConfig(cfg)
	if err != nil {
		return fmt.Errorf("failed to build pattern catalogue: %w", err)
	}
	driverOpts, err := driver.OptionsFromConfig(cfg, cat)
	if err != nil {
		return fmt.Errorf("failed to build driver schedule: %w", err)
	}

	runID := uuid.NewString()
	hostInfo := host.GetHostInfo()
	logger.WithFields(logrus.Fields{
		"benchmark": cfg.Benchmark.Name,
		"run_id":    runID,
		"subjects":  len(subjects),
		"sites":     len(cfg.Sites),
		"host":      hostInfo.Hostname,
		"cpu_model": hostInfo.CPUModel,
	}).Info("Starting benchmark")

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
			logger.Info("Received interrupt signal, shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()

	m := metrics.New()
	if cfg.Metrics.Listen != "" {
		go func() {
			if err := m.Serve(ctx, cfg.Metrics.Listen); err != nil {
				logger.WithError(err).Error("Metrics server failed")
			}
		}()
	}

	sinks, influx, err := openSinks(cfg, opts, runID)
	if err != nil {
		return err
	}
	defer func() {
		if err := sinks.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close result sinks")
		}
	}()

	launcher := sampler.ExecLauncher{
		Command:     cfg.Sampler.Command,
		Args:        cfg.Sampler.Args,
		StopTimeout: cfg.StopTimeout(),
	}
	parser := sampler.Parser{Marker: cfg.Sampler.Marker, UnitSuffix: cfg.Sampler.UnitSuffix}
	smp := sampler.New(launcher, parser, sinks, m, cfg.Sampler.ProgressEvery)
	drv := driver.New(cat, driverOpts, m)
	seq := sequencer.New(cfg, newCapability, drv, smp)

	started := time.Now()
	outcomes, runErr := seq.Run(ctx, subjects)
	finished := time.Now()

	total := 0
	names := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		total += o.Samples
		names = append(names, o.Subject)
		logger.WithFields(logrus.Fields{
			"subject":    o.Subject,
			"samples":    o.Samples,
			"iterations": o.Stats.Iterations,
			"failures":   o.Stats.Failures,
			"abandoned":  o.Abandoned,
		}).Info("Subject summary")
	}

	if influx != nil {
		metaCtx, metaCancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := influx.WriteRunMetadata(metaCtx, database.RunMetadata{
			BenchmarkName:     cfg.Benchmark.Name,
			Description:       cfg.Benchmark.Description,
			Subjects:          names,
			Started:           started,
			Finished:          finished,
			CollectionSeconds: cfg.Benchmark.CollectionWindow,
			SimulationSeconds: cfg.Benchmark.SimulationWindow,
			TotalSamples:      total,
			ConfigFile:        opts.configFile,
		})
		metaCancel()
		if err != nil {
			logger.WithError(err).Warn("Failed to write run metadata")
		}
	}

	logger.WithFields(logrus.Fields{
		"run_id":   runID,
		"samples":  total,
		"results":  cfg.Output.CSV,
		"duration": finished.Sub(started).Round(time.Second),
	}).Info("Benchmark finished")

	return runErr
}
