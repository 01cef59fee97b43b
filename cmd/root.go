package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"power-bench/internal/catalogue"
	"power-bench/internal/config"
	"power-bench/internal/driver"
	"power-bench/internal/logging"
	"power-bench/internal/plot"
	"power-bench/internal/report"
	"power-bench/internal/results"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func loadEnvironment() {
	logger := logging.GetLogger()

	// Try to load .env file from current directory
	envFile := ".env"
	if _, err := os.Stat(envFile); err != nil {
		execPath, err := os.Executable()
		if err != nil {
			return
		}
		envFile = filepath.Join(filepath.Dir(execPath), ".env")
		if _, err := os.Stat(envFile); err != nil {
			return
		}
	}

	if err := godotenv.Load(envFile); err != nil {
		logger.WithField("file", envFile).WithError(err).Warn("Error loading .env file")
		return
	}
	logger.WithField("file", envFile).Debug("Loaded environment variables")
}

// Execute runs the power-bench command line.
func Execute() error {
	loadEnvironment()
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	var logLevel, logFormat string

	rootCmd := &cobra.Command{
		Use:           "power-bench",
		Short:         "Browser power consumption benchmark",
		Long:          "Drives simulated browsing in each subject while sampling system power, and records the readings for comparison",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if logLevel != "" {
				if err := logging.SetLogLevel(logLevel); err != nil {
					return fmt.Errorf("invalid log level: %w", err)
				}
			}
			if logFormat != "" {
				if err := logging.SetFormat(logFormat); err != nil {
					return err
				}
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Set log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Set log format (text, json)")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newReportCmd())
	rootCmd.AddCommand(newPatternsCmd())
	rootCmd.AddCommand(newPlotCmd())
	return rootCmd
}

func newValidateCmd() *cobra.Command {
	var configFile string

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a benchmark configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateConfig(configFile)
		},
	}
	validateCmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to benchmark configuration file")
	validateCmd.MarkFlagRequired("config")
	return validateCmd
}

func validateConfig(configFile string) error {
	logger := logging.GetLogger()

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		logger.WithField("config_file", configFile).WithError(err).Error("Configuration validation failed")
		return err
	}
	cat, err := catalogue.FromConfig(cfg)
	if err == nil {
		_, err = driver.OptionsFromConfig(cfg, cat)
	}
	if err != nil {
		logger.WithField("config_file", configFile).WithError(err).Error("Configuration validation failed")
		return fmt.Errorf("%w: %w", config.ErrInvalid, err)
	}
	logger.WithField("config_file", configFile).Info("Configuration is valid")
	return nil
}

func newReportCmd() *cobra.Command {
	var resultsFile string

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Summarise a result log per subject",
		RunE: func(cmd *cobra.Command, args []string) error {
			return renderReport(cmd.OutOrStdout(), resultsFile)
		},
	}
	reportCmd.Flags().StringVarP(&resultsFile, "file", "f", config.DefaultOutputCSV, "Path to the result log")
	return reportCmd
}

func renderReport(w io.Writer, resultsFile string) error {
	samples, err := results.ReadCSV(resultsFile)
	if err != nil {
		return fmt.Errorf("failed to read results: %w", err)
	}
	if len(samples) == 0 {
		return fmt.Errorf("no samples in %s", resultsFile)
	}
	summaries, err := report.Summarize(samples)
	if err != nil {
		return err
	}
	return report.Render(w, summaries)
}

func newPatternsCmd() *cobra.Command {
	var configFile string

	patternsCmd := &cobra.Command{
		Use:   "patterns",
		Short: "List the behavior pattern catalogue",
		RunE: func(cmd *cobra.Command, args []string) error {
			var cfg *config.RunConfig
			var err error
			if configFile != "" {
				cfg, err = config.LoadConfig(configFile)
			} else {
				cfg, err = config.Parse(nil)
			}
			if err != nil {
				return err
			}
			cat, err := catalogue.FromConfig(cfg)
			if err != nil {
				return err
			}
			return listPatterns(cmd.OutOrStdout(), cat)
		},
	}
	patternsCmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to benchmark configuration file")
	return patternsCmd
}

func listPatterns(w io.Writer, cat *catalogue.Catalogue) error {
	for _, name := range cat.Names() {
		p := cat.Get(name)
		steps := make([]string, len(p.Steps))
		for i, s := range p.Steps {
			steps[i] = fmt.Sprintf("%s+%s", s.Action.Name, s.Delay)
		}
		if _, err := fmt.Fprintf(w, "%-16s wait %s-%s  %s\n", name, p.Wait.Min, p.Wait.Max, strings.Join(steps, " ")); err != nil {
			return err
		}
	}
	return nil
}

func newPlotCmd() *cobra.Command {
	var resultsFile string
	var interval, minVal, maxVal float64
	var onlyWrapper bool

	plotCmd := &cobra.Command{
		Use:   "plot",
		Short: "Generate a timeseries plot from a result log",
		Long:  "Generate a LaTeX/TikZ plot of power per subject over the collection window",
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.TrimSuffix(filepath.Base(resultsFile), filepath.Ext(resultsFile))
			if onlyWrapper {
				out, err := plot.Wrapper(name+"-power.tikz", name)
				if err != nil {
					return err
				}
				_, err = io.WriteString(cmd.OutOrStdout(), out)
				return err
			}

			samples, err := results.ReadCSV(resultsFile)
			if err != nil {
				return fmt.Errorf("failed to read results: %w", err)
			}
			opts := plot.Options{
				Name:     name,
				Source:   resultsFile,
				Interval: config.Seconds(interval),
			}
			if cmd.Flags().Changed("min") {
				opts.MinOverride = &minVal
			}
			if cmd.Flags().Changed("max") {
				opts.MaxOverride = &maxVal
			}
			out, err := plot.Timeseries(samples, opts)
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), out)
			return err
		},
	}

	plotCmd.Flags().StringVarP(&resultsFile, "file", "f", config.DefaultOutputCSV, "Path to the result log")
	plotCmd.Flags().Float64Var(&interval, "interval", 0, "Aggregation interval in seconds (0 = no aggregation)")
	plotCmd.Flags().Float64Var(&minVal, "min", 0, "Minimum Y-axis value")
	plotCmd.Flags().Float64Var(&maxVal, "max", 0, "Maximum Y-axis value")
	plotCmd.Flags().BoolVar(&onlyWrapper, "wrapper", false, "Print only the wrapper file (LaTeX)")
	return plotCmd
}
