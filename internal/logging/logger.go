package logging

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

var logger *logrus.Logger
var driverLogger *logrus.Logger

func init() {
	logger = logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
		DisableColors: false,
	})
	logger.SetLevel(logrus.InfoLevel)

	driverLogger = logrus.New()
	driverLogger.SetOutput(os.Stdout)
	driverLogger.SetFormatter(driverTextFormatter())
	driverLogger.SetLevel(logrus.InfoLevel)
}

func driverTextFormatter() *logrus.TextFormatter {
	return &logrus.TextFormatter{
		FullTimestamp: true,
		DisableColors: false,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "time",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "driver_msg",
		},
	}
}

func GetLogger() *logrus.Logger {
	return logger
}

// GetDriverLogger returns the logger used by the usage-simulation driver. It is
// levelled separately because it logs once per iteration.
func GetDriverLogger() *logrus.Logger {
	return driverLogger
}

func SetLogLevel(level string) error {
	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	logger.SetLevel(logLevel)
	return nil
}

func SetDriverLogLevel(level string) error {
	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	driverLogger.SetLevel(logLevel)
	return nil
}

func SetFormatter(formatter logrus.Formatter) {
	logger.SetFormatter(formatter)
}

// SetFormat switches both loggers between "text" and "json" output.
func SetFormat(format string) error {
	switch format {
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		driverLogger.SetFormatter(driverTextFormatter())
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
		driverLogger.SetFormatter(&logrus.JSONFormatter{
			FieldMap: logrus.FieldMap{logrus.FieldKeyMsg: "driver_msg"},
		})
	default:
		return fmt.Errorf("unknown log format %q", format)
	}
	return nil
}
