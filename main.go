package main

import (
	"os"

	"power-bench/cmd"
	"power-bench/internal/logging"
)

func main() {
	if err := cmd.Execute(); err != nil {
		logging.GetLogger().WithError(err).Error("Command execution failed")
		os.Exit(1)
	}
}
