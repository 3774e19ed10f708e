package simulator

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/tipjar/pkg/logger"
)

const logFilePermission = 0o600

// SetupLogging sends log records to stdout and to logFile. An empty logFile
// gets a timestamped name.
func SetupLogging(logFile string, verbose bool) (string, error) {
	if err := logger.Init(); err != nil {
		return "", fmt.Errorf("failed to initialize logger: %w", err)
	}
	if logFile == "" {
		logFile = "tip_simulation_" + time.Now().Format("20060102_150405") + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return "", fmt.Errorf("failed to create log file: %w", err)
	}
	logger.SetOutput(io.MultiWriter(os.Stdout, file))
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	return logFile, nil
}

// ShowHelp prints usage information for the simulator.
func ShowHelp() {
	os.Stdout.WriteString(`tipjar tip simulator
====================

Registers businesses and workers on a running tipjar service, submits tips
and reviews concurrently, then checks every aggregate and leaderboard.

Usage:
  go run ./cmd/tip-simulator [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -owners int
        Businesses to register (default 5)
  -workers int
        Workers per business (default 4)
  -tips int
        Tips to submit (default 1000)
  -review-ratio float
        Fraction of tips that get rated (default 0.6)
  -concurrency int
        Concurrent clients (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 30s)
  -output string
        Write the generated plan as JSON
  -log string
        Log file (default: tip_simulation_TIMESTAMP.log)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  go run ./cmd/tip-simulator -tips 5000 -concurrency 32
  go run ./cmd/tip-simulator -owners 1 -workers 10 -review-ratio 1 -output plan.json
`)
}
