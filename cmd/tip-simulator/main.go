package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/tipjar/internal/simulator"
	"github.com/okian/tipjar/pkg/logger"
)

const (
	defaultOwners          = 5
	defaultWorkersPerOwner = 4
	defaultTips            = 1000
	defaultReviewRatio     = 0.6
	defaultConcurrency     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout         = 30 * time.Second
	defaultRunTimeout      = 10 * time.Minute
)

func main() {
	var (
		baseURL     = flag.String("url", "http://localhost:9080", "Base URL of the service")
		owners      = flag.Int("owners", defaultOwners, "Businesses to register")
		workers     = flag.Int("workers", defaultWorkersPerOwner, "Workers per business")
		tips        = flag.Int("tips", defaultTips, "Tips to submit")
		reviewRatio = flag.Float64("review-ratio", defaultReviewRatio, "Fraction of tips that get rated")
		concurrency = flag.Int("concurrency", runtime.NumCPU()*defaultConcurrency, "Concurrent clients")
		timeout     = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		outputFile  = flag.String("output", "", "Write the generated plan as JSON")
		logFile     = flag.String("log", "", "Log file (default: tip_simulation_TIMESTAMP.log)")
		verbose     = flag.Bool("verbose", false, "Enable verbose logging")
		help        = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simulator.ShowHelp()
		return
	}

	if _, err := simulator.SetupLogging(*logFile, *verbose); err != nil {
		os.Stderr.WriteString("failed to set up logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := &simulator.Config{
		BaseURL:         *baseURL,
		Owners:          *owners,
		WorkersPerOwner: *workers,
		Tips:            *tips,
		ReviewRatio:     *reviewRatio,
		Concurrency:     *concurrency,
		Timeout:         *timeout,
		OutputFile:      *outputFile,
		Verbose:         *verbose,
	}
	if _, err := simulator.Run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "simulation failed", logger.Error(err))
		stop()
		cancel()
		os.Exit(1)
	}
}
