package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/marksense/internal/domain/model"
	"github.com/okian/marksense/internal/seed"
	"github.com/okian/marksense/pkg/logger"
)

// defaultRunTimeout bounds a whole seed run.
const defaultRunTimeout = 10 * time.Minute

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the service")
		days       = flag.Int("days", seed.DefaultDays, "Number of consecutive days to save")
		students   = flag.Int("students", seed.DefaultStudents, "Class size")
		start      = flag.String("start", "", "First day as YYYY-MM-DD (default: days before today)")
		workers    = flag.Int("workers", seed.DefaultWorkers, "Concurrent series readers")
		timeout    = flag.Duration("timeout", seed.DefaultTimeout, "HTTP request timeout")
		seedValue  = flag.Uint64("seed", 0, "Generator seed (default: derived from the run id)")
		outputFile = flag.String("output", "", "Write the submitted rosters to this JSON file")
		logFormat  = flag.String("log-format", logger.FormatText, "Log format: text or json")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		seed.ShowHelp(os.Stdout)
		return
	}

	if err := logger.InitWith(os.Stdout, *logFormat); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(2)
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}

	cfg := &seed.Config{
		BaseURL:    *baseURL,
		Days:       *days,
		Students:   *students,
		Workers:    *workers,
		Timeout:    *timeout,
		Seed:       *seedValue,
		OutputFile: *outputFile,
		Verbose:    *verbose,
	}
	if *start != "" {
		d, err := model.ParseDay(*start)
		if err != nil {
			os.Stderr.WriteString("invalid -start: " + err.Error() + "\n")
			os.Exit(2)
		}
		cfg.StartDate = d
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultRunTimeout)
	defer cancel()

	if _, err := seed.Run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "seed run failed", logger.Error(err))
		os.Exit(1)
	}
}
