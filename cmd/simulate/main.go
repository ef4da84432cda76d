package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/example/wanistats/internal/simulate"
)

// Default configuration constants.
const (
	defaultUsers         = 5
	defaultAssignments   = 200
	defaultReviews       = 500
	defaultSeed          = 1
	defaultWorkersPerCPU = 2
	defaultRunTimeout    = 10 * time.Minute
)

func main() {
	var (
		users       = flag.Int("users", defaultUsers, "Number of synthetic accounts")
		assignments = flag.Int("assignments", defaultAssignments, "Assignments per account")
		reviews     = flag.Int("reviews", defaultReviews, "Reviews per account")
		seed        = flag.Int64("seed", defaultSeed, "PRNG seed; equal seeds produce equal datasets")
		dbPath      = flag.String("db", "", "Sqlite database file (default: temporary file)")
		exportDir   = flag.String("export", "", "Directory for xlsx exports (default: none)")
		workers     = flag.Int("workers", runtime.NumCPU()*defaultWorkersPerCPU, "Number of refresh workers")
		logFile     = flag.String("log", "", "Log file path (default: simulation_log_TIMESTAMP.log)")
		verbose     = flag.Bool("verbose", false, "Log a per-account report summary")
		help        = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simulate.ShowHelp()
		return
	}

	if err := simulate.SetupLogging(*logFile); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	config := &simulate.Config{
		Users:       *users,
		Assignments: *assignments,
		Reviews:     *reviews,
		Seed:        *seed,
		DBPath:      *dbPath,
		ExportDir:   *exportDir,
		Workers:     *workers,
		LogFile:     *logFile,
		Verbose:     *verbose,
	}

	if err := simulate.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
