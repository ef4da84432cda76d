package simulate

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/example/wanistats/pkg/logger"
)

const logFilePermission = 0600

// SetupLogging initializes logging to both stdout and a log file.
func SetupLogging(logFile string) error {
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if logFile == "" {
		logFile = fmt.Sprintf("simulation_log_%s.log", time.Now().Format("20060102_150405"))
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", logFile, err)
	}

	log.SetOutput(io.MultiWriter(os.Stdout, file))
	log.Printf("📝 Logging to %s", logFile)

	return nil
}

// ShowHelp displays usage information.
func ShowHelp() {
	fmt.Println(`WaniKani Statistics Simulation Tool

Seeds synthetic accounts through the full aggregation pipeline, hammers
the cached read path, verifies every computed report against its source
records, and optionally writes the xlsx exports.

Usage:
  simulate [flags]

Flags:
  -users int
        Number of synthetic accounts (default 5)
  -assignments int
        Assignments per account (default 200)
  -reviews int
        Reviews per account (default 500)
  -seed int
        PRNG seed; equal seeds produce equal datasets (default 1)
  -db string
        Sqlite database file (default: temporary file, removed afterwards)
  -export string
        Directory for xlsx exports (default: none)
  -workers int
        Number of refresh workers (default: 2 per CPU)
  -log string
        Log file path (default: simulation_log_TIMESTAMP.log)
  -verbose
        Log a per-account report summary
  -help
        Show this help

Examples:
  simulate
  simulate -users 50 -assignments 500 -reviews 2000
  simulate -seed 42 -export ./out -verbose`)
}
