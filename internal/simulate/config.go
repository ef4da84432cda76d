package simulate

import "time"

// Config holds configuration for a simulation run.
type Config struct {
	Users       int    // number of synthetic accounts
	Assignments int    // assignments per account, also the catalogue size
	Reviews     int    // reviews per account
	Seed        int64  // PRNG seed; equal seeds produce equal datasets
	DBPath      string // sqlite database file; empty means a temporary file
	ExportDir   string // when set, write one xlsx workbook per account
	Workers     int    // refresh worker count
	LogFile     string // log file for simulation output
	Verbose     bool   // enable verbose logging
}

// Stats holds simulation statistics.
type Stats struct {
	UsersSeeded     int
	RecordsSeeded   int
	ReportsComputed int
	ReadsIssued     int
	ExportsWritten  int
	Violations      int
	StartTime       time.Time
	EndTime         time.Time
	Duration        time.Duration
}
