// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(...) to build a Config with defaults.
// - Load(ctx) layers an optional YAML file and env vars on top.
// - External errors must be wrapped via this package's error kinds.
package config

import (
	"context"
	"runtime"
	"time"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DBPath locates the sqlite database file.
	DBPath string `koanf:"db_path"`

	// QueueSize bounds the in-memory refresh task queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of refresh workers.
	WorkerCount int `koanf:"worker_count"`

	// SyncWindow is how long synced records stay current. A refresh
	// inside the window skips the upstream fetch, and cached reports
	// expire on the same clock.
	SyncWindow time.Duration `koanf:"sync_window"`

	// Retention bounds the age of account data; the janitor purges
	// accounts whose last sync is older.
	Retention time.Duration `koanf:"retention"`

	// JanitorInterval is how often the purge job runs.
	JanitorInterval time.Duration `koanf:"janitor_interval"`

	// GuardWait bounds how long a report computation waits for an
	// in-flight computation on the same user.
	GuardWait time.Duration `koanf:"guard_wait"`

	// GuardHold bounds how long one computation may hold a user before
	// it is forcibly released.
	GuardHold time.Duration `koanf:"guard_hold"`
}

// New creates a Config with defaults. Context is accepted first to
// satisfy the project-wide convention; it is reserved for future use and
// is currently unused.
func New(_ context.Context) *Config {
	c := &Config{
		LogLevel:        "info",
		Addr:            ":9080",
		DBPath:          "wanistats.db",
		QueueSize:       1024,
		WorkerCount:     runtime.NumCPU() * 2,
		SyncWindow:      10 * time.Minute,
		Retention:       7 * 24 * time.Hour,
		JanitorInterval: time.Hour,
		GuardWait:       30 * time.Second,
		GuardHold:       5 * time.Minute,
	}
	return c
}
