// Package repository defines the record store interface and errors.
package repository

import "time"

// Option applies a configuration option to the SQLiteStore.
type Option func(*SQLiteStore)

// WithBusyTimeout sets how long SQLite waits on a locked database
// before giving up.
func WithBusyTimeout(timeout time.Duration) Option {
	return func(s *SQLiteStore) {
		if timeout > 0 {
			s.busyTimeout = timeout
		}
	}
}

// WithJournalMode sets the SQLite journal mode, e.g. WAL or DELETE.
func WithJournalMode(mode string) Option {
	return func(s *SQLiteStore) {
		if mode != "" {
			s.journalMode = mode
		}
	}
}
