package pipeline

import "errors"

// Sentinel kinds for pipeline errors.
var (
	// ErrNoData marks a user with no stored records of any type. An
	// empty report is never produced.
	ErrNoData = errors.New("no records for user")

	// ErrStoreUnavailable marks a run in which every record read failed.
	ErrStoreUnavailable = errors.New("record store unavailable")
)
