package app

import "errors"

// Sentinel kinds for service errors.
var (
	// ErrUnknownUser reports a stats request for a user that was never
	// refreshed.
	ErrUnknownUser = errors.New("unknown user")

	// ErrQueueFull reports that the refresh queue is at capacity.
	ErrQueueFull = errors.New("refresh queue full")

	// ErrAlreadyQueued reports that a refresh for the account is already
	// queued or running.
	ErrAlreadyQueued = errors.New("refresh already queued")
)
