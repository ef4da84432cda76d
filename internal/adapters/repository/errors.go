package repository

import "errors"

// Sentinel kinds for record store errors.
var (
	ErrNotFound = errors.New("account not found")
	ErrClosed   = errors.New("record store closed")
)
