package wanikani

import "errors"

// Sentinel kinds for client errors.
var (
	// ErrUnauthorized reports that the api key was rejected upstream.
	ErrUnauthorized = errors.New("api key rejected")

	// ErrTooManyPages reports a pagination chain longer than the
	// configured page cap.
	ErrTooManyPages = errors.New("too many pages")
)
