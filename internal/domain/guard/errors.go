package guard

import "errors"

// ErrBusy is returned by TryAcquire while another lease holds the key.
var ErrBusy = errors.New("guard: key is busy")

// ErrTimeout is returned by Acquire when the wait timeout elapses
// before the key becomes free.
var ErrTimeout = errors.New("guard: acquire timed out")
