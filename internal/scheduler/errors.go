package scheduler

import "errors"

var (
	// ErrNotRunning is returned by Schedule when called on a NodeQueueScheduler
	// that has not been started (or has already finished).
	ErrNotRunning = errors.New("scheduler: not running")

	// ErrAlreadyRunning is returned by Begin when called twice.
	ErrAlreadyRunning = errors.New("scheduler: already running")
)
