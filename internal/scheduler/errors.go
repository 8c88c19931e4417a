package scheduler

import "errors"

// Sentinel errors callers match with errors.Is to map outcomes onto API
// responses and job statuses.
var (
	// ErrAlreadyRunning reports that another job occupies the transcription
	// slot. Reported to the caller, never retried internally.
	ErrAlreadyRunning = errors.New("another transcription is already running")

	// ErrNotFound reports an unknown job id or a missing media file.
	ErrNotFound = errors.New("job not found")

	// ErrPrecondition reports a pause/resume request against a job in the
	// wrong state. No state is changed.
	ErrPrecondition = errors.New("job is not in an eligible state")

	// ErrCancelled is the expected control-flow outcome of a cancel or stop.
	// It maps to status interrupted and is never treated as a fault.
	ErrCancelled = errors.New("transcription cancelled")

	// ErrEngine reports an underlying engine failure. The job is marked
	// error with its elapsed time frozen; the queue worker continues.
	ErrEngine = errors.New("transcription engine failure")
)
