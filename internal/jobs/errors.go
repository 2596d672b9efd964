package jobs

import "errors"

var (
	ErrNotFound        = errors.New("job not found")
	ErrForbidden       = errors.New("job belongs to another owner")
	ErrQueueFull       = errors.New("job queue is full")
	ErrQueueClosed     = errors.New("job queue is shut down")
	ErrAlreadyTerminal = errors.New("job already finished")

	errProfileLookup = errors.New("profile lookup")
)

const (
	ErrorCodeScorerFailure = "SCORER_FAILURE"
	ErrorCodeScorerTimeout = "SCORER_TIMEOUT"
	ErrorCodeCancelled     = "CANCELLED"
	ErrorCodeProfileLookup = "PROFILE_LOOKUP"
	ErrorCodeShutdown      = "SHUTDOWN"
	ErrorCodeInternal      = "INTERNAL_ERROR"
)
