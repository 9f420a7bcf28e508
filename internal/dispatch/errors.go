package dispatch

import "errors"

// ErrTimeout is returned by SubmitAndWait when no response arrives within
// the deadline. It is distinct from JobFailedError so callers can tell
// "never got an answer" from "got a negative answer".
var ErrTimeout = errors.New("timed out waiting for job response")

// JobFailedError wraps a failure descriptor published by a worker
type JobFailedError struct {
	Reason string
}

func (e *JobFailedError) Error() string {
	return "job failed: " + e.Reason
}
