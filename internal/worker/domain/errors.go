package domain

import "errors"

var (
	// ErrInvalidPayload is returned when a job payload is malformed or
	// missing required fields. Always terminal.
	ErrInvalidPayload = errors.New("invalid job payload")

	// ErrUnsupportedLanguagePair is returned when no translation model
	// exists for the requested pair. Always terminal.
	ErrUnsupportedLanguagePair = errors.New("translation model not available for language pair")
)

// TransientError wraps errors that should trigger redelivery: the message
// is nacked with requeue and never surfaced to the original caller.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return "transient error: " + e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError creates a new transient error
func NewTransientError(err error) error {
	return &TransientError{Err: err}
}

// IsTransient reports whether the error should trigger redelivery.
// Anything not explicitly transient is treated as terminal, so a
// persistently bad input can never loop forever on the queue.
func IsTransient(err error) bool {
	var transient *TransientError
	return errors.As(err, &transient)
}
