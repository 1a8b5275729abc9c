package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidState is returned for scheduler API misuse, such as registering
// a job while the scheduler is running. This is a programming error.
var ErrInvalidState = errors.New("invalid scheduler state")

// TransientError wraps failures worth retrying: network timeouts,
// rate limiting, 5xx responses.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError wraps failures that must not be retried within the current
// run: permission denied, not found, malformed requests.
type PermanentError struct {
	Op  string
	Err error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("%s: permanent: %v", e.Op, e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// ParseError marks a malformed feed payload or entry. Entry-level parse
// errors skip only the bad entry, never the batch.
type ParseError struct {
	FeedID string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("feed %s: parse: %v", e.FeedID, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// FatalError marks failures no useful work can proceed from, such as a
// gateway authentication failure. The process terminates on these.
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s: fatal: %v", e.Op, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// Transient builds a TransientError
func Transient(op string, err error) error {
	return &TransientError{Op: op, Err: err}
}

// Permanent builds a PermanentError
func Permanent(op string, err error) error {
	return &PermanentError{Op: op, Err: err}
}

// Fatal builds a FatalError
func Fatal(op string, err error) error {
	return &FatalError{Op: op, Err: err}
}

// IsTransient reports whether err is retryable
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsPermanent reports whether err must not be retried
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// IsFatal reports whether err should terminate the process
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
