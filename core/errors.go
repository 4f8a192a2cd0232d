package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAllowed is returned when an operation declared not-allowed is
	// invoked. It is a hard rejection, not a permission decision.
	ErrNotAllowed = errors.New("operation is declared not-allowed")

	// ErrNotAuthorized is returned when the permission table denies an
	// operation's declared type.
	ErrNotAuthorized = errors.New("operation type is not authorized")

	// ErrLockTimeout is returned when a synchronizer guard could not be
	// granted within the configured bound. No side effects occurred.
	ErrLockTimeout = errors.New("timed out waiting for synchronizer guard")

	// ErrInvalidState signals a configuration error, e.g. creating the
	// command journal a second time on the same configuration.
	ErrInvalidState = errors.New("invalid configuration state")

	// ErrUnknownOperation is returned when a call names an operation that
	// was never registered on the model's operation surface.
	ErrUnknownOperation = errors.New("unknown operation")

	// ErrJournalClosed is returned for appends against a closed journal.
	ErrJournalClosed = errors.New("command journal is closed")
)

// CloneError wraps a failure to deep-copy a command argument or result.
// For commands it surfaces before any journal append, so a non-serializable
// argument can never corrupt the journal.
type CloneError struct {
	Op  string // operation name the value belonged to
	Err error
}

func (e *CloneError) Error() string {
	return fmt.Sprintf("clone failed for operation %q: %v", e.Op, e.Err)
}

func (e *CloneError) Unwrap() error { return e.Err }

// IsCloneError checks if an error is a CloneError.
func IsCloneError(err error) bool {
	var cloneErr *CloneError
	return errors.As(err, &cloneErr)
}
