package catalog

import (
	"errors"
	"fmt"
)

// Error kinds returned by catalog operations. Match them with errors.Is.
var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrNotFound         = errors.New("not found")
	ErrGatewayFailure   = errors.New("gateway failure")
	ErrUploadFailure    = errors.New("upload failure")
	ErrCategoryConflict = errors.New("category already exists")
	ErrSessionBusy      = errors.New("another edit session is open")
	ErrNoSession        = errors.New("no edit session")
	ErrCommitInProgress = errors.New("commit already in progress")
)

// Error describes a failed catalog operation.
type Error struct {
	Op   string // e.g. "Commit", "CreateCategory"
	Kind error  // one of the Err* kinds above
	Err  error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("catalog: %s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("catalog: %s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(op string, kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

func invalid(op, format string, args ...any) *Error {
	return newError(op, ErrInvalidInput, fmt.Errorf(format, args...))
}
