package domain

import (
	"errors"
	"fmt"
	"strings"
)

type ErrorKind string

const (
	ErrorKindExternalCommand ErrorKind = "external command"
	ErrorKindArchive         ErrorKind = "archive"
	ErrorKindTransfer        ErrorKind = "transfer"
	ErrorKindNotFound        ErrorKind = "not found"
)

// Error carries the kind of failure a step hit so callers can branch on it.
type Error struct {
	Kind     ErrorKind
	Op       string
	ExitCode int
	Output   string
	Err      error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s error: %s", e.Kind, e.Op)
	if e.Kind == ErrorKindExternalCommand {
		fmt.Fprintf(&b, " (exit code %d)", e.ExitCode)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if out := strings.TrimSpace(e.Output); out != "" {
		fmt.Fprintf(&b, ", output: %s", out)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewExternalCommandError(command string, exitCode int, output string, err error) *Error {
	return &Error{Kind: ErrorKindExternalCommand, Op: command, ExitCode: exitCode, Output: output, Err: err}
}

func NewArchiveError(op string, err error) *Error {
	return &Error{Kind: ErrorKindArchive, Op: op, Err: err}
}

func NewTransferError(op string, err error) *Error {
	return &Error{Kind: ErrorKindTransfer, Op: op, Err: err}
}

func NewNotFoundError(op string, err error) *Error {
	return &Error{Kind: ErrorKindNotFound, Op: op, Err: err}
}

// IsKind reports whether any error in err's chain is an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	for err != nil {
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Err
	}
	return false
}

// RestoreError records which restore step failed and whether the database
// service was left stopped by the failure.
type RestoreError struct {
	Step           string
	ServiceStopped bool
	Err            error
}

func (e *RestoreError) Error() string {
	if e.ServiceStopped {
		return fmt.Sprintf("restore step %q failed, influxdb service left stopped: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("restore step %q failed: %v", e.Step, e.Err)
}

func (e *RestoreError) Unwrap() error {
	return e.Err
}
