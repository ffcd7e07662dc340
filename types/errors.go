package types

import "errors"

// Code is the signed result code delivered through a pull session's
// completion callback: zero for success, a negative value naming the
// failure domain otherwise.
type Code int

const (
	CodeOK               Code = 0
	CodeInvalidName      Code = -1
	CodeInvalidLocalName Code = -2
	CodeBusy             Code = -3
	CodeDiscoveryFailed  Code = -4
	CodeDownloadFailed   Code = -5
	CodeSubprocessFailed Code = -6
	CodeSnapshotCreate   Code = -7
	CodeSnapshotRemove   Code = -8
	CodeLocalNameExists  Code = -9
	CodeCancelled        Code = -10
	// CodeUnknown covers errors that escaped the taxonomy; it should not
	// appear in practice since every internal failure is wrapped.
	CodeUnknown Code = -125
)

// Error is a taxonomy sentinel. Failures are reported by wrapping one of
// the Err* values below with fmt.Errorf("...: %w", ...), so callers can
// test with errors.Is and map to a Code with CodeOf.
type Error struct {
	code Code
	msg  string
}

func (e *Error) Error() string { return e.msg }

// Code returns the result code of this error.
func (e *Error) Code() Code { return e.code }

var (
	ErrInvalidName      = &Error{CodeInvalidName, "invalid image name"}
	ErrInvalidLocalName = &Error{CodeInvalidLocalName, "invalid local name"}
	ErrBusy             = &Error{CodeBusy, "pull already in progress"}
	ErrDiscoveryFailed  = &Error{CodeDiscoveryFailed, "discovery failed"}
	ErrDownloadFailed   = &Error{CodeDownloadFailed, "download failed"}
	ErrSubprocessFailed = &Error{CodeSubprocessFailed, "extraction subprocess failed"}
	ErrSnapshotCreate   = &Error{CodeSnapshotCreate, "snapshot create failed"}
	ErrSnapshotRemove   = &Error{CodeSnapshotRemove, "snapshot remove failed"}
	ErrLocalNameExists  = &Error{CodeLocalNameExists, "local name already exists"}
	ErrCancelled        = &Error{CodeCancelled, "pull cancelled"}
)

// CodeOf maps err to its result code. nil maps to CodeOK; an error that
// does not wrap a taxonomy sentinel maps to CodeUnknown.
func CodeOf(err error) Code {
	if err == nil {
		return CodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.code
	}
	return CodeUnknown
}
