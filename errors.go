package hglib

import "fmt"

// ErrorKind classifies why an hglib operation failed, per spec.md's
// error taxonomy. It is not itself an error type; it labels *Error.
type ErrorKind string

const (
	// KindInvalidArgument means the caller passed an empty repository
	// path, empty argv, or an empty revision list where one is required.
	KindInvalidArgument ErrorKind = "invalid_argument"

	// KindInvalidRepository means the repository path does not exist or
	// does not contain a .hg directory.
	KindInvalidRepository ErrorKind = "invalid_repository"

	// KindServerUnavailable means the hg subprocess could not be started.
	KindServerUnavailable ErrorKind = "server_unavailable"

	// KindHandshakeFailed means the hello frame was missing the
	// "encoding" or "capabilities" field, or the runcommand capability.
	KindHandshakeFailed ErrorKind = "handshake_failed"

	// KindProtocolViolation means an unknown, mandatory (uppercase)
	// channel letter was seen, or a frame header could not be parsed.
	KindProtocolViolation ErrorKind = "protocol_violation"

	// KindTransportFailed means a pipe read or write failed, or the
	// stream ended before a frame's payload was fully delivered. The
	// Session that produced it must be treated as poisoned and closed.
	KindTransportFailed ErrorKind = "transport_failed"

	// KindCommandFailed means a command exited with a non-zero code
	// where zero was expected. Result carries the captured output.
	KindCommandFailed ErrorKind = "command_failed"

	// KindSessionClosed means a call was made on a Session after Close.
	KindSessionClosed ErrorKind = "session_closed"
)

// Error is the concrete error type returned by every hglib operation
// that can fail. Op names the failing operation (e.g. "Open",
// "RunCommand"); Err, when present, is the underlying cause; Result is
// populated only for KindCommandFailed.
type Error struct {
	Kind   ErrorKind
	Op     string
	Err    error
	Result *CommandResult
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("hglib: %s: %s", e.Op, e.Kind)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrSessionClosed) (and the other exported
// sentinels below) match any *Error of the same Kind, regardless of Op
// or the wrapped cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Kind == "" {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinel *Error values for use with errors.Is, one per ErrorKind.
var (
	ErrInvalidArgument    = &Error{Kind: KindInvalidArgument}
	ErrInvalidRepository  = &Error{Kind: KindInvalidRepository}
	ErrServerUnavailable  = &Error{Kind: KindServerUnavailable}
	ErrHandshakeFailed    = &Error{Kind: KindHandshakeFailed}
	ErrProtocolViolation  = &Error{Kind: KindProtocolViolation}
	ErrTransportFailed    = &Error{Kind: KindTransportFailed}
	ErrCommandFailed      = &Error{Kind: KindCommandFailed}
	ErrSessionClosed      = &Error{Kind: KindSessionClosed}
)

func newError(op string, kind ErrorKind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

func commandFailedError(op string, result *CommandResult) *Error {
	return &Error{
		Op:     op,
		Kind:   KindCommandFailed,
		Err:    fmt.Errorf("exit code %d", result.ExitCode),
		Result: result,
	}
}
