package protocol

import "fmt"

// Kind is the error taxonomy every protocol failure maps onto; the driver
// uses it to pick a diagnostic message and an exit code.
type Kind int

const (
	// SystemIO covers descriptor/read/write failures from the transport.
	SystemIO Kind = iota
	// ParseError covers malformed sentences or unexpected field counts.
	ParseError
	// ChecksumMismatch covers a sentence whose trailing hex digits do not
	// match the computed XOR.
	ChecksumMismatch
	// NoResponse covers a timeout with an empty buffer.
	NoResponse
	// UnexpectedResponse covers a well-formed sentence that is not the
	// acknowledgement expected.
	UnexpectedResponse
	// InvalidCommand covers the device explicitly refusing a command.
	InvalidCommand
	// AllocationFailure covers host-side buffer allocation failure.
	AllocationFailure
)

// Message is the single diagnostic string for this error kind.
func (k Kind) Message() string {
	switch k {
	case SystemIO:
		return "transport I/O failure"
	case ParseError:
		return "malformed response from logger"
	case ChecksumMismatch:
		return "checksum mismatch in logger response"
	case NoResponse:
		return "no response from logger"
	case UnexpectedResponse:
		return "unexpected response from logger"
	case InvalidCommand:
		return "logger refused command"
	case AllocationFailure:
		return "allocation failure"
	default:
		return "unknown error"
	}
}

// Error wraps an underlying cause with its taxonomy Kind.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind.Message(), e.Err)
	}
	return e.Kind.Message()
}

func (e *Error) Unwrap() error { return e.Err }

// wrap builds an *Error of kind k around err. If err is nil, wrap returns
// nil so call sites can write `return wrap(Kind, err)` unconditionally.
func wrap(k Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: k, Err: err}
}

// newErr builds an *Error of kind k with a formatted message and no
// wrapped cause.
func newErr(k Kind, format string, args ...interface{}) error {
	return &Error{Kind: k, Err: fmt.Errorf(format, args...)}
}
