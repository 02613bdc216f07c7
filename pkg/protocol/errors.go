package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrBadFormat matches every *BadFormatError.
	ErrBadFormat = errors.New("bad format")

	// ErrTransport matches every *TransportError.
	ErrTransport = errors.New("transport error")

	// ErrConstruction matches every *ConstructionError.
	ErrConstruction = errors.New("invalid message")

	ErrUnknownCommand  = errors.New("unknown command")
	ErrMissingField    = errors.New("missing required field")
	ErrUnexpectedField = errors.New("field not allowed for command")
	ErrDuplicateField  = errors.New("duplicate field")
	ErrUnknownField    = errors.New("unknown field")
	ErrInvalidUTF8     = errors.New("invalid utf-8 in string field")
	ErrFrameTooLarge   = errors.New("frame exceeds size limit")
)

// BadFormatError reports a complete payload that does not decode into a valid
// Message. Payload holds the offending bytes for diagnostics; it is nil when
// the frame was rejected before its payload was read.
type BadFormatError struct {
	Payload []byte
	Err     error
}

func (e *BadFormatError) Error() string {
	return fmt.Sprintf("bad format: %v", e.Err)
}

func (e *BadFormatError) Unwrap() []error {
	return []error{ErrBadFormat, e.Err}
}

// TransportError reports a frame cut short by the transport or an I/O failure
// in the middle of a read.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() []error {
	return []error{ErrTransport, e.Err}
}

// ConstructionError reports an attempt to build a Message without a field
// its command requires.
type ConstructionError struct {
	Command Command
	Field   string
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("invalid message: %s requires %s", e.Command, e.Field)
}

func (e *ConstructionError) Unwrap() error {
	return ErrConstruction
}

func badFormat(payload []byte, err error) *BadFormatError {
	return &BadFormatError{Payload: payload, Err: err}
}
