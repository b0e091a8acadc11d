package moq

import (
	"errors"
	"fmt"
)

// Sentinel errors for MoQ wire-protocol handling. These enable callers to
// programmatically distinguish failure modes using errors.Is.
var (
	ErrVersionMismatch   = errors.New("moq: no compatible version")
	ErrUnknownTrack      = errors.New("moq: unknown track")
	ErrUnsupportedFilter = errors.New("moq: unsupported filter type")
	ErrUnknownNamespace  = errors.New("moq: unknown namespace")
	ErrBadParity         = errors.New("moq: request ID has wrong parity for sender")
)

// Wire error codes the core mints itself for protocol violations it
// originates (draft-ietf-moq-transport-14 §7).
const (
	ErrorCodeProtocolViolation uint64 = 0x01
	ErrorCodeInternal          uint64 = 0x02
)

// ParseError indicates a failure to parse a single MoQ message field. It
// wraps the underlying wire error and records which field was being parsed.
type ParseError struct {
	Message string // message type name, e.g. "SUBSCRIBE"
	Field   string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("moq: parse %s.%s: %v", e.Message, e.Field, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// MalformedMessageError reports a message that did not parse: invalid
// lengths, unknown filter types, or a truncated tail. The session treats it
// as fatal when it arises on the control stream; on a data stream it is only
// logged, no objects are delivered from that stream, and the session
// continues.
type MalformedMessageError struct {
	Kind   string // message type name
	Offset int
	Err    error
}

func (e *MalformedMessageError) Error() string {
	return fmt.Sprintf("moq: malformed %s at offset %d: %v", e.Kind, e.Offset, e.Err)
}

func (e *MalformedMessageError) Unwrap() error {
	return e.Err
}
