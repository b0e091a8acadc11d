package session

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced to callers waiting on a pending request or on a
// subscription's object sequence (spec.md §7).
var (
	// ErrConnectionClosed is returned to every pending awaiter and closes
	// every event sequence when the session transitions to closed.
	ErrConnectionClosed = errors.New("session: connection closed")

	// ErrCancelled is returned to a waiter whose pending request was
	// cancelled locally before a response arrived.
	ErrCancelled = errors.New("session: request cancelled")

	// ErrNotConnected is returned for operations that require the
	// established state but were attempted in handshaking, draining, or
	// closed.
	ErrNotConnected = errors.New("session: not connected")

	// ErrUnknownTrack is logged and dropped, never returned to a caller
	// synchronously: an inbound object's track alias was not in the alias
	// map.
	ErrUnknownTrack = errors.New("session: unknown track alias")

	// ErrDuplicateTrack is returned synchronously when a namespace/track
	// name pair is registered twice.
	ErrDuplicateTrack = errors.New("session: track already registered")

	// ErrRequestIDExhausted is returned when the local allocator would
	// advance the peer's last-advertised MAX_REQUEST_ID ceiling, or the
	// 2^62 hard boundary spec.md names regardless of any advertised ceiling.
	ErrRequestIDExhausted = errors.New("session: request ID space exhausted")
)

// SetupError reports a failed handshake: timeout, transport error, or
// version mismatch. Fatal; the session moves directly to closed.
type SetupError struct {
	Reason string
	Err    error
}

func (e *SetupError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("session: setup failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("session: setup failed: %s", e.Reason)
}

func (e *SetupError) Unwrap() error { return e.Err }

// ProtocolViolationError reports a message that parsed but violated a
// session-level invariant (wrong request-ID parity, a setup message after
// the handshake, an unexpected message type during the handshake). Fatal. A
// response to an unknown request is not one: it is logged and dropped.
type ProtocolViolationError struct {
	Reason string
}

func (e *ProtocolViolationError) Error() string {
	return fmt.Sprintf("session: protocol violation: %s", e.Reason)
}

// PeerError wraps a *_ERROR response. It is surfaced only to the waiter for
// the corresponding request; it never terminates the session.
type PeerError struct {
	ErrorCode    uint64
	ReasonPhrase string
}

func (e *PeerError) Error() string {
	return fmt.Sprintf("session: peer error %d: %s", e.ErrorCode, e.ReasonPhrase)
}

// StreamWriteError reports that the transport rejected a write on a data
// stream. The affected stream is aborted; the publication itself remains
// active and may open a new stream.
type StreamWriteError struct {
	Alias uint64
	Err   error
}

func (e *StreamWriteError) Error() string {
	return fmt.Sprintf("session: write error on alias %d: %v", e.Alias, e.Err)
}

func (e *StreamWriteError) Unwrap() error { return e.Err }
