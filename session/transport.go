package session

import (
	"context"
	"io"
)

// Transport is the abstract carrier a Session runs over (spec.md §6's
// transport contract). A concrete implementation wraps a QUIC or
// WebTransport connection; [github.com/moqsession/moq/transport/quicgo]
// implements it over github.com/quic-go/quic-go.
type Transport interface {
	// ControlStream returns the single bidirectional, reliable, ordered
	// stream carrying framed control messages. Called once per session.
	ControlStream() io.ReadWriteCloser

	// OpenUniStream opens a new unidirectional stream for writing a data
	// object stream. It suspends on transport backpressure.
	OpenUniStream(ctx context.Context) (WriteStream, error)

	// AcceptUniStream blocks until the peer opens a new unidirectional data
	// stream, or ctx is cancelled.
	AcceptUniStream(ctx context.Context) (ReadStream, error)

	// Close tears down the underlying connection with an application error
	// code and reason, best-effort.
	Close(code uint64, reason string) error
}

// WriteStream is the write side of a unidirectional data stream.
type WriteStream interface {
	io.Writer
	// Close finishes the stream, signaling the peer no more bytes follow.
	Close() error
}

// ReadStream is the read side of a unidirectional data stream accepted from
// the peer.
type ReadStream interface {
	io.Reader
}
