// Package quicgo implements session.Transport over github.com/quic-go/quic-go,
// the concrete transport behind the abstract session.Transport contract. It opens
// the control stream as the connection's first bidirectional stream and maps
// data streams directly onto QUIC unidirectional streams, mirroring how the
// teacher's MoQSession drives a *webtransport.Session (moq_session.go) but
// against a raw quic.Conn instead of an HTTP/3 WebTransport session.
package quicgo

import (
	"context"
	"fmt"
	"io"

	"github.com/quic-go/quic-go"

	"github.com/moqsession/moq/session"
)

// Transport adapts a quic.Connection to session.Transport. The control
// stream is not cached: every ControlStream call opens (client) or accepts
// (server) a new bidirectional stream, so it relies on the session calling
// ControlStream exactly once.
type Transport struct {
	conn     quic.Connection
	isClient bool
}

// New wraps an established QUIC connection. isClient determines whether the
// control stream is opened (client) or accepted (server), matching which
// side sends CLIENT_SETUP first in session.Config.Role.
func New(conn quic.Connection, isClient bool) *Transport {
	return &Transport{conn: conn, isClient: isClient}
}

// ControlStream opens or accepts a bidirectional stream and returns it as
// the session's control stream. Each call opens or accepts another stream;
// the session.Transport contract has it called once per session.
func (t *Transport) ControlStream() io.ReadWriteCloser {
	ctx := context.Background()
	var stream quic.Stream
	var err error
	if t.isClient {
		stream, err = t.conn.OpenStreamSync(ctx)
	} else {
		stream, err = t.conn.AcceptStream(ctx)
	}
	if err != nil {
		return errStream{err}
	}
	return stream
}

// errStream satisfies io.ReadWriteCloser by failing every call, so a control
// stream setup failure surfaces through the session's normal handshake error
// path instead of panicking on a nil stream.
type errStream struct{ err error }

func (e errStream) Read([]byte) (int, error)  { return 0, e.err }
func (e errStream) Write([]byte) (int, error) { return 0, e.err }
func (e errStream) Close() error              { return e.err }

// OpenUniStream opens a new QUIC unidirectional stream for one data-stream
// write session (one SUBGROUP_HEADER followed by its objects).
func (t *Transport) OpenUniStream(ctx context.Context) (session.WriteStream, error) {
	stream, err := t.conn.OpenUniStreamSync(ctx)
	if err != nil {
		return nil, fmt.Errorf("quicgo: open uni stream: %w", err)
	}
	return stream, nil
}

// AcceptUniStream blocks until the peer opens a new unidirectional data
// stream.
func (t *Transport) AcceptUniStream(ctx context.Context) (session.ReadStream, error) {
	stream, err := t.conn.AcceptUniStream(ctx)
	if err != nil {
		return nil, fmt.Errorf("quicgo: accept uni stream: %w", err)
	}
	return stream, nil
}

// Close closes the underlying QUIC connection with an application error
// code and reason string.
func (t *Transport) Close(code uint64, reason string) error {
	return t.conn.CloseWithError(quic.ApplicationErrorCode(code), reason)
}

var _ session.Transport = (*Transport)(nil)
