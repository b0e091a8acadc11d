package quicgo

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/quic-go/quic-go"
)

// Listener accepts incoming QUIC connections and wraps each as a
// server-side Transport, mirroring the teacher's pattern of one goroutine
// per accepted webtransport.Session (see distribution.Server.Start /
// handleMoQ) but at the raw quic.Listener layer instead of HTTP/3.
type Listener struct {
	ln *quic.Listener
}

// Listen binds addr and returns a Listener presenting the MoQ ALPN.
func Listen(addr string, tlsCert tls.Certificate) (*Listener, error) {
	tlsConf := &tls.Config{
		Certificates: []tls.Certificate{tlsCert},
		NextProtos:   []string{ALPN},
	}
	ln, err := quic.ListenAddr(addr, tlsConf, quicConfig())
	if err != nil {
		return nil, fmt.Errorf("quicgo: listen %s: %w", addr, err)
	}
	return &Listener{ln: ln}, nil
}

// Accept blocks until a new connection arrives, or ctx is cancelled, and
// returns it wrapped as a server-side Transport.
func (l *Listener) Accept(ctx context.Context) (*Transport, error) {
	conn, err := l.ln.Accept(ctx)
	if err != nil {
		return nil, fmt.Errorf("quicgo: accept: %w", err)
	}
	return New(conn, false), nil
}

// Addr returns the listener's local network address.
func (l *Listener) Addr() string {
	return l.ln.Addr().String()
}

// Close stops accepting new connections.
func (l *Listener) Close() error {
	return l.ln.Close()
}
