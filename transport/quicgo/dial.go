package quicgo

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/quic-go/quic-go"
)

// ALPN is the application protocol negotiated for MoQ Transport connections,
// per the draft's ALPN registration.
const ALPN = "moq-00"

func quicConfig() *quic.Config {
	return &quic.Config{
		MaxIdleTimeout: 30 * time.Second,
		Allow0RTT:      true,
	}
}

// Dial opens a QUIC connection to addr and wraps it as a client-side
// Transport. tlsConf should set ServerName/InsecureSkipVerify as the caller
// requires; ALPN is set here regardless of what the caller passed.
func Dial(ctx context.Context, addr string, tlsConf *tls.Config) (*Transport, error) {
	cfg := cloneTLSConfig(tlsConf)
	conn, err := quic.DialAddr(ctx, addr, cfg, quicConfig())
	if err != nil {
		return nil, fmt.Errorf("quicgo: dial %s: %w", addr, err)
	}
	return New(conn, true), nil
}

func cloneTLSConfig(base *tls.Config) *tls.Config {
	var cfg *tls.Config
	if base != nil {
		cfg = base.Clone()
	} else {
		cfg = &tls.Config{}
	}
	cfg.NextProtos = []string{ALPN}
	return cfg
}
