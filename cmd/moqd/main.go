// Command moqd is a minimal MoQ Transport demo server: it publishes a single
// synthetic "clock" track and serves any client that subscribes to it,
// wiring session.Session directly to transport/quicgo end to end. It is
// stripped to the essentials the way examples/minimal-server is for the
// teacher's own stack (cmd/prism/main.go).
//
// Usage:
//
//	go run ./cmd/moqd
//	(connect with any draft-ietf-moq-transport-14 client to the printed addr)
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/moqsession/moq/internal/certs"
	"github.com/moqsession/moq/transport/quicgo"
)

func main() {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	addr := envOr("MOQD_ADDR", ":4443")

	slog.Info("generating self-signed certificate")
	cert, err := certs.Generate(14 * 24 * time.Hour)
	if err != nil {
		slog.Error("failed to generate cert", "error", err)
		os.Exit(1)
	}
	slog.Info("certificate generated",
		"fingerprint", cert.FingerprintBase64(),
		"expires", cert.NotAfter.Format(time.RFC3339),
	)

	ln, err := quicgo.Listen(addr, cert.TLSCert)
	if err != nil {
		slog.Error("failed to listen", "addr", addr, "error", err)
		os.Exit(1)
	}
	defer ln.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	slog.Info("moqd listening", "addr", ln.Addr(), "cert_hash", cert.FingerprintBase64())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return acceptLoop(ctx, ln) })
	g.Go(func() error {
		<-ctx.Done()
		return ln.Close()
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

// acceptLoop accepts connections until ctx is cancelled, handling each on
// its own goroutine so a slow or misbehaving client never blocks new
// connections.
func acceptLoop(ctx context.Context, ln *quicgo.Listener) error {
	for {
		tr, err := ln.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		connID := uuid.NewString()
		go serveConn(ctx, connID, tr)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
