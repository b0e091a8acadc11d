package quicgo

import (
	"context"
	"crypto/tls"
	"io"
	"testing"
	"time"

	"github.com/moqsession/moq/internal/certs"
)

func TestDialListenRoundTrip(t *testing.T) {
	t.Parallel()

	cert, err := certs.Generate(time.Hour)
	if err != nil {
		t.Fatalf("certs.Generate: %v", err)
	}

	ln, err := Listen("127.0.0.1:0", cert.TLSCert)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	serverTr := make(chan *Transport, 1)
	serverErr := make(chan error, 1)
	go func() {
		tr, err := ln.Accept(ctx)
		if err != nil {
			serverErr <- err
			return
		}
		serverTr <- tr
	}()

	clientTr, err := Dial(ctx, ln.Addr(), &tls.Config{InsecureSkipVerify: true})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}

	var server *Transport
	select {
	case server = <-serverTr:
	case err := <-serverErr:
		t.Fatalf("Accept: %v", err)
	case <-ctx.Done():
		t.Fatal("timed out accepting connection")
	}

	clientDone := make(chan struct{})
	var clientControl io.ReadWriteCloser
	go func() {
		clientControl = clientTr.ControlStream()
		close(clientDone)
	}()

	serverControl := server.ControlStream()
	<-clientDone

	const msg = "hello control stream"
	if _, err := clientControl.Write([]byte(msg)); err != nil {
		t.Fatalf("client write: %v", err)
	}
	buf := make([]byte, len(msg))
	if _, err := io.ReadFull(serverControl, buf); err != nil {
		t.Fatalf("server read: %v", err)
	}
	if string(buf) != msg {
		t.Fatalf("got %q, want %q", buf, msg)
	}

	clientControl.Close()
	serverControl.Close()
	clientTr.Close(0, "test done")
	server.Close(0, "test done")
}

func TestDataStreamRoundTrip(t *testing.T) {
	t.Parallel()

	cert, err := certs.Generate(time.Hour)
	if err != nil {
		t.Fatalf("certs.Generate: %v", err)
	}
	ln, err := Listen("127.0.0.1:0", cert.TLSCert)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	serverTr := make(chan *Transport, 1)
	go func() {
		tr, err := ln.Accept(ctx)
		if err == nil {
			serverTr <- tr
		}
	}()
	clientTr, err := Dial(ctx, ln.Addr(), &tls.Config{InsecureSkipVerify: true})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	server := <-serverTr

	ws, err := clientTr.OpenUniStream(ctx)
	if err != nil {
		t.Fatalf("OpenUniStream: %v", err)
	}
	go func() {
		ws.Write([]byte("subgroup payload"))
		ws.Close()
	}()

	rs, err := server.AcceptUniStream(ctx)
	if err != nil {
		t.Fatalf("AcceptUniStream: %v", err)
	}
	data, err := io.ReadAll(rs)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(data) != "subgroup payload" {
		t.Fatalf("got %q", data)
	}

	clientTr.Close(0, "test done")
	server.Close(0, "test done")
}
