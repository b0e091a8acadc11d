package session

import (
	"errors"
	"testing"
)

func TestCorrelationTableResolve(t *testing.T) {
	t.Parallel()
	tbl := newCorrelationTable()
	p := tbl.register(4)

	done := make(chan struct{})
	var gotResp any
	var gotErr error
	go func() {
		gotResp, gotErr = p.wait()
		close(done)
	}()

	if !tbl.resolve(4, "ok") {
		t.Fatal("resolve returned false for a registered ID")
	}
	<-done
	if gotErr != nil {
		t.Fatalf("err = %v, want nil", gotErr)
	}
	if gotResp != "ok" {
		t.Fatalf("resp = %v, want ok", gotResp)
	}
}

func TestCorrelationTableReject(t *testing.T) {
	t.Parallel()
	tbl := newCorrelationTable()
	p := tbl.register(6)

	wantErr := &PeerError{ErrorCode: 1, ReasonPhrase: "nope"}
	if !tbl.reject(6, wantErr) {
		t.Fatal("reject returned false for a registered ID")
	}
	_, err := p.wait()
	if !errors.Is(err, wantErr) && err != wantErr {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
}

func TestCorrelationTableResolveUnknownIDIsNoop(t *testing.T) {
	t.Parallel()
	tbl := newCorrelationTable()
	if tbl.resolve(99, "x") {
		t.Fatal("resolve returned true for an unregistered ID")
	}
	if tbl.reject(99, errors.New("x")) {
		t.Fatal("reject returned true for an unregistered ID")
	}
}

func TestCorrelationTableRegisterDuplicatePanics(t *testing.T) {
	t.Parallel()
	tbl := newCorrelationTable()
	tbl.register(2)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate registration")
		}
	}()
	tbl.register(2)
}

func TestCorrelationTableCloseAll(t *testing.T) {
	t.Parallel()
	tbl := newCorrelationTable()
	p1 := tbl.register(0)
	p2 := tbl.register(2)

	tbl.closeAll(ErrConnectionClosed)

	if _, err := p1.wait(); !errors.Is(err, ErrConnectionClosed) {
		t.Fatalf("p1 err = %v", err)
	}
	if _, err := p2.wait(); !errors.Is(err, ErrConnectionClosed) {
		t.Fatalf("p2 err = %v", err)
	}
	// closeAll empties the table: a later resolve for an ID that was pending
	// finds nothing and does not close its channel a second time.
	if tbl.resolve(0, "x") {
		t.Fatal("resolve succeeded after closeAll cleared the table")
	}
}
