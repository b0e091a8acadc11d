package wire

import (
	"bytes"
	"testing"
)

func TestVarintRoundTripEdges(t *testing.T) {
	t.Parallel()

	cases := []struct {
		val     uint64
		wantLen int
	}{
		{0, 1},
		{63, 1},
		{64, 2},
		{16383, 2},
		{16384, 4},
		{1073741823, 4},
		{1073741824, 8},
		{4611686018427387903, 8},
	}

	for _, c := range cases {
		encoded := AppendVarint(nil, c.val)
		if len(encoded) != c.wantLen {
			t.Fatalf("AppendVarint(%d) len = %d, want %d", c.val, len(encoded), c.wantLen)
		}
		if n := VarintLen(c.val); n != c.wantLen {
			t.Fatalf("VarintLen(%d) = %d, want %d", c.val, n, c.wantLen)
		}

		r := NewReader(encoded)
		got, err := r.Varint()
		if err != nil {
			t.Fatalf("Varint(%d): %v", c.val, err)
		}
		if got != c.val {
			t.Fatalf("decoded = %d, want %d", got, c.val)
		}
		if r.Remaining() != 0 {
			t.Fatalf("remaining = %d, want 0", r.Remaining())
		}
	}
}

func TestVarintTruncatedReportsZeroConsumed(t *testing.T) {
	t.Parallel()

	// A 2-byte varint (top bits 01) missing its second byte.
	encoded := AppendVarint(nil, 64)
	r := NewReader(encoded[:1])
	_, err := r.Varint()
	if err != ErrTruncated {
		t.Fatalf("err = %v, want ErrTruncated", err)
	}
	if r.Pos() != 0 {
		t.Fatalf("pos = %d, want 0 on truncated read", r.Pos())
	}
}

func TestByteStringRoundTrip(t *testing.T) {
	t.Parallel()

	data := []byte("hello world")
	encoded := AppendByteString(nil, data)

	r := NewReader(encoded)
	got, err := r.ByteString()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("got %q, want %q", got, data)
	}
}

func TestByteStringEmpty(t *testing.T) {
	t.Parallel()

	encoded := AppendByteString(nil, nil)
	r := NewReader(encoded)
	got, err := r.ByteString()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("got %q, want empty", got)
	}
}

func TestTupleRoundTrip(t *testing.T) {
	t.Parallel()

	tuple := Tuple{[]byte("prism"), []byte("mystream")}
	encoded := AppendTuple(nil, tuple)

	r := NewReader(encoded)
	decoded, err := r.Tuple()
	if err != nil {
		t.Fatal(err)
	}
	if !tuple.Equal(decoded) {
		t.Fatalf("decoded = %v, want %v", decoded, tuple)
	}
}

func TestTupleEmpty(t *testing.T) {
	t.Parallel()

	encoded := AppendTuple(nil, nil)
	r := NewReader(encoded)
	decoded, err := r.Tuple()
	if err != nil {
		t.Fatal(err)
	}
	if len(decoded) != 0 {
		t.Fatalf("decoded = %v, want empty", decoded)
	}
}

func TestTupleHasPrefix(t *testing.T) {
	t.Parallel()

	full := Tuple{[]byte("live"), []byte("cam1")}
	prefix := Tuple{[]byte("live")}
	if !full.HasPrefix(prefix) {
		t.Fatal("expected HasPrefix to match")
	}
	if full.HasPrefix(Tuple{[]byte("vod")}) {
		t.Fatal("expected HasPrefix to reject mismatched element")
	}
	if prefix.HasPrefix(full) {
		t.Fatal("expected HasPrefix to reject a longer prefix than the tuple")
	}
}

func TestLocationRoundTripAndOrder(t *testing.T) {
	t.Parallel()

	loc := Location{Group: 11, Object: 5}
	encoded := AppendLocation(nil, loc)

	r := NewReader(encoded)
	decoded, err := r.Location()
	if err != nil {
		t.Fatal(err)
	}
	if decoded != loc {
		t.Fatalf("decoded = %+v, want %+v", decoded, loc)
	}

	if !(Location{Group: 1, Object: 9}).Less(Location{Group: 2, Object: 0}) {
		t.Fatal("expected (1,9) < (2,0)")
	}
	if !(Location{Group: 5, Object: 1}).Less(Location{Group: 5, Object: 2}) {
		t.Fatal("expected (5,1) < (5,2)")
	}
}

func TestLocationZero(t *testing.T) {
	t.Parallel()

	encoded := AppendLocation(nil, Location{})
	r := NewReader(encoded)
	decoded, err := r.Location()
	if err != nil {
		t.Fatal(err)
	}
	if decoded != (Location{}) {
		t.Fatalf("decoded = %+v, want zero", decoded)
	}
}

func TestParameterListRoundTrip(t *testing.T) {
	t.Parallel()

	params := ParameterList{
		NewBytesParameter(0x01, []byte("/moq")),
		NewNumberParameter(0x02, 100),
		NewBytesParameter(0xFF, []byte{1, 2, 3}), // unknown odd type, preserved opaquely
	}
	encoded := AppendParameterList(nil, params)

	r := NewReader(encoded)
	decoded, err := r.ParameterList()
	if err != nil {
		t.Fatal(err)
	}
	if len(decoded) != 3 {
		t.Fatalf("got %d params, want 3", len(decoded))
	}

	p, ok := decoded.Get(0x02)
	if !ok || p.Number != 100 {
		t.Fatalf("param 0x02 = %+v, ok=%v", p, ok)
	}

	unknown, ok := decoded.Get(0xFF)
	if !ok || !bytes.Equal(unknown.Bytes, []byte{1, 2, 3}) {
		t.Fatalf("unknown param not preserved: %+v, ok=%v", unknown, ok)
	}
}

func TestParameterListDuplicateFirstWins(t *testing.T) {
	t.Parallel()

	params := ParameterList{
		NewNumberParameter(0x02, 1),
		NewNumberParameter(0x02, 2),
	}
	encoded := AppendParameterList(nil, params)

	r := NewReader(encoded)
	decoded, err := r.ParameterList()
	if err != nil {
		t.Fatal(err)
	}
	p, ok := decoded.Get(0x02)
	if !ok || p.Number != 1 {
		t.Fatalf("Get(0x02) = %+v, want Number=1 (first occurrence)", p)
	}
}

func TestParameterListEmpty(t *testing.T) {
	t.Parallel()

	encoded := AppendParameterList(nil, nil)
	r := NewReader(encoded)
	decoded, err := r.ParameterList()
	if err != nil {
		t.Fatal(err)
	}
	if len(decoded) != 0 {
		t.Fatalf("decoded = %v, want empty", decoded)
	}
}

func TestReaderEOF(t *testing.T) {
	t.Parallel()

	r := NewReader(nil)
	if _, err := r.Varint(); err != ErrTruncated {
		t.Fatalf("Varint err = %v, want ErrTruncated", err)
	}
	if _, err := r.Byte(); err != ErrTruncated {
		t.Fatalf("Byte err = %v, want ErrTruncated", err)
	}
	if _, err := r.ByteString(); err != ErrTruncated {
		t.Fatalf("ByteString err = %v, want ErrTruncated", err)
	}
}
