package wire

import (
	"errors"
	"io"

	"github.com/quic-go/quic-go/quicvarint"
)

// ErrTruncated is returned when a decode operation runs out of input before
// it can read a complete field.
var ErrTruncated = errors.New("wire: truncated")

// AppendVarint appends the QUIC variable-length integer encoding of v to buf,
// using the minimal width (1, 2, 4, or 8 bytes) that represents v.
func AppendVarint(buf []byte, v uint64) []byte {
	return quicvarint.Append(buf, v)
}

// VarintLen returns the number of bytes AppendVarint would write for v.
func VarintLen(v uint64) int {
	return quicvarint.Len(v)
}

// AppendByteString appends a length-prefixed byte string (VarInt length,
// then the raw bytes) to buf.
func AppendByteString(buf []byte, data []byte) []byte {
	buf = AppendVarint(buf, uint64(len(data)))
	return append(buf, data...)
}

// Reader decodes the primitive wire types from a byte slice, tracking a
// cursor position so callers can compose decodes sequentially.
type Reader struct {
	data []byte
	pos  int
}

// NewReader returns a Reader over data, positioned at offset 0.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Pos returns the number of bytes consumed so far.
func (r *Reader) Pos() int { return r.pos }

// Remaining returns the number of unconsumed bytes.
func (r *Reader) Remaining() int { return len(r.data) - r.pos }

// Varint decodes a QUIC variable-length integer, advancing the cursor by the
// number of bytes consumed. Reports ErrTruncated if fewer bytes remain than
// the encoded width requires.
func (r *Reader) Varint() (uint64, error) {
	if r.pos >= len(r.data) {
		return 0, ErrTruncated
	}
	val, n, err := quicvarint.Parse(r.data[r.pos:])
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, ErrTruncated
		}
		return 0, err
	}
	r.pos += n
	return val, nil
}

// Byte reads a single raw byte.
func (r *Reader) Byte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, ErrTruncated
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

// RawBytes reads exactly n raw bytes without a length prefix.
func (r *Reader) RawBytes(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.data) {
		return nil, ErrTruncated
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// ByteString decodes a VarInt-length-prefixed byte string.
func (r *Reader) ByteString() ([]byte, error) {
	n, err := r.Varint()
	if err != nil {
		return nil, err
	}
	return r.RawBytes(int(n))
}
