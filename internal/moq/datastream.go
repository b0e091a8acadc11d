package moq

import (
	"errors"
	"fmt"

	"github.com/moqsession/moq/internal/wire"
)

// StreamTypeSubgroup is the preamble byte identifying a unidirectional data
// stream as carrying one SUBGROUP_HEADER followed by object records.
const StreamTypeSubgroup uint64 = 0x10

// Object status codes (draft-ietf-moq-transport-14 §9.4.1). Any value not
// listed here is surfaced to the subscription as-is; the parser does not
// reject unrecognized status codes.
const (
	ObjectStatusNormal             uint64 = 0x0
	ObjectStatusObjectDoesNotExist uint64 = 0x1
	ObjectStatusEndOfGroup         uint64 = 0x3
	ObjectStatusEndOfTrack         uint64 = 0x4
)

// ErrNeedMore signals that a data-stream chunk did not contain enough bytes
// to complete the next field; the caller should feed more bytes and retry.
var ErrNeedMore = errors.New("moq: need more data")

// ErrOutOfOrderObject reports a subgroup whose object_ids are not strictly
// increasing. It is a per-stream protocol error, not fatal to the session.
var ErrOutOfOrderObject = errors.New("moq: object_id did not increase")

// SubgroupHeader is the preamble written once at the start of every data
// stream.
type SubgroupHeader struct {
	TrackAlias uint64
	GroupID    uint64
	SubgroupID uint64
	Priority   byte
}

// AppendSubgroupHeader appends the wire encoding of a SUBGROUP_HEADER to buf.
func AppendSubgroupHeader(buf []byte, h SubgroupHeader) []byte {
	buf = wire.AppendVarint(buf, StreamTypeSubgroup)
	buf = wire.AppendVarint(buf, h.TrackAlias)
	buf = wire.AppendVarint(buf, h.GroupID)
	buf = wire.AppendVarint(buf, h.SubgroupID)
	buf = append(buf, h.Priority)
	return buf
}

// Object is one object record on a subgroup stream.
type Object struct {
	ObjectID   uint64
	Extensions wire.ParameterList
	Status     uint64
	Payload    []byte
}

// AppendObject appends the wire encoding of an object record to buf.
func AppendObject(buf []byte, o Object) []byte {
	buf = wire.AppendVarint(buf, o.ObjectID)
	buf = wire.AppendParameterList(buf, o.Extensions)
	buf = wire.AppendVarint(buf, o.Status)
	buf = wire.AppendByteString(buf, o.Payload)
	return buf
}

// StreamParser incrementally decodes a data stream's SUBGROUP_HEADER and
// subsequent object records as bytes arrive in arbitrarily sized chunks. It
// holds no transport-specific state and does not itself read from an
// io.Reader, so the same parser can be driven from any transport's stream
// abstraction.
type StreamParser struct {
	buf          []byte
	headerParsed bool
	header       SubgroupHeader
	lastObjectID uint64
	haveLast     bool
	finished     bool
}

// NewStreamParser returns a parser ready to consume the start of a fresh
// unidirectional data stream.
func NewStreamParser() *StreamParser {
	return &StreamParser{}
}

// Header returns the parsed SUBGROUP_HEADER and whether it has been parsed
// yet.
func (p *StreamParser) Header() (SubgroupHeader, bool) {
	return p.header, p.headerParsed
}

// Feed appends chunk to the parser's internal buffer and returns every
// object that can now be fully decoded. A nil or empty slice of objects with
// a nil error means the buffered bytes form an incomplete field; call Feed
// again with more data. An error wrapping ErrOutOfOrderObject is
// non-fatal: the offending object is still returned so the caller can choose
// to surface or drop it.
func (p *StreamParser) Feed(chunk []byte) ([]Object, error) {
	if p.finished {
		return nil, fmt.Errorf("moq: Feed called on finished stream parser")
	}
	if len(chunk) > 0 {
		p.buf = append(p.buf, chunk...)
	}

	var objects []Object
	var orderErr error

	for {
		if !p.headerParsed {
			h, n, err := tryParseSubgroupHeader(p.buf)
			if err != nil {
				if errors.Is(err, ErrNeedMore) {
					return objects, orderErr
				}
				return objects, err
			}
			p.header = h
			p.headerParsed = true
			p.buf = p.buf[n:]
			continue
		}

		obj, n, err := tryParseObject(p.buf)
		if err != nil {
			if errors.Is(err, ErrNeedMore) {
				return objects, orderErr
			}
			return objects, err
		}
		p.buf = p.buf[n:]

		if p.haveLast && obj.ObjectID <= p.lastObjectID {
			if orderErr == nil {
				orderErr = fmt.Errorf("%w: stream subgroup=%d saw %d after %d", ErrOutOfOrderObject, p.header.SubgroupID, obj.ObjectID, p.lastObjectID)
			}
		}
		p.lastObjectID = obj.ObjectID
		p.haveLast = true

		objects = append(objects, obj)
	}
}

// Finish marks the stream as closed by the transport and reports whether
// unconsumed residual bytes remain (a TruncatedTail, logged by the caller
// but not fatal).
func (p *StreamParser) Finish() (truncatedTail bool) {
	p.finished = true
	return len(p.buf) > 0
}

func tryParseSubgroupHeader(data []byte) (SubgroupHeader, int, error) {
	r := wire.NewReader(data)

	typ, err := r.Varint()
	if err != nil {
		return SubgroupHeader{}, 0, ErrNeedMore
	}
	if typ != StreamTypeSubgroup {
		return SubgroupHeader{}, 0, &MalformedMessageError{
			Kind: "SUBGROUP_HEADER", Offset: 0,
			Err: fmt.Errorf("unexpected stream type 0x%x", typ),
		}
	}

	var h SubgroupHeader
	if h.TrackAlias, err = r.Varint(); err != nil {
		return SubgroupHeader{}, 0, ErrNeedMore
	}
	if h.GroupID, err = r.Varint(); err != nil {
		return SubgroupHeader{}, 0, ErrNeedMore
	}
	if h.SubgroupID, err = r.Varint(); err != nil {
		return SubgroupHeader{}, 0, ErrNeedMore
	}
	if h.Priority, err = r.Byte(); err != nil {
		return SubgroupHeader{}, 0, ErrNeedMore
	}
	return h, r.Pos(), nil
}

func tryParseObject(data []byte) (Object, int, error) {
	r := wire.NewReader(data)

	var o Object
	id, err := r.Varint()
	if err != nil {
		return Object{}, 0, ErrNeedMore
	}
	o.ObjectID = id

	ext, err := r.ParameterList()
	if err != nil {
		return Object{}, 0, ErrNeedMore
	}
	o.Extensions = ext

	status, err := r.Varint()
	if err != nil {
		return Object{}, 0, ErrNeedMore
	}
	o.Status = status

	payload, err := r.ByteString()
	if err != nil {
		return Object{}, 0, ErrNeedMore
	}
	o.Payload = payload

	return o, r.Pos(), nil
}
