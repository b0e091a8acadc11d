package wire

// Tuple is a count-prefixed ordered sequence of byte strings, used on the
// wire for namespaces and namespace prefixes.
type Tuple [][]byte

// AppendTuple appends t's wire encoding (VarInt count, then each element as
// a length-prefixed byte string) to buf.
func AppendTuple(buf []byte, t Tuple) []byte {
	buf = AppendVarint(buf, uint64(len(t)))
	for _, elem := range t {
		buf = AppendByteString(buf, elem)
	}
	return buf
}

// Tuple decodes a count-prefixed tuple of byte strings. A count of 0 yields
// a non-nil empty Tuple.
func (r *Reader) Tuple() (Tuple, error) {
	count, err := r.Varint()
	if err != nil {
		return nil, err
	}
	t := make(Tuple, count)
	for i := range t {
		elem, err := r.ByteString()
		if err != nil {
			return nil, err
		}
		t[i] = elem
	}
	return t, nil
}

// Equal reports whether two tuples are bytewise identical, element for
// element, with no normalization.
func (t Tuple) Equal(other Tuple) bool {
	if len(t) != len(other) {
		return false
	}
	for i := range t {
		if string(t[i]) != string(other[i]) {
			return false
		}
	}
	return true
}

// HasPrefix reports whether t begins with the elements of prefix, in order.
func (t Tuple) HasPrefix(prefix Tuple) bool {
	if len(prefix) > len(t) {
		return false
	}
	for i := range prefix {
		if string(t[i]) != string(prefix[i]) {
			return false
		}
	}
	return true
}

// String renders the tuple as a slash-joined string for logging only; it is
// not a wire format.
func (t Tuple) String() string {
	out := make([]byte, 0, 32)
	for i, elem := range t {
		if i > 0 {
			out = append(out, '/')
		}
		out = append(out, elem...)
	}
	return string(out)
}

// Location is an ordered (group, object) pair. The total order over
// locations is lexicographic on (Group, Object).
type Location struct {
	Group  uint64
	Object uint64
}

// AppendLocation appends l's wire encoding (group then object, each a
// VarInt) to buf.
func AppendLocation(buf []byte, l Location) []byte {
	buf = AppendVarint(buf, l.Group)
	buf = AppendVarint(buf, l.Object)
	return buf
}

// Location decodes a (group, object) pair.
func (r *Reader) Location() (Location, error) {
	group, err := r.Varint()
	if err != nil {
		return Location{}, err
	}
	object, err := r.Varint()
	if err != nil {
		return Location{}, err
	}
	return Location{Group: group, Object: object}, nil
}

// Less reports whether l sorts before other in the location total order.
func (l Location) Less(other Location) bool {
	if l.Group != other.Group {
		return l.Group < other.Group
	}
	return l.Object < other.Object
}

// Parameter is a single (type, value) entry in a parameter list. Odd types
// carry a length-prefixed byte string in Bytes; even types carry a VarInt
// in Number. IsBytes records which form was decoded so Append can round-trip
// unknown parameters opaquely.
type Parameter struct {
	Type    uint64
	IsBytes bool
	Bytes   []byte
	Number  uint64
}

// NewBytesParameter constructs an odd-typed (byte string) parameter.
func NewBytesParameter(typ uint64, value []byte) Parameter {
	return Parameter{Type: typ, IsBytes: true, Bytes: value}
}

// NewNumberParameter constructs an even-typed (VarInt) parameter.
func NewNumberParameter(typ uint64, value uint64) Parameter {
	return Parameter{Type: typ, Number: value}
}

// ParameterList is an ordered list of parameters as they appeared on the
// wire. Order is not semantically significant per the spec; duplicates are
// preserved so Get's first-occurrence-wins behavior matches the decode.
type ParameterList []Parameter

// AppendParameterList appends the wire encoding (VarInt count, then each
// parameter as type‖payload, payload being a VarInt for even types and a
// length-prefixed byte string for odd types) to buf.
func AppendParameterList(buf []byte, params ParameterList) []byte {
	buf = AppendVarint(buf, uint64(len(params)))
	for _, p := range params {
		buf = AppendVarint(buf, p.Type)
		if p.Type%2 == 1 {
			buf = AppendByteString(buf, p.Bytes)
		} else {
			buf = AppendVarint(buf, p.Number)
		}
	}
	return buf
}

// ParameterList decodes a count-prefixed parameter list. The parity of each
// key's type determines whether its value is read as a VarInt (even) or a
// length-prefixed byte string (odd), per the wire format.
func (r *Reader) ParameterList() (ParameterList, error) {
	count, err := r.Varint()
	if err != nil {
		return nil, err
	}
	params := make(ParameterList, count)
	for i := range params {
		typ, err := r.Varint()
		if err != nil {
			return nil, err
		}
		if typ%2 == 1 {
			val, err := r.ByteString()
			if err != nil {
				return nil, err
			}
			params[i] = Parameter{Type: typ, IsBytes: true, Bytes: val}
		} else {
			val, err := r.Varint()
			if err != nil {
				return nil, err
			}
			params[i] = Parameter{Type: typ, Number: val}
		}
	}
	return params, nil
}

// Get returns the first parameter with the given type, matching the
// first-occurrence-wins rule for duplicate keys.
func (params ParameterList) Get(typ uint64) (Parameter, bool) {
	for _, p := range params {
		if p.Type == typ {
			return p, true
		}
	}
	return Parameter{}, false
}
