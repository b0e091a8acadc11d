// Package wire implements the primitive wire types shared by every MoQ
// Transport control and data message: QUIC variable-length integers,
// length-prefixed byte strings, ordered tuples of byte strings, group/object
// locations, and key-value parameter lists.
//
// This package contains no message-specific framing; that lives in
// [github.com/moqsession/moq/internal/moq].
package wire
