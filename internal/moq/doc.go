// Package moq implements the MoQ Transport (draft-ietf-moq-transport-14)
// wire protocol: control message framing, per-type control message codecs,
// and the data-stream codec for SUBGROUP_HEADER-framed object streams.
//
// This package contains no session or registry logic; those live in
// [github.com/moqsession/moq/session]. It depends only on the primitive
// wire types in [github.com/moqsession/moq/internal/wire].
package moq
