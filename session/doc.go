// Package session implements the MoQ Transport session engine: the setup
// handshake, the steady-state control dispatcher, the request-ID allocator
// and correlation table, the subscriber and publisher registries, namespace
// announcement and discovery, and the event API an embedding application
// consumes.
//
// This package contains no wire-format knowledge beyond what it needs to
// call into [github.com/moqsession/moq] and no transport knowledge beyond
// the [Transport] interface; a concrete QUIC transport lives in
// [github.com/moqsession/moq/transport/quicgo].
package session
