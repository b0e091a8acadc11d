package session

import (
	"time"

	"github.com/moqsession/moq/internal/moq"
)

// Role determines which side of the setup handshake a Session plays and,
// per spec.md §4.4, which parity its request IDs start from: the connection
// initiator allocates even IDs starting at 0, the acceptor odd IDs starting
// at 1.
type Role int

const (
	// RoleClient sends CLIENT_SETUP first and owns even request IDs.
	RoleClient Role = iota
	// RoleServer waits for CLIENT_SETUP, then sends SERVER_SETUP, and owns
	// odd request IDs.
	RoleServer
)

func (r Role) String() string {
	if r == RoleServer {
		return "server"
	}
	return "client"
}

// defaultObjectBufferSize bounds each subscription's object channel before
// the drop-oldest backpressure policy (spec.md §5) kicks in.
const defaultObjectBufferSize = 256

// Config holds the construction-time options for a Session, following the
// teacher's plain-struct configuration convention (no flags or file
// format; see MoQSessionConfig / ServerConfig in the reference material).
type Config struct {
	// Role is required.
	Role Role

	// SupportedVersions offered in CLIENT_SETUP, or accepted in
	// SERVER_SETUP. Defaults to []uint64{moq.Version} (draft-14).
	SupportedVersions []uint64

	// Path is sent as the PATH setup parameter by a RoleClient session, and
	// ignored by a RoleServer session (the server reads it off the inbound
	// CLIENT_SETUP instead).
	Path string

	// SetupTimeout bounds the setup handshake. Defaults to 10s.
	SetupTimeout time.Duration

	// MaxRequestID is the locally advertised request-ID ceiling, carried in
	// the MAX_REQUEST_ID setup parameter when non-zero. Zero means
	// unbounded except for the 2^62 hard limit.
	MaxRequestID uint64

	// ObjectBufferSize overrides defaultObjectBufferSize per subscription.
	ObjectBufferSize int
}

func (c *Config) setDefaults() {
	if len(c.SupportedVersions) == 0 {
		c.SupportedVersions = []uint64{moq.Version}
	}
	if c.SetupTimeout <= 0 {
		c.SetupTimeout = 10 * time.Second
	}
	if c.ObjectBufferSize <= 0 {
		c.ObjectBufferSize = defaultObjectBufferSize
	}
}
