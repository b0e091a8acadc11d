package moq

import "github.com/moqsession/moq/internal/wire"

// Message type codes (draft-ietf-moq-transport-14 message table).
const (
	TypeSubscribeUpdate      uint64 = 0x02
	TypeSubscribe            uint64 = 0x03
	TypeSubscribeOK          uint64 = 0x04
	TypeSubscribeError       uint64 = 0x05
	TypePublishNamespace     uint64 = 0x06
	TypePublishNamespaceOK   uint64 = 0x07
	TypePublishNamespaceErr  uint64 = 0x08
	TypePublishNamespaceDone uint64 = 0x09
	TypeUnsubscribe          uint64 = 0x0a
	TypePublishDone          uint64 = 0x0b
	TypeGoAway               uint64 = 0x10
	TypeSubscribeNamespace   uint64 = 0x11
	TypeSubscribeNamespaceOK uint64 = 0x12
	TypeUnsubscribeNamespace uint64 = 0x14
	TypeMaxRequestID         uint64 = 0x15 // flow control; not in the draft-14 table but widely implemented
	TypeFetch                uint64 = 0x16
	TypeFetchCancel          uint64 = 0x17
	TypeClientSetup          uint64 = 0x20
	TypeServerSetup          uint64 = 0x21
)

// DraftVersion is the moq-transport draft number this codec implements.
const DraftVersion = 14

// Version is the wire encoding of DraftVersion: 0xff000000 + draft number.
const Version uint64 = 0xff000000 + DraftVersion

// EncodeDraftVersion returns the wire encoding for an arbitrary draft number,
// per spec.md §6: "draft N is 0xff000000 + N".
func EncodeDraftVersion(n uint64) uint64 {
	return 0xff000000 + n
}

// CLIENT_SETUP / SERVER_SETUP parameter keys.
const (
	ParamPath          uint64 = 0x01 // odd -> length-prefixed byte string
	ParamMaxRequestID  uint64 = 0x02 // even -> varint value
	ParamMaxTrackAlias uint64 = 0x04 // even -> varint value
)

// SUBSCRIBE filter types (spec.md §4.2).
const (
	FilterLargestObject  uint64 = 0
	FilterNextGroupStart uint64 = 1
	FilterAbsoluteStart  uint64 = 2
	FilterAbsoluteRange  uint64 = 3
)

// Group order values.
const (
	GroupOrderDefault    byte = 0x00
	GroupOrderAscending  byte = 0x01
	GroupOrderDescending byte = 0x02
)

// ClientSetup is the first message sent by the connection initiator.
type ClientSetup struct {
	SupportedVersions []uint64
	Parameters        wire.ParameterList
}

// Path returns the PATH setup parameter and whether it was present.
func (cs ClientSetup) Path() (string, bool) {
	p, ok := cs.Parameters.Get(ParamPath)
	if !ok {
		return "", false
	}
	return string(p.Bytes), true
}

// MaxRequestID returns the MAX_REQUEST_ID setup parameter, or 0 if absent.
func (cs ClientSetup) MaxRequestID() uint64 {
	p, ok := cs.Parameters.Get(ParamMaxRequestID)
	if !ok {
		return 0
	}
	return p.Number
}

// ServerSetup is the response to CLIENT_SETUP.
type ServerSetup struct {
	SelectedVersion uint64
	Parameters      wire.ParameterList
}

// MaxRequestID returns the MAX_REQUEST_ID setup parameter, or 0 if absent.
func (ss ServerSetup) MaxRequestID() uint64 {
	p, ok := ss.Parameters.Get(ParamMaxRequestID)
	if !ok {
		return 0
	}
	return p.Number
}

// Subscribe requests delivery of a track.
type Subscribe struct {
	RequestID     uint64
	Namespace     wire.Tuple
	TrackName     []byte
	Priority      byte
	GroupOrder    byte
	Forward       byte
	FilterType    uint64
	StartLocation wire.Location // AbsoluteStart, AbsoluteRange
	EndGroup      uint64        // AbsoluteRange only
	Parameters    wire.ParameterList
}

// SubscribeOK confirms a subscription.
type SubscribeOK struct {
	RequestID       uint64
	TrackAlias      uint64
	Expires         uint64
	GroupOrder      byte
	ContentExists   bool
	LargestLocation wire.Location // valid only if ContentExists
	Parameters      wire.ParameterList
}

// SubscribeError rejects a subscription.
type SubscribeError struct {
	RequestID    uint64
	ErrorCode    uint64
	ReasonPhrase string
}

// SubscribeUpdate narrows or updates an active subscription's filter.
type SubscribeUpdate struct {
	RequestID     uint64
	StartLocation wire.Location
	EndGroup      uint64
	Priority      byte
	Forward       byte
	Parameters    wire.ParameterList
}

// Unsubscribe cancels a subscription.
type Unsubscribe struct {
	RequestID uint64
}

// PublishDone retires an accepted publication.
type PublishDone struct {
	RequestID    uint64
	StatusCode   uint64
	StreamCount  uint64
	ReasonPhrase string
}

// PublishNamespace announces a namespace the sender can serve tracks from.
type PublishNamespace struct {
	RequestID  uint64
	Namespace  wire.Tuple
	Parameters wire.ParameterList
}

// PublishNamespaceOK confirms a namespace announcement.
type PublishNamespaceOK struct {
	RequestID  uint64
	Parameters wire.ParameterList
}

// PublishNamespaceError rejects a namespace announcement.
type PublishNamespaceError struct {
	RequestID    uint64
	ErrorCode    uint64
	ReasonPhrase string
}

// PublishNamespaceDone cancels a previously announced namespace.
type PublishNamespaceDone struct {
	Namespace    wire.Tuple
	StatusCode   uint64
	ReasonPhrase string
}

// SubscribeNamespace requests notification of namespace announcements whose
// namespace has the given prefix.
type SubscribeNamespace struct {
	RequestID  uint64
	Prefix     wire.Tuple
	Parameters wire.ParameterList
}

// SubscribeNamespaceOK confirms a namespace subscription.
type SubscribeNamespaceOK struct {
	RequestID uint64
}

// UnsubscribeNamespace cancels a namespace subscription.
type UnsubscribeNamespace struct {
	RequestID uint64
}

// Fetch requests a bounded range of a track's history over a single stream.
type Fetch struct {
	RequestID     uint64
	Namespace     wire.Tuple
	TrackName     []byte
	StartLocation wire.Location
	EndLocation   wire.Location
	Priority      byte
	GroupOrder    byte
	Parameters    wire.ParameterList
}

// FetchCancel cancels a pending or in-progress FETCH.
type FetchCancel struct {
	RequestID uint64
}

// GoAway signals a graceful session shutdown. LastRequestID is always
// present on the wire per spec.md §9's resolved Open Question; its absence
// is a MalformedMessage.
type GoAway struct {
	LastRequestID uint64
	NewURI        []byte
	HasNewURI     bool
}

// MaxRequestIDMsg updates the peer's request-ID quota outside the setup
// handshake.
type MaxRequestIDMsg struct {
	RequestID uint64
}
