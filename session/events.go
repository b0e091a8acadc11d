package session

import "github.com/moqsession/moq/internal/wire"

// ConnectionState names the session lifecycle states from spec.md §2:
// handshaking, established, draining, and closed.
type ConnectionState int

const (
	StateHandshaking ConnectionState = iota
	StateEstablished
	StateDraining
	StateClosed
)

func (s ConnectionState) String() string {
	switch s {
	case StateHandshaking:
		return "handshaking"
	case StateEstablished:
		return "established"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ConnectionStateChange is delivered on the connection-state event sequence
// each time the session transitions.
type ConnectionStateChange struct {
	State ConnectionState
	// Err is set when the transition was caused by a failure (setup
	// timeout, protocol violation, transport error). Nil for graceful
	// transitions.
	Err error
}

// GoAwayEvent is delivered once when the peer sends GOAWAY.
type GoAwayEvent struct {
	LastRequestID uint64
	NewURI        string
	HasNewURI     bool
}

// NamespaceAnnouncement is delivered on the incoming-publishes event
// sequence when a peer sends PUBLISH_NAMESPACE, and again (with Done set)
// when the peer sends PUBLISH_NAMESPACE_DONE.
type NamespaceAnnouncement struct {
	Namespace    wire.Tuple
	Done         bool
	StatusCode   uint64
	ReasonPhrase string
}

// eventBus fans out session lifecycle events to whatever bounded channels
// the embedding application is draining, using the same oldest-drop
// discipline as object delivery so a slow consumer cannot stall the control
// dispatch loop.
type eventBus struct {
	connectionState chan ConnectionStateChange
	incomingSubs    chan *IncomingSubscribe
	incomingPubs    chan NamespaceAnnouncement
	goAway          chan GoAwayEvent
}

func newEventBus() *eventBus {
	return &eventBus{
		connectionState: make(chan ConnectionStateChange, 8),
		incomingSubs:    make(chan *IncomingSubscribe, 32),
		incomingPubs:    make(chan NamespaceAnnouncement, 32),
		goAway:          make(chan GoAwayEvent, 1),
	}
}

func sendOrDropState(ch chan ConnectionStateChange, ev ConnectionStateChange) {
	select {
	case ch <- ev:
	default:
		<-ch
		ch <- ev
	}
}

func sendOrDropSub(ch chan *IncomingSubscribe, ev *IncomingSubscribe) {
	select {
	case ch <- ev:
	default:
		<-ch
		ch <- ev
	}
}

func sendOrDropPub(ch chan NamespaceAnnouncement, ev NamespaceAnnouncement) {
	select {
	case ch <- ev:
	default:
		<-ch
		ch <- ev
	}
}

func (b *eventBus) closeAll() {
	close(b.connectionState)
	close(b.incomingSubs)
	close(b.incomingPubs)
	close(b.goAway)
}
