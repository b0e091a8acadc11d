package session

import (
	"context"
	"sync"

	"github.com/moqsession/moq/internal/moq"
	"github.com/moqsession/moq/internal/wire"
)

// announcedNamespace tracks one namespace this session has announced via
// PUBLISH_NAMESPACE, kept so Unannounce can remove it and a peer's
// SUBSCRIBE_NAMESPACE prefix can be matched against it.
type announcedNamespace struct {
	requestID uint64
	namespace wire.Tuple
}

// namespaceRegistry implements the supplemented SUBSCRIBE_NAMESPACE
// discovery feature (SPEC_FULL.md): the namespaces this session has
// announced, matched against a prefix when the peer sends
// SUBSCRIBE_NAMESPACE, and the prefixes this session has itself subscribed
// to. Peer prefixes are not stored, so a later Announce is not matched
// against them.
type namespaceRegistry struct {
	mu sync.RWMutex

	// announced holds namespaces this session is publishing, for matching
	// against subscribe-namespace prefixes registered by the peer.
	announced []announcedNamespace

	// watchedPrefixes holds prefixes this session has asked the peer to
	// notify it about, keyed by the SUBSCRIBE_NAMESPACE request ID so
	// UNSUBSCRIBE_NAMESPACE can remove the right one.
	watchedPrefixes map[uint64]wire.Tuple
}

func newNamespaceRegistry() *namespaceRegistry {
	return &namespaceRegistry{watchedPrefixes: make(map[uint64]wire.Tuple)}
}

func (r *namespaceRegistry) addAnnounced(requestID uint64, namespace wire.Tuple) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.announced = append(r.announced, announcedNamespace{requestID: requestID, namespace: namespace})
}

func (r *namespaceRegistry) removeAnnounced(namespace wire.Tuple) (uint64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, a := range r.announced {
		if a.namespace.Equal(namespace) {
			r.announced = append(r.announced[:i], r.announced[i+1:]...)
			return a.requestID, true
		}
	}
	return 0, false
}

// matchingAnnounced returns every announced namespace with prefix as a
// prefix, per spec.md's namespace-as-path-prefix semantics.
func (r *namespaceRegistry) matchingAnnounced(prefix wire.Tuple) []wire.Tuple {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []wire.Tuple
	for _, a := range r.announced {
		if a.namespace.HasPrefix(prefix) {
			out = append(out, a.namespace)
		}
	}
	return out
}

func (r *namespaceRegistry) addWatchedPrefix(requestID uint64, prefix wire.Tuple) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.watchedPrefixes[requestID] = prefix
}

func (r *namespaceRegistry) removeWatchedPrefix(requestID uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.watchedPrefixes, requestID)
}

// SubscribeNamespace sends SUBSCRIBE_NAMESPACE for prefix and blocks until
// the peer acknowledges with SUBSCRIBE_NAMESPACE_OK. Matching announcements,
// both already-announced and future ones, arrive on IncomingPublishes.
func (s *Session) SubscribeNamespace(ctx context.Context, prefix wire.Tuple) error {
	requestID, err := s.allocator.alloc()
	if err != nil {
		return err
	}
	pending := s.correlation.register(requestID)

	payload := moq.EncodeSubscribeNamespace(moq.SubscribeNamespace{RequestID: requestID, Prefix: prefix})
	if err := s.writeControl(moq.TypeSubscribeNamespace, payload); err != nil {
		s.correlation.reject(requestID, err)
		return err
	}

	respCh := make(chan struct{})
	var respErr error
	go func() {
		_, respErr = pending.wait()
		close(respCh)
	}()

	select {
	case <-respCh:
		if respErr != nil {
			return respErr
		}
		s.namespaces.addWatchedPrefix(requestID, prefix)
		return nil
	case <-ctx.Done():
		s.correlation.reject(requestID, ErrCancelled)
		return ctx.Err()
	}
}

// UnsubscribeNamespace sends UNSUBSCRIBE_NAMESPACE for a prefix registered
// by a prior SubscribeNamespace call.
func (s *Session) UnsubscribeNamespace(requestID uint64) error {
	s.namespaces.removeWatchedPrefix(requestID)
	payload := moq.EncodeUnsubscribeNamespace(moq.UnsubscribeNamespace{RequestID: requestID})
	return s.writeControl(moq.TypeUnsubscribeNamespace, payload)
}
