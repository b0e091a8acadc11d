package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/moqsession/moq/internal/moq"
	"github.com/moqsession/moq/internal/wire"
)

// IncomingSubscribe is delivered on the incoming-subscribes event sequence
// when a peer sends SUBSCRIBE or FETCH for a track registered with
// Session.Publish. Exactly one of Accept or Reject must be called.
type IncomingSubscribe struct {
	RequestID     uint64
	Namespace     wire.Tuple
	TrackName     []byte
	Priority      byte
	GroupOrder    byte
	StartLocation wire.Location

	pub *publication
}

// Accept responds with SUBSCRIBE_OK, binding trackAlias to this
// subscription for future data stream writes.
func (s *IncomingSubscribe) Accept(trackAlias uint64, largest wire.Location, contentExists bool) error {
	return s.pub.accept(s.RequestID, trackAlias, largest, contentExists)
}

// Reject responds with SUBSCRIBE_ERROR.
func (s *IncomingSubscribe) Reject(errorCode uint64, reason string) error {
	return s.pub.reject(s.RequestID, errorCode, reason)
}

// publication is the publisher-side state for one locally published track:
// its namespace, track name, and accepted subscribers. It keeps no
// data-stream writers or object/group counters; callers open a DataStream
// and choose group and object IDs themselves.
type publication struct {
	sess      *Session
	namespace wire.Tuple
	trackName []byte

	mu          sync.Mutex
	subscribers map[uint64]*publicationSubscriber // by track alias
}

type publicationSubscriber struct {
	requestID  uint64
	trackAlias uint64
}

func newPublication(sess *Session, namespace wire.Tuple, trackName []byte) *publication {
	return &publication{
		sess:        sess,
		namespace:   namespace,
		trackName:   trackName,
		subscribers: make(map[uint64]*publicationSubscriber),
	}
}

func (p *publication) accept(requestID, trackAlias uint64, largest wire.Location, contentExists bool) error {
	p.mu.Lock()
	p.subscribers[trackAlias] = &publicationSubscriber{requestID: requestID, trackAlias: trackAlias}
	p.mu.Unlock()

	payload := moq.EncodeSubscribeOK(moq.SubscribeOK{
		RequestID:       requestID,
		TrackAlias:      trackAlias,
		Expires:         0,
		GroupOrder:      moq.GroupOrderAscending,
		ContentExists:   contentExists,
		LargestLocation: largest,
	})
	return p.sess.writeControl(moq.TypeSubscribeOK, payload)
}

// removeSubscriber drops the subscriber entry for requestID, if any. Used
// when the peer sends UNSUBSCRIBE for a subscription this publication is
// serving (spec.md §4.7).
func (p *publication) removeSubscriber(requestID uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for alias, sub := range p.subscribers {
		if sub.requestID == requestID {
			delete(p.subscribers, alias)
			return
		}
	}
}

func (p *publication) subscriberCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subscribers)
}

func (p *publication) reject(requestID, errorCode uint64, reason string) error {
	payload := moq.EncodeSubscribeError(moq.SubscribeError{
		RequestID:    requestID,
		ErrorCode:    errorCode,
		ReasonPhrase: reason,
	})
	return p.sess.writeControl(moq.TypeSubscribeError, payload)
}

// DataStream is a handle for writing one subgroup's worth of objects on a
// freshly opened unidirectional stream, grounded on the teacher's moqWriter
// (distribution/moq_writer.go): one header write followed by a sequence of
// object writes, each independently flushed.
type DataStream struct {
	stream     WriteStream
	trackAlias uint64
	groupID    uint64
	subgroupID uint64
}

// OpenDataStream opens a new unidirectional stream and writes its subgroup
// header. The caller is responsible for calling WriteObject for each object
// in the subgroup, in increasing object_id order, and Close when done.
func (p *publication) OpenDataStream(ctx context.Context, trackAlias, groupID, subgroupID uint64, priority byte) (*DataStream, error) {
	ws, err := p.sess.transport.OpenUniStream(ctx)
	if err != nil {
		return nil, fmt.Errorf("session: open data stream: %w", err)
	}
	header := moq.AppendSubgroupHeader(nil, moq.SubgroupHeader{
		TrackAlias: trackAlias,
		GroupID:    groupID,
		SubgroupID: subgroupID,
		Priority:   priority,
	})
	if _, err := ws.Write(header); err != nil {
		ws.Close()
		return nil, &StreamWriteError{Alias: trackAlias, Err: err}
	}
	return &DataStream{stream: ws, trackAlias: trackAlias, groupID: groupID, subgroupID: subgroupID}, nil
}

// WriteObject appends one object to the stream. objectID must be strictly
// increasing across calls on the same DataStream; the caller, not this
// type, is responsible for that ordering invariant (spec.md §3).
func (d *DataStream) WriteObject(objectID uint64, status uint64, extensions wire.ParameterList, payload []byte) error {
	buf := moq.AppendObject(nil, moq.Object{
		ObjectID:   objectID,
		Extensions: extensions,
		Status:     status,
		Payload:    payload,
	})
	if _, err := d.stream.Write(buf); err != nil {
		return &StreamWriteError{Alias: d.trackAlias, Err: err}
	}
	return nil
}

// Close finishes the underlying stream.
func (d *DataStream) Close() error {
	return d.stream.Close()
}

// Done sends PUBLISH_DONE for this track, ending it for every current
// subscriber.
func (p *publication) Done(statusCode uint64, streamCount uint64, reason string) error {
	p.mu.Lock()
	ids := make([]uint64, 0, len(p.subscribers))
	for _, sub := range p.subscribers {
		ids = append(ids, sub.requestID)
	}
	p.mu.Unlock()

	for _, requestID := range ids {
		payload := moq.EncodePublishDone(moq.PublishDone{
			RequestID:    requestID,
			StatusCode:   statusCode,
			StreamCount:  streamCount,
			ReasonPhrase: reason,
		})
		if err := p.sess.writeControl(moq.TypePublishDone, payload); err != nil {
			return err
		}
	}
	return nil
}

// publicationRegistry indexes every track this session has announced, by
// namespace+track name (for matching an inbound SUBSCRIBE to the right
// publication).
type publicationRegistry struct {
	mu    sync.RWMutex
	byKey map[string]*publication
}

func newPublicationRegistry() *publicationRegistry {
	return &publicationRegistry{byKey: make(map[string]*publication)}
}

func trackKey(namespace wire.Tuple, trackName []byte) string {
	return namespace.String() + "\x00" + string(trackName)
}

func (r *publicationRegistry) add(p *publication) error {
	key := trackKey(p.namespace, p.trackName)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byKey[key]; exists {
		return ErrDuplicateTrack
	}
	r.byKey[key] = p
	return nil
}

func (r *publicationRegistry) find(namespace wire.Tuple, trackName []byte) (*publication, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byKey[trackKey(namespace, trackName)]
	return p, ok
}

func (r *publicationRegistry) remove(namespace wire.Tuple, trackName []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byKey, trackKey(namespace, trackName))
}

// removeSubscriber removes requestID from every publication's subscriber
// set. An inbound UNSUBSCRIBE carries only a request ID, not the
// namespace/track name it was issued against, so every publication this
// session is serving is checked.
func (r *publicationRegistry) removeSubscriber(requestID uint64) {
	r.mu.RLock()
	pubs := make([]*publication, 0, len(r.byKey))
	for _, p := range r.byKey {
		pubs = append(pubs, p)
	}
	r.mu.RUnlock()
	for _, p := range pubs {
		p.removeSubscriber(requestID)
	}
}

// Publish registers namespace/trackName as servable by this session: an
// inbound SUBSCRIBE or FETCH naming it is delivered on IncomingSubscribes
// instead of rejected with ErrUnknownTrack. It is independent of
// PUBLISH_NAMESPACE announcement, which only affects discovery.
func (s *Session) Publish(namespace wire.Tuple, trackName []byte) (*publication, error) {
	p := newPublication(s, namespace, trackName)
	if err := s.publications.add(p); err != nil {
		return nil, err
	}
	return p, nil
}

// Unpublish removes a previously published track so future SUBSCRIBE/FETCH
// requests against it are rejected.
func (s *Session) Unpublish(namespace wire.Tuple, trackName []byte) {
	s.publications.remove(namespace, trackName)
}

// Announce sends PUBLISH_NAMESPACE and blocks until the peer acknowledges
// with PUBLISH_NAMESPACE_OK or rejects with PUBLISH_NAMESPACE_ERROR.
func (s *Session) Announce(ctx context.Context, namespace wire.Tuple) error {
	if s.State() != StateEstablished {
		return ErrNotConnected
	}
	requestID, err := s.allocator.alloc()
	if err != nil {
		return err
	}
	pending := s.correlation.register(requestID)

	payload := moq.EncodePublishNamespace(moq.PublishNamespace{RequestID: requestID, Namespace: namespace})
	if err := s.writeControl(moq.TypePublishNamespace, payload); err != nil {
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
		s.namespaces.addAnnounced(requestID, namespace)
		return nil
	case <-ctx.Done():
		s.correlation.reject(requestID, ErrCancelled)
		return ctx.Err()
	}
}

// Unannounce sends PUBLISH_NAMESPACE_DONE for a previously announced
// namespace.
func (s *Session) Unannounce(namespace wire.Tuple, statusCode uint64, reason string) error {
	s.namespaces.removeAnnounced(namespace)
	payload := moq.EncodePublishNamespaceDone(moq.PublishNamespaceDone{
		Namespace:    namespace,
		StatusCode:   statusCode,
		ReasonPhrase: reason,
	})
	return s.writeControl(moq.TypePublishNamespaceDone, payload)
}
