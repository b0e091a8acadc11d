package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/moqsession/moq/internal/moq"
	"github.com/moqsession/moq/internal/wire"
)

// SubscribeOptions configures a SUBSCRIBE request. Zero value requests
// delivery starting at the track's largest object, matching
// moq.FilterLargestObject.
type SubscribeOptions struct {
	Priority      byte
	GroupOrder    byte
	Forward       byte
	FilterType    uint64
	StartLocation wire.Location
	EndGroup      uint64
	Parameters    wire.ParameterList
}

// Subscribe sends SUBSCRIBE for namespace/trackName and blocks until the
// peer responds with SUBSCRIBE_OK or SUBSCRIBE_ERROR, or ctx is cancelled.
func (s *Session) Subscribe(ctx context.Context, namespace wire.Tuple, trackName []byte, opts SubscribeOptions) (*Subscription, error) {
	if s.State() != StateEstablished {
		return nil, ErrNotConnected
	}
	requestID, err := s.allocator.alloc()
	if err != nil {
		return nil, err
	}

	sub := s.subscriptions.addPending(requestID, s.cfg.ObjectBufferSize)
	sub.filter = opts
	pending := s.correlation.register(requestID)

	payload := moq.EncodeSubscribe(moq.Subscribe{
		RequestID:     requestID,
		Namespace:     namespace,
		TrackName:     trackName,
		Priority:      opts.Priority,
		GroupOrder:    opts.GroupOrder,
		Forward:       opts.Forward,
		FilterType:    opts.FilterType,
		StartLocation: opts.StartLocation,
		EndGroup:      opts.EndGroup,
		Parameters:    opts.Parameters,
	})
	if err := s.writeControl(moq.TypeSubscribe, payload); err != nil {
		s.subscriptions.remove(requestID)
		s.correlation.reject(requestID, err)
		return nil, err
	}

	respCh := make(chan struct{})
	var resp any
	var respErr error
	go func() {
		resp, respErr = pending.wait()
		close(respCh)
	}()

	select {
	case <-respCh:
		if respErr != nil {
			s.subscriptions.remove(requestID)
			return nil, respErr
		}
		if _, ok := resp.(moq.SubscribeOK); !ok {
			s.subscriptions.remove(requestID)
			return nil, fmt.Errorf("session: unexpected response type %T for SUBSCRIBE", resp)
		}
		return sub, nil
	case <-ctx.Done():
		s.subscriptions.remove(requestID)
		s.correlation.reject(requestID, ErrCancelled)
		return nil, ctx.Err()
	}
}

// Unsubscribe sends UNSUBSCRIBE and releases local state for sub.
func (s *Session) Unsubscribe(sub *Subscription) error {
	payload := moq.EncodeUnsubscribe(moq.Unsubscribe{RequestID: sub.requestID})
	s.subscriptions.remove(sub.requestID)
	return s.writeControl(moq.TypeUnsubscribe, payload)
}

// Update sends SUBSCRIBE_UPDATE to narrow sub's filter and, once the send
// succeeds, records the new filter as sub's current state (spec.md §4.5).
// SUBSCRIBE_UPDATE has no corresponding response message, so there is
// nothing to correlate or wait for: the update takes effect locally as soon
// as it is written to the control stream.
func (s *Session) Update(ctx context.Context, sub *Subscription, opts SubscribeOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.State() != StateEstablished {
		return ErrNotConnected
	}
	payload := moq.EncodeSubscribeUpdate(moq.SubscribeUpdate{
		RequestID:     sub.requestID,
		StartLocation: opts.StartLocation,
		EndGroup:      opts.EndGroup,
		Priority:      opts.Priority,
		Forward:       opts.Forward,
		Parameters:    opts.Parameters,
	})
	if err := s.writeControl(moq.TypeSubscribeUpdate, payload); err != nil {
		return err
	}
	sub.setFilter(opts)
	return nil
}

// ObjectEvent is delivered on a subscription's object sequence for each
// object received on its data streams, in the order Feed produced them
// within a single stream (no cross-stream/cross-subgroup reordering is
// attempted, per spec.md §5).
type ObjectEvent struct {
	GroupID    uint64
	SubgroupID uint64
	ObjectID   uint64
	Status     uint64
	Payload    []byte
}

// Subscription is the caller-facing handle for one outstanding or active
// SUBSCRIBE, returned by Session.Subscribe.
type Subscription struct {
	requestID uint64
	alias     uint64

	objectCh chan ObjectEvent
	dropped  atomic.Int64

	mu     sync.Mutex
	closed bool
	filter SubscribeOptions
}

// Filter returns the subscription's current filter state: the options last
// passed to Subscribe, or to Update if it has been called since.
func (s *Subscription) Filter() SubscribeOptions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}

func (s *Subscription) setFilter(opts SubscribeOptions) {
	s.mu.Lock()
	s.filter = opts
	s.mu.Unlock()
}

// Objects returns the channel of delivered objects. It is closed when the
// subscription ends (PUBLISH_DONE, UNSUBSCRIBE, or session teardown).
func (s *Subscription) Objects() <-chan ObjectEvent { return s.objectCh }

// Dropped returns the number of objects dropped so far because Objects()
// was not drained quickly enough.
func (s *Subscription) Dropped() int64 { return s.dropped.Load() }

// deliver implements the oldest-drop-on-full backpressure policy (spec.md
// §5), grounded on the teacher's trySendVideo non-blocking send with an
// atomic drop counter (internal/distribution/session_helpers.go),
// generalized from a single-slot "damaged GOP" drop to a bounded queue:
// on a full channel the oldest queued object is discarded to make room for
// the newest one, rather than discarding the newest.
func (s *Subscription) deliver(ev ObjectEvent) {
	for {
		select {
		case s.objectCh <- ev:
			return
		default:
		}
		select {
		case <-s.objectCh:
			s.dropped.Add(1)
		default:
			// Another goroutine drained it between our two selects; retry.
		}
	}
}

func (s *Subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.objectCh)
}

// subscriptionRegistry is the subscriber-side bookkeeping for every
// SUBSCRIBE this session has issued, keyed both by request ID (for
// correlating SUBSCRIBE_OK/SUBSCRIBE_ERROR/UNSUBSCRIBE) and by track alias
// (for dispatching inbound objects once content starts flowing).
type subscriptionRegistry struct {
	mu          sync.RWMutex
	byRequestID map[uint64]*Subscription
	byAlias     map[uint64]*Subscription
}

func newSubscriptionRegistry() *subscriptionRegistry {
	return &subscriptionRegistry{
		byRequestID: make(map[uint64]*Subscription),
		byAlias:     make(map[uint64]*Subscription),
	}
}

func (r *subscriptionRegistry) addPending(requestID uint64, bufferSize int) *Subscription {
	sub := &Subscription{
		requestID: requestID,
		objectCh:  make(chan ObjectEvent, bufferSize),
	}
	r.mu.Lock()
	r.byRequestID[requestID] = sub
	r.mu.Unlock()
	return sub
}

// bindAlias is called once SUBSCRIBE_OK names the track alias the publisher
// will use on data streams.
func (r *subscriptionRegistry) bindAlias(requestID, alias uint64) (*Subscription, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.byRequestID[requestID]
	if !ok {
		return nil, false
	}
	sub.alias = alias
	r.byAlias[alias] = sub
	return sub, true
}

func (r *subscriptionRegistry) byRequest(requestID uint64) (*Subscription, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sub, ok := r.byRequestID[requestID]
	return sub, ok
}

func (r *subscriptionRegistry) byTrackAlias(alias uint64) (*Subscription, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sub, ok := r.byAlias[alias]
	return sub, ok
}

// remove drops a subscription from both indices and closes its object
// channel. Safe to call more than once.
func (r *subscriptionRegistry) remove(requestID uint64) {
	r.mu.Lock()
	sub, ok := r.byRequestID[requestID]
	if ok {
		delete(r.byRequestID, requestID)
		delete(r.byAlias, sub.alias)
	}
	r.mu.Unlock()
	if ok {
		sub.close()
	}
}

func (r *subscriptionRegistry) closeAll() {
	r.mu.Lock()
	all := r.byRequestID
	r.byRequestID = make(map[uint64]*Subscription)
	r.byAlias = make(map[uint64]*Subscription)
	r.mu.Unlock()
	for _, sub := range all {
		sub.close()
	}
}

// dispatchObject routes one parsed data-stream object to the subscription
// that owns its track alias. An unknown alias is logged by the caller and
// dropped, per ErrUnknownTrack's doc comment; it is not fatal.
func (r *subscriptionRegistry) dispatchObject(alias uint64, groupID, subgroupID uint64, obj moq.Object) error {
	sub, ok := r.byTrackAlias(alias)
	if !ok {
		return ErrUnknownTrack
	}
	sub.deliver(ObjectEvent{
		GroupID:    groupID,
		SubgroupID: subgroupID,
		ObjectID:   obj.ObjectID,
		Status:     obj.Status,
		Payload:    obj.Payload,
	})
	return nil
}
