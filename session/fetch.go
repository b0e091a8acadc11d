package session

import (
	"context"

	"github.com/moqsession/moq/internal/moq"
	"github.com/moqsession/moq/internal/wire"
)

// FetchResult is the caller-facing handle for one outstanding FETCH: a
// bounded range of objects delivered as a single data stream, per
// SPEC_FULL.md's supplemented FETCH feature.
//
// Open Question resolution (recorded in DESIGN.md): spec.md does not say
// how FETCH's data delivery is linked back to the SUBGROUP_HEADER/object
// framing it reuses for SUBSCRIBE. This session models a FETCH's data
// stream as a subgroup stream whose track_alias equals the FETCH's
// request_id, since FETCH assigns no separate alias.
type FetchResult struct {
	requestID uint64
	sess      *Session
	*Subscription
}

// Fetch issues a FETCH for a bounded object range and returns as soon as the
// request is written to the control stream. It does not wait for any
// response and registers nothing in the correlation table; objects arrive on
// Objects(). A SUBSCRIBE_ERROR naming the fetch's request ID removes the
// fetch and closes Objects(), but the peer's error code and reason are not
// returned to the caller.
func (s *Session) Fetch(ctx context.Context, namespace wire.Tuple, trackName []byte, start, end wire.Location, priority, groupOrder byte) (*FetchResult, error) {
	if s.State() != StateEstablished {
		return nil, ErrNotConnected
	}
	requestID, err := s.allocator.alloc()
	if err != nil {
		return nil, err
	}

	sub := s.subscriptions.addPending(requestID, s.cfg.ObjectBufferSize)
	s.subscriptions.bindAlias(requestID, requestID)

	payload := moq.EncodeFetch(moq.Fetch{
		RequestID:     requestID,
		Namespace:     namespace,
		TrackName:     trackName,
		StartLocation: start,
		EndLocation:   end,
		Priority:      priority,
		GroupOrder:    groupOrder,
	})
	if err := s.writeControl(moq.TypeFetch, payload); err != nil {
		s.subscriptions.remove(requestID)
		return nil, err
	}
	return &FetchResult{requestID: requestID, sess: s, Subscription: sub}, nil
}

// Cancel sends FETCH_CANCEL and releases local state for this fetch. It
// does not wait for any peer acknowledgement, matching spec.md's framing of
// FETCH_CANCEL as a one-way signal.
func (f *FetchResult) Cancel() error {
	payload := moq.EncodeFetchCancel(moq.FetchCancel{RequestID: f.requestID})
	f.sess.subscriptions.remove(f.requestID)
	return f.sess.writeControl(moq.TypeFetchCancel, payload)
}
