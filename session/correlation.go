package session

import "sync"

// pendingRequest is a one-shot slot a correlation table hands back to the
// caller that sent a request, to be fulfilled exactly once by the matching
// *_OK/*_ERROR control message or by a session teardown.
type pendingRequest struct {
	done chan struct{}
	resp any
	err  error
}

// wait blocks until the request is fulfilled and returns its response value
// (the concrete *_OK message, e.g. *moq.SubscribeOK) or its error.
func (p *pendingRequest) wait() (any, error) {
	<-p.done
	return p.resp, p.err
}

// correlationTable maps an outstanding request ID to the slot awaiting its
// response, per spec.md §4.5: insertion happens when a request is sent,
// removal when the matching response arrives, is cancelled locally, or the
// session closes. A response for an ID that isn't in the table is logged and
// dropped, never treated as fatal.
type correlationTable struct {
	mu      sync.Mutex
	pending map[uint64]*pendingRequest
}

func newCorrelationTable() *correlationTable {
	return &correlationTable{pending: make(map[uint64]*pendingRequest)}
}

// register inserts a new pending slot for requestID. It panics if the ID is
// already pending: callers must only register freshly allocated request
// IDs, which are unique for the lifetime of the session.
func (t *correlationTable) register(requestID uint64) *pendingRequest {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.pending[requestID]; exists {
		panic("session: request ID already pending")
	}
	p := &pendingRequest{done: make(chan struct{})}
	t.pending[requestID] = p
	return p
}

// resolve fulfills the pending request for requestID with resp, if any is
// outstanding. It reports whether a pending request was found.
func (t *correlationTable) resolve(requestID uint64, resp any) bool {
	t.mu.Lock()
	p, ok := t.pending[requestID]
	if ok {
		delete(t.pending, requestID)
	}
	t.mu.Unlock()
	if !ok {
		return false
	}
	p.resp = resp
	close(p.done)
	return true
}

// reject fulfills the pending request for requestID with err, if any is
// outstanding. Used for both *_ERROR responses and local cancellation.
func (t *correlationTable) reject(requestID uint64, err error) bool {
	t.mu.Lock()
	p, ok := t.pending[requestID]
	if ok {
		delete(t.pending, requestID)
	}
	t.mu.Unlock()
	if !ok {
		return false
	}
	p.err = err
	close(p.done)
	return true
}

// closeAll fulfills every still-outstanding request with err. Called once,
// on session teardown.
func (t *correlationTable) closeAll(err error) {
	t.mu.Lock()
	remaining := t.pending
	t.pending = make(map[uint64]*pendingRequest)
	t.mu.Unlock()

	for _, p := range remaining {
		p.err = err
		close(p.done)
	}
}
