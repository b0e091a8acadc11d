package session

import "sync"

// requestIDHardLimit is the 2^62 boundary spec.md §4.4 names: an allocator
// approaching it is a hard error regardless of any peer-advertised ceiling.
const requestIDHardLimit uint64 = 1 << 62

// requestIDAllocator hands out request IDs of a fixed parity, advancing by
// two each time, per spec.md §4.4. The initiator owns even IDs starting at
// 0; the acceptor owns odd IDs starting at 1.
type requestIDAllocator struct {
	mu      sync.Mutex
	next    uint64
	ceiling uint64 // 0 means unbounded except for requestIDHardLimit
	parity  uint64 // 0 for RoleClient, 1 for RoleServer; fixed at construction
}

func newRequestIDAllocator(role Role) *requestIDAllocator {
	a := &requestIDAllocator{}
	if role == RoleServer {
		a.next = 1
		a.parity = 1
	} else {
		a.next = 0
		a.parity = 0
	}
	return a
}

// setCeiling records the peer's most recently advertised MAX_REQUEST_ID:
// the allocator refuses to hand out an ID at or beyond it.
func (a *requestIDAllocator) setCeiling(ceiling uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if ceiling > a.ceiling {
		a.ceiling = ceiling
	}
}

// alloc returns the next request ID and advances the allocator, or
// ErrRequestIDExhausted if doing so would reach the hard limit or the
// peer's advertised ceiling.
func (a *requestIDAllocator) alloc() (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.next >= requestIDHardLimit {
		return 0, ErrRequestIDExhausted
	}
	if a.ceiling > 0 && a.next >= a.ceiling {
		return 0, ErrRequestIDExhausted
	}
	id := a.next
	a.next += 2
	return id, nil
}

// isLocal reports whether id belongs to this allocator's parity, i.e. was
// (or would be) issued by this side rather than the peer.
func (a *requestIDAllocator) isLocal(id uint64) bool {
	return id%2 == a.parity
}

// isPeer reports whether id has the parity the peer's allocator issues,
// the parity a freshly received request ID must have (spec.md §3: receivers
// validate parity on every request they process).
func (a *requestIDAllocator) isPeer(id uint64) bool {
	return !a.isLocal(id)
}
