package session

import "testing"

func TestRequestIDAllocatorClientParity(t *testing.T) {
	t.Parallel()
	a := newRequestIDAllocator(RoleClient)
	for i, want := range []uint64{0, 2, 4, 6} {
		id, err := a.alloc()
		if err != nil {
			t.Fatalf("alloc %d: %v", i, err)
		}
		if id != want {
			t.Fatalf("alloc %d = %d, want %d", i, id, want)
		}
		if !a.isLocal(id) {
			t.Fatalf("isLocal(%d) = false, want true", id)
		}
	}
	if a.isLocal(1) {
		t.Fatal("isLocal(1) = true for a client allocator, want false")
	}
}

func TestRequestIDAllocatorServerParity(t *testing.T) {
	t.Parallel()
	a := newRequestIDAllocator(RoleServer)
	for i, want := range []uint64{1, 3, 5} {
		id, err := a.alloc()
		if err != nil {
			t.Fatalf("alloc %d: %v", i, err)
		}
		if id != want {
			t.Fatalf("alloc %d = %d, want %d", i, id, want)
		}
	}
	if a.isLocal(2) {
		t.Fatal("isLocal(2) = true for a server allocator, want false")
	}
}

func TestRequestIDAllocatorRespectsCeiling(t *testing.T) {
	t.Parallel()
	a := newRequestIDAllocator(RoleClient)
	a.setCeiling(4)

	if id, err := a.alloc(); err != nil || id != 0 {
		t.Fatalf("alloc 1 = %d, %v", id, err)
	}
	if id, err := a.alloc(); err != nil || id != 2 {
		t.Fatalf("alloc 2 = %d, %v", id, err)
	}
	if _, err := a.alloc(); err != ErrRequestIDExhausted {
		t.Fatalf("alloc 3 error = %v, want ErrRequestIDExhausted", err)
	}
}

func TestRequestIDAllocatorCeilingOnlyIncreases(t *testing.T) {
	t.Parallel()
	a := newRequestIDAllocator(RoleClient)
	a.setCeiling(100)
	a.setCeiling(10) // must not lower the ceiling below an earlier value
	if a.ceiling != 100 {
		t.Fatalf("ceiling = %d, want 100", a.ceiling)
	}
}

func TestRequestIDAllocatorHardLimit(t *testing.T) {
	t.Parallel()
	a := newRequestIDAllocator(RoleClient)
	a.next = requestIDHardLimit
	if _, err := a.alloc(); err != ErrRequestIDExhausted {
		t.Fatalf("alloc at hard limit error = %v, want ErrRequestIDExhausted", err)
	}
}
