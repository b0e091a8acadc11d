package session

import (
	"testing"

	"github.com/moqsession/moq/internal/wire"
)

func TestNamespaceRegistryAnnounceAndMatch(t *testing.T) {
	t.Parallel()
	r := newNamespaceRegistry()
	r.addAnnounced(2, wire.Tuple{[]byte("live"), []byte("cam1")})
	r.addAnnounced(4, wire.Tuple{[]byte("live"), []byte("cam2")})
	r.addAnnounced(6, wire.Tuple{[]byte("vod")})

	matches := r.matchingAnnounced(wire.Tuple{[]byte("live")})
	if len(matches) != 2 {
		t.Fatalf("matches = %v, want 2", matches)
	}
}

func TestNamespaceRegistryRemoveAnnounced(t *testing.T) {
	t.Parallel()
	r := newNamespaceRegistry()
	ns := wire.Tuple{[]byte("live")}
	r.addAnnounced(2, ns)

	id, ok := r.removeAnnounced(ns)
	if !ok || id != 2 {
		t.Fatalf("removeAnnounced = %d, %v", id, ok)
	}
	if _, ok := r.removeAnnounced(ns); ok {
		t.Fatal("removeAnnounced succeeded twice")
	}
}

func TestNamespaceRegistryWatchedPrefix(t *testing.T) {
	t.Parallel()
	r := newNamespaceRegistry()
	r.addWatchedPrefix(3, wire.Tuple{[]byte("live")})
	r.removeWatchedPrefix(3)
	if _, ok := r.watchedPrefixes[3]; ok {
		t.Fatal("prefix still present after removal")
	}
}
