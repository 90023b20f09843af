package specialist

import "sync"

// Guard blocks re-entrant window resolution per session owner. While a
// resolution is in flight, further taps for the same owner are rejected
// rather than queued.
type Guard struct {
	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewGuard constructs an empty guard.
func NewGuard() *Guard {
	return &Guard{inflight: make(map[string]struct{})}
}

// TryAcquire marks a resolution in flight for the owner. Returns false when
// one is already running.
func (g *Guard) TryAcquire(ownerID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.inflight[ownerID]; busy {
		return false
	}
	g.inflight[ownerID] = struct{}{}
	return true
}

// Release clears the in-flight mark for the owner.
func (g *Guard) Release(ownerID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inflight, ownerID)
}
