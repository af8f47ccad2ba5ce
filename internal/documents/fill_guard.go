package documents

import (
	"sync"
	"time"
)

// FillGuard suppresses repeated read-path analysis attempts for the same
// document inside a window. A nil guard or a zero window allows everything.
type FillGuard struct {
	mu      sync.Mutex
	lastHit map[string]time.Time
	now     func() time.Time
	window  time.Duration
}

// NewFillGuard returns nil when window is not positive.
func NewFillGuard(window time.Duration, now func() time.Time) *FillGuard {
	if window <= 0 {
		return nil
	}
	if now == nil {
		now = time.Now
	}
	return &FillGuard{
		lastHit: make(map[string]time.Time),
		now:     now,
		window:  window,
	}
}

// Allow records an attempt for documentID and reports whether it may proceed.
func (g *FillGuard) Allow(documentID string) bool {
	if g == nil {
		return true
	}
	now := g.now()
	g.mu.Lock()
	defer g.mu.Unlock()
	if last, ok := g.lastHit[documentID]; ok && now.Sub(last) < g.window {
		return false
	}
	g.lastHit[documentID] = now
	g.evictLocked(now)
	return true
}

// Forget clears the attempt record once a document is analyzed.
func (g *FillGuard) Forget(documentID string) {
	if g == nil {
		return
	}
	g.mu.Lock()
	delete(g.lastHit, documentID)
	g.mu.Unlock()
}

func (g *FillGuard) evictLocked(now time.Time) {
	if len(g.lastHit) < 1024 {
		return
	}
	for id, last := range g.lastHit {
		if now.Sub(last) >= g.window {
			delete(g.lastHit, id)
		}
	}
}
