// Package idempotency guards tip submissions against replayed payment references.
package idempotency

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
)

// Guard remembers claimed keys so the same payment is recorded at most once.
type Guard interface {
	// Claim atomically records key. It returns false when key was already claimed.
	Claim(ctx context.Context, key string) bool

	// Release forgets key so a failed submission can be retried.
	Release(ctx context.Context, key string)

	Size() int64
}

// inMemoryGuard keeps claimed keys in a map plus an insertion-ordered list.
// When bounded, the oldest claim is evicted first.
type inMemoryGuard struct {
	mu      sync.Mutex
	claimed map[string]*list.Element
	order   *list.List
	maxSize int
	size    atomic.Int64
}

// NewInMemoryGuard creates a guard. Without WithMaxSize it holds 50,000 keys.
func NewInMemoryGuard(opts ...Option) Guard {
	g := &inMemoryGuard{
		claimed: make(map[string]*list.Element),
		order:   list.New(),
		maxSize: 50_000,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *inMemoryGuard) Claim(_ context.Context, key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.claimed[key]; ok {
		return false
	}
	if g.maxSize > 0 && len(g.claimed) >= g.maxSize {
		g.evictOldest()
	}
	g.claimed[key] = g.order.PushBack(key)
	g.size.Add(1)
	return true
}

func (g *inMemoryGuard) Release(_ context.Context, key string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	el, ok := g.claimed[key]
	if !ok {
		return
	}
	g.order.Remove(el)
	delete(g.claimed, key)
	g.size.Add(-1)
}

// evictOldest must be called with g.mu held.
func (g *inMemoryGuard) evictOldest() {
	front := g.order.Front()
	if front == nil {
		return
	}
	key, _ := g.order.Remove(front).(string)
	delete(g.claimed, key)
	g.size.Add(-1)
}

func (g *inMemoryGuard) Size() int64 {
	return g.size.Load()
}
