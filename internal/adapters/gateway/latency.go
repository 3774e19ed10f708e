// Package gateway holds simulated stand-ins for the payment processor and the
// public review site. Both add configurable latency the way a remote call would.
package gateway

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/okian/tipjar/internal/domain/model"
)

const defaultRandomSeed = 42

// latency draws delays uniformly from [min, max].
type latency struct {
	mu  sync.Mutex
	min time.Duration
	max time.Duration
	rng *rand.Rand
}

func newLatency(minLatency, maxLatency time.Duration) *latency {
	return &latency{
		min: minLatency,
		max: maxLatency,
		rng: rand.New(rand.NewSource(defaultRandomSeed)), //nolint:gosec // simulated latency, not security
	}
}

func (l *latency) set(minLatency, maxLatency time.Duration) {
	if minLatency < 0 || maxLatency < minLatency {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.min, l.max = minLatency, maxLatency
}

func (l *latency) draw() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.max <= l.min {
		return l.min
	}
	return l.min + time.Duration(l.rng.Int63n(int64(l.max-l.min)))
}

// chance reports true with probability p.
func (l *latency) chance(p float64) bool {
	if p <= 0 {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rng.Float64() < p
}

// wait sleeps for a drawn delay or until ctx is done.
func (l *latency) wait(ctx context.Context) error {
	d := l.draw()
	if d <= 0 {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", model.ErrUpstream, err)
		}
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", model.ErrUpstream, ctx.Err())
	case <-t.C:
		return nil
	}
}
