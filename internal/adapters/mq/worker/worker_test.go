package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/tipjar/internal/adapters/mq/queue"
	"github.com/okian/tipjar/internal/adapters/mq/worker"
	"github.com/okian/tipjar/internal/domain/model"
	logging "github.com/okian/tipjar/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type mockQueue struct {
	requests chan worker.Request
	once     sync.Once
}

func newMockQueue() *mockQueue {
	return &mockQueue{requests: make(chan worker.Request, 16)}
}

func (mq *mockQueue) Dequeue(context.Context) <-chan worker.Request { return mq.requests }

func (mq *mockQueue) Close() error {
	mq.once.Do(func() { close(mq.requests) })
	return nil
}

func (mq *mockQueue) add(tipID string) {
	mq.requests <- worker.Request{TipID: tipID, WorkerID: "w-1", Rating: 5, RequestedAt: time.Now()}
}

// mockPublisher fails the first failures[tipID] attempts for a tip.
type mockPublisher struct {
	mu        sync.Mutex
	failures  map[string]int
	attempts  map[string]int
	published []string
}

func newMockPublisher() *mockPublisher {
	return &mockPublisher{failures: map[string]int{}, attempts: map[string]int{}}
}

func (mp *mockPublisher) Publish(_ context.Context, req model.PublicationRequest) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.attempts[req.TipID]++
	if mp.attempts[req.TipID] <= mp.failures[req.TipID] {
		return fmt.Errorf("%w: board offline", model.ErrPublishFailed)
	}
	mp.published = append(mp.published, req.TipID)
	return nil
}

func (mp *mockPublisher) failFirst(tipID string, n int) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.failures[tipID] = n
}

func (mp *mockPublisher) attemptsFor(tipID string) int {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return mp.attempts[tipID]
}

func (mp *mockPublisher) publishedCount() int {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return len(mp.published)
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a running worker", t, func() {
		_ = logging.Init()

		q := newMockQueue()
		pub := newMockPublisher()
		w := worker.NewInMemoryWorker(q, pub,
			worker.WithName("test-worker"),
			worker.WithMaxAttempts(3),
			worker.WithRetryBackoff(time.Millisecond))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When a request is queued", func() {
			q.add("tip-1")

			convey.Convey("Then it is published once", func() {
				convey.So(eventually(func() bool { return pub.publishedCount() == 1 }), convey.ShouldBeTrue)
				convey.So(pub.attemptsFor("tip-1"), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When the publisher fails transiently", func() {
			pub.failFirst("tip-2", 2)
			q.add("tip-2")

			convey.Convey("Then the worker retries until it succeeds", func() {
				convey.So(eventually(func() bool { return pub.publishedCount() == 1 }), convey.ShouldBeTrue)
				convey.So(pub.attemptsFor("tip-2"), convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When the publisher keeps failing", func() {
			pub.failFirst("tip-3", 10)
			q.add("tip-3")
			q.add("tip-4")

			convey.Convey("Then the request is abandoned and the next one still goes out", func() {
				convey.So(eventually(func() bool { return pub.publishedCount() == 1 }), convey.ShouldBeTrue)
				convey.So(pub.attemptsFor("tip-3"), convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When shutting down", func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
			defer shutdownCancel()

			convey.Convey("Then it stops gracefully", func() {
				convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
				convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
			})
		})
	})

	convey.Convey("Given a worker whose context is cancelled", t, func() {
		_ = logging.Init()
		w := worker.NewInMemoryWorker(newMockQueue(), newMockPublisher())
		ctx, cancel := context.WithCancel(context.Background())
		go w.Run(ctx)
		cancel()

		convey.Convey("Then shutdown returns promptly", func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
			defer shutdownCancel()
			convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
		})
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a pool over a real queue", t, func() {
		_ = logging.Init()

		q := queue.NewInMemoryQueue(queue.WithCapacity(100))
		pub := newMockPublisher()
		pool := worker.NewPool(4, q, pub, worker.WithRetryBackoff(time.Millisecond))
		convey.So(pool.Size(), convey.ShouldEqual, 4)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool.Start(ctx)

		convey.Convey("When requests are queued and the pool shuts down", func() {
			outbox := queue.NewOutbox(q)
			for i := 0; i < 20; i++ {
				err := outbox.Publish(ctx, model.PublicationRequest{TipID: fmt.Sprintf("tip-%d", i), Rating: 5})
				convey.So(err, convey.ShouldBeNil)
			}

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer shutdownCancel()
			err := pool.Shutdown(shutdownCtx)

			convey.Convey("Then every queued request is delivered before it returns", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(pub.publishedCount(), convey.ShouldEqual, 20)
				convey.So(pool.Active(), convey.ShouldEqual, 0)
			})

			convey.Convey("And the outbox rejects new requests", func() {
				err := outbox.Publish(ctx, model.PublicationRequest{TipID: "late"})
				convey.So(errors.Is(err, model.ErrPublishFailed), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the pool is stopped", func() {
			pool.Stop()

			convey.Convey("Then it returns without hanging", func() {
				convey.So(pool.Active(), convey.ShouldEqual, 0)
			})
		})
	})

	convey.Convey("Given a pool that was never started", t, func() {
		_ = logging.Init()
		pool := worker.NewPool(0, newMockQueue(), newMockPublisher())

		convey.Convey("Then it defaults its size and stops cleanly", func() {
			convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
			pool.Stop()
			convey.So(pool.Shutdown(context.Background()), convey.ShouldBeNil)
		})
	})
}
