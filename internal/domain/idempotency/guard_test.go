package idempotency_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/okian/tipjar/internal/domain/idempotency"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryGuard(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new guard", t, func() {
		g := idempotency.NewInMemoryGuard()

		Convey("Then it starts empty", func() {
			So(g.Size(), ShouldEqual, 0)
		})

		Convey("When a payment reference is claimed twice", func() {
			first := g.Claim(ctx, "pay-1")
			second := g.Claim(ctx, "pay-1")

			Convey("Then only the first claim succeeds", func() {
				So(first, ShouldBeTrue)
				So(second, ShouldBeFalse)
				So(g.Size(), ShouldEqual, 1)
			})
		})

		Convey("When a claim is released", func() {
			g.Claim(ctx, "pay-1")
			g.Release(ctx, "pay-1")

			Convey("Then the key can be claimed again", func() {
				So(g.Size(), ShouldEqual, 0)
				So(g.Claim(ctx, "pay-1"), ShouldBeTrue)
			})
		})

		Convey("When releasing an unknown key", func() {
			g.Release(ctx, "nope")

			Convey("Then nothing changes", func() {
				So(g.Size(), ShouldEqual, 0)
			})
		})
	})

	Convey("Given a guard bounded to two keys", t, func() {
		g := idempotency.NewInMemoryGuard(idempotency.WithMaxSize(2))
		g.Claim(ctx, "a")
		g.Claim(ctx, "b")
		g.Claim(ctx, "c")

		Convey("Then the oldest key is evicted", func() {
			So(g.Size(), ShouldEqual, 2)
			So(g.Claim(ctx, "a"), ShouldBeTrue)
			So(g.Claim(ctx, "c"), ShouldBeFalse)
		})
	})

	Convey("Given concurrent claims of the same key", t, func() {
		g := idempotency.NewInMemoryGuard(idempotency.WithMaxSize(0))
		var wins atomic.Int64
		var wg sync.WaitGroup
		for i := 0; i < 64; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if g.Claim(ctx, "shared") {
					wins.Add(1)
				}
				g.Claim(ctx, fmt.Sprintf("own-%d", i))
			}(i)
		}
		wg.Wait()

		Convey("Then exactly one goroutine wins", func() {
			So(wins.Load(), ShouldEqual, 1)
			So(g.Size(), ShouldEqual, 65)
		})
	})
}
