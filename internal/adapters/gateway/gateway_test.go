package gateway_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/tipjar/internal/adapters/gateway"
	"github.com/okian/tipjar/internal/domain/model"
	"github.com/okian/tipjar/internal/domain/review"
	"github.com/shopspring/decimal"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSimulatedPayments(t *testing.T) {
	ctx := context.Background()

	Convey("Given an instant payment simulator", t, func() {
		p := gateway.NewSimulatedPayments(gateway.WithPaymentLatency(0, 0))

		Convey("When no reference is supplied", func() {
			r, err := p.Authorize(ctx, review.PaymentRequest{WorkerID: "w1", Amount: decimal.NewFromInt(10)})

			Convey("Then one is minted", func() {
				So(err, ShouldBeNil)
				So(r.Reference, ShouldStartWith, "pay_")
			})
		})

		Convey("When a reference is supplied", func() {
			r, err := p.Authorize(ctx, review.PaymentRequest{Reference: "upi-123"})

			Convey("Then it is echoed", func() {
				So(err, ShouldBeNil)
				So(r.Reference, ShouldEqual, "upi-123")
			})
		})
	})

	Convey("Given a simulator that declines everything", t, func() {
		p := gateway.NewSimulatedPayments(gateway.WithPaymentLatency(0, 0), gateway.WithDeclineRate(1))

		_, err := p.Authorize(ctx, review.PaymentRequest{})

		So(errors.Is(err, model.ErrPaymentDeclined), ShouldBeTrue)
	})

	Convey("Given a decider that rejects missing payout ids", t, func() {
		p := gateway.NewSimulatedPayments(gateway.WithPaymentLatency(0, 0), gateway.WithDecider(func(r review.PaymentRequest) error {
			if r.PayoutID == "" {
				return errors.New("no payout id")
			}
			return nil
		}))

		_, err1 := p.Authorize(ctx, review.PaymentRequest{})
		_, err2 := p.Authorize(ctx, review.PaymentRequest{PayoutID: "w@upi"})

		So(errors.Is(err1, model.ErrUpstream), ShouldBeTrue)
		So(err2, ShouldBeNil)
	})

	Convey("Given a slow simulator and a cancelled context", t, func() {
		p := gateway.NewSimulatedPayments(gateway.WithPaymentLatency(time.Second, 2*time.Second))
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := p.Authorize(cctx, review.PaymentRequest{})

		So(errors.Is(err, context.Canceled), ShouldBeTrue)
		So(errors.Is(err, model.ErrUpstream), ShouldBeTrue)
	})
}

func TestSimulatedPublisher(t *testing.T) {
	ctx := context.Background()

	Convey("Given an instant publisher", t, func() {
		p := gateway.NewSimulatedPublisher(gateway.WithPublishLatency(0, 0))

		err := p.Publish(ctx, model.PublicationRequest{TipID: "t1", Rating: 5})

		Convey("Then the review lands on the board", func() {
			So(err, ShouldBeNil)
			So(p.Published(), ShouldHaveLength, 1)
			So(p.Published()[0].TipID, ShouldEqual, "t1")
		})
	})

	Convey("Given a publisher that always fails", t, func() {
		p := gateway.NewSimulatedPublisher(gateway.WithPublishLatency(0, 0), gateway.WithFailureRate(1))

		err := p.Publish(ctx, model.PublicationRequest{TipID: "t1", Rating: 5})

		So(errors.Is(err, model.ErrPublishFailed), ShouldBeTrue)
		So(p.Published(), ShouldBeEmpty)
	})
}
