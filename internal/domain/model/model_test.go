package model_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/okian/tipjar/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestTipState(t *testing.T) {
	Convey("Given a tip without a rating", t, func() {
		tip := model.Tip{ID: "t1", WorkerID: "w1"}

		Convey("Then it is in the created state", func() {
			So(tip.State(), ShouldEqual, model.TipCreated)
		})

		Convey("When a rating is attached", func() {
			r := 4
			tip.Rating = &r

			Convey("Then it is rated", func() {
				So(tip.State(), ShouldEqual, model.TipRated)
			})
		})
	})
}

func TestErrorKinds(t *testing.T) {
	Convey("Specific errors match their kind", t, func() {
		So(errors.Is(model.ErrWorkerNotFound, model.ErrNotFound), ShouldBeTrue)
		So(errors.Is(model.ErrInvalidAmount, model.ErrValidation), ShouldBeTrue)
		So(errors.Is(model.ErrDuplicateMembership, model.ErrConflict), ShouldBeTrue)
		So(errors.Is(model.ErrDuplicateMembership, model.ErrNotFound), ShouldBeFalse)
		So(errors.Is(model.ErrPaymentDeclined, model.ErrUpstream), ShouldBeTrue)
	})

	Convey("Kind survives further wrapping", t, func() {
		err := fmt.Errorf("record tip: %w", model.ErrReviewTooLong)
		So(model.Kind(err), ShouldEqual, model.ErrValidation)
		So(model.Kind(errors.New("disk on fire")), ShouldBeNil)
	})

	Convey("Storage failures become upstream failures", t, func() {
		cause := errors.New("dial tcp: connection refused")
		err := model.Upstream("get profile", cause)
		So(model.Kind(err), ShouldEqual, model.ErrUpstream)
		So(errors.Is(err, cause), ShouldBeTrue)
		So(err.Error(), ShouldEqual, "get profile: upstream failure: dial tcp: connection refused")

		Convey("But an error with a kind keeps it", func() {
			err := model.Upstream("lookup", model.ErrTipNotFound)
			So(model.Kind(err), ShouldEqual, model.ErrNotFound)
			So(model.Upstream("lookup", nil), ShouldBeNil)
		})
	})
}

func TestRole(t *testing.T) {
	Convey("Only worker and owner are valid roles", t, func() {
		So(model.RoleWorker.Valid(), ShouldBeTrue)
		So(model.RoleOwner.Valid(), ShouldBeTrue)
		So(model.Role("admin").Valid(), ShouldBeFalse)
	})
}

func TestProfileValidate(t *testing.T) {
	Convey("Registrations carry role-specific fields", t, func() {
		So(model.Profile{Role: model.RoleWorker, Name: "Ravi", Email: "ravi@example.com"}.Validate(), ShouldBeNil)
		So(model.Profile{Role: model.RoleOwner, BusinessName: "Cafe", Email: "o@example.com"}.Validate(), ShouldBeNil)

		for _, p := range []model.Profile{
			{Role: "admin", Name: "x", Email: "x@example.com"},
			{Role: model.RoleWorker, Name: "", Email: "x@example.com"},
			{Role: model.RoleWorker, Name: "x", Email: "not-an-email"},
			{Role: model.RoleOwner, Email: "o@example.com"},
		} {
			So(errors.Is(p.Validate(), model.ErrInvalidProfile), ShouldBeTrue)
		}
	})
}
