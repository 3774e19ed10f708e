package types_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/okian/tipjar/internal/domain/model"
	types "github.com/okian/tipjar/internal/domain/types"
	"github.com/shopspring/decimal"
	. "github.com/smartystreets/goconvey/convey"
)

func TestAverageRating(t *testing.T) {
	Convey("Given the no-rating sentinel", t, func() {
		r := types.NoRating()

		Convey("Then it is distinguishable from zero", func() {
			So(r.Valid, ShouldBeFalse)
			So(r.String(), ShouldEqual, "no rating")
			b, err := json.Marshal(r)
			So(err, ShouldBeNil)
			So(string(b), ShouldEqual, "null")
		})
	})

	Convey("Given a present rating", t, func() {
		r := types.RatingOf(decimal.RequireFromString("4"))

		Convey("Then it renders with one decimal", func() {
			So(r.String(), ShouldEqual, "4.0")
			b, err := json.Marshal(r)
			So(err, ShouldBeNil)
			So(string(b), ShouldEqual, "4.0")
		})
	})

	Convey("Given a worker aggregate decoded from JSON", t, func() {
		var agg types.WorkerAggregate
		err := json.Unmarshal([]byte(`{"worker_id":"w1","total_earnings":"600","total_tips":3,"average_rating":4.5}`), &agg)

		Convey("Then the rating and earnings round-trip", func() {
			So(err, ShouldBeNil)
			So(agg.AverageRating.Valid, ShouldBeTrue)
			So(agg.AverageRating.String(), ShouldEqual, "4.5")
			So(agg.TotalEarnings.Equal(decimal.NewFromInt(600)), ShouldBeTrue)
		})

		Convey("And a null rating decodes to the sentinel", func() {
			err := json.Unmarshal([]byte(`{"average_rating":null}`), &agg)
			So(err, ShouldBeNil)
			So(agg.AverageRating.Valid, ShouldBeFalse)
		})
	})
}

func TestNewTip(t *testing.T) {
	Convey("Given a rated domain tip", t, func() {
		rating := 5
		review := "great"
		tip := model.Tip{
			ID:           "t1",
			WorkerID:     "w1",
			Amount:       decimal.NewFromInt(100),
			CustomerName: model.AnonymousCustomer,
			CreatedAt:    time.Unix(1700000000, 0).UTC(),
			Rating:       &rating,
			Review:       &review,
		}

		Convey("Then the view carries its state", func() {
			v := types.NewTip(tip)
			So(v.State, ShouldEqual, model.TipRated)
			So(*v.Rating, ShouldEqual, 5)
			So(v.CustomerName, ShouldEqual, "Anonymous")
			So(types.NewTips([]model.Tip{tip, tip}), ShouldHaveLength, 2)
		})
	})
}
