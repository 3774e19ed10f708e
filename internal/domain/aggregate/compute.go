// Package aggregate derives earnings and reputation figures from ledger records.
// Nothing here is cached: every figure is recomputed from the tips it is given.
package aggregate

import (
	"sort"
	"time"

	"github.com/okian/tipjar/internal/domain/model"
	"github.com/okian/tipjar/internal/domain/types"
	"github.com/shopspring/decimal"
)

// ratingPlaces is the number of decimals kept in an average rating.
const ratingPlaces = 1

// ComputeWorker sums a worker's tips and averages the ratings present.
// Unrated tips count toward earnings and tip count but not the average.
func ComputeWorker(tips []model.Tip) types.WorkerAggregate {
	agg := types.WorkerAggregate{
		TotalEarnings: decimal.Zero,
		AverageRating: types.NoRating(),
	}
	ratingSum := 0
	for _, t := range tips {
		agg.TotalEarnings = agg.TotalEarnings.Add(t.Amount)
		agg.TotalTips++
		if t.Rating != nil {
			ratingSum += *t.Rating
			agg.RatedTips++
		}
	}
	if agg.RatedTips > 0 {
		agg.AverageRating = types.RatingOf(roundHalfUp(
			decimal.NewFromInt(int64(ratingSum)).Div(decimal.NewFromInt(int64(agg.RatedTips))),
		))
	}
	if len(tips) > 0 {
		agg.WorkerID = tips[0].WorkerID
	}
	return agg
}

// ComputeBusiness combines worker aggregates. The business rating is the mean
// of the workers' own averages, so a worker with many ratings weighs the same
// as one with few. Workers without ratings are left out of that mean.
func ComputeBusiness(workers []types.WorkerAggregate) types.BusinessAggregate {
	agg := types.BusinessAggregate{
		TotalWorkers:  len(workers),
		TotalEarnings: decimal.Zero,
		AverageRating: types.NoRating(),
	}
	ratingSum := decimal.Zero
	for _, w := range workers {
		agg.TotalEarnings = agg.TotalEarnings.Add(w.TotalEarnings)
		agg.TotalTips += w.TotalTips
		if w.AverageRating.Valid {
			ratingSum = ratingSum.Add(w.AverageRating.Value)
			agg.RatedWorkers++
		}
	}
	if agg.RatedWorkers > 0 {
		agg.AverageRating = types.RatingOf(roundHalfUp(ratingSum.Div(decimal.NewFromInt(int64(agg.RatedWorkers)))))
	}
	return agg
}

// RankByEarnings returns a copy of workers sorted by total earnings, highest
// first. Workers with equal earnings keep their input order.
func RankByEarnings(workers []types.WorkerAggregate) []types.WorkerAggregate {
	ranked := make([]types.WorkerAggregate, len(workers))
	copy(ranked, workers)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].TotalEarnings.GreaterThan(ranked[j].TotalEarnings)
	})
	return ranked
}

// TipsSince counts tips created at or after since.
func TipsSince(tips []model.Tip, since time.Time) int {
	n := 0
	for _, t := range tips {
		if !t.CreatedAt.Before(since) {
			n++
		}
	}
	return n
}

// StartOfDay returns midnight of now's day in now's location.
func StartOfDay(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
}

// roundHalfUp rounds to one decimal. Ratings are positive, so rounding half
// away from zero is rounding half up.
func roundHalfUp(d decimal.Decimal) decimal.Decimal {
	return d.Round(ratingPlaces)
}
