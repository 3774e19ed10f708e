package simulator

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/okian/tipjar/internal/domain/aggregate"
	"github.com/okian/tipjar/internal/domain/model"
	"github.com/okian/tipjar/internal/domain/types"
	"github.com/okian/tipjar/pkg/logger"
)

// ErrMismatch is returned when a reported aggregate disagrees with the tips
// the simulator recorded.
var ErrMismatch = errors.New("aggregate mismatch")

type workerFigures struct {
	WorkerID      string          `json:"worker_id"`
	TotalEarnings decimal.Decimal `json:"total_earnings"`
	TotalTips     int             `json:"total_tips"`
	RatedTips     int             `json:"rated_tips"`
	AverageRating *float64        `json:"average_rating"`
}

type businessFigures struct {
	TotalWorkers  int             `json:"total_workers"`
	TotalEarnings decimal.Decimal `json:"total_earnings"`
	TotalTips     int             `json:"total_tips"`
	AverageRating *float64        `json:"average_rating"`
}

type leaderboardRow struct {
	Rank          int             `json:"rank"`
	WorkerID      string          `json:"worker_id"`
	TotalEarnings decimal.Decimal `json:"total_earnings"`
}

// expectations folds the accepted tips and reviews into per-worker aggregates.
func expectations(plan []*PlannedTip) map[string]types.WorkerAggregate {
	byWorker := map[string][]model.Tip{}
	for _, t := range plan {
		if !t.Recorded {
			continue
		}
		tip := model.Tip{WorkerID: t.WorkerID, Amount: t.Amount}
		if t.Rated {
			tip.Rating = t.Rating
		}
		byWorker[t.WorkerID] = append(byWorker[t.WorkerID], tip)
	}
	out := make(map[string]types.WorkerAggregate, len(byWorker))
	for id, tips := range byWorker {
		out[id] = aggregate.ComputeWorker(tips)
	}
	return out
}

// sameRating compares a reported rating with the expected one at one decimal.
func sameRating(got *float64, want types.AverageRating) bool {
	if got == nil || !want.Valid {
		return got == nil && !want.Valid
	}
	return fmt.Sprintf("%.1f", *got) == want.Value.StringFixed(1)
}

// verify fetches every worker and business aggregate and each leaderboard.
func verify(ctx context.Context, client *HTTPClient, businesses []Business, plan []*PlannedTip, stats *Stats) error {
	log := logger.Get().Named("verify")
	expected := expectations(plan)
	mismatch := func(msg string, fields ...logger.Field) {
		stats.Mismatches++
		log.Error(ctx, msg, fields...)
	}

	for _, b := range businesses {
		workers := make([]types.WorkerAggregate, 0, len(b.WorkerIDs))
		for _, id := range b.WorkerIDs {
			want, ok := expected[id]
			if !ok {
				want = aggregate.ComputeWorker(nil)
			}
			want.WorkerID = id
			workers = append(workers, want)

			var got workerFigures
			if err := client.Get(ctx, "/workers/"+id+"/aggregate", &got); err != nil {
				return err
			}
			if !got.TotalEarnings.Equal(want.TotalEarnings) || got.TotalTips != want.TotalTips ||
				got.RatedTips != want.RatedTips || !sameRating(got.AverageRating, want.AverageRating) {
				mismatch("worker aggregate mismatch",
					logger.String("worker_id", id),
					logger.String("earnings", got.TotalEarnings.String()),
					logger.String("expected_earnings", want.TotalEarnings.String()),
					logger.Int("tips", got.TotalTips),
					logger.Int("expected_tips", want.TotalTips))
			}
		}

		want := aggregate.ComputeBusiness(workers)
		var got businessFigures
		if err := client.Get(ctx, "/businesses/"+b.OwnerID+"/aggregate", &got); err != nil {
			return err
		}
		if got.TotalWorkers != want.TotalWorkers || !got.TotalEarnings.Equal(want.TotalEarnings) ||
			got.TotalTips != want.TotalTips || !sameRating(got.AverageRating, want.AverageRating) {
			mismatch("business aggregate mismatch",
				logger.String("owner_id", b.OwnerID),
				logger.String("earnings", got.TotalEarnings.String()),
				logger.String("expected_earnings", want.TotalEarnings.String()))
		}

		var board []leaderboardRow
		if err := client.Get(ctx, "/businesses/"+b.OwnerID+"/leaderboard", &board); err != nil {
			return err
		}
		if err := checkLeaderboard(board, aggregate.RankByEarnings(workers)); err != nil {
			mismatch("leaderboard mismatch", logger.String("owner_id", b.OwnerID), logger.Error(err))
		}
	}

	if stats.Mismatches > 0 {
		return fmt.Errorf("%w: %d figures disagree", ErrMismatch, stats.Mismatches)
	}
	log.Info(ctx, "all aggregates verified", logger.Int("businesses", len(businesses)))
	return nil
}

// checkLeaderboard expects the rows in ranked order with ranks from one.
func checkLeaderboard(board []leaderboardRow, ranked []types.WorkerAggregate) error {
	if len(board) != len(ranked) {
		return fmt.Errorf("%d rows, expected %d", len(board), len(ranked))
	}
	for i, row := range board {
		if row.Rank != i+1 {
			return fmt.Errorf("row %d has rank %d", i, row.Rank)
		}
		if row.WorkerID != ranked[i].WorkerID || !row.TotalEarnings.Equal(ranked[i].TotalEarnings) {
			return fmt.Errorf("rank %d is %s with %s, expected %s with %s", row.Rank,
				row.WorkerID, row.TotalEarnings, ranked[i].WorkerID, ranked[i].TotalEarnings)
		}
	}
	return nil
}
