package aggregate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/tipjar/internal/domain/model"
	"github.com/okian/tipjar/internal/domain/types"
)

// TipSource lists a worker's tips, newest first.
type TipSource interface {
	ListTipsForWorker(ctx context.Context, workerID string) ([]model.Tip, error)
}

// RosterSource lists the workers bound to a business.
type RosterSource interface {
	ListWorkers(ctx context.Context, ownerID string) ([]string, error)
}

// ProfileSource resolves directory identities.
type ProfileSource interface {
	GetProfile(ctx context.Context, id string) (model.Profile, error)
}

// Engine computes aggregates on demand from the ledger and the roster.
type Engine struct {
	tips     TipSource
	roster   RosterSource
	profiles ProfileSource
	now      func() time.Time
	tipPath  string
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the clock used for "tips today".
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithTipPath sets the prefix of the public tip link, "/tip" by default.
func WithTipPath(prefix string) Option {
	return func(e *Engine) { e.tipPath = prefix }
}

// NewEngine wires an Engine over read-only sources.
func NewEngine(tips TipSource, roster RosterSource, profiles ProfileSource, opts ...Option) *Engine {
	e := &Engine{
		tips:     tips,
		roster:   roster,
		profiles: profiles,
		now:      time.Now,
		tipPath:  "/tip",
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WorkerAggregate returns the aggregate of one worker.
func (e *Engine) WorkerAggregate(ctx context.Context, workerID string) (types.WorkerAggregate, error) {
	if _, err := e.profile(ctx, workerID, model.RoleWorker); err != nil {
		return types.WorkerAggregate{}, err
	}
	agg, _, err := e.worker(ctx, workerID)
	return agg, err
}

// BusinessAggregate returns the aggregate over a business roster.
// An empty roster yields zero totals and no rating.
func (e *Engine) BusinessAggregate(ctx context.Context, ownerID string) (types.BusinessAggregate, error) {
	if _, err := e.profile(ctx, ownerID, model.RoleOwner); err != nil {
		return types.BusinessAggregate{}, err
	}
	workers, err := e.rosterAggregates(ctx, ownerID)
	if err != nil {
		return types.BusinessAggregate{}, err
	}
	agg := ComputeBusiness(workers)
	agg.OwnerID = ownerID
	return agg, nil
}

// Leaderboard ranks a business roster by earnings. limit <= 0 returns every worker.
func (e *Engine) Leaderboard(ctx context.Context, ownerID string, limit int) ([]types.LeaderboardEntry, error) {
	if _, err := e.profile(ctx, ownerID, model.RoleOwner); err != nil {
		return nil, err
	}
	workers, err := e.rosterAggregates(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return e.entries(ctx, RankByEarnings(workers), limit)
}

// WorkerDashboard returns a worker's aggregate together with their most recent tips.
func (e *Engine) WorkerDashboard(ctx context.Context, workerID string, recent int) (types.WorkerDashboard, error) {
	p, err := e.profile(ctx, workerID, model.RoleWorker)
	if err != nil {
		return types.WorkerDashboard{}, err
	}
	agg, tips, err := e.worker(ctx, workerID)
	if err != nil {
		return types.WorkerDashboard{}, err
	}
	if recent > 0 && len(tips) > recent {
		tips = tips[:recent]
	}
	return types.WorkerDashboard{
		Worker:     types.NewProfile(p),
		Aggregate:  agg,
		RecentTips: types.NewTips(tips),
		TipLink:    e.TipLink(workerID),
	}, nil
}

// BusinessDashboard returns the business totals and the ranked roster.
func (e *Engine) BusinessDashboard(ctx context.Context, ownerID string) (types.BusinessDashboard, error) {
	owner, err := e.profile(ctx, ownerID, model.RoleOwner)
	if err != nil {
		return types.BusinessDashboard{}, err
	}
	workers, err := e.rosterAggregates(ctx, ownerID)
	if err != nil {
		return types.BusinessDashboard{}, err
	}
	rows, err := e.entries(ctx, RankByEarnings(workers), 0)
	if err != nil {
		return types.BusinessDashboard{}, err
	}
	agg := ComputeBusiness(workers)
	agg.OwnerID = ownerID
	return types.BusinessDashboard{Owner: types.NewProfile(owner), Aggregate: agg, Workers: rows}, nil
}

// TipLink is the path customers open to tip a worker.
func (e *Engine) TipLink(workerID string) string {
	return e.tipPath + "/" + workerID
}

func (e *Engine) worker(ctx context.Context, workerID string) (types.WorkerAggregate, []model.Tip, error) {
	tips, err := e.tips.ListTipsForWorker(ctx, workerID)
	if err != nil {
		return types.WorkerAggregate{}, nil, model.Upstream("list tips for "+workerID, err)
	}
	agg := ComputeWorker(tips)
	agg.WorkerID = workerID
	agg.TipsToday = TipsSince(tips, StartOfDay(e.now()))
	return agg, tips, nil
}

func (e *Engine) rosterAggregates(ctx context.Context, ownerID string) ([]types.WorkerAggregate, error) {
	ids, err := e.roster.ListWorkers(ctx, ownerID)
	if err != nil {
		return nil, model.Upstream("list roster of "+ownerID, err)
	}
	out := make([]types.WorkerAggregate, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		agg, _, err := e.worker(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, agg)
	}
	return out, nil
}

func (e *Engine) entries(ctx context.Context, ranked []types.WorkerAggregate, limit int) ([]types.LeaderboardEntry, error) {
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	out := make([]types.LeaderboardEntry, 0, len(ranked))
	for i, w := range ranked {
		p, err := e.profiles.GetProfile(ctx, w.WorkerID)
		if err != nil {
			return nil, model.Upstream("resolve worker "+w.WorkerID, err)
		}
		out = append(out, types.LeaderboardEntry{
			Rank:          i + 1,
			WorkerID:      w.WorkerID,
			Name:          p.Name,
			Email:         p.Email,
			PayoutID:      p.PayoutID,
			TotalEarnings: w.TotalEarnings,
			TotalTips:     w.TotalTips,
			AverageRating: w.AverageRating,
		})
	}
	return out, nil
}

func (e *Engine) profile(ctx context.Context, id string, role model.Role) (model.Profile, error) {
	missing := model.ErrWorkerNotFound
	if role == model.RoleOwner {
		missing = model.ErrOwnerNotFound
	}
	p, err := e.profiles.GetProfile(ctx, id)
	if errors.Is(err, model.ErrNotFound) {
		return model.Profile{}, fmt.Errorf("%w: %s", missing, id)
	}
	if err != nil {
		return model.Profile{}, model.Upstream("resolve "+string(role)+" "+id, err)
	}
	if p.Role != role {
		return model.Profile{}, fmt.Errorf("%w: %s", missing, id)
	}
	return p, nil
}
