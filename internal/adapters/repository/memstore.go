package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/okian/tipjar/internal/domain/model"
	"github.com/okian/tipjar/pkg/metrics"
)

// tipRow is a stored tip plus its insertion sequence, which breaks createdAt ties.
type tipRow struct {
	tip model.Tip
	seq uint64
}

// newerThan orders rows newest first.
func (r *tipRow) newerThan(o *tipRow) bool {
	if !r.tip.CreatedAt.Equal(o.tip.CreatedAt) {
		return r.tip.CreatedAt.After(o.tip.CreatedAt)
	}
	return r.seq > o.seq
}

type rosterKey struct{ owner, worker string }

// MemoryStore implements Store in process memory. A single lock guards all
// state, so a review's find-then-update never interleaves with an append.
type MemoryStore struct {
	mu sync.RWMutex

	profiles map[string]model.Profile
	byEmail  map[string]string

	members   map[string][]string
	memberSet map[rosterKey]struct{}
	rosterLen int

	tips        map[string]*tipRow
	byWorker    map[string][]*tipRow
	paymentRefs map[string]string
	seq         uint64

	now   func() time.Time
	newID func() string

	metricsUpdateInterval time.Duration
	wg                    sync.WaitGroup
	stopChan              chan struct{}
	stopOnce              sync.Once
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore constructs an empty store and starts its metrics updater.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		profiles:              make(map[string]model.Profile),
		byEmail:               make(map[string]string),
		members:               make(map[string][]string),
		memberSet:             make(map[rosterKey]struct{}),
		tips:                  make(map[string]*tipRow),
		byWorker:              make(map[string][]*tipRow),
		paymentRefs:           make(map[string]string),
		now:                   time.Now,
		newID:                 newUUID,
		metricsUpdateInterval: 5 * time.Second,
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.startMetricsUpdater(ctx)
	return s
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateProfile implements Directory.
func (s *MemoryStore) CreateProfile(_ context.Context, p model.Profile) (model.Profile, error) {
	defer observe("create_profile", time.Now())
	p.Email = normalizeEmail(p.Email)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byEmail[p.Email]; taken {
		return model.Profile{}, fmt.Errorf("%w: %s", model.ErrDuplicateEmail, p.Email)
	}
	if p.ID == "" {
		p.ID = s.newID()
	}
	if _, taken := s.profiles[p.ID]; taken {
		return model.Profile{}, fmt.Errorf("%w: id %s", model.ErrConflict, p.ID)
	}
	p.CreatedAt = s.now().UTC()
	s.profiles[p.ID] = p
	s.byEmail[p.Email] = p.ID
	return p, nil
}

// GetProfile implements Directory.
func (s *MemoryStore) GetProfile(_ context.Context, id string) (model.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[id]
	if !ok {
		return model.Profile{}, ErrProfileNotFound
	}
	return p, nil
}

// FindByEmail implements Directory.
func (s *MemoryStore) FindByEmail(_ context.Context, email string) (model.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[normalizeEmail(email)]
	if !ok {
		return model.Profile{}, ErrProfileNotFound
	}
	return s.profiles[id], nil
}

// HasMembership implements Roster.
func (s *MemoryStore) HasMembership(_ context.Context, ownerID, workerID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.memberSet[rosterKey{ownerID, workerID}]
	return ok, nil
}

// AddMembership implements Roster.
func (s *MemoryStore) AddMembership(_ context.Context, ownerID, workerID string) (model.RosterEntry, error) {
	defer observe("add_membership", time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()

	key := rosterKey{ownerID, workerID}
	if _, ok := s.memberSet[key]; ok {
		return model.RosterEntry{}, model.ErrDuplicateMembership
	}
	s.memberSet[key] = struct{}{}
	s.members[ownerID] = append(s.members[ownerID], workerID)
	s.rosterLen++
	return model.RosterEntry{OwnerID: ownerID, WorkerID: workerID, CreatedAt: s.now().UTC()}, nil
}

// ListWorkers implements Roster.
func (s *MemoryStore) ListWorkers(_ context.Context, ownerID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, len(s.members[ownerID]))
	copy(out, s.members[ownerID])
	return out, nil
}

// AppendTip implements Ledger.
func (s *MemoryStore) AppendTip(_ context.Context, in model.NewTip) (model.Tip, error) {
	defer observe("append_tip", time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.profiles[in.WorkerID]; !ok || p.Role != model.RoleWorker {
		return model.Tip{}, fmt.Errorf("%w: %s", model.ErrWorkerNotFound, in.WorkerID)
	}
	if in.PaymentRef != "" {
		if _, dup := s.paymentRefs[in.PaymentRef]; dup {
			return model.Tip{}, fmt.Errorf("%w: %s", model.ErrDuplicatePayment, in.PaymentRef)
		}
	}

	s.seq++
	row := &tipRow{
		seq: s.seq,
		tip: model.Tip{
			ID:           s.newID(),
			WorkerID:     in.WorkerID,
			Amount:       in.Amount,
			CustomerName: in.CustomerName,
			PaymentRef:   in.PaymentRef,
			CreatedAt:    s.now().UTC(),
		},
	}
	s.tips[row.tip.ID] = row
	s.byWorker[in.WorkerID] = append(s.byWorker[in.WorkerID], row)
	if in.PaymentRef != "" {
		s.paymentRefs[in.PaymentRef] = row.tip.ID
	}
	return cloneTip(row.tip), nil
}

// AmendLatest implements Ledger.
func (s *MemoryStore) AmendLatest(_ context.Context, workerID, customerName string, upd model.ReviewUpdate) (model.Tip, error) {
	defer observe("amend_latest", time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()

	var latest *tipRow
	for _, row := range s.byWorker[workerID] {
		if row.tip.CustomerName != customerName {
			continue
		}
		if latest == nil || row.newerThan(latest) {
			latest = row
		}
	}
	if latest == nil {
		return model.Tip{}, fmt.Errorf("%w: worker %s, customer %q", model.ErrTipNotFound, workerID, customerName)
	}
	applyReview(&latest.tip, upd)
	return cloneTip(latest.tip), nil
}

// AmendTip implements Ledger.
func (s *MemoryStore) AmendTip(_ context.Context, tipID string, upd model.ReviewUpdate) (model.Tip, error) {
	defer observe("amend_tip", time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.tips[tipID]
	if !ok {
		return model.Tip{}, fmt.Errorf("%w: %s", model.ErrTipNotFound, tipID)
	}
	applyReview(&row.tip, upd)
	return cloneTip(row.tip), nil
}

// GetTip implements Ledger.
func (s *MemoryStore) GetTip(_ context.Context, tipID string) (model.Tip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.tips[tipID]
	if !ok {
		return model.Tip{}, fmt.Errorf("%w: %s", model.ErrTipNotFound, tipID)
	}
	return cloneTip(row.tip), nil
}

// ListTipsForWorker implements Ledger.
func (s *MemoryStore) ListTipsForWorker(_ context.Context, workerID string) ([]model.Tip, error) {
	defer observe("list_tips", time.Now())

	s.mu.RLock()
	rows := make([]*tipRow, len(s.byWorker[workerID]))
	copy(rows, s.byWorker[workerID])
	out := make([]model.Tip, 0, len(rows))
	sort.Slice(rows, func(i, j int) bool { return rows[i].newerThan(rows[j]) })
	for _, row := range rows {
		out = append(out, cloneTip(row.tip))
	}
	s.mu.RUnlock()
	return out, nil
}

// Counts implements Store.
func (s *MemoryStore) Counts(_ context.Context) (Counts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Counts{Profiles: len(s.profiles), Roster: s.rosterLen, Tips: len(s.tips)}, nil
}

// Ping implements Store.
func (s *MemoryStore) Ping(_ context.Context) error { return nil }

// Close stops the metrics updater.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

func (s *MemoryStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.updateMetrics(ctx)
			}
		}
	}()
}

func (s *MemoryStore) updateMetrics(ctx context.Context) {
	c, _ := s.Counts(ctx)
	metrics.UpdateRepositoryCounts(c.Profiles, c.Roster, c.Tips)
}

func applyReview(t *model.Tip, upd model.ReviewUpdate) {
	rating := upd.Rating
	t.Rating = &rating
	t.Review = nil
	if upd.Review != nil {
		review := *upd.Review
		t.Review = &review
	}
}

// cloneTip detaches the optional fields so callers cannot mutate stored state.
func cloneTip(t model.Tip) model.Tip {
	if t.Rating != nil {
		r := *t.Rating
		t.Rating = &r
	}
	if t.Review != nil {
		r := *t.Review
		t.Review = &r
	}
	return t
}

func observe(op string, start time.Time) {
	metrics.RecordRepositoryLatency(op, float64(time.Since(start).Microseconds())/1000)
}
