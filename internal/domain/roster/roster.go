// Package roster binds workers to the businesses that employ them.
package roster

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/tipjar/internal/domain/model"
	"github.com/okian/tipjar/pkg/logger"
	"github.com/okian/tipjar/pkg/metrics"
)

// Directory resolves owners by id and workers by email.
type Directory interface {
	GetProfile(ctx context.Context, id string) (model.Profile, error)
	FindByEmail(ctx context.Context, email string) (model.Profile, error)
}

// Store persists roster entries.
type Store interface {
	HasMembership(ctx context.Context, ownerID, workerID string) (bool, error)
	AddMembership(ctx context.Context, ownerID, workerID string) (model.RosterEntry, error)
	ListWorkers(ctx context.Context, ownerID string) ([]string, error)
}

// Manager maintains business rosters. There is no removal.
type Manager struct {
	dir   Directory
	store Store
	log   logger.Logger
}

// NewManager creates a Manager.
func NewManager(dir Directory, store Store, log logger.Logger) *Manager {
	return &Manager{dir: dir, store: store, log: log}
}

// AddWorkerToBusiness adds the worker registered under workerEmail to the
// owner's roster. A pair that already exists fails with
// model.ErrDuplicateMembership.
func (m *Manager) AddWorkerToBusiness(ctx context.Context, ownerID, workerEmail string) (model.RosterEntry, error) {
	if err := m.requireOwner(ctx, ownerID); err != nil {
		return model.RosterEntry{}, err
	}
	worker, err := m.dir.FindByEmail(ctx, workerEmail)
	if errors.Is(err, model.ErrNotFound) || (err == nil && worker.Role != model.RoleWorker) {
		return model.RosterEntry{}, fmt.Errorf("%w: no worker registered as %s", model.ErrWorkerNotFound, workerEmail)
	}
	if err != nil {
		return model.RosterEntry{}, model.Upstream("find worker "+workerEmail, err)
	}

	exists, err := m.store.HasMembership(ctx, ownerID, worker.ID)
	if err != nil {
		return model.RosterEntry{}, model.Upstream("check membership", err)
	}
	if exists {
		metrics.RecordRosterConflict()
		return model.RosterEntry{}, model.ErrDuplicateMembership
	}

	// A concurrent add can still win between the check and the insert; the
	// store reports that as the same conflict.
	entry, err := m.store.AddMembership(ctx, ownerID, worker.ID)
	if errors.Is(err, model.ErrDuplicateMembership) {
		metrics.RecordRosterConflict()
		return model.RosterEntry{}, err
	}
	if err != nil {
		return model.RosterEntry{}, model.Upstream("add membership", err)
	}
	metrics.RecordRosterAddition()
	m.log.Info(ctx, "worker added to business",
		logger.String("owner_id", ownerID),
		logger.String("worker_id", worker.ID))
	return entry, nil
}

// ListWorkersForBusiness returns the ids of every worker on the owner's roster.
func (m *Manager) ListWorkersForBusiness(ctx context.Context, ownerID string) ([]string, error) {
	if err := m.requireOwner(ctx, ownerID); err != nil {
		return nil, err
	}
	ids, err := m.store.ListWorkers(ctx, ownerID)
	if err != nil {
		return nil, model.Upstream("list workers", err)
	}
	return ids, nil
}

func (m *Manager) requireOwner(ctx context.Context, ownerID string) error {
	owner, err := m.dir.GetProfile(ctx, ownerID)
	if errors.Is(err, model.ErrNotFound) || (err == nil && owner.Role != model.RoleOwner) {
		return fmt.Errorf("%w: %s", model.ErrOwnerNotFound, ownerID)
	}
	if err != nil {
		return model.Upstream("resolve owner "+ownerID, err)
	}
	return nil
}
