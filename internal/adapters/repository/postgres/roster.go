package postgres

import (
	"context"
	"time"

	"github.com/okian/tipjar/internal/domain/model"
)

const (
	hasMembershipQuery = `SELECT EXISTS (SELECT 1 FROM business_workers WHERE owner_id=$1 AND worker_id=$2)`
	addMembershipQuery = `INSERT INTO business_workers(owner_id, worker_id, created_at) VALUES ($1, $2, $3)`
	listWorkersQuery   = `SELECT worker_id FROM business_workers WHERE owner_id=$1 ORDER BY seq`
)

// HasMembership implements repository.Roster.
func (s *Store) HasMembership(ctx context.Context, ownerID, workerID string) (bool, error) {
	var ok bool
	if err := s.db.QueryRow(ctx, hasMembershipQuery, ownerID, workerID).Scan(&ok); err != nil {
		return false, model.Upstream("has membership", err)
	}
	return ok, nil
}

// AddMembership implements repository.Roster. The primary key rejects
// a second entry for the same pair even when callers race.
func (s *Store) AddMembership(ctx context.Context, ownerID, workerID string) (model.RosterEntry, error) {
	defer observe("add_membership", time.Now())

	entry := model.RosterEntry{OwnerID: ownerID, WorkerID: workerID, CreatedAt: s.stamp()}
	if _, err := s.db.Exec(ctx, addMembershipQuery, ownerID, workerID, entry.CreatedAt); err != nil {
		return model.RosterEntry{}, translate("add membership", err)
	}
	return entry, nil
}

// ListWorkers implements repository.Roster.
func (s *Store) ListWorkers(ctx context.Context, ownerID string) ([]string, error) {
	rows, err := s.db.Query(ctx, listWorkersQuery, ownerID)
	if err != nil {
		return nil, model.Upstream("list workers", err)
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, model.Upstream("scan worker", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, model.Upstream("iterate workers", err)
	}
	return out, nil
}
