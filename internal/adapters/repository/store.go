// Package repository defines the storage ports of the ledger and an in-memory implementation.
package repository

import (
	"context"

	"github.com/okian/tipjar/internal/domain/model"
)

// Directory stores identities. It stands in for the external identity provider.
type Directory interface {
	// CreateProfile stores p, assigning an ID when empty.
	// Returns model.ErrDuplicateEmail if the email is taken.
	CreateProfile(ctx context.Context, p model.Profile) (model.Profile, error)

	// GetProfile returns ErrProfileNotFound for unknown ids.
	GetProfile(ctx context.Context, id string) (model.Profile, error)

	// FindByEmail matches case-insensitively and returns ErrProfileNotFound when absent.
	FindByEmail(ctx context.Context, email string) (model.Profile, error)
}

// Roster stores business memberships. Entries are append-only.
type Roster interface {
	HasMembership(ctx context.Context, ownerID, workerID string) (bool, error)

	// AddMembership returns model.ErrDuplicateMembership when the pair exists.
	AddMembership(ctx context.Context, ownerID, workerID string) (model.RosterEntry, error)

	// ListWorkers returns worker ids in the order they joined.
	ListWorkers(ctx context.Context, ownerID string) ([]string, error)
}

// Ledger stores tips.
type Ledger interface {
	// AppendTip stores a new unrated tip stamped with the store clock.
	// Returns model.ErrWorkerNotFound or model.ErrDuplicatePayment.
	AppendTip(ctx context.Context, in model.NewTip) (model.Tip, error)

	// AmendLatest applies upd to the newest tip of (workerID, customerName)
	// in one atomic step. Returns model.ErrTipNotFound when nothing matches.
	AmendLatest(ctx context.Context, workerID, customerName string, upd model.ReviewUpdate) (model.Tip, error)

	// AmendTip applies upd to the tip with the given id.
	AmendTip(ctx context.Context, tipID string, upd model.ReviewUpdate) (model.Tip, error)

	GetTip(ctx context.Context, tipID string) (model.Tip, error)

	// ListTipsForWorker returns tips newest first.
	ListTipsForWorker(ctx context.Context, workerID string) ([]model.Tip, error)
}

// Counts summarises stored records.
type Counts struct {
	Profiles int `json:"profiles"`
	Roster   int `json:"roster_entries"`
	Tips     int `json:"tips"`
}

// Store is the complete storage port.
type Store interface {
	Directory
	Roster
	Ledger

	Counts(ctx context.Context) (Counts, error)
	Ping(ctx context.Context) error
	Close() error
}
