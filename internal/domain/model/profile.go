// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
)

// Role distinguishes the two kinds of directory identities.
type Role string

const (
	RoleWorker Role = "worker"
	RoleOwner  Role = "owner"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool { return r == RoleWorker || r == RoleOwner }

// Profile is an identity resolved through the directory.
// PayoutID is only meaningful for workers, BusinessName only for owners.
type Profile struct {
	ID           string
	Role         Role
	Name         string
	Email        string
	PayoutID     string
	BusinessName string
	CreatedAt    time.Time
}

// Validate checks the fields a registration must carry.
func (p Profile) Validate() error {
	if !p.Role.Valid() {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidProfile, p.Role)
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(p.Email)); err != nil {
		return fmt.Errorf("%w: email %q", ErrInvalidProfile, p.Email)
	}
	switch p.Role {
	case RoleWorker:
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("%w: worker name is required", ErrInvalidProfile)
		}
	case RoleOwner:
		if strings.TrimSpace(p.BusinessName) == "" {
			return fmt.Errorf("%w: business name is required", ErrInvalidProfile)
		}
	}
	return nil
}

// WorkerProfile is a Profile with role worker.
type WorkerProfile = Profile

// BusinessProfile is a Profile with role owner.
type BusinessProfile = Profile

// RosterEntry binds a worker to a business. Entries are never removed.
type RosterEntry struct {
	OwnerID   string
	WorkerID  string
	CreatedAt time.Time
}
