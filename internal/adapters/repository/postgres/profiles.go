package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/okian/tipjar/internal/adapters/repository"
	"github.com/okian/tipjar/internal/domain/model"
)

const (
	profileColumns      = `id, role, name, email, payout_id, business_name, created_at`
	insertProfileQuery  = `INSERT INTO profiles(` + profileColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	selectProfileQuery  = `SELECT ` + profileColumns + ` FROM profiles WHERE id=$1`
	selectByEmailQuery  = `SELECT ` + profileColumns + ` FROM profiles WHERE email=$1`
	selectRoleLockQuery = `SELECT role FROM profiles WHERE id=$1 FOR SHARE`
)

// CreateProfile implements repository.Directory.
func (s *Store) CreateProfile(ctx context.Context, p model.Profile) (model.Profile, error) {
	defer observe("create_profile", time.Now())

	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	if p.ID == "" {
		p.ID = s.newID()
	}
	p.CreatedAt = s.stamp()

	_, err := s.db.Exec(ctx, insertProfileQuery,
		p.ID, string(p.Role), p.Name, p.Email, p.PayoutID, p.BusinessName, p.CreatedAt)
	if err != nil {
		err = translate("insert profile", err)
		if errors.Is(err, model.ErrDuplicateEmail) {
			return model.Profile{}, fmt.Errorf("%w: %s", model.ErrDuplicateEmail, p.Email)
		}
		return model.Profile{}, err
	}
	return p, nil
}

// GetProfile implements repository.Directory.
func (s *Store) GetProfile(ctx context.Context, id string) (model.Profile, error) {
	return s.scanProfile(s.db.QueryRow(ctx, selectProfileQuery, id))
}

// FindByEmail implements repository.Directory.
func (s *Store) FindByEmail(ctx context.Context, email string) (model.Profile, error) {
	return s.scanProfile(s.db.QueryRow(ctx, selectByEmailQuery, strings.ToLower(strings.TrimSpace(email))))
}

func (s *Store) scanProfile(row pgx.Row) (model.Profile, error) {
	var (
		p    model.Profile
		role string
	)
	if err := row.Scan(&p.ID, &role, &p.Name, &p.Email, &p.PayoutID, &p.BusinessName, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Profile{}, repository.ErrProfileNotFound
		}
		return model.Profile{}, model.Upstream("get profile", err)
	}
	p.Role = model.Role(role)
	p.CreatedAt = p.CreatedAt.UTC()
	return p, nil
}
