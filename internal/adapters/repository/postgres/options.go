package postgres

import (
	"time"

	"github.com/google/uuid"
)

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used to stamp createdAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator sets the generator for profile and tip ids.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) {
		if gen != nil {
			s.newID = gen
		}
	}
}

func uuidString() string { return uuid.NewString() }

// stamp returns the store clock at the precision postgres keeps.
func (s *Store) stamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}
