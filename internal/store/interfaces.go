package store

import (
	"context"
	"errors"

	"fractionalhub.app/concierge/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// JobQuery narrows a listing search. Zero values mean "no filter".
type JobQuery struct {
	Keywords   []string // matched against title, case-insensitive
	Location   string
	RemoteOnly bool
	MinDayRate int
	MaxDayRate int
	Limit      int
}

// JobStore defines the contract for job listing access
type JobStore interface {
	Search(ctx context.Context, q JobQuery) ([]model.Job, error)
	GetBySlug(ctx context.Context, slug string) (*model.Job, error)
}

// ProfileStore defines the contract for user profile access
type ProfileStore interface {
	GetByUserID(ctx context.Context, userID string) (*model.Profile, error)
	SavePreference(ctx context.Context, userID, preferenceType string, values []string) error
}

// MemoryStore defines the contract for per-user conversation memory
type MemoryStore interface {
	Append(ctx context.Context, userID, transcript string) error
	RecentContext(ctx context.Context, userID string) (string, error)
}
