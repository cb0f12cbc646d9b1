package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fractionalhub.app/concierge/internal/model"
)

type profileStore struct {
	pool *pgxpool.Pool
}

// NewProfileStore creates a Postgres-backed ProfileStore
func NewProfileStore(pool *pgxpool.Pool) ProfileStore {
	return &profileStore{pool: pool}
}

func (s *profileStore) GetByUserID(ctx context.Context, userID string) (*model.Profile, error) {
	var p model.Profile
	err := s.pool.QueryRow(ctx, `
		SELECT user_id, first_name, last_name, email, is_authenticated,
		       current_country, interests, timeline, budget
		FROM profiles WHERE user_id = $1`, userID,
	).Scan(&p.UserID, &p.FirstName, &p.LastName, &p.Email, &p.IsAuthenticated,
		&p.CurrentCountry, &p.Interests, &p.Timeline, &p.Budget)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("fetching profile: %w", err)
	}
	return &p, nil
}

func (s *profileStore) SavePreference(ctx context.Context, userID, preferenceType string, values []string) error {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO profile_preferences (user_id, preference_type, "values", updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, preference_type)
		DO UPDATE SET "values" = EXCLUDED."values", updated_at = NOW()`,
		userID, preferenceType, values)
	if err != nil {
		return fmt.Errorf("saving preference: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("saving preference: no rows affected")
	}
	return nil
}
