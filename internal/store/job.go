package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fractionalhub.app/concierge/common"
	"fractionalhub.app/concierge/internal/model"
)

const defaultSearchLimit = 20

type jobStore struct {
	pool *pgxpool.Pool
}

// NewJobStore creates a Postgres-backed JobStore
func NewJobStore(pool *pgxpool.Pool) JobStore {
	return &jobStore{pool: pool}
}

const jobColumns = "id, title, company, location, is_remote, day_rate, currency, slug"

// buildSearchQuery renders a JobQuery into one parameterized SELECT.
func buildSearchQuery(q JobQuery) (string, []any) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	for _, kw := range q.Keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		conds = append(conds, "title ILIKE "+arg("%"+kw+"%"))
	}
	if q.Location != "" {
		conds = append(conds, "location ILIKE "+arg("%"+q.Location+"%"))
	}
	if q.RemoteOnly {
		conds = append(conds, "is_remote = TRUE")
	}
	if q.MinDayRate > 0 {
		conds = append(conds, "day_rate >= "+arg(q.MinDayRate))
	}
	if q.MaxDayRate > 0 {
		conds = append(conds, "day_rate <= "+arg(q.MaxDayRate))
	}

	query := "SELECT " + jobColumns + " FROM jobs"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	query += " ORDER BY day_rate DESC NULLS LAST LIMIT " + arg(limit)
	return query, args
}

func (s *jobStore) Search(ctx context.Context, q JobQuery) ([]model.Job, error) {
	query, args := buildSearchQuery(q)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("searching jobs: %w", err)
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		var j model.Job
		if err := rows.Scan(&j.ID, &j.Title, &j.Company, &j.Location, &j.IsRemote, &j.DayRate, &j.Currency, &j.Slug); err != nil {
			return nil, fmt.Errorf("scanning job row: %w", err)
		}
		// Older rows predate slug generation; derive one so every
		// listing links somewhere.
		if j.Slug == "" {
			if slug, err := common.Slugify(j.Title, j.Company); err == nil {
				j.Slug = slug
			}
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating job rows: %w", err)
	}
	return jobs, nil
}

func (s *jobStore) GetBySlug(ctx context.Context, slug string) (*model.Job, error) {
	var j model.Job
	err := s.pool.QueryRow(ctx,
		"SELECT "+jobColumns+" FROM jobs WHERE slug = $1", slug,
	).Scan(&j.ID, &j.Title, &j.Company, &j.Location, &j.IsRemote, &j.DayRate, &j.Currency, &j.Slug)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("fetching job by slug: %w", err)
	}
	return &j, nil
}
