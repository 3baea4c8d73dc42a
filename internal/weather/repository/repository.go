package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repo implements the search history repository on Postgres.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new search history repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Compile-time check that Repo implements Repository.
var _ Repository = (*Repo)(nil)

func (r *Repo) GetOrCreateForUser(ctx context.Context, userID uuid.UUID, entry SearchEntry) (bool, error) {
	query := `
		INSERT INTO search_history (id, user_id, city, country, country_code, admin, forecast_days)
		SELECT $1::uuid, $2::uuid, $3::text, $4::text, $5::text, $6::text, $7::int
		WHERE NOT EXISTS (
			SELECT 1 FROM search_history
			WHERE user_id = $2 AND city = $3 AND country = $4
				AND country_code = $5 AND admin = $6 AND forecast_days = $7
		)`

	tag, err := r.pool.Exec(ctx, query,
		uuid.New(), userID, entry.City, entry.Country, entry.CountryCode, entry.Admin, entry.ForecastDays,
	)
	if err != nil {
		return false, fmt.Errorf("get or create search history: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *Repo) InsertAnonymous(ctx context.Context, entry SearchEntry) error {
	query := `
		INSERT INTO search_history (id, user_id, city, country, country_code, admin, forecast_days)
		VALUES ($1, NULL, $2, $3, $4, $5, $6)`

	if _, err := r.pool.Exec(ctx, query,
		uuid.New(), entry.City, entry.Country, entry.CountryCode, entry.Admin, entry.ForecastDays,
	); err != nil {
		return fmt.Errorf("insert anonymous search history: %w", err)
	}
	return nil
}

func (r *Repo) ListRecent(ctx context.Context, userID uuid.UUID, limit int) ([]HistoryRow, error) {
	query := `
		SELECT city, country, country_code, admin, forecast_days, created_at
		FROM search_history
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list search history: %w", err)
	}

	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (HistoryRow, error) {
		var h HistoryRow
		err := row.Scan(&h.City, &h.Country, &h.CountryCode, &h.Admin, &h.ForecastDays, &h.CreatedAt)
		return h, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan search history: %w", err)
	}
	return items, nil
}

func (r *Repo) CityStats(ctx context.Context) ([]CityCount, error) {
	query := `
		SELECT city, COUNT(*) AS count
		FROM search_history
		GROUP BY city
		ORDER BY count DESC, city ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("city stats: %w", err)
	}

	stats, err := pgx.CollectRows(rows, pgx.RowToStructByPos[CityCount])
	if err != nil {
		return nil, fmt.Errorf("scan city stats: %w", err)
	}
	return stats, nil
}
