package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SearchEntry is one searched city as stored in search_history.
type SearchEntry struct {
	City         string
	Country      string
	CountryCode  string
	Admin        string
	ForecastDays int
}

// HistoryRow is a stored search of one user.
type HistoryRow struct {
	SearchEntry
	CreatedAt time.Time
}

// CityCount is the number of searches of one city.
type CityCount struct {
	City  string
	Count int64
}

// Repository persists search history.
type Repository interface {
	// GetOrCreateForUser stores entry for userID unless an identical row
	// already exists. created reports whether a row was inserted.
	GetOrCreateForUser(ctx context.Context, userID uuid.UUID, entry SearchEntry) (created bool, err error)
	// InsertAnonymous stores entry without a user so it still counts in stats.
	InsertAnonymous(ctx context.Context, entry SearchEntry) error
	// ListRecent returns the newest searches of userID.
	ListRecent(ctx context.Context, userID uuid.UUID, limit int) ([]HistoryRow, error)
	// CityStats counts searches per city, most searched first.
	CityStats(ctx context.Context) ([]CityCount, error)
}
