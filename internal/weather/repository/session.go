package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix = "weather:session:"
	sessionRetries   = 3
)

// SessionStore keeps the recent searches of anonymous visitors, keyed by
// their session cookie.
type SessionStore interface {
	Remember(ctx context.Context, sessionID string, entry SearchEntry, at time.Time) error
	Recent(ctx context.Context, sessionID string) ([]HistoryRow, error)
}

type sessionRow struct {
	City         string    `json:"city"`
	Country      string    `json:"country"`
	CountryCode  string    `json:"country_code"`
	Admin        string    `json:"admin"`
	ForecastDays int       `json:"forecast_days"`
	SearchedAt   time.Time `json:"searched_at"`
}

func (r sessionRow) entry() SearchEntry {
	return SearchEntry{
		City:         r.City,
		Country:      r.Country,
		CountryCode:  r.CountryCode,
		Admin:        r.Admin,
		ForecastDays: r.ForecastDays,
	}
}

// RedisSessions stores session history as one JSON list per session,
// oldest first. A repeated search keeps its original position.
type RedisSessions struct {
	client *redis.Client
	ttl    time.Duration
	limit  int
}

// NewRedisSessions creates a session store keeping at most limit unique
// entries per session for ttl after the last search.
func NewRedisSessions(client *redis.Client, ttl time.Duration, limit int) *RedisSessions {
	return &RedisSessions{client: client, ttl: ttl, limit: limit}
}

var _ SessionStore = (*RedisSessions)(nil)

func sessionKey(sessionID string) string {
	return sessionKeyPrefix + sessionID
}

func (s *RedisSessions) Remember(ctx context.Context, sessionID string, entry SearchEntry, at time.Time) error {
	key := sessionKey(sessionID)

	update := func(tx *redis.Tx) error {
		rows, err := readSession(ctx, tx, key)
		if err != nil {
			return err
		}

		known := false
		for _, r := range rows {
			if r.entry() == entry {
				known = true
				break
			}
		}
		if !known {
			rows = append(rows, sessionRow{
				City:         entry.City,
				Country:      entry.Country,
				CountryCode:  entry.CountryCode,
				Admin:        entry.Admin,
				ForecastDays: entry.ForecastDays,
				SearchedAt:   at.UTC(),
			})
		}
		if len(rows) > s.limit {
			rows = rows[len(rows)-s.limit:]
		}

		raw, err := json.Marshal(rows)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, s.ttl)
			return nil
		})
		return err
	}

	for i := 0; i < sessionRetries; i++ {
		err := s.client.Watch(ctx, update, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("remember session search: %w", err)
		}
		return nil
	}
	return fmt.Errorf("remember session search: %w", redis.TxFailedErr)
}

// Recent returns the session's searches, newest first.
func (s *RedisSessions) Recent(ctx context.Context, sessionID string) ([]HistoryRow, error) {
	rows, err := readSession(ctx, s.client, sessionKey(sessionID))
	if err != nil {
		return nil, fmt.Errorf("read session history: %w", err)
	}

	out := make([]HistoryRow, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		out = append(out, HistoryRow{SearchEntry: rows[i].entry(), CreatedAt: rows[i].SearchedAt})
	}
	return out, nil
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readSession(ctx context.Context, c getter, key string) ([]sessionRow, error) {
	raw, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var rows []sessionRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", key, err)
	}
	return rows, nil
}
