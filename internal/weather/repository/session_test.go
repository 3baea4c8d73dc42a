package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSessions(t *testing.T, ttl time.Duration, limit int) (*miniredis.Miniredis, *RedisSessions) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisSessions(client, ttl, limit)
}

func cityEntry(city string) SearchEntry {
	return SearchEntry{City: city, Country: "Россия", CountryCode: "RU", Admin: city, ForecastDays: 3}
}

func TestSessionRecentIsNewestFirst(t *testing.T) {
	_, store := newSessions(t, time.Hour, 5)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Remember(ctx, "s1", cityEntry("Москва"), at))
	require.NoError(t, store.Remember(ctx, "s1", cityEntry("Казань"), at.Add(time.Minute)))

	rows, err := store.Recent(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Казань", rows[0].City)
	assert.Equal(t, "Москва", rows[1].City)
	assert.Equal(t, at, rows[1].CreatedAt)
}

func TestSessionKeepsUniqueEntries(t *testing.T) {
	_, store := newSessions(t, time.Hour, 5)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Remember(ctx, "s1", cityEntry("Москва"), at))
	require.NoError(t, store.Remember(ctx, "s1", cityEntry("Казань"), at))
	require.NoError(t, store.Remember(ctx, "s1", cityEntry("Москва"), at.Add(time.Hour)))

	longer := cityEntry("Москва")
	longer.ForecastDays = 7
	require.NoError(t, store.Remember(ctx, "s1", longer, at))

	rows, err := store.Recent(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, 7, rows[0].ForecastDays)
	assert.Equal(t, "Казань", rows[1].City)
	assert.Equal(t, at, rows[2].CreatedAt, "a repeated search keeps its first position")
}

func TestSessionCapsEntries(t *testing.T) {
	_, store := newSessions(t, time.Hour, 5)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 1; i <= 7; i++ {
		require.NoError(t, store.Remember(ctx, "s1", cityEntry(fmt.Sprintf("city-%d", i)), at))
	}

	rows, err := store.Recent(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, "city-7", rows[0].City)
	assert.Equal(t, "city-3", rows[4].City)
}

func TestSessionsAreIsolatedAndExpire(t *testing.T) {
	mr, store := newSessions(t, time.Hour, 5)
	ctx := context.Background()

	require.NoError(t, store.Remember(ctx, "s1", cityEntry("Москва"), time.Now()))
	assert.Equal(t, time.Hour, mr.TTL("weather:session:s1"))

	rows, err := store.Recent(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, rows)

	mr.FastForward(2 * time.Hour)
	rows, err = store.Recent(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestSessionUnreadableEntry(t *testing.T) {
	mr, store := newSessions(t, time.Hour, 5)
	require.NoError(t, mr.Set("weather:session:s1", "{broken"))

	_, err := store.Recent(context.Background(), "s1")
	assert.Error(t, err)

	err = store.Remember(context.Background(), "s1", cityEntry("Москва"), time.Now())
	assert.Error(t, err)
}
