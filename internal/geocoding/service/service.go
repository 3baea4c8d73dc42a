// Package service implements city search on top of the Open-Meteo
// geocoding API with a Redis answer cache.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/unicode/norm"

	"meteo_backend/internal/geocoding/transport"
	"meteo_backend/platform/apperr"
	"meteo_backend/platform/logger"
	"meteo_backend/platform/metrics"
	"meteo_backend/platform/sanitize"
)

const (
	cacheKeyPrefix = "geocoding:search:"

	msgUnavailable = "geocoding service unavailable"
	msgLookupFail  = "Ошибка при запросе геоданных"
	msgNotFound    = "Город не найден"
)

var cyrillic = regexp.MustCompile(`[А-Яа-яЁё]`)

// IsCyrillic reports whether text contains a Russian letter.
func IsCyrillic(text string) bool {
	return cyrillic.MatchString(text)
}

// CacheKey builds the Redis key for a search query.
func CacheKey(query string) string {
	return cacheKeyPrefix + norm.NFC.String(strings.ToLower(strings.TrimSpace(query)))
}

// Service answers city searches.
type Service struct {
	upstream Upstream
	cache    *redis.Client
	ttl      time.Duration
	count    int
	group    singleflight.Group
	log      *logger.Logger
}

// New creates a geocoding service. cache may be nil to disable caching.
func New(upstream Upstream, cache *redis.Client, ttl time.Duration, count int, log *logger.Logger) *Service {
	if count <= 0 {
		count = 5
	}
	return &Service{
		upstream: upstream,
		cache:    cache,
		ttl:      ttl,
		count:    count,
		log:      log,
	}
}

// Search returns the cities matching query, most populous first.
// A blank query yields an empty list without calling the upstream.
func (s *Service) Search(ctx context.Context, query string) ([]transport.City, error) {
	query = sanitize.Query(query)
	if query == "" {
		return []transport.City{}, nil
	}

	key := CacheKey(query)
	if cities, ok := s.readCache(ctx, key); ok {
		return cities, nil
	}

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		// Shared by every waiter, so one caller going away must not fail the rest.
		callCtx := context.WithoutCancel(ctx)

		cities, err := s.upstream.Search(callCtx, s.query(query, ""))
		if err != nil {
			return nil, err
		}
		SortByPopulation(cities)
		s.writeCache(callCtx, key, cities)
		return cities, nil
	})
	if err != nil {
		return nil, apperr.Upstream(msgUnavailable, err).WithOp("geocoding.Search")
	}

	cities := v.([]transport.City)
	out := make([]transport.City, len(cities))
	copy(out, cities)
	return out, nil
}

// Resolve picks the single best match for a city name. With admin set the
// first result in that region wins; otherwise, or when no result is in
// that region, the first result is used.
func (s *Service) Resolve(ctx context.Context, city, countryCode, admin string) (transport.City, error) {
	city = sanitize.Query(city)
	if city == "" {
		return transport.City{}, apperr.NotFound(msgNotFound)
	}

	results, err := s.upstream.Search(ctx, s.query(city, countryCode))
	if err != nil {
		return transport.City{}, apperr.Upstream(msgLookupFail, err).WithOp("geocoding.Resolve")
	}
	if len(results) == 0 {
		return transport.City{}, apperr.NotFound(msgNotFound)
	}

	if admin != "" {
		for _, r := range results {
			if r.AdminName() == admin {
				return r, nil
			}
		}
	}
	return results[0], nil
}

func (s *Service) query(name, countryCode string) Query {
	q := Query{Name: name, CountryCode: countryCode, Count: s.count}
	if IsCyrillic(name) {
		q.Language = "ru"
	}
	return q
}

// SortByPopulation orders cities by population, largest first. Cities with
// equal population keep their upstream order.
func SortByPopulation(cities []transport.City) {
	sort.SliceStable(cities, func(i, j int) bool {
		return cities[i].Population > cities[j].Population
	})
}

func (s *Service) readCache(ctx context.Context, key string) ([]transport.City, bool) {
	if s.cache == nil {
		return nil, false
	}

	raw, err := s.cache.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
		return nil, false
	}
	if err != nil {
		metrics.CacheLookupsTotal.WithLabelValues("error").Inc()
		s.log.Warn("geocoding cache read failed", "key", key, "error", err)
		return nil, false
	}

	var cities []transport.City
	if err := json.Unmarshal(raw, &cities); err != nil {
		metrics.CacheLookupsTotal.WithLabelValues("error").Inc()
		s.log.Warn("geocoding cache entry unreadable", "key", key, "error", err)
		return nil, false
	}

	metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
	if cities == nil {
		cities = []transport.City{}
	}
	return cities, true
}

func (s *Service) writeCache(ctx context.Context, key string, cities []transport.City) {
	if s.cache == nil || s.ttl <= 0 {
		return
	}

	raw, err := json.Marshal(cities)
	if err != nil {
		s.log.Warn("geocoding cache encode failed", "key", key, "error", err)
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.ttl).Err(); err != nil {
		s.log.Warn("geocoding cache write failed", "key", key, "error", err)
	}
}
