// Package service implements the weather search: resolving the city from
// the form, recording search history and loading the forecast.
package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"meteo_backend/internal/autocomplete"
	geotransport "meteo_backend/internal/geocoding/transport"
	"meteo_backend/internal/weather/repository"
	"meteo_backend/internal/weather/transport"
	"meteo_backend/platform/apperr"
	"meteo_backend/platform/logger"
	"meteo_backend/platform/metrics"
	"meteo_backend/platform/sanitize"
)

const (
	DefaultForecastDays = 3
	MinForecastDays     = 1
	MaxForecastDays     = 16
	HistoryLimit        = 5
	SessionTTL          = 14 * 24 * time.Hour

	msgCityRequired    = "Нужно ввести название города!"
	msgInvalidDays     = "Введите корректное количество дней (от 1 до 16)"
	msgForecastFailure = "weather service unavailable"
)

// CityResolver finds coordinates for a city name.
type CityResolver interface {
	Resolve(ctx context.Context, city, countryCode, admin string) (geotransport.City, error)
}

// Caller identifies who is searching. UserID is set for signed-in users;
// SessionID is the anonymous session cookie, possibly empty.
type Caller struct {
	UserID    *uuid.UUID
	SessionID string
}

// Service answers weather searches.
type Service struct {
	resolver CityResolver
	forecast ForecastFetcher
	repo     repository.Repository
	sessions repository.SessionStore
	log      *logger.Logger
	now      func() time.Time
}

// New creates the weather service. sessions may be nil, in which case
// anonymous visitors get no history.
func New(resolver CityResolver, forecast ForecastFetcher, repo repository.Repository, sessions repository.SessionStore, log *logger.Logger) *Service {
	return &Service{
		resolver: resolver,
		forecast: forecast,
		repo:     repo,
		sessions: sessions,
		log:      log,
		now:      time.Now,
	}
}

// ParseForecastDays reads the forecast_days field. Empty means the default.
func ParseForecastDays(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultForecastDays, nil
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days < MinForecastDays || days > MaxForecastDays {
		return 0, apperr.Validation(msgInvalidDays)
	}
	return days, nil
}

// Search resolves the requested city and returns its forecast.
func (s *Service) Search(ctx context.Context, req transport.SearchRequest, caller Caller) (transport.SearchResponse, error) {
	city := sanitize.Query(req.City)
	if city == "" {
		return transport.SearchResponse{}, apperr.Validation(msgCityRequired)
	}

	days, err := ParseForecastDays(req.ForecastDays)
	if err != nil {
		return transport.SearchResponse{}, err
	}

	loc, err := s.locate(ctx, city, req)
	if err != nil {
		return transport.SearchResponse{}, err
	}

	s.recordSearch(ctx, caller, repository.SearchEntry{
		City:         loc.City,
		Country:      loc.Country,
		CountryCode:  loc.CountryCode,
		Admin:        derefString(loc.Admin),
		ForecastDays: days,
	})

	forecast, err := s.forecast.Fetch(ctx, loc.Latitude, loc.Longitude, days)
	if err != nil {
		return transport.SearchResponse{}, apperr.Upstream(msgForecastFailure, err).WithOp("weather.Search")
	}
	loc.Timezone = forecast.Timezone

	return transport.SearchResponse{
		Location:     loc,
		ForecastDays: days,
		Current:      CurrentWeather(forecast),
		HourlyByDay:  GroupHourly(forecast, s.now()),
	}, nil
}

// locate prefers the structured selection from the suggestion widget and
// falls back to geocoding the raw text.
func (s *Service) locate(ctx context.Context, city string, req transport.SearchRequest) (transport.Location, error) {
	if strings.TrimSpace(req.Selection) != "" {
		sel, err := autocomplete.ParseSelection(req.Selection)
		if err == nil {
			return s.locateSelection(ctx, sel)
		}
		s.log.Debug("ignoring unreadable selection", "error", err)
	}

	admin := ""
	source := "text"
	if req.History != "" {
		admin = strings.TrimSpace(req.Admin)
		source = "history"
	}

	geo, err := s.resolver.Resolve(ctx, city, "", admin)
	if err != nil {
		return transport.Location{}, err
	}
	metrics.CitySearchesTotal.WithLabelValues(source).Inc()

	return transport.Location{
		City:        geo.Name,
		Country:     geo.Country,
		CountryCode: geo.CountryCode,
		Admin:       geo.Admin1,
		Latitude:    geo.Latitude,
		Longitude:   geo.Longitude,
	}, nil
}

func (s *Service) locateSelection(ctx context.Context, sel autocomplete.SelectionPayload) (transport.Location, error) {
	loc := transport.Location{
		City:        sel.City,
		Country:     sel.Country,
		CountryCode: sel.CountryCode,
		Admin:       sel.Admin,
	}

	if sel.HasCoordinates() {
		loc.Latitude, loc.Longitude = *sel.Lat, *sel.Lon
		metrics.CitySearchesTotal.WithLabelValues("selection").Inc()
		return loc, nil
	}

	geo, err := s.resolver.Resolve(ctx, sel.City, sel.CountryCode, "")
	if err != nil {
		return transport.Location{}, err
	}
	loc.Latitude, loc.Longitude = geo.Latitude, geo.Longitude
	metrics.CitySearchesTotal.WithLabelValues("selection_geocoded").Inc()
	return loc, nil
}

// recordSearch stores the search. A user's repeated search is not stored
// twice for that user but still counts towards the city statistics.
// Anonymous searches are also kept in the caller's session.
// Failures are logged; the forecast is served regardless.
func (s *Service) recordSearch(ctx context.Context, caller Caller, entry repository.SearchEntry) {
	if caller.UserID != nil {
		created, err := s.repo.GetOrCreateForUser(ctx, *caller.UserID, entry)
		if err != nil {
			s.log.DatabaseError("weather.recordSearch", err)
			return
		}
		if created {
			return
		}
	}

	if err := s.repo.InsertAnonymous(ctx, entry); err != nil {
		s.log.DatabaseError("weather.recordSearch", err)
	}

	if caller.UserID == nil && caller.SessionID != "" && s.sessions != nil {
		if err := s.sessions.Remember(ctx, caller.SessionID, entry, s.now()); err != nil {
			s.log.Warn("session history write failed", "error", err)
		}
	}
}

// History returns the user's latest searches, newest first.
func (s *Service) History(ctx context.Context, userID uuid.UUID) ([]transport.HistoryItem, error) {
	rows, err := s.repo.ListRecent(ctx, userID, HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("weather history: %w", err)
	}

	return historyItems(rows), nil
}

// SessionHistory returns the last unique searches of an anonymous
// session, newest first.
func (s *Service) SessionHistory(ctx context.Context, sessionID string) ([]transport.HistoryItem, error) {
	if s.sessions == nil || sessionID == "" {
		return []transport.HistoryItem{}, nil
	}

	rows, err := s.sessions.Recent(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("session history: %w", err)
	}
	return historyItems(rows), nil
}

func historyItems(rows []repository.HistoryRow) []transport.HistoryItem {
	items := make([]transport.HistoryItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, transport.HistoryItem{
			City:         r.City,
			Country:      r.Country,
			CountryCode:  r.CountryCode,
			Admin:        r.Admin,
			ForecastDays: r.ForecastDays,
			SearchedAt:   r.CreatedAt,
		})
	}
	return items
}

// CityStats returns how often each city was searched, most searched first.
func (s *Service) CityStats(ctx context.Context) ([]transport.CityStat, error) {
	counts, err := s.repo.CityStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("city stats: %w", err)
	}

	stats := make([]transport.CityStat, 0, len(counts))
	for _, c := range counts {
		stats = append(stats, transport.CityStat{City: c.City, Count: c.Count})
	}
	return stats, nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
