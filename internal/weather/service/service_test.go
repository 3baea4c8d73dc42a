package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	geotransport "meteo_backend/internal/geocoding/transport"
	"meteo_backend/internal/weather/repository"
	"meteo_backend/internal/weather/transport"
	"meteo_backend/platform/apperr"
	"meteo_backend/platform/logger"
)

type resolveCall struct {
	city, countryCode, admin string
}

type fakeResolver struct {
	calls  []resolveCall
	result geotransport.City
	err    error
}

func (f *fakeResolver) Resolve(_ context.Context, city, countryCode, admin string) (geotransport.City, error) {
	f.calls = append(f.calls, resolveCall{city, countryCode, admin})
	return f.result, f.err
}

type fetchCall struct {
	lat, lon float64
	days     int
}

type fakeForecast struct {
	calls    []fetchCall
	forecast Forecast
	err      error
}

func (f *fakeForecast) Fetch(_ context.Context, lat, lon float64, days int) (Forecast, error) {
	f.calls = append(f.calls, fetchCall{lat, lon, days})
	return f.forecast, f.err
}

type fakeRepo struct {
	mu        sync.Mutex
	user      []repository.SearchEntry
	anonymous []repository.SearchEntry
	created   bool
	err       error
	recent    []repository.HistoryRow
	stats     []repository.CityCount
}

func (f *fakeRepo) GetOrCreateForUser(_ context.Context, _ uuid.UUID, entry repository.SearchEntry) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	f.user = append(f.user, entry)
	return f.created, nil
}

func (f *fakeRepo) InsertAnonymous(_ context.Context, entry repository.SearchEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.anonymous = append(f.anonymous, entry)
	return nil
}

func (f *fakeRepo) ListRecent(_ context.Context, _ uuid.UUID, limit int) ([]repository.HistoryRow, error) {
	if len(f.recent) > limit {
		return f.recent[:limit], f.err
	}
	return f.recent, f.err
}

func (f *fakeRepo) CityStats(context.Context) ([]repository.CityCount, error) {
	return f.stats, f.err
}

func strPtr(s string) *string { return &s }

func moscow() geotransport.City {
	return geotransport.City{
		Name: "Москва", Country: "Россия", CountryCode: "RU", Admin1: strPtr("Москва"),
		Latitude: 55.75222, Longitude: 37.61556,
	}
}

func newTestService(res *fakeResolver, fc *fakeForecast, repo *fakeRepo) *Service {
	svc := New(res, fc, repo, nil, logger.Discard())
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }
	return svc
}

func messageOf(t *testing.T, err error) string {
	t.Helper()
	var appErr *apperr.Error
	require.True(t, errors.As(err, &appErr), "expected *apperr.Error, got %v", err)
	return appErr.Message
}

func TestParseForecastDays(t *testing.T) {
	valid := map[string]int{"": 3, " ": 3, "1": 1, "3": 3, "16": 16, " 7 ": 7}
	for raw, want := range valid {
		got, err := ParseForecastDays(raw)
		require.NoError(t, err, "raw %q", raw)
		assert.Equal(t, want, got, "raw %q", raw)
	}

	for _, raw := range []string{"0", "17", "-1", "abc", "3.5"} {
		_, err := ParseForecastDays(raw)
		require.Error(t, err, "raw %q", raw)
		assert.True(t, apperr.Is(err, apperr.KindValidation))
		assert.Equal(t, "Введите корректное количество дней (от 1 до 16)", messageOf(t, err))
	}
}

func TestSearchRequiresCity(t *testing.T) {
	svc := newTestService(&fakeResolver{}, &fakeForecast{}, &fakeRepo{})

	_, err := svc.Search(context.Background(), transport.SearchRequest{City: "   "}, Caller{})
	require.Error(t, err)
	assert.Equal(t, "Нужно ввести название города!", messageOf(t, err))
}

func TestSearchRejectsBadDaysBeforeCallingUpstreams(t *testing.T) {
	res := &fakeResolver{result: moscow()}
	fc := &fakeForecast{}
	svc := newTestService(res, fc, &fakeRepo{})

	_, err := svc.Search(context.Background(), transport.SearchRequest{City: "Москва", ForecastDays: "20"}, Caller{})
	require.Error(t, err)
	assert.Empty(t, res.calls)
	assert.Empty(t, fc.calls)
}

func TestSearchUsesSelectionCoordinates(t *testing.T) {
	res := &fakeResolver{err: errors.New("must not be called")}
	fc := &fakeForecast{forecast: Forecast{Timezone: "UTC"}}
	repo := &fakeRepo{}
	svc := newTestService(res, fc, repo)

	req := transport.SearchRequest{
		City:         "гор. Paris, рег. Île-de-France, стр. France (FR)",
		Selection:    `{"city":"Paris","country":"France","country_code":"FR","lat":48.85,"lon":2.35,"admin":"Île-de-France"}`,
		ForecastDays: "2",
	}
	resp, err := svc.Search(context.Background(), req, Caller{})
	require.NoError(t, err)

	assert.Empty(t, res.calls)
	require.Len(t, fc.calls, 1)
	assert.Equal(t, fetchCall{48.85, 2.35, 2}, fc.calls[0])
	assert.Equal(t, "Paris", resp.Location.City)
	assert.Equal(t, "Île-de-France", *resp.Location.Admin)
	assert.Equal(t, 2, resp.ForecastDays)

	require.Len(t, repo.anonymous, 1)
	assert.Equal(t, repository.SearchEntry{City: "Paris", Country: "France", CountryCode: "FR", Admin: "Île-de-France", ForecastDays: 2}, repo.anonymous[0])
}

func TestSearchGeocodesSelectionWithoutCoordinates(t *testing.T) {
	res := &fakeResolver{result: geotransport.City{Name: "Paris", Latitude: 1, Longitude: 2}}
	fc := &fakeForecast{}
	svc := newTestService(res, fc, &fakeRepo{})

	req := transport.SearchRequest{City: "Paris", Selection: `{"city":"Paris","country":"France","country_code":"FR","admin":null}`}
	resp, err := svc.Search(context.Background(), req, Caller{})
	require.NoError(t, err)

	require.Len(t, res.calls, 1)
	assert.Equal(t, resolveCall{"Paris", "FR", ""}, res.calls[0])
	assert.Equal(t, fetchCall{1, 2, DefaultForecastDays}, fc.calls[0])
	assert.Equal(t, "France", resp.Location.Country)
	assert.Nil(t, resp.Location.Admin)
}

func TestSearchIgnoresUnreadableSelection(t *testing.T) {
	res := &fakeResolver{result: moscow()}
	svc := newTestService(res, &fakeForecast{}, &fakeRepo{})

	resp, err := svc.Search(context.Background(), transport.SearchRequest{City: "Моск", Selection: "{oops"}, Caller{})
	require.NoError(t, err)

	require.Len(t, res.calls, 1)
	assert.Equal(t, resolveCall{"Моск", "", ""}, res.calls[0])
	assert.Equal(t, "Москва", resp.Location.City)
}

func TestSearchFromHistoryPassesAdmin(t *testing.T) {
	res := &fakeResolver{result: moscow()}
	svc := newTestService(res, &fakeForecast{}, &fakeRepo{})

	_, err := svc.Search(context.Background(), transport.SearchRequest{City: "Москва", History: "1", Admin: "Москва"}, Caller{})
	require.NoError(t, err)
	assert.Equal(t, resolveCall{"Москва", "", "Москва"}, res.calls[0])

	_, err = svc.Search(context.Background(), transport.SearchRequest{City: "Москва", Admin: "Москва"}, Caller{})
	require.NoError(t, err)
	assert.Equal(t, resolveCall{"Москва", "", ""}, res.calls[1])
}

func TestSearchPropagatesResolverError(t *testing.T) {
	res := &fakeResolver{err: apperr.NotFound("Город не найден")}
	fc := &fakeForecast{}
	repo := &fakeRepo{}
	svc := newTestService(res, fc, repo)

	_, err := svc.Search(context.Background(), transport.SearchRequest{City: "Qwzx"}, Caller{})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.Empty(t, fc.calls)
	assert.Empty(t, repo.anonymous)
}

func TestSearchRecordsUserHistory(t *testing.T) {
	user := uuid.New()

	t.Run("new entry", func(t *testing.T) {
		repo := &fakeRepo{created: true}
		svc := newTestService(&fakeResolver{result: moscow()}, &fakeForecast{}, repo)

		_, err := svc.Search(context.Background(), transport.SearchRequest{City: "Москва"}, Caller{UserID: &user})
		require.NoError(t, err)
		assert.Len(t, repo.user, 1)
		assert.Empty(t, repo.anonymous)
	})

	t.Run("repeated entry still counts", func(t *testing.T) {
		repo := &fakeRepo{created: false}
		svc := newTestService(&fakeResolver{result: moscow()}, &fakeForecast{}, repo)

		_, err := svc.Search(context.Background(), transport.SearchRequest{City: "Москва"}, Caller{UserID: &user})
		require.NoError(t, err)
		assert.Len(t, repo.user, 1)
		assert.Len(t, repo.anonymous, 1)
	})
}

func TestSearchSurvivesHistoryFailure(t *testing.T) {
	repo := &fakeRepo{err: errors.New("db down")}
	svc := newTestService(&fakeResolver{result: moscow()}, &fakeForecast{}, repo)

	_, err := svc.Search(context.Background(), transport.SearchRequest{City: "Москва"}, Caller{})
	assert.NoError(t, err)
}

func TestSearchForecastFailureIsUpstream(t *testing.T) {
	svc := newTestService(&fakeResolver{result: moscow()}, &fakeForecast{err: errors.New("timeout")}, &fakeRepo{})

	_, err := svc.Search(context.Background(), transport.SearchRequest{City: "Москва"}, Caller{})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindUpstream))
}

func TestHistoryAndStats(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := &fakeRepo{
		recent: []repository.HistoryRow{
			{SearchEntry: repository.SearchEntry{City: "Paris", Country: "France", CountryCode: "FR", ForecastDays: 3}, CreatedAt: at},
		},
		stats: []repository.CityCount{{City: "Москва", Count: 4}, {City: "Paris", Count: 1}},
	}
	svc := newTestService(&fakeResolver{}, &fakeForecast{}, repo)

	items, err := svc.History(context.Background(), uuid.New())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Paris", items[0].City)
	assert.Equal(t, at, items[0].SearchedAt)

	stats, err := svc.CityStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []transport.CityStat{{City: "Москва", Count: 4}, {City: "Paris", Count: 1}}, stats)
}

type fakeSessions struct {
	remembered map[string][]repository.SearchEntry
	err        error
}

func (f *fakeSessions) Remember(_ context.Context, sessionID string, entry repository.SearchEntry, _ time.Time) error {
	if f.err != nil {
		return f.err
	}
	if f.remembered == nil {
		f.remembered = map[string][]repository.SearchEntry{}
	}
	f.remembered[sessionID] = append(f.remembered[sessionID], entry)
	return nil
}

func (f *fakeSessions) Recent(_ context.Context, sessionID string) ([]repository.HistoryRow, error) {
	var rows []repository.HistoryRow
	for _, e := range f.remembered[sessionID] {
		rows = append(rows, repository.HistoryRow{SearchEntry: e})
	}
	return rows, f.err
}

func TestSearchRecordsSessionHistoryForAnonymousCaller(t *testing.T) {
	repo := &fakeRepo{created: true}
	sessions := &fakeSessions{}
	svc := newTestService(&fakeResolver{result: moscow()}, &fakeForecast{}, repo)
	svc.sessions = sessions

	_, err := svc.Search(context.Background(), transport.SearchRequest{City: "Москва"}, Caller{SessionID: "s1"})
	require.NoError(t, err)
	assert.Len(t, repo.anonymous, 1)
	require.Len(t, sessions.remembered["s1"], 1)
	assert.Equal(t, "Москва", sessions.remembered["s1"][0].City)

	user := uuid.New()
	_, err = svc.Search(context.Background(), transport.SearchRequest{City: "Москва"}, Caller{UserID: &user, SessionID: "s2"})
	require.NoError(t, err)
	assert.Empty(t, sessions.remembered["s2"])

	items, err := svc.SessionHistory(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Москва", items[0].City)
}

func TestSearchSurvivesSessionFailure(t *testing.T) {
	svc := newTestService(&fakeResolver{result: moscow()}, &fakeForecast{}, &fakeRepo{})
	svc.sessions = &fakeSessions{err: errors.New("redis down")}

	_, err := svc.Search(context.Background(), transport.SearchRequest{City: "Москва"}, Caller{SessionID: "s1"})
	assert.NoError(t, err)

	_, err = svc.SessionHistory(context.Background(), "s1")
	assert.Error(t, err)
}

func TestSessionHistoryWithoutStoreIsEmpty(t *testing.T) {
	svc := newTestService(&fakeResolver{}, &fakeForecast{}, &fakeRepo{})

	items, err := svc.SessionHistory(context.Background(), "s1")
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.NotNil(t, items)
}
