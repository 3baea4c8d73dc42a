package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"meteo_backend/internal/weather/transport"
	"meteo_backend/platform/config"
	"meteo_backend/platform/logger"
	"meteo_backend/platform/metrics"
)

const upstreamName = "forecast"

var (
	currentVariables = []string{
		"temperature_2m",
		"apparent_temperature",
		"relative_humidity_2m",
		"rain",
		"is_day",
	}
	hourlyVariables = []string{
		"temperature_2m",
		"apparent_temperature",
		"relative_humidity_2m",
		"rain",
		"is_day",
		"wind_speed_10m",
	}
)

// Forecast is the decoded Open-Meteo forecast with unix timestamps.
type Forecast struct {
	Timezone         string       `json:"timezone"`
	UTCOffsetSeconds int          `json:"utc_offset_seconds"`
	Current          CurrentBlock `json:"current"`
	Hourly           HourlyBlock  `json:"hourly"`
}

type CurrentBlock struct {
	Time                int64   `json:"time"`
	Temperature         float64 `json:"temperature_2m"`
	ApparentTemperature float64 `json:"apparent_temperature"`
	Humidity            float64 `json:"relative_humidity_2m"`
	Rain                float64 `json:"rain"`
	IsDay               int     `json:"is_day"`
}

type HourlyBlock struct {
	Time                []int64   `json:"time"`
	Temperature         []float64 `json:"temperature_2m"`
	ApparentTemperature []float64 `json:"apparent_temperature"`
	Humidity            []float64 `json:"relative_humidity_2m"`
	Rain                []float64 `json:"rain"`
	IsDay               []int     `json:"is_day"`
	WindSpeed           []float64 `json:"wind_speed_10m"`
}

// Location returns the city's time zone, falling back to the fixed
// offset reported by the API when the zone name is unknown locally.
func (f Forecast) Location() *time.Location {
	if f.Timezone != "" {
		if loc, err := time.LoadLocation(f.Timezone); err == nil {
			return loc
		}
	}
	return time.FixedZone(f.Timezone, f.UTCOffsetSeconds)
}

// ForecastFetcher loads a forecast for coordinates.
type ForecastFetcher interface {
	Fetch(ctx context.Context, lat, lon float64, days int) (Forecast, error)
}

// ForecastClient talks to api.open-meteo.com.
type ForecastClient struct {
	baseURL string
	client  *http.Client
	log     *logger.Logger
}

func NewForecastClient(cfg config.WeatherConfig, log *logger.Logger) *ForecastClient {
	return &ForecastClient{
		baseURL: cfg.GetForecastURL(),
		client:  &http.Client{Timeout: cfg.GetForecastTimeout()},
		log:     log,
	}
}

func (c *ForecastClient) Fetch(ctx context.Context, lat, lon float64, days int) (Forecast, error) {
	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("current", strings.Join(currentVariables, ","))
	params.Set("hourly", strings.Join(hourlyVariables, ","))
	params.Set("timezone", "auto")
	params.Set("timeformat", "unixtime")
	params.Set("forecast_days", strconv.Itoa(days))

	reqURL := fmt.Sprintf("%s?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Forecast{}, err
	}
	req.Header.Set("User-Agent", "MeteoBackend/1.0")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		metrics.ObserveUpstream(upstreamName, "transport_error", time.Since(start))
		c.log.UpstreamError(upstreamName, 0, err)
		return Forecast{}, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		metrics.ObserveUpstream(upstreamName, "bad_status", time.Since(start))
		c.log.UpstreamError(upstreamName, resp.StatusCode, nil)
		return Forecast{}, fmt.Errorf("forecast upstream returned %d", resp.StatusCode)
	}

	var forecast Forecast
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&forecast); err != nil {
		metrics.ObserveUpstream(upstreamName, "decode_error", time.Since(start))
		c.log.UpstreamError(upstreamName, resp.StatusCode, err)
		return Forecast{}, fmt.Errorf("decode forecast payload: %w", err)
	}

	metrics.ObserveUpstream(upstreamName, "ok", time.Since(start))
	return forecast, nil
}

var _ ForecastFetcher = (*ForecastClient)(nil)

// CurrentWeather converts the current block.
func CurrentWeather(f Forecast) transport.CurrentWeather {
	return transport.CurrentWeather{
		Temperature:         round2(f.Current.Temperature),
		ApparentTemperature: round2(f.Current.ApparentTemperature),
		Humidity:            f.Current.Humidity,
		Rain:                round2(f.Current.Rain),
		IsDay:               f.Current.IsDay == 1,
	}
}

// GroupHourly drops the hours before the current local hour and groups
// the rest by local date, keeping upstream order.
func GroupHourly(f Forecast, now time.Time) []transport.DayForecast {
	loc := f.Location()
	local := now.In(loc)
	from := time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), 0, 0, 0, loc)
	h := f.Hourly

	days := []transport.DayForecast{}
	for i, ts := range h.Time {
		at := time.Unix(ts, 0).In(loc)
		if at.Before(from) {
			continue
		}

		entry := transport.HourlyWeather{
			Time:                at.Format("2006-01-02 15:04"),
			Temperature:         round2(valueAt(h.Temperature, i)),
			ApparentTemperature: round2(valueAt(h.ApparentTemperature, i)),
			Humidity:            valueAt(h.Humidity, i),
			Rain:                round2(valueAt(h.Rain, i)),
			IsDay:               i < len(h.IsDay) && h.IsDay[i] == 1,
			WindSpeed:           round2(valueAt(h.WindSpeed, i)),
		}

		date := at.Format("2006-01-02")
		if n := len(days); n > 0 && days[n-1].Date == date {
			days[n-1].Hours = append(days[n-1].Hours, entry)
			continue
		}
		days = append(days, transport.DayForecast{Date: date, Hours: []transport.HourlyWeather{entry}})
	}
	return days
}

func valueAt(values []float64, i int) float64 {
	if i < len(values) {
		return values[i]
	}
	return 0
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
