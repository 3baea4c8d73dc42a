// Package transport holds request and response shapes of the weather module.
package transport

import "time"

// SearchRequest is the query posted by the city search form.
type SearchRequest struct {
	City         string `form:"city"`
	Selection    string `form:"selection"`
	History      string `form:"history"`
	Admin        string `form:"admin"`
	ForecastDays string `form:"forecast_days"`
}

// Location is the resolved city.
type Location struct {
	City        string  `json:"city"`
	Country     string  `json:"country"`
	CountryCode string  `json:"countryCode"`
	Admin       *string `json:"admin"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Timezone    string  `json:"timezone,omitempty"`
}

// CurrentWeather is the "current" block of the forecast.
type CurrentWeather struct {
	Temperature         float64 `json:"temperature"`
	ApparentTemperature float64 `json:"apparentTemperature"`
	Humidity            float64 `json:"humidity"`
	Rain                float64 `json:"rain"`
	IsDay               bool    `json:"isDay"`
}

// HourlyWeather is one forecast hour in the city's local time.
type HourlyWeather struct {
	Time                string  `json:"time"`
	Temperature         float64 `json:"temperature"`
	ApparentTemperature float64 `json:"apparentTemperature"`
	Humidity            float64 `json:"humidity"`
	Rain                float64 `json:"rain"`
	IsDay               bool    `json:"isDay"`
	WindSpeed           float64 `json:"windSpeed"`
}

// DayForecast groups the remaining hours of one local date.
type DayForecast struct {
	Date  string          `json:"date"`
	Hours []HourlyWeather `json:"hours"`
}

// SearchResponse is the answer of GET /api/v1/weather/search.
type SearchResponse struct {
	Location     Location       `json:"location"`
	ForecastDays int            `json:"forecastDays"`
	Current      CurrentWeather `json:"current"`
	HourlyByDay  []DayForecast  `json:"hourlyByDay"`
}

// HistoryItem is one entry of the user's recent searches.
type HistoryItem struct {
	City         string    `json:"city"`
	Country      string    `json:"country"`
	CountryCode  string    `json:"countryCode"`
	Admin        string    `json:"admin"`
	ForecastDays int       `json:"forecastDays"`
	SearchedAt   time.Time `json:"searchedAt"`
}

// CityStat is one row of GET /api/v1/weather/stats/cities.
type CityStat struct {
	City  string `json:"city"`
	Count int64  `json:"count"`
}
