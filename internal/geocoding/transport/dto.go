// Package transport holds request and response shapes of the geocoding module.
package transport

// SearchRequest is the query of GET /search-field/.
type SearchRequest struct {
	Query string `form:"q" validate:"max=100"`
}

// City is one Open-Meteo geocoding result. It is returned to clients as
// received, so the suggestion widget can read name, admin1, country,
// country_code, latitude and longitude from it.
type City struct {
	ID          int64    `json:"id,omitempty"`
	Name        string   `json:"name"`
	Latitude    float64  `json:"latitude"`
	Longitude   float64  `json:"longitude"`
	Elevation   *float64 `json:"elevation,omitempty"`
	FeatureCode string   `json:"feature_code,omitempty"`
	CountryCode string   `json:"country_code"`
	CountryID   int64    `json:"country_id,omitempty"`
	Country     string   `json:"country"`
	Admin1ID    int64    `json:"admin1_id,omitempty"`
	Admin1      *string  `json:"admin1,omitempty"`
	Admin2      *string  `json:"admin2,omitempty"`
	Timezone    string   `json:"timezone,omitempty"`
	Population  int64    `json:"population,omitempty"`
	Postcodes   []string `json:"postcodes,omitempty"`
}

// AdminName returns admin1 or "".
func (c City) AdminName() string {
	if c.Admin1 == nil {
		return ""
	}
	return *c.Admin1
}

// UpstreamResponse mirrors the geocoding API envelope.
type UpstreamResponse struct {
	Results []City `json:"results"`
}
