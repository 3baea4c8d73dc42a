package autocomplete

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// SuggestionRecord is one candidate returned by the lookup endpoint.
// Optional fields are pointers so an absent key stays absent when it is
// copied into a SelectionPayload.
type SuggestionRecord struct {
	Name        string   `json:"name"`
	Admin1      *string  `json:"admin1,omitempty"`
	Country     string   `json:"country"`
	CountryCode string   `json:"country_code"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
}

// SuggestionItem is what the suggestion list displays and what a pick hands back.
type SuggestionItem struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// SelectionPayload is the structured city choice stored in the hidden
// selection field and read by the weather search form.
type SelectionPayload struct {
	City        string   `json:"city"`
	Country     string   `json:"country"`
	CountryCode string   `json:"country_code"`
	Lat         *float64 `json:"lat,omitempty"`
	Lon         *float64 `json:"lon,omitempty"`
	Admin       *string  `json:"admin"`
}

// HasCoordinates reports whether both lat and lon are present.
func (p SelectionPayload) HasCoordinates() bool {
	return p.Lat != nil && p.Lon != nil
}

// AdminName returns the region or "" when absent.
func (p SelectionPayload) AdminName() string {
	if p.Admin == nil {
		return ""
	}
	return *p.Admin
}

// Encode serializes the payload into the hidden field format.
func (p SelectionPayload) Encode() (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

var (
	errNotObject   = errors.New("value is not a JSON object")
	errMissingCity = errors.New("city is missing")
)

// ParseSelection parses a hidden field value back into a payload.
// Anything that is not a JSON object naming a city is a *DecodeError.
func ParseSelection(raw string) (SelectionPayload, error) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") {
		return SelectionPayload{}, &DecodeError{Source: "selection", Err: errNotObject}
	}

	var payload SelectionPayload
	dec := json.NewDecoder(bytes.NewReader([]byte(trimmed)))
	if err := dec.Decode(&payload); err != nil {
		return SelectionPayload{}, &DecodeError{Source: "selection", Err: err}
	}
	if dec.More() {
		return SelectionPayload{}, &DecodeError{Source: "selection", Err: errors.New("trailing data after object")}
	}
	if strings.TrimSpace(payload.City) == "" {
		return SelectionPayload{}, &DecodeError{Source: "selection", Err: errMissingCity}
	}

	return payload, nil
}
