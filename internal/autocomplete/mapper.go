package autocomplete

import "strings"

// Label prefixes shown to the user (city, region, country).
const (
	cityPrefix    = "гор. "
	regionPrefix  = "рег. "
	countryPrefix = "стр. "
)

// FormatLabel renders "гор. <city>, рег. <region>, стр. <country> (<cc>)".
// The region segment is dropped when admin1 is absent or empty.
func FormatLabel(r SuggestionRecord) string {
	var b strings.Builder
	b.WriteString(cityPrefix)
	b.WriteString(r.Name)
	if r.Admin1 != nil && *r.Admin1 != "" {
		b.WriteString(", ")
		b.WriteString(regionPrefix)
		b.WriteString(*r.Admin1)
	}
	b.WriteString(", ")
	b.WriteString(countryPrefix)
	b.WriteString(r.Country)
	b.WriteString(" (")
	b.WriteString(r.CountryCode)
	b.WriteString(")")
	return b.String()
}

// PayloadFor copies a record into the payload stored on selection.
func PayloadFor(r SuggestionRecord) SelectionPayload {
	return SelectionPayload{
		City:        r.Name,
		Country:     r.Country,
		CountryCode: r.CountryCode,
		Lat:         r.Latitude,
		Lon:         r.Longitude,
		Admin:       r.Admin1,
	}
}

// MapRecords turns lookup records into list items, keeping their order.
// Ranking and filtering belong to the endpoint; nothing is dropped here.
func MapRecords(records []SuggestionRecord) []SuggestionItem {
	items := make([]SuggestionItem, 0, len(records))
	for _, r := range records {
		// Records decoded from JSON carry no NaN or Inf, so Encode cannot fail.
		value, _ := PayloadFor(r).Encode()
		items = append(items, SuggestionItem{
			Label: FormatLabel(r),
			Value: value,
		})
	}
	return items
}
