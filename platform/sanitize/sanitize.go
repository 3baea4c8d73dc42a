// Package sanitize cleans user-typed search text before it is sent upstream
// or stored.
package sanitize

import (
	"html"
	"strings"
	"sync"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

var (
	queryPolicyOnce sync.Once
	queryPolicy     *bluemonday.Policy
)

// Query strips markup and control characters from a search string and
// collapses runs of whitespace into single spaces.
func Query(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	// The policy escapes entities in text; queries are never rendered as HTML.
	cleaned := html.UnescapeString(querySanitizer().Sanitize(trimmed))
	cleaned = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, cleaned)
	return strings.Join(strings.Fields(cleaned), " ")
}

func querySanitizer() *bluemonday.Policy {
	queryPolicyOnce.Do(func() {
		policy := bluemonday.StrictPolicy()
		policy.AddSpaceWhenStrippingTag(true)
		queryPolicy = policy
	})
	return queryPolicy
}
