package gateway

import (
	"strings"
	"unicode/utf8"
)

// Field length ceilings. Player names and game display names share one
// bound; topics get a larger one because they routinely hold ticket titles.
const (
	maxNameLength  = 50
	maxTopicLength = 200
)

// sanitize trims a free-text field and enforces a length ceiling, counted
// in runes so multi-byte names are not penalized. It returns ok=false for
// values that are empty after trimming or over the limit.
func sanitize(s string, maxLen int) (string, bool) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" || utf8.RuneCountInString(trimmed) > maxLen {
		return "", false
	}
	return trimmed, true
}
