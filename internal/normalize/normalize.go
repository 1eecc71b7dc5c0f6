// Package normalize cleans the free text pulled out of store pages.
package normalize

import (
	"regexp"
	"strings"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// dayNames maps the two-letter schema.org weekday codes to full names.
var dayNames = map[string]string{
	"Su": "Sunday",
	"Mo": "Monday",
	"Tu": "Tuesday",
	"We": "Wednesday",
	"Th": "Thursday",
	"Fr": "Friday",
	"Sa": "Saturday",
}

// excludedAddressKeys never contribute to a street line.
var excludedAddressKeys = map[string]struct{}{
	"":          {},
	"@type":     {},
	"telephone": {},
}

// Part is one key/value pair of a structured-data object, kept in document order.
type Part struct {
	Key   string
	Value string
}

// CollapseWhitespace replaces every whitespace run with a single space and trims the result.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

// FormatSchedule expands a compact openingHours code such as "Mo 9am-5pm Tu 10am-6pm"
// into "Monday: 9am-5pm | Tuesday: 10am-6pm". Tokens that are not weekday codes are kept verbatim.
func FormatSchedule(code string) string {
	var b strings.Builder
	for _, token := range strings.Fields(code) {
		if day, ok := dayNames[token]; ok {
			b.WriteString(" | ")
			b.WriteString(day)
			b.WriteString(": ")
			continue
		}
		b.WriteString(token)
	}
	out := CollapseWhitespace(b.String())
	return strings.TrimSpace(strings.Replace(out, "|", "", 1))
}

// SkipsAddressKey reports whether JoinAddressParts ignores values stored under key.
func SkipsAddressKey(key string) bool {
	_, skip := excludedAddressKeys[key]
	return skip
}

// JoinAddressParts builds a street line from an address object's values in their original order.
// The "@type" and "telephone" keys are skipped.
func JoinAddressParts(parts []Part) string {
	var b strings.Builder
	for _, p := range parts {
		if SkipsAddressKey(p.Key) {
			continue
		}
		b.WriteString(p.Value)
		b.WriteString(", ")
	}
	return strings.TrimSuffix(CollapseWhitespace(b.String()), ",")
}
