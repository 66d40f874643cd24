package catalog

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	digitsPattern = regexp.MustCompile(`\d+`)
	yearPattern   = regexp.MustCompile(`\d{4}`)
)

// DurationMinutes normalizes free-text duration such as "120 min" to an
// integer minute count. The second return is false when the text holds
// no digits at all, which storage maps to NULL.
func DurationMinutes(s string) (int, bool) {
	digits := strings.Join(digitsPattern.FindAllString(s, -1), "")
	if digits == "" {
		return 0, false
	}
	minutes, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return minutes, true
}

// RatingValue parses the stored rating text as a float. An empty or
// unparsable rating returns false; rank ordering places such records
// last within their tier.
func RatingValue(s string) (float64, bool) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ReleaseYear extracts the year component from a free-text release
// date. The date is not guaranteed ISO, so the first four-digit run is
// treated as the year.
func ReleaseYear(s string) (int, bool) {
	match := yearPattern.FindString(s)
	if match == "" {
		return 0, false
	}
	year, err := strconv.Atoi(match)
	if err != nil {
		return 0, false
	}
	return year, true
}
