// Package util holds small text helpers shared across packages.
package util

import "unicode/utf8"

// Ellipsis marks a truncated preview.
const Ellipsis = "..."

// Preview bounds s to at most limit runes. A truncated string keeps its first
// limit-3 runes followed by Ellipsis, so the result never exceeds limit.
// A non-positive limit disables truncation.
func Preview(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	if limit <= len(Ellipsis) {
		return string([]rune(s)[:limit])
	}
	runes := []rune(s)
	return string(runes[:limit-len(Ellipsis)]) + Ellipsis
}

// ShortID returns the first 8 characters of an id for log lines and views.
func ShortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

// Shorten keeps the first limit runes of s and appends Ellipsis when anything
// was cut. Unlike Preview the result may exceed limit by len(Ellipsis).
func Shorten(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + Ellipsis
}

// Truncate keeps the first limit runes of s.
func Truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
