package event

import "unicode/utf8"

// Shorten truncates s to at most max runes without ever splitting a UTF-8
// code point. The second return reports whether truncation happened.
func Shorten(s string, max int) (string, bool) {
	if max <= 0 {
		return "", s != ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s, false
	}

	count := 0
	for i := range s {
		if count == max {
			return s[:i], true
		}
		count++
	}
	return s, false
}
