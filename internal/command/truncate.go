package command

import "unicode/utf8"

// TruncateUTF8 caps b at max bytes, cutting back to the largest prefix that
// is still valid UTF-8 so no code point is ever split.
func TruncateUTF8(b []byte, max int) (string, bool) {
	if max <= 0 {
		return "", len(b) > 0
	}
	if len(b) <= max {
		return string(b), false
	}

	cut := max
	for cut > 0 && !utf8.RuneStart(b[cut]) {
		cut--
	}
	return string(b[:cut]), true
}
