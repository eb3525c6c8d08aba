package tgui

import "strings"

// Label prepares scraped text for a button: whitespace runs collapse to one
// space and the result is cut to at most n runes, the ellipsis included.
func Label(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
