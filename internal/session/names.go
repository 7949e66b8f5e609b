package session

import (
	"strings"
	"unicode"
)

const defaultDisplayName = "Player"

// normalizeName trims raw, drops control characters and keeps at most limit runes.
func normalizeName(raw string, limit int) string {
	var b strings.Builder
	n := 0
	for _, r := range strings.TrimSpace(raw) {
		if unicode.IsControl(r) {
			continue
		}
		if limit > 0 && n >= limit {
			break
		}
		b.WriteRune(r)
		n++
	}
	name := strings.TrimSpace(b.String())
	if name == "" {
		return defaultDisplayName
	}
	return name
}
