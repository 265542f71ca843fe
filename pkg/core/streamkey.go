package core

import (
	"strings"
	"unicode/utf8"
)

// MaxKeyLength is the upper bound, in bytes, of a stream key.
const MaxKeyLength = 200

// DeriveKey maps a procurement to the stream key every record of it is filed under.
//
// Every writer and every reader must go through this function: two keys for the
// same procurement split its records into partitions that never join again.
// It never fails; odd titles only produce shorter keys.
func DeriveKey(id, title string) string {
	return truncate(id+"-"+Slug(title), MaxKeyLength)
}

// Slug lower-cases s and collapses every run of characters outside [a-z0-9]
// into a single hyphen, without leading or trailing hyphens.
func Slug(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	pending := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pending && sb.Len() > 0 {
				sb.WriteByte('-')
			}
			pending = false
			sb.WriteRune(r)
			continue
		}
		pending = true
	}
	return sb.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
