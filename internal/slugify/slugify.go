package slugify

import (
	"strings"

	goslug "github.com/gosimple/slug"
)

// Channel converts a channel handle or t.me URL into a lowercase,
// filesystem-safe slug. URLs contribute only their final path segment.
// Never fails: malformed input yields a best-effort (possibly empty) token.
func Channel(identity string) string {
	return goslug.Make(Handle(identity))
}

// Handle extracts the bare channel handle from an identity that may be a
// full URL or carry a leading @. No slugification is applied, so handles
// with underscores survive intact for URL construction.
func Handle(identity string) string {
	s := strings.TrimSpace(identity)
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		s = strings.TrimRight(s, "/")
		if i := strings.LastIndex(s, "/"); i >= 0 {
			s = s[i+1:]
		}
	}
	s = strings.TrimPrefix(s, "@")
	// Telegram web previews live under /s/<handle>; strip a stray query.
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	return s
}
