package plans

import (
	"fmt"
	"strings"
	"unicode"
)

// Slugify derives a URL-safe slug from a plan name: lowercase, runs of
// non-alphanumeric characters collapsed to single dashes.
func Slugify(name string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteByte('-')
			lastDash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// slugCandidate returns the nth disambiguation candidate for a base slug.
// Attempt 0 is the bare slug, attempt 1 appends "-2" and so on, matching the
// admin convention of numeric suffixes on collision.
func slugCandidate(base string, attempt int) string {
	if attempt == 0 {
		return base
	}
	return fmt.Sprintf("%s-%d", base, attempt+1)
}
