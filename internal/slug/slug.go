// Package slug builds unique, URL-safe identifiers for job posts.
package slug

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fallback is used when the text normalizes to nothing
const Fallback = "job"

var (
	disallowed = regexp.MustCompile(`[^a-z0-9\s-]`)
	whitespace = regexp.MustCompile(`\s+`)
)

// Normalize lower-cases text, strips diacritics, drops anything outside
// [a-z0-9\s-], turns whitespace runs into single hyphens and trims hyphens
// from both ends.
func Normalize(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, text)
	if err != nil {
		stripped = text
	}

	s := strings.ToLower(stripped)
	s = disallowed.ReplaceAllString(s, "")
	s = whitespace.ReplaceAllString(strings.TrimSpace(s), "-")
	return strings.Trim(s, "-")
}

// Generate returns a slug for text that is absent from existing.
// A non-blank prefix is prepended as "{prefix}-". When the candidate is taken
// the suffixes -1, -2, ... are tried in order.
//
// Generate is pure; the caller must persist the result under a unique
// constraint and regenerate when the insert is rejected.
func Generate(prefix *string, text string, existing map[string]struct{}) string {
	base := Normalize(text)
	if base == "" {
		base = Fallback
	}
	if prefix != nil {
		if p := Normalize(*prefix); p != "" {
			base = p + "-" + base
		}
	}

	if _, taken := existing[base]; !taken {
		return base
	}
	for i := 1; ; i++ {
		candidate := base + "-" + strconv.Itoa(i)
		if _, taken := existing[candidate]; !taken {
			return candidate
		}
	}
}

// Base is the candidate Generate starts from, before uniqueness resolution.
// Stores use it to narrow the set of existing slugs they need to load.
func Base(prefix *string, text string) string {
	return Generate(prefix, text, nil)
}

// Set builds the lookup set Generate expects
func Set(slugs ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(slugs))
	for _, s := range slugs {
		set[s] = struct{}{}
	}
	return set
}
