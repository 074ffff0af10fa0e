package service

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"inkwell/internal/validation"
)

// maxDerivedSlugLength leaves room for the timestamp suffix within
// validation.MaxSlugLength.
const maxDerivedSlugLength = validation.MaxSlugLength - 20

var (
	postSlugStrip  = regexp.MustCompile(`[^a-z0-9\s_-]`)
	postSlugSep    = regexp.MustCompile(`[\s_]+`)
	whitespaceRuns = regexp.MustCompile(`\s+`)
	hyphenRuns     = regexp.MustCompile(`-+`)
)

// PostSlug derives a URL slug from a post title. Whitespace and underscores
// separate words. Titles without any slug-safe characters produce "post".
func PostSlug(title string) string {
	s := strings.ToLower(strings.TrimSpace(title))
	s = postSlugStrip.ReplaceAllString(s, "")
	s = postSlugSep.ReplaceAllString(s, "-")
	s = hyphenRuns.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > maxDerivedSlugLength {
		s = strings.TrimRight(s[:maxDerivedSlugLength], "-")
	}
	if s == "" {
		return "post"
	}
	return s
}

// TaxonomySlug derives a slug for a tag or category name: lowercase,
// whitespace runs become hyphens, anything outside [a-z0-9-] is dropped.
func TaxonomySlug(name string, fallback string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = whitespaceRuns.ReplaceAllString(s, "-")

	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '-' {
			b.WriteByte(c)
		}
	}
	out := strings.Trim(hyphenRuns.ReplaceAllString(b.String(), "-"), "-")
	if out == "" {
		return fallback
	}
	return out
}

// timestampedSlug appends the unix-millisecond suffix used when a post slug is taken.
func timestampedSlug(base string, now time.Time) string {
	return fmt.Sprintf("%s-%d", base, now.UnixMilli())
}

// nextNumberedSlug picks base, base-2, base-3, ... skipping every taken slug.
func nextNumberedSlug(base string, taken map[string]struct{}) string {
	if _, ok := taken[base]; !ok {
		return base
	}
	for n := 2; ; n++ {
		candidate := base + "-" + strconv.Itoa(n)
		if _, ok := taken[candidate]; !ok {
			return candidate
		}
	}
}
