package persist

import (
	"regexp"
	"strings"
)

const maxSlugLen = 80

var (
	slugSpaceRegex   = regexp.MustCompile(`\s+`)
	slugInvalidRegex = regexp.MustCompile(`[^a-z0-9-]`)
	slugDashRegex    = regexp.MustCompile(`-{2,}`)
)

// Slugify converts a title to a lowercase, hyphenated file name stem made
// of [a-z0-9-]. Empty results become "untitled".
func Slugify(title string) string {
	slug := strings.ToLower(title)
	slug = slugSpaceRegex.ReplaceAllString(slug, "-")
	slug = slugInvalidRegex.ReplaceAllString(slug, "")
	slug = slugDashRegex.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")

	if len(slug) > maxSlugLen {
		atBoundary := slug[maxSlugLen] == '-'
		slug = slug[:maxSlugLen]
		if idx := strings.LastIndex(slug, "-"); !atBoundary && idx > 0 {
			slug = slug[:idx]
		}
		slug = strings.TrimRight(slug, "-")
	}

	if slug == "" {
		return "untitled"
	}
	return slug
}
