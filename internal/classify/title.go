package classify

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
)

const (
	maxTitleLen     = 50
	minCutPosition  = 30
	maxTitleWords   = 8
	conceptCount    = 3
	conceptsPerPart = 2
)

var (
	whitespaceRegex = regexp.MustCompile(`\s+`)
	separatorRegex  = regexp.MustCompile(`[-_]{2,}`)
)

// typePrefixes maps content types to the literal title prefix they get.
// Code uses the detected language instead.
var typePrefixes = map[ContentType]string{
	Error:  "error",
	Log:    "log",
	Config: "config",
	Json:   "json",
	Data:   "data",
}

// SynthesizeTitle builds a short, filesystem-safe title from an analysis.
func SynthesizeTitle(a Analysis) string {
	concepts := topConcepts(a, conceptCount)

	var parts []string
	prefix := ""
	switch {
	case a.Type == Code && a.Language != "":
		prefix = a.Language
	case typePrefixes[a.Type] != "":
		prefix = typePrefixes[a.Type]
	case a.Domain != "":
		prefix = a.Domain
	}

	switch {
	case prefix != "":
		parts = append(parts, prefix)
		parts = append(parts, firstN(concepts, conceptsPerPart)...)
	case len(concepts) > 0:
		parts = append(parts, concepts...)
	default:
		return fallbackTitle(a)
	}

	title := Sanitize(strings.Join(nonBlank(parts), "-"))
	title = truncate(title)
	if title == "" {
		return fallbackTitle(a)
	}
	return title
}

// topConcepts returns up to count concepts: the first file name stem, then
// up to two proper nouns, then keywords not already present.
func topConcepts(a Analysis, count int) []string {
	concepts := append([]string(nil), firstN(a.ProperNouns, conceptsPerPart)...)
	for _, kw := range a.Keywords {
		if len(concepts) >= count {
			break
		}
		if !containsFold(concepts, kw) {
			concepts = append(concepts, kw)
		}
	}

	if len(a.FileNames) > 0 {
		name := a.FileNames[0]
		if stem := strings.TrimSuffix(name, filepath.Ext(name)); stem != "" {
			concepts = append([]string{stem}, concepts...)
		}
	}
	return firstN(concepts, count)
}

func fallbackTitle(a Analysis) string {
	switch a.Type {
	case Error:
		return "error-trace"
	case Log:
		return "log-output"
	case Code:
		if a.Language != "" {
			return "code-snippet-" + a.Language
		}
		return "code-snippet"
	case Json:
		return "json-data"
	case Config:
		return "config-settings"
	case Data:
		return "data-table"
	}
	return fmt.Sprintf("clip-%dw-%dl", a.Words, a.Lines)
}

// Sanitize makes a title safe for use in a file name: invalid characters are
// dropped, whitespace becomes "-", separator runs collapse, and the result is
// lowercased.
func Sanitize(title string) string {
	title = strings.Map(func(r rune) rune {
		if r < 32 || unicode.IsControl(r) || strings.ContainsRune(`<>:"/\|?*`, r) {
			return -1
		}
		return r
	}, title)
	title = whitespaceRegex.ReplaceAllString(title, "-")
	title = separatorRegex.ReplaceAllString(title, "-")
	title = strings.Trim(title, "-_")
	return strings.ToLower(title)
}

// truncate caps a sanitized title at 50 characters, preferring a cut at the last
// dash past position 30, and at eight dash-separated words.
func truncate(title string) string {
	if runes := []rune(title); len(runes) > maxTitleLen {
		runes = runes[:maxTitleLen]
		for i := len(runes) - 1; i > minCutPosition; i-- {
			if runes[i] == '-' {
				runes = runes[:i]
				break
			}
		}
		title = string(runes)
	}
	if words := strings.Split(title, "-"); len(words) > maxTitleWords {
		title = strings.Join(words[:maxTitleWords], "-")
	}
	return strings.Trim(title, "-_")
}

func nonBlank(parts []string) []string {
	out := parts[:0:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

func containsFold(items []string, s string) bool {
	for _, it := range items {
		if strings.EqualFold(it, s) {
			return true
		}
	}
	return false
}
