// Package convert turns raw clipboard payloads into normalized markdown.
package convert

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/PuerkitoBio/goquery"
)

var (
	startHTMLRegex   = regexp.MustCompile(`StartHTML:(\d+)`)
	endHTMLRegex     = regexp.MustCompile(`EndHTML:(\d+)`)
	blankRunRegex    = regexp.MustCompile(`\n{3,}`)
	bulletLineRegex  = regexp.MustCompile(`^\s*[*\-+]\s+`)
	orderedLineRegex = regexp.MustCompile(`^\s*\d+\.\s+`)
	bareURLRegex     = regexp.MustCompile(`https?://[^\s]+`)

	// codeRegex matches declarations, control-flow calls and comparison or
	// arrow operators.
	codeRegex = regexp.MustCompile(`(?m)\b(?:function\s+\w+|class\s+\w+|def\s+\w+|import\s+\S+|namespace\s+\w+|using\s+[\w.]+\s*;|(?:public|private|protected)\s+\w+)|\b(?:if|for|while)\s*\(|=>|->|==|!=|<=|>=|\+\+|--`)
)

// languageSignatures are checked in order; the first match wins.
var languageSignatures = []struct {
	lang string
	re   *regexp.Regexp
}{
	{"csharp", regexp.MustCompile(`\busing\s+System\b|\bnamespace\s+\w+\b|\bpublic\s+class\b`)},
	{"javascript", regexp.MustCompile(`\bfunction\s+\w+\s*\(|\bconst\s+\w+\s*=|\blet\s+\w+\s*=|\bvar\s+\w+\s*=`)},
	{"python", regexp.MustCompile(`\bdef\s+\w+\s*\(|\bimport\s+\w+|\bfrom\s+\w+\s+import\b`)},
	{"cpp", regexp.MustCompile(`#include\s*<|\bint\s+main\s*\(|\bstd::\w+`)},
	{"java", regexp.MustCompile(`\bpackage\s+\w+|\bimport\s+java\.|\bpublic\s+static\s+void\s+main`)},
	{"php", regexp.MustCompile(`<\?php\b|\$\w+\s*=`)},
	{"sql", regexp.MustCompile(`(?i)\bSELECT\s+.*\s+FROM\b|\bINSERT\s+INTO\b|\bCREATE\s+TABLE\b`)},
}

// bracketDensityThreshold is the share of bracket characters above which
// text is treated as code.
const bracketDensityThreshold = 0.05

var strippedTags = []string{"script", "style", "head", "noscript", "template"}

func newConverter() *md.Converter {
	conv := md.NewConverter("", true, &md.Options{
		HeadingStyle:     "atx",
		BulletListMarker: "-",
		CodeBlockStyle:   "fenced",
		EmDelimiter:      "*",
		StrongDelimiter:  "**",
	})
	conv.Use(plugin.GitHubFlavored())
	return conv
}

// ConvertHTML converts an HTML clipboard payload to markdown. Payloads in
// the CF_HTML clipboard framing are cut down to the HTML fragment first.
// If the HTML cannot be parsed the payload is handled as plain text.
func ConvertHTML(payload string) string {
	fragment := extractHTML(payload)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return ConvertPlainText(payload)
	}
	doc.Find(strings.Join(strippedTags, ",")).Remove()

	markdown := newConverter().Convert(doc.Selection)
	markdown = blankRunRegex.ReplaceAllString(markdown, "\n\n")
	return strings.TrimSpace(markdown)
}

// extractHTML returns the HTML part of a payload: the StartHTML/EndHTML byte
// range when both headers are present and valid, else everything from the
// first <html tag, else the whole payload.
func extractHTML(payload string) string {
	startMatch := startHTMLRegex.FindStringSubmatch(payload)
	endMatch := endHTMLRegex.FindStringSubmatch(payload)
	if startMatch != nil && endMatch != nil {
		start, errStart := strconv.Atoi(startMatch[1])
		end, errEnd := strconv.Atoi(endMatch[1])
		if errStart == nil && errEnd == nil && start < len(payload) && end <= len(payload) && start < end {
			return payload[start:end]
		}
	}

	if idx := strings.Index(strings.ToLower(payload), "<html"); idx >= 0 {
		return payload[idx:]
	}
	return payload
}

// ConvertPlainText converts plain text to markdown. Code is wrapped in a
// fenced block; other text keeps its lines, with bare URLs turned into links.
func ConvertPlainText(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}

	if IsLikelyCode(text) {
		return "```" + DetectLanguage(text) + "\n" + text + "\n```"
	}

	lines := strings.Split(text, "\n")
	var b strings.Builder
	for _, line := range lines {
		line = strings.TrimRight(line, " \t\r")
		switch {
		case bulletLineRegex.MatchString(line), orderedLineRegex.MatchString(line):
		case bareURLRegex.MatchString(line):
			line = bareURLRegex.ReplaceAllString(line, "[$0]($0)")
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return strings.TrimSpace(b.String())
}

// IsLikelyCode reports whether text looks like source code.
func IsLikelyCode(text string) bool {
	if codeRegex.MatchString(text) {
		return true
	}

	total := utf8.RuneCountInString(text)
	if total == 0 {
		return false
	}
	brackets := 0
	for _, r := range text {
		switch r {
		case '{', '}', '[', ']', '(', ')':
			brackets++
		}
	}
	if float64(brackets)/float64(total) > bracketDensityThreshold {
		return true
	}

	lines := strings.Split(text, "\n")
	if len(lines) <= 3 {
		return false
	}
	nonEmpty, semicolons := 0, 0
	for _, line := range lines {
		line = strings.TrimRight(line, " \t\r")
		if line == "" {
			continue
		}
		nonEmpty++
		if strings.HasSuffix(line, ";") {
			semicolons++
		}
	}
	return semicolons*2 > nonEmpty
}

// DetectLanguage guesses the fence tag for a code snippet.
// It returns "" when nothing matches.
func DetectLanguage(code string) string {
	for _, sig := range languageSignatures {
		if sig.re.MatchString(code) {
			return sig.lang
		}
	}
	return ""
}
