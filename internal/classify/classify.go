// Package classify derives a heuristic content analysis from clip text and
// synthesizes fallback titles from it.
package classify

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ContentType is the coarse kind of a clip.
type ContentType string

const (
	Text   ContentType = "text"
	Code   ContentType = "code"
	Json   ContentType = "json"
	Markup ContentType = "markup"
	Log    ContentType = "log"
	Error  ContentType = "error"
	Data   ContentType = "data"
	Config ContentType = "config"
)

// List caps.
const (
	MaxKeywords    = 10
	MaxProperNouns = 5
	MaxEntities    = 3
	MaxPhrases     = 3
)

// Analysis is the read-only result of Analyze. All list fields are
// deduplicated and capped.
type Analysis struct {
	Type             ContentType `json:"content_type"`
	Domain           string      `json:"domain"`
	Language         string      `json:"language"`
	HasCode          bool        `json:"has_code"`
	Keywords         []string    `json:"keywords"`
	ProperNouns      []string    `json:"proper_nouns"`
	URLs             []string    `json:"urls"`
	Emails           []string    `json:"emails"`
	FileNames        []string    `json:"file_names"`
	Numbers          []string    `json:"numbers"`
	FirstSentence    string      `json:"first_sentence"`
	ImportantPhrases []string    `json:"important_phrases"`
	Length           int         `json:"length"`
	Lines            int         `json:"lines"`
	Words            int         `json:"words"`
}

var (
	codeTypeRegex   = regexp.MustCompile(`(?i)\b(?:function|class|def|import|const|let|var)\b`)
	markupRegex     = regexp.MustCompile(`(?s)<[^>]+>.*</[^>]+>`)
	logStampRegex   = regexp.MustCompile(`\d{4}-\d{2}-\d{2}.*\d{2}:\d{2}:\d{2}`)
	logLevelRegex   = regexp.MustCompile(`(?i)\[(?:ERROR|WARN|INFO|DEBUG)\]`)
	tabularRegex    = regexp.MustCompile(`(?m)[\t,|].+[\t,|].+[\t,|]`)
	configLineRegex = regexp.MustCompile(`(?m)^\s*[\w.\-]+\s*[=:]\s*.+$`)

	wordRegex         = regexp.MustCompile(`\b[a-zA-Z]{3,}\b`)
	anyWordRegex      = regexp.MustCompile(`\w+`)
	capitalSeqRegex   = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*\b`)
	camelCaseRegex    = regexp.MustCompile(`\b[A-Z][a-z]+(?:[A-Z][a-z]+)+\b`)
	hasBracketRegex   = regexp.MustCompile(`[{}\[\]();]`)
	codeWordRegex     = regexp.MustCompile(`\b(?:function|class|def|import|const|let|var|public|private|return)\b`)
	codeOperatorRegex = regexp.MustCompile(`=>|->|==|!=|<=|>=|\+\+|--`)

	urlRegex      = regexp.MustCompile(`https?://\S+`)
	emailRegex    = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	fileNameRegex = regexp.MustCompile(`(?i)\b[\w\-]+\.(?:txt|pdf|doc|docx|xls|xlsx|csv|json|xml|html|css|js|ts|cs|java|py|go|rs|cpp|h|md|yml|yaml|ini|conf|log)\b`)
	numberRegexes = []*regexp.Regexp{
		regexp.MustCompile(`\b\d+\.\d+\.\d+\b`),
		regexp.MustCompile(`\b\d{4,}\b`),
		regexp.MustCompile(`#\d+\b`),
	}
	quotedRegex     = regexp.MustCompile(`"([^"]+)"`)
	upperStartRegex = regexp.MustCompile(`^[A-Z]`)
)

// languageSignatures are the analyzer's own language probes; first match wins.
var languageSignatures = []struct {
	lang string
	re   *regexp.Regexp
}{
	{"csharp", regexp.MustCompile(`\b(?:using\s+System|namespace\s+\w+|public\s+class)\b`)},
	{"javascript", regexp.MustCompile(`\bimport\s+.*\s+from\b|\bexport\s+default\b|\bconst\s+\w+\s*=\s*\(|=>`)},
	{"python", regexp.MustCompile(`\bdef\s+\w+\(|\bimport\s+\w+\b|\bfrom\s+\w+\s+import\b|\bprint\(`)},
	{"java", regexp.MustCompile(`\b(?:package\s+\w+|public\s+static\s+void\s+main|System\.out\.println)\b`)},
	{"go", regexp.MustCompile(`\bfunc\s+\w+\(|\bimport\s+"fmt"|\bpackage\s+main\b`)},
	{"rust", regexp.MustCompile(`\b(?:fn\s+\w+\(|use\s+\w+|impl\s+\w+|mut\s+\w+)`)},
	{"php", regexp.MustCompile(`<\?php|function\s+\w+\(.*\)\s*\{|\$\w+\s*=`)},
	{"sql", regexp.MustCompile(`(?i)\b(?:SELECT|INSERT|UPDATE|DELETE|FROM|WHERE|JOIN)\b`)},
}

// Analyze inspects content and returns its analysis.
func Analyze(content string) Analysis {
	return Analysis{
		Type:             DetectType(content),
		Domain:           detectDomain(content),
		Language:         detectLanguage(content),
		HasCode:          detectCode(content),
		Keywords:         extractKeywords(content),
		ProperNouns:      extractProperNouns(content),
		URLs:             firstN(uniq(urlRegex.FindAllString(content, -1)), MaxEntities),
		Emails:           firstN(uniq(emailRegex.FindAllString(content, -1)), MaxEntities),
		FileNames:        firstN(uniq(fileNameRegex.FindAllString(content, -1)), MaxEntities),
		Numbers:          extractNumbers(content),
		FirstSentence:    firstSentence(content),
		ImportantPhrases: importantPhrases(content),
		Length:           utf8.RuneCountInString(content),
		Lines:            strings.Count(content, "\n") + 1,
		Words:            len(anyWordRegex.FindAllStringIndex(content, -1)),
	}
}

// DetectType applies the type rules in priority order; the first match wins.
func DetectType(content string) ContentType {
	if codeTypeRegex.MatchString(content) {
		return Code
	}

	trimmed := strings.TrimLeftFunc(content, unicode.IsSpace)
	if (strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")) &&
		strings.Contains(content, `"`) && strings.Contains(content, ":") {
		return Json
	}

	if markupRegex.MatchString(content) {
		return Markup
	}

	if logStampRegex.MatchString(content) || logLevelRegex.MatchString(content) {
		return Log
	}

	if strings.Contains(content, "Exception") || strings.Contains(content, "Error") ||
		(strings.Contains(content, "at ") && strings.Contains(content, "(")) {
		return Error
	}

	if tabularRegex.MatchString(content) {
		return Data
	}

	if configLineRegex.MatchString(content) {
		return Config
	}

	return Text
}

func extractKeywords(content string) []string {
	counts := make(map[string]int)
	var order []string
	for _, m := range wordRegex.FindAllString(content, -1) {
		w := strings.ToLower(m)
		if stopWords[w] {
			continue
		}
		if counts[w] == 0 {
			order = append(order, w)
		}
		counts[w]++
	}

	type scored struct {
		word  string
		score float64
	}
	ranked := make([]scored, 0, len(order))
	for _, w := range order {
		ranked = append(ranked, scored{w, float64(counts[w]) * importance(w, content)})
	}
	// Stable sort keeps first-occurrence order among equal scores.
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	out := make([]string, 0, MaxKeywords)
	for _, s := range ranked {
		if len(out) == MaxKeywords {
			break
		}
		out = append(out, s.word)
	}
	return out
}

// importance returns the score multiplier for a lowercase word.
func importance(word, content string) float64 {
	score := 1.0

	if len(content) > 200 && strings.Contains(strings.ToLower(content[:200]), word) {
		score *= 1.5
	}

	capitalized := strings.ToUpper(word[:1]) + word[1:]
	if containsWord(content, capitalized) {
		score *= 1.3
	}

	if isDomainKeyword(word) {
		score *= 1.4
	}
	return score
}

// containsWord reports whether word occurs in content delimited by non-word
// characters.
func containsWord(content, word string) bool {
	for from := 0; from < len(content); {
		idx := strings.Index(content[from:], word)
		if idx < 0 {
			return false
		}
		start := from + idx
		end := start + len(word)
		if (start == 0 || !isWordByte(content[start-1])) && (end == len(content) || !isWordByte(content[end])) {
			return true
		}
		from = start + 1
	}
	return false
}

func isWordByte(b byte) bool {
	return b == '_' || b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}

func extractProperNouns(content string) []string {
	var nouns []string
	for _, m := range capitalSeqRegex.FindAllString(content, -1) {
		if !stopWords[strings.ToLower(m)] {
			nouns = append(nouns, m)
		}
	}
	nouns = append(nouns, camelCaseRegex.FindAllString(content, -1)...)
	return firstN(uniq(nouns), MaxProperNouns)
}

// detectDomain picks the domain with the most keywords present as
// substrings. Ties go to the domain listed first.
func detectDomain(content string) string {
	lower := strings.ToLower(content)
	best, bestScore := "", 0
	for _, d := range domains {
		score := 0
		for _, kw := range d.keywords {
			if strings.Contains(lower, kw) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = d.name, score
		}
	}
	return best
}

func detectCode(content string) bool {
	return hasBracketRegex.MatchString(content) &&
		(codeWordRegex.MatchString(content) || codeOperatorRegex.MatchString(content))
}

func detectLanguage(content string) string {
	for _, sig := range languageSignatures {
		if sig.re.MatchString(content) {
			return sig.lang
		}
	}
	return ""
}

func extractNumbers(content string) []string {
	var nums []string
	for _, re := range numberRegexes {
		nums = append(nums, re.FindAllString(content, -1)...)
	}
	return firstN(uniq(nums), MaxEntities)
}

// firstSentence returns text up to the first sentence terminator that is
// followed by whitespace.
func firstSentence(content string) string {
	for i := 0; i < len(content)-1; i++ {
		switch content[i] {
		case '.', '!', '?':
			if isSpaceByte(content[i+1]) {
				return strings.TrimSpace(content[:i+1])
			}
		}
	}
	return strings.TrimSpace(content)
}

func isSpaceByte(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\f' || b == '\v'
}

// importantPhrases collects short quoted strings, then capitalized lines
// from the first ten lines that are not comments or headings.
func importantPhrases(content string) []string {
	var phrases []string
	for _, m := range quotedRegex.FindAllStringSubmatch(content, -1) {
		if n := len(m[1]); n > 3 && n < 50 {
			phrases = append(phrases, m[1])
		}
	}

	lines := strings.Split(content, "\n")
	if len(lines) > 10 {
		lines = lines[:10]
	}
	for _, line := range lines {
		head := strings.TrimLeftFunc(line, unicode.IsSpace)
		if len(line) > 5 && len(line) < 100 &&
			!strings.HasPrefix(head, "//") && !strings.HasPrefix(head, "#") &&
			upperStartRegex.MatchString(line) {
			phrases = append(phrases, strings.TrimSpace(line))
		}
	}
	return firstN(uniq(phrases), MaxPhrases)
}

func uniq(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if seen[it] {
			continue
		}
		seen[it] = true
		out = append(out, it)
	}
	return out
}

func firstN(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
