package classify

var stopWords = toSet(
	"the", "is", "at", "which", "on", "a", "an", "as", "are", "was", "were", "been", "be",
	"have", "has", "had", "do", "does", "did", "will", "would", "could", "should", "may",
	"might", "must", "can", "this", "that", "these", "those", "i", "you", "he", "she", "it",
	"we", "they", "what", "who", "when", "where", "why", "how", "all", "each", "every", "both",
	"few", "more", "most", "other", "some", "such", "no", "nor", "not", "only", "own", "same",
	"so", "than", "too", "very", "just", "but", "for", "with", "about", "against", "between",
	"into", "through", "during", "before", "after", "above", "below", "to", "from", "up", "down",
	"in", "out", "off", "over", "under", "again", "further", "then", "once", "and", "or", "if",
)

type domain struct {
	name     string
	keywords []string
}

// domains is ordered; detectDomain breaks ties by position.
var domains = []domain{
	{"code", []string{"function", "class", "method", "variable", "const", "let", "var",
		"public", "private", "return", "import", "export", "async", "await", "def", "namespace",
		"interface", "struct", "enum", "package", "module", "component", "service", "controller"}},
	{"api", []string{"endpoint", "request", "response", "http", "rest", "graphql",
		"api", "json", "xml", "authorization", "authentication", "token", "header", "payload", "query"}},
	{"data", []string{"database", "table", "query", "select", "insert", "update",
		"delete", "join", "index", "column", "row", "schema", "sql", "nosql", "mongodb", "redis"}},
	{"docs", []string{"documentation", "guide", "tutorial", "example", "usage",
		"installation", "configuration", "setup", "reference", "overview", "introduction", "summary"}},
	{"error", []string{"error", "exception", "failed", "failure", "bug", "issue",
		"problem", "stacktrace", "debug", "warning", "critical", "fatal", "crash", "abort"}},
	{"config", []string{"config", "configuration", "settings", "options", "properties",
		"environment", "variable", "parameter", "flag", "yaml", "json", "ini", "toml"}},
	{"test", []string{"test", "testing", "unit", "integration", "spec", "assert",
		"expect", "mock", "stub", "coverage", "scenario", "case", "suite", "fixture"}},
	{"log", []string{"log", "logging", "trace", "debug", "info", "warn", "error",
		"timestamp", "level", "message", "event", "audit", "monitor", "metrics"}},
}

var domainKeywords = func() map[string]bool {
	m := make(map[string]bool)
	for _, d := range domains {
		for _, kw := range d.keywords {
			m[kw] = true
		}
	}
	return m
}()

func isDomainKeyword(word string) bool {
	return domainKeywords[word]
}

func toSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}
