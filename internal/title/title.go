// Package title resolves a title for a clip, asking a local Ollama server
// when inference is enabled and falling back to heuristic synthesis.
package title

import (
	"context"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/hpungsan/cliptitle/internal/classify"
	"github.com/hpungsan/cliptitle/internal/config"
	"github.com/hpungsan/cliptitle/internal/logging"
	"github.com/hpungsan/cliptitle/internal/metrics"
	"github.com/hpungsan/cliptitle/internal/ollama"
)

// Source says where a title came from.
type Source string

const (
	SourceOllama    Source = "ollama"
	SourceHeuristic Source = "heuristic"
	// SourceFallback is used when title resolution itself failed unexpectedly.
	SourceFallback Source = "fallback"
)

// FallbackTitle is the title used when resolution fails unexpectedly.
const FallbackTitle = "Untitled"

const (
	// DefaultRetryDelay is the pause before the single retry.
	DefaultRetryDelay = 500 * time.Millisecond

	maxPromptContent = 500
	maxTitleWords    = 8
)

// DefaultPromptTemplate is used when the settings carry no template.
const DefaultPromptTemplate = `Generate a concise title for the following content.
Requirements:
- 3-8 words maximum
- Title Case
- No quotes or trailing punctuation
- Be specific and descriptive
- If it's code, mention the language or technology

Content:
{content}

Title:`

// Decision is a resolved title and where it came from.
type Decision struct {
	Title  string `json:"title"`
	Source Source `json:"source"`
}

// SettingsProvider returns the current settings.
type SettingsProvider interface {
	Get() (*config.Settings, error)
}

// Generator produces text from a prompt.
type Generator interface {
	Generate(ctx context.Context, req ollama.GenerateRequest) (*ollama.GenerateResponse, error)
}

// Resolver resolves titles. It is safe for concurrent use.
type Resolver struct {
	settings   SettingsProvider
	newClient  func(baseURL string) Generator
	logger     *zap.Logger
	metrics    *metrics.Metrics
	retryDelay time.Duration
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the resolver's logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// WithMetrics sets the resolver's metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) { r.metrics = m }
}

// WithRetryDelay overrides the delay before the retry.
func WithRetryDelay(d time.Duration) Option {
	return func(r *Resolver) { r.retryDelay = d }
}

// WithGenerator makes the resolver use gen instead of an HTTP client built
// from the settings' base URL.
func WithGenerator(gen Generator) Option {
	return func(r *Resolver) {
		r.newClient = func(string) Generator { return gen }
	}
}

// NewResolver creates a resolver reading settings from store on every call,
// so changes saved at runtime apply to the next clip.
func NewResolver(store SettingsProvider, opts ...Option) *Resolver {
	r := &Resolver{
		settings: store,
		newClient: func(baseURL string) Generator {
			return ollama.NewClient(baseURL, nil)
		},
		retryDelay: DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.OrNop(r.logger)
	return r
}

// ResolveTitle returns a usable title for content. It never fails.
func (r *Resolver) ResolveTitle(ctx context.Context, content string) string {
	return r.Resolve(ctx, content).Title
}

// Resolve returns a title and its source. It never fails: inference
// problems fall back to the heuristic title.
func (r *Resolver) Resolve(ctx context.Context, content string) Decision {
	settings, err := r.settings.Get()
	if err != nil {
		r.logger.Warn("settings unavailable, using heuristic title", zap.Error(err))
		return r.heuristic(content)
	}

	if !settings.Ollama.Enabled {
		return r.heuristic(content)
	}

	if t, ok := r.infer(ctx, settings.Ollama, content); ok {
		r.metrics.ObserveTitle(string(SourceOllama))
		return Decision{Title: t, Source: SourceOllama}
	}
	return r.heuristic(content)
}

// Heuristic returns the classifier's synthesized title without any network use.
func Heuristic(content string) string {
	return classify.SynthesizeTitle(classify.Analyze(content))
}

func (r *Resolver) heuristic(content string) Decision {
	r.metrics.ObserveTitle(string(SourceHeuristic))
	return Decision{Title: Heuristic(content), Source: SourceHeuristic}
}

// infer makes at most two generation attempts, each bounded by the
// configured timeout. Only transport failures and timeouts are retried.
func (r *Resolver) infer(ctx context.Context, s config.OllamaSettings, content string) (string, bool) {
	client := r.newClient(s.BaseURL)
	req := ollama.GenerateRequest{
		Model:   s.Model,
		Prompt:  BuildPrompt(s.TitlePromptTemplate, content),
		Options: ollama.DefaultOptions,
	}

	timeout := time.Duration(s.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = time.Duration(config.DefaultOllamaTimeout) * time.Millisecond
	}

	for attempt := 1; attempt <= 2; attempt++ {
		resp, err := r.attempt(ctx, client, req, timeout)
		if err == nil {
			t := CleanTitle(resp.Response)
			if t == "" {
				r.logger.Warn("inference returned no usable title", zap.String("model", s.Model))
				return "", false
			}
			return t, true
		}

		r.logger.Warn("title inference failed",
			zap.Int("attempt", attempt),
			zap.String("base_url", s.BaseURL),
			zap.Error(err))

		if ctx.Err() != nil || attempt == 2 {
			break
		}
		select {
		case <-ctx.Done():
			return "", false
		case <-time.After(r.retryDelay):
		}
	}
	return "", false
}

func (r *Resolver) attempt(ctx context.Context, client Generator, req ollama.GenerateRequest, timeout time.Duration) (*ollama.GenerateResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	resp, err := client.Generate(ctx, req)
	r.metrics.ObserveInference(time.Since(start))
	return resp, err
}

// BuildPrompt fills template with content truncated to 500 characters.
// An empty template means DefaultPromptTemplate.
func BuildPrompt(template, content string) string {
	if strings.TrimSpace(template) == "" {
		template = DefaultPromptTemplate
	}
	if utf8.RuneCountInString(content) > maxPromptContent {
		content = string([]rune(content)[:maxPromptContent]) + "..."
	}
	return strings.ReplaceAll(template, "{content}", content)
}

var trailingPunctRegex = regexp.MustCompile(`[.,;:!?]+$`)

// CleanTitle normalizes generated text: surrounding quotes and whitespace and
// trailing punctuation are removed, lower-case starts are title-cased, and the
// result is capped at eight words.
func CleanTitle(s string) string {
	s = strings.Trim(s, "\"' \t\r\n")
	s = trailingPunctRegex.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	if first, _ := utf8.DecodeRuneInString(s); !unicode.IsUpper(first) {
		s = toTitleCase(strings.ToLower(s))
	}

	words := strings.Fields(s)
	if len(words) > maxTitleWords {
		words = words[:maxTitleWords]
	}
	return strings.Join(words, " ")
}

func toTitleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}
