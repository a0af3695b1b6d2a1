package title

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/cliptitle/internal/config"
	"github.com/hpungsan/cliptitle/internal/ollama"
)

type staticSettings struct {
	s *config.Settings
}

func (p staticSettings) Get() (*config.Settings, error) {
	return p.s.Clone(), nil
}

func settingsFor(baseURL string, enabled bool, timeoutMs int) staticSettings {
	s := config.DefaultSettings()
	s.Ollama.Enabled = enabled
	s.Ollama.BaseURL = baseURL
	s.Ollama.TimeoutMs = timeoutMs
	return staticSettings{s: s}
}

const pythonSnippet = "def compute_total(items):\n    return sum(items)"

func TestResolve_DisabledMakesNoNetworkCalls(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(ollama.GenerateResponse{Response: "Remote"})
	}))
	defer srv.Close()

	r := NewResolver(settingsFor(srv.URL, false, 1000))

	first := r.Resolve(context.Background(), pythonSnippet)
	second := r.Resolve(context.Background(), pythonSnippet)

	assert.Equal(t, int32(0), calls.Load())
	assert.Equal(t, SourceHeuristic, first.Source)
	assert.Equal(t, "python-items-def", first.Title)
	assert.Equal(t, first, second, "heuristic titles are deterministic")
}

func TestResolve_UsesInference(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req ollama.GenerateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Contains(t, req.Prompt, "compute_total")
		_ = json.NewEncoder(w).Encode(ollama.GenerateResponse{Response: "  \"python sum helper.\"\n", Done: true})
	}))
	defer srv.Close()

	r := NewResolver(settingsFor(srv.URL, true, 1000), WithRetryDelay(time.Millisecond))
	d := r.Resolve(context.Background(), pythonSnippet)

	assert.Equal(t, SourceOllama, d.Source)
	assert.Equal(t, "Python Sum Helper", d.Title)
	assert.Equal(t, int32(1), calls.Load())
}

func TestResolve_TimeoutRetriesOnceThenFallsBack(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	r := NewResolver(settingsFor(srv.URL, true, 50), WithRetryDelay(10*time.Millisecond))

	start := time.Now()
	d := r.Resolve(context.Background(), pythonSnippet)

	assert.Equal(t, SourceHeuristic, d.Source)
	assert.Equal(t, "python-items-def", d.Title)
	assert.Equal(t, int32(2), calls.Load(), "exactly one retry")
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond, "each attempt gets its own timeout window")
}

func TestResolve_ServerErrorThenSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "loading model", http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(ollama.GenerateResponse{Response: "Retry Worked"})
	}))
	defer srv.Close()

	r := NewResolver(settingsFor(srv.URL, true, 1000), WithRetryDelay(time.Millisecond))
	d := r.Resolve(context.Background(), "anything at all")

	assert.Equal(t, Decision{Title: "Retry Worked", Source: SourceOllama}, d)
	assert.Equal(t, int32(2), calls.Load())
}

func TestResolve_ConnectionRefusedFallsBack(t *testing.T) {
	r := NewResolver(settingsFor("http://127.0.0.1:1", true, 200), WithRetryDelay(time.Millisecond))
	d := r.Resolve(context.Background(), pythonSnippet)
	assert.Equal(t, SourceHeuristic, d.Source)
	assert.NotEmpty(t, d.Title)
}

func TestResolve_EmptyResponseFallsBackWithoutRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(ollama.GenerateResponse{Response: " \"\" ", Done: true})
	}))
	defer srv.Close()

	r := NewResolver(settingsFor(srv.URL, true, 1000), WithRetryDelay(time.Millisecond))
	d := r.Resolve(context.Background(), pythonSnippet)

	assert.Equal(t, SourceHeuristic, d.Source)
	assert.Equal(t, int32(1), calls.Load())
}

type fakeGenerator struct {
	calls int
	resp  string
}

func (f *fakeGenerator) Generate(ctx context.Context, req ollama.GenerateRequest) (*ollama.GenerateResponse, error) {
	f.calls++
	return &ollama.GenerateResponse{Response: f.resp}, nil
}

func TestResolve_WithGenerator(t *testing.T) {
	gen := &fakeGenerator{resp: "one two three four five six seven eight nine ten"}
	r := NewResolver(settingsFor("http://unused", true, 1000), WithGenerator(gen))

	got := r.ResolveTitle(context.Background(), "content")
	assert.Equal(t, "One Two Three Four Five Six Seven Eight", got)
	assert.Equal(t, 1, gen.calls)
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt("", "short")
	assert.True(t, strings.HasPrefix(p, "Generate a concise title"))
	assert.Contains(t, p, "Content:\nshort\n\nTitle:")

	long := strings.Repeat("é", 600)
	p = BuildPrompt("T: {content}", long)
	assert.Equal(t, "T: "+strings.Repeat("é", 500)+"...", p)

	assert.Equal(t, "a b", BuildPrompt("{content} {content}", "a b")[:3])
}

func TestCleanTitle(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`"Database Migration Guide"`, "Database Migration Guide"},
		{"'Fix Login Bug.'", "Fix Login Bug"},
		{"react hooks overview!?", "React Hooks Overview"},
		{"Already Capitalized title", "Already Capitalized title"},
		{"\n  Spaces   Everywhere  \n", "Spaces Everywhere"},
		{"...", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := CleanTitle(tt.input); got != tt.want {
			t.Errorf("CleanTitle(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
