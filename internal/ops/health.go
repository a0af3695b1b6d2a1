package ops

import (
	"context"
	"net/http"

	"github.com/hpungsan/cliptitle/internal/config"
	"github.com/hpungsan/cliptitle/internal/ollama"
)

// HealthOutput reports inference server reachability.
type HealthOutput struct {
	Enabled   bool   `json:"enabled"`
	BaseURL   string `json:"base_url"`
	Model     string `json:"model"`
	Reachable bool   `json:"reachable"`
	Error     string `json:"error,omitempty"`
}

// Health probes the configured inference server. The probe runs even when
// inference is disabled so a server can be checked before switching it on.
// An unreachable server is reported in the output, not as an error.
func Health(ctx context.Context, store *config.Store, httpClient *http.Client) (*HealthOutput, error) {
	s, err := store.Get()
	if err != nil {
		return nil, err
	}

	out := &HealthOutput{
		Enabled: s.Ollama.Enabled,
		BaseURL: s.Ollama.BaseURL,
		Model:   s.Ollama.Model,
	}
	if err := ollama.NewClient(s.Ollama.BaseURL, httpClient).Health(ctx); err != nil {
		out.Error = err.Error()
		return out, nil
	}
	out.Reachable = true
	return out, nil
}
