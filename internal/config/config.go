package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/hpungsan/cliptitle/internal/errors"
)

// Mode selects what happens after a clip is titled.
// The two modes are mutually exclusive by construction.
type Mode string

const (
	// ModeAskEveryTime hands each clip to the notifier for an interactive decision.
	ModeAskEveryTime Mode = "ask"
	// ModeAutoAppend appends each clip to the last written file without asking.
	ModeAutoAppend Mode = "auto_append"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeAskEveryTime || m == ModeAutoAppend
}

// ParseMode accepts the mode names used on the command line and in MCP requests.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ask", "ask_every_time", "ask-every-time":
		return ModeAskEveryTime, nil
	case "auto", "auto_append", "auto-append", "append":
		return ModeAutoAppend, nil
	}
	return "", fmt.Errorf("unknown mode %q (want ask or auto_append)", s)
}

// Default values.
const (
	DefaultMinimumLength = 5
	DefaultOllamaBaseURL = "http://localhost:11434"
	DefaultOllamaModel   = "llama3:8b"
	DefaultOllamaTimeout = 5000
)

// DefaultIgnorePatterns skips six-digit one-time codes.
var DefaultIgnorePatterns = []string{`^\d{6}$`}

// OllamaSettings configures the remote title inference service.
type OllamaSettings struct {
	Enabled bool   `json:"enabled"`
	BaseURL string `json:"baseUrl"`
	Model   string `json:"model"`

	// TimeoutMs bounds each generation attempt.
	TimeoutMs int `json:"timeoutMs"`

	// TitlePromptTemplate may contain a {content} placeholder. Empty means the built-in prompt.
	TitlePromptTemplate string `json:"titlePromptTemplate,omitempty"`
}

// Settings holds the persisted application settings.
type Settings struct {
	// SaveDirectory is where clip files are written.
	SaveDirectory string

	// Mode is AutoAppend or AskEveryTime.
	Mode Mode

	// LastFilePath is the file the next append goes to.
	LastFilePath string

	// MinimumLength is the shortest converted clip, in characters, that gets processed.
	MinimumLength int

	// IgnorePatterns are regular expressions; a clip matching any of them is skipped.
	IgnorePatterns []string

	Ollama OllamaSettings

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string
}

// settingsFile is the on-disk JSON shape. The two mode booleans are kept
// for compatibility with existing settings files.
type settingsFile struct {
	SaveDirectory  string         `json:"saveDirectory"`
	AskEveryTime   bool           `json:"askEveryTime"`
	AutoAppend     bool           `json:"autoAppend"`
	LastFilePath   *string        `json:"lastFilePath"`
	MinimumLength  int            `json:"minimumLength"`
	IgnorePatterns []string       `json:"ignorePatterns"`
	OllamaSettings OllamaSettings `json:"ollamaSettings"`
	DisabledTools  []string       `json:"disabledTools,omitempty"`
}

// MarshalJSON encodes settings in the persisted JSON shape.
func (s Settings) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.toFile())
}

// UnmarshalJSON decodes the persisted JSON shape on top of the receiver's
// current values, so fields absent from the document keep their defaults.
func (s *Settings) UnmarshalJSON(data []byte) error {
	f := s.toFile()
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*s = fromFile(f)
	return nil
}

func (s Settings) toFile() settingsFile {
	f := settingsFile{
		SaveDirectory:  s.SaveDirectory,
		AskEveryTime:   s.Mode != ModeAutoAppend,
		AutoAppend:     s.Mode == ModeAutoAppend,
		MinimumLength:  s.MinimumLength,
		IgnorePatterns: s.IgnorePatterns,
		OllamaSettings: s.Ollama,
		DisabledTools:  s.DisabledTools,
	}
	if f.IgnorePatterns == nil {
		f.IgnorePatterns = []string{}
	}
	if s.LastFilePath != "" {
		last := s.LastFilePath
		f.LastFilePath = &last
	}
	return f
}

func fromFile(f settingsFile) Settings {
	s := Settings{
		SaveDirectory:  f.SaveDirectory,
		Mode:           ModeAskEveryTime,
		MinimumLength:  f.MinimumLength,
		IgnorePatterns: f.IgnorePatterns,
		Ollama:         f.OllamaSettings,
		DisabledTools:  f.DisabledTools,
	}
	// Auto-append only applies when asking is switched off.
	if f.AutoAppend && !f.AskEveryTime {
		s.Mode = ModeAutoAppend
	}
	if f.LastFilePath != nil {
		s.LastFilePath = *f.LastFilePath
	}
	return s
}

// DefaultSettings returns the default settings.
func DefaultSettings() *Settings {
	return &Settings{
		SaveDirectory:  DefaultSaveDir(),
		Mode:           ModeAskEveryTime,
		MinimumLength:  DefaultMinimumLength,
		IgnorePatterns: append([]string(nil), DefaultIgnorePatterns...),
		Ollama: OllamaSettings{
			Enabled:   false,
			BaseURL:   DefaultOllamaBaseURL,
			Model:     DefaultOllamaModel,
			TimeoutMs: DefaultOllamaTimeout,
		},
	}
}

// DefaultSaveDir returns ~/Documents/Clips, or ./Clips when the home
// directory cannot be determined.
func DefaultSaveDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "Clips"
	}
	return filepath.Join(home, "Documents", "Clips")
}

// Clone returns a deep copy.
func (s *Settings) Clone() *Settings {
	c := *s
	c.IgnorePatterns = append([]string(nil), s.IgnorePatterns...)
	c.DisabledTools = append([]string(nil), s.DisabledTools...)
	return &c
}

// Validate checks settings before they are persisted.
func (s *Settings) Validate() error {
	if strings.TrimSpace(s.SaveDirectory) == "" {
		return newInvalid("saveDirectory", "must not be empty")
	}
	if !s.Mode.Valid() {
		return newInvalid("mode", fmt.Sprintf("unknown mode %q", s.Mode))
	}
	if s.MinimumLength < 0 {
		return newInvalid("minimumLength", "must not be negative")
	}
	for i, p := range s.IgnorePatterns {
		if _, err := regexp.Compile(p); err != nil {
			return newInvalid(fmt.Sprintf("ignorePatterns[%d]", i), err.Error())
		}
	}
	if s.Ollama.TimeoutMs < 0 {
		return newInvalid("ollamaSettings.timeoutMs", "must not be negative")
	}
	if s.Ollama.Enabled {
		u, err := url.Parse(s.Ollama.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return newInvalid("ollamaSettings.baseUrl", "must be an absolute http(s) URL")
		}
		if strings.TrimSpace(s.Ollama.Model) == "" {
			return newInvalid("ollamaSettings.model", "must not be empty when inference is enabled")
		}
	}
	return nil
}

// IgnoredBy returns the first ignore pattern that matches content.
// Patterns that fail to compile never match.
func (s *Settings) IgnoredBy(content string) (string, bool) {
	for _, p := range s.IgnorePatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			continue
		}
		if re.MatchString(content) {
			return p, true
		}
	}
	return "", false
}

func newInvalid(field, reason string) error {
	return errors.NewSettingsInvalid(field, reason)
}
