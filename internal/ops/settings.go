package ops

import (
	"github.com/hpungsan/cliptitle/internal/config"
	"github.com/hpungsan/cliptitle/internal/errors"
)

// SettingsOutput is the settings view returned to clients.
type SettingsOutput struct {
	SaveDirectory  string                `json:"save_directory"`
	Mode           config.Mode           `json:"mode"`
	LastFilePath   string                `json:"last_file_path,omitempty"`
	MinimumLength  int                   `json:"minimum_length"`
	IgnorePatterns []string              `json:"ignore_patterns"`
	Ollama         config.OllamaSettings `json:"ollama"`
	DisabledTools  []string              `json:"disabled_tools,omitempty"`
	Path           string                `json:"path"`
}

func newSettingsOutput(s *config.Settings, path string) *SettingsOutput {
	patterns := s.IgnorePatterns
	if patterns == nil {
		patterns = []string{}
	}
	return &SettingsOutput{
		SaveDirectory:  s.SaveDirectory,
		Mode:           s.Mode,
		LastFilePath:   s.LastFilePath,
		MinimumLength:  s.MinimumLength,
		IgnorePatterns: patterns,
		Ollama:         s.Ollama,
		DisabledTools:  s.DisabledTools,
		Path:           path,
	}
}

// GetSettings returns the current settings.
func GetSettings(store *config.Store) (*SettingsOutput, error) {
	s, err := store.Get()
	if err != nil {
		return nil, err
	}
	return newSettingsOutput(s, store.Path()), nil
}

// UpdateSettingsInput holds the fields to change. Nil fields are left alone.
type UpdateSettingsInput struct {
	SaveDirectory       *string
	Mode                *string
	MinimumLength       *int
	IgnorePatterns      *[]string
	OllamaEnabled       *bool
	OllamaBaseURL       *string
	OllamaModel         *string
	OllamaTimeoutMs     *int
	TitlePromptTemplate *string
	DisabledTools       *[]string
}

// UpdateSettings validates and saves the changed fields. Invalid values
// return SETTINGS_INVALID and leave the stored settings untouched.
func UpdateSettings(store *config.Store, input UpdateSettingsInput) (*SettingsOutput, error) {
	var mode config.Mode
	if input.Mode != nil {
		m, err := config.ParseMode(*input.Mode)
		if err != nil {
			return nil, errors.NewSettingsInvalid("mode", err.Error())
		}
		mode = m
	}

	s, err := store.Update(func(s *config.Settings) error {
		if input.SaveDirectory != nil {
			s.SaveDirectory = *input.SaveDirectory
		}
		if input.Mode != nil {
			s.Mode = mode
		}
		if input.MinimumLength != nil {
			s.MinimumLength = *input.MinimumLength
		}
		if input.IgnorePatterns != nil {
			s.IgnorePatterns = append([]string(nil), (*input.IgnorePatterns)...)
		}
		if input.OllamaEnabled != nil {
			s.Ollama.Enabled = *input.OllamaEnabled
		}
		if input.OllamaBaseURL != nil {
			s.Ollama.BaseURL = *input.OllamaBaseURL
		}
		if input.OllamaModel != nil {
			s.Ollama.Model = *input.OllamaModel
		}
		if input.OllamaTimeoutMs != nil {
			s.Ollama.TimeoutMs = *input.OllamaTimeoutMs
		}
		if input.TitlePromptTemplate != nil {
			s.Ollama.TitlePromptTemplate = *input.TitlePromptTemplate
		}
		if input.DisabledTools != nil {
			s.DisabledTools = append([]string(nil), (*input.DisabledTools)...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return newSettingsOutput(s, store.Path()), nil
}
