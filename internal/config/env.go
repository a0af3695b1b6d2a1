package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variable names.
const (
	EnvHome       = "CLIPTITLE_HOME"
	EnvLogLevel   = "CLIPTITLE_LOG_LEVEL"
	EnvLogFormat  = "CLIPTITLE_LOG_FORMAT"
	EnvLogFile    = "CLIPTITLE_LOG_FILE"
	EnvOllamaHost = "OLLAMA_HOST"
)

// Env holds process-level configuration read from the environment.
type Env struct {
	BaseDir    string
	LogLevel   string
	LogFormat  string
	LogFile    string
	OllamaHost string
}

// LoadEnv loads optional .env files from each dir (existing variables win),
// then reads the cliptitle environment variables.
func LoadEnv(dirs ...string) (*Env, error) {
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		path := filepath.Join(dir, ".env")
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return nil, err
		}
	}

	env := &Env{
		BaseDir:    strings.TrimSpace(os.Getenv(EnvHome)),
		LogLevel:   strings.TrimSpace(os.Getenv(EnvLogLevel)),
		LogFormat:  strings.TrimSpace(os.Getenv(EnvLogFormat)),
		LogFile:    strings.TrimSpace(os.Getenv(EnvLogFile)),
		OllamaHost: strings.TrimSpace(os.Getenv(EnvOllamaHost)),
	}
	if env.BaseDir == "" {
		dir, err := DefaultBaseDir()
		if err != nil {
			return nil, err
		}
		env.BaseDir = dir
	}
	return env, nil
}

// DefaultBaseDir returns ~/.cliptitle.
func DefaultBaseDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cliptitle"), nil
}

// Defaults returns a defaults factory for a Store that seeds the inference
// base URL from OLLAMA_HOST when it is set.
func (e *Env) Defaults() func() *Settings {
	return func() *Settings {
		s := DefaultSettings()
		if host := normalizeOllamaHost(e.OllamaHost); host != "" {
			s.Ollama.BaseURL = host
		}
		return s
	}
}

// normalizeOllamaHost accepts OLLAMA_HOST values with or without a scheme.
func normalizeOllamaHost(host string) string {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if host == "" {
		return ""
	}
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	return host
}
