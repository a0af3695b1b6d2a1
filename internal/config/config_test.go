package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/cliptitle/internal/errors"
)

func testDefaults(saveDir string) func() *Settings {
	return func() *Settings {
		s := DefaultSettings()
		s.SaveDirectory = saveDir
		return s
	}
}

func TestLoad_DefaultWhenMissing(t *testing.T) {
	tmpDir := t.TempDir()
	store := NewStore(tmpDir, WithDefaults(testDefaults("/clips")))

	s, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "/clips", s.SaveDirectory)
	assert.Equal(t, ModeAskEveryTime, s.Mode)
	assert.Equal(t, DefaultMinimumLength, s.MinimumLength)
	assert.Equal(t, []string{`^\d{6}$`}, s.IgnorePatterns)
	assert.False(t, s.Ollama.Enabled)
	assert.Equal(t, DefaultOllamaBaseURL, s.Ollama.BaseURL)
	assert.Equal(t, DefaultOllamaModel, s.Ollama.Model)
	assert.Equal(t, DefaultOllamaTimeout, s.Ollama.TimeoutMs)

	// Defaults are written on first run.
	data, err := os.ReadFile(filepath.Join(tmpDir, SettingsFileName))
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, true, raw["askEveryTime"])
	assert.Equal(t, false, raw["autoAppend"])
	assert.Nil(t, raw["lastFilePath"])
	assert.EqualValues(t, 5, raw["minimumLength"])
	ollama, ok := raw["ollamaSettings"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, false, ollama["enabled"])
	assert.EqualValues(t, 5000, ollama["timeoutMs"])
}

func TestLoad_OverridesFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	doc := `{
  "saveDirectory": "/data/clips",
  "askEveryTime": false,
  "autoAppend": true,
  "lastFilePath": "/data/clips/a.md",
  "minimumLength": 12,
  "ignorePatterns": ["^secret"],
  "ollamaSettings": {"enabled": true, "baseUrl": "http://gpu:11434", "model": "mistral", "timeoutMs": 900}
}`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, SettingsFileName), []byte(doc), 0600))

	s, err := NewStore(tmpDir).Load()
	require.NoError(t, err)
	assert.Equal(t, "/data/clips", s.SaveDirectory)
	assert.Equal(t, ModeAutoAppend, s.Mode)
	assert.Equal(t, "/data/clips/a.md", s.LastFilePath)
	assert.Equal(t, 12, s.MinimumLength)
	assert.Equal(t, []string{"^secret"}, s.IgnorePatterns)
	assert.True(t, s.Ollama.Enabled)
	assert.Equal(t, "mistral", s.Ollama.Model)
	assert.Equal(t, 900, s.Ollama.TimeoutMs)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, SettingsFileName), []byte(`{"minimumLength": 3}`), 0600))

	s, err := NewStore(tmpDir, WithDefaults(testDefaults("/clips"))).Load()
	require.NoError(t, err)
	assert.Equal(t, 3, s.MinimumLength)
	assert.Equal(t, "/clips", s.SaveDirectory)
	assert.Equal(t, DefaultOllamaModel, s.Ollama.Model)
}

func TestLoad_BothModeFlagsTrueMeansAsk(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, SettingsFileName),
		[]byte(`{"saveDirectory": "/c", "askEveryTime": true, "autoAppend": true}`), 0600))

	s, err := NewStore(tmpDir).Load()
	require.NoError(t, err)
	assert.Equal(t, ModeAskEveryTime, s.Mode)
}

func TestLoad_CorruptFileRegeneratesDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, SettingsFileName)
	require.NoError(t, os.WriteFile(path, []byte(`{not json}`), 0600))

	s, err := NewStore(tmpDir, WithDefaults(testDefaults("/clips"))).Load()
	require.NoError(t, err)
	assert.Equal(t, "/clips", s.SaveDirectory)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, json.Valid(data), "corrupt file should be replaced by valid defaults")
}

func TestSave_UpdatesCacheAndFile(t *testing.T) {
	tmpDir := t.TempDir()
	store := NewStore(tmpDir, WithDefaults(testDefaults("/clips")))

	s, err := store.Get()
	require.NoError(t, err)
	s.Mode = ModeAutoAppend
	s.MinimumLength = 20
	require.NoError(t, store.Save(s))

	cached, err := store.Get()
	require.NoError(t, err)
	assert.Equal(t, ModeAutoAppend, cached.Mode)
	assert.Equal(t, 20, cached.MinimumLength)

	// A fresh store reads the same values back from disk.
	reloaded, err := NewStore(tmpDir).Load()
	require.NoError(t, err)
	assert.Equal(t, ModeAutoAppend, reloaded.Mode)
	assert.Equal(t, 20, reloaded.MinimumLength)
}

func TestSave_RejectsInvalidPattern(t *testing.T) {
	store := NewStore(t.TempDir(), WithDefaults(testDefaults("/clips")))
	s, err := store.Get()
	require.NoError(t, err)

	s.IgnorePatterns = append(s.IgnorePatterns, "(unclosed")
	err = store.Save(s)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrSettingsInvalid))

	cached, err := store.Get()
	require.NoError(t, err)
	assert.Len(t, cached.IgnorePatterns, 1, "cache must not change on a rejected save")
}

func TestGet_ReturnsCopy(t *testing.T) {
	store := NewStore(t.TempDir(), WithDefaults(testDefaults("/clips")))
	s, err := store.Get()
	require.NoError(t, err)
	s.IgnorePatterns[0] = "mutated"

	again, err := store.Get()
	require.NoError(t, err)
	assert.Equal(t, `^\d{6}$`, again.IgnorePatterns[0])
}

func TestUpdate_ConcurrentUpdatesAreNotLost(t *testing.T) {
	store := NewStore(t.TempDir(), WithDefaults(testDefaults("/clips")))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Update(func(s *Settings) error {
				s.MinimumLength++
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	s, err := store.Get()
	require.NoError(t, err)
	assert.Equal(t, DefaultMinimumLength+20, s.MinimumLength)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
		field  string
	}{
		{"empty save dir", func(s *Settings) { s.SaveDirectory = " " }, "saveDirectory"},
		{"bad mode", func(s *Settings) { s.Mode = "sometimes" }, "mode"},
		{"negative length", func(s *Settings) { s.MinimumLength = -1 }, "minimumLength"},
		{"bad regex", func(s *Settings) { s.IgnorePatterns = []string{"ok", "[z-a]"} }, "ignorePatterns[1]"},
		{"bad url", func(s *Settings) { s.Ollama.Enabled = true; s.Ollama.BaseURL = "localhost" }, "ollamaSettings.baseUrl"},
		{"missing model", func(s *Settings) { s.Ollama.Enabled = true; s.Ollama.Model = "" }, "ollamaSettings.model"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testDefaults("/clips")()
			tt.mutate(s)
			err := s.Validate()
			require.Error(t, err)
			var cErr *errors.ClipError
			require.True(t, errors.As(err, &cErr))
			assert.Equal(t, tt.field, cErr.Details["field"])
		})
	}

	assert.NoError(t, testDefaults("/clips")().Validate())
}

func TestIgnoredBy(t *testing.T) {
	s := &Settings{IgnorePatterns: []string{"(broken", `^\d{6}$`, "^password:"}}

	pattern, ok := s.IgnoredBy("123456")
	assert.True(t, ok)
	assert.Equal(t, `^\d{6}$`, pattern)

	_, ok = s.IgnoredBy("1234567")
	assert.False(t, ok)

	_, ok = s.IgnoredBy("(broken")
	assert.False(t, ok, "invalid patterns never match")
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("auto-append")
	require.NoError(t, err)
	assert.Equal(t, ModeAutoAppend, m)

	m, err = ParseMode("ASK")
	require.NoError(t, err)
	assert.Equal(t, ModeAskEveryTime, m)

	_, err = ParseMode("never")
	assert.Error(t, err)
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("CLIPTITLE_LOG_LEVEL=debug\nOLLAMA_HOST=gpu-box:11434\n"), 0600))
	t.Setenv(EnvHome, filepath.Join(dir, "home"))
	t.Setenv(EnvLogLevel, "")
	t.Setenv(EnvOllamaHost, "")
	os.Unsetenv(EnvLogLevel)
	os.Unsetenv(EnvOllamaHost)

	env, err := LoadEnv(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "home"), env.BaseDir)
	assert.Equal(t, "debug", env.LogLevel)
	assert.Equal(t, "gpu-box:11434", env.OllamaHost)

	s := env.Defaults()()
	assert.Equal(t, "http://gpu-box:11434", s.Ollama.BaseURL)
}
