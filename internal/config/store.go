package config

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/hpungsan/cliptitle/internal/errors"
	"github.com/hpungsan/cliptitle/internal/fsutil"
	"github.com/hpungsan/cliptitle/internal/logging"
)

// SettingsFileName is the settings document inside the base directory.
const SettingsFileName = "settings.json"

// Store loads settings once, serves them from memory, and rewrites the
// backing file and the cache together on Save.
type Store struct {
	path     string
	logger   *zap.Logger
	writer   *fsutil.AtomicWriter
	defaults func() *Settings

	mu     sync.RWMutex
	cached *Settings
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithDefaults overrides the settings used on first run or after corruption.
func WithDefaults(fn func() *Settings) StoreOption {
	return func(s *Store) { s.defaults = fn }
}

// WithLogger sets the store's logger.
func WithLogger(l *zap.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// NewStore creates a store backed by baseDir/settings.json.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.cliptitle.
func NewStore(baseDir string, opts ...StoreOption) *Store {
	s := &Store{
		path:     filepath.Join(baseDir, SettingsFileName),
		writer:   fsutil.NewAtomicWriter(),
		defaults: DefaultSettings,
	}
	s.writer.Perm = 0600
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrNop(s.logger)
	return s
}

// Path returns the settings file path.
func (s *Store) Path() string {
	return s.path
}

// Load (re)reads settings from disk into the cache.
// A missing or corrupt file is replaced by defaults, which are persisted.
func (s *Store) Load() (*Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return nil, err
	}
	return s.cached.Clone(), nil
}

// Get returns a copy of the cached settings, loading them on first use.
func (s *Store) Get() (*Settings, error) {
	s.mu.RLock()
	if s.cached != nil {
		c := s.cached.Clone()
		s.mu.RUnlock()
		return c, nil
	}
	s.mu.RUnlock()
	return s.Load()
}

// Save validates next, rewrites the settings file, and updates the cache.
func (s *Store) Save(next *Settings) error {
	if next == nil {
		return errors.NewInvalidRequest("settings are required")
	}
	if err := next.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(next.Clone())
}

// Update applies fn to the current settings and saves the result
// in one critical section, so concurrent updates are not lost.
func (s *Store) Update(fn func(*Settings) error) (*Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached == nil {
		if err := s.loadLocked(); err != nil {
			return nil, err
		}
	}

	next := s.cached.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	if err := next.Validate(); err != nil {
		return nil, err
	}
	if err := s.saveLocked(next); err != nil {
		return nil, err
	}
	return next.Clone(), nil
}

// SetLastFilePath records the append target. Only LastFilePath changes, so
// the rest of the document is not re-validated: a stored ignore pattern that
// no longer compiles must not stop appends.
func (s *Store) SetLastFilePath(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached == nil {
		if err := s.loadLocked(); err != nil {
			return err
		}
	}

	next := s.cached.Clone()
	next.LastFilePath = path
	return s.saveLocked(next)
}

func (s *Store) loadLocked() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !stderrors.Is(err, os.ErrNotExist) {
			return errors.NewInternal(fmt.Errorf("read settings: %w", err))
		}
		s.logger.Info("settings file missing, writing defaults", zap.String("path", s.path))
		return s.resetLocked()
	}

	loaded := s.defaults()
	if err := json.Unmarshal(data, loaded); err != nil {
		s.logger.Warn("settings file corrupt, regenerating defaults",
			zap.String("path", s.path), zap.Error(err))
		return s.resetLocked()
	}
	if !loaded.Mode.Valid() {
		loaded.Mode = ModeAskEveryTime
	}

	s.cached = loaded
	s.logger.Debug("settings loaded", zap.String("path", s.path))
	return nil
}

func (s *Store) resetLocked() error {
	defaults := s.defaults()
	if err := s.saveLocked(defaults); err != nil {
		// Defaults are still usable in memory even if they cannot be written.
		s.logger.Warn("failed to persist default settings", zap.Error(err))
		s.cached = defaults
	}
	return nil
}

func (s *Store) saveLocked(next *Settings) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return errors.NewInternal(fmt.Errorf("create settings directory: %w", err))
	}

	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return errors.NewInternal(err)
	}
	data = append(data, '\n')

	if err := s.writer.WriteFile(context.Background(), s.path, data); err != nil {
		return err
	}
	s.cached = next
	return nil
}
