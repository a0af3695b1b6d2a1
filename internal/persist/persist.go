// Package persist writes clips to markdown files with YAML front matter.
package persist

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/cliptitle/internal/classify"
	"github.com/hpungsan/cliptitle/internal/config"
	"github.com/hpungsan/cliptitle/internal/errors"
	"github.com/hpungsan/cliptitle/internal/fsutil"
	"github.com/hpungsan/cliptitle/internal/logging"
	"github.com/hpungsan/cliptitle/internal/metrics"
)

// Action names a persist operation.
type Action string

const (
	ActionNew    Action = "new"
	ActionAppend Action = "append"
)

const (
	// FileTimeLayout prefixes every new file name.
	FileTimeLayout = "20060102-150405"

	defaultTitle = "Untitled"
	dirPerm      = 0755
)

// SettingsStore is the part of config.Store the persister needs.
type SettingsStore interface {
	Get() (*config.Settings, error)
	SetLastFilePath(path string) error
}

// Saved describes a completed persist operation.
type Saved struct {
	Path     string            `json:"path"`
	Action   Action            `json:"action"`
	Title    string            `json:"title"`
	Created  time.Time         `json:"created"`
	Analysis classify.Analysis `json:"analysis"`
}

// Persister writes clips. All operations are serialized, so concurrent
// appends never interleave their read-modify-write of the same file.
type Persister struct {
	settings SettingsStore
	writer   *fsutil.AtomicWriter
	logger   *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time

	mu sync.Mutex
}

// Option configures a Persister.
type Option func(*Persister)

// WithLogger sets the persister's logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Persister) { p.logger = l }
}

// WithMetrics sets the persister's metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Persister) { p.metrics = m }
}

// WithWriter replaces the atomic writer.
func WithWriter(w *fsutil.AtomicWriter) Option {
	return func(p *Persister) { p.writer = w }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Persister) { p.now = now }
}

// New creates a persister that reads the save directory and last file from settings.
func New(settings SettingsStore, opts ...Option) *Persister {
	p := &Persister{
		settings: settings,
		writer:   fsutil.NewAtomicWriter(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logging.OrNop(p.logger)
	return p
}

// CreateNew writes content to a fresh file and makes it the append target.
func (p *Persister) CreateNew(ctx context.Context, content, title string) (string, error) {
	saved, err := p.Save(ctx, ActionNew, content, title)
	if err != nil {
		return "", err
	}
	return saved.Path, nil
}

// Append adds content as a new section of the last written file, or creates
// a new file when there is no usable last file.
func (p *Persister) Append(ctx context.Context, content, title string) (string, error) {
	saved, err := p.Save(ctx, ActionAppend, content, title)
	if err != nil {
		return "", err
	}
	return saved.Path, nil
}

// Save performs action and reports what was written. An append that falls
// back to a new file reports ActionNew.
func (p *Persister) Save(ctx context.Context, action Action, content, title string) (*Saved, error) {
	// Titles become "## {title}" headings, which must stay on one line
	title = strings.Join(strings.Fields(title), " ")
	if title == "" {
		title = defaultTitle
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	start := p.now()
	var (
		saved *Saved
		err   error
	)
	switch action {
	case ActionNew:
		saved, err = p.createLocked(ctx, content, title)
	case ActionAppend:
		saved, err = p.appendLocked(ctx, content, title)
	default:
		return nil, errors.NewInvalidRequest(fmt.Sprintf("unknown action %q (want new or append)", action))
	}
	p.metrics.ObservePersist(string(action), time.Since(start), err)
	return saved, err
}

func (p *Persister) createLocked(ctx context.Context, content, title string) (*Saved, error) {
	settings, err := p.settings.Get()
	if err != nil {
		return nil, err
	}

	dir := settings.SaveDirectory
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, errors.NewWriteFailed(dir, 1, fmt.Errorf("create save directory: %w", err))
	}

	now := p.now()
	path, err := uniquePath(dir, now.Format(FileTimeLayout)+"-"+Slugify(title))
	if err != nil {
		return nil, err
	}

	analysis := classify.Analyze(content)
	fm := NewFrontMatter(title, now, analysis)
	head, err := fm.Marshal()
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	var b strings.Builder
	b.Grow(len(head) + len(content) + 1)
	b.Write(head)
	b.WriteString("\n")
	b.WriteString(content)

	if err := p.writer.WriteFile(ctx, path, []byte(b.String())); err != nil {
		p.logger.Error("failed to create clip file", zap.String("path", path), zap.Error(err))
		return nil, err
	}

	if err := p.settings.SetLastFilePath(path); err != nil {
		// The clip is on disk; only the append target is stale.
		p.logger.Warn("failed to record last file path", zap.String("path", path), zap.Error(err))
	}

	p.logger.Info("created clip file", zap.String("path", path), zap.String("title", title))
	return &Saved{Path: path, Action: ActionNew, Title: title, Created: now, Analysis: analysis}, nil
}

func (p *Persister) appendLocked(ctx context.Context, content, title string) (*Saved, error) {
	settings, err := p.settings.Get()
	if err != nil {
		return nil, err
	}

	path := settings.LastFilePath
	if path == "" {
		return p.createLocked(ctx, content, title)
	}
	existing, err := os.ReadFile(path)
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			p.logger.Info("last file missing, creating a new one", zap.String("path", path))
			return p.createLocked(ctx, content, title)
		}
		return nil, errors.NewWriteFailed(path, 1, fmt.Errorf("read existing file: %w", err))
	}

	now := p.now()
	next := AppendSection(string(existing), title, now, content)
	if err := p.writer.WriteFile(ctx, path, []byte(next)); err != nil {
		p.logger.Error("failed to append clip", zap.String("path", path), zap.Error(err))
		return nil, err
	}

	p.logger.Info("appended clip", zap.String("path", path), zap.String("title", title))
	return &Saved{
		Path:     path,
		Action:   ActionAppend,
		Title:    title,
		Created:  now,
		Analysis: classify.Analyze(content),
	}, nil
}

// AppendSection returns existing followed by a divider, a level-two heading,
// a clipped timestamp and content. content is a strict suffix of the result.
func AppendSection(existing, title string, at time.Time, content string) string {
	var b strings.Builder
	b.Grow(len(existing) + len(title) + len(content) + 64)
	b.WriteString(existing)
	if existing != "" && !strings.HasSuffix(existing, "\n") {
		b.WriteString("\n")
	}
	b.WriteString("\n---\n\n## ")
	b.WriteString(title)
	b.WriteString("\n\n*Clipped:* ")
	b.WriteString(at.Format(time.RFC3339))
	b.WriteString("\n\n")
	b.WriteString(content)
	return b.String()
}

// uniquePath returns dir/base.md, or dir/base-N.md when that name is taken.
func uniquePath(dir, base string) (string, error) {
	path := filepath.Join(dir, base+".md")
	for n := 2; ; n++ {
		_, err := os.Lstat(path)
		if stderrors.Is(err, os.ErrNotExist) {
			return path, nil
		}
		if err != nil {
			return "", errors.NewWriteFailed(path, 1, err)
		}
		path = filepath.Join(dir, fmt.Sprintf("%s-%d.md", base, n))
	}
}
