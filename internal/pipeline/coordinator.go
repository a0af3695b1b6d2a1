package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hpungsan/cliptitle/internal/config"
	"github.com/hpungsan/cliptitle/internal/convert"
	"github.com/hpungsan/cliptitle/internal/errors"
	"github.com/hpungsan/cliptitle/internal/logging"
	"github.com/hpungsan/cliptitle/internal/metrics"
	"github.com/hpungsan/cliptitle/internal/persist"
	"github.com/hpungsan/cliptitle/internal/title"
)

const (
	// DefaultWorkers bounds concurrently processed change notifications.
	DefaultWorkers = 4

	previewRunes = 100
)

// Coordinator runs the clipboard pipeline. A single coordinator owns the
// duplicate fingerprint; it is safe for concurrent use.
type Coordinator struct {
	source    ClipboardSource
	settings  SettingsProvider
	resolver  TitleResolver
	persister Persister
	notifier  Notifier
	recorder  Recorder
	logger    *zap.Logger
	metrics   *metrics.Metrics
	workers   int
	now       func() time.Time

	mu              sync.Mutex
	state           State
	lastFingerprint string

	stopOnce sync.Once
	done     chan struct{}
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the coordinator's logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithMetrics sets the coordinator's metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithRecorder records every persisted clip.
func WithRecorder(r Recorder) Option {
	return func(c *Coordinator) { c.recorder = r }
}

// WithWorkers sets how many change notifications Run processes at once.
func WithWorkers(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// New creates a coordinator in the Idle state.
func New(source ClipboardSource, settings SettingsProvider, resolver TitleResolver, persister Persister, notifier Notifier, opts ...Option) *Coordinator {
	c := &Coordinator{
		source:    source,
		settings:  settings,
		resolver:  resolver,
		persister: persister,
		notifier:  notifier,
		workers:   DefaultWorkers,
		now:       time.Now,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.OrNop(c.logger)
	return c
}

// State returns the current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Pause makes subsequent change notifications no-ops. Runs already in
// flight are not cancelled.
func (c *Coordinator) Pause() {
	c.setState(StatePaused)
}

// Resume returns to the Idle state.
func (c *Coordinator) Resume() {
	c.setState(StateIdle)
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	changed := c.state != s
	c.state = s
	c.mu.Unlock()
	if changed {
		c.logger.Info("clipboard monitoring state changed", zap.Stringer("state", s))
	}
}

// Stop ends Run. It is safe to call more than once.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() {
		close(c.done)
		c.logger.Info("clipboard monitoring stopped")
	})
}

func (c *Coordinator) stopped() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Run processes a change notification for every value received on events
// until ctx is cancelled, events is closed or Stop is called. At most the
// configured number of runs execute at once; further events wait for a free
// worker. Run returns after in-flight runs finish.
func (c *Coordinator) Run(ctx context.Context, events <-chan struct{}) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)

	c.logger.Info("clipboard monitoring started", zap.Int("workers", c.workers))
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-c.done:
			break loop
		case _, ok := <-events:
			if !ok {
				break loop
			}
			g.Go(func() error {
				c.HandleChange(gctx)
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil && err != context.Canceled {
		return err
	}
	return nil
}

// HandleChange processes the current clipboard contents once.
func (c *Coordinator) HandleChange(ctx context.Context) Result {
	res := c.handle(ctx)
	c.metrics.ObserveRun(string(res.Outcome))

	fields := []zap.Field{zap.String("outcome", string(res.Outcome))}
	if res.Path != "" {
		fields = append(fields, zap.String("path", res.Path))
	}
	if res.Err != nil {
		fields = append(fields, zap.Error(res.Err))
		c.logger.Warn("clipboard change failed", fields...)
	} else {
		c.logger.Debug("clipboard change handled", fields...)
	}
	return res
}

func (c *Coordinator) handle(ctx context.Context) Result {
	if c.stopped() {
		return Result{Outcome: OutcomeStopped}
	}
	if c.State() == StatePaused {
		return Result{Outcome: OutcomePaused}
	}

	formats, err := c.source.ReadAvailableFormats(ctx)
	if err != nil {
		return Result{Outcome: OutcomeFailed, Err: fmt.Errorf("read clipboard formats: %w", err)}
	}
	if !formats.HasText {
		return Result{Outcome: OutcomeNoText}
	}

	markdown, err := c.convert(ctx, formats)
	if err != nil {
		return Result{Outcome: OutcomeFailed, Err: err}
	}
	if markdown == "" {
		return Result{Outcome: OutcomeEmpty}
	}

	fp := Fingerprint(markdown)
	if !c.swapFingerprint(fp) {
		return Result{Outcome: OutcomeDuplicate, Fingerprint: fp}
	}

	settings, err := c.settings.Get()
	if err != nil {
		return Result{Outcome: OutcomeFailed, Fingerprint: fp, Err: err}
	}
	if utf8.RuneCountInString(markdown) < settings.MinimumLength {
		return Result{Outcome: OutcomeTooShort, Fingerprint: fp}
	}
	if pattern, ok := settings.IgnoredBy(markdown); ok {
		return Result{Outcome: OutcomeIgnored, Fingerprint: fp, Pattern: pattern}
	}

	decision := c.resolveTitle(ctx, markdown)

	if settings.Mode == config.ModeAutoAppend {
		saved, err := c.apply(ctx, persist.ActionAppend, markdown, decision, fp)
		if err != nil {
			return Result{Outcome: OutcomeFailed, Title: decision.Title, Source: decision.Source, Fingerprint: fp, Err: err}
		}
		return Result{
			Outcome:     OutcomeSaved,
			Title:       decision.Title,
			Source:      decision.Source,
			Action:      saved.Action,
			Path:        saved.Path,
			Fingerprint: fp,
		}
	}

	req := ActionRequest{
		ID:          ulid.Make().String(),
		Title:       decision.Title,
		Source:      decision.Source,
		Preview:     Preview(markdown),
		Content:     markdown,
		Fingerprint: fp,
		CreatedAt:   c.now(),
	}
	c.notifier.RequestAction(ctx, req)
	return Result{
		Outcome:     OutcomeRequested,
		Title:       decision.Title,
		Source:      decision.Source,
		Fingerprint: fp,
		RequestID:   req.ID,
	}
}

// convert prefers the HTML format and falls back to text when HTML is
// absent or converts to nothing.
func (c *Coordinator) convert(ctx context.Context, formats Formats) (string, error) {
	if formats.HasHTML {
		html, err := c.source.ReadHTML(ctx)
		if err != nil {
			c.logger.Warn("failed to read html format, using text", zap.Error(err))
		} else if html != "" {
			if md := convert.ConvertHTML(html); md != "" {
				return md, nil
			}
		}
	}

	text, err := c.source.ReadText(ctx)
	if err != nil {
		return "", fmt.Errorf("read clipboard text: %w", err)
	}
	return convert.ConvertPlainText(text), nil
}

// swapFingerprint records fp as the last processed content and reports
// whether it differed from the previous one.
func (c *Coordinator) swapFingerprint(fp string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if fp == c.lastFingerprint {
		return false
	}
	c.lastFingerprint = fp
	return true
}

func (c *Coordinator) resolveTitle(ctx context.Context, content string) (d title.Decision) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("title resolution panicked", zap.Any("panic", r))
			d = title.Decision{Title: title.FallbackTitle, Source: title.SourceFallback}
		}
	}()
	d = c.resolver.Resolve(ctx, content)
	if d.Title == "" {
		d = title.Decision{Title: title.FallbackTitle, Source: title.SourceFallback}
	}
	return d
}

// ApplyRequest performs action for a previously issued request.
func (c *Coordinator) ApplyRequest(ctx context.Context, action persist.Action, req ActionRequest) (*persist.Saved, error) {
	if action != persist.ActionAppend && action != persist.ActionNew {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("unknown action %q (want append or new)", action))
	}
	fp := req.Fingerprint
	if fp == "" {
		fp = Fingerprint(req.Content)
	}
	return c.apply(ctx, action, req.Content, title.Decision{Title: req.Title, Source: req.Source}, fp)
}

func (c *Coordinator) apply(ctx context.Context, action persist.Action, content string, d title.Decision, fp string) (*persist.Saved, error) {
	saved, err := c.persister.Save(ctx, action, content, d.Title)
	if err != nil {
		c.notifier.NotifyError(ctx, fmt.Sprintf("Failed to save clip: %v", err))
		return nil, err
	}
	c.notifier.NotifySaved(ctx, saved.Title, saved.Path)

	if c.recorder != nil {
		rec := Record{
			Path:        saved.Path,
			Title:       saved.Title,
			TitleSource: d.Source,
			Action:      saved.Action,
			Fingerprint: fp,
			Analysis:    saved.Analysis,
			CreatedAt:   saved.Created,
		}
		if err := c.recorder.RecordClip(ctx, rec); err != nil {
			c.logger.Warn("failed to record clip history", zap.String("path", saved.Path), zap.Error(err))
		}
	}
	return saved, nil
}

// Fingerprint returns the hex SHA-256 of content.
func Fingerprint(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Preview returns the first characters of content for a notification.
func Preview(content string) string {
	if utf8.RuneCountInString(content) <= previewRunes {
		return content
	}
	r := []rune(content)
	return string(r[:previewRunes]) + "..."
}
