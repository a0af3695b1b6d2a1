// Package pipeline turns clipboard changes into titled, persisted clips.
package pipeline

import (
	"context"
	"time"

	"github.com/hpungsan/cliptitle/internal/classify"
	"github.com/hpungsan/cliptitle/internal/config"
	"github.com/hpungsan/cliptitle/internal/persist"
	"github.com/hpungsan/cliptitle/internal/title"
)

// Formats reports which clipboard formats are currently available.
type Formats struct {
	HasHTML bool
	HasText bool
}

// ClipboardSource reads the current clipboard contents.
type ClipboardSource interface {
	ReadAvailableFormats(ctx context.Context) (Formats, error)
	ReadText(ctx context.Context) (string, error)
	ReadHTML(ctx context.Context) (string, error)
}

// ActionRequest asks the user what to do with a titled clip.
type ActionRequest struct {
	ID          string       `json:"id,omitempty"`
	Title       string       `json:"title"`
	Source      title.Source `json:"source,omitempty"`
	Preview     string       `json:"preview"`
	Content     string       `json:"content"`
	Fingerprint string       `json:"fingerprint,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Notifier is the external notification layer.
type Notifier interface {
	NotifySaved(ctx context.Context, title, path string)
	NotifyError(ctx context.Context, msg string)
	RequestAction(ctx context.Context, req ActionRequest)
}

// SettingsProvider returns the current settings.
type SettingsProvider interface {
	Get() (*config.Settings, error)
}

// TitleResolver resolves a title for converted content. It must not fail.
type TitleResolver interface {
	Resolve(ctx context.Context, content string) title.Decision
}

// Persister writes clips to disk.
type Persister interface {
	Save(ctx context.Context, action persist.Action, content, title string) (*persist.Saved, error)
}

// Record is a persisted clip handed to a Recorder.
type Record struct {
	Path        string
	Title       string
	TitleSource title.Source
	Action      persist.Action
	Fingerprint string
	Analysis    classify.Analysis
	CreatedAt   time.Time
}

// Recorder keeps a history of persisted clips.
type Recorder interface {
	RecordClip(ctx context.Context, rec Record) error
}

// Outcome is how a single run ended.
type Outcome string

const (
	OutcomeNoText    Outcome = "no_text"
	OutcomeEmpty     Outcome = "empty"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeTooShort  Outcome = "too_short"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeSaved     Outcome = "saved"
	OutcomeRequested Outcome = "requested"
	OutcomeFailed    Outcome = "failed"
	OutcomePaused    Outcome = "paused"
	OutcomeStopped   Outcome = "stopped"
)

// Result describes a single run.
type Result struct {
	Outcome     Outcome        `json:"outcome"`
	Title       string         `json:"title,omitempty"`
	Source      title.Source   `json:"source,omitempty"`
	Action      persist.Action `json:"action,omitempty"`
	Path        string         `json:"path,omitempty"`
	Fingerprint string         `json:"fingerprint,omitempty"`
	Pattern     string         `json:"pattern,omitempty"`
	RequestID   string         `json:"request_id,omitempty"`
	Err         error          `json:"-"`
}

// State is the coordinator's run state.
type State int

const (
	StateIdle State = iota
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePaused:
		return "paused"
	}
	return "unknown"
}
