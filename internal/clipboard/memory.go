// Package clipboard provides clipboard sources and change watchers for the
// pipeline: an in-memory clipboard, a drop-box directory, and the system
// clipboard read through wl-paste or xclip.
package clipboard

import (
	"context"
	"sync"

	"github.com/hpungsan/cliptitle/internal/pipeline"
)

// Snapshot is the clipboard contents at one point in time.
type Snapshot struct {
	HasHTML bool
	HasText bool
	HTML    string
	Text    string
}

// TextSnapshot returns a snapshot holding only text.
func TextSnapshot(text string) Snapshot {
	return Snapshot{HasText: text != "", Text: text}
}

// HTMLSnapshot returns a snapshot holding HTML and its text rendition.
// HTML content always counts as text.
func HTMLSnapshot(html, text string) Snapshot {
	return Snapshot{HasHTML: html != "", HasText: html != "" || text != "", HTML: html, Text: text}
}

// Formats returns the formats present in s.
func (s Snapshot) Formats() pipeline.Formats {
	return pipeline.Formats{HasHTML: s.HasHTML, HasText: s.HasText}
}

// Watcher emits a value whenever the clipboard changes. The channel is
// closed when ctx is done.
type Watcher interface {
	Watch(ctx context.Context) (<-chan struct{}, error)
}

const memoryEventBuffer = 16

// Memory is a settable clipboard. Notify emits a change event.
type Memory struct {
	mu     sync.RWMutex
	snap   Snapshot
	events chan struct{}
}

// NewMemory returns an empty in-memory clipboard.
func NewMemory() *Memory {
	return &Memory{events: make(chan struct{}, memoryEventBuffer)}
}

// Set replaces the clipboard contents without emitting an event.
func (m *Memory) Set(s Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = s
}

// Snapshot returns the current contents.
func (m *Memory) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap
}

// Notify emits a change event. Events are dropped when the buffer is full,
// since one pending event already covers the latest contents.
func (m *Memory) Notify() {
	select {
	case m.events <- struct{}{}:
	default:
	}
}

// Watch returns the event channel. It is closed when ctx is done.
func (m *Memory) Watch(ctx context.Context) (<-chan struct{}, error) {
	out := make(chan struct{})
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.events:
				select {
				case out <- struct{}{}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (m *Memory) ReadAvailableFormats(context.Context) (pipeline.Formats, error) {
	return m.Snapshot().Formats(), nil
}

func (m *Memory) ReadText(context.Context) (string, error) {
	return m.Snapshot().Text, nil
}

func (m *Memory) ReadHTML(context.Context) (string, error) {
	return m.Snapshot().HTML, nil
}
