// Package notify implements the pipeline's notification layer: a terminal
// notifier, an in-process inbox of pending action requests, and fan-out.
package notify

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"

	"github.com/hpungsan/cliptitle/internal/pipeline"
)

// Console prints one line per notification.
type Console struct {
	w  io.Writer
	mu sync.Mutex

	green func(a ...interface{}) string
	red   func(a ...interface{}) string
	cyan  func(a ...interface{}) string
	gray  func(a ...interface{}) string
}

// NewConsole writes notifications to w. Colour is disabled when noColor is
// set or w is not a terminal.
func NewConsole(w io.Writer, noColor bool) *Console {
	mk := func(attrs ...color.Attribute) func(a ...interface{}) string {
		c := color.New(attrs...)
		if noColor {
			c.DisableColor()
		}
		return c.SprintFunc()
	}
	return &Console{
		w:     w,
		green: mk(color.FgGreen, color.Bold),
		red:   mk(color.FgRed, color.Bold),
		cyan:  mk(color.FgCyan, color.Bold),
		gray:  mk(color.FgHiBlack),
	}
}

func (c *Console) NotifySaved(_ context.Context, title, path string) {
	c.printf("%s %s %s\n", c.green("Saved:"), title, c.gray(path))
}

func (c *Console) NotifyError(_ context.Context, msg string) {
	c.printf("%s %s\n", c.red("Error:"), msg)
}

func (c *Console) RequestAction(_ context.Context, req pipeline.ActionRequest) {
	c.printf("%s %s %s\n  %s\n", c.cyan("New clip:"), req.Title, c.gray("["+req.ID+"]"), c.gray(oneLine(req.Preview)))
}

func (c *Console) printf(format string, args ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, format, args...)
}

func oneLine(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '\n' || r == '\r' || r == '\t' {
			r = ' '
		}
		out = append(out, r)
	}
	return string(out)
}

// Multi sends every notification to each notifier in order.
type Multi []pipeline.Notifier

func (m Multi) NotifySaved(ctx context.Context, title, path string) {
	for _, n := range m {
		n.NotifySaved(ctx, title, path)
	}
}

func (m Multi) NotifyError(ctx context.Context, msg string) {
	for _, n := range m {
		n.NotifyError(ctx, msg)
	}
}

func (m Multi) RequestAction(ctx context.Context, req pipeline.ActionRequest) {
	for _, n := range m {
		n.RequestAction(ctx, req)
	}
}
