package ops

import (
	"context"
	"fmt"
	"strings"

	"github.com/hpungsan/cliptitle/internal/clipboard"
	"github.com/hpungsan/cliptitle/internal/errors"
	"github.com/hpungsan/cliptitle/internal/persist"
	"github.com/hpungsan/cliptitle/internal/pipeline"
	"github.com/hpungsan/cliptitle/internal/title"
)

// Applier persists a clip and reports it to the notifier and history.
type Applier interface {
	ApplyRequest(ctx context.Context, action persist.Action, req pipeline.ActionRequest) (*persist.Saved, error)
}

// SaveInput contains parameters for the Save operation.
type SaveInput struct {
	ClipInput
	Title  string // optional; resolved when empty
	Action string // "new" (default) or "append"
}

// SaveOutput contains the result of the Save operation.
type SaveOutput struct {
	Path        string       `json:"path"`
	Action      string       `json:"action"`
	Title       string       `json:"title"`
	Source      title.Source `json:"source,omitempty"`
	ContentType string       `json:"content_type"`
	Words       int          `json:"words"`
}

// Save converts content, resolves a title unless one is given, and writes
// it. Unlike the pipeline it bypasses the duplicate and length filters.
func Save(ctx context.Context, applier Applier, resolver TitleResolver, input SaveInput) (*SaveOutput, error) {
	action, err := parseAction(input.Action)
	if err != nil {
		return nil, err
	}
	md, err := input.Markdown()
	if err != nil {
		return nil, err
	}

	d := title.Decision{Title: strings.TrimSpace(input.Title)}
	if d.Title == "" {
		if resolver != nil {
			d = resolver.Resolve(ctx, md)
		} else {
			d = title.Decision{Title: title.Heuristic(md), Source: title.SourceHeuristic}
		}
	}

	saved, err := applier.ApplyRequest(ctx, action, pipeline.ActionRequest{
		Title:       d.Title,
		Source:      d.Source,
		Content:     md,
		Fingerprint: pipeline.Fingerprint(md),
	})
	if err != nil {
		return nil, err
	}
	return &SaveOutput{
		Path:        saved.Path,
		Action:      string(saved.Action),
		Title:       saved.Title,
		Source:      d.Source,
		ContentType: string(saved.Analysis.Type),
		Words:       saved.Analysis.Words,
	}, nil
}

func parseAction(s string) (persist.Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(persist.ActionNew):
		return persist.ActionNew, nil
	case string(persist.ActionAppend):
		return persist.ActionAppend, nil
	}
	return "", errors.NewInvalidRequest(fmt.Sprintf("unknown action %q (want new or append)", s))
}

// ChangeHandler runs one pipeline pass over the current clipboard.
type ChangeHandler interface {
	HandleChange(ctx context.Context) pipeline.Result
}

// ProcessInput contains parameters for the Process operation.
type ProcessInput struct {
	ClipInput
}

// ProcessOutput contains the result of the Process operation.
type ProcessOutput struct {
	pipeline.Result
	Error string `json:"error,omitempty"`
}

// Process places content on the in-memory clipboard and runs the full
// pipeline once, filters and mode included. handler must read from mem.
func Process(ctx context.Context, handler ChangeHandler, mem *clipboard.Memory, input ProcessInput) (*ProcessOutput, error) {
	if input.Text == "" && input.HTML == "" {
		return nil, errors.NewInvalidRequest("text or html is required")
	}
	if input.HTML != "" {
		mem.Set(clipboard.HTMLSnapshot(input.HTML, input.Text))
	} else {
		mem.Set(clipboard.TextSnapshot(input.Text))
	}

	res := handler.HandleChange(ctx)
	out := &ProcessOutput{Result: res}
	if res.Err != nil {
		out.Error = res.Err.Error()
		if res.Outcome == pipeline.OutcomeFailed {
			return out, res.Err
		}
	}
	return out, nil
}
