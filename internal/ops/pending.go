package ops

import (
	"context"
	"strings"

	"github.com/hpungsan/cliptitle/internal/errors"
	"github.com/hpungsan/cliptitle/internal/notify"
	"github.com/hpungsan/cliptitle/internal/pipeline"
)

// PendingOutput contains the result of the Pending operation.
type PendingOutput struct {
	Items []pipeline.ActionRequest `json:"items"`
}

// Pending lists clips waiting for an append, new-file or dismiss decision.
func Pending(inbox *notify.Inbox) *PendingOutput {
	return &PendingOutput{Items: inbox.List()}
}

// ResolveInput contains parameters for the Resolve operation.
type ResolveInput struct {
	ID     string // required
	Action string // append, new or dismiss
}

// ResolveOutput contains the result of the Resolve operation.
type ResolveOutput struct {
	ID     string `json:"id"`
	Action string `json:"action"`
	Path   string `json:"path,omitempty"`
	Title  string `json:"title,omitempty"`
}

// Resolve applies the chosen action to a pending clip. Each pending clip is
// resolved at most once.
func Resolve(ctx context.Context, inbox *notify.Inbox, input ResolveInput) (*ResolveOutput, error) {
	id := strings.TrimSpace(input.ID)
	if id == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}
	action := strings.ToLower(strings.TrimSpace(input.Action))

	saved, err := inbox.Resolve(ctx, id, action)
	if err != nil {
		return nil, err
	}
	out := &ResolveOutput{ID: id, Action: action}
	if saved != nil {
		out.Action = string(saved.Action)
		out.Path = saved.Path
		out.Title = saved.Title
	}
	return out, nil
}
