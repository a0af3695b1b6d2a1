package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/hpungsan/cliptitle/internal/errors"
	"github.com/hpungsan/cliptitle/internal/logging"
	"github.com/hpungsan/cliptitle/internal/metrics"
	"github.com/hpungsan/cliptitle/internal/persist"
	"github.com/hpungsan/cliptitle/internal/pipeline"
)

// DefaultInboxLimit is how many pending requests an inbox keeps.
const DefaultInboxLimit = 50

// ActionDismiss drops a pending request without writing anything.
const ActionDismiss = "dismiss"

// Applier performs the action chosen for a request.
type Applier interface {
	ApplyRequest(ctx context.Context, action persist.Action, req pipeline.ActionRequest) (*persist.Saved, error)
}

// Inbox holds action requests until they are resolved. Each request is
// resolved at most once; when the inbox is full the oldest is evicted.
type Inbox struct {
	limit   int
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	applier Applier
	order   []string
	items   map[string]pipeline.ActionRequest
}

// InboxOption configures an Inbox.
type InboxOption func(*Inbox)

// WithLimit sets the maximum number of pending requests.
func WithLimit(n int) InboxOption {
	return func(i *Inbox) {
		if n > 0 {
			i.limit = n
		}
	}
}

// WithLogger sets the inbox's logger.
func WithLogger(l *zap.Logger) InboxOption {
	return func(i *Inbox) { i.logger = l }
}

// WithMetrics reports the pending count.
func WithMetrics(m *metrics.Metrics) InboxOption {
	return func(i *Inbox) { i.metrics = m }
}

// NewInbox creates an empty inbox.
func NewInbox(opts ...InboxOption) *Inbox {
	i := &Inbox{
		limit: DefaultInboxLimit,
		items: make(map[string]pipeline.ActionRequest),
	}
	for _, opt := range opts {
		opt(i)
	}
	i.logger = logging.OrNop(i.logger)
	return i
}

// SetApplier sets what performs resolved actions. The coordinator usually
// needs the inbox as its notifier, so it is wired after construction.
func (i *Inbox) SetApplier(a Applier) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.applier = a
}

func (i *Inbox) NotifySaved(context.Context, string, string) {}

func (i *Inbox) NotifyError(context.Context, string) {}

// RequestAction stores req until it is resolved.
func (i *Inbox) RequestAction(_ context.Context, req pipeline.ActionRequest) {
	if req.ID == "" {
		req.ID = ulid.Make().String()
	}

	i.mu.Lock()
	if _, exists := i.items[req.ID]; !exists {
		i.order = append(i.order, req.ID)
	}
	i.items[req.ID] = req
	for len(i.order) > i.limit {
		oldest := i.order[0]
		i.order = i.order[1:]
		delete(i.items, oldest)
		i.logger.Info("evicted pending clip", zap.String("id", oldest))
	}
	n := len(i.order)
	i.mu.Unlock()

	i.metrics.SetPending(n)
}

// List returns pending requests, oldest first.
func (i *Inbox) List() []pipeline.ActionRequest {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]pipeline.ActionRequest, 0, len(i.order))
	for _, id := range i.order {
		out = append(out, i.items[id])
	}
	return out
}

// Get returns a pending request.
func (i *Inbox) Get(id string) (pipeline.ActionRequest, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	req, ok := i.items[id]
	return req, ok
}

// Len returns the number of pending requests.
func (i *Inbox) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.order)
}

// Resolve removes the request and performs action on it: "append", "new"
// or "dismiss". A dismissed request returns a nil result. The request is
// consumed even if applying it fails.
func (i *Inbox) Resolve(ctx context.Context, id, action string) (*persist.Saved, error) {
	action = strings.ToLower(strings.TrimSpace(action))
	switch action {
	case string(persist.ActionAppend), string(persist.ActionNew), ActionDismiss:
	default:
		return nil, errors.NewInvalidRequest(fmt.Sprintf("unknown action %q (want append, new or dismiss)", action))
	}

	req, applier, err := i.take(id)
	if err != nil {
		return nil, err
	}
	if action == ActionDismiss {
		i.logger.Info("dismissed pending clip", zap.String("id", id))
		return nil, nil
	}
	if applier == nil {
		return nil, errors.NewInternal(fmt.Errorf("inbox has no applier"))
	}
	return applier.ApplyRequest(ctx, persist.Action(action), req)
}

// Dismiss drops a pending request.
func (i *Inbox) Dismiss(id string) error {
	_, _, err := i.take(id)
	return err
}

func (i *Inbox) take(id string) (pipeline.ActionRequest, Applier, error) {
	i.mu.Lock()
	req, ok := i.items[id]
	if !ok {
		i.mu.Unlock()
		return pipeline.ActionRequest{}, nil, errors.NewNotFound("pending clip", id)
	}
	delete(i.items, id)
	for k, v := range i.order {
		if v == id {
			i.order = append(i.order[:k], i.order[k+1:]...)
			break
		}
	}
	n := len(i.order)
	applier := i.applier
	i.mu.Unlock()

	i.metrics.SetPending(n)
	return req, applier, nil
}
