package notify

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/cliptitle/internal/errors"
	"github.com/hpungsan/cliptitle/internal/metrics"
	"github.com/hpungsan/cliptitle/internal/persist"
	"github.com/hpungsan/cliptitle/internal/pipeline"
)

type fakeApplier struct {
	calls   atomic.Int32
	actions []persist.Action
	mu      sync.Mutex
	err     error
}

func (f *fakeApplier) ApplyRequest(_ context.Context, action persist.Action, req pipeline.ActionRequest) (*persist.Saved, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.actions = append(f.actions, action)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &persist.Saved{Path: "/clips/" + req.ID + ".md", Action: action, Title: req.Title}, nil
}

func pending(t *testing.T, m *metrics.Metrics) float64 {
	t.Helper()
	mfs, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() == "cliptitle_pending_actions" {
			return mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatal("pending gauge not registered")
	return 0
}

func TestConsole(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, true)
	ctx := context.Background()

	c.NotifySaved(ctx, "Python Sum Helper", "/clips/a.md")
	c.NotifyError(ctx, "Failed to save clip: disk full")
	c.RequestAction(ctx, pipeline.ActionRequest{ID: "01ABC", Title: "Notes", Preview: "line one\nline two"})

	assert.Equal(t,
		"Saved: Python Sum Helper /clips/a.md\n"+
			"Error: Failed to save clip: disk full\n"+
			"New clip: Notes [01ABC]\n  line one line two\n",
		buf.String())
}

func TestMulti(t *testing.T) {
	var a, b bytes.Buffer
	m := Multi{NewConsole(&a, true), NewConsole(&b, true)}
	m.NotifySaved(context.Background(), "T", "/p")
	assert.Equal(t, a.String(), b.String())
	assert.NotEmpty(t, a.String())
}

func TestInbox_ResolveAtMostOnce(t *testing.T) {
	applier := &fakeApplier{}
	inbox := NewInbox()
	inbox.SetApplier(applier)
	ctx := context.Background()

	inbox.RequestAction(ctx, pipeline.ActionRequest{ID: "r1", Title: "First", Content: "body"})
	require.Equal(t, 1, inbox.Len())

	var wg sync.WaitGroup
	var succeeded atomic.Int32
	for n := 0; n < 10; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := inbox.Resolve(ctx, "r1", "append"); err == nil {
				succeeded.Add(1)
			} else {
				assert.True(t, errors.Is(err, errors.ErrNotFound))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), succeeded.Load())
	assert.Equal(t, int32(1), applier.calls.Load())
	assert.Equal(t, 0, inbox.Len())
}

func TestInbox_ResolveActions(t *testing.T) {
	applier := &fakeApplier{}
	inbox := NewInbox()
	inbox.SetApplier(applier)
	ctx := context.Background()

	inbox.RequestAction(ctx, pipeline.ActionRequest{ID: "a", Title: "A"})
	inbox.RequestAction(ctx, pipeline.ActionRequest{ID: "b", Title: "B"})
	inbox.RequestAction(ctx, pipeline.ActionRequest{ID: "c", Title: "C"})

	saved, err := inbox.Resolve(ctx, "a", "NEW")
	require.NoError(t, err)
	assert.Equal(t, "/clips/a.md", saved.Path)

	saved, err = inbox.Resolve(ctx, "b", "dismiss")
	require.NoError(t, err)
	assert.Nil(t, saved)

	_, err = inbox.Resolve(ctx, "c", "delete")
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
	_, ok := inbox.Get("c")
	assert.True(t, ok, "invalid action must not consume the request")

	require.NoError(t, inbox.Dismiss("c"))
	assert.True(t, errors.Is(inbox.Dismiss("c"), errors.ErrNotFound))

	assert.Equal(t, []persist.Action{persist.ActionNew}, applier.actions)
}

func TestInbox_ApplyFailureConsumesRequest(t *testing.T) {
	applier := &fakeApplier{err: stderrors.New("disk full")}
	inbox := NewInbox()
	inbox.SetApplier(applier)
	ctx := context.Background()

	inbox.RequestAction(ctx, pipeline.ActionRequest{ID: "x"})
	_, err := inbox.Resolve(ctx, "x", "append")
	assert.ErrorContains(t, err, "disk full")
	assert.Equal(t, 0, inbox.Len())
}

func TestInbox_EvictsOldestAndTracksPending(t *testing.T) {
	m := metrics.New()
	inbox := NewInbox(WithLimit(3), WithMetrics(m))
	ctx := context.Background()

	for n := 1; n <= 5; n++ {
		inbox.RequestAction(ctx, pipeline.ActionRequest{ID: fmt.Sprintf("r%d", n)})
	}

	var ids []string
	for _, req := range inbox.List() {
		ids = append(ids, req.ID)
	}
	assert.Equal(t, []string{"r3", "r4", "r5"}, ids)
	assert.Equal(t, 3.0, pending(t, m))

	require.NoError(t, inbox.Dismiss("r4"))
	assert.Equal(t, 2.0, pending(t, m))
}

func TestInbox_AssignsIDs(t *testing.T) {
	inbox := NewInbox()
	inbox.RequestAction(context.Background(), pipeline.ActionRequest{Title: "no id"})
	list := inbox.List()
	require.Len(t, list, 1)
	assert.Len(t, list[0].ID, 26)
}

func TestInbox_NoApplier(t *testing.T) {
	inbox := NewInbox()
	inbox.RequestAction(context.Background(), pipeline.ActionRequest{ID: "x"})
	_, err := inbox.Resolve(context.Background(), "x", "new")
	assert.True(t, errors.Is(err, errors.ErrInternal))
}
