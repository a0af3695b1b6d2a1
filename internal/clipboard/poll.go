package clipboard

import (
	"context"
	"crypto/sha256"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hpungsan/cliptitle/internal/logging"
	"github.com/hpungsan/cliptitle/internal/pipeline"
)

// DefaultPollInterval is how often PollWatcher reads the clipboard.
const DefaultPollInterval = 500 * time.Millisecond

// PollWatcher reads a clipboard source at a limited rate and emits an event
// whenever its raw contents change. The contents present when watching
// starts are the baseline and do not emit.
type PollWatcher struct {
	source  pipeline.ClipboardSource
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewPollWatcher polls source at most once per interval.
func NewPollWatcher(source pipeline.ClipboardSource, interval time.Duration, logger *zap.Logger) *PollWatcher {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &PollWatcher{
		source:  source,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		logger:  logging.OrNop(logger),
	}
}

// Watch starts polling.
func (p *PollWatcher) Watch(ctx context.Context) (<-chan struct{}, error) {
	out := make(chan struct{})
	go func() {
		defer close(out)
		var last [sha256.Size]byte
		first := true
		for {
			if err := p.limiter.Wait(ctx); err != nil {
				return
			}
			digest := p.digest(ctx)
			if first {
				last, first = digest, false
				continue
			}
			if digest == last {
				continue
			}
			last = digest
			select {
			case out <- struct{}{}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// digest hashes the raw formats. Read errors count as an empty clipboard.
func (p *PollWatcher) digest(ctx context.Context) [sha256.Size]byte {
	h := sha256.New()
	formats, err := p.source.ReadAvailableFormats(ctx)
	if err != nil {
		p.logger.Debug("clipboard formats unavailable", zap.Error(err))
		return [sha256.Size]byte{}
	}
	if formats.HasText {
		if text, err := p.source.ReadText(ctx); err == nil {
			h.Write([]byte("text\x00" + text))
		}
	}
	if formats.HasHTML {
		if html, err := p.source.ReadHTML(ctx); err == nil {
			h.Write([]byte("\x00html\x00" + html))
		}
	}
	var sum [sha256.Size]byte
	copy(sum[:], h.Sum(nil))
	return sum
}
