package clipboard

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/hpungsan/cliptitle/internal/logging"
	"github.com/hpungsan/cliptitle/internal/pipeline"
)

var errSkipped = stderrors.New("not a clip file")

// DropWatcher treats a directory as a clipboard. Writing an .html or .htm
// file there sets the HTML format; a .txt or .md file sets the text format.
// Each such write is a change.
type DropWatcher struct {
	dir    string
	mem    *Memory
	logger *zap.Logger
}

// NewDropWatcher watches dir, which is created on Watch if missing.
func NewDropWatcher(dir string, logger *zap.Logger) *DropWatcher {
	return &DropWatcher{dir: dir, mem: NewMemory(), logger: logging.OrNop(logger)}
}

// Dir returns the watched directory.
func (d *DropWatcher) Dir() string { return d.dir }

// Watch starts watching the directory.
func (d *DropWatcher) Watch(ctx context.Context) (<-chan struct{}, error) {
	if err := os.MkdirAll(d.dir, 0755); err != nil {
		return nil, fmt.Errorf("create drop directory: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(d.dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", d.dir, err)
	}

	out := make(chan struct{})
	go func() {
		defer close(out)
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
					continue
				}
				if err := d.load(ev.Name); err != nil {
					if !stderrors.Is(err, errSkipped) {
						d.logger.Warn("failed to read dropped clip", zap.String("path", ev.Name), zap.Error(err))
					}
					continue
				}
				select {
				case out <- struct{}{}:
				case <-ctx.Done():
					return
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				d.logger.Warn("drop directory watcher error", zap.Error(err))
			}
		}
	}()

	d.logger.Info("watching drop directory", zap.String("dir", d.dir))
	return out, nil
}

// load reads a dropped file into the snapshot.
func (d *DropWatcher) load(path string) error {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, "~") {
		return errSkipped
	}

	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".html", ".htm", ".txt", ".md":
	default:
		return errSkipped
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return errSkipped
	}

	if ext == ".html" || ext == ".htm" {
		html := string(data)
		d.mem.Set(HTMLSnapshot(html, htmlText(html)))
		return nil
	}
	d.mem.Set(TextSnapshot(string(data)))
	return nil
}

// htmlText returns the visible text of an HTML document.
func htmlText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find("script, style, head").Remove()
	return strings.TrimSpace(doc.Text())
}

func (d *DropWatcher) ReadAvailableFormats(ctx context.Context) (pipeline.Formats, error) {
	return d.mem.ReadAvailableFormats(ctx)
}

func (d *DropWatcher) ReadText(ctx context.Context) (string, error) {
	return d.mem.ReadText(ctx)
}

func (d *DropWatcher) ReadHTML(ctx context.Context) (string, error) {
	return d.mem.ReadHTML(ctx)
}
