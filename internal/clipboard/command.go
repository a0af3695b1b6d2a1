package clipboard

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/hpungsan/cliptitle/internal/pipeline"
)

// Backend names a clipboard command-line tool.
type Backend string

const (
	BackendWayland Backend = "wl-paste"
	BackendX11     Backend = "xclip"
)

// Runner runs a command and returns its standard output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// CommandSource reads the system clipboard through wl-paste or xclip.
type CommandSource struct {
	backend Backend
	run     Runner
}

// NewCommandSource returns a source using backend. A nil runner executes
// the real command.
func NewCommandSource(backend Backend, run Runner) *CommandSource {
	if run == nil {
		run = execRunner
	}
	return &CommandSource{backend: backend, run: run}
}

// DetectCommandSource picks wl-paste under Wayland and xclip otherwise.
func DetectCommandSource() (*CommandSource, error) {
	if os.Getenv("WAYLAND_DISPLAY") != "" {
		if _, err := exec.LookPath(string(BackendWayland)); err == nil {
			return NewCommandSource(BackendWayland, nil), nil
		}
	}
	if _, err := exec.LookPath(string(BackendX11)); err == nil {
		return NewCommandSource(BackendX11, nil), nil
	}
	return nil, fmt.Errorf("no clipboard tool found (install wl-clipboard or xclip)")
}

// Backend returns the tool in use.
func (c *CommandSource) Backend() Backend { return c.backend }

func (c *CommandSource) ReadAvailableFormats(ctx context.Context) (pipeline.Formats, error) {
	var out []byte
	var err error
	switch c.backend {
	case BackendWayland:
		out, err = c.run(ctx, "wl-paste", "--list-types")
	default:
		out, err = c.run(ctx, "xclip", "-selection", "clipboard", "-o", "-t", "TARGETS")
	}
	if err != nil {
		return pipeline.Formats{}, err
	}
	return parseTargets(out), nil
}

func (c *CommandSource) ReadText(ctx context.Context) (string, error) {
	var out []byte
	var err error
	switch c.backend {
	case BackendWayland:
		out, err = c.run(ctx, "wl-paste", "--no-newline", "--type", "text/plain")
	default:
		out, err = c.run(ctx, "xclip", "-selection", "clipboard", "-o")
	}
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (c *CommandSource) ReadHTML(ctx context.Context) (string, error) {
	var out []byte
	var err error
	switch c.backend {
	case BackendWayland:
		out, err = c.run(ctx, "wl-paste", "--no-newline", "--type", "text/html")
	default:
		out, err = c.run(ctx, "xclip", "-selection", "clipboard", "-o", "-t", "text/html")
	}
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// parseTargets reads one MIME type or X11 target per line.
func parseTargets(out []byte) pipeline.Formats {
	var f pipeline.Formats
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		t := strings.TrimSpace(sc.Text())
		switch {
		case t == "text/html":
			f.HasHTML = true
			f.HasText = true
		case t == "UTF8_STRING", t == "STRING", t == "TEXT", strings.HasPrefix(t, "text/plain"):
			f.HasText = true
		}
	}
	return f
}
