package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hpungsan/cliptitle/internal/clipboard"
	"github.com/hpungsan/cliptitle/internal/errors"
	"github.com/hpungsan/cliptitle/internal/mcp"
	"github.com/hpungsan/cliptitle/internal/ops"
	"github.com/hpungsan/cliptitle/internal/pipeline"
	"github.com/hpungsan/cliptitle/internal/web"
)

// Default web UI address.
const (
	defaultWebBind = "127.0.0.1"
	defaultWebPort = 8420
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(rt *runtime) *cli.App {
	app := &cli.App{
		Name:    "cliptitle",
		Usage:   "Turn clipboard content into titled Markdown notes",
		Version: Version,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "no-color", Usage: "Disable coloured notices"},
		},
		Commands: []*cli.Command{
			watchCmd(rt),
			processCmd(rt),
			analyzeCmd(),
			titleCmd(rt),
			saveCmd(rt),
			historyCmd(rt),
			showCmd(rt),
			settingsCmd(rt),
			healthCmd(rt),
			serveCmd(rt),
			mcpCmd(rt),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// contentFlags are shared by commands that read clip content from stdin.
func contentFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{Name: "html", Usage: "Treat stdin as HTML (CF_HTML framing allowed)"},
	}
}

// watchCmd creates the watch command.
func watchCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Watch a clipboard source and save every new clip",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "source", Aliases: []string{"s"}, Value: "auto", Usage: "Clipboard source: auto|clipboard|drop"},
			&cli.StringFlag{Name: "drop-dir", Usage: "Directory watched by the drop source (default: {home}/drop)"},
			&cli.DurationFlag{Name: "interval", Value: clipboard.DefaultPollInterval, Usage: "Poll interval for the system clipboard"},
			&cli.IntFlag{Name: "workers", Value: pipeline.DefaultWorkers, Usage: "Concurrent pipeline runs"},
			&cli.IntFlag{Name: "web-port", Usage: "Also serve the web UI on this port (0 disables)"},
			&cli.StringFlag{Name: "web-bind", Value: defaultWebBind, Usage: "Web UI bind address"},
		},
		Action: func(c *cli.Context) error {
			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			dropDir := c.String("drop-dir")
			if dropDir == "" {
				dropDir = rt.dropDir()
			}
			source, watcher, err := openSource(rt, c.String("source"), dropDir, c.Duration("interval"))
			if err != nil {
				return outputError(err)
			}

			coord := rt.coordinator(source, c.Bool("no-color"), c.Int("workers"))
			events, err := watcher.Watch(ctx)
			if err != nil {
				return outputError(errors.NewInternal(err))
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				// The watcher closing its channel ends the whole run
				defer stop()
				return coord.Run(gctx, events)
			})
			g.Go(func() error {
				// Runs still queued at shutdown become no-ops
				<-gctx.Done()
				coord.Stop()
				return nil
			})
			if port := c.Int("web-port"); port > 0 {
				srv, err := web.NewServer(rt.webDeps(coord), c.String("web-bind"), port)
				if err != nil {
					return outputError(errors.NewInternal(err))
				}
				g.Go(func() error { return web.Run(gctx, srv, rt.logger) })
			}

			if err := g.Wait(); err != nil && !stderrors.Is(err, context.Canceled) {
				return outputError(errors.NewInternal(err))
			}
			return nil
		},
	}
}

// openSource picks the clipboard source for watch.
func openSource(rt *runtime, kind, dropDir string, interval time.Duration) (pipeline.ClipboardSource, clipboard.Watcher, error) {
	switch strings.ToLower(kind) {
	case "clipboard":
		cs, err := clipboard.DetectCommandSource()
		if err != nil {
			return nil, nil, errors.NewInvalidRequest(err.Error())
		}
		rt.logger.Info("watching system clipboard", zap.String("backend", string(cs.Backend())))
		return cs, clipboard.NewPollWatcher(cs, interval, rt.logger), nil
	case "drop":
		rt.logger.Info("watching drop directory", zap.String("dir", dropDir))
		d := clipboard.NewDropWatcher(dropDir, rt.logger)
		return d, d, nil
	case "", "auto":
		if cs, err := clipboard.DetectCommandSource(); err == nil {
			rt.logger.Info("watching system clipboard", zap.String("backend", string(cs.Backend())))
			return cs, clipboard.NewPollWatcher(cs, interval, rt.logger), nil
		}
		rt.logger.Info("no clipboard tool found, watching drop directory", zap.String("dir", dropDir))
		d := clipboard.NewDropWatcher(dropDir, rt.logger)
		return d, d, nil
	default:
		return nil, nil, errors.NewInvalidRequest(fmt.Sprintf("unknown source %q (use auto, clipboard or drop)", kind))
	}
}

// processCmd creates the process command.
func processCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "process",
		Usage: "Run the full pipeline once over stdin, filters and mode included",
		Flags: contentFlags(),
		Action: func(c *cli.Context) error {
			input, err := readClipInput(c)
			if err != nil {
				return outputError(err)
			}

			mem := clipboard.NewMemory()
			coord := rt.coordinator(mem, c.Bool("no-color"), 1)
			output, err := ops.Process(c.Context, coord, mem, ops.ProcessInput{ClipInput: input})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// analyzeCmd creates the analyze command.
func analyzeCmd() *cli.Command {
	return &cli.Command{
		Name:  "analyze",
		Usage: "Convert and classify stdin without saving",
		Flags: contentFlags(),
		Action: func(c *cli.Context) error {
			input, err := readClipInput(c)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.Analyze(ops.AnalyzeInput{ClipInput: input})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// titleCmd creates the title command.
func titleCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "title",
		Usage: "Suggest a title for stdin",
		Flags: append(contentFlags(),
			&cli.BoolFlag{Name: "heuristic", Usage: "Skip the inference server"},
		),
		Action: func(c *cli.Context) error {
			input, err := readClipInput(c)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.Title(c.Context, rt.resolver, ops.TitleInput{
				ClipInput:     input,
				HeuristicOnly: c.Bool("heuristic"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// saveCmd creates the save command.
func saveCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "save",
		Usage: "Save stdin as a new note, or append it to the last one",
		Flags: append(contentFlags(),
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Title (resolved when empty)"},
			&cli.BoolFlag{Name: "append", Aliases: []string{"a"}, Usage: "Append to the last saved file"},
		),
		Action: func(c *cli.Context) error {
			input, err := readClipInput(c)
			if err != nil {
				return outputError(err)
			}

			action := "new"
			if c.Bool("append") {
				action = "append"
			}

			coord := rt.coordinator(clipboard.NewMemory(), c.Bool("no-color"), 1)
			output, err := ops.Save(c.Context, coord, rt.resolver, ops.SaveInput{
				ClipInput: input,
				Title:     c.String("title"),
				Action:    action,
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// historyCmd creates the history command.
func historyCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List saved clips, newest first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "Search titles and file paths"},
			&cli.StringFlag{Name: "type", Usage: "Filter by content type"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultHistoryLimit, Usage: "Maximum items to return"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Value: 0, Usage: "Pagination offset"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.History(c.Context, rt.db, ops.HistoryInput{
				Query:       c.String("query"),
				ContentType: c.String("type"),
				Limit:       c.Int("limit"),
				Offset:      c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// showCmd creates the show command.
func showCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show a saved clip file by history ID or path",
		ArgsUsage: "[id]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Clip file path inside the save directory"},
		},
		Action: func(c *cli.Context) error {
			settings, err := rt.settings.Get()
			if err != nil {
				return outputError(err)
			}

			input := ops.ShowInput{Path: c.String("path")}
			if c.NArg() > 0 {
				input.ID = c.Args().First()
			}

			output, err := ops.Show(c.Context, rt.db, settings.SaveDirectory, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// settingsCmd creates the settings command group.
func settingsCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "settings",
		Usage: "Show or change settings",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Print the current settings",
				Action: func(c *cli.Context) error {
					output, err := ops.GetSettings(rt.settings)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "set",
				Usage: "Change one or more settings",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "save-dir", Usage: "Directory new notes are written to"},
					&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Usage: "Save mode: ask|auto_append"},
					&cli.IntFlag{Name: "min-length", Usage: "Ignore clips shorter than this many characters"},
					&cli.StringSliceFlag{Name: "ignore", Usage: "Ignore pattern (regular expression, repeatable; replaces the list)"},
					&cli.BoolFlag{Name: "clear-ignore", Usage: "Remove all ignore patterns"},
					&cli.BoolFlag{Name: "ollama", Usage: "Enable or disable the inference server (--ollama=false)"},
					&cli.StringFlag{Name: "ollama-url", Usage: "Inference server base URL"},
					&cli.StringFlag{Name: "ollama-model", Usage: "Inference model name"},
					&cli.IntFlag{Name: "ollama-timeout-ms", Usage: "Inference request timeout in milliseconds"},
					&cli.StringFlag{Name: "prompt", Usage: "Title prompt template ({content} is replaced)"},
					&cli.StringSliceFlag{Name: "disable-tool", Usage: "MCP tool to disable (repeatable; replaces the list)"},
					&cli.BoolFlag{Name: "clear-disabled-tools", Usage: "Re-enable all MCP tools"},
				},
				Action: func(c *cli.Context) error {
					output, err := ops.UpdateSettings(rt.settings, settingsInput(c))
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
		},
	}
}

// settingsInput collects the flags that were explicitly set.
func settingsInput(c *cli.Context) ops.UpdateSettingsInput {
	var input ops.UpdateSettingsInput
	if c.IsSet("save-dir") {
		v := c.String("save-dir")
		input.SaveDirectory = &v
	}
	if c.IsSet("mode") {
		v := c.String("mode")
		input.Mode = &v
	}
	if c.IsSet("min-length") {
		v := c.Int("min-length")
		input.MinimumLength = &v
	}
	if c.Bool("clear-ignore") {
		v := []string{}
		input.IgnorePatterns = &v
	} else if c.IsSet("ignore") {
		v := c.StringSlice("ignore")
		input.IgnorePatterns = &v
	}
	if c.IsSet("ollama") {
		v := c.Bool("ollama")
		input.OllamaEnabled = &v
	}
	if c.IsSet("ollama-url") {
		v := c.String("ollama-url")
		input.OllamaBaseURL = &v
	}
	if c.IsSet("ollama-model") {
		v := c.String("ollama-model")
		input.OllamaModel = &v
	}
	if c.IsSet("ollama-timeout-ms") {
		v := c.Int("ollama-timeout-ms")
		input.OllamaTimeoutMs = &v
	}
	if c.IsSet("prompt") {
		v := c.String("prompt")
		input.TitlePromptTemplate = &v
	}
	if c.Bool("clear-disabled-tools") {
		v := []string{}
		input.DisabledTools = &v
	} else if c.IsSet("disable-tool") {
		v := c.StringSlice("disable-tool")
		input.DisabledTools = &v
	}
	return input
}

// healthCmd creates the health command.
func healthCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Test the connection to the inference server",
		Action: func(c *cli.Context) error {
			output, err := ops.Health(c.Context, rt.settings, nil)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the clip history web UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: defaultWebBind, Usage: "Bind address"},
			&cli.IntFlag{Name: "port", Value: defaultWebPort, Usage: "Port"},
		},
		Action: func(c *cli.Context) error {
			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv, err := web.NewServer(rt.webDeps(nil), c.String("bind"), c.Int("port"))
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			if err := web.Run(ctx, srv, rt.logger); err != nil {
				return outputError(errors.NewInternal(err))
			}
			return nil
		},
	}
}

// mcpCmd creates the mcp command.
func mcpCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Run the MCP server on stdio",
		Action: func(c *cli.Context) error {
			// Console notices would corrupt the stdio transport
			rt.console = io.Discard

			settings, err := rt.settings.Get()
			if err != nil {
				return outputError(err)
			}
			if unknown := mcp.ValidateDisabledTools(settings.DisabledTools); len(unknown) > 0 {
				rt.logger.Warn("ignoring unknown disabled tools",
					zap.Strings("unknown", unknown),
					zap.Strings("valid", mcp.AllToolNames()))
			}

			mem := clipboard.NewMemory()
			coord := rt.coordinator(mem, true, 1)
			return mcp.Run(mcp.Deps{
				DB:          rt.db,
				Settings:    rt.settings,
				Coordinator: coord,
				Memory:      mem,
				Inbox:       rt.inbox,
				Resolver:    rt.resolver,
			}, Version)
		},
	}
}

// webDeps collects what the web UI needs from the runtime. monitor is nil
// unless a watch loop is running.
func (r *runtime) webDeps(monitor web.Monitor) web.Deps {
	return web.Deps{
		DB:       r.db,
		Settings: r.settings,
		Inbox:    r.inbox,
		Monitor:  monitor,
		Metrics:  r.metrics,
		Logger:   r.logger,
		Version:  Version,
	}
}

// readClipInput reads clip content from stdin.
func readClipInput(c *cli.Context) (ops.ClipInput, error) {
	if !stdinHasData() {
		return ops.ClipInput{}, errors.NewInvalidRequest("clip content must be piped via stdin")
	}
	content, err := readStdin()
	if err != nil {
		return ops.ClipInput{}, errors.NewInternal(err)
	}
	if content == "" {
		return ops.ClipInput{}, errors.NewInvalidRequest("clip content is required")
	}
	if c.Bool("html") {
		return ops.ClipInput{HTML: content}, nil
	}
	return ops.ClipInput{Text: content}, nil
}

// outputJSON outputs a value as JSON to stdout.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var clipErr *errors.ClipError
	if stderrors.As(err, &clipErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", clipErr.Code, clipErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads all content from stdin.
func readStdin() (string, error) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
