package main

import (
	"fmt"
	"os"

	"github.com/hpungsan/cliptitle/internal/config"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
        _ _       _   _ _   _
    ___| (_)_ __ | |_(_) |_| | ___
   / __| | | '_ \| __| | __| |/ _ \
  | (__| | | |_) | |_| | |_| |  __/
   \___|_|_| .__/ \__|_|\__|_|\___|
           |_|

  Clipboard to titled Markdown notes

  Usage: cliptitle <command> [options]
         cliptitle --help

  MCP server mode requires piped input.`)
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	args := os.Args
	// No args + piped stdin → MCP server, the way MCP clients launch us
	if len(args) < 2 {
		args = append(args, "mcp")
	}

	cwd, _ := os.Getwd()
	env, err := config.LoadEnv(cwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: environment: %v\n", err)
		os.Exit(1)
	}
	// A .env in the base directory may set everything except the base directory itself
	if env, err = config.LoadEnv(cwd, env.BaseDir); err != nil {
		fmt.Fprintf(os.Stderr, "error: environment: %v\n", err)
		os.Exit(1)
	}

	rt, err := newRuntime(env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	app := newCLIApp(rt)
	err = app.Run(args)
	_ = rt.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
