package mcp

import (
	"context"
	"database/sql"
	"net/http"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/cliptitle/internal/clipboard"
	"github.com/hpungsan/cliptitle/internal/config"
	"github.com/hpungsan/cliptitle/internal/notify"
	"github.com/hpungsan/cliptitle/internal/ops"
	"github.com/hpungsan/cliptitle/internal/pipeline"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"clip_analyze": {
		def:     analyzeToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleAnalyze },
	},
	"clip_title": {
		def:     titleToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTitle },
	},
	"clip_save": {
		def:     saveToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSave },
	},
	"clip_process": {
		def:     processToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleProcess },
	},
	"clip_history": {
		def:     historyToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleHistory },
	},
	"clip_show": {
		def:     showToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleShow },
	},
	"clip_pending": {
		def:     pendingToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePending },
	},
	"clip_resolve": {
		def:     resolveToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleResolve },
	},
	"settings_get": {
		def:     settingsGetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSettingsGet },
	},
	"settings_update": {
		def:     settingsUpdateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSettingsUpdate },
	},
	"ollama_health": {
		def:     healthToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleHealth },
	},
}

// AllToolNames returns a sorted list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// Deps holds what the tool handlers operate on. Memory is the clipboard the
// Coordinator reads from; clip_process is unavailable when it is nil.
type Deps struct {
	DB          *sql.DB
	Settings    *config.Store
	Coordinator *pipeline.Coordinator
	Memory      *clipboard.Memory
	Inbox       *notify.Inbox
	Resolver    ops.TitleResolver
	HTTPClient  *http.Client
}

// NewServer creates a new MCP server with the clip tools registered.
// Tools listed in the DisabledTools setting are excluded from registration.
func NewServer(deps Deps, version string) (*server.MCPServer, error) {
	settings, err := deps.Settings.Get()
	if err != nil {
		return nil, err
	}

	s := server.NewMCPServer(
		"cliptitle",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(deps)

	disabled := make(map[string]bool, len(settings.DisabledTools))
	for _, name := range settings.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s, nil
}

// Run starts the MCP server using stdio transport.
func Run(deps Deps, version string) error {
	s, err := NewServer(deps, version)
	if err != nil {
		return err
	}
	return server.ServeStdio(s)
}

// ToolHandlerFunc is the signature for tool handlers.
type ToolHandlerFunc func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
