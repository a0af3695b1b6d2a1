package mcp

import "github.com/mark3labs/mcp-go/mcp"

var analyzeToolDef = mcp.NewTool("clip_analyze",
	mcp.WithDescription("Convert clipboard content to Markdown and classify it (content type, language, keywords). Reads and writes nothing."),
	mcp.WithString("text", mcp.Description("Plain text content")),
	mcp.WithString("html", mcp.Description("HTML content, CF_HTML framing allowed. Preferred over text when it converts to something.")),
)

var titleToolDef = mcp.NewTool("clip_title",
	mcp.WithDescription("Suggest a file title for content. Uses the configured Ollama model when enabled and falls back to the heuristic title."),
	mcp.WithString("text", mcp.Description("Plain text content")),
	mcp.WithString("html", mcp.Description("HTML content")),
	mcp.WithBoolean("heuristic_only", mcp.Description("Skip the Ollama call")),
)

var saveToolDef = mcp.NewTool("clip_save",
	mcp.WithDescription("Save content as a titled Markdown clip. Skips the duplicate, length and ignore filters."),
	mcp.WithString("text", mcp.Description("Plain text content")),
	mcp.WithString("html", mcp.Description("HTML content")),
	mcp.WithString("title", mcp.Description("Title to use instead of resolving one")),
	mcp.WithString("action",
		mcp.Description("new writes a new file, append adds a section to the last file"),
		mcp.Enum("new", "append"),
	),
)

var processToolDef = mcp.NewTool("clip_process",
	mcp.WithDescription("Run content through the full clipboard pipeline, including filters and the configured save mode."),
	mcp.WithString("text", mcp.Description("Plain text content")),
	mcp.WithString("html", mcp.Description("HTML content")),
)

var historyToolDef = mcp.NewTool("clip_history",
	mcp.WithDescription("List saved clips, newest first, or search them by title and file path."),
	mcp.WithString("query", mcp.Description("Case-insensitive substring of title or path")),
	mcp.WithString("content_type", mcp.Description("Filter by content type (text, code, json, markup, log, error, data, config)")),
	mcp.WithNumber("limit", mcp.Description("Max items (default 20, max 100)")),
	mcp.WithNumber("offset", mcp.Description("Items to skip")),
)

var showToolDef = mcp.NewTool("clip_show",
	mcp.WithDescription("Read a saved clip file by history id or path. The file must be in the save directory."),
	mcp.WithString("id", mcp.Description("History id")),
	mcp.WithString("path", mcp.Description("Clip file path")),
)

var pendingToolDef = mcp.NewTool("clip_pending",
	mcp.WithDescription("List clips waiting for an append, new file or dismiss decision."),
)

var resolveToolDef = mcp.NewTool("clip_resolve",
	mcp.WithDescription("Decide what to do with a pending clip. Each pending clip can be resolved once."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Pending clip id")),
	mcp.WithString("action", mcp.Required(), mcp.Enum("append", "new", "dismiss")),
)

var settingsGetToolDef = mcp.NewTool("settings_get",
	mcp.WithDescription("Show the current settings."),
)

var settingsUpdateToolDef = mcp.NewTool("settings_update",
	mcp.WithDescription("Change settings. Omitted fields are left alone; invalid values are rejected without saving."),
	mcp.WithString("save_directory"),
	mcp.WithString("mode", mcp.Enum("ask", "auto_append")),
	mcp.WithNumber("minimum_length", mcp.Description("Minimum clip length in characters")),
	mcp.WithArray("ignore_patterns",
		mcp.Description("Regular expressions; matching clips are skipped"),
		mcp.Items(map[string]any{"type": "string"}),
	),
	mcp.WithBoolean("ollama_enabled"),
	mcp.WithString("ollama_base_url"),
	mcp.WithString("ollama_model"),
	mcp.WithNumber("ollama_timeout_ms"),
	mcp.WithString("title_prompt_template", mcp.Description("Prompt with a {content} placeholder")),
)

var healthToolDef = mcp.NewTool("ollama_health",
	mcp.WithDescription("Check whether the configured Ollama server is reachable."),
)
