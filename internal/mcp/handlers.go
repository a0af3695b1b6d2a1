package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/cliptitle/internal/errors"
	"github.com/hpungsan/cliptitle/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	deps Deps
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(deps Deps) *Handlers {
	return &Handlers{deps: deps}
}

// Request types for each tool

// ContentRequest carries clip content as text, HTML or both.
type ContentRequest struct {
	Text string `json:"text,omitempty"`
	HTML string `json:"html,omitempty"`
}

func (r ContentRequest) clip() ops.ClipInput {
	return ops.ClipInput{Text: r.Text, HTML: r.HTML}
}

// TitleRequest represents the arguments for clip_title.
type TitleRequest struct {
	ContentRequest
	HeuristicOnly bool `json:"heuristic_only,omitempty"`
}

// SaveRequest represents the arguments for clip_save.
type SaveRequest struct {
	ContentRequest
	Title  string `json:"title,omitempty"`
	Action string `json:"action,omitempty"`
}

// HistoryRequest represents the arguments for clip_history.
type HistoryRequest struct {
	Query       string `json:"query,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Limit       int    `json:"limit,omitempty"`
	Offset      int    `json:"offset,omitempty"`
}

// ShowRequest represents the arguments for clip_show.
type ShowRequest struct {
	ID   string `json:"id,omitempty"`
	Path string `json:"path,omitempty"`
}

// ResolveRequest represents the arguments for clip_resolve.
type ResolveRequest struct {
	ID     string `json:"id"`
	Action string `json:"action"`
}

// SettingsUpdateRequest represents the arguments for settings_update.
type SettingsUpdateRequest struct {
	SaveDirectory       *string   `json:"save_directory,omitempty"`
	Mode                *string   `json:"mode,omitempty"`
	MinimumLength       *int      `json:"minimum_length,omitempty"`
	IgnorePatterns      *[]string `json:"ignore_patterns,omitempty"`
	OllamaEnabled       *bool     `json:"ollama_enabled,omitempty"`
	OllamaBaseURL       *string   `json:"ollama_base_url,omitempty"`
	OllamaModel         *string   `json:"ollama_model,omitempty"`
	OllamaTimeoutMs     *int      `json:"ollama_timeout_ms,omitempty"`
	TitlePromptTemplate *string   `json:"title_prompt_template,omitempty"`
}

// Handler implementations

// HandleAnalyze handles the clip_analyze tool call.
func (h *Handlers) HandleAnalyze(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := bindArgs[ContentRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Analyze(ops.AnalyzeInput{ClipInput: input.clip()})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleTitle handles the clip_title tool call.
func (h *Handlers) HandleTitle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := bindArgs[TitleRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Title(ctx, h.deps.Resolver, ops.TitleInput{
		ClipInput:     input.clip(),
		HeuristicOnly: input.HeuristicOnly,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleSave handles the clip_save tool call.
func (h *Handlers) HandleSave(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := bindArgs[SaveRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Save(ctx, h.deps.Coordinator, h.deps.Resolver, ops.SaveInput{
		ClipInput: input.clip(),
		Title:     input.Title,
		Action:    input.Action,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleProcess handles the clip_process tool call.
func (h *Handlers) HandleProcess(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := bindArgs[ContentRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	if h.deps.Memory == nil {
		return errorResult(errors.NewInvalidRequest("clip_process needs the in-memory clipboard")), nil
	}

	result, err := ops.Process(ctx, h.deps.Coordinator, h.deps.Memory, ops.ProcessInput{ClipInput: input.clip()})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleHistory handles the clip_history tool call.
func (h *Handlers) HandleHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := bindArgs[HistoryRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.History(ctx, h.deps.DB, ops.HistoryInput{
		Query:       input.Query,
		ContentType: input.ContentType,
		Limit:       input.Limit,
		Offset:      input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleShow handles the clip_show tool call.
func (h *Handlers) HandleShow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := bindArgs[ShowRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	settings, err := h.deps.Settings.Get()
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Show(ctx, h.deps.DB, settings.SaveDirectory, ops.ShowInput{
		ID:   input.ID,
		Path: input.Path,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandlePending handles the clip_pending tool call.
func (h *Handlers) HandlePending(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return successResult(ops.Pending(h.deps.Inbox))
}

// HandleResolve handles the clip_resolve tool call.
func (h *Handlers) HandleResolve(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := bindArgs[ResolveRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Resolve(ctx, h.deps.Inbox, ops.ResolveInput{
		ID:     input.ID,
		Action: input.Action,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleSettingsGet handles the settings_get tool call.
func (h *Handlers) HandleSettingsGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.GetSettings(h.deps.Settings)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleSettingsUpdate handles the settings_update tool call.
// DisabledTools is not exposed here; tool registration happens at startup.
func (h *Handlers) HandleSettingsUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := bindArgs[SettingsUpdateRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.UpdateSettings(h.deps.Settings, ops.UpdateSettingsInput{
		SaveDirectory:       input.SaveDirectory,
		Mode:                input.Mode,
		MinimumLength:       input.MinimumLength,
		IgnorePatterns:      input.IgnorePatterns,
		OllamaEnabled:       input.OllamaEnabled,
		OllamaBaseURL:       input.OllamaBaseURL,
		OllamaModel:         input.OllamaModel,
		OllamaTimeoutMs:     input.OllamaTimeoutMs,
		TitlePromptTemplate: input.TitlePromptTemplate,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleHealth handles the ollama_health tool call.
func (h *Handlers) HandleHealth(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.Health(ctx, h.deps.Settings, h.deps.HTTPClient)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are not exposed; they can carry paths or SQL errors.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var clipErr *errors.ClipError
	if errors.As(err, &clipErr) {
		errorObj := map[string]any{
			"code":    clipErr.Code,
			"message": clipErr.Message,
			"status":  clipErr.Status,
		}
		if clipErr.Code == errors.ErrInternal {
			errorObj["message"] = "an internal error occurred"
		} else {
			if wrapped := err.Error(); wrapped != clipErr.Error() {
				errorObj["message"] = wrapped
			}
			if clipErr.Details != nil {
				errorObj["details"] = clipErr.Details
			}
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    errors.ErrInternal,
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
