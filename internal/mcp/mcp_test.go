package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/cliptitle/internal/clipboard"
	"github.com/hpungsan/cliptitle/internal/config"
	"github.com/hpungsan/cliptitle/internal/db"
	"github.com/hpungsan/cliptitle/internal/errors"
	"github.com/hpungsan/cliptitle/internal/notify"
	"github.com/hpungsan/cliptitle/internal/persist"
	"github.com/hpungsan/cliptitle/internal/pipeline"
	"github.com/hpungsan/cliptitle/internal/title"
)

const logLine = "2024-01-05 10:22:01 [ERROR] Connection refused"

// testSetup wires the handlers over a temporary base directory.
func testSetup(t *testing.T, mode config.Mode) Deps {
	t.Helper()

	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("failed to init db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	store := config.NewStore(tmpDir, config.WithDefaults(func() *config.Settings {
		s := config.DefaultSettings()
		s.SaveDirectory = filepath.Join(tmpDir, "clips")
		s.Mode = mode
		return s
	}))

	mem := clipboard.NewMemory()
	inbox := notify.NewInbox()
	resolver := title.NewResolver(store)
	coord := pipeline.New(mem, store, resolver, persist.New(store), inbox,
		pipeline.WithRecorder(db.NewRecorder(database)))
	inbox.SetApplier(coord)

	return Deps{
		DB:          database,
		Settings:    store,
		Coordinator: coord,
		Memory:      mem,
		Inbox:       inbox,
		Resolver:    resolver,
	}
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func TestHandleAnalyze(t *testing.T) {
	h := NewHandlers(testSetup(t, config.ModeAskEveryTime))
	ctx := context.Background()

	tests := []struct {
		name      string
		args      map[string]any
		wantError bool
		wantType  string
	}{
		{
			name:     "python code",
			args:     map[string]any{"text": "def total(items):\n    return sum(items)"},
			wantType: "code",
		},
		{
			name:     "log line",
			args:     map[string]any{"text": logLine},
			wantType: "log",
		},
		{
			name:      "no content",
			args:      map[string]any{},
			wantError: true,
		},
		{
			name:      "wrong type",
			args:      map[string]any{"text": 42},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.HandleAnalyze(ctx, makeRequest(tt.args))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantError {
				if !result.IsError {
					t.Fatal("expected error result")
				}
				assertErrorCode(t, result, string(errors.ErrInvalidRequest))
				return
			}
			out := parseOutput(t, result)
			analysis := out["analysis"].(map[string]any)
			if analysis["content_type"] != tt.wantType {
				t.Errorf("content_type = %v, want %v", analysis["content_type"], tt.wantType)
			}
			if out["heuristic_title"] == "" {
				t.Error("expected heuristic_title")
			}
		})
	}
}

func TestHandleTitle(t *testing.T) {
	h := NewHandlers(testSetup(t, config.ModeAskEveryTime))

	result, err := h.HandleTitle(context.Background(), makeRequest(map[string]any{
		"text":           logLine,
		"heuristic_only": true,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := parseOutput(t, result)
	if out["title"] != "log-connection-error" {
		t.Errorf("title = %v, want log-connection-error", out["title"])
	}
	if out["source"] != string(title.SourceHeuristic) {
		t.Errorf("source = %v, want heuristic", out["source"])
	}
}

func TestHandleSaveAndShow(t *testing.T) {
	deps := testSetup(t, config.ModeAskEveryTime)
	h := NewHandlers(deps)
	ctx := context.Background()

	result, err := h.HandleSave(ctx, makeRequest(map[string]any{"text": logLine}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	saved := parseOutput(t, result)
	path, _ := saved["path"].(string)
	if path == "" {
		t.Fatal("expected path in save output")
	}
	if saved["action"] != "new" {
		t.Errorf("action = %v, want new", saved["action"])
	}

	result, err = h.HandleShow(ctx, makeRequest(map[string]any{"path": path}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	shown := parseOutput(t, result)
	doc := shown["document"].(map[string]any)
	if !strings.Contains(doc["body"].(string), "Connection refused") {
		t.Errorf("body missing clip content: %v", doc["body"])
	}

	result, err = h.HandleHistory(ctx, makeRequest(map[string]any{"query": "connection"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	history := parseOutput(t, result)
	items := history["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("history items = %d, want 1", len(items))
	}
	id := items[0].(map[string]any)["id"].(string)

	result, err = h.HandleShow(ctx, makeRequest(map[string]any{"id": id}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	byID := parseOutput(t, result)
	if byID["clip"] == nil {
		t.Error("expected clip record when showing by id")
	}
}

func TestHandleSave_InvalidAction(t *testing.T) {
	h := NewHandlers(testSetup(t, config.ModeAskEveryTime))

	result, err := h.HandleSave(context.Background(), makeRequest(map[string]any{
		"text":   logLine,
		"action": "overwrite",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertErrorCode(t, result, string(errors.ErrInvalidRequest))
}

func TestHandleShow_OutsideSaveDir(t *testing.T) {
	h := NewHandlers(testSetup(t, config.ModeAskEveryTime))

	result, err := h.HandleShow(context.Background(), makeRequest(map[string]any{
		"path": filepath.Join(t.TempDir(), "notes.md"),
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertErrorCode(t, result, string(errors.ErrInvalidRequest))
}

func TestHandleProcessPendingResolve(t *testing.T) {
	h := NewHandlers(testSetup(t, config.ModeAskEveryTime))
	ctx := context.Background()

	result, err := h.HandleProcess(ctx, makeRequest(map[string]any{"text": logLine}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	processed := parseOutput(t, result)
	if processed["outcome"] != string(pipeline.OutcomeRequested) {
		t.Fatalf("outcome = %v, want requested", processed["outcome"])
	}

	result, err = h.HandlePending(ctx, makeRequest(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	items := parseOutput(t, result)["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("pending items = %d, want 1", len(items))
	}
	id := items[0].(map[string]any)["id"].(string)

	result, err = h.HandleResolve(ctx, makeRequest(map[string]any{"id": id, "action": "append"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resolved := parseOutput(t, result)
	// No file exists yet, so append starts a new one.
	if resolved["action"] != "new" {
		t.Errorf("action = %v, want new", resolved["action"])
	}
	if resolved["path"] == "" {
		t.Error("expected path after resolve")
	}

	result, err = h.HandleResolve(ctx, makeRequest(map[string]any{"id": id, "action": "append"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertErrorCode(t, result, string(errors.ErrNotFound))
}

func TestHandleProcess_NoMemory(t *testing.T) {
	deps := testSetup(t, config.ModeAutoAppend)
	deps.Memory = nil
	h := NewHandlers(deps)

	result, err := h.HandleProcess(context.Background(), makeRequest(map[string]any{"text": logLine}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertErrorCode(t, result, string(errors.ErrInvalidRequest))
}

func TestHandleSettings(t *testing.T) {
	h := NewHandlers(testSetup(t, config.ModeAskEveryTime))
	ctx := context.Background()

	result, err := h.HandleSettingsGet(ctx, makeRequest(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := parseOutput(t, result)["mode"]; got != string(config.ModeAskEveryTime) {
		t.Errorf("mode = %v, want ask", got)
	}

	result, err = h.HandleSettingsUpdate(ctx, makeRequest(map[string]any{
		"mode":            "auto_append",
		"minimum_length":  3,
		"ignore_patterns": []any{`^\s*$`},
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	updated := parseOutput(t, result)
	if updated["mode"] != string(config.ModeAutoAppend) {
		t.Errorf("mode = %v, want auto_append", updated["mode"])
	}
	if updated["minimum_length"] != float64(3) {
		t.Errorf("minimum_length = %v, want 3", updated["minimum_length"])
	}

	result, err = h.HandleSettingsUpdate(ctx, makeRequest(map[string]any{"ignore_patterns": []any{"("}}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertErrorCode(t, result, string(errors.ErrSettingsInvalid))
}

func TestHandleHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"models":[]}`))
	}))
	defer srv.Close()

	deps := testSetup(t, config.ModeAskEveryTime)
	deps.HTTPClient = srv.Client()
	if _, err := deps.Settings.Update(func(s *config.Settings) error {
		s.Ollama.BaseURL = srv.URL
		return nil
	}); err != nil {
		t.Fatalf("update settings: %v", err)
	}
	h := NewHandlers(deps)

	result, err := h.HandleHealth(context.Background(), makeRequest(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := parseOutput(t, result)
	if out["reachable"] != true {
		t.Errorf("reachable = %v, want true (error: %v)", out["reachable"], out["error"])
	}
}

func TestServerRegistration(t *testing.T) {
	deps := testSetup(t, config.ModeAskEveryTime)

	s, err := NewServer(deps, "test")
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	tools := s.ListTools()

	expectedTools := AllToolNames()
	if len(tools) != len(expectedTools) {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(expectedTools))
	}
	for _, name := range expectedTools {
		if _, ok := tools[name]; !ok {
			t.Errorf("missing registered tool: %s", name)
		}
	}
}

func TestServerRegistration_WithDisabledTools(t *testing.T) {
	deps := testSetup(t, config.ModeAskEveryTime)
	disabled := []string{"clip_save", "settings_update", "settings_update"}
	if _, err := deps.Settings.Update(func(s *config.Settings) error {
		s.DisabledTools = disabled
		return nil
	}); err != nil {
		t.Fatalf("update settings: %v", err)
	}

	s, err := NewServer(deps, "test")
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	tools := s.ListTools()

	if want := len(AllToolNames()) - 2; len(tools) != want {
		t.Errorf("registered tool count = %d, want %d", len(tools), want)
	}
	for _, name := range []string{"clip_save", "settings_update"} {
		if _, ok := tools[name]; ok {
			t.Errorf("disabled tool %q should not be registered", name)
		}
	}
	if _, ok := tools["clip_history"]; !ok {
		t.Error("clip_history should be registered")
	}
}

func TestServerRegistration_AllToolsDisabled(t *testing.T) {
	deps := testSetup(t, config.ModeAskEveryTime)
	if _, err := deps.Settings.Update(func(s *config.Settings) error {
		s.DisabledTools = AllToolNames()
		return nil
	}); err != nil {
		t.Fatalf("update settings: %v", err)
	}

	s, err := NewServer(deps, "test")
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	if tools := s.ListTools(); len(tools) != 0 {
		t.Errorf("registered tool count = %d, want 0 (all disabled)", len(tools))
	}
}

func TestValidateDisabledTools(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		wantLen int
	}{
		{"all valid", []string{"clip_save", "settings_update"}, 0},
		{"one unknown", []string{"clip_save", "fake_tool"}, 1},
		{"all unknown", []string{"foo", "bar", "baz"}, 3},
		{"empty list", []string{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unknown := ValidateDisabledTools(tt.input)
			if len(unknown) != tt.wantLen {
				t.Errorf("ValidateDisabledTools() returned %d unknown, want %d", len(unknown), tt.wantLen)
			}
		})
	}
}

func TestAllToolNames(t *testing.T) {
	names := AllToolNames()
	if len(names) != 11 {
		t.Errorf("AllToolNames() returned %d names, want 11", len(names))
	}
	if unknown := ValidateDisabledTools(names); len(unknown) != 0 {
		t.Errorf("AllToolNames() returned invalid names: %v", unknown)
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Fatalf("AllToolNames() not sorted: %v", names)
		}
	}
}

func TestErrorResult_InternalDoesNotExposeDetails(t *testing.T) {
	r := errorResult(errors.NewInternal(fmt.Errorf("sql error: open /tmp/secret.db: permission denied")))
	if !r.IsError {
		t.Fatal("expected IsError=true")
	}

	errObj := errorObject(t, r)
	if errObj["code"] != string(errors.ErrInternal) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrInternal)
	}
	if strings.Contains(errObj["message"].(string), "secret.db") {
		t.Fatal("expected INTERNAL message to hide the cause")
	}
	if _, ok := errObj["details"]; ok {
		t.Fatal("expected INTERNAL errors to omit details")
	}
}

func TestErrorResult_WrappedErrorPreservesContext(t *testing.T) {
	wrapped := fmt.Errorf("resolve 01HX: %w", errors.NewNotFound("pending clip", "01HX"))

	errObj := errorObject(t, errorResult(wrapped))
	if errObj["code"] != string(errors.ErrNotFound) {
		t.Errorf("code=%v, want %v", errObj["code"], errors.ErrNotFound)
	}
	if msg := errObj["message"].(string); !strings.Contains(msg, "resolve 01HX") {
		t.Errorf("message should contain wrapper context, got: %s", msg)
	}
}

func TestErrorResult_NonInternalIncludesDetails(t *testing.T) {
	errObj := errorObject(t, errorResult(errors.NewSettingsInvalid("mode", "unknown")))
	if errObj["code"] != string(errors.ErrSettingsInvalid) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrSettingsInvalid)
	}
	if _, ok := errObj["details"]; !ok {
		t.Fatal("expected non-INTERNAL errors to include details when present")
	}
}

func TestErrorResult_PlainError(t *testing.T) {
	errObj := errorObject(t, errorResult(fmt.Errorf("boom")))
	if errObj["code"] != string(errors.ErrInternal) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrInternal)
	}
}

// Helper functions

// parseOutput extracts and unmarshals the JSON output from an MCP result.
func parseOutput(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	if result.IsError {
		t.Fatalf("expected success, got error: %v", extractErrorMessage(result))
	}
	var output map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &output); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return output
}

func errorObject(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	errObj, ok := payload["error"].(map[string]any)
	if !ok {
		t.Fatalf("no error object in payload: %v", payload)
	}
	return errObj
}

func assertErrorCode(t *testing.T, result *mcp.CallToolResult, expectedCode string) {
	t.Helper()
	if !result.IsError {
		t.Fatalf("expected error result with code %s, got success: %s", expectedCode, extractErrorMessage(result))
	}
	if code := errorObject(t, result)["code"]; code != expectedCode {
		t.Errorf("got error code %q, want %q", code, expectedCode)
	}
}

func extractErrorMessage(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return "<no content>"
	}

	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		return "<not text content>"
	}

	return text.Text
}
