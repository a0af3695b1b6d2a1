package web

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"go.uber.org/zap"

	"github.com/hpungsan/cliptitle/internal/db"
	"github.com/hpungsan/cliptitle/internal/errors"
	"github.com/hpungsan/cliptitle/internal/ops"
	"github.com/hpungsan/cliptitle/internal/persist"
	"github.com/hpungsan/cliptitle/internal/pipeline"
)

// PageData contains common fields used across all page templates.
type PageData struct {
	Title   string
	Version string
	Nav     string // active nav item: "clips", "pending"
}

// ClipsPageData is the template data for the clip history page.
type ClipsPageData struct {
	PageData
	Items       []db.Clip
	Pagination  ops.Pagination
	Stats       []db.TypeCount
	Query       string
	ContentType string
	HasQuery    bool
}

// DetailPageData is the template data for the clip detail page.
type DetailPageData struct {
	PageData
	Clip         *db.Clip
	Document     *persist.Document
	RenderedHTML template.HTML
}

// PendingPageData is the template data for the pending clips page.
type PendingPageData struct {
	PageData
	Items   []pipeline.ActionRequest
	Monitor string // "idle", "paused", or empty when not watching
}

// ErrorPageData is the template data for the error page.
type ErrorPageData struct {
	PageData
	StatusCode int
	Message    string
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// Renderer manages template parsing and rendering.
type Renderer struct {
	templates map[string]*template.Template
	version   string
	logger    *zap.Logger
}

// NewRenderer creates a Renderer by parsing templates from the given FS.
func NewRenderer(templateFS fs.FS, version string, logger *zap.Logger) *Renderer {
	funcMap := template.FuncMap{
		"add":         func(a, b int) int { return a + b },
		"sub":         func(a, b int) int { return a - b },
		"formatTime":  formatTime,
		"formatChars": formatChars,
		"shortID":     shortID,
	}

	// Parse layout as the base template
	layoutTmpl := template.Must(template.New("layout").Funcs(funcMap).ParseFS(templateFS, "layout.html"))

	pages := map[string]string{
		"clips":   "clips.html",
		"detail":  "detail.html",
		"pending": "pending.html",
		"error":   "error.html",
	}

	templates := make(map[string]*template.Template, len(pages))
	for name, file := range pages {
		t := template.Must(layoutTmpl.Clone())
		template.Must(t.ParseFS(templateFS, file))
		templates[name] = t
	}

	return &Renderer{
		templates: templates,
		version:   version,
		logger:    logger,
	}
}

// renderPage renders a named page template with the given data and HTTP 200 status.
func (r *Renderer) renderPage(w http.ResponseWriter, req *http.Request, name string, data any) {
	r.renderPageStatus(w, req, http.StatusOK, name, data)
}

// renderPageStatus renders a named page template with the given data and HTTP status code.
// For HTMX requests, only the "content" block is rendered to avoid duplicating the layout.
func (r *Renderer) renderPageStatus(w http.ResponseWriter, req *http.Request, status int, name string, data any) {
	block := "layout"
	if req != nil && req.Header.Get("HX-Request") == "true" {
		block = "content"
	}
	r.renderBlock(w, status, name, block, data)
}

// renderBlock renders a specific named block from a page template.
// Used for htmx partial swaps that target a sub-section of the page.
func (r *Renderer) renderBlock(w http.ResponseWriter, status int, page, block string, data any) {
	t, ok := r.templates[page]
	if !ok {
		r.logger.Error("template not found", zap.String("page", page))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, block, data); err != nil {
		r.logger.Error("template execution failed",
			zap.String("page", page), zap.String("block", block), zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// renderError renders an error response with content negotiation.
func (r *Renderer) renderError(w http.ResponseWriter, req *http.Request, err error) {
	var cErr *errors.ClipError
	if !stderrors.As(err, &cErr) {
		cErr = errors.NewInternal(err)
	}

	status := cErr.Status
	message := cErr.Message
	if cErr.Code == errors.ErrInternal {
		r.logger.Error("request failed", zap.String("path", req.URL.Path), zap.Error(err))
		message = "an internal error occurred"
	}

	// HTMX request: return HTML fragment
	if req.Header.Get("HX-Request") == "true" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		fmt.Fprintf(w, `<div class="error-message">%s</div>`, template.HTMLEscapeString(message))
		return
	}

	// JSON request
	if wantsJSON(req) {
		renderJSON(w, status, map[string]any{
			"error": map[string]any{
				"code":    string(cErr.Code),
				"message": message,
				"status":  status,
			},
		})
		return
	}

	// Full error page
	r.renderPageStatus(w, req, status, "error", ErrorPageData{
		PageData: PageData{
			Title:   fmt.Sprintf("Error %d", status),
			Version: r.version,
		},
		StatusCode: status,
		Message:    message,
	})
}

// wantsJSON reports whether the client asked for JSON.
func wantsJSON(req *http.Request) bool {
	return strings.Contains(req.Header.Get("Accept"), "application/json")
}

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// renderMarkdown converts clip Markdown to HTML. Raw HTML in the clip is
// omitted by goldmark's default renderer.
func renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return template.HTML("<pre>" + template.HTMLEscapeString(md) + "</pre>")
	}
	return template.HTML(buf.String())
}

// formatTime formats a Unix timestamp as "2006-01-02 15:04" in local time.
func formatTime(unix int64) string {
	return time.Unix(unix, 0).Local().Format("2006-01-02 15:04")
}

// formatChars formats an integer with comma thousands separators.
func formatChars(n int) string {
	if n < 0 {
		return "-" + formatChars(-n)
	}
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}

	var result strings.Builder
	remainder := len(s) % 3
	if remainder > 0 {
		result.WriteString(s[:remainder])
	}
	for i := remainder; i < len(s); i += 3 {
		if result.Len() > 0 {
			result.WriteByte(',')
		}
		result.WriteString(s[i : i+3])
	}
	return result.String()
}

// shortID truncates a ULID for display.
func shortID(id string) string {
	if len(id) > 10 {
		return id[:10] + "..."
	}
	return id
}
