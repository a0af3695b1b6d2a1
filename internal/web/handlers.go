package web

import (
	"html/template"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hpungsan/cliptitle/internal/errors"
	"github.com/hpungsan/cliptitle/internal/ops"
)

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	deps     Deps
	renderer *Renderer
	limiter  *rate.Limiter
	logger   *zap.Logger
}

// HandleClips handles GET /clips: history listing, or search when q is set.
func (h *Handlers) HandleClips(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	contentType := r.URL.Query().Get("type")

	result, err := ops.History(r.Context(), h.deps.DB, ops.HistoryInput{
		Query:       query,
		ContentType: contentType,
		Limit:       parseIntParam(r, "limit", ops.DefaultHistoryLimit),
		Offset:      parseIntParam(r, "offset", 0),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	data := ClipsPageData{
		PageData: PageData{
			Title:   "Clips",
			Version: h.renderer.version,
			Nav:     "clips",
		},
		Items:       result.Items,
		Pagination:  result.Pagination,
		Stats:       result.Stats,
		Query:       query,
		ContentType: contentType,
		HasQuery:    query != "",
	}

	// If htmx targets #results, render only the results fragment
	if r.Header.Get("HX-Target") == "results" {
		h.renderer.renderBlock(w, http.StatusOK, "clips", "clip-results", data)
		return
	}

	h.renderer.renderPage(w, r, "clips", data)
}

// HandleDetail handles GET /clips/{id}: render one clip file.
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("clip ID is required"))
		return
	}

	settings, err := h.deps.Settings.Get()
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	result, err := ops.Show(r.Context(), h.deps.DB, settings.SaveDirectory, ops.ShowInput{ID: id})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	title := filepath.Base(result.Document.Path)
	if result.Clip != nil && result.Clip.Title != "" {
		title = result.Clip.Title
	}

	h.renderer.renderPage(w, r, "detail", DetailPageData{
		PageData: PageData{
			Title:   title,
			Version: h.renderer.version,
			Nav:     "clips",
		},
		Clip:         result.Clip,
		Document:     result.Document,
		RenderedHTML: renderMarkdown(result.Document.Body),
	})
}

// HandlePending handles GET /pending: clips waiting for a decision.
func (h *Handlers) HandlePending(w http.ResponseWriter, r *http.Request) {
	result := ops.Pending(h.deps.Inbox)

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	h.renderer.renderPage(w, r, "pending", PendingPageData{
		PageData: PageData{
			Title:   "Pending",
			Version: h.renderer.version,
			Nav:     "pending",
		},
		Items:   result.Items,
		Monitor: h.monitorState(),
	})
}

// HandleResolve handles POST /pending/{id}/{action}: append, new or dismiss.
func (h *Handlers) HandleResolve(w http.ResponseWriter, r *http.Request) {
	result, err := ops.Resolve(r.Context(), h.deps.Inbox, ops.ResolveInput{
		ID:     chi.URLParam(r, "id"),
		Action: chi.URLParam(r, "action"),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	message := "Dismissed"
	if result.Path != "" {
		message = "Saved " + result.Title + " to " + filepath.Base(result.Path)
	}

	// HTMX request: return HTML fragment
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`<div class="resolve-result">` + template.HTMLEscapeString(message) + `</div>`))
		return
	}

	// JSON request
	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	// Default: back to the list
	http.Redirect(w, r, "/pending", http.StatusSeeOther)
}

// MonitorStatus is the JSON body of the /monitor routes.
type MonitorStatus struct {
	State string `json:"state"`
}

// HandleMonitor handles GET /monitor: the watch loop state.
func (h *Handlers) HandleMonitor(w http.ResponseWriter, r *http.Request) {
	if h.deps.Monitor == nil {
		h.renderer.renderError(w, r, errNotWatching)
		return
	}
	renderJSON(w, http.StatusOK, MonitorStatus{State: h.monitorState()})
}

// HandlePause handles POST /monitor/pause.
func (h *Handlers) HandlePause(w http.ResponseWriter, r *http.Request) {
	h.setMonitor(w, r, true)
}

// HandleResume handles POST /monitor/resume.
func (h *Handlers) HandleResume(w http.ResponseWriter, r *http.Request) {
	h.setMonitor(w, r, false)
}

var errNotWatching = errors.NewConflict("clipboard is not being watched; start the UI with watch --web-port")

func (h *Handlers) setMonitor(w http.ResponseWriter, r *http.Request, pause bool) {
	if h.deps.Monitor == nil {
		h.renderer.renderError(w, r, errNotWatching)
		return
	}
	if pause {
		h.deps.Monitor.Pause()
	} else {
		h.deps.Monitor.Resume()
	}
	status := MonitorStatus{State: h.monitorState()}

	if r.Header.Get("HX-Request") == "true" {
		h.renderer.renderBlock(w, http.StatusOK, "pending", "monitor-state", PendingPageData{Monitor: status.State})
		return
	}
	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, status)
		return
	}
	http.Redirect(w, r, "/pending", http.StatusSeeOther)
}

func (h *Handlers) monitorState() string {
	if h.deps.Monitor == nil {
		return ""
	}
	return h.deps.Monitor.State().String()
}

// HandleHealthz handles GET /healthz.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]any{
		"status":  "ok",
		"version": h.deps.Version,
		"pending": h.deps.Inbox.Len(),
	}
	if err := h.deps.DB.PingContext(r.Context()); err != nil {
		status = http.StatusServiceUnavailable
		body["status"] = "degraded"
		body["error"] = "database unavailable"
		h.logger.Warn("health check: database ping failed", zap.Error(err))
	}
	renderJSON(w, status, body)
}

// rateLimit rejects state-changing requests above the action rate.
func (h *Handlers) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
