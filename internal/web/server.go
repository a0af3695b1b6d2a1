package web

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hpungsan/cliptitle/internal/config"
	"github.com/hpungsan/cliptitle/internal/metrics"
	"github.com/hpungsan/cliptitle/internal/notify"
	"github.com/hpungsan/cliptitle/internal/pipeline"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// Action requests allowed per second, with a small burst for double clicks.
const (
	actionRate  = 5
	actionBurst = 3
)

// Monitor is the clipboard watch loop the UI can pause and resume.
type Monitor interface {
	State() pipeline.State
	Pause()
	Resume()
}

// Deps holds what the web UI reads from and acts on. Monitor is nil when the
// UI is served without a watch loop.
type Deps struct {
	DB       *sql.DB
	Settings *config.Store
	Inbox    *notify.Inbox
	Monitor  Monitor
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
	Version  string
}

// NewHandlers builds handlers over deps with the embedded templates.
func NewHandlers(deps Deps) (*Handlers, error) {
	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, fmt.Errorf("template sub-FS: %w", err)
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		deps:     deps,
		renderer: NewRenderer(templateSub, deps.Version, logger),
		limiter:  rate.NewLimiter(actionRate, actionBurst),
		logger:   logger,
	}, nil
}

// NewRouter wires the routes for the clip history UI.
func NewRouter(h *Handlers) (http.Handler, error) {
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("static sub-FS: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/clips", http.StatusFound)
	})
	r.Get("/clips", h.HandleClips)
	r.Get("/clips/{id}", h.HandleDetail)
	r.Get("/pending", h.HandlePending)
	r.With(h.rateLimit).Post("/pending/{id}/{action}", h.HandleResolve)
	r.Get("/monitor", h.HandleMonitor)
	r.With(h.rateLimit).Post("/monitor/pause", h.HandlePause)
	r.With(h.rateLimit).Post("/monitor/resume", h.HandleResume)
	r.Get("/healthz", h.HandleHealthz)
	r.Method(http.MethodGet, "/metrics", h.deps.Metrics.Handler())
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(staticSub)))

	return r, nil
}

// NewServer creates and configures the HTTP server for the web UI.
func NewServer(deps Deps, bind string, port int) (*http.Server, error) {
	h, err := NewHandlers(deps)
	if err != nil {
		return nil, err
	}
	router, err := NewRouter(h)
	if err != nil {
		return nil, err
	}
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", bind, port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}, nil
}

// securityHeaders adds security-related HTTP headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, srv *http.Server, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("web UI running", zap.String("url", "http://"+srv.Addr))
	if strings.HasPrefix(srv.Addr, "0.0.0.0:") || strings.HasPrefix(srv.Addr, "[::]:") || strings.HasPrefix(srv.Addr, ":") {
		logger.Warn("server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("shutting down web UI")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
