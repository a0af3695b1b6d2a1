package main

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/hpungsan/cliptitle/internal/config"
	"github.com/hpungsan/cliptitle/internal/db"
	"github.com/hpungsan/cliptitle/internal/logging"
	"github.com/hpungsan/cliptitle/internal/metrics"
	"github.com/hpungsan/cliptitle/internal/notify"
	"github.com/hpungsan/cliptitle/internal/persist"
	"github.com/hpungsan/cliptitle/internal/pipeline"
	"github.com/hpungsan/cliptitle/internal/title"
)

// runtime holds the long-lived pieces every command shares.
type runtime struct {
	baseDir   string
	db        *sql.DB
	settings  *config.Store
	logger    *zap.Logger
	metrics   *metrics.Metrics
	resolver  *title.Resolver
	persister *persist.Persister
	inbox     *notify.Inbox
	console   io.Writer // human-facing notices; stdout stays JSON-only
}

// newRuntime opens the base directory described by env.
func newRuntime(env *config.Env) (*runtime, error) {
	logger, err := logging.New(logging.Options{
		Level:  env.LogLevel,
		Format: env.LogFormat,
		File:   env.LogFile,
	})
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}

	store := config.NewStore(env.BaseDir,
		config.WithDefaults(env.Defaults()),
		config.WithLogger(logger))
	if _, err := store.Load(); err != nil {
		return nil, fmt.Errorf("settings: %w", err)
	}

	database, err := db.Init(env.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	m := metrics.New()
	return &runtime{
		baseDir:   env.BaseDir,
		db:        database,
		settings:  store,
		logger:    logger,
		metrics:   m,
		resolver:  title.NewResolver(store, title.WithLogger(logger), title.WithMetrics(m)),
		persister: persist.New(store, persist.WithLogger(logger), persist.WithMetrics(m)),
		inbox:     notify.NewInbox(notify.WithLogger(logger), notify.WithMetrics(m)),
		console:   os.Stderr,
	}, nil
}

// coordinator builds a pipeline over source whose pending decisions land in
// the runtime inbox.
func (r *runtime) coordinator(source pipeline.ClipboardSource, noColor bool, workers int) *pipeline.Coordinator {
	notifier := notify.Multi{notify.NewConsole(r.console, noColor), r.inbox}
	opts := []pipeline.Option{
		pipeline.WithLogger(r.logger),
		pipeline.WithMetrics(r.metrics),
		pipeline.WithRecorder(db.NewRecorder(r.db)),
	}
	if workers > 0 {
		opts = append(opts, pipeline.WithWorkers(workers))
	}
	coord := pipeline.New(source, r.settings, r.resolver, r.persister, notifier, opts...)
	r.inbox.SetApplier(coord)
	return coord
}

// dropDir is the default directory watched by the drop source.
func (r *runtime) dropDir() string {
	return filepath.Join(r.baseDir, "drop")
}

// Close releases the database and flushes the logger.
func (r *runtime) Close() error {
	_ = r.logger.Sync()
	return r.db.Close()
}
