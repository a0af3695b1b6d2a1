package db

import (
	"context"
	"database/sql"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/cliptitle/internal/pipeline"
)

// Recorder writes pipeline records to the history index.
type Recorder struct {
	db *sql.DB
}

// NewRecorder returns a recorder backed by db.
func NewRecorder(db *sql.DB) *Recorder {
	return &Recorder{db: db}
}

// RecordClip inserts rec with a new ULID.
func (r *Recorder) RecordClip(ctx context.Context, rec pipeline.Record) error {
	c := &Clip{
		ID:          ulid.Make().String(),
		FilePath:    rec.Path,
		Title:       rec.Title,
		TitleSource: string(rec.TitleSource),
		Action:      string(rec.Action),
		Fingerprint: rec.Fingerprint,
		ContentType: string(rec.Analysis.Type),
		Domain:      rec.Analysis.Domain,
		Language:    rec.Analysis.Language,
		Chars:       rec.Analysis.Length,
		CreatedAt:   rec.CreatedAt.Unix(),
	}
	return InsertClip(ctx, r.db, c)
}
