package ops

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/hpungsan/cliptitle/internal/db"
	"github.com/hpungsan/cliptitle/internal/errors"
	"github.com/hpungsan/cliptitle/internal/persist"
)

// HistoryInput contains parameters for the History operation.
type HistoryInput struct {
	Query       string // optional; matches title or file path
	ContentType string // optional filter, ignored with Query
	Limit       int    // default: 20, max: 100
	Offset      int    // default: 0, ignored with Query
}

// HistoryOutput contains the result of the History operation.
type HistoryOutput struct {
	Items      []db.Clip      `json:"items"`
	Pagination Pagination     `json:"pagination"`
	Stats      []db.TypeCount `json:"stats,omitempty"`
}

// History lists recorded clips, newest first.
func History(ctx context.Context, database *sql.DB, input HistoryInput) (*HistoryOutput, error) {
	limit := clampLimit(input.Limit, DefaultHistoryLimit, MaxHistoryLimit)
	offset := max(input.Offset, 0)

	query := strings.TrimSpace(input.Query)
	if query != "" {
		if utf8.RuneCountInString(query) > db.MaxSearchQueryChars {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("query exceeds maximum length of %d characters", db.MaxSearchQueryChars))
		}
		items, err := db.SearchClips(ctx, database, query, limit)
		if err != nil {
			return nil, err
		}
		return &HistoryOutput{
			Items:      items,
			Pagination: Pagination{Limit: limit, Total: len(items)},
		}, nil
	}

	filters := db.ListFilters{ContentType: strings.ToLower(strings.TrimSpace(input.ContentType))}
	items, total, err := db.ListClips(ctx, database, filters, limit, offset)
	if err != nil {
		return nil, err
	}
	stats, err := db.TypeStats(ctx, database)
	if err != nil {
		return nil, err
	}

	return &HistoryOutput{
		Items: items,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(items) < total,
			Total:   total,
		},
		Stats: stats,
	}, nil
}

// ShowInput contains parameters for the Show operation. Exactly one of ID
// and Path is required.
type ShowInput struct {
	ID   string
	Path string
}

// ShowOutput contains the result of the Show operation.
type ShowOutput struct {
	Clip     *db.Clip          `json:"clip,omitempty"`
	Document *persist.Document `json:"document"`
}

// Show reads a clip file. The file must live directly in saveDir.
func Show(ctx context.Context, database *sql.DB, saveDir string, input ShowInput) (*ShowOutput, error) {
	id := strings.TrimSpace(input.ID)
	path := strings.TrimSpace(input.Path)
	if (id == "") == (path == "") {
		return nil, errors.NewInvalidRequest("must specify exactly one of id or path")
	}

	out := &ShowOutput{}
	if id != "" {
		if database == nil {
			return nil, errors.NewInvalidRequest("history is not available")
		}
		clip, err := db.GetClip(ctx, database, id)
		if err != nil {
			return nil, err
		}
		out.Clip = clip
		path = clip.FilePath
	}

	if err := ValidateClipPath(path, saveDir); err != nil {
		return nil, err
	}
	f, err := openFileNoFollowRead(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxDocumentBytes+1))
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("read %s: %w", path, err))
	}
	if len(data) > MaxDocumentBytes {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("file exceeds %d bytes", MaxDocumentBytes))
	}

	doc, err := persist.ParseDocument(path, data)
	if err != nil {
		return nil, err
	}
	out.Document = doc
	return out, nil
}
