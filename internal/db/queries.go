package db

import (
	"context"
	"database/sql"
	"strings"

	"github.com/hpungsan/cliptitle/internal/errors"
)

// MaxSearchQueryChars bounds the search query length.
const MaxSearchQueryChars = 200

// Clip is one persisted clip in the history index.
type Clip struct {
	ID          string `json:"id"`
	FilePath    string `json:"file_path"`
	Title       string `json:"title"`
	TitleSource string `json:"title_source,omitempty"`
	Action      string `json:"action"`
	Fingerprint string `json:"fingerprint"`
	ContentType string `json:"content_type,omitempty"`
	Domain      string `json:"domain,omitempty"`
	Language    string `json:"language,omitempty"`
	Chars       int    `json:"chars"`
	CreatedAt   int64  `json:"created_at"`
}

// ListFilters narrows ListClips.
type ListFilters struct {
	ContentType string
	FilePath    string
}

// TypeCount is the number of clips of one content type.
type TypeCount struct {
	ContentType string `json:"content_type"`
	Count       int    `json:"count"`
}

const clipColumns = `id, file_path, title, title_source, action, fingerprint,
	content_type, domain, language, chars, created_at`

// InsertClip stores a clip record.
func InsertClip(ctx context.Context, db *sql.DB, c *Clip) error {
	query := `
		INSERT INTO clips (` + clipColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		c.ID, c.FilePath, c.Title, toNullString(c.TitleSource), c.Action, c.Fingerprint,
		toNullString(c.ContentType), toNullString(c.Domain), toNullString(c.Language),
		c.Chars, c.CreatedAt,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return errors.NewConflict("clip " + c.ID + " already recorded")
		}
		return errors.NewInternal(err)
	}
	return nil
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// GetClip retrieves a clip by its ULID.
func GetClip(ctx context.Context, db *sql.DB, id string) (*Clip, error) {
	row := db.QueryRowContext(ctx, `SELECT `+clipColumns+` FROM clips WHERE id = ?`, id)
	c, err := scanClip(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("clip", id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return c, nil
}

// ListClips returns clips newest first along with the total matching count.
func ListClips(ctx context.Context, db *sql.DB, filters ListFilters, limit, offset int) ([]Clip, int, error) {
	where, args := filters.where()

	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM clips`+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	query := `SELECT ` + clipColumns + ` FROM clips` + where + `
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`
	clips, err := queryClips(ctx, db, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	return clips, total, nil
}

func (f ListFilters) where() (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.ContentType != "" {
		conds = append(conds, "content_type = ?")
		args = append(args, f.ContentType)
	}
	if f.FilePath != "" {
		conds = append(conds, "file_path = ?")
		args = append(args, f.FilePath)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// SearchClips finds clips whose title or file path contains query,
// case-insensitively, newest first.
func SearchClips(ctx context.Context, db *sql.DB, query string, limit int) ([]Clip, error) {
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	q := `SELECT ` + clipColumns + ` FROM clips
		WHERE lower(title) LIKE ? ESCAPE '\' OR lower(file_path) LIKE ? ESCAPE '\'
		ORDER BY created_at DESC, id DESC
		LIMIT ?`
	return queryClips(ctx, db, q, pattern, pattern, limit)
}

// escapeLike escapes LIKE wildcards so they match literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// CountClips returns the number of recorded clips.
func CountClips(ctx context.Context, db *sql.DB) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM clips`).Scan(&n); err != nil {
		return 0, errors.NewInternal(err)
	}
	return n, nil
}

// TypeStats counts clips per content type, most frequent first.
func TypeStats(ctx context.Context, db *sql.DB) ([]TypeCount, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT COALESCE(content_type, ''), COUNT(*) AS n
		FROM clips
		GROUP BY content_type
		ORDER BY n DESC, content_type ASC`)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var stats []TypeCount
	for rows.Next() {
		var tc TypeCount
		if err := rows.Scan(&tc.ContentType, &tc.Count); err != nil {
			return nil, errors.NewInternal(err)
		}
		stats = append(stats, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return stats, nil
}

func queryClips(ctx context.Context, db *sql.DB, query string, args ...any) ([]Clip, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	clips := []Clip{}
	for rows.Next() {
		c, err := scanClip(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		clips = append(clips, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return clips, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanClip scans a single row into a Clip.
func scanClip(row scanner) (*Clip, error) {
	var (
		c           Clip
		titleSource sql.NullString
		contentType sql.NullString
		domain      sql.NullString
		language    sql.NullString
	)
	err := row.Scan(
		&c.ID, &c.FilePath, &c.Title, &titleSource, &c.Action, &c.Fingerprint,
		&contentType, &domain, &language, &c.Chars, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.TitleSource = titleSource.String
	c.ContentType = contentType.String
	c.Domain = domain.String
	c.Language = language.String
	return &c, nil
}

// toNullString maps "" to NULL.
func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
