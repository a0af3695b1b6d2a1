package db

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/hpungsan/cliptitle/internal/classify"
	"github.com/hpungsan/cliptitle/internal/errors"
	"github.com/hpungsan/cliptitle/internal/persist"
	"github.com/hpungsan/cliptitle/internal/pipeline"
	"github.com/hpungsan/cliptitle/internal/title"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestClip(id, title, contentType string, createdAt int64) *Clip {
	return &Clip{
		ID:          id,
		FilePath:    "/clips/" + id + ".md",
		Title:       title,
		TitleSource: "heuristic",
		Action:      "new",
		Fingerprint: "fp-" + id,
		ContentType: contentType,
		Chars:       42,
		CreatedAt:   createdAt,
	}
}

func TestInsertAndGetClip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	c := newTestClip("01HX", "Python Sum Helper", "code", 1700000000)
	c.Language = "python"
	if err := InsertClip(ctx, db, c); err != nil {
		t.Fatalf("InsertClip() error = %v", err)
	}

	got, err := GetClip(ctx, db, "01HX")
	if err != nil {
		t.Fatalf("GetClip() error = %v", err)
	}
	if *got != *c {
		t.Errorf("GetClip() = %+v, want %+v", got, c)
	}
}

func TestInsertClip_NullableFields(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	c := newTestClip("01HY", "Plain", "", 1)
	c.TitleSource = ""
	if err := InsertClip(ctx, db, c); err != nil {
		t.Fatalf("InsertClip() error = %v", err)
	}

	var contentType sql.NullString
	if err := db.QueryRow("SELECT content_type FROM clips WHERE id = ?", c.ID).Scan(&contentType); err != nil {
		t.Fatalf("query: %v", err)
	}
	if contentType.Valid {
		t.Errorf("content_type = %q, want NULL", contentType.String)
	}

	got, err := GetClip(ctx, db, c.ID)
	if err != nil {
		t.Fatalf("GetClip() error = %v", err)
	}
	if got.ContentType != "" || got.TitleSource != "" {
		t.Errorf("nullable fields = %q/%q, want empty", got.ContentType, got.TitleSource)
	}
}

func TestInsertClip_Duplicate(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	c := newTestClip("01HZ", "T", "text", 1)
	if err := InsertClip(ctx, db, c); err != nil {
		t.Fatalf("first InsertClip() error = %v", err)
	}
	err := InsertClip(ctx, db, c)
	if !errors.Is(err, errors.ErrConflict) {
		t.Errorf("second InsertClip() error = %v, want CONFLICT", err)
	}
}

func TestGetClip_NotFound(t *testing.T) {
	db := openTestDB(t)

	_, err := GetClip(context.Background(), db, "missing")
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("GetClip() error = %v, want NOT_FOUND", err)
	}
}

func TestListClips_OrderAndPagination(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		c := newTestClip(fmt.Sprintf("01A%d", i), fmt.Sprintf("Clip %d", i), "text", int64(100+i))
		if err := InsertClip(ctx, db, c); err != nil {
			t.Fatalf("InsertClip() error = %v", err)
		}
	}

	page, total, err := ListClips(ctx, db, ListFilters{}, 2, 0)
	if err != nil {
		t.Fatalf("ListClips() error = %v", err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	if len(page) != 2 || page[0].ID != "01A5" || page[1].ID != "01A4" {
		t.Errorf("first page = %v, want 01A5, 01A4", ids(page))
	}

	page, _, err = ListClips(ctx, db, ListFilters{}, 2, 4)
	if err != nil {
		t.Fatalf("ListClips() error = %v", err)
	}
	if len(page) != 1 || page[0].ID != "01A1" {
		t.Errorf("last page = %v, want 01A1", ids(page))
	}
}

func TestListClips_StableOrderingOnTies(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for _, id := range []string{"01B1", "01B3", "01B2"} {
		if err := InsertClip(ctx, db, newTestClip(id, id, "text", 500)); err != nil {
			t.Fatalf("InsertClip() error = %v", err)
		}
	}

	page, _, err := ListClips(ctx, db, ListFilters{}, 10, 0)
	if err != nil {
		t.Fatalf("ListClips() error = %v", err)
	}
	want := []string{"01B3", "01B2", "01B1"}
	if got := ids(page); fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestListClips_Filters(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	inserts := []*Clip{
		newTestClip("01C1", "a", "code", 1),
		newTestClip("01C2", "b", "log", 2),
		newTestClip("01C3", "c", "code", 3),
	}
	inserts[2].FilePath = inserts[0].FilePath
	for _, c := range inserts {
		if err := InsertClip(ctx, db, c); err != nil {
			t.Fatalf("InsertClip() error = %v", err)
		}
	}

	page, total, err := ListClips(ctx, db, ListFilters{ContentType: "code"}, 10, 0)
	if err != nil {
		t.Fatalf("ListClips() error = %v", err)
	}
	if total != 2 || len(page) != 2 {
		t.Errorf("code clips = %d/%d, want 2", total, len(page))
	}

	page, total, err = ListClips(ctx, db, ListFilters{FilePath: "/clips/01C1.md"}, 10, 0)
	if err != nil {
		t.Fatalf("ListClips() error = %v", err)
	}
	if total != 2 || page[0].ID != "01C3" {
		t.Errorf("file clips = %v (total %d), want 01C3 first of 2", ids(page), total)
	}
}

func TestListClips_Empty(t *testing.T) {
	db := openTestDB(t)

	page, total, err := ListClips(context.Background(), db, ListFilters{}, 10, 0)
	if err != nil {
		t.Fatalf("ListClips() error = %v", err)
	}
	if total != 0 || page == nil || len(page) != 0 {
		t.Errorf("ListClips() = %v, %d; want empty non-nil slice", page, total)
	}
}

func TestSearchClips(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for _, c := range []*Clip{
		newTestClip("01D1", "Docker Compose Services", "config", 1),
		newTestClip("01D2", "Python Sum Helper", "code", 2),
		newTestClip("01D3", "100% coverage_report", "text", 3),
	} {
		if err := InsertClip(ctx, db, c); err != nil {
			t.Fatalf("InsertClip() error = %v", err)
		}
	}

	tests := []struct {
		query string
		want  []string
	}{
		{"docker", []string{"01D1"}},
		{"HELPER", []string{"01D2"}},
		{"01d3", []string{"01D3"}},
		{"%", []string{"01D3"}},
		{"e_r", []string{"01D3"}},
		{"nothing", []string{}},
	}
	for _, tt := range tests {
		got, err := SearchClips(ctx, db, tt.query, 10)
		if err != nil {
			t.Fatalf("SearchClips(%q) error = %v", tt.query, err)
		}
		if fmt.Sprint(ids(got)) != fmt.Sprint(tt.want) {
			t.Errorf("SearchClips(%q) = %v, want %v", tt.query, ids(got), tt.want)
		}
	}
}

func TestCountAndTypeStats(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for i, ct := range []string{"code", "log", "code", "", "code", "log"} {
		if err := InsertClip(ctx, db, newTestClip(fmt.Sprintf("01E%d", i), "t", ct, int64(i))); err != nil {
			t.Fatalf("InsertClip() error = %v", err)
		}
	}

	n, err := CountClips(ctx, db)
	if err != nil {
		t.Fatalf("CountClips() error = %v", err)
	}
	if n != 6 {
		t.Errorf("CountClips() = %d, want 6", n)
	}

	stats, err := TypeStats(ctx, db)
	if err != nil {
		t.Fatalf("TypeStats() error = %v", err)
	}
	want := []TypeCount{{"code", 3}, {"log", 2}, {"", 1}}
	if fmt.Sprint(stats) != fmt.Sprint(want) {
		t.Errorf("TypeStats() = %v, want %v", stats, want)
	}
}

func TestRecorder(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	created := time.Date(2024, 1, 5, 10, 22, 1, 0, time.UTC)

	rec := pipeline.Record{
		Path:        "/clips/20240105-102201-python.md",
		Title:       "python-items-def",
		TitleSource: title.SourceHeuristic,
		Action:      persist.ActionNew,
		Fingerprint: "abc",
		Analysis:    classify.Analyze("def compute_total(items):\n    return sum(items)"),
		CreatedAt:   created,
	}
	if err := NewRecorder(db).RecordClip(ctx, rec); err != nil {
		t.Fatalf("RecordClip() error = %v", err)
	}

	page, _, err := ListClips(ctx, db, ListFilters{}, 1, 0)
	if err != nil {
		t.Fatalf("ListClips() error = %v", err)
	}
	if len(page) != 1 {
		t.Fatalf("len = %d, want 1", len(page))
	}
	got := page[0]
	if len(got.ID) != 26 {
		t.Errorf("ID = %q, want a ULID", got.ID)
	}
	if got.ContentType != "code" || got.Language != "python" || got.TitleSource != "heuristic" {
		t.Errorf("recorded = %+v", got)
	}
	if got.Chars != rec.Analysis.Length || got.CreatedAt != created.Unix() {
		t.Errorf("chars/created = %d/%d", got.Chars, got.CreatedAt)
	}
}

func ids(clips []Clip) []string {
	out := make([]string, 0, len(clips))
	for _, c := range clips {
		out = append(out, c.ID)
	}
	return out
}
