package persist

import (
	stderrors "errors"
	"fmt"
	"os"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/hpungsan/cliptitle/internal/errors"
)

const clippedPrefix = "Clipped:"

// Entry is one clip inside a file.
type Entry struct {
	Title   string `json:"title"`
	Clipped string `json:"clipped,omitempty"`
}

// Document is a parsed clip file.
type Document struct {
	Path        string       `json:"path"`
	FrontMatter *FrontMatter `json:"front_matter,omitempty"`
	Body        string       `json:"body"`
	Entries     []Entry      `json:"entries"`
	Size        int          `json:"size"`
}

// ReadDocument reads and parses the clip file at path.
func ReadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return nil, errors.NewNotFound("file", path)
		}
		return nil, errors.NewInternal(fmt.Errorf("read %s: %w", path, err))
	}
	return ParseDocument(path, data)
}

// ParseDocument parses clip file content. The first entry comes from the
// front matter; each appended section adds one more.
func ParseDocument(path string, data []byte) (*Document, error) {
	fm, body, ok, err := SplitFrontMatter(string(data))
	if err != nil {
		return nil, errors.NewInvalidRequest(err.Error())
	}

	doc := &Document{Path: path, Body: body, Size: len(data)}
	if ok {
		doc.FrontMatter = &fm
		doc.Entries = append(doc.Entries, Entry{Title: fm.Title, Clipped: fm.Created})
	}
	doc.Entries = append(doc.Entries, appendedEntries([]byte(body))...)
	return doc, nil
}

// appendedEntries finds each thematic break directly followed by a level-two
// heading, which is how appended sections start.
func appendedEntries(src []byte) []Entry {
	root := goldmark.DefaultParser().Parse(text.NewReader(src))

	var entries []Entry
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		if n.Kind() != ast.KindThematicBreak {
			continue
		}
		h, ok := n.NextSibling().(*ast.Heading)
		if !ok || h.Level != 2 {
			continue
		}

		e := Entry{Title: nodeText(h, src)}
		if p, ok := h.NextSibling().(*ast.Paragraph); ok {
			if line := nodeText(p, src); strings.HasPrefix(line, clippedPrefix) {
				e.Clipped = strings.TrimSpace(strings.TrimPrefix(line, clippedPrefix))
			}
		}
		entries = append(entries, e)
	}
	return entries
}

// nodeText concatenates the text segments under n.
func nodeText(n ast.Node, src []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}
