// Package ops implements the clip operations shared by the CLI, the MCP
// server and the web UI.
package ops

import (
	"strings"

	"github.com/hpungsan/cliptitle/internal/convert"
	"github.com/hpungsan/cliptitle/internal/errors"
)

// Pagination limits
const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
	MaxContentChars     = 1 << 20
	MaxDocumentBytes    = 16 << 20
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// ClipInput is clip content as either plain text or HTML (CF_HTML framing
// allowed). HTML is preferred; text is used when HTML converts to nothing.
type ClipInput struct {
	Text string
	HTML string
}

// Markdown converts the input the same way the pipeline does.
func (in ClipInput) Markdown() (string, error) {
	if in.Text == "" && in.HTML == "" {
		return "", errors.NewInvalidRequest("text or html is required")
	}
	if len(in.Text) > MaxContentChars || len(in.HTML) > MaxContentChars {
		return "", errors.NewInvalidRequest("content exceeds maximum size")
	}

	var md string
	if strings.TrimSpace(in.HTML) != "" {
		md = convert.ConvertHTML(in.HTML)
	}
	if md == "" {
		md = convert.ConvertPlainText(in.Text)
	}
	if md == "" {
		return "", errors.NewInvalidRequest("content is empty after conversion")
	}
	return md, nil
}

// clampLimit applies limit defaults and bounds.
func clampLimit(limit, def, maxLimit int) int {
	if limit <= 0 {
		return def
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}
