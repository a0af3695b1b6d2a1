package persist

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hpungsan/cliptitle/internal/classify"
)

const (
	frontMatterDelim = "---"
	sourceClipboard  = "clipboard"
	maxFMKeywords    = 5
)

// FrontMatter is the YAML header of a clip file.
type FrontMatter struct {
	Title       string   `yaml:"title" json:"title"`
	Source      string   `yaml:"source" json:"source"`
	Created     string   `yaml:"created" json:"created"`
	ContentType string   `yaml:"content_type,omitempty" json:"content_type,omitempty"`
	Domain      string   `yaml:"domain,omitempty" json:"domain,omitempty"`
	Language    string   `yaml:"language,omitempty" json:"language,omitempty"`
	Keywords    []string `yaml:"keywords,omitempty" json:"keywords,omitempty"`
	WordCount   int      `yaml:"word_count" json:"word_count"`
	LineCount   int      `yaml:"line_count" json:"line_count"`
}

// NewFrontMatter builds the header for a new clip file.
func NewFrontMatter(title string, created time.Time, a classify.Analysis) FrontMatter {
	keywords := a.Keywords
	if len(keywords) > maxFMKeywords {
		keywords = keywords[:maxFMKeywords]
	}
	return FrontMatter{
		Title:       title,
		Source:      sourceClipboard,
		Created:     created.Format(time.RFC3339),
		ContentType: string(a.Type),
		Domain:      a.Domain,
		Language:    a.Language,
		Keywords:    keywords,
		WordCount:   a.Words,
		LineCount:   a.Lines,
	}
}

// Marshal renders the header including both --- delimiters. String values
// are double-quoted and keywords use flow style.
func (fm FrontMatter) Marshal() ([]byte, error) {
	var node yaml.Node
	if err := node.Encode(fm); err != nil {
		return nil, fmt.Errorf("encode front matter: %w", err)
	}
	styleValues(&node)

	body, err := yaml.Marshal(&node)
	if err != nil {
		return nil, fmt.Errorf("marshal front matter: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(frontMatterDelim + "\n")
	buf.Write(body)
	buf.WriteString(frontMatterDelim + "\n")
	return buf.Bytes(), nil
}

func styleValues(mapping *yaml.Node) {
	if mapping.Kind != yaml.MappingNode {
		return
	}
	for i := 1; i < len(mapping.Content); i += 2 {
		v := mapping.Content[i]
		switch v.Kind {
		case yaml.ScalarNode:
			if v.Tag == "!!str" {
				v.Style = yaml.DoubleQuotedStyle
			}
		case yaml.SequenceNode:
			v.Style = yaml.FlowStyle
			for _, item := range v.Content {
				if item.Kind == yaml.ScalarNode && item.Tag == "!!str" {
					item.Style = yaml.DoubleQuotedStyle
				}
			}
		}
	}
}

// SplitFrontMatter separates a clip file into its header and body. ok is
// false when the file does not start with a front matter block.
func SplitFrontMatter(data string) (fm FrontMatter, body string, ok bool, err error) {
	data = strings.TrimPrefix(data, "\ufeff")
	if !strings.HasPrefix(data, frontMatterDelim+"\n") {
		return FrontMatter{}, data, false, nil
	}
	rest := data[len(frontMatterDelim)+1:]

	end := strings.Index(rest, "\n"+frontMatterDelim+"\n")
	var header string
	switch {
	case end >= 0:
		header = rest[:end+1]
		body = rest[end+len(frontMatterDelim)+2:]
	case strings.HasSuffix(rest, "\n"+frontMatterDelim):
		header = strings.TrimSuffix(rest, frontMatterDelim)
	default:
		return FrontMatter{}, data, false, nil
	}

	if err := yaml.Unmarshal([]byte(header), &fm); err != nil {
		return FrontMatter{}, data, false, fmt.Errorf("parse front matter: %w", err)
	}
	return fm, strings.TrimPrefix(body, "\n"), true, nil
}
