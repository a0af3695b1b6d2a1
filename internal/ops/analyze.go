package ops

import (
	"context"

	"github.com/hpungsan/cliptitle/internal/classify"
	"github.com/hpungsan/cliptitle/internal/title"
)

// AnalyzeInput contains parameters for the Analyze operation.
type AnalyzeInput struct {
	ClipInput
}

// AnalyzeOutput contains the result of the Analyze operation.
type AnalyzeOutput struct {
	Markdown       string            `json:"markdown"`
	Analysis       classify.Analysis `json:"analysis"`
	HeuristicTitle string            `json:"heuristic_title"`
}

// Analyze converts content and classifies it without touching the network
// or the disk.
func Analyze(input AnalyzeInput) (*AnalyzeOutput, error) {
	md, err := input.Markdown()
	if err != nil {
		return nil, err
	}
	a := classify.Analyze(md)
	return &AnalyzeOutput{
		Markdown:       md,
		Analysis:       a,
		HeuristicTitle: classify.SynthesizeTitle(a),
	}, nil
}

// TitleResolver resolves a title for converted content.
type TitleResolver interface {
	Resolve(ctx context.Context, content string) title.Decision
}

// TitleInput contains parameters for the Title operation.
type TitleInput struct {
	ClipInput
	HeuristicOnly bool // skip remote inference
}

// TitleOutput contains the result of the Title operation.
type TitleOutput struct {
	Title    string       `json:"title"`
	Source   title.Source `json:"source"`
	Markdown string       `json:"markdown"`
}

// Title resolves a title the way the pipeline would.
func Title(ctx context.Context, resolver TitleResolver, input TitleInput) (*TitleOutput, error) {
	md, err := input.Markdown()
	if err != nil {
		return nil, err
	}
	if input.HeuristicOnly || resolver == nil {
		return &TitleOutput{Title: title.Heuristic(md), Source: title.SourceHeuristic, Markdown: md}, nil
	}
	d := resolver.Resolve(ctx, md)
	return &TitleOutput{Title: d.Title, Source: d.Source, Markdown: md}, nil
}
