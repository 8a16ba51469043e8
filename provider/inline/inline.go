// Package inline is the end-of-line completion backend. It completes the
// current line from the cursor onward and never proposes edits elsewhere.
package inline

import (
	"strings"

	"nextedit/client/openai"
	"nextedit/provider"
	"nextedit/text"
	"nextedit/types"
)

// NewProvider assembles the inline pipeline.
func NewProvider(cfg *types.ProviderConfig) *provider.Provider {
	return &provider.Provider{
		Name:       "inline",
		Config:     cfg,
		Client:     openai.NewClient(cfg.ProviderURL, cfg.CompletionPath),
		StopTokens: []string{"\n"},
		Preprocessors: []provider.Preprocessor{
			provider.TrimContent(),
			provider.SkipIfTextAfterCursor(),
		},
		PromptBuilder: buildPrompt,
		Postprocessors: []provider.Postprocessor{
			provider.RejectEmpty(),
			provider.RejectTruncated(),
			parseCompletion,
		},
	}
}

// buildPrompt is the document up to the cursor: every trimmed line before the
// cursor line, then the cursor line cut at the cursor column.
func buildPrompt(p *provider.Provider, pctx *provider.Context) *openai.CompletionRequest {
	var b strings.Builder
	for i := 0; i < pctx.CursorLine && i < len(pctx.TrimmedLines); i++ {
		b.WriteString(pctx.TrimmedLines[i])
		b.WriteString("\n")
	}
	if pctx.CursorLine >= 0 && pctx.CursorLine < len(pctx.TrimmedLines) {
		line := pctx.TrimmedLines[pctx.CursorLine]
		b.WriteString(line[:min(pctx.Request.Snapshot.CursorCol, len(line))])
	}

	return &openai.CompletionRequest{
		Model:       p.Config.ProviderModel,
		Prompt:      b.String(),
		Temperature: p.Config.ProviderTemperature,
		MaxTokens:   p.Config.ProviderMaxTokens,
		N:           1,
	}
}

// parseCompletion turns the model output into a single insertion candidate at
// the cursor. Output that restates what already follows the cursor on the
// line is dropped.
func parseCompletion(p *provider.Provider, pctx *provider.Context) (*types.SuggestionResponse, bool) {
	doc := pctx.Request.Snapshot
	completion := pctx.Result.Text

	ix := text.NewLineIndex(doc.Text)
	lineEnd := ix.ContentEnd(doc.CursorLine)
	offset := min(doc.CursorOffset, lineEnd)
	if completion == doc.Text[offset:lineEnd] {
		return p.EmptyResponse(), true
	}

	c := &types.Candidate{
		StartIndex: offset,
		EndIndex:   offset,
		Completion: completion,
	}
	return &types.SuggestionResponse{Candidates: []*types.Candidate{c}}, true
}
