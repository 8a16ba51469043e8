// Package fim is the fill-in-the-middle completion backend. The document is
// split at the cursor into prefix and suffix and the model fills the gap, so
// unlike inline it works with text after the cursor and may emit several
// lines.
package fim

import (
	"strings"

	"nextedit/client/openai"
	"nextedit/provider"
	"nextedit/types"
)

// FIM tokens understood by Qwen-style completion models.
const (
	FIMPrefixToken = "<|fim_prefix|>"
	FIMSuffixToken = "<|fim_suffix|>"
	FIMMiddleToken = "<|fim_middle|>"
)

// NewProvider assembles the FIM pipeline. No stop tokens: multi-line output
// is wanted, truncation is handled after the fact.
func NewProvider(cfg *types.ProviderConfig) *provider.Provider {
	return &provider.Provider{
		Name:   "fim",
		Config: cfg,
		Client: openai.NewClient(cfg.ProviderURL, cfg.CompletionPath),
		Preprocessors: []provider.Preprocessor{
			provider.TrimContent(),
		},
		PromptBuilder: buildPrompt,
		Postprocessors: []provider.Postprocessor{
			provider.DropLastLineIfTruncated(),
			provider.RejectEmpty(),
			parseCompletion,
		},
	}
}

// buildPrompt splits the trimmed window at the cursor:
// <|fim_prefix|>{before cursor}<|fim_suffix|>{after cursor}<|fim_middle|>
func buildPrompt(p *provider.Provider, pctx *provider.Context) *openai.CompletionRequest {
	var prefix, suffix strings.Builder

	for i := 0; i < pctx.CursorLine && i < len(pctx.TrimmedLines); i++ {
		prefix.WriteString(pctx.TrimmedLines[i])
		prefix.WriteString("\n")
	}
	if pctx.CursorLine >= 0 && pctx.CursorLine < len(pctx.TrimmedLines) {
		line := pctx.TrimmedLines[pctx.CursorLine]
		col := min(pctx.Request.Snapshot.CursorCol, len(line))
		prefix.WriteString(line[:col])
		suffix.WriteString(line[col:])
	}
	for i := pctx.CursorLine + 1; i < len(pctx.TrimmedLines); i++ {
		suffix.WriteString("\n")
		suffix.WriteString(pctx.TrimmedLines[i])
	}

	return &openai.CompletionRequest{
		Model:       p.Config.ProviderModel,
		Prompt:      FIMPrefixToken + prefix.String() + FIMSuffixToken + suffix.String() + FIMMiddleToken,
		Temperature: p.Config.ProviderTemperature,
		MaxTokens:   p.Config.ProviderMaxTokens,
		N:           1,
	}
}

// parseCompletion turns the filled middle into an insertion at the cursor.
func parseCompletion(p *provider.Provider, pctx *provider.Context) (*types.SuggestionResponse, bool) {
	doc := pctx.Request.Snapshot
	offset := max(0, min(doc.CursorOffset, len(doc.Text)))

	c := &types.Candidate{
		StartIndex: offset,
		EndIndex:   offset,
		Completion: pctx.Result.Text,
	}
	return &types.SuggestionResponse{Candidates: []*types.Candidate{c}}, true
}
