// Package zeta is the edit-prediction backend for Zed's zeta models. The
// prompt shows the model recent edits plus an excerpt of the document with an
// editable region marked around the cursor, and the model answers by
// rewriting that region.
package zeta

import (
	"strings"

	"nextedit/client/openai"
	"nextedit/provider"
	"nextedit/types"
)

// Markers the zeta prompt format is built from.
const (
	StartOfFileMarker   = "<|start_of_file|>"
	EditableStartMarker = "<|editable_region_start|>"
	EditableEndMarker   = "<|editable_region_end|>"
	CursorMarker        = "<|user_cursor_is_here|>"
)

// Region sizes in lines around the cursor. The editable region is what the
// model may rewrite, the context region is read-only surroundings.
const (
	editableRadius = 10
	contextRadius  = 5
)

var formatUserEdits = provider.FormatPatchHistory(provider.PatchHistoryOptions{
	HeaderTemplate: "User edited %q:\n",
	Prefix:         "```diff\n",
	Suffix:         "\n```",
	Separator:      "\n\n",
	BodyOnly:       true,
})

// NewProvider assembles the zeta pipeline. Generation stops at the editable
// region end marker; no content trimming, the region bounds the prompt.
func NewProvider(cfg *types.ProviderConfig) *provider.Provider {
	return &provider.Provider{
		Name:          "zeta",
		Config:        cfg,
		Client:        openai.NewClient(cfg.ProviderURL, cfg.CompletionPath),
		StopTokens:    []string{"\n" + EditableEndMarker},
		PromptBuilder: buildPrompt,
		Postprocessors: []provider.Postprocessor{
			provider.RejectEmpty(),
			parseCompletion,
		},
	}
}

func buildPrompt(p *provider.Provider, pctx *provider.Context) *openai.CompletionRequest {
	var b strings.Builder
	b.WriteString("### Instruction:\n")
	b.WriteString("You are a code completion assistant and your task is to analyze user edits and then rewrite an excerpt that the user provides, suggesting the appropriate edits within the excerpt, taking into account the cursor location.\n\n")
	b.WriteString("### User Edits:\n\n")
	b.WriteString(formatUserEdits(pctx.Request.RecentPatches))
	b.WriteString("\n\n")
	b.WriteString("### User Excerpt:\n\n")
	b.WriteString(buildExcerpt(pctx))
	b.WriteString("\n\n")
	b.WriteString("### Response:\n")

	return &openai.CompletionRequest{
		Model:       p.Config.ProviderModel,
		Prompt:      b.String(),
		Temperature: p.Config.ProviderTemperature,
		MaxTokens:   p.Config.ProviderMaxTokens,
		N:           1,
	}
}

// buildExcerpt renders the document region around the cursor in zeta's fenced
// format: read-only context, then the editable region with the cursor marker
// placed inside the current line.
func buildExcerpt(pctx *provider.Context) string {
	doc := pctx.Request.Snapshot
	lines := pctx.Lines

	cursorLine := doc.CursorLine
	if cursorLine >= len(lines) {
		cursorLine = len(lines) - 1
	}
	if cursorLine < 0 {
		cursorLine = 0
	}

	editableStart := max(0, cursorLine-editableRadius)
	editableEnd := min(len(lines), cursorLine+editableRadius+1)
	contextStart := max(0, editableStart-contextRadius)
	contextEnd := min(len(lines), editableEnd+contextRadius)

	var b strings.Builder
	b.WriteString("```")
	b.WriteString(provider.DocumentPath(pctx.Request))
	b.WriteString("\n")

	if contextStart == 0 {
		b.WriteString(StartOfFileMarker)
		b.WriteString("\n")
	}
	for i := contextStart; i < editableStart; i++ {
		b.WriteString(lines[i])
		b.WriteString("\n")
	}

	b.WriteString(EditableStartMarker)
	b.WriteString("\n")
	for i := editableStart; i < cursorLine; i++ {
		b.WriteString(lines[i])
		b.WriteString("\n")
	}
	if cursorLine < len(lines) {
		line := lines[cursorLine]
		col := min(doc.CursorCol, len(line))
		b.WriteString(line[:col])
		b.WriteString(CursorMarker)
		b.WriteString(line[col:])
	} else {
		b.WriteString(CursorMarker)
	}
	for i := cursorLine + 1; i < editableEnd; i++ {
		b.WriteString("\n")
		b.WriteString(lines[i])
	}
	b.WriteString("\n")
	b.WriteString(EditableEndMarker)

	for i := editableEnd; i < contextEnd; i++ {
		b.WriteString("\n")
		b.WriteString(lines[i])
	}
	b.WriteString("\n```")
	return b.String()
}

// parseCompletion extracts the rewritten editable region from the model
// output and reduces it to a candidate. Output without region markers falls
// back to treating the text as a continuation at the cursor.
func parseCompletion(p *provider.Provider, pctx *provider.Context) (*types.SuggestionResponse, bool) {
	content := strings.ReplaceAll(pctx.Result.Text, CursorMarker, "")

	startIdx := strings.Index(content, EditableStartMarker)
	if startIdx == -1 {
		return parseSimpleCompletion(p, pctx, content)
	}
	content = content[startIdx:]

	newlineIdx := strings.Index(content, "\n")
	if newlineIdx == -1 {
		return p.EmptyResponse(), true
	}
	content = content[newlineIdx+1:]

	if endIdx := strings.Index(content, "\n"+EditableEndMarker); endIdx != -1 {
		content = content[:endIdx]
	}

	doc := pctx.Request.Snapshot
	editableStart := max(0, doc.CursorLine-editableRadius)
	editableEnd := min(len(pctx.Lines), doc.CursorLine+editableRadius+1)
	return p.CandidateFromRewrite(pctx, editableStart, editableEnd, content)
}

// parseSimpleCompletion treats marker-less output as new content typed at the
// cursor, replacing as many document lines as the output spans.
func parseSimpleCompletion(p *provider.Provider, pctx *provider.Context, completion string) (*types.SuggestionResponse, bool) {
	doc := pctx.Request.Snapshot
	lines := pctx.Lines

	cursorLine := doc.CursorLine
	if cursorLine >= len(lines) {
		cursorLine = len(lines) - 1
	}
	if cursorLine < 0 {
		cursorLine = 0
	}

	var before string
	if cursorLine < len(lines) {
		line := lines[cursorLine]
		before = line[:min(doc.CursorCol, len(line))]
	}

	span := strings.Count(completion, "\n") + 1
	return p.CandidateFromRewrite(pctx, cursorLine, min(cursorLine+span, len(lines)), before+completion)
}
