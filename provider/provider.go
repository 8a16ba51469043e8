// Package provider holds the shared pipeline local suggestion backends are
// assembled from: preprocessors shape the request context, a prompt builder
// turns it into a completion call, postprocessors validate the model output
// and reduce it to offset candidates.
package provider

import (
	"context"
	"errors"
	"strings"

	"nextedit/client/openai"
	"nextedit/logger"
	"nextedit/text"
	"nextedit/types"
)

// ErrSkipSuggestion is returned by a preprocessor to end the pipeline with
// an empty response instead of an error.
var ErrSkipSuggestion = errors.New("suggestion skipped")

// Result is the first model choice, as seen by postprocessors. Postprocessors
// may rewrite Text in place.
type Result struct {
	Text         string
	FinishReason string
}

// Context carries one request through the pipeline.
type Context struct {
	Request *types.SuggestionRequest
	Lines   []string // full document text split on newlines

	// Window of Lines actually sent to the model. Set by TrimContent; spans
	// the whole document until then. WindowEnd is exclusive, CursorLine is
	// relative to TrimmedLines.
	WindowStart  int
	WindowEnd    int
	TrimmedLines []string
	CursorLine   int

	Result *Result

	// EndLineInc overrides the last document line (1-based, inclusive) the
	// model output covers. Zero means the full window. Set by truncation
	// postprocessors when they cut the output short.
	EndLineInc int
}

// Preprocessor adjusts the context before the prompt is built.
type Preprocessor func(*Provider, *Context) error

// PromptBuilder turns the context into a completion request. Returning nil
// ends the pipeline with an empty response.
type PromptBuilder func(*Provider, *Context) *openai.CompletionRequest

// Postprocessor inspects the model output. Returning done=true finalizes the
// pipeline with the given response; a nil response with done=true means no
// suggestion.
type Postprocessor func(*Provider, *Context) (*types.SuggestionResponse, bool)

// Client abstracts the completion transport for tests.
type Client interface {
	DoCompletion(ctx context.Context, req *openai.CompletionRequest) (*openai.CompletionResponse, error)
}

// Provider is a suggestion backend assembled from pipeline stages.
type Provider struct {
	Name           string
	Config         *types.ProviderConfig
	Client         Client
	StopTokens     []string
	Preprocessors  []Preprocessor
	PromptBuilder  PromptBuilder
	Postprocessors []Postprocessor
}

// GetSuggestions runs the pipeline for one request.
func (p *Provider) GetSuggestions(ctx context.Context, req *types.SuggestionRequest) (*types.SuggestionResponse, error) {
	defer logger.Trace("provider." + p.Name)()

	if req == nil || req.Snapshot == nil {
		return p.EmptyResponse(), nil
	}

	lines := strings.Split(req.Snapshot.Text, "\n")
	pctx := &Context{
		Request:      req,
		Lines:        lines,
		WindowStart:  0,
		WindowEnd:    len(lines),
		TrimmedLines: lines,
		CursorLine:   req.Snapshot.CursorLine,
	}

	for _, pre := range p.Preprocessors {
		if err := pre(p, pctx); err != nil {
			if errors.Is(err, ErrSkipSuggestion) {
				logger.Debug("%s: %v", p.Name, err)
				return p.EmptyResponse(), nil
			}
			return nil, err
		}
	}

	creq := p.PromptBuilder(p, pctx)
	if creq == nil {
		return p.EmptyResponse(), nil
	}
	if creq.Stop == nil {
		creq.Stop = p.StopTokens
	}

	cresp, err := p.Client.DoCompletion(ctx, creq)
	if err != nil {
		return nil, err
	}
	if len(cresp.Choices) == 0 {
		return p.EmptyResponse(), nil
	}
	pctx.Result = &Result{
		Text:         cresp.Choices[0].Text,
		FinishReason: cresp.Choices[0].FinishReason,
	}

	for _, post := range p.Postprocessors {
		resp, done := post(p, pctx)
		if !done {
			continue
		}
		if resp == nil {
			return p.EmptyResponse(), nil
		}
		return resp, nil
	}
	return p.EmptyResponse(), nil
}

// EmptyResponse is the canonical no-suggestion result.
func (p *Provider) EmptyResponse() *types.SuggestionResponse {
	return &types.SuggestionResponse{}
}

// CandidateFromRewrite reduces a rewritten line region to the minimal
// replacement candidate: the common prefix and suffix between the old region
// text and newText are stripped and only the changed core is kept. startLine
// is 0-based, endLine exclusive, both in document lines. An unchanged region
// yields an empty response. Always finalizes the pipeline.
func (p *Provider) CandidateFromRewrite(pctx *Context, startLine, endLine int, newText string) (*types.SuggestionResponse, bool) {
	doc := pctx.Request.Snapshot
	if startLine < 0 {
		startLine = 0
	}
	if endLine > len(pctx.Lines) {
		endLine = len(pctx.Lines)
	}
	if startLine >= endLine {
		return p.EmptyResponse(), true
	}

	ix := text.NewLineIndex(doc.Text)
	regionStart := ix.Start(startLine)
	regionEnd := ix.ContentEnd(endLine - 1)
	oldText := doc.Text[regionStart:regionEnd]

	if IsNoOpReplacement(strings.Split(newText, "\n"), strings.Split(oldText, "\n")) {
		return p.EmptyResponse(), true
	}

	span := text.TrimCommonAffixes(oldText, newText)
	if span.OldChanged == "" && span.NewChanged == "" {
		return p.EmptyResponse(), true
	}

	c := &types.Candidate{
		StartIndex: regionStart + span.PrefixLen,
		EndIndex:   regionStart + span.PrefixLen + len(span.OldChanged),
		Completion: span.NewChanged,
	}
	return &types.SuggestionResponse{Candidates: []*types.Candidate{c}}, true
}

// DocumentPath returns the snapshot's path relative to the workspace root,
// or the bare filesystem path when the document lives outside it.
func DocumentPath(req *types.SuggestionRequest) string {
	path := strings.TrimPrefix(req.Snapshot.URI, "file://")
	if req.WorkspacePath != "" {
		root := strings.TrimSuffix(req.WorkspacePath, "/") + "/"
		if rel := strings.TrimPrefix(path, root); rel != path {
			return rel
		}
	}
	return path
}
