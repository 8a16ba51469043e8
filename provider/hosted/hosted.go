// Package hosted is the suggestion backend for the hosted next-edit service,
// with a pipeline fallback for self-hosted OpenAI-compatible deployments of
// the same model.
package hosted

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"nextedit/client/openai"
	"nextedit/client/suggest"
	"nextedit/logger"
	"nextedit/provider"
	"nextedit/types"
)

// NewProvider picks the backend by URL: local deployments go through the
// completion pipeline, anything else through the hosted service API.
func NewProvider(cfg *types.ProviderConfig) (types.Provider, error) {
	if isRemoteURL(cfg.ProviderURL) {
		return newRemoteProvider(cfg)
	}
	return newLocalProvider(cfg), nil
}

func isRemoteURL(url string) bool {
	return !strings.Contains(url, "localhost") && !strings.Contains(url, "127.0.0.1")
}

// --- remote: hosted service API ---

// Client is the transport surface the remote provider needs; satisfied by
// *suggest.Client.
type Client interface {
	DoSuggest(ctx context.Context, req *suggest.SuggestRequest) (*suggest.SuggestResponse, error)
	SendMetrics(req *suggest.MetricsRequest)
}

// remoteProvider maps service responses straight to byte-offset candidates;
// no pipeline runs.
type remoteProvider struct {
	cfg    *types.ProviderConfig
	client Client
}

func newRemoteProvider(cfg *types.ProviderConfig) (*remoteProvider, error) {
	client, err := suggest.NewClient(cfg.ProviderURL, cfg.APIKey, cfg.APIKeyEnv)
	if err != nil {
		return nil, fmt.Errorf("create suggest client: %w", err)
	}
	return &remoteProvider{cfg: cfg, client: client}, nil
}

func (p *remoteProvider) GetSuggestions(ctx context.Context, req *types.SuggestionRequest) (*types.SuggestionResponse, error) {
	defer logger.Trace("provider.hosted")()

	if req == nil || req.Snapshot == nil {
		return &types.SuggestionResponse{}, nil
	}
	doc := req.Snapshot

	sresp, err := p.client.DoSuggest(ctx, &suggest.SuggestRequest{
		DebugInfo:           uuid.NewString(),
		RepoName:            repoName(req),
		FilePath:            provider.DocumentPath(req),
		FileContents:        doc.Text,
		RecentChanges:       recentChanges(req.RecentPatches),
		CursorPosition:      doc.CursorOffset,
		RetrievalChunks:     retrievalChunks(req.Retrieval),
		MultipleSuggestions: true,
		UseBytes:            true,
	})
	if err != nil {
		return nil, err
	}
	return toResponse(doc, sresp), nil
}

// ReportAccept forwards accept notifications to the service metrics
// endpoint. Additions and deletions are byte counts.
func (p *remoteProvider) ReportAccept(c *types.Candidate) {
	p.client.SendMetrics(&suggest.MetricsRequest{
		EventType:    "accept",
		SuggestionID: c.ID,
		Additions:    len(c.Completion),
		Deletions:    c.EndIndex - c.StartIndex,
	})
}

// ReportDismiss notifies the service that a shown suggestion was rejected.
func (p *remoteProvider) ReportDismiss(c *types.Candidate) {
	p.client.SendMetrics(&suggest.MetricsRequest{
		EventType:    "reject",
		SuggestionID: c.ID,
	})
}

// toResponse collects service candidates in order, dropping anything out of
// bounds or restating the document.
func toResponse(doc *types.DocumentSnapshot, sresp *suggest.SuggestResponse) *types.SuggestionResponse {
	resp := &types.SuggestionResponse{}
	add := func(id string, start, end int, completion string, confidence float64) {
		if start < 0 || end < start || end > len(doc.Text) {
			logger.Debug("hosted: candidate %s out of bounds [%d,%d)", id, start, end)
			return
		}
		if doc.Text[start:end] == completion {
			return
		}
		resp.Candidates = append(resp.Candidates, &types.Candidate{
			ID:         id,
			StartIndex: start,
			EndIndex:   end,
			Completion: completion,
			Confidence: confidence,
		})
	}
	add(sresp.SuggestionID, sresp.StartIndex, sresp.EndIndex, sresp.Completion, sresp.Confidence)
	for _, ch := range sresp.Completions {
		add(ch.SuggestionID, ch.StartIndex, ch.EndIndex, ch.Completion, ch.Confidence)
	}
	return resp
}

func recentChanges(patches []types.PatchEntry) string {
	parts := make([]string, 0, len(patches))
	for _, p := range patches {
		if p.Patch != "" {
			parts = append(parts, p.Patch)
		}
	}
	return strings.Join(parts, "\n\n")
}

func retrievalChunks(snips []types.Snippet) []suggest.FileChunk {
	if len(snips) == 0 {
		return nil
	}
	chunks := make([]suggest.FileChunk, 0, len(snips))
	for _, s := range snips {
		chunk := suggest.FileChunk{
			FilePath:  s.FilePath,
			StartLine: s.StartLine,
			EndLine:   s.EndLine,
			Content:   s.Content,
		}
		if s.Timestamp != 0 {
			ts := s.Timestamp
			chunk.Timestamp = &ts
		}
		chunks = append(chunks, chunk)
	}
	return chunks
}

func repoName(req *types.SuggestionRequest) string {
	if req.WorkspacePath != "" {
		return filepath.Base(strings.TrimSuffix(req.WorkspacePath, "/"))
	}
	return extractRepoName(strings.TrimPrefix(req.Snapshot.URI, "file://"))
}

// extractRepoName guesses the repository name from a file path, stepping
// over common source roots.
func extractRepoName(path string) string {
	dir := filepath.Dir(path)
	switch filepath.Base(dir) {
	case "src", "lib", "pkg":
		return filepath.Base(filepath.Dir(dir))
	}
	return filepath.Base(dir)
}

// --- local: OpenAI-compatible deployment ---

var formatRecentDiffs = provider.FormatPatchHistory(provider.PatchHistoryOptions{
	HeaderTemplate: "<|file_sep|>%s.diff\n",
	Suffix:         "\n",
})

func newLocalProvider(cfg *types.ProviderConfig) *provider.Provider {
	return &provider.Provider{
		Name:       "hosted-local",
		Config:     cfg,
		Client:     openai.NewClient(cfg.ProviderURL, cfg.CompletionPath),
		StopTokens: []string{"<|file_sep|>", "</s>"},
		Preprocessors: []provider.Preprocessor{
			provider.TrimContent(),
		},
		PromptBuilder: buildLocalPrompt,
		Postprocessors: []provider.Postprocessor{
			provider.RejectEmpty(),
			provider.ValidateAnchorPosition(0.25),
			provider.AnchorTruncation(0.75),
			parseLocalCompletion,
		},
	}
}

// buildLocalPrompt renders recent diffs plus an original/current pair of the
// trimmed window; the model continues with the updated section.
func buildLocalPrompt(p *provider.Provider, pctx *provider.Context) *openai.CompletionRequest {
	path := provider.DocumentPath(pctx.Request)

	var b strings.Builder
	b.WriteString(formatRecentDiffs(pctx.Request.RecentPatches))
	b.WriteString("<|file_sep|>original/")
	b.WriteString(path)
	b.WriteString("\n")
	b.WriteString(strings.Join(originalWindow(pctx), "\n"))
	b.WriteString("\n")
	b.WriteString("<|file_sep|>current/")
	b.WriteString(path)
	b.WriteString("\n")
	b.WriteString(strings.Join(pctx.TrimmedLines, "\n"))
	b.WriteString("\n")
	b.WriteString("<|file_sep|>updated/")
	b.WriteString(path)
	b.WriteString("\n")

	return &openai.CompletionRequest{
		Model:       p.Config.ProviderModel,
		Prompt:      b.String(),
		Temperature: p.Config.ProviderTemperature,
		MaxTokens:   p.Config.ProviderMaxTokens,
		TopK:        p.Config.ProviderTopK,
		N:           1,
	}
}

// originalWindow is the trimmed window cut from the pre-edit text, falling
// back to the current text when no previous version is known.
func originalWindow(pctx *provider.Context) []string {
	source := pctx.Lines
	if prev := pctx.Request.PreviousText; prev != "" {
		source = strings.Split(prev, "\n")
	}
	start := pctx.WindowStart
	if start >= len(source) {
		return nil
	}
	end := min(pctx.WindowStart+len(pctx.TrimmedLines), len(source))
	return source[start:end]
}

// parseLocalCompletion strips stop-token tails and reduces the rewritten
// window to a candidate. Truncation postprocessors may have narrowed the
// region via EndLineInc.
func parseLocalCompletion(p *provider.Provider, pctx *provider.Context) (*types.SuggestionResponse, bool) {
	completion := pctx.Result.Text
	completion = strings.TrimSuffix(completion, "<|file_sep|>")
	completion = strings.TrimSuffix(completion, "</s>")
	completion = strings.TrimRight(completion, " \t\n\r")

	start := max(0, pctx.WindowStart)
	end := min(pctx.WindowEnd, len(pctx.Lines))
	if pctx.EndLineInc > 0 {
		end = min(pctx.EndLineInc, end)
	} else {
		end = min(start+strings.Count(completion, "\n")+1, end)
	}
	return p.CandidateFromRewrite(pctx, start, end, completion)
}
