package hosted

import (
	"context"
	"strings"
	"testing"

	"nextedit/assert"
	"nextedit/client/suggest"
	"nextedit/provider"
	"nextedit/types"
)

type fakeSuggestClient struct {
	lastReq     *suggest.SuggestRequest
	lastMetrics *suggest.MetricsRequest
	resp        *suggest.SuggestResponse
	err         error
}

func (f *fakeSuggestClient) DoSuggest(_ context.Context, req *suggest.SuggestRequest) (*suggest.SuggestResponse, error) {
	f.lastReq = req
	return f.resp, f.err
}

func (f *fakeSuggestClient) SendMetrics(req *suggest.MetricsRequest) {
	f.lastMetrics = req
}

func hostedRequest() *types.SuggestionRequest {
	return &types.SuggestionRequest{
		WorkspacePath: "/work",
		Snapshot: &types.DocumentSnapshot{
			URI:          "file:///work/src/main.go",
			Text:         "package main\n\nfunc main() {}\n",
			CursorLine:   2,
			CursorCol:    12,
			CursorOffset: 26,
		},
	}
}

func TestGetSuggestions_BuildsServiceRequest(t *testing.T) {
	fc := &fakeSuggestClient{resp: &suggest.SuggestResponse{}}
	p := &remoteProvider{cfg: &types.ProviderConfig{}, client: fc}

	req := hostedRequest()
	req.RecentPatches = []types.PatchEntry{
		{Path: "a.go", Patch: "patch-a"},
		{Path: "b.go", Patch: ""},
		{Path: "c.go", Patch: "patch-c"},
	}
	req.Retrieval = []types.Snippet{
		{FilePath: "util.go", StartLine: 1, EndLine: 3, Content: "func helper() {}", Timestamp: 42},
		{FilePath: "old.go", StartLine: 5, EndLine: 6, Content: "var x int"},
	}

	resp, err := p.GetSuggestions(context.Background(), req)
	assert.NoError(t, err, "get suggestions")
	assert.Len(t, 0, resp.Candidates, "empty service response")

	sent := fc.lastReq
	assert.NotNil(t, sent, "request sent")
	assert.Equal(t, "work", sent.RepoName, "repo name from workspace")
	assert.Equal(t, "src/main.go", sent.FilePath, "workspace-relative path")
	assert.Equal(t, req.Snapshot.Text, sent.FileContents, "file contents")
	assert.Equal(t, 26, sent.CursorPosition, "cursor position")
	assert.True(t, sent.UseBytes, "byte offsets requested")
	assert.True(t, sent.MultipleSuggestions, "multiple suggestions requested")
	assert.NotEqual(t, "", sent.DebugInfo, "correlation id attached")
	assert.Equal(t, "patch-a\n\npatch-c", sent.RecentChanges, "empty patches skipped")

	assert.Len(t, 2, sent.RetrievalChunks, "retrieval chunks")
	assert.Equal(t, "util.go", sent.RetrievalChunks[0].FilePath, "chunk path")
	assert.Equal(t, 1, sent.RetrievalChunks[0].StartLine, "chunk start line")
	assert.NotNil(t, sent.RetrievalChunks[0].Timestamp, "timestamp carried")
	assert.Equal(t, uint64(42), *sent.RetrievalChunks[0].Timestamp, "timestamp value")
	assert.Nil(t, sent.RetrievalChunks[1].Timestamp, "zero timestamp omitted")
}

func TestGetSuggestions_MapsCandidatesInOrder(t *testing.T) {
	req := hostedRequest()
	req.Snapshot.Text = "abcdef"
	fc := &fakeSuggestClient{resp: &suggest.SuggestResponse{
		SuggestionID: "s1",
		StartIndex:   0,
		EndIndex:     3,
		Completion:   "xyz",
		Confidence:   0.9,
		Completions: []suggest.SuggestChoice{
			{SuggestionID: "s2", StartIndex: 3, EndIndex: 6, Completion: "DEF", Confidence: 0.5},
		},
	}}
	p := &remoteProvider{cfg: &types.ProviderConfig{}, client: fc}

	resp, err := p.GetSuggestions(context.Background(), req)
	assert.NoError(t, err, "get suggestions")
	assert.Len(t, 2, resp.Candidates, "both candidates mapped")
	assert.Equal(t, "s1", resp.Candidates[0].ID, "primary first")
	assert.Equal(t, "xyz", resp.Candidates[0].Completion, "primary completion")
	assert.Equal(t, 0.9, resp.Candidates[0].Confidence, "primary confidence")
	assert.Equal(t, "s2", resp.Candidates[1].ID, "extra choice second")
	assert.Equal(t, 3, resp.Candidates[1].StartIndex, "choice start")
	assert.Equal(t, 6, resp.Candidates[1].EndIndex, "choice end")
}

func TestGetSuggestions_DropsNoOpAndOutOfBounds(t *testing.T) {
	req := hostedRequest()
	req.Snapshot.Text = "abcdef"
	fc := &fakeSuggestClient{resp: &suggest.SuggestResponse{
		SuggestionID: "noop",
		StartIndex:   0,
		EndIndex:     3,
		Completion:   "abc",
		Completions: []suggest.SuggestChoice{
			{SuggestionID: "oob", StartIndex: 2, EndIndex: 10, Completion: "zz"},
			{SuggestionID: "neg", StartIndex: -1, EndIndex: 2, Completion: "zz"},
			{SuggestionID: "ok", StartIndex: 3, EndIndex: 6, Completion: "DEF"},
		},
	}}
	p := &remoteProvider{cfg: &types.ProviderConfig{}, client: fc}

	resp, err := p.GetSuggestions(context.Background(), req)
	assert.NoError(t, err, "get suggestions")
	assert.Len(t, 1, resp.Candidates, "only valid candidate survives")
	assert.Equal(t, "ok", resp.Candidates[0].ID, "surviving candidate")
}

func TestGetSuggestions_NilRequest(t *testing.T) {
	fc := &fakeSuggestClient{}
	p := &remoteProvider{cfg: &types.ProviderConfig{}, client: fc}

	resp, err := p.GetSuggestions(context.Background(), nil)
	assert.NoError(t, err, "nil request")
	assert.Len(t, 0, resp.Candidates, "no candidates")
	assert.Nil(t, fc.lastReq, "service not called")

	resp, err = p.GetSuggestions(context.Background(), &types.SuggestionRequest{})
	assert.NoError(t, err, "nil snapshot")
	assert.Len(t, 0, resp.Candidates, "no candidates without snapshot")
	assert.Nil(t, fc.lastReq, "service still not called")
}

func TestReportAccept(t *testing.T) {
	fc := &fakeSuggestClient{}
	p := &remoteProvider{cfg: &types.ProviderConfig{}, client: fc}

	p.ReportAccept(&types.Candidate{
		ID:         "sug-1",
		StartIndex: 10,
		EndIndex:   14,
		Completion: "abcdefg",
	})

	m := fc.lastMetrics
	assert.NotNil(t, m, "metrics sent")
	assert.Equal(t, "accept", m.EventType, "event type")
	assert.Equal(t, "sug-1", m.SuggestionID, "suggestion id")
	assert.Equal(t, 7, m.Additions, "added bytes")
	assert.Equal(t, 4, m.Deletions, "replaced bytes")
}

func TestReportDismiss(t *testing.T) {
	fc := &fakeSuggestClient{}
	p := &remoteProvider{cfg: &types.ProviderConfig{}, client: fc}

	p.ReportDismiss(&types.Candidate{ID: "sug-2"})

	m := fc.lastMetrics
	assert.NotNil(t, m, "metrics sent")
	assert.Equal(t, "reject", m.EventType, "event type")
	assert.Equal(t, "sug-2", m.SuggestionID, "suggestion id")
}

func TestExtractRepoName(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"/home/me/repo/src/main.go", "repo"},
		{"/home/me/repo/lib/util.go", "repo"},
		{"/home/me/repo/pkg/x.go", "repo"},
		{"/home/me/repo/main.go", "repo"},
		{"/x/src/deep/file.go", "deep"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, extractRepoName(tc.path), tc.path)
	}
}

func TestRepoName_WorkspaceWins(t *testing.T) {
	req := hostedRequest()
	req.WorkspacePath = "/home/me/project/"
	assert.Equal(t, "project", repoName(req), "trailing slash trimmed")

	req.WorkspacePath = ""
	req.Snapshot.URI = "file:///home/me/other/src/main.go"
	assert.Equal(t, "other", repoName(req), "falls back to path heuristic")
}

func TestIsRemoteURL(t *testing.T) {
	assert.False(t, isRemoteURL("http://localhost:8000"), "localhost is local")
	assert.False(t, isRemoteURL("http://127.0.0.1:9999/v1"), "loopback is local")
	assert.True(t, isRemoteURL("https://api.example.com"), "anything else is remote")
}

func TestNewProvider_SelectsBackend(t *testing.T) {
	local, err := NewProvider(&types.ProviderConfig{ProviderURL: "http://localhost:8000"})
	assert.NoError(t, err, "local provider")
	lp, ok := local.(*provider.Provider)
	assert.True(t, ok, "local uses the completion pipeline")
	assert.Equal(t, "hosted-local", lp.Name, "local provider name")

	remote, err := NewProvider(&types.ProviderConfig{ProviderURL: "https://api.example.com", APIKey: "k"})
	assert.NoError(t, err, "remote provider")
	_, ok = remote.(*remoteProvider)
	assert.True(t, ok, "remote talks to the service")
}

func localContext(docText string, patches []types.PatchEntry) *provider.Context {
	lines := strings.Split(docText, "\n")
	return &provider.Context{
		Request: &types.SuggestionRequest{
			WorkspacePath: "/work",
			Snapshot: &types.DocumentSnapshot{
				URI:  "file:///work/main.go",
				Text: docText,
			},
			RecentPatches: patches,
		},
		Lines:        lines,
		WindowStart:  0,
		WindowEnd:    len(lines),
		TrimmedLines: lines,
	}
}

func TestBuildLocalPrompt(t *testing.T) {
	p := newLocalProvider(&types.ProviderConfig{
		ProviderModel:       "edit-model",
		ProviderTemperature: 0.2,
		ProviderMaxTokens:   100,
	})
	pctx := localContext("alpha\nbravo", nil)

	creq := p.PromptBuilder(p, pctx)
	want := "<|file_sep|>original/main.go\nalpha\nbravo\n" +
		"<|file_sep|>current/main.go\nalpha\nbravo\n" +
		"<|file_sep|>updated/main.go\n"
	assert.Equal(t, want, creq.Prompt, "prompt sections")
	assert.Equal(t, "edit-model", creq.Model, "model")
	assert.Equal(t, 100, creq.MaxTokens, "max tokens")
}

func TestBuildLocalPrompt_RecentDiffs(t *testing.T) {
	p := newLocalProvider(&types.ProviderConfig{})
	patches := []types.PatchEntry{{Path: "other.go", Patch: "@@ -1 +1 @@\n-old\n+new"}}
	pctx := localContext("alpha", patches)

	creq := p.PromptBuilder(p, pctx)
	wantHead := "<|file_sep|>other.go.diff\n@@ -1 +1 @@\n-old\n+new\n<|file_sep|>original/main.go\n"
	assert.True(t, strings.HasPrefix(creq.Prompt, wantHead), "diff section precedes file sections")
}

func TestBuildLocalPrompt_PreviousText(t *testing.T) {
	p := newLocalProvider(&types.ProviderConfig{})
	pctx := localContext("alpha\nbravo2\ncharlie", nil)
	pctx.Request.PreviousText = "alpha\nbravo\ncharlie"

	creq := p.PromptBuilder(p, pctx)
	assert.Contains(t, creq.Prompt,
		"<|file_sep|>original/main.go\nalpha\nbravo\ncharlie\n<|file_sep|>current/main.go\nalpha\nbravo2\ncharlie\n",
		"original section uses the pre-edit text")
}

func TestOriginalWindow(t *testing.T) {
	pctx := localContext("a\nb\nc\nd", nil)
	pctx.Request.PreviousText = "a\nb"
	assert.Equal(t, []string{"a", "b"}, originalWindow(pctx), "previous text shorter than window")

	pctx = localContext("a\nb\nc\nd", nil)
	pctx.WindowStart = 3
	pctx.TrimmedLines = []string{"d"}
	pctx.Request.PreviousText = "x\ny"
	assert.Len(t, 0, originalWindow(pctx), "window past previous text")
}

func TestParseLocalCompletion(t *testing.T) {
	p := newLocalProvider(&types.ProviderConfig{})
	pctx := localContext("alpha\nbravo\ncharlie", nil)
	pctx.Result = &provider.Result{Text: "alpha\nBRAVO\ncharlie</s>", FinishReason: "stop"}

	resp, done := parseLocalCompletion(p, pctx)
	assert.True(t, done, "pipeline finished")
	assert.Len(t, 1, resp.Candidates, "one candidate")
	c := resp.Candidates[0]
	assert.Equal(t, 6, c.StartIndex, "start offset")
	assert.Equal(t, 11, c.EndIndex, "end offset")
	assert.Equal(t, "BRAVO", c.Completion, "changed region")
}

func TestParseLocalCompletion_EndLineOverride(t *testing.T) {
	p := newLocalProvider(&types.ProviderConfig{})
	pctx := localContext("alpha\nbravo\ncharlie\ndelta", nil)
	pctx.EndLineInc = 3
	pctx.Result = &provider.Result{Text: "alpha\nBRAVO"}

	resp, done := parseLocalCompletion(p, pctx)
	assert.True(t, done, "pipeline finished")
	assert.Len(t, 1, resp.Candidates, "one candidate")
	c := resp.Candidates[0]
	assert.Equal(t, 6, c.StartIndex, "start offset")
	assert.Equal(t, 19, c.EndIndex, "covers the narrowed region")
	assert.Equal(t, "BRAVO", c.Completion, "two lines collapse to one")
}

func TestParseLocalCompletion_NoOp(t *testing.T) {
	p := newLocalProvider(&types.ProviderConfig{})
	pctx := localContext("alpha\nbravo", nil)
	pctx.Result = &provider.Result{Text: "alpha\nbravo\n<|file_sep|>"}

	resp, done := parseLocalCompletion(p, pctx)
	assert.True(t, done, "pipeline finished")
	assert.Len(t, 0, resp.Candidates, "restated window dropped")
}
