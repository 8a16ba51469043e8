package text

import (
	"sort"
	"strings"

	"nextedit/types"
)

// FuseOptions bounds retrieval context assembly.
type FuseOptions struct {
	MaxSnippetLines int // per-snippet line cap applied before fusion, 0 = no cap
	MaxSnippets     int // fused list cap, most recent kept, 0 = no cap
}

// FuseRetrievalContext caps, fuses and bounds snippets for one request:
// individual snippets are truncated first so a single giant match cannot
// dominate the budget, then overlapping or adjacent same-file snippets are
// merged, then the list is trimmed to the most recent entries.
func FuseRetrievalContext(snips []types.Snippet, opts FuseOptions) []types.Snippet {
	if opts.MaxSnippetLines > 0 {
		capped := make([]types.Snippet, len(snips))
		for i, s := range snips {
			capped[i] = TruncateSnippet(s, opts.MaxSnippetLines)
		}
		snips = capped
	}
	return TrimRecent(Fuse(snips), opts.MaxSnippets)
}

// TruncateSnippet caps a snippet to maxLines, keeping the leading lines and
// shrinking EndLine to match.
func TruncateSnippet(s types.Snippet, maxLines int) types.Snippet {
	if maxLines <= 0 {
		return s
	}
	lines := strings.Split(s.Content, "\n")
	if len(lines) <= maxLines {
		return s
	}
	s.Content = strings.Join(lines[:maxLines], "\n")
	s.EndLine = s.StartLine + maxLines - 1
	return s
}

// Fuse deduplicates and range-merges snippets. Same-file snippets whose line
// ranges overlap or sit directly adjacent merge into one spanning the union;
// exact duplicates are dropped. Output keeps encounter order, with merges
// adopting the position of the first-seen member.
func Fuse(snips []types.Snippet) []types.Snippet {
	var out []types.Snippet
outer:
	for _, s := range snips {
		for i := range out {
			e := &out[i]
			if e.FilePath != s.FilePath {
				continue
			}
			if e.StartLine == s.StartLine && e.EndLine == s.EndLine && e.Content == s.Content {
				continue outer
			}
			if s.StartLine <= e.EndLine+1 && e.StartLine <= s.EndLine+1 {
				*e = mergeSnippets(*e, s)
				continue outer
			}
		}
		out = append(out, s)
	}
	return out
}

// mergeSnippets joins two touching same-file snippets. Content is stitched
// by line number with the first-seen snippet winning on overlap, so an
// absorbed subset never alters the larger snippet's content.
func mergeSnippets(a, b types.Snippet) types.Snippet {
	start := min(a.StartLine, b.StartLine)
	end := max(a.EndLine, b.EndLine)

	lines := make(map[int]string)
	fill := func(s types.Snippet) {
		for i, l := range strings.Split(s.Content, "\n") {
			n := s.StartLine + i
			if _, ok := lines[n]; !ok {
				lines[n] = l
			}
		}
	}
	fill(a)
	fill(b)

	merged := make([]string, 0, end-start+1)
	for n := start; n <= end; n++ {
		if l, ok := lines[n]; ok {
			merged = append(merged, l)
		}
	}

	return types.Snippet{
		FilePath:  a.FilePath,
		StartLine: start,
		EndLine:   end,
		Content:   strings.Join(merged, "\n"),
		Timestamp: max(a.Timestamp, b.Timestamp),
	}
}

// TrimRecent keeps the n snippets with the largest timestamps, ties going to
// later entries, preserving input order among survivors.
func TrimRecent(snips []types.Snippet, n int) []types.Snippet {
	if n <= 0 || len(snips) <= n {
		return snips
	}
	idx := make([]int, len(snips))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(i, j int) bool {
		a, b := idx[i], idx[j]
		if snips[a].Timestamp != snips[b].Timestamp {
			return snips[a].Timestamp > snips[b].Timestamp
		}
		return a > b
	})
	keep := make(map[int]bool, n)
	for _, i := range idx[:n] {
		keep[i] = true
	}
	out := make([]types.Snippet, 0, n)
	for i, s := range snips {
		if keep[i] {
			out = append(out, s)
		}
	}
	return out
}
