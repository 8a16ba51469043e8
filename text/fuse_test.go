package text

import (
	"testing"

	"nextedit/assert"
	"nextedit/types"
)

func TestFuseExactDuplicate(t *testing.T) {
	s := types.Snippet{FilePath: "a.go", StartLine: 5, EndLine: 6, Content: "x\ny", Timestamp: 10}
	got := Fuse([]types.Snippet{s, s})
	assert.Len(t, 1, got, "duplicates collapse")
	assert.Equal(t, s, got[0], "surviving snippet unchanged")
}

func TestFuseTouchingRanges(t *testing.T) {
	a := types.Snippet{FilePath: "a.go", StartLine: 5, EndLine: 6, Content: "five\nsix", Timestamp: 3}
	b := types.Snippet{FilePath: "a.go", StartLine: 7, EndLine: 8, Content: "seven\neight", Timestamp: 9}
	got := Fuse([]types.Snippet{a, b})
	assert.Len(t, 1, got, "adjacent ranges merge")
	assert.Equal(t, 5, got[0].StartLine, "merged start")
	assert.Equal(t, 8, got[0].EndLine, "merged end")
	assert.Equal(t, "five\nsix\nseven\neight", got[0].Content, "content concatenated in line order")
	assert.Equal(t, uint64(9), got[0].Timestamp, "timestamp takes the max")
}

func TestFuseContainment(t *testing.T) {
	outer := types.Snippet{FilePath: "a.go", StartLine: 5, EndLine: 8, Content: "five\nsix\nseven\neight", Timestamp: 9}
	inner := types.Snippet{FilePath: "a.go", StartLine: 6, EndLine: 7, Content: "SIX\nSEVEN", Timestamp: 2}
	got := Fuse([]types.Snippet{outer, inner})
	assert.Len(t, 1, got, "subset absorbed")
	assert.Equal(t, outer, got[0], "larger snippet unchanged")
}

func TestFuseCrossFileIndependence(t *testing.T) {
	a := types.Snippet{FilePath: "a.go", StartLine: 5, EndLine: 6, Content: "x"}
	b := types.Snippet{FilePath: "b.go", StartLine: 5, EndLine: 6, Content: "x"}
	got := Fuse([]types.Snippet{a, b})
	assert.Len(t, 2, got, "different files never merge")
}

func TestFuseOverlapDeduplicatesLines(t *testing.T) {
	a := types.Snippet{FilePath: "a.go", StartLine: 5, EndLine: 7, Content: "five\nsix\nseven"}
	b := types.Snippet{FilePath: "a.go", StartLine: 6, EndLine: 8, Content: "six\nseven\neight"}
	got := Fuse([]types.Snippet{a, b})
	assert.Len(t, 1, got, "overlapping ranges merge")
	assert.Equal(t, 5, got[0].StartLine, "merged start")
	assert.Equal(t, 8, got[0].EndLine, "merged end")
	assert.Equal(t, "five\nsix\nseven\neight", got[0].Content, "overlap lines appear once")
}

func TestFuseKeepsEncounterOrder(t *testing.T) {
	a := types.Snippet{FilePath: "a.go", StartLine: 1, EndLine: 1, Content: "a1"}
	b := types.Snippet{FilePath: "b.go", StartLine: 1, EndLine: 1, Content: "b1"}
	c := types.Snippet{FilePath: "a.go", StartLine: 2, EndLine: 2, Content: "a2"}
	got := Fuse([]types.Snippet{a, b, c})
	assert.Len(t, 2, got, "same-file snippets merged")
	assert.Equal(t, "a.go", got[0].FilePath, "merge keeps first-seen position")
	assert.Equal(t, "a1\na2", got[0].Content, "merged content")
	assert.Equal(t, "b.go", got[1].FilePath, "other file follows")
}

func TestTruncateSnippet(t *testing.T) {
	s := types.Snippet{FilePath: "a.go", StartLine: 10, EndLine: 14, Content: "a\nb\nc\nd\ne"}
	got := TruncateSnippet(s, 2)
	assert.Equal(t, "a\nb", got.Content, "keeps leading lines")
	assert.Equal(t, 11, got.EndLine, "end line shrinks")
	assert.Equal(t, 10, got.StartLine, "start line kept")
}

func TestTruncateSnippetUnderCap(t *testing.T) {
	s := types.Snippet{FilePath: "a.go", StartLine: 10, EndLine: 11, Content: "a\nb"}
	assert.Equal(t, s, TruncateSnippet(s, 5), "short snippet untouched")
}

func TestTrimRecentKeepsNewest(t *testing.T) {
	a := types.Snippet{FilePath: "a.go", StartLine: 1, EndLine: 1, Content: "a", Timestamp: 5}
	b := types.Snippet{FilePath: "b.go", StartLine: 1, EndLine: 1, Content: "b", Timestamp: 20}
	c := types.Snippet{FilePath: "c.go", StartLine: 1, EndLine: 1, Content: "c", Timestamp: 10}
	got := TrimRecent([]types.Snippet{a, b, c}, 2)
	assert.Len(t, 2, got, "capped to n")
	assert.Equal(t, "b.go", got[0].FilePath, "input order preserved among survivors")
	assert.Equal(t, "c.go", got[1].FilePath, "oldest dropped")
}

func TestFuseRetrievalContextBoundsBudget(t *testing.T) {
	big := types.Snippet{FilePath: "a.go", StartLine: 1, EndLine: 6, Content: "1\n2\n3\n4\n5\n6", Timestamp: 1}
	got := FuseRetrievalContext([]types.Snippet{big}, FuseOptions{MaxSnippetLines: 3})
	assert.Len(t, 1, got, "single snippet")
	assert.Equal(t, "1\n2\n3", got[0].Content, "capped before fusion")
	assert.Equal(t, 3, got[0].EndLine, "end line shrinks with the cap")
}
