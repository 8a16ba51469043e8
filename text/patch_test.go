package text

import (
	"strings"
	"testing"

	"nextedit/assert"
	"nextedit/types"
)

func TestFormatChangePatchReplacement(t *testing.T) {
	source := "alpha\nbravo\ncharlie\ndelta\necho"
	patch, ok := FormatChangePatch("main.go", source, types.ContentChange{
		RangeOffset: 12, RangeLength: 7, Text: "charged",
	}, PatchOptions{})
	assert.True(t, ok, "patch produced")
	expected := strings.Join([]string{
		"Index: main.go",
		"===================================================================",
		"@@ -1,5 +1,5 @@",
		" alpha",
		" bravo",
		"-charlie",
		"+charged",
		" delta",
		" echo",
	}, "\n")
	assert.Equal(t, expected, patch, "full patch text")
}

func TestFormatChangePatchInsertionMidLine(t *testing.T) {
	patch, ok := FormatChangePatch("f.txt", "ab\ncd", types.ContentChange{
		RangeOffset: 4, RangeLength: 0, Text: "X",
	}, PatchOptions{})
	assert.True(t, ok, "patch produced")
	assert.Contains(t, patch, "@@ -1,2 +1,2 @@", "hunk header")
	assert.Contains(t, patch, "-cd", "old line")
	assert.Contains(t, patch, "+cXd", "new line")
	assert.Contains(t, patch, " ab", "leading context")
}

func TestFormatChangePatchNewlineDeletionJoinsLines(t *testing.T) {
	patch, ok := FormatChangePatch("f.txt", "aa\nbb\ncc", types.ContentChange{
		RangeOffset: 2, RangeLength: 1, Text: "",
	}, PatchOptions{})
	assert.True(t, ok, "patch produced")
	assert.Contains(t, patch, "@@ -1,3 +1,2 @@", "hunk header reflects the join")
	assert.Contains(t, patch, "-aa\n-bb\n+aabb", "joined line")
	assert.Contains(t, patch, " cc", "trailing context")
}

func TestFormatChangePatchNoOp(t *testing.T) {
	_, ok := FormatChangePatch("f.txt", "alpha\nbravo", types.ContentChange{
		RangeOffset: 6, RangeLength: 5, Text: "bravo",
	}, PatchOptions{})
	assert.False(t, ok, "identical replacement reports nothing")
}

func TestFormatChangePatchInvalidRange(t *testing.T) {
	_, ok := FormatChangePatch("f.txt", "short", types.ContentChange{
		RangeOffset: 2, RangeLength: 10, Text: "x",
	}, PatchOptions{})
	assert.False(t, ok, "range past the end yields nothing")

	_, ok = FormatChangePatch("f.txt", "short", types.ContentChange{
		RangeOffset: -1, RangeLength: 1, Text: "x",
	}, PatchOptions{})
	assert.False(t, ok, "negative offset yields nothing")
}

func TestFormatChangePatchTruncationBound(t *testing.T) {
	source := "alpha\nbravo\ncharlie\ndelta\necho"
	change := types.ContentChange{RangeOffset: 12, RangeLength: 7, Text: "charged"}

	patch, ok := FormatChangePatch("main.go", source, change, PatchOptions{MaxChars: 120})
	assert.True(t, ok, "patch produced")
	assert.LessOrEqual(t, len(patch), 120, "budget respected")
	assert.Contains(t, patch, "Index: main.go", "header survives truncation")
	assert.Contains(t, patch, "@@ -1,5 +1,5 @@", "cut lands on a line boundary")
	assert.Contains(t, patch, "...[truncated]", "truncation marker")
	assert.NotContains(t, patch, "+charged", "body tail dropped")
}

func TestFormatChangePatchHeaderOnlyFallback(t *testing.T) {
	source := "alpha\nbravo\ncharlie\ndelta\necho"
	change := types.ContentChange{RangeOffset: 12, RangeLength: 7, Text: "charged"}

	patch, ok := FormatChangePatch("main.go", source, change, PatchOptions{MaxChars: 20})
	assert.True(t, ok, "patch produced")
	assert.Equal(t, "Index: main.go", patch, "nothing but the header fits")
}

func TestFormatChangePatchContextLines(t *testing.T) {
	source := "l1\nl2\nl3\nl4\nl5\nl6\nl7"
	patch, ok := FormatChangePatch("f.txt", source, types.ContentChange{
		RangeOffset: 9, RangeLength: 2, Text: "L4",
	}, PatchOptions{ContextLines: 1})
	assert.True(t, ok, "patch produced")
	assert.Contains(t, patch, "@@ -3,3 +3,3 @@", "single context line each side")
	assert.NotContains(t, patch, " l2", "second line above excluded")
	assert.Contains(t, patch, " l3", "line above included")
	assert.Contains(t, patch, " l5", "line below included")
}
