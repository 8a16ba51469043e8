package text

import (
	"testing"

	"nextedit/assert"
)

func TestComputeDiffEqualTexts(t *testing.T) {
	res := ComputeDiff("a\nb", "a\nb")
	assert.Len(t, 0, res.Changes, "no changes")
}

func TestComputeDiffModification(t *testing.T) {
	res := ComputeDiff("a\nb\nc", "a\nB\nc")
	assert.Len(t, 1, res.Changes, "one changed line")
	ch := res.Changes[0]
	assert.Equal(t, LineModification, ch.Type, "change type")
	assert.Equal(t, 2, ch.OldLineNum, "old line")
	assert.Equal(t, 2, ch.NewLineNum, "new line")
	assert.Equal(t, "b", ch.OldContent, "old content")
	assert.Equal(t, "B", ch.NewContent, "new content")
}

func TestComputeDiffAddition(t *testing.T) {
	res := ComputeDiff("a\nc", "a\nb\nc")
	assert.Len(t, 1, res.Changes, "one added line")
	ch := res.Changes[0]
	assert.Equal(t, LineAddition, ch.Type, "change type")
	assert.Equal(t, 2, ch.NewLineNum, "new line")
	assert.Equal(t, 0, ch.OldLineNum, "no old line")
	assert.Equal(t, "b", ch.NewContent, "content")
}

func TestComputeDiffDeletion(t *testing.T) {
	res := ComputeDiff("a\nb\nc", "a\nc")
	assert.Len(t, 1, res.Changes, "one deleted line")
	ch := res.Changes[0]
	assert.Equal(t, LineDeletion, ch.Type, "change type")
	assert.Equal(t, 2, ch.OldLineNum, "old line")
	assert.Equal(t, 0, ch.NewLineNum, "no new line")
	assert.Equal(t, "b", ch.OldContent, "content")
}

func TestComputeDiffReplacementPairsLines(t *testing.T) {
	res := ComputeDiff("a\nb1\nb2\nc", "a\nB\nc")
	assert.Len(t, 2, res.Changes, "modification plus deletion")
	assert.Equal(t, LineModification, res.Changes[0].Type, "paired line modifies")
	assert.Equal(t, "b1", res.Changes[0].OldContent, "old paired content")
	assert.Equal(t, "B", res.Changes[0].NewContent, "new paired content")
	assert.Equal(t, LineDeletion, res.Changes[1].Type, "excess old line deleted")
	assert.Equal(t, "b2", res.Changes[1].OldContent, "deleted content")
	assert.Equal(t, 3, res.Changes[1].OldLineNum, "deleted old line")
}

func TestBuildVisualGroupsConsecutiveRuns(t *testing.T) {
	res := ComputeDiff("a\nb\nc\nd\n", "a\nB\nC\nd\nE\n")
	groups := BuildVisualGroups(res)
	assert.Len(t, 2, groups, "modification run and addition")
	assert.Equal(t, "modification", groups[0].Type, "first group type")
	assert.Equal(t, 2, groups[0].StartLine, "modification start")
	assert.Equal(t, 3, groups[0].EndLine, "modification end")
	assert.Equal(t, []string{"B", "C"}, groups[0].Lines, "new lines")
	assert.Equal(t, []string{"b", "c"}, groups[0].OldLines, "old lines")
	assert.Equal(t, "addition", groups[1].Type, "second group type")
	assert.Equal(t, 5, groups[1].StartLine, "addition line")
	assert.Equal(t, []string{"E"}, groups[1].Lines, "added line")
}

func TestBuildVisualGroupsDeletion(t *testing.T) {
	res := ComputeDiff("a\nb\nc\n", "a\nc\n")
	groups := BuildVisualGroups(res)
	assert.Len(t, 1, groups, "single deletion group")
	assert.Equal(t, "deletion", groups[0].Type, "group type")
	assert.Equal(t, 2, groups[0].StartLine, "deleted old line")
	assert.Equal(t, []string{"b"}, groups[0].OldLines, "deleted content")
	assert.Nil(t, groups[0].Lines, "no new content")
}

func TestBuildVisualGroupsSplitsNonAdjacent(t *testing.T) {
	res := ComputeDiff("a\nb\nc\nd\ne\n", "a\nB\nc\nD\ne\n")
	groups := BuildVisualGroups(res)
	assert.Len(t, 2, groups, "gap splits groups")
	assert.Equal(t, 2, groups[0].StartLine, "first modification")
	assert.Equal(t, 4, groups[1].StartLine, "second modification")
}
