package engine

import (
	"nextedit/text"
	"nextedit/types"
)

// pendingJump is a suggestion whose edit site is far enough from the cursor
// that only an indicator is shown; accepting it applies the edit and moves
// the cursor there.
type pendingJump struct {
	candidate  *types.Candidate
	targetLine int // 1-based buffer line the jump lands on
	cursorLine int // 0-based line the cursor was on when shown
}

// buildJumpGroups renders what accepting the candidate would change,
// widened to whole lines so the preview aligns with buffer rows. Returned
// group line numbers are 1-based buffer lines; targetLine is the first
// changed line, falling back to the candidate's start line when the diff
// comes back empty.
func buildJumpGroups(c *types.Candidate, doc *types.DocumentSnapshot) ([]*types.VisualGroup, int) {
	idx := text.NewLineIndex(doc.Text)
	startLine := idx.LineOf(c.StartIndex)
	endLine := idx.LineOf(c.EndIndex)
	regionStart := idx.Start(startLine)
	regionEnd := idx.ContentEnd(endLine)

	oldRegion := doc.Text[regionStart:regionEnd]
	newRegion := doc.Text[regionStart:c.StartIndex] + c.Completion + doc.Text[c.EndIndex:regionEnd]

	groups := text.BuildVisualGroups(text.ComputeDiff(oldRegion, newRegion))
	for _, g := range groups {
		g.StartLine += startLine
		g.EndLine += startLine
	}

	targetLine := startLine + 1
	if len(groups) > 0 {
		targetLine = groups[0].StartLine
	}
	return groups, targetLine
}
