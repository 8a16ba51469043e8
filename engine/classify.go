package engine

import (
	"strings"

	"nextedit/types"
)

// jumpBandPadding widens the edit's line span when deciding whether the
// cursor is close enough for an inline render.
const jumpBandPadding = 2

// Classifier reasons, reported alongside every decision.
const (
	ReasonFarFromCursor          = "far-from-cursor"
	ReasonBeforeCursorMultiline  = "before-cursor-multiline"
	ReasonBeforeCursorSingleLine = "before-cursor-single-line"
	ReasonSingleNewlineBoundary  = "single-newline-boundary"
	ReasonInlineSafe             = "inline-safe"
)

// ClassifyInput is everything the display classifier looks at. Lines are
// 0-indexed, offsets are byte indices.
type ClassifyInput struct {
	CursorLine    int
	CursorOffset  int
	EditStartLine int
	EditEndLine   int
	StartIndex    int
	Completion    string
	// OnSingleNewlineBoundary is true when the cursor sits immediately after
	// a newline and the following character is not itself a newline.
	OnSingleNewlineBoundary bool
}

// Classify decides how one candidate is presented. Pure, no memory between
// calls; the first matching rule wins. Edits outside the padded band around
// the cursor, or starting before it, cannot render as ghost text after the
// cursor and become jumps; a multiline edit right at a freshly typed
// newline would render ambiguously and is suppressed instead.
func Classify(in ClassifyInput) types.Classification {
	multiline := strings.Contains(in.Completion, "\n")

	if in.CursorLine < in.EditStartLine-jumpBandPadding || in.CursorLine > in.EditEndLine+jumpBandPadding {
		return types.Classification{Decision: types.DecisionJump, Reason: ReasonFarFromCursor}
	}
	if in.StartIndex < in.CursorOffset {
		if multiline {
			return types.Classification{Decision: types.DecisionJump, Reason: ReasonBeforeCursorMultiline}
		}
		return types.Classification{Decision: types.DecisionJump, Reason: ReasonBeforeCursorSingleLine}
	}
	if multiline && in.StartIndex == in.CursorOffset && in.OnSingleNewlineBoundary && abs(in.CursorLine-in.EditStartLine) <= 1 {
		return types.Classification{Decision: types.DecisionSuppress, Reason: ReasonSingleNewlineBoundary}
	}
	return types.Classification{Decision: types.DecisionInline, Reason: ReasonInlineSafe}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
