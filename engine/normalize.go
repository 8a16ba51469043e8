package engine

import (
	"strings"

	"nextedit/text"
	"nextedit/types"
)

// normalizeCandidate adapts a raw candidate to the document it will render
// against. Re-anchoring runs before suffix trimming; on short repetitive
// completions the opposite order produces a different result. Returns nil
// when the candidate fails shape checks or normalizes to a no-op.
func normalizeCandidate(c *types.Candidate, doc *types.DocumentSnapshot) *types.Candidate {
	if c == nil || doc == nil {
		return nil
	}
	if c.StartIndex < 0 || c.EndIndex < c.StartIndex || c.EndIndex > len(doc.Text) {
		return nil
	}
	out := *c

	// Re-anchor at the cursor when it lies strictly inside the candidate's
	// matching prefix: the user already has that prefix, so the candidate
	// starts where the cursor is and loses the matched part.
	if out.StartIndex < doc.CursorOffset && doc.CursorOffset <= out.StartIndex+len(out.Completion) {
		matched := doc.Text[out.StartIndex:min(doc.CursorOffset, len(doc.Text))]
		if strings.HasPrefix(out.Completion, matched) {
			out.Completion = out.Completion[len(matched):]
			out.StartIndex = doc.CursorOffset
			if out.EndIndex < out.StartIndex {
				out.EndIndex = out.StartIndex
			}
		}
	}

	// Trim the completion tail that duplicates the text directly after the
	// replaced range, so ghost text never re-renders what is already there.
	out.Completion = trimSuffixOverlap(out.Completion, doc.Text[out.EndIndex:])

	if out.Completion == "" {
		return nil
	}
	replaced := doc.Text[out.StartIndex:out.EndIndex]
	if strings.Trim(replaced, "\n") == strings.Trim(out.Completion, "\n") {
		return nil
	}
	return &out
}

// trimSuffixOverlap removes the longest completion tail that exactly matches
// the upcoming document text.
func trimSuffixOverlap(completion, following string) string {
	limit := min(len(completion), len(following))
	for k := limit; k > 0; k-- {
		if completion[len(completion)-k:] == following[:k] {
			return completion[:len(completion)-k]
		}
	}
	return completion
}

// typedSince isolates what the user inserted at the snapshot's cursor by
// diffing the snapshot text against the current text. ok is false when the
// document changed in any way other than a single insertion at that cursor.
func typedSince(snap, cur *types.DocumentSnapshot) (string, bool) {
	if snap == nil || cur == nil || len(cur.Text) < len(snap.Text) {
		return "", false
	}
	p := snap.CursorOffset
	if p < 0 || p > len(snap.Text) {
		return "", false
	}
	span := text.TrimCommonAffixes(snap.Text, cur.Text)
	if span.OldChanged != "" {
		return "", false
	}
	typed := span.NewChanged
	if cur.Text != snap.Text[:p]+typed+snap.Text[p:] {
		return "", false
	}
	return typed, true
}

// extendStale adapts a response computed against snap to the current
// document. The part of the primary candidate the user has since typed is
// sliced off and the remainder re-anchors at the live cursor; every other
// candidate's offsets shift through the insertion. Returns nil when the
// typed text diverges from the candidate, which makes the whole response
// irreconcilable.
func extendStale(resp *types.SuggestionResponse, snap, cur *types.DocumentSnapshot) *types.SuggestionResponse {
	if resp == nil || len(resp.Candidates) == 0 || snap == nil || cur == nil {
		return nil
	}
	if snap.URI != cur.URI {
		return nil
	}
	typed, ok := typedSince(snap, cur)
	if !ok {
		return nil
	}
	if typed == "" {
		return resp
	}

	first := resp.Candidates[0]
	if first.StartIndex != snap.CursorOffset || !strings.HasPrefix(first.Completion, typed) {
		return nil
	}

	change := types.ContentChange{RangeOffset: snap.CursorOffset, RangeLength: 0, Text: typed}
	out := &types.SuggestionResponse{}
	for i, c := range resp.Candidates {
		cc := *c
		span := text.Transform(types.TrackedOffsets{Start: cc.StartIndex, End: cc.EndIndex}, change)
		cc.StartIndex, cc.EndIndex = span.Start, span.End
		if i == 0 {
			cc.Completion = cc.Completion[len(typed):]
			if cc.Completion == "" {
				// the user typed the whole candidate out
				continue
			}
		}
		out.Candidates = append(out.Candidates, &cc)
	}
	if len(out.Candidates) == 0 {
		return nil
	}
	return out
}
