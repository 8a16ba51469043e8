package text

import (
	"fmt"
	"strings"

	"nextedit/types"
)

const (
	patchSeparator   = "==================================================================="
	truncationMarker = "...[truncated]"
)

// PatchOptions controls FormatChangePatch output.
type PatchOptions struct {
	ContextLines int // unchanged lines on each side, <= 0 means 2
	MaxChars     int // output budget, 0 = unlimited
}

// FormatChangePatch renders one content change against its pre-change source
// as a patch-style text: an "Index:" header, a separator, one hunk with
// context. Returns ok=false for no-op changes and for ranges outside the
// source. Output over MaxChars is cut at a line boundary and marked
// truncated, keeping the header; if nothing else fits, the header alone is
// returned.
func FormatChangePatch(path, source string, change types.ContentChange, opts PatchOptions) (string, bool) {
	if change.RangeOffset < 0 || change.RangeLength < 0 || change.End() > len(source) {
		return "", false
	}
	deleted := source[change.RangeOffset:change.End()]
	if deleted == change.Text {
		return "", false
	}

	ctx := opts.ContextLines
	if ctx <= 0 {
		ctx = 2
	}

	ix := NewLineIndex(source)
	firstLine := ix.LineOf(change.RangeOffset)
	lastLine := ix.LineOf(change.End())

	// Full source lines covering the changed region, and what they become.
	oldRegion := source[ix.Start(firstLine):ix.ContentEnd(lastLine)]
	oldLines := strings.Split(oldRegion, "\n")
	prefix := source[ix.Start(firstLine):change.RangeOffset]
	suffix := source[change.End():ix.ContentEnd(lastLine)]
	newLines := strings.Split(prefix+change.Text+suffix, "\n")

	ctxStart := max(0, firstLine-ctx)
	ctxEnd := min(ix.Count()-1, lastLine+ctx)

	oldStart := ctxStart + 1
	oldCount := ctxEnd - ctxStart + 1
	newCount := oldCount - len(oldLines) + len(newLines)

	var b strings.Builder
	b.WriteString("Index: " + path + "\n")
	b.WriteString(patchSeparator + "\n")
	fmt.Fprintf(&b, "@@ -%d,%d +%d,%d @@", oldStart, oldCount, oldStart, newCount)
	for l := ctxStart; l < firstLine; l++ {
		b.WriteString("\n " + ix.Line(l))
	}
	for _, l := range oldLines {
		b.WriteString("\n-" + l)
	}
	for _, l := range newLines {
		b.WriteString("\n+" + l)
	}
	for l := lastLine + 1; l <= ctxEnd; l++ {
		b.WriteString("\n " + ix.Line(l))
	}

	patch := b.String()
	if opts.MaxChars > 0 && len(patch) > opts.MaxChars {
		patch = truncatePatch(patch, path, opts.MaxChars)
	}
	return patch, true
}

// truncatePatch cuts the patch body at the last complete line within budget
// and appends the truncation marker. Falls back to the bare header when not
// even one body line plus marker fits.
func truncatePatch(patch, path string, maxChars int) string {
	header := "Index: " + path
	// limit is always below len(patch): the caller already knows the patch
	// exceeds maxChars.
	limit := maxChars - len(truncationMarker) - 1
	cut := -1
	if limit > 0 {
		cut = strings.LastIndexByte(patch[:limit], '\n')
	}
	if cut <= len(header) {
		return header
	}
	return patch[:cut] + "\n" + truncationMarker
}
