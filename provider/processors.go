package provider

import (
	"fmt"
	"strings"

	"nextedit/logger"
	"nextedit/types"
	"nextedit/utils"
)

// Windows smaller than this skip anchor validation; there is not enough
// material to misanchor in.
const minAnchorWindowLines = 10

// TrimContent cuts the document to a window around the cursor that fits the
// configured prompt token budget.
func TrimContent() Preprocessor {
	return func(p *Provider, pctx *Context) error {
		budget := 0
		if p.Config != nil {
			budget = p.Config.MaxTokens
		}
		trimmed, cursor, start, end, did := utils.TrimContentAroundCursor(
			pctx.Lines, pctx.Request.Snapshot.CursorLine, budget)
		pctx.TrimmedLines = trimmed
		pctx.CursorLine = cursor
		pctx.WindowStart = start
		pctx.WindowEnd = end
		if did {
			logger.Debug("%s: trimmed %d lines to window [%d,%d)", p.Name, len(pctx.Lines), start, end)
		}
		return nil
	}
}

// SkipIfTextAfterCursor skips the request when the cursor has text to its
// right on the current line. End-of-line completers produce garbage there.
func SkipIfTextAfterCursor() Preprocessor {
	return func(p *Provider, pctx *Context) error {
		doc := pctx.Request.Snapshot
		if doc.CursorLine < 0 || doc.CursorLine >= len(pctx.Lines) {
			return nil
		}
		if doc.CursorCol < len(pctx.Lines[doc.CursorLine]) {
			return ErrSkipSuggestion
		}
		return nil
	}
}

// RejectEmpty drops whitespace-only output.
func RejectEmpty() Postprocessor {
	return func(p *Provider, pctx *Context) (*types.SuggestionResponse, bool) {
		if strings.TrimSpace(pctx.Result.Text) == "" {
			logger.Debug("%s: empty completion rejected", p.Name)
			return nil, true
		}
		return nil, false
	}
}

// RejectTruncated drops output cut off by the generation limit. Used where a
// partial result cannot be salvaged, e.g. single-line completion.
func RejectTruncated() Postprocessor {
	return func(p *Provider, pctx *Context) (*types.SuggestionResponse, bool) {
		if pctx.Result.FinishReason == "length" {
			logger.Info("%s: truncated completion rejected (%d chars)", p.Name, len(pctx.Result.Text))
			return nil, true
		}
		return nil, false
	}
}

// DropLastLineIfTruncated salvages truncated multi-line output by cutting
// the incomplete final line and shrinking the covered region to match. A
// truncated single line is rejected outright.
func DropLastLineIfTruncated() Postprocessor {
	return func(p *Provider, pctx *Context) (*types.SuggestionResponse, bool) {
		if pctx.Result.FinishReason != "length" {
			return nil, false
		}
		lines := strings.Split(pctx.Result.Text, "\n")
		if len(lines) < 2 {
			logger.Info("%s: truncated single-line completion rejected", p.Name)
			return nil, true
		}
		kept := lines[:len(lines)-1]
		pctx.Result.Text = strings.Join(kept, "\n")
		pctx.EndLineInc = pctx.WindowStart + len(kept)
		return nil, false
	}
}

// AnchorTruncation salvages truncated window rewrites: the incomplete final
// line is cut, the last surviving line is anchored back into the old window
// to find how far the rewrite got, and the output is rejected unless it
// covers at least threshold of the window.
func AnchorTruncation(threshold float64) Postprocessor {
	return func(p *Provider, pctx *Context) (*types.SuggestionResponse, bool) {
		if pctx.Result.FinishReason != "length" {
			return nil, false
		}
		lines := strings.Split(pctx.Result.Text, "\n")
		if len(lines) < 2 {
			logger.Info("%s: truncated rewrite too short to salvage", p.Name)
			return nil, true
		}
		kept := lines[:len(lines)-1]
		window := pctx.Lines[pctx.WindowStart:pctx.WindowEnd]

		covered := len(kept)
		if idx := findAnchorLine(kept[len(kept)-1], window, len(kept)-1); idx >= 0 {
			covered = idx + 1
		}
		if len(window) > 0 && float64(covered) < threshold*float64(len(window)) {
			logger.Info("%s: truncated rewrite covers %d/%d window lines, rejected",
				p.Name, covered, len(window))
			return nil, true
		}

		pctx.Result.Text = strings.Join(kept, "\n")
		pctx.EndLineInc = pctx.WindowStart + covered
		return nil, false
	}
}

// ValidateAnchorPosition rejects rewrites whose first line anchors too deep
// into the window. A rewrite that starts far from the window top usually
// means the model dropped the leading lines, which would delete them.
func ValidateAnchorPosition(maxRatio float64) Postprocessor {
	return func(p *Provider, pctx *Context) (*types.SuggestionResponse, bool) {
		window := pctx.Lines[pctx.WindowStart:pctx.WindowEnd]
		if len(window) < minAnchorWindowLines {
			return nil, false
		}
		first, _, _ := strings.Cut(pctx.Result.Text, "\n")
		idx := findAnchorLine(first, window, 0)
		if idx > int(maxRatio*float64(len(window))) {
			logger.Debug("%s: first line anchors at %d/%d, rejected", p.Name, idx, len(window))
			return nil, true
		}
		return nil, false
	}
}

// findAnchorLine locates needle in oldLines, preferring positions near
// expectedPos: exact match nearby, then exact match anywhere, then a
// near-match within the same neighborhood. Returns -1 when nothing anchors.
func findAnchorLine(needle string, oldLines []string, expectedPos int) int {
	const radius = 3
	for d := 0; d <= radius; d++ {
		for _, i := range []int{expectedPos - d, expectedPos + d} {
			if i >= 0 && i < len(oldLines) && oldLines[i] == needle {
				return i
			}
		}
	}
	if i := findAnchorLineFullSearch(needle, oldLines); i >= 0 {
		return i
	}
	for d := 0; d <= radius; d++ {
		for _, i := range []int{expectedPos - d, expectedPos + d} {
			if i >= 0 && i < len(oldLines) && lineSimilar(needle, oldLines[i]) {
				return i
			}
		}
	}
	return -1
}

func findAnchorLineFullSearch(needle string, oldLines []string) int {
	for i, l := range oldLines {
		if l == needle {
			return i
		}
	}
	return -1
}

// lineSimilar accepts lines sharing at least half their length as a common
// prefix. Catches small in-line edits without a full diff.
func lineSimilar(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	n := min(len(a), len(b))
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i*2 >= max(len(a), len(b))
}

// IsNoOpReplacement reports whether newLines and oldLines are the same text
// modulo trailing whitespace and trailing empty lines.
func IsNoOpReplacement(newLines, oldLines []string) bool {
	n := strings.TrimRight(strings.Join(newLines, "\n"), " \t\n\r")
	o := strings.TrimRight(strings.Join(oldLines, "\n"), " \t\n\r")
	return n == o
}

// PatchHistoryOptions controls how recent-edit patches are rendered into a
// prompt section.
type PatchHistoryOptions struct {
	HeaderTemplate string // fmt template receiving the file path
	Prefix         string
	Suffix         string
	Separator      string
	BodyOnly       bool // strip each patch's own Index header
}

// FormatPatchHistory renders recent-edit patches for a prompt. Empty patches
// are skipped.
func FormatPatchHistory(opts PatchHistoryOptions) func([]types.PatchEntry) string {
	return func(entries []types.PatchEntry) string {
		var b strings.Builder
		first := true
		for _, e := range entries {
			patch := e.Patch
			if opts.BodyOnly {
				patch = patchHunk(patch)
			}
			if patch == "" {
				continue
			}
			if !first {
				b.WriteString(opts.Separator)
			}
			first = false
			fmt.Fprintf(&b, opts.HeaderTemplate, e.Path)
			b.WriteString(opts.Prefix)
			b.WriteString(patch)
			b.WriteString(opts.Suffix)
		}
		return b.String()
	}
}

// patchHunk strips a patch's Index header and separator line, leaving the
// hunk itself.
func patchHunk(patch string) string {
	if !strings.HasPrefix(patch, "Index: ") {
		return patch
	}
	_, rest, ok := strings.Cut(patch, "\n")
	if !ok {
		return ""
	}
	sep, body, ok := strings.Cut(rest, "\n")
	if !ok || !strings.HasPrefix(sep, "===") {
		return patch
	}
	return body
}
