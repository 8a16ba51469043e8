package engine

import (
	"path/filepath"
	"strings"
	"time"

	"nextedit/types"
)

// GateConfig bounds when the engine is willing to request or show
// suggestions. Zero values disable the corresponding gate.
type GateConfig struct {
	ExcludedPaths     []string
	MaxFileSizeBytes  int
	MaxFileLines      int
	MaxAvgLineLength  int
	BulkEditChanges   int
	BulkEditChars     int
	BulkEditLines     int
	BulkEditCooldown  time.Duration
	SelectionCooldown time.Duration
}

// isBulkEdit reports whether one change event is too big to chase with a
// suggestion: a paste or refactor measured in chars or inserted lines, or a
// formatter-style burst of many simultaneous edits. Each change counts the
// larger of its removed and inserted span.
func (e *Engine) isBulkEdit(changes []types.ContentChange) bool {
	g := e.cfg.Gates
	if g.BulkEditChanges > 0 && len(changes) >= g.BulkEditChanges {
		return true
	}
	if g.BulkEditChars <= 0 && g.BulkEditLines <= 0 {
		return false
	}
	chars, lines := 0, 0
	for _, c := range changes {
		chars += max(c.RangeLength, len(c.Text))
		lines += strings.Count(c.Text, "\n")
	}
	if g.BulkEditChars > 0 && chars >= g.BulkEditChars {
		return true
	}
	return g.BulkEditLines > 0 && lines >= g.BulkEditLines
}

// Suppression reasons logged when a trigger or response is dropped.
const (
	gateDisabled        = "disabled"
	gateSnoozed         = "snoozed"
	gateNoActiveEditor  = "no-active-editor"
	gateEditorMismatch  = "editor-mismatch"
	gateUnfocused       = "editor-unfocused"
	gateReadOnly        = "read-only"
	gateSnippetActive   = "snippet-active"
	gateSelection       = "selection-active"
	gateRecentSelection = "recent-selection"
	gateRecentBulkEdit  = "recent-bulk-edit"
	gateExcludedPath    = "excluded-path"
	gateFileTooLarge    = "file-too-large"
	gateTooManyLines    = "too-many-lines"
	gateLongLines       = "long-lines"
)

// suppressionReason reports why no suggestion may be requested or shown
// right now, or "" when every gate passes. The engine consults it when a
// trigger arrives, again when the debounce timer fires, and once more
// before a response is rendered; any gate can start failing between those
// points.
func (e *Engine) suppressionReason(doc *types.DocumentSnapshot, st EditorState) string {
	if !e.enabled {
		return gateDisabled
	}
	now := e.clock.Now()
	if now.Before(e.snoozedUntil) {
		return gateSnoozed
	}
	if doc == nil || doc.URI == "" {
		return gateNoActiveEditor
	}
	if e.activeURI != "" && doc.URI != e.activeURI {
		return gateEditorMismatch
	}
	if !st.Focused {
		return gateUnfocused
	}
	if st.ReadOnly {
		return gateReadOnly
	}
	if st.SnippetActive {
		return gateSnippetActive
	}
	if st.MultilineSelection {
		return gateSelection
	}
	g := e.cfg.Gates
	if g.SelectionCooldown > 0 && !e.lastSelectionAt.IsZero() && now.Sub(e.lastSelectionAt) < g.SelectionCooldown {
		return gateRecentSelection
	}
	if g.BulkEditCooldown > 0 && !e.lastBulkEditAt.IsZero() && now.Sub(e.lastBulkEditAt) < g.BulkEditCooldown {
		return gateRecentBulkEdit
	}
	if pathExcluded(doc.URI, g.ExcludedPaths) {
		return gateExcludedPath
	}
	if g.MaxFileSizeBytes > 0 && len(doc.Text) > g.MaxFileSizeBytes {
		return gateFileTooLarge
	}
	if g.MaxFileLines > 0 || g.MaxAvgLineLength > 0 {
		lines := strings.Count(doc.Text, "\n") + 1
		if g.MaxFileLines > 0 && lines > g.MaxFileLines {
			return gateTooManyLines
		}
		// Minified and generated files pack everything into a few huge lines.
		if g.MaxAvgLineLength > 0 && len(doc.Text)/lines > g.MaxAvgLineLength {
			return gateLongLines
		}
	}
	return ""
}

// pathExcluded matches patterns against the file's base name and, for
// patterns that are plain substrings, against the whole path.
func pathExcluded(uri string, patterns []string) bool {
	if len(patterns) == 0 {
		return false
	}
	path := strings.TrimPrefix(uri, "file://")
	base := filepath.Base(path)
	for _, pat := range patterns {
		if ok, err := filepath.Match(pat, base); err == nil && ok {
			return true
		}
		if strings.Contains(path, pat) {
			return true
		}
	}
	return false
}
