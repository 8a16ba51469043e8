package engine

import (
	"sort"
	"time"

	"nextedit/text"
	"nextedit/types"
)

// HistoryConfig bounds how much recent-edit context is kept per file and
// across the workspace.
type HistoryConfig struct {
	MaxEntriesPerFile int
	MaxPatchChars     int
	ContextLines      int
	MaxFiles          int
}

type fileState struct {
	patches    []string
	lastAccess time.Time
}

// changeHistory accumulates unified patches for recent edits, grouped by
// file. Patches feed the provider request so the model sees what the user
// has been doing, not just where the cursor is.
type changeHistory struct {
	cfg   HistoryConfig
	clock Clock
	files map[string]*fileState
}

func newChangeHistory(cfg HistoryConfig, clock Clock) *changeHistory {
	return &changeHistory{cfg: cfg, clock: clock, files: make(map[string]*fileState)}
}

// Record captures one change against the pre-change source text of path.
// Changes that do not alter the text are skipped.
func (h *changeHistory) Record(path, source string, change types.ContentChange) {
	patch, ok := text.FormatChangePatch(path, source, change, text.PatchOptions{
		ContextLines: h.cfg.ContextLines,
		MaxChars:     h.cfg.MaxPatchChars,
	})
	if !ok {
		return
	}
	fs := h.files[path]
	if fs == nil {
		fs = &fileState{}
		h.files[path] = fs
	}
	fs.patches = append(fs.patches, patch)
	if max := h.cfg.MaxEntriesPerFile; max > 0 && len(fs.patches) > max {
		fs.patches = fs.patches[len(fs.patches)-max:]
	}
	fs.lastAccess = h.clock.Now()
	h.trim()
}

// RecentPatches flattens the history into request order: other files first,
// least recently touched to most, with the active file's patches last so
// they sit closest to the prompt's focus area.
func (h *changeHistory) RecentPatches(activePath string) []types.PatchEntry {
	others := make([]string, 0, len(h.files))
	for p := range h.files {
		if p != activePath {
			others = append(others, p)
		}
	}
	sort.Slice(others, func(i, j int) bool {
		ai, aj := h.files[others[i]].lastAccess, h.files[others[j]].lastAccess
		if ai.Equal(aj) {
			return others[i] < others[j]
		}
		return ai.Before(aj)
	})
	var out []types.PatchEntry
	for _, p := range others {
		for _, patch := range h.files[p].patches {
			out = append(out, types.PatchEntry{Path: p, Patch: patch})
		}
	}
	if fs := h.files[activePath]; fs != nil {
		for _, patch := range fs.patches {
			out = append(out, types.PatchEntry{Path: activePath, Patch: patch})
		}
	}
	return out
}

// trim drops the least recently touched files once more than MaxFiles carry
// history.
func (h *changeHistory) trim() {
	max := h.cfg.MaxFiles
	if max <= 0 || len(h.files) <= max {
		return
	}
	paths := make([]string, 0, len(h.files))
	for p := range h.files {
		paths = append(paths, p)
	}
	sort.Slice(paths, func(i, j int) bool {
		ai, aj := h.files[paths[i]].lastAccess, h.files[paths[j]].lastAccess
		if ai.Equal(aj) {
			return paths[i] < paths[j]
		}
		return ai.Before(aj)
	})
	for _, p := range paths[:len(paths)-max] {
		delete(h.files, p)
	}
}
