// Package buffer adapts a running Neovim instance to the engine's Buffer
// interface over msgpack RPC. The active buffer is mirrored into local state
// through nvim_buf_attach events, so engine reads never round-trip to the
// editor; suggestions render back through extmarks.
package buffer

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/neovim/go-client/nvim"

	"nextedit/engine"
	"nextedit/logger"
	"nextedit/text"
	"nextedit/types"
)

const (
	namespaceName = "nextedit"

	// EventMethod is the RPC notification the editor side sends editor
	// events on: rpcnotify(chan, EventMethod, name, payload).
	EventMethod = "nextedit_event"

	ghostHighlight   = "NextEditGhost"
	replaceHighlight = "NextEditReplace"
	jumpHighlight    = "NextEditJump"
	jumpLabel        = "⇥ next edit"

	maxRecentViews   = 8
	recentViewRadius = 12
	maxPreviewLines  = 6

	defaultSnooze = 5 * time.Minute
)

type recentView struct {
	path      string
	startLine int // 1-indexed
	lines     []string
	seenAt    time.Time
}

// NvimBuffer mirrors the current buffer and cursor into shadow state and
// implements engine.Buffer on top of it. RPC handlers run on go-client
// dispatch goroutines and engine calls arrive from the engine loop; the
// mutex covers everything both sides touch.
type NvimBuffer struct {
	nv   *nvim.Nvim
	ns   int
	sink func(engine.Event)

	mu       sync.Mutex
	buf      nvim.Buffer
	attached bool
	path     string
	version  int
	lines    []string
	curLine  int // 0-indexed
	curCol   int // 0-indexed byte column

	focused   bool
	readOnly  bool
	selecting bool
	popupOpen bool

	recent []recentView
}

// New prepares an adapter on the given connection. Register must be called
// before the editor starts sending events.
func New(nv *nvim.Nvim) (*NvimBuffer, error) {
	ns, err := nv.CreateNamespace(namespaceName)
	if err != nil {
		return nil, fmt.Errorf("create namespace: %w", err)
	}
	return &NvimBuffer{nv: nv, ns: ns, focused: true}, nil
}

// Register installs the RPC handlers and starts forwarding engine events to
// sink.
func (b *NvimBuffer) Register(sink func(engine.Event)) error {
	b.sink = sink
	handlers := map[string]any{
		EventMethod:                  b.handleEditorEvent,
		"nvim_buf_lines_event":       b.handleLinesEvent,
		"nvim_buf_changedtick_event": b.handleChangedtick,
		"nvim_buf_detach_event":      b.handleDetach,
	}
	for method, fn := range handlers {
		if err := b.nv.RegisterHandler(method, fn); err != nil {
			return fmt.Errorf("register %s: %w", method, err)
		}
	}
	return nil
}

func (b *NvimBuffer) emit(ev engine.Event) {
	if b.sink != nil {
		b.sink(ev)
	}
}

// handleEditorEvent receives named events from the editor side. Payload keys
// are event specific; unknown events are dropped.
func (b *NvimBuffer) handleEditorEvent(name string, payload map[string]any) {
	switch name {
	case "buf_enter":
		uri, err := b.switchBuffer()
		if err != nil {
			logger.Warn("buffer: switch failed: %v", err)
			return
		}
		b.emit(engine.Event{Type: engine.EventEditorChanged, Data: engine.EditorChangedData{URI: uri}})
	case "cursor_moved":
		line := payloadInt(payload, "line") - 1 // editor rows are 1-indexed
		col := payloadInt(payload, "col")
		off := b.setCursor(line, col)
		b.emit(engine.Event{Type: engine.EventCursorMoved, Data: engine.CursorMovedData{Line: line, Col: col, Offset: off}})
	case "focus_changed":
		focused := payloadBool(payload, "focused")
		b.mu.Lock()
		b.focused = focused
		b.mu.Unlock()
		b.emit(engine.Event{Type: engine.EventFocusChanged, Data: engine.FocusChangedData{Focused: focused}})
	case "selection_changed":
		multiline := payloadBool(payload, "multiline")
		b.mu.Lock()
		b.selecting = multiline
		b.mu.Unlock()
		b.emit(engine.Event{Type: engine.EventSelectionChanged, Data: engine.SelectionChangedData{Multiline: multiline}})
	case "pum_changed":
		// Completion popup state only gates suggestions; no engine event.
		b.mu.Lock()
		b.popupOpen = payloadBool(payload, "visible")
		b.mu.Unlock()
	case "yank":
		// Retrieval context only; no engine event.
		b.stashYank(payloadInt(payload, "line_start"), payloadInt(payload, "line_end"), time.Now())
	case "snooze":
		d := time.Duration(payloadInt(payload, "minutes")) * time.Minute
		if d <= 0 {
			d = defaultSnooze
		}
		b.emit(engine.Event{Type: engine.EventSnooze, Data: engine.SnoozeData{Duration: d}})
	case "set_enabled":
		b.emit(engine.Event{Type: engine.EventSetEnabled, Data: engine.SetEnabledData{Enabled: payloadBool(payload, "enabled")}})
	case "trigger", "tab", "esc":
		b.emit(engine.Event{Type: engine.EventTypeFromString(name)})
	default:
		logger.Debug("buffer: unhandled event %q", name)
	}
}

// switchBuffer makes the editor's current buffer the mirrored one: the old
// buffer is detached and stashed as retrieval context, the new one read and
// attached. Special buffers (buftype set) clear the active document instead.
func (b *NvimBuffer) switchBuffer() (string, error) {
	buf, err := b.nv.CurrentBuffer()
	if err != nil {
		return "", fmt.Errorf("current buffer: %w", err)
	}

	b.mu.Lock()
	if b.attached && b.buf == buf {
		uri := "file://" + b.path
		b.mu.Unlock()
		return uri, nil
	}
	prev := b.buf
	prevAttached := b.attached
	b.stashRecentViewLocked(time.Now())
	b.mu.Unlock()

	if prevAttached {
		if _, err := b.nv.DetachBuffer(prev); err != nil {
			logger.Debug("buffer: detach %d: %v", int(prev), err)
		}
	}

	var (
		name       string
		raw        [][]byte
		modifiable bool
		readonly   bool
		buftype    string
	)
	batch := b.nv.NewBatch()
	batch.BufferName(buf, &name)
	batch.BufferLines(buf, 0, -1, true, &raw)
	batch.BufferOption(buf, "modifiable", &modifiable)
	batch.BufferOption(buf, "readonly", &readonly)
	batch.BufferOption(buf, "buftype", &buftype)
	if err := batch.Execute(); err != nil {
		return "", fmt.Errorf("read buffer state: %w", err)
	}

	if buftype != "" || name == "" {
		b.mu.Lock()
		b.attached = false
		b.path = ""
		b.lines = nil
		b.mu.Unlock()
		return "", nil
	}

	win, err := b.nv.CurrentWindow()
	if err != nil {
		return "", fmt.Errorf("current window: %w", err)
	}
	cur, err := b.nv.WindowCursor(win)
	if err != nil {
		return "", fmt.Errorf("window cursor: %w", err)
	}

	if _, err := b.nv.AttachBuffer(buf, false, map[string]any{}); err != nil {
		return "", fmt.Errorf("attach buffer: %w", err)
	}

	b.mu.Lock()
	b.buf = buf
	b.attached = true
	b.path = name
	b.version = 0
	b.lines = toStrings(raw)
	b.curLine = cur[0] - 1
	b.curCol = cur[1]
	b.readOnly = readonly || !modifiable
	b.mu.Unlock()

	logger.Debug("buffer: attached %s (%d lines)", name, len(raw))
	return "file://" + name, nil
}

func (b *NvimBuffer) setCursor(line, col int) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	line = max(0, line)
	col = max(0, col)
	b.curLine, b.curCol = line, col

	off := 0
	for i := 0; i < line && i < len(b.lines); i++ {
		off += len(b.lines[i]) + 1
	}
	if line < len(b.lines) {
		off += min(col, len(b.lines[line]))
	}
	return min(off, textLength(b.lines))
}

// handleLinesEvent splices a whole-line change into the shadow and forwards
// it as a byte-offset content change.
func (b *NvimBuffer) handleLinesEvent(v *nvim.Nvim, buf nvim.Buffer, changedtick int64, firstline, lastline int64, linedata [][]byte, more bool) {
	b.mu.Lock()
	if !b.attached || buf != b.buf {
		b.mu.Unlock()
		return
	}
	first := int(firstline)
	last := int(lastline)
	if last < 0 { // full refresh
		last = len(b.lines)
	}
	first = max(0, min(first, len(b.lines)))
	last = max(first, min(last, len(b.lines)))

	repl := toStrings(linedata)
	change := lineSpanChange(b.lines, first, last, repl)
	b.lines = spliceLines(b.lines, first, last, repl)
	b.version = int(changedtick)
	uri := "file://" + b.path
	version := b.version
	b.mu.Unlock()

	if change.RangeLength == 0 && change.Text == "" {
		return
	}
	b.emit(engine.Event{Type: engine.EventTextChanged, Data: engine.TextChangedData{
		URI:     uri,
		Version: version,
		Changes: []types.ContentChange{change},
	}})
}

func (b *NvimBuffer) handleChangedtick(v *nvim.Nvim, buf nvim.Buffer, changedtick int64) {
	b.mu.Lock()
	if b.attached && buf == b.buf {
		b.version = int(changedtick)
	}
	b.mu.Unlock()
}

func (b *NvimBuffer) handleDetach(v *nvim.Nvim, buf nvim.Buffer) {
	b.mu.Lock()
	if buf == b.buf {
		b.attached = false
	}
	b.mu.Unlock()
}

// lineSpanChange expresses replacing old[firstline:lastline] with repl as a
// single byte-offset replacement against the joined text of old.
func lineSpanChange(old []string, firstline, lastline int, repl []string) types.ContentChange {
	firstline = max(0, min(firstline, len(old)))
	lastline = max(firstline, min(lastline, len(old)))

	if firstline == len(old) { // pure append
		t := strings.Join(repl, "\n")
		if len(repl) > 0 && len(old) > 0 {
			t = "\n" + t
		}
		return types.ContentChange{RangeOffset: textLength(old), RangeLength: 0, Text: t}
	}

	start := lineStartOffset(old, firstline)
	var end int
	var newText string
	if lastline < len(old) {
		end = lineStartOffset(old, lastline)
		if len(repl) > 0 {
			newText = strings.Join(repl, "\n") + "\n"
		}
	} else {
		end = textLength(old)
		if len(repl) > 0 {
			newText = strings.Join(repl, "\n")
		} else if firstline > 0 {
			// Deleting through EOF removes the newline before the span too.
			start--
		}
	}
	return types.ContentChange{RangeOffset: start, RangeLength: end - start, Text: newText}
}

func spliceLines(old []string, firstline, lastline int, repl []string) []string {
	out := make([]string, 0, len(old)-(lastline-firstline)+len(repl))
	out = append(out, old[:firstline]...)
	out = append(out, repl...)
	out = append(out, old[lastline:]...)
	return out
}

func lineStartOffset(lines []string, line int) int {
	off := 0
	for i := 0; i < line; i++ {
		off += len(lines[i]) + 1
	}
	return off
}

func textLength(lines []string) int {
	if len(lines) == 0 {
		return 0
	}
	n := len(lines) - 1
	for _, l := range lines {
		n += len(l)
	}
	return n
}

// Snapshot returns the mirrored document, or nil when no file buffer is
// active.
func (b *NvimBuffer) Snapshot() (*types.DocumentSnapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached || b.path == "" {
		return nil, nil
	}

	joined := strings.Join(b.lines, "\n")
	line := min(b.curLine, max(0, len(b.lines)-1))
	col := b.curCol
	if line < len(b.lines) {
		col = min(col, len(b.lines[line]))
	}
	ix := text.NewLineIndex(joined)
	return &types.DocumentSnapshot{
		URI:          "file://" + b.path,
		Version:      b.version,
		Text:         joined,
		CursorLine:   line,
		CursorCol:    col,
		CursorOffset: min(ix.Start(line)+col, len(joined)),
	}, nil
}

func (b *NvimBuffer) State() (engine.EditorState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return engine.EditorState{
		Focused:            b.focused,
		ReadOnly:           b.readOnly,
		MultilineSelection: b.selecting,
		SnippetActive:      b.popupOpen,
	}, nil
}

// ShowInline renders a candidate as ghost text: the first line inline at the
// edit position, remaining lines below it. Replaced text is highlighted.
func (b *NvimBuffer) ShowInline(c *types.Candidate) error {
	b.mu.Lock()
	buf, ns, attached := b.buf, b.ns, b.attached
	joined := strings.Join(b.lines, "\n")
	b.mu.Unlock()
	if !attached {
		return nil
	}

	ix := text.NewLineIndex(joined)
	startLine := ix.LineOf(c.StartIndex)
	startCol := c.StartIndex - ix.Start(startLine)
	first, rest, _ := strings.Cut(c.Completion, "\n")

	opts := map[string]any{}
	if first != "" {
		opts["virt_text"] = []any{[]any{first, ghostHighlight}}
		opts["virt_text_pos"] = "inline"
	}
	if rest != "" {
		var virtLines []any
		for _, l := range strings.Split(rest, "\n") {
			virtLines = append(virtLines, []any{[]any{l, ghostHighlight}})
		}
		opts["virt_lines"] = virtLines
	}

	batch := b.nv.NewBatch()
	batch.ClearBufferNamespace(buf, ns, 0, -1)
	var id int
	batch.SetBufferExtmark(buf, ns, startLine, startCol, opts, &id)
	if c.EndIndex > c.StartIndex {
		endLine := ix.LineOf(c.EndIndex)
		endCol := c.EndIndex - ix.Start(endLine)
		var hlID int
		batch.SetBufferExtmark(buf, ns, startLine, startCol, map[string]any{
			"hl_group": replaceHighlight,
			"end_row":  endLine,
			"end_col":  endCol,
		}, &hlID)
	}
	if err := batch.Execute(); err != nil {
		return fmt.Errorf("show inline: %w", err)
	}
	return nil
}

// ShowJump marks the target line and previews the pending change below it.
// line is 1-based.
func (b *NvimBuffer) ShowJump(line int, groups []*types.VisualGroup) error {
	b.mu.Lock()
	buf, ns, attached := b.buf, b.ns, b.attached
	lineCount := len(b.lines)
	b.mu.Unlock()
	if !attached {
		return nil
	}
	line = max(0, min(line-1, lineCount-1))

	opts := map[string]any{
		"virt_text":     []any{[]any{jumpLabel, jumpHighlight}},
		"virt_text_pos": "eol",
	}
	if preview := previewLines(groups); len(preview) > 0 {
		var virtLines []any
		for _, l := range preview {
			virtLines = append(virtLines, []any{[]any{l, ghostHighlight}})
		}
		opts["virt_lines"] = virtLines
	}

	batch := b.nv.NewBatch()
	batch.ClearBufferNamespace(buf, ns, 0, -1)
	var id int
	batch.SetBufferExtmark(buf, ns, line, 0, opts, &id)
	if err := batch.Execute(); err != nil {
		return fmt.Errorf("show jump: %w", err)
	}
	return nil
}

func previewLines(groups []*types.VisualGroup) []string {
	var out []string
	for _, g := range groups {
		switch g.Type {
		case "deletion":
			for _, l := range g.OldLines {
				out = append(out, "- "+l)
			}
		default:
			for _, l := range g.Lines {
				out = append(out, "+ "+l)
			}
		}
	}
	if len(out) > maxPreviewLines {
		out = out[:maxPreviewLines]
	}
	return out
}

func (b *NvimBuffer) ClearUI() error {
	b.mu.Lock()
	buf, attached := b.buf, b.attached
	b.mu.Unlock()
	if !attached {
		return nil
	}
	if err := b.nv.ClearBufferNamespace(buf, b.ns, 0, -1); err != nil {
		return fmt.Errorf("clear ui: %w", err)
	}
	return nil
}

// ApplyEdit replaces [start, end) with newText in the editor. The shadow is
// not touched here: the resulting lines event updates it, which is also what
// echoes the change back into the engine.
func (b *NvimBuffer) ApplyEdit(start, end int, newText string) error {
	b.mu.Lock()
	buf, ns, attached := b.buf, b.ns, b.attached
	joined := strings.Join(b.lines, "\n")
	b.mu.Unlock()
	if !attached {
		return fmt.Errorf("apply edit: no attached buffer")
	}

	start = max(0, min(start, len(joined)))
	end = max(start, min(end, len(joined)))

	ix := text.NewLineIndex(joined)
	startRow := ix.LineOf(start)
	startCol := start - ix.Start(startRow)
	endRow := ix.LineOf(end)
	endCol := end - ix.Start(endRow)

	batch := b.nv.NewBatch()
	batch.ClearBufferNamespace(buf, ns, 0, -1)
	batch.SetBufferText(buf, startRow, startCol, endRow, endCol, toBytes(strings.Split(newText, "\n")))
	if err := batch.Execute(); err != nil {
		b.resync()
		return fmt.Errorf("apply edit: %w", err)
	}
	return nil
}

// resync re-reads the buffer after a failed mutation so the shadow cannot
// stay diverged.
func (b *NvimBuffer) resync() {
	b.mu.Lock()
	buf, attached := b.buf, b.attached
	b.mu.Unlock()
	if !attached {
		return
	}
	raw, err := b.nv.BufferLines(buf, 0, -1, true)
	if err != nil {
		logger.Warn("buffer: resync failed: %v", err)
		return
	}
	b.mu.Lock()
	if b.attached && b.buf == buf {
		b.lines = toStrings(raw)
	}
	b.mu.Unlock()
}

// MoveCursor jumps to the first non-blank column of the target line.
// line is 1-based.
func (b *NvimBuffer) MoveCursor(line int) error {
	b.mu.Lock()
	attached := b.attached
	target := max(0, min(line-1, len(b.lines)-1))
	col := 0
	if target >= 0 && target < len(b.lines) {
		l := b.lines[target]
		col = len(l) - len(strings.TrimLeft(l, " \t"))
	}
	b.mu.Unlock()
	if !attached {
		return nil
	}

	win, err := b.nv.CurrentWindow()
	if err != nil {
		return fmt.Errorf("move cursor: %w", err)
	}
	if err := b.nv.SetWindowCursor(win, [2]int{target + 1, col}); err != nil {
		return fmt.Errorf("move cursor: %w", err)
	}

	b.mu.Lock()
	b.curLine, b.curCol = target, col
	b.mu.Unlock()
	return nil
}

// RetrievalSnippets returns recently viewed regions of other files, newest
// first.
func (b *NvimBuffer) RetrievalSnippets() []types.Snippet {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]types.Snippet, 0, len(b.recent))
	for _, v := range b.recent {
		out = append(out, types.Snippet{
			FilePath:  v.path,
			StartLine: v.startLine,
			EndLine:   v.startLine + len(v.lines) - 1,
			Content:   strings.Join(v.lines, "\n"),
			Timestamp: uint64(v.seenAt.UnixMilli()),
		})
	}
	return out
}

// stashRecentViewLocked records the region around the cursor of the buffer
// being left.
func (b *NvimBuffer) stashRecentViewLocked(now time.Time) {
	if b.path == "" || len(b.lines) == 0 {
		return
	}
	start := max(0, b.curLine-recentViewRadius)
	end := min(len(b.lines), b.curLine+recentViewRadius)
	b.stashViewLocked(start, end, now)
}

// stashYank records the line range the user just copied as retrieval
// context. The editor reports the '[ and '] marks, 1-indexed inclusive.
func (b *NvimBuffer) stashYank(first, last int, now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.path == "" || len(b.lines) == 0 {
		return
	}
	b.stashViewLocked(max(0, first-1), min(len(b.lines), last), now)
}

// stashViewLocked keeps one entry per path, newest first, capped.
func (b *NvimBuffer) stashViewLocked(start, end int, now time.Time) {
	if start >= end {
		return
	}
	view := recentView{
		path:      b.path,
		startLine: start + 1,
		lines:     append([]string(nil), b.lines[start:end]...),
		seenAt:    now,
	}
	updated := make([]recentView, 0, len(b.recent)+1)
	updated = append(updated, view)
	for _, v := range b.recent {
		if v.path != view.path {
			updated = append(updated, v)
		}
	}
	if len(updated) > maxRecentViews {
		updated = updated[:maxRecentViews]
	}
	b.recent = updated
}

func payloadInt(p map[string]any, key string) int {
	switch v := p[key].(type) {
	case int64:
		return int(v)
	case uint64:
		return int(v)
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func payloadBool(p map[string]any, key string) bool {
	v, _ := p[key].(bool)
	return v
}

func toStrings(raw [][]byte) []string {
	out := make([]string, len(raw))
	for i, l := range raw {
		out[i] = string(l)
	}
	return out
}

func toBytes(lines []string) [][]byte {
	out := make([][]byte, len(lines))
	for i, l := range lines {
		out[i] = []byte(l)
	}
	return out
}
