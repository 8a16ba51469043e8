// Package engine hosts the suggestion loop: it watches document and cursor
// events from the host editor, debounces them into provider requests, and
// decides how each returned candidate is presented.
package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	"nextedit/logger"
	"nextedit/text"
	"nextedit/types"
)

// EditorState is the host editor's transient condition, sampled whenever
// the engine re-checks its gates.
type EditorState struct {
	Focused            bool
	ReadOnly           bool
	MultilineSelection bool
	SnippetActive      bool
}

// Buffer is the engine's view of the host editor. Implementations serve
// these calls from local state where possible; the engine invokes them
// from its loop goroutine and expects them to return quickly.
type Buffer interface {
	Snapshot() (*types.DocumentSnapshot, error)
	State() (EditorState, error)
	ShowInline(c *types.Candidate) error
	// ShowJump and MoveCursor take 1-based buffer lines.
	ShowJump(line int, groups []*types.VisualGroup) error
	ClearUI() error
	ApplyEdit(start, end int, newText string) error
	MoveCursor(line int) error
}

// RetrievalSource is implemented by buffers that can surface recently
// viewed code from other files for request context.
type RetrievalSource interface {
	RetrievalSnippets() []types.Snippet
}

// AcceptReporter is implemented by providers that want accept
// notifications, e.g. for usage metrics. Calls run on their own goroutine.
type AcceptReporter interface {
	ReportAccept(c *types.Candidate)
}

// DismissReporter is the dismissal counterpart of AcceptReporter.
type DismissReporter interface {
	ReportDismiss(c *types.Candidate)
}

// RetrievalConfig bounds the snippet context attached to requests.
type RetrievalConfig struct {
	MaxSnippetLines int
	MaxSnippets     int
}

type EngineConfig struct {
	TextChangeDebounce  time.Duration
	CompletionTimeout   time.Duration
	MaxQueuedCandidates int
	WorkspacePath       string
	Gates               GateConfig
	History             HistoryConfig
	Retrieval           RetrievalConfig
}

const (
	defaultDebounce  = 150 * time.Millisecond
	defaultTimeout   = 15 * time.Second
	defaultMaxQueued = 8
)

// Engine owns all suggestion state. Every field is touched only from the
// Run goroutine; workers communicate by sending events back in.
type Engine struct {
	cfg      EngineConfig
	provider types.Provider
	buf      Buffer
	clock    Clock

	mainCtx   context.Context
	cancelAll context.CancelFunc
	eventChan chan Event

	state state

	doc       *types.DocumentSnapshot
	activeURI string

	enabled         bool
	snoozedUntil    time.Time
	lastSelectionAt time.Time
	lastBulkEditAt  time.Time
	lastTriggerAt   time.Time

	epoch          int64
	discardThrough int64
	cancelInFlight context.CancelFunc
	debounceTimer  Timer

	current *types.Candidate
	jump    *pendingJump
	queue   suggestionQueue

	expectSelfChange    bool
	suppressCursorEvent bool

	history *changeHistory

	// document text as of the last issued request, handed to providers that
	// show the model an original/current pair
	prevText    string
	prevTextURI string
}

func NewEngine(provider types.Provider, buf Buffer, cfg EngineConfig, clock Clock) *Engine {
	if clock == nil {
		clock = NewRealClock()
	}
	if cfg.TextChangeDebounce <= 0 {
		cfg.TextChangeDebounce = defaultDebounce
	}
	if cfg.CompletionTimeout <= 0 {
		cfg.CompletionTimeout = defaultTimeout
	}
	if cfg.MaxQueuedCandidates <= 0 {
		cfg.MaxQueuedCandidates = defaultMaxQueued
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		cfg:       cfg,
		provider:  provider,
		buf:       buf,
		clock:     clock,
		mainCtx:   ctx,
		cancelAll: cancel,
		eventChan: make(chan Event, 64),
		state:     stateIdle,
		enabled:   true,
		history:   newChangeHistory(cfg.History, clock),
	}
}

// Run drains the event channel until Stop. It is the only goroutine that
// reads or writes engine state.
func (e *Engine) Run() {
	logger.Info("engine: started")
	for {
		select {
		case <-e.mainCtx.Done():
			e.stopDebounce()
			e.cancelRequest()
			logger.Info("engine: stopped")
			return
		case ev := <-e.eventChan:
			e.dispatch(ev)
		}
	}
}

func (e *Engine) Stop() {
	e.cancelAll()
}

// Notify queues an event from the host adapter.
func (e *Engine) Notify(ev Event) {
	e.deliver(ev)
}

func (e *Engine) dispatch(ev Event) bool {
	t := findTransition(e.state, ev.Type)
	if t == nil {
		logger.Debug("engine: no transition for %s in %s", ev.Type, e.state)
		return false
	}
	next := t.handler(e, ev)
	if next != e.state {
		logger.Debug("engine: %s -> %s on %s", e.state, next, ev.Type)
		e.state = next
	}
	return true
}

// --- event handlers ---

func (e *Engine) onTextChanged(ev Event) state {
	data := ev.Data.(TextChangedData)

	self := e.expectSelfChange
	e.expectSelfChange = false
	if self {
		// echo of an edit the engine applied; downstream state was already
		// adjusted at accept time
		e.refreshDoc()
		return e.state
	}

	if e.activeURI == "" {
		// first sight of any document; no pre-change text to diff against
		e.refreshDoc()
		return e.beginTrigger(false)
	}
	if data.URI != e.activeURI {
		logger.Debug("engine: change for inactive document %s", data.URI)
		return e.state
	}

	if e.isBulkEdit(data.Changes) {
		e.lastBulkEditAt = e.clock.Now()
	}

	if e.doc != nil && e.doc.URI == data.URI {
		src := e.doc.Text
		for _, c := range data.Changes {
			e.history.Record(uriPath(data.URI), src, c)
			next, ok := text.ApplyChange(src, c)
			if !ok {
				logger.Warn("engine: change out of bounds for %s", data.URI)
				break
			}
			src = next
		}
	}

	e.refreshDoc()
	e.queue.transform(data.Changes)

	switch e.state {
	case stateShowingInline:
		if e.tryAdvanceInline(data.Changes) {
			if e.current == nil {
				return stateIdle
			}
			return stateShowingInline
		}
		e.clearDisplay()
		return e.beginTrigger(false)
	case stateShowingJump:
		e.clearDisplay()
		return e.beginTrigger(false)
	default:
		return e.beginTrigger(false)
	}
}

func (e *Engine) onCursorMoved(ev Event) state {
	data := ev.Data.(CursorMovedData)
	if e.doc != nil {
		e.doc.CursorLine = data.Line
		e.doc.CursorCol = data.Col
		e.doc.CursorOffset = data.Offset
	}
	if e.suppressCursorEvent {
		e.suppressCursorEvent = false
		return e.state
	}
	switch e.state {
	case stateShowingInline:
		if e.current != nil && data.Offset != e.current.StartIndex {
			e.clearDisplay()
			return stateIdle
		}
	case stateShowingJump:
		if e.jump != nil && data.Line != e.jump.cursorLine {
			e.clearDisplay()
			return stateIdle
		}
	}
	return e.state
}

func (e *Engine) onTrigger(ev Event) state {
	e.refreshDoc()
	e.clearDisplay()
	return e.beginTrigger(true)
}

func (e *Engine) onAcceptInline(ev Event) state {
	c := e.current
	if c == nil {
		return stateIdle
	}
	e.clearDisplay()

	if e.doc != nil && c.EndIndex <= len(e.doc.Text) {
		change := types.ContentChange{RangeOffset: c.StartIndex, RangeLength: c.EndIndex - c.StartIndex, Text: c.Completion}
		e.history.Record(uriPath(e.doc.URI), e.doc.Text, change)
	}

	e.expectSelfChange = true
	if err := e.buf.ApplyEdit(c.StartIndex, c.EndIndex, c.Completion); err != nil {
		e.expectSelfChange = false
		logger.Warn("engine: apply edit failed: %v", err)
		return stateIdle
	}
	e.applyToDoc(c)
	e.queue.shiftForAccept(c.StartIndex, c.Delta())
	if ar, ok := e.provider.(AcceptReporter); ok {
		go ar.ReportAccept(c)
	}
	logger.Info("engine: accepted suggestion id=%s at=%d", c.ID, c.StartIndex)

	if s, ok := e.serveFromQueue(); ok {
		return s
	}
	return e.beginTrigger(false)
}

func (e *Engine) onAcceptJump(ev Event) state {
	j := e.jump
	if j == nil || j.candidate == nil {
		return stateIdle
	}
	c := j.candidate
	e.clearDisplay()

	if e.doc != nil && c.EndIndex <= len(e.doc.Text) {
		change := types.ContentChange{RangeOffset: c.StartIndex, RangeLength: c.EndIndex - c.StartIndex, Text: c.Completion}
		e.history.Record(uriPath(e.doc.URI), e.doc.Text, change)
	}

	e.expectSelfChange = true
	if err := e.buf.ApplyEdit(c.StartIndex, c.EndIndex, c.Completion); err != nil {
		e.expectSelfChange = false
		logger.Warn("engine: apply edit failed: %v", err)
		return stateIdle
	}
	e.applyToDoc(c)
	e.queue.shiftForAccept(c.StartIndex, c.Delta())

	if e.doc != nil {
		e.suppressCursorEvent = true
		if err := e.buf.MoveCursor(e.doc.CursorLine + 1); err != nil {
			e.suppressCursorEvent = false
			logger.Warn("engine: move cursor failed: %v", err)
		}
	}

	if ar, ok := e.provider.(AcceptReporter); ok {
		go ar.ReportAccept(c)
	}
	logger.Info("engine: accepted jump suggestion id=%s at=%d", c.ID, c.StartIndex)

	if s, ok := e.serveFromQueue(); ok {
		return s
	}
	return e.beginTrigger(false)
}

func (e *Engine) onDismiss(ev Event) state {
	shown := e.current
	if shown == nil && e.jump != nil {
		shown = e.jump.candidate
	}
	if shown != nil {
		if dr, ok := e.provider.(DismissReporter); ok {
			go dr.ReportDismiss(shown)
		}
	}
	e.clearDisplay()
	e.queue.clear()
	e.resetPipeline()
	return stateIdle
}

func (e *Engine) onEditorChanged(ev Event) state {
	data := ev.Data.(EditorChangedData)
	if data.URI == e.activeURI {
		return e.state
	}
	e.clearDisplay()
	e.queue.clear()
	e.resetPipeline()
	e.activeURI = data.URI
	e.doc = nil
	e.refreshDoc()
	return stateIdle
}

func (e *Engine) onFocusChanged(ev Event) state {
	data := ev.Data.(FocusChangedData)
	if data.Focused {
		return e.state
	}
	e.clearDisplay()
	e.resetPipeline()
	return stateIdle
}

func (e *Engine) onSelectionChanged(ev Event) state {
	data := ev.Data.(SelectionChangedData)
	e.lastSelectionAt = e.clock.Now()
	if !data.Multiline {
		return e.state
	}
	e.clearDisplay()
	e.resetPipeline()
	return stateIdle
}

func (e *Engine) onSnooze(ev Event) state {
	data := ev.Data.(SnoozeData)
	if data.Duration <= 0 {
		e.snoozedUntil = time.Time{}
		logger.Info("engine: snooze lifted")
		return e.state
	}
	e.snoozedUntil = e.clock.Now().Add(data.Duration)
	logger.Info("engine: snoozed for %s", data.Duration)
	e.clearDisplay()
	e.queue.clear()
	e.resetPipeline()
	return stateIdle
}

func (e *Engine) onSetEnabled(ev Event) state {
	data := ev.Data.(SetEnabledData)
	e.enabled = data.Enabled
	if data.Enabled {
		return e.state
	}
	e.clearDisplay()
	e.queue.clear()
	e.resetPipeline()
	return stateIdle
}

func (e *Engine) onDebounceElapsed(ev Event) state {
	data := ev.Data.(debounceData)
	if data.epoch != e.epoch {
		return e.state
	}
	e.debounceTimer = nil
	if e.doc == nil {
		e.refreshDoc()
	}
	if e.doc == nil {
		return e.idleOrPipeline()
	}
	if reason := e.suppressionReason(e.doc, e.editorState()); reason != "" {
		logger.Debug("engine: request suppressed: %s", reason)
		if e.state == stateDebouncing {
			return stateIdle
		}
		return e.state
	}
	e.issueRequest(cloneSnapshot(e.doc), data.epoch)
	if e.state == stateDebouncing {
		return stateInFlight
	}
	return e.state
}

func (e *Engine) onResponseReady(ev Event) state {
	data := ev.Data.(responseData)
	if data.epoch <= e.discardThrough {
		logger.Debug("engine: response epoch=%d discarded", data.epoch)
		return e.state
	}
	if data.epoch != e.epoch {
		return e.extendFromStale(data)
	}
	e.cancelInFlight = nil

	count := 0
	if data.resp != nil {
		count = len(data.resp.Candidates)
	}
	logger.Debug("engine: response epoch=%d candidates=%d", data.epoch, count)

	if reason := e.suppressionReason(e.doc, e.editorState()); reason != "" {
		logger.Debug("engine: response suppressed: %s", reason)
		e.clearDisplay()
		return stateIdle
	}

	// The document or cursor may have drifted since the snapshot without an
	// epoch bump (a suppressed trigger, or a plain cursor move). Render only
	// what still matches; typed-through text is reconciled, anything else is
	// dropped whole.
	if e.doc == nil {
		e.clearDisplay()
		return stateIdle
	}
	if data.snapshot.Text != e.doc.Text || data.snapshot.CursorOffset != e.doc.CursorOffset {
		var adapted *types.SuggestionResponse
		if data.snapshot.Text != e.doc.Text {
			adapted = extendStale(data.resp, data.snapshot, e.doc)
		}
		if adapted == nil {
			logger.Debug("engine: response epoch=%d outlived its snapshot", data.epoch)
			e.clearDisplay()
			return stateIdle
		}
		e.clearDisplay()
		return e.renderResponse(adapted)
	}

	e.clearDisplay()
	return e.renderResponse(data.resp)
}

func (e *Engine) onResponseFailed(ev Event) state {
	data := ev.Data.(responseErrorData)
	if data.epoch != e.epoch {
		return e.state
	}
	e.cancelInFlight = nil
	if errors.Is(data.err, context.Canceled) {
		logger.Debug("engine: request cancelled epoch=%d", data.epoch)
	} else {
		logger.Warn("engine: request failed: %v", data.err)
	}
	return e.idleOrPipeline()
}

// --- trigger and render flow ---

// beginTrigger starts a suggestion cycle: gates first, then the queue, and
// only then a debounced provider request. Manual triggers skip the delay.
func (e *Engine) beginTrigger(manual bool) state {
	if e.doc == nil {
		e.refreshDoc()
	}
	if reason := e.suppressionReason(e.doc, e.editorState()); reason != "" {
		logger.Debug("engine: trigger suppressed: %s", reason)
		return e.idleOrPipeline()
	}
	if s, ok := e.serveFromQueue(); ok {
		return s
	}
	now := e.clock.Now()
	var delay time.Duration
	if !manual {
		delay = e.cfg.TextChangeDebounce - now.Sub(e.lastTriggerAt)
		if delay < 0 {
			delay = 0
		}
	}
	e.lastTriggerAt = now
	e.epoch++
	// best-effort: the superseded request's response would fail the epoch
	// check anyway, cancelling releases the connection sooner
	e.cancelRequest()
	e.startDebounce(delay, e.epoch)
	return stateDebouncing
}

// serveFromQueue shows the first queued candidate that still normalizes
// and classifies cleanly against the current document.
func (e *Engine) serveFromQueue() (state, bool) {
	for e.queue.len() > 0 {
		c := e.queue.pop()
		norm := normalizeCandidate(c, e.doc)
		if norm == nil {
			continue
		}
		cls := e.classify(norm)
		if cls.Decision == types.DecisionSuppress {
			logger.Debug("engine: queued candidate suppressed: %s", cls.Reason)
			continue
		}
		var s state
		if cls.Decision == types.DecisionJump {
			s = e.showJump(norm)
		} else {
			s = e.showInline(norm)
		}
		if s != stateIdle {
			return s, true
		}
	}
	return stateIdle, false
}

// renderResponse picks the candidate to present. A jump anywhere in the
// list outranks inline candidates ahead of it and wins outright; when an
// inline candidate is shown, the rest are queued in response order.
func (e *Engine) renderResponse(resp *types.SuggestionResponse) state {
	if resp == nil || len(resp.Candidates) == 0 {
		return e.idleOrPipeline()
	}

	var keep []*types.Candidate
	var decisions []types.Classification
	for _, c := range resp.Candidates {
		norm := normalizeCandidate(c, e.doc)
		if norm == nil {
			continue
		}
		cls := e.classify(norm)
		if cls.Decision == types.DecisionSuppress {
			logger.Debug("engine: candidate suppressed: %s", cls.Reason)
			continue
		}
		keep = append(keep, norm)
		decisions = append(decisions, cls)
	}
	if len(keep) == 0 {
		return e.idleOrPipeline()
	}

	pick := 0
	for i := range keep {
		if decisions[i].Decision == types.DecisionJump {
			pick = i
			break
		}
	}

	e.queue.clear()

	var s state
	if decisions[pick].Decision == types.DecisionJump {
		s = e.showJump(keep[pick])
	} else {
		for i, c := range keep {
			if i != pick {
				e.queue.push(c)
			}
		}
		e.queue.trim(e.cfg.MaxQueuedCandidates)
		s = e.showInline(keep[pick])
	}
	if s == stateIdle {
		return e.idleOrPipeline()
	}
	return s
}

// extendFromStale salvages a response that lost the epoch race. When the
// user's typing since the request is a prefix of the primary candidate,
// the adapted remainder renders immediately while the newer request is
// still on the wire. Never replaces something already shown.
func (e *Engine) extendFromStale(data responseData) state {
	if e.state == stateShowingInline || e.state == stateShowingJump {
		return e.state
	}
	adapted := extendStale(data.resp, data.snapshot, e.doc)
	if adapted == nil {
		logger.Debug("engine: stale response epoch=%d not adaptable", data.epoch)
		return e.state
	}
	logger.Debug("engine: adapted stale response epoch=%d", data.epoch)
	return e.renderResponse(adapted)
}

func (e *Engine) showInline(c *types.Candidate) state {
	e.current = c
	if err := e.buf.ShowInline(c); err != nil {
		logger.Warn("engine: show inline failed: %v", err)
		e.current = nil
		return stateIdle
	}
	return stateShowingInline
}

func (e *Engine) showJump(c *types.Candidate) state {
	groups, target := buildJumpGroups(c, e.doc)
	e.jump = &pendingJump{candidate: c, targetLine: target, cursorLine: e.doc.CursorLine}
	if err := e.buf.ShowJump(target, groups); err != nil {
		logger.Warn("engine: show jump failed: %v", err)
		e.jump = nil
		return stateIdle
	}
	return stateShowingJump
}

// tryAdvanceInline consumes typing that matches the shown ghost prefix,
// keeping the suggestion alive without a new request. Reports true when
// the change was absorbed; a fully typed-out suggestion clears e.current.
func (e *Engine) tryAdvanceInline(changes []types.ContentChange) bool {
	c := e.current
	if c == nil || len(changes) != 1 {
		return false
	}
	ch := changes[0]
	if ch.RangeLength != 0 || ch.Text == "" || ch.RangeOffset != c.StartIndex {
		return false
	}
	if !strings.HasPrefix(c.Completion, ch.Text) {
		return false
	}
	c.Completion = c.Completion[len(ch.Text):]
	c.StartIndex += len(ch.Text)
	c.EndIndex += len(ch.Text)
	if c.Completion == "" {
		e.clearDisplay()
		return true
	}
	if err := e.buf.ShowInline(c); err != nil {
		logger.Warn("engine: show inline failed: %v", err)
		e.clearDisplay()
		return true
	}
	return true
}

// --- bookkeeping ---

func (e *Engine) classify(c *types.Candidate) types.Classification {
	idx := text.NewLineIndex(e.doc.Text)
	off := e.doc.CursorOffset
	onBoundary := off > 0 && off <= len(e.doc.Text) && e.doc.Text[off-1] == '\n' &&
		(off == len(e.doc.Text) || e.doc.Text[off] != '\n')
	return Classify(ClassifyInput{
		CursorLine:              e.doc.CursorLine,
		CursorOffset:            off,
		EditStartLine:           idx.LineOf(c.StartIndex),
		EditEndLine:             idx.LineOf(c.EndIndex),
		StartIndex:              c.StartIndex,
		Completion:              c.Completion,
		OnSingleNewlineBoundary: onBoundary,
	})
}

func (e *Engine) refreshDoc() {
	snap, err := e.buf.Snapshot()
	if err != nil {
		logger.Warn("engine: snapshot failed: %v", err)
		return
	}
	e.doc = snap
	if e.activeURI == "" {
		e.activeURI = snap.URI
	}
}

// applyToDoc mirrors an accepted edit into the engine's shadow snapshot so
// queue serving right after the accept sees post-edit text; the authoritative
// snapshot follows with the change echo.
func (e *Engine) applyToDoc(c *types.Candidate) {
	if e.doc == nil {
		return
	}
	next, ok := text.ApplyChange(e.doc.Text, types.ContentChange{
		RangeOffset: c.StartIndex,
		RangeLength: c.EndIndex - c.StartIndex,
		Text:        c.Completion,
	})
	if !ok {
		return
	}
	d := *e.doc
	d.Text = next
	d.Version++
	d.CursorOffset = c.StartIndex + len(c.Completion)
	idx := text.NewLineIndex(next)
	d.CursorLine = idx.LineOf(d.CursorOffset)
	d.CursorCol = d.CursorOffset - idx.Start(d.CursorLine)
	e.doc = &d
}

func (e *Engine) clearDisplay() {
	if e.current == nil && e.jump == nil {
		return
	}
	e.current = nil
	e.jump = nil
	if err := e.buf.ClearUI(); err != nil {
		logger.Warn("engine: clear ui failed: %v", err)
	}
}

// resetPipeline abandons the pending trigger cycle. Responses for epochs
// up to the current one are dropped on arrival even if the cancel raced.
func (e *Engine) resetPipeline() {
	e.stopDebounce()
	e.cancelRequest()
	e.discardThrough = e.epoch
}

func (e *Engine) idleOrPipeline() state {
	if e.state == stateDebouncing || e.state == stateInFlight {
		return e.state
	}
	return stateIdle
}

func (e *Engine) editorState() EditorState {
	st, err := e.buf.State()
	if err != nil {
		logger.Warn("engine: editor state failed: %v", err)
		return EditorState{}
	}
	return st
}

func cloneSnapshot(d *types.DocumentSnapshot) *types.DocumentSnapshot {
	c := *d
	return &c
}

func uriPath(uri string) string {
	return strings.TrimPrefix(uri, "file://")
}
