package engine

import (
	"strings"
	"testing"
	"time"

	"nextedit/assert"
	"nextedit/types"
)

func gateTestEngine(t *testing.T) (*Engine, *mockBuffer, *mockClock) {
	t.Helper()
	buf := newMockBuffer("package main\n")
	buf.setCursor(0, 0, 0)
	clock := newMockClock()
	eng := createTestEngine(buf, newMockProvider(), clock)
	adoptDocument(eng, buf)
	return eng, buf, clock
}

func TestSuppressionReasonOrdering(t *testing.T) {
	eng, _, clock := gateTestEngine(t)
	focused := EditorState{Focused: true}

	assert.Equal(t, "", eng.suppressionReason(eng.doc, focused), "all gates pass")

	eng.enabled = false
	assert.Equal(t, "disabled", eng.suppressionReason(eng.doc, focused), "disabled wins")
	eng.enabled = true

	eng.snoozedUntil = clock.Now().Add(time.Minute)
	assert.Equal(t, "snoozed", eng.suppressionReason(eng.doc, focused), "snoozed")
	eng.snoozedUntil = time.Time{}

	assert.Equal(t, "no-active-editor", eng.suppressionReason(nil, focused), "nil document")

	other := &types.DocumentSnapshot{URI: "file:///work/other.go", Text: "x"}
	assert.Equal(t, "editor-mismatch", eng.suppressionReason(other, focused), "inactive document")

	assert.Equal(t, "editor-unfocused", eng.suppressionReason(eng.doc, EditorState{}), "unfocused")

	assert.Equal(t, "read-only", eng.suppressionReason(eng.doc, EditorState{Focused: true, ReadOnly: true}), "read only")

	assert.Equal(t, "snippet-active", eng.suppressionReason(eng.doc, EditorState{Focused: true, SnippetActive: true}), "snippet session")

	assert.Equal(t, "selection-active", eng.suppressionReason(eng.doc, EditorState{Focused: true, MultilineSelection: true}), "multiline selection")
}

func TestSuppressionCooldowns(t *testing.T) {
	eng, _, clock := gateTestEngine(t)
	focused := EditorState{Focused: true}
	eng.cfg.Gates.SelectionCooldown = time.Second
	eng.cfg.Gates.BulkEditCooldown = 2 * time.Second

	eng.lastSelectionAt = clock.Now()
	assert.Equal(t, "recent-selection", eng.suppressionReason(eng.doc, focused), "inside selection cooldown")
	clock.Advance(time.Second)
	assert.Equal(t, "", eng.suppressionReason(eng.doc, focused), "selection cooldown expired")

	eng.lastBulkEditAt = clock.Now()
	assert.Equal(t, "recent-bulk-edit", eng.suppressionReason(eng.doc, focused), "inside bulk edit cooldown")
	clock.Advance(2 * time.Second)
	assert.Equal(t, "", eng.suppressionReason(eng.doc, focused), "bulk edit cooldown expired")
}

func TestSuppressionPathAndSizeGates(t *testing.T) {
	eng, _, _ := gateTestEngine(t)
	focused := EditorState{Focused: true}

	eng.cfg.Gates.ExcludedPaths = []string{"*.lock"}
	eng.activeURI = "file:///work/deps.lock"
	lock := &types.DocumentSnapshot{URI: "file:///work/deps.lock", Text: "x"}
	assert.Equal(t, "excluded-path", eng.suppressionReason(lock, focused), "excluded pattern")

	eng.activeURI = "file:///work/main.go"
	eng.cfg.Gates.ExcludedPaths = nil
	eng.cfg.Gates.MaxFileSizeBytes = 4
	big := &types.DocumentSnapshot{URI: eng.activeURI, Text: "more than four bytes"}
	assert.Equal(t, "file-too-large", eng.suppressionReason(big, focused), "oversized document")
}

func TestSuppressionLineGates(t *testing.T) {
	eng, _, _ := gateTestEngine(t)
	focused := EditorState{Focused: true}
	eng.activeURI = "file:///work/main.go"

	eng.cfg.Gates.MaxFileLines = 3
	tall := &types.DocumentSnapshot{URI: eng.activeURI, Text: "a\nb\nc\nd"}
	assert.Equal(t, "too-many-lines", eng.suppressionReason(tall, focused), "line count over ceiling")

	short := &types.DocumentSnapshot{URI: eng.activeURI, Text: "a\nb\nc"}
	assert.Equal(t, "", eng.suppressionReason(short, focused), "line count at ceiling passes")

	eng.cfg.Gates.MaxFileLines = 0
	eng.cfg.Gates.MaxAvgLineLength = 10
	minified := &types.DocumentSnapshot{URI: eng.activeURI, Text: "var a=1;var b=2;var c=3;var d=4;"}
	assert.Equal(t, "long-lines", eng.suppressionReason(minified, focused), "minified single line caught")

	normal := &types.DocumentSnapshot{URI: eng.activeURI, Text: "var a=1;\nvar b=2;\nvar c=3;\nvar d=4;"}
	assert.Equal(t, "", eng.suppressionReason(normal, focused), "same content split over lines passes")
}

func TestPathExcluded(t *testing.T) {
	tests := []struct {
		uri      string
		patterns []string
		want     bool
	}{
		{"file:///work/app.min.js", []string{"*.min.js"}, true},
		{"file:///work/node_modules/x/index.js", []string{"node_modules"}, true},
		{"file:///work/main.go", []string{"*.min.js", "node_modules"}, false},
		{"file:///work/main.go", nil, false},
		{"file:///work/secrets.env", []string{"*.env"}, true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, pathExcluded(tt.uri, tt.patterns), "pathExcluded "+tt.uri)
	}
}

func TestBulkEditMarksCooldown(t *testing.T) {
	eng, buf, clock := gateTestEngine(t)
	eng.cfg.Gates.BulkEditChanges = 3
	eng.cfg.Gates.BulkEditCooldown = time.Second

	// a formatter-style burst of simultaneous edits
	eng.dispatch(changeEvent(buf,
		types.ContentChange{RangeOffset: 0, RangeLength: 1, Text: "a"},
		types.ContentChange{RangeOffset: 2, RangeLength: 1, Text: "b"},
		types.ContentChange{RangeOffset: 4, RangeLength: 1, Text: "c"},
	))

	assert.Equal(t, clock.Now(), eng.lastBulkEditAt, "bulk edit timestamp recorded")
	assert.Equal(t, stateIdle, eng.state, "burst does not start a cycle")
}

func TestGiantPasteMarksBulkCooldown(t *testing.T) {
	eng, buf, clock := gateTestEngine(t)
	eng.cfg.Gates.BulkEditChanges = 8
	eng.cfg.Gates.BulkEditChars = 4096
	eng.cfg.Gates.BulkEditCooldown = time.Second

	// a paste arrives as a single large change
	eng.dispatch(changeEvent(buf,
		types.ContentChange{RangeOffset: 0, RangeLength: 0, Text: strings.Repeat("x", 10000)},
	))

	assert.Equal(t, clock.Now(), eng.lastBulkEditAt, "paste marks the cooldown")
	assert.Equal(t, stateIdle, eng.state, "paste does not start a cycle")
}

func TestManyLineInsertMarksBulkCooldown(t *testing.T) {
	eng, buf, clock := gateTestEngine(t)
	eng.cfg.Gates.BulkEditLines = 10
	eng.cfg.Gates.BulkEditCooldown = time.Second

	eng.dispatch(changeEvent(buf,
		types.ContentChange{RangeOffset: 0, RangeLength: 0, Text: strings.Repeat("line\n", 12)},
	))

	assert.Equal(t, clock.Now(), eng.lastBulkEditAt, "multi-line insert marks the cooldown")
}

func TestLargeDeletionCountsAsBulk(t *testing.T) {
	eng, _, _ := gateTestEngine(t)
	eng.cfg.Gates.BulkEditChars = 100

	assert.True(t, eng.isBulkEdit([]types.ContentChange{
		{RangeOffset: 0, RangeLength: 5000, Text: ""},
	}), "removal counts toward the char threshold")
	assert.False(t, eng.isBulkEdit([]types.ContentChange{
		{RangeOffset: 0, RangeLength: 0, Text: "small"},
	}), "ordinary typing stays under the threshold")
}

func TestSnoozeGatesTriggers(t *testing.T) {
	eng, buf, clock := gateTestEngine(t)

	eng.dispatch(Event{Type: EventSnooze, Data: SnoozeData{Duration: 5 * time.Minute}})
	assert.Equal(t, stateIdle, eng.state, "state after snooze")

	eng.dispatch(typeText(buf, 0, "x"))
	assert.Equal(t, stateIdle, eng.state, "trigger suppressed while snoozed")

	clock.Advance(5 * time.Minute)
	eng.dispatch(typeText(buf, 1, "y"))
	assert.Equal(t, stateDebouncing, eng.state, "triggers resume after snooze expires")
}

func TestSnoozeLiftedEarly(t *testing.T) {
	eng, buf, _ := gateTestEngine(t)

	eng.dispatch(Event{Type: EventSnooze, Data: SnoozeData{Duration: time.Hour}})
	eng.dispatch(Event{Type: EventSnooze, Data: SnoozeData{Duration: 0}})

	eng.dispatch(typeText(buf, 0, "x"))
	assert.Equal(t, stateDebouncing, eng.state, "zero duration lifts the snooze")
}

func TestDisableDropsEverything(t *testing.T) {
	eng, buf, _ := gateTestEngine(t)
	eng.current = &types.Candidate{ID: "shown", StartIndex: 0, EndIndex: 0, Completion: "x"}
	eng.state = stateShowingInline
	eng.queue.push(&types.Candidate{ID: "queued", StartIndex: 1, EndIndex: 1, Completion: "y"})

	eng.dispatch(Event{Type: EventSetEnabled, Data: SetEnabledData{Enabled: false}})

	assert.Equal(t, stateIdle, eng.state, "state after disable")
	assert.Nil(t, eng.current, "shown candidate dropped")
	assert.Equal(t, 0, eng.queue.len(), "queue dropped")
	assert.Equal(t, 1, buf.clearUICalls, "ui cleared")

	eng.dispatch(typeText(buf, 0, "x"))
	assert.Equal(t, stateIdle, eng.state, "triggers suppressed while disabled")

	eng.dispatch(Event{Type: EventSetEnabled, Data: SetEnabledData{Enabled: true}})
	eng.dispatch(typeText(buf, 1, "y"))
	assert.Equal(t, stateDebouncing, eng.state, "triggers resume after enable")
}

func TestMultilineSelectionClearsAndCools(t *testing.T) {
	eng, buf, clock := gateTestEngine(t)
	eng.current = &types.Candidate{ID: "shown", StartIndex: 0, EndIndex: 0, Completion: "x"}
	eng.state = stateShowingInline

	eng.dispatch(Event{Type: EventSelectionChanged, Data: SelectionChangedData{Multiline: true}})

	assert.Equal(t, stateIdle, eng.state, "selection clears the display")
	assert.Equal(t, clock.Now(), eng.lastSelectionAt, "selection timestamp recorded")
	assert.Equal(t, 1, buf.clearUICalls, "ui cleared")
}
