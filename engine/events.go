package engine

import (
	"time"

	"nextedit/types"
)

// EventType identifies one kind of engine event.
type EventType int

const (
	EventNone EventType = iota
	EventTextChanged
	EventCursorMoved
	EventTrigger
	EventAccept
	EventDismiss
	EventEditorChanged
	EventFocusChanged
	EventSelectionChanged
	EventSnooze
	EventSetEnabled
	// Internal events produced by timers and request goroutines.
	EventDebounceElapsed
	EventResponseReady
	EventResponseFailed
)

func (t EventType) String() string {
	switch t {
	case EventTextChanged:
		return "TextChanged"
	case EventCursorMoved:
		return "CursorMoved"
	case EventTrigger:
		return "Trigger"
	case EventAccept:
		return "Accept"
	case EventDismiss:
		return "Dismiss"
	case EventEditorChanged:
		return "EditorChanged"
	case EventFocusChanged:
		return "FocusChanged"
	case EventSelectionChanged:
		return "SelectionChanged"
	case EventSnooze:
		return "Snooze"
	case EventSetEnabled:
		return "SetEnabled"
	case EventDebounceElapsed:
		return "DebounceElapsed"
	case EventResponseReady:
		return "ResponseReady"
	case EventResponseFailed:
		return "ResponseFailed"
	}
	return "None"
}

// EventTypeFromString maps editor-side event names to engine events.
// Unknown names map to EventNone.
func EventTypeFromString(s string) EventType {
	switch s {
	case "text_changed":
		return EventTextChanged
	case "cursor_moved":
		return EventCursorMoved
	case "trigger":
		return EventTrigger
	case "tab":
		return EventAccept
	case "esc":
		return EventDismiss
	case "buf_enter":
		return EventEditorChanged
	case "focus_changed":
		return EventFocusChanged
	case "selection_changed":
		return EventSelectionChanged
	case "snooze":
		return EventSnooze
	case "set_enabled":
		return EventSetEnabled
	}
	return EventNone
}

// Event carries one editor or internal occurrence into the engine loop.
type Event struct {
	Type EventType
	Data any
}

// TextChangedData describes one document mutation event. Changes are in
// event order, each expressed against the text produced by the previous.
type TextChangedData struct {
	URI     string
	Version int
	Changes []types.ContentChange
}

// CursorMovedData is a cursor position update without a text change.
type CursorMovedData struct {
	Line   int // 0-indexed
	Col    int // 0-indexed byte column
	Offset int // byte offset
}

// EditorChangedData announces the active document switching.
type EditorChangedData struct {
	URI string
}

type FocusChangedData struct {
	Focused bool
}

type SelectionChangedData struct {
	Multiline bool
}

type SnoozeData struct {
	Duration time.Duration
}

type SetEnabledData struct {
	Enabled bool
}

// debounceData ties a debounce expiry to the epoch that armed it.
type debounceData struct {
	epoch int64
}

// responseData delivers a provider response together with the snapshot the
// request was built from.
type responseData struct {
	epoch    int64
	snapshot *types.DocumentSnapshot
	resp     *types.SuggestionResponse
}

type responseErrorData struct {
	epoch int64
	err   error
}
