package engine

type state int

const (
	stateIdle state = iota
	stateDebouncing
	stateInFlight
	stateShowingInline
	stateShowingJump
)

// stateAny matches every state in the transition table.
const stateAny state = -1

func (s state) String() string {
	switch s {
	case stateIdle:
		return "Idle"
	case stateDebouncing:
		return "Debouncing"
	case stateInFlight:
		return "InFlight"
	case stateShowingInline:
		return "ShowingInline"
	case stateShowingJump:
		return "ShowingJump"
	}
	return "Unknown"
}

// transition names the handler invoked when an event arrives in a state.
// Rows are matched top to bottom, so state-specific rows go before stateAny
// rows for the same event.
type transition struct {
	from    state
	event   EventType
	handler func(*Engine, Event) state
}

var transitions = []transition{
	{stateAny, EventTextChanged, (*Engine).onTextChanged},
	{stateAny, EventCursorMoved, (*Engine).onCursorMoved},
	{stateAny, EventTrigger, (*Engine).onTrigger},
	{stateShowingInline, EventAccept, (*Engine).onAcceptInline},
	{stateShowingJump, EventAccept, (*Engine).onAcceptJump},
	{stateAny, EventDismiss, (*Engine).onDismiss},
	{stateAny, EventEditorChanged, (*Engine).onEditorChanged},
	{stateAny, EventFocusChanged, (*Engine).onFocusChanged},
	{stateAny, EventSelectionChanged, (*Engine).onSelectionChanged},
	{stateAny, EventSnooze, (*Engine).onSnooze},
	{stateAny, EventSetEnabled, (*Engine).onSetEnabled},
	{stateAny, EventDebounceElapsed, (*Engine).onDebounceElapsed},
	{stateAny, EventResponseReady, (*Engine).onResponseReady},
	{stateAny, EventResponseFailed, (*Engine).onResponseFailed},
}

func findTransition(s state, ev EventType) *transition {
	for i := range transitions {
		t := &transitions[i]
		if t.event == ev && (t.from == s || t.from == stateAny) {
			return t
		}
	}
	return nil
}
