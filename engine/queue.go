package engine

import (
	"nextedit/text"
	"nextedit/types"
)

// suggestionQueue holds not-yet-shown candidates for the active document in
// service order. It never contains an empty completion.
type suggestionQueue struct {
	items []*types.Candidate
}

func (q *suggestionQueue) push(c *types.Candidate) {
	if c == nil || c.Completion == "" {
		return
	}
	q.items = append(q.items, c)
}

func (q *suggestionQueue) pop() *types.Candidate {
	if len(q.items) == 0 {
		return nil
	}
	c := q.items[0]
	q.items = q.items[1:]
	return c
}

func (q *suggestionQueue) len() int { return len(q.items) }

func (q *suggestionQueue) clear() { q.items = nil }

// trim caps the queue length, dropping the tail.
func (q *suggestionQueue) trim(max int) {
	if max > 0 && len(q.items) > max {
		q.items = q.items[:max]
	}
}

// shiftForAccept adjusts queued offsets after an accepted edit: every
// candidate starting at or after the accepted start moves by the accepted
// edit's length delta. Entries that end up malformed are dropped.
func (q *suggestionQueue) shiftForAccept(acceptedStart, delta int) {
	kept := q.items[:0]
	for _, c := range q.items {
		if c.StartIndex >= acceptedStart {
			c.StartIndex += delta
			c.EndIndex += delta
		}
		if c.Completion == "" || c.StartIndex < 0 || c.EndIndex < c.StartIndex {
			continue
		}
		kept = append(kept, c)
	}
	q.items = kept
}

// transform maps every queued candidate through document changes so queued
// offsets stay valid while the user keeps typing.
func (q *suggestionQueue) transform(changes []types.ContentChange) {
	kept := q.items[:0]
	for _, c := range q.items {
		span := text.TransformAll(types.TrackedOffsets{Start: c.StartIndex, End: c.EndIndex}, changes)
		c.StartIndex, c.EndIndex = span.Start, span.End
		if c.Completion == "" {
			continue
		}
		kept = append(kept, c)
	}
	q.items = kept
}
