package text

import "nextedit/types"

// Transform maps a tracked span through one content change. Spans the change
// overlaps collapse toward the edit point instead of preserving sub-range
// detail: the start snaps to the change start, the end to the end of the
// inserted text. Start <= End holds on return.
func Transform(o types.TrackedOffsets, c types.ContentChange) types.TrackedOffsets {
	changeStart := c.RangeOffset
	changeEnd := c.End()
	delta := c.Delta()

	start := o.Start
	switch {
	case start < changeStart:
		// before the change, unaffected
	case start > changeEnd || (start == changeEnd && changeStart == changeEnd):
		// past the change, or a pure insertion exactly at the start
		start += delta
	default:
		start = changeStart
	}

	end := o.End
	switch {
	case end < changeStart:
		// before the change, unaffected
	case end >= changeEnd:
		end += delta
	default:
		end = changeStart + len(c.Text)
	}

	if start < 0 {
		start = 0
	}
	if end < start {
		end = start
	}
	return types.TrackedOffsets{Start: start, End: end}
}

// TransformAll applies changes sequentially in event order. Later changes in
// the same event are expressed in the coordinate space produced by earlier
// ones, so order matters.
func TransformAll(o types.TrackedOffsets, changes []types.ContentChange) types.TrackedOffsets {
	for _, c := range changes {
		o = Transform(o, c)
	}
	return o
}
