package text

import "nextedit/types"

// ApplyChange splices a content change into s. ok is false when the change
// does not fit the text, in which case s is returned unmodified.
func ApplyChange(s string, c types.ContentChange) (string, bool) {
	if c.RangeOffset < 0 || c.RangeLength < 0 || c.End() > len(s) {
		return s, false
	}
	return s[:c.RangeOffset] + c.Text + s[c.End():], true
}
