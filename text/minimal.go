package text

// EditSpan isolates the changed core between two versions of the same span.
// PrefixLen bytes are identical on both sides; OldChanged and NewChanged are
// what actually differs once the common prefix and suffix are removed.
type EditSpan struct {
	PrefixLen  int
	OldChanged string
	NewChanged string
}

// TrimCommonAffixes strips the longest common prefix and then the longest
// common suffix of the remainders, so prefix+suffix never exceeds the
// shorter input. Used to render or apply only the sub-range that changed.
func TrimCommonAffixes(original, updated string) EditSpan {
	p := commonPrefixLen(original, updated)
	s := commonSuffixLen(original[p:], updated[p:])
	return EditSpan{
		PrefixLen:  p,
		OldChanged: original[p : len(original)-s],
		NewChanged: updated[p : len(updated)-s],
	}
}

func commonPrefixLen(a, b string) int {
	n := min(len(a), len(b))
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

func commonSuffixLen(a, b string) int {
	n := min(len(a), len(b))
	i := 0
	for i < n && a[len(a)-1-i] == b[len(b)-1-i] {
		i++
	}
	return i
}
