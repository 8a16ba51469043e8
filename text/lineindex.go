package text

import "sort"

// LineIndex precomputes line start offsets of a text for cheap offset/line
// conversions. Lines are 0-indexed; a text always has at least one line.
type LineIndex struct {
	text   string
	starts []int
}

func NewLineIndex(text string) *LineIndex {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &LineIndex{text: text, starts: starts}
}

// Count returns the number of lines.
func (ix *LineIndex) Count() int { return len(ix.starts) }

// LineOf returns the line containing offset. Negative offsets map to the
// first line, offsets past the end to the last.
func (ix *LineIndex) LineOf(offset int) int {
	if offset <= 0 {
		return 0
	}
	n := sort.Search(len(ix.starts), func(i int) bool { return ix.starts[i] > offset })
	return n - 1
}

// Start returns the offset where line begins.
func (ix *LineIndex) Start(line int) int {
	if line <= 0 {
		return 0
	}
	if line >= len(ix.starts) {
		return len(ix.text)
	}
	return ix.starts[line]
}

// ContentEnd returns the offset just past the last content byte of line,
// excluding its newline.
func (ix *LineIndex) ContentEnd(line int) int {
	if line < 0 {
		return 0
	}
	if line >= len(ix.starts)-1 {
		return len(ix.text)
	}
	return ix.starts[line+1] - 1
}

// Line returns the content of line without its newline.
func (ix *LineIndex) Line(line int) string {
	if line < 0 || line >= len(ix.starts) {
		return ""
	}
	return ix.text[ix.Start(line):ix.ContentEnd(line)]
}
