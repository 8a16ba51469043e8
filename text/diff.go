package text

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// ChangeType classifies one changed line.
type ChangeType int

const (
	LineModification ChangeType = iota
	LineAddition
	LineDeletion
)

// LineChange is one changed line of a line-wise diff. Line numbers are
// 1-indexed; OldLineNum is 0 for pure additions, NewLineNum is 0 for pure
// deletions.
type LineChange struct {
	Type       ChangeType
	OldLineNum int
	NewLineNum int
	OldContent string
	NewContent string
}

// DiffResult holds the changed lines between two texts in diff order.
type DiffResult struct {
	Changes []LineChange
}

// ComputeDiff compares two texts line-wise. Adjacent delete/insert runs pair
// up line by line into modifications; the excess becomes pure deletions or
// additions.
func ComputeDiff(originalText, updatedText string) *DiffResult {
	dmp := diffmatchpatch.New()
	a, b, lineArray := dmp.DiffLinesToChars(originalText, updatedText)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lineArray)

	res := &DiffResult{}
	oldLine, newLine := 1, 1
	for i := 0; i < len(diffs); i++ {
		d := diffs[i]
		lines := splitDiffLines(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			oldLine += len(lines)
			newLine += len(lines)
		case diffmatchpatch.DiffDelete:
			var ins []string
			if i+1 < len(diffs) && diffs[i+1].Type == diffmatchpatch.DiffInsert {
				ins = splitDiffLines(diffs[i+1].Text)
				i++
			}
			oldLine, newLine = emitReplacement(res, lines, ins, oldLine, newLine)
		case diffmatchpatch.DiffInsert:
			var del []string
			if i+1 < len(diffs) && diffs[i+1].Type == diffmatchpatch.DiffDelete {
				del = splitDiffLines(diffs[i+1].Text)
				i++
			}
			oldLine, newLine = emitReplacement(res, del, lines, oldLine, newLine)
		}
	}
	return res
}

func emitReplacement(res *DiffResult, del, ins []string, oldLine, newLine int) (int, int) {
	paired := min(len(del), len(ins))
	for j := 0; j < paired; j++ {
		res.Changes = append(res.Changes, LineChange{
			Type:       LineModification,
			OldLineNum: oldLine,
			NewLineNum: newLine,
			OldContent: del[j],
			NewContent: ins[j],
		})
		oldLine++
		newLine++
	}
	for j := paired; j < len(del); j++ {
		res.Changes = append(res.Changes, LineChange{
			Type:       LineDeletion,
			OldLineNum: oldLine,
			OldContent: del[j],
		})
		oldLine++
	}
	for j := paired; j < len(ins); j++ {
		res.Changes = append(res.Changes, LineChange{
			Type:       LineAddition,
			NewLineNum: newLine,
			NewContent: ins[j],
		})
		newLine++
	}
	return oldLine, newLine
}

// splitDiffLines splits a diff fragment into lines, dropping the empty tail
// a trailing newline produces. Fragments from DiffLinesToChars are whole
// lines, so only the final fragment of a text can lack the newline.
func splitDiffLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
