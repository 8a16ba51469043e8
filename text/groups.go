package text

import "nextedit/types"

// BuildVisualGroups groups consecutive changed lines of the same kind for
// preview rendering. Modification and addition groups carry updated-text
// line numbers; deletion groups carry original-text line numbers.
func BuildVisualGroups(res *DiffResult) []*types.VisualGroup {
	var groups []*types.VisualGroup
	var cur *types.VisualGroup
	flush := func() {
		if cur != nil {
			groups = append(groups, cur)
			cur = nil
		}
	}

	for _, ch := range res.Changes {
		kind, line := groupKind(ch)
		if cur != nil && cur.Type == kind && line == cur.EndLine+1 {
			cur.EndLine = line
			if ch.Type != LineDeletion {
				cur.Lines = append(cur.Lines, ch.NewContent)
			}
			if ch.Type != LineAddition {
				cur.OldLines = append(cur.OldLines, ch.OldContent)
			}
			continue
		}
		flush()
		cur = &types.VisualGroup{Type: kind, StartLine: line, EndLine: line}
		if ch.Type != LineDeletion {
			cur.Lines = []string{ch.NewContent}
		}
		if ch.Type != LineAddition {
			cur.OldLines = []string{ch.OldContent}
		}
	}
	flush()
	return groups
}

func groupKind(ch LineChange) (string, int) {
	switch ch.Type {
	case LineAddition:
		return "addition", ch.NewLineNum
	case LineDeletion:
		return "deletion", ch.OldLineNum
	default:
		return "modification", ch.NewLineNum
	}
}
