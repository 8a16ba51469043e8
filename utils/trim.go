// Package utils holds small helpers shared across providers.
package utils

// Rough bytes-per-token ratio used to turn a token budget into a character
// budget. Close enough for window sizing; the serving side enforces the
// real limit.
const charsPerToken = 4

// TrimContentAroundCursor cuts lines down to a window around cursorLine that
// fits tokenBudget, counting one byte per character plus the newline. The
// cursor line is always kept. Three quarters of the remaining budget goes to
// lines above the cursor, the rest below; unused budget on either side flows
// to the other. Returns the window, the cursor line relative to it, the
// window bounds in the original slice, and whether anything was cut.
func TrimContentAroundCursor(lines []string, cursorLine, tokenBudget int) ([]string, int, int, int, bool) {
	if len(lines) == 0 {
		return lines, 0, 0, 0, false
	}
	if tokenBudget <= 0 {
		return lines, cursorLine, 0, len(lines), false
	}

	budget := tokenBudget * charsPerToken
	total := 0
	for _, l := range lines {
		total += len(l) + 1
	}
	if total <= budget {
		return lines, cursorLine, 0, len(lines), false
	}

	if cursorLine < 0 {
		cursorLine = 0
	}
	if cursorLine >= len(lines) {
		cursorLine = len(lines) - 1
	}

	remaining := budget - (len(lines[cursorLine]) + 1)
	if remaining < 0 {
		remaining = 0
	}
	aboveBudget := remaining * 3 / 4
	belowBudget := remaining - aboveBudget

	start := cursorLine
	for start > 0 {
		cost := len(lines[start-1]) + 1
		if cost > aboveBudget {
			break
		}
		aboveBudget -= cost
		start--
	}
	belowBudget += aboveBudget

	end := cursorLine + 1
	for end < len(lines) {
		cost := len(lines[end]) + 1
		if cost > belowBudget {
			break
		}
		belowBudget -= cost
		end++
	}
	for start > 0 {
		cost := len(lines[start-1]) + 1
		if cost > belowBudget {
			break
		}
		belowBudget -= cost
		start--
	}

	return lines[start:end], cursorLine - start, start, end, true
}
