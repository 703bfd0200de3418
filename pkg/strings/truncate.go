package strings

import (
	"strings"
)

// DefaultCheckOutputMaxLen bounds command output quoted inside discovery
// error strings.
const DefaultCheckOutputMaxLen = 120

// DefaultCellMaxLen bounds table cells holding configuration values.
const DefaultCellMaxLen = 60

// MinTruncateLen is the minimum maxLen value for SingleLine.
// Values smaller than this would not leave room for meaningful content plus "...".
const MinTruncateLen = 4

// SingleLine collapses all whitespace in s (newlines included) into single
// spaces and truncates the result to maxLen runes, adding "..." when cut.
// maxLen is clamped to MinTruncateLen.
func SingleLine(s string, maxLen int) string {
	if maxLen < MinTruncateLen {
		maxLen = MinTruncateLen
	}

	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen-3]) + "..."
	}
	return s
}

// CheckOutput renders stderr/stdout of a failed check for an error message.
// Empty output yields "no output".
func CheckOutput(s string) string {
	s = SingleLine(s, DefaultCheckOutputMaxLen)
	if s == "" {
		return "no output"
	}
	return s
}
