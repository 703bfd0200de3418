package formatting

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"

	"fleetsync/internal/validator"
	pstrings "fleetsync/pkg/strings"
)

// Value renders a configuration value for a table cell. Slices are joined
// and maps are printed with sorted keys.
func Value(v any) string {
	var s string
	switch val := v.(type) {
	case nil:
		s = "-"
	case string:
		s = val
	case []string:
		s = strings.Join(val, ", ")
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%s", k, Value(val[k])))
		}
		s = strings.Join(parts, " ")
	default:
		s = fmt.Sprintf("%v", val)
	}
	if s == "" {
		return "-"
	}
	return pstrings.SingleLine(s, pstrings.DefaultCellMaxLen)
}

// Severity colours a severity for terminal output.
func Severity(s validator.Severity) string {
	switch s {
	case validator.SeverityCritical:
		return text.FgHiRed.Sprint(string(s))
	case validator.SeverityWarning:
		return text.FgYellow.Sprint(string(s))
	default:
		return text.FgHiBlue.Sprint(string(s))
	}
}

// YesNo renders a boolean as a coloured yes or no.
func YesNo(b bool) string {
	if b {
		return text.FgGreen.Sprint("yes")
	}
	return text.FgHiBlack.Sprint("no")
}
