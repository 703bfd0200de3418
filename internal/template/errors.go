package template

import (
	"errors"
	"fmt"
	"strings"
)

// ErrTemplateNotFound is returned for unknown template names.
var ErrTemplateNotFound = errors.New("template not found")

// MissingVariablesError reports placeholders that had neither a value nor an
// inline default.
type MissingVariablesError struct {
	Template string
	Missing  []string
}

func (e *MissingVariablesError) Error() string {
	if e.Template == "" {
		return "missing template variables: " + strings.Join(e.Missing, ", ")
	}
	return fmt.Sprintf("template %s: missing variables: %s", e.Template, strings.Join(e.Missing, ", "))
}

// Messages returns one human readable line per missing variable.
func (e *MissingVariablesError) Messages() []string {
	out := make([]string, len(e.Missing))
	for i, name := range e.Missing {
		out[i] = "Missing required variable: " + name
	}
	return out
}
