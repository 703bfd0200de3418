package fleet

import (
	"fmt"
	"strings"
)

// PersistenceError is returned when the fleet document cannot be read or
// written. Callers treat it as fatal for the whole batch.
type PersistenceError struct {
	Path string
	Op   string // "load" or "save"
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to %s fleet document %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// ValidationError lists schema violations found in a fleet document.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return "invalid fleet document: " + e.Problems[0]
	}
	return fmt.Sprintf("invalid fleet document (%d problems): %s", len(e.Problems), strings.Join(e.Problems, "; "))
}
