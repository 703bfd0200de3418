package fleet

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report yaml field names so messages match the file the operator edits.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// Validate checks the document structure: every node has a name, names are
// unique, and ports are in range.
func (d *Document) Validate() error {
	var problems []string

	if err := validate.Struct(d); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			problems = append(problems, describeFieldError(fe))
		}
	}

	seen := make(map[string]int, len(d.Nodes))
	for i, n := range d.Nodes {
		if n == nil || n.Name == "" {
			continue
		}
		if prev, ok := seen[n.Name]; ok {
			problems = append(problems, fmt.Sprintf("nodes[%d].name: duplicate of nodes[%d] (%q)", i, prev, n.Name))
			continue
		}
		seen[n.Name] = i
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func describeFieldError(fe validator.FieldError) string {
	// Drop the leading struct name ("Document.").
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s: is required", field)
	case "min", "max":
		return fmt.Sprintf("%s: %v is out of range 1-65535", field, fe.Value())
	case "hostname_rfc1123":
		return fmt.Sprintf("%s: %q is not a valid hostname", field, fe.Value())
	default:
		return fmt.Sprintf("%s: failed %q check", field, fe.Tag())
	}
}

// Validate checks a single node against the document schema.
func (n *NodeConfig) Validate() error {
	err := validate.Struct(n)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		problems = append(problems, describeFieldError(fe))
	}
	return &ValidationError{Problems: problems}
}
