package template

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Engine substitutes {{ name }} and {{ name|default:value }} placeholders in
// nested template data. Spaces inside the braces are allowed.
type Engine struct {
	templatePattern *regexp.Regexp
}

// NewEngine creates a new template engine
func NewEngine() *Engine {
	return &Engine{
		templatePattern: regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*(?:\|\s*default:\s*(.*?))?\s*\}\}`),
	}
}

// Placeholder is one occurrence of a template variable.
type Placeholder struct {
	Name       string
	Default    string
	HasDefault bool
}

// Replace returns a copy of value with every placeholder resolved from vars.
// Map keys are substituted as well as values, recursively through maps and
// lists. Placeholders without a value and without a default are collected
// and returned together as *MissingVariablesError.
func (e *Engine) Replace(value interface{}, vars map[string]interface{}) (interface{}, error) {
	missing := make(map[string]bool)
	out := e.replace(value, vars, missing)
	if len(missing) > 0 {
		return nil, &MissingVariablesError{Missing: sortedKeys(missing)}
	}
	return out, nil
}

func (e *Engine) replace(value interface{}, vars map[string]interface{}, missing map[string]bool) interface{} {
	switch v := value.(type) {
	case string:
		return e.replaceString(v, vars, missing)
	case map[string]interface{}:
		result := make(map[string]interface{}, len(v))
		for key, val := range v {
			result[e.replaceString(key, vars, missing)] = e.replace(val, vars, missing)
		}
		return result
	case []interface{}:
		result := make([]interface{}, len(v))
		for i, val := range v {
			result[i] = e.replace(val, vars, missing)
		}
		return result
	case []string:
		result := make([]interface{}, len(v))
		for i, val := range v {
			result[i] = e.replaceString(val, vars, missing)
		}
		return result
	default:
		// Non-templatable types are returned as-is
		return value
	}
}

func (e *Engine) replaceString(s string, vars map[string]interface{}, missing map[string]bool) string {
	if !strings.Contains(s, "{{") {
		return s
	}
	return e.templatePattern.ReplaceAllStringFunc(s, func(match string) string {
		p := e.parse(match)
		if val, ok := vars[p.Name]; ok {
			return stringify(val)
		}
		if p.HasDefault {
			return p.Default
		}
		missing[p.Name] = true
		return match
	})
}

func (e *Engine) parse(match string) Placeholder {
	idx := e.templatePattern.FindStringSubmatchIndex(match)
	p := Placeholder{Name: match[idx[2]:idx[3]]}
	if idx[4] >= 0 {
		p.HasDefault = true
		p.Default = match[idx[4]:idx[5]]
	}
	return p
}

func stringify(v interface{}) string {
	switch r := v.(type) {
	case string:
		return r
	case []string:
		return strings.Join(r, ",")
	default:
		return fmt.Sprintf("%v", r)
	}
}

// Placeholders returns every placeholder occurrence in value, keys included.
func (e *Engine) Placeholders(value interface{}) []Placeholder {
	var out []Placeholder
	e.walkStrings(value, func(s string) {
		for _, m := range e.templatePattern.FindAllString(s, -1) {
			out = append(out, e.parse(m))
		}
	})
	return out
}

// ExtractVariables returns the sorted, distinct variable names used in value.
func (e *Engine) ExtractVariables(value interface{}) []string {
	names := make(map[string]bool)
	for _, p := range e.Placeholders(value) {
		names[p.Name] = true
	}
	return sortedKeys(names)
}

// MissingVariables returns the sorted names of placeholders that have
// neither a value in vars nor an inline default. Occurrences are checked one
// by one: a variable with a default in one place and none in another is
// missing, since the bare occurrence cannot be resolved.
func (e *Engine) MissingVariables(value interface{}, vars map[string]interface{}) []string {
	missing := make(map[string]bool)
	for _, p := range e.Placeholders(value) {
		if _, ok := vars[p.Name]; ok || p.HasDefault {
			continue
		}
		missing[p.Name] = true
	}
	return sortedKeys(missing)
}

func (e *Engine) walkStrings(value interface{}, fn func(string)) {
	switch v := value.(type) {
	case string:
		fn(v)
	case map[string]interface{}:
		for key, val := range v {
			fn(key)
			e.walkStrings(val, fn)
		}
	case []interface{}:
		for _, val := range v {
			e.walkStrings(val, fn)
		}
	case []string:
		for _, val := range v {
			fn(val)
		}
	}
}

// MergeVariables merges variable sets; later sets override earlier ones.
func MergeVariables(sets ...map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{})
	for _, set := range sets {
		for key, value := range set {
			result[key] = value
		}
	}
	return result
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
