package template

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigTemplate is a reusable node configuration blueprint. Data keeps its
// placeholders; it is only resolved by Manager.Generate.
type ConfigTemplate struct {
	Name              string         `json:"name" yaml:"name"`
	Description       string         `json:"description" yaml:"description"`
	Data              map[string]any `json:"template" yaml:"template"`
	SupportedStacks   []string       `json:"supported_stacks" yaml:"supported_stacks"`
	SupportedNetworks []string       `json:"supported_networks" yaml:"supported_networks"`
	Version           string         `json:"version" yaml:"version"`
	Created           time.Time      `json:"created" yaml:"created"`
	Updated           time.Time      `json:"updated" yaml:"updated"`
}

// SupportsStack reports whether stack is in SupportedStacks.
func (t *ConfigTemplate) SupportsStack(stack string) bool {
	for _, s := range t.SupportedStacks {
		if s == stack {
			return true
		}
	}
	return false
}

// templateDocument is the on-disk form. Timestamps are ISO-8601 strings.
type templateDocument struct {
	Name              string         `yaml:"name"`
	Description       string         `yaml:"description"`
	SupportedStacks   []string       `yaml:"supported_stacks"`
	SupportedNetworks []string       `yaml:"supported_networks"`
	Version           string         `yaml:"version"`
	Created           string         `yaml:"created"`
	Updated           string         `yaml:"updated"`
	Template          map[string]any `yaml:"template"`
}

// isoLayouts are accepted on import; the first is used on export.
// Zone-less timestamps are read as UTC.
var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
}

// Encode renders the template as a YAML document.
func Encode(t *ConfigTemplate) ([]byte, error) {
	doc := templateDocument{
		Name:              t.Name,
		Description:       t.Description,
		SupportedStacks:   nonNil(t.SupportedStacks),
		SupportedNetworks: nonNil(t.SupportedNetworks),
		Version:           t.Version,
		Created:           t.Created.UTC().Format(isoLayouts[0]),
		Updated:           t.Updated.UTC().Format(isoLayouts[0]),
		Template:          t.Data,
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, fmt.Errorf("failed to encode template %s: %w", t.Name, err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode parses a template document.
func Decode(data []byte) (*ConfigTemplate, error) {
	var doc templateDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse template document: %w", err)
	}
	if doc.Name == "" {
		return nil, fmt.Errorf("template document has no name")
	}
	if doc.Template == nil {
		return nil, fmt.Errorf("template %s has no template data", doc.Name)
	}

	created, err := parseISO(doc.Created)
	if err != nil {
		return nil, fmt.Errorf("template %s: invalid created timestamp: %w", doc.Name, err)
	}
	updated, err := parseISO(doc.Updated)
	if err != nil {
		return nil, fmt.Errorf("template %s: invalid updated timestamp: %w", doc.Name, err)
	}

	version := doc.Version
	if version == "" {
		version = "1.0"
	}

	return &ConfigTemplate{
		Name:              doc.Name,
		Description:       doc.Description,
		Data:              doc.Template,
		SupportedStacks:   nonNil(doc.SupportedStacks),
		SupportedNetworks: nonNil(doc.SupportedNetworks),
		Version:           version,
		Created:           created,
		Updated:           updated,
	}, nil
}

// ReadFile decodes the template document at path.
func ReadFile(path string) (*ConfigTemplate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template %s: %w", path, err)
	}
	return Decode(data)
}

func parseISO(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range isoLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
