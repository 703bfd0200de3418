package formatting

import (
	"io"

	"gopkg.in/yaml.v3"
)

// NewYAMLFormatter creates a formatter writing YAML.
func NewYAMLFormatter(w io.Writer) Formatter {
	return &structuredFormatter{w: w, encode: encodeYAML}
}

func encodeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
