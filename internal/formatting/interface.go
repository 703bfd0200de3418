// Package formatting renders pipeline results for the command line.
//
// Every result type has a table rendering for terminals and a structured
// rendering (JSON or YAML) for scripts. Structured output uses the same
// field names as the fleet document.
package formatting

import (
	"fmt"
	"io"
	"os"

	"fleetsync/internal/discovery"
	"fleetsync/internal/monitor"
	"fleetsync/internal/template"
	"fleetsync/internal/validator"
)

// OutputFormat represents the desired output format
type OutputFormat string

const (
	FormatTable OutputFormat = "table" // Rich table output
	FormatJSON  OutputFormat = "json"  // JSON output
	FormatYAML  OutputFormat = "yaml"  // YAML output
)

// ParseFormat validates a --output value.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(s); f {
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatTable, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (use table, json or yaml)", s)
	}
}

// Options configures the formatter behavior
type Options struct {
	Format OutputFormat
	Output io.Writer // defaults to os.Stdout
}

// Formatter renders pipeline results.
type Formatter interface {
	Discovery(res *discovery.Result) error
	Validation(issues []validator.Issue, repairs []validator.RepairAction) error
	Sync(report *monitor.SyncReport) error
	NodeSync(res monitor.NodeSyncResult) error
	Drift(drift []monitor.DriftDetection) error
	MonitorSummary(s monitor.Summary) error
	Templates(templates []*template.ConfigTemplate) error
	// Data renders any other value, e.g. a generated node configuration.
	Data(v any) error
}

// New creates the formatter for options.Format.
func New(options Options) Formatter {
	if options.Output == nil {
		options.Output = os.Stdout
	}
	switch options.Format {
	case FormatJSON:
		return NewJSONFormatter(options.Output)
	case FormatYAML:
		return NewYAMLFormatter(options.Output)
	default:
		return NewTableFormatter(options.Output)
	}
}

// validationDocument is the structured form of a validation run.
type validationDocument struct {
	Issues  []validator.Issue        `json:"issues" yaml:"issues"`
	Repairs []validator.RepairAction `json:"repairs" yaml:"repairs"`
	Summary validator.Summary        `json:"summary" yaml:"summary"`
}

func newValidationDocument(issues []validator.Issue, repairs []validator.RepairAction) validationDocument {
	if issues == nil {
		issues = []validator.Issue{}
	}
	if repairs == nil {
		repairs = []validator.RepairAction{}
	}
	return validationDocument{Issues: issues, Repairs: repairs, Summary: validator.Summarize(issues)}
}
