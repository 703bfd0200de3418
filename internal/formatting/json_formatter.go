package formatting

import (
	"encoding/json"
	"io"

	"fleetsync/internal/discovery"
	"fleetsync/internal/monitor"
	"fleetsync/internal/template"
	"fleetsync/internal/validator"
)

// encodeFunc writes one document to the output.
type encodeFunc func(w io.Writer, v any) error

// structuredFormatter renders every result as a single document.
type structuredFormatter struct {
	w      io.Writer
	encode encodeFunc
}

// NewJSONFormatter creates a formatter writing indented JSON.
func NewJSONFormatter(w io.Writer) Formatter {
	return &structuredFormatter{w: w, encode: func(w io.Writer, v any) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}}
}

func (f *structuredFormatter) Discovery(res *discovery.Result) error {
	return f.encode(f.w, res)
}

func (f *structuredFormatter) Validation(issues []validator.Issue, repairs []validator.RepairAction) error {
	return f.encode(f.w, newValidationDocument(issues, repairs))
}

func (f *structuredFormatter) Sync(report *monitor.SyncReport) error {
	return f.encode(f.w, report)
}

func (f *structuredFormatter) NodeSync(res monitor.NodeSyncResult) error {
	return f.encode(f.w, res)
}

func (f *structuredFormatter) Drift(drift []monitor.DriftDetection) error {
	if drift == nil {
		drift = []monitor.DriftDetection{}
	}
	return f.encode(f.w, drift)
}

func (f *structuredFormatter) MonitorSummary(s monitor.Summary) error {
	return f.encode(f.w, s)
}

func (f *structuredFormatter) Templates(templates []*template.ConfigTemplate) error {
	if templates == nil {
		templates = []*template.ConfigTemplate{}
	}
	return f.encode(f.w, templates)
}

func (f *structuredFormatter) Data(v any) error {
	return f.encode(f.w, v)
}
