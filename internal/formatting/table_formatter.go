package formatting

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"fleetsync/internal/discovery"
	"fleetsync/internal/monitor"
	"fleetsync/internal/template"
	"fleetsync/internal/validator"
)

// TableFormatter provides rich table output formatting
type TableFormatter struct {
	w io.Writer
}

// NewTableFormatter creates a new table formatter
func NewTableFormatter(w io.Writer) Formatter {
	return &TableFormatter{w: w}
}

// createTable creates a new table with standard styling
func (f *TableFormatter) createTable(title string, headers ...any) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(f.w)
	t.SetStyle(table.StyleRounded)
	if title != "" {
		t.SetTitle(title)
	}
	row := make(table.Row, len(headers))
	for i, h := range headers {
		row[i] = text.FgHiCyan.Sprint(h)
	}
	t.AppendHeader(row)
	return t
}

// formatEmptyMessage formats empty result messages
func (f *TableFormatter) formatEmptyMessage(icon, message string) error {
	_, err := fmt.Fprintf(f.w, "%s %s\n", text.FgYellow.Sprint(icon), text.FgYellow.Sprint(message))
	return err
}

func (f *TableFormatter) Discovery(res *discovery.Result) error {
	t := f.createTable(fmt.Sprintf("Discovery: %s", res.NodeName), "FIELD", "VALUE")
	t.AppendRow(table.Row{"Docker paths", Value(res.DockerPaths)})
	t.AppendRow(table.Row{"Networks", Value(res.NetworkKeys())})

	ports := make([]string, 0, len(res.APIPorts))
	for _, p := range res.APIPorts {
		s := fmt.Sprintf("%s:%d", p.Network, p.Port)
		if p.Version != "" {
			s += " (" + p.Version + ")"
		}
		ports = append(ports, s)
	}
	t.AppendRow(table.Row{"Beacon API ports", Value(ports)})
	t.AppendRow(table.Row{"Stacks", Value(res.DetectedStacks)})
	for _, role := range discovery.Roles {
		if c, ok := res.Clients[role]; ok {
			t.AppendRow(table.Row{fmt.Sprintf("%s client", role), fmt.Sprintf("%s (%s)", c.Name, c.Container)})
		}
	}
	t.AppendRow(table.Row{"Containers", len(res.Containers)})
	t.Render()

	for _, e := range res.Errors {
		if _, err := fmt.Fprintf(f.w, "%s %s\n", text.FgYellow.Sprint("⚠"), e); err != nil {
			return err
		}
	}
	return nil
}

func (f *TableFormatter) Validation(issues []validator.Issue, repairs []validator.RepairAction) error {
	if len(issues) == 0 {
		_, err := fmt.Fprintf(f.w, "%s %s\n", text.FgGreen.Sprint("✓"), "Configuration matches the running fleet")
		return err
	}

	t := f.createTable("Issues", "NODE", "TYPE", "SEVERITY", "DESCRIPTION", "SUGGESTED", "AUTO-FIX")
	for _, i := range issues {
		t.AppendRow(table.Row{i.Node, i.Type, Severity(i.Severity), Value(i.Description), Value(i.SuggestedValue), YesNo(i.AutoFixable)})
	}
	t.Render()

	if len(repairs) > 0 {
		r := f.createTable("Repairs", "NODE", "ACTION", "DESCRIPTION", "RESULT")
		for _, a := range repairs {
			result := text.FgGreen.Sprint("applied")
			if !a.Success {
				result = text.FgHiRed.Sprint("failed: " + a.ErrorMessage)
			}
			r.AppendRow(table.Row{a.Node, a.ActionType, Value(a.Description), result})
		}
		r.Render()
	}

	s := validator.Summarize(issues)
	_, err := fmt.Fprintf(f.w, "%s %d issues (%d critical, %d warnings, %d info), %d auto-fixable\n",
		text.FgHiBlue.Sprint("Total:"), s.TotalIssues, s.Critical, s.Warnings, s.Info, s.AutoFixable)
	return err
}

func (f *TableFormatter) Sync(report *monitor.SyncReport) error {
	t := f.createTable("Sync", "NODE", "STATUS", "CHANGES")
	for _, r := range report.Results {
		t.AppendRow(table.Row{r.Node, syncStatus(r.Status), syncDetail(r)})
	}
	t.Render()
	_, err := fmt.Fprintf(f.w, "%s %d of %d nodes updated\n", text.FgHiBlue.Sprint("Total:"), report.UpdatedNodes, report.TotalNodes)
	return err
}

func (f *TableFormatter) NodeSync(res monitor.NodeSyncResult) error {
	t := f.createTable("Refresh", "NODE", "STATUS", "CHANGES")
	t.AppendRow(table.Row{res.Node, syncStatus(res.Status), syncDetail(res)})
	t.Render()
	return nil
}

func syncStatus(s monitor.SyncStatus) string {
	switch s {
	case monitor.StatusUpdated:
		return text.FgGreen.Sprint(string(s))
	case monitor.StatusError:
		return text.FgHiRed.Sprint(string(s))
	case monitor.StatusSkipped:
		return text.FgHiBlack.Sprint(string(s))
	default:
		return string(s)
	}
}

func syncDetail(r monitor.NodeSyncResult) string {
	switch {
	case r.Error != "":
		return Value(r.Error)
	case len(r.Changes) > 0:
		parts := make([]string, len(r.Changes))
		for i, c := range r.Changes {
			parts[i] = c.String()
		}
		return strings.Join(parts, "\n")
	default:
		return Value(r.Reason)
	}
}

func (f *TableFormatter) Drift(drift []monitor.DriftDetection) error {
	if len(drift) == 0 {
		return f.formatEmptyMessage("✓", "No configuration drift detected")
	}
	t := f.createTable("Drift", "NODE", "TYPE", "SEVERITY", "CONFIGURED", "LIVE", "AUTO-FIX")
	for _, d := range drift {
		t.AppendRow(table.Row{d.Node, d.DriftType, Severity(d.Severity), Value(d.ConfigState), Value(d.LiveState), YesNo(d.AutoCorrectable)})
	}
	t.Render()
	return nil
}

func (f *TableFormatter) MonitorSummary(s monitor.Summary) error {
	t := f.createTable("Drift (last 24h)", "METRIC", "VALUE")
	t.AppendRow(table.Row{"Events", s.TotalDrift})
	t.AppendRow(table.Row{"Critical", s.Critical})
	t.AppendRow(table.Row{"Warning", s.Warning})
	t.AppendRow(table.Row{"Auto-correctable", s.AutoCorrectable})
	t.AppendRow(table.Row{"Nodes with drift", s.NodesWithDrift})

	types := make([]string, 0, len(s.CommonTypes))
	for k := range s.CommonTypes {
		types = append(types, k)
	}
	sort.Strings(types)
	for _, k := range types {
		t.AppendRow(table.Row{"  " + k, s.CommonTypes[k]})
	}
	t.Render()
	return nil
}

func (f *TableFormatter) Templates(templates []*template.ConfigTemplate) error {
	if len(templates) == 0 {
		return f.formatEmptyMessage("📋", "No templates found")
	}
	t := f.createTable("Templates", "NAME", "DESCRIPTION", "STACKS", "NETWORKS", "VERSION")
	for _, tpl := range templates {
		t.AppendRow(table.Row{
			text.FgHiCyan.Sprint(tpl.Name),
			Value(tpl.Description),
			Value(tpl.SupportedStacks),
			Value(tpl.SupportedNetworks),
			tpl.Version,
		})
	}
	t.Render()
	_, err := fmt.Fprintf(f.w, "\n%s %s %s\n",
		text.FgHiBlue.Sprint("Total:"),
		text.FgHiWhite.Sprint(len(templates)),
		text.FgHiBlue.Sprint("templates"))
	return err
}

// Data prints strings as is and everything else as YAML.
func (f *TableFormatter) Data(v any) error {
	if s, ok := v.(string); ok {
		_, err := fmt.Fprintln(f.w, s)
		return err
	}
	return encodeYAML(f.w, v)
}
