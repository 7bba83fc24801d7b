// Package render provides output rendering for the lighter CLI.
//
// Format selection rules:
//   - If output is a TTY, default to table
//   - If output is not a TTY, default to json
//   - --format flag always overrides defaults
//   - Invalid formats are errors
//
// The table format knows the shapes this CLI produces — deploy results,
// plan summaries, and deploy history — and renders each with its own
// layout. Anything else (version payload, maps) falls back to plain
// key/value rows.
//
// Color handling:
//   - --no-color affects table output only
//   - TUI mode is unaffected by --no-color (uses its own styling)
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/harborworks/lighter/cli/tui"
	"github.com/harborworks/lighter/journal"
	"github.com/harborworks/lighter/pipeline"
	"github.com/harborworks/lighter/types"
)

// Format represents an output format.
type Format string

// Supported formats.
const (
	FormatJSON  Format = "json"
	FormatTable Format = "table"
	FormatYAML  Format = "yaml"
)

// maxPlanKeyRows caps how many missing keys the plan table lists before
// collapsing the rest into a count.
const maxPlanKeyRows = 10

// ParseFormat parses a format string, returning an error for invalid formats.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON, nil
	case "table":
		return FormatTable, nil
	case "yaml":
		return FormatYAML, nil
	case "":
		return "", nil // Let caller decide default
	default:
		return "", fmt.Errorf("invalid format: %q (must be json, table, or yaml)", s)
	}
}

// Renderer handles output formatting.
type Renderer struct {
	format  Format
	noColor bool
	out     io.Writer
}

// NewRenderer creates a renderer from CLI context.
// Applies the format selection rules above.
func NewRenderer(c *cli.Context) (*Renderer, error) {
	formatStr := c.String("format")
	format, err := ParseFormat(formatStr)
	if err != nil {
		return nil, err
	}

	// Apply default format based on TTY detection
	if format == "" {
		if isTTY(os.Stdout) {
			format = FormatTable
		} else {
			format = FormatJSON
		}
	}

	return &Renderer{
		format:  format,
		noColor: c.Bool("no-color"),
		out:     os.Stdout,
	}, nil
}

// NewRendererWithWriter creates a renderer with a custom writer (for testing).
func NewRendererWithWriter(format Format, noColor bool, out io.Writer) *Renderer {
	return &Renderer{
		format:  format,
		noColor: noColor,
		out:     out,
	}
}

// Render outputs the data in the configured format.
func (r *Renderer) Render(data any) error {
	switch r.format {
	case FormatJSON:
		enc := json.NewEncoder(r.out)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case FormatYAML:
		enc := yaml.NewEncoder(r.out)
		enc.SetIndent(2)
		return enc.Encode(data)
	case FormatTable:
		return r.renderTable(data)
	default:
		return fmt.Errorf("unknown format: %s", r.format)
	}
}

// RenderTUI initiates TUI mode for the given view type.
// TUI is opt-in only and read-only.
func (r *Renderer) RenderTUI(viewType string, data any) error {
	if !tui.IsTUISupported(viewType) {
		return fmt.Errorf("--tui is not supported for %s", viewType)
	}
	return tui.Run(viewType, data)
}

func (r *Renderer) renderTable(data any) error {
	switch v := data.(type) {
	case *types.Result:
		return r.renderResult(v)
	case types.Result:
		return r.renderResult(&v)
	case *pipeline.PlanResult:
		return r.renderPlan(v)
	case pipeline.PlanResult:
		return r.renderPlan(&v)
	case []journal.Record:
		return r.renderHistory(v)
	default:
		return r.renderKeyValues(data)
	}
}

// renderResult prints the deploy summary.
func (r *Renderer) renderResult(res *types.Result) error {
	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "Project:\t%s\n", res.Project)
	fmt.Fprintf(w, "Deployment:\t%s\n", res.DeploymentID)
	if res.URL != "" {
		fmt.Fprintf(w, "URL:\t%s\n", res.URL)
	}
	fmt.Fprintf(w, "Files:\t%d (%s)\n", res.Stats.TotalFiles, formatBytes(res.Stats.TotalBytes))
	fmt.Fprintf(w, "Uploaded:\t%d keys\n", res.UploadedKeys)
	fmt.Fprintf(w, "Reused:\t%d keys\n", res.ReusedKeys)
	fmt.Fprintf(w, "Duration:\t%dms\n", res.DurationMs)
	fmt.Fprintf(w, "Status:\t%s\n", r.status(string(res.Status)))

	return w.Flush()
}

// renderPlan prints what a deploy would upload.
func (r *Renderer) renderPlan(plan *pipeline.PlanResult) error {
	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "Project:\t%s\n", plan.Project)
	fmt.Fprintf(w, "Files:\t%d (%s)\n", plan.Files, formatBytes(plan.Stats.TotalBytes))
	fmt.Fprintf(w, "Content keys:\t%d\n", plan.KeysTotal)
	fmt.Fprintf(w, "Missing:\t%d (%s to upload)\n", plan.KeysMissing, formatBytes(plan.UploadBytes))
	if err := w.Flush(); err != nil {
		return err
	}

	if len(plan.MissingKeys) == 0 {
		fmt.Fprintln(r.out, "\nNothing to upload.")
		return nil
	}

	fmt.Fprintln(r.out, "\nWould upload:")
	keys := plan.MissingKeys
	if len(keys) > maxPlanKeyRows {
		keys = keys[:maxPlanKeyRows]
	}
	for _, key := range keys {
		fmt.Fprintf(r.out, "  %s\n", key)
	}
	if rest := len(plan.MissingKeys) - len(keys); rest > 0 {
		fmt.Fprintf(r.out, "  … and %d more\n", rest)
	}
	return nil
}

// renderHistory prints past deploys, newest first. The status column is
// last so its color codes cannot skew the tab alignment.
func (r *Renderer) renderHistory(records []journal.Record) error {
	if len(records) == 0 {
		fmt.Fprintln(r.out, "No deploys recorded.")
		return nil
	}

	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tPROJECT\tFILES\tUPLOADED\tDEPLOYMENT\tSTATUS")
	for _, rec := range records {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n",
			tui.FormatAge(rec.StartedAt),
			rec.Project,
			rec.FilesTotal,
			rec.UploadedKeys,
			rec.DeploymentID,
			r.status(rec.Status),
		)
	}
	return w.Flush()
}

// renderKeyValues is the fallback for shapes without a dedicated layout
// (version payload, maps): one key/value row per field.
func (r *Renderer) renderKeyValues(data any) error {
	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)

	v := reflect.ValueOf(data)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < v.NumField(); i++ {
			fmt.Fprintf(w, "%s:\t%v\n", fieldName(t.Field(i)), v.Field(i).Interface())
		}
	case reflect.Map:
		iter := v.MapRange()
		for iter.Next() {
			fmt.Fprintf(w, "%v:\t%v\n", iter.Key().Interface(), iter.Value().Interface())
		}
	default:
		fmt.Fprintf(w, "%v\n", data)
	}

	return w.Flush()
}

// status renders a deploy status, colored unless --no-color.
func (r *Renderer) status(s string) string {
	if r.noColor {
		return s
	}
	return tui.StatusStyle(s).Render(s)
}

// fieldName prefers the json tag over the Go field name.
func fieldName(f reflect.StructField) string {
	if tag := f.Tag.Get("json"); tag != "" {
		name := strings.Split(tag, ",")[0]
		if name != "" && name != "-" {
			return name
		}
	}
	return strings.ToLower(f.Name)
}

// formatBytes renders a byte count in human units.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// isTTY returns true if the writer is a TTY.
func isTTY(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
