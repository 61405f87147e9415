// Package render provides output rendering for the Bargn CLI.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/bargn/bargn/pkg/models"
)

// Options configures the renderer
type Options struct {
	Format string // table, json
	Color  bool   // Enable colored output
}

// Renderer writes CLI results to an output stream
type Renderer struct {
	opts Options
	w    io.Writer
}

// New creates a new renderer
func New(w io.Writer, opts Options) (*Renderer, error) {
	if opts.Format == "" {
		opts.Format = "table"
	}
	switch opts.Format {
	case "table", "json":
	default:
		return nil, fmt.Errorf("unknown output format: %s (valid: table, json)", opts.Format)
	}
	return &Renderer{opts: opts, w: w}, nil
}

var (
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	alertStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
)

// Alerts renders the alerts fired by an evaluation run.
func (r *Renderer) Alerts(fired []models.FiredAlert) error {
	if r.opts.Format == "json" {
		return r.renderJSON(models.EvaluateAlertsResponse{
			Success:         true,
			AlertsTriggered: len(fired),
			Alerts:          nonNil(fired),
		})
	}

	if len(fired) == 0 {
		fmt.Fprintln(r.w, r.style(okStyle, "No alerts triggered."))
		return nil
	}

	rows := make([][]string, len(fired))
	for i, a := range fired {
		rows[i] = []string{
			a.FunnelName,
			a.AlertType.Label(),
			fmt.Sprintf("%.1f%%", a.MetricValue),
			fmt.Sprintf("%s %g%%", a.Comparison, a.Threshold),
			formatTime(a.TriggeredAt),
		}
	}
	fmt.Fprintln(r.w, r.table([]string{"Funnel", "Metric", "Value", "Threshold", "Triggered"}, rows))
	fmt.Fprintln(r.w, r.style(alertStyle, fmt.Sprintf("%d alert(s) triggered", len(fired))))
	return nil
}

// Funnels renders funnel snapshots.
func (r *Renderer) Funnels(snapshots []models.FunnelSnapshot) error {
	if r.opts.Format == "json" {
		return r.renderJSON(nonNil(snapshots))
	}

	if len(snapshots) == 0 {
		fmt.Fprintln(r.w, "No funnels found.")
		return nil
	}

	rows := make([][]string, len(snapshots))
	for i, s := range snapshots {
		rows[i] = []string{
			s.FunnelID,
			s.FunnelName,
			fmt.Sprintf("%.1f%%", s.CompletionRate),
			formatNumber(s.TotalEntries),
			formatNumber(s.Completions),
		}
	}
	fmt.Fprintln(r.w, r.table([]string{"ID", "Name", "Completion", "Entries", "Completions"}, rows))
	return nil
}

// Report renders a recommendation report: a funnel summary, the drop-off
// table and the model's recommendations.
func (r *Renderer) Report(report *models.RecommendationReport) error {
	if r.opts.Format == "json" {
		return r.renderJSON(report)
	}

	f := report.Funnel
	fmt.Fprintln(r.w, r.style(titleStyle, f.FunnelName))
	fmt.Fprintln(r.w, r.style(dimStyle, fmt.Sprintf(
		"Completion %.1f%% | Entries %s | Completions %s",
		f.CompletionRate, formatNumber(f.TotalEntries), formatNumber(f.Completions),
	)))
	fmt.Fprintln(r.w)

	if len(report.DropOff) > 0 {
		rows := make([][]string, len(report.DropOff))
		for i, step := range report.DropOff {
			rows[i] = []string{
				fmt.Sprintf("%d", step.StepNumber),
				step.StepName,
				formatNumber(step.SessionsReached),
				fmt.Sprintf("%.1f%%", step.DropOffRate),
			}
		}
		fmt.Fprintln(r.w, r.table([]string{"#", "Step", "Sessions", "Drop-off"}, rows))
		fmt.Fprintln(r.w)
	}

	fmt.Fprintln(r.w, strings.TrimSpace(report.Recommendations))
	fmt.Fprintln(r.w, r.style(dimStyle, "Analyzed at "+formatTime(report.GeneratedAt)))
	return nil
}

func (r *Renderer) renderJSON(v any) error {
	encoder := json.NewEncoder(r.w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func (r *Renderer) table(headers []string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...)

	if r.opts.Color {
		t.BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("238")))
		t.StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			// Alternate row colors
			if row%2 == 0 {
				return lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
			}
			return lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
		})
	}
	return t.Render()
}

func (r *Renderer) style(s lipgloss.Style, text string) string {
	if !r.opts.Color {
		return text
	}
	return s.Render(text)
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

// formatNumber formats a number with commas
func formatNumber(n int64) string {
	if n < 0 {
		return "-" + formatNumber(-n)
	}
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}

	var result strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			result.WriteRune(',')
		}
		result.WriteRune(c)
	}
	return result.String()
}
