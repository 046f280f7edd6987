// Package report prints analytics results for the command line as styled
// text, JSON or YAML.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/seenimoa/pianalytics/internal/config"
	"github.com/seenimoa/pianalytics/pkg/models"
)

// Format specifies the output format.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates a format name. Empty means text.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatText, nil
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, json or yaml)", s)
	}
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))

	valueStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#10B981"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B"))

	tickerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#3B82F6"))
)

// Printer writes results to an output stream in one format.
type Printer struct {
	w      io.Writer
	format Format
}

// New creates a printer. An unknown format falls back to text.
func New(w io.Writer, format Format) *Printer {
	if format != FormatJSON && format != FormatYAML {
		format = FormatText
	}
	return &Printer{w: w, format: format}
}

// Format returns the printer's output format.
func (p *Printer) Format() Format { return p.format }

// PromptID prints an identifier returned by a submission.
func (p *Printer) PromptID(title string, id models.PromptID) error {
	if p.format != FormatText {
		return p.encode(models.PromptResponse{PromptID: id})
	}
	if id.IsZero() {
		return p.lines(titleStyle.Render(title), warnStyle.Render("  response carried no prompt_id"))
	}
	return p.lines(titleStyle.Render(title), field("prompt_id", valueStyle.Render(id.String())))
}

// Scores prints a score series in received order.
func (p *Printer) Scores(s *models.ScoreSeries) error {
	if p.format != FormatText {
		return p.encode(s)
	}
	out := []string{
		titleStyle.Render("Time-series scores"),
		field("prompt_id", valueStyle.Render(s.PromptID.String())),
		field("points", strconv.Itoa(len(s.Scores))),
	}
	for _, pt := range s.Scores {
		out = append(out, fmt.Sprintf("    %-25s %s", pt.Time, formatValue(pt.Value)))
	}
	return p.lines(out...)
}

// Results prints analysis records followed by the recommended tickers.
func (p *Printer) Results(r *models.AnalysisResult) error {
	if p.format != FormatText {
		return p.encode(r)
	}
	out := []string{
		titleStyle.Render("Analysis results"),
		field("prompt_id", valueStyle.Render(r.PromptID.String())),
		field("records", strconv.Itoa(len(r.Records))),
	}
	for _, rec := range r.Records {
		out = append(out, fmt.Sprintf("    %-25s %-12s %-10s %s",
			rec.Time, rec.PromptID, formatValue(rec.Value), rec.AnnounceID))
	}
	tickers := make([]string, len(r.RecommendedTickers))
	for i, t := range r.RecommendedTickers {
		tickers[i] = tickerStyle.Render(t)
	}
	out = append(out, field("recommended", strings.Join(tickers, ", ")))
	return p.lines(out...)
}

// Settings prints the effective configuration and where each value came from.
func (p *Printer) Settings(settings []config.SettingStatus) error {
	if p.format != FormatText {
		return p.encode(settings)
	}
	out := []string{titleStyle.Render("Configuration")}
	for _, s := range settings {
		value := s.Value
		if value == "" {
			value = "(unset)"
		}
		out = append(out, fmt.Sprintf("  %-22s %s %s", s.Name+":", valueStyle.Render(value), labelStyle.Render("["+string(s.Source)+"]")))
	}
	return p.lines(out...)
}

func (p *Printer) encode(v any) error {
	switch p.format {
	case FormatJSON:
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(p.w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("encode: unsupported format %q", p.format)
}

func (p *Printer) lines(lines ...string) error {
	_, err := io.WriteString(p.w, strings.Join(lines, "\n")+"\n")
	return err
}

func field(name, value string) string {
	return "  " + labelStyle.Render(fmt.Sprintf("%-12s", name+":")) + " " + value
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Run is the outcome of one full submit, scores, broadcast, results sequence.
type Run struct {
	PromptID          models.PromptID        `json:"prompt_id"           yaml:"prompt_id"`
	Scores            *models.ScoreSeries    `json:"scores"              yaml:"scores"`
	BroadcastPromptID models.PromptID        `json:"broadcast_prompt_id" yaml:"broadcast_prompt_id"`
	Results           *models.AnalysisResult `json:"results"             yaml:"results"`
}

// Run prints a whole sequence. Structured formats emit a single document.
func (p *Printer) Run(r Run) error {
	if p.format != FormatText {
		return p.encode(r)
	}
	if err := p.PromptID("Prompt ID from submission", r.PromptID); err != nil {
		return err
	}
	if r.Scores != nil {
		if err := p.Scores(r.Scores); err != nil {
			return err
		}
	}
	if err := p.PromptID("Broadcasted prompt ID", r.BroadcastPromptID); err != nil {
		return err
	}
	if r.Results != nil {
		return p.Results(r.Results)
	}
	return nil
}
