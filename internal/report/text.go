package report

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/nao1215/domainmap/internal/model"
)

// TextWriter outputs human-readable reports. Colours are only emitted when
// the output is a terminal that supports them.
type TextWriter struct {
	baseWriter

	printer *message.Printer

	title   lipgloss.Style
	success lipgloss.Style
	pending lipgloss.Style
	failed  lipgloss.Style
	key     lipgloss.Style
}

// NewTextWriter creates a TextWriter that outputs to the given writer.
func NewTextWriter(output io.Writer) *TextWriter {
	r := lipgloss.NewRenderer(output)
	return &TextWriter{
		baseWriter: newBaseWriter(output),
		printer:    message.NewPrinter(language.English),
		title:      r.NewStyle().Bold(true),
		success:    r.NewStyle().Foreground(lipgloss.Color("2")),
		pending:    r.NewStyle().Foreground(lipgloss.Color("3")),
		failed:     r.NewStyle().Foreground(lipgloss.Color("1")),
		key:        r.NewStyle().Faint(true),
	}
}

// WriteStats outputs domain counts, e.g.
//
//	Domain statistics
//	Success: 1,200
//	Pending: 40
//	Failed:  300 (20.00%)
func (w *TextWriter) WriteStats(stats *Stats) (int, error) {
	var sb strings.Builder

	sb.WriteString(w.title.Render("Domain statistics") + "\n")
	sb.WriteString(w.success.Render(w.printer.Sprintf("Success: %d", stats.Success)) + "\n")
	sb.WriteString(w.pending.Render(w.printer.Sprintf("Pending: %d", stats.Pending)) + "\n")
	sb.WriteString(w.failed.Render(w.printer.Sprintf("Failed:  %d (%.2f%%)", stats.Failed, stats.FailedPercent())) + "\n")
	if stats.Dead > 0 {
		sb.WriteString(w.failed.Render(w.printer.Sprintf("Dead:    %d", stats.Dead)) + "\n")
	}

	return io.WriteString(w.output, sb.String())
}

// WriteTop outputs a ranking with right-aligned keys.
func (w *TextWriter) WriteTop(top *Top) (int, error) {
	var sb strings.Builder

	sb.WriteString(w.title.Render(fmt.Sprintf("Top %d %s", top.Limit, top.Kind)) + "\n")

	width := 15
	for _, e := range top.Entries {
		width = max(width, len(e.Key))
	}
	for _, e := range top.Entries {
		sb.WriteString(fmt.Sprintf("%*s  %s\n", width, e.Key, w.printer.Sprintf("%d", e.Count)))
	}
	if len(top.Entries) == 0 {
		sb.WriteString("No successful domains yet.\n")
	}

	return io.WriteString(w.output, sb.String())
}

// WriteDomain outputs every field of a record.
func (w *TextWriter) WriteDomain(record *model.DomainRecord) (int, error) {
	var sb strings.Builder

	status := w.success
	if !record.Success() {
		status = w.failed
	}

	sb.WriteString(w.title.Render(record.Name) + "\n")
	w.field(&sb, "Status", status.Render(record.Status.String()))
	w.field(&sb, "Date", record.Date.Format("2006-01-02 15:04:05 MST"))
	w.field(&sb, "Attempts", w.printer.Sprintf("%d", record.Attempts))
	w.field(&sb, "Elapsed", elapsedText(record.ElapsedMS))
	w.field(&sb, "IP", optional(record.IP))
	w.field(&sb, "ASN", optional(record.ASN))
	w.field(&sb, "Country", optional(record.Country))

	if len(record.Headers) > 0 {
		sb.WriteString(w.key.Render("Headers:") + "\n")
		for _, name := range sortedKeys(record.Headers) {
			sb.WriteString(fmt.Sprintf("  %s: %s\n", name, record.Headers[name]))
		}
	}

	return io.WriteString(w.output, sb.String())
}

func (w *TextWriter) field(sb *strings.Builder, name, value string) {
	sb.WriteString(w.key.Render(fmt.Sprintf("%-9s", name+":")) + " " + value + "\n")
}

func elapsedText(ms *int64) string {
	if ms == nil {
		return "-"
	}
	return fmt.Sprintf("%d ms", *ms)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
