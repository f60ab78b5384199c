package report

import (
	"io"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/nao1215/domainmap/internal/model"
)

// maxPieSlices is the number of entries drawn in a top-N pie chart.
const maxPieSlices = 8

// MarkdownWriter outputs reports in Markdown format, built with the
// nao1215/markdown library.
type MarkdownWriter struct {
	baseWriter
	printer *message.Printer
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
		printer:    message.NewPrinter(language.English),
	}
}

// WriteStats outputs domain counts as a table.
func (w *MarkdownWriter) WriteStats(stats *Stats) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Domain Statistics")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"State", "Count"},
		Rows: [][]string{
			{"✅ Success", w.count(stats.Success)},
			{"⏳ Pending", w.count(stats.Pending)},
			{"❌ Failed", w.printer.Sprintf("%d (%.2f%%)", stats.Failed, stats.FailedPercent())},
			{"💀 Dead", w.count(stats.Dead)},
		},
	})
	md.PlainText("")

	if stats.Dead > 0 {
		md.Warningf("%d task(s) exhausted their attempts. Run `domainmap requeue` after fixing the cause.", stats.Dead)
		md.PlainText("")
	}

	w.writeFooter(md)
	return len(md.String()), md.Build()
}

// WriteTop outputs a ranking table followed by a pie chart of the largest
// groups.
func (w *MarkdownWriter) WriteTop(top *Top) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1(w.printer.Sprintf("Top %d %s", top.Limit, top.Kind))
	md.PlainText("")

	if len(top.Entries) == 0 {
		md.Note("No successful domains yet.")
		md.PlainText("")
		w.writeFooter(md)
		return len(md.String()), md.Build()
	}

	rows := make([][]string, len(top.Entries))
	for i, e := range top.Entries {
		rows[i] = []string{w.printer.Sprintf("%d", i+1), e.Key, w.count(e.Count)}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Rank", top.Kind, "Domains"},
		Rows:   rows,
	})
	md.PlainText("")

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle(top.Kind),
		piechart.WithShowData(true),
	)
	for _, e := range top.Entries[:min(len(top.Entries), maxPieSlices)] {
		chart.LabelAndIntValue(e.Key, uint64(e.Count)) //nolint:gosec // counts are never negative
	}
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")

	w.writeFooter(md)
	return len(md.String()), md.Build()
}

// WriteDomain outputs one record as a property table.
func (w *MarkdownWriter) WriteDomain(record *model.DomainRecord) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("`" + record.Name + "`")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Status", statusText(record)},
			{"Date", record.Date.Format("2006-01-02 15:04:05 MST")},
			{"Attempts", w.printer.Sprintf("%d", record.Attempts)},
			{"Elapsed", elapsedText(record.ElapsedMS)},
			{"IP", optional(record.IP)},
			{"ASN", optional(record.ASN)},
			{"Country", optional(record.Country)},
		},
	})
	md.PlainText("")

	if len(record.Headers) > 0 {
		md.H2("Response Headers")
		md.PlainText("")
		rows := make([][]string, 0, len(record.Headers))
		for _, name := range sortedKeys(record.Headers) {
			rows = append(rows, []string{name, "`" + record.Headers[name] + "`"})
		}
		md.Table(markdown.TableSet{
			Header: []string{"Header", "Value"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	w.writeFooter(md)
	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) count(n int64) string {
	return w.printer.Sprintf("%d", n)
}

// statusText returns the status with an indicator.
func statusText(record *model.DomainRecord) string {
	switch record.Status {
	case model.StatusSuccess:
		return "✅ success"
	case model.StatusFailure:
		return "❌ failure"
	default:
		return "⏳ " + record.Status.String()
	}
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [domainmap](https://github.com/nao1215/domainmap)*")
}
