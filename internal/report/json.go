package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/domainmap/internal/model"
)

// JSONWriter outputs reports in JSON format.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with two-space indentation.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// jsonStats adds the derived percentage to Stats.
type jsonStats struct {
	*Stats
	FailedPercent float64 `json:"failed_percent"`
}

// WriteStats outputs domain counts in JSON format.
func (w *JSONWriter) WriteStats(stats *Stats) (int, error) {
	return w.writeJSON(jsonStats{Stats: stats, FailedPercent: stats.FailedPercent()})
}

// WriteTop outputs a top-N grouping in JSON format.
func (w *JSONWriter) WriteTop(top *Top) (int, error) {
	if top.Entries == nil {
		top.Entries = []TopEntry{}
	}
	return w.writeJSON(top)
}

// WriteDomain outputs one record in JSON format.
func (w *JSONWriter) WriteDomain(record *model.DomainRecord) (int, error) {
	return w.writeJSON(struct {
		*model.DomainRecord
		Success bool `json:"success"`
	}{DomainRecord: record, Success: record.Success()})
}

// writeJSON marshals the given value to JSON and writes it to the output.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var (
		data []byte
		err  error
	)

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}

	if err != nil {
		return 0, err
	}

	// Add trailing newline for better terminal output
	data = append(data, '\n')

	return w.output.Write(data)
}
