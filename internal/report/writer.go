package report

import (
	"fmt"
	"io"

	"github.com/nao1215/domainmap/internal/model"
)

// Writer renders reports to an output.
type Writer interface {
	// WriteStats outputs domain counts.
	WriteStats(stats *Stats) (int, error)

	// WriteTop outputs a top-N grouping.
	WriteTop(top *Top) (int, error)

	// WriteDomain outputs one stored record.
	WriteDomain(record *model.DomainRecord) (int, error)
}

// Format selects a Writer implementation.
type Format string

const (
	// FormatText is human-readable terminal output.
	FormatText Format = "text"
	// FormatJSON is indented JSON.
	FormatJSON Format = "json"
	// FormatMarkdown is GitHub-flavored Markdown.
	FormatMarkdown Format = "markdown"
)

// New returns the Writer for format.
func New(format Format, output io.Writer) (Writer, error) {
	switch format {
	case FormatText, "":
		return NewTextWriter(output), nil
	case FormatJSON:
		return NewJSONWriter(output, WithPrettyPrint()), nil
	case FormatMarkdown:
		return NewMarkdownWriter(output), nil
	default:
		return nil, fmt.Errorf("unknown report format %q", format)
	}
}

// Stats counts domains by outcome.
type Stats struct {
	// Success is the number of domains crawled successfully.
	Success int64 `json:"success"`

	// Failed is the number of unreachable domains.
	Failed int64 `json:"failed"`

	// Pending is the number of tasks waiting in the queue.
	Pending int64 `json:"pending"`

	// Dead is the number of tasks that exhausted their attempts.
	Dead int64 `json:"dead"`
}

// FailedPercent returns the failed share of finished domains.
func (s *Stats) FailedPercent() float64 {
	finished := s.Success + s.Failed
	if finished == 0 {
		return 0
	}
	return float64(s.Failed) * 100 / float64(finished)
}

// TopEntry is one group of a top-N report.
type TopEntry struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// Top is a ranking of successful domains grouped by one field.
type Top struct {
	// Kind names what was grouped, e.g. "Autonomous Systems".
	Kind string `json:"kind"`

	// Limit is the requested number of entries.
	Limit int `json:"limit"`

	// Entries are ordered by decreasing count.
	Entries []TopEntry `json:"entries"`
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// optional renders a nil field as "-".
func optional[T any](v *T) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprint(*v)
}
