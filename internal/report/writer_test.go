package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/domainmap/internal/model"
)

func ptr[T any](v T) *T {
	return &v
}

// createTestRecord creates a successful record with sample data for testing.
func createTestRecord() *model.DomainRecord {
	return &model.DomainRecord{
		Name:      "example.com",
		Status:    model.StatusSuccess,
		Headers:   map[string]string{"Server": "nginx", "Content-Type": "text/html"},
		ElapsedMS: ptr(int64(42)),
		IP:        ptr("93.184.216.34"),
		ASN:       ptr(uint32(15133)),
		Country:   ptr("United States"),
		Attempts:  1,
		Date:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func createTestTop() *Top {
	return &Top{
		Kind:  "Autonomous Systems",
		Limit: 15,
		Entries: []TopEntry{
			{Key: "15133", Count: 1200},
			{Key: "13335", Count: 7},
		},
	}
}

// TestStats tests the derived percentages.
func TestStats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		stats    Stats
		expected float64
	}{
		{name: "no domains", stats: Stats{}, expected: 0},
		{name: "only failures", stats: Stats{Failed: 3}, expected: 100},
		{name: "mixed", stats: Stats{Success: 3, Failed: 1, Pending: 100}, expected: 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tt.stats.FailedPercent(); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

// TestNew tests writer selection.
func TestNew(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	for _, f := range []Format{FormatText, FormatJSON, FormatMarkdown, ""} {
		if _, err := New(f, &buf); err != nil {
			t.Errorf("format %q: unexpected error: %v", f, err)
		}
	}
	if _, err := New("xml", &buf); err == nil {
		t.Error("expected error for unknown format")
	}
}

// TestTextWriter tests the human-readable writer.
func TestTextWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes stats with separators", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewTextWriter(&buf)

		if _, err := w.WriteStats(&Stats{Success: 1200, Failed: 300, Pending: 40}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{"Domain statistics", "Success: 1,200", "Pending: 40", "Failed:  300 (20.00%)"} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q, got:\n%s", want, output)
			}
		}
		if strings.Contains(output, "Dead") {
			t.Error("expected dead line to be omitted when zero")
		}
	})

	t.Run("writes top entries aligned", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewTextWriter(&buf)

		if _, err := w.WriteTop(createTestTop()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		if len(lines) != 3 {
			t.Fatalf("expected 3 lines, got %d:\n%s", len(lines), buf.String())
		}
		if lines[0] != "Top 15 Autonomous Systems" {
			t.Errorf("unexpected title %q", lines[0])
		}
		if lines[1] != "          15133  1,200" {
			t.Errorf("unexpected entry %q", lines[1])
		}
	})

	t.Run("writes empty top", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewTextWriter(&buf)

		if _, err := w.WriteTop(&Top{Kind: "countries", Limit: 5}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "No successful domains yet.") {
			t.Errorf("expected empty notice, got:\n%s", buf.String())
		}
	})

	t.Run("writes domain", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewTextWriter(&buf)

		if _, err := w.WriteDomain(createTestRecord()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{"example.com", "success", "42 ms", "15133", "United States", "Server: nginx"} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q, got:\n%s", want, output)
			}
		}
	})

	t.Run("writes failure with absent fields", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewTextWriter(&buf)

		record := model.FailureRecord("dead.example", time.Now())
		if _, err := w.WriteDomain(record); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "failure") || !strings.Contains(output, "ASN:      -") {
			t.Errorf("unexpected output:\n%s", output)
		}
		if strings.Contains(output, "Headers") {
			t.Error("expected no headers section")
		}
	})
}

// TestJSONWriter tests the JSON writer.
func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes stats with percentage", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewJSONWriter(&buf)

		if _, err := w.WriteStats(&Stats{Success: 3, Failed: 1, Pending: 2}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var got map[string]float64
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if got["success"] != 3 || got["failed"] != 1 || got["pending"] != 2 || got["failed_percent"] != 25 {
			t.Errorf("unexpected stats %v", got)
		}
	})

	t.Run("writes empty top as array", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewJSONWriter(&buf)

		if _, err := w.WriteTop(&Top{Kind: "countries", Limit: 15}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), `"entries":[]`) {
			t.Errorf("expected empty entries array, got %s", buf.String())
		}
	})

	t.Run("writes domain with success flag", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewJSONWriter(&buf, WithPrettyPrint())

		if _, err := w.WriteDomain(createTestRecord()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var got struct {
			Name    string            `json:"name"`
			Success bool              `json:"success"`
			ASN     uint32            `json:"asn"`
			Headers map[string]string `json:"headers"`
		}
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if got.Name != "example.com" || !got.Success || got.ASN != 15133 || got.Headers["Server"] != "nginx" {
			t.Errorf("unexpected record %+v", got)
		}
		if !strings.Contains(buf.String(), "\n  ") {
			t.Error("expected indented output")
		}
	})

	t.Run("omits absent domain fields", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewJSONWriter(&buf)

		if _, err := w.WriteDomain(model.FailureRecord("dead.example", time.Now())); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := buf.String()
		if strings.Contains(output, `"asn"`) || strings.Contains(output, `"headers"`) {
			t.Errorf("expected absent fields to be omitted, got %s", output)
		}
		if !strings.Contains(output, `"success":false`) {
			t.Errorf("expected success false, got %s", output)
		}
	})
}

// TestMarkdownWriter tests the Markdown writer.
func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes stats table", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewMarkdownWriter(&buf)

		if _, err := w.WriteStats(&Stats{Success: 1200, Failed: 300, Dead: 2}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{"# Domain Statistics", "1,200", "300 (20.00%)", "domainmap requeue"} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q, got:\n%s", want, output)
			}
		}
	})

	t.Run("writes top table and chart", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewMarkdownWriter(&buf)

		if _, err := w.WriteTop(createTestTop()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{"# Top 15 Autonomous Systems", "15133", "1,200", "```mermaid", "pie"} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q, got:\n%s", want, output)
			}
		}
	})

	t.Run("writes domain", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewMarkdownWriter(&buf)

		if _, err := w.WriteDomain(createTestRecord()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{"`example.com`", "✅ success", "## Response Headers", "`nginx`"} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q, got:\n%s", want, output)
			}
		}
	})
}
