package links

import (
	"errors"
	"strings"
	"testing"
)

// TestExtract tests domain extraction from HTML documents.
func TestExtract(t *testing.T) {
	t.Parallel()

	t.Run("collects distinct lowercase hosts", func(t *testing.T) {
		t.Parallel()

		doc := `<html><body>
			<a href="http://A.com/x">one</a>
			<a href="https://b.com">two</a>
			<a href="/relative">three</a>
			<a href="http://a.com/y">four</a>
		</body></html>`

		hosts, err := Extract(strings.NewReader(doc), "text/html")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		expected := []string{"a.com", "b.com"}
		if strings.Join(hosts, ",") != strings.Join(expected, ",") {
			t.Errorf("expected %v, got %v", expected, hosts)
		}
	})

	t.Run("skips links without a host", func(t *testing.T) {
		t.Parallel()

		doc := `<a href="mailto:me@example.com">mail</a>
			<a href="#top">top</a>
			<a href="javascript:void(0)">js</a>
			<a href="">empty</a>
			<a>no href</a>
			<a href="http://[::1">broken</a>`

		hosts, err := Extract(strings.NewReader(doc), "text/html")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(hosts) != 0 {
			t.Errorf("expected no hosts, got %v", hosts)
		}
	})

	t.Run("ignores hosts outside anchor elements", func(t *testing.T) {
		t.Parallel()

		doc := `<link href="http://css.example/style.css">
			<img src="http://img.example/a.png">
			<script src="http://js.example/app.js"></script>
			<p>http://text.example/</p>
			<a href="http://kept.example/">kept</a>`

		hosts, err := Extract(strings.NewReader(doc), "text/html")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(hosts) != 1 || hosts[0] != "kept.example" {
			t.Errorf("expected [kept.example], got %v", hosts)
		}
	})

	t.Run("bad escapes after the host keep the host", func(t *testing.T) {
		t.Parallel()

		doc := `<a href="http://A.com/%zz">path</a>
			<a href="https://b.com/x?q=%zz&r=1">query</a>
			<a href="//c.com/%">protocol relative</a>
			<a href="/local/%zz//d.com">relative</a>`

		hosts, err := Extract(strings.NewReader(doc), "text/html")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		expected := []string{"a.com", "b.com", "c.com"}
		if strings.Join(hosts, ",") != strings.Join(expected, ",") {
			t.Errorf("expected %v, got %v", expected, hosts)
		}
	})

	t.Run("protocol relative links keep their host", func(t *testing.T) {
		t.Parallel()

		hosts, err := Extract(strings.NewReader(`<a href="//cdn.example/lib">cdn</a>`), "text/html")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(hosts) != 1 || hosts[0] != "cdn.example" {
			t.Errorf("expected [cdn.example], got %v", hosts)
		}
	})

	t.Run("malformed html is parsed leniently", func(t *testing.T) {
		t.Parallel()

		doc := `<html><body><div><a href="http://a.com">unclosed <b><a href='http://b.com'>`

		hosts, err := Extract(strings.NewReader(doc), "text/html")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(hosts) != 2 {
			t.Errorf("expected 2 hosts, got %v", hosts)
		}
	})

	t.Run("decodes the declared charset", func(t *testing.T) {
		t.Parallel()

		// "bücher.de" in ISO-8859-1
		doc := "<a href=\"http://b\xfccher.de/\">books</a>"

		hosts, err := Extract(strings.NewReader(doc), "text/html; charset=iso-8859-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(hosts) != 1 || hosts[0] != "xn--bcher-kva.de" {
			t.Errorf("expected [xn--bcher-kva.de], got %v", hosts)
		}
	})

	t.Run("empty document has no hosts", func(t *testing.T) {
		t.Parallel()

		hosts, err := Extract(strings.NewReader(""), "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(hosts) != 0 {
			t.Errorf("expected no hosts, got %v", hosts)
		}
	})

	t.Run("read error is returned", func(t *testing.T) {
		t.Parallel()

		if _, err := Extract(failingReader{}, "text/html; charset=utf-8"); err == nil {
			t.Error("expected error from failing reader")
		}
	})
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

// TestNormalizeHost tests host normalization.
func TestNormalizeHost(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected string
		ok       bool
	}{
		{"Example.COM", "example.com", true},
		{"example.com.", "example.com", true},
		{"A.com:8080", "a.com:8080", true},
		{"Bücher.DE", "xn--bcher-kva.de", true},
		{"my_host.example", "my_host.example", true},
		{"93.184.216.34", "93.184.216.34", true},
		{"[2001:db8::1]:443", "[2001:db8::1]:443", true},
		{"", "", false},
		{" ", "", false},
		{":8080", "", false},
	}

	for _, tt := range tests {
		got, ok := NormalizeHost(tt.input)
		if ok != tt.ok || got != tt.expected {
			t.Errorf("NormalizeHost(%q) = (%q, %v), expected (%q, %v)", tt.input, got, ok, tt.expected, tt.ok)
		}
	}
}
