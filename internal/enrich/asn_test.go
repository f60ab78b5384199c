package enrich

import (
	"bytes"
	"compress/gzip"
	"errors"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testRoutingTable = `; IP-ASN32-DAT file
; Original source: test
93.184.0.0/16	64500
93.184.216.0/24	15133

2001:db8::/32	64496
`

// TestLoadASNTable tests parsing of ipasn.dat style routing tables.
func TestLoadASNTable(t *testing.T) {
	t.Parallel()

	t.Run("longest prefix wins", func(t *testing.T) {
		t.Parallel()

		table, err := LoadASNTable(strings.NewReader(testRoutingTable))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if table.Len() != 3 {
			t.Errorf("expected 3 prefixes, got %d", table.Len())
		}

		tests := []struct {
			addr     string
			expected uint32
			ok       bool
		}{
			{"93.184.216.34", 15133, true},
			{"93.184.1.1", 64500, true},
			{"2001:db8::1", 64496, true},
			{"::ffff:93.184.216.34", 15133, true},
			{"10.0.0.1", 0, false},
		}

		for _, tt := range tests {
			asn, ok := table.LookupASN(netip.MustParseAddr(tt.addr))
			if ok != tt.ok || asn != tt.expected {
				t.Errorf("LookupASN(%s) = (%d, %v), expected (%d, %v)", tt.addr, asn, ok, tt.expected, tt.ok)
			}
		}
	})

	t.Run("malformed lines are rejected", func(t *testing.T) {
		t.Parallel()

		inputs := []string{
			"93.184.216.0/24",
			"93.184.216.0/24 abc",
			"not-a-prefix 15133",
			"93.184.216.0/24 99999999999",
		}
		for _, input := range inputs {
			_, err := LoadASNTable(strings.NewReader(input))
			if !errors.Is(err, ErrMalformedLine) {
				t.Errorf("LoadASNTable(%q): expected ErrMalformedLine, got %v", input, err)
			}
		}
	})

	t.Run("unmasked prefixes are normalized", func(t *testing.T) {
		t.Parallel()

		table, err := LoadASNTable(strings.NewReader("192.0.2.77/24\t64511\n"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if asn, ok := table.LookupASN(netip.MustParseAddr("192.0.2.1")); !ok || asn != 64511 {
			t.Errorf("expected 64511, got (%d, %v)", asn, ok)
		}
	})
}

// TestOpenASNTable tests loading routing tables from disk.
func TestOpenASNTable(t *testing.T) {
	t.Parallel()

	t.Run("plain file", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "ipasn.dat")
		if err := os.WriteFile(path, []byte(testRoutingTable), 0600); err != nil {
			t.Fatalf("failed to write table: %v", err)
		}

		table, err := OpenASNTable(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if table.Len() != 3 {
			t.Errorf("expected 3 prefixes, got %d", table.Len())
		}
	})

	t.Run("gzip file", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		if _, err := gz.Write([]byte(testRoutingTable)); err != nil {
			t.Fatalf("failed to compress: %v", err)
		}
		if err := gz.Close(); err != nil {
			t.Fatalf("failed to compress: %v", err)
		}

		path := filepath.Join(t.TempDir(), "ipasn.dat.gz")
		if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
			t.Fatalf("failed to write table: %v", err)
		}

		table, err := OpenASNTable(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if table.Len() != 3 {
			t.Errorf("expected 3 prefixes, got %d", table.Len())
		}
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		if _, err := OpenASNTable(filepath.Join(t.TempDir(), "missing.dat")); err == nil {
			t.Error("expected error for missing file")
		}
	})
}
