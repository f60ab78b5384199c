package enrich

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"net/netip"
	"os"
	"strconv"
	"strings"

	"github.com/gaissmai/bart"
)

// ASNTable maps IP prefixes to the autonomous system number announcing
// them. Lookups use longest-prefix match.
type ASNTable struct {
	table bart.Table[uint32]
}

// OpenASNTable loads a routing table file. Files ending in ".gz" are
// decompressed on the fly.
func OpenASNTable(path string) (*ASNTable, error) {
	f, err := os.Open(path) //nolint:gosec // User-provided database path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to open asn database: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress asn database: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	table, err := LoadASNTable(r)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return table, nil
}

// LoadASNTable parses a routing table in the ipasn.dat format:
//
//	; IP-ASN32-DAT file
//	1.0.0.0/24	13335
//	2001:db8::/32	64496
//
// Blank lines and lines starting with ";" are ignored.
func LoadASNTable(r io.Reader) (*ASNTable, error) {
	t := &ASNTable{}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("line %d: %w: %q", lineNo, ErrMalformedLine, line)
		}

		prefix, err := netip.ParsePrefix(fields[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w: %v", lineNo, ErrMalformedLine, err)
		}
		asn, err := strconv.ParseUint(fields[1], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w: bad asn %q", lineNo, ErrMalformedLine, fields[1])
		}

		t.table.Insert(prefix.Masked(), uint32(asn))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read asn database: %w", err)
	}

	return t, nil
}

// LookupASN returns the ASN of the most specific prefix containing addr.
func (t *ASNTable) LookupASN(addr netip.Addr) (uint32, bool) {
	return t.table.Lookup(addr.Unmap())
}

// Len returns the number of prefixes in the table.
func (t *ASNTable) Len() int {
	return t.table.Size()
}
