package enrich

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"strings"
	"testing"
)

// fakeHosts resolves names from a fixed map.
type fakeHosts map[string][]string

func (f fakeHosts) LookupIPAddr(_ context.Context, host string) ([]net.IPAddr, error) {
	ips, ok := f[host]
	if !ok {
		return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
	}
	addrs := make([]net.IPAddr, 0, len(ips))
	for _, ip := range ips {
		addrs = append(addrs, net.IPAddr{IP: net.ParseIP(ip)})
	}
	return addrs, nil
}

// fakeCountries maps addresses to country names.
type fakeCountries map[string]string

func (f fakeCountries) LookupCountry(addr netip.Addr) (string, bool) {
	c, ok := f[addr.String()]
	return c, ok
}

func testTable(t *testing.T) *ASNTable {
	t.Helper()
	table, err := LoadASNTable(strings.NewReader(testRoutingTable))
	if err != nil {
		t.Fatalf("failed to load table: %v", err)
	}
	return table
}

// TestResolver tests domain enrichment.
func TestResolver(t *testing.T) {
	t.Parallel()

	hosts := fakeHosts{
		"example.com":  {"2606:2800:220:1:248:1893:25c8:1946", "93.184.216.34"},
		"v6only.test":  {"2001:db8::1"},
		"elsewhere.io": {"10.1.2.3"},
	}
	countries := fakeCountries{"93.184.216.34": "United States"}

	r := NewResolver(
		WithHostResolver(hosts),
		WithASN(testTable(t)),
		WithCountry(countries),
	)

	t.Run("resolved address is enriched and ipv4 is preferred", func(t *testing.T) {
		t.Parallel()

		e := r.Resolve(context.Background(), "example.com")
		if e.IP == nil || *e.IP != "93.184.216.34" {
			t.Fatalf("expected ipv4 address, got %v", e.IP)
		}
		if e.ASN == nil || *e.ASN != 15133 {
			t.Errorf("expected ASN 15133, got %v", e.ASN)
		}
		if e.Country == nil || *e.Country != "United States" {
			t.Errorf("expected United States, got %v", e.Country)
		}
	})

	t.Run("ipv6 is used when no ipv4 exists", func(t *testing.T) {
		t.Parallel()

		e := r.Resolve(context.Background(), "v6only.test")
		if e.IP == nil || *e.IP != "2001:db8::1" {
			t.Fatalf("expected ipv6 address, got %v", e.IP)
		}
		if e.ASN == nil || *e.ASN != 64496 {
			t.Errorf("expected ASN 64496, got %v", e.ASN)
		}
		if e.Country != nil {
			t.Errorf("expected no country, got %q", *e.Country)
		}
	})

	t.Run("address absent from both databases leaves fields unset", func(t *testing.T) {
		t.Parallel()

		e := r.Resolve(context.Background(), "elsewhere.io")
		if e.IP == nil {
			t.Fatal("expected resolved address")
		}
		if e.ASN != nil || e.Country != nil {
			t.Errorf("expected absent ASN and country, got %v %v", e.ASN, e.Country)
		}
	})

	t.Run("unresolvable name yields empty enrichment", func(t *testing.T) {
		t.Parallel()

		e := r.Resolve(context.Background(), "dead.example")
		if e.IP != nil || e.ASN != nil || e.Country != nil {
			t.Errorf("expected empty enrichment, got %+v", e)
		}
	})

	t.Run("port is stripped before resolution", func(t *testing.T) {
		t.Parallel()

		e := r.Resolve(context.Background(), "example.com:8080")
		if e.IP == nil || *e.IP != "93.184.216.34" {
			t.Errorf("expected address of example.com, got %v", e.IP)
		}
	})

	t.Run("ip literal skips dns", func(t *testing.T) {
		t.Parallel()

		e := r.Resolve(context.Background(), "93.184.216.34")
		if e.ASN == nil || *e.ASN != 15133 {
			t.Errorf("expected ASN 15133, got %v", e.ASN)
		}
	})
}

// TestResolverDisabledLookups tests a resolver without databases.
func TestResolverDisabledLookups(t *testing.T) {
	t.Parallel()

	r := NewResolver(WithHostResolver(fakeHosts{"example.com": {"93.184.216.34"}}))

	e := r.Resolve(context.Background(), "example.com")
	if e.IP == nil {
		t.Fatal("expected resolved address")
	}
	if e.ASN != nil || e.Country != nil {
		t.Errorf("expected no ASN or country without databases, got %+v", e)
	}
}

// TestResolverContext tests that resolution errors do not escape.
func TestResolverContext(t *testing.T) {
	t.Parallel()

	r := NewResolver(WithHostResolver(errHosts{}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := r.Resolve(ctx, "example.com")
	if e.IP != nil {
		t.Errorf("expected empty enrichment, got %+v", e)
	}
}

type errHosts struct{}

func (errHosts) LookupIPAddr(ctx context.Context, _ string) ([]net.IPAddr, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, errors.New("resolver unavailable")
}
