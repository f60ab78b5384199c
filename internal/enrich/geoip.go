package enrich

import (
	"fmt"
	"net"
	"net/netip"

	"github.com/oschwald/geoip2-golang"
)

// GeoIP looks up the country of an IP address in a MaxMind database.
type GeoIP struct {
	reader *geoip2.Reader
}

// OpenGeoIP opens a GeoLite2-Country (or GeoIP2-Country) database.
func OpenGeoIP(path string) (*GeoIP, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open geoip database: %w", err)
	}
	return &GeoIP{reader: reader}, nil
}

// LookupCountry returns the English name of the country addr belongs to.
func (g *GeoIP) LookupCountry(addr netip.Addr) (string, bool) {
	record, err := g.reader.Country(net.IP(addr.Unmap().AsSlice()))
	if err != nil {
		return "", false
	}
	name := record.Country.Names["en"]
	if name == "" {
		return "", false
	}
	return name, true
}

// Close releases the database.
func (g *GeoIP) Close() error {
	return g.reader.Close()
}
