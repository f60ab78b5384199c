package enrich

import (
	"context"
	"log/slog"
	"net"
	"net/netip"
)

// HostResolver resolves host names. *net.Resolver satisfies it.
type HostResolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// ASNLookup maps an address to its autonomous system number.
type ASNLookup interface {
	LookupASN(addr netip.Addr) (uint32, bool)
}

// CountryLookup maps an address to a country name.
type CountryLookup interface {
	LookupCountry(addr netip.Addr) (string, bool)
}

// Enrichment is the network metadata found for a domain.
// A nil field means the value is unknown.
type Enrichment struct {
	IP      *string
	ASN     *uint32
	Country *string
}

// Resolver resolves a domain and looks up its address in the offline
// databases. It is safe for concurrent use.
type Resolver struct {
	hosts   HostResolver
	asn     ASNLookup
	country CountryLookup
	logger  *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithHostResolver replaces the DNS resolver, net.DefaultResolver by default.
func WithHostResolver(r HostResolver) Option {
	return func(res *Resolver) {
		res.hosts = r
	}
}

// WithASN enables ASN lookups.
func WithASN(l ASNLookup) Option {
	return func(res *Resolver) {
		res.asn = l
	}
}

// WithCountry enables country lookups.
func WithCountry(l CountryLookup) Option {
	return func(res *Resolver) {
		res.country = l
	}
}

// WithLogger sets the logger for lookup misses.
func WithLogger(logger *slog.Logger) Option {
	return func(res *Resolver) {
		res.logger = logger
	}
}

// NewResolver creates a Resolver. Without WithASN or WithCountry the
// corresponding field is never set.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		hosts:  net.DefaultResolver,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the enrichment for domain. It never fails: when the name
// does not resolve the result is empty, and each database miss leaves its
// field nil.
func (r *Resolver) Resolve(ctx context.Context, domain string) Enrichment {
	var e Enrichment

	addr, ok := r.resolve(ctx, domain)
	if !ok {
		return e
	}
	ip := addr.String()
	e.IP = &ip

	if r.asn != nil {
		if asn, ok := r.asn.LookupASN(addr); ok {
			e.ASN = &asn
		} else {
			r.logger.Debug("asn lookup miss", "domain", domain, "ip", ip)
		}
	}

	if r.country != nil {
		if country, ok := r.country.LookupCountry(addr); ok {
			e.Country = &country
		} else {
			r.logger.Debug("country lookup miss", "domain", domain, "ip", ip)
		}
	}

	return e
}

// resolve returns the address used for enrichment, preferring IPv4.
func (r *Resolver) resolve(ctx context.Context, domain string) (netip.Addr, bool) {
	host := domain
	if h, _, err := net.SplitHostPort(domain); err == nil {
		host = h
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		return addr.Unmap(), true
	}

	addrs, err := r.hosts.LookupIPAddr(ctx, host)
	if err != nil {
		r.logger.Debug("name resolution failed", "domain", domain, "error", err)
		return netip.Addr{}, false
	}

	var first netip.Addr
	for _, a := range addrs {
		addr, ok := netip.AddrFromSlice(a.IP)
		if !ok {
			continue
		}
		addr = addr.Unmap()
		if addr.Is4() {
			return addr, true
		}
		if !first.IsValid() {
			first = addr
		}
	}
	if !first.IsValid() {
		r.logger.Debug("name resolved to no usable address", "domain", domain)
		return netip.Addr{}, false
	}
	return first, true
}
