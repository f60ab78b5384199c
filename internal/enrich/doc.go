// Package enrich attaches network metadata to a domain: the IP address it
// resolves to, the autonomous system announcing that address and the
// country it is registered in.
//
// Both lookups use offline databases loaded once at startup and shared
// read-only by every worker:
//   - ASNTable: a routing table dump in the ipasn.dat format
//     ("prefix<TAB>asn" per line, ";" comments), held in a bart prefix table
//   - GeoIP: a MaxMind GeoLite2-Country compatible database
//
// Enrichment never fails the crawl of a domain. A name that does not
// resolve yields no fields at all; an address missing from a database
// leaves only that field unset.
package enrich
