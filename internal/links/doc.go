// Package links extracts the set of domains a page links to.
//
// Only the href attribute of <a> elements is considered. Relative links,
// fragments and non-network schemes such as mailto: have no host and are
// skipped. Hosts are normalized with NormalizeHost, so the result can be
// compared directly against stored domain names.
package links
