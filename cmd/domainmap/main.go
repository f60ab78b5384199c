// Package main provides the entry point for the domainmap CLI.
//
// domainmap maps the web by following links between domains. Workers pull
// domains from a shared queue, fetch their front page, record where they
// are hosted and queue every domain they link to.
//
// Usage:
//
//	domainmap migrate
//	domainmap insert example.com
//	domainmap crawl
//	domainmap stats
//
// See --help for all available options.
package main

// main is the entry point for domainmap.
func main() {
	Execute()
}
