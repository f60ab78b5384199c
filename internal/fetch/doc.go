// Package fetch retrieves the landing page of a domain.
//
// A Fetcher tries each configured scheme in order (http, then https by
// default). The first attempt that returns an HTML response wins. Attempts
// that fail to connect, time out or return something other than HTML fall
// through to the next scheme. When every scheme fails the domain is
// unreachable, which is an ordinary Result rather than an error.
package fetch
