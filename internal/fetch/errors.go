package fetch

import "errors"

var (
	// ErrInvalidProxyAddress is returned when the SOCKS5 proxy address is not "host:port".
	ErrInvalidProxyAddress = errors.New("invalid proxy address")

	// ErrNoSchemes is returned when a Fetcher is created without schemes.
	ErrNoSchemes = errors.New("no schemes to try")

	// errTooManyRedirects stops a redirect chain.
	errTooManyRedirects = errors.New("too many redirects")
)
