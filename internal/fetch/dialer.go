package fetch

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"golang.org/x/net/proxy"
)

// contextDialer is the dial function used by the HTTP transport.
type contextDialer func(ctx context.Context, network, address string) (net.Conn, error)

// newDialer returns a direct dialer, or a SOCKS5 dialer when proxyAddress is set.
func newDialer(base *net.Dialer, proxyAddress string) (contextDialer, error) {
	if proxyAddress == "" {
		return base.DialContext, nil
	}
	if !isValidProxyAddress(proxyAddress) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidProxyAddress, proxyAddress)
	}

	// SOCKS5 without auth
	dialer, err := proxy.SOCKS5("tcp", proxyAddress, nil, base)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}

	if cd, ok := dialer.(proxy.ContextDialer); ok {
		return cd.DialContext, nil
	}
	return func(ctx context.Context, network, address string) (net.Conn, error) {
		return dialWithContext(ctx, dialer, network, address)
	}, nil
}

// dialWithContext dials through a dialer that has no context support,
// giving up when ctx is done.
func dialWithContext(ctx context.Context, dialer proxy.Dialer, network, address string) (net.Conn, error) {
	type dialResult struct {
		conn net.Conn
		err  error
	}
	resultCh := make(chan dialResult, 1)

	go func() {
		conn, err := dialer.Dial(network, address)
		resultCh <- dialResult{conn, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case result := <-resultCh:
		return result.conn, result.err
	}
}

// isValidProxyAddress checks if the address is in "host:port" format with
// a port between 1 and 65535.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return n >= 1 && n <= 65535
}
