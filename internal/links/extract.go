package links

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"slices"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
	"golang.org/x/net/idna"
)

// Extract parses an HTML document and returns the distinct hosts of all
// <a href> targets, sorted. contentType is the response Content-Type
// header, used to pick the character encoding of the body.
//
// Malformed documents are parsed leniently; an error is only returned
// when reading r fails.
func Extract(r io.Reader, contentType string) ([]string, error) {
	utf8Reader, err := charset.NewReader(r, contentType)
	if errors.Is(err, io.EOF) {
		// Empty body
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to detect charset: %w", err)
	}

	doc, err := html.Parse(utf8Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	seen := make(map[string]struct{})

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			if host, ok := hostOf(getAttr(n, "href")); ok {
				seen[host] = struct{}{}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	hosts := make([]string, 0, len(seen))
	for host := range seen {
		hosts = append(hosts, host)
	}
	slices.Sort(hosts)
	return hosts, nil
}

// hostOf returns the normalized host of an href, if it has one.
func hostOf(href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}
	u, err := url.Parse(href)
	if err != nil {
		// A bad escape in the path or query does not spoil the host
		u, err = url.Parse(authority(href))
	}
	if err != nil || u.Host == "" {
		return "", false
	}
	return NormalizeHost(u.Host)
}

// authority cuts an absolute or protocol-relative href after its host:
// "http://a.com/%zz" becomes "http://a.com". Other hrefs are returned as is.
func authority(href string) string {
	i := strings.Index(href, "//")
	if i < 0 || (i > 0 && !isScheme(href[:i])) {
		return href
	}
	rest := href[i+2:]
	if end := strings.IndexAny(rest, "/?#"); end >= 0 {
		rest = rest[:end]
	}
	return href[:i+2] + rest
}

// isScheme reports whether prefix is a URL scheme followed by a colon.
func isScheme(prefix string) bool {
	scheme, ok := strings.CutSuffix(prefix, ":")
	if !ok || scheme == "" {
		return false
	}
	for i, r := range scheme {
		switch {
		case 'a' <= r && r <= 'z', 'A' <= r && r <= 'Z':
		case i > 0 && ('0' <= r && r <= '9' || r == '+' || r == '-' || r == '.'):
		default:
			return false
		}
	}
	return true
}

// NormalizeHost converts a host, optionally with a port, to the form
// domains are stored in: lowercase, IDNA A-labels, no trailing dot.
// It reports false for hosts that cannot name a domain.
//
//	NormalizeHost("Bücher.DE")     // "xn--bcher-kva.de", true
//	NormalizeHost("A.com:8080")    // "a.com:8080", true
func NormalizeHost(host string) (string, bool) {
	host = strings.TrimSpace(host)

	name, port := host, ""
	if h, p, err := net.SplitHostPort(host); err == nil {
		name, port = h, p
	}
	name = strings.TrimSuffix(name, ".")
	if name == "" {
		return "", false
	}

	if net.ParseIP(name) == nil {
		ascii, err := idna.Lookup.ToASCII(name)
		switch {
		case err == nil:
			name = ascii
		case isASCII(name):
			// Names like "my_host.example" break STD3 rules but resolve fine
			name = strings.ToLower(name)
		default:
			return "", false
		}
		if strings.ContainsAny(name, " /\\@") {
			return "", false
		}
	}

	if port != "" {
		return net.JoinHostPort(name, port), true
	}
	return name, true
}

// isASCII reports whether s contains only ASCII characters.
func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
