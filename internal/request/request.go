// Package request parses an HTTP/1.0 request line into a Descriptor,
// the Go analogue of proxy.c's readparse_request/parse_url.
package request

import (
	"strings"

	proxyerrors "github.com/CSAPP-Labs/CSAPP-proxy/pkg/errors"
)

// Descriptor is the parsed form of a client's request line. RawURL is
// preserved byte-identical to what the client sent — it is used
// verbatim as the cache key (spec.md §3).
type Descriptor struct {
	Method string
	RawURL string
	Host   string
	Port   string
	Path   string
}

// Addr returns "host:port", ready to pass to net.Dial.
func (d *Descriptor) Addr() string {
	return d.Host + ":" + d.Port
}

// ParseLine parses one HTTP/1.0 request line of the form
// "<method> <url> <version>\r\n". Only GET is accepted; anything else
// yields a *proxyerrors.Error of NotImplementedKind. A scheme that
// does not start with "http", or is "https", yields BadSchemeKind.
func ParseLine(line string) (*Descriptor, error) {
	line = strings.TrimRight(line, "\r\n")
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return nil, proxyerrors.NotImplemented(line)
	}
	method, rawURL := fields[0], fields[1]

	if method != "GET" {
		return nil, proxyerrors.NotImplemented(method)
	}

	d, err := parseURL(rawURL)
	if err != nil {
		return nil, err
	}
	d.Method = method
	d.RawURL = rawURL
	return d, nil
}

// parseURL splits "scheme://host[:port][abs_path]" the way
// parse_url() in proxy.c does: scheme must start with "http" (https
// is rejected, same as the original), default port is "80", and a
// missing abs_path becomes "/".
func parseURL(rawURL string) (*Descriptor, error) {
	scheme, rest, found := strings.Cut(rawURL, "://")
	if !found || !strings.HasPrefix(scheme, "http") || scheme == "https" {
		return nil, proxyerrors.BadScheme(scheme)
	}

	authority := rest
	path := "/"
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		authority = rest[:i]
		path = rest[i:]
	}
	if authority == "" {
		return nil, proxyerrors.BadScheme(scheme)
	}

	host, port := authority, "80"
	if h, p, ok := strings.Cut(authority, ":"); ok {
		host, port = h, p
	}

	return &Descriptor{Host: host, Port: port, Path: path}, nil
}
