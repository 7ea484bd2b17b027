// Package rewrite builds the canonical origin-facing request from a
// client's parsed request line and header block, the Go analogue of
// proxy.c's send_request.
package rewrite

import (
	"strings"

	"github.com/CSAPP-Labs/CSAPP-proxy/internal/request"
)

const (
	userAgent      = "Mozilla/5.0 (X11; Ubuntu; Linux x86_64; rv:84.0) Gecko/20100101 Firefox/84.0"
	acceptHeader   = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	acceptEncoding = "gzip, deflate"
)

// droppedPrefixes are the client-supplied header lines the proxy
// never forwards verbatim: it overrides them with its own fixed
// values. A client "Host:" line is handled separately by Build.
var droppedPrefixes = []string{"Connection:", "Proxy-Connection:", "Accept:", "Accept-Encoding:"}

// Reader reads a single header line (including its trailing CRLF), or
// ok=false at clean EOF, matching netio.Conn.ReadLine's contract.
type Reader interface {
	ReadLine(maxLen int) (line []byte, ok bool, err error)
}

// Build drains header lines from r until the blank-line terminator,
// then returns the full origin-facing request (request line + the
// canonical proxy header block + forwarded client headers + blank
// line), ready to write to the origin connection in one call.
//
// A client "Host:" header line, if present, replaces d.Host in the
// outgoing "Host:" header; effectiveHost reports the value written.
// The dial target is not affected: it stays the URL's host:port.
func Build(r Reader, d *request.Descriptor, maxLineLen int) (payload []byte, effectiveHost string, err error) {
	effectiveHost = d.Host

	var forwarded strings.Builder
	for {
		line, ok, rerr := r.ReadLine(maxLineLen)
		if rerr != nil {
			return nil, "", rerr
		}
		if !ok {
			break // peer closed before the blank line; treat as end of headers
		}

		trimmed := strings.TrimRight(string(line), "\r\n")
		if trimmed == "" {
			break
		}

		if host, ok := cutHeader(trimmed, "Host:"); ok {
			effectiveHost = host
			continue
		}
		if hasAnyPrefix(trimmed, droppedPrefixes) {
			continue
		}

		forwarded.WriteString(trimmed)
		forwarded.WriteString("\r\n")
	}

	var b strings.Builder
	b.WriteString("GET ")
	b.WriteString(d.Path)
	b.WriteString(" HTTP/1.0\r\n")
	b.WriteString("Host: ")
	b.WriteString(effectiveHost)
	b.WriteString("\r\n")
	b.WriteString("User-Agent: ")
	b.WriteString(userAgent)
	b.WriteString("\r\n")
	b.WriteString("Accept: ")
	b.WriteString(acceptHeader)
	b.WriteString("\r\n")
	b.WriteString("Accept-Encoding: ")
	b.WriteString(acceptEncoding)
	b.WriteString("\r\n")
	b.WriteString("Connection: close\r\n")
	b.WriteString("Proxy-Connection: close\r\n")
	b.WriteString(forwarded.String())
	b.WriteString("\r\n")

	return []byte(b.String()), effectiveHost, nil
}

func cutHeader(line, prefix string) (value string, ok bool) {
	if !strings.HasPrefix(line, prefix) {
		return "", false
	}
	return strings.TrimSpace(line[len(prefix):]), true
}

func hasAnyPrefix(line string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}
