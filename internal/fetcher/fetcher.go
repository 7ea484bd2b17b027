// Package fetcher dials an origin, sends the rewritten request, reads
// back and assembles the response, and decides whether it is eligible
// for caching — the Go analogue of proxy.c's forward_response, plus
// the optional single-flight collapsing named in spec.md §9.
package fetcher

import (
	"net"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/CSAPP-Labs/CSAPP-proxy/internal/cache"
	"github.com/CSAPP-Labs/CSAPP-proxy/internal/request"
	"github.com/CSAPP-Labs/CSAPP-proxy/pkg/errors"
	"github.com/CSAPP-Labs/CSAPP-proxy/pkg/netio"
)

const maxHeaderLine = 8192

// Dialer abstracts net.Dial so tests can substitute an in-process
// listener instead of a real TCP dial.
type Dialer func(network, addr string) (net.Conn, error)

// Fetcher opens an origin connection, writes a prebuilt request, and
// assembles the response into a cache.Artifact.
type Fetcher struct {
	dial          Dialer
	dialTimeout   time.Duration
	maxObjectSize int
	flight        singleflight.Group
}

// New builds a Fetcher. maxObjectSize bounds the per-object body cap
// used to decide the oversize policy of spec.md §4.4 step 6.
func New(maxObjectSize int, dial Dialer) *Fetcher {
	if dial == nil {
		dial = net.Dial
	}
	return &Fetcher{dial: dial, dialTimeout: 30 * time.Second, maxObjectSize: maxObjectSize}
}

// Result is the outcome of a single fetch: the bytes to relay to the
// client, and, when eligible, an artifact ready for cache.Insert.
type Result struct {
	Payload  []byte // headers + body, to write to the client verbatim
	Artifact *cache.Artifact
	Cacheable bool
}

// Fetch dials d.Addr(), writes requestPayload, reads back the full
// response, and returns the assembled Result.
//
// Concurrent Fetch calls for the same d.RawURL are collapsed into a
// single origin round trip via singleflight, matching the Design
// Notes' "at most one concurrent origin fetch per URL" enhancement.
// The key is the URL alone: waiters share the response to the first
// caller's requestPayload, whatever their own payload. Every waiter receives its own
// independent copy of the bytes, so no caller can mutate another's
// buffer.
func (f *Fetcher) Fetch(d *request.Descriptor, requestPayload []byte) (*Result, error) {
	v, err, _ := f.flight.Do(d.RawURL, func() (any, error) {
		return f.fetchOnce(d, requestPayload)
	})
	if err != nil {
		return nil, err
	}
	shared := v.(*Result)
	return cloneResult(shared), nil
}

func (f *Fetcher) fetchOnce(d *request.Descriptor, requestPayload []byte) (*Result, error) {
	conn, err := f.dial("tcp", d.Addr())
	if err != nil {
		return nil, errors.DialFailed(d.Addr(), err)
	}
	defer conn.Close()

	c := netio.NewConn(conn)

	if err := c.WriteFull(requestPayload); err != nil {
		return nil, err
	}

	buf := make([]byte, 0, f.maxObjectSize)
	contentLength := -1
	headerBytes := 0

	for {
		line, ok, rerr := c.ReadLine(maxHeaderLine)
		if rerr != nil {
			return nil, errors.PeerClosed("reading response headers", rerr)
		}
		if !ok {
			return nil, errors.PeerClosed("reading response headers", nil)
		}

		if cl, found := parseContentLength(line); found {
			contentLength = cl
		}

		buf = append(buf, line...)
		headerBytes += len(line)

		if isBlankLine(line) {
			break
		}
	}

	if contentLength >= 0 {
		buf = growTo(buf, headerBytes+contentLength)
	}

	bodyBytes, err := f.readBody(c, &buf, headerBytes, contentLength, d.RawURL)
	if err != nil {
		return nil, err
	}

	payload := buf[:headerBytes+bodyBytes]

	result := &Result{Payload: payload}
	if bodyBytes <= f.maxObjectSize {
		result.Cacheable = true
		result.Artifact = &cache.Artifact{Bytes: payload, H: headerBytes, B: bodyBytes}
	}
	return result, nil
}

// readBody reads the body into *buf at offset headerBytes, either
// until EOF (declaredLen < 0) or until declaredLen bytes have been
// read. When declaredLen is unknown and the running total would
// exceed f.maxObjectSize, assembly aborts per spec.md §4.4 step 6
// (OversizeUndeclared) rather than the source's process-abort.
func (f *Fetcher) readBody(c *netio.Conn, buf *[]byte, headerBytes, declaredLen int, urlKey string) (int, error) {
	const chunkSize = 8192
	chunk := make([]byte, chunkSize)
	total := 0

	for {
		if declaredLen >= 0 && total >= declaredLen {
			return declaredLen, nil
		}

		want := chunkSize
		if declaredLen >= 0 && declaredLen-total < want {
			want = declaredLen - total
		}

		n, err := c.ReadFull(chunk[:want])
		if err != nil {
			return 0, errors.PeerClosed("reading response body", err)
		}

		if n == 0 {
			return total, nil // clean EOF
		}

		if declaredLen < 0 && total+n > f.maxObjectSize {
			return 0, errors.OversizeUndeclared(urlKey, f.maxObjectSize)
		}

		needed := headerBytes + total + n
		if len(*buf) < needed {
			*buf = growTo(*buf, needed)
		}
		copy((*buf)[headerBytes+total:needed], chunk[:n])
		total += n
	}
}

func growTo(buf []byte, size int) []byte {
	if cap(buf) >= size {
		return buf[:size]
	}
	grown := make([]byte, size)
	copy(grown, buf)
	return grown
}

func isBlankLine(line []byte) bool {
	s := string(line)
	return s == "\r\n" || s == "\n"
}

func parseContentLength(line []byte) (int, bool) {
	s := strings.TrimRight(string(line), "\r\n")
	const prefix = "Content-Length:"
	if len(s) <= len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(s[len(prefix):]))
	if err != nil {
		return 0, false
	}
	return n, true
}

func cloneResult(r *Result) *Result {
	payload := make([]byte, len(r.Payload))
	copy(payload, r.Payload)

	clone := &Result{Payload: payload, Cacheable: r.Cacheable}
	if r.Artifact != nil {
		clone.Artifact = &cache.Artifact{
			Bytes: payload,
			H:     r.Artifact.H,
			B:     r.Artifact.B,
		}
	}
	return clone
}
