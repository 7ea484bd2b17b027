// Package dispatcher is the accept loop: one independently scheduled
// worker per accepted connection, the Go analogue of proxy.c's
// main()/thread() pair (spec.md §4.6).
package dispatcher

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/paulbellamy/ratecounter"

	"github.com/CSAPP-Labs/CSAPP-proxy/contrib/log"
	"github.com/CSAPP-Labs/CSAPP-proxy/internal/cache"
	"github.com/CSAPP-Labs/CSAPP-proxy/internal/fetcher"
	"github.com/CSAPP-Labs/CSAPP-proxy/internal/rewrite"
	proxyerrors "github.com/CSAPP-Labs/CSAPP-proxy/pkg/errors"
	"github.com/CSAPP-Labs/CSAPP-proxy/pkg/netio"
	"github.com/CSAPP-Labs/CSAPP-proxy/internal/request"
)

const maxRequestLineLen = 8192

// Dispatcher accepts connections on a listener and runs the
// request-handling pipeline for each on its own goroutine. The
// dispatcher itself never blocks on a worker's completion; it never
// pools or admission-controls connections (spec.md §4.6).
type Dispatcher struct {
	cache   *cache.Cache
	fetcher *fetcher.Fetcher
	log     log.Logger
	metrics *Metrics
	rate    *ratecounter.RateCounter

	wg sync.WaitGroup
}

// New builds a Dispatcher over an already-constructed cache and
// fetcher.
func New(c *cache.Cache, f *fetcher.Fetcher, logger log.Logger, metrics *Metrics) *Dispatcher {
	if logger == nil {
		logger = log.GetLogger()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Dispatcher{
		cache:   c,
		fetcher: f,
		log:     logger,
		metrics: metrics,
		rate:    ratecounter.NewRateCounter(1 * time.Minute),
	}
}

// Serve accepts connections from ln until the listener is closed
// (e.g. during shutdown), spawning one worker goroutine per
// connection. Any other accept error is logged and the loop keeps
// accepting. It blocks until the accept loop ends.
func (d *Dispatcher) Serve(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			d.log.Errorf("accept failed: %v", err)
			continue
		}

		d.rate.Incr(1)
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.handle(conn)
		}()
	}
}

// Wait blocks until every in-flight worker has returned, for use
// during graceful shutdown after the listener has stopped accepting.
func (d *Dispatcher) Wait() { d.wg.Wait() }

// RequestsPerMinute reports the accepted-connection rate sampled over
// the trailing minute, the Go analogue of the original's ad hoc
// throughput printouts.
func (d *Dispatcher) RequestsPerMinute() int64 { return d.rate.Rate() }

// handle runs the full pipeline for one accepted connection end to
// end and guarantees the client socket (and, on a miss, the origin
// socket opened inside fetcher) are released on every exit path
// (spec.md §5 resource-release discipline).
func (d *Dispatcher) handle(conn net.Conn) {
	defer conn.Close()

	connID := uuid.NewString()
	clog := log.With(d.log, "conn", connID, "remote", conn.RemoteAddr().String())

	c := netio.NewConn(conn)

	line, ok, err := c.ReadLine(maxRequestLineLen)
	if err != nil {
		clog.Warnf("read request line failed: %v", err)
		d.metrics.observe("read_error")
		return
	}
	if !ok {
		d.metrics.observe("peer_closed")
		return
	}

	desc, err := request.ParseLine(string(line))
	if err != nil {
		switch proxyerrors.KindOf(err) {
		case proxyerrors.NotImplementedKind:
			clog.Infof("rejecting request: %v", err)
			d.metrics.observe("not_implemented")
		case proxyerrors.BadSchemeKind:
			clog.Warnf("rejecting request: %v", err)
			d.metrics.observe("bad_scheme")
		default:
			clog.Warnf("rejecting request: %v", err)
			d.metrics.observe("parse_error")
		}
		return
	}

	if artifact, found := d.cache.Lookup(desc.RawURL); found {
		if werr := c.WriteFull(artifact.Bytes); werr != nil {
			clog.Warnf("writing cached response to client failed: %v", werr)
			d.metrics.observe("client_write_error")
			return
		}
		clog.Debugf("cache hit for %s (%d body bytes)", desc.RawURL, artifact.B)
		d.metrics.observe("hit")
		return
	}

	payload, _, err := rewrite.Build(c, desc, maxRequestLineLen)
	if err != nil {
		clog.Warnf("reading client headers failed: %v", err)
		d.metrics.observe("read_error")
		return
	}

	result, err := d.fetcher.Fetch(desc, payload)
	if err != nil {
		switch proxyerrors.KindOf(err) {
		case proxyerrors.DialFailedKind:
			clog.Warnf("dial origin failed: %v", err)
			d.metrics.observe("dial_failed")
		case proxyerrors.PeerClosedKind, proxyerrors.BrokenPipeKind:
			clog.Debugf("origin connection closed mid-transfer: %v", err)
			d.metrics.observe("peer_closed")
		case proxyerrors.OversizeKind:
			clog.Warnf("dropping oversize undeclared response: %v", err)
			d.metrics.observe("oversize_undeclared")
		default:
			clog.Errorf("fetch failed: %v", err)
			d.metrics.observe("fetch_error")
		}
		return
	}

	if werr := c.WriteFull(result.Payload); werr != nil {
		clog.Warnf("writing response to client failed: %v", werr)
		d.metrics.observe("client_write_error")
		return
	}

	if result.Cacheable {
		d.cache.Insert(desc.RawURL, result.Artifact)
	}

	clog.Debugf("miss served for %s (%d bytes)", desc.RawURL, len(result.Payload))
	d.metrics.observe("miss")
}
