// Package netio is the Go analogue of io_wrappers.c: a buffered,
// line-oriented and byte-counted reader plus a robust writer, all
// tolerant of the handful of socket conditions a proxy must not treat
// as fatal.
//
// Go's net.Conn already retries EINTR internally, so unlike the C
// rio_w package there is no explicit EINTR retry loop here — that
// case simply never surfaces to this package's callers.
package netio

import (
	"bufio"
	"errors"
	"io"
	"net"
	"syscall"

	proxyerrors "github.com/CSAPP-Labs/CSAPP-proxy/pkg/errors"
)

// DefaultMaxLine bounds a single ReadLine call, the Go equivalent of
// MAXLINE in the original.
const DefaultMaxLine = 8192

// Conn wraps a net.Conn with a buffered reader for line/byte-counted
// reads and a robust, retrying writer.
type Conn struct {
	net.Conn
	r *bufio.Reader
}

// NewConn wraps c. The read buffer persists across calls, matching
// the C rio_t's internal buffer.
func NewConn(c net.Conn) *Conn {
	return &Conn{Conn: c, r: bufio.NewReaderSize(c, 4096)}
}

// ReadLine reads a single line up to maxLen bytes, including its
// trailing "\n" if one was found within the limit. It returns
// ok=false, err=nil on a clean EOF with no bytes read (the rio_w
// "return 0" case) and a non-nil err only for a genuine I/O failure.
// A peer RST (ECONNRESET) observed mid-read is folded into the clean
// EOF case, matching io_wrappers.c's explicit edit.
func (c *Conn) ReadLine(maxLen int) (line []byte, ok bool, err error) {
	if maxLen <= 0 {
		maxLen = DefaultMaxLine
	}

	buf := make([]byte, 0, 256)
	for len(buf) < maxLen {
		b, rerr := c.r.ReadByte()
		if rerr != nil {
			if isCleanEOF(rerr) {
				if len(buf) == 0 {
					return nil, false, nil
				}
				return buf, true, nil
			}
			return nil, false, rerr
		}
		buf = append(buf, b)
		if b == '\n' {
			return buf, true, nil
		}
	}
	return buf, true, nil
}

// ReadFull reads exactly len(p) bytes unless EOF or ECONNRESET is
// reached first, in which case it returns the bytes read so far and
// n < len(p), err == nil. This is the buffered analogue of
// rio_readnb_w.
func (c *Conn) ReadFull(p []byte) (n int, err error) {
	n, err = io.ReadFull(c.r, p)
	if err != nil {
		if isCleanEOF(err) || errors.Is(err, io.ErrUnexpectedEOF) {
			return n, nil
		}
		return n, err
	}
	return n, nil
}

// Read lets Conn satisfy io.Reader through the same buffer ReadLine
// and ReadFull use, so a caller can hand it to generic io helpers
// (io.Copy, io.CopyN) without bypassing the buffer.
func (c *Conn) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if err != nil && isCleanEOF(err) {
		return n, io.EOF
	}
	return n, err
}

// WriteFull writes all of p, looping on short writes, and returns a
// *proxyerrors.Error wrapping BrokenPipeKind if the peer has gone away
// (EPIPE), so callers can treat it like any other mid-transfer
// disconnect rather than a fatal error. This is the Go analogue of
// rio_writen_w.
func (c *Conn) WriteFull(p []byte) error {
	for len(p) > 0 {
		n, err := c.Conn.Write(p)
		if err != nil {
			if isBrokenPipe(err) {
				return proxyerrors.BrokenPipe("write", err)
			}
			return err
		}
		p = p[n:]
	}
	return nil
}

func isCleanEOF(err error) bool {
	if errors.Is(err, io.EOF) {
		return true
	}
	return errors.Is(err, syscall.ECONNRESET)
}

func isBrokenPipe(err error) bool {
	return errors.Is(err, syscall.EPIPE)
}
