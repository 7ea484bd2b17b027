package fetcher_test

import (
	"bufio"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CSAPP-Labs/CSAPP-proxy/internal/fetcher"
	"github.com/CSAPP-Labs/CSAPP-proxy/internal/request"
)

// serveOnce accepts a single connection on addr and writes resp, then
// closes. It returns the accepted request line for assertions.
func serveOnce(t *testing.T, ln net.Listener, resp []byte) <-chan string {
	t.Helper()
	reqLine := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			reqLine <- ""
			return
		}
		defer conn.Close()

		r := bufio.NewReader(conn)
		line, _ := r.ReadString('\n')
		reqLine <- line

		// drain headers
		for {
			l, err := r.ReadString('\n')
			if err != nil || l == "\r\n" {
				break
			}
		}

		_, _ = conn.Write(resp)
	}()
	return reqLine
}

func TestFetchWithContentLength(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	body := "AAAAAAAAAA"
	resp := []byte(fmt.Sprintf("HTTP/1.0 200 OK\r\nContent-Length: %d\r\n\r\n%s", len(body), body))
	reqLine := serveOnce(t, ln, resp)

	f := fetcher.New(102400, net.Dial)
	d := &request.Descriptor{Method: "GET", RawURL: "http://example.test/a", Host: ln.Addr().(*net.TCPAddr).IP.String(), Port: fmt.Sprintf("%d", ln.Addr().(*net.TCPAddr).Port), Path: "/a"}

	req := []byte("GET /a HTTP/1.0\r\nHost: example.test\r\n\r\n")
	result, err := f.Fetch(d, req)
	require.NoError(t, err)

	assert.Equal(t, "GET /a HTTP/1.0\r\n", <-reqLine)
	assert.True(t, result.Cacheable)
	require.NotNil(t, result.Artifact)
	assert.Equal(t, 10, result.Artifact.B)
	assert.Equal(t, string(resp), string(result.Payload))
}

func TestFetchOversizeDeclaredStillServedNotCached(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	const maxObjectSize = 100
	body := make([]byte, maxObjectSize+1)
	for i := range body {
		body[i] = 'x'
	}
	resp := append([]byte(fmt.Sprintf("HTTP/1.0 200 OK\r\nContent-Length: %d\r\n\r\n", len(body))), body...)
	serveOnce(t, ln, resp)

	f := fetcher.New(maxObjectSize, net.Dial)
	d := &request.Descriptor{RawURL: "http://example.test/big", Host: ln.Addr().(*net.TCPAddr).IP.String(), Port: fmt.Sprintf("%d", ln.Addr().(*net.TCPAddr).Port), Path: "/big"}

	req := []byte("GET /big HTTP/1.0\r\nHost: example.test\r\n\r\n")
	result, err := f.Fetch(d, req)
	require.NoError(t, err)

	assert.False(t, result.Cacheable)
	assert.Nil(t, result.Artifact)
	assert.Equal(t, len(resp), len(result.Payload))
}

func TestFetchOversizeUndeclaredAborts(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	const maxObjectSize = 10
	body := make([]byte, maxObjectSize*4)
	for i := range body {
		body[i] = 'y'
	}
	resp := append([]byte("HTTP/1.0 200 OK\r\n\r\n"), body...)
	serveOnce(t, ln, resp)

	f := fetcher.New(maxObjectSize, net.Dial)
	d := &request.Descriptor{RawURL: "http://example.test/huge", Host: ln.Addr().(*net.TCPAddr).IP.String(), Port: fmt.Sprintf("%d", ln.Addr().(*net.TCPAddr).Port), Path: "/huge"}

	req := []byte("GET /huge HTTP/1.0\r\nHost: example.test\r\n\r\n")
	_, err = f.Fetch(d, req)
	require.Error(t, err)
}

func TestFetchDialFailure(t *testing.T) {
	f := fetcher.New(102400, net.Dial)
	d := &request.Descriptor{RawURL: "http://127.0.0.1:1", Host: "127.0.0.1", Port: "1", Path: "/"}
	_, err := f.Fetch(d, []byte("GET / HTTP/1.0\r\n\r\n"))
	assert.Error(t, err)
}
