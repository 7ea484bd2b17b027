package request_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	proxyerrors "github.com/CSAPP-Labs/CSAPP-proxy/pkg/errors"
	"github.com/CSAPP-Labs/CSAPP-proxy/internal/request"
)

func TestParseLineBasic(t *testing.T) {
	d, err := request.ParseLine("GET http://example.test/a HTTP/1.0\r\n")
	require.NoError(t, err)
	assert.Equal(t, "GET", d.Method)
	assert.Equal(t, "example.test", d.Host)
	assert.Equal(t, "80", d.Port)
	assert.Equal(t, "/a", d.Path)
	assert.Equal(t, "http://example.test/a", d.RawURL)
	assert.Equal(t, "example.test:80", d.Addr())
}

func TestParseLineDefaultPath(t *testing.T) {
	d, err := request.ParseLine("GET http://example.test HTTP/1.0\r\n")
	require.NoError(t, err)
	assert.Equal(t, "/", d.Path)
}

func TestParseLineExplicitPort(t *testing.T) {
	d, err := request.ParseLine("GET http://example.test:8080/a/b HTTP/1.0\r\n")
	require.NoError(t, err)
	assert.Equal(t, "8080", d.Port)
	assert.Equal(t, "/a/b", d.Path)
}

func TestParseLineRejectsNonGET(t *testing.T) {
	_, err := request.ParseLine("POST http://example.test/ HTTP/1.0\r\n")
	assert.Equal(t, proxyerrors.NotImplementedKind, proxyerrors.KindOf(err))
}

func TestParseLineRejectsHTTPS(t *testing.T) {
	_, err := request.ParseLine("GET https://example.test/ HTTP/1.0\r\n")
	assert.Equal(t, proxyerrors.BadSchemeKind, proxyerrors.KindOf(err))
}

func TestParseLineRejectsNonHTTPScheme(t *testing.T) {
	_, err := request.ParseLine("GET ftp://example.test/ HTTP/1.0\r\n")
	assert.Equal(t, proxyerrors.BadSchemeKind, proxyerrors.KindOf(err))
}
