package errors_test

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"

	proxyerrors "github.com/CSAPP-Labs/CSAPP-proxy/pkg/errors"
)

func TestKindOf(t *testing.T) {
	err := proxyerrors.NotImplemented("POST")
	assert.Equal(t, proxyerrors.NotImplementedKind, proxyerrors.KindOf(err))
	assert.Equal(t, proxyerrors.Kind(""), proxyerrors.KindOf(stderrors.New("plain")))
}

func TestIsMatchesByKind(t *testing.T) {
	a := proxyerrors.DialFailed("example.test:80", stderrors.New("refused"))
	b := proxyerrors.DialFailed("other.test:80", nil)
	assert.True(t, stderrors.Is(a, b))
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("boom")
	err := proxyerrors.BrokenPipe("client write", cause)
	assert.Same(t, cause, stderrors.Unwrap(err))
}
