package bytecounter

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCloserCountsBytesRead(t *testing.T) {
	rc := NewReadCloser(io.NopCloser(strings.NewReader("hello world")))
	buf := make([]byte, 5)

	n, err := rc.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, uint64(5), rc.Count())

	_, err = io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, uint64(11), rc.Count())
}

func TestReadCloserCloseDelegates(t *testing.T) {
	var closed bool
	rc := NewReadCloser(closerFunc{Reader: strings.NewReader(""), fn: func() error { closed = true; return nil }})
	require.NoError(t, rc.Close())
	assert.True(t, closed)
}

type closerFunc struct {
	io.Reader
	fn func() error
}

func (c closerFunc) Close() error { return c.fn() }
