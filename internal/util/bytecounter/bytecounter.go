// Package bytecounter wraps an io.ReadCloser to track bytes read so
// far, for progress reporting and metrics. Modeled on zrepl's
// internal/util/bytecounter, used the same way: wrap the stream
// between sender and receiver, read Count() concurrently from a
// progress reporter while the copy is in flight.
package bytecounter

import (
	"io"
	"sync/atomic"
)

// ReadCloser counts bytes read through it. Safe for concurrent use:
// Count may be called from a different goroutine than Read/Close.
type ReadCloser struct {
	r io.ReadCloser
	n atomic.Uint64
}

// NewReadCloser wraps r.
func NewReadCloser(r io.ReadCloser) *ReadCloser {
	return &ReadCloser{r: r}
}

func (b *ReadCloser) Read(p []byte) (int, error) {
	n, err := b.r.Read(p)
	b.n.Add(uint64(n))
	return n, err
}

func (b *ReadCloser) Close() error { return b.r.Close() }

// Count returns the number of bytes read so far.
func (b *ReadCloser) Count() uint64 { return b.n.Load() }
