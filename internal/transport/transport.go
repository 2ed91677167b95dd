// Package transport is the Send/Receive Transport external interface
// from spec §4.3/§6: it streams one subvolume from the source mount
// into a receive at a target directory, given an optional parent and
// zero or more clone sources, without buffering the whole stream.
package transport

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/mwilck/btrfs-clone/internal/util/bytecounter"
)

// Request describes one send/receive invocation. Parent and
// CloneSources are paths on TARGET of already-transferred subvolumes;
// an empty Parent means a full (non-incremental) send.
type Request struct {
	SourcePath   string
	TargetDir    string
	Parent       string
	CloneSources []string
	DryRun       bool

	// Log, if non-nil, receives a copy of both children's stderr for
	// the saved per-subvolume send/receive log (spec §6 "Optional log
	// files ... named after the subvolume's target path").
	Log io.Writer
}

// Result reports what happened, for the end-of-run report and the
// progress TUI.
type Result struct {
	BytesTransferred uint64
	Duration         time.Duration
}

// Error wraps a sender or receiver failure. By default it is fatal;
// the Orchestrator downgrades it to a warning under --ignore-errors
// (spec §7).
type Error struct {
	Request *Request
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("send/receive %s -> %s: %s", e.Request.SourcePath, e.Request.TargetDir, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Transport executes one send/receive. Implementations must stream
// rather than buffer (spec §4.3).
type Transport interface {
	SendRecv(ctx context.Context, req *Request) (*Result, error)
}

// BuildFlags is the shared helper from spec §4.7: it de-duplicates
// cloneSources (dropping empty paths) and returns them alongside best,
// the chosen parent path (empty if none). The Flat Staging Area's Send
// and the orchestrator's direct transfer path call this right before
// invoking a Transport.
func BuildFlags(cloneSources []string, best string) (parent string, sources []string) {
	seen := make(map[string]struct{}, len(cloneSources))
	for _, cs := range cloneSources {
		if cs == "" {
			continue
		}
		if _, dup := seen[cs]; dup {
			continue
		}
		seen[cs] = struct{}{}
		sources = append(sources, cs)
	}
	return best, sources
}

// WithByteCounting wraps r so the returned ReadCloser's Count() can be
// polled by a progress reporter while the copy is in flight (spec
// supplement: "Byte-counting transport").
func WithByteCounting(r io.ReadCloser) *bytecounter.ReadCloser {
	return bytecounter.NewReadCloser(r)
}
