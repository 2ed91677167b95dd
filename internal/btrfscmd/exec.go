// Package btrfscmd wraps invocations of the btrfs(8) utility binary
// for everything except the send/receive data path, which lives in
// internal/transport behind its own interface so it stays swappable
// and mockable independent of this package.
package btrfscmd

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Bin is the path to the btrfs(8) binary; tests assign it to point at
// a fake script.
var Bin = "btrfs"

// CommandError wraps a failed invocation of Bin, carrying stderr for
// diagnostics the way zrepl's ZFSError carries zfs(8)'s stderr.
type CommandError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	stderr := strings.TrimSpace(e.Stderr)
	if stderr == "" {
		return fmt.Sprintf("btrfs %s: %s", strings.Join(e.Args, " "), e.Err)
	}
	return fmt.Sprintf("btrfs %s: %s: %s", strings.Join(e.Args, " "), e.Err, stderr)
}

func (e *CommandError) Unwrap() error { return e.Err }

// Run executes Bin with args and returns stdout. On non-zero exit it
// returns a *CommandError.
func Run(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, Bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, &CommandError{Args: args, Stderr: stderr.String(), Err: err}
	}
	return stdout.Bytes(), nil
}
