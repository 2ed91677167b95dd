package transport

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"time"

	"github.com/mwilck/btrfs-clone/internal/btrfscmd"
)

// CLI is the default Transport: it pipes `btrfs send` directly into
// `btrfs receive` without an intermediate buffer, connecting the
// sender's stdout to the receiver's stdin the way os/exec.Cmd permits
// two commands to be chained.
type CLI struct {
	// Bin overrides btrfscmd.Bin for this transport instance; empty
	// means use btrfscmd.Bin.
	Bin string
}

var _ Transport = (*CLI)(nil)

func (c *CLI) bin() string {
	if c.Bin != "" {
		return c.Bin
	}
	return btrfscmd.Bin
}

func (c *CLI) SendRecv(ctx context.Context, req *Request) (*Result, error) {
	if req.DryRun {
		return &Result{}, nil
	}

	sendArgs := []string{"send"}
	if req.Parent != "" {
		sendArgs = append(sendArgs, "-p", req.Parent)
	}
	for _, cs := range req.CloneSources {
		sendArgs = append(sendArgs, "-c", cs)
	}
	sendArgs = append(sendArgs, req.SourcePath)

	recvArgs := []string{"receive", req.TargetDir}

	sender := exec.CommandContext(ctx, c.bin(), sendArgs...)
	receiver := exec.CommandContext(ctx, c.bin(), recvArgs...)

	pipeR, pipeW := io.Pipe()
	counted := WithByteCounting(pipeR)
	sender.Stdout = pipeW
	receiver.Stdin = counted

	senderStderr, err := sender.StderrPipe()
	if err != nil {
		return nil, &Error{Request: req, Err: fmt.Errorf("open sender stderr: %w", err)}
	}
	receiverStderr, err := receiver.StderrPipe()
	if err != nil {
		return nil, &Error{Request: req, Err: fmt.Errorf("open receiver stderr: %w", err)}
	}

	start := time.Now()
	if err := sender.Start(); err != nil {
		return nil, &Error{Request: req, Err: fmt.Errorf("start sender: %w", err)}
	}
	if err := receiver.Start(); err != nil {
		_ = sender.Process.Kill()
		return nil, &Error{Request: req, Err: fmt.Errorf("start receiver: %w", err)}
	}

	logDone := make(chan struct{})
	if req.Log != nil {
		go func() {
			defer close(logDone)
			_, _ = io.Copy(req.Log, io.MultiReader(senderStderr, receiverStderr))
		}()
	} else {
		close(logDone)
		go io.Copy(io.Discard, senderStderr) //nolint:errcheck
		go io.Copy(io.Discard, receiverStderr) //nolint:errcheck
	}

	senderErr := sender.Wait()
	_ = pipeW.Close()
	receiverErr := receiver.Wait()
	<-logDone

	if senderErr != nil {
		return nil, &Error{Request: req, Err: fmt.Errorf("sender: %w", senderErr)}
	}
	if receiverErr != nil {
		return nil, &Error{Request: req, Err: fmt.Errorf("receiver: %w", receiverErr)}
	}

	return &Result{
		BytesTransferred: counted.Count(),
		Duration:         time.Since(start),
	}, nil
}
