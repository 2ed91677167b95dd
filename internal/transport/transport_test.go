package transport

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildFlagsDropsEmptyAndDuplicateSources(t *testing.T) {
	parent, sources := BuildFlags([]string{"a", "", "b", "a"}, "best")
	assert.Equal(t, "best", parent)
	assert.Equal(t, []string{"a", "b"}, sources)
}

func TestBuildFlagsWithNoSources(t *testing.T) {
	parent, sources := BuildFlags(nil, "")
	assert.Empty(t, parent)
	assert.Empty(t, sources)
}

func TestErrorUnwrapAndMessage(t *testing.T) {
	inner := assert.AnError
	req := &Request{SourcePath: "/src/a", TargetDir: "/dst"}
	err := &Error{Request: req, Err: inner}
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "/src/a")
	assert.Contains(t, err.Error(), "/dst")
}

func TestLogWriterPlainFile(t *testing.T) {
	dir := t.TempDir()
	w, err := LogWriter(dir, "root/home", 0)
	require.NoError(t, err)
	_, err = w.Write([]byte("log line"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := os.ReadFile(filepath.Join(dir, "root", "home.log"))
	require.NoError(t, err)
	assert.Equal(t, "log line", string(data))
}

func TestLogWriterCompressed(t *testing.T) {
	dir := t.TempDir()
	w, err := LogWriter(dir, "root/var", 3)
	require.NoError(t, err)
	_, err = w.Write([]byte("compressed log contents"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	path := filepath.Join(dir, "root", "var.log.zst")
	require.FileExists(t, path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	dec, err := zstd.NewReader(nil)
	require.NoError(t, err)
	defer dec.Close()
	out, err := dec.DecodeAll(raw, nil)
	require.NoError(t, err)
	assert.Equal(t, "compressed log contents", string(out))
}

func TestCLISendRecvRespectsDryRun(t *testing.T) {
	c := &CLI{Bin: "/bin/false"}
	res, err := c.SendRecv(context.Background(), &Request{DryRun: true})
	require.NoError(t, err)
	assert.Zero(t, res.BytesTransferred)
}

func TestCLISendRecvStreamsFromSenderToReceiver(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "fake-btrfs")
	body := `
if [ "$1" = "send" ]; then
	printf 'payload-bytes'
	exit 0
fi
if [ "$1" = "receive" ]; then
	cat > "$2/received.bin"
	exit 0
fi
exit 1
`
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\n"+body), 0o755))

	target := t.TempDir()
	c := &CLI{Bin: script}
	res, err := c.SendRecv(context.Background(), &Request{
		SourcePath: "/src/subvol",
		TargetDir:  target,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(len("payload-bytes")), res.BytesTransferred)

	data, err := os.ReadFile(filepath.Join(target, "received.bin"))
	require.NoError(t, err)
	assert.Equal(t, "payload-bytes", string(data))
}

func TestCLISendRecvPropagatesSenderFailure(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "fake-btrfs")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\nif [ \"$1\" = send ]; then echo boom >&2; exit 1; fi\ncat >/dev/null\n"), 0o755))

	c := &CLI{Bin: script}
	_, err := c.SendRecv(context.Background(), &Request{
		SourcePath: "/src/subvol",
		TargetDir:  t.TempDir(),
	})
	assert.ErrorContains(t, err, "sender")
}
