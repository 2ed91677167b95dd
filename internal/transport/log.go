package transport

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// LogWriter opens (creating parent directories as needed) the saved
// send/receive log file for a subvolume's target path (spec §6), zstd
// compressing it at level when level > 0. Callers must Close the
// returned writer to flush the compressor and close the file.
func LogWriter(dir, targetPath string, level int) (io.WriteCloser, error) {
	name := filepath.Join(dir, filepath.FromSlash(targetPath)+".log")
	if level > 0 {
		name += ".zst"
	}
	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.Create(name)
	if err != nil {
		return nil, fmt.Errorf("create log file: %w", err)
	}
	if level <= 0 {
		return f, nil
	}

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	return &compressedLog{enc: enc, f: f}, nil
}

type compressedLog struct {
	enc *zstd.Encoder
	f   *os.File
}

func (c *compressedLog) Write(p []byte) (int, error) { return c.enc.Write(p) }

func (c *compressedLog) Close() error {
	if err := c.enc.Close(); err != nil {
		_ = c.f.Close()
		return err
	}
	return c.f.Close()
}
