// Package logging builds the slog.Logger used everywhere else in
// this module, formatted the way zrepl's stdout outlet formats
// human-readable logs: colorized level tags via fatih/color, and
// long values soft-wrapped via muesli/reflow so a wide clone-source
// list doesn't blow past the terminal width.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/fatih/color"
	"github.com/muesli/reflow/wordwrap"
)

// Verbosity maps the repeatable --verbose flag to a slog.Level, one
// step per repetition past the default (warn).
func Verbosity(count int) slog.Level {
	switch {
	case count <= 0:
		return slog.LevelWarn
	case count == 1:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

// New builds the human-readable handler used on a terminal. w is
// typically os.Stderr; color is auto-disabled by the fatih/color
// package when w is not a terminal.
func New(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(&handler{w: w, level: level})
}

type handler struct {
	w     io.Writer
	level slog.Level
	attrs []slog.Attr
}

func (h *handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *handler) Handle(_ context.Context, r slog.Record) error {
	tag := levelTag(r.Level)

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", tag, r.Message)
	for _, a := range h.attrs {
		fmt.Fprintf(&b, " %s=%v", a.Key, a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(&b, " %s=%v", a.Key, a.Value)
		return true
	})

	wrapped := wordwrap.NewWriter(80)
	if _, err := wrapped.Write([]byte(b.String())); err != nil {
		return err
	}
	if err := wrapped.Close(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(h.w, strings.TrimRight(wrapped.String(), "\n"))
	return err
}

func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &handler{w: h.w, level: h.level, attrs: merged}
}

func (h *handler) WithGroup(name string) slog.Handler {
	// No nested groups in this tool's ambient log output; names already
	// disambiguate via the subvolume path attribute.
	return h
}

func levelTag(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return color.RedString("ERROR")
	case level >= slog.LevelWarn:
		return color.YellowString(" WARN")
	case level >= slog.LevelInfo:
		return color.CyanString(" INFO")
	default:
		return color.New(color.Faint).Sprint("DEBUG")
	}
}
