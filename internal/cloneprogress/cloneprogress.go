// Package cloneprogress renders a live per-subvolume transfer list
// while an Orchestrator run is in progress, falling back to plain
// slog lines when stdout is not a terminal (spec's CLI surface keeps
// logging external, but a progress UI for an interactive run is
// firmly within the tool's ambient stack). --verbose does not affect
// which of the two is used.
package cloneprogress

import (
	"fmt"
	"log/slog"
	"os"

	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/mattn/go-isatty"
)

// Event is one state transition the Orchestrator reports for a
// single subvolume.
type Event struct {
	Path   string
	Status Status
	Bytes  uint64
	Err    error
}

// Status is the lifecycle a subvolume's transfer passes through.
type Status int

const (
	Pending Status = iota
	Sending
	Done
	Failed
	Skipped
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Sending:
		return "sending"
	case Done:
		return "done"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Reporter is what the Orchestrator feeds progress into. Both
// implementations below satisfy it.
type Reporter interface {
	Report(Event)
	Close()
}

// New picks the TUI reporter when stdout is a terminal, otherwise a
// reporter that just forwards events to log.
func New(log *slog.Logger) Reporter {
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		return &logReporter{log: log}
	}
	r := &tuiReporter{events: make(chan Event, 64), done: make(chan struct{})}
	r.program = tea.NewProgram(newModel())
	go r.run()
	return r
}

type logReporter struct{ log *slog.Logger }

func (r *logReporter) Report(e Event) {
	attrs := []any{slog.String("path", e.Path), slog.String("status", e.Status.String())}
	if e.Bytes > 0 {
		attrs = append(attrs, slog.Uint64("bytes", e.Bytes))
	}
	if e.Err != nil {
		r.log.Error("transfer failed", append(attrs, slog.Any("err", e.Err))...)
		return
	}
	r.log.Info("transfer", attrs...)
}

func (r *logReporter) Close() {}

type tuiReporter struct {
	program *tea.Program
	events  chan Event
	done    chan struct{}
}

func (r *tuiReporter) Report(e Event) { r.events <- e }

func (r *tuiReporter) Close() {
	close(r.events)
	<-r.done
}

func (r *tuiReporter) run() {
	defer close(r.done)
	go func() {
		for e := range r.events {
			r.program.Send(progressMsg(e))
		}
		r.program.Send(quitMsg{})
	}()
	_, _ = r.program.Run()
}

type progressMsg Event
type quitMsg struct{}

type row struct {
	status Status
	bytes  uint64
	err    error
}

type model struct {
	order   []string
	rows    map[string]row
	spinner spinner.Model
}

func newModel() model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	return model{rows: make(map[string]row), spinner: s}
}

func (m model) Init() (tea.Model, tea.Cmd) { return m, m.spinner.Tick }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case progressMsg:
		if _, ok := m.rows[msg.Path]; !ok {
			m.order = append(m.order, msg.Path)
		}
		m.rows[msg.Path] = row{status: msg.Status, bytes: msg.Bytes, err: msg.Err}
		return m, nil
	case quitMsg:
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

var (
	styleDone   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleFailed = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	styleActive = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
)

func (m model) View() string {
	var out string
	for _, path := range m.order {
		r := m.rows[path]
		line := fmt.Sprintf("%-8s %s", r.status, path)
		switch r.status {
		case Done:
			line = styleDone.Render(line)
		case Failed:
			line = styleFailed.Render(fmt.Sprintf("%s (%v)", line, r.err))
		case Sending:
			line = styleActive.Render(m.spinner.View() + " " + line)
		}
		out += line + "\n"
	}
	return out
}
