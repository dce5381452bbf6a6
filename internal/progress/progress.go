// Package progress implements the Progress TUI (C5): a live table of
// tool states that attaches only when attached to a terminal and
// progress is desired, and is otherwise a silent no-op so scheduler
// code never branches on mode.
//
// Grounded almost directly on strawgate-gh-aw's pkg/console/spinner.go
// (tea.WithoutRenderer() + manual render(), TTY-gated construction,
// thread-safe Start/Stop), generalized from a single spinner line to a
// per-tool table driven by scheduler.Event, styled with
// charmbracelet/lipgloss per strawgate-gh-aw's pkg/styles/theme.go
// AdaptiveColor palette, with the whole-run completion fraction
// rendered by charmbracelet/bubbles' progress.Model bar rather than a
// hand-rolled "N/total" counter.
package progress

import (
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	huskycat "github.com/tinyland-inc/tinyland-huskycat-sub004"
	"github.com/tinyland-inc/tinyland-huskycat-sub004/internal/scheduler"
)

// refreshRate bounds redraws independent of event arrival rate, per
// spec §4.5 ("e.g. 10 Hz default").
const refreshRate = 100 * time.Millisecond

const (
	ansiCarriageReturn = "\r"
	ansiClearLine      = "\x1b[K"
	ansiCursorUp       = "\x1b[%dA"
)

// statusStyles mirrors strawgate-gh-aw's theme.go AdaptiveColor table:
// one lipgloss.Style per terminal (and in-flight) tool status.
var statusStyles = map[huskycat.Status]lipgloss.Style{
	huskycat.StatusPending:       lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "243", Dark: "245"}),
	huskycat.StatusDispatched:    lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "220", Dark: "214"}),
	huskycat.StatusSuccess:       lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "28", Dark: "42"}),
	huskycat.StatusFailed:        lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "160", Dark: "203"}).Bold(true),
	huskycat.StatusSkipped:       lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "243", Dark: "245"}),
	huskycat.StatusTimedOut:      lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "160", Dark: "203"}),
	huskycat.StatusNotApplicable: lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "243", Dark: "245"}),
	huskycat.StatusCancelled:     lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "166", Dark: "208"}),
}

var nameStyle = lipgloss.NewStyle().Bold(true)
var summaryStyle = lipgloss.NewStyle().Faint(true)

func styleFor(s huskycat.Status) lipgloss.Style {
	if st, ok := statusStyles[s]; ok {
		return st
	}
	return lipgloss.NewStyle()
}

type toolState struct {
	name     string
	status   huskycat.Status
	started  time.Time
	errors   int
	warnings int
}

// TUI renders scheduler.Events as a live per-tool table. The zero
// value (or one constructed with attach=false) is a complete no-op:
// every method returns immediately, matching spec §4.5's contract that
// "scheduler code need not branch on mode."
type TUI struct {
	enabled bool
	program *tea.Program
	wg      sync.WaitGroup

	mu      sync.Mutex
	running bool
}

// New constructs a TUI. It is enabled only when output is a terminal
// and progressDesired is true (the Mode Adapter decides the latter per
// invocation mode).
func New(output *os.File, total int, progressDesired bool) *TUI {
	enabled := progressDesired && output != nil && isatty.IsTerminal(output.Fd())
	t := &TUI{enabled: enabled}
	if !enabled {
		return t
	}
	bar := progress.New(progress.WithScaledGradient("#BD93F9", "#8BE9FD"), progress.WithWidth(30))
	model := tuiModel{output: output, total: total, states: map[string]*toolState{}, bar: bar}
	t.program = tea.NewProgram(model, tea.WithOutput(output), tea.WithoutRenderer())
	return t
}

// Run starts the TUI's event loop, consuming events until the channel
// is closed. It is the single writer that mutates TUI state; producers
// only ever send events (spec §4.5, §5).
func (t *TUI) Run(events <-chan scheduler.Event) {
	if !t.enabled {
		drain(events)
		return
	}
	t.mu.Lock()
	t.running = true
	t.mu.Unlock()
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		_, _ = t.program.Run()
	}()
	for ev := range events {
		t.program.Send(eventMsg(ev))
	}
}

func drain(events <-chan scheduler.Event) {
	if events == nil {
		return
	}
	for range events {
	}
}

// Stop quiesces the TUI, leaving the final table on screen.
func (t *TUI) Stop() {
	if !t.enabled || t.program == nil {
		return
	}
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	t.mu.Unlock()
	t.program.Quit()
	t.wg.Wait()
}

// IsEnabled reports whether the TUI is attached.
func (t *TUI) IsEnabled() bool { return t.enabled }

type eventMsg scheduler.Event
type tickMsg time.Time

type tuiModel struct {
	output *os.File
	total  int
	states map[string]*toolState
	order  []string
	bar    progress.Model
}

func (m tuiModel) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(refreshRate, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch ev := msg.(type) {
	case eventMsg:
		st, ok := m.states[ev.Tool]
		if !ok {
			st = &toolState{name: ev.Tool}
			m.states[ev.Tool] = st
			m.order = append(m.order, ev.Tool)
		}
		switch ev.Type {
		case scheduler.ToolQueued:
			st.status = huskycat.StatusPending
		case scheduler.ToolStarted:
			st.status = huskycat.StatusDispatched
			st.started = time.Now()
		case scheduler.ToolFinished:
			st.status = ev.Status
			st.errors = ev.Errors
			st.warnings = ev.Warnings
		}
		return m, nil
	case tickMsg:
		m.render()
		return m, tickCmd()
	case tea.KeyMsg:
		if ev.String() == "ctrl+c" {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m tuiModel) View() string { return "" } // manual render, see m.render()

func (m tuiModel) render() {
	if m.output == nil {
		return
	}
	names := append([]string(nil), m.order...)
	sort.Strings(names)

	finished := 0
	for _, name := range names {
		if m.states[name].status.Terminal() {
			finished++
		}
	}

	if len(names) > 0 {
		fmt.Fprintf(m.output, ansiCursorUp, len(names)+1)
	}
	for _, name := range names {
		st := m.states[name]
		row := fmt.Sprintf("%-24s %-14s  err=%-3d warn=%-3d %6s",
			nameStyle.Render(st.name), styleFor(st.status).Render(string(st.status)),
			st.errors, st.warnings, elapsedSince(st))
		fmt.Fprintf(m.output, "%s%s%s\n", ansiCarriageReturn, ansiClearLine, row)
	}

	fraction := 0.0
	if m.total > 0 {
		fraction = float64(finished) / float64(m.total)
	}
	summary := summaryStyle.Render(fmt.Sprintf("%d/%d tools finished", finished, m.total))
	fmt.Fprintf(m.output, "%s%s%s %s\n", ansiCarriageReturn, ansiClearLine, m.bar.ViewAs(fraction), summary)
}

func elapsedSince(st *toolState) string {
	if st.started.IsZero() {
		return ""
	}
	return time.Since(st.started).Round(time.Millisecond).String()
}
