package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/jsbridge/bridge"
	"github.com/wippyai/jsbridge/liveness"
	"github.com/wippyai/jsbridge/value"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	outputStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

const headerLines = 2

type replModel struct {
	ctx     context.Context
	bridge  *bridge.Bridge
	history []string
	lines   []string
	input   textinput.Model
	view    viewport.Model
	histIdx int
	verbose bool
	busy    bool
	ready   bool
}

type evalResultMsg struct {
	err    error
	result any
}

type collectMsg struct {
	stats liveness.Stats
	roots int
}

type outputMsg string

func newReplModel(ctx context.Context, b *bridge.Bridge, verbose bool) *replModel {
	ti := textinput.New()
	ti.Prompt = promptStyle.Render("> ")
	ti.Placeholder = "expression, .gc, .timers or .exit"
	ti.Focus()
	return &replModel{
		ctx:     ctx,
		bridge:  b,
		input:   ti,
		verbose: verbose,
	}
}

func (m *replModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *replModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		height := max(msg.Height-headerLines-2, 1)
		if !m.ready {
			m.view = viewport.New(msg.Width, height)
			m.ready = true
		} else {
			m.view.Width = msg.Width
			m.view.Height = height
		}
		m.input.Width = max(msg.Width-4, 10)
		m.refresh()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "ctrl+d":
			return m, tea.Quit

		case "up":
			if m.histIdx > 0 {
				m.histIdx--
				m.input.SetValue(m.history[m.histIdx])
				m.input.CursorEnd()
			}
			return m, nil

		case "down":
			if m.histIdx < len(m.history)-1 {
				m.histIdx++
				m.input.SetValue(m.history[m.histIdx])
			} else {
				m.histIdx = len(m.history)
				m.input.SetValue("")
			}
			return m, nil

		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.view, cmd = m.view.Update(msg)
			return m, cmd

		case "enter":
			src := strings.TrimSpace(m.input.Value())
			if src == "" || m.busy {
				return m, nil
			}
			m.input.SetValue("")
			m.history = append(m.history, src)
			m.histIdx = len(m.history)
			m.append(promptStyle.Render("> ") + src)
			return m.command(src)
		}

	case evalResultMsg:
		m.busy = false
		switch {
		case msg.err != nil:
			m.append(errorStyle.Render(formatError(msg.err, m.verbose)))
		case msg.result != nil:
			m.append(resultStyle.Render(value.Format(msg.result)))
		default:
			m.append(helpStyle.Render("undefined"))
		}

	case collectMsg:
		m.busy = false
		m.append(resultStyle.Render(fmt.Sprintf(
			"swept %d wrappers, released %d roots, %d roots live",
			msg.stats.Swept, msg.stats.Released, msg.roots,
		)))

	case outputMsg:
		m.append(outputStyle.Render(string(msg)))
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *replModel) command(src string) (tea.Model, tea.Cmd) {
	switch src {
	case ".exit":
		return m, tea.Quit
	case ".timers":
		m.append(resultStyle.Render(fmt.Sprintf("%d pending timers", m.bridge.PendingTimers())))
		return m, nil
	case ".gc":
		m.busy = true
		return m, m.collect
	}
	m.busy = true
	return m, m.evaluate(src)
}

// evaluate runs src on the loop goroutine and waits for its result.
func (m *replModel) evaluate(src string) tea.Cmd {
	return func() tea.Msg {
		done := make(chan evalResultMsg, 1)
		if err := m.bridge.Loop().Submit(func() {
			v, err := m.bridge.Eval(m.ctx, src)
			done <- evalResultMsg{result: v, err: err}
		}); err != nil {
			return evalResultMsg{err: err}
		}
		select {
		case res := <-done:
			return res
		case <-m.ctx.Done():
			return evalResultMsg{err: m.ctx.Err()}
		}
	}
}

func (m *replModel) collect() tea.Msg {
	done := make(chan collectMsg, 1)
	if err := m.bridge.Loop().Submit(func() {
		stats := m.bridge.Collect(m.ctx)
		done <- collectMsg{stats: stats, roots: m.bridge.Roots()}
	}); err != nil {
		return evalResultMsg{err: err}
	}
	select {
	case res := <-done:
		return res
	case <-m.ctx.Done():
		return evalResultMsg{err: m.ctx.Err()}
	}
}

func (m *replModel) append(line string) {
	m.lines = append(m.lines, line)
	m.refresh()
}

func (m *replModel) refresh() {
	if !m.ready {
		return
	}
	m.view.SetContent(strings.Join(m.lines, "\n"))
	m.view.GotoBottom()
}

func (m *replModel) View() string {
	if !m.ready {
		return "Starting..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("jsbridge"))
	b.WriteString(" ")
	b.WriteString(helpStyle.Render(fmt.Sprintf("%d roots • %d timers", m.bridge.Roots(), m.bridge.PendingTimers())))
	b.WriteString("\n\n")
	b.WriteString(m.view.View())
	b.WriteString("\n")
	b.WriteString(m.input.View())
	return b.String()
}

// runInteractive serves the bridge's loop in one goroutine and the TUI in
// another. Quitting the TUI closes the loop.
func runInteractive(ctx context.Context, b *bridge.Bridge, out *console, verbose bool) error {
	g, ctx := errgroup.WithContext(ctx)
	p := tea.NewProgram(newReplModel(ctx, b, verbose), tea.WithAltScreen(), tea.WithContext(ctx))
	out.redirect(func(s string) { p.Send(outputMsg(s)) })
	defer out.redirect(nil)

	g.Go(func() error {
		if err := b.Loop().Serve(ctx); !stderrors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		defer b.Loop().Close()
		_, err := p.Run()
		if stderrors.Is(err, tea.ErrProgramKilled) {
			return nil
		}
		return err
	})
	return g.Wait()
}
