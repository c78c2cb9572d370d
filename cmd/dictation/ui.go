package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	dictation "github.com/koscakluka/ema-dictation/core"
	events "github.com/koscakluka/ema-dictation/core/events"
	"github.com/muesli/reflow/wordwrap"
)

const historyLimit = 200

// controller is the part of the dictation handler the UI drives.
type controller interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Teardown()
	IsActive() bool
}

type eventMsg struct{ event events.Event }

type wakeMsg struct{ phrase string }

type errMsg struct{ err error }

type startedMsg struct{}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	partialStyle = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("244"))
	finalStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	faultStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type model struct {
	ctx        context.Context
	controller controller

	spinner  spinner.Model
	viewport viewport.Model
	width    int

	active  bool
	partial string
	history []string
}

func newModel(ctx context.Context, controller controller) model {
	s := spinner.New()
	s.Spinner = spinner.Dot

	return model{
		ctx:        ctx,
		controller: controller,
		spinner:    s,
		viewport:   viewport.New(80, 12),
		width:      80,
	}
}

func (m model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "s":
			return m, m.start()
		case "x":
			return m, m.stop()
		case "t":
			m.controller.Teardown()
			m.active = m.controller.IsActive()
			m.partial = ""
			m.appendLine(statusStyle, "torn down")
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-6, 3)
		m.refresh()
		return m, nil

	case wakeMsg:
		m.appendLine(statusStyle, fmt.Sprintf("wake phrase %q", msg.phrase))
		if !m.active {
			return m, m.start()
		}
		return m, nil

	case startedMsg:
		m.active = true
		m.appendLine(statusStyle, "listening")
		return m, nil

	case eventMsg:
		m.handleEvent(msg.event)
		return m, nil

	case errMsg:
		m.appendLine(faultStyle, "error: "+msg.err.Error())
		m.active = m.controller.IsActive()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *model) handleEvent(event events.Event) {
	switch event := event.(type) {
	case events.RecognitionRecognizing:
		m.active = true
		m.partial = event.Text
	case events.RecognitionRecognized:
		m.partial = ""
		m.appendLine(finalStyle, "> "+event.Text)
	case events.RecognitionFinished:
		m.active = false
		m.partial = ""
		m.appendLine(statusStyle, "finished: "+event.Reason)
	case events.RecognitionFaulted:
		m.active = false
		m.partial = ""
		m.appendLine(faultStyle, "faulted: "+event.Reason)
	case events.VoiceResponseReceived:
		m.appendLine(statusStyle, event.Status)
	}
}

func (m model) start() tea.Cmd {
	ctx, controller := m.ctx, m.controller
	return func() tea.Msg {
		err := controller.Start(ctx)
		if err != nil && !errors.Is(err, dictation.ErrRecognizerUnavailable) {
			return errMsg{err: err}
		}
		if err == nil {
			return startedMsg{}
		}
		return nil
	}
}

func (m model) stop() tea.Cmd {
	ctx, controller := m.ctx, m.controller
	return func() tea.Msg {
		if err := controller.Stop(ctx); err != nil {
			return errMsg{err: err}
		}
		return nil
	}
}

func (m *model) appendLine(style lipgloss.Style, line string) {
	m.history = append(m.history, style.Render(line))
	if len(m.history) > historyLimit {
		m.history = m.history[len(m.history)-historyLimit:]
	}
	m.refresh()
}

func (m *model) refresh() {
	wrapped := make([]string, 0, len(m.history))
	for _, line := range m.history {
		wrapped = append(wrapped, wordwrap.String(line, m.width))
	}
	m.viewport.SetContent(strings.Join(wrapped, "\n"))
	m.viewport.GotoBottom()
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("ema dictation"))
	b.WriteString("  ")
	if m.active {
		b.WriteString(m.spinner.View())
		b.WriteString(" listening")
	} else {
		b.WriteString("idle")
	}
	b.WriteString("\n\n")

	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	if m.partial != "" {
		b.WriteString(partialStyle.Render(wordwrap.String(m.partial, m.width)))
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("s start • x stop • t teardown • q quit"))
	b.WriteString("\n")

	return b.String()
}
