// Package tui is the terminal client for a docrag server.
package tui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fyrsmithlabs/docrag/pkg/client"
)

// Asker sends one question to the server.
type Asker interface {
	Ask(ctx context.Context, question string) (string, error)
}

// answerMsg carries the text to display for a finished request.
type answerMsg struct {
	text string
}

// Model is the Bubble Tea model. It shows at most one question and its
// answer; a new submission replaces both.
type Model struct {
	asker    Asker
	server   string
	timeout  time.Duration
	input    textinput.Model
	spinner  spinner.Model
	question string
	answer   string
	busy     bool
	width    int
	quitting bool
}

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("51")).
			Bold(true).
			Padding(0, 1)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	questionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true).
			MarginTop(1)

	answerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1)

	footerKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true)
)

// New creates a Model bound to asker. server is shown in the header.
func New(asker Asker, server string, timeout time.Duration) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question about the documents"
	ti.CharLimit = 0
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	if timeout <= 0 {
		timeout = client.DefaultTimeout
	}

	return Model{
		asker:   asker,
		server:  server,
		timeout: timeout,
		input:   ti,
		spinner: sp,
	}
}

// Init starts the cursor blink.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles keys, window size and finished requests.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyEnter:
			return m.submit()
		}

	case answerMsg:
		m.busy = false
		m.answer = msg.text
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit sends the typed question unless a request is already running.
func (m Model) submit() (tea.Model, tea.Cmd) {
	question := strings.TrimSpace(m.input.Value())
	if m.busy || question == "" {
		return m, nil
	}

	m.busy = true
	m.question = question
	m.answer = ""
	m.input.Reset()

	return m, tea.Batch(m.spinner.Tick, m.ask(question))
}

// ask runs the request off the update loop.
func (m Model) ask(question string) tea.Cmd {
	asker, timeout := m.asker, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		answer, err := asker.Ask(ctx, question)
		return answerMsg{text: client.Message(answer, err)}
	}
}

// View renders the header, the current pair and the input line.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render("docrag"))
	b.WriteString(" ")
	b.WriteString(dimStyle.Render(m.server))
	b.WriteString("\n")

	if m.question != "" {
		b.WriteString(questionStyle.Render(m.question))
		b.WriteString("\n")
		body := m.answer
		if m.busy {
			body = m.spinner.View() + " Thinking..."
		}
		style := answerStyle
		if m.width > 4 {
			style = style.Width(m.width - 2)
		}
		b.WriteString(style.Render(body))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")
	b.WriteString(footerKeyStyle.Render("enter"))
	b.WriteString(dimStyle.Render(" ask  "))
	b.WriteString(footerKeyStyle.Render("esc"))
	b.WriteString(dimStyle.Render(" quit"))
	b.WriteString("\n")
	return b.String()
}

// Run starts the program and blocks until the user quits.
func Run(asker Asker, server string, timeout time.Duration) error {
	_, err := tea.NewProgram(New(asker, server, timeout)).Run()
	return err
}
