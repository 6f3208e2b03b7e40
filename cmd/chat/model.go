package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/askcv/askcv/engine/domain"
)

// chatPort is the model's view of the server.
type chatPort interface {
	Ask(ctx context.Context, message string) (reply, error)
	Health(ctx context.Context) (bool, error)
}

type replyMsg struct {
	question string
	reply    reply
	err      error
}

type healthMsg struct {
	ready bool
	err   error
}

type model struct {
	chat     chatPort
	input    textinput.Model
	viewport viewport.Model
	turns    []domain.ChatTurn
	pending  string
	status   string
	ready    bool
}

func newModel(c chatPort) model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about skills, experience, education…"
	ti.CharLimit = domain.MaxMessageLength
	ti.Focus()
	return model{chat: c, input: ti, viewport: viewport.New(0, 0), status: "Connecting…"}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, checkHealth(m.chat))
}

func checkHealth(c chatPort) tea.Cmd {
	return func() tea.Msg {
		ok, err := c.Health(context.Background())
		return healthMsg{ready: ok, err: err}
	}
}

func ask(c chatPort, q string) tea.Cmd {
	return func() tea.Msg {
		r, err := c.Ask(context.Background(), q)
		return replyMsg{question: q, reply: r, err: err}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, qh := inputStyle.GetFrameSize()
		_, lh := logStyle.GetFrameSize()
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-qh-lh-3)
		m.viewport.SetContent(m.renderLog())
		return m, nil

	case healthMsg:
		switch {
		case msg.err != nil:
			m.status = "Server unreachable: " + msg.err.Error()
		case msg.ready:
			m.status = "Ready."
		default:
			m.status = "Server is still loading its index."
		}
		return m, nil

	case replyMsg:
		turn := domain.ChatTurn{UserMessage: msg.question}
		switch {
		case msg.err != nil:
			turn.AssistantResponse = "(request failed: " + msg.err.Error() + ")"
			m.status = "Error."
		case msg.reply.Status != domain.StatusSuccess:
			turn.AssistantResponse = msg.reply.Text
			m.status = "The assistant could not answer."
		default:
			turn.AssistantResponse = msg.reply.Text
			m.status = fmt.Sprintf("%d questions asked.", len(m.turns)+1)
		}
		m.turns = append(m.turns, turn)
		m.pending = ""
		m.viewport.SetContent(m.renderLog())
		m.viewport.GotoBottom()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
		if msg.String() == "enter" {
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.pending != "" {
				return m, nil
			}
			m.pending = q
			m.input.Reset()
			m.status = "Thinking…"
			m.viewport.SetContent(m.renderLog())
			m.viewport.GotoBottom()
			return m, ask(m.chat, q)
		}
	}

	var cmds [2]tea.Cmd
	m.input, cmds[0] = m.input.Update(msg)
	m.viewport, cmds[1] = m.viewport.Update(msg)
	return m, tea.Batch(cmds[:]...)
}

func (m model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := titleStyle.Render("askcv")
	status := statusStyle.Render(m.status)
	return header + "\n" + logStyle.Render(m.viewport.View()) + "\n" + inputStyle.Render(m.input.View()) + "\n" + status
}

func (m model) renderLog() string {
	if len(m.turns) == 0 && m.pending == "" {
		return hintStyle.Render("Ask a question about the CV. Esc quits.")
	}
	var b strings.Builder
	for _, t := range m.turns {
		b.WriteString(userStyle.Render("you: ") + t.UserMessage + "\n")
		b.WriteString(botStyle.Render("cv:  ") + t.AssistantResponse + "\n\n")
	}
	if m.pending != "" {
		b.WriteString(userStyle.Render("you: ") + m.pending + "\n")
		b.WriteString(hintStyle.Render("cv:  …"))
	}
	return b.String()
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	logStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	hintStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	userStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	botStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
)
