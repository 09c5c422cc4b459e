// Package tui is the interactive terminal chat. It renders the
// transcript in a viewport, streams assistant output as it arrives and
// shows which agent currently holds the conversation.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rohitshetty84/multiagent/pkg/app"
	"github.com/rohitshetty84/multiagent/pkg/chat"
	"github.com/rohitshetty84/multiagent/pkg/runtime"
)

var (
	userStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	agentStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	toolStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	welcomeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("13"))
)

type Model struct {
	app      *app.App
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	transcript []string
	live       string // assistant output still streaming
	agentName  string
	thinking   bool
	ready      bool

	inputTokens  int
	outputTokens int
}

func New(a *app.App) Model {
	input := textinput.New()
	input.Placeholder = "Type a message"
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))

	m := Model{
		app:       a,
		input:     input,
		spinner:   sp,
		agentName: a.CurrentAgentName(),
	}

	if welcome := a.WelcomeMessage(); welcome != "" {
		m.transcript = append(m.transcript, welcomeStyle.Render(welcome), "")
	}
	return m
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, m.spinner.Tick}
	if first := m.app.FirstMessage(); first != "" {
		cmds = append(cmds, func() tea.Msg { return sendMsg{content: first} })
	}
	return tea.Batch(cmds...)
}

// sendMsg asks the model to submit content as a user turn.
type sendMsg struct {
	content string
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		inputHeight := 3
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-inputHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - inputHeight
		}
		m.refreshViewport()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			m.app.CancelRun()
			return m, tea.Quit
		case tea.KeyEsc:
			if m.thinking {
				m.app.CancelRun()
				m.thinking = false
				m.flushLive()
			}
		case tea.KeyEnter:
			content := strings.TrimSpace(m.input.Value())
			if content != "" && !m.thinking {
				m.input.Reset()
				return m.send(content)
			}
		}

	case sendMsg:
		return m.send(msg.content)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case runtime.AgentSwitchEvent:
		m.agentName = msg.AgentName

	case runtime.AgentChoiceEvent:
		m.thinking = false
		m.live += msg.Content
		m.refreshViewport()

	case runtime.ToolCallEvent:
		m.flushLive()
		m.transcript = append(m.transcript, toolStyle.Render(fmt.Sprintf("%s calls %s", msg.AgentName, msg.ToolCall.Function.Name)))
		m.refreshViewport()

	case runtime.ToolCallResponseEvent:
		if msg.IsError {
			m.transcript = append(m.transcript, toolStyle.Render(fmt.Sprintf("%s failed", msg.ToolCall.Function.Name)))
			m.refreshViewport()
		}

	case runtime.AgentHandoffEvent:
		m.flushLive()
		m.transcript = append(m.transcript, toolStyle.Render(fmt.Sprintf("transferred from %s to %s", msg.FromAgent, msg.ToAgent)))
		m.refreshViewport()

	case runtime.UsageEvent:
		m.inputTokens += msg.InputTokens
		m.outputTokens += msg.OutputTokens

	case runtime.ErrorEvent:
		m.thinking = false
		m.flushLive()
		m.transcript = append(m.transcript, errorStyle.Render(chat.ErrorApology), "")
		m.refreshViewport()

	case runtime.StreamStoppedEvent:
		m.thinking = false
		m.flushLive()
		m.agentName = m.app.CurrentAgentName()
		m.refreshViewport()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m Model) send(content string) (tea.Model, tea.Cmd) {
	m.transcript = append(m.transcript, userStyle.Render("You: ")+content)
	m.thinking = true
	m.live = ""
	m.refreshViewport()

	ctx, cancel := context.WithCancel(context.Background())
	m.app.Run(ctx, cancel, content)

	return m, m.spinner.Tick
}

// flushLive finalizes the streaming assistant output into the
// transcript.
func (m *Model) flushLive() {
	if m.live == "" {
		return
	}
	m.transcript = append(m.transcript, agentStyle.Render(m.agentName+": ")+m.live, "")
	m.live = ""
}

func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}
	content := strings.Join(m.transcript, "\n")
	if m.live != "" {
		content += "\n" + agentStyle.Render(m.agentName+": ") + m.live
	}
	m.viewport.SetContent(content)
	m.viewport.GotoBottom()
}

func (m Model) View() string {
	if !m.ready {
		return "loading..."
	}

	status := statusStyle.Render(fmt.Sprintf("agent: %s  tokens: %d in / %d out", m.agentName, m.inputTokens, m.outputTokens))
	if m.thinking {
		status = m.spinner.View() + statusStyle.Render(fmt.Sprintf(" [%s] thinking...", m.agentName))
	}

	return m.viewport.View() + "\n" + status + "\n" + m.input.View()
}

// Run starts the chat program and pumps runtime events into it until
// the user quits.
func Run(ctx context.Context, a *app.App) error {
	program := tea.NewProgram(New(a), tea.WithAltScreen(), tea.WithMouseCellMotion())

	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go a.Subscribe(subCtx, program)

	_, err := program.Run()
	a.Flush(ctx)
	return err
}
