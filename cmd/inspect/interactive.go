package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	quicbridge "github.com/quiclink/quicbridge"
	"github.com/quiclink/quicbridge/bridge"
	"github.com/quiclink/quicbridge/enginetest"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	cmdStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type cmdInfo struct {
	name     string
	desc     string
	cmd      quicbridge.Command
	custom   bool
	hasData  bool
	dataHint string
}

func knownCommands() []cmdInfo {
	return []cmdInfo{
		{name: "echo", desc: "liveness check, returns bool", cmd: enginetest.CmdEcho},
		{name: "compute", desc: "returns u64 42", cmd: enginetest.CmdCompute},
		{name: "noop", desc: "returns nothing", cmd: enginetest.CmdNoop},
		{name: "reverse", desc: "reverses the payload", cmd: enginetest.CmdReverse, hasData: true, dataHint: "text to reverse"},
		{name: "custom", desc: "raw command number", custom: true, hasData: true, dataHint: "payload (optional)"},
	}
}

type modelState int

const (
	stateSelectCmd modelState = iota
	stateInputArgs
	stateShowResult
)

type interactiveModel struct {
	err      error
	b        *bridge.Bridge
	cmds     []cmdInfo
	inputs   []textinput.Model
	result   string
	history  []string
	selected int
	focusIdx int
	state    modelState
}

func newInteractiveModel() *interactiveModel {
	return &interactiveModel{
		cmds:  knownCommands(),
		state: stateSelectCmd,
	}
}

type readyMsg struct {
	err error
	b   *bridge.Bridge
}

type callResultMsg struct {
	err    error
	result string
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.connect
}

func (m *interactiveModel) connect() tea.Msg {
	ctx := context.Background()

	b, err := bridge.New(enginetest.New(nil))
	if err != nil {
		return readyMsg{err: err}
	}
	if err := b.WaitReady(ctx); err != nil {
		b.Close(ctx)
		return readyMsg{err: err}
	}
	return readyMsg{b: b}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.state == stateInputArgs && msg.String() == "q" {
				break
			}
			if m.b != nil {
				m.b.Close(context.Background())
			}
			return m, tea.Quit

		case "up", "k":
			if m.state == stateSelectCmd && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectCmd && m.selected < len(m.cmds)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateSelectCmd:
				m.prepareInputs()
				if len(m.inputs) == 0 {
					return m, m.callCommand
				}
				m.state = stateInputArgs

			case stateInputArgs:
				return m, m.callCommand

			case stateShowResult:
				m.state = stateSelectCmd
				m.result = ""
				m.err = nil
			}

		case "tab":
			if m.state == stateInputArgs && len(m.inputs) > 1 {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
			}

		case "esc":
			switch m.state {
			case stateInputArgs:
				m.state = stateSelectCmd
				m.inputs = nil
			case stateShowResult:
				m.state = stateSelectCmd
				m.result = ""
				m.err = nil
			}
		}

	case readyMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.b = msg.b

	case callResultMsg:
		m.result = msg.result
		m.err = msg.err
		if msg.err == nil {
			m.history = append(m.history, m.cmds[m.selected].name+": "+msg.result)
			if len(m.history) > 8 {
				m.history = m.history[len(m.history)-8:]
			}
		}
		m.state = stateShowResult
	}

	if m.state == stateInputArgs {
		var cmds []tea.Cmd
		for i := range m.inputs {
			var cmd tea.Cmd
			m.inputs[i], cmd = m.inputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

func (m *interactiveModel) prepareInputs() {
	c := m.cmds[m.selected]
	m.inputs = nil
	if c.custom {
		ti := textinput.New()
		ti.Placeholder = "1-254"
		ti.Prompt = "command: "
		ti.Width = 40
		ti.Focus()
		m.inputs = append(m.inputs, ti)
	}
	if c.hasData {
		ti := textinput.New()
		ti.Placeholder = c.dataHint
		ti.Prompt = "data: "
		ti.Width = 40
		if len(m.inputs) == 0 {
			ti.Focus()
		}
		m.inputs = append(m.inputs, ti)
	}
	m.focusIdx = 0
}

func (m *interactiveModel) callCommand() tea.Msg {
	ctx := context.Background()

	if m.b == nil {
		return callResultMsg{err: fmt.Errorf("engine not connected")}
	}

	c := m.cmds[m.selected]
	cmd := c.cmd
	var data []byte

	idx := 0
	if c.custom {
		n, err := strconv.ParseUint(m.inputs[idx].Value(), 10, 8)
		if err != nil {
			return callResultMsg{err: fmt.Errorf("command number: %w", err)}
		}
		cmd = quicbridge.Command(n)
		idx++
	}
	if c.hasData && idx < len(m.inputs) {
		if v := m.inputs[idx].Value(); v != "" {
			data = []byte(v)
		}
	}

	res, err := submitAndWait(ctx, m.b, cmd, data)
	if err != nil {
		return callResultMsg{err: err}
	}
	return callResultMsg{result: strings.TrimRight(res, "\n")}
}

func (m *interactiveModel) View() string {
	if m.err != nil && m.state != stateShowResult {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}

	if m.b == nil {
		return "Connecting to engine..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("Bridge Inspector"))
	b.WriteString(" loopback engine\n\n")

	switch m.state {
	case stateSelectCmd:
		b.WriteString("Select a command to submit:\n\n")
		for i, c := range m.cmds {
			line := cmdStyle.Render(c.name) + "  " + helpStyle.Render(c.desc)
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> ") + line)
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		if len(m.history) > 0 {
			b.WriteString("\nRecent:\n")
			for _, h := range m.history {
				b.WriteString(helpStyle.Render("  " + strings.ReplaceAll(h, "\n", " ")))
				b.WriteString("\n")
			}
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter submit • q quit"))

	case stateInputArgs:
		c := m.cmds[m.selected]
		b.WriteString(fmt.Sprintf("Submitting %s\n\n", cmdStyle.Render(c.name)))
		for _, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter submit • esc back"))

	case stateShowResult:
		c := m.cmds[m.selected]
		b.WriteString(fmt.Sprintf("Result of %s:\n\n", cmdStyle.Render(c.name)))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	return b.String()
}

func runInteractive() error {
	p := tea.NewProgram(newInteractiveModel(), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
