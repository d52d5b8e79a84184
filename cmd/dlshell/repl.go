package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"dlshell/cmd/dlshell/ui"
	"dlshell/internal/shell"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// replModel is the full-screen interactive prompt.
type replModel struct {
	// UI Components
	textinput textinput.Model
	viewport  viewport.Model
	spinner   spinner.Model
	styles    ui.Styles
	renderer  *glamour.TermRenderer

	// State
	entries   []replEntry
	inputs    []string // submitted lines, for Up/Down recall
	recallPos int
	isLoading bool
	width     int
	height    int
	ready     bool

	// Backend
	ctx   context.Context
	shell *shell.Shell
}

type replEntry struct {
	input string
	reply shell.Reply
}

// Messages for tea updates
type (
	replyMsg struct {
		input string
		reply shell.Reply
	}
	editDoneMsg struct{ err error }
)

func newREPLModel(ctx context.Context, sh *shell.Shell) replModel {
	styles := ui.DefaultStyles()

	ti := textinput.New()
	ti.Placeholder = `statement, ".output NAME", or "?" for commands`
	ti.Focus()
	ti.Prompt = promptText
	ti.CharLimit = 8192
	ti.Width = 80
	ti.PromptStyle = styles.Prompt
	ti.TextStyle = styles.Statement

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	vp := viewport.New(80, 20)
	vp.SetContent("")

	return replModel{
		textinput: ti,
		viewport:  vp,
		spinner:   sp,
		styles:    styles,
		renderer:  newRenderer(styles, 80),
		ctx:       ctx,
		shell:     sh,
	}
}

func newRenderer(styles ui.Styles, width int) *glamour.TermRenderer {
	style := glamour.WithStylePath("light")
	if styles.Theme.IsDark {
		style = glamour.WithStylePath("dark")
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		return nil
	}
	return r
}

// runREPL runs the full-screen prompt until quit.
func runREPL(ctx context.Context, sh *shell.Shell) error {
	p := tea.NewProgram(newREPLModel(ctx, sh), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m replModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m replModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD:
			return m, tea.Quit

		case tea.KeyEnter:
			if !m.isLoading {
				return m.handleSubmit()
			}
			return m, nil

		case tea.KeyUp:
			if len(m.inputs) > 0 && m.recallPos > 0 {
				m.recallPos--
				m.textinput.SetValue(m.inputs[m.recallPos])
				m.textinput.CursorEnd()
			}
			return m, nil

		case tea.KeyDown:
			if m.recallPos < len(m.inputs)-1 {
				m.recallPos++
				m.textinput.SetValue(m.inputs[m.recallPos])
				m.textinput.CursorEnd()
			} else {
				m.recallPos = len(m.inputs)
				m.textinput.Reset()
			}
			return m, nil
		}

		if !m.isLoading {
			m.textinput, tiCmd = m.textinput.Update(msg)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		headerHeight := 2
		footerHeight := 1
		inputHeight := 3

		vpHeight := max(msg.Height-headerHeight-footerHeight-inputHeight, 1)
		if !m.ready {
			m.viewport = viewport.New(msg.Width-4, vpHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width - 4
			m.viewport.Height = vpHeight
		}
		m.textinput.Width = msg.Width - 8
		m.renderer = newRenderer(m.styles, max(msg.Width-8, 20))
		m.viewport.SetContent(m.renderEntries())
		m.viewport.GotoBottom()

	case spinner.TickMsg:
		if m.isLoading {
			var spCmd tea.Cmd
			m.spinner, spCmd = m.spinner.Update(msg)
			return m, spCmd
		}

	case replyMsg:
		m.isLoading = false
		m = m.appendEntry(replEntry{input: msg.input, reply: msg.reply})
		switch msg.reply.Action {
		case shell.ActionQuit:
			return m, tea.Quit
		case shell.ActionEdit:
			return m, tea.ExecProcess(m.shell.EditCommand(), func(err error) tea.Msg {
				return editDoneMsg{err: err}
			})
		}
		return m, nil

	case editDoneMsg:
		m = m.appendEntry(replEntry{reply: m.shell.FinishEdit(msg.err)})
		return m, nil
	}

	m.viewport, vpCmd = m.viewport.Update(msg)
	return m, tea.Batch(tiCmd, vpCmd)
}

func (m replModel) handleSubmit() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.textinput.Value())
	if input == "" {
		return m, nil
	}
	m.inputs = append(m.inputs, input)
	m.recallPos = len(m.inputs)
	m.textinput.Reset()
	m.isLoading = true

	return m, tea.Batch(m.spinner.Tick, m.execute(input))
}

// execute runs one line off the UI goroutine. Only one line is in flight at
// a time: Enter is ignored while loading.
func (m replModel) execute(input string) tea.Cmd {
	sh, ctx := m.shell, m.ctx
	return func() tea.Msg {
		return replyMsg{input: input, reply: sh.Execute(ctx, input)}
	}
}

func (m replModel) appendEntry(e replEntry) replModel {
	m.entries = append(m.entries, e)
	m.viewport.SetContent(m.renderEntries())
	m.viewport.GotoBottom()
	return m
}

func (m replModel) renderEntries() string {
	var sb strings.Builder
	for _, e := range m.entries {
		if e.input != "" {
			sb.WriteString(m.styles.Prompt.Render(promptText))
			sb.WriteString(m.styles.Statement.Render(e.input))
			sb.WriteString("\n")
		}
		if e.reply.Text == "" {
			continue
		}
		switch e.reply.Kind {
		case shell.ReplyError:
			sb.WriteString(m.styles.Error.Render("✗ " + e.reply.Text))
		case shell.ReplyMarkdown:
			sb.WriteString(m.safeRenderMarkdown(e.reply.Text))
		case shell.ReplyRelation:
			sb.WriteString(m.styles.Relation.Render(strings.TrimRight(e.reply.Text, "\n")))
		default:
			sb.WriteString(m.styles.Muted.Render(e.reply.Text))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// safeRenderMarkdown renders markdown, falling back to the raw text.
func (m replModel) safeRenderMarkdown(content string) (result string) {
	defer func() {
		if r := recover(); r != nil {
			result = content
		}
	}()
	if m.renderer != nil {
		if rendered, err := m.renderer.Render(content); err == nil {
			return rendered
		}
	}
	return content
}

func (m replModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	header := lipgloss.JoinHorizontal(lipgloss.Center,
		m.styles.Header.Render("dlshell"),
		m.styles.Badge.Render(m.shell.Cache().Token()),
		m.styles.Muted.Render(m.shell.Cache().Path()),
	)

	body := m.styles.Content.Render(m.viewport.View())
	if m.isLoading {
		body += "\n" + m.spinner.View() + " running..."
	}

	footer := m.styles.Footer.Render(fmt.Sprintf("%d statements · ↑/↓ recall · ? help · Ctrl+C quit",
		len(m.shell.Cache().Statements())))

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		body,
		m.styles.Input.Render(m.textinput.View()),
		footer,
	)
}
