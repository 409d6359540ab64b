package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/pkg/errors"

	"github.com/eurobot/webchat/internal/model/chat"
	"github.com/eurobot/webchat/internal/model/profile"
	"github.com/eurobot/webchat/internal/service/connectivity"
	"github.com/eurobot/webchat/internal/service/session"
)

const (
	placeholderReady        = "Ask me anything about Europe..."
	placeholderDisconnected = "Connecting to backend server..."
	defaultWidth            = 80
	defaultHeight           = 24
	chromeHeight            = 6
)

// Controller is the slice of the session controller the terminal view drives.
type Controller interface {
	Initialize(ctx context.Context) connectivity.Status
	Send(ctx context.Context, text string) error
	RetryConnection(ctx context.Context) (connectivity.Status, error)
	Subscribe() (<-chan chat.Snapshot, func())
	Snapshot() chat.Snapshot
}

type snapshotMsg struct {
	snap chat.Snapshot
	ok   bool
}

type sendDoneMsg struct{ err error }

type retryDoneMsg struct {
	status connectivity.Status
	err    error
}

type initDoneMsg struct{ status connectivity.Status }

// Model renders one session in the terminal and forwards input to it.
type Model struct {
	ctx     context.Context
	ctrl    Controller
	profile profile.Profile
	styles  Styles

	updates     <-chan chat.Snapshot
	unsubscribe func()

	snap     chat.Snapshot
	input    textinput.Model
	spinner  spinner.Model
	viewport viewport.Model
	renderer *glamour.TermRenderer
	style    string
	width    int
	status   string
}

// Options tunes the terminal view.
type Options struct {
	// GlamourStyle is a glamour standard style name; "notty" disables colours.
	GlamourStyle string
}

// NewModel subscribes to ctrl and builds the initial view.
func NewModel(ctx context.Context, ctrl Controller, p profile.Profile, opts Options) *Model {
	ti := textinput.New()
	ti.Placeholder = placeholderReady
	ti.Prompt = "│ "
	ti.CharLimit = 4096
	ti.Width = defaultWidth - 4
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	styleName := opts.GlamourStyle
	if styleName == "" {
		styleName = "dark"
	}

	updates, unsubscribe := ctrl.Subscribe()
	m := &Model{
		ctx:         ctx,
		ctrl:        ctrl,
		profile:     p,
		styles:      DefaultStyles(),
		updates:     updates,
		unsubscribe: unsubscribe,
		snap:        ctrl.Snapshot(),
		input:       ti,
		spinner:     sp,
		viewport:    viewport.New(defaultWidth, defaultHeight-chromeHeight),
		style:       styleName,
		width:       defaultWidth,
	}
	m.renderer = newRenderer(m.style, defaultWidth)
	m.refresh()
	return m
}

func newRenderer(style string, width int) *glamour.TermRenderer {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width-4),
	)
	if err != nil {
		return nil
	}
	return renderer
}

// Init starts the first connectivity probe and listens for state changes.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, m.waitForSnapshot(), m.initialize())
}

func (m *Model) waitForSnapshot() tea.Cmd {
	updates := m.updates
	return func() tea.Msg {
		snap, ok := <-updates
		return snapshotMsg{snap: snap, ok: ok}
	}
}

func (m *Model) initialize() tea.Cmd {
	return func() tea.Msg {
		return initDoneMsg{status: m.ctrl.Initialize(m.ctx)}
	}
}

func (m *Model) send(text string) tea.Cmd {
	return func() tea.Msg {
		return sendDoneMsg{err: m.ctrl.Send(m.ctx, text)}
	}
}

func (m *Model) retry() tea.Cmd {
	return func() tea.Msg {
		status, err := m.ctrl.RetryConnection(m.ctx)
		return retryDoneMsg{status: status, err: err}
	}
}

// Update handles keys, controller completions and snapshot pushes.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.unsubscribe()
			return m, tea.Quit
		case tea.KeyCtrlR:
			m.status = "checking connection..."
			return m, m.retry()
		case tea.KeyEnter:
			text := m.input.Value()
			if strings.TrimSpace(text) == "" || !m.snap.InputEnabled() {
				return m, nil
			}
			m.input.Reset()
			m.status = ""
			return m, m.send(text)
		}

	case snapshotMsg:
		if !msg.ok {
			return m, tea.Quit
		}
		m.snap = msg.snap
		m.refresh()
		cmds = append(cmds, m.waitForSnapshot())

	case sendDoneMsg:
		m.status = describe(msg.err)

	case retryDoneMsg:
		if msg.err != nil {
			m.status = describe(msg.err)
		} else if msg.status == connectivity.Healthy {
			m.status = "reconnected"
		} else {
			m.status = "backend still unreachable"
		}

	case initDoneMsg:
		if msg.status == connectivity.Unhealthy {
			m.status = "backend unreachable, press ctrl+r to retry"
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-chromeHeight, 3)
		m.input.Width = max(msg.Width-4, 10)
		m.renderer = newRenderer(m.style, msg.Width)
		m.refresh()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	m.syncInput()

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// syncInput enables the prompt only while the session accepts input.
func (m *Model) syncInput() {
	if m.snap.InputEnabled() {
		m.input.Placeholder = placeholderReady
		if !m.input.Focused() {
			m.input.Focus()
		}
		return
	}
	m.input.Placeholder = placeholderDisconnected
	if m.input.Focused() {
		m.input.Blur()
	}
}

func describe(err error) string {
	switch {
	case err == nil, errors.Is(err, session.ErrEmptyMessage):
		return ""
	case errors.Is(err, session.ErrBusy):
		return "still waiting for the previous answer"
	case errors.Is(err, session.ErrDisconnected):
		return "backend disconnected, press ctrl+r to retry"
	case errors.Is(err, session.ErrClosed):
		return "session closed"
	default:
		return err.Error()
	}
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderMessages())
	m.viewport.GotoBottom()
}

func (m *Model) renderMessages() string {
	var b strings.Builder
	for _, msg := range m.snap.Messages {
		label := m.styles.UserLabel.Render("You")
		body := msg.Text
		if msg.Sender == chat.SenderBot {
			label = m.styles.BotLabel.Render(m.profile.Name)
			if m.renderer != nil {
				if rendered, err := m.renderer.Render(msg.Text); err == nil {
					body = strings.TrimSpace(rendered)
				}
			}
		}
		fmt.Fprintf(&b, "%s %s\n%s\n\n", label, m.styles.Timestamp.Render(msg.Timestamp), body)
	}
	return b.String()
}

// View draws header, conversation, typing indicator and prompt.
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(m.styles.Title.Render(m.profile.Name))
	b.WriteString(" ")
	b.WriteString(m.styles.Subtitle.Render(m.profile.Title))
	if m.snap.ShowDisconnected() {
		b.WriteString(" ")
		b.WriteString(m.styles.Disconnected.Render("Backend disconnected · ctrl+r to retry"))
	}
	b.WriteString("\n\n")

	b.WriteString(m.viewport.View())
	b.WriteString("\n")

	if m.snap.IsAwaitingResponse {
		b.WriteString(m.styles.Typing.Render(m.spinner.View() + " " + m.profile.Name + " is typing..."))
	}
	b.WriteString("\n")

	b.WriteString(m.input.View())
	b.WriteString("\n")
	if m.status != "" {
		b.WriteString(m.styles.Status.Render(m.status))
		b.WriteString("  ")
	}
	b.WriteString(m.styles.Help.Render("enter send · ctrl+r retry · esc quit"))
	return b.String()
}

// Run drives ctrl from an interactive terminal until the user quits or ctx ends.
func Run(ctx context.Context, ctrl Controller, p profile.Profile, opts Options) error {
	model := NewModel(ctx, ctrl, p, opts)
	defer model.unsubscribe()

	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return errors.Wrap(err, "run chat ui")
	}
	return nil
}
