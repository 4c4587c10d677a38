// Package chat is the interactive chat screen: a scrolling transcript, one
// input line and a footer showing the model.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bnema/nexus-cli/internal/adapters/render/transcript"
	"github.com/bnema/nexus-cli/internal/application"
	"github.com/bnema/nexus-cli/internal/domain"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	headerHeight = 2
	noticeHeight = 1
	inputHeight  = 3
	footerHeight = 1

	messagePlaceholder = "Type a message and press Enter"
	keyPlaceholder     = "Paste your OpenAI API key and press Enter"
)

// Session is the part of application.Session the screen drives.
type Session interface {
	HasCredential() bool
	CredentialKey() string
	SaveCredential(ctx context.Context, value string) error
	Begin(text string) (*application.Exchange, error)
	Turns() []domain.Turn
	Clear()
}

type Options struct {
	Model         string
	MarkdownStyle string
}

type replyMsg struct {
	turn domain.Turn
}

type Model struct {
	ctx     context.Context
	session Session
	opts    Options

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	styles   styles
	renderer *transcript.Renderer

	keyEntry bool
	busy     bool
	notice   string
	warn     bool
	width    int
	height   int
	ready    bool
}

func New(ctx context.Context, session Session, opts Options) Model {
	if ctx == nil {
		ctx = context.Background()
	}

	s := newStyles()

	ti := textinput.New()
	ti.Prompt = "> "
	ti.CharLimit = 16384
	ti.Width = 80
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = s.spinner

	m := Model{
		ctx:      ctx,
		session:  session,
		opts:     opts,
		input:    ti,
		viewport: viewport.New(80, 20),
		spinner:  sp,
		styles:   s,
		renderer: newRenderer(opts, 80),
	}
	if !session.HasCredential() {
		m.notice = "Missing API key. Paste it below and press Enter to save it."
		m.warn = true
	}
	m.syncInputMode()
	m.refresh()

	return m
}

// Run shows the chat screen until the user quits or ctx is done.
func Run(ctx context.Context, session Session, opts Options) error {
	p := tea.NewProgram(
		New(ctx, session, opts),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}

	return err
}

func newRenderer(opts Options, width int) *transcript.Renderer {
	return transcript.NewRenderer(transcript.RenderOptions{
		Width:         width,
		Markdown:      true,
		MarkdownStyle: opts.MarkdownStyle,
	})
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyCtrlL:
			return m.clear(), nil
		case tea.KeyCtrlK:
			return m.toggleKeyEntry(), nil
		case tea.KeyEnter:
			return m.submit()
		}

		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		body := max(msg.Height-headerHeight-noticeHeight-inputHeight-footerHeight, 3)
		m.viewport.Width = max(msg.Width, 20)
		m.viewport.Height = body
		m.input.Width = max(msg.Width-6, 10)
		m.renderer = newRenderer(m.opts, max(msg.Width-2, 20))
		m.ready = true
		m.refresh()
		return m, nil

	case replyMsg:
		m.busy = false
		m.refresh()
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
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	value := m.input.Value()

	if m.keyEntry || !m.session.HasCredential() {
		return m.saveKey(value), nil
	}

	exchange, err := m.session.Begin(value)
	switch {
	case errors.Is(err, domain.ErrEmptyInput):
		return m, nil
	case errors.Is(err, domain.ErrBusy):
		m.setNotice("Still waiting for the previous reply.", true)
		return m, nil
	case errors.Is(err, domain.ErrMissingCredential):
		m.setNotice("Missing API key. Paste it below and press Enter to save it.", true)
		m.syncInputMode()
		return m, nil
	case err != nil:
		m.setNotice(err.Error(), true)
		return m, nil
	}

	m.busy = true
	m.input.Reset()
	m.setNotice("", false)
	m.refresh()

	return m, tea.Batch(m.spinner.Tick, complete(m.ctx, exchange))
}

func complete(ctx context.Context, exchange *application.Exchange) tea.Cmd {
	return func() tea.Msg {
		return replyMsg{turn: exchange.Complete(ctx)}
	}
}

func (m Model) saveKey(value string) Model {
	if err := m.session.SaveCredential(m.ctx, value); err != nil {
		if errors.Is(err, domain.ErrEmptyInput) {
			m.setNotice("Enter a non-empty API key.", true)
		} else {
			m.setNotice(fmt.Sprintf("Could not save API key: %v", err), true)
		}
		return m
	}

	m.keyEntry = false
	m.input.Reset()
	m.setNotice("API key saved.", false)
	m.syncInputMode()
	return m
}

func (m Model) clear() Model {
	if m.busy {
		m.setNotice("Wait for the reply before clearing the chat.", true)
		return m
	}

	m.session.Clear()
	m.setNotice("Chat cleared.", false)
	m.refresh()
	return m
}

func (m Model) toggleKeyEntry() Model {
	m.keyEntry = !m.keyEntry
	m.input.Reset()

	switch {
	case !m.keyEntry:
		m.setNotice("", false)
	case m.session.HasCredential():
		m.setNotice(fmt.Sprintf("API key is saved (%s). Paste a new one to replace it, or ctrl+k to cancel.", m.session.CredentialKey()), false)
	default:
		m.setNotice("No API key saved yet. Paste it below and press Enter.", true)
	}
	m.syncInputMode()

	return m
}

func (m *Model) syncInputMode() {
	if m.keyEntry || !m.session.HasCredential() {
		m.input.Placeholder = keyPlaceholder
		m.input.EchoMode = textinput.EchoPassword
		m.input.EchoCharacter = '•'
		return
	}

	m.input.Placeholder = messagePlaceholder
	m.input.EchoMode = textinput.EchoNormal
}

func (m *Model) setNotice(text string, warn bool) {
	m.notice = text
	m.warn = warn
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderer.Render(m.session.Turns()))
	m.viewport.GotoBottom()
}

func (m Model) enterAction() string {
	if m.keyEntry || !m.session.HasCredential() {
		return "Save key"
	}
	return "Send"
}

func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	status := m.styles.ready.Render("● Ready")
	if m.busy {
		status = m.styles.busy.Render(m.spinner.View() + " Thinking")
	}
	header := lipgloss.JoinHorizontal(lipgloss.Center, m.styles.title.Render("NEXUS"), "  ", status)

	notice := m.styles.notice.Render(m.notice)
	if m.warn {
		notice = m.styles.warning.Render(m.notice)
	}

	footer := m.styles.footer.Render(strings.Join([]string{
		"Model: " + m.opts.Model,
		"enter: " + m.enterAction(),
		"ctrl+l: clear",
		"ctrl+k: api key",
		"esc: quit",
	}, " · "))

	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		"",
		m.viewport.View(),
		notice,
		m.styles.input.Render(m.input.View()),
		footer,
	)
}
