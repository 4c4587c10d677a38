package transcript

import (
	"errors"
	"io"

	"github.com/bnema/nexus-cli/internal/domain"
	tea "github.com/charmbracelet/bubbletea"
)

var ErrUnexpectedRenderModel = errors.New("unexpected final bubbletea model type")

type renderReadyMsg struct{}

type model struct {
	renderer *Renderer
	turns    []domain.Turn
	output   string
}

func newModel(turns []domain.Turn, opts RenderOptions) model {
	return model{
		renderer: NewRenderer(opts),
		turns:    turns,
	}
}

func (m model) Init() tea.Cmd {
	return func() tea.Msg {
		return renderReadyMsg{}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg.(type) {
	case renderReadyMsg:
		m.output = m.renderer.Render(m.turns)
		return m, tea.Quit
	default:
		return m, nil
	}
}

func (m model) View() string {
	return m.output
}

// Render formats turns outside of an interactive screen.
func Render(turns []domain.Turn, opts RenderOptions) (string, error) {
	p := tea.NewProgram(
		newModel(turns, opts),
		tea.WithInput(nil),
		tea.WithOutput(io.Discard),
	)

	finalModel, err := p.Run()
	if err != nil {
		return "", err
	}

	rendered, ok := finalModel.(model)
	if !ok {
		return "", ErrUnexpectedRenderModel
	}

	return rendered.View(), nil
}
