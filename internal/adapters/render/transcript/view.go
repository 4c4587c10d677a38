package transcript

import (
	"fmt"
	"strings"
	"time"

	"github.com/bnema/nexus-cli/internal/domain"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

const (
	clockLayout  = "15:04"
	emptyMessage = "No messages yet."
)

type RenderOptions struct {
	// Width wraps turn content; zero leaves lines as they are.
	Width int
	// Markdown renders assistant turns through glamour.
	Markdown bool
	// MarkdownStyle is a glamour style name; empty picks one from the terminal.
	MarkdownStyle string
	// Location for turn times, time.Local when nil.
	Location *time.Location
	// Title adds a heading with the turn count.
	Title string
}

// Renderer formats a conversation. It keeps the markdown renderer between
// calls, so reuse one per screen width.
type Renderer struct {
	opts     RenderOptions
	styles   styles
	markdown *glamour.TermRenderer
}

func NewRenderer(opts RenderOptions) *Renderer {
	r := &Renderer{opts: opts, styles: newStyles()}
	if opts.Markdown {
		r.markdown = newMarkdownRenderer(opts.MarkdownStyle, opts.Width)
	}

	return r
}

func (r *Renderer) Render(turns []domain.Turn) string {
	return renderView(turns, r.opts, r.styles, r.markdown)
}

func renderView(turns []domain.Turn, opts RenderOptions, s styles, md *glamour.TermRenderer) string {
	lines := make([]string, 0, len(turns)+2)
	if opts.Title != "" {
		lines = append(lines,
			s.title.Render(opts.Title),
			s.header.Render(fmt.Sprintf("turns: %d", len(turns))),
		)
	}

	if len(turns) == 0 {
		lines = append(lines, s.empty.Render(emptyMessage))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for i, turn := range turns {
		block := renderTurn(turn, opts, s, md)
		if i > 0 || opts.Title != "" {
			block = s.section.Render(block)
		}
		lines = append(lines, block)
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderTurn(turn domain.Turn, opts RenderOptions, s styles, md *glamour.TermRenderer) string {
	label := s.user
	if turn.Role == domain.RoleAssistant {
		label = s.assistant
	}

	header := lipgloss.JoinHorizontal(
		lipgloss.Top,
		label.Render(strings.ToUpper(string(turn.Role))),
		" ",
		s.timestamp.Render(clockTime(turn.CreatedAt, opts.Location)),
	)

	return lipgloss.JoinVertical(lipgloss.Left, header, renderContent(turn, opts, s, md))
}

func renderContent(turn domain.Turn, opts RenderOptions, s styles, md *glamour.TermRenderer) string {
	style := s.content
	if turn.Failed() {
		style = s.failure
	} else if turn.Role == domain.RoleAssistant && md != nil {
		if rendered, ok := renderMarkdown(md, turn.Content); ok {
			return rendered
		}
	}

	if opts.Width > 0 {
		style = style.Width(opts.Width)
	}

	return style.Render(turn.Content)
}

func clockTime(value time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}

	return value.In(loc).Format(clockLayout)
}
