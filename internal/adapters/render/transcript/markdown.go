package transcript

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

func newMarkdownRenderer(style string, width int) *glamour.TermRenderer {
	opts := []glamour.TermRendererOption{}
	if style == "" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(style))
	}
	if width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}

	renderer, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return nil
	}

	return renderer
}

// renderMarkdown reports false when glamour fails or panics, so the caller
// can fall back to plain text.
func renderMarkdown(md *glamour.TermRenderer, content string) (result string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			result, ok = "", false
		}
	}()

	rendered, err := md.Render(content)
	if err != nil {
		return "", false
	}

	return strings.Trim(rendered, "\n"), true
}
