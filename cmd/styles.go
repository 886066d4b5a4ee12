package cmd

import (
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/glamour"
)

// Terminal styles for the chat loop.
type styles struct {
	Banner lipgloss.Style
	Agent  lipgloss.Style
	System lipgloss.Style
	Error  lipgloss.Style
	Prompt lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		Banner: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#4285F4")),
		Agent:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#34A853")),
		System: lipgloss.NewStyle().Faint(true),
		Error:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#EA4335")),
		Prompt: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FBBC04")),
	}
}

// markdownRenderer converts markdown answers to styled terminal output.
// A nil renderer degrades to plain text.
type markdownRenderer struct {
	renderer *glamour.TermRenderer
}

func newMarkdownRenderer() *markdownRenderer {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return &markdownRenderer{}
	}
	return &markdownRenderer{renderer: r}
}

func (m *markdownRenderer) Render(markdown string) string {
	if m == nil || m.renderer == nil {
		return markdown
	}
	out, err := m.renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return strings.TrimRight(out, "\n")
}
