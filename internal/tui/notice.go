// SPDX-License-Identifier: MPL-2.0

package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"vlaunch-cli/internal/notice"
)

// levelColors maps notice levels to banner colors.
var levelColors = map[notice.Level]lipgloss.Color{
	notice.LevelCritical:  lipgloss.Color("#DC2626"),
	notice.LevelImportant: lipgloss.Color("#D97706"),
	notice.LevelInfo:      lipgloss.Color("#2563EB"),
}

// RenderNotice formats a server notice for the terminal: a colored level
// banner, the title, and the markdown content rendered through glamour.
func RenderNotice(n *notice.Notice, width int) (string, error) {
	if n == nil {
		return "", nil
	}

	color, ok := levelColors[n.Level]
	if !ok {
		color = levelColors[notice.LevelInfo]
	}

	bannerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(color).
		Bold(true).
		Padding(0, 1)
	titleStyle := lipgloss.NewStyle().Bold(true)

	body, err := renderMarkdown(n.Content, width)
	if err != nil {
		return "", fmt.Errorf("rendering notice %s: %w", n.ID, err)
	}

	lines := []string{
		bannerStyle.Render(string(n.Level)) + " " + titleStyle.Render(n.Title),
		strings.TrimRight(body, "\n"),
	}
	return strings.Join(lines, "\n"), nil
}

// renderMarkdown renders markdown content for the terminal.
func renderMarkdown(content string, width int) (string, error) {
	opts := []glamour.TermRendererOption{glamour.WithAutoStyle()}
	if width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}

	renderer, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return "", err
	}
	return renderer.Render(content)
}
