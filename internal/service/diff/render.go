package diff

import (
	"html"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	insertStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Underline(true)
	deleteStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Strikethrough(true)
)

// RenderHTML renders spans as <span>, <ins> and <del> elements
func RenderHTML(spans []Span) string {
	var b strings.Builder
	for _, s := range spans {
		text := html.EscapeString(s.Text)
		switch s.Op {
		case Insert:
			b.WriteString("<ins>" + text + "</ins>")
		case Delete:
			b.WriteString("<del>" + text + "</del>")
		default:
			b.WriteString("<span>" + text + "</span>")
		}
	}
	return b.String()
}

// RenderANSI renders spans for a terminal. Styles are applied per line so
// multi-line spans are not padded into blocks.
func RenderANSI(spans []Span) string {
	var b strings.Builder
	for _, s := range spans {
		switch s.Op {
		case Insert:
			b.WriteString(styleLines(insertStyle, s.Text))
		case Delete:
			b.WriteString(styleLines(deleteStyle, s.Text))
		default:
			b.WriteString(s.Text)
		}
	}
	return b.String()
}

func styleLines(style lipgloss.Style, text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) != "" {
			lines[i] = style.Render(line)
		}
	}
	return strings.Join(lines, "\n")
}
