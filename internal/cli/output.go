package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle  = lipgloss.NewStyle().Faint(true)
	idStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func header(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf(format, args...)))
}

func muted(s string) string { return mutedStyle.Render(s) }

// tensionBar draws a 0-10 tension value as a fixed-width gauge
func tensionBar(tension int) string {
	tension = max(0, min(10, tension))
	return strings.Repeat("#", tension) + muted(strings.Repeat(".", 10-tension))
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

// indent prefixes every line of text
func indent(text, prefix string) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
