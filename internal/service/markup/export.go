package markup

import (
	"fmt"
	"io"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"

	"inkwell/internal/domain"
)

// Export formats
const (
	FormatMarkdown = "markdown"
	FormatText     = "text"
)

// Manuscript is an ordered set of chapters exported as one document
type Manuscript struct {
	Title    string
	Author   string
	Date     time.Time // zero uses the current date
	Chapters []ManuscriptChapter
}

// ManuscriptChapter is one exported chapter; Content is chapter markup
type ManuscriptChapter struct {
	Title   string
	Content string
}

// Exporter renders manuscripts. Chapter markup is sanitized before it is
// converted.
type Exporter struct {
	sanitizer *Sanitizer
	converter *md.Converter
}

// NewExporter creates an exporter with the default markdown converter
func NewExporter() *Exporter {
	return &Exporter{
		sanitizer: NewSanitizer(),
		converter: md.NewConverter("", true, nil),
	}
}

// Formats returns the supported export formats
func (e *Exporter) Formats() []string {
	return []string{FormatMarkdown, FormatText}
}

// Export writes m to w in the given format
func (e *Exporter) Export(w io.Writer, m Manuscript, format string) error {
	switch format {
	case FormatMarkdown, "md":
		return e.exportMarkdown(w, m)
	case FormatText, "txt":
		return e.exportText(w, m)
	default:
		return &domain.ValidationError{Message: fmt.Sprintf("unsupported export format: %s", format)}
	}
}

func (e *Exporter) exportMarkdown(w io.Writer, m Manuscript) error {
	title, author, date := header(m)

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n*by %s*\n\n%s\n", title, author, date)

	for _, ch := range m.Chapters {
		b.WriteString("\n")
		if ch.Title != "" {
			fmt.Fprintf(&b, "## %s\n\n", ch.Title)
		}
		body, err := e.converter.ConvertString(e.sanitizer.Sanitize(ch.Content))
		if err != nil {
			return fmt.Errorf("failed to convert chapter %q to markdown: %w", ch.Title, err)
		}
		if body = strings.TrimSpace(body); body != "" {
			b.WriteString(body)
			b.WriteString("\n")
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func (e *Exporter) exportText(w io.Writer, m Manuscript) error {
	title, author, date := header(m)

	var b strings.Builder
	fmt.Fprintf(&b, "%s\nby %s\n%s\n", title, author, date)

	for _, ch := range m.Chapters {
		b.WriteString("\n\n")
		if ch.Title != "" {
			b.WriteString(ch.Title)
			b.WriteString("\n")
			b.WriteString(strings.Repeat("=", len([]rune(ch.Title))))
			b.WriteString("\n\n")
		}
		if text := PlainText(e.sanitizer.Sanitize(ch.Content)); text != "" {
			b.WriteString(text)
			b.WriteString("\n")
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func header(m Manuscript) (title, author, date string) {
	title = strings.TrimSpace(m.Title)
	if title == "" {
		title = "Untitled Document"
	}
	author = strings.TrimSpace(m.Author)
	if author == "" {
		author = "Unknown"
	}
	when := m.Date
	if when.IsZero() {
		when = time.Now()
	}
	return title, author, when.Format("2006-01-02")
}
