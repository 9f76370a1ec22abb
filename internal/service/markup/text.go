package markup

import (
	"html"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var blankLine = regexp.MustCompile(`\n[ \t]*\n`)

// CountWords counts whitespace-separated words in plain text
func CountWords(text string) int {
	return len(strings.FieldsFunc(text, unicode.IsSpace))
}

// CountCharacters counts runes in plain text
func CountCharacters(text string) int {
	return utf8.RuneCountInString(text)
}

// TextStats returns the word and character counts of chapter markup
func TextStats(markup string) (words, chars int) {
	text := PlainText(markup)
	return CountWords(text), CountCharacters(text)
}

// TextToHTML turns plain text into paragraphs: blank lines separate <p>
// elements and single newlines become <br>
func TextToHTML(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var b strings.Builder
	for _, para := range blankLine.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		lines := strings.Split(para, "\n")
		for i := range lines {
			lines[i] = html.EscapeString(strings.TrimSpace(lines[i]))
		}
		b.WriteString("<p>")
		b.WriteString(strings.Join(lines, "<br>"))
		b.WriteString("</p>")
	}
	return b.String()
}

// Preview returns the first n runes of the plain text of markup
func Preview(markup string, n int) string {
	text := strings.Join(strings.Fields(PlainText(markup)), " ")
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:n])) + "…"
}
