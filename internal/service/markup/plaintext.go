// Package markup converts chapter markup (HTML) to plain text, sanitizes
// inserted fragments and renders manuscript exports.
package markup

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// blockTags become paragraph breaks in plain text
var blockTags = map[string]bool{
	"p": true, "div": true, "li": true, "blockquote": true, "pre": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"ul": true, "ol": true, "table": true, "section": true, "article": true,
	"header": true, "footer": true, "hr": true,
}

// PlainText extracts the text of chapter markup deterministically: block
// elements become "\n\n", <br> becomes "\n", entities are decoded, scripts and
// styles are dropped and whitespace runs collapse to one space (except in <pre>).
func PlainText(markup string) string {
	z := html.NewTokenizer(strings.NewReader(markup))

	var (
		out     strings.Builder
		pending string // line breaks waiting for the next text
		space   bool   // a collapsed space is waiting
		skip    int    // depth inside script/style
		pre     int
	)

	paragraph := func() {
		if out.Len() == 0 {
			return
		}
		if len(pending) < 2 {
			pending = "\n\n"
		}
		space = false
	}
	lineBreak := func() {
		if out.Len() == 0 {
			return
		}
		pending += "\n"
		space = false
	}
	write := func(s string) {
		if pending != "" {
			out.WriteString(pending)
			pending = ""
		} else if space && out.Len() > 0 {
			out.WriteByte(' ')
		}
		space = false
		out.WriteString(s)
	}

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return out.String()

		case html.TextToken:
			if skip > 0 {
				continue
			}
			text := string(z.Text())
			if pre > 0 {
				if text != "" {
					write(text)
				}
				continue
			}
			fields := strings.Fields(text)
			if len(fields) == 0 {
				if text != "" {
					space = true
				}
				continue
			}
			if startsWithSpace(text) {
				space = true
			}
			write(strings.Join(fields, " "))
			if endsWithSpace(text) {
				space = true
			}

		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			switch {
			case tag == "script" || tag == "style":
				if tt == html.StartTagToken {
					skip++
				}
			case tag == "br":
				lineBreak()
			case tag == "pre":
				paragraph()
				if tt == html.StartTagToken {
					pre++
				}
			case blockTags[tag]:
				paragraph()
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			switch {
			case tag == "script" || tag == "style":
				if skip > 0 {
					skip--
				}
			case tag == "pre":
				if pre > 0 {
					pre--
				}
				paragraph()
			case blockTags[tag]:
				paragraph()
			}
		}
	}
}

func startsWithSpace(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return s != "" && unicode.IsSpace(r)
}

func endsWithSpace(s string) bool {
	r, _ := utf8.DecodeLastRuneInString(s)
	return s != "" && unicode.IsSpace(r)
}
