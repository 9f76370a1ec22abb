package markup

import (
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	looksLikeMarkup = regexp.MustCompile(`<(p|div|br|em|strong|i|b|h[1-6]|blockquote|ul|ol|li)[\s/>]`)
	closingBlock    = regexp.MustCompile(`(?i)</(p|div|h[1-6]|blockquote|ul|ol|pre|table)>`)
	trailingBlock   = regexp.MustCompile(`(?i)</(p|div|h[1-6]|blockquote|ul|ol|pre|table)>\s*$`)
)

// Sanitizer removes dangerous HTML elements and attributes from markup that
// enters a chapter.
//
// Thread-safe for concurrent use.
type Sanitizer struct {
	policy *bluemonday.Policy
	strict *bluemonday.Policy
}

// NewSanitizer creates a sanitizer with the UGC policy: common formatting is
// kept while scripts, event handlers and javascript: URLs are stripped.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{
		policy: bluemonday.UGCPolicy(),
		strict: bluemonday.StrictPolicy(),
	}
}

// Sanitize removes dangerous HTML while preserving safe content
func (s *Sanitizer) Sanitize(markup string) string {
	return s.policy.Sanitize(markup)
}

// StripTags removes all markup
func (s *Sanitizer) StripTags(markup string) string {
	return s.strict.Sanitize(markup)
}

// Fragment converts generated text into safe chapter markup. Text that
// already contains block or inline markup is sanitized as HTML; anything
// else is split into paragraphs.
func (s *Sanitizer) Fragment(generated string) string {
	generated = strings.TrimSpace(generated)
	if generated == "" {
		return ""
	}
	if looksLikeMarkup.MatchString(generated) {
		return s.Sanitize(generated)
	}
	return s.Sanitize(TextToHTML(generated))
}

// InsertAt inserts fragment into markup at byte offset pos. Offsets outside
// the markup append. An offset inside a tag or inside a block element is
// moved forward to the end of that block so the result stays well-formed.
func InsertAt(markup string, pos int, fragment string) string {
	if pos < 0 || pos >= len(markup) {
		return markup + fragment
	}
	pos = blockBoundary(markup, pos)
	return markup[:pos] + fragment + markup[pos:]
}

func blockBoundary(markup string, pos int) int {
	// Inside a tag: move past its '>'
	if lt, gt := strings.LastIndexByte(markup[:pos], '<'), strings.LastIndexByte(markup[:pos], '>'); lt > gt {
		end := strings.IndexByte(markup[pos:], '>')
		if end < 0 {
			return len(markup)
		}
		pos += end + 1
	}

	if pos == 0 || pos >= len(markup) || trailingBlock.MatchString(markup[:pos]) {
		return pos
	}
	if strings.TrimSpace(markup[:pos]) == "" {
		return pos
	}

	loc := closingBlock.FindStringIndex(markup[pos:])
	if loc == nil {
		return len(markup)
	}
	return pos + loc[1]
}
