// Package diff computes word-level differences between two plain texts.
package diff

import (
	"strings"
	"unicode"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Op is the kind of a span
type Op int

const (
	Equal Op = iota
	Insert
	Delete
)

func (o Op) String() string {
	switch o {
	case Insert:
		return "insert"
	case Delete:
		return "delete"
	default:
		return "equal"
	}
}

// Span is a run of text with one operation
type Span struct {
	Op   Op
	Text string
}

// Compute diffs before against after at word granularity and applies
// semantic cleanup. Concatenating Equal and Delete spans yields before;
// Equal and Insert spans yield after.
func Compute(before, after string) []Span {
	if before == after {
		if before == "" {
			return nil
		}
		return []Span{{Op: Equal, Text: before}}
	}

	dmp := diffmatchpatch.New()

	tokens := newTokenTable()
	r1 := tokens.encode(before)
	r2 := tokens.encode(after)

	encoded := dmp.DiffMainRunes(r1, r2, false)
	diffs := make([]diffmatchpatch.Diff, 0, len(encoded))
	for _, d := range encoded {
		diffs = append(diffs, diffmatchpatch.Diff{Type: d.Type, Text: tokens.decode(d.Text)})
	}
	diffs = dmp.DiffCleanupSemantic(diffs)

	spans := make([]Span, 0, len(diffs))
	for _, d := range diffs {
		if d.Text == "" {
			continue
		}
		op := Equal
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			op = Insert
		case diffmatchpatch.DiffDelete:
			op = Delete
		}
		// Merge adjacent spans of the same kind
		if n := len(spans); n > 0 && spans[n-1].Op == op {
			spans[n-1].Text += d.Text
			continue
		}
		spans = append(spans, Span{Op: op, Text: d.Text})
	}
	return spans
}

// HasChanges reports whether any span inserts or deletes text
func HasChanges(spans []Span) bool {
	for _, s := range spans {
		if s.Op != Equal {
			return true
		}
	}
	return false
}

// Old reassembles the old text from spans
func Old(spans []Span) string {
	var b strings.Builder
	for _, s := range spans {
		if s.Op != Insert {
			b.WriteString(s.Text)
		}
	}
	return b.String()
}

// New reassembles the new text from spans
func New(spans []Span) string {
	var b strings.Builder
	for _, s := range spans {
		if s.Op != Delete {
			b.WriteString(s.Text)
		}
	}
	return b.String()
}

// Stats counts inserted and deleted words
func Stats(spans []Span) (inserted, deleted int) {
	for _, s := range spans {
		switch s.Op {
		case Insert:
			inserted += len(strings.Fields(s.Text))
		case Delete:
			deleted += len(strings.Fields(s.Text))
		}
	}
	return inserted, deleted
}

// tokenTable maps words, whitespace runs and punctuation to single runes so
// the character differ works on tokens
type tokenTable struct {
	index  map[string]rune
	tokens []string
}

func newTokenTable() *tokenTable {
	return &tokenTable{index: make(map[string]rune)}
}

func (t *tokenTable) encode(text string) []rune {
	var out []rune
	for _, tok := range tokenize(text) {
		r, ok := t.index[tok]
		if !ok {
			r = tokenRune(len(t.tokens))
			t.index[tok] = r
			t.tokens = append(t.tokens, tok)
		}
		out = append(out, r)
	}
	return out
}

func (t *tokenTable) decode(encoded string) string {
	var b strings.Builder
	for _, r := range encoded {
		b.WriteString(t.tokens[tokenIndex(r)])
	}
	return b.String()
}

// tokenRune skips the surrogate range so every token is a valid rune
func tokenRune(i int) rune {
	r := rune(0x100 + i)
	if r >= 0xD800 {
		r += 0x800
	}
	return r
}

func tokenIndex(r rune) int {
	if r >= 0xE000 {
		r -= 0x800
	}
	return int(r - 0x100)
}

// tokenize splits text into words, whitespace runs and single other runes
func tokenize(text string) []string {
	var (
		tokens []string
		start  = -1
		kind   int // 1 word, 2 space
	)
	flush := func(end int) {
		if start >= 0 {
			tokens = append(tokens, text[start:end])
			start = -1
		}
	}

	for i, r := range text {
		k := 0
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' || r == '’':
			k = 1
		case unicode.IsSpace(r):
			k = 2
		}

		if k == 0 {
			flush(i)
			tokens = append(tokens, string(r))
			continue
		}
		if start >= 0 && k != kind {
			flush(i)
		}
		if start < 0 {
			start = i
			kind = k
		}
	}
	flush(len(text))
	return tokens
}
