package markup

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"inkwell/internal/domain"
)

func TestPlainText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"paragraphs", "<p>Hello <em>world</em></p><p>Second</p>", "Hello world\n\nSecond"},
		{"line break", "a<br>b", "a\nb"},
		{"double break", "a<br><br>b", "a\n\nb"},
		{"entities", "<p>x &amp; y &lt;z&gt;</p>", "x & y <z>"},
		{"script dropped", "<script>alert(1)</script><p>hi</p><style>p{}</style>", "hi"},
		{"whitespace collapsed", "<p>  lots   of\n space </p>", "lots of space"},
		{"headings and lists", "<h1>Title</h1><ul><li>one</li><li>two</li></ul>", "Title\n\none\n\ntwo"},
		{"pre preserved", "<pre>a  b\nc</pre>", "a  b\nc"},
		{"plain text input", "just text", "just text"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PlainText(tt.input); got != tt.want {
				t.Errorf("PlainText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestPlainText_Deterministic(t *testing.T) {
	input := "<div><p>One <b>two</b></p>three<br/>four</div>"
	first := PlainText(input)
	for i := 0; i < 10; i++ {
		if got := PlainText(input); got != first {
			t.Fatalf("run %d: %q != %q", i, got, first)
		}
	}
}

func TestTextStats(t *testing.T) {
	words, chars := TextStats("<p>The quick fox</p><p>jumps</p>")
	if words != 4 {
		t.Errorf("words = %d, want 4", words)
	}
	if chars != len("The quick fox\n\njumps") {
		t.Errorf("chars = %d", chars)
	}
}

func TestTextToHTML(t *testing.T) {
	got := TextToHTML("First line\nsame para\n\n  Second <para>  \n\n\n")
	want := "<p>First line<br>same para</p><p>Second &lt;para&gt;</p>"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if TextToHTML("  \n\n ") != "" {
		t.Error("blank text should produce no paragraphs")
	}
}

func TestPreview(t *testing.T) {
	if got := Preview("<p>short</p>", 20); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := Preview("<p>abcdefghij</p>", 4); got != "abcd…" {
		t.Errorf("got %q", got)
	}
}

func TestSanitizer_Fragment(t *testing.T) {
	s := NewSanitizer()

	got := s.Fragment("It was dark.\n\nThen <script>x</script> light.")
	if strings.Contains(got, "<script>") {
		t.Errorf("script survived: %q", got)
	}
	if !strings.HasPrefix(got, "<p>It was dark.</p><p>") {
		t.Errorf("text not split into paragraphs: %q", got)
	}

	got = s.Fragment(`<p onclick="steal()">Hi <em>there</em></p>`)
	if got != "<p>Hi <em>there</em></p>" {
		t.Errorf("markup fragment = %q", got)
	}

	if s.Fragment("   ") != "" {
		t.Error("blank fragment should be empty")
	}
}

func TestInsertAt(t *testing.T) {
	doc := "<p>One</p><p>Two</p>"
	frag := "<p>New</p>"

	tests := []struct {
		name string
		pos  int
		want string
	}{
		{"negative appends", -1, doc + frag},
		{"past end appends", len(doc) + 5, doc + frag},
		{"start", 0, frag + doc},
		{"block boundary", len("<p>One</p>"), "<p>One</p><p>New</p><p>Two</p>"},
		{"inside text moves to block end", len("<p>O"), "<p>One</p><p>New</p><p>Two</p>"},
		{"inside tag moves past block", len("<p>One</"), "<p>One</p><p>New</p><p>Two</p>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InsertAt(doc, tt.pos, frag); got != tt.want {
				t.Errorf("InsertAt(%d) = %q, want %q", tt.pos, got, tt.want)
			}
		})
	}
}

func TestExporter(t *testing.T) {
	m := Manuscript{
		Title:  "The Long Road",
		Author: "A. Writer",
		Date:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Chapters: []ManuscriptChapter{
			{Title: "Departure", Content: "<p>She left at dawn.</p><p>Nobody saw.</p>"},
			{Title: "Arrival", Content: "<p>The city was loud.</p>"},
		},
	}
	e := NewExporter()

	var txt bytes.Buffer
	if err := e.Export(&txt, m, FormatText); err != nil {
		t.Fatalf("text export: %v", err)
	}
	wantText := "The Long Road\nby A. Writer\n2026-03-01\n\n\nDeparture\n=========\n\nShe left at dawn.\n\nNobody saw.\n\n\nArrival\n=======\n\nThe city was loud.\n"
	if txt.String() != wantText {
		t.Errorf("text export =\n%q\nwant\n%q", txt.String(), wantText)
	}

	var mdOut bytes.Buffer
	if err := e.Export(&mdOut, m, FormatMarkdown); err != nil {
		t.Fatalf("markdown export: %v", err)
	}
	out := mdOut.String()
	for _, want := range []string{"# The Long Road", "*by A. Writer*", "## Departure", "She left at dawn.", "## Arrival"} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown export missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "Departure") > strings.Index(out, "Arrival") {
		t.Error("chapters out of order")
	}
}

func TestExporter_Defaults(t *testing.T) {
	var b bytes.Buffer
	if err := NewExporter().Export(&b, Manuscript{}, FormatText); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(b.String(), "Untitled Document\nby Unknown\n") {
		t.Errorf("got %q", b.String())
	}
}

func TestExporter_UnknownFormat(t *testing.T) {
	err := NewExporter().Export(&bytes.Buffer{}, Manuscript{}, "pdf")
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}
