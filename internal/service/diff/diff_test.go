package diff

import (
	"strings"
	"testing"
)

func TestCompute_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		old  string
		new  string
	}{
		{"identical", "The rain fell.", "The rain fell."},
		{"word replaced", "The rain fell softly.", "The snow fell softly."},
		{"appended paragraph", "One.\n\nTwo.", "One.\n\nTwo.\n\nThree."},
		{"from empty", "", "Brand new text"},
		{"to empty", "Everything goes", ""},
		{"unicode", "Café au lait — très bien", "Café noir — très bien!"},
		{"reordered", "alpha beta gamma delta", "delta gamma beta alpha"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spans := Compute(tt.old, tt.new)
			if got := Old(spans); got != tt.old {
				t.Errorf("Old(spans) = %q, want %q", got, tt.old)
			}
			if got := New(spans); got != tt.new {
				t.Errorf("New(spans) = %q, want %q", got, tt.new)
			}
			if HasChanges(spans) != (tt.old != tt.new) {
				t.Errorf("HasChanges = %v", HasChanges(spans))
			}
		})
	}
}

func TestCompute_WordGranularity(t *testing.T) {
	spans := Compute("The rain fell.", "The snow fell.")

	var deleted, inserted []string
	for _, s := range spans {
		switch s.Op {
		case Delete:
			deleted = append(deleted, s.Text)
		case Insert:
			inserted = append(inserted, s.Text)
		}
	}
	if strings.Join(deleted, "") != "rain" || strings.Join(inserted, "") != "snow" {
		t.Errorf("deleted=%q inserted=%q, want whole words", deleted, inserted)
	}

	ins, del := Stats(spans)
	if ins != 1 || del != 1 {
		t.Errorf("Stats = %d, %d", ins, del)
	}
}

func TestCompute_NoAdjacentSameOp(t *testing.T) {
	spans := Compute("a b c d e f", "a x c y e z")
	for i := 1; i < len(spans); i++ {
		if spans[i].Op == spans[i-1].Op {
			t.Fatalf("spans %d and %d share op %s", i-1, i, spans[i].Op)
		}
	}
}

func TestRenderHTML(t *testing.T) {
	spans := []Span{{Equal, "a "}, {Delete, "<b>"}, {Insert, "c"}}
	want := "<span>a </span><del>&lt;b&gt;</del><ins>c</ins>"
	if got := RenderHTML(spans); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRenderANSI_KeepsText(t *testing.T) {
	out := RenderANSI(Compute("old line\nkept", "new line\nkept"))
	for _, want := range []string{"old", "new", "line", "kept"} {
		if !strings.Contains(out, want) {
			t.Errorf("ANSI output missing %q: %q", want, out)
		}
	}
}

func TestTokenRune_SkipsSurrogates(t *testing.T) {
	for _, i := range []int{0, 0xD6FF, 0xD700, 0xD701, 0x20000} {
		r := tokenRune(i)
		if r >= 0xD800 && r <= 0xDFFF {
			t.Fatalf("tokenRune(%d) = %U is a surrogate", i, r)
		}
		if got := tokenIndex(r); got != i {
			t.Fatalf("tokenIndex(tokenRune(%d)) = %d", i, got)
		}
	}
}
