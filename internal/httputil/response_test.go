package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDecodeProblem(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantOK     bool
		wantMsg    string
		wantStatus int
	}{
		{"rfc7807", 409, `{"type":"x","title":"Conflict","status":409,"detail":"version mismatch"}`, true, "version mismatch", 409},
		{"plain error field", 400, `{"error":"title required"}`, true, "title required", 400},
		{"plain text", 502, "bad gateway upstream", true, "bad gateway upstream", 502},
		{"empty", 500, "  ", false, "Internal Server Error", 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ok := DecodeProblem(tt.status, []byte(tt.body))
			if ok != tt.wantOK {
				t.Errorf("ok = %v, want %v", ok, tt.wantOK)
			}
			if got := p.Message(); got != tt.wantMsg {
				t.Errorf("Message() = %q, want %q", got, tt.wantMsg)
			}
			if p.Status != tt.wantStatus {
				t.Errorf("Status = %d, want %d", p.Status, tt.wantStatus)
			}
		})
	}
}

func TestRespondErrorWithExtras_RoundTrip(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondErrorWithExtras(rec, http.StatusConflict, "stale", map[string]interface{}{"current_version": 7})

	if ct := rec.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("Content-Type = %q", ct)
	}

	p, ok := DecodeProblem(rec.Code, rec.Body.Bytes())
	if !ok {
		t.Fatal("expected problem")
	}
	if p.Detail != "stale" || p.Status != http.StatusConflict {
		t.Errorf("got %+v", p)
	}
	if v, _ := p.Extra["current_version"].(float64); v != 7 {
		t.Errorf("current_version extra = %v", p.Extra["current_version"])
	}
}

func TestOptionalString_Marshal(t *testing.T) {
	type patch struct {
		ChapterID OptionalString `json:"chapter_id,omitzero"`
	}

	tests := []struct {
		name string
		in   patch
		want string
	}{
		{"absent", patch{}, `{}`},
		{"null", patch{ChapterID: Null()}, `{"chapter_id":null}`},
		{"value", patch{ChapterID: Set("ch-1")}, `{"chapter_id":"ch-1"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.in)
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}
