package streaming

import (
	"strings"
	"time"

	"inkwell/internal/domain/models/stream"

	"github.com/tidwall/gjson"
)

// genericFailure is shown when an error event carries no usable message
const genericFailure = "Generation failed."

// deltaText extracts the fragment of a delta event. Payloads that are not
// JSON are appended verbatim.
func deltaText(data string) string {
	if !gjson.Valid(data) {
		return data
	}
	res := gjson.Parse(data)
	switch {
	case res.IsObject():
		return res.Get("text").String()
	case res.Type == gjson.String:
		return res.String()
	default:
		return data
	}
}

// applyProgress overwrites only the fields present in the payload
func applyProgress(job *stream.Job, data string) {
	if !gjson.Valid(data) {
		return
	}
	if p := gjson.Get(data, "progress"); p.Exists() {
		job.Progress = clamp(int(p.Int()), 0, 100)
	}
	if t := gjson.Get(data, "tokens"); t.Exists() {
		job.Tokens = int(t.Int())
	}
}

func errorMessage(data string) string {
	trimmed := strings.TrimSpace(data)
	if trimmed == "" {
		return genericFailure
	}
	if !gjson.Valid(trimmed) {
		return trimmed
	}

	res := gjson.Parse(trimmed)
	if res.IsObject() {
		for _, key := range []string{"message", "error", "detail"} {
			if v := res.Get(key); v.Type == gjson.String && v.String() != "" {
				return v.String()
			}
		}
		return genericFailure
	}
	if res.Type == gjson.String && res.String() != "" {
		return res.String()
	}
	return genericFailure
}

// applyDone takes the final duration and, if nothing was streamed, the
// final text
func applyDone(job *stream.Job, data string) {
	trimmed := strings.TrimSpace(data)
	if trimmed == "" || trimmed == stream.DoneSentinel || !gjson.Valid(trimmed) {
		return
	}
	if d := gjson.Get(trimmed, "duration_ms"); d.Exists() {
		job.Duration = time.Duration(d.Int()) * time.Millisecond
	}
	if t := gjson.Get(trimmed, "text"); t.Exists() && job.Buffer == "" {
		job.Buffer = t.String()
	}
}

// isDoneSentinel reports an unnamed event carrying the [DONE] marker
func isDoneSentinel(ev stream.Event) bool {
	return (ev.Name == "" || ev.Name == "message") && strings.TrimSpace(ev.Data) == stream.DoneSentinel
}

func clamp(v, lo, hi int) int {
	return max(lo, min(hi, v))
}
