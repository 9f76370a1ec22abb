package stream

import (
	"encoding/json"
	"fmt"
	"time"
)

// SSE event type constants
const (
	EventStart    = "start"    // Job accepted, tokens will follow
	EventDelta    = "delta"    // Incremental text
	EventProgress = "progress" // Percent complete and token count
	EventError    = "error"    // Terminal failure
	EventDone     = "done"     // Terminal success
)

// DoneSentinel is accepted as the data of a done event
const DoneSentinel = "[DONE]"

// Mode selects the kind of generation job
type Mode string

const (
	ModeGenerate Mode = "generate" // New chapter from outline context
	ModeContinue Mode = "continue" // Extend an existing chapter
	ModeSuggest  Mode = "suggest"  // Plot point suggestions
)

// Status of a streaming job as seen by the client
type Status string

const (
	StatusIdle       Status = "idle"
	StatusRequesting Status = "requesting"
	StatusStreaming  Status = "streaming"
	StatusReady      Status = "ready"
	StatusError      Status = "error"
)

// Terminal reports whether no more events are expected
func (s Status) Terminal() bool {
	return s == StatusReady || s == StatusError
}

// Event is one parsed Server-Sent Event
// SSE format:
//
//	event: delta
//	data: {"text": "..."}
type Event struct {
	Name string
	Data string
	ID   string
}

// DeltaEvent carries incremental text
type DeltaEvent struct {
	Text string `json:"text"`
}

// ProgressEvent reports how far along a job is
type ProgressEvent struct {
	Progress *int `json:"progress,omitempty"` // 0-100
	Tokens   *int `json:"tokens,omitempty"`
}

// ErrorEvent signals that the job failed
type ErrorEvent struct {
	Message string `json:"message"`
}

// DoneEvent signals that the job finished
type DoneEvent struct {
	DurationMS int64  `json:"duration_ms,omitempty"`
	Text       string `json:"text,omitempty"`
}

// Job is the transient client-side state of one generation job
type Job struct {
	ID       string
	Mode     Mode
	Buffer   string // accumulated delta text
	Base     string // text the buffer is appended to (continue mode)
	Progress int
	Tokens   int
	Duration time.Duration
	Status   Status
	Err      string
}

// StartOptions are the knobs of a job start request
type StartOptions struct {
	ProjectID   string         `json:"project_id,omitempty"`
	ChapterID   string         `json:"chapter_id,omitempty"`
	OutlineID   string         `json:"outline_id,omitempty"`
	Instruction string         `json:"instruction,omitempty"`
	TargetWords int            `json:"target_words,omitempty"`
	Params      map[string]any `json:"params,omitempty"`
}

// FormatSSE formats an SSE event for transmission
// Returns a string in SSE format:
//
//	event: event_name
//	data: {"field": "value"}
//	\n
func FormatSSE(eventType string, data interface{}) (string, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal SSE event data: %w", err)
	}

	return fmt.Sprintf("event: %s\ndata: %s\n\n", eventType, string(jsonData)), nil
}
