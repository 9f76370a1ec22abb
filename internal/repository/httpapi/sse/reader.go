package sse

import (
	"bufio"
	"io"
	"strings"

	"inkwell/internal/domain/models/stream"
)

// DefaultEventName is used for events without an event: field
const DefaultEventName = "message"

// Reader parses a text/event-stream body into events
type Reader struct {
	r *bufio.Reader

	// OnComment is called for every comment line (keep-alives)
	OnComment func(text string)
}

// NewReader wraps an event-stream body
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Next returns the next dispatched event. Data lines are joined with "\n".
// An event is dispatched on a blank line when it has data or a name; a
// trailing event without its blank line is discarded. Next returns io.EOF
// at the end of the stream.
func (r *Reader) Next() (stream.Event, error) {
	var (
		name    string
		id      string
		data    []string
		hasData bool
	)

	for {
		line, err := r.r.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			return stream.Event{}, err
		}
		line = strings.TrimRight(line, "\r\n")

		if line == "" {
			if err == io.EOF {
				return stream.Event{}, io.EOF
			}
			if !hasData && name == "" {
				continue
			}
			if name == "" {
				name = DefaultEventName
			}
			return stream.Event{Name: name, Data: strings.Join(data, "\n"), ID: id}, nil
		}

		if strings.HasPrefix(line, ":") {
			if r.OnComment != nil {
				r.OnComment(strings.TrimSpace(line[1:]))
			}
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			name = value
		case "data":
			data = append(data, value)
			hasData = true
		case "id":
			id = value
		case "retry":
			// Reconnection is owned by the caller
		}

		if err == io.EOF {
			// Incomplete final event
			return stream.Event{}, io.EOF
		}
	}
}
