package httputil

import (
	"bytes"
	"encoding/json"
	"net/http"
)

// RespondJSON writes a JSON response with the given status code.
// It marshals first so an encoding failure never leaves a partial response.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		RespondError(w, http.StatusInternalServerError, "failed to encode response")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(payload)
}

// ProblemDetail represents an RFC 7807 Problem Details response
type ProblemDetail struct {
	Type     string                 `json:"type"`
	Title    string                 `json:"title"`
	Status   int                    `json:"status"`
	Detail   string                 `json:"detail,omitempty"`
	Instance string                 `json:"instance,omitempty"`
	Extra    map[string]interface{} `json:"-"`
}

// MarshalJSON implements custom JSON marshaling to include Extra fields at top level
func (p ProblemDetail) MarshalJSON() ([]byte, error) {
	m := map[string]interface{}{
		"type":   p.Type,
		"title":  p.Title,
		"status": p.Status,
	}

	if p.Detail != "" {
		m["detail"] = p.Detail
	}
	if p.Instance != "" {
		m["instance"] = p.Instance
	}

	for k, v := range p.Extra {
		m[k] = v
	}

	return json.Marshal(m)
}

// UnmarshalJSON collects unknown top-level members into Extra
func (p *ProblemDetail) UnmarshalJSON(data []byte) error {
	type plain ProblemDetail
	var base plain
	if err := json.Unmarshal(data, &base); err != nil {
		return err
	}

	var all map[string]interface{}
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, known := range []string{"type", "title", "status", "detail", "instance"} {
		delete(all, known)
	}

	*p = ProblemDetail(base)
	if len(all) > 0 {
		p.Extra = all
	}
	return nil
}

// Message returns the most specific human-readable text of the problem
func (p *ProblemDetail) Message() string {
	if p.Detail != "" {
		return p.Detail
	}
	if msg, ok := p.Extra["error"].(string); ok && msg != "" {
		return msg
	}
	if msg, ok := p.Extra["message"].(string); ok && msg != "" {
		return msg
	}
	return p.Title
}

// DecodeProblem parses an error body. Plain JSON {"error": "..."} bodies and
// non-JSON text are accepted too; ok is false only for an empty body.
func DecodeProblem(status int, body []byte) (problem ProblemDetail, ok bool) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return ProblemDetail{Status: status, Title: http.StatusText(status)}, false
	}

	if err := json.Unmarshal(body, &problem); err != nil {
		// Not JSON: the body itself is the detail
		return ProblemDetail{
			Type:   ErrorTypeFromStatus(status),
			Title:  http.StatusText(status),
			Status: status,
			Detail: string(body),
		}, true
	}
	if problem.Status == 0 {
		problem.Status = status
	}
	if problem.Title == "" {
		problem.Title = http.StatusText(status)
	}
	return problem, true
}

// RespondError writes an RFC 7807 Problem Details error response
func RespondError(w http.ResponseWriter, status int, detail string) {
	RespondErrorWithExtras(w, status, detail, nil)
}

// RespondErrorWithExtras writes an RFC 7807 error with additional fields
func RespondErrorWithExtras(w http.ResponseWriter, status int, detail string, extras map[string]interface{}) {
	problem := ProblemDetail{
		Type:   ErrorTypeFromStatus(status),
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
		Extra:  extras,
	}

	payload, err := json.Marshal(problem)
	if err != nil {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("internal server error"))
		return
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	w.Write(payload)
}

// ErrorTypeFromStatus returns the RFC 7807 type URI for a status code
func ErrorTypeFromStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "https://datatracker.ietf.org/doc/html/rfc7231#section-6.5.1"
	case http.StatusUnauthorized:
		return "https://datatracker.ietf.org/doc/html/rfc7235#section-3.1"
	case http.StatusForbidden:
		return "https://datatracker.ietf.org/doc/html/rfc7231#section-6.5.3"
	case http.StatusNotFound:
		return "https://datatracker.ietf.org/doc/html/rfc7231#section-6.5.4"
	case http.StatusConflict:
		return "https://datatracker.ietf.org/doc/html/rfc7231#section-6.5.8"
	case http.StatusTooManyRequests:
		return "https://datatracker.ietf.org/doc/html/rfc6585#section-4"
	case http.StatusInternalServerError:
		return "https://datatracker.ietf.org/doc/html/rfc7231#section-6.6.1"
	default:
		return "about:blank"
	}
}
