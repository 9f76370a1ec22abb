package httpapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"inkwell/internal/capabilities"
	"inkwell/internal/domain"
	"inkwell/internal/domain/models/stream"
	"inkwell/internal/domain/repositories"
	"inkwell/internal/repository/httpapi/sse"
)

// GenerationRepository implements repositories.GenerationRepository and
// repositories.StreamOpener over HTTP
type GenerationRepository struct {
	client *Client
	modes  *capabilities.Registry
}

// NewGenerationRepository creates a job client; start endpoints come from
// the mode registry
func NewGenerationRepository(client *Client, modes *capabilities.Registry) *GenerationRepository {
	return &GenerationRepository{client: client, modes: modes}
}

func (r *GenerationRepository) StartJob(ctx context.Context, mode stream.Mode, opts stream.StartOptions) (string, error) {
	path, err := r.modes.StartPath(mode, opts)
	if err != nil {
		return "", err
	}

	var resp struct {
		JobID string `json:"job_id"`
	}
	if err := r.client.do(ctx, http.MethodPost, path, opts, &resp, resource{kind: "job"}); err != nil {
		return "", err
	}
	if resp.JobID == "" {
		return "", &domain.ParseError{Op: "decode job", Err: io.ErrUnexpectedEOF}
	}

	r.client.logger.Info("generation job started", "mode", mode, "job_id", resp.JobID)
	return resp.JobID, nil
}

func (r *GenerationRepository) CancelJob(ctx context.Context, jobID string) error {
	path := fmt.Sprintf("/api/jobs/%s/cancel", url.PathEscape(jobID))
	return r.client.do(ctx, http.MethodPost, path, nil, nil, resource{kind: "job", id: jobID})
}

// Open connects to the push channel of a job. The returned handle owns the
// connection until Close.
func (r *GenerationRepository) Open(ctx context.Context, jobID string) (repositories.StreamHandle, error) {
	path := fmt.Sprintf("/api/jobs/%s/stream", url.PathEscape(jobID))

	streamCtx, cancel := context.WithCancel(ctx)
	req, err := r.client.newRequest(streamCtx, http.MethodGet, path, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := r.client.stream.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open stream %s: %w", jobID, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer cancel()
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		return nil, mapStatus(resp.StatusCode, data, resource{kind: "job", id: jobID})
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "text/event-stream") {
		resp.Body.Close()
		cancel()
		return nil, &domain.ParseError{Op: "open stream", Err: fmt.Errorf("unexpected content type %q", ct)}
	}

	r.client.logger.Debug("event stream opened", "job_id", jobID)
	return sse.NewStream(resp.Body, cancel, r.client.sse, r.client.clock, r.client.logger.With("job_id", jobID)), nil
}
