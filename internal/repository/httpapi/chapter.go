package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"inkwell/internal/domain/models/chapter"
)

// ChapterRepository implements repositories.ChapterRepository over HTTP
type ChapterRepository struct {
	client *Client
}

// NewChapterRepository creates a new chapter repository
func NewChapterRepository(client *Client) *ChapterRepository {
	return &ChapterRepository{client: client}
}

func (r *ChapterRepository) Get(ctx context.Context, id string) (*chapter.Chapter, error) {
	var ch chapter.Chapter
	path := "/api/chapters/" + url.PathEscape(id)
	if err := r.client.do(ctx, http.MethodGet, path, nil, &ch, resource{kind: "chapter", id: id}); err != nil {
		return nil, err
	}
	return &ch, nil
}

func (r *ChapterRepository) ListByProject(ctx context.Context, projectID string) ([]chapter.Chapter, error) {
	var resp struct {
		Chapters []chapter.Chapter `json:"chapters"`
	}
	path := fmt.Sprintf("/api/projects/%s/chapters", url.PathEscape(projectID))
	if err := r.client.do(ctx, http.MethodGet, path, nil, &resp, resource{kind: "project", id: projectID}); err != nil {
		return nil, err
	}
	return resp.Chapters, nil
}

func (r *ChapterRepository) Save(ctx context.Context, id string, req chapter.SaveRequest) (*chapter.SaveResult, error) {
	var result chapter.SaveResult
	path := "/api/chapters/" + url.PathEscape(id)
	res := resource{kind: "chapter", id: id, baseVersion: req.BaseVersion}
	if err := r.client.do(ctx, http.MethodPatch, path, req, &result, res); err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *ChapterRepository) ListVersions(ctx context.Context, id string) (*chapter.VersionList, error) {
	var list chapter.VersionList
	path := fmt.Sprintf("/api/chapters/%s/versions", url.PathEscape(id))
	if err := r.client.do(ctx, http.MethodGet, path, nil, &list, resource{kind: "chapter", id: id}); err != nil {
		return nil, err
	}
	return &list, nil
}

func (r *ChapterRepository) GetVersion(ctx context.Context, id string, version int) (*chapter.VersionDetail, error) {
	var detail chapter.VersionDetail
	path := fmt.Sprintf("/api/chapters/%s/versions/%d", url.PathEscape(id), version)
	if err := r.client.do(ctx, http.MethodGet, path, nil, &detail, resource{kind: "chapter version", id: id}); err != nil {
		return nil, err
	}
	return &detail, nil
}

func (r *ChapterRepository) Revert(ctx context.Context, id string, req chapter.RevertRequest) (*chapter.SaveResult, error) {
	var result chapter.SaveResult
	path := fmt.Sprintf("/api/chapters/%s/versions/%d/revert", url.PathEscape(id), req.TargetVersion)
	res := resource{kind: "chapter", id: id, baseVersion: req.BaseVersion}
	if err := r.client.do(ctx, http.MethodPost, path, req, &result, res); err != nil {
		return nil, err
	}
	return &result, nil
}
