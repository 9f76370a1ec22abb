// Package cache provides read-through caching decorators for the repository
// ports.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"inkwell/internal/domain/models/chapter"
	"inkwell/internal/domain/repositories"

	"golang.org/x/sync/singleflight"
)

type versionKey struct {
	chapterID string
	version   int
}

// ChapterRepository caches an underlying ChapterRepository.
// Chapters, per-project lists and version lists are cached until a write or
// an explicit invalidation; version details are immutable and cached forever.
// Concurrent misses for the same key share one request.
type ChapterRepository struct {
	next   repositories.ChapterRepository
	logger *slog.Logger
	group  singleflight.Group

	mu       sync.Mutex
	epoch    uint64 // bumped by every invalidation; fetches started earlier are not stored
	chapters map[string]*chapter.Chapter
	lists    map[string][]chapter.Chapter
	versions map[string]*chapter.VersionList
	details  map[versionKey]*chapter.VersionDetail
}

var _ repositories.ChapterRepository = (*ChapterRepository)(nil)

// NewChapterRepository wraps next with a read-through cache
func NewChapterRepository(next repositories.ChapterRepository, logger *slog.Logger) *ChapterRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChapterRepository{
		next:     next,
		logger:   logger,
		chapters: make(map[string]*chapter.Chapter),
		lists:    make(map[string][]chapter.Chapter),
		versions: make(map[string]*chapter.VersionList),
		details:  make(map[versionKey]*chapter.VersionDetail),
	}
}

func (r *ChapterRepository) Get(ctx context.Context, id string) (*chapter.Chapter, error) {
	r.mu.Lock()
	if ch, ok := r.chapters[id]; ok {
		r.mu.Unlock()
		return copyChapter(ch), nil
	}
	epoch := r.epoch
	r.mu.Unlock()

	v, err, _ := r.group.Do("chapter:"+id, func() (interface{}, error) {
		r.logger.Debug("chapter cache miss", "chapter_id", id)
		return r.next.Get(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	ch := v.(*chapter.Chapter)

	r.mu.Lock()
	if r.epoch == epoch {
		r.chapters[id] = copyChapter(ch)
	}
	r.mu.Unlock()
	return copyChapter(ch), nil
}

func (r *ChapterRepository) ListByProject(ctx context.Context, projectID string) ([]chapter.Chapter, error) {
	r.mu.Lock()
	if list, ok := r.lists[projectID]; ok {
		r.mu.Unlock()
		return append([]chapter.Chapter(nil), list...), nil
	}
	epoch := r.epoch
	r.mu.Unlock()

	v, err, _ := r.group.Do("list:"+projectID, func() (interface{}, error) {
		r.logger.Debug("chapter list cache miss", "project_id", projectID)
		return r.next.ListByProject(ctx, projectID)
	})
	if err != nil {
		return nil, err
	}
	list := v.([]chapter.Chapter)

	r.mu.Lock()
	if r.epoch == epoch {
		r.lists[projectID] = append([]chapter.Chapter(nil), list...)
	}
	r.mu.Unlock()
	return append([]chapter.Chapter(nil), list...), nil
}

func (r *ChapterRepository) ListVersions(ctx context.Context, id string) (*chapter.VersionList, error) {
	r.mu.Lock()
	if list, ok := r.versions[id]; ok {
		r.mu.Unlock()
		return copyVersionList(list), nil
	}
	epoch := r.epoch
	r.mu.Unlock()

	v, err, _ := r.group.Do("versions:"+id, func() (interface{}, error) {
		r.logger.Debug("version list cache miss", "chapter_id", id)
		return r.next.ListVersions(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	list := v.(*chapter.VersionList)

	r.mu.Lock()
	if r.epoch == epoch {
		r.versions[id] = copyVersionList(list)
	}
	r.mu.Unlock()
	return copyVersionList(list), nil
}

func (r *ChapterRepository) GetVersion(ctx context.Context, id string, version int) (*chapter.VersionDetail, error) {
	key := versionKey{chapterID: id, version: version}

	r.mu.Lock()
	if detail, ok := r.details[key]; ok {
		r.mu.Unlock()
		d := *detail
		return &d, nil
	}
	r.mu.Unlock()

	v, err, _ := r.group.Do(fmt.Sprintf("version:%s:%d", id, version), func() (interface{}, error) {
		return r.next.GetVersion(ctx, id, version)
	})
	if err != nil {
		return nil, err
	}
	detail := *v.(*chapter.VersionDetail)

	// Snapshots never change, so no epoch check
	r.mu.Lock()
	stored := detail
	r.details[key] = &stored
	r.mu.Unlock()
	return &detail, nil
}

func (r *ChapterRepository) Save(ctx context.Context, id string, req chapter.SaveRequest) (*chapter.SaveResult, error) {
	result, err := r.next.Save(ctx, id, req)
	if err != nil {
		return nil, err
	}
	r.storeWrite(id, result)
	return result, nil
}

func (r *ChapterRepository) Revert(ctx context.Context, id string, req chapter.RevertRequest) (*chapter.SaveResult, error) {
	result, err := r.next.Revert(ctx, id, req)
	if err != nil {
		return nil, err
	}
	r.storeWrite(id, result)
	return result, nil
}

// storeWrite keeps the returned chapter and drops everything the write made
// stale
func (r *ChapterRepository) storeWrite(id string, result *chapter.SaveResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.invalidateLocked(id)
	r.chapters[id] = copyChapter(&result.Chapter)
	delete(r.lists, result.Chapter.ProjectID)
}

// InvalidateChapter drops the cached chapter, its version list and the list
// of its project. Version details are kept.
func (r *ChapterRepository) InvalidateChapter(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invalidateLocked(id)
	r.logger.Debug("chapter cache invalidated", "chapter_id", id)
}

// InvalidateProject drops the cached chapter list of a project
func (r *ChapterRepository) InvalidateProject(projectID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.epoch++
	delete(r.lists, projectID)
}

func (r *ChapterRepository) invalidateLocked(id string) {
	r.epoch++
	if ch, ok := r.chapters[id]; ok {
		delete(r.lists, ch.ProjectID)
	} else {
		// Project unknown: drop every list
		r.lists = make(map[string][]chapter.Chapter)
	}
	delete(r.chapters, id)
	delete(r.versions, id)
}

func copyChapter(ch *chapter.Chapter) *chapter.Chapter {
	c := *ch
	return &c
}

func copyVersionList(list *chapter.VersionList) *chapter.VersionList {
	return &chapter.VersionList{
		CurrentVersion: list.CurrentVersion,
		Versions:       append([]chapter.VersionSummary(nil), list.Versions...),
	}
}
