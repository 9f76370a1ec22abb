package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"inkwell/internal/domain"
	"inkwell/internal/domain/models/chapter"
	"inkwell/internal/domain/repositories"
	"inkwell/internal/service/markup"
)

const previewLength = 120

type chapterRecord struct {
	chapter  chapter.Chapter
	order    int
	versions []chapter.VersionDetail // oldest first
}

// ChapterStore is an in-process ChapterRepository
type ChapterStore struct {
	Faults

	mu       sync.Mutex
	now      func() time.Time
	records  map[string]*chapterRecord
	saves    []chapter.SaveRequest
	reverts  []chapter.RevertRequest
	sequence int
}

var _ repositories.ChapterRepository = (*ChapterStore)(nil)

// NewChapterStore creates an empty store
func NewChapterStore() *ChapterStore {
	return &ChapterStore{
		now:     time.Now,
		records: make(map[string]*chapterRecord),
	}
}

// Put inserts or replaces a chapter and records its content as a snapshot.
// A zero version becomes 1.
func (s *ChapterStore) Put(ch chapter.Chapter) chapter.Chapter {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if ch.Version == 0 {
		ch.Version = 1
	}
	if ch.CreatedAt.IsZero() {
		ch.CreatedAt = now
	}
	ch.UpdatedAt = now
	ch.WordCount, _ = markup.TextStats(ch.Content)

	rec, ok := s.records[ch.ID]
	if !ok {
		s.sequence++
		rec = &chapterRecord{order: s.sequence}
		s.records[ch.ID] = rec
	}
	rec.chapter = ch
	rec.versions = append(rec.versions, snapshotOf(ch, map[string]any{"reason": chapter.ReasonManual}, now))
	return ch
}

// SaveRequests returns every save request received, in order
func (s *ChapterStore) SaveRequests() []chapter.SaveRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]chapter.SaveRequest(nil), s.saves...)
}

// RevertRequests returns every revert request received, in order
func (s *ChapterStore) RevertRequests() []chapter.RevertRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]chapter.RevertRequest(nil), s.reverts...)
}

func (s *ChapterStore) Get(ctx context.Context, id string) (*chapter.Chapter, error) {
	if err := s.enter(ctx, "Get"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, chapterNotFound(id)
	}
	ch := rec.chapter
	return &ch, nil
}

func (s *ChapterStore) ListByProject(ctx context.Context, projectID string) ([]chapter.Chapter, error) {
	if err := s.enter(ctx, "ListByProject"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var recs []*chapterRecord
	for _, rec := range s.records {
		if rec.chapter.ProjectID == projectID {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].order < recs[j].order })

	list := make([]chapter.Chapter, 0, len(recs))
	for _, rec := range recs {
		ch := rec.chapter
		ch.Content = ""
		list = append(list, ch)
	}
	return list, nil
}

func (s *ChapterStore) Save(ctx context.Context, id string, req chapter.SaveRequest) (*chapter.SaveResult, error) {
	if err := s.enter(ctx, "Save"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves = append(s.saves, req)

	rec, ok := s.records[id]
	if !ok {
		return nil, chapterNotFound(id)
	}
	if err := checkBase(rec, req.BaseVersion); err != nil {
		return nil, err
	}

	now := s.now()
	ch := &rec.chapter
	contentChanged := req.Content != nil && *req.Content != ch.Content
	if req.Content != nil {
		ch.Content = *req.Content
		ch.WordCount, _ = markup.TextStats(ch.Content)
	}
	if req.Title != nil {
		ch.Title = *req.Title
	}
	ch.Version++
	ch.UpdatedAt = now

	result := &chapter.SaveResult{Chapter: *ch}
	if contentChanged {
		snap := snapshotOf(*ch, req.Metadata, now)
		rec.versions = append(rec.versions, snap)
		summary := snap.VersionSummary
		result.Snapshot = &summary
	}
	return result, nil
}

func (s *ChapterStore) ListVersions(ctx context.Context, id string) (*chapter.VersionList, error) {
	if err := s.enter(ctx, "ListVersions"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, chapterNotFound(id)
	}
	list := &chapter.VersionList{CurrentVersion: rec.chapter.Version}
	for i := len(rec.versions) - 1; i >= 0; i-- {
		list.Versions = append(list.Versions, rec.versions[i].VersionSummary)
	}
	return list, nil
}

func (s *ChapterStore) GetVersion(ctx context.Context, id string, version int) (*chapter.VersionDetail, error) {
	if err := s.enter(ctx, "GetVersion"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, chapterNotFound(id)
	}
	for _, v := range rec.versions {
		if v.Version == version {
			detail := v
			return &detail, nil
		}
	}
	return nil, &domain.NotFoundError{Message: fmt.Sprintf("version %d of chapter %s not found", version, id)}
}

func (s *ChapterStore) Revert(ctx context.Context, id string, req chapter.RevertRequest) (*chapter.SaveResult, error) {
	if err := s.enter(ctx, "Revert"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reverts = append(s.reverts, req)

	rec, ok := s.records[id]
	if !ok {
		return nil, chapterNotFound(id)
	}
	if err := checkBase(rec, req.BaseVersion); err != nil {
		return nil, err
	}

	var target *chapter.VersionDetail
	for i := range rec.versions {
		if rec.versions[i].Version == req.TargetVersion {
			target = &rec.versions[i]
			break
		}
	}
	if target == nil {
		return nil, &domain.NotFoundError{Message: fmt.Sprintf("version %d of chapter %s not found", req.TargetVersion, id)}
	}

	now := s.now()
	ch := &rec.chapter
	ch.Content = target.Content
	ch.Title = target.Title
	ch.WordCount, _ = markup.TextStats(ch.Content)
	ch.Version++
	ch.UpdatedAt = now

	meta := map[string]any{}
	for k, v := range req.Metadata {
		meta[k] = v
	}
	meta["reason"] = chapter.ReasonRevert
	meta["reverted_from"] = req.TargetVersion

	snap := snapshotOf(*ch, meta, now)
	rec.versions = append(rec.versions, snap)
	summary := snap.VersionSummary
	return &chapter.SaveResult{Chapter: *ch, Snapshot: &summary}, nil
}

func checkBase(rec *chapterRecord, base int) error {
	if base == rec.chapter.Version {
		return nil
	}
	return &domain.ConflictError{
		Message:      fmt.Sprintf("base version %d is stale, current version is %d", base, rec.chapter.Version),
		ResourceType: "chapter",
		ResourceID:   rec.chapter.ID,
		BaseVersion:  base,
	}
}

func snapshotOf(ch chapter.Chapter, meta map[string]any, now time.Time) chapter.VersionDetail {
	words, chars := markup.TextStats(ch.Content)
	m := map[string]any{"word_count": words, "char_count": chars}
	for k, v := range meta {
		m[k] = v
	}
	return chapter.VersionDetail{
		VersionSummary: chapter.VersionSummary{
			ChapterID: ch.ID,
			Version:   ch.Version,
			CreatedAt: now,
			Metadata:  m,
			Preview:   markup.Preview(ch.Content, previewLength),
		},
		Title:   ch.Title,
		Content: ch.Content,
	}
}

func chapterNotFound(id string) error {
	return &domain.NotFoundError{Message: fmt.Sprintf("chapter %s not found", id)}
}
