package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"inkwell/internal/domain"
	"inkwell/internal/domain/models/chapter"
	"inkwell/internal/domain/models/outline"
	"inkwell/internal/domain/models/stream"
)

func strPtr(s string) *string { return &s }

func TestChapterStore_SaveRejectsStaleBase(t *testing.T) {
	s := NewChapterStore()
	s.Put(chapter.Chapter{ID: "c1", ProjectID: "p1", Content: "<p>one</p>", Version: 5})
	ctx := context.Background()

	res, err := s.Save(ctx, "c1", chapter.SaveRequest{Content: strPtr("<p>two</p>"), BaseVersion: 5})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if res.Chapter.Version != 6 {
		t.Errorf("version = %d, want 6", res.Chapter.Version)
	}
	if res.Snapshot == nil || res.Snapshot.Version != 6 {
		t.Errorf("snapshot = %+v, want version 6", res.Snapshot)
	}

	_, err = s.Save(ctx, "c1", chapter.SaveRequest{Content: strPtr("<p>three</p>"), BaseVersion: 5})
	var conflict *domain.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("err = %v, want ConflictError", err)
	}
	if conflict.BaseVersion != 5 {
		t.Errorf("BaseVersion = %d, want 5", conflict.BaseVersion)
	}
}

func TestChapterStore_TitleOnlySaveHasNoSnapshot(t *testing.T) {
	s := NewChapterStore()
	s.Put(chapter.Chapter{ID: "c1", Content: "<p>x</p>"})

	res, err := s.Save(context.Background(), "c1", chapter.SaveRequest{Title: strPtr("New"), BaseVersion: 1})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if res.Snapshot != nil {
		t.Errorf("unexpected snapshot %+v", res.Snapshot)
	}
	if res.Chapter.Title != "New" || res.Chapter.Version != 2 {
		t.Errorf("chapter = %+v", res.Chapter)
	}
}

func TestChapterStore_Revert(t *testing.T) {
	s := NewChapterStore()
	s.Put(chapter.Chapter{ID: "c1", Content: "<p>first</p>"})
	ctx := context.Background()
	if _, err := s.Save(ctx, "c1", chapter.SaveRequest{Content: strPtr("<p>second</p>"), BaseVersion: 1}); err != nil {
		t.Fatal(err)
	}

	res, err := s.Revert(ctx, "c1", chapter.RevertRequest{TargetVersion: 1, BaseVersion: 2})
	if err != nil {
		t.Fatalf("Revert: %v", err)
	}
	if res.Chapter.Content != "<p>first</p>" || res.Chapter.Version != 3 {
		t.Errorf("chapter = %+v", res.Chapter)
	}
	if res.Snapshot.Reason() != chapter.ReasonRevert {
		t.Errorf("reason = %q", res.Snapshot.Reason())
	}

	list, err := s.ListVersions(ctx, "c1")
	if err != nil {
		t.Fatal(err)
	}
	if list.CurrentVersion != 3 || len(list.Versions) != 3 || list.Versions[0].Version != 3 {
		t.Errorf("versions = %+v", list)
	}
}

func TestOutlineStore_DeleteCascadesAndReindexes(t *testing.T) {
	s := NewOutlineStore()
	s.Put(outline.Node{ID: "a", ProjectID: "p", Order: 0})
	s.Put(outline.Node{ID: "b", ProjectID: "p", Order: 1})
	s.Put(outline.Node{ID: "c", ProjectID: "p", Order: 2})
	s.Put(outline.Node{ID: "b1", ProjectID: "p", ParentID: strPtr("b")})
	s.Put(outline.Node{ID: "b1x", ProjectID: "p", ParentID: strPtr("b1")})
	ctx := context.Background()

	removed, err := s.Delete(ctx, "b")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if removed != 3 {
		t.Errorf("removed = %d, want 3", removed)
	}

	tree, err := s.GetTree(ctx, "p")
	if err != nil {
		t.Fatal(err)
	}
	if len(tree) != 2 || tree[0].ID != "a" || tree[1].ID != "c" || tree[1].Order != 1 {
		t.Errorf("tree = %+v %+v", tree[0], tree[1])
	}
}

func TestOutlineStore_ReorderIsAtomic(t *testing.T) {
	s := NewOutlineStore()
	s.Put(outline.Node{ID: "a", ProjectID: "p", Order: 0})
	ctx := context.Background()

	err := s.Reorder(ctx, "p", []outline.Position{{ID: "a", Order: 3}, {ID: "missing", Order: 0}})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
	tree, _ := s.GetTree(ctx, "p")
	if tree[0].Order != 0 {
		t.Errorf("partial batch applied: order = %d", tree[0].Order)
	}
}

func TestFaults_FailAndHold(t *testing.T) {
	s := NewChapterStore()
	s.Put(chapter.Chapter{ID: "c1"})
	ctx := context.Background()

	boom := errors.New("boom")
	s.Fail("Get", boom)
	if _, err := s.Get(ctx, "c1"); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if _, err := s.Get(ctx, "c1"); err != nil {
		t.Fatalf("second Get: %v", err)
	}

	release := s.Hold("Get")
	done := make(chan struct{})
	go func() {
		s.Get(ctx, "c1")
		close(done)
	}()
	select {
	case <-done:
		t.Fatal("held call returned early")
	case <-time.After(20 * time.Millisecond):
	}
	release()
	<-done

	if n := s.Calls("Get"); n != 3 {
		t.Errorf("Calls = %d, want 3", n)
	}
}

func TestGeneration_ScriptReplays(t *testing.T) {
	g := NewGeneration()
	ctx := context.Background()

	id, err := g.StartJob(ctx, stream.ModeContinue, stream.StartOptions{ChapterID: "c1"})
	if err != nil {
		t.Fatal(err)
	}
	if id != "job-1" {
		t.Errorf("job id = %q", id)
	}
	g.Script(id,
		stream.Event{Name: stream.EventDelta, Data: `{"text":"Hi"}`},
		stream.Event{Name: stream.EventDone, Data: "{}"},
	)

	h, err := g.Open(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for ev := range h.Events() {
		names = append(names, ev.Name)
	}
	if len(names) != 2 || names[1] != stream.EventDone {
		t.Errorf("events = %v", names)
	}
	if g.OpenChannels() != 1 {
		t.Errorf("open channels = %d, want 1", g.OpenChannels())
	}
	h.Close()
	h.Close()
	if g.OpenChannels() != 0 {
		t.Errorf("open channels after close = %d", g.OpenChannels())
	}
}
