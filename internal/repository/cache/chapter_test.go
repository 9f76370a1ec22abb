package cache

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"inkwell/internal/domain/models/chapter"
	"inkwell/internal/repository/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newStore() *memory.ChapterStore {
	s := memory.NewChapterStore()
	s.Put(chapter.Chapter{ID: "c1", ProjectID: "p1", Title: "One", Content: "<p>first</p>"})
	s.Put(chapter.Chapter{ID: "c2", ProjectID: "p1", Title: "Two"})
	return s
}

func TestChapterRepository_ReadThrough(t *testing.T) {
	store := newStore()
	repo := NewChapterRepository(store, testLogger())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := repo.Get(ctx, "c1"); err != nil {
			t.Fatalf("Get: %v", err)
		}
		if _, err := repo.ListByProject(ctx, "p1"); err != nil {
			t.Fatalf("ListByProject: %v", err)
		}
		if _, err := repo.ListVersions(ctx, "c1"); err != nil {
			t.Fatalf("ListVersions: %v", err)
		}
		if _, err := repo.GetVersion(ctx, "c1", 1); err != nil {
			t.Fatalf("GetVersion: %v", err)
		}
	}

	for _, op := range []string{"Get", "ListByProject", "ListVersions", "GetVersion"} {
		if n := store.Calls(op); n != 1 {
			t.Errorf("%s calls = %d, want 1", op, n)
		}
	}
}

func TestChapterRepository_ReturnsCopies(t *testing.T) {
	repo := NewChapterRepository(newStore(), testLogger())
	ctx := context.Background()

	ch, _ := repo.Get(ctx, "c1")
	ch.Title = "mutated"

	again, _ := repo.Get(ctx, "c1")
	if again.Title != "One" {
		t.Errorf("cached chapter was mutated through a returned pointer: %q", again.Title)
	}
}

func TestChapterRepository_SaveInvalidates(t *testing.T) {
	store := newStore()
	repo := NewChapterRepository(store, testLogger())
	ctx := context.Background()

	repo.Get(ctx, "c1")
	repo.ListByProject(ctx, "p1")
	repo.ListVersions(ctx, "c1")
	repo.GetVersion(ctx, "c1", 1)

	content := "<p>second</p>"
	res, err := repo.Save(ctx, "c1", chapter.SaveRequest{Content: &content, BaseVersion: 1})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	ch, _ := repo.Get(ctx, "c1")
	if ch.Version != res.Chapter.Version {
		t.Errorf("cached version = %d, want %d", ch.Version, res.Chapter.Version)
	}
	if n := store.Calls("Get"); n != 1 {
		t.Errorf("Get after save hit the store: calls = %d", n)
	}

	list, _ := repo.ListVersions(ctx, "c1")
	if list.CurrentVersion != 2 {
		t.Errorf("version list not refreshed: current = %d", list.CurrentVersion)
	}
	repo.ListByProject(ctx, "p1")
	if n := store.Calls("ListByProject"); n != 2 {
		t.Errorf("project list not refetched: calls = %d", n)
	}

	repo.GetVersion(ctx, "c1", 1)
	if n := store.Calls("GetVersion"); n != 1 {
		t.Errorf("immutable version refetched: calls = %d", n)
	}
}

func TestChapterRepository_InvalidateChapter(t *testing.T) {
	store := newStore()
	repo := NewChapterRepository(store, testLogger())
	ctx := context.Background()

	repo.Get(ctx, "c1")
	repo.InvalidateChapter("c1")
	repo.Get(ctx, "c1")

	if n := store.Calls("Get"); n != 2 {
		t.Errorf("Get calls = %d, want 2", n)
	}
}

func TestChapterRepository_CollapsesConcurrentMisses(t *testing.T) {
	store := newStore()
	repo := NewChapterRepository(store, testLogger())
	ctx := context.Background()

	release := store.Hold("Get")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.Get(ctx, "c1"); err != nil {
				t.Errorf("Get: %v", err)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	release()
	wg.Wait()

	if n := store.Calls("Get"); n != 1 {
		t.Errorf("Get calls = %d, want 1", n)
	}
}

func TestChapterRepository_InvalidationDuringFetchIsNotStored(t *testing.T) {
	store := newStore()
	repo := NewChapterRepository(store, testLogger())
	ctx := context.Background()

	release := store.Hold("Get")
	done := make(chan struct{})
	go func() {
		repo.Get(ctx, "c1")
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)
	repo.InvalidateChapter("c1")
	release()
	<-done

	repo.Get(ctx, "c1")
	if n := store.Calls("Get"); n != 2 {
		t.Errorf("stale fetch was cached: calls = %d", n)
	}
}
