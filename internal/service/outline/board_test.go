package outline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"inkwell/internal/domain"
	"inkwell/internal/domain/models"
	"inkwell/internal/domain/models/outline"
	"inkwell/internal/metrics"
	"inkwell/internal/repository/memory"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fixture struct {
	store   *memory.OutlineStore
	metrics *metrics.Metrics
	board   *Board
}

func newFixture(t *testing.T, role models.Role, nodes ...outline.Node) *fixture {
	t.Helper()
	f := &fixture{store: memory.NewOutlineStore(), metrics: metrics.New()}
	for _, n := range nodes {
		n.ProjectID = "p1"
		f.store.Put(n)
	}
	f.board = NewBoard(Config{
		Outline:   f.store,
		ProjectID: "p1",
		Role:      role,
		Metrics:   f.metrics,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if _, err := f.board.Tree(context.Background()); err != nil {
		t.Fatalf("Tree: %v", err)
	}
	return f
}

func approve(string) bool { return true }

func TestDragEnd_ReparentsIntoSibling(t *testing.T) {
	f := newFixture(t, models.RoleOwner,
		outline.Node{ID: "A", Title: "A", Order: 0},
		outline.Node{ID: "B", Title: "B", Order: 1},
	)
	ctx := context.Background()

	if err := f.board.DragStart("B"); err != nil {
		t.Fatal(err)
	}
	f.board.DragOver(Into("A"))
	if err := f.board.DragEnd(ctx, Into("A")); err != nil {
		t.Fatalf("DragEnd: %v", err)
	}

	forest := f.board.Forest()
	if len(forest) != 1 || forest[0].ID != "A" {
		t.Fatalf("roots = %+v", forest)
	}
	b := forest[0].Children
	if len(b) != 1 || b[0].ID != "B" || *b[0].ParentID != "A" || b[0].Order != 0 {
		t.Errorf("children of A = %+v", b)
	}
	if roots := f.board.Containers()[RootContainerID]; len(roots) != 1 || roots[0] != "A" {
		t.Errorf("root container = %v", roots)
	}

	batches := f.store.Reorders()
	if len(batches) != 1 || len(batches[0]) != 2 {
		t.Fatalf("reorder batches = %+v", batches)
	}
	if !f.board.Stale() {
		t.Error("tree not marked stale after a persisted move")
	}

	forest, err := f.board.Tree(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n := f.store.Calls("GetTree"); n != 2 {
		t.Errorf("GetTree calls = %d, want a refetch", n)
	}
	if forest[0].Children[0].ID != "B" {
		t.Errorf("server tree = %+v", forest)
	}
	if got := testutil.ToFloat64(f.metrics.MovesTotal.WithLabelValues(metrics.BoardOutline)); got != 1 {
		t.Errorf("moves = %v", got)
	}
}

func TestDragEnd_ReordersWithinContainer(t *testing.T) {
	f := newFixture(t, models.RoleOwner,
		outline.Node{ID: "A", Order: 0},
		outline.Node{ID: "B", Order: 1},
		outline.Node{ID: "C", Order: 2},
	)

	f.board.DragStart("C")
	if err := f.board.DragEnd(context.Background(), OnNode("A")); err != nil {
		t.Fatal(err)
	}
	got := f.board.Containers()[RootContainerID]
	if strings.Join(got, ",") != "C,A,B" {
		t.Errorf("root = %v", got)
	}

	// Every sibling of the container is persisted, not just the moved node
	batch := f.store.Reorders()[0]
	if len(batch) != 3 {
		t.Fatalf("batch = %+v", batch)
	}
	for i, p := range batch {
		if p.ID != got[i] || p.Order != i || p.ParentID != nil {
			t.Errorf("position %d = %+v", i, p)
		}
	}
	checkContiguous(t, f.board.Forest())
}

func TestDragEnd_DropMatchesPreview(t *testing.T) {
	f := newFixture(t, models.RoleOwner,
		outline.Node{ID: "A", Order: 0},
		outline.Node{ID: "B", Order: 1},
		outline.Node{ID: "a1", ParentID: ptr("A"), Order: 0},
		outline.Node{ID: "a2", ParentID: ptr("A"), Order: 1},
	)

	f.board.DragStart("B")
	f.board.DragOver(OnNode("a1"))
	preview := strings.Join(f.board.Containers()["A"], ",")
	if preview != "B,a1,a2" {
		t.Fatalf("preview = %s", preview)
	}
	if err := f.board.DragEnd(context.Background(), OnNode("a1")); err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(f.board.Containers()["A"], ","); got != preview {
		t.Errorf("dropped as %s, previewed as %s", got, preview)
	}

	// Without a hover the drop lands in the same place
	g := newFixture(t, models.RoleOwner,
		outline.Node{ID: "A", Order: 0},
		outline.Node{ID: "B", Order: 1},
		outline.Node{ID: "a1", ParentID: ptr("A"), Order: 0},
		outline.Node{ID: "a2", ParentID: ptr("A"), Order: 1},
	)
	g.board.DragStart("B")
	if err := g.board.DragEnd(context.Background(), OnNode("a1")); err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(g.board.Containers()["A"], ","); got != "B,a1,a2" {
		t.Errorf("drop without hover = %s", got)
	}
	checkContiguous(t, g.board.Forest())
}

func TestDragEnd_ForwardWithinContainerTakesTargetPlace(t *testing.T) {
	f := newFixture(t, models.RoleOwner,
		outline.Node{ID: "A", Order: 0},
		outline.Node{ID: "B", Order: 1},
		outline.Node{ID: "C", Order: 2},
	)

	f.board.DragStart("A")
	if err := f.board.DragEnd(context.Background(), OnNode("C")); err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(f.board.Containers()[RootContainerID], ","); got != "B,C,A" {
		t.Errorf("root = %s", got)
	}
}

func TestDragEnd_RollsBackOnFailure(t *testing.T) {
	f := newFixture(t, models.RoleOwner,
		outline.Node{ID: "A", Order: 0},
		outline.Node{ID: "B", Order: 1},
	)
	before := f.board.Containers()
	f.store.Fail("Reorder", &domain.TransportError{Status: 503})

	f.board.DragStart("B")
	err := f.board.DragEnd(context.Background(), Into("A"))
	var terr *domain.TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("err = %v", err)
	}
	if !f.board.Containers().Equal(before) {
		t.Errorf("containers = %v, want rollback to %v", f.board.Containers(), before)
	}
	if f.board.Stale() {
		t.Error("failed move marked the tree stale")
	}
	if got := testutil.ToFloat64(f.metrics.RollbacksTotal.WithLabelValues(metrics.BoardOutline)); got != 1 {
		t.Errorf("rollbacks = %v", got)
	}
}

func TestDragEnd_RejectsOwnSubtree(t *testing.T) {
	f := newFixture(t, models.RoleOwner,
		outline.Node{ID: "A", Order: 0},
		outline.Node{ID: "A1", ParentID: ptr("A"), Order: 0},
	)
	before := f.board.Containers()

	f.board.DragStart("A")
	f.board.DragOver(Into("A1"))
	err := f.board.DragEnd(context.Background(), Into("A1"))
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err = %v", err)
	}
	if !f.board.Containers().Equal(before) {
		t.Errorf("containers changed: %v", f.board.Containers())
	}
	if n := f.store.Calls("Reorder"); n != 0 {
		t.Errorf("invalid drop was persisted")
	}
}

func TestDrag_CancelAndNoop(t *testing.T) {
	f := newFixture(t, models.RoleOwner,
		outline.Node{ID: "A", Order: 0},
		outline.Node{ID: "B", Order: 1},
	)
	before := f.board.Containers()

	f.board.DragStart("B")
	f.board.DragOver(Into("A"))
	if f.board.Containers().Equal(before) {
		t.Fatal("drag over a new container did not preview the move")
	}
	f.board.DragCancel()
	if !f.board.Containers().Equal(before) {
		t.Errorf("cancel left %v", f.board.Containers())
	}

	f.board.DragStart("B")
	if err := f.board.DragEnd(context.Background(), OnNode("B")); err != nil {
		t.Fatal(err)
	}
	if n := f.store.Calls("Reorder"); n != 0 {
		t.Errorf("unchanged drop issued %d reorders", n)
	}
}

func TestCreate_SplicesThenConfirms(t *testing.T) {
	f := newFixture(t, models.RoleOwner, outline.Node{ID: "A", Order: 0})
	ctx := context.Background()

	release := f.store.Hold("Upsert")
	done := make(chan *outline.Node)
	go func() {
		n, err := f.board.Create(ctx, "A", "  Inciting incident ")
		if err != nil {
			t.Errorf("Create: %v", err)
		}
		done <- n
	}()

	waitFor(t, func() bool { return len(f.board.Containers()["A"]) == 1 })
	tmp := f.board.Containers()["A"][0]
	if !strings.HasPrefix(tmp, tempPrefix) {
		t.Errorf("optimistic id = %q", tmp)
	}
	if err := f.board.DragStart(tmp); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("dragging an unsaved node: %v", err)
	}

	release()
	created := <-done
	if created.Title != "Inciting incident" || *created.ParentID != "A" || created.Order != 0 {
		t.Errorf("created = %+v", created)
	}
	if got := f.board.Containers()["A"]; len(got) != 1 || got[0] != created.ID {
		t.Errorf("container after confirm = %v", got)
	}
	if f.board.Containers().Has(tmp) {
		t.Error("temporary container left behind")
	}
}

func TestCreate_RemovedOnFailure(t *testing.T) {
	f := newFixture(t, models.RoleOwner, outline.Node{ID: "A", Order: 0})
	f.store.Fail("Upsert", &domain.TransportError{Status: 500})

	if _, err := f.board.Create(context.Background(), RootContainerID, "B"); err == nil {
		t.Fatal("expected error")
	}
	if got := f.board.Containers()[RootContainerID]; len(got) != 1 {
		t.Errorf("root = %v", got)
	}
	if _, err := f.board.Create(context.Background(), RootContainerID, "  "); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("empty title: %v", err)
	}
}

func TestDelete_CascadesAndReindexes(t *testing.T) {
	f := newFixture(t, models.RoleOwner,
		outline.Node{ID: "A", Title: "Act one", Order: 0},
		outline.Node{ID: "A1", ParentID: ptr("A"), Order: 0},
		outline.Node{ID: "A2", ParentID: ptr("A1"), Order: 0},
		outline.Node{ID: "B", Order: 1},
		outline.Node{ID: "C", Order: 2},
	)
	ctx := context.Background()

	var prompt string
	removed, err := f.board.Delete(ctx, "A", func(p string) bool { prompt = p; return true })
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if removed != 3 {
		t.Errorf("removed = %d, want 3", removed)
	}
	if !strings.Contains(prompt, "2 nested") {
		t.Errorf("prompt = %q", prompt)
	}

	forest := f.board.Forest()
	checkContiguous(t, forest)
	if len(forest) != 2 || forest[0].ID != "B" || forest[0].Order != 0 {
		t.Errorf("roots = %+v", forest)
	}
	if _, ok := f.board.Node("A2"); ok {
		t.Error("descendant survived")
	}

	// The surviving siblings are sent with their new indexes
	batches := f.store.Reorders()
	if len(batches) != 1 || len(batches[0]) != 2 {
		t.Fatalf("reorder batches = %+v", batches)
	}
	for i, p := range batches[0] {
		if p.ID != forest[i].ID || p.Order != i || p.ParentID != nil {
			t.Errorf("position %d = %+v", i, p)
		}
	}
}

func TestDelete_ReindexFailureMarksStale(t *testing.T) {
	f := newFixture(t, models.RoleOwner,
		outline.Node{ID: "A", Order: 0},
		outline.Node{ID: "B", Order: 1},
	)
	f.store.Fail("Reorder", &domain.TransportError{Status: 503})

	removed, err := f.board.Delete(context.Background(), "A", approve)
	if err != nil || removed != 1 {
		t.Fatalf("Delete = %d, %v", removed, err)
	}
	if !f.board.Stale() {
		t.Error("board should refetch after a failed reindex")
	}
	if _, ok := f.board.Node("A"); ok {
		t.Error("deleted node came back")
	}
}

func TestDelete_LastChildSendsNoReorder(t *testing.T) {
	f := newFixture(t, models.RoleOwner,
		outline.Node{ID: "A", Order: 0},
		outline.Node{ID: "A1", ParentID: ptr("A"), Order: 0},
	)
	if _, err := f.board.Delete(context.Background(), "A1", approve); err != nil {
		t.Fatal(err)
	}
	if n := f.store.Calls("Reorder"); n != 0 {
		t.Errorf("empty container issued %d reorders", n)
	}
}

func TestDelete_ConfirmAndRollback(t *testing.T) {
	f := newFixture(t, models.RoleOwner,
		outline.Node{ID: "A", Order: 0},
		outline.Node{ID: "B", Order: 1},
	)
	ctx := context.Background()
	before := f.board.Containers()

	if _, err := f.board.Delete(ctx, "A", nil); !errors.Is(err, domain.ErrNotConfirmed) {
		t.Errorf("unconfirmed delete: %v", err)
	}
	if n := f.store.Calls("Delete"); n != 0 {
		t.Fatal("delete issued without confirmation")
	}

	f.store.Fail("Delete", &domain.TransportError{Status: 502})
	if _, err := f.board.Delete(ctx, "A", approve); err == nil {
		t.Fatal("expected error")
	}
	if !f.board.Containers().Equal(before) {
		t.Errorf("containers = %v, want rollback", f.board.Containers())
	}
}

func TestCommitField(t *testing.T) {
	f := newFixture(t, models.RoleOwner, outline.Node{ID: "A", Title: "Opening", Order: 0})
	ctx := context.Background()

	sent, err := f.board.CommitField(ctx, "A", FieldTitle, "  Opening  ")
	if err != nil || sent {
		t.Errorf("unchanged title: sent=%v err=%v", sent, err)
	}

	sent, err = f.board.CommitField(ctx, "A", FieldTitle, "   ")
	if !errors.Is(err, domain.ErrValidation) || sent {
		t.Errorf("empty title: sent=%v err=%v", sent, err)
	}
	if n, _ := f.board.Node("A"); n.Title != "Opening" {
		t.Errorf("title = %q, want prior value", n.Title)
	}

	if _, err := f.board.CommitField(ctx, "A", FieldSummary, " The storm arrives. "); err != nil {
		t.Fatal(err)
	}
	if n, _ := f.board.Node("A"); n.Summary != "The storm arrives." || n.Title != "Opening" {
		t.Errorf("node = %+v", n)
	}
	if n := f.store.Calls("Upsert"); n != 1 {
		t.Errorf("upserts = %d, want 1", n)
	}

	f.store.Fail("Upsert", &domain.TransportError{Status: 500})
	if _, err := f.board.CommitField(ctx, "A", FieldTitle, "Prologue"); err == nil {
		t.Fatal("expected error")
	}
	if n, _ := f.board.Node("A"); n.Title != "Opening" {
		t.Errorf("failed commit kept %q", n.Title)
	}
}

func TestViewerCannotMutate(t *testing.T) {
	f := newFixture(t, models.RoleViewer, outline.Node{ID: "A", Order: 0})
	ctx := context.Background()

	if err := f.board.DragStart("A"); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("DragStart: %v", err)
	}
	if _, err := f.board.Create(ctx, RootContainerID, "B"); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("Create: %v", err)
	}
	if _, err := f.board.Delete(ctx, "A", approve); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("Delete: %v", err)
	}
	if _, err := f.board.CommitField(ctx, "A", FieldTitle, "x"); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("CommitField: %v", err)
	}
}

func TestNewBoard_NilLoggerUsesDefault(t *testing.T) {
	store := memory.NewOutlineStore()
	store.Put(outline.Node{ID: "A", ProjectID: "p1"})
	b := NewBoard(Config{Outline: store, ProjectID: "p1", Role: models.RoleOwner})
	if _, err := b.Tree(context.Background()); err != nil {
		t.Fatalf("Tree: %v", err)
	}
}
