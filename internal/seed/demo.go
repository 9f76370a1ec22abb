// Package seed fills the in-memory stores with a sample project for the
// CLI's --demo mode.
package seed

import (
	"context"
	"fmt"
	"log/slog"

	"inkwell/internal/domain/models/chapter"
	"inkwell/internal/domain/models/outline"
	"inkwell/internal/domain/models/plot"
	"inkwell/internal/domain/models/stream"
	"inkwell/internal/repository/memory"
)

// DemoProjectID is the project the demo data belongs to
const DemoProjectID = "00000000-0000-0000-0000-000000000001"

// Stores bundles the in-memory repositories of a demo session
type Stores struct {
	Chapters *memory.ChapterStore
	Outline  *memory.OutlineStore
	Plot     *memory.PlotStore
	Jobs     *memory.Generation
}

// DemoSeeder populates a sample novel: chapters with history, an outline
// and a plot board. Generation jobs replay a scripted continuation.
type DemoSeeder struct {
	logger *slog.Logger
}

// NewDemoSeeder creates a demo seeder
func NewDemoSeeder(logger *slog.Logger) *DemoSeeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &DemoSeeder{logger: logger}
}

// Seed creates fresh stores holding the demo project
func (s *DemoSeeder) Seed(ctx context.Context) (*Stores, error) {
	st := &Stores{
		Chapters: memory.NewChapterStore(),
		Outline:  memory.NewOutlineStore(),
		Plot:     memory.NewPlotStore(),
		Jobs:     memory.NewGeneration(),
	}
	if err := s.seedChapters(ctx, st.Chapters); err != nil {
		return nil, fmt.Errorf("seed chapters: %w", err)
	}
	s.seedOutline(st.Outline)
	s.seedPlot(st.Plot)
	s.seedJobs(st.Jobs)

	s.logger.Debug("demo project seeded", "project_id", DemoProjectID)
	return st, nil
}

func (s *DemoSeeder) seedChapters(ctx context.Context, store *memory.ChapterStore) error {
	first := store.Put(chapter.Chapter{
		ID:        "10000000-0000-0000-0000-000000000001",
		ProjectID: DemoProjectID,
		Title:     "The Lighthouse",
		Content:   "<p>The lamp had been dark for eleven years.</p>",
	})

	// Two more saves give the first chapter a history to diff and revert
	drafts := []string{
		"<p>The lamp had been dark for eleven years. Mara climbed the stairs anyway.</p>",
		"<p>The lamp had been dark for eleven years. Mara climbed the stairs anyway, counting them aloud.</p><p>At the top the glass was warm.</p>",
	}
	version := first.Version
	for _, content := range drafts {
		res, err := store.Save(ctx, first.ID, chapter.SaveRequest{
			Content:     &content,
			BaseVersion: version,
			Metadata:    map[string]any{"reason": chapter.ReasonManual},
		})
		if err != nil {
			return err
		}
		version = res.Chapter.Version
	}

	store.Put(chapter.Chapter{
		ID:        "10000000-0000-0000-0000-000000000002",
		ProjectID: DemoProjectID,
		Title:     "Low Tide",
		Content:   "<p>The causeway opened at dawn.</p><p>Nobody had crossed it since the storm.</p>",
	})
	store.Put(chapter.Chapter{
		ID:        "10000000-0000-0000-0000-000000000003",
		ProjectID: DemoProjectID,
		Title:     "Signals",
	})
	return nil
}

func (s *DemoSeeder) seedOutline(store *memory.OutlineStore) {
	act1 := "20000000-0000-0000-0000-000000000001"
	act2 := "20000000-0000-0000-0000-000000000002"
	nodes := []outline.Node{
		{ID: act1, Title: "Act I: The Dark Lamp", Order: 0},
		{ID: act2, Title: "Act II: The Crossing", Order: 1},
		{ID: "20000000-0000-0000-0000-000000000011", ParentID: &act1, Title: "Mara returns", Order: 0,
			Beats: []outline.Beat{{ID: "b1", Summary: "Arrival on the island", Order: 0}}},
		{ID: "20000000-0000-0000-0000-000000000012", ParentID: &act1, Title: "The warm glass", Order: 1},
		{ID: "20000000-0000-0000-0000-000000000021", ParentID: &act2, Title: "Causeway at dawn", Order: 0},
	}
	for _, n := range nodes {
		n.ProjectID = DemoProjectID
		store.Put(n)
	}
}

func (s *DemoSeeder) seedPlot(store *memory.PlotStore) {
	mainArc := "30000000-0000-0000-0000-000000000001"
	sub := "30000000-0000-0000-0000-000000000002"
	store.PutArc(plot.Arc{ID: mainArc, ProjectID: DemoProjectID, Title: "The Keeper's Secret", Color: "#d97706", Order: 0})
	store.PutArc(plot.Arc{ID: sub, ProjectID: DemoProjectID, Title: "Mara and Ilse", Color: "#2563eb", Order: 1})

	chapter1 := "10000000-0000-0000-0000-000000000001"
	points := []plot.Point{
		{ID: "31000000-0000-0000-0000-000000000001", ArcID: mainArc, ChapterID: &chapter1, Title: "The lamp is warm", Tension: 3, Order: 0},
		{ID: "31000000-0000-0000-0000-000000000002", ArcID: mainArc, Title: "The logbook", Tension: 5, Order: 1},
		{ID: "31000000-0000-0000-0000-000000000003", ArcID: mainArc, Title: "The keeper's grave is empty", Tension: 8, Order: 2},
		{ID: "31000000-0000-0000-0000-000000000004", ArcID: sub, Title: "An old letter", Tension: 2, Order: 0},
	}
	for _, p := range points {
		store.PutPoint(p)
	}
}

// seedJobs scripts the first few job ids with a short continuation
func (s *DemoSeeder) seedJobs(jobs *memory.Generation) {
	events := []stream.Event{
		{Name: stream.EventStart, Data: `{}`},
		{Name: stream.EventDelta, Data: `{"text":"Below, the sea drew back"}`},
		{Name: stream.EventProgress, Data: `{"progress":50,"tokens":6}`},
		{Name: stream.EventDelta, Data: `{"text":" and showed her the road."}`},
		{Name: stream.EventDone, Data: `{"duration_ms":420}`},
	}
	for i := 1; i <= 5; i++ {
		jobs.Script(fmt.Sprintf("job-%d", i), events...)
	}
}
