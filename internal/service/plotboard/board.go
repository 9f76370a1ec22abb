// Package plotboard implements the plot board: arcs as columns of points
// ordered by sparse fractional keys, with optimistic drag moves.
package plotboard

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"inkwell/internal/config"
	"inkwell/internal/domain"
	"inkwell/internal/domain/models"
	"inkwell/internal/domain/models/plot"
	"inkwell/internal/domain/repositories"
	"inkwell/internal/metrics"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config wires a Board
type Config struct {
	Plot      repositories.PlotRepository
	ProjectID string
	Role      models.Role

	// OnChange is called without the board lock after every local change (optional)
	OnChange func()

	// OnError receives failures of fire-and-forget field updates (optional)
	OnError func(error)

	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Column is one arc with its points in order
type Column struct {
	Arc    plot.Arc     `json:"arc"`
	Points []plot.Point `json:"points"`
}

// Board is the plot board of one project. Safe for concurrent use; no lock
// is held across network calls.
type Board struct {
	repo      repositories.PlotRepository
	projectID string
	role      models.Role
	onChange  func()
	onError   func(error)
	metrics   *metrics.Metrics
	logger    *slog.Logger

	mu     sync.Mutex
	loaded bool
	stale  bool
	arcs   []plot.Arc
	points map[string]*plot.Point

	wg sync.WaitGroup
}

// NewBoard creates an empty board; the first Columns call loads it
func NewBoard(cfg Config) *Board {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Board{
		repo:      cfg.Plot,
		projectID: cfg.ProjectID,
		role:      cfg.Role,
		onChange:  cfg.OnChange,
		onError:   cfg.OnError,
		metrics:   cfg.Metrics,
		logger:    logger.With("project_id", cfg.ProjectID),
		points:    make(map[string]*plot.Point),
	}
}

// Refresh replaces local state with the server's board
func (b *Board) Refresh(ctx context.Context) error {
	ov, err := b.repo.GetOverview(ctx, b.projectID)
	if err != nil {
		return fmt.Errorf("fetch plot board: %w", err)
	}

	b.mu.Lock()
	b.arcs = append([]plot.Arc(nil), ov.Arcs...)
	sortArcs(b.arcs)
	b.points = make(map[string]*plot.Point, len(ov.Points))
	for _, p := range ov.Points {
		b.points[p.ID] = &p
	}
	b.loaded = true
	b.stale = false
	b.mu.Unlock()

	b.logger.Debug("plot board loaded", "arcs", len(ov.Arcs), "points", len(ov.Points))
	b.notify()
	return nil
}

// Columns returns the board, loading it first when it was never loaded or
// a failed multi-request change left it stale
func (b *Board) Columns(ctx context.Context) ([]Column, error) {
	b.mu.Lock()
	fresh := b.loaded && !b.stale
	b.mu.Unlock()

	if !fresh {
		if err := b.Refresh(ctx); err != nil {
			return nil, err
		}
	}
	return b.Snapshot(), nil
}

// Snapshot returns the local board without fetching
func (b *Board) Snapshot() []Column {
	b.mu.Lock()
	defer b.mu.Unlock()

	cols := make([]Column, 0, len(b.arcs))
	for _, a := range b.arcs {
		cols = append(cols, Column{Arc: a, Points: b.pointsLocked(a.ID, "")})
	}
	return cols
}

// Points returns the points of one arc in order
func (b *Board) Points(arcID string) []plot.Point {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pointsLocked(arcID, "")
}

// Point returns a copy of one point
func (b *Board) Point(id string) (plot.Point, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.points[id]
	if !ok {
		return plot.Point{}, false
	}
	return *p, true
}

// Wait blocks until fire-and-forget updates finish
func (b *Board) Wait() {
	b.wg.Wait()
}

// pointsLocked lists an arc's points in order, leaving out skip
func (b *Board) pointsLocked(arcID, skip string) []plot.Point {
	var list []plot.Point
	for _, p := range b.points {
		if p.ArcID == arcID && p.ID != skip {
			list = append(list, *p)
		}
	}
	sortPoints(list)
	return list
}

func (b *Board) arcIndexLocked(id string) int {
	for i, a := range b.arcs {
		if a.ID == id {
			return i
		}
	}
	return -1
}

func (b *Board) checkEdit() error {
	if !b.role.Can(models.PermissionEdit) {
		return &domain.ForbiddenError{Message: "role " + string(b.role) + " cannot edit the plot board"}
	}
	return nil
}

func (b *Board) notify() {
	if b.onChange != nil {
		b.onChange()
	}
}

func validateTitle(title string) error {
	if err := validation.Validate(title,
		validation.Required,
		validation.RuneLength(1, config.MaxPlotTitleLength),
	); err != nil {
		return &domain.ValidationError{Message: "title: " + err.Error()}
	}
	return nil
}

func validateTension(tension int) error {
	if err := validation.Validate(tension,
		validation.Min(config.MinTension),
		validation.Max(config.MaxTension),
	); err != nil {
		return &domain.ValidationError{Message: "tension: " + err.Error()}
	}
	return nil
}

func arcNotFound(id string) error {
	return &domain.NotFoundError{Message: fmt.Sprintf("arc %s not found", id)}
}

func pointNotFound(id string) error {
	return &domain.NotFoundError{Message: fmt.Sprintf("plot point %s not found", id)}
}
