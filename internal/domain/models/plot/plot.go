package plot

import (
	"time"

	"inkwell/internal/httputil"
)

// Arc is a narrative thread spanning chapters
type Arc struct {
	ID        string         `json:"id"`
	ProjectID string         `json:"project_id"`
	Title     string         `json:"title"`
	Color     string         `json:"color,omitempty"`
	Summary   string         `json:"summary,omitempty"`
	Goal      string         `json:"goal,omitempty"`
	Themes    []string       `json:"themes"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Order     int            `json:"order"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Point is a beat on an arc. Order is a sparse real-valued sort key that only
// has meaning relative to the other points of the same arc.
type Point struct {
	ID          string    `json:"id"`
	ArcID       string    `json:"arc_id"`
	ChapterID   *string   `json:"chapter_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Tension     int       `json:"tension"` // 0-10
	Order       float64   `json:"order"`
	BeatType    string    `json:"beat_type,omitempty"`
	Status      string    `json:"status,omitempty"`
	AISuggested bool      `json:"ai_suggested"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Overview is the whole plot board of a project
type Overview struct {
	Arcs   []Arc   `json:"arcs"`
	Points []Point `json:"points"`
}

// PointPatch carries only the fields to change. ChapterID uses PATCH
// tri-state semantics so a point can be detached from its chapter.
type PointPatch struct {
	ArcID       *string                 `json:"arc_id,omitempty"`
	ChapterID   httputil.OptionalString `json:"chapter_id,omitzero"`
	Title       *string                 `json:"title,omitempty"`
	Description *string                 `json:"description,omitempty"`
	Tension     *int                    `json:"tension,omitempty"`
	Order       *float64                `json:"order,omitempty"`
	Status      *string                 `json:"status,omitempty"`
	BeatType    *string                 `json:"beat_type,omitempty"`
}

// Apply patches p in place and reports whether any field changed
func (patch PointPatch) Apply(p *Point) bool {
	changed := false
	if patch.ArcID != nil && *patch.ArcID != p.ArcID {
		p.ArcID = *patch.ArcID
		changed = true
	}
	if patch.ChapterID.Present {
		if !sameOptional(p.ChapterID, patch.ChapterID.Value) {
			changed = true
		}
		if patch.ChapterID.Value == nil {
			p.ChapterID = nil
		} else {
			id := *patch.ChapterID.Value
			p.ChapterID = &id
		}
	}
	if patch.Title != nil && *patch.Title != p.Title {
		p.Title = *patch.Title
		changed = true
	}
	if patch.Description != nil && *patch.Description != p.Description {
		p.Description = *patch.Description
		changed = true
	}
	if patch.Tension != nil && *patch.Tension != p.Tension {
		p.Tension = *patch.Tension
		changed = true
	}
	if patch.Order != nil && *patch.Order != p.Order {
		p.Order = *patch.Order
		changed = true
	}
	if patch.Status != nil && *patch.Status != p.Status {
		p.Status = *patch.Status
		changed = true
	}
	if patch.BeatType != nil && *patch.BeatType != p.BeatType {
		p.BeatType = *patch.BeatType
		changed = true
	}
	return changed
}

func sameOptional(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// ArcPatch carries only the arc fields to change
type ArcPatch struct {
	Title   *string   `json:"title,omitempty"`
	Color   *string   `json:"color,omitempty"`
	Summary *string   `json:"summary,omitempty"`
	Goal    *string   `json:"goal,omitempty"`
	Themes  *[]string `json:"themes,omitempty"`
	Order   *int      `json:"order,omitempty"`
}

// SuggestionFilter narrows AI plot suggestions
type SuggestionFilter struct {
	ArcID     *string `json:"arc_id,omitempty"`
	ChapterID *string `json:"chapter_id,omitempty"`
	Count     int     `json:"count"`
	Tone      string  `json:"tone,omitempty"`
	Theme     string  `json:"theme,omitempty"`
}

// SuggestionDraft is an unsaved AI-proposed point
type SuggestionDraft struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Tension     int     `json:"tension"`
	ArcID       *string `json:"arc_id,omitempty"`
	ChapterID   *string `json:"chapter_id,omitempty"`
}
