package capabilities

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// RenderRule describes how a job's buffer becomes displayed text
type RenderRule string

const (
	RenderBuffer       RenderRule = "buffer"         // buffer only
	RenderAppendToBase RenderRule = "append_to_base" // base + buffer
)

// FollowUp is the action taken after a done event
type FollowUp string

const (
	FollowUpNone              FollowUp = "none"
	FollowUpSelectNewest      FollowUp = "select_newest_chapter"
	FollowUpInvalidateChapter FollowUp = "invalidate_chapter"
)

// ModeSpec represents all metadata for a generation mode
type ModeSpec struct {
	// Mode identifier (set during YAML unmarshaling)
	ID string `yaml:"-" json:"id"`

	// Display information
	DisplayName string `yaml:"display_name" json:"display_name"`
	Description string `yaml:"description" json:"description"`

	// StartPath is the job start endpoint; {project_id} and {chapter_id}
	// placeholders are filled from the start options
	StartPath string   `yaml:"start_path" json:"start_path"`
	Requires  []string `yaml:"requires" json:"requires"`

	Render   RenderRule `yaml:"render" json:"render"`
	FollowUp FollowUp   `yaml:"follow_up" json:"follow_up"`
}

func (m ModeSpec) validate() error {
	switch m.Render {
	case RenderBuffer, RenderAppendToBase:
	default:
		return fmt.Errorf("mode %s: unknown render rule %q", m.ID, m.Render)
	}
	switch m.FollowUp {
	case FollowUpNone, FollowUpSelectNewest, FollowUpInvalidateChapter:
	default:
		return fmt.Errorf("mode %s: unknown follow_up %q", m.ID, m.FollowUp)
	}
	if m.StartPath == "" {
		return fmt.Errorf("mode %s: start_path is required", m.ID)
	}
	return nil
}

// ModeTable represents every mode in file order
type ModeTable struct {
	Modes []ModeSpec `yaml:"-" json:"modes"` // Ordered slice, populated by custom unmarshaler
}

// UnmarshalYAML implements custom YAML unmarshaling to preserve mode order from YAML file
func (t *ModeTable) UnmarshalYAML(node *yaml.Node) error {
	type modesOnly struct {
		Modes map[string]ModeSpec `yaml:"modes"`
	}
	var m modesOnly
	if err := node.Decode(&m); err != nil {
		return err
	}

	// Extract mode keys in YAML order and build the slice
	for i := 0; i < len(node.Content); i += 2 {
		if node.Content[i].Value == "modes" {
			modesNode := node.Content[i+1]
			// modesNode.Content alternates: key, value, key, value...
			for j := 0; j < len(modesNode.Content); j += 2 {
				id := modesNode.Content[j].Value
				if spec, ok := m.Modes[id]; ok {
					spec.ID = id
					t.Modes = append(t.Modes, spec)
				}
			}
			break
		}
	}

	return nil
}
