package capabilities

import (
	"embed"
	"fmt"
	"strings"
	"sync"

	"inkwell/internal/domain"
	"inkwell/internal/domain/models/stream"

	"gopkg.in/yaml.v3"
)

//go:embed config/*.yaml
var configFiles embed.FS

// Registry manages the generation modes a client can start
type Registry struct {
	modes map[stream.Mode]*ModeSpec
	order []stream.Mode
	mu    sync.RWMutex
}

// NewRegistry creates a new mode registry and loads the embedded YAML file
func NewRegistry() (*Registry, error) {
	data, err := configFiles.ReadFile("config/modes.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to read modes.yaml: %w", err)
	}
	return NewRegistryFromYAML(data)
}

// NewRegistryFromYAML builds a registry from a mode table document
func NewRegistryFromYAML(data []byte) (*Registry, error) {
	var table ModeTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to unmarshal mode table: %w", err)
	}

	r := &Registry{modes: make(map[stream.Mode]*ModeSpec)}
	for i := range table.Modes {
		spec := table.Modes[i]
		if err := spec.validate(); err != nil {
			return nil, err
		}
		mode := stream.Mode(spec.ID)
		r.modes[mode] = &spec
		r.order = append(r.order, mode)
	}
	return r, nil
}

// Get returns the spec of a mode
func (r *Registry) Get(mode stream.Mode) (*ModeSpec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	spec, ok := r.modes[mode]
	if !ok {
		return nil, &domain.ValidationError{Message: fmt.Sprintf("unknown generation mode: %s", mode)}
	}
	return spec, nil
}

// List returns all modes (ordered as defined in YAML)
func (r *Registry) List() []ModeSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ModeSpec, 0, len(r.order))
	for _, mode := range r.order {
		out = append(out, *r.modes[mode])
	}
	return out
}

// StartPath resolves the job start endpoint of a mode for the given options
func (r *Registry) StartPath(mode stream.Mode, opts stream.StartOptions) (string, error) {
	spec, err := r.Get(mode)
	if err != nil {
		return "", err
	}

	values := map[string]string{
		"project_id": opts.ProjectID,
		"chapter_id": opts.ChapterID,
	}
	for _, key := range spec.Requires {
		if values[key] == "" {
			return "", &domain.ValidationError{Message: fmt.Sprintf("%s mode requires %s", mode, key)}
		}
	}

	path := spec.StartPath
	for key, value := range values {
		path = strings.ReplaceAll(path, "{"+key+"}", value)
	}
	return path, nil
}
