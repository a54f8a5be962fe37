// ABOUTME: Catalogue of known generation models
// ABOUTME: Backs the validator's model check and resolves checkpoint paths for the worker

package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Model describes one known generation model.
type Model struct {
	// Name is the identifier clients pass in compose commands,
	// e.g. "thesession_with_repeats.pickle".
	Name string
	// Path is the checkpoint file handed to the worker process.
	Path string
}

// Registry is the fixed set of models a compose request may name.
type Registry struct {
	models map[string]Model
}

// New builds a registry from explicit model entries.
func New(models []Model) (*Registry, error) {
	if len(models) == 0 {
		return nil, fmt.Errorf("no models configured")
	}
	r := &Registry{models: make(map[string]Model, len(models))}
	for _, m := range models {
		if m.Name == "" {
			return nil, fmt.Errorf("model with empty name")
		}
		if _, dup := r.models[m.Name]; dup {
			return nil, fmt.Errorf("duplicate model %q", m.Name)
		}
		r.models[m.Name] = m
	}
	return r, nil
}

// LoadDir scans a directory for *.pickle checkpoints and builds a registry
// from filenames. The model name is the full filename including extension.
func LoadDir(dir string) (*Registry, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []Model
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(strings.ToLower(name), ".pickle") {
			continue
		}
		models = append(models, Model{Name: name, Path: filepath.Join(abs, name)})
	}
	if len(models) == 0 {
		return nil, fmt.Errorf("no *.pickle checkpoints in %s", abs)
	}
	return New(models)
}

// Contains reports whether name is a known model.
func (r *Registry) Contains(name string) bool {
	_, ok := r.models[name]
	return ok
}

// Lookup returns the model for name.
func (r *Registry) Lookup(name string) (Model, bool) {
	m, ok := r.models[name]
	return m, ok
}

// Names returns the known model names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
