package model

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Registry discovers models under a directory. Each subdirectory holding a
// model.json manifest is one model.
type Registry struct {
	dir    string
	models map[string]*Model
	mu     sync.RWMutex
}

// NewRegistry creates a Registry over the given models directory.
func NewRegistry(dir string) *Registry {
	return &Registry{
		dir:    dir,
		models: make(map[string]*Model),
	}
}

// Discover rescans the models directory. Unreadable manifests and manifests
// trained on a different feature schema are skipped.
func (r *Registry) Discover() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.models = make(map[string]*Model)

	info, err := os.Stat(r.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return nil
	}

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		modelPath := filepath.Join(r.dir, entry.Name())
		data, err := os.ReadFile(filepath.Join(modelPath, ManifestFile))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			slog.Warn("skipping model", "path", modelPath, "error", err)
			continue
		}

		var manifest Manifest
		if err := json.Unmarshal(data, &manifest); err != nil {
			slog.Warn("skipping model with invalid manifest", "path", modelPath, "error", err)
			continue
		}
		if err := manifest.Validate(); err != nil {
			slog.Warn("skipping incompatible model", "path", modelPath, "error", err)
			continue
		}

		r.models[manifest.Name] = &Model{
			Manifest:   manifest,
			Path:       modelPath,
			Executable: filepath.Join(modelPath, manifest.Executable),
		}
	}

	return nil
}

// Get returns a model by name.
func (r *Registry) Get(name string) (*Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.models[name]
	if !ok {
		return nil, ErrModelNotFound
	}
	return m, nil
}

// List returns all discovered models sorted by name.
func (r *Registry) List() []*Model {
	r.mu.RLock()
	defer r.mu.RUnlock()

	models := make([]*Model, 0, len(r.models))
	for _, m := range r.models {
		models = append(models, m)
	}
	sort.Slice(models, func(i, j int) bool {
		return models[i].Manifest.Name < models[j].Manifest.Name
	})
	return models
}

// Runner returns a Runner for the named model.
func (r *Registry) Runner(name string, timeout time.Duration) (*Runner, error) {
	m, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	return NewRunner(m, timeout), nil
}

// Dir returns the models directory.
func (r *Registry) Dir() string {
	return r.dir
}
