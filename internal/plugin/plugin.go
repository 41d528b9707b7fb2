// Package plugin provides option plugins: per-record hooks that read or
// write the free-form _meta.options section at fixed pipeline stages.
package plugin

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/roach88/recsync/internal/entity"
	"github.com/roach88/recsync/internal/record"
)

// Plugin is an option plugin. The option value a plugin owns is stored in
// SerializedRecord.Options under its ID.
type Plugin interface {
	ID() string

	// Applies reports whether the plugin handles records of e.
	Applies(e *entity.Entity) bool

	// PreWriteToYaml runs after a record was exported from e and before it
	// is written.
	PreWriteToYaml(ctx context.Context, e *entity.Entity, rec *record.SerializedRecord) error

	// PreImportSave runs on the record being imported, before transform
	// handlers convert its values for e. Changes made to rec are what gets
	// saved, and what drift detection compares the live record against.
	PreImportSave(ctx context.Context, e *entity.Entity, rec *record.SerializedRecord) error

	// PreExportDownload runs on a copy of each record before it is packaged
	// into an archive.
	PreExportDownload(ctx context.Context, rec *record.SerializedRecord) error
}

// Registry holds plugins in registration order.
//
// Thread-safety: safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
}

// NewRegistry creates a registry with plugins registered in order.
func NewRegistry(plugins ...Plugin) *Registry {
	r := &Registry{}
	for _, p := range plugins {
		r.Register(p)
	}
	return r
}

// Register adds p. A plugin with the same ID replaces the earlier one in
// place.
func (r *Registry) Register(p Plugin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := slices.IndexFunc(r.plugins, func(q Plugin) bool { return q.ID() == p.ID() }); i >= 0 {
		r.plugins[i] = p
		return
	}
	r.plugins = append(r.plugins, p)
}

// Plugins returns the registered plugins in order.
func (r *Registry) Plugins() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.plugins)
}

// IDs returns the registered plugin IDs in order.
func (r *Registry) IDs() []string {
	plugins := r.Plugins()
	ids := make([]string, len(plugins))
	for i, p := range plugins {
		ids[i] = p.ID()
	}
	return ids
}

// PreWriteToYaml runs the hook of every plugin that applies to e.
func (r *Registry) PreWriteToYaml(ctx context.Context, e *entity.Entity, rec *record.SerializedRecord) error {
	for _, p := range r.Plugins() {
		if !p.Applies(e) {
			continue
		}
		if err := p.PreWriteToYaml(ctx, e, rec); err != nil {
			return fmt.Errorf("plugin %s: pre write: %w", p.ID(), err)
		}
	}
	return nil
}

// PreImportSave runs the hook of every plugin that applies to e.
func (r *Registry) PreImportSave(ctx context.Context, e *entity.Entity, rec *record.SerializedRecord) error {
	for _, p := range r.Plugins() {
		if !p.Applies(e) {
			continue
		}
		if err := p.PreImportSave(ctx, e, rec); err != nil {
			return fmt.Errorf("plugin %s: pre import save: %w", p.ID(), err)
		}
	}
	return nil
}

// PreExportDownload runs the hook of every plugin whose option is set on
// rec. There is no live entity at this stage.
func (r *Registry) PreExportDownload(ctx context.Context, rec *record.SerializedRecord) error {
	for _, p := range r.Plugins() {
		if _, ok := rec.Options[p.ID()]; !ok {
			continue
		}
		if err := p.PreExportDownload(ctx, rec); err != nil {
			return fmt.Errorf("plugin %s: pre export download: %w", p.ID(), err)
		}
	}
	return nil
}
