package engine

import (
	"sync"

	"github.com/roach88/recsync/internal/entity"
	"github.com/roach88/recsync/internal/record"
)

// Exportable pairs a live record with its export bookkeeping.
// Resolution fills in the location and serialized form.
type Exportable struct {
	EntityType string
	UUID       string

	// Entity is the live record, or nil when it does not exist.
	Entity *entity.Entity

	// Source and Filepath locate the record file once resolved.
	Source   string
	Filepath string

	ExportExists bool
	Serialized   *record.SerializedRecord
	Dependencies map[string]string
	Options      map[string]any
	Status       SyncStatus
}

// Factory creates Exportables and keeps one per identity for the life of
// the process. Clear drops them.
//
// Thread-safety: safe for concurrent use.
type Factory struct {
	mu    sync.Mutex
	items map[string]*Exportable
}

// NewFactory creates an empty factory.
func NewFactory() *Factory {
	return &Factory{items: map[string]*Exportable{}}
}

// Get returns the Exportable for entityType/uuid, creating it on first use.
func (f *Factory) Get(entityType, uuid string) *Exportable {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := entityType + "/" + uuid
	if exp, ok := f.items[key]; ok {
		return exp
	}
	exp := &Exportable{EntityType: entityType, UUID: uuid}
	f.items[key] = exp
	return exp
}

// ForEntity returns the Exportable of e with Entity set to e.
func (f *Factory) ForEntity(e *entity.Entity) *Exportable {
	exp := f.Get(e.Type, e.UUID)
	f.mu.Lock()
	exp.Entity = e
	f.mu.Unlock()
	return exp
}

// Len returns the number of cached Exportables.
func (f *Factory) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

// Clear drops every cached Exportable.
func (f *Factory) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = map[string]*Exportable{}
}
