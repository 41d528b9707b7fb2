package testutil

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/roach88/recsync/internal/entity"
	"github.com/roach88/recsync/internal/record"
)

// MemStore is an in-memory entity.Store for tests.
//
// Entities are stored as deep copies so callers cannot mutate stored state
// without calling Save.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type MemStore struct {
	mu         sync.Mutex
	nextID     int64
	entities   map[int64]*entity.Entity
	fields     []entity.FieldDefinition
	languages  []entity.Language
	ownerTypes map[string]bool
	ids        entity.IdentityGenerator
}

var _ entity.Store = (*MemStore)(nil)

// NewMemStore creates an empty store. Identities are generated from ids,
// or as UUIDv7 when ids is nil.
func NewMemStore(ids entity.IdentityGenerator) *MemStore {
	if ids == nil {
		ids = entity.UUIDv7Generator{}
	}
	return &MemStore{
		entities:   map[int64]*entity.Entity{},
		ownerTypes: map[string]bool{},
		ids:        ids,
	}
}

// DefineField adds an attribute definition.
func (m *MemStore) DefineField(def entity.FieldDefinition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fields = append(m.fields, def)
}

// SetLanguages replaces the known languages.
func (m *MemStore) SetLanguages(langs ...entity.Language) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.languages = slices.Clone(langs)
	slices.SortFunc(m.languages, func(a, b entity.Language) int { return cmp.Compare(a.Code, b.Code) })
}

// SetOwnerTypes marks entity types as owner-capable.
func (m *MemStore) SetOwnerTypes(types ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range types {
		m.ownerTypes[t] = true
	}
}

// Len returns the number of stored entities.
func (m *MemStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entities)
}

func (m *MemStore) LoadByIdentity(_ context.Context, entityType, uuid string) (*entity.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entities {
		if e.Type == entityType && e.UUID == uuid {
			return e.Clone(), nil
		}
	}
	return nil, fmt.Errorf("load %s/%s: %w", entityType, uuid, entity.ErrNotFound)
}

func (m *MemStore) LoadByID(_ context.Context, entityType string, id int64) (*entity.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entities[id]
	if !ok || e.Type != entityType {
		return nil, fmt.Errorf("load %s/%d: %w", entityType, id, entity.ErrNotFound)
	}
	return e.Clone(), nil
}

func (m *MemStore) LoadByProperties(_ context.Context, entityType string, props map[string]any) ([]*entity.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []*entity.Entity{}
	for _, e := range m.sortedLocked() {
		if e.Type != entityType {
			continue
		}
		match := true
		for key, want := range props {
			var got any
			switch key {
			case "uuid":
				got = e.UUID
			case "bundle":
				got = e.Bundle
			case "langcode":
				got = e.Langcode
			case "label":
				got = e.Label
			case "owner_id":
				got = e.OwnerID
			default:
				return nil, fmt.Errorf("load %s by properties: unknown property %q", entityType, key)
			}
			if record.Normalize(got) != record.Normalize(want) {
				match = false
			}
		}
		if match {
			out = append(out, e.Clone())
		}
	}
	return out, nil
}

func (m *MemStore) List(_ context.Context, entityType string) ([]*entity.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []*entity.Entity{}
	for _, e := range m.sortedLocked() {
		if entityType == "" || e.Type == entityType {
			out = append(out, e.Clone())
		}
	}
	return out, nil
}

func (m *MemStore) Create(_ context.Context, e *entity.Entity) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e.UUID == "" {
		e.UUID = m.ids.Generate()
	}
	for _, existing := range m.entities {
		if existing.Type == e.Type && existing.UUID == e.UUID {
			return fmt.Errorf("create entity %s/%s: identity exists", e.Type, e.UUID)
		}
	}
	m.nextID++
	e.ID = m.nextID
	stored := e.Clone()
	stored.Translations = nil
	m.entities[e.ID] = stored
	return nil
}

func (m *MemStore) Save(_ context.Context, e *entity.Entity) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.entities[e.ID]
	if !ok || stored.Type != e.Type {
		return fmt.Errorf("save entity %s/%s: %w", e.Type, e.UUID, entity.ErrNotFound)
	}
	translations := stored.Translations
	next := e.Clone()
	next.Translations = translations
	m.entities[e.ID] = next
	return nil
}

func (m *MemStore) SaveTranslation(_ context.Context, e *entity.Entity, langcode string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.entities[e.ID]
	if !ok {
		return fmt.Errorf("save translation %s/%s: %w", e.Type, e.UUID, entity.ErrNotFound)
	}
	fields, ok := e.Translations[langcode]
	if !ok {
		delete(stored.Translations, langcode)
		return nil
	}
	if stored.Translations == nil {
		stored.Translations = map[string]record.Fields{}
	}
	stored.Translations[langcode] = fields.Clone()
	return nil
}

func (m *MemStore) Delete(_ context.Context, e *entity.Entity) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entities[e.ID]; !ok {
		return fmt.Errorf("delete entity %s/%s: %w", e.Type, e.UUID, entity.ErrNotFound)
	}
	delete(m.entities, e.ID)
	return nil
}

func (m *MemStore) FieldDefinitions(_ context.Context, entityType, bundle string) ([]entity.FieldDefinition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	byName := map[string]entity.FieldDefinition{}
	for _, d := range m.fields {
		if d.EntityType != entityType {
			continue
		}
		switch d.Bundle {
		case "":
			if _, ok := byName[d.Name]; !ok {
				byName[d.Name] = d
			}
		case bundle:
			byName[d.Name] = d
		}
	}
	out := make([]entity.FieldDefinition, 0, len(byName))
	for _, d := range byName {
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b entity.FieldDefinition) int { return cmp.Compare(a.Name, b.Name) })
	return out, nil
}

func (m *MemStore) Languages(context.Context) ([]entity.Language, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.languages), nil
}

func (m *MemStore) SupportsOwner(entityType string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ownerTypes[entityType]
}

// sortedLocked returns stored entities ordered by type then ID.
// Caller must hold m.mu.
func (m *MemStore) sortedLocked() []*entity.Entity {
	out := make([]*entity.Entity, 0, len(m.entities))
	for _, e := range m.entities {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b *entity.Entity) int {
		return cmp.Or(cmp.Compare(a.Type, b.Type), cmp.Compare(a.ID, b.ID))
	})
	return out
}
