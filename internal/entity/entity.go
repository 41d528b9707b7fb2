// Package entity defines the live record model and the record store that
// serialized records are materialized into and exported from.
package entity

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/recsync/internal/record"
)

// ErrNotFound is returned by Store lookups when no live record matches.
var ErrNotFound = errors.New("entity not found")

// Entity is a live record.
type Entity struct {
	// ID is the store-local numeric key. Zero until created.
	ID int64

	// UUID is the identity shared with the serialized form.
	UUID     string
	Type     string
	Bundle   string
	Langcode string
	Label    string

	// OwnerID is only meaningful for types where Store.SupportsOwner is true.
	OwnerID int64

	Fields       record.Fields
	Translations map[string]record.Fields

	// Fingerprint ties the serialized record this entity was last imported
	// from to the state that import saved (record.SyncFingerprint), or is
	// empty.
	Fingerprint string
}

// Clone returns a deep copy of e.
func (e *Entity) Clone() *Entity {
	if e == nil {
		return nil
	}
	out := *e
	out.Fields = e.Fields.Clone()
	if e.Translations != nil {
		out.Translations = make(map[string]record.Fields, len(e.Translations))
		for lang, f := range e.Translations {
			out.Translations[lang] = f.Clone()
		}
	}
	return &out
}

// DomainLive prefixes live content hashes.
const DomainLive = "recsync/live/v1"

// ContentHash hashes the stored state of e: base properties, fields and
// translations. ID and Fingerprint are not part of it.
func (e *Entity) ContentHash() (string, error) {
	state := map[string]any{
		"bundle":   e.Bundle,
		"langcode": e.Langcode,
		"label":    e.Label,
		"owner_id": e.OwnerID,
		"fields":   e.Fields,
	}
	if len(e.Translations) > 0 {
		translations := make(map[string]any, len(e.Translations))
		for lang, f := range e.Translations {
			translations[lang] = f
		}
		state["translations"] = translations
	}
	hash, err := record.HashCanonical(DomainLive, state)
	if err != nil {
		return "", fmt.Errorf("content hash %s/%s: %w", e.Type, e.UUID, err)
	}
	return hash, nil
}

// TranslationLangcodes returns the translation languages, sorted.
func (e *Entity) TranslationLangcodes() []string {
	return slices.Sorted(maps.Keys(e.Translations))
}

// FieldDefinition describes one attribute of an entity type.
type FieldDefinition struct {
	EntityType string
	Name       string

	// Type is the attribute type tag that selects transform handlers,
	// e.g. "entity_reference", "link" or "string".
	Type string

	// Bundle is empty for base fields shared by every bundle.
	Bundle string

	// TargetType is the referenced entity type of entity_reference fields.
	TargetType string
}

// Language is a locale known to the store.
type Language struct {
	Code    string
	Default bool
}

// DefaultLangcode returns the code of the default language, or "" when none
// is marked default.
func DefaultLangcode(langs []Language) string {
	for _, l := range langs {
		if l.Default {
			return l.Code
		}
	}
	return ""
}

// Store is the live record store.
//
// Lookups return ErrNotFound (possibly wrapped) when nothing matches.
type Store interface {
	LoadByIdentity(ctx context.Context, entityType, uuid string) (*Entity, error)
	LoadByID(ctx context.Context, entityType string, id int64) (*Entity, error)

	// LoadByProperties returns every entity of entityType whose base
	// properties (uuid, bundle, langcode, label, owner_id) match props,
	// ordered by ID.
	LoadByProperties(ctx context.Context, entityType string, props map[string]any) ([]*Entity, error)

	// List returns every entity of entityType, or of all types when
	// entityType is empty, ordered by type then ID.
	List(ctx context.Context, entityType string) ([]*Entity, error)

	// Create inserts e, assigning ID and, when empty, UUID.
	Create(ctx context.Context, e *Entity) error

	// Save persists base properties, default-language fields and the
	// fingerprint of an existing entity.
	Save(ctx context.Context, e *Entity) error

	// SaveTranslation persists e.Translations[langcode].
	SaveTranslation(ctx context.Context, e *Entity, langcode string) error

	// Delete removes e and its translations.
	Delete(ctx context.Context, e *Entity) error

	// FieldDefinitions returns the base and bundle fields of a type, sorted
	// by name.
	FieldDefinitions(ctx context.Context, entityType, bundle string) ([]FieldDefinition, error)

	// Languages returns the known languages sorted by code.
	Languages(ctx context.Context) ([]Language, error)

	// SupportsOwner reports whether entities of entityType carry an owner.
	SupportsOwner(entityType string) bool
}
