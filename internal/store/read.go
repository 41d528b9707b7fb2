package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/roach88/recsync/internal/entity"
	"github.com/roach88/recsync/internal/record"
)

const selectEntity = `
	SELECT id, entity_type, uuid, bundle, langcode, label, owner_id, fields, fingerprint
	FROM entities
`

// properties that LoadByProperties can filter on, mapped to columns.
var propertyColumns = map[string]string{
	"uuid":     "uuid",
	"bundle":   "bundle",
	"langcode": "langcode",
	"label":    "label",
	"owner_id": "owner_id",
}

// LoadByIdentity returns the entity of entityType with the given uuid.
// Returns entity.ErrNotFound if none exists.
func (s *Store) LoadByIdentity(ctx context.Context, entityType, uuid string) (*entity.Entity, error) {
	row := s.db.QueryRowContext(ctx, selectEntity+`WHERE entity_type = ? AND uuid = ?`, entityType, uuid)
	e, err := scanEntity(row)
	if err != nil {
		return nil, fmt.Errorf("load %s/%s: %w", entityType, uuid, err)
	}
	if err := s.loadTranslations(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// LoadByID returns the entity of entityType with the given numeric id.
// Returns entity.ErrNotFound if none exists.
func (s *Store) LoadByID(ctx context.Context, entityType string, id int64) (*entity.Entity, error) {
	row := s.db.QueryRowContext(ctx, selectEntity+`WHERE entity_type = ? AND id = ?`, entityType, id)
	e, err := scanEntity(row)
	if err != nil {
		return nil, fmt.Errorf("load %s/%d: %w", entityType, id, err)
	}
	if err := s.loadTranslations(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// LoadByProperties returns the entities of entityType matching every
// property in props, ordered by id. Returns an empty slice when nothing
// matches.
func (s *Store) LoadByProperties(ctx context.Context, entityType string, props map[string]any) ([]*entity.Entity, error) {
	where := []string{"entity_type = ?"}
	args := []any{entityType}
	for _, key := range slices.Sorted(maps.Keys(props)) {
		col, ok := propertyColumns[key]
		if !ok {
			return nil, fmt.Errorf("load %s by properties: unknown property %q", entityType, key)
		}
		where = append(where, col+" = ?")
		args = append(args, props[key])
	}
	return s.queryEntities(ctx, selectEntity+"WHERE "+strings.Join(where, " AND ")+" ORDER BY id ASC", args...)
}

// List returns every entity of entityType, or of all types when entityType
// is empty, ordered by type then id.
func (s *Store) List(ctx context.Context, entityType string) ([]*entity.Entity, error) {
	if entityType == "" {
		return s.queryEntities(ctx, selectEntity+"ORDER BY entity_type COLLATE BINARY ASC, id ASC")
	}
	return s.queryEntities(ctx, selectEntity+"WHERE entity_type = ? ORDER BY id ASC", entityType)
}

// FieldDefinitions returns the base fields and the bundle fields of a type,
// sorted by name. A bundle field overrides a base field of the same name.
func (s *Store) FieldDefinitions(ctx context.Context, entityType, bundle string) ([]entity.FieldDefinition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entity_type, bundle, name, type, target_type
		FROM field_definitions
		WHERE entity_type = ? AND (bundle = '' OR bundle = ?)
		ORDER BY name COLLATE BINARY ASC, bundle ASC
	`, entityType, bundle)
	if err != nil {
		return nil, fmt.Errorf("query field definitions: %w", err)
	}
	defer rows.Close()

	defs := []entity.FieldDefinition{}
	for rows.Next() {
		var d entity.FieldDefinition
		if err := rows.Scan(&d.EntityType, &d.Bundle, &d.Name, &d.Type, &d.TargetType); err != nil {
			return nil, fmt.Errorf("scan field definition: %w", err)
		}
		// Base rows sort before bundle rows of the same name.
		if n := len(defs); n > 0 && defs[n-1].Name == d.Name {
			defs[n-1] = d
			continue
		}
		defs = append(defs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate field definitions: %w", err)
	}
	return defs, nil
}

// Languages returns the known languages sorted by code.
func (s *Store) Languages(ctx context.Context) ([]entity.Language, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT code, is_default FROM languages ORDER BY code COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query languages: %w", err)
	}
	defer rows.Close()

	langs := []entity.Language{}
	for rows.Next() {
		var l entity.Language
		if err := rows.Scan(&l.Code, &l.Default); err != nil {
			return nil, fmt.Errorf("scan language: %w", err)
		}
		langs = append(langs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate languages: %w", err)
	}
	return langs, nil
}

func (s *Store) queryEntities(ctx context.Context, query string, args ...any) ([]*entity.Entity, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entities: %w", err)
	}

	entities := []*entity.Entity{}
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate entities: %w", err)
	}
	// Translations are read on the same single connection, so the entity
	// cursor must be closed first.
	rows.Close()

	for _, e := range entities {
		if err := s.loadTranslations(ctx, e); err != nil {
			return nil, err
		}
	}
	return entities, nil
}

func (s *Store) loadTranslations(ctx context.Context, e *entity.Entity) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT langcode, fields FROM translations
		WHERE entity_id = ?
		ORDER BY langcode COLLATE BINARY ASC
	`, e.ID)
	if err != nil {
		return fmt.Errorf("query translations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var langcode, fieldsJSON string
		if err := rows.Scan(&langcode, &fieldsJSON); err != nil {
			return fmt.Errorf("scan translation: %w", err)
		}
		fields, err := unmarshalFields(fieldsJSON)
		if err != nil {
			return fmt.Errorf("translation %s of %s: %w", langcode, e.UUID, err)
		}
		if e.Translations == nil {
			e.Translations = map[string]record.Fields{}
		}
		e.Translations[langcode] = fields
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate translations: %w", err)
	}
	return nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanEntity reads one entity row. sql.ErrNoRows becomes entity.ErrNotFound.
func scanEntity(row scanner) (*entity.Entity, error) {
	var e entity.Entity
	var fieldsJSON string
	err := row.Scan(&e.ID, &e.Type, &e.UUID, &e.Bundle, &e.Langcode, &e.Label, &e.OwnerID, &fieldsJSON, &e.Fingerprint)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan entity: %w", err)
	}
	fields, err := unmarshalFields(fieldsJSON)
	if err != nil {
		return nil, fmt.Errorf("entity %s: %w", e.UUID, err)
	}
	e.Fields = fields
	return &e, nil
}
