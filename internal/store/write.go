package store

import (
	"context"
	"fmt"

	"github.com/roach88/recsync/internal/entity"
)

// Create inserts a new entity and sets its ID. An empty UUID is filled from
// the identity generator. Creating an identity that already exists for the
// type fails with a UNIQUE constraint error.
func (s *Store) Create(ctx context.Context, e *entity.Entity) error {
	if e.UUID == "" {
		e.UUID = s.ids.Generate()
	}
	fieldsJSON, err := marshalFields(e.Fields)
	if err != nil {
		return fmt.Errorf("create entity: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO entities
		(entity_type, uuid, bundle, langcode, label, owner_id, fields, fingerprint)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.Type,
		e.UUID,
		e.Bundle,
		e.Langcode,
		e.Label,
		e.OwnerID,
		fieldsJSON,
		e.Fingerprint,
	)
	if err != nil {
		return fmt.Errorf("create entity %s/%s: %w", e.Type, e.UUID, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("create entity: last insert id: %w", err)
	}
	e.ID = id
	return nil
}

// Save updates base properties, default-language fields and the fingerprint.
// Returns entity.ErrNotFound if e was never created or has been deleted.
func (s *Store) Save(ctx context.Context, e *entity.Entity) error {
	fieldsJSON, err := marshalFields(e.Fields)
	if err != nil {
		return fmt.Errorf("save entity: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE entities
		SET bundle = ?, langcode = ?, label = ?, owner_id = ?, fields = ?, fingerprint = ?
		WHERE id = ? AND entity_type = ?
	`,
		e.Bundle,
		e.Langcode,
		e.Label,
		e.OwnerID,
		fieldsJSON,
		e.Fingerprint,
		e.ID,
		e.Type,
	)
	if err != nil {
		return fmt.Errorf("save entity %s/%s: %w", e.Type, e.UUID, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("save entity: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("save entity %s/%s: %w", e.Type, e.UUID, entity.ErrNotFound)
	}
	return nil
}

// SaveTranslation upserts the translation row for langcode. When e has no
// translation for langcode the stored row is removed.
func (s *Store) SaveTranslation(ctx context.Context, e *entity.Entity, langcode string) error {
	if e.ID == 0 {
		return fmt.Errorf("save translation %s/%s: %w", e.Type, e.UUID, entity.ErrNotFound)
	}

	fields, ok := e.Translations[langcode]
	if !ok {
		_, err := s.db.ExecContext(ctx, `
			DELETE FROM translations WHERE entity_id = ? AND langcode = ?
		`, e.ID, langcode)
		if err != nil {
			return fmt.Errorf("remove translation %s: %w", langcode, err)
		}
		return nil
	}

	fieldsJSON, err := marshalFields(fields)
	if err != nil {
		return fmt.Errorf("save translation: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO translations (entity_id, langcode, fields)
		VALUES (?, ?, ?)
		ON CONFLICT(entity_id, langcode) DO UPDATE SET fields = excluded.fields
	`, e.ID, langcode, fieldsJSON)
	if err != nil {
		return fmt.Errorf("save translation %s/%s %s: %w", e.Type, e.UUID, langcode, err)
	}
	return nil
}

// Delete removes the entity; translations go with it through the foreign key.
func (s *Store) Delete(ctx context.Context, e *entity.Entity) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM entities WHERE id = ? AND entity_type = ?
	`, e.ID, e.Type)
	if err != nil {
		return fmt.Errorf("delete entity %s/%s: %w", e.Type, e.UUID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete entity: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("delete entity %s/%s: %w", e.Type, e.UUID, entity.ErrNotFound)
	}
	return nil
}

// DefineField registers or replaces an attribute definition.
func (s *Store) DefineField(ctx context.Context, def entity.FieldDefinition) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO field_definitions (entity_type, bundle, name, type, target_type)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(entity_type, bundle, name) DO UPDATE
		SET type = excluded.type, target_type = excluded.target_type
	`, def.EntityType, def.Bundle, def.Name, def.Type, def.TargetType)
	if err != nil {
		return fmt.Errorf("define field %s.%s: %w", def.EntityType, def.Name, err)
	}
	return nil
}

// SetLanguages replaces the known languages.
func (s *Store) SetLanguages(ctx context.Context, langs []entity.Language) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("set languages: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if _, err := tx.ExecContext(ctx, `DELETE FROM languages`); err != nil {
		return fmt.Errorf("set languages: clear: %w", err)
	}
	for _, l := range langs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO languages (code, is_default) VALUES (?, ?)
			ON CONFLICT(code) DO UPDATE SET is_default = excluded.is_default
		`, l.Code, l.Default); err != nil {
			return fmt.Errorf("set languages: insert %s: %w", l.Code, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("set languages: commit: %w", err)
	}
	return nil
}
