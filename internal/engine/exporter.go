package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/recsync/internal/collection"
	"github.com/roach88/recsync/internal/entity"
	"github.com/roach88/recsync/internal/record"
	"github.com/roach88/recsync/internal/transform"
)

// Export builds the serialized form of e. Attribute values run through the
// export transforms, which also collect the record's dependencies; option
// plugins run last.
func (e *Engine) Export(ctx context.Context, ent *entity.Entity) (*record.SerializedRecord, error) {
	defs, err := e.store.FieldDefinitions(ctx, ent.Type, ent.Bundle)
	if err != nil {
		return nil, fmt.Errorf("export %s/%s: field definitions: %w", ent.Type, ent.UUID, err)
	}

	rec := record.New(ent.Type, ent.Bundle, ent.UUID, ent.Langcode)
	rec.DisplayLabel = ent.Label
	rec.EntityID = ent.ID

	tc := &transform.Context{Store: e.store, Logger: e.logger, Record: rec, Entity: ent}
	rec.Default, err = e.transforms.Apply(ctx, transform.Export, tc, defs, ent.Langcode, ent.Fields)
	if err != nil {
		return nil, fmt.Errorf("export %s/%s: %w", ent.Type, ent.UUID, err)
	}
	for _, lang := range ent.TranslationLangcodes() {
		fields, err := e.transforms.Apply(ctx, transform.Export, tc, defs, lang, ent.Translations[lang])
		if err != nil {
			return nil, fmt.Errorf("export %s/%s [%s]: %w", ent.Type, ent.UUID, lang, err)
		}
		rec.SetTranslation(lang, fields)
	}

	if err := e.plugins.PreWriteToYaml(ctx, ent, rec); err != nil {
		return nil, fmt.Errorf("export %s/%s: %w", ent.Type, ent.UUID, err)
	}
	return rec, nil
}

// ExportWithReferences exports ent and every entity it references,
// transitively. Referenced records come first. Missing targets are logged
// and skipped.
func (e *Engine) ExportWithReferences(ctx context.Context, ent *entity.Entity) (*collection.Collection, error) {
	var out []*record.SerializedRecord
	visited := map[string]bool{}

	var visit func(ent *entity.Entity) error
	visit = func(ent *entity.Entity) error {
		if visited[ent.UUID] {
			return nil
		}
		visited[ent.UUID] = true

		rec, err := e.Export(ctx, ent)
		if err != nil {
			return err
		}
		for _, id := range rec.DependencyIdentities() {
			if visited[id] {
				continue
			}
			target, err := e.store.LoadByIdentity(ctx, rec.Dependencies[id], id)
			if errors.Is(err, entity.ErrNotFound) {
				e.logger.Warn("referenced entity not found",
					"uuid", rec.Identity, "dependency", id, "type", rec.Dependencies[id])
				continue
			}
			if err != nil {
				return fmt.Errorf("load dependency %s of %s: %w", id, rec.Identity, err)
			}
			if err := visit(target); err != nil {
				return err
			}
		}
		out = append(out, rec)
		return nil
	}

	if err := visit(ent); err != nil {
		return nil, err
	}
	return collection.New(out...)
}
