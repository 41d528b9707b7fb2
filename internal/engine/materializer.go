package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/roach88/recsync/internal/collection"
	"github.com/roach88/recsync/internal/entity"
	"github.com/roach88/recsync/internal/record"
	"github.com/roach88/recsync/internal/transform"
)

// ImportResult lists the identities touched by an import, in import order.
type ImportResult struct {
	Created []string `json:"created"`
	Updated []string `json:"updated"`

	// Skipped holds records whose file fingerprint matched the one stored
	// at their last import.
	Skipped []string `json:"skipped"`

	// Missing holds post-import messages for records that could not be
	// loaded back from the store.
	Missing []string `json:"missing,omitempty"`
}

// Total returns the number of records processed.
func (r *ImportResult) Total() int {
	return len(r.Created) + len(r.Updated) + len(r.Skipped)
}

// Upsert creates or updates a live record for every member of coll, in
// collection order. coll must already be in dependency order.
//
// Every record is validated before anything is written; one invalid record
// fails the whole batch with a VALIDATION error, and an asset uri outside
// the files directory with INVALID_INPUT. Any later error stops the
// batch, and records saved before it stay saved.
func (e *Engine) Upsert(ctx context.Context, coll *collection.Collection) (*ImportResult, error) {
	for _, rec := range coll.Records() {
		if err := rec.Validate(); err != nil {
			return nil, err
		}
		if rec.AssetName() != "" {
			if _, err := e.liveAssetPath(rec); err != nil {
				return nil, err
			}
		}
	}

	langs, err := e.store.Languages(ctx)
	if err != nil {
		return nil, fmt.Errorf("load languages: %w", err)
	}
	loc := newLocales(langs)

	result := &ImportResult{}
	for _, rec := range coll.Records() {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		outcome, err := e.importRecord(ctx, loc, rec)
		if err != nil {
			return result, withRecordContext(err, rec)
		}
		switch outcome {
		case outcomeCreated:
			result.Created = append(result.Created, rec.Identity)
		case outcomeUpdated:
			result.Updated = append(result.Updated, rec.Identity)
		case outcomeSkipped:
			result.Skipped = append(result.Skipped, rec.Identity)
		}
	}
	e.logger.Info("import finished",
		"created", len(result.Created), "updated", len(result.Updated), "skipped", len(result.Skipped))
	return result, nil
}

type outcome int

const (
	outcomeCreated outcome = iota
	outcomeUpdated
	outcomeSkipped
)

func (e *Engine) importRecord(ctx context.Context, loc *locales, src *record.SerializedRecord) (outcome, error) {
	fingerprint, err := record.Fingerprint(src)
	if err != nil {
		return 0, err
	}

	rec := src.Clone()
	if loc.normalize(rec, e.installing) {
		e.logger.Warn("default language replaced",
			"uuid", rec.Identity, "from", src.DefaultLocale, "to", rec.DefaultLocale)
	}

	live, created, err := e.getOrCreate(ctx, rec)
	if err != nil {
		return 0, err
	}
	if !created && !e.force {
		same, err := unchanged(live, fingerprint)
		if err != nil {
			return 0, err
		}
		if same {
			e.logger.Debug("record unchanged", "uuid", rec.Identity)
			return outcomeSkipped, nil
		}
	}

	if e.store.SupportsOwner(live.Type) && live.OwnerID == 0 {
		live.OwnerID = e.ownerID
	}

	defs, err := e.store.FieldDefinitions(ctx, live.Type, live.Bundle)
	if err != nil {
		return 0, fmt.Errorf("field definitions: %w", err)
	}
	if err := e.plugins.PreImportSave(ctx, live, rec); err != nil {
		return 0, err
	}
	tc := &transform.Context{Store: e.store, Logger: e.logger, Record: rec, Entity: live}

	fields, err := e.transforms.Apply(ctx, transform.Import, tc, defs, rec.DefaultLocale, rec.Default)
	if err != nil {
		return 0, err
	}
	live.Fields = fields
	live.Langcode = rec.DefaultLocale
	live.Label = rec.DisplayLabel

	previous := live.TranslationLangcodes()
	live.Translations = map[string]record.Fields{}
	for _, locale := range rec.Locales() {
		code, ok := locale, true
		if !loc.empty() {
			code, ok = loc.match(locale)
		}
		if !ok || code == live.Langcode {
			e.logger.Warn("skipping translation in unknown language", "uuid", rec.Identity, "langcode", locale)
			continue
		}
		fields, err := e.transforms.Apply(ctx, transform.Import, tc, defs, code, rec.Translations[locale])
		if err != nil {
			return 0, err
		}
		live.Translations[code] = fields
	}

	if err := e.importAsset(rec); err != nil {
		return 0, err
	}

	liveHash, err := live.ContentHash()
	if err != nil {
		return 0, err
	}
	live.Fingerprint = record.SyncFingerprint(fingerprint, liveHash)
	if err := e.store.Save(ctx, live); err != nil {
		return 0, fmt.Errorf("save: %w", err)
	}
	for _, lang := range live.TranslationLangcodes() {
		if err := e.store.SaveTranslation(ctx, live, lang); err != nil {
			return 0, fmt.Errorf("save translation %s: %w", lang, err)
		}
	}
	for _, lang := range previous {
		if _, kept := live.Translations[lang]; kept {
			continue
		}
		if err := e.store.SaveTranslation(ctx, live, lang); err != nil {
			return 0, fmt.Errorf("remove translation %s: %w", lang, err)
		}
	}

	if created {
		e.logger.Debug("created record", "uuid", rec.Identity, "id", live.ID)
		return outcomeCreated, nil
	}
	e.logger.Debug("updated record", "uuid", rec.Identity, "id", live.ID)
	return outcomeUpdated, nil
}

// unchanged reports whether live still holds exactly what the last import
// of a file with this fingerprint saved. Edits made to the live record
// since then change its content hash.
func unchanged(live *entity.Entity, fingerprint string) (bool, error) {
	if live.Fingerprint == "" {
		return false, nil
	}
	liveHash, err := live.ContentHash()
	if err != nil {
		return false, err
	}
	return live.Fingerprint == record.SyncFingerprint(fingerprint, liveHash), nil
}

// getOrCreate loads the live record of rec, creating a stub when it does
// not exist yet so later records in the batch can reference it.
func (e *Engine) getOrCreate(ctx context.Context, rec *record.SerializedRecord) (*entity.Entity, bool, error) {
	live, err := e.store.LoadByIdentity(ctx, rec.RecordType, rec.Identity)
	if err == nil {
		return live, false, nil
	}
	if !errors.Is(err, entity.ErrNotFound) {
		return nil, false, fmt.Errorf("load: %w", err)
	}

	live = &entity.Entity{
		UUID:     rec.Identity,
		Type:     rec.RecordType,
		Bundle:   rec.Subtype,
		Langcode: rec.DefaultLocale,
		Label:    rec.DisplayLabel,
		Fields:   record.Fields{},
	}
	if e.store.SupportsOwner(live.Type) {
		live.OwnerID = e.ownerID
	}
	if err := e.store.Create(ctx, live); err != nil {
		return nil, false, fmt.Errorf("create: %w", err)
	}
	return live, true, nil
}

// importAsset copies the asset stored next to a file record into the files
// directory. A missing asset is logged, not fatal.
func (e *Engine) importAsset(rec *record.SerializedRecord) error {
	asset := rec.AssetName()
	if asset == "" || rec.SourcePath == "" {
		return nil
	}
	dst, err := e.liveAssetPath(rec)
	if err != nil {
		return err
	}
	src := filepath.Join(filepath.Dir(rec.SourcePath), asset)
	if err := copyFile(e.fs, src, dst); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			e.logger.Warn("asset not found", "uuid", rec.Identity, "path", src)
			return nil
		}
		return record.WrapIO(src, "copy asset", err)
	}
	return nil
}

// Verify checks that every member of coll can be loaded from the store and
// returns one message per record that cannot.
func (e *Engine) Verify(ctx context.Context, coll *collection.Collection) []string {
	var missing []string
	for _, rec := range coll.Records() {
		if _, err := e.store.LoadByIdentity(ctx, rec.RecordType, rec.Identity); err != nil {
			missing = append(missing, fmt.Sprintf("%s %s (%s): not found in store", rec.RecordType, rec.Identity, rec.DisplayLabel))
		}
	}
	return missing
}

// withRecordContext attaches the identity and file of rec to err.
func withRecordContext(err error, rec *record.SerializedRecord) error {
	var re *record.Error
	if errors.As(err, &re) {
		if re.Identity == "" {
			re.Identity = rec.Identity
		}
		if re.Path == "" {
			re.Path = rec.SourcePath
		}
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("import %s (path=%s): %w", rec.Identity, rec.SourcePath, err)
}
