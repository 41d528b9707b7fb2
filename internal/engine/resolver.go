package engine

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/pmezard/go-difflib/difflib"
	"gopkg.in/yaml.v3"

	"github.com/roach88/recsync/internal/entity"
	"github.com/roach88/recsync/internal/record"
)

// ResolveStatus classifies exp against its record file.
//
// serialized is the file content when the caller already has it; when nil
// the configured sources are searched, default source first. Resolution
// attaches the source, file path, serialized form, dependencies and options
// to exp and records the status on it.
func (e *Engine) ResolveStatus(ctx context.Context, exp *Exportable, serialized *record.SerializedRecord) (SyncStatus, error) {
	if serialized == nil {
		found, source, err := e.locate(ctx, exp.UUID)
		if err != nil {
			return NotExported, err
		}
		serialized = found
		exp.Source = source
	} else if exp.Source == "" {
		exp.Source = e.sourceOf(serialized.SourcePath)
	}

	if serialized == nil {
		exp.ExportExists = false
		exp.Status = NotExported
		return exp.Status, nil
	}
	exp.ExportExists = true
	exp.Serialized = serialized
	exp.Filepath = serialized.SourcePath
	exp.Dependencies = maps.Clone(serialized.Dependencies)
	exp.Options = maps.Clone(serialized.Options)

	if exp.Entity == nil {
		entityType := exp.EntityType
		if entityType == "" {
			entityType = serialized.RecordType
		}
		live, err := e.store.LoadByIdentity(ctx, entityType, exp.UUID)
		if errors.Is(err, entity.ErrNotFound) {
			exp.Status = NotImported
			return exp.Status, nil
		}
		if err != nil {
			return NotExported, fmt.Errorf("resolve %s: %w", exp.UUID, err)
		}
		exp.Entity = live
	}

	live, file, err := e.comparable(ctx, exp)
	if err != nil {
		return NotExported, err
	}
	if cmp.Equal(file, live, cmpopts.EquateEmpty()) {
		exp.Status = InSync
	} else {
		exp.Status = OutOfSync
	}
	return exp.Status, nil
}

// locate searches the sources for the record file of uuid.
func (e *Engine) locate(ctx context.Context, uuid string) (*record.SerializedRecord, string, error) {
	for _, source := range e.sourceOrder() {
		res, err := e.cache.Get(ctx, e.sources[source])
		if err != nil {
			return nil, "", err
		}
		if rec := res.Records.Get(uuid); rec != nil {
			return rec, source, nil
		}
	}
	return nil, "", nil
}

// comparable returns the canonical forms of the live record and its file
// with the ignored keys stripped. Options and path exist only in files, so
// the fresh export carries the file's values for them. The file side is
// taken as import would save it, after the option plugins ran on a copy.
func (e *Engine) comparable(ctx context.Context, exp *Exportable) (live, file any, err error) {
	fresh, err := e.Export(ctx, exp.Entity)
	if err != nil {
		return nil, nil, err
	}
	imported := exp.Serialized.Clone()
	if err := e.plugins.PreImportSave(ctx, exp.Entity.Clone(), imported); err != nil {
		return nil, nil, err
	}
	fresh.Options = nil
	for id, v := range exp.Serialized.Options {
		fresh.SetOption(id, v)
	}
	fresh.Path = exp.Serialized.Path

	live = record.StripKeys(fresh.Canonical(), e.ignoredKeys)
	file = record.StripKeys(imported.Canonical(), e.ignoredKeys)
	return live, file, nil
}

// Diff renders a unified diff between the record file of exp and the
// current live record, both in canonical form with ignored keys stripped.
// Returns "" when they are in sync. A side that does not exist renders as
// empty.
func (e *Engine) Diff(ctx context.Context, exp *Exportable) (string, error) {
	status, err := e.ResolveStatus(ctx, exp, exp.Serialized)
	if err != nil {
		return "", err
	}

	var fileText, liveText string
	switch status {
	case InSync:
		return "", nil
	case NotExported:
		if exp.Entity == nil {
			return "", nil
		}
		rec, err := e.Export(ctx, exp.Entity)
		if err != nil {
			return "", err
		}
		if liveText, err = yamlText(record.StripKeys(rec.Canonical(), e.ignoredKeys)); err != nil {
			return "", err
		}
	case NotImported:
		if fileText, err = yamlText(record.StripKeys(exp.Serialized.Canonical(), e.ignoredKeys)); err != nil {
			return "", err
		}
	case OutOfSync:
		live, file, err := e.comparable(ctx, exp)
		if err != nil {
			return "", err
		}
		if fileText, err = yamlText(file); err != nil {
			return "", err
		}
		if liveText, err = yamlText(live); err != nil {
			return "", err
		}
	}

	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(fileText),
		B:        difflib.SplitLines(liveText),
		FromFile: "serialized",
		ToFile:   "live",
		Context:  3,
	})
}

func yamlText(v any) (string, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("render diff: %w", err)
	}
	return string(data), nil
}

// StatusEntry is one line of a status report.
type StatusEntry struct {
	UUID       string     `json:"uuid"`
	EntityType string     `json:"entity_type"`
	Bundle     string     `json:"bundle"`
	Label      string     `json:"label,omitempty"`
	Status     SyncStatus `json:"status"`
	Path       string     `json:"path,omitempty"`
}

// StatusAll reports the status of every record file in source plus every
// live record of entityType without a file in any source. An empty
// entityType covers all types.
func (e *Engine) StatusAll(ctx context.Context, source, entityType string) ([]StatusEntry, error) {
	dir, err := e.SourceDir(source)
	if err != nil {
		return nil, err
	}
	res, err := e.cache.Get(ctx, dir)
	if err != nil {
		return nil, err
	}

	var out []StatusEntry
	seen := map[string]bool{}
	for _, rec := range res.Records.Records() {
		if entityType != "" && rec.RecordType != entityType {
			continue
		}
		seen[rec.RecordType+"/"+rec.Identity] = true
		exp := e.factory.Get(rec.RecordType, rec.Identity)
		exp.Entity = nil
		status, err := e.ResolveStatus(ctx, exp, rec)
		if err != nil {
			return nil, err
		}
		out = append(out, StatusEntry{
			UUID:       rec.Identity,
			EntityType: rec.RecordType,
			Bundle:     rec.Subtype,
			Label:      rec.DisplayLabel,
			Status:     status,
			Path:       rec.SourcePath,
		})
	}

	live, err := e.store.List(ctx, entityType)
	if err != nil {
		return nil, fmt.Errorf("list live records: %w", err)
	}
	for _, ent := range live {
		if seen[ent.Type+"/"+ent.UUID] {
			continue
		}
		exp := e.factory.ForEntity(ent)
		exp.Serialized = nil
		status, err := e.ResolveStatus(ctx, exp, nil)
		if err != nil {
			return nil, err
		}
		entry := StatusEntry{
			UUID:       ent.UUID,
			EntityType: ent.Type,
			Bundle:     ent.Bundle,
			Label:      ent.Label,
			Status:     status,
			Path:       exp.Filepath,
		}
		out = append(out, entry)
	}
	return out, nil
}
