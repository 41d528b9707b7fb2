package plugin

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/recsync/internal/entity"
	"github.com/roach88/recsync/internal/record"
)

// ExportInfoID is the option key written by ExportInfo.
const ExportInfoID = "export_info"

// ExportInfo stamps each written record with the time it was exported.
// The stamp is removed again before records are packaged for download.
type ExportInfo struct {
	// Now returns the export time. Defaults to time.Now.
	Now func() time.Time
}

func (ExportInfo) ID() string { return ExportInfoID }

func (ExportInfo) Applies(*entity.Entity) bool { return true }

func (p ExportInfo) PreWriteToYaml(_ context.Context, _ *entity.Entity, rec *record.SerializedRecord) error {
	now := p.Now
	if now == nil {
		now = time.Now
	}
	rec.SetOption(ExportInfoID, map[string]any{
		"exported_at": now().UTC().Format(time.RFC3339),
	})
	return nil
}

func (ExportInfo) PreImportSave(context.Context, *entity.Entity, *record.SerializedRecord) error {
	return nil
}

func (ExportInfo) PreExportDownload(_ context.Context, rec *record.SerializedRecord) error {
	rec.SetOption(ExportInfoID, nil)
	return nil
}

// OverridesID is the option key read by Overrides.
const OverridesID = "overrides"

// Overrides replaces default-language attributes of a record being imported
// with the values stored under options.overrides:
//
//	_meta:
//	  options:
//	    overrides:
//	      status:
//	        - value: false
//
// Overrides are applied per record; they cannot reach other records. The
// replaced values go through the transform handlers like any other value.
type Overrides struct{}

func (Overrides) ID() string { return OverridesID }

func (Overrides) Applies(*entity.Entity) bool { return true }

func (Overrides) PreWriteToYaml(context.Context, *entity.Entity, *record.SerializedRecord) error {
	return nil
}

func (Overrides) PreImportSave(_ context.Context, _ *entity.Entity, rec *record.SerializedRecord) error {
	raw, ok := rec.Options[OverridesID]
	if !ok || raw == nil {
		return nil
	}
	fields, err := record.FieldsFrom(raw)
	if err != nil {
		return &record.Error{
			Code:     record.ErrCodeInvalidInput,
			Message:  fmt.Sprintf("malformed %s option", OverridesID),
			Identity: rec.Identity,
			Path:     rec.SourcePath,
			Err:      err,
		}
	}
	if rec.Default == nil {
		rec.Default = record.Fields{}
	}
	for name, values := range fields {
		rec.Default[name] = values
	}
	return nil
}

func (Overrides) PreExportDownload(context.Context, *record.SerializedRecord) error {
	return nil
}

// Default returns a registry with the built-in plugins. now is the clock
// used by ExportInfo; nil means time.Now.
func Default(now func() time.Time) *Registry {
	return NewRegistry(ExportInfo{Now: now}, Overrides{})
}
