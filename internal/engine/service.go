package engine

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/recsync/internal/archive"
	"github.com/roach88/recsync/internal/discovery"
	"github.com/roach88/recsync/internal/entity"
	"github.com/roach88/recsync/internal/record"
)

// Service exposes the engine by source id and identity, the way the
// command line addresses records.
type Service struct {
	engine *Engine
}

// NewService creates a Service over e.
func NewService(e *Engine) *Service {
	return &Service{engine: e}
}

// Engine returns the underlying engine.
func (s *Service) Engine() *Engine {
	return s.engine
}

// ExportEntity writes the record of one live entity to source and returns
// the written paths. With references, every entity it references is
// written too, dependencies first.
func (s *Service) ExportEntity(ctx context.Context, source, entityType, uuid string, withReferences bool) ([]string, error) {
	dir, err := s.engine.SourceDir(source)
	if err != nil {
		return nil, err
	}
	ent, err := s.loadEntity(ctx, entityType, uuid)
	if err != nil {
		return nil, err
	}

	var recs []*record.SerializedRecord
	if withReferences {
		coll, err := s.engine.ExportWithReferences(ctx, ent)
		if err != nil {
			return nil, err
		}
		recs = coll.Records()
	} else {
		rec, err := s.engine.Export(ctx, ent)
		if err != nil {
			return nil, err
		}
		recs = []*record.SerializedRecord{rec}
	}
	return s.writeAll(ctx, dir, recs)
}

// ExportType writes the records of every live entity of entityType to
// source.
func (s *Service) ExportType(ctx context.Context, source, entityType string) ([]string, error) {
	dir, err := s.engine.SourceDir(source)
	if err != nil {
		return nil, err
	}
	ents, err := s.engine.store.List(ctx, entityType)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", entityType, err)
	}
	recs := make([]*record.SerializedRecord, 0, len(ents))
	for _, ent := range ents {
		rec, err := s.engine.Export(ctx, ent)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return s.writeAll(ctx, dir, recs)
}

func (s *Service) writeAll(ctx context.Context, dir string, recs []*record.SerializedRecord) ([]string, error) {
	paths := make([]string, 0, len(recs))
	for _, rec := range recs {
		path, err := s.engine.Write(ctx, dir, rec)
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// ImportSource imports every record of source in dependency order, then
// reports records that cannot be loaded back.
func (s *Service) ImportSource(ctx context.Context, source string) (*ImportResult, error) {
	res, err := s.Discover(ctx, source)
	if err != nil {
		return nil, err
	}
	return s.importCollection(ctx, res)
}

// ImportEntity imports one record of source plus the records it depends
// on, in dependency order. An identity not in source is NOT_FOUND.
func (s *Service) ImportEntity(ctx context.Context, source, uuid string) (*ImportResult, error) {
	res, err := s.Discover(ctx, source)
	if err != nil {
		return nil, err
	}
	if !res.Records.Has(uuid) {
		return nil, record.NewError(record.ErrCodeNotFound, uuid, "record not found in source")
	}
	sub := *res
	sub.Records = res.Records.WithDependencies(uuid)
	return s.importCollection(ctx, &sub)
}

func (s *Service) importCollection(ctx context.Context, res *discovery.Result) (*ImportResult, error) {
	result, err := s.engine.Upsert(ctx, res.Records)
	if err != nil {
		return result, err
	}
	result.Missing = s.engine.Verify(ctx, res.Records)
	for _, msg := range result.Missing {
		s.engine.logger.Warn(msg)
	}
	return result, nil
}

// Status reports the sync status of source and the live store.
func (s *Service) Status(ctx context.Context, source, entityType string) ([]StatusEntry, error) {
	return s.engine.StatusAll(ctx, source, entityType)
}

// Diff renders the difference between a record file in source and its
// live record.
func (s *Service) Diff(ctx context.Context, source, entityType, uuid string) (string, SyncStatus, error) {
	dir, err := s.engine.SourceDir(source)
	if err != nil {
		return "", NotExported, err
	}
	res, err := s.engine.cache.Get(ctx, dir)
	if err != nil {
		return "", NotExported, err
	}

	exp := s.engine.factory.Get(entityType, uuid)
	exp.Entity = nil
	exp.Serialized = res.Records.Get(uuid)
	if exp.Serialized == nil {
		ent, err := s.loadEntity(ctx, entityType, uuid)
		if err != nil {
			return "", NotExported, err
		}
		exp.Entity = ent
	}
	diff, err := s.engine.Diff(ctx, exp)
	return diff, exp.Status, err
}

// Prune removes a record file from source with its unneeded dependencies.
func (s *Service) Prune(ctx context.Context, source, uuid string) ([]string, error) {
	dir, err := s.engine.SourceDir(source)
	if err != nil {
		return nil, err
	}
	return s.engine.RemoveWithDependencies(ctx, dir, uuid)
}

// Download writes the records of source as an archive to w. Option plugins
// prepare a copy of each record first; the files are not modified.
func (s *Service) Download(ctx context.Context, w io.Writer, source string) error {
	res, err := s.Discover(ctx, source)
	if err != nil {
		return err
	}
	var hookErr error
	prepared, err := res.Records.Map(func(r *record.SerializedRecord) *record.SerializedRecord {
		c := r.Clone()
		if hookErr == nil {
			hookErr = s.engine.plugins.PreExportDownload(ctx, c)
		}
		return c
	})
	if err != nil {
		return err
	}
	if hookErr != nil {
		return hookErr
	}
	return archive.Write(w, s.engine.fs, prepared)
}

// Extract unpacks an archive into source and returns the written paths.
func (s *Service) Extract(ctx context.Context, r io.Reader, source string) ([]string, error) {
	dir, err := s.engine.SourceDir(source)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	paths, err := archive.Extract(r, s.engine.fs, dir)
	s.engine.cache.Invalidate(dir)
	return paths, err
}

// Discover returns the records of source in dependency order.
func (s *Service) Discover(ctx context.Context, source string) (*discovery.Result, error) {
	dir, err := s.engine.SourceDir(source)
	if err != nil {
		return nil, err
	}
	return s.engine.cache.Get(ctx, dir)
}

// Watch re-scans source whenever its files change and calls onChange with
// the fresh result. Blocks until ctx is done.
func (s *Service) Watch(ctx context.Context, source string, onChange func(*discovery.Result)) error {
	dir, err := s.engine.SourceDir(source)
	if err != nil {
		return err
	}
	w, err := discovery.NewWatcher(dir, s.engine.cache, func(ctx context.Context) {
		res, err := s.engine.cache.Get(ctx, dir)
		if err != nil {
			s.engine.logger.Error("rescan failed", "dir", dir, "error", err)
			return
		}
		onChange(res)
	}, s.engine.logger)
	if err != nil {
		return err
	}
	return w.Run(ctx)
}

func (s *Service) loadEntity(ctx context.Context, entityType, uuid string) (*entity.Entity, error) {
	ent, err := s.engine.store.LoadByIdentity(ctx, entityType, uuid)
	if errors.Is(err, entity.ErrNotFound) {
		return nil, &record.Error{Code: record.ErrCodeNotFound, Message: "live record not found: " + entityType, Identity: uuid, Err: err}
	}
	if err != nil {
		return nil, fmt.Errorf("load %s/%s: %w", entityType, uuid, err)
	}
	return ent, nil
}
