package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/roach88/recsync/internal/collection"
	"github.com/roach88/recsync/internal/record"
)

// RemoveWithDependencies deletes the record file of identity from dir
// together with every record it depends on that nothing else still needs.
// Co-located assets go with their records.
//
// If a record outside the dependency closure of identity depends on it,
// nothing is deleted and a DEPENDED_UPON error is returned. An identity
// that is not in dir is a no-op. Returns the deleted paths.
func (e *Engine) RemoveWithDependencies(ctx context.Context, dir, identity string) ([]string, error) {
	e.cache.Invalidate(dir)
	coll, err := e.cache.Scanner().Discover(ctx, dir)
	if err != nil {
		return nil, err
	}
	if !coll.Has(identity) {
		return nil, nil
	}

	closure := coll.WithDependencies(identity)
	protected := protectedMembers(closure, coll.Diff(closure))
	if protected[identity] {
		target := coll.Get(identity)
		return nil, &record.Error{
			Code:     record.ErrCodeDependedUpon,
			Message:  fmt.Sprintf("still depended upon by %v", dependentsOutside(coll, closure, identity, protected)),
			Identity: identity,
			Path:     target.SourcePath,
		}
	}

	safe := closure.Filter(func(r *record.SerializedRecord) bool { return !protected[r.Identity] })
	records := safe.Records()
	slices.Reverse(records)

	var deleted []string
	for _, rec := range records {
		if err := e.fs.Remove(rec.SourcePath); err != nil {
			return deleted, record.WrapIO(rec.SourcePath, "remove record file", err)
		}
		deleted = append(deleted, rec.SourcePath)
		if asset := rec.AssetName(); asset != "" {
			path := filepath.Join(filepath.Dir(rec.SourcePath), asset)
			err := e.fs.Remove(path)
			switch {
			case err == nil:
				deleted = append(deleted, path)
			case !errors.Is(err, os.ErrNotExist):
				return deleted, record.WrapIO(path, "remove asset", err)
			}
		}
		e.logger.Info("pruned record", "uuid", rec.Identity, "path", rec.SourcePath)
	}
	e.cache.Invalidate(dir)
	return deleted, nil
}

// protectedMembers returns the closure members that must survive: those a
// survivor depends on, directly or through another protected member.
func protectedMembers(closure, survivors *collection.Collection) map[string]bool {
	protected := map[string]bool{}
	queue := survivors.Records()
	for len(queue) > 0 {
		rec := queue[0]
		queue = queue[1:]
		for dep := range rec.Dependencies {
			if protected[dep] || !closure.Has(dep) {
				continue
			}
			protected[dep] = true
			queue = append(queue, closure.Get(dep))
		}
	}
	return protected
}

// dependentsOutside lists the surviving records that keep identity alive.
func dependentsOutside(coll, closure *collection.Collection, identity string, protected map[string]bool) []string {
	var out []string
	for _, id := range coll.DependentsOf(identity) {
		if !closure.Has(id) || protected[id] {
			out = append(out, id)
		}
	}
	return out
}
