package engine

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/roach88/recsync/internal/entity"
	"github.com/roach88/recsync/internal/plugin"
	"github.com/roach88/recsync/internal/record"
	"github.com/roach88/recsync/internal/testutil"
	"github.com/roach88/recsync/internal/transform"
)

const (
	srcDir   = "/content"
	filesDir = "/files"
)

type fixture struct {
	store *testutil.MemStore
	fs    afero.Fs
	eng   *Engine
	svc   *Service
	clock *testutil.DeterministicClock
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	s := testutil.NewMemStore(nil)
	s.SetLanguages(entity.Language{Code: "en", Default: true}, entity.Language{Code: "fr"})
	s.DefineField(entity.FieldDefinition{
		EntityType: "node",
		Name:       "field_ref",
		Type:       transform.TypeEntityReference,
		TargetType: "node",
	})

	fs := afero.NewMemMapFs()
	clock := testutil.NewDeterministicClock()
	base := []Option{
		WithFs(fs),
		WithSources(map[string]string{DefaultSource: srcDir, "other": "/other"}, DefaultSource),
		WithFilesDir(filesDir),
		WithPlugins(plugin.Default(clock.Now)),
	}
	eng := New(s, append(base, opts...)...)
	return &fixture{store: s, fs: fs, eng: eng, svc: NewService(eng), clock: clock}
}

// node builds a node/page record whose field_ref points at deps.
func node(id string, deps ...string) *record.SerializedRecord {
	r := record.New("node", "page", id, "en")
	r.DisplayLabel = id
	r.Default = record.Fields{"title": {{"value": id}}}
	for _, d := range deps {
		r.AddDependency(d, "node")
		r.Default["field_ref"] = append(r.Default["field_ref"], map[string]any{
			"target_uuid": d,
			"target_type": "node",
		})
	}
	r.SourcePath = filepath.Join(srcDir, "node", "page", id+record.FileExt)
	return r
}

// writeRecord writes r to its location under dir and returns the path.
func writeRecord(t *testing.T, fs afero.Fs, dir string, r *record.SerializedRecord) string {
	t.Helper()
	data, err := r.Marshal()
	require.NoError(t, err)
	path := filepath.Join(dir, filepath.FromSlash(r.RelativePath()))
	require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, afero.WriteFile(fs, path, data, 0o644))
	return path
}

func (f *fixture) write(t *testing.T, recs ...*record.SerializedRecord) []string {
	t.Helper()
	paths := make([]string, len(recs))
	for i, r := range recs {
		paths[i] = writeRecord(t, f.fs, srcDir, r)
	}
	f.eng.Cache().Invalidate(srcDir)
	return paths
}

func (f *fixture) live(t *testing.T, uuid string) *entity.Entity {
	t.Helper()
	e, err := f.store.LoadByIdentity(context.Background(), "node", uuid)
	require.NoError(t, err)
	return e
}

func exists(t *testing.T, fs afero.Fs, path string) bool {
	t.Helper()
	ok, err := afero.Exists(fs, path)
	require.NoError(t, err)
	return ok
}
