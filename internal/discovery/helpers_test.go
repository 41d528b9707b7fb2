package discovery

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/roach88/recsync/internal/record"
)

const srcDir = "/content"

func node(id string, deps ...string) *record.SerializedRecord {
	r := record.New("node", "page", id, "en")
	r.Default = record.Fields{"title": {{"value": id}}}
	for _, d := range deps {
		r.AddDependency(d, "node")
	}
	return r
}

func writeRecord(t *testing.T, fs afero.Fs, dir, name string, r *record.SerializedRecord) string {
	t.Helper()
	data, err := r.Marshal()
	require.NoError(t, err)
	path := filepath.Join(dir, r.RecordType, r.Subtype, name)
	require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, afero.WriteFile(fs, path, data, 0o644))
	return path
}

func writeRaw(t *testing.T, fs afero.Fs, path, content string) {
	t.Helper()
	require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
}
