package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/recsync/internal/record"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "recsync", cmd.Use)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"export", "import", "status", "diff", "prune", "archive", "extract", "watch", "list"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)

	sourceFlag := cmd.PersistentFlags().Lookup("source")
	require.NotNil(t, sourceFlag)
	assert.Equal(t, "s", sourceFlag.Shorthand)
}

func TestCommandFlags(t *testing.T) {
	cmd := NewRootCommand()

	tests := []struct {
		command   string
		flag      string
		shorthand string
	}{
		{"export", "with-references", "r"},
		{"import", "force", "f"},
		{"status", "check", ""},
		{"watch", "import", ""},
	}
	for _, tt := range tests {
		t.Run(tt.command+"/"+tt.flag, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{tt.command})
			require.NoError(t, err)
			f := sub.Flags().Lookup(tt.flag)
			require.NotNil(t, f)
			assert.Equal(t, tt.shorthand, f.Shorthand)
		})
	}
}

func TestInvalidFormat(t *testing.T) {
	_, err := execute(t, "--format", "xml", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

// project is a temporary directory holding a settings file, a database
// and two sources.
type project struct {
	dir    string
	config string
}

const projectConfig = `sources:
  default: content
  other: other
default_source: default
database: data/recsync.db
files_dir: files
languages:
  - code: en
    default: true
  - code: fr
fields:
  - entity_type: node
    name: field_ref
    type: entity_reference
    target_type: node
`

func newProject(t *testing.T) *project {
	t.Helper()
	dir := t.TempDir()
	cfg := filepath.Join(dir, "recsync.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte(projectConfig), 0o644))
	return &project{dir: dir, config: cfg}
}

// writeNode writes a node/page record file into the default source.
func (p *project) writeNode(t *testing.T, id string, deps ...string) string {
	t.Helper()
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
	data, err := r.Marshal()
	require.NoError(t, err)

	path := filepath.Join(p.dir, "content", filepath.FromSlash(r.RelativePath()))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// run executes a command against the project with JSON output.
func (p *project) run(t *testing.T, args ...string) (*jsonResponse, error) {
	t.Helper()
	out, err := execute(t, append([]string{"--config", p.config, "--format", "json"}, args...)...)
	var resp jsonResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	return &resp, err
}

type jsonResponse struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *CLIError       `json:"error"`
}

func (r *jsonResponse) decode(t *testing.T, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.Data, v))
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestImportStatusDiff(t *testing.T) {
	p := newProject(t)
	p.writeNode(t, "n1")
	p.writeNode(t, "n2", "n1")

	resp, err := p.run(t, "import")
	require.NoError(t, err)
	var imported struct {
		Created []string `json:"created"`
		Updated []string `json:"updated"`
		Skipped []string `json:"skipped"`
	}
	resp.decode(t, &imported)
	assert.Equal(t, []string{"n1", "n2"}, imported.Created)

	resp, err = p.run(t, "import")
	require.NoError(t, err)
	resp.decode(t, &imported)
	assert.Empty(t, imported.Created)
	assert.ElementsMatch(t, []string{"n1", "n2"}, imported.Skipped)

	resp, err = p.run(t, "import", "--force")
	require.NoError(t, err)
	resp.decode(t, &imported)
	assert.ElementsMatch(t, []string{"n1", "n2"}, imported.Updated)

	resp, err = p.run(t, "status", "--check")
	require.NoError(t, err)
	var status StatusResult
	resp.decode(t, &status)
	assert.Equal(t, map[string]int{"in_sync": 2}, status.Counts)

	_, err = p.run(t, "diff", "node", "n2")
	require.NoError(t, err)
}

func TestStatus_DriftFailsCheck(t *testing.T) {
	p := newProject(t)
	p.writeNode(t, "n1")
	_, err := p.run(t, "import")
	require.NoError(t, err)

	// Rewrite the file with a different title.
	r := record.New("node", "page", "n1", "en")
	r.DisplayLabel = "n1"
	r.Default = record.Fields{"title": {{"value": "edited"}}}
	data, err := r.Marshal()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(p.dir, "content", "node", "page", "n1.yml"), data, 0o644))

	resp, err := p.run(t, "status", "--check")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	var status StatusResult
	resp.decode(t, &status)
	assert.Equal(t, 1, status.Counts["out_of_sync"])

	resp, err = p.run(t, "diff", "node", "n1")
	require.Error(t, err)
	var diff DiffResult
	resp.decode(t, &diff)
	assert.Contains(t, diff.Diff, "edited")
}

func TestList_DependencyOrder(t *testing.T) {
	p := newProject(t)
	p.writeNode(t, "a", "b")
	p.writeNode(t, "b")

	resp, err := p.run(t, "list")
	require.NoError(t, err)
	var list ListResult
	resp.decode(t, &list)
	require.Len(t, list.Records, 2)
	assert.Equal(t, "b", list.Records[0].UUID)
	assert.Equal(t, "a", list.Records[1].UUID)
	assert.Equal(t, []string{"b"}, list.Records[1].Depends)
}

func TestPrune(t *testing.T) {
	p := newProject(t)
	n1 := p.writeNode(t, "n1")
	n2 := p.writeNode(t, "n2", "n1")

	resp, err := p.run(t, "prune", "n1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeDependedUpon, resp.Error.Code)
	assert.FileExists(t, n1)

	resp, err = p.run(t, "prune", "n2")
	require.NoError(t, err)
	var pruned PruneResult
	resp.decode(t, &pruned)
	assert.ElementsMatch(t, []string{n1, n2}, pruned.Removed)
	assert.NoFileExists(t, n1)
	assert.NoFileExists(t, n2)
}

func TestExport_AfterImport(t *testing.T) {
	p := newProject(t)
	p.writeNode(t, "n1")
	p.writeNode(t, "n2", "n1")
	_, err := p.run(t, "import")
	require.NoError(t, err)

	resp, err := p.run(t, "--source", "other", "export", "node", "n2", "--with-references")
	require.NoError(t, err)
	var exported ExportResult
	resp.decode(t, &exported)
	assert.Equal(t, "other", exported.Source)
	assert.Equal(t, []string{
		filepath.Join(p.dir, "other", "node", "page", "n1.yml"),
		filepath.Join(p.dir, "other", "node", "page", "n2.yml"),
	}, exported.Paths)

	resp, err = p.run(t, "--source", "other", "status")
	require.NoError(t, err)
	var status StatusResult
	resp.decode(t, &status)
	assert.Equal(t, map[string]int{"in_sync": 2}, status.Counts)
}

func TestArchiveExtract(t *testing.T) {
	p := newProject(t)
	p.writeNode(t, "n1")
	p.writeNode(t, "n2", "n1")

	out := filepath.Join(p.dir, "content.tar.gz")
	_, err := p.run(t, "archive", out)
	require.NoError(t, err)
	assert.FileExists(t, out)

	resp, err := p.run(t, "--source", "other", "extract", out)
	require.NoError(t, err)
	var extracted ExtractResult
	resp.decode(t, &extracted)
	assert.Len(t, extracted.Files, 2)

	resp, err = p.run(t, "--source", "other", "list")
	require.NoError(t, err)
	var list ListResult
	resp.decode(t, &list)
	require.Len(t, list.Records, 2)
	assert.Equal(t, "n1", list.Records[0].UUID)
}

func TestUnknownSource(t *testing.T) {
	p := newProject(t)

	resp, err := p.run(t, "--source", "missing", "list")
	require.Error(t, err)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
}

func TestInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "recsync.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("sources:\n  default: content\nunknown_key: true\n"), 0o644))

	out, err := execute(t, "--config", cfg, "--format", "json", "list")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var resp jsonResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeConfig, resp.Error.Code)
}

func TestWatch_StopsOnCancel(t *testing.T) {
	p := newProject(t)
	p.writeNode(t, "n1")

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	cmd := NewRootCommand()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--config", p.config, "watch"})
	require.NoError(t, cmd.ExecuteContext(ctx))
	assert.Contains(t, buf.String(), "Watching default")
}
