package config

import (
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCUE = `
sources: {
	default: "content"
	staging: "/srv/staging"
}
database:     "db/recsync.db"
ignored_keys: ["entity_id", "revision"]
owner_types: ["node"]
languages: [{code: "en", default: true}, {code: "fr"}]
fields: [{
	entity_type: "node"
	name:        "field_tags"
	type:        "entity_reference"
	target_type: "taxonomy_term"
}]
handlers: [{type: "file_ref", builtin: "entity_reference", weight: 5}]
`

const sampleYAML = `
sources:
  default: content
  staging: /srv/staging
database: db/recsync.db
ignored_keys: [entity_id, revision]
owner_types: [node]
languages:
  - code: en
    default: true
  - code: fr
fields:
  - entity_type: node
    name: field_tags
    type: entity_reference
    target_type: taxonomy_term
handlers:
  - type: file_ref
    builtin: entity_reference
    weight: 5
`

func expectedSample() *Settings {
	return &Settings{
		Sources:       map[string]string{"default": "content", "staging": "/srv/staging"},
		DefaultSource: "default",
		Database:      "db/recsync.db",
		FilesDir:      DefaultFilesDir,
		IgnoredKeys:   []string{"entity_id", "revision"},
		OwnerID:       DefaultOwnerID,
		OwnerTypes:    []string{"node"},
		Languages:     []Language{{Code: "en", Default: true}, {Code: "fr"}},
		Fields: []Field{{
			EntityType: "node",
			Name:       "field_tags",
			Type:       "entity_reference",
			TargetType: "taxonomy_term",
		}},
		Handlers: []Handler{{Type: "file_ref", Builtin: "entity_reference", Weight: 5}},
	}
}

func TestDefault(t *testing.T) {
	s := Default()
	assert.Equal(t, map[string]string{"default": "content"}, s.Sources)
	assert.Equal(t, "default", s.DefaultSource)
	assert.Equal(t, DefaultDatabase, s.Database)
	assert.Equal(t, []string{"entity_id"}, s.IgnoredKeys)
	assert.Equal(t, int64(DefaultOwnerID), s.OwnerID)
	assert.NoError(t, s.Validate())
}

func TestParseCUE(t *testing.T) {
	s, err := ParseCUE([]byte(sampleCUE), "recsync.cue")
	require.NoError(t, err)
	assert.Equal(t, expectedSample(), s)
}

func TestParseCUE_SchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unknown key", `databse: "x.db"`},
		{"wrong type", `installing: "yes"`},
		{"unknown builtin", `handlers: [{type: "x", builtin: "nope"}]`},
		{"negative owner", `owner_id: -1`},
		{"syntax", `sources: {`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCUE([]byte(tt.src), "recsync.cue")
			require.Error(t, err)
			var ce *Error
			assert.True(t, errors.As(err, &ce))
		})
	}
}

func TestParseYAML(t *testing.T) {
	s, err := ParseYAML([]byte(sampleYAML), "recsync.yaml")
	require.NoError(t, err)
	assert.Equal(t, expectedSample(), s)
}

func TestParseYAML_UnknownKey(t *testing.T) {
	_, err := ParseYAML([]byte("databse: x.db\n"), "recsync.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed config")
}

func TestParseYAML_Empty(t *testing.T) {
	s, err := ParseYAML(nil, "recsync.yaml")
	require.NoError(t, err)
	assert.Equal(t, Default(), s)
}

func TestParse_SingleSourceBecomesDefault(t *testing.T) {
	s, err := ParseYAML([]byte("sources:\n  main: content\n"), "recsync.yaml")
	require.NoError(t, err)
	assert.Equal(t, "main", s.DefaultSource)
}

func TestParse_ExplicitZeroOwner(t *testing.T) {
	y, err := ParseYAML([]byte("owner_id: 0\n"), "recsync.yml")
	require.NoError(t, err)
	assert.Equal(t, int64(0), y.OwnerID)

	c, err := ParseCUE([]byte("owner_id: 0\n"), "recsync.cue")
	require.NoError(t, err)
	assert.Equal(t, int64(0), c.OwnerID)

	unset, err := ParseCUE([]byte(`database: "x.db"`), "recsync.cue")
	require.NoError(t, err)
	assert.Equal(t, int64(DefaultOwnerID), unset.OwnerID)
}

func TestLoad(t *testing.T) {
	t.Run("no config file", func(t *testing.T) {
		s, err := Load(afero.NewMemMapFs(), "/proj", "")
		require.NoError(t, err)
		assert.Equal(t, Default(), s)
	})

	t.Run("cue preferred over yaml", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fs, "/proj/recsync.cue", []byte(`database: "from-cue.db"`), 0o644))
		require.NoError(t, afero.WriteFile(fs, "/proj/recsync.yaml", []byte("database: from-yaml.db\n"), 0o644))

		s, err := Load(fs, "/proj", "")
		require.NoError(t, err)
		assert.Equal(t, "/proj/from-cue.db", s.Database)
	})

	t.Run("relative paths resolve against the config file", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fs, "/etc/recsync/settings.yaml", []byte(sampleYAML), 0o644))

		s, err := Load(fs, "/proj", "/etc/recsync/settings.yaml")
		require.NoError(t, err)
		assert.Equal(t, "/etc/recsync/content", s.Sources["default"])
		assert.Equal(t, "/srv/staging", s.Sources["staging"])
		assert.Equal(t, "/etc/recsync/db/recsync.db", s.Database)
		assert.Equal(t, "/etc/recsync/files", s.FilesDir)
	})

	t.Run("unsupported extension", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fs, "/proj/recsync.toml", []byte(""), 0o644))
		_, err := Load(fs, "/proj", "/proj/recsync.toml")
		assert.Error(t, err)
	})

	t.Run("missing explicit file", func(t *testing.T) {
		_, err := Load(afero.NewMemMapFs(), "/proj", "/proj/missing.yaml")
		assert.Error(t, err)
	})
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"RECSYNC_DATABASE":     "/tmp/x.db",
		"RECSYNC_SOURCE_DIR":   "/data/content",
		"RECSYNC_IGNORED_KEYS": "entity_id, revision ,",
		"RECSYNC_INSTALLING":   "true",
		"RECSYNC_OWNER_ID":     "5",
	}
	s := Default()
	require.NoError(t, s.ApplyEnv(func(k string) string { return env[k] }))

	assert.Equal(t, "/tmp/x.db", s.Database)
	assert.Equal(t, "/data/content", s.Sources["default"])
	assert.Equal(t, []string{"entity_id", "revision"}, s.IgnoredKeys)
	assert.True(t, s.Installing)
	assert.Equal(t, int64(5), s.OwnerID)
}

func TestApplyEnv_Invalid(t *testing.T) {
	s := Default()
	err := s.ApplyEnv(func(k string) string {
		if k == "RECSYNC_OWNER_ID" {
			return "abc"
		}
		return ""
	})
	assert.Error(t, err)

	s = Default()
	err = s.ApplyEnv(func(k string) string {
		if k == "RECSYNC_DEFAULT_SOURCE" {
			return "staging"
		}
		return ""
	})
	assert.ErrorContains(t, err, "not a configured source")
}

func TestValidate_DefaultLanguage(t *testing.T) {
	s := Default()
	s.Languages = []Language{{Code: "en", Default: true}, {Code: "fr", Default: true}}
	assert.ErrorContains(t, s.Validate(), "exactly one default language")

	s.Languages = []Language{{Code: "en"}}
	assert.Error(t, s.Validate())
}
