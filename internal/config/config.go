// Package config loads recsync settings from recsync.cue or recsync.yaml
// and RECSYNC_* environment variables.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// File names searched, in order, when no config path is given.
const (
	CUEFile  = "recsync.cue"
	YAMLFile = "recsync.yaml"
)

// Defaults.
const (
	DefaultSourceID  = "default"
	DefaultSourceDir = "content"
	DefaultDatabase  = "recsync.db"
	DefaultFilesDir  = "files"
	DefaultOwnerID   = 1
)

//go:embed schema.cue
var schemaCUE []byte

// Settings configure sources, the live store and import behaviour.
type Settings struct {
	// Sources maps a source id to its directory.
	Sources       map[string]string `json:"sources" yaml:"sources" validate:"required,min=1,dive,keys,required,endkeys,required"`
	DefaultSource string            `json:"default_source" yaml:"default_source" validate:"required"`
	Database      string            `json:"database" yaml:"database" validate:"required"`
	FilesDir      string            `json:"files_dir" yaml:"files_dir"`

	// IgnoredKeys are stripped at every level before drift comparison.
	IgnoredKeys []string `json:"ignored_keys" yaml:"ignored_keys"`

	Installing bool     `json:"installing" yaml:"installing"`
	OwnerID    int64    `json:"owner_id" yaml:"owner_id" validate:"gte=0"`
	OwnerTypes []string `json:"owner_types" yaml:"owner_types"`

	Languages []Language `json:"languages" yaml:"languages" validate:"dive"`
	Fields    []Field    `json:"fields" yaml:"fields" validate:"dive"`
	Handlers  []Handler  `json:"handlers" yaml:"handlers" validate:"dive"`
}

// Language seeds a store language.
type Language struct {
	Code    string `json:"code" yaml:"code" validate:"required"`
	Default bool   `json:"default" yaml:"default"`
}

// Field seeds a store field definition.
type Field struct {
	EntityType string `json:"entity_type" yaml:"entity_type" validate:"required"`
	Bundle     string `json:"bundle" yaml:"bundle"`
	Name       string `json:"name" yaml:"name" validate:"required"`
	Type       string `json:"type" yaml:"type" validate:"required"`
	TargetType string `json:"target_type" yaml:"target_type"`
}

// Handler registers a built-in transform handler for an additional
// attribute type.
type Handler struct {
	Type    string `json:"type" yaml:"type" validate:"required"`
	Builtin string `json:"builtin" yaml:"builtin" validate:"required,oneof=entity_reference link changed"`
	Weight  int    `json:"weight" yaml:"weight"`
}

// Default returns the settings used when nothing is configured.
func Default() *Settings {
	s := &Settings{OwnerID: DefaultOwnerID}
	s.applyDefaults()
	return s
}

func (s *Settings) applyDefaults() {
	if len(s.Sources) == 0 {
		s.Sources = map[string]string{DefaultSourceID: DefaultSourceDir}
	}
	if s.DefaultSource == "" {
		s.DefaultSource = DefaultSourceID
		if ids := slices.Collect(maps.Keys(s.Sources)); len(ids) == 1 {
			s.DefaultSource = ids[0]
		}
	}
	if s.Database == "" {
		s.Database = DefaultDatabase
	}
	if s.FilesDir == "" {
		s.FilesDir = DefaultFilesDir
	}
	if s.IgnoredKeys == nil {
		s.IgnoredKeys = []string{"entity_id"}
	}
}

// Error is a configuration error. Pos is set for CUE errors.
type Error struct {
	Path    string
	Message string
	Pos     token.Pos
	Err     error
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Load reads settings from path. An empty path searches dir for
// recsync.cue, then recsync.yaml; when neither exists the defaults are
// returned. Environment overrides are not applied.
func Load(fs afero.Fs, dir, path string) (*Settings, error) {
	if path == "" {
		for _, name := range []string{CUEFile, YAMLFile} {
			candidate := filepath.Join(dir, name)
			if ok, _ := afero.Exists(fs, candidate); ok {
				path = candidate
				break
			}
		}
		if path == "" {
			return Default(), nil
		}
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, &Error{Path: path, Message: "read config", Err: err}
	}

	var s *Settings
	switch filepath.Ext(path) {
	case ".cue":
		s, err = ParseCUE(data, path)
	case ".yaml", ".yml":
		s, err = ParseYAML(data, path)
	default:
		return nil, &Error{Path: path, Message: "unsupported config format " + filepath.Ext(path)}
	}
	if err != nil {
		return nil, err
	}
	s.resolvePaths(filepath.Dir(path))
	return s, nil
}

// ParseCUE compiles data, unifies it with the settings schema and decodes
// the result.
func ParseCUE(data []byte, filename string) (*Settings, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileBytes(schemaCUE, cue.Filename("schema.cue")).LookupPath(cue.ParsePath("#Settings"))
	if err := schema.Err(); err != nil {
		return nil, formatCUEError(filename, err)
	}

	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(filename, err)
	}
	ownerSet := v.LookupPath(cue.ParsePath("owner_id")).Exists()
	v = schema.Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(filename, err)
	}

	var s Settings
	if err := v.Decode(&s); err != nil {
		return nil, formatCUEError(filename, err)
	}
	if !ownerSet {
		s.OwnerID = DefaultOwnerID
	}
	s.applyDefaults()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// ParseYAML decodes data. Unknown keys are rejected.
func ParseYAML(data []byte, filename string) (*Settings, error) {
	// owner_id: 0 is a valid explicit value, so the default is seeded first.
	s := Settings{OwnerID: DefaultOwnerID}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return nil, &Error{Path: filename, Message: "malformed config", Err: err}
	}
	s.applyDefaults()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// formatCUEError reports the first CUE error with its position.
func formatCUEError(filename string, err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &Error{Path: filename, Message: err.Error(), Err: err}
	}
	first := errs[0]
	e := &Error{Path: filename, Message: first.Error(), Err: err}
	if pos := cueerrors.Positions(first); len(pos) > 0 {
		e.Pos = pos[0]
	}
	return e
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the settings for consistency.
func (s *Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return &Error{Message: "invalid settings", Err: err}
	}
	if _, ok := s.Sources[s.DefaultSource]; !ok {
		return &Error{Message: fmt.Sprintf("default source %q is not a configured source", s.DefaultSource)}
	}
	defaults := 0
	for _, l := range s.Languages {
		if l.Default {
			defaults++
		}
	}
	if len(s.Languages) > 0 && defaults != 1 {
		return &Error{Message: fmt.Sprintf("exactly one default language required, got %d", defaults)}
	}
	return nil
}

// resolvePaths makes relative source, database and files paths relative to
// base, the directory of the config file.
func (s *Settings) resolvePaths(base string) {
	for id, dir := range s.Sources {
		s.Sources[id] = resolve(base, dir)
	}
	s.Database = resolve(base, s.Database)
	s.FilesDir = resolve(base, s.FilesDir)
}

func resolve(base, path string) string {
	if path == "" || filepath.IsAbs(path) || path == ":memory:" {
		return path
	}
	return filepath.Join(base, path)
}

// ApplyEnv overrides settings from RECSYNC_* variables read through
// getenv. A nil getenv reads the process environment.
//
//	RECSYNC_DATABASE        database path
//	RECSYNC_FILES_DIR       live files directory
//	RECSYNC_SOURCE_DIR      directory of the default source
//	RECSYNC_DEFAULT_SOURCE  default source id
//	RECSYNC_IGNORED_KEYS    comma-separated ignored keys
//	RECSYNC_INSTALLING      install mode (bool)
//	RECSYNC_OWNER_ID        default owner id
func (s *Settings) ApplyEnv(getenv func(string) string) error {
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := getenv("RECSYNC_DATABASE"); v != "" {
		s.Database = v
	}
	if v := getenv("RECSYNC_FILES_DIR"); v != "" {
		s.FilesDir = v
	}
	if v := getenv("RECSYNC_DEFAULT_SOURCE"); v != "" {
		s.DefaultSource = v
	}
	if v := getenv("RECSYNC_SOURCE_DIR"); v != "" {
		if s.Sources == nil {
			s.Sources = map[string]string{}
		}
		s.Sources[s.DefaultSource] = v
	}
	if v := getenv("RECSYNC_IGNORED_KEYS"); v != "" {
		s.IgnoredKeys = splitList(v)
	}
	if v := getenv("RECSYNC_INSTALLING"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return &Error{Message: "RECSYNC_INSTALLING: " + err.Error(), Err: err}
		}
		s.Installing = b
	}
	if v := getenv("RECSYNC_OWNER_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return &Error{Message: "RECSYNC_OWNER_ID: " + err.Error(), Err: err}
		}
		s.OwnerID = id
	}
	return s.Validate()
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
