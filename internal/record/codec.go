package record

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// file is the on-disk layout of a serialized record.
// Field order here is the key order of written files.
type file struct {
	Meta         fileMeta          `yaml:"_meta"`
	Default      Fields            `yaml:"default"`
	Translations map[string]Fields `yaml:"translations,omitempty"`
}

type fileMeta struct {
	EntityType      string            `yaml:"entity_type"`
	Bundle          string            `yaml:"bundle"`
	EntityID        int64             `yaml:"entity_id,omitempty"`
	Label           string            `yaml:"label,omitempty"`
	Path            string            `yaml:"path,omitempty"`
	UUID            string            `yaml:"uuid"`
	DefaultLangcode string            `yaml:"default_langcode"`
	Depends         map[string]string `yaml:"depends"`
	Options         map[string]any    `yaml:"options,omitempty"`
}

// Marshal encodes the record in its file format.
// Empty options and translations are omitted.
func (r *SerializedRecord) Marshal() ([]byte, error) {
	depends := r.Dependencies
	if depends == nil {
		depends = map[string]string{}
	}
	defaults := r.Default
	if defaults == nil {
		defaults = Fields{}
	}
	f := file{
		Meta: fileMeta{
			EntityType:      r.RecordType,
			Bundle:          r.Subtype,
			EntityID:        r.EntityID,
			Label:           r.DisplayLabel,
			Path:            r.Path,
			UUID:            r.Identity,
			DefaultLangcode: r.DefaultLocale,
			Depends:         depends,
		},
		Default: defaults,
	}
	if len(r.Options) > 0 {
		f.Meta.Options = r.Options
	}
	if len(r.Translations) > 0 {
		f.Translations = r.Translations
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&f); err != nil {
		return nil, fmt.Errorf("marshal %s: %w", r.Identity, err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("marshal %s: %w", r.Identity, err)
	}
	return buf.Bytes(), nil
}

// Parse decodes a record from its file format.
// Unknown keys are rejected so typos in hand-edited files surface early.
func Parse(data []byte) (*SerializedRecord, error) {
	var f file
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &Error{Code: ErrCodeInvalidInput, Message: "empty record file"}
		}
		return nil, &Error{Code: ErrCodeInvalidInput, Message: "malformed record file", Err: err}
	}

	r := &SerializedRecord{
		RecordType:    f.Meta.EntityType,
		Subtype:       f.Meta.Bundle,
		Identity:      f.Meta.UUID,
		DisplayLabel:  f.Meta.Label,
		EntityID:      f.Meta.EntityID,
		Path:          f.Meta.Path,
		DefaultLocale: f.Meta.DefaultLangcode,
		Dependencies:  f.Meta.Depends,
		Default:       normalizeFieldValues(f.Default),
	}
	if r.Dependencies == nil {
		r.Dependencies = map[string]string{}
	}
	delete(r.Dependencies, r.Identity)
	if len(f.Meta.Options) > 0 {
		r.Options, _ = Normalize(f.Meta.Options).(map[string]any)
	}
	if len(f.Translations) > 0 {
		r.Translations = make(map[string]Fields, len(f.Translations))
		for locale, fields := range f.Translations {
			r.Translations[locale] = normalizeFieldValues(fields)
		}
	}
	return r, nil
}

// Load reads and parses the record file at path. SourcePath is set to path.
func Load(fs afero.Fs, path string) (*SerializedRecord, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &Error{Code: ErrCodeNotFound, Message: "record file not found", Path: path, Err: err}
		}
		return nil, WrapIO(path, "read record file", err)
	}
	r, err := Parse(data)
	if err != nil {
		var re *Error
		if errors.As(err, &re) {
			re.Path = path
			return nil, re
		}
		return nil, err
	}
	r.SourcePath = path
	return r, nil
}

func normalizeFieldValues(f Fields) Fields {
	out := make(Fields, len(f))
	for name, values := range f {
		out[name] = NormalizeValues(values)
	}
	return out
}
