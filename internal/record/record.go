package record

import (
	"maps"
	"path"
	"slices"
	"strings"
)

// Fields maps an attribute name to its positional value list. Each value is
// a property map, e.g. {"value": "Hello", "format": "plain_text"}.
type Fields map[string][]map[string]any

// FileExt is the extension of serialized record files.
const FileExt = ".yml"

// SerializedRecord is the in-memory form of one exported record.
type SerializedRecord struct {
	RecordType    string `meta:"entity_type" validate:"required"`
	Subtype       string `meta:"bundle" validate:"required"`
	Identity      string `meta:"uuid" validate:"required"`
	DisplayLabel  string `meta:"label"`
	EntityID      int64  `meta:"entity_id"`
	Path          string `meta:"path"`
	SourcePath    string `meta:"source_path" validate:"required"`
	DefaultLocale string `meta:"default_langcode" validate:"required"`

	// Dependencies maps every directly referenced identity to its record type.
	Dependencies map[string]string `meta:"depends"`

	// Options holds plugin-id → value metadata that is not part of the
	// attribute payload.
	Options map[string]any `meta:"options"`

	Default      Fields
	Translations map[string]Fields
}

// New creates an empty record with the identifying meta fields set.
func New(recordType, subtype, identity, defaultLocale string) *SerializedRecord {
	return &SerializedRecord{
		RecordType:    recordType,
		Subtype:       subtype,
		Identity:      identity,
		DefaultLocale: defaultLocale,
		Dependencies:  map[string]string{},
		Default:       Fields{},
	}
}

// AddDependency records a reference to another record.
// Self references are dropped.
func (r *SerializedRecord) AddDependency(identity, recordType string) {
	if identity == "" || identity == r.Identity {
		return
	}
	if r.Dependencies == nil {
		r.Dependencies = map[string]string{}
	}
	r.Dependencies[identity] = recordType
}

// DependencyIdentities returns the dependency identities in sorted order.
func (r *SerializedRecord) DependencyIdentities() []string {
	return slices.Sorted(maps.Keys(r.Dependencies))
}

// SetTranslation stores the attribute payload of a non-default locale.
// Returns false if locale is the default locale.
func (r *SerializedRecord) SetTranslation(locale string, fields Fields) bool {
	if locale == r.DefaultLocale {
		return false
	}
	if r.Translations == nil {
		r.Translations = map[string]Fields{}
	}
	r.Translations[locale] = fields
	return true
}

// Locales returns the translation locales in sorted order.
func (r *SerializedRecord) Locales() []string {
	return slices.Sorted(maps.Keys(r.Translations))
}

// SetOption sets the option value of a plugin. A nil value removes it.
func (r *SerializedRecord) SetOption(pluginID string, value any) {
	if value == nil {
		delete(r.Options, pluginID)
		return
	}
	if r.Options == nil {
		r.Options = map[string]any{}
	}
	r.Options[pluginID] = value
}

// RelativePath returns the source-relative file name of the record:
// <entity_type>/<bundle>/<uuid>.yml
func (r *SerializedRecord) RelativePath() string {
	return path.Join(r.RecordType, r.Subtype, r.Identity+FileExt)
}

// AssetName returns the file name of the binary asset stored next to a file
// record, or "" for records without one.
func (r *SerializedRecord) AssetName() string {
	if r.RecordType != "file" {
		return ""
	}
	uris := r.Default["uri"]
	if len(uris) == 0 {
		return ""
	}
	uri, _ := uris[0]["value"].(string)
	if uri == "" {
		return ""
	}
	if i := strings.Index(uri, "://"); i >= 0 {
		uri = uri[i+3:]
	}
	name := path.Base(uri)
	if name == "." || name == "/" {
		return ""
	}
	return name
}

// Clone returns a deep copy of the record.
func (r *SerializedRecord) Clone() *SerializedRecord {
	c := *r
	c.Dependencies = maps.Clone(r.Dependencies)
	if r.Options != nil {
		c.Options = cloneValue(r.Options).(map[string]any)
	}
	c.Default = r.Default.Clone()
	if r.Translations != nil {
		c.Translations = make(map[string]Fields, len(r.Translations))
		for locale, fields := range r.Translations {
			c.Translations[locale] = fields.Clone()
		}
	}
	return &c
}

// Clone returns a deep copy of the fields.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for name, values := range f {
		out[name] = cloneValues(values)
	}
	return out
}

func cloneValues(values []map[string]any) []map[string]any {
	if values == nil {
		return nil
	}
	out := make([]map[string]any, len(values))
	for i, v := range values {
		out[i] = cloneValue(v).(map[string]any)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = cloneValue(e)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = cloneValue(e)
		}
		return out
	case []map[string]any:
		return cloneValues(val)
	default:
		return val
	}
}
