package record

import (
	"bytes"
	"fmt"
	"math"
	"slices"
	"strconv"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"
)

// Canonical returns the canonical structure of the record: the map that is
// compared when classifying drift and hashed for fingerprints.
//
// Empty options and empty translations are omitted entirely, so a record
// without overrides compares equal to one that never had the keys.
func (r *SerializedRecord) Canonical() map[string]any {
	depends := make(map[string]any, len(r.Dependencies))
	for id, typ := range r.Dependencies {
		depends[id] = typ
	}

	meta := map[string]any{
		"entity_type":      r.RecordType,
		"bundle":           r.Subtype,
		"uuid":             r.Identity,
		"default_langcode": r.DefaultLocale,
		"depends":          depends,
	}
	if r.EntityID != 0 {
		meta["entity_id"] = r.EntityID
	}
	if r.DisplayLabel != "" {
		meta["label"] = r.DisplayLabel
	}
	if r.Path != "" {
		meta["path"] = r.Path
	}
	if len(r.Options) > 0 {
		meta["options"] = Normalize(r.Options)
	}

	out := map[string]any{
		"_meta":   meta,
		"default": normalizeFields(r.Default),
	}
	if len(r.Translations) > 0 {
		translations := make(map[string]any, len(r.Translations))
		for locale, fields := range r.Translations {
			translations[locale] = normalizeFields(fields)
		}
		out["translations"] = translations
	}
	return out
}

// MarshalCanonical produces canonical JSON for hashing.
//
// Differences from json.Marshal:
//  1. Object keys sorted by UTF-16 code units (not UTF-8 bytes)
//  2. No HTML escaping (< > & are NOT escaped)
//  3. Strings are NFC normalized
//  4. Floats use the shortest representation that round-trips
//
// Values are normalized first, so YAML- and JSON-decoded inputs with the
// same content produce the same bytes.
func MarshalCanonical(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, Normalize(v)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case string:
		writeCanonicalString(buf, val)
	case bool:
		buf.WriteString(strconv.FormatBool(val))
	case int64:
		buf.WriteString(strconv.FormatInt(val, 10))
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return fmt.Errorf("non-finite number in canonical JSON: %v", val)
		}
		buf.WriteString(strconv.FormatFloat(val, 'g', -1, 64))
	case []any:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, elem); err != nil {
				return fmt.Errorf("array[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		buf.WriteByte('{')
		for i, k := range sortedKeys(val) {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeCanonicalString(buf, k)
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return fmt.Errorf("value for key %q: %w", k, err)
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
	return nil
}

// writeCanonicalString escapes only the quote, backslash and control
// characters, after NFC normalization.
func writeCanonicalString(buf *bytes.Buffer, s string) {
	const hex = "0123456789abcdef"
	buf.WriteByte('"')
	for _, r := range norm.NFC.String(s) {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if r < 0x20 {
				buf.WriteString(`\u00`)
				buf.WriteByte(hex[r>>4])
				buf.WriteByte(hex[r&0xF])
				continue
			}
			buf.WriteRune(r)
		}
	}
	buf.WriteByte('"')
}

// sortedKeys returns map keys in UTF-16 code unit order.
// Go's string comparison uses UTF-8, which orders supplementary characters
// differently.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareUTF16)
	return keys
}

func compareUTF16(a, b string) int {
	return slices.Compare(utf16.Encode([]rune(a)), utf16.Encode([]rune(b)))
}
