package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/roach88/recsync/internal/record"
)

// marshalFields converts fields to canonical JSON TEXT for storage.
// Canonical output keeps stored rows byte-stable across saves of the same
// content.
func marshalFields(f record.Fields) (string, error) {
	if f == nil {
		f = record.Fields{}
	}
	data, err := record.MarshalCanonical(f)
	if err != nil {
		return "", fmt.Errorf("marshal fields: %w", err)
	}
	return string(data), nil
}

// unmarshalFields parses stored JSON TEXT back to fields.
// Numbers are decoded via json.Number so integers above 2^53 survive.
func unmarshalFields(data string) (record.Fields, error) {
	if data == "" || data == "{}" {
		return record.Fields{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("unmarshal fields: %w", err)
	}
	f, err := record.FieldsFrom(raw)
	if err != nil {
		return nil, fmt.Errorf("unmarshal fields: %w", err)
	}
	return f, nil
}
