package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripKeys_AllLevels(t *testing.T) {
	in := map[string]any{
		"_meta": map[string]any{"uuid": "n1", "entity_id": int64(4)},
		"default": map[string]any{
			"title": []any{map[string]any{"value": "x", "replica_of": "y"}},
			"body":  []map[string]any{{"value": "b", "replica_of": "z"}},
		},
		"replica_of": "top",
	}

	got := StripKeys(in, []string{"entity_id", "replica_of"})

	assert.Equal(t, map[string]any{
		"_meta": map[string]any{"uuid": "n1"},
		"default": map[string]any{
			"title": []any{map[string]any{"value": "x"}},
			"body":  []any{map[string]any{"value": "b"}},
		},
	}, got)

	// Input untouched.
	assert.Contains(t, in, "replica_of")
}

func TestStripKeys_NoKeysIsIdentity(t *testing.T) {
	in := map[string]any{"a": 1}
	assert.Equal(t, in, StripKeys(in, nil))
}
