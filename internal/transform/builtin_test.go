package transform

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/recsync/internal/entity"
	"github.com/roach88/recsync/internal/record"
	"github.com/roach88/recsync/internal/testutil"
)

func newStoreWithTerm(t *testing.T) (*testutil.MemStore, *entity.Entity) {
	t.Helper()
	s := testutil.NewMemStore(nil)
	term := &entity.Entity{UUID: "term-uuid", Type: "taxonomy_term", Bundle: "tags", Langcode: "en"}
	require.NoError(t, s.Create(context.Background(), term))
	return s, term
}

var tagsField = entity.FieldDefinition{
	EntityType: "node",
	Name:       "field_tags",
	Type:       TypeEntityReference,
	TargetType: "taxonomy_term",
}

func TestEntityReference_ExportAddsDependency(t *testing.T) {
	s, term := newStoreWithTerm(t)
	rec := record.New("node", "article", "n1", "en")
	tc := &Context{Store: s, Field: tagsField, Record: rec}

	out, err := EntityReference{}.Export(context.Background(), tc, []map[string]any{
		{"target_id": term.ID, "weight": int64(1)},
		{"target_id": int64(999)},
	})
	require.NoError(t, err)

	assert.Equal(t, []map[string]any{
		{"target_uuid": "term-uuid", "target_type": "taxonomy_term", "weight": int64(1)},
	}, out)
	assert.Equal(t, map[string]string{"term-uuid": "taxonomy_term"}, rec.Dependencies)
}

func TestEntityReference_ImportResolvesIdentity(t *testing.T) {
	s, term := newStoreWithTerm(t)
	tc := &Context{Store: s, Field: tagsField, Record: record.New("node", "article", "n1", "en")}

	out, err := EntityReference{}.Import(context.Background(), tc, []map[string]any{
		{"target_uuid": "term-uuid", "target_type": "taxonomy_term", "weight": int64(1)},
	})
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"target_id": term.ID, "weight": int64(1)}}, out)
}

func TestEntityReference_ImportUnresolvedIsNotFound(t *testing.T) {
	s, _ := newStoreWithTerm(t)
	tc := &Context{Store: s, Field: tagsField, Record: record.New("node", "article", "n1", "en")}

	_, err := EntityReference{}.Import(context.Background(), tc, []map[string]any{
		{"target_uuid": "ghost", "target_type": "taxonomy_term"},
	})
	require.Error(t, err)
	assert.True(t, record.IsNotFound(err))
	assert.Contains(t, err.Error(), "uuid=n1")
}

func TestEntityReference_RoundTrip(t *testing.T) {
	s, term := newStoreWithTerm(t)
	tc := &Context{Store: s, Field: tagsField, Record: record.New("node", "article", "n1", "en")}
	live := []map[string]any{{"target_id": term.ID}}

	exported, err := EntityReference{}.Export(context.Background(), tc, live)
	require.NoError(t, err)
	imported, err := EntityReference{}.Import(context.Background(), tc, exported)
	require.NoError(t, err)
	assert.Equal(t, live, imported)
}

func TestLink_ExportAndImport(t *testing.T) {
	s := testutil.NewMemStore(nil)
	page := &entity.Entity{UUID: "page-uuid", Type: "node", Bundle: "page", Langcode: "en"}
	require.NoError(t, s.Create(context.Background(), page))

	rec := record.New("menu_link_content", "menu", "m1", "en")
	tc := &Context{Store: s, Field: entity.FieldDefinition{Name: "link", Type: TypeLink}, Record: rec}

	live := []map[string]any{
		{"uri": "entity:node/1", "title": "Home"},
		{"uri": "https://example.com"},
		{"uri": "entity:node/42"},
	}
	exported, err := Link{}.Export(context.Background(), tc, live)
	require.NoError(t, err)
	assert.Equal(t, "entity:node/page-uuid", exported[0]["uri"])
	assert.Equal(t, "Home", exported[0]["title"])
	assert.Equal(t, "https://example.com", exported[1]["uri"])
	assert.Equal(t, "entity:node/42", exported[2]["uri"])
	assert.Equal(t, map[string]string{"page-uuid": "node"}, rec.Dependencies)

	imported, err := Link{}.Import(context.Background(), tc, exported)
	require.NoError(t, err)
	assert.Equal(t, live, imported)

	_, err = Link{}.Import(context.Background(), tc, []map[string]any{{"uri": "entity:node/missing"}})
	assert.True(t, record.IsNotFound(err))
}

func TestParseEntityURI(t *testing.T) {
	tests := []struct {
		in       any
		typ, ref string
		ok       bool
	}{
		{"entity:node/5", "node", "5", true},
		{"entity:node/", "", "", false},
		{"entity:node", "", "", false},
		{"internal:/node/5", "", "", false},
		{42, "", "", false},
	}
	for _, tt := range tests {
		typ, ref, ok := parseEntityURI(tt.in)
		assert.Equal(t, tt.ok, ok, "%v", tt.in)
		assert.Equal(t, tt.typ, typ)
		assert.Equal(t, tt.ref, ref)
	}
}
