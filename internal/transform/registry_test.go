package transform

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/recsync/internal/entity"
	"github.com/roach88/recsync/internal/record"
)

// tagHandler appends its tag to the "trail" property of every value.
type tagHandler struct{ tag string }

func (h tagHandler) Export(_ context.Context, _ *Context, values []map[string]any) ([]map[string]any, error) {
	return h.mark(values), nil
}

func (h tagHandler) Import(_ context.Context, _ *Context, values []map[string]any) ([]map[string]any, error) {
	return h.mark(values), nil
}

func (h tagHandler) mark(values []map[string]any) []map[string]any {
	out := make([]map[string]any, len(values))
	for i, v := range values {
		item := copyProps(v)
		trail, _ := item["trail"].(string)
		item["trail"] = trail + h.tag
		out[i] = item
	}
	return out
}

func TestRegistry_OrdersByWeightThenRegistration(t *testing.T) {
	r := NewRegistry()
	r.Register("string", tagHandler{"c"}, 10)
	r.Register("string", tagHandler{"a"}, -5)
	r.Register("string", tagHandler{"b"}, 0)
	r.Register("string", tagHandler{"b2"}, 0)

	defs := []entity.FieldDefinition{{Name: "title", Type: "string"}}
	out, err := r.Apply(context.Background(), Export, &Context{}, defs, "en", record.Fields{
		"title": {{"value": "x"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "abb2c", out["title"][0]["trail"])
}

func TestRegistry_RegisterAfterDispatchReorders(t *testing.T) {
	r := NewRegistry()
	r.Register("string", tagHandler{"b"}, 0)
	require.Len(t, r.Handlers("string"), 1)

	r.Register("string", tagHandler{"a"}, -1)
	hs := r.Handlers("string")
	require.Len(t, hs, 2)
	assert.Equal(t, tagHandler{"a"}, hs[0])
}

func TestRegistry_UndefinedFieldsPassThrough(t *testing.T) {
	r := NewRegistry()
	r.Register("string", tagHandler{"x"}, 0)

	in := record.Fields{"body": {{"value": "b"}}, "title": {{"value": "t"}}}
	defs := []entity.FieldDefinition{{Name: "body", Type: "text"}}

	out, err := r.Apply(context.Background(), Import, &Context{}, defs, "en", in)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestRegistry_OmitDropsAttribute(t *testing.T) {
	r := Default()
	defs := []entity.FieldDefinition{{Name: "changed", Type: TypeChanged}}
	in := record.Fields{"changed": {{"value": int64(1700000000)}}, "title": {{"value": "t"}}}

	out, err := r.Apply(context.Background(), Export, &Context{}, defs, "en", in)
	require.NoError(t, err)
	assert.NotContains(t, out, "changed")
	assert.Contains(t, out, "title")

	back, err := r.Apply(context.Background(), Import, &Context{}, defs, "en", in)
	require.NoError(t, err)
	assert.Contains(t, back, "changed")
}

func TestDefault_TypeTags(t *testing.T) {
	assert.Equal(t, []string{TypeChanged, TypeEntityReference, TypeLink}, Default().TypeTags())
	_, ok := Builtin("nope")
	assert.False(t, ok)
}

func TestDirection_String(t *testing.T) {
	assert.Equal(t, "export", Export.String())
	assert.Equal(t, "import", Import.String())
}
