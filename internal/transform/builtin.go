package transform

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/recsync/internal/entity"
	"github.com/roach88/recsync/internal/record"
)

// Type tags of the built-in handlers.
const (
	TypeEntityReference = "entity_reference"
	TypeLink            = "link"
	TypeChanged         = "changed"
)

var builtins = map[string]Handler{
	TypeEntityReference: EntityReference{},
	TypeLink:            Link{},
	TypeChanged:         Changed{},
}

// Builtin returns the built-in handler registered under name.
func Builtin(name string) (Handler, bool) {
	h, ok := builtins[name]
	return h, ok
}

// BuiltinNames returns the names of the built-in handlers, sorted.
func BuiltinNames() []string {
	return []string{TypeChanged, TypeEntityReference, TypeLink}
}

// EntityReference swaps store-local target ids for portable identities.
//
//	live:       {target_id: 3}
//	serialized: {target_uuid: "…", target_type: "taxonomy_term"}
//
// Other properties pass through. On export each resolved target becomes a
// dependency of the record; references to missing targets are dropped.
type EntityReference struct{}

func (EntityReference) Export(ctx context.Context, tc *Context, values []map[string]any) ([]map[string]any, error) {
	targetType := tc.Field.TargetType
	out := make([]map[string]any, 0, len(values))
	for _, v := range values {
		id, ok := toInt64(v["target_id"])
		if !ok {
			out = append(out, copyProps(v))
			continue
		}
		itemType := targetType
		if t, ok := v["target_type"].(string); ok && t != "" {
			itemType = t
		}
		target, err := tc.Store.LoadByID(ctx, itemType, id)
		if errors.Is(err, entity.ErrNotFound) {
			if tc.Logger != nil {
				tc.Logger.Warn("dropping reference to missing entity",
					"field", tc.Field.Name, "target_type", itemType, "target_id", id)
			}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("resolve %s reference %s/%d: %w", tc.Field.Name, itemType, id, err)
		}

		item := copyProps(v)
		delete(item, "target_id")
		item["target_uuid"] = target.UUID
		item["target_type"] = itemType
		out = append(out, item)
		if tc.Record != nil {
			tc.Record.AddDependency(target.UUID, itemType)
		}
	}
	return out, nil
}

func (EntityReference) Import(ctx context.Context, tc *Context, values []map[string]any) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(values))
	for _, v := range values {
		uuid, ok := v["target_uuid"].(string)
		if !ok || uuid == "" {
			out = append(out, copyProps(v))
			continue
		}
		itemType := tc.Field.TargetType
		if t, ok := v["target_type"].(string); ok && t != "" {
			itemType = t
		}
		target, err := tc.Store.LoadByIdentity(ctx, itemType, uuid)
		if err != nil {
			return nil, unresolved(tc, itemType, uuid, err)
		}

		item := copyProps(v)
		delete(item, "target_uuid")
		if itemType == tc.Field.TargetType {
			delete(item, "target_type")
		}
		item["target_id"] = target.ID
		out = append(out, item)
	}
	return out, nil
}

// Link rewrites internal entity links between entity:<type>/<id> and
// entity:<type>/<uuid>. Other URIs pass through.
type Link struct{}

const entityScheme = "entity:"

func (Link) Export(ctx context.Context, tc *Context, values []map[string]any) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(values))
	for _, v := range values {
		item := copyProps(v)
		entityType, ref, ok := parseEntityURI(v["uri"])
		if ok {
			if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
				target, err := tc.Store.LoadByID(ctx, entityType, id)
				switch {
				case errors.Is(err, entity.ErrNotFound):
					// Keep the numeric link; it cannot be made portable.
				case err != nil:
					return nil, fmt.Errorf("resolve %s link %s/%d: %w", tc.Field.Name, entityType, id, err)
				default:
					item["uri"] = entityScheme + entityType + "/" + target.UUID
					if tc.Record != nil {
						tc.Record.AddDependency(target.UUID, entityType)
					}
				}
			}
		}
		out = append(out, item)
	}
	return out, nil
}

func (Link) Import(ctx context.Context, tc *Context, values []map[string]any) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(values))
	for _, v := range values {
		item := copyProps(v)
		entityType, ref, ok := parseEntityURI(v["uri"])
		if ok {
			if _, err := strconv.ParseInt(ref, 10, 64); err != nil {
				target, err := tc.Store.LoadByIdentity(ctx, entityType, ref)
				if err != nil {
					return nil, unresolved(tc, entityType, ref, err)
				}
				item["uri"] = entityScheme + entityType + "/" + strconv.FormatInt(target.ID, 10)
			}
		}
		out = append(out, item)
	}
	return out, nil
}

// Changed drops the volatile last-changed timestamp from exports so it does
// not register as drift. Imports leave the store's value alone.
type Changed struct{}

func (Changed) Export(context.Context, *Context, []map[string]any) ([]map[string]any, error) {
	return nil, ErrOmit
}

func (Changed) Import(_ context.Context, _ *Context, values []map[string]any) ([]map[string]any, error) {
	return values, nil
}

func parseEntityURI(v any) (entityType, ref string, ok bool) {
	uri, isString := v.(string)
	if !isString || !strings.HasPrefix(uri, entityScheme) {
		return "", "", false
	}
	entityType, ref, ok = strings.Cut(strings.TrimPrefix(uri, entityScheme), "/")
	if !ok || entityType == "" || ref == "" {
		return "", "", false
	}
	return entityType, ref, true
}

func unresolved(tc *Context, entityType, uuid string, err error) error {
	if !errors.Is(err, entity.ErrNotFound) {
		return fmt.Errorf("resolve %s/%s: %w", entityType, uuid, err)
	}
	identity := ""
	if tc.Record != nil {
		identity = tc.Record.Identity
	}
	return &record.Error{
		Code:     record.ErrCodeNotFound,
		Message:  fmt.Sprintf("%s references %s/%s which does not exist", tc.Field.Name, entityType, uuid),
		Identity: identity,
		Err:      err,
	}
}

func copyProps(v map[string]any) map[string]any {
	out := make(map[string]any, len(v))
	for k, e := range v {
		out[k] = e
	}
	return out
}

func toInt64(v any) (int64, bool) {
	switch n := record.Normalize(v).(type) {
	case int64:
		return n, true
	case string:
		id, err := strconv.ParseInt(n, 10, 64)
		return id, err == nil
	default:
		return 0, false
	}
}
