// Package transform rewrites attribute values between their live form and
// their portable serialized form.
//
// Handlers are registered explicitly against an attribute type tag with a
// weight. For each attribute, every handler registered for its type runs in
// ascending weight order (registration order breaks ties), each receiving
// the previous handler's output.
package transform

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"
	"sort"
	"sync"

	"github.com/roach88/recsync/internal/entity"
	"github.com/roach88/recsync/internal/record"
)

// ErrOmit is returned by a handler to drop the whole attribute from the
// output.
var ErrOmit = errors.New("omit attribute")

// Context carries what a handler needs to rewrite one attribute.
type Context struct {
	Store  entity.Store
	Logger *slog.Logger

	// Field is the definition of the attribute being transformed.
	Field entity.FieldDefinition

	// Langcode is the language of the values: the default language or a
	// translation.
	Langcode string

	// Record is the serialized record being built (export) or read
	// (import). Export handlers register dependencies on it.
	Record *record.SerializedRecord

	// Entity is the live entity being read (export) or written (import).
	Entity *entity.Entity
}

// Handler converts the positional values of one attribute.
// Implementations must not mutate values; they return a new list.
type Handler interface {
	Export(ctx context.Context, tc *Context, values []map[string]any) ([]map[string]any, error)
	Import(ctx context.Context, tc *Context, values []map[string]any) ([]map[string]any, error)
}

type registration struct {
	typeTag string
	handler Handler
	weight  int
	seq     int
}

// Registry dispatches attribute values to handlers by type tag.
//
// Thread-safety: safe for concurrent use. Registration after the first
// dispatch is allowed; the order is recomputed once on the next dispatch.
type Registry struct {
	mu     sync.Mutex
	regs   []registration
	byType map[string][]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Default returns a registry with the built-in handlers registered at
// weight 0.
func Default() *Registry {
	r := NewRegistry()
	for _, name := range BuiltinNames() {
		h, _ := Builtin(name)
		r.Register(name, h, 0)
	}
	return r
}

// Register adds h for attributes of type typeTag.
func (r *Registry) Register(typeTag string, h Handler, weight int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.regs = append(r.regs, registration{typeTag: typeTag, handler: h, weight: weight, seq: len(r.regs)})
	r.byType = nil
}

// Handlers returns the handlers for typeTag in dispatch order.
func (r *Registry) Handlers(typeTag string) []Handler {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byType == nil {
		r.freezeLocked()
	}
	return r.byType[typeTag]
}

// TypeTags returns every type tag with at least one handler, sorted.
func (r *Registry) TypeTags() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byType == nil {
		r.freezeLocked()
	}
	return slices.Sorted(maps.Keys(r.byType))
}

func (r *Registry) freezeLocked() {
	sorted := slices.Clone(r.regs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].weight != sorted[j].weight {
			return sorted[i].weight < sorted[j].weight
		}
		return sorted[i].seq < sorted[j].seq
	})
	r.byType = map[string][]Handler{}
	for _, reg := range sorted {
		r.byType[reg.typeTag] = append(r.byType[reg.typeTag], reg.handler)
	}
}

// Direction selects which half of a Handler runs.
type Direction int

const (
	// Export converts live values to serialized values.
	Export Direction = iota
	// Import converts serialized values to live values.
	Import
)

func (d Direction) String() string {
	if d == Import {
		return "import"
	}
	return "export"
}

// Apply runs the handlers of every defined attribute in fields and returns
// the transformed copy. Attributes without a definition, or whose type has
// no handler, pass through unchanged. tc.Field and tc.Langcode are set per
// attribute; the caller sets the rest of tc.
func (r *Registry) Apply(ctx context.Context, dir Direction, tc *Context, defs []entity.FieldDefinition, langcode string, fields record.Fields) (record.Fields, error) {
	byName := make(map[string]entity.FieldDefinition, len(defs))
	for _, d := range defs {
		byName[d.Name] = d
	}

	out := make(record.Fields, len(fields))
	for _, name := range slices.Sorted(maps.Keys(fields)) {
		values := fields[name]
		def, ok := byName[name]
		if !ok {
			out[name] = values
			continue
		}

		fieldCtx := *tc
		fieldCtx.Field = def
		fieldCtx.Langcode = langcode

		omit := false
		for _, h := range r.Handlers(def.Type) {
			var err error
			if dir == Import {
				values, err = h.Import(ctx, &fieldCtx, values)
			} else {
				values, err = h.Export(ctx, &fieldCtx, values)
			}
			if errors.Is(err, ErrOmit) {
				omit = true
				break
			}
			if err != nil {
				return nil, err
			}
		}
		if !omit {
			out[name] = values
		}
	}
	return out, nil
}
