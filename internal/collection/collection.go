// Package collection provides an identity-keyed, insertion-ordered set of
// serialized records with dependency-aware queries.
package collection

import (
	"iter"
	"slices"

	"github.com/roach88/recsync/internal/record"
)

// Collection holds serialized records keyed by identity.
// Iteration follows insertion order; Has and Get are O(1).
//
// Thread-safety: a Collection is not safe for concurrent mutation.
type Collection struct {
	order []string
	items map[string]*record.SerializedRecord
}

// New creates a collection containing recs, in order.
func New(recs ...*record.SerializedRecord) (*Collection, error) {
	c := &Collection{items: make(map[string]*record.SerializedRecord, len(recs))}
	for _, r := range recs {
		if err := c.Add(r); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Must is like New but panics on error.
// Use only in tests or when records are known to be valid.
func Must(recs ...*record.SerializedRecord) *Collection {
	c, err := New(recs...)
	if err != nil {
		panic(err)
	}
	return c
}

// Add inserts r. Re-adding an identity replaces the stored record but keeps
// its original position.
func (c *Collection) Add(r *record.SerializedRecord) error {
	if r == nil {
		return record.NewError(record.ErrCodeInvalidInput, "", "cannot add nil record to collection")
	}
	if r.Identity == "" {
		return &record.Error{Code: record.ErrCodeInvalidInput, Message: "cannot add record without identity", Path: r.SourcePath}
	}
	if c.items == nil {
		c.items = map[string]*record.SerializedRecord{}
	}
	if _, exists := c.items[r.Identity]; !exists {
		c.order = append(c.order, r.Identity)
	}
	c.items[r.Identity] = r
	return nil
}

// Remove deletes identity from the collection. Returns false if absent.
func (c *Collection) Remove(identity string) bool {
	if _, ok := c.items[identity]; !ok {
		return false
	}
	delete(c.items, identity)
	c.order = slices.DeleteFunc(c.order, func(id string) bool { return id == identity })
	return true
}

// Has reports whether identity is a member.
func (c *Collection) Has(identity string) bool {
	_, ok := c.items[identity]
	return ok
}

// Get returns the record for identity, or nil.
func (c *Collection) Get(identity string) *record.SerializedRecord {
	return c.items[identity]
}

// Len returns the number of records.
func (c *Collection) Len() int {
	return len(c.order)
}

// Identities returns member identities in iteration order.
func (c *Collection) Identities() []string {
	return slices.Clone(c.order)
}

// Records returns members in iteration order.
func (c *Collection) Records() []*record.SerializedRecord {
	out := make([]*record.SerializedRecord, len(c.order))
	for i, id := range c.order {
		out[i] = c.items[id]
	}
	return out
}

// All iterates identity → record in order.
func (c *Collection) All() iter.Seq2[string, *record.SerializedRecord] {
	return func(yield func(string, *record.SerializedRecord) bool) {
		for _, id := range c.order {
			if !yield(id, c.items[id]) {
				return
			}
		}
	}
}

// Filter returns a new collection with the members for which keep is true,
// in the same order.
func (c *Collection) Filter(keep func(*record.SerializedRecord) bool) *Collection {
	out := &Collection{items: map[string]*record.SerializedRecord{}}
	for _, id := range c.order {
		if r := c.items[id]; keep(r) {
			out.order = append(out.order, id)
			out.items[id] = r
		}
	}
	return out
}

// Map applies fn to every member and collects the results in a new
// collection. fn must return a record with a non-empty identity.
func (c *Collection) Map(fn func(*record.SerializedRecord) *record.SerializedRecord) (*Collection, error) {
	out := &Collection{items: map[string]*record.SerializedRecord{}}
	for _, id := range c.order {
		if err := out.Add(fn(c.items[id])); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Diff returns the members of c whose identity is not in other.
func (c *Collection) Diff(other *Collection) *Collection {
	return c.Filter(func(r *record.SerializedRecord) bool {
		return other == nil || !other.Has(r.Identity)
	})
}

// WithDependencies returns the record for identity plus everything it
// depends on, transitively. Dependencies that are not members are skipped.
// Members keep the order of c. Returns an empty collection if identity is
// absent.
func (c *Collection) WithDependencies(identity string) *Collection {
	closure := map[string]bool{}
	stack := []string{identity}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		r, ok := c.items[id]
		if !ok || closure[id] {
			continue
		}
		closure[id] = true
		for dep := range r.Dependencies {
			if !closure[dep] {
				stack = append(stack, dep)
			}
		}
	}
	return c.Filter(func(r *record.SerializedRecord) bool { return closure[r.Identity] })
}

// DependentsOf returns the identities of members that directly depend on
// identity, in iteration order.
func (c *Collection) DependentsOf(identity string) []string {
	var out []string
	for _, id := range c.order {
		if _, ok := c.items[id].Dependencies[identity]; ok {
			out = append(out, id)
		}
	}
	return out
}
