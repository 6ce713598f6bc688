// Package listview holds the base-collection-plus-filter state behind
// the portal's "filterable list + detail" screens (reports, conditions,
// medications, timeline). The base set is fetched once and never
// mutated; the visible subset is a pure derivation of (base set, query),
// fully recomputed on every filter change. At the tens-to-hundreds scale
// of these lists that trade is strictly in favor of correctness.
package listview

import (
	"context"
	"fmt"
	"strings"
)

// All is the sentinel that disables a category/status dimension. The
// empty string behaves the same way.
const All = "all"

// Query is the composed filter. All active predicates AND together.
type Query struct {
	Search   string
	Category string
	Status   string
	Flags    map[string]bool
}

// Patch is a partial query update; nil fields are left unchanged and
// Flags entries are merged in.
type Patch struct {
	Search   *string
	Category *string
	Status   *string
	Flags    map[string]bool
}

// String returns a pointer for Patch literals.
func String(s string) *string { return &s }

// Fields tells the model how to read a record. Title and Description
// feed the text search; Flags maps flag names (e.g. "critical_only") to
// their record predicate.
type Fields[T any] struct {
	Title       func(T) string
	Description func(T) string
	Category    func(T) string
	Status      func(T) string
	Flags       map[string]func(T) bool
}

// Model is a view-scoped list view-model. Like the views it backs, it
// lives on a single event loop and is not safe for concurrent use.
type Model[T any] struct {
	fields  Fields[T]
	base    []T
	query   Query
	visible []T
	loaded  bool
	loading bool
	err     error
}

func New[T any](fields Fields[T]) *Model[T] {
	return &Model[T]{fields: fields, query: Query{Flags: map[string]bool{}}}
}

// Load fetches the base set. On failure the base set is left empty, the
// error state is set, and filtering keeps working over the empty set;
// reload is always possible by calling Load again.
func (m *Model[T]) Load(ctx context.Context, fetch func(ctx context.Context) ([]T, error)) error {
	m.loading = true
	m.err = nil

	records, err := fetch(ctx)
	m.loading = false
	if err != nil {
		m.base = nil
		m.visible = nil
		m.loaded = false
		m.err = fmt.Errorf("load list: %w", err)
		return m.err
	}
	m.base = records
	m.loaded = true
	m.recompute()
	return nil
}

// Loading reports whether a fetch is in flight (spinner state).
func (m *Model[T]) Loading() bool { return m.loading }

// Loaded reports whether a base set has been successfully fetched.
func (m *Model[T]) Loaded() bool { return m.loaded }

// Err returns the recoverable load error, if any.
func (m *Model[T]) Err() error { return m.err }

// Base returns the immutable base set.
func (m *Model[T]) Base() []T { return m.base }

// Query returns a copy of the current filter.
func (m *Model[T]) Query() Query {
	q := m.query
	q.Flags = make(map[string]bool, len(m.query.Flags))
	for k, v := range m.query.Flags {
		q.Flags[k] = v
	}
	return q
}

// SetFilter merges the patch into the current query and re-derives the
// visible set. This is the only way visible results change.
func (m *Model[T]) SetFilter(p Patch) {
	if p.Search != nil {
		m.query.Search = *p.Search
	}
	if p.Category != nil {
		m.query.Category = *p.Category
	}
	if p.Status != nil {
		m.query.Status = *p.Status
	}
	for k, v := range p.Flags {
		m.query.Flags[k] = v
	}
	m.recompute()
}

// Visible returns the filtered records in base-set order. Deterministic
// for unchanged (base set, query).
func (m *Model[T]) Visible() []T { return m.visible }

func (m *Model[T]) recompute() {
	m.visible = filter(m.base, m.query, m.fields)
}

func filter[T any](base []T, q Query, f Fields[T]) []T {
	var out []T
	for _, rec := range base {
		if matches(rec, q, f) {
			out = append(out, rec)
		}
	}
	return out
}

func matches[T any](rec T, q Query, f Fields[T]) bool {
	if q.Search != "" {
		needle := strings.ToLower(q.Search)
		hit := false
		if f.Title != nil && strings.Contains(strings.ToLower(f.Title(rec)), needle) {
			hit = true
		}
		if !hit && f.Description != nil && strings.Contains(strings.ToLower(f.Description(rec)), needle) {
			hit = true
		}
		if !hit {
			return false
		}
	}
	if active(q.Category) && f.Category != nil && !strings.EqualFold(f.Category(rec), q.Category) {
		return false
	}
	if active(q.Status) && f.Status != nil && !strings.EqualFold(f.Status(rec), q.Status) {
		return false
	}
	for name, on := range q.Flags {
		if !on {
			continue
		}
		pred, ok := f.Flags[name]
		if ok && !pred(rec) {
			return false
		}
	}
	return true
}

func active(v string) bool {
	return v != "" && !strings.EqualFold(v, All)
}
