package listview

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Group is one key's records, newest first.
type Group[T any] struct {
	Key     string
	Records []T
}

// DetailFetch loads the on-demand detail for a selected group (the lab
// trend view). It is the one selection side effect in the list layer.
type DetailFetch[D any] func(ctx context.Context, key string) (D, error)

// Grouped is the lab-results variant: the base set is grouped by a key
// before filtering, and selecting a group fetches its detail
// asynchronously without ever blocking list rendering. The detail state
// is guarded separately because the fetch completes off the view loop.
type Grouped[T, D any] struct {
	Model[T]
	key  func(T) string
	when func(T) time.Time

	detailMu      sync.Mutex
	fetchDetail   DetailFetch[D]
	selected      string
	detail        D
	detailReady   bool
	detailLoading bool
	detailErr     error
	generation    int
}

func NewGrouped[T, D any](fields Fields[T], key func(T) string, when func(T) time.Time, fetch DetailFetch[D]) *Grouped[T, D] {
	return &Grouped[T, D]{
		Model:       *New(fields),
		key:         key,
		when:        when,
		fetchDetail: fetch,
	}
}

// Groups returns the visible records grouped by key. Groups appear in
// order of their newest record; records inside a group are newest first.
func (g *Grouped[T, D]) Groups() []Group[T] {
	byKey := make(map[string][]T)
	var order []string
	for _, rec := range g.Visible() {
		k := g.key(rec)
		if _, seen := byKey[k]; !seen {
			order = append(order, k)
		}
		byKey[k] = append(byKey[k], rec)
	}

	groups := make([]Group[T], 0, len(order))
	for _, k := range order {
		records := byKey[k]
		sort.SliceStable(records, func(i, j int) bool {
			return g.when(records[i]).After(g.when(records[j]))
		})
		groups = append(groups, Group[T]{Key: k, Records: records})
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return g.when(groups[i].Records[0]).After(g.when(groups[j].Records[0]))
	})
	return groups
}

// SelectGroup marks a group selected and starts its detail fetch in the
// background. The returned channel reports the fetch outcome; a newer
// selection supersedes an older in-flight one, whose late response is
// discarded instead of clobbering current state.
func (g *Grouped[T, D]) SelectGroup(ctx context.Context, key string) <-chan error {
	done := make(chan error, 1)

	g.detailMu.Lock()
	g.selected = key
	g.detailReady = false
	g.detailLoading = true
	g.detailErr = nil
	g.generation++
	gen := g.generation
	g.detailMu.Unlock()

	go func() {
		detail, err := g.fetchDetail(ctx, key)

		g.detailMu.Lock()
		defer g.detailMu.Unlock()
		if gen != g.generation {
			// Stale response for a superseded selection.
			done <- nil
			return
		}
		g.detailLoading = false
		if err != nil {
			g.detailErr = fmt.Errorf("load detail for %s: %w", key, err)
			done <- g.detailErr
			return
		}
		g.detail = detail
		g.detailReady = true
		done <- nil
	}()

	return done
}

// Selected returns the currently selected group key.
func (g *Grouped[T, D]) Selected() string {
	g.detailMu.Lock()
	defer g.detailMu.Unlock()
	return g.selected
}

// Detail returns the detail state: the value, whether it belongs to the
// current selection, and the last detail error. The ok flag is false
// until the selection's fetch succeeds.
func (g *Grouped[T, D]) Detail() (D, bool, error) {
	g.detailMu.Lock()
	defer g.detailMu.Unlock()
	return g.detail, g.detailReady, g.detailErr
}

// DetailLoading reports whether a detail fetch is in flight.
func (g *Grouped[T, D]) DetailLoading() bool {
	g.detailMu.Lock()
	defer g.detailMu.Unlock()
	return g.detailLoading
}
