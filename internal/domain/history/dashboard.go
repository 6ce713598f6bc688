package history

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/carebridge/portal/internal/listview"
)

// Fetcher is the slice of the history API the dashboard needs; *Client
// satisfies it.
type Fetcher interface {
	ClinicalSummary(ctx context.Context, workspaceID int64) (*ClinicalSummary, error)
	WorkspaceTimeline(ctx context.Context, workspaceID int64) ([]TimelineEvent, error)
	CategoryDetailed(ctx context.Context, workspaceID int64, category Category, status Status) ([]Entry, error)
}

var _ Fetcher = (*Client)(nil)

// EntryFields adapts Entry to the listview accessors. The flag names
// match the ListQuery boolean filters.
func EntryFields() listview.Fields[Entry] {
	return listview.Fields[Entry]{
		Title:       func(e Entry) string { return e.Title },
		Description: func(e Entry) string { return e.Description },
		Category:    func(e Entry) string { return string(e.Category) },
		Status:      func(e Entry) string { return string(e.Status) },
		Flags: map[string]func(Entry) bool{
			"critical_only":   func(e Entry) bool { return e.IsCritical },
			"monitoring_only": func(e Entry) bool { return e.RequiresMonitoring },
			"chronic_only":    func(e Entry) bool { return e.IsChronic },
		},
	}
}

// Dashboard aggregates the patient-history screen: the clinical summary
// and timeline load together before the view is ready, then each tab's
// list loads on demand without re-blocking what is already rendered.
// All fetches run under a view-scoped context so navigating away
// cancels anything still in flight.
type Dashboard struct {
	fetch       Fetcher
	workspaceID int64
	log         zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	ready    bool
	err      error
	clinical *ClinicalSummary
	timeline []TimelineEvent

	tabs map[Category]*listview.Model[Entry]
}

func NewDashboard(parent context.Context, fetch Fetcher, workspaceID int64, log zerolog.Logger) *Dashboard {
	ctx, cancel := context.WithCancel(parent)
	return &Dashboard{
		fetch:       fetch,
		workspaceID: workspaceID,
		log:         log,
		ctx:         ctx,
		cancel:      cancel,
		tabs:        make(map[Category]*listview.Model[Entry]),
	}
}

// Load performs the initial mount fetches. The clinical summary and the
// timeline are issued concurrently with no ordering dependency, but the
// dashboard is ready only when both succeed; either failure blocks
// readiness and is surfaced for a retry rather than rendering partially.
func (d *Dashboard) Load() error {
	d.ready = false
	d.err = nil

	start := time.Now()
	g, ctx := errgroup.WithContext(d.ctx)
	g.Go(func() error {
		clinical, err := d.fetch.ClinicalSummary(ctx, d.workspaceID)
		if err != nil {
			return fmt.Errorf("clinical summary: %w", err)
		}
		d.clinical = clinical
		return nil
	})
	g.Go(func() error {
		timeline, err := d.fetch.WorkspaceTimeline(ctx, d.workspaceID)
		if err != nil {
			return fmt.Errorf("timeline: %w", err)
		}
		d.timeline = timeline
		return nil
	})

	if err := g.Wait(); err != nil {
		d.clinical = nil
		d.timeline = nil
		d.err = err
		d.log.Warn().Err(err).Int64("workspace_id", d.workspaceID).Msg("dashboard load failed")
		return err
	}

	d.ready = true
	d.log.Info().
		Int64("workspace_id", d.workspaceID).
		Dur("latency", time.Since(start)).
		Msg("dashboard ready")
	return nil
}

// Ready reports whether the initial load has completed in full.
func (d *Dashboard) Ready() bool { return d.ready }

// Err returns the initial-load error, if any. Retry via Load.
func (d *Dashboard) Err() error { return d.err }

func (d *Dashboard) Clinical() *ClinicalSummary { return d.clinical }

func (d *Dashboard) Timeline() []TimelineEvent { return d.timeline }

// Tab returns the list model for one category, fetching its base set on
// first access (or after a failed fetch). Tab loads are independent of
// the initial load and of each other.
func (d *Dashboard) Tab(category Category) (*listview.Model[Entry], error) {
	if !category.Valid() {
		return nil, fmt.Errorf("invalid category: %s", category)
	}
	m, ok := d.tabs[category]
	if !ok {
		m = listview.New(EntryFields())
		d.tabs[category] = m
	}
	if m.Loaded() {
		return m, nil
	}
	err := m.Load(d.ctx, func(ctx context.Context) ([]Entry, error) {
		return d.fetch.CategoryDetailed(ctx, d.workspaceID, category, "")
	})
	if err != nil {
		return m, err
	}
	return m, nil
}

// Close cancels every in-flight fetch tied to this view.
func (d *Dashboard) Close() {
	d.cancel()
}
