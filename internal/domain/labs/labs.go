// Package labs presents workspace lab results grouped by test, with an
// on-demand server-computed trend for the selected test.
package labs

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/carebridge/portal/internal/listview"
	"github.com/carebridge/portal/internal/platform/rest"
)

// Flag marks a result against its reference range.
type Flag string

const (
	FlagNormal   Flag = "normal"
	FlagHigh     Flag = "high"
	FlagLow      Flag = "low"
	FlagCritical Flag = "critical"
)

// Result is one lab measurement.
type Result struct {
	ID             int64     `json:"id"`
	TestName       string    `json:"test_name"`
	Value          string    `json:"value"`
	Unit           string    `json:"unit"`
	ReferenceRange string    `json:"reference_range"`
	Flag           Flag      `json:"flag"`
	Notes          string    `json:"notes"`
	CollectedAt    time.Time `json:"collected_at"`
}

// TrendPoint is one point of a test's history.
type TrendPoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// Trend is the server-computed series for one test. Direction is
// "rising", "falling", or "stable"; the client never derives it.
type Trend struct {
	TestName  string       `json:"test_name"`
	Unit      string       `json:"unit"`
	Points    []TrendPoint `json:"points"`
	Direction string       `json:"direction"`
}

// Client wraps the workspace lab endpoints.
type Client struct {
	api *rest.Client
}

func NewClient(api *rest.Client) *Client {
	return &Client{api: api}
}

// List fetches all lab results in a workspace.
func (c *Client) List(ctx context.Context, workspaceID int64) ([]Result, error) {
	var out struct {
		Results []Result `json:"results"`
	}
	path := fmt.Sprintf("/workspace/%d/labs/", workspaceID)
	if err := c.api.Get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

// Trend fetches the computed series for one test name.
func (c *Client) Trend(ctx context.Context, workspaceID int64, testName string) (*Trend, error) {
	var t Trend
	path := fmt.Sprintf("/workspace/%d/labs/trend/?test_name=%s", workspaceID, url.QueryEscape(testName))
	if err := c.api.Get(ctx, path, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// ResultFields adapts lab results to the list view-model: search over
// test name and notes, status filter on the range flag, and an
// abnormal-only shortcut. Lab results have no category dimension; the
// flag already partitions them.
func ResultFields() listview.Fields[Result] {
	return listview.Fields[Result]{
		Title:       func(r Result) string { return r.TestName },
		Description: func(r Result) string { return r.Notes },
		Status:      func(r Result) string { return string(r.Flag) },
		Flags: map[string]func(Result) bool{
			"abnormal_only": func(r Result) bool { return r.Flag != FlagNormal && r.Flag != "" },
		},
	}
}

// NewGroupedModel builds the grouped lab view for one workspace:
// results grouped by test name, selection fetching the trend detail.
func (c *Client) NewGroupedModel(workspaceID int64) (*listview.Grouped[Result, *Trend], func(ctx context.Context) ([]Result, error)) {
	model := listview.NewGrouped(
		ResultFields(),
		func(r Result) string { return r.TestName },
		func(r Result) time.Time { return r.CollectedAt },
		func(ctx context.Context, testName string) (*Trend, error) {
			return c.Trend(ctx, workspaceID, testName)
		},
	)
	fetch := func(ctx context.Context) ([]Result, error) {
		return c.List(ctx, workspaceID)
	}
	return model, fetch
}
