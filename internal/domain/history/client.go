package history

import (
	"context"
	"fmt"
	"net/url"

	"github.com/carebridge/portal/internal/platform/rest"
	"github.com/carebridge/portal/pkg/pagination"
)

// Client wraps the history endpoints of the backend.
type Client struct {
	api *rest.Client
}

func NewClient(api *rest.Client) *Client {
	return &Client{api: api}
}

// ListQuery mirrors the server-side filters of the workspace history
// endpoint. The local listview applies the same semantics client-side.
type ListQuery struct {
	Category       Category
	Source         Source
	Status         Status
	CriticalOnly   bool
	MonitoringOnly bool
	ChronicOnly    bool
	Search         string
}

func (q ListQuery) values() url.Values {
	v := url.Values{}
	if q.Category != "" {
		v.Set("category", string(q.Category))
	}
	if q.Source != "" {
		v.Set("source", string(q.Source))
	}
	if q.Status != "" {
		v.Set("status", string(q.Status))
	}
	if q.CriticalOnly {
		v.Set("is_critical", "true")
	}
	if q.MonitoringOnly {
		v.Set("requires_monitoring", "true")
	}
	if q.ChronicOnly {
		v.Set("is_chronic", "true")
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	return v
}

// WorkspaceHistory lists a workspace's entries with server-side filters.
func (c *Client) WorkspaceHistory(ctx context.Context, workspaceID int64, q ListQuery, pg pagination.Params) (pagination.Page[Entry], error) {
	values := q.values()
	for k, vs := range pg.Values() {
		for _, v := range vs {
			values.Add(k, v)
		}
	}
	var page pagination.Page[Entry]
	path := fmt.Sprintf("/workspace/%d/history/?%s", workspaceID, values.Encode())
	if err := c.api.Get(ctx, path, &page); err != nil {
		return pagination.Page[Entry]{}, err
	}
	return page, nil
}

// WorkspaceSummary fetches the cached rollup.
func (c *Client) WorkspaceSummary(ctx context.Context, workspaceID int64) (*Summary, error) {
	var s Summary
	if err := c.api.Get(ctx, fmt.Sprintf("/workspace/%d/summary/", workspaceID), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// ClinicalSummary fetches the focused encounter view.
func (c *Client) ClinicalSummary(ctx context.Context, workspaceID int64) (*ClinicalSummary, error) {
	var s ClinicalSummary
	if err := c.api.Get(ctx, fmt.Sprintf("/workspace/%d/clinical-summary/", workspaceID), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// CategoryDetailed lists one category with an optional status filter.
func (c *Client) CategoryDetailed(ctx context.Context, workspaceID int64, category Category, status Status) ([]Entry, error) {
	if !category.Valid() {
		return nil, fmt.Errorf("invalid category: %s", category)
	}
	path := fmt.Sprintf("/workspace/%d/category/%s/detailed/", workspaceID, category)
	if status != "" {
		path += "?status=" + url.QueryEscape(string(status))
	}
	var out struct {
		Entries []Entry `json:"entries"`
	}
	if err := c.api.Get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.Entries, nil
}

// WorkspaceTimeline lists the workspace's recent change events.
func (c *Client) WorkspaceTimeline(ctx context.Context, workspaceID int64) ([]TimelineEvent, error) {
	var out struct {
		Events []TimelineEvent `json:"events"`
	}
	if err := c.api.Get(ctx, fmt.Sprintf("/workspace/%d/timeline/", workspaceID), &out); err != nil {
		return nil, err
	}
	return out.Events, nil
}

// CreateEntry adds a manual entry. The server's echo is authoritative.
func (c *Client) CreateEntry(ctx context.Context, req *NewEntryRequest) (*Entry, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var created Entry
	if err := c.api.Post(ctx, "/history/entries/", req, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateEntry replaces an entry's editable fields.
func (c *Client) UpdateEntry(ctx context.Context, entryID int64, req *NewEntryRequest) (*Entry, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var updated Entry
	if err := c.api.Put(ctx, fmt.Sprintf("/history/entries/%d/", entryID), req, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (c *Client) DeleteEntry(ctx context.Context, entryID int64) error {
	return c.api.Delete(ctx, fmt.Sprintf("/history/entries/%d/", entryID), nil)
}

// EntryTimeline lists one entry's change events.
func (c *Client) EntryTimeline(ctx context.Context, entryID int64) ([]TimelineEvent, error) {
	var out struct {
		Events []TimelineEvent `json:"events"`
	}
	if err := c.api.Get(ctx, fmt.Sprintf("/history/entries/%d/timeline/", entryID), &out); err != nil {
		return nil, err
	}
	return out.Events, nil
}

// RegenerateAISummary asks the backend to rebuild the AI summary. The
// generation itself is server-side; the refreshed text arrives on the
// next clinical summary fetch.
func (c *Client) RegenerateAISummary(ctx context.Context, workspaceID int64) error {
	return c.api.Post(ctx, fmt.Sprintf("/workspace/%d/regenerate-ai-summary/", workspaceID), nil, nil)
}
