package reports

import (
	"context"
	"fmt"
	"strconv"

	"github.com/carebridge/portal/internal/listview"
	"github.com/carebridge/portal/internal/platform/rest"
)

// Client wraps the workspace report endpoints.
type Client struct {
	api       *rest.Client
	maxUpload int64
}

func NewClient(api *rest.Client, maxUpload int64) *Client {
	if maxUpload <= 0 {
		maxUpload = DefaultUploadLimit
	}
	return &Client{api: api, maxUpload: maxUpload}
}

// Upload pre-validates and uploads a report document.
func (c *Client) Upload(ctx context.Context, workspaceID int64, req UploadRequest) (*Report, error) {
	if err := req.Validate(c.maxUpload); err != nil {
		return nil, fmt.Errorf("upload report: %w", err)
	}
	fields := map[string]string{
		"title":       req.Title,
		"report_type": string(req.ReportType),
		"is_critical": strconv.FormatBool(req.IsCritical),
	}
	if req.Description != "" {
		fields["description"] = req.Description
	}
	if req.ReportDate != "" {
		fields["report_date"] = req.ReportDate
	}
	var out struct {
		Report Report `json:"report"`
	}
	path := fmt.Sprintf("/workspace/%d/reports/upload/", workspaceID)
	err := c.api.PostMultipart(ctx, path, fields, rest.File{
		Field:       "file",
		Name:        req.FileName,
		ContentType: req.ContentType,
		Content:     req.Content,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out.Report, nil
}

// List fetches all reports in a workspace.
func (c *Client) List(ctx context.Context, workspaceID int64) ([]Report, error) {
	var out struct {
		Reports []Report `json:"reports"`
	}
	path := fmt.Sprintf("/workspace/%d/reports/", workspaceID)
	if err := c.api.Get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.Reports, nil
}

func (c *Client) Get(ctx context.Context, workspaceID, reportID int64) (*Report, error) {
	var r Report
	path := fmt.Sprintf("/workspace/%d/reports/%d/", workspaceID, reportID)
	if err := c.api.Get(ctx, path, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) Delete(ctx context.Context, workspaceID, reportID int64) error {
	path := fmt.Sprintf("/workspace/%d/reports/%d/delete/", workspaceID, reportID)
	return c.api.Delete(ctx, path, nil)
}

// RegenerateAISummary asks the backend to rebuild the workspace AI
// summary from the current report set.
func (c *Client) RegenerateAISummary(ctx context.Context, workspaceID int64) error {
	path := fmt.Sprintf("/workspace/%d/regenerate-ai-summary/", workspaceID)
	return c.api.Post(ctx, path, nil, nil)
}

// ReportFields adapts reports to the list view-model: search over title
// and description, category filter on report type, status filter on OCR
// state, and a critical-only flag.
func ReportFields() listview.Fields[Report] {
	return listview.Fields[Report]{
		Title:       func(r Report) string { return r.Title },
		Description: func(r Report) string { return r.Description },
		Category:    func(r Report) string { return string(r.ReportType) },
		Status:      func(r Report) string { return string(r.OCRStatus) },
		Flags: map[string]func(Report) bool{
			"critical_only": func(r Report) bool { return r.IsCritical },
		},
	}
}

// NewListModel builds the report list view-model for one workspace.
func (c *Client) NewListModel(workspaceID int64) (*listview.Model[Report], func(ctx context.Context) ([]Report, error)) {
	model := listview.New(ReportFields())
	fetch := func(ctx context.Context) ([]Report, error) {
		return c.List(ctx, workspaceID)
	}
	return model, fetch
}
