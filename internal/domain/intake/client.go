package intake

import (
	"context"
	"fmt"

	"github.com/carebridge/portal/internal/platform/rest"
)

// Client wraps the doctor intake-form endpoints.
type Client struct {
	api *rest.Client
}

func NewClient(api *rest.Client) *Client {
	return &Client{api: api}
}

// Create validates locally and creates the form on the backend.
func (c *Client) Create(ctx context.Context, req CreateRequest) (*Form, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("create intake form: %w", err)
	}
	var out struct {
		Form Form `json:"form"`
	}
	if err := c.api.Post(ctx, "/doctor/intake-forms/create/", req, &out); err != nil {
		return nil, err
	}
	return &out.Form, nil
}

func (c *Client) List(ctx context.Context) ([]Form, error) {
	var out struct {
		Forms []Form `json:"forms"`
	}
	if err := c.api.Get(ctx, "/doctor/intake-forms/", &out); err != nil {
		return nil, err
	}
	return out.Forms, nil
}

func (c *Client) Get(ctx context.Context, id int64) (*Form, error) {
	var f Form
	if err := c.api.Get(ctx, fmt.Sprintf("/doctor/intake-forms/%d/", id), &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func (c *Client) Update(ctx context.Context, id int64, req CreateRequest) (*Form, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("update intake form: %w", err)
	}
	var out struct {
		Form Form `json:"form"`
	}
	if err := c.api.Put(ctx, fmt.Sprintf("/doctor/intake-forms/%d/update/", id), req, &out); err != nil {
		return nil, err
	}
	return &out.Form, nil
}

// Send delivers the form to a connected patient.
func (c *Client) Send(ctx context.Context, id, patientID int64) error {
	body := map[string]int64{"patient_id": patientID}
	return c.api.Post(ctx, fmt.Sprintf("/doctor/intake-forms/%d/send/", id), body, nil)
}

func (c *Client) Delete(ctx context.Context, id int64) error {
	return c.api.Delete(ctx, fmt.Sprintf("/doctor/intake-forms/%d/delete/", id), nil)
}
