package doctor

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/carebridge/portal/internal/platform/rest"
	"github.com/carebridge/portal/internal/platform/session"
)

// Client wraps the doctor endpoints of the portal backend.
type Client struct {
	api  *rest.Client
	sess *session.Session
	log  zerolog.Logger
}

func NewClient(api *rest.Client, sess *session.Session, log zerolog.Logger) *Client {
	return &Client{api: api, sess: sess, log: log}
}

// Signup creates the account and establishes the session from the
// response token. The backend signs the new user in on success.
func (c *Client) Signup(ctx context.Context, req SignupRequest) (*AuthResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("signup: %w", err)
	}
	var resp AuthResponse
	if err := c.api.Post(ctx, "/doctor/signup/", req, &resp); err != nil {
		return nil, err
	}
	c.establish(resp)
	return &resp, nil
}

// Login authenticates and establishes the session. The redirect hint in
// the response routes the caller to the dashboard, the profile wizard,
// or the verification-pending screen.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	var resp AuthResponse
	if err := c.api.Post(ctx, "/doctor/login/", req, &resp); err != nil {
		return nil, err
	}
	c.establish(resp)
	return &resp, nil
}

// Logout invalidates the server session and clears the local one. The
// local session is cleared even when the server call fails; a dead
// token is not worth keeping.
func (c *Client) Logout(ctx context.Context) error {
	err := c.api.Post(ctx, "/doctor/logout/", nil, nil)
	c.sess.Clear()
	return err
}

func (c *Client) establish(resp AuthResponse) {
	c.sess.Establish(session.User{
		ID:       resp.User.ID,
		Username: resp.User.Username,
		Email:    resp.User.Email,
	}, session.RoleDoctor, resp.Token)
	c.log.Info().
		Str("username", resp.User.Username).
		Str("redirect_to", string(resp.RedirectTo)).
		Msg("doctor session established")
}

// Profile fetches the current doctor's profile.
func (c *Client) Profile(ctx context.Context) (*Profile, error) {
	var p Profile
	if err := c.api.Get(ctx, "/doctor/profile/", &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// VerificationStatus fetches the read-only verification view.
func (c *Client) VerificationStatus(ctx context.Context) (*VerificationStatus, error) {
	var vs VerificationStatus
	if err := c.api.Get(ctx, "/doctor/profile/verification-status/", &vs); err != nil {
		return nil, err
	}
	return &vs, nil
}

// ConnectionRequests lists patients waiting for the doctor to accept.
func (c *Client) ConnectionRequests(ctx context.Context) ([]ConnectionRequest, error) {
	var out struct {
		Requests []ConnectionRequest `json:"requests"`
	}
	if err := c.api.Get(ctx, "/doctor/connections/requests/", &out); err != nil {
		return nil, err
	}
	return out.Requests, nil
}

func (c *Client) AcceptConnection(ctx context.Context, connectionID int64) error {
	path := fmt.Sprintf("/doctor/connections/%d/accept/", connectionID)
	return c.api.Post(ctx, path, nil, nil)
}

func (c *Client) RejectConnection(ctx context.Context, connectionID int64) error {
	path := fmt.Sprintf("/doctor/connections/%d/reject/", connectionID)
	return c.api.Post(ctx, path, nil, nil)
}

// ConnectedPatients lists accepted connections.
func (c *Client) ConnectedPatients(ctx context.Context) ([]ConnectedPatient, error) {
	var out struct {
		Patients []ConnectedPatient `json:"patients"`
	}
	if err := c.api.Get(ctx, "/doctor/connections/patients/", &out); err != nil {
		return nil, err
	}
	return out.Patients, nil
}

// Workspaces lists the doctor's patient workspaces.
func (c *Client) Workspaces(ctx context.Context) ([]Workspace, error) {
	var out struct {
		Workspaces []Workspace `json:"workspaces"`
	}
	if err := c.api.Get(ctx, "/doctor/workspaces/", &out); err != nil {
		return nil, err
	}
	return out.Workspaces, nil
}

func (c *Client) Workspace(ctx context.Context, connectionID int64) (*Workspace, error) {
	var ws Workspace
	path := fmt.Sprintf("/doctor/workspaces/%d/", connectionID)
	if err := c.api.Get(ctx, path, &ws); err != nil {
		return nil, err
	}
	return &ws, nil
}

// DashboardSummary fetches the landing-screen counts.
func (c *Client) DashboardSummary(ctx context.Context) (*DashboardSummary, error) {
	var s DashboardSummary
	if err := c.api.Get(ctx, "/doctor/dashboard/summary/", &s); err != nil {
		return nil, err
	}
	return &s, nil
}
