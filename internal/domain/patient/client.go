package patient

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/carebridge/portal/internal/platform/rest"
	"github.com/carebridge/portal/internal/platform/session"
)

// Client wraps the patient endpoints of the portal backend.
type Client struct {
	api  *rest.Client
	sess *session.Session
	log  zerolog.Logger
}

func NewClient(api *rest.Client, sess *session.Session, log zerolog.Logger) *Client {
	return &Client{api: api, sess: sess, log: log}
}

// Signup creates the account and establishes the session.
func (c *Client) Signup(ctx context.Context, req SignupRequest) (*AuthResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("signup: %w", err)
	}
	var resp AuthResponse
	if err := c.api.Post(ctx, "/patient/signup/", req, &resp); err != nil {
		return nil, err
	}
	c.establish(resp)
	return &resp, nil
}

func (c *Client) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	var resp AuthResponse
	if err := c.api.Post(ctx, "/patient/login/", req, &resp); err != nil {
		return nil, err
	}
	c.establish(resp)
	return &resp, nil
}

// Logout invalidates the server session and clears the local one even
// when the server call fails.
func (c *Client) Logout(ctx context.Context) error {
	err := c.api.Post(ctx, "/patient/logout/", nil, nil)
	c.sess.Clear()
	return err
}

func (c *Client) establish(resp AuthResponse) {
	c.sess.Establish(session.User{
		ID:       resp.User.ID,
		Username: resp.User.Username,
		Email:    resp.User.Email,
	}, session.RolePatient, resp.Token)
	c.log.Info().
		Str("username", resp.User.Username).
		Bool("profile_completed", resp.ProfileCompleted).
		Msg("patient session established")
}

// Profile fetches the current patient's profile.
func (c *Client) Profile(ctx context.Context) (*Profile, error) {
	var p Profile
	if err := c.api.Get(ctx, "/patient/profile/", &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProfile sends a partial profile update and returns the server's
// echo. The backend flips profile_completed once the required fields are
// all present.
func (c *Client) UpdateProfile(ctx context.Context, fields interface{}, opts ...rest.Option) (*Profile, error) {
	var out struct {
		Message string  `json:"message"`
		Profile Profile `json:"profile"`
	}
	if err := c.api.Put(ctx, "/patient/profile/update/", fields, &out, opts...); err != nil {
		return nil, err
	}
	return &out.Profile, nil
}
