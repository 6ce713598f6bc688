// Package session holds the authenticated identity for a portal client.
// A Session is an explicit value passed to whatever needs it; there is no
// package-level state, so tests can run with independent sessions.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role identifies which portal surface the user belongs to.
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleDoctor, RoleAdmin:
		return true
	}
	return false
}

// User is the identity echoed by the backend on login/signup.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Claims mirrors the backend's access-token claims.
type Claims struct {
	jwt.RegisteredClaims
	Role Role `json:"role,omitempty"`
}

var ErrNotAuthenticated = errors.New("not authenticated")

// Session is the credential and identity state for one logged-in user.
type Session struct {
	mu        sync.RWMutex
	user      User
	role      Role
	token     string
	expiresAt time.Time

	// OnExpired is invoked when the backend rejects the credential
	// (401-class response) so the caller can route back to login.
	OnExpired func()
}

func New() *Session {
	return &Session{}
}

// Establish stores the identity and bearer token from a successful login
// or signup. Expiry and role are recovered from the token claims when the
// login payload does not carry them; the parse is unverified because the
// server is the authority on token validity.
func (s *Session) Establish(user User, role Role, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.user = user
	s.role = role
	s.token = token
	s.expiresAt = time.Time{}

	if token == "" {
		return
	}
	claims := &Claims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return
	}
	if claims.ExpiresAt != nil {
		s.expiresAt = claims.ExpiresAt.Time
	}
	if s.role == "" && claims.Role.Valid() {
		s.role = claims.Role
	}
}

// Authenticated reports whether a credential is present.
func (s *Session) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != ""
}

// Expired reports whether the token's exp claim has passed. Tokens
// without an exp claim never expire client-side.
func (s *Session) Expired(now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return true
	}
	return !s.expiresAt.IsZero() && now.After(s.expiresAt)
}

// Token returns the bearer token, or ErrNotAuthenticated.
func (s *Session) Token() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return "", ErrNotAuthenticated
	}
	return s.token, nil
}

func (s *Session) User() User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

func (s *Session) Role() Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.role
}

// Clear tears the session down (logout).
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = User{}
	s.role = ""
	s.token = ""
	s.expiresAt = time.Time{}
}

// NotifyExpired fires the OnExpired hook if one is registered. Called by
// the HTTP facade when the backend rejects the credential.
func (s *Session) NotifyExpired() {
	s.mu.RLock()
	hook := s.OnExpired
	s.mu.RUnlock()
	if hook != nil {
		hook()
	}
}
