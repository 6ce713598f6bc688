// Package portaltest runs an in-memory fake of the portal backend for
// tests: auth, the doctor profile step endpoints with server-side step
// gating and DR-id generation, drafts, verification status, patient
// profiles, and seeded workspace history/report/lab data. It speaks the
// backend's raw JSON contract and imports no domain packages, so any
// package's tests can point a client at it.
package portaltest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const signingKey = "portaltest-signing-key"

// J is shorthand for the raw JSON objects the fake stores and serves.
type J = map[string]interface{}

type account struct {
	id       int64
	username string
	email    string
	password string
	role     string
	profile  J
}

// Server is the fake backend. Create one per test with New; it shuts
// down with the test via Close.
type Server struct {
	http *httptest.Server

	mu       sync.Mutex
	seq      int64
	doctorNo int
	accounts map[string]*account // username -> account
	tokens   map[string]string   // bearer token -> username
	idem     map[string]bool     // seen idempotency keys

	history map[int64][]J // workspace id -> entries
	reports map[int64][]J
	labs    map[int64][]J
	trends  map[string]J // test name -> trend

	// Counters for idempotency assertions.
	StepSubmits map[string]int
}

func New() *Server {
	s := &Server{
		accounts:    make(map[string]*account),
		tokens:      make(map[string]string),
		idem:        make(map[string]bool),
		history:     make(map[int64][]J),
		reports:     make(map[int64][]J),
		labs:        make(map[int64][]J),
		trends:      make(map[string]J),
		StepSubmits: make(map[string]int),
	}

	e := echo.New()
	e.HideBanner = true

	e.POST("/doctor/signup/", s.doctorSignup)
	e.POST("/doctor/login/", s.login("doctor"))
	e.POST("/doctor/logout/", s.logout)
	e.GET("/doctor/profile/", s.requireRole("doctor", s.doctorProfile))
	e.POST("/doctor/profile/step0/consent/", s.requireRole("doctor", s.stepConsent))
	e.POST("/doctor/profile/step1/basic-info/", s.requireRole("doctor", s.stepBasicInfo))
	e.POST("/doctor/profile/step2/credentials/", s.requireRole("doctor", s.stepCredentials))
	e.POST("/doctor/profile/step3/contact/", s.requireRole("doctor", s.stepContact))
	e.POST("/doctor/profile/submit/", s.requireRole("doctor", s.submitVerification))
	e.POST("/doctor/profile/save-draft/", s.requireRole("doctor", s.saveDraft))
	e.GET("/doctor/profile/verification-status/", s.requireRole("doctor", s.verificationStatus))

	e.POST("/patient/signup/", s.patientSignup)
	e.POST("/patient/login/", s.login("patient"))
	e.POST("/patient/logout/", s.logout)
	e.GET("/patient/profile/", s.requireRole("patient", s.patientProfile))
	e.PUT("/patient/profile/update/", s.requireRole("patient", s.patientUpdate))

	e.GET("/workspace/:id/history/", s.authed(s.workspaceHistory))
	e.GET("/workspace/:id/summary/", s.authed(s.workspaceSummary))
	e.GET("/workspace/:id/clinical-summary/", s.authed(s.clinicalSummary))
	e.GET("/workspace/:id/timeline/", s.authed(s.workspaceTimeline))
	e.GET("/workspace/:id/category/:category/detailed/", s.authed(s.categoryDetailed))
	e.GET("/workspace/:id/reports/", s.authed(s.workspaceReports))
	e.POST("/workspace/:id/reports/upload/", s.authed(s.uploadReport))
	e.GET("/workspace/:id/labs/", s.authed(s.workspaceLabs))
	e.GET("/workspace/:id/labs/trend/", s.authed(s.labTrend))

	s.http = httptest.NewServer(e)
	return s
}

// URL is the base URL clients should point at.
func (s *Server) URL() string { return s.http.URL }

func (s *Server) Close() { s.http.Close() }

func (s *Server) nextID() int64 {
	s.seq++
	return s.seq
}

func (s *Server) mintToken(username, role string) string {
	claims := jwt.MapClaims{
		"sub":  username,
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
	tok, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(signingKey))
	s.tokens[tok] = username
	return tok
}

func (s *Server) caller(c echo.Context) *account {
	h := c.Request().Header.Get("Authorization")
	tok := strings.TrimPrefix(h, "Bearer ")
	if tok == h {
		return nil
	}
	username, ok := s.tokens[tok]
	if !ok {
		return nil
	}
	return s.accounts[username]
}

func (s *Server) requireRole(role string, h echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		s.mu.Lock()
		acct := s.caller(c)
		s.mu.Unlock()
		if acct == nil {
			return c.JSON(http.StatusUnauthorized, J{"error": "authentication required"})
		}
		if acct.role != role {
			return c.JSON(http.StatusForbidden, J{"error": "wrong portal"})
		}
		c.Set("account", acct)
		return h(c)
	}
}

func (s *Server) authed(h echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		s.mu.Lock()
		acct := s.caller(c)
		s.mu.Unlock()
		if acct == nil {
			return c.JSON(http.StatusUnauthorized, J{"error": "authentication required"})
		}
		c.Set("account", acct)
		return h(c)
	}
}

// seenIdempotencyKey records the request's Idempotency-Key and reports
// whether it was already used.
func (s *Server) seenIdempotencyKey(c echo.Context) bool {
	key := c.Request().Header.Get("Idempotency-Key")
	if key == "" {
		return false
	}
	if s.idem[key] {
		return true
	}
	s.idem[key] = true
	return false
}

func (s *Server) login(role string) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, J{"error": "malformed request"})
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		acct, ok := s.accounts[req.Username]
		if !ok || acct.role != role || acct.password != req.Password {
			return c.JSON(http.StatusBadRequest, J{"username": []string{"Invalid username or password."}})
		}
		tok := s.mintToken(acct.username, acct.role)

		resp := J{
			"message":    "Login successful",
			"token":      tok,
			"user":       J{"id": acct.id, "username": acct.username, "email": acct.email},
			"profile":    acct.profile,
			"redirect_to": s.redirectFor(acct),
		}
		if role == "doctor" {
			resp["profile_status"] = acct.profile["profile_status"]
		}
		resp["profile_completed"] = acct.profile["profile_completed"]
		return c.JSON(http.StatusOK, resp)
	}
}

func (s *Server) redirectFor(acct *account) string {
	if acct.role == "doctor" {
		switch acct.profile["profile_status"] {
		case "pending":
			return "verification_pending"
		case "verified":
			return "dashboard"
		default:
			return "profile"
		}
	}
	if done, _ := acct.profile["profile_completed"].(bool); done {
		return "dashboard"
	}
	return "profile"
}

func (s *Server) logout(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acct := s.caller(c); acct == nil {
		return c.JSON(http.StatusUnauthorized, J{"error": "authentication required"})
	}
	h := c.Request().Header.Get("Authorization")
	delete(s.tokens, strings.TrimPrefix(h, "Bearer "))
	return c.JSON(http.StatusOK, J{"message": "Logout successful"})
}

// VerifyDoctor drives the admin side of the workflow in tests.
func (s *Server) VerifyDoctor(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acct, ok := s.accounts[username]; ok {
		acct.profile["profile_status"] = "verified"
		acct.profile["profile_completed"] = true
		now := time.Now().UTC().Format(time.RFC3339)
		acct.profile["verified_at"] = now
	}
}

// RejectDoctor marks the profile rejected with a reason.
func (s *Server) RejectDoctor(username, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acct, ok := s.accounts[username]; ok {
		acct.profile["profile_status"] = "rejected"
		acct.profile["rejection_reason"] = reason
	}
}

// SeedHistory loads workspace history entries served by the history
// endpoints.
func (s *Server) SeedHistory(workspaceID int64, entries []J) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[workspaceID] = entries
}

// SeedLabs loads lab results and their per-test trends.
func (s *Server) SeedLabs(workspaceID int64, results []J, trends map[string]J) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.labs[workspaceID] = results
	for name, trend := range trends {
		s.trends[name] = trend
	}
}

func intField(m J, key string) int {
	switch v := m[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

func fmtDoctorID(n int) string {
	return fmt.Sprintf("DR-%d-%05d", time.Now().Year(), n)
}
