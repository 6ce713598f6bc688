package portaltest

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

func newPatientProfile() J {
	return J{
		"id": int64(0), "username": "", "email": "",
		"first_name": "", "last_name": "", "full_name": "", "gender": "",
		"phone_number": "", "date_of_birth": nil, "blood_group": "",
		"emergency_contact_name": "", "emergency_contact_phone": "",
		"known_allergies": "", "chronic_conditions": "", "current_medications": "",
		"address": "", "bio": "", "profile_completed": false, "current_step": 0,
	}
}

func (s *Server) patientSignup(c echo.Context) error {
	var req struct {
		Username        string `json:"username"`
		Email           string `json:"email"`
		Password        string `json:"password"`
		PasswordConfirm string `json:"password_confirm"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, J{"error": "malformed request"})
	}
	if req.Password != req.PasswordConfirm {
		return c.JSON(http.StatusBadRequest, J{"password": []string{"Passwords don't match."}})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[req.Username]; exists {
		return c.JSON(http.StatusBadRequest, J{"username": []string{"A user with this username already exists."}})
	}
	acct := &account{
		id:       s.nextID(),
		username: req.Username,
		email:    req.Email,
		password: req.Password,
		role:     "patient",
		profile:  newPatientProfile(),
	}
	acct.profile["id"] = acct.id
	acct.profile["username"] = acct.username
	acct.profile["email"] = acct.email
	acct.profile["current_step"] = 1
	s.accounts[req.Username] = acct
	tok := s.mintToken(acct.username, acct.role)

	return c.JSON(http.StatusCreated, J{
		"message":           "Patient account created successfully",
		"token":             tok,
		"user":              J{"id": acct.id, "username": acct.username, "email": acct.email},
		"profile":           acct.profile,
		"profile_completed": false,
		"redirect_to":       "profile",
	})
}

func (s *Server) patientProfile(c echo.Context) error {
	acct := c.Get("account").(*account)
	s.mu.Lock()
	defer s.mu.Unlock()
	return c.JSON(http.StatusOK, acct.profile)
}

func (s *Server) patientUpdate(c echo.Context) error {
	var req J
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, J{"error": "malformed request"})
	}

	acct := c.Get("account").(*account)
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, value := range req {
		if _, known := acct.profile[key]; known {
			acct.profile[key] = value
		}
	}
	step := intField(acct.profile, "current_step")
	if step < 3 {
		acct.profile["current_step"] = step + 1
	}
	complete := true
	for _, field := range []string{"first_name", "last_name", "phone_number"} {
		if v, _ := acct.profile[field].(string); strings.TrimSpace(v) == "" {
			complete = false
		}
	}
	acct.profile["profile_completed"] = complete
	return c.JSON(http.StatusOK, J{"message": "Profile updated successfully", "profile": acct.profile})
}

func workspaceID(c echo.Context) int64 {
	id, _ := strconv.ParseInt(c.Param("id"), 10, 64)
	return id
}

func (s *Server) workspaceHistory(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.history[workspaceID(c)]
	filtered := make([]J, 0, len(entries))
	q := c.QueryParams()
	search := strings.ToLower(q.Get("search"))
	for _, e := range entries {
		if v := q.Get("category"); v != "" && e["category"] != v {
			continue
		}
		if v := q.Get("status"); v != "" && e["status"] != v {
			continue
		}
		if v := q.Get("is_critical"); v == "true" {
			if crit, _ := e["is_critical"].(bool); !crit {
				continue
			}
		}
		if search != "" {
			title, _ := e["title"].(string)
			desc, _ := e["description"].(string)
			if !strings.Contains(strings.ToLower(title), search) &&
				!strings.Contains(strings.ToLower(desc), search) {
				continue
			}
		}
		filtered = append(filtered, e)
	}
	return c.JSON(http.StatusOK, J{
		"data":   filtered,
		"total":  len(filtered),
		"limit":  len(filtered),
		"offset": 0,
	})
}

func (s *Server) workspaceSummary(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := workspaceID(c)
	entries := s.history[id]
	count := func(category string) int {
		n := 0
		for _, e := range entries {
			if e["category"] == category {
				n++
			}
		}
		return n
	}
	chronic, critical, monitoring := false, false, false
	for _, e := range entries {
		if v, _ := e["is_chronic"].(bool); v {
			chronic = true
		}
		if v, _ := e["is_critical"].(bool); v && e["category"] == "allergy" {
			critical = true
		}
		if v, _ := e["requires_monitoring"].(bool); v {
			monitoring = true
		}
	}
	return c.JSON(http.StatusOK, J{
		"workspace_id":             id,
		"total_conditions":         count("condition"),
		"total_medications":        count("medication"),
		"total_allergies":          count("allergy"),
		"total_surgeries":          count("surgery"),
		"total_visits":             count("visit"),
		"total_lab_results":        count("lab_result"),
		"has_chronic_conditions":   chronic,
		"has_critical_allergies":   critical,
		"requires_monitoring":      monitoring,
		"active_conditions_list":   []string{},
		"current_medications_list": []string{},
		"all_allergies_list":       []string{},
		"completeness_score":       50,
	})
}

func (s *Server) clinicalSummary(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := workspaceID(c)
	entries := s.history[id]
	pick := func(category string) []J {
		out := []J{}
		for _, e := range entries {
			if e["category"] == category {
				out = append(out, e)
			}
		}
		return out
	}
	return c.JSON(http.StatusOK, J{
		"workspace_id":        id,
		"patient_name":        "Pat Doe",
		"active_conditions":   pick("condition"),
		"current_medications": pick("medication"),
		"allergies":           pick("allergy"),
		"recent_surgeries":    pick("surgery"),
		"recent_visits":       pick("visit"),
		"recent_labs":         pick("lab_result"),
		"monitoring_items":    []J{},
		"counts":              J{"total": len(entries)},
		"ai_summary":          "Automated clinical summary",
	})
}

func (s *Server) workspaceTimeline(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.history[workspaceID(c)]
	events := make([]J, 0, len(entries))
	for _, e := range entries {
		events = append(events, J{
			"id":                e["id"],
			"history_entry":     e["id"],
			"event_type":        "created",
			"event_description": e["title"],
			"performed_by_type": "system",
			"created_at":        time.Now().UTC().Format(time.RFC3339),
		})
	}
	return c.JSON(http.StatusOK, J{"events": events})
}

func (s *Server) categoryDetailed(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	category := c.Param("category")
	status := c.QueryParam("status")
	out := []J{}
	for _, e := range s.history[workspaceID(c)] {
		if e["category"] != category {
			continue
		}
		if status != "" && e["status"] != status {
			continue
		}
		out = append(out, e)
	}
	return c.JSON(http.StatusOK, J{"entries": out})
}

func (s *Server) workspaceReports(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	reports := s.reports[workspaceID(c)]
	if reports == nil {
		reports = []J{}
	}
	return c.JSON(http.StatusOK, J{"reports": reports})
}

func (s *Server) uploadReport(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, J{"file": []string{"A file is required."}})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	id := workspaceID(c)
	report := J{
		"id":          s.nextID(),
		"workspace":   id,
		"title":       c.FormValue("title"),
		"report_type": c.FormValue("report_type"),
		"description": c.FormValue("description"),
		"report_date": c.FormValue("report_date"),
		"file_name":   file.Filename,
		"is_critical": c.FormValue("is_critical") == "true",
		"ocr_status":  "pending",
		"uploaded_at": time.Now().UTC().Format(time.RFC3339),
	}
	s.reports[id] = append(s.reports[id], report)
	return c.JSON(http.StatusCreated, J{"report": report})
}

func (s *Server) workspaceLabs(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	results := s.labs[workspaceID(c)]
	if results == nil {
		results = []J{}
	}
	return c.JSON(http.StatusOK, J{"results": results})
}

func (s *Server) labTrend(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := c.QueryParam("test_name")
	trend, ok := s.trends[name]
	if !ok {
		return c.JSON(http.StatusNotFound, J{"error": "no trend for test"})
	}
	return c.JSON(http.StatusOK, trend)
}
