package portaltest

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

func newDoctorProfile() J {
	return J{
		"id": int64(0), "username": "", "email": "",
		"first_name": "", "last_name": "", "full_name": "", "display_name": "",
		"specialization": "", "primary_clinic_hospital": "", "city": "", "country": "",
		"license_number": "", "doctor_id": "", "license_document_url": "",
		"phone_number": "", "professional_email": "", "bio": "", "consultation_mode": "",
		"profile_status": "draft", "profile_completed": false, "current_step": 0,
		"consent_given": false, "rejection_reason": "",
	}
}

func (s *Server) doctorSignup(c echo.Context) error {
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
		role:     "doctor",
		profile:  newDoctorProfile(),
	}
	acct.profile["id"] = acct.id
	acct.profile["username"] = acct.username
	acct.profile["email"] = acct.email
	s.accounts[req.Username] = acct
	tok := s.mintToken(acct.username, acct.role)

	return c.JSON(http.StatusCreated, J{
		"message":           "Doctor account created successfully",
		"token":             tok,
		"user":              J{"id": acct.id, "username": acct.username, "email": acct.email},
		"profile":           acct.profile,
		"profile_completed": false,
		"redirect_to":       "profile",
	})
}

func (s *Server) doctorProfile(c echo.Context) error {
	acct := c.Get("account").(*account)
	s.mu.Lock()
	defer s.mu.Unlock()
	return c.JSON(http.StatusOK, acct.profile)
}

func (s *Server) stepConsent(c echo.Context) error {
	var req struct {
		ConsentGiven bool `json:"consent_given"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, J{"error": "malformed request"})
	}
	if !req.ConsentGiven {
		return c.JSON(http.StatusBadRequest, J{"consent_given": []string{"Consent must be given to proceed."}})
	}

	acct := c.Get("account").(*account)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.StepSubmits["consent"]++
	acct.profile["consent_given"] = true
	if intField(acct.profile, "current_step") < 1 {
		acct.profile["current_step"] = 1
	}
	return c.JSON(http.StatusOK, J{"message": "Consent recorded successfully", "profile": acct.profile})
}

func (s *Server) stepBasicInfo(c echo.Context) error {
	var req map[string]string
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, J{"error": "malformed request"})
	}

	acct := c.Get("account").(*account)
	s.mu.Lock()
	defer s.mu.Unlock()
	if given, _ := acct.profile["consent_given"].(bool); !given {
		return c.JSON(http.StatusBadRequest, J{"error": "Consent must be given before proceeding"})
	}
	for _, field := range []string{"first_name", "last_name", "specialization", "primary_clinic_hospital", "city", "country"} {
		if strings.TrimSpace(req[field]) == "" {
			return c.JSON(http.StatusBadRequest, J{field: []string{"This field is required."}})
		}
		acct.profile[field] = req[field]
	}
	s.StepSubmits["basic_info"]++
	acct.profile["display_name"] = "Dr. " + req["first_name"] + " " + req["last_name"]
	acct.profile["full_name"] = req["first_name"] + " " + req["last_name"]
	if intField(acct.profile, "current_step") < 2 {
		acct.profile["current_step"] = 2
	}
	return c.JSON(http.StatusOK, J{"message": "Basic info saved successfully", "profile": acct.profile})
}

func (s *Server) stepCredentials(c echo.Context) error {
	acct := c.Get("account").(*account)

	license := c.FormValue("license_number")
	file, err := c.FormFile("license_document")
	if err != nil {
		return c.JSON(http.StatusBadRequest, J{"license_document": []string{"License document is required."}})
	}
	src, err := file.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, J{"license_document": []string{"unreadable upload"}})
	}
	defer src.Close()
	n, _ := io.Copy(io.Discard, src)
	if n > 10<<20 {
		return c.JSON(http.StatusBadRequest, J{"license_document": []string{"File size must be less than 10MB."}})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if intField(acct.profile, "current_step") < 1 {
		return c.JSON(http.StatusBadRequest, J{"error": "Complete previous steps first"})
	}
	if license == "" {
		return c.JSON(http.StatusBadRequest, J{"license_number": []string{"License number is required."}})
	}

	// A retried submission with the same idempotency key must not mint a
	// second doctor id.
	if !s.seenIdempotencyKey(c) || acct.profile["doctor_id"] == "" {
		if acct.profile["doctor_id"] == "" {
			s.doctorNo++
			acct.profile["doctor_id"] = fmtDoctorID(s.doctorNo)
		}
		s.StepSubmits["credentials"]++
	}
	acct.profile["license_number"] = license
	acct.profile["license_document_url"] = s.http.URL + "/media/doctor_licenses/" + file.Filename
	if intField(acct.profile, "current_step") < 3 {
		acct.profile["current_step"] = 3
	}
	return c.JSON(http.StatusOK, J{
		"message":   "Credentials saved successfully",
		"doctor_id": acct.profile["doctor_id"],
		"profile":   acct.profile,
	})
}

func (s *Server) stepContact(c echo.Context) error {
	var req map[string]string
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, J{"error": "malformed request"})
	}

	acct := c.Get("account").(*account)
	s.mu.Lock()
	defer s.mu.Unlock()
	if intField(acct.profile, "current_step") < 2 {
		return c.JSON(http.StatusBadRequest, J{"error": "Complete previous steps first"})
	}
	if strings.TrimSpace(req["phone_number"]) == "" {
		return c.JSON(http.StatusBadRequest, J{"phone_number": []string{"Phone number is required."}})
	}
	if len(req["bio"]) > 280 {
		return c.JSON(http.StatusBadRequest, J{"bio": []string{"Bio must be less than 280 characters."}})
	}
	s.StepSubmits["contact"]++
	for _, field := range []string{"phone_number", "professional_email", "bio", "consultation_mode"} {
		if v, ok := req[field]; ok {
			acct.profile[field] = v
		}
	}
	if acct.profile["professional_email"] == "" {
		acct.profile["professional_email"] = acct.email
	}
	if intField(acct.profile, "current_step") < 4 {
		acct.profile["current_step"] = 4
	}
	return c.JSON(http.StatusOK, J{"message": "Contact info saved successfully", "profile": acct.profile})
}

func (s *Server) submitVerification(c echo.Context) error {
	acct := c.Get("account").(*account)
	s.mu.Lock()
	defer s.mu.Unlock()
	if intField(acct.profile, "current_step") < 3 {
		return c.JSON(http.StatusBadRequest, J{"error": "Complete all steps before submitting"})
	}
	acct.profile["profile_status"] = "pending"
	acct.profile["submitted_at"] = time.Now().UTC().Format(time.RFC3339)
	return c.JSON(http.StatusOK, J{
		"message":     "Profile submitted for verification successfully",
		"profile":     acct.profile,
		"redirect_to": "verification_pending",
	})
}

func (s *Server) saveDraft(c echo.Context) error {
	var req J
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, J{"error": "malformed request"})
	}

	acct := c.Get("account").(*account)
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, value := range req {
		switch key {
		case "id", "user", "doctor_id", "profile_status":
			continue
		}
		if _, known := acct.profile[key]; known || key == "current_step" {
			acct.profile[key] = value
		}
	}
	return c.JSON(http.StatusOK, J{"message": "Draft saved successfully", "profile": acct.profile})
}

func (s *Server) verificationStatus(c echo.Context) error {
	acct := c.Get("account").(*account)
	s.mu.Lock()
	defer s.mu.Unlock()
	status, _ := acct.profile["profile_status"].(string)
	var reason interface{}
	if status == "rejected" {
		reason = acct.profile["rejection_reason"]
	}
	return c.JSON(http.StatusOK, J{
		"profile_status":       status,
		"is_verified":          status == "verified",
		"is_pending":           status == "pending",
		"can_access_dashboard": status == "verified",
		"rejection_reason":     reason,
		"verified_at":          acct.profile["verified_at"],
		"submitted_at":         acct.profile["submitted_at"],
		"profile":              acct.profile,
	})
}
