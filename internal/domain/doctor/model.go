// Package doctor implements the doctor-facing portal flows: account
// auth, the four-step profile setup wizard, verification polling, and
// the connection/workspace views a verified doctor works from.
package doctor

import (
	"fmt"
	"strings"
	"time"
)

// ProfileStatus is the server-owned verification workflow state.
type ProfileStatus string

const (
	StatusDraft    ProfileStatus = "draft"
	StatusPending  ProfileStatus = "pending"
	StatusVerified ProfileStatus = "verified"
	StatusRejected ProfileStatus = "rejected"
)

var validProfileStatuses = map[ProfileStatus]bool{
	StatusDraft:    true,
	StatusPending:  true,
	StatusVerified: true,
	StatusRejected: true,
}

func (s ProfileStatus) Valid() bool { return validProfileStatuses[s] }

// Terminal reports whether the verification workflow has concluded.
func (s ProfileStatus) Terminal() bool {
	return s == StatusVerified || s == StatusRejected
}

// ConsultationMode is how the doctor sees patients.
type ConsultationMode string

const (
	ModeTeleconsultation ConsultationMode = "teleconsultation"
	ModeInPerson         ConsultationMode = "in_person"
	ModeBoth             ConsultationMode = "both"
)

var validConsultationModes = map[ConsultationMode]bool{
	ModeTeleconsultation: true,
	ModeInPerson:         true,
	ModeBoth:             true,
}

func (m ConsultationMode) Valid() bool { return validConsultationModes[m] }

// Redirect is the backend's navigation hint after auth and submission.
type Redirect string

const (
	RedirectDashboard           Redirect = "dashboard"
	RedirectProfile             Redirect = "profile"
	RedirectVerificationPending Redirect = "verification_pending"
)

// Profile mirrors the backend doctor profile resource. DoctorID and the
// verification fields are server-owned; the display name is derived on
// the server from first and last name.
type Profile struct {
	ID                    int64            `json:"id"`
	Username              string           `json:"username"`
	Email                 string           `json:"email"`
	FirstName             string           `json:"first_name"`
	LastName              string           `json:"last_name"`
	FullName              string           `json:"full_name"`
	DisplayName           string           `json:"display_name"`
	PhoneNumber           string           `json:"phone_number"`
	Specialization        string           `json:"specialization"`
	LicenseNumber         string           `json:"license_number"`
	DoctorID              string           `json:"doctor_id"`
	PrimaryClinicHospital string           `json:"primary_clinic_hospital"`
	City                  string           `json:"city"`
	Country               string           `json:"country"`
	Bio                   string           `json:"bio"`
	ConsultationMode      ConsultationMode `json:"consultation_mode"`
	ProfessionalEmail     string           `json:"professional_email"`
	LicenseDocumentURL    string           `json:"license_document_url"`
	ProfileStatus         ProfileStatus    `json:"profile_status"`
	ProfileCompleted      bool             `json:"profile_completed"`
	CurrentStep           int              `json:"current_step"`
	ConsentGiven          bool             `json:"consent_given"`
	IsVerified            bool             `json:"is_verified"`
	IsPending             bool             `json:"is_pending"`
	CanAccessDashboard    bool             `json:"can_access_dashboard"`
	RejectionReason       string           `json:"rejection_reason"`
	SubmittedAt           *time.Time       `json:"submitted_at"`
	VerifiedAt            *time.Time       `json:"verified_at"`
	CreatedAt             time.Time        `json:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at"`
}

// SignupRequest creates the doctor account.
type SignupRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

func (r SignupRequest) Validate() error {
	if strings.TrimSpace(r.Username) == "" {
		return fmt.Errorf("username is required")
	}
	if strings.TrimSpace(r.Email) == "" || !strings.Contains(r.Email, "@") {
		return fmt.Errorf("a valid email is required")
	}
	if r.Password == "" {
		return fmt.Errorf("password is required")
	}
	if r.Password != r.PasswordConfirm {
		return fmt.Errorf("passwords do not match")
	}
	return nil
}

// LoginRequest authenticates an existing doctor.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() error {
	if strings.TrimSpace(r.Username) == "" {
		return fmt.Errorf("username is required")
	}
	if r.Password == "" {
		return fmt.Errorf("password is required")
	}
	return nil
}

// AuthUser is the account identity echoed on login and signup.
type AuthUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// AuthResponse carries the session token, the profile, and where the
// client should navigate next.
type AuthResponse struct {
	Message          string        `json:"message"`
	Token            string        `json:"token"`
	User             AuthUser      `json:"user"`
	Profile          Profile       `json:"profile"`
	ProfileCompleted bool          `json:"profile_completed"`
	ProfileStatus    ProfileStatus `json:"profile_status"`
	RedirectTo       Redirect      `json:"redirect_to"`
}

// VerificationStatus is the read-only verification view polled while the
// profile is pending. RejectionReason is present only for rejected
// profiles.
type VerificationStatus struct {
	ProfileStatus      ProfileStatus `json:"profile_status"`
	IsVerified         bool          `json:"is_verified"`
	IsPending          bool          `json:"is_pending"`
	CanAccessDashboard bool          `json:"can_access_dashboard"`
	RejectionReason    *string       `json:"rejection_reason"`
	VerifiedAt         *time.Time    `json:"verified_at"`
	SubmittedAt        *time.Time    `json:"submitted_at"`
	Profile            Profile       `json:"profile"`
}

// PatientRef is the condensed patient identity shown in connection and
// workspace listings.
type PatientRef struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
}

// ConnectionRequest is a patient's pending request to connect.
type ConnectionRequest struct {
	ID          int64      `json:"id"`
	Patient     PatientRef `json:"patient"`
	Status      string     `json:"status"`
	RequestedAt time.Time  `json:"requested_at"`
}

// ConnectedPatient is an accepted connection.
type ConnectedPatient struct {
	ConnectionID int64      `json:"connection_id"`
	Patient      PatientRef `json:"patient"`
	ConnectedAt  time.Time  `json:"connected_at"`
}

// Workspace is the shared record space for one doctor/patient pair.
type Workspace struct {
	ConnectionID int64      `json:"connection_id"`
	Patient      PatientRef `json:"patient"`
	EntryCount   int        `json:"entry_count"`
	LastActivity *time.Time `json:"last_activity"`
}

// DashboardSummary is the count view for the doctor's landing screen.
type DashboardSummary struct {
	PendingRequests   int `json:"pending_requests"`
	ConnectedPatients int `json:"connected_patients"`
	Workspaces        int `json:"workspaces"`
	PendingForms      int `json:"pending_intake_forms"`
}
