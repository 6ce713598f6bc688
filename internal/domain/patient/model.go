// Package patient implements the patient-facing portal flows: account
// auth and the three-step profile setup wizard.
package patient

import (
	"fmt"
	"strings"
	"time"
)

// BloodGroup is the ABO/Rh blood type.
type BloodGroup string

const (
	BloodAPos  BloodGroup = "A+"
	BloodANeg  BloodGroup = "A-"
	BloodBPos  BloodGroup = "B+"
	BloodBNeg  BloodGroup = "B-"
	BloodABPos BloodGroup = "AB+"
	BloodABNeg BloodGroup = "AB-"
	BloodOPos  BloodGroup = "O+"
	BloodONeg  BloodGroup = "O-"
)

var validBloodGroups = map[BloodGroup]bool{
	BloodAPos: true, BloodANeg: true,
	BloodBPos: true, BloodBNeg: true,
	BloodABPos: true, BloodABNeg: true,
	BloodOPos: true, BloodONeg: true,
}

func (b BloodGroup) Valid() bool { return validBloodGroups[b] }

// Date carries a calendar date with the backend's YYYY-MM-DD encoding.
type Date struct {
	time.Time
}

const dateLayout = "2006-01-02"

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" || s == "" {
		d.Time = time.Time{}
		return nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return fmt.Errorf("parse date %q: %w", s, err)
	}
	d.Time = t
	return nil
}

// Profile mirrors the backend patient profile resource.
type Profile struct {
	ID                    int64      `json:"id"`
	Username              string     `json:"username"`
	Email                 string     `json:"email"`
	FirstName             string     `json:"first_name"`
	LastName              string     `json:"last_name"`
	FullName              string     `json:"full_name"`
	Gender                string     `json:"gender"`
	PhoneNumber           string     `json:"phone_number"`
	DateOfBirth           Date       `json:"date_of_birth"`
	BloodGroup            BloodGroup `json:"blood_group"`
	EmergencyContactName  string     `json:"emergency_contact_name"`
	EmergencyContactPhone string     `json:"emergency_contact_phone"`
	KnownAllergies        string     `json:"known_allergies"`
	ChronicConditions     string     `json:"chronic_conditions"`
	CurrentMedications    string     `json:"current_medications"`
	Address               string     `json:"address"`
	Bio                   string     `json:"bio"`
	ProfileCompleted      bool       `json:"profile_completed"`
	CurrentStep           int        `json:"current_step"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// SignupRequest creates the patient account.
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

// AuthResponse carries the session token, the profile, and the
// navigation hint after login or signup.
type AuthResponse struct {
	Message          string  `json:"message"`
	Token            string  `json:"token"`
	User             User    `json:"user"`
	Profile          Profile `json:"profile"`
	ProfileCompleted bool    `json:"profile_completed"`
	RedirectTo       string  `json:"redirect_to"`
}

// User is the account identity echoed on login and signup.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}
