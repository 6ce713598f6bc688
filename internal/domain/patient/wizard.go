package patient

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/carebridge/portal/internal/platform/rest"
	"github.com/carebridge/portal/internal/wizard"
)

const (
	StepAccount  = "account"
	StepPersonal = "personal_details"
	StepMedical  = "medical_details"
)

// PersonalPayload is the identity step. Date of birth must not be in
// the future.
type PersonalPayload struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Gender      string `json:"gender"`
	PhoneNumber string `json:"phone_number"`
	DateOfBirth Date   `json:"date_of_birth"`
}

// MedicalPayload is the health snapshot step.
type MedicalPayload struct {
	BloodGroup            BloodGroup `json:"blood_group"`
	EmergencyContactName  string     `json:"emergency_contact_name"`
	EmergencyContactPhone string     `json:"emergency_contact_phone"`
	KnownAllergies        string     `json:"known_allergies"`
	ChronicConditions     string     `json:"chronic_conditions"`
	CurrentMedications    string     `json:"current_medications"`
}

// profileAPI is what the wizard steps need from the client.
type profileAPI interface {
	Signup(ctx context.Context, req SignupRequest) (*AuthResponse, error)
	UpdateProfile(ctx context.Context, fields interface{}, opts ...rest.Option) (*Profile, error)
	Profile(ctx context.Context) (*Profile, error)
}

type accountStep struct{ api profileAPI }

func (s *accountStep) ID() string    { return StepAccount }
func (s *accountStep) Title() string { return "Create Account" }

func (s *accountStep) Validate(payload interface{}) wizard.ErrorSet {
	p, errs := asPayload[SignupRequest](payload)
	if !errs.Empty() {
		return errs
	}
	if strings.TrimSpace(p.Username) == "" {
		errs.Add("username", "username is required")
	}
	if strings.TrimSpace(p.Email) == "" || !strings.Contains(p.Email, "@") {
		errs.Add("email", "a valid email is required")
	}
	if p.Password == "" {
		errs.Add("password", "password is required")
	} else if p.Password != p.PasswordConfirm {
		errs.Add("password_confirm", "passwords do not match")
	}
	return errs
}

func (s *accountStep) Submit(ctx context.Context, payload interface{}, idem string) (*wizard.StepResult, error) {
	resp, err := s.api.Signup(ctx, payload.(SignupRequest))
	if err != nil {
		return nil, err
	}
	return profileResult(resp.Profile)
}

type personalStep struct {
	api profileAPI
	now func() time.Time
}

func (s *personalStep) ID() string    { return StepPersonal }
func (s *personalStep) Title() string { return "Personal Details" }

func (s *personalStep) Validate(payload interface{}) wizard.ErrorSet {
	p, errs := asPayload[PersonalPayload](payload)
	if !errs.Empty() {
		return errs
	}
	if strings.TrimSpace(p.FirstName) == "" {
		errs.Add("first_name", "first name is required")
	}
	if strings.TrimSpace(p.LastName) == "" {
		errs.Add("last_name", "last name is required")
	}
	if strings.TrimSpace(p.PhoneNumber) == "" {
		errs.Add("phone_number", "phone number is required")
	}
	if p.DateOfBirth.IsZero() {
		errs.Add("date_of_birth", "date of birth is required")
	} else if p.DateOfBirth.After(s.now()) {
		errs.Add("date_of_birth", "date of birth cannot be in the future")
	}
	return errs
}

func (s *personalStep) Submit(ctx context.Context, payload interface{}, idem string) (*wizard.StepResult, error) {
	p, err := s.api.UpdateProfile(ctx, payload.(PersonalPayload), rest.WithIdempotencyKey(idem))
	if err != nil {
		return nil, err
	}
	return profileResult(*p)
}

type medicalStep struct{ api profileAPI }

func (s *medicalStep) ID() string    { return StepMedical }
func (s *medicalStep) Title() string { return "Medical Details" }

func (s *medicalStep) Validate(payload interface{}) wizard.ErrorSet {
	p, errs := asPayload[MedicalPayload](payload)
	if !errs.Empty() {
		return errs
	}
	if strings.TrimSpace(p.EmergencyContactName) == "" {
		errs.Add("emergency_contact_name", "emergency contact name is required")
	}
	if strings.TrimSpace(p.EmergencyContactPhone) == "" {
		errs.Add("emergency_contact_phone", "emergency contact phone is required")
	}
	if p.BloodGroup != "" && !p.BloodGroup.Valid() {
		errs.Add("blood_group", "unknown blood group")
	}
	return errs
}

func (s *medicalStep) Submit(ctx context.Context, payload interface{}, idem string) (*wizard.StepResult, error) {
	p, err := s.api.UpdateProfile(ctx, payload.(MedicalPayload), rest.WithIdempotencyKey(idem))
	if err != nil {
		return nil, err
	}
	return profileResult(*p)
}

func profileResult(p Profile) (*wizard.StepResult, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode profile echo: %w", err)
	}
	return &wizard.StepResult{Data: raw, CurrentStep: p.CurrentStep}, nil
}

func asPayload[T any](payload interface{}) (T, wizard.ErrorSet) {
	errs := wizard.ErrorSet{}
	switch v := payload.(type) {
	case T:
		return v, errs
	case *T:
		if v != nil {
			return *v, errs
		}
	}
	var zero T
	errs.Add("payload", fmt.Sprintf("expected %T", zero))
	return zero, errs
}

// NewProfileWizard builds the three-step patient setup wizard. The
// finalizer confirms the backend marked the profile complete; each step
// already persisted its fields.
func NewProfileWizard(c *Client, log zerolog.Logger) *wizard.Controller {
	return newProfileWizard(c, log)
}

func newProfileWizard(api profileAPI, log zerolog.Logger) *wizard.Controller {
	steps := []wizard.Step{
		&accountStep{api: api},
		&personalStep{api: api, now: time.Now},
		&medicalStep{api: api},
	}
	finalize := func(ctx context.Context) error {
		p, err := api.Profile(ctx)
		if err != nil {
			return err
		}
		if !p.ProfileCompleted {
			return fmt.Errorf("profile is not complete on the server")
		}
		return nil
	}
	return wizard.New(steps, &draftSource{api: api},
		wizard.WithFinalizer(finalize),
		wizard.WithLogger(log))
}

// draftSource reconstructs a wizard draft from the stored profile. A
// successful profile fetch implies the account step is done, so the
// resume position is never before step 1.
type draftSource struct {
	api profileAPI
}

func (d *draftSource) FetchDraft(ctx context.Context) (*wizard.Draft, error) {
	p, err := d.api.Profile(ctx)
	if err != nil {
		return nil, err
	}
	step := p.CurrentStep
	if step < 1 {
		step = 1
	}
	if step > 3 {
		step = 3
	}
	data := map[string]json.RawMessage{}
	put := func(id string, v interface{}) {
		if raw, err := json.Marshal(v); err == nil {
			data[id] = raw
		}
	}
	put(StepPersonal, PersonalPayload{
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		Gender:      p.Gender,
		PhoneNumber: p.PhoneNumber,
		DateOfBirth: p.DateOfBirth,
	})
	put(StepMedical, MedicalPayload{
		BloodGroup:            p.BloodGroup,
		EmergencyContactName:  p.EmergencyContactName,
		EmergencyContactPhone: p.EmergencyContactPhone,
		KnownAllergies:        p.KnownAllergies,
		ChronicConditions:     p.ChronicConditions,
		CurrentMedications:    p.CurrentMedications,
	})
	return &wizard.Draft{CurrentStep: step, StepData: data}, nil
}

func (d *draftSource) SaveDraft(ctx context.Context, draft wizard.Draft) error {
	fields := map[string]interface{}{}
	for id, raw := range draft.StepData {
		if id == StepAccount {
			continue
		}
		var m map[string]interface{}
		if err := json.Unmarshal(raw, &m); err != nil {
			continue
		}
		for k, v := range m {
			fields[k] = v
		}
	}
	if len(fields) == 0 {
		return nil
	}
	_, err := d.api.UpdateProfile(ctx, fields)
	return err
}
