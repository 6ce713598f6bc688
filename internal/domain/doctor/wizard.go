package doctor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/carebridge/portal/internal/platform/rest"
	"github.com/carebridge/portal/internal/wizard"
)

// DefaultUploadLimit caps the license document upload client-side. The
// server enforces the same ceiling and stays authoritative.
const DefaultUploadLimit = 10 << 20

const (
	StepConsent     = "consent"
	StepBasicInfo   = "basic_info"
	StepCredentials = "credentials"
	StepContact     = "contact"
)

// ConsentPayload is step 0.
type ConsentPayload struct {
	ConsentGiven bool `json:"consent_given"`
}

// BasicInfoPayload is step 1. All six fields are required.
type BasicInfoPayload struct {
	FirstName             string `json:"first_name"`
	LastName              string `json:"last_name"`
	Specialization        string `json:"specialization"`
	PrimaryClinicHospital string `json:"primary_clinic_hospital"`
	City                  string `json:"city"`
	Country               string `json:"country"`
}

// Upload is a license document selected for step 2. Size is the declared
// length in bytes; the content is streamed on submit.
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Content     io.Reader
}

// CredentialsPayload is step 2. The document never round-trips through
// drafts; only the license number is draftable.
type CredentialsPayload struct {
	LicenseNumber string  `json:"license_number"`
	Document      *Upload `json:"-"`
}

// ContactPayload is step 3.
type ContactPayload struct {
	PhoneNumber       string           `json:"phone_number"`
	ProfessionalEmail string           `json:"professional_email"`
	Bio               string           `json:"bio"`
	ConsultationMode  ConsultationMode `json:"consultation_mode"`
}

// stepEcho is the backend's envelope for every step submission. The
// profile echo is authoritative: the server derives display name,
// doctor id, and the advanced current_step.
type stepEcho struct {
	Message  string          `json:"message"`
	DoctorID string          `json:"doctor_id"`
	Profile  json.RawMessage `json:"profile"`
}

func (e *stepEcho) result() *wizard.StepResult {
	var p struct {
		CurrentStep int `json:"current_step"`
	}
	if len(e.Profile) > 0 {
		_ = json.Unmarshal(e.Profile, &p)
	}
	return &wizard.StepResult{Data: e.Profile, CurrentStep: p.CurrentStep}
}

// stepSubmitter is what the wizard steps need from the client. Tests
// substitute a fake.
type stepSubmitter interface {
	submitConsent(ctx context.Context, p ConsentPayload, idem string) (*stepEcho, error)
	submitBasicInfo(ctx context.Context, p BasicInfoPayload, idem string) (*stepEcho, error)
	submitCredentials(ctx context.Context, p CredentialsPayload, idem string) (*stepEcho, error)
	submitContact(ctx context.Context, p ContactPayload, idem string) (*stepEcho, error)
}

func (c *Client) submitConsent(ctx context.Context, p ConsentPayload, idem string) (*stepEcho, error) {
	var echo stepEcho
	err := c.api.Post(ctx, "/doctor/profile/step0/consent/", p, &echo, rest.WithIdempotencyKey(idem))
	if err != nil {
		return nil, err
	}
	return &echo, nil
}

func (c *Client) submitBasicInfo(ctx context.Context, p BasicInfoPayload, idem string) (*stepEcho, error) {
	var echo stepEcho
	err := c.api.Post(ctx, "/doctor/profile/step1/basic-info/", p, &echo, rest.WithIdempotencyKey(idem))
	if err != nil {
		return nil, err
	}
	return &echo, nil
}

func (c *Client) submitCredentials(ctx context.Context, p CredentialsPayload, idem string) (*stepEcho, error) {
	var echo stepEcho
	err := c.api.PostMultipart(ctx, "/doctor/profile/step2/credentials/",
		map[string]string{"license_number": p.LicenseNumber},
		rest.File{
			Field:       "license_document",
			Name:        p.Document.Name,
			ContentType: p.Document.ContentType,
			Content:     p.Document.Content,
		},
		&echo, rest.WithIdempotencyKey(idem))
	if err != nil {
		return nil, err
	}
	return &echo, nil
}

func (c *Client) submitContact(ctx context.Context, p ContactPayload, idem string) (*stepEcho, error) {
	var echo stepEcho
	err := c.api.Post(ctx, "/doctor/profile/step3/contact/", p, &echo, rest.WithIdempotencyKey(idem))
	if err != nil {
		return nil, err
	}
	return &echo, nil
}

// SubmitForVerification is the wizard finalizer: it moves the profile to
// pending and hands verification to the admin workflow.
func (c *Client) SubmitForVerification(ctx context.Context) error {
	return c.api.Post(ctx, "/doctor/profile/submit/", nil, nil)
}

type consentStep struct{ api stepSubmitter }

func (s *consentStep) ID() string    { return StepConsent }
func (s *consentStep) Title() string { return "Consent" }

func (s *consentStep) Validate(payload interface{}) wizard.ErrorSet {
	p, errs := asPayload[ConsentPayload](payload)
	if !errs.Empty() {
		return errs
	}
	if !p.ConsentGiven {
		errs.Add("consent_given", "consent must be given to proceed")
	}
	return errs
}

func (s *consentStep) Submit(ctx context.Context, payload interface{}, idem string) (*wizard.StepResult, error) {
	echo, err := s.api.submitConsent(ctx, payload.(ConsentPayload), idem)
	if err != nil {
		return nil, err
	}
	return echo.result(), nil
}

type basicInfoStep struct{ api stepSubmitter }

func (s *basicInfoStep) ID() string    { return StepBasicInfo }
func (s *basicInfoStep) Title() string { return "Basic Professional Info" }

func (s *basicInfoStep) Validate(payload interface{}) wizard.ErrorSet {
	p, errs := asPayload[BasicInfoPayload](payload)
	if !errs.Empty() {
		return errs
	}
	required := map[string]string{
		"first_name":              p.FirstName,
		"last_name":               p.LastName,
		"specialization":          p.Specialization,
		"primary_clinic_hospital": p.PrimaryClinicHospital,
		"city":                    p.City,
		"country":                 p.Country,
	}
	for field, value := range required {
		if strings.TrimSpace(value) == "" {
			errs.Add(field, "this field is required")
		}
	}
	return errs
}

func (s *basicInfoStep) Submit(ctx context.Context, payload interface{}, idem string) (*wizard.StepResult, error) {
	echo, err := s.api.submitBasicInfo(ctx, payload.(BasicInfoPayload), idem)
	if err != nil {
		return nil, err
	}
	return echo.result(), nil
}

type credentialsStep struct {
	api       stepSubmitter
	maxUpload int64
}

func (s *credentialsStep) ID() string    { return StepCredentials }
func (s *credentialsStep) Title() string { return "Credentials & Doctor ID" }

var allowedDocumentTypes = map[string]bool{
	"application/pdf": true,
	"image/jpeg":      true,
	"image/png":       true,
}

var allowedDocumentExts = map[string]bool{
	".pdf":  true,
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

func (s *credentialsStep) Validate(payload interface{}) wizard.ErrorSet {
	p, errs := asPayload[CredentialsPayload](payload)
	if !errs.Empty() {
		return errs
	}
	if strings.TrimSpace(p.LicenseNumber) == "" {
		errs.Add("license_number", "license number is required")
	}
	doc := p.Document
	if doc == nil {
		errs.Add("license_document", "license document is required")
		return errs
	}
	ext := strings.ToLower(filepath.Ext(doc.Name))
	if !allowedDocumentExts[ext] || !allowedDocumentTypes[doc.ContentType] {
		errs.Add("license_document", "document must be a PDF, JPEG, or PNG")
	}
	if doc.Size > s.maxUpload {
		errs.Add("license_document", fmt.Sprintf("file size must be at most %d bytes", s.maxUpload))
	}
	return errs
}

func (s *credentialsStep) Submit(ctx context.Context, payload interface{}, idem string) (*wizard.StepResult, error) {
	echo, err := s.api.submitCredentials(ctx, payload.(CredentialsPayload), idem)
	if err != nil {
		return nil, err
	}
	return echo.result(), nil
}

type contactStep struct{ api stepSubmitter }

func (s *contactStep) ID() string    { return StepContact }
func (s *contactStep) Title() string { return "Contact & Bio" }

func (s *contactStep) Validate(payload interface{}) wizard.ErrorSet {
	p, errs := asPayload[ContactPayload](payload)
	if !errs.Empty() {
		return errs
	}
	if strings.TrimSpace(p.PhoneNumber) == "" {
		errs.Add("phone_number", "phone number is required")
	}
	if len(p.Bio) > 280 {
		errs.Add("bio", "bio must be at most 280 characters")
	}
	if p.ConsultationMode != "" && !p.ConsultationMode.Valid() {
		errs.Add("consultation_mode", "unknown consultation mode")
	}
	return errs
}

func (s *contactStep) Submit(ctx context.Context, payload interface{}, idem string) (*wizard.StepResult, error) {
	echo, err := s.api.submitContact(ctx, payload.(ContactPayload), idem)
	if err != nil {
		return nil, err
	}
	return echo.result(), nil
}

// asPayload narrows the wizard's opaque payload to the step's own type,
// accepting both the value and a pointer to it.
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

// NewProfileWizard builds the four-step doctor setup wizard backed by
// the server-side draft, so progress resumes on any device.
func NewProfileWizard(c *Client, uploadLimit int64, log zerolog.Logger) *wizard.Controller {
	if uploadLimit <= 0 {
		uploadLimit = DefaultUploadLimit
	}
	steps := []wizard.Step{
		&consentStep{api: c},
		&basicInfoStep{api: c},
		&credentialsStep{api: c, maxUpload: uploadLimit},
		&contactStep{api: c},
	}
	return wizard.New(steps, &draftSource{c: c},
		wizard.WithFinalizer(c.SubmitForVerification),
		wizard.WithLogger(log))
}

// draftSource adapts the profile resource to the wizard's draft
// contract. The backend keeps one flat profile row, so a draft is
// reconstructed from it on fetch and flattened back on save.
type draftSource struct {
	c *Client
}

func (d *draftSource) FetchDraft(ctx context.Context) (*wizard.Draft, error) {
	p, err := d.c.Profile(ctx)
	if err != nil {
		return nil, err
	}
	step := p.CurrentStep
	if step < 0 {
		step = 0
	}
	if step > 4 {
		step = 4
	}
	data := map[string]json.RawMessage{}
	put := func(id string, v interface{}) {
		if raw, err := json.Marshal(v); err == nil {
			data[id] = raw
		}
	}
	put(StepConsent, ConsentPayload{ConsentGiven: p.ConsentGiven})
	put(StepBasicInfo, BasicInfoPayload{
		FirstName:             p.FirstName,
		LastName:              p.LastName,
		Specialization:        p.Specialization,
		PrimaryClinicHospital: p.PrimaryClinicHospital,
		City:                  p.City,
		Country:               p.Country,
	})
	put(StepCredentials, CredentialsPayload{LicenseNumber: p.LicenseNumber})
	put(StepContact, ContactPayload{
		PhoneNumber:       p.PhoneNumber,
		ProfessionalEmail: p.ProfessionalEmail,
		Bio:               p.Bio,
		ConsultationMode:  p.ConsultationMode,
	})
	return &wizard.Draft{CurrentStep: step, StepData: data}, nil
}

func (d *draftSource) SaveDraft(ctx context.Context, draft wizard.Draft) error {
	fields := map[string]interface{}{
		"current_step": draft.CurrentStep,
	}
	for _, raw := range draft.StepData {
		var m map[string]interface{}
		if err := json.Unmarshal(raw, &m); err != nil {
			continue
		}
		for k, v := range m {
			fields[k] = v
		}
	}
	return d.c.api.Post(ctx, "/doctor/profile/save-draft/", fields, nil)
}
