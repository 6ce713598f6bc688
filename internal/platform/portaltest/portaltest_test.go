package portaltest_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/carebridge/portal/internal/domain/doctor"
	"github.com/carebridge/portal/internal/domain/history"
	"github.com/carebridge/portal/internal/domain/labs"
	"github.com/carebridge/portal/internal/domain/patient"
	"github.com/carebridge/portal/internal/platform/portaltest"
	"github.com/carebridge/portal/internal/platform/rest"
	"github.com/carebridge/portal/internal/platform/session"
	"github.com/carebridge/portal/pkg/pagination"
)

func newStack(t *testing.T) (*portaltest.Server, *rest.Client, *session.Session) {
	t.Helper()
	srv := portaltest.New()
	t.Cleanup(srv.Close)
	sess := session.New()
	api := rest.NewClient(rest.Config{BaseURL: srv.URL()}, sess, zerolog.Nop())
	return srv, api, sess
}

func TestDoctorSetupEndToEnd(t *testing.T) {
	srv, api, sess := newStack(t)
	dc := doctor.NewClient(api, sess, zerolog.Nop())
	ctx := context.Background()

	resp, err := dc.Signup(ctx, doctor.SignupRequest{
		Username: "drjane", Email: "jane@example.com",
		Password: "pw", PasswordConfirm: "pw",
	})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if resp.RedirectTo != doctor.RedirectProfile {
		t.Errorf("redirect = %q, want profile", resp.RedirectTo)
	}
	if !sess.Authenticated() || sess.Expired(time.Now()) {
		t.Fatal("expected a live session from the signup token")
	}

	w := doctor.NewProfileWizard(dc, 0, zerolog.Nop())
	w.Initialize(ctx)
	if w.Current() != 0 {
		t.Fatalf("fresh wizard starts at %d", w.Current())
	}

	if _, err := w.SubmitCurrent(ctx, doctor.ConsentPayload{ConsentGiven: true}); err != nil {
		t.Fatalf("consent: %v", err)
	}
	if _, err := w.SubmitCurrent(ctx, doctor.BasicInfoPayload{
		FirstName: "Jane", LastName: "Osei", Specialization: "Cardiology",
		PrimaryClinicHospital: "Accra General", City: "Accra", Country: "Ghana",
	}); err != nil {
		t.Fatalf("basic info: %v", err)
	}

	creds := doctor.CredentialsPayload{
		LicenseNumber: "MD-12345",
		Document: &doctor.Upload{
			Name: "license.pdf", ContentType: "application/pdf",
			Size: 8, Content: strings.NewReader("%PDF-1.4"),
		},
	}
	if _, err := w.SubmitCurrent(ctx, creds); err != nil {
		t.Fatalf("credentials: %v", err)
	}

	// Re-submitting the step after going back reuses the idempotency key;
	// the backend must not mint a second doctor id.
	if err := w.GoToStep(2); err != nil {
		t.Fatal(err)
	}
	creds.Document.Content = strings.NewReader("%PDF-1.4")
	if _, err := w.SubmitCurrent(ctx, creds); err != nil {
		t.Fatalf("credentials re-submit: %v", err)
	}
	if got := srv.StepSubmits["credentials"]; got != 1 {
		t.Errorf("credential creates = %d, want 1 (idempotent re-submit)", got)
	}

	if _, err := w.SubmitCurrent(ctx, doctor.ContactPayload{
		PhoneNumber: "555-0100", Bio: "Cardiologist", ConsultationMode: doctor.ModeBoth,
	}); err != nil {
		t.Fatalf("contact: %v", err)
	}
	if !w.AtReview() {
		t.Fatalf("position = %d, want review", w.Current())
	}
	if err := w.Finalize(ctx); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	vs, err := dc.VerificationStatus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if vs.ProfileStatus != doctor.StatusPending {
		t.Errorf("status after submit = %s, want pending", vs.ProfileStatus)
	}
	if vs.Profile.DoctorID == "" || !strings.HasPrefix(vs.Profile.DoctorID, "DR-") {
		t.Errorf("doctor id = %q", vs.Profile.DoctorID)
	}

	// Admin approves; the watcher observes the transition and stops.
	var observed []doctor.ProfileStatus
	done := make(chan struct{})
	watcher := doctor.NewWatcher(dc, 5*time.Millisecond, func(vs doctor.VerificationStatus) {
		observed = append(observed, vs.ProfileStatus)
		if vs.ProfileStatus.Terminal() {
			close(done)
		}
	}, zerolog.Nop())
	watcher.Start(ctx)
	srv.VerifyDoctor("drjane")
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher never observed the verification")
	}
	<-watcher.Done()
	if watcher.Last() != doctor.StatusVerified {
		t.Errorf("last observed = %s", watcher.Last())
	}
}

func TestDoctorWizardResumesFromDraft(t *testing.T) {
	_, api, sess := newStack(t)
	dc := doctor.NewClient(api, sess, zerolog.Nop())
	ctx := context.Background()

	if _, err := dc.Signup(ctx, doctor.SignupRequest{
		Username: "drfirst", Email: "f@example.com", Password: "pw", PasswordConfirm: "pw",
	}); err != nil {
		t.Fatal(err)
	}

	w := doctor.NewProfileWizard(dc, 0, zerolog.Nop())
	w.Initialize(ctx)
	if _, err := w.SubmitCurrent(ctx, doctor.ConsentPayload{ConsentGiven: true}); err != nil {
		t.Fatal(err)
	}
	if _, err := w.SubmitCurrent(ctx, doctor.BasicInfoPayload{
		FirstName: "First", LastName: "Last", Specialization: "GP",
		PrimaryClinicHospital: "Clinic", City: "City", Country: "Country",
	}); err != nil {
		t.Fatal(err)
	}

	// A second device builds a fresh wizard and resumes at step 2 with
	// the saved payloads.
	w2 := doctor.NewProfileWizard(dc, 0, zerolog.Nop())
	w2.Initialize(ctx)
	if w2.Current() != 2 {
		t.Fatalf("resume position = %d, want 2", w2.Current())
	}
	raw, ok := w2.StepData(doctor.StepBasicInfo)
	if !ok || !strings.Contains(string(raw), "Clinic") {
		t.Errorf("resumed step data = %s", raw)
	}
}

func TestPatientSetupEndToEnd(t *testing.T) {
	_, api, sess := newStack(t)
	pc := patient.NewClient(api, sess, zerolog.Nop())
	ctx := context.Background()

	w := patient.NewProfileWizard(pc, zerolog.Nop())
	if _, err := w.SubmitCurrent(ctx, patient.SignupRequest{
		Username: "pat", Email: "pat@example.com", Password: "pw", PasswordConfirm: "pw",
	}); err != nil {
		t.Fatalf("account: %v", err)
	}
	if sess.Role() != session.RolePatient {
		t.Fatalf("role = %q", sess.Role())
	}

	born, _ := time.Parse("2006-01-02", "1990-04-01")
	if _, err := w.SubmitCurrent(ctx, patient.PersonalPayload{
		FirstName: "Pat", LastName: "Doe", PhoneNumber: "555-0101",
		DateOfBirth: patient.Date{Time: born},
	}); err != nil {
		t.Fatalf("personal: %v", err)
	}
	if _, err := w.SubmitCurrent(ctx, patient.MedicalPayload{
		BloodGroup:            patient.BloodOPos,
		EmergencyContactName:  "Sam Doe",
		EmergencyContactPhone: "555-0102",
	}); err != nil {
		t.Fatalf("medical: %v", err)
	}
	if err := w.Finalize(ctx); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	p, err := pc.Profile(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !p.ProfileCompleted || p.BloodGroup != patient.BloodOPos {
		t.Errorf("profile = %+v", p)
	}
}

func seedHistory(srv *portaltest.Server) {
	srv.SeedHistory(7, []portaltest.J{
		{"id": 1, "workspace": 7, "category": "condition", "title": "Hypertension", "status": "active", "is_chronic": true, "is_critical": false},
		{"id": 2, "workspace": 7, "category": "medication", "title": "Lisinopril", "status": "active", "is_critical": false},
		{"id": 3, "workspace": 7, "category": "allergy", "title": "Penicillin", "status": "active", "is_critical": true},
	})
}

func TestHistoryDashboardAgainstFake(t *testing.T) {
	srv, api, sess := newStack(t)
	pc := patient.NewClient(api, sess, zerolog.Nop())
	ctx := context.Background()

	if _, err := pc.Signup(ctx, patient.SignupRequest{
		Username: "pat2", Email: "p2@example.com", Password: "pw", PasswordConfirm: "pw",
	}); err != nil {
		t.Fatal(err)
	}
	seedHistory(srv)

	hc := history.NewClient(api)
	dash := history.NewDashboard(ctx, hc, 7, zerolog.Nop())
	defer dash.Close()

	if err := dash.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if !dash.Ready() {
		t.Fatal("dashboard not ready after load")
	}
	if got := len(dash.Clinical().Allergies); got != 1 {
		t.Errorf("allergies = %d", got)
	}
	if len(dash.Timeline()) != 3 {
		t.Errorf("timeline events = %d", len(dash.Timeline()))
	}

	tab, err := dash.Tab(history.CategoryCondition)
	if err != nil {
		t.Fatalf("tab: %v", err)
	}
	if len(tab.Visible()) != 1 || tab.Visible()[0].Title != "Hypertension" {
		t.Errorf("condition tab = %+v", tab.Visible())
	}

	// Server-side filter path.
	page, err := hc.WorkspaceHistory(ctx, 7, history.ListQuery{CriticalOnly: true}, pagination.Params{})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Data) != 1 || page.Data[0].Title != "Penicillin" {
		t.Errorf("critical entries = %+v", page.Data)
	}
}

func TestLabsGroupedAgainstFake(t *testing.T) {
	srv, api, sess := newStack(t)
	pc := patient.NewClient(api, sess, zerolog.Nop())
	ctx := context.Background()

	if _, err := pc.Signup(ctx, patient.SignupRequest{
		Username: "pat3", Email: "p3@example.com", Password: "pw", PasswordConfirm: "pw",
	}); err != nil {
		t.Fatal(err)
	}
	srv.SeedLabs(7, []portaltest.J{
		{"id": 1, "test_name": "HbA1c", "value": "6.1", "unit": "%", "flag": "high", "collected_at": "2026-08-01T09:00:00Z"},
		{"id": 2, "test_name": "HbA1c", "value": "5.8", "unit": "%", "flag": "normal", "collected_at": "2026-08-10T09:00:00Z"},
	}, map[string]portaltest.J{
		"HbA1c": {"test_name": "HbA1c", "unit": "%", "direction": "falling",
			"points": []portaltest.J{{"date": "2026-08-01", "value": 6.1}, {"date": "2026-08-10", "value": 5.8}}},
	})

	lc := labs.NewClient(api)
	model, fetch := lc.NewGroupedModel(7)
	if err := model.Load(ctx, fetch); err != nil {
		t.Fatalf("load: %v", err)
	}
	groups := model.Groups()
	if len(groups) != 1 || len(groups[0].Records) != 2 {
		t.Fatalf("groups = %+v", groups)
	}
	if err := <-model.SelectGroup(ctx, "HbA1c"); err != nil {
		t.Fatalf("select: %v", err)
	}
	trend, ok, err := model.Detail()
	if err != nil || !ok || trend.Direction != "falling" {
		t.Errorf("trend = %+v ok=%v err=%v", trend, ok, err)
	}
}
