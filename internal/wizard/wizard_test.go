package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

// ── Mocks ──

type fakeStep struct {
	id          string
	requiredKey string // payload map key that must be non-empty

	submitCalls int
	submitKeys  []string
	submitErr   error
	result      *StepResult
}

func (s *fakeStep) ID() string    { return s.id }
func (s *fakeStep) Title() string { return "Step " + s.id }

func (s *fakeStep) Validate(payload interface{}) ErrorSet {
	errs := ErrorSet{}
	if s.requiredKey == "" {
		return errs
	}
	m, _ := payload.(map[string]string)
	if m[s.requiredKey] == "" {
		errs.Add(s.requiredKey, "This field is required.")
	}
	return errs
}

func (s *fakeStep) Submit(_ context.Context, payload interface{}, key string) (*StepResult, error) {
	s.submitCalls++
	s.submitKeys = append(s.submitKeys, key)
	if s.submitErr != nil {
		return nil, s.submitErr
	}
	if s.result != nil {
		return s.result, nil
	}
	raw, _ := json.Marshal(payload)
	return &StepResult{Data: raw}, nil
}

type fakeDraftSource struct {
	draft      *Draft
	fetchErr   error
	saveErr    error
	saved      []Draft
	fetchCalls int
}

func (f *fakeDraftSource) FetchDraft(_ context.Context) (*Draft, error) {
	f.fetchCalls++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.draft, nil
}

func (f *fakeDraftSource) SaveDraft(_ context.Context, d Draft) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, d)
	return nil
}

func threeSteps() []*fakeStep {
	return []*fakeStep{
		{id: "consent", requiredKey: "consent"},
		{id: "basic", requiredKey: "first_name"},
		{id: "contact", requiredKey: "phone"},
	}
}

func asSteps(fakes []*fakeStep) []Step {
	steps := make([]Step, len(fakes))
	for i, s := range fakes {
		steps[i] = s
	}
	return steps
}

// ── Initialize ──

func TestInitialize_FreshStart(t *testing.T) {
	c := New(asSteps(threeSteps()), nil)
	c.Initialize(context.Background())
	if c.Current() != 0 {
		t.Errorf("Current = %d, want 0", c.Current())
	}
	if c.Status() != StatusInProgress {
		t.Errorf("Status = %q", c.Status())
	}
	if c.LastError() != nil {
		t.Errorf("LastError = %v, want nil", c.LastError())
	}
}

func TestInitialize_ResumesFromDraft(t *testing.T) {
	src := &fakeDraftSource{draft: &Draft{
		CurrentStep: 2,
		StepData: map[string]json.RawMessage{
			"consent": json.RawMessage(`{"consent":"true"}`),
			"basic":   json.RawMessage(`{"first_name":"Jane"}`),
			"ignored": json.RawMessage(`{}`), // unknown step ids are dropped
		},
	}}
	c := New(asSteps(threeSteps()), src)
	c.Initialize(context.Background())

	if c.Current() != 2 {
		t.Errorf("Current = %d, want 2", c.Current())
	}
	if _, ok := c.StepData("basic"); !ok {
		t.Error("basic step data not seeded")
	}
	if _, ok := c.StepData("ignored"); ok {
		t.Error("unknown step id should not be seeded")
	}
}

func TestInitialize_FetchErrorStartsFreshRecoverably(t *testing.T) {
	src := &fakeDraftSource{fetchErr: fmt.Errorf("gateway timeout")}
	c := New(asSteps(threeSteps()), src)
	c.Initialize(context.Background())

	if c.Current() != 0 {
		t.Errorf("Current = %d, want 0 after fetch failure", c.Current())
	}
	if c.LastError() == nil {
		t.Fatal("fetch failure must surface a recoverable error")
	}
	c.DismissError()
	if c.LastError() != nil {
		t.Error("error not dismissable")
	}
}

func TestInitialize_ClampsOutOfRangeResumeIndex(t *testing.T) {
	src := &fakeDraftSource{draft: &Draft{CurrentStep: 99}}
	c := New(asSteps(threeSteps()), src)
	c.Initialize(context.Background())
	if c.Current() != 0 {
		t.Errorf("Current = %d, want 0 for out-of-range marker", c.Current())
	}
}

// ── Validation and submission ──

func TestSubmitCurrent_ValidationBlocksNetwork(t *testing.T) {
	fakes := threeSteps()
	c := New(asSteps(fakes), nil)
	c.Initialize(context.Background())

	_, err := c.SubmitCurrent(context.Background(), map[string]string{})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if errs := ValidationErrors(err); len(errs["consent"]) == 0 {
		t.Errorf("ValidationErrors = %v", errs)
	}
	if fakes[0].submitCalls != 0 {
		t.Errorf("submit was called %d times despite validation failure", fakes[0].submitCalls)
	}
	if c.Current() != 0 {
		t.Errorf("Current = %d, want 0", c.Current())
	}
}

func TestSubmitCurrent_AdvancesByExactlyOne(t *testing.T) {
	fakes := threeSteps()
	c := New(asSteps(fakes), nil)
	c.Initialize(context.Background())

	if _, err := c.SubmitCurrent(context.Background(), map[string]string{"consent": "true"}); err != nil {
		t.Fatalf("SubmitCurrent = %v", err)
	}
	if c.Current() != 1 {
		t.Fatalf("Current = %d, want 1", c.Current())
	}
	if _, ok := c.StepData("consent"); !ok {
		t.Error("server echo not stored")
	}
}

func TestSubmitCurrent_StoresServerEcho(t *testing.T) {
	fakes := threeSteps()
	fakes[0].result = &StepResult{Data: json.RawMessage(`{"consent":true,"consent_timestamp":"2026-01-05T10:00:00Z"}`)}
	c := New(asSteps(fakes), nil)
	c.Initialize(context.Background())

	if _, err := c.SubmitCurrent(context.Background(), map[string]string{"consent": "true"}); err != nil {
		t.Fatalf("SubmitCurrent = %v", err)
	}
	echo, _ := c.StepData("consent")
	var decoded struct {
		Timestamp string `json:"consent_timestamp"`
	}
	if err := json.Unmarshal(echo, &decoded); err != nil || decoded.Timestamp == "" {
		t.Errorf("stored data %s is not the server echo", echo)
	}
}

func TestSubmitCurrent_FailureDoesNotAdvance(t *testing.T) {
	fakes := threeSteps()
	fakes[0].submitErr = fmt.Errorf("503 upstream")
	c := New(asSteps(fakes), nil)
	c.Initialize(context.Background())

	_, err := c.SubmitCurrent(context.Background(), map[string]string{"consent": "true"})
	if err == nil {
		t.Fatal("expected submit error")
	}
	if c.Current() != 0 {
		t.Errorf("Current = %d, want 0 after failed submit", c.Current())
	}

	// Retry after the outage is safe and advances once.
	fakes[0].submitErr = nil
	if _, err := c.SubmitCurrent(context.Background(), map[string]string{"consent": "true"}); err != nil {
		t.Fatalf("retry = %v", err)
	}
	if c.Current() != 1 {
		t.Errorf("Current = %d, want 1", c.Current())
	}
}

func TestSubmitCurrent_IdempotencyKeyStableAcrossRetries(t *testing.T) {
	fakes := threeSteps()
	fakes[0].submitErr = fmt.Errorf("transient")
	c := New(asSteps(fakes), nil)
	c.Initialize(context.Background())

	payload := map[string]string{"consent": "true"}
	c.SubmitCurrent(context.Background(), payload)
	fakes[0].submitErr = nil
	c.SubmitCurrent(context.Background(), payload)

	if len(fakes[0].submitKeys) != 2 {
		t.Fatalf("submit calls = %d, want 2", len(fakes[0].submitKeys))
	}
	if fakes[0].submitKeys[0] != fakes[0].submitKeys[1] {
		t.Errorf("idempotency key changed across retries: %q vs %q",
			fakes[0].submitKeys[0], fakes[0].submitKeys[1])
	}
	if fakes[0].submitKeys[0] == "" {
		t.Error("idempotency key is empty")
	}
}

func TestResubmitEditedStep_SingleAdvanceAndSameKey(t *testing.T) {
	fakes := threeSteps()
	c := New(asSteps(fakes), nil)
	c.Initialize(context.Background())

	if _, err := c.SubmitCurrent(context.Background(), map[string]string{"consent": "true"}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	// Go back and re-submit the same step (treated as an update).
	if err := c.GoToStep(0); err != nil {
		t.Fatalf("GoToStep(0) = %v", err)
	}
	if _, err := c.SubmitCurrent(context.Background(), map[string]string{"consent": "true"}); err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if c.Current() != 1 {
		t.Errorf("Current = %d, want 1 (single advance per submit)", c.Current())
	}
	if fakes[0].submitKeys[0] != fakes[0].submitKeys[1] {
		t.Error("edited re-submit must reuse the step's idempotency key")
	}
}

func TestSubmitCurrent_NeverAdvancesPastReview(t *testing.T) {
	fakes := threeSteps()
	c := New(asSteps(fakes), nil)
	c.Initialize(context.Background())

	payloads := []map[string]string{
		{"consent": "true"},
		{"first_name": "Jane"},
		{"phone": "+1-555-0100"},
	}
	for i, p := range payloads {
		if _, err := c.SubmitCurrent(context.Background(), p); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	if !c.AtReview() {
		t.Fatalf("Current = %d, want review position %d", c.Current(), len(fakes))
	}
	if _, err := c.SubmitCurrent(context.Background(), nil); !errors.Is(err, ErrNoActiveStep) {
		t.Errorf("submit at review = %v, want ErrNoActiveStep", err)
	}
	if c.Current() != len(fakes) {
		t.Errorf("Current = %d, advanced past steps length", c.Current())
	}
}

// ── Navigation ──

func TestGoToStep_BackwardAllowedForwardRejected(t *testing.T) {
	c := New(asSteps(threeSteps()), nil)
	c.Initialize(context.Background())

	if _, err := c.SubmitCurrent(context.Background(), map[string]string{"consent": "true"}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	// currentStepIndex is now 1; jumping to 2 must be rejected.
	if err := c.GoToStep(2); !errors.Is(err, ErrForwardJump) {
		t.Errorf("GoToStep(2) = %v, want ErrForwardJump", err)
	}
	if c.Current() != 1 {
		t.Errorf("Current = %d, want 1 after rejected jump", c.Current())
	}
	if err := c.GoToStep(0); err != nil {
		t.Errorf("GoToStep(0) = %v, want nil", err)
	}
	if err := c.GoToStep(-1); err == nil {
		t.Error("GoToStep(-1) accepted")
	}
}

// ── Drafts ──

func TestSaveDraft_DoesNotAdvanceAndMergesData(t *testing.T) {
	src := &fakeDraftSource{}
	c := New(asSteps(threeSteps()), src)
	c.Initialize(context.Background())

	if _, err := c.SubmitCurrent(context.Background(), map[string]string{"consent": "true"}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := c.SaveDraft(context.Background(), map[string]string{"first_name": "Ja"}); err != nil {
		t.Fatalf("SaveDraft = %v", err)
	}
	if c.Current() != 1 {
		t.Errorf("Current = %d, SaveDraft must not advance", c.Current())
	}
	if len(src.saved) != 1 {
		t.Fatalf("saved drafts = %d", len(src.saved))
	}
	d := src.saved[0]
	if d.CurrentStep != 1 {
		t.Errorf("draft CurrentStep = %d, want 1", d.CurrentStep)
	}
	if _, ok := d.StepData["consent"]; !ok {
		t.Error("draft missing completed step data")
	}
	if _, ok := d.StepData["basic"]; !ok {
		t.Error("draft missing in-progress step payload")
	}
}

func TestSaveDraft_FailureIsTransient(t *testing.T) {
	src := &fakeDraftSource{saveErr: fmt.Errorf("write timeout")}
	c := New(asSteps(threeSteps()), src)
	c.Initialize(context.Background())

	if err := c.SaveDraft(context.Background(), map[string]string{"consent": "true"}); err == nil {
		t.Fatal("expected save error")
	}
	if c.LastError() == nil {
		t.Error("transient error not recorded")
	}
	if c.Current() != 0 || c.Status() != StatusInProgress {
		t.Error("draft failure mutated wizard progression")
	}
}

// ── Finalize ──

func TestFinalize_OnlyAtReview(t *testing.T) {
	finalized := 0
	c := New(asSteps(threeSteps()), nil, WithFinalizer(func(ctx context.Context) error {
		finalized++
		return nil
	}))
	c.Initialize(context.Background())

	if err := c.Finalize(context.Background()); !errors.Is(err, ErrNotAtReview) {
		t.Fatalf("early Finalize = %v, want ErrNotAtReview", err)
	}

	for _, p := range []map[string]string{
		{"consent": "true"}, {"first_name": "Jane"}, {"phone": "+1-555-0100"},
	} {
		if _, err := c.SubmitCurrent(context.Background(), p); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	if err := c.Finalize(context.Background()); err != nil {
		t.Fatalf("Finalize = %v", err)
	}
	if finalized != 1 {
		t.Errorf("finalizer calls = %d", finalized)
	}
	if c.Status() != StatusSubmitted {
		t.Errorf("Status = %q, want submitted", c.Status())
	}

	// Irreversible: everything is rejected afterwards.
	if err := c.Finalize(context.Background()); !errors.Is(err, ErrAlreadySubmitted) {
		t.Errorf("second Finalize = %v", err)
	}
	if _, err := c.SubmitCurrent(context.Background(), nil); !errors.Is(err, ErrAlreadySubmitted) {
		t.Errorf("submit after finalize = %v", err)
	}
	if err := c.GoToStep(0); !errors.Is(err, ErrAlreadySubmitted) {
		t.Errorf("GoToStep after finalize = %v", err)
	}
}

func TestFinalize_FailureKeepsInProgress(t *testing.T) {
	c := New(asSteps(threeSteps()), nil, WithFinalizer(func(ctx context.Context) error {
		return fmt.Errorf("server rejected submission")
	}))
	c.Initialize(context.Background())
	for _, p := range []map[string]string{
		{"consent": "true"}, {"first_name": "Jane"}, {"phone": "+1-555-0100"},
	} {
		if _, err := c.SubmitCurrent(context.Background(), p); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	if err := c.Finalize(context.Background()); err == nil {
		t.Fatal("expected finalize error")
	}
	if c.Status() != StatusInProgress {
		t.Errorf("Status = %q, want in_progress after failed finalize", c.Status())
	}
}

// ── ErrorSet ──

func TestErrorSet(t *testing.T) {
	errs := ErrorSet{}
	if !errs.Empty() {
		t.Error("new set not empty")
	}
	errs.Add("bio", "Bio must be less than 280 characters.")
	errs.Add("bio", "second message")
	errs.Add("phone_number", "Phone number is required.")
	if errs.Empty() {
		t.Error("populated set reported empty")
	}
	fields := errs.Fields()
	if len(fields) != 2 || fields[0] != "bio" || fields[1] != "phone_number" {
		t.Errorf("Fields = %v", fields)
	}

	verr := &ValidationError{Step: "contact", Errors: errs}
	if ValidationErrors(verr) == nil {
		t.Error("ValidationErrors failed to unwrap")
	}
	if ValidationErrors(fmt.Errorf("other")) != nil {
		t.Error("ValidationErrors matched unrelated error")
	}
}
