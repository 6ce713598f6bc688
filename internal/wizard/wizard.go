// Package wizard drives the multi-step setup flows (doctor profile,
// patient profile, intake form builder). A Controller owns an ordered
// list of steps, each with its own validation and its own network call;
// the controller is otherwise ignorant of what a step contains.
//
// Controllers are view-scoped and follow the single event-loop model of
// the UI: they are not safe for concurrent use from multiple goroutines.
package wizard

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Status is the client-owned wizard lifecycle. Verification outcomes
// (verified/rejected) belong to the server workflow and are observed
// separately; they are deliberately not states here.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusSubmitted  Status = "submitted"
)

// Step is one screen of a wizard. Payloads are opaque to the controller;
// each implementation knows its own payload type.
type Step interface {
	ID() string
	Title() string
	// Validate runs synchronously with no side effects. A non-empty
	// ErrorSet blocks submission before any network call.
	Validate(payload interface{}) ErrorSet
	// Submit persists the step remotely. idempotencyKey is stable across
	// retries of the same step, so a re-submit is an update rather than a
	// duplicate create.
	Submit(ctx context.Context, payload interface{}, idempotencyKey string) (*StepResult, error)
}

// StepResult is the server's authoritative echo for a submitted step.
// The server may normalize or derive fields (generated identifiers,
// display names), so the echo replaces the submitted payload.
type StepResult struct {
	Data        json.RawMessage
	CurrentStep int
}

// Draft is the remotely persisted in-progress state, keyed the same way
// on every device so the wizard resumes at the right step anywhere.
type Draft struct {
	CurrentStep int                        `json:"current_step"`
	StepData    map[string]json.RawMessage `json:"step_data"`
}

// DraftSource fetches and stores drafts on the backend.
type DraftSource interface {
	FetchDraft(ctx context.Context) (*Draft, error)
	SaveDraft(ctx context.Context, d Draft) error
}

// Finalizer performs the final submission once every step is done.
type Finalizer func(ctx context.Context) error

// Controller holds wizard progression state. The invariant maintained
// everywhere: 0 <= current <= len(steps), where current == len(steps) is
// the review position.
type Controller struct {
	steps    []Step
	source   DraftSource
	finalize Finalizer
	log      zerolog.Logger

	current  int
	status   Status
	stepData map[string]json.RawMessage
	idemKeys map[string]string
	lastErr  error
}

type Option func(*Controller)

// WithFinalizer sets the call made by Finalize after the last step.
func WithFinalizer(f Finalizer) Option {
	return func(c *Controller) { c.finalize = f }
}

func WithLogger(log zerolog.Logger) Option {
	return func(c *Controller) { c.log = log }
}

func New(steps []Step, source DraftSource, opts ...Option) *Controller {
	c := &Controller{
		steps:    steps,
		source:   source,
		log:      zerolog.Nop(),
		status:   StatusInProgress,
		stepData: make(map[string]json.RawMessage),
		idemKeys: make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Initialize seeds the controller from the server-side draft. A fetch
// failure is never fatal: the wizard starts fresh at step 0 and the
// error is surfaced through LastError for a dismissable banner.
func (c *Controller) Initialize(ctx context.Context) {
	c.current = 0
	c.status = StatusInProgress
	c.lastErr = nil

	if c.source == nil {
		return
	}
	draft, err := c.source.FetchDraft(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("draft fetch failed, starting fresh")
		c.lastErr = fmt.Errorf("resume draft: %w", err)
		return
	}
	if draft == nil {
		return
	}
	for id, data := range draft.StepData {
		if c.stepIndex(id) >= 0 {
			c.stepData[id] = data
		}
	}
	if draft.CurrentStep >= 0 && draft.CurrentStep <= len(c.steps) {
		c.current = draft.CurrentStep
	}
}

// Current returns the active step index; len(Steps()) means review.
func (c *Controller) Current() int { return c.current }

// Steps returns the ordered step definitions.
func (c *Controller) Steps() []Step { return c.steps }

// CurrentStep returns the active step, or nil at the review position.
func (c *Controller) CurrentStep() Step {
	if c.current >= len(c.steps) {
		return nil
	}
	return c.steps[c.current]
}

// AtReview reports whether every step has been completed.
func (c *Controller) AtReview() bool { return c.current == len(c.steps) }

func (c *Controller) Status() Status { return c.status }

// StepData returns the stored (server-echoed) payload for a step id.
func (c *Controller) StepData(stepID string) (json.RawMessage, bool) {
	d, ok := c.stepData[stepID]
	return d, ok
}

// LastError returns the most recent recoverable error, if any.
func (c *Controller) LastError() error { return c.lastErr }

// DismissError clears the recoverable error banner.
func (c *Controller) DismissError() { c.lastErr = nil }

// ValidateCurrent runs the active step's validator. Pure and
// synchronous; at the review position there is nothing to validate.
func (c *Controller) ValidateCurrent(payload interface{}) ErrorSet {
	step := c.CurrentStep()
	if step == nil {
		return nil
	}
	return step.Validate(payload)
}

// SubmitCurrent validates and submits the active step. On success the
// server's echo is stored and the index advances by exactly one; on any
// failure the index is unchanged and the step stays editable.
func (c *Controller) SubmitCurrent(ctx context.Context, payload interface{}) (*StepResult, error) {
	if c.status == StatusSubmitted {
		return nil, ErrAlreadySubmitted
	}
	step := c.CurrentStep()
	if step == nil {
		return nil, ErrNoActiveStep
	}

	if errs := step.Validate(payload); !errs.Empty() {
		return nil, &ValidationError{Step: step.ID(), Errors: errs}
	}

	res, err := step.Submit(ctx, payload, c.idempotencyKey(step.ID()))
	if err != nil {
		return nil, fmt.Errorf("submit step %s: %w", step.ID(), err)
	}

	if res != nil && len(res.Data) > 0 {
		c.stepData[step.ID()] = res.Data
	} else if raw, merr := json.Marshal(payload); merr == nil {
		c.stepData[step.ID()] = raw
	}

	c.current++
	c.lastErr = nil
	return res, nil
}

// SaveDraft persists the in-progress payload for the active step without
// advancing. Failures are transient: recorded in LastError and returned,
// never fatal.
func (c *Controller) SaveDraft(ctx context.Context, payload interface{}) error {
	if c.source == nil {
		return nil
	}
	data := make(map[string]json.RawMessage, len(c.stepData)+1)
	for id, d := range c.stepData {
		data[id] = d
	}
	if step := c.CurrentStep(); step != nil && payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode draft payload: %w", err)
		}
		data[step.ID()] = raw
	}

	err := c.source.SaveDraft(ctx, Draft{CurrentStep: c.current, StepData: data})
	if err != nil {
		err = fmt.Errorf("save draft: %w", err)
		c.lastErr = err
		return err
	}
	return nil
}

// GoToStep moves the cursor for review or edits. Only backward moves
// (and staying put) are permitted; jumping ahead of validated progress
// is rejected.
func (c *Controller) GoToStep(index int) error {
	if c.status == StatusSubmitted {
		return ErrAlreadySubmitted
	}
	if index < 0 || index > len(c.steps) {
		return fmt.Errorf("step %d out of range [0,%d]: %w", index, len(c.steps), ErrForwardJump)
	}
	if index > c.current {
		return ErrForwardJump
	}
	c.current = index
	return nil
}

// Finalize submits the completed wizard. Only callable at the review
// position; irreversible from the client's perspective once it succeeds.
func (c *Controller) Finalize(ctx context.Context) error {
	if c.status == StatusSubmitted {
		return ErrAlreadySubmitted
	}
	if !c.AtReview() {
		return ErrNotAtReview
	}
	if c.finalize != nil {
		if err := c.finalize(ctx); err != nil {
			return fmt.Errorf("finalize: %w", err)
		}
	}
	c.status = StatusSubmitted
	return nil
}

func (c *Controller) stepIndex(id string) int {
	for i, s := range c.steps {
		if s.ID() == id {
			return i
		}
	}
	return -1
}

// idempotencyKey returns the stable key for a step, minting it on first
// use. Retries and edits of the same step reuse the key.
func (c *Controller) idempotencyKey(stepID string) string {
	if k, ok := c.idemKeys[stepID]; ok {
		return k
	}
	k := uuid.NewString()
	c.idemKeys[stepID] = k
	return k
}
