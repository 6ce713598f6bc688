package intake

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/carebridge/portal/internal/wizard"
)

const (
	StepDetails = "details"
	StepFields  = "fields"
)

// DetailsPayload is the builder's first step.
type DetailsPayload struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// FieldsPayload is the builder's second step.
type FieldsPayload struct {
	Fields []Field `json:"fields"`
}

// creator is the network edge of the builder; *Client implements it.
type creator interface {
	Create(ctx context.Context, req CreateRequest) (*Form, error)
}

// Builder assembles a form locally through a two-step wizard and
// creates it on the backend at finalize. The intermediate steps make no
// network calls, so a half-built form costs nothing to abandon.
type Builder struct {
	api     creator
	ctrl    *wizard.Controller
	details DetailsPayload
	fields  []Field
	created *Form
}

func NewBuilder(c *Client, log zerolog.Logger) *Builder {
	return newBuilder(c, log)
}

func newBuilder(api creator, log zerolog.Logger) *Builder {
	b := &Builder{api: api}
	steps := []wizard.Step{
		&detailsStep{b: b},
		&fieldsStep{b: b},
	}
	b.ctrl = wizard.New(steps, nil,
		wizard.WithFinalizer(b.create),
		wizard.WithLogger(log))
	return b
}

// Wizard exposes the step controller driving the builder UI.
func (b *Builder) Wizard() *wizard.Controller { return b.ctrl }

// Created returns the form created at finalize, if any.
func (b *Builder) Created() *Form { return b.created }

func (b *Builder) create(ctx context.Context) error {
	form, err := b.api.Create(ctx, CreateRequest{
		Title:       b.details.Title,
		Description: b.details.Description,
		Fields:      b.fields,
	})
	if err != nil {
		return err
	}
	b.created = form
	return nil
}

type detailsStep struct{ b *Builder }

func (s *detailsStep) ID() string    { return StepDetails }
func (s *detailsStep) Title() string { return "Form Details" }

func (s *detailsStep) Validate(payload interface{}) wizard.ErrorSet {
	p, errs := asPayload[DetailsPayload](payload)
	if !errs.Empty() {
		return errs
	}
	if strings.TrimSpace(p.Title) == "" {
		errs.Add("title", "title is required")
	}
	return errs
}

func (s *detailsStep) Submit(_ context.Context, payload interface{}, _ string) (*wizard.StepResult, error) {
	s.b.details = payload.(DetailsPayload)
	return nil, nil
}

type fieldsStep struct{ b *Builder }

func (s *fieldsStep) ID() string    { return StepFields }
func (s *fieldsStep) Title() string { return "Form Fields" }

func (s *fieldsStep) Validate(payload interface{}) wizard.ErrorSet {
	p, errs := asPayload[FieldsPayload](payload)
	if !errs.Empty() {
		return errs
	}
	if len(p.Fields) == 0 {
		errs.Add("fields", "a form needs at least one field")
		return errs
	}
	seen := make(map[string]bool, len(p.Fields))
	for i, f := range p.Fields {
		key := fmt.Sprintf("fields[%d]", i)
		if err := f.Validate(); err != nil {
			errs.Add(key, err.Error())
			continue
		}
		if seen[f.LinkID] {
			errs.Add(key, fmt.Sprintf("duplicate link_id %q", f.LinkID))
		}
		seen[f.LinkID] = true
	}
	return errs
}

func (s *fieldsStep) Submit(_ context.Context, payload interface{}, _ string) (*wizard.StepResult, error) {
	s.b.fields = payload.(FieldsPayload).Fields
	return nil, nil
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
