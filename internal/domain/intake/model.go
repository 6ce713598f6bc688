// Package intake implements the doctor's intake form builder: a small
// wizard that assembles a questionnaire locally and creates it on the
// backend, plus the send/list/update client calls.
package intake

import (
	"fmt"
	"strings"
	"time"
)

// FormStatus is the form lifecycle on the backend.
type FormStatus string

const (
	StatusDraft     FormStatus = "draft"
	StatusSent      FormStatus = "sent"
	StatusCompleted FormStatus = "completed"
)

var validFormStatuses = map[FormStatus]bool{
	StatusDraft:     true,
	StatusSent:      true,
	StatusCompleted: true,
}

func (s FormStatus) Valid() bool { return validFormStatuses[s] }

// FieldType is the answer type of one form field.
type FieldType string

const (
	FieldText    FieldType = "text"
	FieldNumber  FieldType = "number"
	FieldBoolean FieldType = "boolean"
	FieldDate    FieldType = "date"
	FieldChoice  FieldType = "choice"
)

var validFieldTypes = map[FieldType]bool{
	FieldText:    true,
	FieldNumber:  true,
	FieldBoolean: true,
	FieldDate:    true,
	FieldChoice:  true,
}

func (t FieldType) Valid() bool { return validFieldTypes[t] }

// Field is one question of an intake form. LinkID is the stable key
// that answers refer back to, unique within a form.
type Field struct {
	LinkID   string    `json:"link_id"`
	Label    string    `json:"label"`
	Type     FieldType `json:"type"`
	Required bool      `json:"required"`
	Options  []string  `json:"options,omitempty"`
}

// Validate checks a single field in isolation. Cross-field checks
// (link id uniqueness) belong to the form.
func (f Field) Validate() error {
	if strings.TrimSpace(f.LinkID) == "" {
		return fmt.Errorf("field link_id is required")
	}
	if strings.TrimSpace(f.Label) == "" {
		return fmt.Errorf("field %s: label is required", f.LinkID)
	}
	if !f.Type.Valid() {
		return fmt.Errorf("field %s: unknown type %q", f.LinkID, f.Type)
	}
	if f.Type == FieldChoice && len(f.Options) == 0 {
		return fmt.Errorf("field %s: choice fields need at least one option", f.LinkID)
	}
	return nil
}

// Form is an intake questionnaire.
type Form struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      FormStatus `json:"status"`
	Fields      []Field    `json:"fields"`
	SentTo      *int64     `json:"sent_to,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// CreateRequest is the create/update payload.
type CreateRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Fields      []Field `json:"fields"`
}

func (r CreateRequest) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if len(r.Fields) == 0 {
		return fmt.Errorf("a form needs at least one field")
	}
	seen := make(map[string]bool, len(r.Fields))
	for _, f := range r.Fields {
		if err := f.Validate(); err != nil {
			return err
		}
		if seen[f.LinkID] {
			return fmt.Errorf("duplicate field link_id %q", f.LinkID)
		}
		seen[f.LinkID] = true
	}
	return nil
}
