package wizard

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrForwardJump      = errors.New("cannot jump ahead of completed steps")
	ErrNotAtReview      = errors.New("all steps must be completed before finalizing")
	ErrNoActiveStep     = errors.New("no active step; wizard is at review")
	ErrAlreadySubmitted = errors.New("wizard has already been submitted")
)

// ErrorSet maps field names to validation messages. An empty (or nil)
// set means the payload is valid.
type ErrorSet map[string][]string

func (e ErrorSet) Add(field, msg string) {
	e[field] = append(e[field], msg)
}

func (e ErrorSet) Empty() bool { return len(e) == 0 }

// Fields returns the offending field names in stable order.
func (e ErrorSet) Fields() []string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// ValidationError is returned by SubmitCurrent when local validation
// blocks the submission. No network call was made.
type ValidationError struct {
	Step   string
	Errors ErrorSet
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, f := range e.Errors.Fields() {
		parts = append(parts, fmt.Sprintf("%s: %s", f, strings.Join(e.Errors[f], "; ")))
	}
	return fmt.Sprintf("step %s invalid: %s", e.Step, strings.Join(parts, ", "))
}

// ValidationErrors extracts the field errors from err, or nil.
func ValidationErrors(err error) ErrorSet {
	var v *ValidationError
	if errors.As(err, &v) {
		return v.Errors
	}
	return nil
}
