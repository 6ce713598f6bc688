package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Error is a backend-reported failure. Code is the machine-readable
// error code when the server supplies one; Fields carries per-field
// messages; Message is the generic fallback.
type Error struct {
	Status  int
	Code    string
	Message string
	Fields  map[string][]string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("server returned %d", e.Status)
}

// IsAuth reports whether the failure means the credential was rejected.
func (e *Error) IsAuth() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

// IsValidation reports whether the failure is a rejected payload the user
// can correct.
func (e *Error) IsValidation() bool {
	return e.Status == http.StatusBadRequest || e.Status == http.StatusUnprocessableEntity
}

// IsAuth reports whether err is a credential rejection that should route
// the user back to login rather than be retried.
func IsAuth(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.IsAuth()
}

// IsValidation reports whether err is a server-side validation rejection.
func IsValidation(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.IsValidation()
}

// FieldErrors extracts per-field messages from err, or nil.
func FieldErrors(err error) map[string][]string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Fields
	}
	return nil
}

// decodeError interprets the backend's error payload. The contract uses
// either {"error": "..."} / {"detail": "..."} or a map of field name to
// message list; both shapes are surfaced verbatim.
func decodeError(status int, raw []byte) *Error {
	apiErr := &Error{Status: status}
	if len(raw) == 0 {
		apiErr.Message = http.StatusText(status)
		return apiErr
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(raw, &payload); err != nil {
		apiErr.Message = string(raw)
		return apiErr
	}

	if v, ok := payload["code"]; ok {
		var code string
		if json.Unmarshal(v, &code) == nil {
			apiErr.Code = code
		}
		delete(payload, "code")
	}

	for _, key := range []string{"error", "detail", "message"} {
		if v, ok := payload[key]; ok {
			var msg string
			if json.Unmarshal(v, &msg) == nil && msg != "" {
				apiErr.Message = msg
			}
			delete(payload, key)
		}
	}

	for field, v := range payload {
		var list []string
		if json.Unmarshal(v, &list) == nil {
			apiErr.Fields = appendField(apiErr.Fields, field, list...)
			continue
		}
		var single string
		if json.Unmarshal(v, &single) == nil {
			apiErr.Fields = appendField(apiErr.Fields, field, single)
		}
	}

	if apiErr.Message == "" && len(apiErr.Fields) == 0 {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}

func appendField(m map[string][]string, field string, msgs ...string) map[string][]string {
	if len(msgs) == 0 {
		return m
	}
	if m == nil {
		m = make(map[string][]string)
	}
	m[field] = append(m[field], msgs...)
	return m
}
