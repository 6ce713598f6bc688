// Package history is the client for the patient-history surface: the
// unified medical history entries, their server-computed summaries, and
// the aggregated dashboard view-model.
package history

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Category classifies a history entry.
type Category string

const (
	CategoryCondition  Category = "condition"
	CategoryMedication Category = "medication"
	CategoryAllergy    Category = "allergy"
	CategorySurgery    Category = "surgery"
	CategoryVisit      Category = "visit"
	CategoryLabResult  Category = "lab_result"
)

var validCategories = map[Category]bool{
	CategoryCondition: true, CategoryMedication: true, CategoryAllergy: true,
	CategorySurgery: true, CategoryVisit: true, CategoryLabResult: true,
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool { return validCategories[c] }

// Source records which pipeline produced an entry.
type Source string

const (
	SourceIntake Source = "INTAKE" // AI intake form
	SourceOCR    Source = "OCR"    // report OCR analysis
	SourceDoctor Source = "DOCTOR" // doctor manual entry
	SourceManual Source = "MANUAL" // patient manual entry
)

// Status is the clinical lifecycle of an entry.
type Status string

const (
	StatusActive     Status = "active"
	StatusResolved   Status = "resolved"
	StatusHistorical Status = "historical"
	StatusInactive   Status = "inactive"
)

// Severity grades an entry; empty means ungraded.
type Severity string

const (
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
	SeverityCritical Severity = "critical"
)

// Date is a calendar date as the backend serializes it (YYYY-MM-DD).
type Date struct {
	time.Time
}

const dateLayout = "2006-01-02"

func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(dateLayout))
}

func (d *Date) UnmarshalJSON(raw []byte) error {
	var s *string
	if err := json.Unmarshal(raw, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	if s == nil || *s == "" {
		d.Time = time.Time{}
		return nil
	}
	t, err := time.Parse(dateLayout, *s)
	if err != nil {
		return fmt.Errorf("parse date %q: %w", *s, err)
	}
	d.Time = t
	return nil
}

// Entry is one unified medical history record. The client never derives
// clinical meaning from it; severity, criticality and summaries come
// computed from the backend and are rendered as-is.
type Entry struct {
	ID                 int64           `json:"id"`
	WorkspaceID        int64           `json:"workspace"`
	Category           Category        `json:"category"`
	Source             Source          `json:"source"`
	Title              string          `json:"title"`
	Description        string          `json:"description,omitempty"`
	Status             Status          `json:"status"`
	Severity           Severity        `json:"severity,omitempty"`
	StartDate          Date            `json:"start_date,omitempty"`
	EndDate            Date            `json:"end_date,omitempty"`
	RecordedDate       Date            `json:"recorded_date,omitempty"`
	IsChronic          bool            `json:"is_chronic"`
	RequiresMonitoring bool            `json:"requires_monitoring"`
	IsCritical         bool            `json:"is_critical"`
	VerifiedByDoctor   bool            `json:"verified_by_doctor"`
	DoctorNotes        string          `json:"doctor_notes,omitempty"`
	Tags               []string        `json:"tags,omitempty"`
	CategoryData       json.RawMessage `json:"category_data,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// NewEntryRequest is a client-initiated entry creation (manual timeline
// entries, patient-added records). Direct round-trip, no optimistic
// mutation: callers render the server's echo, not this request.
type NewEntryRequest struct {
	WorkspaceID int64           `json:"workspace"`
	Category    Category        `json:"category"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Status      Status          `json:"status,omitempty"`
	StartDate   Date            `json:"start_date,omitempty"`
	EndDate     Date            `json:"end_date,omitempty"`
	Tags        []string        `json:"tags,omitempty"`
	CategoryRaw json.RawMessage `json:"category_data,omitempty"`
}

func (r *NewEntryRequest) Validate() error {
	if r.WorkspaceID == 0 {
		return fmt.Errorf("workspace is required")
	}
	if !r.Category.Valid() {
		return fmt.Errorf("invalid category: %s", r.Category)
	}
	if strings.TrimSpace(r.Title) == "" {
		return fmt.Errorf("title is required")
	}
	return nil
}

// Summary is the cached per-workspace rollup the backend maintains.
type Summary struct {
	WorkspaceID          int64    `json:"workspace_id"`
	TotalConditions      int      `json:"total_conditions"`
	ActiveConditions     int      `json:"active_conditions"`
	TotalMedications     int      `json:"total_medications"`
	CurrentMedications   int      `json:"current_medications"`
	TotalAllergies       int      `json:"total_allergies"`
	TotalSurgeries       int      `json:"total_surgeries"`
	TotalVisits          int      `json:"total_visits"`
	TotalLabResults      int      `json:"total_lab_results"`
	HasChronicConditions bool     `json:"has_chronic_conditions"`
	HasCriticalAllergies bool     `json:"has_critical_allergies"`
	RequiresMonitoring   bool     `json:"requires_monitoring"`
	LastVisitDate        Date     `json:"last_visit_date,omitempty"`
	ActiveConditionsList []string `json:"active_conditions_list"`
	CurrentMedsList      []string `json:"current_medications_list"`
	AllergiesList        []string `json:"all_allergies_list"`
	CompletenessScore    int      `json:"completeness_score"`
}

// ClinicalSummary is the focused dashboard view: what a doctor needs in
// front of them before an encounter.
type ClinicalSummary struct {
	WorkspaceID        int64          `json:"workspace_id"`
	PatientName        string         `json:"patient_name"`
	ActiveConditions   []Entry        `json:"active_conditions"`
	CurrentMedications []Entry        `json:"current_medications"`
	Allergies          []Entry        `json:"allergies"`
	RecentSurgeries    []Entry        `json:"recent_surgeries"`
	RecentVisits       []Entry        `json:"recent_visits"`
	RecentLabs         []Entry        `json:"recent_labs"`
	MonitoringItems    []Entry        `json:"monitoring_items"`
	Counts             map[string]int `json:"counts"`
	AISummary          string         `json:"ai_summary,omitempty"`
}

// TimelineEventType is a change event on a history entry.
type TimelineEventType string

const (
	EventAdded    TimelineEventType = "added"
	EventUpdated  TimelineEventType = "updated"
	EventVerified TimelineEventType = "verified"
	EventResolved TimelineEventType = "resolved"
	EventFlagged  TimelineEventType = "flagged"
)

// TimelineEvent is one audit point in an entry's history.
type TimelineEvent struct {
	ID              int64             `json:"id"`
	EntryID         int64             `json:"history_entry"`
	EventType       TimelineEventType `json:"event_type"`
	Description     string            `json:"event_description"`
	PerformedByType string            `json:"performed_by_type"` // doctor, patient, system
	CreatedAt       time.Time         `json:"created_at"`
}
