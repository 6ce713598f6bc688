package history

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDate_RoundTrip(t *testing.T) {
	d := NewDate(2026, time.March, 9)
	raw, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `"2026-03-09"` {
		t.Errorf("marshal = %s", raw)
	}
	var back Date
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.Equal(d.Time) {
		t.Errorf("round trip = %v, want %v", back, d)
	}
}

func TestDate_NullAndEmpty(t *testing.T) {
	for _, raw := range []string{`null`, `""`} {
		var d Date
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			t.Errorf("unmarshal %s: %v", raw, err)
		}
		if !d.IsZero() {
			t.Errorf("unmarshal %s: not zero", raw)
		}
	}
	raw, _ := json.Marshal(Date{})
	if string(raw) != "null" {
		t.Errorf("zero date marshals to %s, want null", raw)
	}
}

func TestDate_Invalid(t *testing.T) {
	var d Date
	if err := json.Unmarshal([]byte(`"09/03/2026"`), &d); err == nil {
		t.Error("expected error for wrong layout")
	}
	if err := json.Unmarshal([]byte(`42`), &d); err == nil {
		t.Error("expected error for non-string")
	}
}

func TestEntry_DecodesBackendShape(t *testing.T) {
	raw := `{
		"id": 12, "workspace": 3, "category": "allergy", "source": "OCR",
		"title": "Penicillin Allergy", "status": "active", "severity": "critical",
		"start_date": "2019-06-01", "is_critical": true, "requires_monitoring": false,
		"tags": ["drug-allergy"], "category_data": {"reaction": "anaphylaxis"},
		"created_at": "2026-01-05T10:00:00Z", "updated_at": "2026-01-05T10:00:00Z"
	}`
	var e Entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if e.Category != CategoryAllergy || e.Source != SourceOCR {
		t.Errorf("category/source = %s/%s", e.Category, e.Source)
	}
	if !e.IsCritical || e.Severity != SeverityCritical {
		t.Error("criticality fields lost")
	}
	if e.StartDate.Format("2006-01-02") != "2019-06-01" {
		t.Errorf("StartDate = %v", e.StartDate)
	}
	var cd struct {
		Reaction string `json:"reaction"`
	}
	if err := json.Unmarshal(e.CategoryData, &cd); err != nil || cd.Reaction != "anaphylaxis" {
		t.Errorf("CategoryData = %s", e.CategoryData)
	}
}

func TestCategoryValid(t *testing.T) {
	for _, c := range []Category{
		CategoryCondition, CategoryMedication, CategoryAllergy,
		CategorySurgery, CategoryVisit, CategoryLabResult,
	} {
		if !c.Valid() {
			t.Errorf("Category(%q).Valid() = false", c)
		}
	}
	if Category("diagnosis").Valid() {
		t.Error("unknown category reported valid")
	}
}

func TestNewEntryRequest_Validate(t *testing.T) {
	ok := &NewEntryRequest{WorkspaceID: 1, Category: CategoryCondition, Title: "Hypertension"}
	if err := ok.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
	tests := []struct {
		name string
		req  NewEntryRequest
	}{
		{"missing workspace", NewEntryRequest{Category: CategoryCondition, Title: "x"}},
		{"bad category", NewEntryRequest{WorkspaceID: 1, Category: "bogus", Title: "x"}},
		{"blank title", NewEntryRequest{WorkspaceID: 1, Category: CategoryCondition, Title: "   "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.req.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
