// Package reports handles medical report records: multipart upload with
// client-side pre-validation, per-workspace listing, and the AI summary
// regeneration trigger.
package reports

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"
)

// ReportType classifies an uploaded document.
type ReportType string

const (
	TypeLabReport        ReportType = "lab_report"
	TypePrescription     ReportType = "prescription"
	TypeConsultation     ReportType = "consultation"
	TypeDischargeSummary ReportType = "discharge_summary"
	TypeImaging          ReportType = "imaging"
	TypeOther            ReportType = "other"
)

var validReportTypes = map[ReportType]bool{
	TypeLabReport:        true,
	TypePrescription:     true,
	TypeConsultation:     true,
	TypeDischargeSummary: true,
	TypeImaging:          true,
	TypeOther:            true,
}

func (t ReportType) Valid() bool { return validReportTypes[t] }

// OCRStatus tracks server-side text extraction.
type OCRStatus string

const (
	OCRPending    OCRStatus = "pending"
	OCRProcessing OCRStatus = "processing"
	OCRCompleted  OCRStatus = "completed"
	OCRFailed     OCRStatus = "failed"
)

// Report is one uploaded medical document. OCR and AI fields are
// server-owned and appear once processing finishes.
type Report struct {
	ID            int64      `json:"id"`
	WorkspaceID   int64      `json:"workspace"`
	Title         string     `json:"title"`
	ReportType    ReportType `json:"report_type"`
	Description   string     `json:"description"`
	ReportDate    string     `json:"report_date"`
	FileName      string     `json:"file_name"`
	FileURL       string     `json:"file_url"`
	IsCritical    bool       `json:"is_critical"`
	OCRStatus     OCRStatus  `json:"ocr_status"`
	OCRConfidence float64    `json:"ocr_confidence"`
	AISummary     string     `json:"ai_summary"`
	UploadedAt    time.Time  `json:"uploaded_at"`
}

// DefaultUploadLimit caps report uploads client-side, matching the
// server's ceiling.
const DefaultUploadLimit = 10 << 20

var allowedUploadTypes = map[string]bool{
	"application/pdf": true,
	"image/jpeg":      true,
	"image/png":       true,
}

var allowedUploadExts = map[string]bool{
	".pdf":  true,
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// UploadRequest describes a report upload. The file checks here are a
// pre-flight convenience; the server remains authoritative.
type UploadRequest struct {
	Title       string
	ReportType  ReportType
	Description string
	ReportDate  string
	IsCritical  bool

	FileName    string
	ContentType string
	Size        int64
	Content     io.Reader
}

func (r UploadRequest) Validate(maxBytes int64) error {
	if maxBytes <= 0 {
		maxBytes = DefaultUploadLimit
	}
	if strings.TrimSpace(r.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if !r.ReportType.Valid() {
		return fmt.Errorf("unknown report type %q", r.ReportType)
	}
	if r.Content == nil || strings.TrimSpace(r.FileName) == "" {
		return fmt.Errorf("a file is required")
	}
	ext := strings.ToLower(filepath.Ext(r.FileName))
	if !allowedUploadExts[ext] || !allowedUploadTypes[r.ContentType] {
		return fmt.Errorf("file must be a PDF, JPEG, or PNG")
	}
	if r.Size > maxBytes {
		return fmt.Errorf("file size %d exceeds the %d byte limit", r.Size, maxBytes)
	}
	return nil
}
