package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const DefaultMaxRetries = 3

var (
	ErrMaxRetriesExceeded  = errors.New("max retries exceeded")
	ErrNotRetryable        = errors.New("only failed uploads can be retried")
	ErrProgressRegression  = errors.New("upload progress cannot decrease")
	ErrInvalidProgress     = errors.New("upload progress must be between 0 and 100")
	ErrUploadNotInProgress = errors.New("upload is not in progress")
)

type UploadStatus string

const (
	UploadStatusUploading  UploadStatus = "uploading"
	UploadStatusProcessing UploadStatus = "processing"
	UploadStatusCompleted  UploadStatus = "completed"
	UploadStatusFailed     UploadStatus = "failed"
)

func (s UploadStatus) Valid() bool {
	switch s {
	case UploadStatusUploading, UploadStatusProcessing, UploadStatusCompleted, UploadStatusFailed:
		return true
	}
	return false
}

func (s UploadStatus) inProgress() bool {
	return s == UploadStatusUploading || s == UploadStatusProcessing
}

type Category string

const (
	CategoryMedical        Category = "medical"
	CategoryAdministrative Category = "administrative"
	CategoryBilling        Category = "billing"
	CategoryLegal          Category = "legal"
	CategoryOther          Category = "other"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryMedical, CategoryAdministrative, CategoryBilling, CategoryLegal, CategoryOther:
		return true
	}
	return false
}

// ReportUpload tracks a single progress-reported file upload.
//
// Status moves uploading -> completed | failed, and failed -> uploading via
// Retry while RetryCount < MaxRetries. Progress never decreases while the
// upload is uploading or processing. Every state write bumps Version.
type ReportUpload struct {
	ID                    uuid.UUID    `db:"id"`
	PatientID             uuid.UUID    `db:"patient_id"`
	UploadedBy            uuid.UUID    `db:"uploaded_by"`
	CaregiverID           *uuid.UUID   `db:"caregiver_id"`
	OriginalName          string       `db:"original_name"`
	FileName              string       `db:"file_name"`
	FilePath              string       `db:"file_path"`
	FileSize              int64        `db:"file_size"`
	MimeType              string       `db:"mime_type"`
	Title                 string       `db:"title"`
	Description           string       `db:"description"`
	ReportType            ReportType   `db:"report_type"`
	Category              Category     `db:"category"`
	Tags                  []string     `db:"tags"`
	Status                UploadStatus `db:"upload_status"`
	Progress              int          `db:"upload_progress"`
	IsValidFile           bool         `db:"is_valid_file"`
	ErrorMessage          string       `db:"error_message"`
	RetryCount            int          `db:"retry_count"`
	MaxRetries            int          `db:"max_retries"`
	ProcessingStartedAt   time.Time    `db:"processing_started_at"`
	ProcessingCompletedAt *time.Time   `db:"processing_completed_at"`
	ProcessingDurationMs  *int64       `db:"processing_duration_ms"`
	AIAnalysis
	Version   int       `db:"version"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// NewReportUpload returns a record in the uploading state with progress 0.
func NewReportUpload(patientID, uploadedBy uuid.UUID, now time.Time) *ReportUpload {
	return &ReportUpload{
		ID:                  uuid.New(),
		PatientID:           patientID,
		UploadedBy:          uploadedBy,
		ReportType:          ReportTypeOther,
		Category:            CategoryMedical,
		Tags:                []string{},
		Status:              UploadStatusUploading,
		MaxRetries:          DefaultMaxRetries,
		ProcessingStartedAt: now,
		AIAnalysis:          AIAnalysis{AIStatus: AIStatusPending},
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

func (u *ReportUpload) SetProgress(progress int) error {
	if progress < 0 || progress > 100 {
		return ErrInvalidProgress
	}
	if !u.Status.inProgress() {
		return fmt.Errorf("%w: status is %s", ErrUploadNotInProgress, u.Status)
	}
	if progress < u.Progress {
		return fmt.Errorf("%w: %d -> %d", ErrProgressRegression, u.Progress, progress)
	}
	u.Progress = progress
	return nil
}

func (u *ReportUpload) MarkCompleted(now time.Time) {
	u.Status = UploadStatusCompleted
	u.Progress = 100
	u.ErrorMessage = ""
	u.ProcessingCompletedAt = &now
	duration := now.Sub(u.ProcessingStartedAt).Milliseconds()
	u.ProcessingDurationMs = &duration
}

// MarkFailed freezes progress at its current value.
func (u *ReportUpload) MarkFailed(reason string, now time.Time) {
	u.Status = UploadStatusFailed
	u.ErrorMessage = reason
	u.ProcessingCompletedAt = &now
}

func (u *ReportUpload) CanRetry() bool {
	return u.Status == UploadStatusFailed && u.RetryCount < u.MaxRetries
}

// Retry resets a failed upload for another attempt. The file of the failed
// attempt is forgotten, so a new one must be attached. The record is left
// untouched when an error is returned.
func (u *ReportUpload) Retry(now time.Time) error {
	if u.Status != UploadStatusFailed {
		return ErrNotRetryable
	}
	if u.RetryCount >= u.MaxRetries {
		return ErrMaxRetriesExceeded
	}

	u.RetryCount++
	u.Status = UploadStatusUploading
	u.Progress = 0
	u.ErrorMessage = ""
	u.IsValidFile = false
	u.OriginalName = ""
	u.FileName = ""
	u.FilePath = ""
	u.FileSize = 0
	u.MimeType = ""
	u.ProcessingStartedAt = now
	u.ProcessingCompletedAt = nil
	u.ProcessingDurationMs = nil
	return nil
}
