package models

import (
	"time"

	"github.com/google/uuid"
)

type ReportType string

const (
	ReportTypeLab              ReportType = "lab_report"
	ReportTypeImaging          ReportType = "imaging"
	ReportTypePrescription     ReportType = "prescription"
	ReportTypeDischargeSummary ReportType = "discharge_summary"
	ReportTypeProgressNote     ReportType = "progress_note"
	ReportTypeOther            ReportType = "other"
)

func (t ReportType) Valid() bool {
	switch t {
	case ReportTypeLab, ReportTypeImaging, ReportTypePrescription,
		ReportTypeDischargeSummary, ReportTypeProgressNote, ReportTypeOther:
		return true
	}
	return false
}

type ReviewStatus string

const (
	ReviewStatusPending  ReviewStatus = "pending"
	ReviewStatusReviewed ReviewStatus = "reviewed"
	ReviewStatusApproved ReviewStatus = "approved"
	ReviewStatusRejected ReviewStatus = "rejected"
)

func (s ReviewStatus) Valid() bool {
	switch s {
	case ReviewStatusPending, ReviewStatusReviewed, ReviewStatusApproved, ReviewStatusRejected:
		return true
	}
	return false
}

type Report struct {
	ID          uuid.UUID    `db:"id"`
	PatientID   uuid.UUID    `db:"patient_id"`
	CaregiverID *uuid.UUID   `db:"caregiver_id"`
	UploadedBy  uuid.UUID    `db:"uploaded_by"`
	Title       string       `db:"title"`
	Description string       `db:"description"`
	ReportType  ReportType   `db:"report_type"`
	FileURL     string       `db:"file_url"`
	FilePath    string       `db:"file_path"`
	FileName    string       `db:"file_name"`
	FileSize    int64        `db:"file_size"`
	FileType    string       `db:"file_type"`
	IsPublic    bool         `db:"is_public"`
	Tags        []string     `db:"tags"`
	Status      ReviewStatus `db:"status"`
	ReviewedBy  *uuid.UUID   `db:"reviewed_by"`
	ReviewNotes string       `db:"review_notes"`
	ReviewDate  *time.Time   `db:"review_date"`
	AIAnalysis
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
