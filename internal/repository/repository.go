package repository

import (
	"errors"
	"time"

	"lifetrack/internal/models"

	"github.com/google/uuid"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
	ErrConflict  = errors.New("record was modified concurrently")
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

type Page struct {
	Page  uint64
	Limit uint64
}

// Normalize clamps the page to sane bounds.
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

func (p Page) Offset() uint64 {
	p = p.Normalize()
	return (p.Page - 1) * p.Limit
}

// Window returns the [start, end) slice bounds of this page over total items.
func (p Page) Window(total int) (int, int) {
	p = p.Normalize()
	start := min(int(p.Offset()), total)
	end := min(start+int(p.Limit), total)
	return start, end
}

type UserFilter struct {
	Role        *models.Role
	CaregiverID *uuid.UUID
	Page        Page
}

type ReportFilter struct {
	PatientID  *uuid.UUID
	PatientIDs []uuid.UUID
	ReportType *models.ReportType
	Status     *models.ReviewStatus
	Page       Page
}

type UploadFilter struct {
	UploadedBy *uuid.UUID
	PatientID  *uuid.UUID
	Status     *models.UploadStatus
	Page       Page
}

type ContactFilter struct {
	Status   *models.ContactStatus
	Category *models.ContactCategory
	Priority *models.ContactPriority
	Page     Page
}

type UploadStatusStat struct {
	Status    models.UploadStatus `db:"status" json:"status"`
	Count     int                 `db:"count" json:"count"`
	TotalSize int64               `db:"total_size" json:"total_size"`
}

type ContactStats struct {
	Total      int            `json:"total"`
	ByStatus   map[string]int `json:"by_status"`
	ByCategory map[string]int `json:"by_category"`
	ByPriority map[string]int `json:"by_priority"`
}

// AITransition describes a compare-and-set on a record's analysis status.
type AITransition struct {
	From        []models.AIStatus
	To          models.AIStatus
	Description *string
	// ClearDescription nulls the stored description, ignored when Description is set.
	ClearDescription bool
	At               *time.Time
}
