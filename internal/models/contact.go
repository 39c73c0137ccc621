package models

import (
	"time"

	"github.com/google/uuid"
)

type ContactCategory string

const (
	ContactCategoryGeneral   ContactCategory = "general"
	ContactCategorySupport   ContactCategory = "support"
	ContactCategorySales     ContactCategory = "sales"
	ContactCategoryFeedback  ContactCategory = "feedback"
	ContactCategoryComplaint ContactCategory = "complaint"
)

func (c ContactCategory) Valid() bool {
	switch c {
	case ContactCategoryGeneral, ContactCategorySupport, ContactCategorySales,
		ContactCategoryFeedback, ContactCategoryComplaint:
		return true
	}
	return false
}

type ContactStatus string

const (
	ContactStatusPending ContactStatus = "pending"
	ContactStatusRead    ContactStatus = "read"
	ContactStatusReplied ContactStatus = "replied"
	ContactStatusClosed  ContactStatus = "closed"
)

func (s ContactStatus) Valid() bool {
	switch s {
	case ContactStatusPending, ContactStatusRead, ContactStatusReplied, ContactStatusClosed:
		return true
	}
	return false
}

type ContactPriority string

const (
	PriorityLow    ContactPriority = "low"
	PriorityMedium ContactPriority = "medium"
	PriorityHigh   ContactPriority = "high"
	PriorityUrgent ContactPriority = "urgent"
)

func (p ContactPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

type Contact struct {
	ID         uuid.UUID       `db:"id"`
	Name       string          `db:"name"`
	Email      string          `db:"email"`
	Phone      string          `db:"phone"`
	Subject    string          `db:"subject"`
	Message    string          `db:"message"`
	Category   ContactCategory `db:"category"`
	Status     ContactStatus   `db:"status"`
	Priority   ContactPriority `db:"priority"`
	AssignedTo *uuid.UUID      `db:"assigned_to"`
	Notes      []ContactNote   `db:"notes"`
	IPAddress  string          `db:"ip_address"`
	UserAgent  string          `db:"user_agent"`
	CreatedAt  time.Time       `db:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at"`
}

type ContactNote struct {
	Note      string    `json:"note"`
	AddedBy   uuid.UUID `json:"added_by"`
	CreatedAt time.Time `json:"created_at"`
}
