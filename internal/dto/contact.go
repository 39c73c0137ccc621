package dto

import "lifetrack/internal/models"

type CreateContactRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"omitempty,phone"`
	Subject  string `json:"subject" validate:"required,min=5,max=200"`
	Message  string `json:"message" validate:"required,min=10,max=2000"`
	Category string `json:"category" validate:"omitempty,oneof=general support sales feedback complaint"`
}

type ContactNoteRequest struct {
	Content string `json:"content" validate:"required,min=1,max=500"`
}

type UpdateContactRequest struct {
	Status     string              `json:"status" validate:"omitempty,oneof=pending read replied closed"`
	Priority   string              `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	AssignedTo string              `json:"assignedTo" validate:"omitempty,uuid"`
	Notes      *ContactNoteRequest `json:"notes"`
}

type ContactNoteResponse struct {
	Content   string `json:"content"`
	CreatedBy string `json:"createdBy"`
	CreatedAt string `json:"createdAt"`
}

type ContactResponse struct {
	ID         string                `json:"id"`
	Name       string                `json:"name"`
	Email      string                `json:"email"`
	Phone      string                `json:"phone,omitempty"`
	Subject    string                `json:"subject"`
	Message    string                `json:"message"`
	Category   string                `json:"category"`
	Status     string                `json:"status"`
	Priority   string                `json:"priority"`
	AssignedTo *string               `json:"assignedTo,omitempty"`
	Notes      []ContactNoteResponse `json:"notes"`
	IPAddress  string                `json:"ipAddress,omitempty"`
	UserAgent  string                `json:"userAgent,omitempty"`
	CreatedAt  string                `json:"createdAt"`
	UpdatedAt  string                `json:"updatedAt"`
}

func NewContactResponse(c *models.Contact) ContactResponse {
	notes := make([]ContactNoteResponse, 0, len(c.Notes))
	for _, n := range c.Notes {
		notes = append(notes, ContactNoteResponse{
			Content:   n.Note,
			CreatedBy: n.AddedBy.String(),
			CreatedAt: formatTime(n.CreatedAt),
		})
	}
	return ContactResponse{
		ID:         c.ID.String(),
		Name:       c.Name,
		Email:      c.Email,
		Phone:      c.Phone,
		Subject:    c.Subject,
		Message:    c.Message,
		Category:   string(c.Category),
		Status:     string(c.Status),
		Priority:   string(c.Priority),
		AssignedTo: idString(c.AssignedTo),
		Notes:      notes,
		IPAddress:  c.IPAddress,
		UserAgent:  c.UserAgent,
		CreatedAt:  formatTime(c.CreatedAt),
		UpdatedAt:  formatTime(c.UpdatedAt),
	}
}

func NewContactResponses(items []*models.Contact) []ContactResponse {
	out := make([]ContactResponse, 0, len(items))
	for _, c := range items {
		out = append(out, NewContactResponse(c))
	}
	return out
}
