package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"lifetrack/internal/dto"
	"lifetrack/internal/models"
	"lifetrack/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ClientInfo identifies the sender of a public submission.
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

type ContactService struct {
	contacts ContactRepository
	users    UserRepository
	logger   *zap.Logger
}

func NewContactService(contacts ContactRepository, users UserRepository, logger *zap.Logger) *ContactService {
	return &ContactService{
		contacts: contacts,
		users:    users,
		logger:   logger,
	}
}

func requireAdmin(actor Actor) error {
	if actor.Role != models.RoleAdmin {
		return ErrForbidden
	}
	return nil
}

// Submit stores a contact form submission. It needs no authenticated caller.
func (s *ContactService) Submit(ctx context.Context, req *dto.CreateContactRequest, client ClientInfo) (*models.Contact, error) {
	category := models.ContactCategory(req.Category)
	if req.Category == "" {
		category = models.ContactCategoryGeneral
	}
	if !category.Valid() {
		return nil, invalidInput("Invalid category selected")
	}

	now := time.Now()
	contact := &models.Contact{
		ID:        uuid.New(),
		Name:      strings.TrimSpace(req.Name),
		Email:     normalizeEmail(req.Email),
		Phone:     req.Phone,
		Subject:   strings.TrimSpace(req.Subject),
		Message:   strings.TrimSpace(req.Message),
		Category:  category,
		Status:    models.ContactStatusPending,
		Priority:  models.PriorityMedium,
		Notes:     []models.ContactNote{},
		IPAddress: client.IPAddress,
		UserAgent: client.UserAgent,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.contacts.Create(ctx, contact); err != nil {
		return nil, err
	}

	s.logger.Info("Contact submitted",
		zap.String("contact_id", contact.ID.String()),
		zap.String("category", string(category)),
	)
	return contact, nil
}

func (s *ContactService) List(ctx context.Context, actor Actor, filter repository.ContactFilter) ([]*models.Contact, int, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, 0, err
	}
	return s.contacts.List(ctx, filter)
}

func (s *ContactService) Stats(ctx context.Context, actor Actor) (*repository.ContactStats, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.contacts.Stats(ctx)
}

func (s *ContactService) Get(ctx context.Context, actor Actor, id uuid.UUID) (*models.Contact, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	contact, err := s.contacts.GetByID(ctx, id)
	if err != nil {
		return nil, repoError(err)
	}
	return contact, nil
}

// Update changes status, priority or assignee and appends an optional note.
func (s *ContactService) Update(ctx context.Context, actor Actor, id uuid.UUID, req *dto.UpdateContactRequest) (*models.Contact, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	contact, err := s.contacts.GetByID(ctx, id)
	if err != nil {
		return nil, repoError(err)
	}

	if req.Status != "" {
		status := models.ContactStatus(req.Status)
		if !status.Valid() {
			return nil, invalidInput("Invalid status selected")
		}
		contact.Status = status
	}
	if req.Priority != "" {
		priority := models.ContactPriority(req.Priority)
		if !priority.Valid() {
			return nil, invalidInput("Invalid priority selected")
		}
		contact.Priority = priority
	}
	if req.AssignedTo != "" {
		assignee, err := uuid.Parse(req.AssignedTo)
		if err != nil {
			return nil, invalidInput("Invalid user ID")
		}
		if _, err := s.users.GetByID(ctx, assignee); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, invalidInput("Invalid user ID")
			}
			return nil, err
		}
		contact.AssignedTo = &assignee
	}

	now := time.Now()
	if req.Notes != nil && strings.TrimSpace(req.Notes.Content) != "" {
		contact.Notes = append(contact.Notes, models.ContactNote{
			Note:      strings.TrimSpace(req.Notes.Content),
			AddedBy:   actor.ID,
			CreatedAt: now,
		})
	}
	contact.UpdatedAt = now

	if err := s.contacts.Update(ctx, contact); err != nil {
		return nil, repoError(err)
	}
	return contact, nil
}

func (s *ContactService) Delete(ctx context.Context, actor Actor, id uuid.UUID) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if err := s.contacts.Delete(ctx, id); err != nil {
		return repoError(err)
	}
	s.logger.Info("Contact deleted", zap.String("contact_id", id.String()))
	return nil
}
