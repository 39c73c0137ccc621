package handlers

import (
	"errors"

	"lifetrack/internal/dto"
	"lifetrack/internal/models"
	"lifetrack/internal/repository"
	"lifetrack/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type ContactHandler struct {
	contactService *service.ContactService
	logger         *zap.Logger
}

func NewContactHandler(contactService *service.ContactService, logger *zap.Logger) *ContactHandler {
	return &ContactHandler{
		contactService: contactService,
		logger:         logger,
	}
}

// Submit godoc
// @Summary Send a contact message
// @Tags contact
// @Accept json
// @Produce json
// @Param request body dto.CreateContactRequest true "Message"
// @Success 201 {object} dto.ContactResponse
// @Failure 400 {object} dto.Response
// @Router /api/contact [post]
func (h *ContactHandler) Submit(c *fiber.Ctx) error {
	var req dto.CreateContactRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	contact, err := h.contactService.Submit(c.Context(), &req, service.ClientInfo{
		IPAddress: c.IP(),
		UserAgent: c.Get(fiber.HeaderUserAgent),
	})
	if err != nil {
		return handleError(c, h.logger, err, "Failed to submit contact form")
	}

	return respond(c, fiber.StatusCreated, "Thank you for your message. We will get back to you soon.", fiber.Map{
		"id":        contact.ID.String(),
		"createdAt": contact.CreatedAt,
	})
}

// List godoc
// @Summary List contact messages
// @Tags contact
// @Produce json
// @Param status query string false "Status"
// @Param category query string false "Category"
// @Param priority query string false "Priority"
// @Param page query int false "Page" default(1)
// @Param limit query int false "Limit" default(10)
// @Security Bearer
// @Success 200 {object} dto.Response
// @Router /api/contact [get]
func (h *ContactHandler) List(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	filter := repository.ContactFilter{Page: pageQuery(c)}
	if v := c.Query("status"); v != "" {
		status := models.ContactStatus(v)
		if !status.Valid() {
			return fail(c, fiber.StatusBadRequest, "Invalid status selected")
		}
		filter.Status = &status
	}
	if v := c.Query("category"); v != "" {
		category := models.ContactCategory(v)
		if !category.Valid() {
			return fail(c, fiber.StatusBadRequest, "Invalid category selected")
		}
		filter.Category = &category
	}
	if v := c.Query("priority"); v != "" {
		priority := models.ContactPriority(v)
		if !priority.Valid() {
			return fail(c, fiber.StatusBadRequest, "Invalid priority selected")
		}
		filter.Priority = &priority
	}

	contacts, total, err := h.contactService.List(c.Context(), actor, filter)
	if err != nil {
		return handleError(c, h.logger, err, "Failed to list contacts")
	}

	return respond(c, fiber.StatusOK, "", paged(dto.NewContactResponses(contacts), "contacts", filter.Page, total))
}

// Stats godoc
// @Summary Contact message statistics
// @Tags contact
// @Produce json
// @Security Bearer
// @Success 200 {object} repository.ContactStats
// @Router /api/contact/stats [get]
func (h *ContactHandler) Stats(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	stats, err := h.contactService.Stats(c.Context(), actor)
	if err != nil {
		return handleError(c, h.logger, err, "Failed to get contact statistics")
	}

	return respond(c, fiber.StatusOK, "", stats)
}

func (h *ContactHandler) Get(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	contact, err := h.contactService.Get(c.Context(), actor, id)
	if err != nil {
		return h.contactError(c, err, "Failed to get contact")
	}

	return respond(c, fiber.StatusOK, "", dto.NewContactResponse(contact))
}

// Update godoc
// @Summary Update a contact message
// @Tags contact
// @Accept json
// @Produce json
// @Param id path string true "Contact ID"
// @Param request body dto.UpdateContactRequest true "Changes"
// @Security Bearer
// @Success 200 {object} dto.ContactResponse
// @Router /api/contact/{id} [put]
func (h *ContactHandler) Update(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var req dto.UpdateContactRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	contact, err := h.contactService.Update(c.Context(), actor, id, &req)
	if err != nil {
		return h.contactError(c, err, "Failed to update contact")
	}

	return respond(c, fiber.StatusOK, "Contact updated successfully", dto.NewContactResponse(contact))
}

func (h *ContactHandler) Delete(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	if err := h.contactService.Delete(c.Context(), actor, id); err != nil {
		return h.contactError(c, err, "Failed to delete contact")
	}

	return respond(c, fiber.StatusOK, "Contact deleted successfully", nil)
}

func (h *ContactHandler) contactError(c *fiber.Ctx, err error, internal string) error {
	if errors.Is(err, service.ErrNotFound) {
		return fail(c, fiber.StatusNotFound, "Contact not found")
	}
	return handleError(c, h.logger, err, internal)
}
