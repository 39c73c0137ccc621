package handlers

import (
	"errors"
	"fmt"
	"mime/multipart"
	"strings"

	"lifetrack/internal/dto"
	"lifetrack/internal/queue"
	"lifetrack/internal/repository"
	"lifetrack/internal/service"
	"lifetrack/pkg/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	msgNotAuthorized   = "Not authorized"
	msgInvalidFileType = "Invalid file type. Only PDF, images, and documents are allowed."
	msgAIRetryState    = "AI analysis can only be retried for failed analyses"
)

func respond(c *fiber.Ctx, status int, message string, data any) error {
	return c.Status(status).JSON(dto.Response{Success: true, Message: message, Data: data})
}

func fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(dto.Response{Success: false, Message: message})
}

// handleError maps service errors to HTTP responses. internal is the message
// sent for unexpected errors, which are logged.
func handleError(c *fiber.Ctx, logger *zap.Logger, err error, internal string) error {
	var upstream *service.UpstreamError
	var malformed *service.MalformedResponseError

	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return fail(c, fiber.StatusBadRequest, inputMessage(err))
	case errors.Is(err, service.ErrInvalidFileType):
		return fail(c, fiber.StatusBadRequest, msgInvalidFileType)
	case errors.Is(err, service.ErrFileTooLarge):
		return fail(c, fiber.StatusBadRequest, fileTooLargeMessage(err))
	case errors.Is(err, service.ErrMaxRetriesExceeded):
		return fail(c, fiber.StatusBadRequest, "Max retries exceeded")
	case errors.Is(err, service.ErrNotRetryable):
		return fail(c, fiber.StatusBadRequest, "Only failed uploads can be retried")
	case errors.Is(err, service.ErrInvalidState):
		return fail(c, fiber.StatusBadRequest, "Operation is not allowed in the current state")
	case errors.Is(err, service.ErrForbidden):
		return fail(c, fiber.StatusForbidden, msgNotAuthorized)
	case errors.Is(err, service.ErrNotFound):
		return fail(c, fiber.StatusNotFound, "Not found")
	case errors.Is(err, service.ErrFileNotFound):
		return fail(c, fiber.StatusNotFound, "File not found")
	case errors.Is(err, service.ErrConflict):
		return fail(c, fiber.StatusConflict, "Record was modified concurrently, please retry")
	case errors.Is(err, service.ErrUserExists):
		return fail(c, fiber.StatusConflict, "User already exists")
	case errors.Is(err, service.ErrInvalidCredentials):
		return fail(c, fiber.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, service.ErrAccountDisabled):
		return fail(c, fiber.StatusUnauthorized, "Account is deactivated")
	case errors.Is(err, service.ErrQuotaExceeded):
		return fail(c, fiber.StatusTooManyRequests, "AI provider quota exceeded, please try again later")
	case errors.Is(err, service.ErrAIUnavailable):
		return fail(c, fiber.StatusServiceUnavailable, "AI analysis is not configured")
	case errors.Is(err, service.ErrEncoding):
		logger.Warn("File could not be prepared", zap.String("path", c.Path()), zap.Error(err))
		return fail(c, fiber.StatusUnprocessableEntity, "The file could not be read for analysis")
	case errors.Is(err, queue.ErrFull), errors.Is(err, queue.ErrClosed):
		logger.Warn("Task queue rejected work", zap.String("path", c.Path()), zap.Error(err))
		return fail(c, fiber.StatusServiceUnavailable, "Server is busy, please try again later")
	case errors.Is(err, service.ErrProviderAuth), errors.As(err, &upstream), errors.As(err, &malformed):
		logger.Error("AI provider call failed", zap.String("path", c.Path()), zap.Error(err))
		return fail(c, fiber.StatusBadGateway, "AI provider request failed")
	}

	logger.Error(internal, zap.String("path", c.Path()), zap.Error(err))
	return fail(c, fiber.StatusInternalServerError, internal)
}

func fileTooLargeMessage(err error) string {
	var limit *service.SizeLimitError
	if !errors.As(err, &limit) || limit.Limit <= 0 {
		return "File size too large."
	}
	return fmt.Sprintf("File size too large. Maximum size is %s.", formatSize(limit.Limit))
}

// formatSize renders n bytes in whole MB, KB or bytes.
func formatSize(n int64) string {
	switch {
	case n >= 1<<20 && n%(1<<20) == 0:
		return fmt.Sprintf("%dMB", n>>20)
	case n >= 1<<10 && n%(1<<10) == 0:
		return fmt.Sprintf("%dKB", n>>10)
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}

// inputMessage strips the sentinel prefix from a validation error.
func inputMessage(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, service.ErrInvalidInput.Error()+": "); i >= 0 {
		return msg[i+len(service.ErrInvalidInput.Error())+2:]
	}
	return msg
}

// bind parses a JSON or form body into req and validates it.
func bind(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := dto.Validate(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}

// bindOptional is bind for endpoints whose body may be empty.
func bindOptional(c *fiber.Ctx, req any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	return bind(c, req)
}

func currentActor(c *fiber.Ctx) (service.Actor, error) {
	id, _ := c.Locals(middleware.LocalUserID).(string)
	role, _ := c.Locals(middleware.LocalRole).(string)
	actor, err := service.NewActor(id, role)
	if err != nil {
		return service.Actor{}, fiber.NewError(fiber.StatusUnauthorized, "Token is not valid")
	}
	return actor, nil
}

func pathID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "Invalid "+name)
	}
	return id, nil
}

func pageQuery(c *fiber.Ctx) repository.Page {
	page, limit := c.QueryInt("page", 1), c.QueryInt("limit", repository.DefaultLimit)
	p := repository.Page{}
	if page > 0 {
		p.Page = uint64(page)
	}
	if limit > 0 {
		p.Limit = uint64(limit)
	}
	return p.Normalize()
}

func paged(items any, key string, page repository.Page, total int) fiber.Map {
	return fiber.Map{
		key:          items,
		"pagination": dto.NewPagination(page.Page, page.Limit, total),
	}
}

// formFile opens a multipart file; the returned closer must be called.
func formFile(c *fiber.Ctx, field string) (service.IncomingFile, func(), error) {
	header, err := c.FormFile(field)
	if err != nil {
		return service.IncomingFile{}, nil, err
	}
	return openUpload(header)
}

func openUpload(header *multipart.FileHeader) (service.IncomingFile, func(), error) {
	src, err := header.Open()
	if err != nil {
		return service.IncomingFile{}, nil, err
	}
	mimeType := header.Header.Get(fiber.HeaderContentType)
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	return service.IncomingFile{
		Name:     header.Filename,
		MIMEType: mimeType,
		Size:     header.Size,
		Content:  src,
	}, func() { src.Close() }, nil
}

func patientContext(age, gender, history string) *service.PatientContext {
	pc := &service.PatientContext{Age: age, Gender: gender, MedicalHistory: history}
	if pc.IsEmpty() {
		return nil
	}
	return pc
}
