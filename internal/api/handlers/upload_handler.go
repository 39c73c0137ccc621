package handlers

import (
	"errors"

	"lifetrack/internal/dto"
	"lifetrack/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type UploadHandler struct {
	uploadService *service.UploadService
	logger        *zap.Logger
}

func NewUploadHandler(uploadService *service.UploadService, logger *zap.Logger) *UploadHandler {
	return &UploadHandler{
		uploadService: uploadService,
		logger:        logger,
	}
}

// Initialize godoc
// @Summary Start a progress-tracked upload
// @Tags report-upload
// @Accept json
// @Produce json
// @Param request body dto.InitializeUploadRequest true "Upload metadata"
// @Security Bearer
// @Success 201 {object} dto.Response
// @Failure 400 {object} dto.Response
// @Router /api/report-upload/initialize [post]
func (h *UploadHandler) Initialize(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	var req dto.InitializeUploadRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	upload, err := h.uploadService.Initialize(c.Context(), actor, service.InitializeUploadInput{
		Title:       req.Title,
		Description: req.Description,
		ReportType:  req.ReportType,
		Tags:        req.Tags,
		Category:    req.Category,
	})
	if err != nil {
		return handleError(c, h.logger, err, "Failed to initialize upload")
	}

	return respond(c, fiber.StatusCreated, "Upload initialized successfully", fiber.Map{
		"upload_id": upload.ID.String(),
		"upload":    dto.NewUploadResponse(upload),
	})
}

// Upload godoc
// @Summary Attach the file of an upload
// @Tags report-upload
// @Accept multipart/form-data
// @Produce json
// @Param uploadId path string true "Upload ID"
// @Param file formData file true "Report file"
// @Security Bearer
// @Success 200 {object} dto.Response
// @Failure 400 {object} dto.Response
// @Failure 404 {object} dto.Response
// @Router /api/report-upload/{uploadId}/upload [post]
func (h *UploadHandler) Upload(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "uploadId")
	if err != nil {
		return err
	}

	file, closeFile, err := formFile(c, "file")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "No file uploaded")
	}
	defer closeFile()

	res, err := h.uploadService.AttachFile(c.Context(), actor, id, file)
	if err != nil {
		return h.attachError(c, err)
	}

	return respond(c, fiber.StatusOK, "File uploaded successfully, processing started", fiber.Map{
		"upload":   dto.NewUploadResponse(res.Upload),
		"progress": res.Upload.Progress,
		"task_id":  res.TaskID,
	})
}

// RejectOversized answers an upload whose body exceeded the server limit and
// records the failure on the upload. c must already carry the caller's claims.
func (h *UploadHandler) RejectOversized(c *fiber.Ctx, uploadID string) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(uploadID)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid uploadId")
	}
	return h.attachError(c, h.uploadService.RejectOversized(c.Context(), actor, id))
}

func (h *UploadHandler) attachError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidState):
		return fail(c, fiber.StatusBadRequest, "Upload is not waiting for a file")
	case errors.Is(err, service.ErrNotFound):
		return fail(c, fiber.StatusNotFound, "Upload not found")
	}
	return handleError(c, h.logger, err, "Failed to upload file")
}

// Progress godoc
// @Summary Upload progress
// @Tags report-upload
// @Produce json
// @Param uploadId path string true "Upload ID"
// @Security Bearer
// @Success 200 {object} dto.Response
// @Failure 404 {object} dto.Response
// @Router /api/report-upload/{uploadId}/progress [get]
func (h *UploadHandler) Progress(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "uploadId")
	if err != nil {
		return err
	}

	upload, err := h.uploadService.Progress(c.Context(), actor, id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return fail(c, fiber.StatusNotFound, "Upload not found")
		}
		return handleError(c, h.logger, err, "Failed to get upload progress")
	}

	return respond(c, fiber.StatusOK, "", fiber.Map{
		"upload":   dto.NewUploadResponse(upload),
		"progress": upload.Progress,
		"status":   upload.Status,
	})
}

// MyUploads godoc
// @Summary List the caller's uploads
// @Tags report-upload
// @Produce json
// @Param page query int false "Page" default(1)
// @Param limit query int false "Limit" default(10)
// @Param status query string false "Upload status"
// @Security Bearer
// @Success 200 {object} dto.Response
// @Router /api/report-upload/my-uploads [get]
func (h *UploadHandler) MyUploads(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	q := service.UploadQuery{Status: c.Query("status"), Page: pageQuery(c)}
	uploads, total, err := h.uploadService.ListMine(c.Context(), actor, q)
	if err != nil {
		return handleError(c, h.logger, err, "Failed to list uploads")
	}

	return respond(c, fiber.StatusOK, "", paged(dto.NewUploadResponses(uploads), "uploads", q.Page, total))
}

// AllUploads godoc
// @Summary List every upload
// @Tags report-upload
// @Produce json
// @Param page query int false "Page" default(1)
// @Param limit query int false "Limit" default(10)
// @Param status query string false "Upload status"
// @Param patientId query string false "Patient ID"
// @Security Bearer
// @Success 200 {object} dto.Response
// @Failure 403 {object} dto.Response
// @Router /api/report-upload/all-uploads [get]
func (h *UploadHandler) AllUploads(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	q := service.UploadQuery{Status: c.Query("status"), PatientID: c.Query("patientId"), Page: pageQuery(c)}
	uploads, total, err := h.uploadService.ListAll(c.Context(), actor, q)
	if err != nil {
		return handleError(c, h.logger, err, "Failed to list uploads")
	}

	return respond(c, fiber.StatusOK, "", paged(dto.NewUploadResponses(uploads), "uploads", q.Page, total))
}

// Retry godoc
// @Summary Retry a failed upload
// @Tags report-upload
// @Produce json
// @Param uploadId path string true "Upload ID"
// @Security Bearer
// @Success 200 {object} dto.Response
// @Failure 400 {object} dto.Response
// @Router /api/report-upload/{uploadId}/retry [post]
func (h *UploadHandler) Retry(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "uploadId")
	if err != nil {
		return err
	}

	upload, err := h.uploadService.Retry(c.Context(), actor, id)
	if err != nil {
		return handleError(c, h.logger, err, "Failed to retry upload")
	}

	return respond(c, fiber.StatusOK, "Upload retry initiated", fiber.Map{
		"upload": dto.NewUploadResponse(upload),
	})
}

// Delete godoc
// @Summary Delete an upload and its file
// @Tags report-upload
// @Param uploadId path string true "Upload ID"
// @Security Bearer
// @Success 200 {object} dto.Response
// @Router /api/report-upload/{uploadId} [delete]
func (h *UploadHandler) Delete(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "uploadId")
	if err != nil {
		return err
	}

	if err := h.uploadService.Delete(c.Context(), actor, id); err != nil {
		return handleError(c, h.logger, err, "Failed to delete upload")
	}

	return respond(c, fiber.StatusOK, "Upload deleted successfully", nil)
}

// Stats godoc
// @Summary Upload statistics
// @Tags report-upload
// @Produce json
// @Security Bearer
// @Success 200 {object} service.UploadStats
// @Router /api/report-upload/stats/overview [get]
func (h *UploadHandler) Stats(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	stats, err := h.uploadService.Stats(c.Context(), actor)
	if err != nil {
		return handleError(c, h.logger, err, "Failed to get upload statistics")
	}

	return respond(c, fiber.StatusOK, "", stats)
}

func (h *UploadHandler) AIStatus(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "uploadId")
	if err != nil {
		return err
	}

	status, err := h.uploadService.AIStatus(c.Context(), actor, id)
	if err != nil {
		return handleError(c, h.logger, err, "Failed to get AI status")
	}

	return respond(c, fiber.StatusOK, "", dto.NewAIStatusResponse(status))
}

func (h *UploadHandler) AIRetry(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "uploadId")
	if err != nil {
		return err
	}

	var req dto.AIRetryRequest
	if err := bindOptional(c, &req); err != nil {
		return err
	}

	taskID, err := h.uploadService.RetryAI(c.Context(), actor, id, patientContext(req.Age, req.Gender, req.MedicalHistory))
	if err != nil {
		if errors.Is(err, service.ErrInvalidState) {
			return fail(c, fiber.StatusBadRequest, msgAIRetryState)
		}
		return handleError(c, h.logger, err, "Failed to retry AI analysis")
	}

	return respond(c, fiber.StatusOK, "AI analysis retry initiated", fiber.Map{"task_id": taskID})
}
