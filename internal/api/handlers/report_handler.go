package handlers

import (
	"context"
	"errors"
	"mime"
	"strconv"

	"lifetrack/internal/dto"
	"lifetrack/internal/models"
	"lifetrack/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type reportLister func(context.Context, service.Actor, service.ReportQuery) ([]*models.Report, int, error)

type ReportHandler struct {
	reportService *service.ReportService
	logger        *zap.Logger
}

func NewReportHandler(reportService *service.ReportService, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{
		reportService: reportService,
		logger:        logger,
	}
}

// Upload godoc
// @Summary Upload a medical report
// @Description Store a report file and queue its AI analysis
// @Tags reports
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Report file"
// @Param title formData string true "Title"
// @Param description formData string false "Description"
// @Param reportType formData string false "Report type"
// @Param tags formData string false "Comma separated tags"
// @Param isPublic formData bool false "Visible to caregivers"
// @Param age formData string false "Patient age"
// @Param gender formData string false "Patient gender"
// @Param medicalHistory formData string false "Medical history"
// @Security Bearer
// @Success 201 {object} dto.Response
// @Failure 400 {object} dto.Response
// @Router /api/reports/upload [post]
func (h *ReportHandler) Upload(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	file, closeFile, err := formFile(c, "file")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "No file uploaded")
	}
	defer closeFile()

	isPublic, _ := strconv.ParseBool(c.FormValue("isPublic"))
	report, taskID, err := h.reportService.Upload(c.Context(), actor, service.UploadReportInput{
		Title:       c.FormValue("title"),
		Description: c.FormValue("description"),
		ReportType:  c.FormValue("reportType"),
		Tags:        c.FormValue("tags"),
		IsPublic:    isPublic,
		Context:     patientContext(c.FormValue("age"), c.FormValue("gender"), c.FormValue("medicalHistory")),
	}, file)
	if err != nil {
		return handleError(c, h.logger, err, "Failed to upload report")
	}

	return respond(c, fiber.StatusCreated, "Report uploaded successfully", fiber.Map{
		"report":  dto.NewReportResponse(report),
		"task_id": taskID,
	})
}

// MyReports godoc
// @Summary List the caller's reports
// @Tags reports
// @Produce json
// @Param page query int false "Page" default(1)
// @Param limit query int false "Limit" default(10)
// @Param reportType query string false "Report type"
// @Param status query string false "Review status"
// @Security Bearer
// @Success 200 {object} dto.Response
// @Router /api/reports/my-reports [get]
func (h *ReportHandler) MyReports(c *fiber.Ctx) error {
	return h.list(c, h.reportService.ListMine)
}

// AllPatients godoc
// @Summary List reports of every patient
// @Tags reports
// @Produce json
// @Param page query int false "Page" default(1)
// @Param limit query int false "Limit" default(10)
// @Param patientId query string false "Patient ID"
// @Param reportType query string false "Report type"
// @Param status query string false "Review status"
// @Security Bearer
// @Success 200 {object} dto.Response
// @Failure 403 {object} dto.Response
// @Router /api/reports/all-patients [get]
func (h *ReportHandler) AllPatients(c *fiber.Ctx) error {
	return h.list(c, h.reportService.ListAll)
}

// CaregiverPatients godoc
// @Summary List reports of the caregiver's patients
// @Tags reports
// @Produce json
// @Security Bearer
// @Success 200 {object} dto.Response
// @Router /api/reports/caregiver-patients [get]
func (h *ReportHandler) CaregiverPatients(c *fiber.Ctx) error {
	return h.list(c, h.reportService.ListCaregiverPatients)
}

// PatientReports godoc
// @Summary List reports of one patient
// @Tags reports
// @Produce json
// @Param patientId path string true "Patient ID"
// @Security Bearer
// @Success 200 {object} dto.Response
// @Router /api/reports/patient/{patientId} [get]
func (h *ReportHandler) PatientReports(c *fiber.Ctx) error {
	patientID, err := pathID(c, "patientId")
	if err != nil {
		return err
	}
	return h.list(c, func(ctx context.Context, actor service.Actor, q service.ReportQuery) ([]*models.Report, int, error) {
		return h.reportService.ListForPatient(ctx, actor, patientID, q)
	})
}

func (h *ReportHandler) list(c *fiber.Ctx, fetch reportLister) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	q := service.ReportQuery{
		PatientID:  c.Query("patientId"),
		ReportType: c.Query("reportType"),
		Status:     c.Query("status"),
		Page:       pageQuery(c),
	}
	reports, total, err := fetch(c.Context(), actor, q)
	if err != nil {
		return handleError(c, h.logger, err, "Failed to list reports")
	}

	return respond(c, fiber.StatusOK, "", paged(dto.NewReportResponses(reports), "reports", q.Page, total))
}

// Get godoc
// @Summary Get a report
// @Tags reports
// @Produce json
// @Param reportId path string true "Report ID"
// @Security Bearer
// @Success 200 {object} dto.ReportResponse
// @Failure 403 {object} dto.Response
// @Failure 404 {object} dto.Response
// @Router /api/reports/{reportId} [get]
func (h *ReportHandler) Get(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "reportId")
	if err != nil {
		return err
	}

	report, err := h.reportService.Get(c.Context(), actor, id)
	if err != nil {
		return h.reportError(c, err, "Failed to get report")
	}

	return respond(c, fiber.StatusOK, "", dto.NewReportResponse(report))
}

// UpdateStatus godoc
// @Summary Review a report
// @Tags reports
// @Accept json
// @Produce json
// @Param reportId path string true "Report ID"
// @Param request body dto.ReviewRequest true "Review"
// @Security Bearer
// @Success 200 {object} dto.ReportResponse
// @Failure 400 {object} dto.Response
// @Router /api/reports/{reportId}/status [put]
func (h *ReportHandler) UpdateStatus(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "reportId")
	if err != nil {
		return err
	}

	var req dto.ReviewRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	report, err := h.reportService.UpdateStatus(c.Context(), actor, id, service.ReviewInput{
		Status:      req.Status,
		ReviewNotes: req.ReviewNotes,
	})
	if err != nil {
		return h.reportError(c, err, "Failed to update report status")
	}

	return respond(c, fiber.StatusOK, "Report status updated successfully", dto.NewReportResponse(report))
}

// Delete godoc
// @Summary Delete a report and its file
// @Tags reports
// @Param reportId path string true "Report ID"
// @Security Bearer
// @Success 200 {object} dto.Response
// @Router /api/reports/{reportId} [delete]
func (h *ReportHandler) Delete(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "reportId")
	if err != nil {
		return err
	}

	if err := h.reportService.Delete(c.Context(), actor, id); err != nil {
		return h.reportError(c, err, "Failed to delete report")
	}

	return respond(c, fiber.StatusOK, "Report deleted successfully", nil)
}

// AIStatus godoc
// @Summary AI analysis status of a report
// @Tags reports
// @Produce json
// @Param reportId path string true "Report ID"
// @Security Bearer
// @Success 200 {object} dto.AIStatusResponse
// @Router /api/reports/{reportId}/ai-status [get]
func (h *ReportHandler) AIStatus(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "reportId")
	if err != nil {
		return err
	}

	status, err := h.reportService.AIStatus(c.Context(), actor, id)
	if err != nil {
		return h.reportError(c, err, "Failed to get AI status")
	}

	return respond(c, fiber.StatusOK, "", dto.NewAIStatusResponse(status))
}

// AIRetry godoc
// @Summary Retry a failed AI analysis
// @Tags reports
// @Accept json
// @Produce json
// @Param reportId path string true "Report ID"
// @Param request body dto.AIRetryRequest false "Patient context"
// @Security Bearer
// @Success 200 {object} dto.Response
// @Failure 400 {object} dto.Response
// @Router /api/reports/{reportId}/ai-retry [post]
func (h *ReportHandler) AIRetry(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "reportId")
	if err != nil {
		return err
	}

	var req dto.AIRetryRequest
	if err := bindOptional(c, &req); err != nil {
		return err
	}

	taskID, err := h.reportService.RetryAI(c.Context(), actor, id, patientContext(req.Age, req.Gender, req.MedicalHistory))
	if err != nil {
		if errors.Is(err, service.ErrInvalidState) {
			return fail(c, fiber.StatusBadRequest, msgAIRetryState)
		}
		return h.reportError(c, err, "Failed to retry AI analysis")
	}

	return respond(c, fiber.StatusOK, "AI analysis retry initiated", fiber.Map{"task_id": taskID})
}

// Download godoc
// @Summary Download the stored report file
// @Tags reports
// @Produce octet-stream
// @Param reportId path string true "Report ID"
// @Security Bearer
// @Success 200 {file} file
// @Failure 404 {object} dto.Response
// @Router /api/reports/download/{reportId} [get]
func (h *ReportHandler) Download(c *fiber.Ctx) error {
	return h.sendFile(c, "attachment")
}

// View godoc
// @Summary View the stored report file inline
// @Tags reports
// @Produce octet-stream
// @Param reportId path string true "Report ID"
// @Security Bearer
// @Success 200 {file} file
// @Router /api/reports/view/{reportId} [get]
func (h *ReportHandler) View(c *fiber.Ctx) error {
	return h.sendFile(c, "inline")
}

func (h *ReportHandler) sendFile(c *fiber.Ctx, disposition string) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "reportId")
	if err != nil {
		return err
	}

	f, report, err := h.reportService.OpenFile(c.Context(), actor, id)
	if err != nil {
		return h.reportError(c, err, "Failed to open report file")
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return handleError(c, h.logger, err, "Failed to open report file")
	}

	contentType := report.FileType
	if contentType == "" {
		contentType = fiber.MIMEOctetStream
	}
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderContentDisposition, mime.FormatMediaType(disposition, map[string]string{"filename": report.FileName}))

	// the response body closes f once it is written
	return c.SendStream(f, int(info.Size()))
}

// SummaryPDF godoc
// @Summary Printable PDF of the AI analysis
// @Tags reports
// @Produce application/pdf
// @Param reportId path string true "Report ID"
// @Security Bearer
// @Success 200 {file} file
// @Failure 400 {object} dto.Response
// @Router /api/reports/{reportId}/ai-summary.pdf [get]
func (h *ReportHandler) SummaryPDF(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "reportId")
	if err != nil {
		return err
	}

	doc, err := h.reportService.SummaryPDF(c.Context(), actor, id)
	if err != nil {
		if errors.Is(err, service.ErrInvalidState) {
			return fail(c, fiber.StatusBadRequest, "AI analysis is not completed yet")
		}
		return h.reportError(c, err, "Failed to render summary")
	}

	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, mime.FormatMediaType("inline", map[string]string{"filename": "ai-summary.pdf"}))
	return c.Send(doc)
}

func (h *ReportHandler) reportError(c *fiber.Ctx, err error, internal string) error {
	if errors.Is(err, service.ErrNotFound) {
		return fail(c, fiber.StatusNotFound, "Report not found")
	}
	return handleError(c, h.logger, err, internal)
}
