package handlers

import (
	"bytes"
	"mime"

	"lifetrack/internal/dto"
	"lifetrack/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type patientOverviewResponse[T any] struct {
	Patient   dto.PatientSummary `json:"patient"`
	Latest    T                  `json:"latest"`
	Generated bool               `json:"generated"`
}

type HealthDataHandler struct {
	healthService *service.HealthDataService
	logger        *zap.Logger
}

func NewHealthDataHandler(healthService *service.HealthDataService, logger *zap.Logger) *HealthDataHandler {
	return &HealthDataHandler{
		healthService: healthService,
		logger:        logger,
	}
}

// Update godoc
// @Summary Record a new health reading for a patient
// @Tags health-data
// @Produce json
// @Param patientId path string true "Patient ID"
// @Security Bearer
// @Success 200 {object} dto.HealthDataResponse
// @Failure 403 {object} dto.Response
// @Router /api/health-data/update/{patientId} [put]
func (h *HealthDataHandler) Update(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	patientID, err := pathID(c, "patientId")
	if err != nil {
		return err
	}

	record, err := h.healthService.Record(c.Context(), actor, patientID)
	if err != nil {
		return handleError(c, h.logger, err, "Failed to update health data")
	}

	return respond(c, fiber.StatusOK, "Health data updated successfully", dto.NewHealthDataResponse(record))
}

// Latest godoc
// @Summary Latest health reading of a patient
// @Tags health-data
// @Produce json
// @Param patientId path string true "Patient ID"
// @Security Bearer
// @Success 200 {object} dto.HealthDataResponse
// @Router /api/health-data/latest/{patientId} [get]
func (h *HealthDataHandler) Latest(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	patientID, err := pathID(c, "patientId")
	if err != nil {
		return err
	}

	record, err := h.healthService.Latest(c.Context(), actor, patientID)
	if err != nil {
		return handleError(c, h.logger, err, "Failed to get health data")
	}

	return respond(c, fiber.StatusOK, "", dto.NewHealthDataResponse(record))
}

// History godoc
// @Summary Health reading history of a patient
// @Tags health-data
// @Produce json
// @Param patientId path string true "Patient ID"
// @Param page query int false "Page" default(1)
// @Param limit query int false "Limit" default(10)
// @Security Bearer
// @Success 200 {object} dto.Response
// @Router /api/health-data/history/{patientId} [get]
func (h *HealthDataHandler) History(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	patientID, err := pathID(c, "patientId")
	if err != nil {
		return err
	}

	page := pageQuery(c)
	items, total, err := h.healthService.History(c.Context(), actor, patientID, page)
	if err != nil {
		return handleError(c, h.logger, err, "Failed to get health data history")
	}

	return respond(c, fiber.StatusOK, "", paged(dto.NewHealthDataResponses(items), "history", page, total))
}

// Export godoc
// @Summary Export the health reading history as CSV
// @Tags health-data
// @Produce text/csv
// @Param patientId path string true "Patient ID"
// @Security Bearer
// @Success 200 {file} file
// @Router /api/health-data/history/{patientId}/export [get]
func (h *HealthDataHandler) Export(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	patientID, err := pathID(c, "patientId")
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if _, err := h.healthService.ExportCSV(c.Context(), actor, patientID, &buf); err != nil {
		return handleError(c, h.logger, err, "Failed to export health data")
	}

	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, mime.FormatMediaType("attachment", map[string]string{
		"filename": "health-data-" + patientID.String() + ".csv",
	}))
	return c.Send(buf.Bytes())
}

// AllPatients godoc
// @Summary Latest health reading of every visible patient
// @Tags health-data
// @Produce json
// @Security Bearer
// @Success 200 {object} dto.Response
// @Router /api/health-data/all-patients [get]
func (h *HealthDataHandler) AllPatients(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	overview, err := h.healthService.AllPatients(c.Context(), actor)
	if err != nil {
		return handleError(c, h.logger, err, "Failed to get patients health data")
	}

	out := make([]patientOverviewResponse[dto.HealthDataResponse], 0, len(overview))
	for _, o := range overview {
		out = append(out, patientOverviewResponse[dto.HealthDataResponse]{
			Patient:   dto.NewPatientSummary(o.Patient),
			Latest:    dto.NewHealthDataResponse(o.Latest),
			Generated: o.Generated,
		})
	}
	return respond(c, fiber.StatusOK, "", out)
}

type PatientStatusHandler struct {
	statusService *service.PatientStatusService
	logger        *zap.Logger
}

func NewPatientStatusHandler(statusService *service.PatientStatusService, logger *zap.Logger) *PatientStatusHandler {
	return &PatientStatusHandler{
		statusService: statusService,
		logger:        logger,
	}
}

// Update godoc
// @Summary Record a new status for a patient
// @Tags patient-status
// @Produce json
// @Param patientId path string true "Patient ID"
// @Security Bearer
// @Success 200 {object} dto.PatientStatusResponse
// @Router /api/patient-status/update/{patientId} [put]
func (h *PatientStatusHandler) Update(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	patientID, err := pathID(c, "patientId")
	if err != nil {
		return err
	}

	status, err := h.statusService.Update(c.Context(), actor, patientID)
	if err != nil {
		return handleError(c, h.logger, err, "Failed to update patient status")
	}

	return respond(c, fiber.StatusOK, "Patient status updated successfully", dto.NewPatientStatusResponse(status))
}

func (h *PatientStatusHandler) Latest(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	patientID, err := pathID(c, "patientId")
	if err != nil {
		return err
	}

	status, err := h.statusService.Latest(c.Context(), actor, patientID)
	if err != nil {
		return handleError(c, h.logger, err, "Failed to get patient status")
	}

	return respond(c, fiber.StatusOK, "", dto.NewPatientStatusResponse(status))
}

func (h *PatientStatusHandler) History(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	patientID, err := pathID(c, "patientId")
	if err != nil {
		return err
	}

	page := pageQuery(c)
	items, total, err := h.statusService.History(c.Context(), actor, patientID, page)
	if err != nil {
		return handleError(c, h.logger, err, "Failed to get patient status history")
	}

	return respond(c, fiber.StatusOK, "", paged(dto.NewPatientStatusResponses(items), "history", page, total))
}

func (h *PatientStatusHandler) AllPatients(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	overview, err := h.statusService.AllPatients(c.Context(), actor)
	if err != nil {
		return handleError(c, h.logger, err, "Failed to get patients status")
	}

	out := make([]patientOverviewResponse[dto.PatientStatusResponse], 0, len(overview))
	for _, o := range overview {
		out = append(out, patientOverviewResponse[dto.PatientStatusResponse]{
			Patient:   dto.NewPatientSummary(o.Patient),
			Latest:    dto.NewPatientStatusResponse(o.Latest),
			Generated: o.Generated,
		})
	}
	return respond(c, fiber.StatusOK, "", out)
}
