package handlers

import (
	"encoding/json"
	"errors"
	"time"

	"lifetrack/internal/dto"
	"lifetrack/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultCleanupDays = 30
	defaultBatchLimit  = 50
)

type AIHandler struct {
	aiService       *service.AIService
	analysisService *service.AnalysisService
	logger          *zap.Logger
}

func NewAIHandler(aiService *service.AIService, analysisService *service.AnalysisService, logger *zap.Logger) *AIHandler {
	return &AIHandler{
		aiService:       aiService,
		analysisService: analysisService,
		logger:          logger,
	}
}

func newAnalysisResponse(res *service.AnalysisResult) dto.AnalysisResponse {
	resp := dto.AnalysisResponse{
		Success:     true,
		Explanation: res.Explanation,
		Model:       res.Model,
		Usage:       res.Usage,
	}
	if res.Extracted != nil {
		resp.ExtractedData = res.Extracted
	}
	return resp
}

// AnalyzeReport godoc
// @Summary Explain a medical report
// @Description Analyze an uploaded image or PDF without storing a record
// @Tags ai
// @Accept multipart/form-data
// @Produce json
// @Param report formData file true "Report image or PDF"
// @Security Bearer
// @Success 200 {object} dto.AnalysisResponse
// @Failure 400 {object} dto.Response
// @Router /api/ai/analyze-report [post]
func (h *AIHandler) AnalyzeReport(c *fiber.Ctx) error {
	return h.analyzeFile(c, service.ModeStandard, nil, nil)
}

// AnalyzeReportWithContext godoc
// @Summary Explain a medical report for a specific patient
// @Tags ai
// @Accept multipart/form-data
// @Produce json
// @Param report formData file true "Report image or PDF"
// @Param age formData string false "Patient age"
// @Param gender formData string false "Patient gender"
// @Param medicalHistory formData string false "Medical history"
// @Security Bearer
// @Success 200 {object} dto.AnalysisResponse
// @Router /api/ai/analyze-report-with-context [post]
func (h *AIHandler) AnalyzeReportWithContext(c *fiber.Ctx) error {
	pc := patientContext(c.FormValue("age"), c.FormValue("gender"), c.FormValue("medicalHistory"))
	return h.analyzeFile(c, service.ModeContext, pc, nil)
}

// ExtractInformation godoc
// @Summary Extract structured data from a medical report
// @Tags ai
// @Accept multipart/form-data
// @Produce json
// @Param report formData file true "Report image or PDF"
// @Param informationTypes formData string false "JSON array of fields to extract"
// @Security Bearer
// @Success 200 {object} dto.AnalysisResponse
// @Router /api/ai/extract-information [post]
func (h *AIHandler) ExtractInformation(c *fiber.Ctx) error {
	var types []string
	if raw := c.FormValue("informationTypes"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &types); err != nil {
			return fail(c, fiber.StatusBadRequest, "informationTypes must be a JSON array of strings")
		}
	}
	return h.analyzeFile(c, service.ModeExtract, nil, types)
}

func (h *AIHandler) analyzeFile(c *fiber.Ctx, mode service.AnalysisMode, pc *service.PatientContext, types []string) error {
	file, closeFile, err := formFile(c, "report")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "No file uploaded")
	}
	defer closeFile()

	res, err := h.aiService.AnalyzeFile(c.Context(), file, service.AnalyzeInput{
		Mode:             mode,
		Context:          pc,
		InformationTypes: types,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidFileType) {
			return fail(c, fiber.StatusBadRequest, "Invalid file type. Only images and PDFs are allowed.")
		}
		return handleError(c, h.logger, err, "Failed to analyze medical report")
	}

	message := "Medical report analyzed successfully"
	if mode == service.ModeExtract {
		message = "Medical information extracted successfully"
	}
	return respond(c, fiber.StatusOK, message, newAnalysisResponse(res))
}

// AnalyzeExistingReport godoc
// @Summary Explain a stored report
// @Tags ai
// @Accept json
// @Produce json
// @Param request body dto.AnalyzeExistingRequest true "Report and optional context"
// @Security Bearer
// @Success 200 {object} dto.AnalysisResponse
// @Failure 404 {object} dto.Response
// @Router /api/ai/analyze-existing-report [post]
func (h *AIHandler) AnalyzeExistingReport(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	var req dto.AnalyzeExistingRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	reportID, err := uuid.Parse(req.ReportID)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid report_id")
	}

	var pc *service.PatientContext
	if req.IncludeContext {
		pc = &service.PatientContext{Age: req.Age, Gender: req.Gender, MedicalHistory: req.MedicalHistory}
	}

	res, err := h.aiService.AnalyzeReport(c.Context(), actor, reportID, pc)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return fail(c, fiber.StatusNotFound, "Report not found")
		}
		return handleError(c, h.logger, err, "Failed to analyze medical report")
	}

	return respond(c, fiber.StatusOK, "Medical report analyzed successfully", newAnalysisResponse(res))
}

// HealthAssistance godoc
// @Summary Ask a health question
// @Tags ai
// @Accept json
// @Produce json
// @Param request body dto.HealthAssistanceRequest true "Question"
// @Security Bearer
// @Success 200 {object} dto.HealthAssistanceResponse
// @Failure 400 {object} dto.Response
// @Router /api/ai/health-assistance [post]
func (h *AIHandler) HealthAssistance(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	var req dto.HealthAssistanceRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	answer, err := h.aiService.HealthAssistance(c.Context(), actor, req.Question, req.UserContext)
	if err != nil {
		return handleError(c, h.logger, err, "Failed to get health assistance")
	}

	return respond(c, fiber.StatusOK, "Health assistance provided successfully", dto.HealthAssistanceResponse{
		Answer:   answer.Answer,
		UserRole: string(answer.Role),
		Model:    answer.Model,
		Usage:    answer.Usage,
	})
}

// CleanupStale godoc
// @Summary Reset old analyses to pending
// @Tags ai
// @Produce json
// @Param days query int false "Age in days" default(30)
// @Security Bearer
// @Success 200 {object} service.CleanupResult
// @Router /api/ai/admin/cleanup [post]
func (h *AIHandler) CleanupStale(c *fiber.Ctx) error {
	days := c.QueryInt("days", defaultCleanupDays)
	if days <= 0 {
		return fail(c, fiber.StatusBadRequest, "days must be positive")
	}

	res, err := h.analysisService.CleanupStale(c.Context(), time.Duration(days)*24*time.Hour)
	if err != nil {
		return handleError(c, h.logger, err, "Failed to clean up analyses")
	}

	return respond(c, fiber.StatusOK, "Stale analyses reset", res)
}

// BatchProcess godoc
// @Summary Queue every unfinished analysis
// @Tags ai
// @Produce json
// @Param limit query int false "Records per kind" default(50)
// @Security Bearer
// @Success 200 {object} service.BatchResult
// @Router /api/ai/admin/batch-process [post]
func (h *AIHandler) BatchProcess(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultBatchLimit)
	if limit <= 0 {
		return fail(c, fiber.StatusBadRequest, "limit must be positive")
	}

	res, err := h.analysisService.BatchProcess(c.Context(), uint64(limit))
	if err != nil {
		return handleError(c, h.logger, err, "Failed to queue analyses")
	}

	return respond(c, fiber.StatusOK, "Analyses queued", res)
}
