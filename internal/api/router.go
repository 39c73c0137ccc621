package api

import (
	"errors"
	"strings"
	"time"

	"lifetrack/docs"
	"lifetrack/internal/api/handlers"
	"lifetrack/internal/dto"
	"lifetrack/pkg/auth"
	"lifetrack/pkg/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"
	"go.uber.org/zap"
)

// multipart overhead allowed on top of the largest accepted file
const bodyLimitSlack = 1 << 20

const uploadRoutePrefix = "/api/report-upload/"

type Handlers struct {
	Auth          *handlers.AuthHandler
	Upload        *handlers.UploadHandler
	Report        *handlers.ReportHandler
	AI            *handlers.AIHandler
	HealthData    *handlers.HealthDataHandler
	PatientStatus *handlers.PatientStatusHandler
	Contact       *handlers.ContactHandler
	Task          *handlers.TaskHandler
}

type RouterConfig struct {
	AllowOrigins string
	UploadDir    string
	MaxFileSize  int64
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func SetupRouter(h Handlers, jwtManager *auth.JWTManager, cfg RouterConfig, appLogger *zap.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		BodyLimit:    int(cfg.MaxFileSize) + bodyLimitSlack,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			message := "Something went wrong!"
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
				message = e.Message
				if code == fiber.StatusRequestEntityTooLarge {
					if handled := rejectOversizedUpload(c, h.Upload, jwtManager, appLogger); handled {
						return nil
					}
				}
			} else {
				appLogger.Error("Unhandled error", zap.String("path", c.Path()), zap.Error(err))
			}
			return c.Status(code).JSON(dto.Response{Success: false, Message: message})
		},
	})

	app.Use(recover.New())
	app.Use(helmet.New(helmet.Config{CrossOriginResourcePolicy: "cross-origin"}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization",
		AllowCredentials: cfg.AllowOrigins != "*",
	}))
	app.Use(logger.New())

	_ = docs.SwaggerInfo
	app.Get("/swagger/*", swagger.HandlerDefault)

	authRequired := middleware.AuthMiddleware(jwtManager, appLogger)
	staff := middleware.RequireRole("caregiver", "admin")
	adminOnly := middleware.RequireRole("admin")

	if cfg.UploadDir != "" {
		app.Use("/uploads", authRequired)
		app.Static("/uploads", cfg.UploadDir)
	}

	api := app.Group("/api")

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"success":   true,
			"message":   "LifeTrack API is running",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	authRoutes := api.Group("/auth")
	authRoutes.Post("/register", h.Auth.Register)
	authRoutes.Post("/login", h.Auth.Login)
	authRoutes.Post("/admin-login", h.Auth.AdminLogin)
	authRoutes.Post("/refresh", h.Auth.RefreshToken)
	authRoutes.Get("/me", authRequired, h.Auth.Me)
	authRoutes.Put("/profile", authRequired, h.Auth.UpdateProfile)
	authRoutes.Put("/change-password", authRequired, h.Auth.ChangePassword)
	authRoutes.Get("/users", authRequired, adminOnly, h.Auth.ListUsers)

	api.Get("/caregiver/patients", authRequired, staff, h.Auth.ListPatients)

	uploads := api.Group("/report-upload", authRequired)
	uploads.Post("/initialize", h.Upload.Initialize)
	uploads.Get("/my-uploads", h.Upload.MyUploads)
	uploads.Get("/all-uploads", staff, h.Upload.AllUploads)
	uploads.Get("/stats/overview", h.Upload.Stats)
	uploads.Post("/:uploadId/upload", h.Upload.Upload)
	uploads.Get("/:uploadId/progress", h.Upload.Progress)
	uploads.Post("/:uploadId/retry", h.Upload.Retry)
	uploads.Get("/:uploadId/ai-status", h.Upload.AIStatus)
	uploads.Post("/:uploadId/ai-retry", h.Upload.AIRetry)
	uploads.Delete("/:uploadId", h.Upload.Delete)

	reports := api.Group("/reports", authRequired)
	reports.Post("/upload", h.Report.Upload)
	reports.Get("/my-reports", h.Report.MyReports)
	reports.Get("/all-patients", staff, h.Report.AllPatients)
	reports.Get("/caregiver-patients", staff, h.Report.CaregiverPatients)
	reports.Get("/patient/:patientId", staff, h.Report.PatientReports)
	reports.Get("/download/:reportId", h.Report.Download)
	reports.Get("/view/:reportId", h.Report.View)
	reports.Get("/:reportId", h.Report.Get)
	reports.Put("/:reportId/status", staff, h.Report.UpdateStatus)
	reports.Delete("/:reportId", h.Report.Delete)
	reports.Get("/:reportId/ai-status", h.Report.AIStatus)
	reports.Post("/:reportId/ai-retry", h.Report.AIRetry)
	reports.Get("/:reportId/ai-summary.pdf", h.Report.SummaryPDF)

	ai := api.Group("/ai", authRequired)
	ai.Post("/analyze-report", h.AI.AnalyzeReport)
	ai.Post("/analyze-report-with-context", h.AI.AnalyzeReportWithContext)
	ai.Post("/extract-information", h.AI.ExtractInformation)
	ai.Post("/analyze-existing-report", h.AI.AnalyzeExistingReport)
	ai.Post("/health-assistance", h.AI.HealthAssistance)
	ai.Post("/admin/cleanup", adminOnly, h.AI.CleanupStale)
	ai.Post("/admin/batch-process", adminOnly, h.AI.BatchProcess)

	healthData := api.Group("/health-data", authRequired)
	healthData.Get("/all-patients", staff, h.HealthData.AllPatients)
	healthData.Put("/update/:patientId", h.HealthData.Update)
	healthData.Get("/latest/:patientId", h.HealthData.Latest)
	healthData.Get("/history/:patientId/export", h.HealthData.Export)
	healthData.Get("/history/:patientId", h.HealthData.History)

	status := api.Group("/patient-status", authRequired)
	status.Get("/all-patients", staff, h.PatientStatus.AllPatients)
	status.Put("/update/:patientId", h.PatientStatus.Update)
	status.Get("/latest/:patientId", h.PatientStatus.Latest)
	status.Get("/history/:patientId", h.PatientStatus.History)

	api.Post("/contact", h.Contact.Submit)
	contact := api.Group("/contact", authRequired, adminOnly)
	contact.Get("", h.Contact.List)
	contact.Get("/stats", h.Contact.Stats)
	contact.Get("/:id", h.Contact.Get)
	contact.Put("/:id", h.Contact.Update)
	contact.Delete("/:id", h.Contact.Delete)

	tasks := api.Group("/tasks", authRequired)
	tasks.Get("", h.Task.List)
	tasks.Post("", h.Task.Create)
	tasks.Get("/queue/:taskId", h.Task.QueueStatus)

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(dto.Response{Success: false, Message: "Route not found"})
	})

	return app
}

// rejectOversizedUpload fails the upload targeted by a request whose body was
// refused for its size, so the record does not stay uploading. It reports
// whether a response was written.
func rejectOversizedUpload(c *fiber.Ctx, h *handlers.UploadHandler, jwtManager *auth.JWTManager, logger *zap.Logger) bool {
	if h == nil || c.Method() != fiber.MethodPost {
		return false
	}
	rest, ok := strings.CutPrefix(c.Path(), uploadRoutePrefix)
	if !ok {
		return false
	}
	uploadID, ok := strings.CutSuffix(rest, "/upload")
	if !ok || uploadID == "" || strings.Contains(uploadID, "/") {
		return false
	}

	if err := middleware.Identify(c, jwtManager); err != nil {
		logger.Debug("Oversized upload without valid token", zap.String("path", c.Path()), zap.Error(err))
		return false
	}
	if err := h.RejectOversized(c, uploadID); err != nil {
		logger.Warn("Failed to reject oversized upload", zap.String("upload_id", uploadID), zap.Error(err))
		return false
	}
	return true
}
