package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"lifetrack/internal/api"
	"lifetrack/internal/api/handlers"
	"lifetrack/internal/queue"
	"lifetrack/internal/repository"
	"lifetrack/internal/repository/memory"
	"lifetrack/internal/service"
	"lifetrack/internal/storage"
	"lifetrack/pkg/auth"
	"lifetrack/pkg/config"
	"lifetrack/pkg/logger"
	"lifetrack/pkg/postgres"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// @title LifeTrack API
// @version 1.0
// @description Healthcare coordination backend: medical reports, AI analysis and patient monitoring

// @contact.name API Support
// @contact.email support@lifetrack.app

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:5000
// @BasePath /

// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

const startupBatchLimit = 50

type repositories struct {
	users    service.UserRepository
	reports  service.ReportRepository
	uploads  service.UploadRepository
	health   service.HealthDataRepository
	statuses service.PatientStatusRepository
	contacts service.ContactRepository
	tasks    service.TaskRepository
	tx       service.Transactor
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logger.Level, cfg.Logger.Encoding); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	appLogger := logger.Get()
	appLogger.Info("Starting LifeTrack service",
		zap.String("storage", cfg.Storage.Backend),
		zap.String("ai_provider", cfg.AI.Provider),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repos, closeRepos, err := openRepositories(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to open storage", zap.Error(err))
	}
	defer closeRepos()

	files, err := storage.NewLocalStore(cfg.Upload.Dir)
	if err != nil {
		appLogger.Fatal("Failed to prepare upload directory", zap.Error(err))
	}

	model, closeModel, err := newVisionModel(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize AI provider", zap.Error(err))
	}
	defer closeModel()

	tasks := queue.New(queue.Config{
		Workers:      cfg.Queue.Workers,
		BufferSize:   cfg.Queue.BufferSize,
		MaxAttempts:  cfg.Queue.MaxAttempts,
		RetryBackoff: cfg.Queue.RetryBackoff,
		TaskTimeout:  2 * cfg.AI.RequestTimeout,
		Retention:    cfg.Queue.Retention,
	}, appLogger)

	jwtManager := auth.NewJWTManager(cfg.JWT.SecretKey, cfg.JWT.Expiration, cfg.JWT.RefreshExp)

	preparer := service.NewDocumentPreparer(cfg.AI.MaxImageDimension, cfg.AI.MaxPDFPages)
	analyzer := service.NewAnalyzer(model, preparer, cfg.AI.RequestTimeout, appLogger)

	authService := service.NewAuthService(repos.users, jwtManager, appLogger)
	analysisService := service.NewAnalysisService(analyzer, repos.reports, repos.uploads, tasks, repos.tx, appLogger)
	uploadService := service.NewUploadService(repos.uploads, repos.users, files, tasks, analysisService, service.UploadConfig{
		MaxFileSize:     cfg.Upload.MaxFileSize,
		ProcessingDelay: cfg.Upload.ProcessingDelay,
	}, appLogger)
	reportService := service.NewReportService(repos.reports, repos.users, files, analysisService, cfg.Upload.MaxFileSize, appLogger)
	aiService := service.NewAIService(analyzer, repos.reports, files, cfg.Upload.MaxInlineFileSize, appLogger)
	healthService := service.NewHealthDataService(repos.health, repos.users, appLogger)
	statusService := service.NewPatientStatusService(repos.statuses, repos.users, appLogger)
	contactService := service.NewContactService(repos.contacts, repos.users, appLogger)
	taskService := service.NewTaskService(repos.tasks, tasks, appLogger)

	if cfg.Admin.Email != "" && cfg.Admin.Password != "" {
		created, err := authService.SeedAdmin(ctx, cfg.Admin.Email, cfg.Admin.Password, cfg.Admin.FirstName, cfg.Admin.LastName)
		if err != nil {
			appLogger.Fatal("Failed to seed admin account", zap.Error(err))
		}
		if created {
			appLogger.Info("Admin account created", zap.String("email", cfg.Admin.Email))
		}
	}

	// analyses interrupted by a previous shutdown are queued again
	if res, err := analysisService.BatchProcess(ctx, startupBatchLimit); err != nil {
		appLogger.Error("Failed to queue pending analyses", zap.Error(err))
	} else if res.Queued > 0 || res.Failed > 0 {
		appLogger.Info("Pending analyses queued", zap.Int("queued", res.Queued), zap.Int("failed", res.Failed))
	}

	app := api.SetupRouter(api.Handlers{
		Auth:          handlers.NewAuthHandler(authService, appLogger),
		Upload:        handlers.NewUploadHandler(uploadService, appLogger),
		Report:        handlers.NewReportHandler(reportService, appLogger),
		AI:            handlers.NewAIHandler(aiService, analysisService, appLogger),
		HealthData:    handlers.NewHealthDataHandler(healthService, appLogger),
		PatientStatus: handlers.NewPatientStatusHandler(statusService, appLogger),
		Contact:       handlers.NewContactHandler(contactService, appLogger),
		Task:          handlers.NewTaskHandler(taskService, appLogger),
	}, jwtManager, api.RouterConfig{
		AllowOrigins: cfg.CORS.AllowOrigins,
		UploadDir:    files.Dir(),
		MaxFileSize:  cfg.Upload.MaxFileSize,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, appLogger)

	erg, ctx := errgroup.WithContext(ctx)
	erg.Go(func() error {
		return tasks.Run(ctx)
	})
	erg.Go(func() error {
		addr := ":" + cfg.Server.Port
		appLogger.Info("Server starting", zap.String("address", addr))
		if err := app.Listen(addr); err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	erg.Go(func() error {
		<-ctx.Done()
		appLogger.Info("Shutting down server")
		return app.ShutdownWithTimeout(cfg.Server.ShutdownTimeout)
	})

	if err := erg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		appLogger.Error("Service stopped with error", zap.Error(err))
		return
	}
	appLogger.Info("Service stopped")
}

func openRepositories(ctx context.Context, cfg *config.Config, log *zap.Logger) (*repositories, func(), error) {
	if cfg.Storage.Backend == config.StorageBackendMemory {
		log.Warn("Using in-memory storage, data is lost on restart")
		return &repositories{
			users:    memory.NewUserRepository(),
			reports:  memory.NewReportRepository(),
			uploads:  memory.NewUploadRepository(),
			health:   memory.NewHealthDataRepository(),
			statuses: memory.NewPatientStatusRepository(),
			contacts: memory.NewContactRepository(),
			tasks:    memory.NewTaskRepository(),
			tx:       memory.Transactor{},
		}, func() {}, nil
	}

	pool, err := postgres.NewPool(ctx, &cfg.Database, log)
	if err != nil {
		return nil, nil, err
	}
	return &repositories{
		users:    repository.NewUserRepository(pool, log),
		reports:  repository.NewReportRepository(pool, log),
		uploads:  repository.NewUploadRepository(pool, log),
		health:   repository.NewHealthDataRepository(pool, log),
		statuses: repository.NewPatientStatusRepository(pool, log),
		contacts: repository.NewContactRepository(pool, log),
		tasks:    repository.NewTaskRepository(pool, log),
		tx:       repository.NewTxManager(pool),
	}, pool.Close, nil
}

func newVisionModel(ctx context.Context, cfg *config.Config, log *zap.Logger) (service.VisionModel, func(), error) {
	switch cfg.AI.Provider {
	case config.AIProviderOpenAI:
		if cfg.AI.OpenAI.APIKey == "" {
			log.Warn("OPENAI_API_KEY is empty, AI analysis is disabled")
			return service.NewUnavailableModel(), func() {}, nil
		}
		client := &http.Client{Timeout: cfg.AI.RequestTimeout}
		return service.NewOpenAIModel(&cfg.AI.OpenAI, client, log), func() {}, nil
	case config.AIProviderGigaChat:
		model, err := service.NewGigaChatModel(ctx, &cfg.AI.GigaChat, log)
		if err != nil {
			return nil, nil, err
		}
		return model, func() {
			if err := model.Close(); err != nil {
				log.Warn("Failed to close GigaChat client", zap.Error(err))
			}
		}, nil
	}
	log.Warn("AI provider disabled")
	return service.NewUnavailableModel(), func() {}, nil
}
