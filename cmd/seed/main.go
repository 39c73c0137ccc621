package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"lifetrack/internal/dto"
	"lifetrack/internal/models"
	"lifetrack/internal/repository"
	"lifetrack/internal/service"
	"lifetrack/pkg/auth"
	"lifetrack/pkg/config"
	"lifetrack/pkg/logger"
	"lifetrack/pkg/postgres"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

const demoPassword = "Demo@12345"

type demoUser struct {
	firstName string
	lastName  string
	email     string
}

var demoCaregiver = demoUser{"Grace", "Hopper", "caregiver@lifetrack.app"}

var demoPatients = []demoUser{
	{"Alan", "Turing", "alan.patient@lifetrack.app"},
	{"Ada", "Lovelace", "ada.patient@lifetrack.app"},
	{"Edsger", "Dijkstra", "edsger.patient@lifetrack.app"},
}

type seeder struct {
	users    service.UserRepository
	auth     *service.AuthService
	health   *service.HealthDataService
	statuses *service.PatientStatusService
	logger   *zap.Logger
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logger.Level, cfg.Logger.Encoding); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	appLogger := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := &cli.Command{
		Name:  "seed",
		Usage: "Populate the database with an admin account and demo patients",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "demo",
				Usage: "Also create a demo caregiver with patients",
				Value: true,
			},
			&cli.IntFlag{
				Name:  "readings",
				Usage: "Health readings and status entries generated per demo patient",
				Value: 5,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			pool, err := postgres.NewPool(ctx, &cfg.Database, appLogger)
			if err != nil {
				return err
			}
			defer pool.Close()

			users := repository.NewUserRepository(pool, appLogger)
			s := &seeder{
				users:    users,
				auth:     service.NewAuthService(users, auth.NewJWTManager(cfg.JWT.SecretKey, cfg.JWT.Expiration, cfg.JWT.RefreshExp), appLogger),
				health:   service.NewHealthDataService(repository.NewHealthDataRepository(pool, appLogger), users, appLogger),
				statuses: service.NewPatientStatusService(repository.NewPatientStatusRepository(pool, appLogger), users, appLogger),
				logger:   appLogger,
			}

			if err := s.seedAdmin(ctx, cfg.Admin); err != nil {
				return err
			}
			if !cmd.Bool("demo") {
				return nil
			}
			readings := int(cmd.Int("readings"))
			if readings < 0 || readings > 100 {
				return fmt.Errorf("readings must be between 0 and 100, got %d", readings)
			}
			return s.seedDemo(ctx, readings)
		},
	}

	if err := cmd.Run(ctx, os.Args); err != nil {
		appLogger.Error("Seeding failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	appLogger.Info("Seeding completed")
}

func (s *seeder) seedAdmin(ctx context.Context, cfg config.AdminConfig) error {
	if cfg.Email == "" || cfg.Password == "" {
		s.logger.Warn("ADMIN_EMAIL or ADMIN_PASSWORD not set, skipping admin account")
		return nil
	}

	created, err := s.auth.SeedAdmin(ctx, cfg.Email, cfg.Password, cfg.FirstName, cfg.LastName)
	if err != nil {
		return fmt.Errorf("failed to seed admin: %w", err)
	}
	if !created {
		s.logger.Info("Admin account already exists", zap.String("email", cfg.Email))
	}
	return nil
}

func (s *seeder) seedDemo(ctx context.Context, readings int) error {
	caregiver, err := s.ensureUser(ctx, demoCaregiver, models.RoleCaregiver, "")
	if err != nil {
		return fmt.Errorf("failed to seed caregiver: %w", err)
	}
	actor := service.Actor{ID: caregiver.ID, Role: models.RoleCaregiver}

	for _, p := range demoPatients {
		patient, err := s.ensureUser(ctx, p, models.RolePatient, caregiver.ID.String())
		if err != nil {
			return fmt.Errorf("failed to seed patient %s: %w", p.email, err)
		}

		for range readings {
			if _, err := s.health.Record(ctx, actor, patient.ID); err != nil {
				return fmt.Errorf("failed to record health data for %s: %w", p.email, err)
			}
			if _, err := s.statuses.Update(ctx, actor, patient.ID); err != nil {
				return fmt.Errorf("failed to record status for %s: %w", p.email, err)
			}
		}

		s.logger.Info("Demo patient ready",
			zap.String("email", p.email),
			zap.Int("readings", readings),
		)
	}
	return nil
}

// ensureUser registers u or returns the account already holding its email.
func (s *seeder) ensureUser(ctx context.Context, u demoUser, role models.Role, caregiverID string) (*models.User, error) {
	resp, err := s.auth.Register(ctx, &dto.RegisterRequest{
		FirstName:   u.firstName,
		LastName:    u.lastName,
		Email:       u.email,
		Password:    demoPassword,
		Role:        string(role),
		CaregiverID: caregiverID,
	})
	switch {
	case errors.Is(err, service.ErrUserExists):
		return s.users.GetByEmail(ctx, u.email)
	case err != nil:
		return nil, err
	}

	id, err := uuid.Parse(resp.User.ID)
	if err != nil {
		return nil, err
	}
	return s.users.GetByID(ctx, id)
}
