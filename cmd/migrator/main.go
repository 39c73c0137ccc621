package main

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"lifetrack/pkg/logger"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	migrationTypeUp   = "up"
	migrationTypeDown = "down"
)

const (
	exitCodeOK = iota
	exitCodeInputErr
	exitCodeInternalErr
)

var errInput = errors.New("invalid input")

type dbFlags struct {
	user     string
	password string
	host     string
	port     string
	name     string
	sslMode  string
}

func main() {
	_ = godotenv.Load()

	if err := logger.Init(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_ENCODING")); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(exitCodeInternalErr)
	}
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	exitCode := exitCodeOK
	if err := command(log).Run(ctx, os.Args); err != nil {
		log.Error("Failed to apply migrations", zap.Error(err))
		exitCode = exitCodeInternalErr
		if errors.Is(err, errInput) {
			exitCode = exitCodeInputErr
		}
	}

	stop()
	logger.Sync()
	os.Exit(exitCode)
}

func command(log *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:  "migrator",
		Usage: "Apply LifeTrack database migrations",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:      "type",
				Aliases:   []string{"t"},
				Usage:     "Migration direction: up or down",
				Value:     migrationTypeUp,
				Validator: validateMigrationType,
			},
			&cli.StringFlag{
				Name:    "host",
				Usage:   "PostgreSQL host",
				Value:   "localhost",
				Sources: cli.EnvVars("DB_HOST"),
			},
			&cli.StringFlag{
				Name:    "port",
				Usage:   "PostgreSQL port",
				Value:   "5432",
				Sources: cli.EnvVars("DB_PORT"),
			},
			&cli.StringFlag{
				Name:     "username",
				Usage:    "PostgreSQL user",
				Sources:  cli.EnvVars("DB_USER"),
				Required: true,
			},
			&cli.StringFlag{
				Name:     "password",
				Usage:    "PostgreSQL password",
				Sources:  cli.EnvVars("DB_PASSWORD"),
				Required: true,
			},
			&cli.StringFlag{
				Name:    "db",
				Usage:   "PostgreSQL database name",
				Value:   "lifetrack",
				Sources: cli.EnvVars("DB_NAME"),
			},
			&cli.StringFlag{
				Name:    "sslmode",
				Usage:   "PostgreSQL sslmode",
				Value:   "disable",
				Sources: cli.EnvVars("DB_SSLMODE"),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			f := dbFlags{
				user:     cmd.String("username"),
				password: cmd.String("password"),
				host:     cmd.String("host"),
				port:     cmd.String("port"),
				name:     cmd.String("db"),
				sslMode:  cmd.String("sslmode"),
			}
			return run(log, cmd.String("type"), f)
		},
	}
}

func run(log *zap.Logger, migrationType string, f dbFlags) (err error) {
	if err := validateMigrationType(migrationType); err != nil {
		return err
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migrations source: %w", err)
	}

	migrator, err := migrate.NewWithSourceInstance("iofs", src, f.databaseURL())
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer func() {
		srcErr, dbErr := migrator.Close()
		err = errors.Join(err, srcErr, dbErr)
	}()

	if err := applyMigration(migrator, migrationType); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("No migrations to apply")
			return nil
		}
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, verr := migrator.Version()
	if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to read schema version: %w", verr)
	}
	log.Info("Migrations applied successfully",
		zap.String("type", migrationType),
		zap.Uint("version", version),
		zap.Bool("dirty", dirty),
	)
	return nil
}

func applyMigration(migrator *migrate.Migrate, migrationType string) error {
	switch migrationType {
	case migrationTypeUp:
		return migrator.Up()
	case migrationTypeDown:
		return migrator.Down()
	default:
		return fmt.Errorf("%w: unknown migration type %q", errInput, migrationType)
	}
}

func validateMigrationType(t string) error {
	if t != migrationTypeUp && t != migrationTypeDown {
		return fmt.Errorf("%w: type must be %q or %q, got %q", errInput, migrationTypeUp, migrationTypeDown, t)
	}
	return nil
}

func (f dbFlags) databaseURL() string {
	sslMode := f.sslMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return (&url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(f.user, f.password),
		Host:     net.JoinHostPort(f.host, f.port),
		Path:     f.name,
		RawQuery: url.Values{"sslmode": {sslMode}}.Encode(),
	}).String()
}
