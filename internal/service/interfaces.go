package service

import (
	"context"
	"io"
	"os"
	"time"

	"lifetrack/internal/models"
	"lifetrack/internal/queue"
	"lifetrack/internal/repository"
	"lifetrack/internal/storage"

	"github.com/google/uuid"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	List(ctx context.Context, filter repository.UserFilter) ([]*models.User, int, error)
	PatientIDs(ctx context.Context, caregiverID uuid.UUID) ([]uuid.UUID, error)
}

// AnalysisStore is implemented by every record type the analysis worker writes to.
type AnalysisStore interface {
	TransitionAI(ctx context.Context, id uuid.UUID, t repository.AITransition) (bool, error)
	ResetStaleAnalyses(ctx context.Context, before time.Time) (int64, error)
	IDsByAIStatus(ctx context.Context, status models.AIStatus, limit uint64) ([]uuid.UUID, error)
}

type ReportRepository interface {
	AnalysisStore
	Create(ctx context.Context, report *models.Report) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Report, error)
	List(ctx context.Context, filter repository.ReportFilter) ([]*models.Report, int, error)
	UpdateReview(ctx context.Context, report *models.Report) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type UploadRepository interface {
	AnalysisStore
	Create(ctx context.Context, u *models.ReportUpload) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.ReportUpload, error)
	Update(ctx context.Context, u *models.ReportUpload) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter repository.UploadFilter) ([]*models.ReportUpload, int, error)
	Stats(ctx context.Context, filter repository.UploadFilter) ([]repository.UploadStatusStat, error)
}

type HealthDataRepository interface {
	Create(ctx context.Context, data *models.HealthData) error
	Latest(ctx context.Context, patientID uuid.UUID) (*models.HealthData, error)
	History(ctx context.Context, patientID uuid.UUID, page repository.Page) ([]*models.HealthData, int, error)
	LatestForPatients(ctx context.Context, patientIDs []uuid.UUID) ([]*models.HealthData, error)
}

type PatientStatusRepository interface {
	Create(ctx context.Context, s *models.PatientStatus) error
	Latest(ctx context.Context, patientID uuid.UUID) (*models.PatientStatus, error)
	History(ctx context.Context, patientID uuid.UUID, page repository.Page) ([]*models.PatientStatus, int, error)
	LatestForPatients(ctx context.Context, patientIDs []uuid.UUID) ([]*models.PatientStatus, error)
}

type ContactRepository interface {
	Create(ctx context.Context, c *models.Contact) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Contact, error)
	List(ctx context.Context, filter repository.ContactFilter) ([]*models.Contact, int, error)
	Update(ctx context.Context, c *models.Contact) error
	Delete(ctx context.Context, id uuid.UUID) error
	Stats(ctx context.Context) (*repository.ContactStats, error)
}

type TaskRepository interface {
	Create(ctx context.Context, task *models.Task) error
	ListByCreator(ctx context.Context, createdBy uuid.UUID) ([]*models.Task, error)
}

type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type FileStore interface {
	Dir() string
	Save(field, originalName string, r io.Reader, maxSize int64) (*storage.StoredFile, error)
	Open(path string) (*os.File, error)
	Exists(path string) bool
	Remove(path string) error
}

type TaskQueue interface {
	Register(kind string, h queue.Handler)
	Submit(t queue.Task) (string, error)
	Status(id string) (queue.Info, bool)
	Active(key string) (string, bool)
}
