package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lifetrack/internal/models"
	"lifetrack/internal/queue"
	"lifetrack/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const TaskKindFinalizeUpload = "upload.finalize"

// attachedProgress is reported once the file is stored and awaits finalization.
const attachedProgress = 50

type UploadConfig struct {
	MaxFileSize     int64
	ProcessingDelay time.Duration
}

type InitializeUploadInput struct {
	Title       string
	Description string
	ReportType  string
	Tags        string
	Category    string
}

type UploadQuery struct {
	Status    string
	PatientID string
	Page      repository.Page
}

// finalizeJob completes one upload attempt. Attempt is the retry count the
// file was attached under.
type finalizeJob struct {
	UploadID uuid.UUID
	Attempt  int
}

func (j finalizeJob) key() string {
	return fmt.Sprintf("%s:%s:%d", TaskKindFinalizeUpload, j.UploadID, j.Attempt)
}

type AttachResult struct {
	Upload *models.ReportUpload
	TaskID string
}

type UploadStats struct {
	Stats        []repository.UploadStatusStat `json:"stats"`
	TotalUploads int                           `json:"totalUploads"`
	TotalSize    int64                         `json:"totalSize"`
}

// UploadService drives progress-tracked report uploads.
type UploadService struct {
	uploads  UploadRepository
	users    UserRepository
	files    FileStore
	queue    TaskQueue
	analysis *AnalysisService
	cfg      UploadConfig
	logger   *zap.Logger
	now      func() time.Time
}

func NewUploadService(
	uploads UploadRepository,
	users UserRepository,
	files FileStore,
	q TaskQueue,
	analysis *AnalysisService,
	cfg UploadConfig,
	logger *zap.Logger,
) *UploadService {
	s := &UploadService{
		uploads:  uploads,
		users:    users,
		files:    files,
		queue:    q,
		analysis: analysis,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
	q.Register(TaskKindFinalizeUpload, s.finalize)
	return s
}

func (s *UploadService) Initialize(ctx context.Context, actor Actor, in InitializeUploadInput) (*models.ReportUpload, error) {
	u := models.NewReportUpload(actor.ID, actor.ID, s.now())
	u.Title = in.Title
	u.Description = in.Description
	u.Tags = splitTags(in.Tags)

	u.ReportType = models.ReportTypeOther
	if in.ReportType != "" {
		u.ReportType = models.ReportType(in.ReportType)
		if !u.ReportType.Valid() {
			return nil, invalidInput("unknown report type")
		}
	}

	u.Category = models.CategoryMedical
	if in.Category != "" {
		u.Category = models.Category(in.Category)
		if !u.Category.Valid() {
			return nil, invalidInput("unknown category")
		}
	}

	if actor.Role == models.RolePatient {
		caregiverID, err := s.caregiverOf(ctx, actor.ID)
		if err != nil {
			return nil, err
		}
		u.CaregiverID = caregiverID
	}

	if err := s.uploads.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("failed to create upload: %w", err)
	}

	s.logger.Info("Upload initialized", zap.String("upload_id", u.ID.String()), zap.String("user_id", actor.ID.String()))
	return u, nil
}

func (s *UploadService) caregiverOf(ctx context.Context, userID uuid.UUID) (*uuid.UUID, error) {
	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return user.CaregiverID, nil
}

func (s *UploadService) get(ctx context.Context, actor Actor, id uuid.UUID) (*models.ReportUpload, error) {
	u, err := s.uploads.GetByID(ctx, id)
	if err != nil {
		return nil, repoError(err)
	}
	if !actor.CanAccess(u.PatientID, u.UploadedBy) {
		return nil, ErrForbidden
	}
	return u, nil
}

// AttachFile stores the file of an upload. A file of the wrong type or size
// fails the upload; otherwise progress moves to 50 and finalization is queued.
func (s *UploadService) AttachFile(ctx context.Context, actor Actor, id uuid.UUID, f IncomingFile) (*AttachResult, error) {
	u, err := s.get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if u.Status != models.UploadStatusUploading {
		return nil, ErrInvalidState
	}

	if err := validateReportFile(f, s.cfg.MaxFileSize); err != nil {
		return nil, s.reject(ctx, u, err)
	}

	stored, err := saveFile(s.files, "file", f, s.cfg.MaxFileSize)
	if errors.Is(err, ErrFileTooLarge) {
		return nil, s.reject(ctx, u, err)
	}
	if err != nil {
		return nil, err
	}

	previous := u.FilePath
	u.OriginalName = f.Name
	u.FileName = stored.Name
	u.FilePath = stored.Path
	u.FileSize = stored.Size
	u.MimeType = f.MIMEType
	u.IsValidFile = true
	if err := u.SetProgress(attachedProgress); err != nil {
		s.removeFile(stored.Path)
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	u.UpdatedAt = s.now()

	if err := s.uploads.Update(ctx, u); err != nil {
		s.removeFile(stored.Path)
		return nil, repoError(err)
	}
	if previous != "" && previous != stored.Path {
		s.removeFile(previous)
	}

	// a new file invalidates any earlier analysis
	reset, err := s.uploads.TransitionAI(ctx, u.ID, repository.AITransition{
		From:             []models.AIStatus{models.AIStatusCompleted, models.AIStatusFailed},
		To:               models.AIStatusPending,
		ClearDescription: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reset analysis: %w", err)
	}
	if reset {
		u.AIStatus = models.AIStatusPending
		u.AIDescription = nil
	}

	job := finalizeJob{UploadID: u.ID, Attempt: u.RetryCount}
	taskID, err := s.queue.Submit(queue.Task{
		Kind:    TaskKindFinalizeUpload,
		Key:     job.key(),
		Payload: job,
		Delay:   s.cfg.ProcessingDelay,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to queue upload processing: %w", err)
	}

	s.logger.Info("Upload file stored",
		zap.String("upload_id", u.ID.String()),
		zap.String("file", stored.Name),
		zap.Int64("size", stored.Size),
	)
	return &AttachResult{Upload: u, TaskID: taskID}, nil
}

// RejectOversized fails an upload whose request body was refused before the
// file could be read. On success it returns the size error the upload failed with.
func (s *UploadService) RejectOversized(ctx context.Context, actor Actor, id uuid.UUID) error {
	u, err := s.get(ctx, actor, id)
	if err != nil {
		return err
	}
	if u.Status != models.UploadStatusUploading {
		return ErrInvalidState
	}
	return s.reject(ctx, u, &SizeLimitError{Limit: s.cfg.MaxFileSize})
}

// reject marks the upload failed and returns cause.
func (s *UploadService) reject(ctx context.Context, u *models.ReportUpload, cause error) error {
	reason := "Invalid file type"
	if errors.Is(cause, ErrFileTooLarge) {
		reason = "File size too large"
	}

	u.MarkFailed(reason, s.now())
	u.UpdatedAt = s.now()
	if err := s.uploads.Update(ctx, u); err != nil {
		return repoError(err)
	}

	s.logger.Info("Upload rejected", zap.String("upload_id", u.ID.String()), zap.String("reason", reason))
	return cause
}

func (s *UploadService) finalize(ctx context.Context, payload any) error {
	job, ok := payload.(finalizeJob)
	if !ok {
		return fmt.Errorf("unexpected finalize payload %T", payload)
	}

	u, err := s.uploads.GetByID(ctx, job.UploadID)
	if errors.Is(err, repository.ErrNotFound) {
		s.logger.Info("Upload deleted before processing finished", zap.String("upload_id", job.UploadID.String()))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load upload: %w", err)
	}
	if u.RetryCount != job.Attempt {
		s.logger.Info("Skipping finalize of a superseded upload attempt",
			zap.String("upload_id", u.ID.String()),
			zap.Int("attempt", job.Attempt),
			zap.Int("retry_count", u.RetryCount),
		)
		return nil
	}

	switch {
	case u.Status == models.UploadStatusUploading && u.IsValidFile && u.Progress == attachedProgress:
		u.MarkCompleted(s.now())
		u.UpdatedAt = s.now()
		if err := s.uploads.Update(ctx, u); err != nil {
			// a conflict is redelivered and re-read
			return fmt.Errorf("failed to complete upload: %w", err)
		}
		s.logger.Info("Upload completed",
			zap.String("upload_id", u.ID.String()),
			zap.Int64p("duration_ms", u.ProcessingDurationMs),
		)
	case u.Status == models.UploadStatusCompleted:
		// redelivery after the completion write
	default:
		return nil
	}

	if u.AIStatus != models.AIStatusPending {
		return nil
	}
	if _, err := s.analysis.Enqueue(AnalysisJob{Kind: RecordUpload, RecordID: u.ID, FilePath: u.FilePath, Mode: ModeStandard}); err != nil {
		return err
	}
	return nil
}

func (s *UploadService) Progress(ctx context.Context, actor Actor, id uuid.UUID) (*models.ReportUpload, error) {
	return s.get(ctx, actor, id)
}

func (s *UploadService) ListMine(ctx context.Context, actor Actor, q UploadQuery) ([]*models.ReportUpload, int, error) {
	filter := repository.UploadFilter{PatientID: &actor.ID, Page: q.Page}
	if err := applyUploadStatus(&filter, q.Status); err != nil {
		return nil, 0, err
	}
	return s.uploads.List(ctx, filter)
}

func (s *UploadService) ListAll(ctx context.Context, actor Actor, q UploadQuery) ([]*models.ReportUpload, int, error) {
	if !actor.IsStaff() {
		return nil, 0, ErrForbidden
	}
	filter := repository.UploadFilter{Page: q.Page}
	if err := applyUploadStatus(&filter, q.Status); err != nil {
		return nil, 0, err
	}
	if q.PatientID != "" {
		pid, err := uuid.Parse(q.PatientID)
		if err != nil {
			return nil, 0, invalidInput("malformed patient id")
		}
		filter.PatientID = &pid
	}
	return s.uploads.List(ctx, filter)
}

func applyUploadStatus(filter *repository.UploadFilter, status string) error {
	if status == "" {
		return nil
	}
	st := models.UploadStatus(status)
	if !st.Valid() {
		return invalidInput("unknown upload status")
	}
	filter.Status = &st
	return nil
}

// Retry re-opens a failed upload so a file can be attached again.
func (s *UploadService) Retry(ctx context.Context, actor Actor, id uuid.UUID) (*models.ReportUpload, error) {
	u, err := s.get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	previous := u.FilePath
	if err := u.Retry(s.now()); err != nil {
		return nil, err
	}
	u.UpdatedAt = s.now()
	if err := s.uploads.Update(ctx, u); err != nil {
		return nil, repoError(err)
	}
	if previous != "" {
		s.removeFile(previous)
	}

	s.logger.Info("Upload retry initiated", zap.String("upload_id", u.ID.String()), zap.Int("retry_count", u.RetryCount))
	return u, nil
}

func (s *UploadService) Delete(ctx context.Context, actor Actor, id uuid.UUID) error {
	u, err := s.get(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.uploads.Delete(ctx, id); err != nil {
		return repoError(err)
	}
	s.removeFile(u.FilePath)

	s.logger.Info("Upload deleted", zap.String("upload_id", id.String()))
	return nil
}

// Stats covers every upload for staff and the caller's own otherwise.
func (s *UploadService) Stats(ctx context.Context, actor Actor) (*UploadStats, error) {
	filter := repository.UploadFilter{}
	if !actor.IsStaff() {
		filter.PatientID = &actor.ID
	}

	stats, err := s.uploads.Stats(ctx, filter)
	if err != nil {
		return nil, err
	}

	out := &UploadStats{Stats: stats}
	for _, st := range stats {
		out.TotalUploads += st.Count
		out.TotalSize += st.TotalSize
	}
	return out, nil
}

func (s *UploadService) AIStatus(ctx context.Context, actor Actor, id uuid.UUID) (*models.AIAnalysis, error) {
	u, err := s.get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return &u.AIAnalysis, nil
}

func (s *UploadService) RetryAI(ctx context.Context, actor Actor, id uuid.UUID, pc *PatientContext) (string, error) {
	u, err := s.get(ctx, actor, id)
	if err != nil {
		return "", err
	}
	if u.AIStatus != models.AIStatusFailed || u.FilePath == "" {
		return "", ErrInvalidState
	}
	return s.analysis.Retry(ctx, AnalysisJob{Kind: RecordUpload, RecordID: u.ID, FilePath: u.FilePath, Context: pc})
}

func (s *UploadService) removeFile(path string) {
	if err := s.files.Remove(path); err != nil {
		s.logger.Warn("Failed to remove stored file", zap.String("path", path), zap.Error(err))
	}
}
