package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"lifetrack/internal/models"
	"lifetrack/internal/repository"
	"lifetrack/internal/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type UploadReportInput struct {
	Title       string
	Description string
	ReportType  string
	Tags        string
	IsPublic    bool
	Context     *PatientContext
}

type ReportQuery struct {
	PatientID  string
	ReportType string
	Status     string
	Page       repository.Page
}

type ReviewInput struct {
	Status      string
	ReviewNotes string
}

type ReportService struct {
	reports     ReportRepository
	users       UserRepository
	files       FileStore
	analysis    *AnalysisService
	maxFileSize int64
	logger      *zap.Logger
	now         func() time.Time
}

func NewReportService(
	reports ReportRepository,
	users UserRepository,
	files FileStore,
	analysis *AnalysisService,
	maxFileSize int64,
	logger *zap.Logger,
) *ReportService {
	return &ReportService{
		reports:     reports,
		users:       users,
		files:       files,
		analysis:    analysis,
		maxFileSize: maxFileSize,
		logger:      logger,
		now:         time.Now,
	}
}

// Upload stores a report file and queues its analysis. The returned task id
// is empty when queueing failed; the report then stays pending.
func (s *ReportService) Upload(ctx context.Context, actor Actor, in UploadReportInput, f IncomingFile) (*models.Report, string, error) {
	if in.Title == "" {
		return nil, "", invalidInput("title is required")
	}
	reportType := models.ReportTypeOther
	if in.ReportType != "" {
		reportType = models.ReportType(in.ReportType)
		if !reportType.Valid() {
			return nil, "", invalidInput("unknown report type")
		}
	}
	if err := validateReportFile(f, s.maxFileSize); err != nil {
		return nil, "", err
	}

	var caregiverID *uuid.UUID
	user, err := s.users.GetByID(ctx, actor.ID)
	switch {
	case err == nil:
		caregiverID = user.CaregiverID
	case !errors.Is(err, repository.ErrNotFound):
		return nil, "", fmt.Errorf("failed to load user: %w", err)
	}

	stored, err := saveFile(s.files, "file", f, s.maxFileSize)
	if err != nil {
		return nil, "", err
	}

	now := s.now()
	report := &models.Report{
		ID:          uuid.New(),
		PatientID:   actor.ID,
		CaregiverID: caregiverID,
		UploadedBy:  actor.ID,
		Title:       in.Title,
		Description: in.Description,
		ReportType:  reportType,
		FileURL:     "/uploads/" + stored.Name,
		FilePath:    stored.Path,
		FileName:    f.Name,
		FileSize:    stored.Size,
		FileType:    f.MIMEType,
		IsPublic:    in.IsPublic,
		Tags:        splitTags(in.Tags),
		Status:      models.ReviewStatusPending,
		AIAnalysis:  models.AIAnalysis{AIStatus: models.AIStatusPending},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.reports.Create(ctx, report); err != nil {
		s.removeFile(stored.Path)
		return nil, "", fmt.Errorf("failed to create report: %w", err)
	}

	s.logger.Info("Report uploaded",
		zap.String("report_id", report.ID.String()),
		zap.String("patient_id", actor.ID.String()),
		zap.Int64("size", report.FileSize),
	)

	taskID, err := s.analysis.Enqueue(AnalysisJob{
		Kind:     RecordReport,
		RecordID: report.ID,
		FilePath: report.FilePath,
		Mode:     ModeStandard,
		Context:  in.Context,
	})
	if err != nil {
		s.logger.Warn("Report analysis not queued", zap.String("report_id", report.ID.String()), zap.Error(err))
	}

	return report, taskID, nil
}

func (s *ReportService) ListMine(ctx context.Context, actor Actor, q ReportQuery) ([]*models.Report, int, error) {
	q.PatientID = ""
	filter, err := reportFilter(q)
	if err != nil {
		return nil, 0, err
	}
	filter.PatientID = &actor.ID
	return s.reports.List(ctx, filter)
}

func (s *ReportService) ListAll(ctx context.Context, actor Actor, q ReportQuery) ([]*models.Report, int, error) {
	if !actor.IsStaff() {
		return nil, 0, ErrForbidden
	}
	filter, err := reportFilter(q)
	if err != nil {
		return nil, 0, err
	}
	return s.reports.List(ctx, filter)
}

// ListCaregiverPatients lists reports of the patients assigned to the caller.
func (s *ReportService) ListCaregiverPatients(ctx context.Context, actor Actor, q ReportQuery) ([]*models.Report, int, error) {
	if !actor.IsStaff() {
		return nil, 0, ErrForbidden
	}
	q.PatientID = ""
	filter, err := reportFilter(q)
	if err != nil {
		return nil, 0, err
	}
	ids, err := s.users.PatientIDs(ctx, actor.ID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list patients: %w", err)
	}
	filter.PatientIDs = ids
	return s.reports.List(ctx, filter)
}

func (s *ReportService) ListForPatient(ctx context.Context, actor Actor, patientID uuid.UUID, q ReportQuery) ([]*models.Report, int, error) {
	if !actor.IsStaff() {
		return nil, 0, ErrForbidden
	}
	q.PatientID = ""
	filter, err := reportFilter(q)
	if err != nil {
		return nil, 0, err
	}
	filter.PatientID = &patientID
	return s.reports.List(ctx, filter)
}

func reportFilter(q ReportQuery) (repository.ReportFilter, error) {
	filter := repository.ReportFilter{Page: q.Page}
	if q.PatientID != "" {
		id, err := uuid.Parse(q.PatientID)
		if err != nil {
			return filter, invalidInput("malformed patient id")
		}
		filter.PatientID = &id
	}
	if q.ReportType != "" {
		t := models.ReportType(q.ReportType)
		if !t.Valid() {
			return filter, invalidInput("unknown report type")
		}
		filter.ReportType = &t
	}
	if q.Status != "" {
		st := models.ReviewStatus(q.Status)
		if !st.Valid() {
			return filter, invalidInput("unknown report status")
		}
		filter.Status = &st
	}
	return filter, nil
}

func (s *ReportService) Get(ctx context.Context, actor Actor, id uuid.UUID) (*models.Report, error) {
	report, err := s.reports.GetByID(ctx, id)
	if err != nil {
		return nil, repoError(err)
	}
	if !actor.CanAccess(report.PatientID, report.UploadedBy) {
		return nil, ErrForbidden
	}
	return report, nil
}

func (s *ReportService) UpdateStatus(ctx context.Context, actor Actor, id uuid.UUID, in ReviewInput) (*models.Report, error) {
	if !actor.IsStaff() {
		return nil, ErrForbidden
	}
	status := models.ReviewStatus(in.Status)
	if !status.Valid() {
		return nil, invalidInput("unknown report status")
	}

	report, err := s.reports.GetByID(ctx, id)
	if err != nil {
		return nil, repoError(err)
	}

	now := s.now()
	report.Status = status
	report.ReviewNotes = in.ReviewNotes
	report.ReviewedBy = &actor.ID
	report.ReviewDate = &now
	report.UpdatedAt = now

	if err := s.reports.UpdateReview(ctx, report); err != nil {
		return nil, repoError(err)
	}
	return report, nil
}

func (s *ReportService) Delete(ctx context.Context, actor Actor, id uuid.UUID) error {
	report, err := s.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.reports.Delete(ctx, id); err != nil {
		return repoError(err)
	}
	s.removeFile(report.FilePath)

	s.logger.Info("Report deleted", zap.String("report_id", id.String()))
	return nil
}

func (s *ReportService) AIStatus(ctx context.Context, actor Actor, id uuid.UUID) (*models.AIAnalysis, error) {
	report, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return &report.AIAnalysis, nil
}

func (s *ReportService) RetryAI(ctx context.Context, actor Actor, id uuid.UUID, pc *PatientContext) (string, error) {
	report, err := s.Get(ctx, actor, id)
	if err != nil {
		return "", err
	}
	if report.AIStatus != models.AIStatusFailed {
		return "", ErrInvalidState
	}
	return s.analysis.Retry(ctx, AnalysisJob{Kind: RecordReport, RecordID: report.ID, FilePath: report.FilePath, Context: pc})
}

// OpenFile returns the stored file of a report; the caller closes it.
func (s *ReportService) OpenFile(ctx context.Context, actor Actor, id uuid.UUID) (*os.File, *models.Report, error) {
	report, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, nil, err
	}
	f, err := s.files.Open(report.FilePath)
	if errors.Is(err, storage.ErrFileNotFound) {
		return nil, nil, ErrFileNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	return f, report, nil
}

func (s *ReportService) removeFile(path string) {
	if err := s.files.Remove(path); err != nil {
		s.logger.Warn("Failed to remove stored file", zap.String("path", path), zap.Error(err))
	}
}
