package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"lifetrack/internal/models"
	"lifetrack/internal/queue"
	"lifetrack/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const TaskKindAnalysis = "analysis"

// finalWriteTimeout bounds the status write after an analysis, which runs
// even when the task context is already done.
const finalWriteTimeout = 10 * time.Second

type RecordKind string

const (
	RecordReport RecordKind = "report"
	RecordUpload RecordKind = "upload"
)

type AnalysisJob struct {
	Kind     RecordKind
	RecordID uuid.UUID
	FilePath string
	Mode     AnalysisMode
	Context  *PatientContext
}

func (j AnalysisJob) key() string {
	return fmt.Sprintf("%s:%s:%s", TaskKindAnalysis, j.Kind, j.RecordID)
}

// AnalysisService runs background analyses and owns every AI status
// transition of reports and uploads.
type AnalysisService struct {
	analyzer   *Analyzer
	reports    ReportRepository
	uploads    UploadRepository
	queue      TaskQueue
	transactor Transactor
	logger     *zap.Logger
	now        func() time.Time
}

func NewAnalysisService(
	analyzer *Analyzer,
	reports ReportRepository,
	uploads UploadRepository,
	q TaskQueue,
	transactor Transactor,
	logger *zap.Logger,
) *AnalysisService {
	s := &AnalysisService{
		analyzer:   analyzer,
		reports:    reports,
		uploads:    uploads,
		queue:      q,
		transactor: transactor,
		logger:     logger,
		now:        time.Now,
	}
	q.Register(TaskKindAnalysis, s.handle)
	return s
}

func (s *AnalysisService) store(kind RecordKind) (AnalysisStore, error) {
	switch kind {
	case RecordReport:
		return s.reports, nil
	case RecordUpload:
		return s.uploads, nil
	}
	return nil, fmt.Errorf("unknown record kind %q", kind)
}

// Enqueue schedules an analysis. A job for a record that is already queued
// or running returns the existing task id.
func (s *AnalysisService) Enqueue(job AnalysisJob) (string, error) {
	if !job.Mode.Valid() {
		job.Mode = ModeStandard
	}
	if job.Mode == ModeStandard && !job.Context.IsEmpty() {
		job.Mode = ModeContext
	}

	id, err := s.queue.Submit(queue.Task{
		Kind:    TaskKindAnalysis,
		Key:     job.key(),
		Payload: job,
	})
	if err != nil {
		return "", fmt.Errorf("failed to queue analysis: %w", err)
	}

	s.logger.Info("AI analysis queued",
		zap.String("record_kind", string(job.Kind)),
		zap.String("record_id", job.RecordID.String()),
		zap.String("mode", string(job.Mode)),
		zap.String("task_id", id),
	)
	return id, nil
}

func (s *AnalysisService) handle(ctx context.Context, payload any) error {
	job, ok := payload.(AnalysisJob)
	if !ok {
		return fmt.Errorf("unexpected analysis payload %T", payload)
	}
	return s.Process(ctx, job)
}

// Process runs one analysis. Model failures are recorded on the record and
// are not returned; a returned error means the status could not be written.
func (s *AnalysisService) Process(ctx context.Context, job AnalysisJob) error {
	store, err := s.store(job.Kind)
	if err != nil {
		return err
	}

	log := s.logger.With(
		zap.String("record_kind", string(job.Kind)),
		zap.String("record_id", job.RecordID.String()),
	)

	started := s.now()
	began, err := store.TransitionAI(ctx, job.RecordID, repository.AITransition{
		From: []models.AIStatus{models.AIStatusPending},
		To:   models.AIStatusProcessing,
		At:   &started,
	})
	if err != nil {
		return fmt.Errorf("failed to mark analysis processing: %w", err)
	}
	if !began {
		log.Info("Skipping AI analysis, record is gone or not pending")
		return nil
	}

	log.Info("Starting AI analysis", zap.String("mode", string(job.Mode)))

	result, analyzeErr := s.analyzer.Analyze(ctx, job.FilePath, job.Mode, job.Context, nil)

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalWriteTimeout)
	defer cancel()

	finished := s.now()
	if analyzeErr != nil {
		log.Error("AI analysis failed", zap.Error(analyzeErr))
		return s.finish(writeCtx, log, store, job.RecordID, repository.AITransition{
			From: []models.AIStatus{models.AIStatusProcessing},
			To:   models.AIStatusFailed,
			At:   &finished,
		})
	}

	description := result.Explanation
	if result.Extracted != nil {
		if b, err := json.MarshalIndent(result.Extracted, "", "  "); err == nil {
			description = string(b)
		}
	}

	if err := s.finish(writeCtx, log, store, job.RecordID, repository.AITransition{
		From:        []models.AIStatus{models.AIStatusProcessing},
		To:          models.AIStatusCompleted,
		Description: &description,
		At:          &finished,
	}); err != nil {
		return err
	}

	log.Info("AI analysis completed",
		zap.Int("total_tokens", result.Usage.TotalTokens),
		zap.Duration("took", finished.Sub(started)),
	)
	return nil
}

func (s *AnalysisService) finish(ctx context.Context, log *zap.Logger, store AnalysisStore, id uuid.UUID, t repository.AITransition) error {
	ok, err := store.TransitionAI(ctx, id, t)
	if err != nil {
		return fmt.Errorf("failed to mark analysis %s: %w", t.To, err)
	}
	if !ok {
		log.Info("AI analysis result discarded, record was deleted or changed", zap.String("status", string(t.To)))
	}
	return nil
}

// Retry moves a failed analysis back to pending and queues it. Only one of
// several concurrent retries for the same record wins; the rest get
// ErrInvalidState.
func (s *AnalysisService) Retry(ctx context.Context, job AnalysisJob) (string, error) {
	store, err := s.store(job.Kind)
	if err != nil {
		return "", err
	}

	ok, err := store.TransitionAI(ctx, job.RecordID, repository.AITransition{
		From: []models.AIStatus{models.AIStatusFailed},
		To:   models.AIStatusPending,
	})
	if err != nil {
		return "", fmt.Errorf("failed to reset analysis: %w", err)
	}
	if !ok {
		return "", ErrInvalidState
	}

	taskID, err := s.Enqueue(job)
	if err != nil {
		// put the record back so it can be retried again
		if _, revertErr := store.TransitionAI(ctx, job.RecordID, repository.AITransition{
			From: []models.AIStatus{models.AIStatusPending},
			To:   models.AIStatusFailed,
		}); revertErr != nil {
			s.logger.Error("Failed to revert analysis retry",
				zap.String("record_id", job.RecordID.String()),
				zap.Error(revertErr),
			)
		}
		return "", err
	}

	return taskID, nil
}

type CleanupResult struct {
	Reports int64 `json:"reports"`
	Uploads int64 `json:"uploads"`
}

// CleanupStale resets finished analyses older than olderThan to pending and
// drops their descriptions.
func (s *AnalysisService) CleanupStale(ctx context.Context, olderThan time.Duration) (*CleanupResult, error) {
	if olderThan <= 0 {
		return nil, invalidInput("cleanup age must be positive")
	}
	before := s.now().Add(-olderThan)

	var result CleanupResult
	err := s.transactor.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		if result.Reports, err = s.reports.ResetStaleAnalyses(ctx, before); err != nil {
			return err
		}
		result.Uploads, err = s.uploads.ResetStaleAnalyses(ctx, before)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to clean up analyses: %w", err)
	}

	s.logger.Info("Cleaned up AI analyses",
		zap.Time("before", before),
		zap.Int64("reports", result.Reports),
		zap.Int64("uploads", result.Uploads),
	)
	return &result, nil
}

type BatchResult struct {
	Queued int      `json:"queued"`
	Failed int      `json:"failed"`
	Tasks  []string `json:"tasks"`
}

// BatchProcess queues analyses for records left pending or interrupted
// while processing, up to limit records per kind. A processing record is
// moved back to pending first unless its analysis is still running here.
func (s *AnalysisService) BatchProcess(ctx context.Context, limit uint64) (*BatchResult, error) {
	result := &BatchResult{Tasks: []string{}}

	for _, kind := range []RecordKind{RecordReport, RecordUpload} {
		store, _ := s.store(kind)
		for _, status := range []models.AIStatus{models.AIStatusPending, models.AIStatusProcessing} {
			ids, err := store.IDsByAIStatus(ctx, status, limit)
			if err != nil {
				return nil, fmt.Errorf("failed to list %s analyses: %w", status, err)
			}

			for _, id := range ids {
				path, ok, err := s.filePath(ctx, kind, id)
				if err != nil {
					return nil, err
				}
				if !ok {
					continue
				}

				if status == models.AIStatusProcessing {
					recovered, err := s.recoverInterrupted(ctx, store, kind, id)
					if err != nil {
						return nil, err
					}
					if !recovered {
						continue
					}
				}

				taskID, err := s.Enqueue(AnalysisJob{Kind: kind, RecordID: id, FilePath: path, Mode: ModeStandard})
				if err != nil {
					result.Failed++
					s.logger.Warn("Failed to queue batch analysis", zap.String("record_id", id.String()), zap.Error(err))
					continue
				}
				result.Queued++
				result.Tasks = append(result.Tasks, taskID)
			}
		}
	}

	return result, nil
}

// recoverInterrupted moves a processing record with no live task back to
// pending. It reports false when the record is still being analyzed or has
// already left processing.
func (s *AnalysisService) recoverInterrupted(ctx context.Context, store AnalysisStore, kind RecordKind, id uuid.UUID) (bool, error) {
	job := AnalysisJob{Kind: kind, RecordID: id}
	if taskID, running := s.queue.Active(job.key()); running {
		s.logger.Debug("AI analysis still running, not requeued",
			zap.String("record_id", id.String()),
			zap.String("task_id", taskID),
		)
		return false, nil
	}

	ok, err := store.TransitionAI(ctx, id, repository.AITransition{
		From: []models.AIStatus{models.AIStatusProcessing},
		To:   models.AIStatusPending,
	})
	if err != nil {
		return false, fmt.Errorf("failed to reset interrupted analysis: %w", err)
	}
	if ok {
		s.logger.Info("Interrupted AI analysis reset to pending", zap.String("record_id", id.String()))
	}
	return ok, nil
}

// filePath returns the stored file of a record; uploads without a file are skipped.
func (s *AnalysisService) filePath(ctx context.Context, kind RecordKind, id uuid.UUID) (string, bool, error) {
	switch kind {
	case RecordReport:
		r, err := s.reports.GetByID(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return "", false, nil
		}
		if err != nil {
			return "", false, err
		}
		return r.FilePath, r.FilePath != "", nil
	default:
		u, err := s.uploads.GetByID(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return "", false, nil
		}
		if err != nil {
			return "", false, err
		}
		return u.FilePath, u.FilePath != "" && u.Status == models.UploadStatusCompleted, nil
	}
}
