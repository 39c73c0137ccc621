package repository

import (
	"context"
	"time"

	"lifetrack/internal/models"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const TableReportUploads = "report_uploads"

var uploadColumns = []string{
	"id", "patient_id", "uploaded_by", "caregiver_id",
	"original_name", "file_name", "file_path", "file_size", "mime_type",
	"title", "description", "report_type", "category", "tags",
	"upload_status", "upload_progress", "is_valid_file", "error_message",
	"retry_count", "max_retries",
	"processing_started_at", "processing_completed_at", "processing_duration_ms",
	"ai_analysis_status", "ai_describe", "ai_analysis_date",
	"version", "created_at", "updated_at",
}

type UploadRepository struct {
	pool   *pgxpool.Pool
	qb     sq.StatementBuilderType
	logger *zap.Logger
}

func NewUploadRepository(pool *pgxpool.Pool, logger *zap.Logger) *UploadRepository {
	return &UploadRepository{
		pool:   pool,
		qb:     sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		logger: logger,
	}
}

func (r *UploadRepository) Create(ctx context.Context, u *models.ReportUpload) error {
	db := extractDB(ctx, r.pool)

	sql, args, err := r.qb.
		Insert(TableReportUploads).
		Columns(uploadColumns...).
		Values(
			u.ID, u.PatientID, u.UploadedBy, u.CaregiverID,
			u.OriginalName, u.FileName, u.FilePath, u.FileSize, u.MimeType,
			u.Title, u.Description, u.ReportType, u.Category, u.Tags,
			u.Status, u.Progress, u.IsValidFile, u.ErrorMessage,
			u.RetryCount, u.MaxRetries,
			u.ProcessingStartedAt, u.ProcessingCompletedAt, u.ProcessingDurationMs,
			u.AIStatus, u.AIDescription, u.AIAnalyzedAt,
			u.Version, u.CreatedAt, u.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return createQueryError(err)
	}

	if _, err := db.Exec(ctx, sql, args...); err != nil {
		return executeQueryError(err)
	}

	return nil
}

func (r *UploadRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ReportUpload, error) {
	db := extractDB(ctx, r.pool)

	sql, args, err := r.qb.
		Select(uploadColumns...).
		From(TableReportUploads).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, createQueryError(err)
	}

	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, executeQueryError(err)
	}

	upload, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByNameLax[models.ReportUpload])
	if err != nil {
		return nil, collectRowsError(err)
	}

	return upload, nil
}

// Update writes the upload lifecycle columns if the stored version still
// matches u.Version, then advances u.Version. Analysis columns are never
// touched here; they change only through TransitionAI.
func (r *UploadRepository) Update(ctx context.Context, u *models.ReportUpload) error {
	db := extractDB(ctx, r.pool)

	sql, args, err := r.qb.
		Update(TableReportUploads).
		SetMap(map[string]any{
			"original_name":           u.OriginalName,
			"file_name":               u.FileName,
			"file_path":               u.FilePath,
			"file_size":               u.FileSize,
			"mime_type":               u.MimeType,
			"upload_status":           u.Status,
			"upload_progress":         u.Progress,
			"is_valid_file":           u.IsValidFile,
			"error_message":           u.ErrorMessage,
			"retry_count":             u.RetryCount,
			"processing_started_at":   u.ProcessingStartedAt,
			"processing_completed_at": u.ProcessingCompletedAt,
			"processing_duration_ms":  u.ProcessingDurationMs,
			"version":                 u.Version + 1,
			"updated_at":              u.UpdatedAt,
		}).
		Where(sq.Eq{"id": u.ID, "version": u.Version}).
		ToSql()
	if err != nil {
		return createQueryError(err)
	}

	tag, err := db.Exec(ctx, sql, args...)
	if err != nil {
		return executeQueryError(err)
	}

	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, u.ID); err != nil {
			return err
		}
		return ErrConflict
	}

	u.Version++
	return nil
}

func (r *UploadRepository) Delete(ctx context.Context, id uuid.UUID) error {
	db := extractDB(ctx, r.pool)

	sql, args, err := r.qb.
		Delete(TableReportUploads).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return createQueryError(err)
	}

	tag, err := db.Exec(ctx, sql, args...)
	if err != nil {
		return executeQueryError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *UploadRepository) List(ctx context.Context, filter UploadFilter) ([]*models.ReportUpload, int, error) {
	db := extractDB(ctx, r.pool)

	where := uploadWhere(filter)

	total, err := count(ctx, db, r.qb, TableReportUploads, where)
	if err != nil {
		return nil, 0, err
	}

	page := filter.Page.Normalize()
	sql, args, err := r.qb.
		Select(uploadColumns...).
		From(TableReportUploads).
		Where(where).
		OrderBy("created_at DESC").
		Limit(page.Limit).
		Offset(page.Offset()).
		ToSql()
	if err != nil {
		return nil, 0, createQueryError(err)
	}

	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, executeQueryError(err)
	}

	uploads, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByNameLax[models.ReportUpload])
	if err != nil {
		return nil, 0, collectRowsError(err)
	}

	return uploads, total, nil
}

func (r *UploadRepository) Stats(ctx context.Context, filter UploadFilter) ([]UploadStatusStat, error) {
	db := extractDB(ctx, r.pool)

	sql, args, err := r.qb.
		Select("upload_status AS status", "COUNT(*) AS count", "COALESCE(SUM(file_size), 0)::BIGINT AS total_size").
		From(TableReportUploads).
		Where(uploadWhere(filter)).
		GroupBy("upload_status").
		OrderBy("upload_status").
		ToSql()
	if err != nil {
		return nil, createQueryError(err)
	}

	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, executeQueryError(err)
	}

	stats, err := pgx.CollectRows(rows, pgx.RowToStructByName[UploadStatusStat])
	if err != nil {
		return nil, collectRowsError(err)
	}

	return stats, nil
}

func (r *UploadRepository) TransitionAI(ctx context.Context, id uuid.UUID, t AITransition) (bool, error) {
	return transitionAI(ctx, extractDB(ctx, r.pool), r.qb, TableReportUploads, id, t)
}

func (r *UploadRepository) ResetStaleAnalyses(ctx context.Context, before time.Time) (int64, error) {
	return resetStaleAnalyses(ctx, extractDB(ctx, r.pool), r.qb, TableReportUploads, before)
}

func (r *UploadRepository) IDsByAIStatus(ctx context.Context, status models.AIStatus, limit uint64) ([]uuid.UUID, error) {
	return idsByAIStatus(ctx, extractDB(ctx, r.pool), r.qb, TableReportUploads, status, limit)
}

func uploadWhere(filter UploadFilter) sq.And {
	where := sq.And{}
	if filter.UploadedBy != nil {
		where = append(where, sq.Eq{"uploaded_by": *filter.UploadedBy})
	}
	if filter.PatientID != nil {
		where = append(where, sq.Eq{"patient_id": *filter.PatientID})
	}
	if filter.Status != nil {
		where = append(where, sq.Eq{"upload_status": *filter.Status})
	}
	return where
}
