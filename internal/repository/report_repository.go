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

const TableReports = "reports"

var reportColumns = []string{
	"id", "patient_id", "caregiver_id", "uploaded_by", "title", "description", "report_type",
	"file_url", "file_path", "file_name", "file_size", "file_type", "is_public", "tags",
	"status", "reviewed_by", "review_notes", "review_date",
	"ai_analysis_status", "ai_describe", "ai_analysis_date",
	"created_at", "updated_at",
}

type ReportRepository struct {
	pool   *pgxpool.Pool
	qb     sq.StatementBuilderType
	logger *zap.Logger
}

func NewReportRepository(pool *pgxpool.Pool, logger *zap.Logger) *ReportRepository {
	return &ReportRepository{
		pool:   pool,
		qb:     sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		logger: logger,
	}
}

func (r *ReportRepository) Create(ctx context.Context, report *models.Report) error {
	db := extractDB(ctx, r.pool)

	sql, args, err := r.qb.
		Insert(TableReports).
		Columns(reportColumns...).
		Values(
			report.ID, report.PatientID, report.CaregiverID, report.UploadedBy, report.Title, report.Description, report.ReportType,
			report.FileURL, report.FilePath, report.FileName, report.FileSize, report.FileType, report.IsPublic, report.Tags,
			report.Status, report.ReviewedBy, report.ReviewNotes, report.ReviewDate,
			report.AIStatus, report.AIDescription, report.AIAnalyzedAt,
			report.CreatedAt, report.UpdatedAt,
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

func (r *ReportRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	db := extractDB(ctx, r.pool)

	sql, args, err := r.qb.
		Select(reportColumns...).
		From(TableReports).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, createQueryError(err)
	}

	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, executeQueryError(err)
	}

	report, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByNameLax[models.Report])
	if err != nil {
		return nil, collectRowsError(err)
	}

	return report, nil
}

func (r *ReportRepository) List(ctx context.Context, filter ReportFilter) ([]*models.Report, int, error) {
	db := extractDB(ctx, r.pool)

	where := sq.And{}
	if filter.PatientID != nil {
		where = append(where, sq.Eq{"patient_id": *filter.PatientID})
	}
	if filter.PatientIDs != nil {
		where = append(where, sq.Eq{"patient_id": filter.PatientIDs})
	}
	if filter.ReportType != nil {
		where = append(where, sq.Eq{"report_type": *filter.ReportType})
	}
	if filter.Status != nil {
		where = append(where, sq.Eq{"status": *filter.Status})
	}

	total, err := count(ctx, db, r.qb, TableReports, where)
	if err != nil {
		return nil, 0, err
	}

	page := filter.Page.Normalize()
	sql, args, err := r.qb.
		Select(reportColumns...).
		From(TableReports).
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

	reports, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByNameLax[models.Report])
	if err != nil {
		return nil, 0, collectRowsError(err)
	}

	return reports, total, nil
}

func (r *ReportRepository) UpdateReview(ctx context.Context, report *models.Report) error {
	db := extractDB(ctx, r.pool)

	sql, args, err := r.qb.
		Update(TableReports).
		Set("status", report.Status).
		Set("reviewed_by", report.ReviewedBy).
		Set("review_notes", report.ReviewNotes).
		Set("review_date", report.ReviewDate).
		Set("updated_at", report.UpdatedAt).
		Where(sq.Eq{"id": report.ID}).
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

func (r *ReportRepository) Delete(ctx context.Context, id uuid.UUID) error {
	db := extractDB(ctx, r.pool)

	sql, args, err := r.qb.
		Delete(TableReports).
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

func (r *ReportRepository) TransitionAI(ctx context.Context, id uuid.UUID, t AITransition) (bool, error) {
	return transitionAI(ctx, extractDB(ctx, r.pool), r.qb, TableReports, id, t)
}

func (r *ReportRepository) ResetStaleAnalyses(ctx context.Context, before time.Time) (int64, error) {
	return resetStaleAnalyses(ctx, extractDB(ctx, r.pool), r.qb, TableReports, before)
}

func (r *ReportRepository) IDsByAIStatus(ctx context.Context, status models.AIStatus, limit uint64) ([]uuid.UUID, error) {
	return idsByAIStatus(ctx, extractDB(ctx, r.pool), r.qb, TableReports, status, limit)
}
