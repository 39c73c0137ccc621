package repository

import (
	"context"

	"lifetrack/internal/models"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const TableHealthData = "health_data"

var healthDataColumns = []string{"id", "patient_id", "recorded_by", "metrics", "recorded_at", "created_at"}

type HealthDataRepository struct {
	pool   *pgxpool.Pool
	qb     sq.StatementBuilderType
	logger *zap.Logger
}

func NewHealthDataRepository(pool *pgxpool.Pool, logger *zap.Logger) *HealthDataRepository {
	return &HealthDataRepository{
		pool:   pool,
		qb:     sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		logger: logger,
	}
}

func (r *HealthDataRepository) Create(ctx context.Context, data *models.HealthData) error {
	db := extractDB(ctx, r.pool)

	sql, args, err := r.qb.
		Insert(TableHealthData).
		Columns(healthDataColumns...).
		Values(data.ID, data.PatientID, data.RecordedBy, data.Metrics, data.RecordedAt, data.CreatedAt).
		ToSql()
	if err != nil {
		return createQueryError(err)
	}

	if _, err := db.Exec(ctx, sql, args...); err != nil {
		return executeQueryError(err)
	}

	return nil
}

func (r *HealthDataRepository) Latest(ctx context.Context, patientID uuid.UUID) (*models.HealthData, error) {
	db := extractDB(ctx, r.pool)

	sql, args, err := r.qb.
		Select(healthDataColumns...).
		From(TableHealthData).
		Where(sq.Eq{"patient_id": patientID}).
		OrderBy("recorded_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, createQueryError(err)
	}

	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, executeQueryError(err)
	}

	data, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByNameLax[models.HealthData])
	if err != nil {
		return nil, collectRowsError(err)
	}

	return data, nil
}

func (r *HealthDataRepository) History(ctx context.Context, patientID uuid.UUID, page Page) ([]*models.HealthData, int, error) {
	db := extractDB(ctx, r.pool)

	where := sq.Eq{"patient_id": patientID}

	total, err := count(ctx, db, r.qb, TableHealthData, where)
	if err != nil {
		return nil, 0, err
	}

	page = page.Normalize()
	sql, args, err := r.qb.
		Select(healthDataColumns...).
		From(TableHealthData).
		Where(where).
		OrderBy("recorded_at DESC").
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

	history, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByNameLax[models.HealthData])
	if err != nil {
		return nil, 0, collectRowsError(err)
	}

	return history, total, nil
}

// LatestForPatients returns the newest snapshot of each listed patient.
func (r *HealthDataRepository) LatestForPatients(ctx context.Context, patientIDs []uuid.UUID) ([]*models.HealthData, error) {
	db := extractDB(ctx, r.pool)

	sql, args, err := r.qb.
		Select(healthDataColumns...).
		Options("DISTINCT ON (patient_id)").
		From(TableHealthData).
		Where(sq.Eq{"patient_id": patientIDs}).
		OrderBy("patient_id", "recorded_at DESC").
		ToSql()
	if err != nil {
		return nil, createQueryError(err)
	}

	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, executeQueryError(err)
	}

	latest, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByNameLax[models.HealthData])
	if err != nil {
		return nil, collectRowsError(err)
	}

	return latest, nil
}
