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

const TablePatientStatus = "patient_status"

var patientStatusColumns = []string{
	"id", "patient_id", "updated_by", "vital_signs", "health_score", "symptoms",
	"medication_status", "notes", "status", "recorded_at", "created_at",
}

type PatientStatusRepository struct {
	pool   *pgxpool.Pool
	qb     sq.StatementBuilderType
	logger *zap.Logger
}

func NewPatientStatusRepository(pool *pgxpool.Pool, logger *zap.Logger) *PatientStatusRepository {
	return &PatientStatusRepository{
		pool:   pool,
		qb:     sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		logger: logger,
	}
}

func (r *PatientStatusRepository) Create(ctx context.Context, s *models.PatientStatus) error {
	db := extractDB(ctx, r.pool)

	sql, args, err := r.qb.
		Insert(TablePatientStatus).
		Columns(patientStatusColumns...).
		Values(
			s.ID, s.PatientID, s.UpdatedBy, s.VitalSigns, s.HealthScore, s.Symptoms,
			s.MedicationStatus, s.Notes, s.Status, s.RecordedAt, s.CreatedAt,
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

func (r *PatientStatusRepository) Latest(ctx context.Context, patientID uuid.UUID) (*models.PatientStatus, error) {
	db := extractDB(ctx, r.pool)

	sql, args, err := r.qb.
		Select(patientStatusColumns...).
		From(TablePatientStatus).
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

	status, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByNameLax[models.PatientStatus])
	if err != nil {
		return nil, collectRowsError(err)
	}

	return status, nil
}

func (r *PatientStatusRepository) History(ctx context.Context, patientID uuid.UUID, page Page) ([]*models.PatientStatus, int, error) {
	db := extractDB(ctx, r.pool)

	where := sq.Eq{"patient_id": patientID}

	total, err := count(ctx, db, r.qb, TablePatientStatus, where)
	if err != nil {
		return nil, 0, err
	}

	page = page.Normalize()
	sql, args, err := r.qb.
		Select(patientStatusColumns...).
		From(TablePatientStatus).
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

	history, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByNameLax[models.PatientStatus])
	if err != nil {
		return nil, 0, collectRowsError(err)
	}

	return history, total, nil
}

func (r *PatientStatusRepository) LatestForPatients(ctx context.Context, patientIDs []uuid.UUID) ([]*models.PatientStatus, error) {
	db := extractDB(ctx, r.pool)

	sql, args, err := r.qb.
		Select(patientStatusColumns...).
		Options("DISTINCT ON (patient_id)").
		From(TablePatientStatus).
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

	latest, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByNameLax[models.PatientStatus])
	if err != nil {
		return nil, collectRowsError(err)
	}

	return latest, nil
}
