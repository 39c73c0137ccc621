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

const TableUsers = "users"

var userColumns = []string{
	"id", "first_name", "last_name", "email", "password", "phone", "role",
	"caregiver_id", "is_active", "last_login", "created_at", "updated_at",
}

type UserRepository struct {
	pool   *pgxpool.Pool
	qb     sq.StatementBuilderType
	logger *zap.Logger
}

func NewUserRepository(pool *pgxpool.Pool, logger *zap.Logger) *UserRepository {
	return &UserRepository{
		pool:   pool,
		qb:     sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		logger: logger,
	}
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	db := extractDB(ctx, r.pool)

	sql, args, err := r.qb.
		Insert(TableUsers).
		Columns(userColumns...).
		Values(
			user.ID, user.FirstName, user.LastName, user.Email, user.Password, user.Phone, user.Role,
			user.CaregiverID, user.IsActive, user.LastLogin, user.CreatedAt, user.UpdatedAt,
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

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.getOne(ctx, sq.Eq{"id": id})
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, sq.Eq{"email": email})
}

func (r *UserRepository) getOne(ctx context.Context, where sq.Sqlizer) (*models.User, error) {
	db := extractDB(ctx, r.pool)

	sql, args, err := r.qb.
		Select(userColumns...).
		From(TableUsers).
		Where(where).
		ToSql()
	if err != nil {
		return nil, createQueryError(err)
	}

	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, executeQueryError(err)
	}

	user, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByNameLax[models.User])
	if err != nil {
		return nil, collectRowsError(err)
	}

	return user, nil
}

func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	db := extractDB(ctx, r.pool)

	sql, args, err := r.qb.
		Update(TableUsers).
		SetMap(map[string]any{
			"first_name":   user.FirstName,
			"last_name":    user.LastName,
			"email":        user.Email,
			"password":     user.Password,
			"phone":        user.Phone,
			"role":         user.Role,
			"caregiver_id": user.CaregiverID,
			"is_active":    user.IsActive,
			"last_login":   user.LastLogin,
			"updated_at":   user.UpdatedAt,
		}).
		Where(sq.Eq{"id": user.ID}).
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

func (r *UserRepository) List(ctx context.Context, filter UserFilter) ([]*models.User, int, error) {
	db := extractDB(ctx, r.pool)

	where := sq.And{}
	if filter.Role != nil {
		where = append(where, sq.Eq{"role": *filter.Role})
	}
	if filter.CaregiverID != nil {
		where = append(where, sq.Eq{"caregiver_id": *filter.CaregiverID})
	}

	total, err := count(ctx, db, r.qb, TableUsers, where)
	if err != nil {
		return nil, 0, err
	}

	page := filter.Page.Normalize()
	sql, args, err := r.qb.
		Select(userColumns...).
		From(TableUsers).
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

	users, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByNameLax[models.User])
	if err != nil {
		return nil, 0, collectRowsError(err)
	}

	return users, total, nil
}

// PatientIDs returns ids of every patient assigned to the caregiver.
func (r *UserRepository) PatientIDs(ctx context.Context, caregiverID uuid.UUID) ([]uuid.UUID, error) {
	db := extractDB(ctx, r.pool)

	sql, args, err := r.qb.
		Select("id").
		From(TableUsers).
		Where(sq.Eq{"caregiver_id": caregiverID, "role": models.RolePatient}).
		ToSql()
	if err != nil {
		return nil, createQueryError(err)
	}

	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, executeQueryError(err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, collectRowsError(err)
	}

	return ids, nil
}

func count(ctx context.Context, db DBTX, qb sq.StatementBuilderType, table string, where sq.Sqlizer) (int, error) {
	sql, args, err := qb.
		Select("COUNT(*)").
		From(table).
		Where(where).
		ToSql()
	if err != nil {
		return 0, createQueryError(err)
	}

	var total int
	if err := db.QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return 0, scanRowError(err)
	}

	return total, nil
}
