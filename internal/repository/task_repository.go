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

const TableTasks = "tasks"

var taskColumns = []string{"id", "title", "date", "created_by", "created_at"}

type TaskRepository struct {
	pool   *pgxpool.Pool
	qb     sq.StatementBuilderType
	logger *zap.Logger
}

func NewTaskRepository(pool *pgxpool.Pool, logger *zap.Logger) *TaskRepository {
	return &TaskRepository{
		pool:   pool,
		qb:     sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		logger: logger,
	}
}

func (r *TaskRepository) Create(ctx context.Context, task *models.Task) error {
	db := extractDB(ctx, r.pool)

	sql, args, err := r.qb.
		Insert(TableTasks).
		Columns(taskColumns...).
		Values(task.ID, task.Title, task.Date, task.CreatedBy, task.CreatedAt).
		ToSql()
	if err != nil {
		return createQueryError(err)
	}

	if _, err := db.Exec(ctx, sql, args...); err != nil {
		return executeQueryError(err)
	}

	return nil
}

func (r *TaskRepository) ListByCreator(ctx context.Context, createdBy uuid.UUID) ([]*models.Task, error) {
	db := extractDB(ctx, r.pool)

	sql, args, err := r.qb.
		Select(taskColumns...).
		From(TableTasks).
		Where(sq.Eq{"created_by": createdBy}).
		OrderBy("date").
		ToSql()
	if err != nil {
		return nil, createQueryError(err)
	}

	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, executeQueryError(err)
	}

	tasks, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByNameLax[models.Task])
	if err != nil {
		return nil, collectRowsError(err)
	}

	return tasks, nil
}
