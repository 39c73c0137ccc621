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

const TableContacts = "contacts"

var contactColumns = []string{
	"id", "name", "email", "phone", "subject", "message", "category", "status", "priority",
	"assigned_to", "notes", "ip_address", "user_agent", "created_at", "updated_at",
}

type ContactRepository struct {
	pool   *pgxpool.Pool
	qb     sq.StatementBuilderType
	logger *zap.Logger
}

func NewContactRepository(pool *pgxpool.Pool, logger *zap.Logger) *ContactRepository {
	return &ContactRepository{
		pool:   pool,
		qb:     sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		logger: logger,
	}
}

func (r *ContactRepository) Create(ctx context.Context, c *models.Contact) error {
	db := extractDB(ctx, r.pool)

	sql, args, err := r.qb.
		Insert(TableContacts).
		Columns(contactColumns...).
		Values(
			c.ID, c.Name, c.Email, c.Phone, c.Subject, c.Message, c.Category, c.Status, c.Priority,
			c.AssignedTo, c.Notes, c.IPAddress, c.UserAgent, c.CreatedAt, c.UpdatedAt,
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

func (r *ContactRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Contact, error) {
	db := extractDB(ctx, r.pool)

	sql, args, err := r.qb.
		Select(contactColumns...).
		From(TableContacts).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, createQueryError(err)
	}

	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, executeQueryError(err)
	}

	contact, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByNameLax[models.Contact])
	if err != nil {
		return nil, collectRowsError(err)
	}

	return contact, nil
}

func (r *ContactRepository) List(ctx context.Context, filter ContactFilter) ([]*models.Contact, int, error) {
	db := extractDB(ctx, r.pool)

	where := sq.And{}
	if filter.Status != nil {
		where = append(where, sq.Eq{"status": *filter.Status})
	}
	if filter.Category != nil {
		where = append(where, sq.Eq{"category": *filter.Category})
	}
	if filter.Priority != nil {
		where = append(where, sq.Eq{"priority": *filter.Priority})
	}

	total, err := count(ctx, db, r.qb, TableContacts, where)
	if err != nil {
		return nil, 0, err
	}

	page := filter.Page.Normalize()
	sql, args, err := r.qb.
		Select(contactColumns...).
		From(TableContacts).
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

	contacts, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByNameLax[models.Contact])
	if err != nil {
		return nil, 0, collectRowsError(err)
	}

	return contacts, total, nil
}

func (r *ContactRepository) Update(ctx context.Context, c *models.Contact) error {
	db := extractDB(ctx, r.pool)

	sql, args, err := r.qb.
		Update(TableContacts).
		SetMap(map[string]any{
			"status":      c.Status,
			"priority":    c.Priority,
			"assigned_to": c.AssignedTo,
			"notes":       c.Notes,
			"updated_at":  c.UpdatedAt,
		}).
		Where(sq.Eq{"id": c.ID}).
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

func (r *ContactRepository) Delete(ctx context.Context, id uuid.UUID) error {
	db := extractDB(ctx, r.pool)

	sql, args, err := r.qb.
		Delete(TableContacts).
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

func (r *ContactRepository) Stats(ctx context.Context) (*ContactStats, error) {
	db := extractDB(ctx, r.pool)

	stats := &ContactStats{
		ByStatus:   map[string]int{},
		ByCategory: map[string]int{},
		ByPriority: map[string]int{},
	}

	for column, into := range map[string]map[string]int{
		"status":   stats.ByStatus,
		"category": stats.ByCategory,
		"priority": stats.ByPriority,
	} {
		sql, args, err := r.qb.
			Select(column, "COUNT(*)").
			From(TableContacts).
			GroupBy(column).
			ToSql()
		if err != nil {
			return nil, createQueryError(err)
		}

		rows, err := db.Query(ctx, sql, args...)
		if err != nil {
			return nil, executeQueryError(err)
		}

		var key string
		var n int
		_, err = pgx.ForEachRow(rows, []any{&key, &n}, func() error {
			into[key] = n
			if column == "status" {
				stats.Total += n
			}
			return nil
		})
		if err != nil {
			return nil, collectRowsError(err)
		}
	}

	return stats, nil
}
