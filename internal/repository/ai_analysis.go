package repository

import (
	"context"
	"time"

	"lifetrack/internal/models"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// transitionAI applies t to one row of table as a single conditional update.
// It reports whether the row was in one of t.From and got changed.
func transitionAI(ctx context.Context, db DBTX, qb sq.StatementBuilderType, table string, id uuid.UUID, t AITransition) (bool, error) {
	from := make([]string, len(t.From))
	for i, s := range t.From {
		from[i] = string(s)
	}

	query := qb.
		Update(table).
		Set("ai_analysis_status", t.To).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id, "ai_analysis_status": from})

	switch {
	case t.Description != nil:
		query = query.Set("ai_describe", *t.Description)
	case t.ClearDescription:
		query = query.Set("ai_describe", nil)
	}
	if t.At != nil {
		query = query.Set("ai_analysis_date", *t.At)
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return false, createQueryError(err)
	}

	tag, err := db.Exec(ctx, sql, args...)
	if err != nil {
		return false, executeQueryError(err)
	}

	return tag.RowsAffected() == 1, nil
}

// resetStaleAnalyses puts finished analyses older than before back to pending.
func resetStaleAnalyses(ctx context.Context, db DBTX, qb sq.StatementBuilderType, table string, before time.Time) (int64, error) {
	sql, args, err := qb.
		Update(table).
		Set("ai_analysis_status", models.AIStatusPending).
		Set("ai_describe", nil).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"ai_analysis_status": []string{string(models.AIStatusCompleted), string(models.AIStatusFailed)}}).
		Where(sq.Lt{"ai_analysis_date": before}).
		ToSql()
	if err != nil {
		return 0, createQueryError(err)
	}

	tag, err := db.Exec(ctx, sql, args...)
	if err != nil {
		return 0, executeQueryError(err)
	}

	return tag.RowsAffected(), nil
}

func idsByAIStatus(ctx context.Context, db DBTX, qb sq.StatementBuilderType, table string, status models.AIStatus, limit uint64) ([]uuid.UUID, error) {
	sql, args, err := qb.
		Select("id").
		From(table).
		Where(sq.Eq{"ai_analysis_status": status}).
		OrderBy("created_at").
		Limit(limit).
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
