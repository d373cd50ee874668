package audit

import (
	"context"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the pgx-backed timeline reader.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) Timeline(ctx context.Context, orgID int64, filters TimelineFilters, limit, offset int) ([]TimelineRow, error) {
	where := ` WHERE org_id = $1`
	args := []any{orgID}
	add := func(clause string, value any) {
		args = append(args, value)
		where += ` AND ` + clause + ` $` + strconv.Itoa(len(args))
	}
	if !filters.From.IsZero() {
		add(`occurred_at >=`, toPgTime(filters.From))
	}
	if !filters.To.IsZero() {
		add(`occurred_at <`, toPgTime(filters.To.AddDate(0, 0, 1)))
	}
	if filters.Entity != "" {
		add(`entity =`, filters.Entity)
	}
	if filters.EntityID > 0 {
		add(`entity_id =`, filters.EntityID)
	}
	if filters.Action != "" {
		add(`action =`, filters.Action)
	}
	args = append(args, limit, offset)
	query := `SELECT occurred_at, actor_id, action, entity, entity_id, meta FROM audit_logs` + where +
		` ORDER BY occurred_at DESC, id DESC LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TimelineRow
	for rows.Next() {
		var (
			row     TimelineRow
			at      pgtype.Timestamptz
			actorID pgtype.Int8
			meta    []byte
		)
		if err := rows.Scan(&at, &actorID, &row.Action, &row.Entity, &row.EntityID, &meta); err != nil {
			return nil, err
		}
		if at.Valid {
			row.At = at.Time
		}
		if actorID.Valid {
			row.ActorID = actorID.Int64
		}
		if len(meta) > 0 && string(meta) != "null" {
			row.Meta = meta
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func toPgTime(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}
