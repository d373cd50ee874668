package taxes

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/backoffice/internal/masterdata/shared"
	coreshared "github.com/odyssey-erp/backoffice/internal/shared"
)

type Repository interface {
	List(ctx context.Context, orgID int64, filters shared.ListFilters) ([]Tax, int, error)
	Get(ctx context.Context, orgID, id int64) (Tax, error)
	GetMany(ctx context.Context, orgID int64, ids []int64) ([]Tax, error)
	Create(ctx context.Context, tax Tax) (Tax, error)
	Update(ctx context.Context, tax Tax) error
	Delete(ctx context.Context, orgID, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const taxColumns = `id, org_id, code, name, rate, is_active, created_at, updated_at`

func (r *repository) List(ctx context.Context, orgID int64, filters shared.ListFilters) ([]Tax, int, error) {
	filters = filters.Normalize()
	where := ` WHERE org_id = $1`
	args := []any{orgID}
	if filters.Search != "" {
		args = append(args, "%"+filters.Search+"%")
		n := strconv.Itoa(len(args))
		where += ` AND (name ILIKE $` + n + ` OR code ILIKE $` + n + `)`
	}
	if filters.IsActive != nil {
		args = append(args, *filters.IsActive)
		where += ` AND is_active = $` + strconv.Itoa(len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM taxes`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args = append(args, filters.Limit, filters.Offset())
	query := `SELECT ` + taxColumns + ` FROM taxes` + where + ` ORDER BY code LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))
	items, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *repository) Get(ctx context.Context, orgID, id int64) (Tax, error) {
	t, err := scanTax(r.pool.QueryRow(ctx, `SELECT `+taxColumns+` FROM taxes WHERE org_id = $1 AND id = $2`, orgID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Tax{}, coreshared.ErrNotFound
	}
	return t, err
}

func (r *repository) GetMany(ctx context.Context, orgID int64, ids []int64) ([]Tax, error) {
	return r.query(ctx, `SELECT `+taxColumns+` FROM taxes WHERE org_id = $1 AND id = ANY($2) ORDER BY id`, orgID, ids)
}

func (r *repository) Create(ctx context.Context, tax Tax) (Tax, error) {
	now := time.Now()
	err := r.pool.QueryRow(ctx, `INSERT INTO taxes (org_id, code, name, rate, is_active, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		tax.OrgID, tax.Code, tax.Name, tax.Rate, tax.IsActive, now, now).Scan(&tax.ID)
	if err != nil {
		return Tax{}, shared.MapWriteError(err)
	}
	tax.CreatedAt = now
	tax.UpdatedAt = now
	return tax, nil
}

func (r *repository) Update(ctx context.Context, tax Tax) error {
	tag, err := r.pool.Exec(ctx, `UPDATE taxes SET code = $1, name = $2, rate = $3, is_active = $4, updated_at = $5 WHERE org_id = $6 AND id = $7`,
		tax.Code, tax.Name, tax.Rate, tax.IsActive, time.Now(), tax.OrgID, tax.ID)
	if err != nil {
		return shared.MapWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return coreshared.ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, orgID, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM taxes WHERE org_id = $1 AND id = $2`, orgID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return coreshared.ErrNotFound
	}
	return nil
}

func (r *repository) query(ctx context.Context, query string, args ...any) ([]Tax, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Tax
	for rows.Next() {
		t, err := scanTax(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

func scanTax(row pgx.Row) (Tax, error) {
	var t Tax
	err := row.Scan(&t.ID, &t.OrgID, &t.Code, &t.Name, &t.Rate, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}
