package products

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
	List(ctx context.Context, orgID int64, filters shared.ListFilters) ([]Product, int, error)
	Get(ctx context.Context, orgID, id int64) (Product, error)
	GetMany(ctx context.Context, orgID int64, ids []int64) ([]Product, error)
	Create(ctx context.Context, product Product) (Product, error)
	Update(ctx context.Context, product Product) error
	Delete(ctx context.Context, orgID, id int64) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const productColumns = `id, org_id, sku, name, unit_of_measure, cost_price, sale_price, average_quantity_per_stocked_unit, is_active, created_at, updated_at`

func (r *repository) List(ctx context.Context, orgID int64, filters shared.ListFilters) ([]Product, int, error) {
	filters = filters.Normalize()
	where := ` WHERE org_id = $1`
	args := []any{orgID}

	if filters.Search != "" {
		args = append(args, "%"+filters.Search+"%")
		n := strconv.Itoa(len(args))
		where += ` AND (name ILIKE $` + n + ` OR sku ILIKE $` + n + `)`
	}
	if filters.IsActive != nil {
		args = append(args, *filters.IsActive)
		where += ` AND is_active = $` + strconv.Itoa(len(args))
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM products`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + productColumns + ` FROM products` + where + ` ORDER BY ` + sortOrder(filters.SortBy, filters.SortDir)
	args = append(args, filters.Limit, filters.Offset())
	query += ` LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	products, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

func (r *repository) Get(ctx context.Context, orgID, id int64) (Product, error) {
	row := r.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE org_id = $1 AND id = $2`, orgID, id)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, coreshared.ErrNotFound
	}
	return p, err
}

func (r *repository) GetMany(ctx context.Context, orgID int64, ids []int64) ([]Product, error) {
	return r.query(ctx, `SELECT `+productColumns+` FROM products WHERE org_id = $1 AND id = ANY($2)`, orgID, ids)
}

func (r *repository) Create(ctx context.Context, product Product) (Product, error) {
	query := `INSERT INTO products (org_id, sku, name, unit_of_measure, cost_price, sale_price, average_quantity_per_stocked_unit, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`
	now := time.Now()
	err := r.db.QueryRow(ctx, query, product.OrgID, product.SKU, product.Name, string(product.UnitOfMeasure), product.CostPrice, product.SalePrice,
		product.AverageQuantityPerStockedUnit, product.IsActive, now, now).Scan(&product.ID)
	if err != nil {
		return Product{}, shared.MapWriteError(err)
	}
	product.CreatedAt = now
	product.UpdatedAt = now
	return product, nil
}

func (r *repository) Update(ctx context.Context, product Product) error {
	query := `UPDATE products SET sku = $1, name = $2, unit_of_measure = $3, cost_price = $4, sale_price = $5,
average_quantity_per_stocked_unit = $6, is_active = $7, updated_at = $8 WHERE org_id = $9 AND id = $10`
	tag, err := r.db.Exec(ctx, query, product.SKU, product.Name, string(product.UnitOfMeasure), product.CostPrice, product.SalePrice,
		product.AverageQuantityPerStockedUnit, product.IsActive, time.Now(), product.OrgID, product.ID)
	if err != nil {
		return shared.MapWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return coreshared.ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, orgID, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM products WHERE org_id = $1 AND id = $2`, orgID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return coreshared.ErrNotFound
	}
	return nil
}

func (r *repository) query(ctx context.Context, query string, args ...any) ([]Product, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	var uom string
	err := row.Scan(&p.ID, &p.OrgID, &p.SKU, &p.Name, &uom, &p.CostPrice, &p.SalePrice, &p.AverageQuantityPerStockedUnit, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Product{}, err
	}
	p.UnitOfMeasure = pricingUnit(uom)
	return p, nil
}

func sortOrder(sortBy, sortDir string) string {
	dir := "ASC"
	if sortDir == shared.SortDesc {
		dir = "DESC"
	}
	switch sortBy {
	case "sku":
		return "sku " + dir
	case "name":
		return "name " + dir
	case "sale_price":
		return "sale_price " + dir
	default:
		return "id " + dir
	}
}
