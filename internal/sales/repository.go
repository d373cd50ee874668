package sales

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/backoffice/internal/accounts"
	"github.com/odyssey-erp/backoffice/internal/platform/db"
	"github.com/odyssey-erp/backoffice/internal/shared"
)

// Repository provides PostgreSQL backed persistence for sales orders.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	LockSalesOrder(ctx context.Context, orgID, id int64) (SalesOrder, error)
	InsertSalesOrder(ctx context.Context, so SalesOrder) (int64, error)
	UpdateDraft(ctx context.Context, so SalesOrder) error
	ReplaceLines(ctx context.Context, orderID int64, lines []SalesOrderLine) error
	ReplaceTaxes(ctx context.Context, orderID int64, taxes []SalesOrderTax) error
	// TransitionStatus moves the order from one status to the next and
	// fails with a conflict when the stored status is no longer from.
	TransitionStatus(ctx context.Context, orgID, id int64, from, to SalesOrderStatus, change StatusChange) error
	Accounts() accounts.TxRepository
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return mapError(db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	}))
}

const orderColumns = `id, org_id, doc_number, customer_id, seller_id, status, global_discount_percent, subtotal, tax_amount,
line_discount, global_discount, pre_discount_total, total_amount, remittance_number, notes, confirmed_at, dispatched_at,
delivered_at, cancelled_at, cancellation_reason, created_at, updated_at`

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// GetSalesOrder loads an order with its lines and taxes.
func (r *Repository) GetSalesOrder(ctx context.Context, orgID, id int64) (SalesOrder, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM sales_orders WHERE org_id=$1 AND id=$2`, orgID, id)
	so, err := scanOrder(row)
	if err != nil {
		return SalesOrder{}, err
	}
	return loadChildren(ctx, r.pool, so)
}

// ListSalesOrders returns a filtered page of orders without children.
func (r *Repository) ListSalesOrders(ctx context.Context, orgID int64, req ListSalesOrdersRequest) ([]SalesOrder, int, error) {
	where := []string{"org_id=$1"}
	args := []any{orgID}
	if req.Status != "" {
		args = append(args, string(req.Status))
		where = append(where, fmt.Sprintf("status=$%d", len(args)))
	}
	if req.CustomerID > 0 {
		args = append(args, req.CustomerID)
		where = append(where, fmt.Sprintf("customer_id=$%d", len(args)))
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM sales_orders WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	limit, offset := shared.LimitOffset(req.Page, req.PerPage)
	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM sales_orders WHERE %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		orderColumns, clause, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []SalesOrder
	for rows.Next() {
		so, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, so)
	}
	return items, total, rows.Err()
}

// CountByStatus aggregates the number of orders per status.
func (r *Repository) CountByStatus(ctx context.Context, orgID int64) (map[SalesOrderStatus]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM sales_orders WHERE org_id=$1 GROUP BY status`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[SalesOrderStatus]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[SalesOrderStatus(status)] = count
	}
	return counts, rows.Err()
}

func (t *txRepo) Accounts() accounts.TxRepository {
	return accounts.BindTx(t.tx)
}

func (t *txRepo) LockSalesOrder(ctx context.Context, orgID, id int64) (SalesOrder, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM sales_orders WHERE org_id=$1 AND id=$2 FOR UPDATE`, orgID, id)
	so, err := scanOrder(row)
	if err != nil {
		return SalesOrder{}, mapError(err)
	}
	return loadChildren(ctx, t.tx, so)
}

func (t *txRepo) InsertSalesOrder(ctx context.Context, so SalesOrder) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO sales_orders (org_id, doc_number, customer_id, seller_id, status, global_discount_percent,
subtotal, tax_amount, line_discount, global_discount, pre_discount_total, total_amount, notes, created_at, updated_at)
VALUES ($1, $2, NULLIF($3, 0), NULLIF($4, 0), $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15) RETURNING id`,
		so.OrgID, so.DocNumber, so.CustomerID, so.SellerID, string(so.Status), so.GlobalDiscountPercent,
		so.Subtotal, so.TaxAmount, so.LineDiscount, so.GlobalDiscount, so.PreDiscountTotal, so.TotalAmount,
		so.Notes, so.CreatedAt, so.UpdatedAt).Scan(&id)
	return id, mapError(err)
}

func (t *txRepo) UpdateDraft(ctx context.Context, so SalesOrder) error {
	tag, err := t.tx.Exec(ctx, `UPDATE sales_orders SET customer_id=NULLIF($1, 0), seller_id=NULLIF($2, 0), global_discount_percent=$3,
subtotal=$4, tax_amount=$5, line_discount=$6, global_discount=$7, pre_discount_total=$8, total_amount=$9, notes=$10, updated_at=NOW()
WHERE org_id=$11 AND id=$12 AND status=$13`,
		so.CustomerID, so.SellerID, so.GlobalDiscountPercent, so.Subtotal, so.TaxAmount, so.LineDiscount,
		so.GlobalDiscount, so.PreDiscountTotal, so.TotalAmount, so.Notes, so.OrgID, so.ID, string(SalesOrderStatusDraft))
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.Conflictf("sales order changed by another request, refresh and retry")
	}
	return nil
}

func (t *txRepo) ReplaceLines(ctx context.Context, orderID int64, lines []SalesOrderLine) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM sales_order_lines WHERE sales_order_id=$1`, orderID); err != nil {
		return mapError(err)
	}
	if len(lines) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(lines))
	for _, l := range lines {
		rows = append(rows, []any{orderID, l.ProductID, l.Quantity, measuredArg(l.MeasuredQuantity), l.UnitPrice, l.BasePrice,
			l.DiscountPercent, l.DiscountAmount, l.Subtotal, l.Estimated, l.LineOrder})
	}
	_, err := t.tx.CopyFrom(ctx, pgx.Identifier{"sales_order_lines"},
		[]string{"sales_order_id", "product_id", "quantity", "measured_quantity", "unit_price", "base_price",
			"discount_percent", "discount_amount", "subtotal", "estimated", "line_order"},
		pgx.CopyFromRows(rows))
	return mapError(err)
}

func (t *txRepo) ReplaceTaxes(ctx context.Context, orderID int64, taxes []SalesOrderTax) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM sales_order_taxes WHERE sales_order_id=$1`, orderID); err != nil {
		return mapError(err)
	}
	for _, tax := range taxes {
		if _, err := t.tx.Exec(ctx, `INSERT INTO sales_order_taxes (sales_order_id, tax_id, name, rate, amount) VALUES ($1, $2, $3, $4, $5)`,
			orderID, tax.TaxID, tax.Name, tax.Rate, tax.Amount); err != nil {
			return mapError(err)
		}
	}
	return nil
}

func (t *txRepo) TransitionStatus(ctx context.Context, orgID, id int64, from, to SalesOrderStatus, change StatusChange) error {
	var column string
	switch to {
	case SalesOrderStatusConfirmed:
		column = "confirmed_at"
	case SalesOrderStatusDispatch:
		column = "dispatched_at"
	case SalesOrderStatusDelivered:
		column = "delivered_at"
	case SalesOrderStatusCancelled:
		column = "cancelled_at"
	default:
		return shared.InvalidStatef(fmt.Sprintf("unsupported sales order status %s", to))
	}
	query := fmt.Sprintf(`UPDATE sales_orders SET status=$1, %s=$2,
remittance_number=COALESCE(NULLIF($3, ''), remittance_number),
cancellation_reason=COALESCE(NULLIF($4, ''), cancellation_reason),
updated_at=$2
WHERE org_id=$5 AND id=$6 AND status=$7`, column)
	tag, err := t.tx.Exec(ctx, query, string(to), change.At, change.RemittanceNumber, change.Reason, orgID, id, string(from))
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.Conflictf("sales order changed by another request, refresh and retry")
	}
	return nil
}

func loadChildren(ctx context.Context, q querier, so SalesOrder) (SalesOrder, error) {
	rows, err := q.Query(ctx, `SELECT id, sales_order_id, product_id, quantity, measured_quantity, unit_price, base_price,
discount_percent, discount_amount, subtotal, estimated, line_order
FROM sales_order_lines WHERE sales_order_id=$1 ORDER BY line_order, id`, so.ID)
	if err != nil {
		return SalesOrder{}, err
	}
	for rows.Next() {
		var l SalesOrderLine
		var measured decimal.NullDecimal
		if err := rows.Scan(&l.ID, &l.SalesOrderID, &l.ProductID, &l.Quantity, &measured, &l.UnitPrice, &l.BasePrice,
			&l.DiscountPercent, &l.DiscountAmount, &l.Subtotal, &l.Estimated, &l.LineOrder); err != nil {
			rows.Close()
			return SalesOrder{}, err
		}
		if measured.Valid {
			m := measured.Decimal
			l.MeasuredQuantity = &m
		}
		so.Lines = append(so.Lines, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return SalesOrder{}, err
	}

	taxRows, err := q.Query(ctx, `SELECT sales_order_id, tax_id, name, rate, amount FROM sales_order_taxes WHERE sales_order_id=$1 ORDER BY tax_id`, so.ID)
	if err != nil {
		return SalesOrder{}, err
	}
	defer taxRows.Close()
	for taxRows.Next() {
		var t SalesOrderTax
		if err := taxRows.Scan(&t.SalesOrderID, &t.TaxID, &t.Name, &t.Rate, &t.Amount); err != nil {
			return SalesOrder{}, err
		}
		so.Taxes = append(so.Taxes, t)
	}
	return so, taxRows.Err()
}

func scanOrder(row pgx.Row) (SalesOrder, error) {
	var so SalesOrder
	var status string
	var customerID, sellerID *int64
	err := row.Scan(&so.ID, &so.OrgID, &so.DocNumber, &customerID, &sellerID, &status, &so.GlobalDiscountPercent,
		&so.Subtotal, &so.TaxAmount, &so.LineDiscount, &so.GlobalDiscount, &so.PreDiscountTotal, &so.TotalAmount,
		&so.RemittanceNumber, &so.Notes, &so.ConfirmedAt, &so.DispatchedAt, &so.DeliveredAt, &so.CancelledAt,
		&so.CancellationReason, &so.CreatedAt, &so.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SalesOrder{}, shared.ErrNotFound
		}
		return SalesOrder{}, err
	}
	so.Status = SalesOrderStatus(status)
	if customerID != nil {
		so.CustomerID = *customerID
	}
	if sellerID != nil {
		so.SellerID = *sellerID
	}
	return so, nil
}

func measuredArg(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return *d
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23505":
		return shared.Conflictf("a sales order with this number already exists")
	case "40001", "40P01":
		return shared.Conflictf("sales order changed by another request, refresh and retry")
	}
	return err
}
