package procurement

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/backoffice/internal/accounts"
	"github.com/odyssey-erp/backoffice/internal/inventory"
	"github.com/odyssey-erp/backoffice/internal/platform/db"
	"github.com/odyssey-erp/backoffice/internal/shared"
)

// Repository provides PostgreSQL backed procurement persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	LockPO(ctx context.Context, orgID, id int64) (PurchaseOrder, error)
	CreatePO(ctx context.Context, po PurchaseOrder) (int64, error)
	UpdateOrdered(ctx context.Context, po PurchaseOrder) error
	ReplaceLines(ctx context.Context, poID int64, lines []POLine) error
	ReplaceTaxes(ctx context.Context, poID int64, taxes []POTax) error
	SaveReceipts(ctx context.Context, poID int64, receipts []LineReceipt) error
	// TransitionStatus moves the order from one status to the next and
	// fails with a conflict when the stored status is no longer from.
	TransitionStatus(ctx context.Context, orgID, id int64, from, to POStatus, change StatusChange) error
	Inventory() inventory.TxRepository
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

const poColumns = `id, org_id, number, supplier_id, status, global_discount_percent, subtotal, tax_amount, line_discount,
global_discount, pre_discount_total, total_amount, delivery_date, logistics_provider, note, in_transit_at, received_at,
cancelled_at, cancellation_reason, created_at, updated_at`

const lineColumns = `id, purchase_order_id, product_id, quantity, measured_quantity, unit_cost, base_cost, discount_percent,
discount_amount, subtotal, estimated, line_order, received, lot_id, lot_number, expiration_date, received_measured_quantity`

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// GetPO returns purchase order with lines and taxes.
func (r *Repository) GetPO(ctx context.Context, orgID, id int64) (PurchaseOrder, error) {
	po, err := scanPO(r.pool.QueryRow(ctx, `SELECT `+poColumns+` FROM purchase_orders WHERE org_id=$1 AND id=$2`, orgID, id))
	if err != nil {
		return PurchaseOrder{}, err
	}
	return loadChildren(ctx, r.pool, po)
}

// ListPOs returns a filtered page of purchase orders.
func (r *Repository) ListPOs(ctx context.Context, orgID int64, filter ListFilter) ([]PurchaseOrder, int, error) {
	where := []string{"org_id=$1"}
	args := []any{orgID}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status=$%d", len(args)))
	}
	if filter.SupplierID > 0 {
		args = append(args, filter.SupplierID)
		where = append(where, fmt.Sprintf("supplier_id=$%d", len(args)))
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM purchase_orders WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	limit, offset := shared.LimitOffset(filter.Page, filter.PerPage)
	args = append(args, limit, offset)
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM purchase_orders WHERE %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		poColumns, clause, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []PurchaseOrder
	for rows.Next() {
		po, err := scanPO(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, po)
	}
	return items, total, rows.Err()
}

// CountByStatus aggregates the number of purchase orders per status.
func (r *Repository) CountByStatus(ctx context.Context, orgID int64) (map[POStatus]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM purchase_orders WHERE org_id=$1 GROUP BY status`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[POStatus]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[POStatus(status)] = count
	}
	return counts, rows.Err()
}

func (t *txRepo) Inventory() inventory.TxRepository {
	return inventory.BindTx(t.tx)
}

func (t *txRepo) Accounts() accounts.TxRepository {
	return accounts.BindTx(t.tx)
}

func (t *txRepo) LockPO(ctx context.Context, orgID, id int64) (PurchaseOrder, error) {
	po, err := scanPO(t.tx.QueryRow(ctx, `SELECT `+poColumns+` FROM purchase_orders WHERE org_id=$1 AND id=$2 FOR UPDATE`, orgID, id))
	if err != nil {
		return PurchaseOrder{}, mapError(err)
	}
	return loadChildren(ctx, t.tx, po)
}

func (t *txRepo) CreatePO(ctx context.Context, po PurchaseOrder) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO purchase_orders (org_id, number, supplier_id, status, global_discount_percent, subtotal, tax_amount,
line_discount, global_discount, pre_discount_total, total_amount, delivery_date, note, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NULLIF($13, ''), $14, $15) RETURNING id`,
		po.OrgID, po.Number, po.SupplierID, string(po.Status), po.GlobalDiscountPercent, po.Subtotal, po.TaxAmount,
		po.LineDiscount, po.GlobalDiscount, po.PreDiscountTotal, po.TotalAmount, dateArg(po.DeliveryDate), po.Note,
		po.CreatedAt, po.UpdatedAt).Scan(&id)
	return id, mapError(err)
}

func (t *txRepo) UpdateOrdered(ctx context.Context, po PurchaseOrder) error {
	tag, err := t.tx.Exec(ctx, `UPDATE purchase_orders SET supplier_id=$1, global_discount_percent=$2, subtotal=$3, tax_amount=$4,
line_discount=$5, global_discount=$6, pre_discount_total=$7, total_amount=$8, delivery_date=$9, note=NULLIF($10, ''), updated_at=NOW()
WHERE org_id=$11 AND id=$12 AND status=$13`,
		po.SupplierID, po.GlobalDiscountPercent, po.Subtotal, po.TaxAmount, po.LineDiscount, po.GlobalDiscount,
		po.PreDiscountTotal, po.TotalAmount, dateArg(po.DeliveryDate), po.Note, po.OrgID, po.ID, string(POStatusOrdered))
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.Conflictf("purchase order changed by another request, refresh and retry")
	}
	return nil
}

func (t *txRepo) ReplaceLines(ctx context.Context, poID int64, lines []POLine) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM purchase_order_lines WHERE purchase_order_id=$1`, poID); err != nil {
		return mapError(err)
	}
	if len(lines) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(lines))
	for _, l := range lines {
		rows = append(rows, []any{poID, l.ProductID, l.Quantity, decimalArg(l.MeasuredQuantity), l.UnitCost, l.BaseCost,
			l.DiscountPercent, l.DiscountAmount, l.Subtotal, l.Estimated, l.LineOrder})
	}
	_, err := t.tx.CopyFrom(ctx, pgx.Identifier{"purchase_order_lines"},
		[]string{"purchase_order_id", "product_id", "quantity", "measured_quantity", "unit_cost", "base_cost",
			"discount_percent", "discount_amount", "subtotal", "estimated", "line_order"},
		pgx.CopyFromRows(rows))
	return mapError(err)
}

func (t *txRepo) ReplaceTaxes(ctx context.Context, poID int64, taxes []POTax) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM purchase_order_taxes WHERE purchase_order_id=$1`, poID); err != nil {
		return mapError(err)
	}
	batch := &pgx.Batch{}
	for _, tax := range taxes {
		batch.Queue(`INSERT INTO purchase_order_taxes (purchase_order_id, tax_id, name, rate, amount) VALUES ($1, $2, $3, $4, $5)`,
			poID, tax.TaxID, tax.Name, tax.Rate, tax.Amount)
	}
	if batch.Len() == 0 {
		return nil
	}
	return mapError(t.tx.SendBatch(ctx, batch).Close())
}

func (t *txRepo) SaveReceipts(ctx context.Context, poID int64, receipts []LineReceipt) error {
	for _, r := range receipts {
		tag, err := t.tx.Exec(ctx, `UPDATE purchase_order_lines SET received=TRUE, lot_id=$1, lot_number=$2, expiration_date=$3,
received_measured_quantity=$4 WHERE purchase_order_id=$5 AND id=$6`,
			r.LotID, r.LotNumber, dateArg(r.ExpirationDate), r.MeasuredQuantity, poID, r.LineID)
		if err != nil {
			return mapError(err)
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
	}
	return nil
}

func (t *txRepo) TransitionStatus(ctx context.Context, orgID, id int64, from, to POStatus, change StatusChange) error {
	var column string
	switch to {
	case POStatusInTransit:
		column = "in_transit_at"
	case POStatusReceived:
		column = "received_at"
	case POStatusCancelled:
		column = "cancelled_at"
	default:
		return shared.InvalidStatef(fmt.Sprintf("unsupported purchase order status %s", to))
	}
	query := fmt.Sprintf(`UPDATE purchase_orders SET status=$1, %s=$2, updated_at=$2,
delivery_date=COALESCE($3, delivery_date),
logistics_provider=COALESCE(NULLIF($4, ''), logistics_provider),
cancellation_reason=COALESCE(NULLIF($5, ''), cancellation_reason)
WHERE org_id=$6 AND id=$7 AND status=$8`, column)
	tag, err := t.tx.Exec(ctx, query, string(to), change.At, dateArg(change.DeliveryDate), change.LogisticsProvider,
		change.Reason, orgID, id, string(from))
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.Conflictf("purchase order changed by another request, refresh and retry")
	}
	return nil
}

func loadChildren(ctx context.Context, q querier, po PurchaseOrder) (PurchaseOrder, error) {
	rows, err := q.Query(ctx, `SELECT `+lineColumns+` FROM purchase_order_lines WHERE purchase_order_id=$1 ORDER BY line_order, id`, po.ID)
	if err != nil {
		return PurchaseOrder{}, err
	}
	for rows.Next() {
		line, err := scanLine(rows)
		if err != nil {
			rows.Close()
			return PurchaseOrder{}, err
		}
		po.Lines = append(po.Lines, line)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return PurchaseOrder{}, err
	}

	taxRows, err := q.Query(ctx, `SELECT purchase_order_id, tax_id, name, rate, amount FROM purchase_order_taxes WHERE purchase_order_id=$1 ORDER BY tax_id`, po.ID)
	if err != nil {
		return PurchaseOrder{}, err
	}
	defer taxRows.Close()
	for taxRows.Next() {
		var tax POTax
		if err := taxRows.Scan(&tax.PurchaseOrderID, &tax.TaxID, &tax.Name, &tax.Rate, &tax.Amount); err != nil {
			return PurchaseOrder{}, err
		}
		po.Taxes = append(po.Taxes, tax)
	}
	return po, taxRows.Err()
}

func scanPO(row pgx.Row) (PurchaseOrder, error) {
	var po PurchaseOrder
	var status string
	var delivery pgtype.Date
	var provider, note, reason pgtype.Text
	err := row.Scan(&po.ID, &po.OrgID, &po.Number, &po.SupplierID, &status, &po.GlobalDiscountPercent, &po.Subtotal,
		&po.TaxAmount, &po.LineDiscount, &po.GlobalDiscount, &po.PreDiscountTotal, &po.TotalAmount, &delivery, &provider,
		&note, &po.InTransitAt, &po.ReceivedAt, &po.CancelledAt, &reason, &po.CreatedAt, &po.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, shared.ErrNotFound
		}
		return PurchaseOrder{}, err
	}
	po.Status = POStatus(status)
	if delivery.Valid {
		po.DeliveryDate = shared.NewDate(delivery.Time)
	}
	po.LogisticsProvider = provider.String
	po.Note = note.String
	po.CancellationReason = reason.String
	return po, nil
}

func scanLine(row pgx.Row) (POLine, error) {
	var l POLine
	var measured, receivedMeasured decimal.NullDecimal
	var lotID pgtype.Int8
	var lotNumber pgtype.Text
	var expiry pgtype.Date
	if err := row.Scan(&l.ID, &l.PurchaseOrderID, &l.ProductID, &l.Quantity, &measured, &l.UnitCost, &l.BaseCost,
		&l.DiscountPercent, &l.DiscountAmount, &l.Subtotal, &l.Estimated, &l.LineOrder, &l.Received, &lotID, &lotNumber,
		&expiry, &receivedMeasured); err != nil {
		return POLine{}, err
	}
	if measured.Valid {
		m := measured.Decimal
		l.MeasuredQuantity = &m
	}
	if receivedMeasured.Valid {
		m := receivedMeasured.Decimal
		l.ReceivedMeasuredQuantity = &m
	}
	l.LotID = lotID.Int64
	l.LotNumber = lotNumber.String
	if expiry.Valid {
		l.ExpirationDate = shared.NewDate(expiry.Time)
	}
	return l, nil
}

func dateArg(d shared.Date) any {
	if d.IsZero() {
		return nil
	}
	return d.Time
}

func decimalArg(d *decimal.Decimal) any {
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
		return shared.Conflictf("purchase order or lot number already exists")
	case "40001", "40P01":
		return shared.Conflictf("purchase order changed by another request, refresh and retry")
	}
	return err
}
