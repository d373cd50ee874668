package inventory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/backoffice/internal/shared"
)

// Repository provides PostgreSQL backed reads of stock data.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes stock writes within a transaction.
type TxRepository interface {
	InsertLot(ctx context.Context, lot Lot) (int64, error)
	InsertMovement(ctx context.Context, movement Movement) (int64, error)
	GetBalanceForUpdate(ctx context.Context, orgID, productID int64) (Balance, error)
	UpsertBalance(ctx context.Context, balance Balance) error
}

type txRepo struct {
	tx pgx.Tx
}

// BindTx exposes stock writes on a transaction owned by another module, so
// intake commits or rolls back together with the receipt that caused it.
func BindTx(tx pgx.Tx) TxRepository {
	return &txRepo{tx: tx}
}

// ListLots returns lots of the organization, optionally for one product.
func (r *Repository) ListLots(ctx context.Context, orgID, productID int64) ([]Lot, error) {
	query := `SELECT id, org_id, product_id, purchase_order_id, lot_number, expiration_date, quantity, measured_quantity, unit_cost, received_at
FROM inventory_lots WHERE org_id = $1 AND ($2 = 0 OR product_id = $2) ORDER BY expiration_date, id`
	rows, err := r.pool.Query(ctx, query, orgID, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lots []Lot
	for rows.Next() {
		var lot Lot
		var expiry pgtype.Date
		if err := rows.Scan(&lot.ID, &lot.OrgID, &lot.ProductID, &lot.PurchaseOrderID, &lot.LotNumber, &expiry,
			&lot.Quantity, &lot.MeasuredQuantity, &lot.UnitCost, &lot.ReceivedAt); err != nil {
			return nil, err
		}
		if expiry.Valid {
			lot.ExpirationDate = shared.NewDate(expiry.Time)
		}
		lots = append(lots, lot)
	}
	return lots, rows.Err()
}

// ListBalances returns stock on hand per product.
func (r *Repository) ListBalances(ctx context.Context, orgID int64) ([]Balance, error) {
	rows, err := r.pool.Query(ctx, `SELECT org_id, product_id, qty, avg_cost, updated_at FROM inventory_balances WHERE org_id = $1 ORDER BY product_id`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var balances []Balance
	for rows.Next() {
		var b Balance
		if err := rows.Scan(&b.OrgID, &b.ProductID, &b.Qty, &b.AvgCost, &b.UpdatedAt); err != nil {
			return nil, err
		}
		balances = append(balances, b)
	}
	return balances, rows.Err()
}

func (r *txRepo) InsertLot(ctx context.Context, lot Lot) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO inventory_lots (org_id, product_id, purchase_order_id, lot_number, expiration_date, quantity, measured_quantity, unit_cost, received_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
		lot.OrgID, lot.ProductID, lot.PurchaseOrderID, lot.LotNumber, lot.ExpirationDate.Time, lot.Quantity, lot.MeasuredQuantity, lot.UnitCost, lot.ReceivedAt).Scan(&id)
	return id, err
}

func (r *txRepo) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_movements (org_id, product_id, lot_id, type, quantity, unit_cost, ref_module, ref_id, note, posted_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`,
		m.OrgID, m.ProductID, m.LotID, string(m.Type), m.Quantity, m.UnitCost, m.RefModule, m.RefID, m.Note, m.PostedAt).Scan(&id)
	return id, err
}

func (r *txRepo) GetBalanceForUpdate(ctx context.Context, orgID, productID int64) (Balance, error) {
	b := Balance{OrgID: orgID, ProductID: productID}
	err := r.tx.QueryRow(ctx, `SELECT qty, avg_cost, updated_at FROM inventory_balances WHERE org_id = $1 AND product_id = $2 FOR UPDATE`,
		orgID, productID).Scan(&b.Qty, &b.AvgCost, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return b, ErrBalanceNotFound
	}
	return b, err
}

func (r *txRepo) UpsertBalance(ctx context.Context, b Balance) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO inventory_balances (org_id, product_id, qty, avg_cost, updated_at) VALUES ($1, $2, $3, $4, NOW())
ON CONFLICT (org_id, product_id) DO UPDATE SET qty = EXCLUDED.qty, avg_cost = EXCLUDED.avg_cost, updated_at = NOW()`,
		b.OrgID, b.ProductID, b.Qty, b.AvgCost)
	return err
}
