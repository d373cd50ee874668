package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/backoffice/internal/platform/db"
	"github.com/odyssey-erp/backoffice/internal/shared"
)

// Repository provides PostgreSQL backed persistence for accounts.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	LockAccount(ctx context.Context, orgID, id int64) (Account, error)
	LockAccountByOrder(ctx context.Context, orgID int64, kind Kind, orderID int64) (Account, error)
	InsertAccount(ctx context.Context, acc Account) (int64, error)
	UpdateBalance(ctx context.Context, acc Account) error
	DeleteAccount(ctx context.Context, orgID, id int64) error
	GetPayment(ctx context.Context, orgID, id int64) (Payment, error)
	CountPayments(ctx context.Context, orgID, accountID int64) (int, error)
	InsertPayment(ctx context.Context, payment Payment) (int64, error)
	UpdatePayment(ctx context.Context, payment Payment) error
	DeletePayment(ctx context.Context, orgID, id int64) error
}

type txRepo struct {
	tx pgx.Tx
}

// BindTx exposes account writes on a transaction owned by another module,
// so orders and their accounts commit together.
func BindTx(tx pgx.Tx) TxRepository {
	return &txRepo{tx: tx}
}

// WithTx wraps callback in repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return mapError(db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	}))
}

const accountColumns = `id, org_id, kind, order_id, counterparty_id, number, total_amount, pending_balance, status, due_date, created_at, updated_at`

const paymentColumns = `id, org_id, account_id, amount, method, payment_date, reference_number, notes, created_at`

// GetAccount returns an account scoped to the organization.
func (r *Repository) GetAccount(ctx context.Context, orgID, id int64) (Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE org_id=$1 AND id=$2`, orgID, id)
	return scanAccount(row)
}

// ListAccounts returns a filtered page of accounts and the total row count.
func (r *Repository) ListAccounts(ctx context.Context, orgID int64, filter ListFilter) ([]Account, int, error) {
	where := []string{"org_id=$1"}
	args := []any{orgID}
	if filter.Kind != "" {
		args = append(args, string(filter.Kind))
		where = append(where, fmt.Sprintf("kind=$%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status=$%d", len(args)))
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM accounts WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	limit, offset := shared.LimitOffset(filter.Page, filter.PerPage)
	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM accounts WHERE %s ORDER BY due_date, id LIMIT $%d OFFSET $%d`, accountColumns, clause, len(args)-1, len(args))
	items, err := r.queryAccounts(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListOpen returns accounts of a kind that still carry a balance.
func (r *Repository) ListOpen(ctx context.Context, orgID int64, kind Kind) ([]Account, error) {
	return r.queryAccounts(ctx, `SELECT `+accountColumns+` FROM accounts WHERE org_id=$1 AND kind=$2 AND pending_balance > 0 ORDER BY due_date`, orgID, string(kind))
}

// ListOverdueCandidates returns pending accounts across organizations whose
// due date is before asOf.
func (r *Repository) ListOverdueCandidates(ctx context.Context, asOf shared.Date) ([]Account, error) {
	return r.queryAccounts(ctx, `SELECT `+accountColumns+` FROM accounts WHERE status=$1 AND due_date < $2 ORDER BY org_id, id`, string(StatusPending), asOf.Time)
}

// ListPayments returns payments of an account ordered by date.
func (r *Repository) ListPayments(ctx context.Context, orgID, accountID int64) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+paymentColumns+` FROM account_payments WHERE org_id=$1 AND account_id=$2 ORDER BY payment_date, id`, orgID, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var payments []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (r *Repository) queryAccounts(ctx context.Context, query string, args ...any) ([]Account, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, acc)
	}
	return items, rows.Err()
}

func (t *txRepo) LockAccount(ctx context.Context, orgID, id int64) (Account, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE org_id=$1 AND id=$2 FOR UPDATE`, orgID, id)
	acc, err := scanAccount(row)
	return acc, mapError(err)
}

func (t *txRepo) LockAccountByOrder(ctx context.Context, orgID int64, kind Kind, orderID int64) (Account, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE org_id=$1 AND kind=$2 AND order_id=$3 FOR UPDATE`, orgID, string(kind), orderID)
	acc, err := scanAccount(row)
	return acc, mapError(err)
}

func (t *txRepo) InsertAccount(ctx context.Context, acc Account) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO accounts (org_id, kind, order_id, counterparty_id, number, total_amount, pending_balance, status, due_date, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id`,
		acc.OrgID, string(acc.Kind), acc.OrderID, acc.CounterpartyID, acc.Number, acc.TotalAmount, acc.PendingBalance,
		string(acc.Status), dateArg(acc.DueDate), acc.CreatedAt, acc.UpdatedAt).Scan(&id)
	return id, mapError(err)
}

func (t *txRepo) UpdateBalance(ctx context.Context, acc Account) error {
	tag, err := t.tx.Exec(ctx, `UPDATE accounts SET pending_balance=$1, status=$2, updated_at=NOW() WHERE org_id=$3 AND id=$4`,
		acc.PendingBalance, string(acc.Status), acc.OrgID, acc.ID)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (t *txRepo) DeleteAccount(ctx context.Context, orgID, id int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM accounts WHERE org_id=$1 AND id=$2`, orgID, id)
	return mapError(err)
}

func (t *txRepo) GetPayment(ctx context.Context, orgID, id int64) (Payment, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+paymentColumns+` FROM account_payments WHERE org_id=$1 AND id=$2`, orgID, id)
	p, err := scanPayment(row)
	return p, mapError(err)
}

func (t *txRepo) CountPayments(ctx context.Context, orgID, accountID int64) (int, error) {
	var count int
	err := t.tx.QueryRow(ctx, `SELECT COUNT(*) FROM account_payments WHERE org_id=$1 AND account_id=$2`, orgID, accountID).Scan(&count)
	return count, err
}

func (t *txRepo) InsertPayment(ctx context.Context, p Payment) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO account_payments (org_id, account_id, amount, method, payment_date, reference_number, notes, created_at)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8) RETURNING id`,
		p.OrgID, p.AccountID, p.Amount, string(p.Method), dateArg(p.PaymentDate), p.ReferenceNumber, p.Notes, p.CreatedAt).Scan(&id)
	return id, mapError(err)
}

func (t *txRepo) UpdatePayment(ctx context.Context, p Payment) error {
	tag, err := t.tx.Exec(ctx, `UPDATE account_payments SET amount=$1, method=$2, payment_date=$3, reference_number=NULLIF($4, ''), notes=NULLIF($5, '')
WHERE org_id=$6 AND id=$7`, p.Amount, string(p.Method), dateArg(p.PaymentDate), p.ReferenceNumber, p.Notes, p.OrgID, p.ID)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (t *txRepo) DeletePayment(ctx context.Context, orgID, id int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM account_payments WHERE org_id=$1 AND id=$2`, orgID, id)
	return mapError(err)
}

func scanAccount(row pgx.Row) (Account, error) {
	var acc Account
	var kind, status string
	var due pgtype.Date
	err := row.Scan(&acc.ID, &acc.OrgID, &kind, &acc.OrderID, &acc.CounterpartyID, &acc.Number,
		&acc.TotalAmount, &acc.PendingBalance, &status, &due, &acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, shared.ErrNotFound
		}
		return Account{}, err
	}
	acc.Kind = Kind(kind)
	acc.Status = Status(status)
	if due.Valid {
		acc.DueDate = shared.NewDate(due.Time)
	}
	return acc, nil
}

func scanPayment(row pgx.Row) (Payment, error) {
	var p Payment
	var method string
	var date pgtype.Date
	var reference, notes pgtype.Text
	err := row.Scan(&p.ID, &p.OrgID, &p.AccountID, &p.Amount, &method, &date, &reference, &notes, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Payment{}, shared.ErrNotFound
		}
		return Payment{}, err
	}
	p.Method = Method(method)
	if date.Valid {
		p.PaymentDate = shared.NewDate(date.Time)
	}
	p.ReferenceNumber = reference.String
	p.Notes = notes.String
	return p, nil
}

func dateArg(d shared.Date) any {
	if d.IsZero() {
		return nil
	}
	return d.Time
}

// mapError translates constraint and serialization failures into the
// consistency errors callers know how to surface.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23514":
		return ErrAmountExceedsPending
	case "23505":
		return shared.Conflictf("an account already exists for this order")
	case "40001", "40P01":
		return shared.Conflictf("account changed by another request, refresh and retry")
	}
	return err
}
