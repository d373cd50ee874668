package accounts

import (
	"context"
	"math/rand"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/backoffice/internal/shared"
)

type memoryAccountsRepo struct {
	accounts map[int64]Account
	payments map[int64]Payment
	nextID   int64
}

type memoryAccountsTx struct {
	repo *memoryAccountsRepo
}

func newMemoryAccountsRepo() *memoryAccountsRepo {
	return &memoryAccountsRepo{accounts: make(map[int64]Account), payments: make(map[int64]Payment)}
}

// WithTx applies writes to a copy and only publishes them when fn succeeds.
func (r *memoryAccountsRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	staged := &memoryAccountsRepo{accounts: make(map[int64]Account), payments: make(map[int64]Payment), nextID: r.nextID}
	for k, v := range r.accounts {
		staged.accounts[k] = v
	}
	for k, v := range r.payments {
		staged.payments[k] = v
	}
	if err := fn(ctx, &memoryAccountsTx{repo: staged}); err != nil {
		return err
	}
	r.accounts, r.payments, r.nextID = staged.accounts, staged.payments, staged.nextID
	return nil
}

func (r *memoryAccountsRepo) GetAccount(ctx context.Context, orgID, id int64) (Account, error) {
	acc, ok := r.accounts[id]
	if !ok || acc.OrgID != orgID {
		return Account{}, shared.ErrNotFound
	}
	return acc, nil
}

func (r *memoryAccountsRepo) ListAccounts(ctx context.Context, orgID int64, filter ListFilter) ([]Account, int, error) {
	var items []Account
	for _, acc := range r.sorted() {
		if acc.OrgID != orgID || (filter.Kind != "" && acc.Kind != filter.Kind) || (filter.Status != "" && acc.Status != filter.Status) {
			continue
		}
		items = append(items, acc)
	}
	return items, len(items), nil
}

func (r *memoryAccountsRepo) ListOpen(ctx context.Context, orgID int64, kind Kind) ([]Account, error) {
	var items []Account
	for _, acc := range r.sorted() {
		if acc.OrgID == orgID && acc.Kind == kind && acc.PendingBalance.IsPositive() {
			items = append(items, acc)
		}
	}
	return items, nil
}

func (r *memoryAccountsRepo) ListPayments(ctx context.Context, orgID, accountID int64) ([]Payment, error) {
	var items []Payment
	for _, p := range r.payments {
		if p.OrgID == orgID && p.AccountID == accountID {
			items = append(items, p)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (r *memoryAccountsRepo) ListOverdueCandidates(ctx context.Context, asOf shared.Date) ([]Account, error) {
	var items []Account
	for _, acc := range r.sorted() {
		if acc.Status == StatusPending && acc.DueDate.Before(asOf) {
			items = append(items, acc)
		}
	}
	return items, nil
}

func (r *memoryAccountsRepo) sorted() []Account {
	items := make([]Account, 0, len(r.accounts))
	for _, acc := range r.accounts {
		items = append(items, acc)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

func (t *memoryAccountsTx) LockAccount(ctx context.Context, orgID, id int64) (Account, error) {
	return t.repo.GetAccount(ctx, orgID, id)
}

func (t *memoryAccountsTx) LockAccountByOrder(ctx context.Context, orgID int64, kind Kind, orderID int64) (Account, error) {
	for _, acc := range t.repo.accounts {
		if acc.OrgID == orgID && acc.Kind == kind && acc.OrderID == orderID {
			return acc, nil
		}
	}
	return Account{}, shared.ErrNotFound
}

func (t *memoryAccountsTx) InsertAccount(ctx context.Context, acc Account) (int64, error) {
	if _, err := t.LockAccountByOrder(ctx, acc.OrgID, acc.Kind, acc.OrderID); err == nil {
		return 0, shared.Conflictf("an account already exists for this order")
	}
	t.repo.nextID++
	acc.ID = t.repo.nextID
	t.repo.accounts[acc.ID] = acc
	return acc.ID, nil
}

func (t *memoryAccountsTx) UpdateBalance(ctx context.Context, acc Account) error {
	if acc.PendingBalance.IsNegative() || acc.PendingBalance.GreaterThan(acc.TotalAmount) {
		return ErrAmountExceedsPending
	}
	t.repo.accounts[acc.ID] = acc
	return nil
}

func (t *memoryAccountsTx) DeleteAccount(ctx context.Context, orgID, id int64) error {
	delete(t.repo.accounts, id)
	return nil
}

func (t *memoryAccountsTx) GetPayment(ctx context.Context, orgID, id int64) (Payment, error) {
	p, ok := t.repo.payments[id]
	if !ok || p.OrgID != orgID {
		return Payment{}, shared.ErrNotFound
	}
	return p, nil
}

func (t *memoryAccountsTx) CountPayments(ctx context.Context, orgID, accountID int64) (int, error) {
	items, _ := t.repo.ListPayments(ctx, orgID, accountID)
	return len(items), nil
}

func (t *memoryAccountsTx) InsertPayment(ctx context.Context, p Payment) (int64, error) {
	t.repo.nextID++
	p.ID = t.repo.nextID
	t.repo.payments[p.ID] = p
	return p.ID, nil
}

func (t *memoryAccountsTx) UpdatePayment(ctx context.Context, p Payment) error {
	t.repo.payments[p.ID] = p
	return nil
}

func (t *memoryAccountsTx) DeletePayment(ctx context.Context, orgID, id int64) error {
	delete(t.repo.payments, id)
	return nil
}

const testOrg = int64(7)

var fixedNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestService(repo *memoryAccountsRepo) *Service {
	svc := NewService(repo, nil, nil, nil, 30)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func openAccount(t *testing.T, svc *Service, repo *memoryAccountsRepo, total string) Account {
	t.Helper()
	var acc Account
	err := repo.WithTx(context.Background(), func(ctx context.Context, tx TxRepository) error {
		var err error
		acc, err = svc.OpenForOrder(ctx, tx, testOrg, OpenInput{Kind: KindReceivable, OrderID: 11, OrderNumber: "SO-11", CounterpartyID: 3, Total: d(total)})
		return err
	})
	require.NoError(t, err)
	return acc
}

func TestOpenForOrderDefaults(t *testing.T) {
	repo := newMemoryAccountsRepo()
	svc := newTestService(repo)
	acc := openAccount(t, svc, repo, "500.004")

	assert.Equal(t, "AR-SO-11", acc.Number)
	assert.True(t, acc.TotalAmount.Equal(d("500")))
	assert.True(t, acc.PendingBalance.Equal(acc.TotalAmount))
	assert.Equal(t, StatusPending, acc.Status)
	assert.Equal(t, "2025-04-09", acc.DueDate.String())

	err := repo.WithTx(context.Background(), func(ctx context.Context, tx TxRepository) error {
		_, err := svc.OpenForOrder(ctx, tx, testOrg, OpenInput{Kind: KindReceivable, OrderID: 11, CounterpartyID: 3, Total: d("1")})
		return err
	})
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestRegisterPaymentFullThenRejectsOverpayment(t *testing.T) {
	repo := newMemoryAccountsRepo()
	svc := newTestService(repo)
	acc := openAccount(t, svc, repo, "500")
	ctx := context.Background()

	_, updated, err := svc.RegisterPayment(ctx, testOrg, acc.ID, PaymentInput{Amount: d("500"), Method: MethodTransfer})
	require.NoError(t, err)
	assert.True(t, updated.PendingBalance.IsZero())
	assert.Equal(t, StatusPaid, updated.Status)

	_, _, err = svc.RegisterPayment(ctx, testOrg, acc.ID, PaymentInput{Amount: d("1")})
	require.ErrorIs(t, err, shared.ErrValidation)
	assert.Equal(t, "amount exceeds pending balance", shared.Reason(err))

	payments, err := svc.ListPayments(ctx, testOrg, acc.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, "2025-03-10", payments[0].PaymentDate.String())
}

func TestRegisterPaymentRejectsNonPositive(t *testing.T) {
	repo := newMemoryAccountsRepo()
	svc := newTestService(repo)
	acc := openAccount(t, svc, repo, "100")

	for _, amount := range []string{"0", "-5"} {
		_, _, err := svc.RegisterPayment(context.Background(), testOrg, acc.ID, PaymentInput{Amount: d(amount)})
		require.ErrorIs(t, err, ErrAmountNotPositive)
		assert.Equal(t, "amount must be greater than zero", shared.Reason(err))
	}
	stored, err := svc.Get(context.Background(), testOrg, acc.ID)
	require.NoError(t, err)
	assert.True(t, stored.PendingBalance.Equal(d("100")))
}

func TestRegisterPaymentRejectsSubCentAmounts(t *testing.T) {
	repo := newMemoryAccountsRepo()
	svc := newTestService(repo)
	acc := openAccount(t, svc, repo, "200")

	_, _, err := svc.RegisterPayment(context.Background(), testOrg, acc.ID, PaymentInput{Amount: d("100.005")})
	require.ErrorIs(t, err, ErrAmountPrecision)
	assert.Equal(t, "amount must have at most 2 decimal places", shared.Reason(err))

	payment, _, err := svc.RegisterPayment(context.Background(), testOrg, acc.ID, PaymentInput{Amount: d("100.50")})
	require.NoError(t, err)
	assert.True(t, payment.Amount.Equal(d("100.5")))

	stored, err := svc.Get(context.Background(), testOrg, acc.ID)
	require.NoError(t, err)
	assert.True(t, stored.PendingBalance.Equal(d("99.5")))
}

func TestEditPaymentRevalidatesAgainstRevertedBalance(t *testing.T) {
	repo := newMemoryAccountsRepo()
	svc := newTestService(repo)
	acc := openAccount(t, svc, repo, "500")
	ctx := context.Background()

	payment, updated, err := svc.RegisterPayment(ctx, testOrg, acc.ID, PaymentInput{Amount: d("200"), Method: MethodCash})
	require.NoError(t, err)
	require.True(t, updated.PendingBalance.Equal(d("300")))

	edited, updated, err := svc.EditPayment(ctx, testOrg, payment.ID, PaymentInput{Amount: d("350"), Method: MethodCheck, ReferenceNumber: " CHK-1 "})
	require.NoError(t, err)
	assert.True(t, updated.PendingBalance.Equal(d("150")))
	assert.Equal(t, StatusPartial, updated.Status)
	assert.Equal(t, "CHK-1", edited.ReferenceNumber)
	assert.Equal(t, payment.ID, edited.ID)

	_, _, err = svc.EditPayment(ctx, testOrg, payment.ID, PaymentInput{Amount: d("500.01")})
	require.ErrorIs(t, err, ErrAmountExceedsPending)
	stored, _ := svc.Get(ctx, testOrg, acc.ID)
	assert.True(t, stored.PendingBalance.Equal(d("150")))
}

func TestDeletePaymentRestoresBalance(t *testing.T) {
	repo := newMemoryAccountsRepo()
	svc := newTestService(repo)
	acc := openAccount(t, svc, repo, "80")
	ctx := context.Background()

	payment, _, err := svc.RegisterPayment(ctx, testOrg, acc.ID, PaymentInput{Amount: d("30")})
	require.NoError(t, err)

	updated, err := svc.DeletePayment(ctx, testOrg, payment.ID)
	require.NoError(t, err)
	assert.True(t, updated.PendingBalance.Equal(d("80")))
	assert.Equal(t, StatusPending, updated.Status)

	_, err = svc.DeletePayment(ctx, testOrg, payment.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestPaymentsAreScopedByOrg(t *testing.T) {
	repo := newMemoryAccountsRepo()
	svc := newTestService(repo)
	acc := openAccount(t, svc, repo, "80")

	_, _, err := svc.RegisterPayment(context.Background(), testOrg+1, acc.ID, PaymentInput{Amount: d("10")})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestBalanceStaysWithinBoundsUnderRandomOperations(t *testing.T) {
	repo := newMemoryAccountsRepo()
	svc := newTestService(repo)
	acc := openAccount(t, svc, repo, "1000")
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	var live []int64
	for i := 0; i < 300; i++ {
		amount := decimal.NewFromInt(int64(rng.Intn(400) - 20))
		switch op := rng.Intn(3); {
		case op == 0 || len(live) == 0:
			p, _, err := svc.RegisterPayment(ctx, testOrg, acc.ID, PaymentInput{Amount: amount})
			if err == nil {
				live = append(live, p.ID)
			}
		case op == 1:
			_, _, _ = svc.EditPayment(ctx, testOrg, live[rng.Intn(len(live))], PaymentInput{Amount: amount})
		default:
			idx := rng.Intn(len(live))
			if _, err := svc.DeletePayment(ctx, testOrg, live[idx]); err == nil {
				live = append(live[:idx], live[idx+1:]...)
			}
		}

		stored, err := svc.Get(ctx, testOrg, acc.ID)
		require.NoError(t, err)
		require.False(t, stored.PendingBalance.IsNegative())
		require.False(t, stored.PendingBalance.GreaterThan(stored.TotalAmount))

		payments, err := svc.ListPayments(ctx, testOrg, acc.ID)
		require.NoError(t, err)
		paid := decimal.Zero
		for _, p := range payments {
			paid = paid.Add(p.Amount)
		}
		require.True(t, stored.TotalAmount.Sub(paid).Equal(stored.PendingBalance), "pending must equal total minus payments")
	}
}

func TestDeriveStatus(t *testing.T) {
	due := shared.NewDate(fixedNow.AddDate(0, 0, -1))
	future := shared.NewDate(fixedNow.AddDate(0, 0, 1))
	cases := []struct {
		name    string
		pending string
		due     shared.Date
		want    Status
	}{
		{"paid", "0", due, StatusPaid},
		{"partial", "40", future, StatusPartial},
		{"partial past due stays partial", "40", due, StatusPartial},
		{"pending", "100", future, StatusPending},
		{"pending without due date", "100", shared.Date{}, StatusPending},
		{"overdue", "100", due, StatusOverdue},
		{"due today is not overdue", "100", shared.NewDate(fixedNow), StatusPending},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DeriveStatus(d("100"), d(tc.pending), tc.due, fixedNow))
		})
	}
}

func TestRefreshOverdueAndAging(t *testing.T) {
	repo := newMemoryAccountsRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	svc.now = func() time.Time { return fixedNow.AddDate(-1, 0, 0) }
	dues := []time.Time{fixedNow.AddDate(0, 0, 5), fixedNow.AddDate(0, 0, -10), fixedNow.AddDate(0, 0, -45), fixedNow.AddDate(0, 0, -200)}
	var ids []int64
	for i, due := range dues {
		err := repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			acc, err := svc.OpenForOrder(ctx, tx, testOrg, OpenInput{Kind: KindPayable, OrderID: int64(100 + i), CounterpartyID: 9, Total: d("100"), DueDate: shared.NewDate(due)})
			ids = append(ids, acc.ID)
			return err
		})
		require.NoError(t, err)
	}
	_, _, err := svc.RegisterPayment(ctx, testOrg, ids[2], PaymentInput{Amount: d("25")})
	require.NoError(t, err)
	svc.now = func() time.Time { return fixedNow }

	updated, err := svc.RefreshOverdue(ctx, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, 2, updated)
	assert.Equal(t, StatusOverdue, repo.accounts[ids[1]].Status)
	assert.Equal(t, StatusPartial, repo.accounts[ids[2]].Status)
	assert.Equal(t, StatusPending, repo.accounts[ids[0]].Status)

	bucket, err := svc.Aging(ctx, testOrg, KindPayable, fixedNow)
	require.NoError(t, err)
	assert.True(t, bucket.Current.Equal(d("100")))
	assert.True(t, bucket.Bucket30.Equal(d("100")))
	assert.True(t, bucket.Bucket60.Equal(d("75")))
	assert.True(t, bucket.Bucket120.Equal(d("100")))
	assert.True(t, bucket.Total().Equal(d("375")))

	_, err = svc.Aging(ctx, testOrg, Kind("BOGUS"), fixedNow)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCloseForOrder(t *testing.T) {
	repo := newMemoryAccountsRepo()
	svc := newTestService(repo)
	acc := openAccount(t, svc, repo, "90")
	ctx := context.Background()

	_, _, err := svc.RegisterPayment(ctx, testOrg, acc.ID, PaymentInput{Amount: d("10")})
	require.NoError(t, err)
	err = repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return svc.CloseForOrder(ctx, tx, testOrg, KindReceivable, acc.OrderID)
	})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Contains(t, repo.accounts, acc.ID)

	payments, _ := svc.ListPayments(ctx, testOrg, acc.ID)
	_, err = svc.DeletePayment(ctx, testOrg, payments[0].ID)
	require.NoError(t, err)
	err = repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return svc.CloseForOrder(ctx, tx, testOrg, KindReceivable, acc.OrderID)
	})
	require.NoError(t, err)
	require.NotContains(t, repo.accounts, acc.ID)

	err = repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return svc.CloseForOrder(ctx, tx, testOrg, KindReceivable, acc.OrderID)
	})
	require.NoError(t, err)
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod(" Credit_Card ")
	require.NoError(t, err)
	assert.Equal(t, MethodCreditCard, m)
	_, err = ParseMethod("barter")
	require.ErrorIs(t, err, shared.ErrValidation)
}
