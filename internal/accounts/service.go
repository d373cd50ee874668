package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/backoffice/internal/observability"
	"github.com/odyssey-erp/backoffice/internal/pricing"
	"github.com/odyssey-erp/backoffice/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetAccount(ctx context.Context, orgID, id int64) (Account, error)
	ListAccounts(ctx context.Context, orgID int64, filter ListFilter) ([]Account, int, error)
	ListOpen(ctx context.Context, orgID int64, kind Kind) ([]Account, error)
	ListPayments(ctx context.Context, orgID, accountID int64) ([]Payment, error)
	ListOverdueCandidates(ctx context.Context, asOf shared.Date) ([]Account, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service tracks receivable and payable balances.
type Service struct {
	repo      RepositoryPort
	audit     AuditPort
	metrics   *observability.Metrics
	logger    *slog.Logger
	termsDays int
	now       func() time.Time
}

// NewService constructs the accounts service. termsDays sets the default due
// date offset for newly opened accounts.
func NewService(repo RepositoryPort, audit AuditPort, metrics *observability.Metrics, logger *slog.Logger, termsDays int) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if termsDays < 0 {
		termsDays = 0
	}
	return &Service{repo: repo, audit: audit, metrics: metrics, logger: logger, termsDays: termsDays, now: time.Now}
}

// OpenInput describes the obligation created for an order.
type OpenInput struct {
	Kind           Kind
	OrderID        int64
	OrderNumber    string
	CounterpartyID int64
	Total          decimal.Decimal
	DueDate        shared.Date
}

// PaymentInput is the payload for registering or editing a payment.
type PaymentInput struct {
	Amount          decimal.Decimal
	Method          Method
	PaymentDate     shared.Date
	ReferenceNumber string
	Notes           string
}

// OpenForOrder creates the account for an order inside the caller's
// transaction. Each order gets at most one account of a kind.
func (s *Service) OpenForOrder(ctx context.Context, tx TxRepository, orgID int64, input OpenInput) (Account, error) {
	if !input.Kind.IsValid() {
		return Account{}, shared.Validationf("account kind is not supported")
	}
	if input.OrderID == 0 || input.CounterpartyID == 0 {
		return Account{}, shared.Validationf("account requires an order and a counterparty")
	}
	total := pricing.RoundMoney(pricing.ClampNonNegative(input.Total))
	now := s.now()
	due := input.DueDate
	if due.IsZero() {
		due = shared.NewDate(now.AddDate(0, 0, s.termsDays))
	}
	acc := Account{
		OrgID:          orgID,
		Kind:           input.Kind,
		OrderID:        input.OrderID,
		CounterpartyID: input.CounterpartyID,
		Number:         accountNumber(input.Kind, input.OrderNumber, input.OrderID),
		TotalAmount:    total,
		PendingBalance: total,
		DueDate:        due,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	acc.Status = DeriveStatus(acc.TotalAmount, acc.PendingBalance, acc.DueDate, now)
	id, err := tx.InsertAccount(ctx, acc)
	if err != nil {
		return Account{}, err
	}
	acc.ID = id
	return acc, nil
}

// CloseForOrder removes the account opened for an order. Accounts that
// already carry payments cannot be removed.
func (s *Service) CloseForOrder(ctx context.Context, tx TxRepository, orgID int64, kind Kind, orderID int64) error {
	acc, err := tx.LockAccountByOrder(ctx, orgID, kind, orderID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil
		}
		return err
	}
	count, err := tx.CountPayments(ctx, orgID, acc.ID)
	if err != nil {
		return err
	}
	if count > 0 {
		return shared.Validationf("account has registered payments, remove them first")
	}
	return tx.DeleteAccount(ctx, orgID, acc.ID)
}

// RegisterPayment applies a new payment against an account.
func (s *Service) RegisterPayment(ctx context.Context, orgID, accountID int64, input PaymentInput) (Payment, Account, error) {
	var payment Payment
	var updated Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		acc, err := tx.LockAccount(ctx, orgID, accountID)
		if err != nil {
			return err
		}
		payment, err = s.preparePayment(orgID, accountID, input)
		if err != nil {
			return err
		}
		updated, err = ApplyPayment(acc, payment.Amount, s.now())
		if err != nil {
			return err
		}
		if err := tx.UpdateBalance(ctx, updated); err != nil {
			return err
		}
		payment.ID, err = tx.InsertPayment(ctx, payment)
		return err
	})
	s.metrics.ObservePayment(string(updated.Kind), "register", err)
	if err != nil {
		return Payment{}, Account{}, err
	}
	s.recordAudit(ctx, orgID, "PAYMENT_REGISTER", updated.ID, map[string]any{
		"payment_id": payment.ID,
		"amount":     payment.Amount.StringFixed(pricing.MoneyPlaces),
		"pending":    updated.PendingBalance.StringFixed(pricing.MoneyPlaces),
	})
	return payment, updated, nil
}

// EditPayment replaces an existing payment, re-validating the new amount
// against the balance with the old amount reverted first.
func (s *Service) EditPayment(ctx context.Context, orgID, paymentID int64, input PaymentInput) (Payment, Account, error) {
	var payment Payment
	var updated Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		existing, err := tx.GetPayment(ctx, orgID, paymentID)
		if err != nil {
			return err
		}
		acc, err := tx.LockAccount(ctx, orgID, existing.AccountID)
		if err != nil {
			return err
		}
		payment, err = s.preparePayment(orgID, existing.AccountID, input)
		if err != nil {
			return err
		}
		payment.ID = existing.ID
		payment.CreatedAt = existing.CreatedAt
		updated, err = ReplacePayment(acc, existing.Amount, payment.Amount, s.now())
		if err != nil {
			return err
		}
		if err := tx.UpdateBalance(ctx, updated); err != nil {
			return err
		}
		return tx.UpdatePayment(ctx, payment)
	})
	s.metrics.ObservePayment(string(updated.Kind), "edit", err)
	if err != nil {
		return Payment{}, Account{}, err
	}
	s.recordAudit(ctx, orgID, "PAYMENT_EDIT", updated.ID, map[string]any{
		"payment_id": payment.ID,
		"amount":     payment.Amount.StringFixed(pricing.MoneyPlaces),
		"pending":    updated.PendingBalance.StringFixed(pricing.MoneyPlaces),
	})
	return payment, updated, nil
}

// DeletePayment removes a payment and restores its amount to the balance.
func (s *Service) DeletePayment(ctx context.Context, orgID, paymentID int64) (Account, error) {
	var updated Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		existing, err := tx.GetPayment(ctx, orgID, paymentID)
		if err != nil {
			return err
		}
		acc, err := tx.LockAccount(ctx, orgID, existing.AccountID)
		if err != nil {
			return err
		}
		updated, err = RevertPayment(acc, existing.Amount, s.now())
		if err != nil {
			return err
		}
		if err := tx.DeletePayment(ctx, orgID, paymentID); err != nil {
			return err
		}
		return tx.UpdateBalance(ctx, updated)
	})
	s.metrics.ObservePayment(string(updated.Kind), "delete", err)
	if err != nil {
		return Account{}, err
	}
	s.recordAudit(ctx, orgID, "PAYMENT_DELETE", updated.ID, map[string]any{"payment_id": paymentID})
	return updated, nil
}

// Get returns an account with its status evaluated as of now.
func (s *Service) Get(ctx context.Context, orgID, id int64) (Account, error) {
	acc, err := s.repo.GetAccount(ctx, orgID, id)
	if err != nil {
		return Account{}, err
	}
	acc.Status = DeriveStatus(acc.TotalAmount, acc.PendingBalance, acc.DueDate, s.now())
	return acc, nil
}

// ListPayments returns the payments applied to an account.
func (s *Service) ListPayments(ctx context.Context, orgID, accountID int64) ([]Payment, error) {
	if _, err := s.repo.GetAccount(ctx, orgID, accountID); err != nil {
		return nil, err
	}
	return s.repo.ListPayments(ctx, orgID, accountID)
}

// List returns a page of accounts and pagination metadata.
func (s *Service) List(ctx context.Context, orgID int64, filter ListFilter) ([]Account, shared.Pagination, error) {
	if filter.Kind != "" && !filter.Kind.IsValid() {
		return nil, shared.Pagination{}, shared.Validationf("account kind is not supported")
	}
	items, total, err := s.repo.ListAccounts(ctx, orgID, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	now := s.now()
	for i := range items {
		items[i].Status = DeriveStatus(items[i].TotalAmount, items[i].PendingBalance, items[i].DueDate, now)
	}
	return items, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// Aging groups open balances of a kind by days past due.
func (s *Service) Aging(ctx context.Context, orgID int64, kind Kind, asOf time.Time) (AgingBucket, error) {
	if !kind.IsValid() {
		return AgingBucket{}, shared.Validationf("account kind is not supported")
	}
	items, err := s.repo.ListOpen(ctx, orgID, kind)
	if err != nil {
		return AgingBucket{}, err
	}
	if asOf.IsZero() {
		asOf = s.now()
	}
	return bucketize(items, shared.NewDate(asOf)), nil
}

func bucketize(items []Account, asOf shared.Date) AgingBucket {
	var bucket AgingBucket
	for _, acc := range items {
		if !acc.PendingBalance.IsPositive() {
			continue
		}
		days := 0
		if !acc.DueDate.IsZero() {
			days = int(asOf.Sub(acc.DueDate.Time).Hours() / 24)
		}
		switch {
		case days <= 0:
			bucket.Current = bucket.Current.Add(acc.PendingBalance)
		case days <= 30:
			bucket.Bucket30 = bucket.Bucket30.Add(acc.PendingBalance)
		case days <= 60:
			bucket.Bucket60 = bucket.Bucket60.Add(acc.PendingBalance)
		case days <= 90:
			bucket.Bucket90 = bucket.Bucket90.Add(acc.PendingBalance)
		default:
			bucket.Bucket120 = bucket.Bucket120.Add(acc.PendingBalance)
		}
	}
	return bucket
}

// RefreshOverdue persists the OVERDUE status for every pending account whose
// due date has passed. It returns the number of accounts updated.
func (s *Service) RefreshOverdue(ctx context.Context, asOf time.Time) (int, error) {
	if asOf.IsZero() {
		asOf = s.now()
	}
	candidates, err := s.repo.ListOverdueCandidates(ctx, shared.NewDate(asOf))
	if err != nil {
		return 0, err
	}
	updated := 0
	for _, candidate := range candidates {
		err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			acc, err := tx.LockAccount(ctx, candidate.OrgID, candidate.ID)
			if err != nil {
				return err
			}
			status := DeriveStatus(acc.TotalAmount, acc.PendingBalance, acc.DueDate, asOf)
			if status == acc.Status {
				return nil
			}
			acc.Status = status
			if err := tx.UpdateBalance(ctx, acc); err != nil {
				return err
			}
			updated++
			return nil
		})
		if err != nil {
			s.logger.Error("refresh overdue account", slog.Int64("account_id", candidate.ID), slog.Any("error", err))
			return updated, err
		}
	}
	return updated, nil
}

func (s *Service) preparePayment(orgID, accountID int64, input PaymentInput) (Payment, error) {
	if input.Method == "" {
		input.Method = MethodCash
	}
	if _, ok := methods[input.Method]; !ok {
		return Payment{}, shared.Validationf("payment method is not supported")
	}
	if !input.Amount.Equal(input.Amount.Truncate(pricing.MoneyPlaces)) {
		return Payment{}, ErrAmountPrecision
	}
	date := input.PaymentDate
	if date.IsZero() {
		date = shared.NewDate(s.now())
	}
	return Payment{
		OrgID:           orgID,
		AccountID:       accountID,
		Amount:          input.Amount,
		Method:          input.Method,
		PaymentDate:     date,
		ReferenceNumber: strings.TrimSpace(input.ReferenceNumber),
		Notes:           strings.TrimSpace(input.Notes),
		CreatedAt:       s.now(),
	}, nil
}

func (s *Service) recordAudit(ctx context.Context, orgID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{OrgID: orgID, Action: action, Entity: "account", EntityID: entityID, Meta: meta}); err != nil {
		s.logger.Warn("record audit", slog.String("action", action), slog.Any("error", err))
	}
}

func accountNumber(kind Kind, orderNumber string, orderID int64) string {
	if orderNumber != "" {
		return fmt.Sprintf("%s-%s", kind.numberPrefix(), orderNumber)
	}
	return fmt.Sprintf("%s-%d", kind.numberPrefix(), orderID)
}
