package accounts

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/backoffice/internal/shared"
)

var (
	// ErrAmountNotPositive rejects zero or negative payments.
	ErrAmountNotPositive = shared.Validationf("amount must be greater than zero")
	// ErrAmountPrecision rejects amounts finer than a cent.
	ErrAmountPrecision = shared.Validationf("amount must have at most 2 decimal places")
	// ErrAmountExceedsPending rejects payments larger than what is owed.
	ErrAmountExceedsPending = shared.Validationf("amount exceeds pending balance")
	// ErrBalanceDrift means the stored balance no longer matches its payments.
	ErrBalanceDrift = shared.Conflictf("account balance changed, refresh and retry")
)

// DeriveStatus maps a balance to its status. OVERDUE only ever replaces
// PENDING: a partially paid account stays PARTIAL after its due date.
func DeriveStatus(total, pending decimal.Decimal, dueDate shared.Date, asOf time.Time) Status {
	switch {
	case !pending.IsPositive():
		return StatusPaid
	case pending.LessThan(total):
		return StatusPartial
	case !dueDate.IsZero() && dueDate.Before(shared.NewDate(asOf)):
		return StatusOverdue
	default:
		return StatusPending
	}
}

// ApplyPayment returns acc with amount deducted from its pending balance.
func ApplyPayment(acc Account, amount decimal.Decimal, asOf time.Time) (Account, error) {
	if !amount.IsPositive() {
		return acc, ErrAmountNotPositive
	}
	if amount.GreaterThan(acc.PendingBalance) {
		return acc, ErrAmountExceedsPending
	}
	return withPending(acc, acc.PendingBalance.Sub(amount), asOf), nil
}

// ReplacePayment reverts oldAmount and applies newAmount in its place.
func ReplacePayment(acc Account, oldAmount, newAmount decimal.Decimal, asOf time.Time) (Account, error) {
	if !newAmount.IsPositive() {
		return acc, ErrAmountNotPositive
	}
	effective := acc.PendingBalance.Add(oldAmount)
	if effective.GreaterThan(acc.TotalAmount) {
		return acc, ErrBalanceDrift
	}
	if newAmount.GreaterThan(effective) {
		return acc, ErrAmountExceedsPending
	}
	return withPending(acc, effective.Sub(newAmount), asOf), nil
}

// RevertPayment fully reverses a payment's effect on the balance.
func RevertPayment(acc Account, amount decimal.Decimal, asOf time.Time) (Account, error) {
	pending := acc.PendingBalance.Add(amount)
	if pending.GreaterThan(acc.TotalAmount) {
		return acc, ErrBalanceDrift
	}
	return withPending(acc, pending, asOf), nil
}

func withPending(acc Account, pending decimal.Decimal, asOf time.Time) Account {
	acc.PendingBalance = pending
	acc.Status = DeriveStatus(acc.TotalAmount, pending, acc.DueDate, asOf)
	return acc
}
