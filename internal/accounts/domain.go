package accounts

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/backoffice/internal/shared"
)

// Kind distinguishes money owed to the org from money it owes.
type Kind string

const (
	// KindReceivable is opened when a sales order is confirmed.
	KindReceivable Kind = "RECEIVABLE"
	// KindPayable is opened when a purchase order is received.
	KindPayable Kind = "PAYABLE"
)

// IsValid reports whether k is a known kind.
func (k Kind) IsValid() bool {
	return k == KindReceivable || k == KindPayable
}

func (k Kind) numberPrefix() string {
	if k == KindPayable {
		return "AP"
	}
	return "AR"
}

// Status of an account, always derived from its balance.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusPartial Status = "PARTIAL"
	StatusPaid    Status = "PAID"
	StatusOverdue Status = "OVERDUE"
)

// IsOpen reports whether money is still outstanding.
func (s Status) IsOpen() bool {
	return s != StatusPaid
}

// Method enumerates how a payment was made.
type Method string

const (
	MethodCash       Method = "cash"
	MethodTransfer   Method = "transfer"
	MethodCheck      Method = "check"
	MethodCreditCard Method = "credit_card"
	MethodDebitCard  Method = "debit_card"
	MethodOther      Method = "other"
)

var methods = map[Method]struct{}{
	MethodCash:       {},
	MethodTransfer:   {},
	MethodCheck:      {},
	MethodCreditCard: {},
	MethodDebitCard:  {},
	MethodOther:      {},
}

// ParseMethod validates a payment method name.
func ParseMethod(value string) (Method, error) {
	m := Method(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := methods[m]; !ok {
		return "", shared.Validationf("payment method is not supported")
	}
	return m, nil
}

// Account is the receivable or payable opened for one order.
type Account struct {
	ID             int64           `json:"id"`
	OrgID          int64           `json:"org_id"`
	Kind           Kind            `json:"kind"`
	OrderID        int64           `json:"order_id"`
	CounterpartyID int64           `json:"counterparty_id"`
	Number         string          `json:"number"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	PendingBalance decimal.Decimal `json:"pending_balance"`
	Status         Status          `json:"status"`
	DueDate        shared.Date     `json:"due_date"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Paid returns the sum of payments applied so far.
func (a Account) Paid() decimal.Decimal {
	return a.TotalAmount.Sub(a.PendingBalance)
}

// Payment is one monetary application against an account.
type Payment struct {
	ID              int64           `json:"id"`
	OrgID           int64           `json:"org_id"`
	AccountID       int64           `json:"account_id"`
	Amount          decimal.Decimal `json:"amount"`
	Method          Method          `json:"method"`
	PaymentDate     shared.Date     `json:"payment_date"`
	ReferenceNumber string          `json:"reference_number,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// AgingBucket groups outstanding balances by days past due.
type AgingBucket struct {
	Current   decimal.Decimal `json:"current"`
	Bucket30  decimal.Decimal `json:"bucket_30"`
	Bucket60  decimal.Decimal `json:"bucket_60"`
	Bucket90  decimal.Decimal `json:"bucket_90"`
	Bucket120 decimal.Decimal `json:"bucket_120"`
}

// Total sums every bucket.
func (b AgingBucket) Total() decimal.Decimal {
	return b.Current.Add(b.Bucket30).Add(b.Bucket60).Add(b.Bucket90).Add(b.Bucket120)
}

// ListFilter narrows account listings.
type ListFilter struct {
	Kind    Kind
	Status  Status
	Page    int
	PerPage int
}
