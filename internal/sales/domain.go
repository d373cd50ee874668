package sales

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/backoffice/internal/pricing"
)

// ============================================================================
// STATUS
// ============================================================================

type SalesOrderStatus string

const (
	SalesOrderStatusDraft     SalesOrderStatus = "DRAFT"
	SalesOrderStatusConfirmed SalesOrderStatus = "CONFIRMED"
	SalesOrderStatusDispatch  SalesOrderStatus = "DISPATCH"
	SalesOrderStatusDelivered SalesOrderStatus = "DELIVERED"
	SalesOrderStatusCancelled SalesOrderStatus = "CANCELLED"
)

// Cancellation stops at CONFIRMED: once goods leave the warehouse the order
// can only be delivered.
var salesTransitions = map[SalesOrderStatus][]SalesOrderStatus{
	SalesOrderStatusDraft:     {SalesOrderStatusConfirmed, SalesOrderStatusCancelled},
	SalesOrderStatusConfirmed: {SalesOrderStatusDispatch, SalesOrderStatusCancelled},
	SalesOrderStatusDispatch:  {SalesOrderStatusDelivered},
}

// IsValid reports whether s is a known status.
func (s SalesOrderStatus) IsValid() bool {
	switch s {
	case SalesOrderStatusDraft, SalesOrderStatusConfirmed, SalesOrderStatusDispatch, SalesOrderStatusDelivered, SalesOrderStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether next directly follows s.
func (s SalesOrderStatus) CanTransitionTo(next SalesOrderStatus) bool {
	for _, allowed := range salesTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal is true for DELIVERED and CANCELLED.
func (s SalesOrderStatus) IsTerminal() bool {
	return s == SalesOrderStatusDelivered || s == SalesOrderStatusCancelled
}

// IsEditable reports whether lines, taxes and discount may still change.
func (s SalesOrderStatus) IsEditable() bool {
	return s == SalesOrderStatusDraft
}

// ============================================================================
// SALES ORDER
// ============================================================================

type SalesOrder struct {
	ID                    int64            `json:"id" db:"id"`
	OrgID                 int64            `json:"org_id" db:"org_id"`
	DocNumber             string           `json:"doc_number" db:"doc_number"`
	CustomerID            int64            `json:"customer_id" db:"customer_id"`
	SellerID              int64            `json:"seller_id" db:"seller_id"`
	Status                SalesOrderStatus `json:"status" db:"status"`
	GlobalDiscountPercent decimal.Decimal  `json:"global_discount_percent" db:"global_discount_percent"`
	Subtotal              decimal.Decimal  `json:"subtotal" db:"subtotal"`
	TaxAmount             decimal.Decimal  `json:"tax_amount" db:"tax_amount"`
	LineDiscount          decimal.Decimal  `json:"line_discount" db:"line_discount"`
	GlobalDiscount        decimal.Decimal  `json:"global_discount" db:"global_discount"`
	PreDiscountTotal      decimal.Decimal  `json:"pre_discount_total" db:"pre_discount_total"`
	TotalAmount           decimal.Decimal  `json:"total_amount" db:"total_amount"`
	RemittanceNumber      *string          `json:"remittance_number,omitempty" db:"remittance_number"`
	Notes                 *string          `json:"notes,omitempty" db:"notes"`
	ConfirmedAt           *time.Time       `json:"confirmed_at,omitempty" db:"confirmed_at"`
	DispatchedAt          *time.Time       `json:"dispatched_at,omitempty" db:"dispatched_at"`
	DeliveredAt           *time.Time       `json:"delivered_at,omitempty" db:"delivered_at"`
	CancelledAt           *time.Time       `json:"cancelled_at,omitempty" db:"cancelled_at"`
	CancellationReason    *string          `json:"cancellation_reason,omitempty" db:"cancellation_reason"`
	CreatedAt             time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at" db:"updated_at"`
	Lines                 []SalesOrderLine `json:"lines,omitempty" db:"-"`
	Taxes                 []SalesOrderTax  `json:"taxes,omitempty" db:"-"`
}

// TotalDiscount sums line and order level discounts.
func (so SalesOrder) TotalDiscount() decimal.Decimal {
	return so.LineDiscount.Add(so.GlobalDiscount)
}

type SalesOrderLine struct {
	ID               int64            `json:"id" db:"id"`
	SalesOrderID     int64            `json:"sales_order_id" db:"sales_order_id"`
	ProductID        int64            `json:"product_id" db:"product_id"`
	Quantity         decimal.Decimal  `json:"quantity" db:"quantity"`
	MeasuredQuantity *decimal.Decimal `json:"measured_quantity,omitempty" db:"measured_quantity"`
	UnitPrice        decimal.Decimal  `json:"unit_price" db:"unit_price"`
	BasePrice        decimal.Decimal  `json:"base_price" db:"base_price"`
	DiscountPercent  decimal.Decimal  `json:"discount_percent" db:"discount_percent"`
	DiscountAmount   decimal.Decimal  `json:"discount_amount" db:"discount_amount"`
	Subtotal         decimal.Decimal  `json:"subtotal" db:"subtotal"`
	Estimated        bool             `json:"estimated" db:"estimated"`
	LineOrder        int              `json:"line_order" db:"line_order"`
}

// Price returns the line as the totals aggregator sees it.
func (l SalesOrderLine) Price() pricing.LinePrice {
	return pricing.LinePrice{
		ProductID:      l.ProductID,
		Gross:          l.Subtotal.Add(l.DiscountAmount),
		DiscountAmount: l.DiscountAmount,
		Subtotal:       l.Subtotal,
		Estimated:      l.Estimated,
	}
}

// SalesOrderTax is the rate copied onto the order when the tax was applied.
type SalesOrderTax struct {
	SalesOrderID int64           `json:"sales_order_id" db:"sales_order_id"`
	TaxID        int64           `json:"tax_id" db:"tax_id"`
	Name         string          `json:"name" db:"name"`
	Rate         decimal.Decimal `json:"rate" db:"rate"`
	Amount       decimal.Decimal `json:"amount" db:"amount"`
}

// StatusChange carries the metadata written with a transition.
type StatusChange struct {
	At               time.Time
	RemittanceNumber string
	Reason           string
}

// ============================================================================
// REQUESTS
// ============================================================================

type SalesOrderRequest struct {
	CustomerID            int64                   `json:"customer_id" validate:"gte=0"`
	SellerID              int64                   `json:"seller_id" validate:"gte=0"`
	GlobalDiscountPercent decimal.Decimal         `json:"global_discount_percent"`
	TaxIDs                []int64                 `json:"tax_ids" validate:"dive,gt=0"`
	Notes                 *string                 `json:"notes,omitempty" validate:"omitempty,max=1000"`
	Lines                 []SalesOrderLineRequest `json:"lines" validate:"dive"`
}

type SalesOrderLineRequest struct {
	ProductID        int64            `json:"product_id" validate:"required,gt=0"`
	Quantity         decimal.Decimal  `json:"quantity"`
	MeasuredQuantity *decimal.Decimal `json:"measured_quantity,omitempty"`
	UnitPrice        *decimal.Decimal `json:"unit_price,omitempty"`
	DiscountPercent  decimal.Decimal  `json:"discount_percent"`
}

type DispatchRequest struct {
	RemittanceNumber string `json:"remittance_number" validate:"required,max=64"`
}

type CancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type ListSalesOrdersRequest struct {
	Status     SalesOrderStatus
	CustomerID int64
	Page       int
	PerPage    int
}

// Preview is the live summary of an order being edited.
type Preview struct {
	Lines     []SalesOrderLine  `json:"lines"`
	Breakdown pricing.Breakdown `json:"breakdown"`
}
