package procurement

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/backoffice/internal/pricing"
	"github.com/odyssey-erp/backoffice/internal/shared"
)

// Purchase order lifecycle statuses.
type POStatus string

const (
	POStatusOrdered   POStatus = "ORDERED"
	POStatusInTransit POStatus = "IN_TRANSIT"
	POStatusReceived  POStatus = "RECEIVED"
	POStatusCancelled POStatus = "CANCELLED"
)

var poTransitions = map[POStatus][]POStatus{
	POStatusOrdered:   {POStatusInTransit, POStatusCancelled},
	POStatusInTransit: {POStatusReceived, POStatusCancelled},
}

// IsValid reports whether s is a known status.
func (s POStatus) IsValid() bool {
	switch s {
	case POStatusOrdered, POStatusInTransit, POStatusReceived, POStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether next directly follows s.
func (s POStatus) CanTransitionTo(next POStatus) bool {
	for _, allowed := range poTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal is true for RECEIVED and CANCELLED.
func (s POStatus) IsTerminal() bool {
	return s == POStatusReceived || s == POStatusCancelled
}

// IsEditable reports whether lines, taxes and discount may still change.
func (s POStatus) IsEditable() bool {
	return s == POStatusOrdered
}

// PurchaseOrder domain model.
type PurchaseOrder struct {
	ID                    int64           `json:"id"`
	OrgID                 int64           `json:"org_id"`
	Number                string          `json:"number"`
	SupplierID            int64           `json:"supplier_id"`
	Status                POStatus        `json:"status"`
	GlobalDiscountPercent decimal.Decimal `json:"global_discount_percent"`
	Subtotal              decimal.Decimal `json:"subtotal"`
	TaxAmount             decimal.Decimal `json:"tax_amount"`
	LineDiscount          decimal.Decimal `json:"line_discount"`
	GlobalDiscount        decimal.Decimal `json:"global_discount"`
	PreDiscountTotal      decimal.Decimal `json:"pre_discount_total"`
	TotalAmount           decimal.Decimal `json:"total_amount"`
	DeliveryDate          shared.Date     `json:"delivery_date"`
	LogisticsProvider     string          `json:"logistics_provider,omitempty"`
	Note                  string          `json:"note,omitempty"`
	InTransitAt           *time.Time      `json:"in_transit_at,omitempty"`
	ReceivedAt            *time.Time      `json:"received_at,omitempty"`
	CancelledAt           *time.Time      `json:"cancelled_at,omitempty"`
	CancellationReason    string          `json:"cancellation_reason,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
	Lines                 []POLine        `json:"lines,omitempty"`
	Taxes                 []POTax         `json:"taxes,omitempty"`
}

// POLine represents an ordered item and, once received, its intake data.
type POLine struct {
	ID               int64            `json:"id"`
	PurchaseOrderID  int64            `json:"purchase_order_id"`
	ProductID        int64            `json:"product_id"`
	Quantity         decimal.Decimal  `json:"quantity"`
	MeasuredQuantity *decimal.Decimal `json:"measured_quantity,omitempty"`
	UnitCost         decimal.Decimal  `json:"unit_cost"`
	BaseCost         decimal.Decimal  `json:"base_cost"`
	DiscountPercent  decimal.Decimal  `json:"discount_percent"`
	DiscountAmount   decimal.Decimal  `json:"discount_amount"`
	Subtotal         decimal.Decimal  `json:"subtotal"`
	Estimated        bool             `json:"estimated"`
	LineOrder        int              `json:"line_order"`

	Received                 bool             `json:"received"`
	LotNumber                string           `json:"lot_number,omitempty"`
	ExpirationDate           shared.Date      `json:"expiration_date"`
	ReceivedMeasuredQuantity *decimal.Decimal `json:"received_measured_quantity,omitempty"`
	LotID                    int64            `json:"lot_id,omitempty"`
}

// Price returns the line as the totals aggregator sees it.
func (l POLine) Price() pricing.LinePrice {
	return pricing.LinePrice{
		ProductID:      l.ProductID,
		Gross:          l.Subtotal.Add(l.DiscountAmount),
		DiscountAmount: l.DiscountAmount,
		Subtotal:       l.Subtotal,
		Estimated:      l.Estimated,
	}
}

// NetUnitCost is the line subtotal spread over the ordered quantity.
func (l POLine) NetUnitCost() decimal.Decimal {
	if !l.Quantity.IsPositive() {
		return decimal.Zero
	}
	return l.Subtotal.DivRound(l.Quantity, 4)
}

// POTax is a tax rate copied onto the order when it was applied.
type POTax struct {
	PurchaseOrderID int64           `json:"purchase_order_id"`
	TaxID           int64           `json:"tax_id"`
	Name            string          `json:"name"`
	Rate            decimal.Decimal `json:"rate"`
	Amount          decimal.Decimal `json:"amount"`
}

// LineReceipt is the intake data stored on a received line.
type LineReceipt struct {
	LineID           int64
	LotID            int64
	LotNumber        string
	ExpirationDate   shared.Date
	MeasuredQuantity decimal.Decimal
}

// StatusChange carries the metadata written with a transition.
type StatusChange struct {
	At                time.Time
	DeliveryDate      shared.Date
	LogisticsProvider string
	Reason            string
}

// PurchaseOrderInput is the editable content of an order.
type PurchaseOrderInput struct {
	SupplierID            int64           `json:"supplier_id" validate:"required,gt=0"`
	GlobalDiscountPercent decimal.Decimal `json:"global_discount_percent"`
	TaxIDs                []int64         `json:"tax_ids" validate:"dive,gt=0"`
	DeliveryDate          shared.Date     `json:"delivery_date"`
	Note                  string          `json:"note" validate:"max=1000"`
	Lines                 []POLineInput   `json:"lines" validate:"required,min=1,dive"`
}

// POLineInput is one ordered item.
type POLineInput struct {
	ProductID        int64            `json:"product_id" validate:"required,gt=0"`
	Quantity         decimal.Decimal  `json:"quantity"`
	MeasuredQuantity *decimal.Decimal `json:"measured_quantity,omitempty"`
	UnitCost         *decimal.Decimal `json:"unit_cost,omitempty"`
	DiscountPercent  decimal.Decimal  `json:"discount_percent"`
}

// InTransitInput records shipment data.
type InTransitInput struct {
	DeliveryDate      shared.Date `json:"delivery_date"`
	LogisticsProvider string      `json:"logistics_provider" validate:"max=120"`
}

// ReceiveInput lists the intake data of every line.
type ReceiveInput struct {
	Items []ReceiveItem `json:"items" validate:"required,min=1,dive"`
}

// ReceiveItem describes one line of a receipt. Lines with Received unset
// are skipped.
type ReceiveItem struct {
	LineID           int64           `json:"line_id" validate:"required,gt=0"`
	Received         bool            `json:"received"`
	LotNumber        string          `json:"lot_number" validate:"max=64"`
	ExpirationDate   shared.Date     `json:"expiration_date"`
	MeasuredQuantity decimal.Decimal `json:"measured_quantity"`
}

// CancelInput carries the optional reason.
type CancelInput struct {
	Reason string `json:"reason" validate:"max=500"`
}

// ListFilter narrows purchase order listings.
type ListFilter struct {
	Status     POStatus
	SupplierID int64
	Page       int
	PerPage    int
}

// Preview is the live summary of an order being edited.
type Preview struct {
	Lines     []POLine          `json:"lines"`
	Breakdown pricing.Breakdown `json:"breakdown"`
}
