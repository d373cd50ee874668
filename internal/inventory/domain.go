package inventory

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/backoffice/internal/shared"
)

// MovementType enumerates supported stock movements.
type MovementType string

const (
	// MovementTypeIn represents an inbound movement.
	MovementTypeIn MovementType = "IN"
	// MovementTypeOut represents an outbound movement.
	MovementTypeOut MovementType = "OUT"
)

var (
	// ErrBalanceNotFound is returned when a product has no stock row yet.
	ErrBalanceNotFound = errors.New("inventory: balance not found")
	// ErrInvalidQuantity rejects zero or negative intake.
	ErrInvalidQuantity = shared.Validationf("received quantity must be greater than zero")
)

// Lot is a batch of one product received with a lot number and expiry.
type Lot struct {
	ID               int64           `json:"id"`
	OrgID            int64           `json:"org_id"`
	ProductID        int64           `json:"product_id"`
	PurchaseOrderID  int64           `json:"purchase_order_id"`
	LotNumber        string          `json:"lot_number"`
	ExpirationDate   shared.Date     `json:"expiration_date"`
	Quantity         decimal.Decimal `json:"quantity"`
	MeasuredQuantity decimal.Decimal `json:"measured_quantity"`
	UnitCost         decimal.Decimal `json:"unit_cost"`
	ReceivedAt       time.Time       `json:"received_at"`
}

// Movement is one entry in the stock ledger.
type Movement struct {
	ID        int64           `json:"id"`
	OrgID     int64           `json:"org_id"`
	ProductID int64           `json:"product_id"`
	LotID     int64           `json:"lot_id"`
	Type      MovementType    `json:"type"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	RefModule string          `json:"ref_module"`
	RefID     string          `json:"ref_id"`
	Note      string          `json:"note"`
	PostedAt  time.Time       `json:"posted_at"`
}

// Balance summarises stock on hand per product.
type Balance struct {
	OrgID     int64           `json:"org_id"`
	ProductID int64           `json:"product_id"`
	Qty       decimal.Decimal `json:"qty"`
	AvgCost   decimal.Decimal `json:"avg_cost"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// LotInput describes stock received for one order line.
type LotInput struct {
	ProductID        int64
	PurchaseOrderID  int64
	LotNumber        string
	ExpirationDate   shared.Date
	Quantity         decimal.Decimal
	MeasuredQuantity decimal.Decimal
	UnitCost         decimal.Decimal
	RefID            string
	Note             string
}
