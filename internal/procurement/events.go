package procurement

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ReceiptLineEvent describes one lot created by a receipt.
type ReceiptLineEvent struct {
	LineID    int64           `json:"line_id"`
	ProductID int64           `json:"product_id"`
	LotID     int64           `json:"lot_id"`
	LotNumber string          `json:"lot_number"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// ReceiptPostedEvent is published after a receipt commits.
type ReceiptPostedEvent struct {
	OrgID           int64              `json:"org_id"`
	PurchaseOrderID int64              `json:"purchase_order_id"`
	Number          string             `json:"number"`
	SupplierID      int64              `json:"supplier_id"`
	Total           decimal.Decimal    `json:"total"`
	ReceivedAt      time.Time          `json:"received_at"`
	Lines           []ReceiptLineEvent `json:"lines"`
}

// ReceiptPublisher receives committed receipts for follow-up processing.
type ReceiptPublisher interface {
	PublishReceipt(ctx context.Context, evt ReceiptPostedEvent) error
}
