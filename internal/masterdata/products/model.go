package products

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/backoffice/internal/pricing"
)

// Product represents a catalog item of one organization.
type Product struct {
	ID                            int64                 `json:"id"`
	OrgID                         int64                 `json:"org_id"`
	SKU                           string                `json:"sku"`
	Name                          string                `json:"name"`
	UnitOfMeasure                 pricing.UnitOfMeasure `json:"unit_of_measure"`
	CostPrice                     decimal.Decimal       `json:"cost_price"`
	SalePrice                     decimal.Decimal       `json:"sale_price"`
	AverageQuantityPerStockedUnit decimal.Decimal       `json:"average_quantity_per_stocked_unit"`
	IsActive                      bool                  `json:"is_active"`
	CreatedAt                     time.Time             `json:"created_at"`
	UpdatedAt                     time.Time             `json:"updated_at"`
}

// Snapshot copies the fields the pricing calculator needs.
func (p Product) Snapshot() pricing.ProductSnapshot {
	return pricing.ProductSnapshot{
		ProductID:                     p.ID,
		UnitOfMeasure:                 p.UnitOfMeasure,
		AverageQuantityPerStockedUnit: p.AverageQuantityPerStockedUnit,
	}
}

// Snapshot is the read-only view of catalog rows used for one calculation.
type Snapshot struct {
	Products map[int64]pricing.ProductSnapshot `json:"products"`
	Cost     map[int64]decimal.Decimal         `json:"cost"`
	Sale     map[int64]decimal.Decimal         `json:"sale"`
}
