package products

import "github.com/shopspring/decimal"

type ProductForm struct {
	SKU                           string          `json:"sku" validate:"required,max=64"`
	Name                          string          `json:"name" validate:"required,max=200"`
	UnitOfMeasure                 string          `json:"unit_of_measure" validate:"required"`
	CostPrice                     decimal.Decimal `json:"cost_price"`
	SalePrice                     decimal.Decimal `json:"sale_price"`
	AverageQuantityPerStockedUnit decimal.Decimal `json:"average_quantity_per_stocked_unit"`
	IsActive                      *bool           `json:"is_active"`
}
