package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// UnitOfMeasure describes how a product is counted and priced.
type UnitOfMeasure string

const (
	UnitEach  UnitOfMeasure = "UNIT"
	UnitBox   UnitOfMeasure = "BOX"
	UnitKilo  UnitOfMeasure = "KG"
	UnitLitre UnitOfMeasure = "LT"
	UnitMetre UnitOfMeasure = "MT"
)

// ParseUnitOfMeasure normalises a unit code. Unknown codes map to UnitEach.
func ParseUnitOfMeasure(code string) UnitOfMeasure {
	switch u := UnitOfMeasure(strings.ToUpper(strings.TrimSpace(code))); u {
	case UnitEach, UnitBox, UnitKilo, UnitLitre, UnitMetre:
		return u
	default:
		return UnitEach
	}
}

// IsValid reports whether u is a known unit.
func (u UnitOfMeasure) IsValid() bool {
	switch u {
	case UnitEach, UnitBox, UnitKilo, UnitLitre, UnitMetre:
		return true
	}
	return false
}

// IsMeasured is true for weight, volume and length units.
func (u UnitOfMeasure) IsMeasured() bool {
	return u == UnitKilo || u == UnitLitre || u == UnitMetre
}

// ProductSnapshot carries the catalog attributes the calculator needs.
type ProductSnapshot struct {
	ProductID     int64         `json:"product_id"`
	UnitOfMeasure UnitOfMeasure `json:"unit_of_measure"`
	// AverageQuantityPerStockedUnit is the average measured amount in one
	// stocked unit, e.g. kilos per box. Zero when not tracked.
	AverageQuantityPerStockedUnit decimal.Decimal `json:"average_quantity_per_stocked_unit"`
}

// LineInput is a candidate order line as entered by the user.
type LineInput struct {
	ProductID        int64            `json:"product_id"`
	Quantity         decimal.Decimal  `json:"quantity"`
	MeasuredQuantity *decimal.Decimal `json:"measured_quantity,omitempty"`
	UnitPrice        decimal.Decimal  `json:"unit_price"`
	BasePrice        decimal.Decimal  `json:"base_price"`
	DiscountPercent  decimal.Decimal  `json:"discount_percent"`
}

// LinePrice is the computed result for one line.
type LinePrice struct {
	ProductID          int64           `json:"product_id"`
	Gross              decimal.Decimal `json:"gross"`
	DiscountAmount     decimal.Decimal `json:"discount_amount"`
	Subtotal           decimal.Decimal `json:"subtotal"`
	EffectiveUnitPrice decimal.Decimal `json:"effective_unit_price"`
	// Estimated is set when the amount relies on the average quantity per
	// stocked unit instead of a measured reading.
	Estimated bool `json:"estimated"`
}

// PriceLine computes the subtotal of a single line.
func PriceLine(line LineInput, product ProductSnapshot) LinePrice {
	qty := ClampNonNegative(line.Quantity)
	price := ClampNonNegative(line.UnitPrice)
	result := LinePrice{ProductID: line.ProductID, EffectiveUnitPrice: price}

	switch {
	case product.UnitOfMeasure.IsMeasured() && line.MeasuredQuantity != nil && line.MeasuredQuantity.IsPositive():
		result.Gross = line.MeasuredQuantity.Mul(price)
	case product.UnitOfMeasure.IsMeasured() && product.AverageQuantityPerStockedUnit.IsPositive():
		result.EffectiveUnitPrice = price.Mul(product.AverageQuantityPerStockedUnit)
		result.Gross = qty.Mul(result.EffectiveUnitPrice)
		result.Estimated = true
	default:
		result.Gross = qty.Mul(price)
	}

	result.DiscountAmount = Discount(result.Gross, line.DiscountPercent)
	result.Subtotal = ClampNonNegative(result.Gross.Sub(result.DiscountAmount))
	return result
}

// EstimatedMeasure returns the measured amount implied by the average
// quantity heuristic, or the explicit reading when present.
func EstimatedMeasure(line LineInput, product ProductSnapshot) decimal.Decimal {
	if line.MeasuredQuantity != nil && line.MeasuredQuantity.IsPositive() {
		return *line.MeasuredQuantity
	}
	if product.UnitOfMeasure.IsMeasured() && product.AverageQuantityPerStockedUnit.IsPositive() {
		return ClampNonNegative(line.Quantity).Mul(product.AverageQuantityPerStockedUnit)
	}
	return decimal.Zero
}
