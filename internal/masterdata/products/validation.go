package products

import (
	"strings"

	"github.com/odyssey-erp/backoffice/internal/shared"
)

func (s *Service) validate(p Product) error {
	if strings.TrimSpace(p.SKU) == "" {
		return shared.Validationf("product sku is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		return shared.Validationf("product name is required")
	}
	if !p.UnitOfMeasure.IsValid() {
		return shared.Validationf("unit of measure must be one of UNIT, BOX, KG, LT, MT")
	}
	if p.CostPrice.IsNegative() || p.SalePrice.IsNegative() {
		return shared.Validationf("prices cannot be negative")
	}
	if p.AverageQuantityPerStockedUnit.IsNegative() {
		return shared.Validationf("average quantity per stocked unit cannot be negative")
	}
	return nil
}
