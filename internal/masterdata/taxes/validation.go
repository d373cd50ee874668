package taxes

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/backoffice/internal/shared"
)

var maxRate = decimal.NewFromInt(100)

func (s *Service) validate(t Tax) error {
	if strings.TrimSpace(t.Code) == "" {
		return shared.Validationf("tax code is required")
	}
	if strings.TrimSpace(t.Name) == "" {
		return shared.Validationf("tax name is required")
	}
	if t.Rate.IsNegative() || t.Rate.GreaterThan(maxRate) {
		return shared.Validationf("tax rate must be between 0 and 100")
	}
	return nil
}
