package inventory

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/odyssey-erp/backoffice/internal/shared"
)

// ReadPort describes read access used by Service.
type ReadPort interface {
	ListLots(ctx context.Context, orgID, productID int64) ([]Lot, error)
	ListBalances(ctx context.Context, orgID int64) ([]Balance, error)
}

// Service coordinates stock intake and listings.
type Service struct {
	repo ReadPort
	now  func() time.Time
}

// NewService constructs the inventory service.
func NewService(repo ReadPort) *Service {
	return &Service{repo: repo, now: time.Now}
}

// ValidateLot checks the data a lot needs before anything is written.
func ValidateLot(input LotInput) error {
	if input.ProductID == 0 {
		return shared.Validationf("product is required")
	}
	if strings.TrimSpace(input.LotNumber) == "" {
		return shared.Validationf("lot number is required")
	}
	if input.ExpirationDate.IsZero() {
		return shared.Validationf("expiration date is required")
	}
	if !input.Quantity.IsPositive() || !input.MeasuredQuantity.IsPositive() {
		return ErrInvalidQuantity
	}
	if input.UnitCost.IsNegative() {
		return shared.Validationf("unit cost cannot be negative")
	}
	return nil
}

// ReceiveLot creates a lot, its inbound movement and the new moving average
// cost inside the caller's transaction.
func (s *Service) ReceiveLot(ctx context.Context, tx TxRepository, orgID int64, input LotInput) (Lot, error) {
	if err := ValidateLot(input); err != nil {
		return Lot{}, err
	}
	now := s.now().UTC()
	lot := Lot{
		OrgID:            orgID,
		ProductID:        input.ProductID,
		PurchaseOrderID:  input.PurchaseOrderID,
		LotNumber:        strings.TrimSpace(input.LotNumber),
		ExpirationDate:   input.ExpirationDate,
		Quantity:         input.Quantity,
		MeasuredQuantity: input.MeasuredQuantity,
		UnitCost:         input.UnitCost,
		ReceivedAt:       now,
	}
	id, err := tx.InsertLot(ctx, lot)
	if err != nil {
		return Lot{}, err
	}
	lot.ID = id

	if _, err := tx.InsertMovement(ctx, Movement{
		OrgID:     orgID,
		ProductID: input.ProductID,
		LotID:     lot.ID,
		Type:      MovementTypeIn,
		Quantity:  input.Quantity,
		UnitCost:  input.UnitCost,
		RefModule: "PURCHASE",
		RefID:     input.RefID,
		Note:      input.Note,
		PostedAt:  now,
	}); err != nil {
		return Lot{}, err
	}

	balance, err := tx.GetBalanceForUpdate(ctx, orgID, input.ProductID)
	if err != nil && !errors.Is(err, ErrBalanceNotFound) {
		return Lot{}, err
	}
	balance.OrgID = orgID
	balance.ProductID = input.ProductID
	balance.UpdatedAt = now
	newQty := balance.Qty.Add(input.Quantity)
	totalCost := balance.Qty.Mul(balance.AvgCost).Add(input.Quantity.Mul(input.UnitCost))
	balance.AvgCost = totalCost.DivRound(newQty, 4)
	balance.Qty = newQty
	if err := tx.UpsertBalance(ctx, balance); err != nil {
		return Lot{}, err
	}
	return lot, nil
}

// ListLots returns lots, optionally filtered by product.
func (s *Service) ListLots(ctx context.Context, orgID, productID int64) ([]Lot, error) {
	return s.repo.ListLots(ctx, orgID, productID)
}

// ListBalances returns stock on hand per product.
func (s *Service) ListBalances(ctx context.Context, orgID int64) ([]Balance, error) {
	return s.repo.ListBalances(ctx, orgID)
}
