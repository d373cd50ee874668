package sales

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/backoffice/internal/accounts"
	"github.com/odyssey-erp/backoffice/internal/masterdata/products"
	"github.com/odyssey-erp/backoffice/internal/observability"
	"github.com/odyssey-erp/backoffice/internal/pricing"
	"github.com/odyssey-erp/backoffice/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetSalesOrder(ctx context.Context, orgID, id int64) (SalesOrder, error)
	ListSalesOrders(ctx context.Context, orgID int64, req ListSalesOrdersRequest) ([]SalesOrder, int, error)
	CountByStatus(ctx context.Context, orgID int64) (map[SalesOrderStatus]int, error)
}

// CatalogPort resolves product snapshots.
type CatalogPort interface {
	Snapshot(ctx context.Context, orgID int64, productIDs []int64) (products.Snapshot, error)
}

// TaxPort resolves tax rates at the moment they are applied.
type TaxPort interface {
	Snapshot(ctx context.Context, orgID int64, ids []int64) ([]pricing.TaxRate, error)
}

// AccountsPort opens and closes the receivable of an order.
type AccountsPort interface {
	OpenForOrder(ctx context.Context, tx accounts.TxRepository, orgID int64, input accounts.OpenInput) (accounts.Account, error)
	CloseForOrder(ctx context.Context, tx accounts.TxRepository, orgID int64, kind accounts.Kind, orderID int64) error
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates sales order use-cases.
type Service struct {
	repo     RepositoryPort
	catalog  CatalogPort
	taxes    TaxPort
	accounts AccountsPort
	audit    AuditPort
	metrics  *observability.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs the sales service.
func NewService(repo RepositoryPort, catalog CatalogPort, taxes TaxPort, accts AccountsPort, audit AuditPort, metrics *observability.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		catalog:  catalog,
		taxes:    taxes,
		accounts: accts,
		audit:    audit,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// ============================================================================
// DRAFT
// ============================================================================

// Preview prices a draft without persisting it.
func (s *Service) Preview(ctx context.Context, orgID int64, req SalesOrderRequest) (Preview, error) {
	lines, _, breakdown, err := s.price(ctx, orgID, req)
	if err != nil {
		return Preview{}, err
	}
	return Preview{Lines: lines, Breakdown: breakdown}, nil
}

// CreateSalesOrder stores a new DRAFT order.
func (s *Service) CreateSalesOrder(ctx context.Context, orgID int64, req SalesOrderRequest) (SalesOrder, error) {
	lines, taxes, breakdown, err := s.price(ctx, orgID, req)
	if err != nil {
		return SalesOrder{}, err
	}
	now := s.now()
	so := SalesOrder{
		OrgID:                 orgID,
		DocNumber:             generateNumber("SO"),
		CustomerID:            req.CustomerID,
		SellerID:              req.SellerID,
		Status:                SalesOrderStatusDraft,
		GlobalDiscountPercent: pricing.ClampPercent(req.GlobalDiscountPercent),
		Notes:                 trimmed(req.Notes),
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	so.applyBreakdown(breakdown)

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertSalesOrder(ctx, so)
		if err != nil {
			return err
		}
		so.ID = id
		if err := tx.ReplaceLines(ctx, id, lines); err != nil {
			return err
		}
		return tx.ReplaceTaxes(ctx, id, taxes)
	})
	if err != nil {
		return SalesOrder{}, err
	}
	so.Lines, so.Taxes = withOrderID(lines, taxes, so.ID)
	s.recordAudit(ctx, orgID, "sales_order.create", so.ID, map[string]any{"doc_number": so.DocNumber})
	return so, nil
}

// UpdateDraft replaces header, lines and taxes of a DRAFT order.
func (s *Service) UpdateDraft(ctx context.Context, orgID, id int64, req SalesOrderRequest) (SalesOrder, error) {
	lines, taxes, breakdown, err := s.price(ctx, orgID, req)
	if err != nil {
		return SalesOrder{}, err
	}
	var so SalesOrder
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.LockSalesOrder(ctx, orgID, id)
		if err != nil {
			return err
		}
		if !current.Status.IsEditable() {
			return shared.InvalidStatef(fmt.Sprintf("sales order %s is %s and can no longer be edited", current.DocNumber, current.Status))
		}
		so = current
		so.CustomerID = req.CustomerID
		so.SellerID = req.SellerID
		so.GlobalDiscountPercent = pricing.ClampPercent(req.GlobalDiscountPercent)
		so.Notes = trimmed(req.Notes)
		so.UpdatedAt = s.now()
		so.applyBreakdown(breakdown)
		if err := tx.UpdateDraft(ctx, so); err != nil {
			return err
		}
		if err := tx.ReplaceLines(ctx, id, lines); err != nil {
			return err
		}
		return tx.ReplaceTaxes(ctx, id, taxes)
	})
	if err != nil {
		return SalesOrder{}, err
	}
	so.Lines, so.Taxes = withOrderID(lines, taxes, id)
	s.recordAudit(ctx, orgID, "sales_order.update", id, nil)
	return so, nil
}

// ============================================================================
// TRANSITIONS
// ============================================================================

// ConfirmSalesOrder freezes the totals of a DRAFT order and opens its
// receivable in the same transaction.
func (s *Service) ConfirmSalesOrder(ctx context.Context, orgID, id int64) (SalesOrder, error) {
	var so SalesOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.LockSalesOrder(ctx, orgID, id)
		if err != nil {
			return err
		}
		if err := guard(current, SalesOrderStatusConfirmed); err != nil {
			return err
		}
		if current.CustomerID == 0 || current.SellerID == 0 {
			return shared.Validationf("customer and seller are required to confirm")
		}
		if len(current.Lines) == 0 {
			return shared.Validationf("sales order requires at least one line")
		}

		so = current
		so.applyBreakdown(computeStored(so))
		if err := tx.UpdateDraft(ctx, so); err != nil {
			return err
		}
		change := StatusChange{At: s.now()}
		if err := tx.TransitionStatus(ctx, orgID, id, current.Status, SalesOrderStatusConfirmed, change); err != nil {
			return err
		}
		so.Status = SalesOrderStatusConfirmed
		so.ConfirmedAt = &change.At
		so.UpdatedAt = change.At

		_, err = s.accounts.OpenForOrder(ctx, tx.Accounts(), orgID, accounts.OpenInput{
			Kind:           accounts.KindReceivable,
			OrderID:        so.ID,
			OrderNumber:    so.DocNumber,
			CounterpartyID: so.CustomerID,
			Total:          so.TotalAmount,
		})
		return err
	})
	if err != nil {
		return SalesOrder{}, err
	}
	s.afterTransition(ctx, orgID, so, SalesOrderStatusDraft)
	return so, nil
}

// DispatchSalesOrder records the remittance and moves the order to DISPATCH.
func (s *Service) DispatchSalesOrder(ctx context.Context, orgID, id int64, req DispatchRequest) (SalesOrder, error) {
	remittance := strings.TrimSpace(req.RemittanceNumber)
	if remittance == "" {
		return SalesOrder{}, shared.Validationf("remittance number is required to dispatch")
	}
	return s.transition(ctx, orgID, id, SalesOrderStatusDispatch, StatusChange{RemittanceNumber: remittance})
}

// DeliverSalesOrder closes a dispatched order.
func (s *Service) DeliverSalesOrder(ctx context.Context, orgID, id int64) (SalesOrder, error) {
	return s.transition(ctx, orgID, id, SalesOrderStatusDelivered, StatusChange{})
}

// CancelSalesOrder cancels a DRAFT or CONFIRMED order. A confirmed order
// also drops its receivable, which fails once payments were registered.
func (s *Service) CancelSalesOrder(ctx context.Context, orgID, id int64, req CancelRequest) (SalesOrder, error) {
	return s.transition(ctx, orgID, id, SalesOrderStatusCancelled, StatusChange{Reason: strings.TrimSpace(req.Reason)})
}

func (s *Service) transition(ctx context.Context, orgID, id int64, to SalesOrderStatus, change StatusChange) (SalesOrder, error) {
	var (
		so   SalesOrder
		from SalesOrderStatus
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.LockSalesOrder(ctx, orgID, id)
		if err != nil {
			return err
		}
		if err := guard(current, to); err != nil {
			return err
		}
		from = current.Status
		if to == SalesOrderStatusCancelled && from == SalesOrderStatusConfirmed {
			if err := s.accounts.CloseForOrder(ctx, tx.Accounts(), orgID, accounts.KindReceivable, id); err != nil {
				return err
			}
		}
		change.At = s.now()
		if err := tx.TransitionStatus(ctx, orgID, id, from, to, change); err != nil {
			return err
		}
		so = current
		so.Status = to
		so.UpdatedAt = change.At
		applyChange(&so, change)
		return nil
	})
	if err != nil {
		return SalesOrder{}, err
	}
	s.afterTransition(ctx, orgID, so, from)
	return so, nil
}

// ============================================================================
// QUERIES
// ============================================================================

// GetSalesOrder returns an order with its lines and taxes.
func (s *Service) GetSalesOrder(ctx context.Context, orgID, id int64) (SalesOrder, error) {
	return s.repo.GetSalesOrder(ctx, orgID, id)
}

// ListSalesOrders returns a page of orders.
func (s *Service) ListSalesOrders(ctx context.Context, orgID int64, req ListSalesOrdersRequest) ([]SalesOrder, shared.Pagination, error) {
	if req.Status != "" && !req.Status.IsValid() {
		return nil, shared.Pagination{}, shared.Validationf("unknown sales order status")
	}
	items, total, err := s.repo.ListSalesOrders(ctx, orgID, req)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(req.Page, req.PerPage, total), nil
}

// CountByStatus returns the number of orders per status.
func (s *Service) CountByStatus(ctx context.Context, orgID int64) (map[SalesOrderStatus]int, error) {
	return s.repo.CountByStatus(ctx, orgID)
}

// ============================================================================
// HELPERS
// ============================================================================

func (s *Service) price(ctx context.Context, orgID int64, req SalesOrderRequest) ([]SalesOrderLine, []SalesOrderTax, pricing.Breakdown, error) {
	if req.GlobalDiscountPercent.IsNegative() || req.GlobalDiscountPercent.GreaterThan(decimal.NewFromInt(100)) {
		return nil, nil, pricing.Breakdown{}, shared.Validationf("global discount must be between 0 and 100")
	}
	ids := make([]int64, 0, len(req.Lines))
	for i, l := range req.Lines {
		if err := validateLine(i, l); err != nil {
			return nil, nil, pricing.Breakdown{}, err
		}
		ids = append(ids, l.ProductID)
	}
	snap, err := s.catalog.Snapshot(ctx, orgID, ids)
	if err != nil {
		return nil, nil, pricing.Breakdown{}, err
	}
	rates, err := s.taxes.Snapshot(ctx, orgID, req.TaxIDs)
	if err != nil {
		return nil, nil, pricing.Breakdown{}, err
	}

	lines := make([]SalesOrderLine, 0, len(req.Lines))
	prices := make([]pricing.LinePrice, 0, len(req.Lines))
	for i, l := range req.Lines {
		base := snap.Sale[l.ProductID]
		unit := base
		if l.UnitPrice != nil {
			unit = *l.UnitPrice
		}
		lp := pricing.PriceLine(pricing.LineInput{
			ProductID:        l.ProductID,
			Quantity:         l.Quantity,
			MeasuredQuantity: l.MeasuredQuantity,
			UnitPrice:        unit,
			BasePrice:        base,
			DiscountPercent:  l.DiscountPercent,
		}, snap.Products[l.ProductID])
		line := SalesOrderLine{
			ProductID:        l.ProductID,
			Quantity:         l.Quantity,
			MeasuredQuantity: l.MeasuredQuantity,
			UnitPrice:        unit,
			BasePrice:        base,
			DiscountPercent:  pricing.ClampPercent(l.DiscountPercent),
			DiscountAmount:   pricing.RoundMoney(lp.DiscountAmount),
			Subtotal:         pricing.RoundMoney(lp.Subtotal),
			Estimated:        lp.Estimated,
			LineOrder:        i + 1,
		}
		lines = append(lines, line)
		prices = append(prices, line.Price())
	}
	breakdown := pricing.Compute(pricing.OrderKindSales, prices, rates, req.GlobalDiscountPercent)
	taxes := make([]SalesOrderTax, 0, len(breakdown.Taxes))
	for _, t := range breakdown.Taxes {
		taxes = append(taxes, SalesOrderTax{TaxID: t.TaxID, Name: t.Name, Rate: t.Rate, Amount: t.Amount})
	}
	return lines, taxes, breakdown, nil
}

func validateLine(i int, l SalesOrderLineRequest) error {
	if l.ProductID <= 0 {
		return shared.Validationf(fmt.Sprintf("line %d: product is required", i+1))
	}
	if !l.Quantity.IsPositive() {
		return shared.Validationf(fmt.Sprintf("line %d: quantity must be greater than zero", i+1))
	}
	if l.MeasuredQuantity != nil && !l.MeasuredQuantity.IsPositive() {
		return shared.Validationf(fmt.Sprintf("line %d: measured quantity must be greater than zero", i+1))
	}
	if l.UnitPrice != nil && l.UnitPrice.IsNegative() {
		return shared.Validationf(fmt.Sprintf("line %d: unit price cannot be negative", i+1))
	}
	if l.DiscountPercent.IsNegative() || l.DiscountPercent.GreaterThan(decimal.NewFromInt(100)) {
		return shared.Validationf(fmt.Sprintf("line %d: discount must be between 0 and 100", i+1))
	}
	return nil
}

// computeStored recomputes totals from the persisted lines and the tax rates
// copied onto the order.
func computeStored(so SalesOrder) pricing.Breakdown {
	prices := make([]pricing.LinePrice, 0, len(so.Lines))
	for _, l := range so.Lines {
		prices = append(prices, l.Price())
	}
	rates := make([]pricing.TaxRate, 0, len(so.Taxes))
	for _, t := range so.Taxes {
		rates = append(rates, pricing.TaxRate{TaxID: t.TaxID, Name: t.Name, Rate: t.Rate})
	}
	return pricing.Compute(pricing.OrderKindSales, prices, rates, so.GlobalDiscountPercent)
}

func (so *SalesOrder) applyBreakdown(b pricing.Breakdown) {
	so.Subtotal = b.Subtotal
	so.TaxAmount = b.TotalTax
	so.LineDiscount = b.LineDiscount
	so.GlobalDiscount = b.GlobalDiscount
	so.PreDiscountTotal = b.PreDiscountTotal
	so.TotalAmount = b.Total
}

func guard(so SalesOrder, to SalesOrderStatus) error {
	if so.Status.CanTransitionTo(to) {
		return nil
	}
	return shared.InvalidStatef(fmt.Sprintf("sales order %s cannot move from %s to %s", so.DocNumber, so.Status, to))
}

func applyChange(so *SalesOrder, change StatusChange) {
	at := change.At
	switch so.Status {
	case SalesOrderStatusConfirmed:
		so.ConfirmedAt = &at
	case SalesOrderStatusDispatch:
		so.DispatchedAt = &at
		remittance := change.RemittanceNumber
		so.RemittanceNumber = &remittance
	case SalesOrderStatusDelivered:
		so.DeliveredAt = &at
	case SalesOrderStatusCancelled:
		so.CancelledAt = &at
		if change.Reason != "" {
			reason := change.Reason
			so.CancellationReason = &reason
		}
	}
}

func (s *Service) afterTransition(ctx context.Context, orgID int64, so SalesOrder, from SalesOrderStatus) {
	s.metrics.ObserveTransition("sales", string(from), string(so.Status))
	s.logger.Info("sales order transition",
		slog.Int64("org_id", orgID),
		slog.Int64("sales_order_id", so.ID),
		slog.String("from", string(from)),
		slog.String("to", string(so.Status)),
	)
	s.recordAudit(ctx, orgID, "sales_order."+strings.ToLower(string(so.Status)), so.ID, map[string]any{"from": string(from)})
}

func (s *Service) recordAudit(ctx context.Context, orgID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{OrgID: orgID, Action: action, Entity: "sales_order", EntityID: entityID, Meta: meta}); err != nil {
		s.logger.Warn("record audit", slog.String("action", action), slog.Any("error", err))
	}
}

func withOrderID(lines []SalesOrderLine, taxes []SalesOrderTax, id int64) ([]SalesOrderLine, []SalesOrderTax) {
	for i := range lines {
		lines[i].SalesOrderID = id
	}
	for i := range taxes {
		taxes[i].SalesOrderID = id
	}
	return lines, taxes
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func generateNumber(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, strings.ToUpper(uuid.NewString()[:8]))
}
