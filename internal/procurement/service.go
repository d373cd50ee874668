package procurement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/backoffice/internal/accounts"
	"github.com/odyssey-erp/backoffice/internal/inventory"
	"github.com/odyssey-erp/backoffice/internal/masterdata/products"
	"github.com/odyssey-erp/backoffice/internal/observability"
	"github.com/odyssey-erp/backoffice/internal/pricing"
	"github.com/odyssey-erp/backoffice/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetPO(ctx context.Context, orgID, id int64) (PurchaseOrder, error)
	ListPOs(ctx context.Context, orgID int64, filter ListFilter) ([]PurchaseOrder, int, error)
	CountByStatus(ctx context.Context, orgID int64) (map[POStatus]int, error)
}

// CatalogPort resolves product snapshots.
type CatalogPort interface {
	Snapshot(ctx context.Context, orgID int64, productIDs []int64) (products.Snapshot, error)
}

// TaxPort resolves tax rates at the moment they are applied.
type TaxPort interface {
	Snapshot(ctx context.Context, orgID int64, ids []int64) ([]pricing.TaxRate, error)
}

// InventoryPort exposes required inventory integration.
type InventoryPort interface {
	ReceiveLot(ctx context.Context, tx inventory.TxRepository, orgID int64, input inventory.LotInput) (inventory.Lot, error)
}

// AccountsPort opens and closes the payable of an order.
type AccountsPort interface {
	OpenForOrder(ctx context.Context, tx accounts.TxRepository, orgID int64, input accounts.OpenInput) (accounts.Account, error)
}

// LockPort serializes receipts of the same order.
type LockPort interface {
	Acquire(ctx context.Context, key string) (func(), error)
}

// IdempotencyPort remembers receipts already in flight or processed.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Deps bundles the collaborators of Service.
type Deps struct {
	Catalog     CatalogPort
	Taxes       TaxPort
	Inventory   InventoryPort
	Accounts    AccountsPort
	Locks       LockPort
	Idempotency IdempotencyPort
	Audit       AuditPort
	Publisher   ReceiptPublisher
	Metrics     *observability.Metrics
	Logger      *slog.Logger
}

// Service orchestrates procurement flows.
type Service struct {
	repo RepositoryPort
	deps Deps
	now  func() time.Time
}

// NewService constructs procurement service.
func NewService(repo RepositoryPort, deps Deps) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{repo: repo, deps: deps, now: time.Now}
}

// Preview prices an order without persisting it.
func (s *Service) Preview(ctx context.Context, orgID int64, input PurchaseOrderInput) (Preview, error) {
	lines, _, breakdown, err := s.price(ctx, orgID, input)
	if err != nil {
		return Preview{}, err
	}
	return Preview{Lines: lines, Breakdown: breakdown}, nil
}

// CreatePurchaseOrder persists a new ORDERED purchase order.
func (s *Service) CreatePurchaseOrder(ctx context.Context, orgID int64, input PurchaseOrderInput) (PurchaseOrder, error) {
	if err := validateHeader(input); err != nil {
		return PurchaseOrder{}, err
	}
	lines, taxes, breakdown, err := s.price(ctx, orgID, input)
	if err != nil {
		return PurchaseOrder{}, err
	}
	now := s.now()
	po := PurchaseOrder{
		OrgID:                 orgID,
		Number:                generateNumber("PO"),
		SupplierID:            input.SupplierID,
		Status:                POStatusOrdered,
		GlobalDiscountPercent: pricing.ClampPercent(input.GlobalDiscountPercent),
		DeliveryDate:          input.DeliveryDate,
		Note:                  strings.TrimSpace(input.Note),
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	po.applyBreakdown(breakdown)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.CreatePO(ctx, po)
		if err != nil {
			return err
		}
		po.ID = id
		if err := tx.ReplaceLines(ctx, id, lines); err != nil {
			return err
		}
		return tx.ReplaceTaxes(ctx, id, taxes)
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	po.Lines, po.Taxes = withOrderID(lines, taxes, po.ID)
	s.recordAudit(ctx, orgID, "PO_CREATE", po.ID, map[string]any{"number": po.Number})
	return po, nil
}

// UpdateOrdered replaces the content of an order that is still ORDERED.
func (s *Service) UpdateOrdered(ctx context.Context, orgID, id int64, input PurchaseOrderInput) (PurchaseOrder, error) {
	if err := validateHeader(input); err != nil {
		return PurchaseOrder{}, err
	}
	lines, taxes, breakdown, err := s.price(ctx, orgID, input)
	if err != nil {
		return PurchaseOrder{}, err
	}
	var po PurchaseOrder
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.LockPO(ctx, orgID, id)
		if err != nil {
			return err
		}
		if !current.Status.IsEditable() {
			return shared.InvalidStatef(fmt.Sprintf("purchase order %s is %s and can no longer be edited", current.Number, current.Status))
		}
		po = current
		po.SupplierID = input.SupplierID
		po.GlobalDiscountPercent = pricing.ClampPercent(input.GlobalDiscountPercent)
		po.DeliveryDate = input.DeliveryDate
		po.Note = strings.TrimSpace(input.Note)
		po.UpdatedAt = s.now()
		po.applyBreakdown(breakdown)
		if err := tx.UpdateOrdered(ctx, po); err != nil {
			return err
		}
		if err := tx.ReplaceLines(ctx, id, lines); err != nil {
			return err
		}
		return tx.ReplaceTaxes(ctx, id, taxes)
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	po.Lines, po.Taxes = withOrderID(lines, taxes, id)
	s.recordAudit(ctx, orgID, "PO_UPDATE", id, nil)
	return po, nil
}

// MarkInTransit records the shipment and moves the order to IN_TRANSIT.
func (s *Service) MarkInTransit(ctx context.Context, orgID, id int64, input InTransitInput) (PurchaseOrder, error) {
	provider := strings.TrimSpace(input.LogisticsProvider)
	if input.DeliveryDate.IsZero() {
		return PurchaseOrder{}, shared.Validationf("delivery date is required")
	}
	if provider == "" {
		return PurchaseOrder{}, shared.Validationf("logistics provider is required")
	}
	return s.transition(ctx, orgID, id, POStatusInTransit, StatusChange{DeliveryDate: input.DeliveryDate, LogisticsProvider: provider})
}

// CancelPurchaseOrder cancels an order that has not been received.
func (s *Service) CancelPurchaseOrder(ctx context.Context, orgID, id int64, input CancelInput) (PurchaseOrder, error) {
	return s.transition(ctx, orgID, id, POStatusCancelled, StatusChange{Reason: strings.TrimSpace(input.Reason)})
}

func (s *Service) transition(ctx context.Context, orgID, id int64, to POStatus, change StatusChange) (PurchaseOrder, error) {
	var (
		po   PurchaseOrder
		from POStatus
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.LockPO(ctx, orgID, id)
		if err != nil {
			return err
		}
		if err := guard(current, to); err != nil {
			return err
		}
		from = current.Status
		change.At = s.now()
		if err := tx.TransitionStatus(ctx, orgID, id, from, to, change); err != nil {
			return err
		}
		po = current
		po.Status = to
		po.UpdatedAt = change.At
		applyChange(&po, change)
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.afterTransition(ctx, orgID, po, from)
	return po, nil
}

// ReceivePurchaseOrder takes stock in for every received line, stores the
// intake data, flips the order to RECEIVED and opens its payable. All of it
// commits in one transaction or not at all.
func (s *Service) ReceivePurchaseOrder(ctx context.Context, orgID, id int64, input ReceiveInput) (po PurchaseOrder, err error) {
	defer func() { s.deps.Metrics.ObserveReceipt(err) }()

	current, err := s.repo.GetPO(ctx, orgID, id)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if err := guard(current, POStatusReceived); err != nil {
		return PurchaseOrder{}, err
	}
	items, err := validateReceipt(current, input.Items)
	if err != nil {
		return PurchaseOrder{}, err
	}

	if s.deps.Locks != nil {
		release, err := s.deps.Locks.Acquire(ctx, shared.OrderLockKey("purchase", orgID, id))
		if err != nil {
			return PurchaseOrder{}, err
		}
		defer release()
	}

	key := shared.IdempotencyKey(orgID, "po-receive", id)
	if s.deps.Idempotency != nil {
		if err := s.deps.Idempotency.CheckAndInsert(ctx, key, "procurement.receipt"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return PurchaseOrder{}, shared.Conflictf("purchase order was already received")
			}
			return PurchaseOrder{}, err
		}
	}

	var events []ReceiptLineEvent
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		locked, err := tx.LockPO(ctx, orgID, id)
		if err != nil {
			return err
		}
		if err := guard(locked, POStatusReceived); err != nil {
			return err
		}
		lines := make(map[int64]POLine, len(locked.Lines))
		for _, l := range locked.Lines {
			lines[l.ID] = l
		}

		receipts := make([]LineReceipt, 0, len(items))
		events = events[:0]
		for _, item := range items {
			line := lines[item.LineID]
			lot, err := s.deps.Inventory.ReceiveLot(ctx, tx.Inventory(), orgID, inventory.LotInput{
				ProductID:        line.ProductID,
				PurchaseOrderID:  id,
				LotNumber:        item.LotNumber,
				ExpirationDate:   item.ExpirationDate,
				Quantity:         line.Quantity,
				MeasuredQuantity: item.MeasuredQuantity,
				UnitCost:         line.NetUnitCost(),
				RefID:            fmt.Sprintf("%s:%d", locked.Number, line.ID),
				Note:             fmt.Sprintf("PO %s", locked.Number),
			})
			if err != nil {
				return shared.WithPrefix(fmt.Sprintf("line %d", line.LineOrder), err)
			}
			receipts = append(receipts, LineReceipt{
				LineID:           line.ID,
				LotID:            lot.ID,
				LotNumber:        lot.LotNumber,
				ExpirationDate:   lot.ExpirationDate,
				MeasuredQuantity: item.MeasuredQuantity,
			})
			events = append(events, ReceiptLineEvent{LineID: line.ID, ProductID: line.ProductID, LotID: lot.ID, LotNumber: lot.LotNumber, Quantity: line.Quantity})
		}
		if err := tx.SaveReceipts(ctx, id, receipts); err != nil {
			return err
		}

		change := StatusChange{At: s.now()}
		if err := tx.TransitionStatus(ctx, orgID, id, locked.Status, POStatusReceived, change); err != nil {
			return err
		}
		po = locked
		po.Status = POStatusReceived
		po.UpdatedAt = change.At
		applyChange(&po, change)
		applyReceipts(&po, receipts)

		_, err = s.deps.Accounts.OpenForOrder(ctx, tx.Accounts(), orgID, accounts.OpenInput{
			Kind:           accounts.KindPayable,
			OrderID:        po.ID,
			OrderNumber:    po.Number,
			CounterpartyID: po.SupplierID,
			Total:          po.TotalAmount,
		})
		return err
	})
	if err != nil {
		s.releaseIdempotency(ctx, key)
		return PurchaseOrder{}, err
	}

	s.afterTransition(ctx, orgID, po, current.Status)
	if s.deps.Publisher != nil {
		evt := ReceiptPostedEvent{
			OrgID:           orgID,
			PurchaseOrderID: po.ID,
			Number:          po.Number,
			SupplierID:      po.SupplierID,
			Total:           po.TotalAmount,
			ReceivedAt:      po.UpdatedAt,
			Lines:           events,
		}
		if err := s.deps.Publisher.PublishReceipt(ctx, evt); err != nil {
			s.deps.Logger.Warn("publish receipt", slog.Int64("purchase_order_id", po.ID), slog.Any("error", err))
		}
	}
	return po, nil
}

// releaseIdempotency drops the receipt key after a rolled back attempt so the
// order can be received again. It must run even when ctx is already done.
func (s *Service) releaseIdempotency(ctx context.Context, key string) {
	if s.deps.Idempotency == nil {
		return
	}
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := s.deps.Idempotency.Delete(releaseCtx, key); err != nil {
		s.deps.Logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", err))
	}
}

// GetPurchaseOrder returns an order with its lines and taxes.
func (s *Service) GetPurchaseOrder(ctx context.Context, orgID, id int64) (PurchaseOrder, error) {
	return s.repo.GetPO(ctx, orgID, id)
}

// ListPurchaseOrders returns a page of orders.
func (s *Service) ListPurchaseOrders(ctx context.Context, orgID int64, filter ListFilter) ([]PurchaseOrder, shared.Pagination, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, shared.Pagination{}, shared.Validationf("unknown purchase order status")
	}
	items, total, err := s.repo.ListPOs(ctx, orgID, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// CountByStatus returns the number of orders per status.
func (s *Service) CountByStatus(ctx context.Context, orgID int64) (map[POStatus]int, error) {
	return s.repo.CountByStatus(ctx, orgID)
}

func (s *Service) price(ctx context.Context, orgID int64, input PurchaseOrderInput) ([]POLine, []POTax, pricing.Breakdown, error) {
	if input.GlobalDiscountPercent.IsNegative() || input.GlobalDiscountPercent.GreaterThan(decimal.NewFromInt(100)) {
		return nil, nil, pricing.Breakdown{}, shared.Validationf("global discount must be between 0 and 100")
	}
	ids := make([]int64, 0, len(input.Lines))
	for i, l := range input.Lines {
		if err := validateLine(i, l); err != nil {
			return nil, nil, pricing.Breakdown{}, err
		}
		ids = append(ids, l.ProductID)
	}
	snap, err := s.deps.Catalog.Snapshot(ctx, orgID, ids)
	if err != nil {
		return nil, nil, pricing.Breakdown{}, err
	}
	rates, err := s.deps.Taxes.Snapshot(ctx, orgID, input.TaxIDs)
	if err != nil {
		return nil, nil, pricing.Breakdown{}, err
	}

	lines := make([]POLine, 0, len(input.Lines))
	prices := make([]pricing.LinePrice, 0, len(input.Lines))
	for i, l := range input.Lines {
		base := snap.Cost[l.ProductID]
		cost := base
		if l.UnitCost != nil {
			cost = *l.UnitCost
		}
		lp := pricing.PriceLine(pricing.LineInput{
			ProductID:        l.ProductID,
			Quantity:         l.Quantity,
			MeasuredQuantity: l.MeasuredQuantity,
			UnitPrice:        cost,
			BasePrice:        base,
			DiscountPercent:  l.DiscountPercent,
		}, snap.Products[l.ProductID])
		line := POLine{
			ProductID:        l.ProductID,
			Quantity:         l.Quantity,
			MeasuredQuantity: l.MeasuredQuantity,
			UnitCost:         cost,
			BaseCost:         base,
			DiscountPercent:  pricing.ClampPercent(l.DiscountPercent),
			DiscountAmount:   pricing.RoundMoney(lp.DiscountAmount),
			Subtotal:         pricing.RoundMoney(lp.Subtotal),
			Estimated:        lp.Estimated,
			LineOrder:        i + 1,
		}
		lines = append(lines, line)
		prices = append(prices, line.Price())
	}
	breakdown := pricing.Compute(pricing.OrderKindPurchase, prices, rates, input.GlobalDiscountPercent)
	taxes := make([]POTax, 0, len(breakdown.Taxes))
	for _, t := range breakdown.Taxes {
		taxes = append(taxes, POTax{TaxID: t.TaxID, Name: t.Name, Rate: t.Rate, Amount: t.Amount})
	}
	return lines, taxes, breakdown, nil
}

func validateHeader(input PurchaseOrderInput) error {
	if input.SupplierID <= 0 {
		return shared.Validationf("supplier is required")
	}
	if len(input.Lines) == 0 {
		return shared.Validationf("purchase order requires at least one line")
	}
	return nil
}

func validateLine(i int, l POLineInput) error {
	if l.ProductID <= 0 {
		return shared.Validationf(fmt.Sprintf("line %d: product is required", i+1))
	}
	if !l.Quantity.IsPositive() {
		return shared.Validationf(fmt.Sprintf("line %d: quantity must be greater than zero", i+1))
	}
	if l.MeasuredQuantity != nil && !l.MeasuredQuantity.IsPositive() {
		return shared.Validationf(fmt.Sprintf("line %d: measured quantity must be greater than zero", i+1))
	}
	if l.UnitCost != nil && l.UnitCost.IsNegative() {
		return shared.Validationf(fmt.Sprintf("line %d: unit cost cannot be negative", i+1))
	}
	if l.DiscountPercent.IsNegative() || l.DiscountPercent.GreaterThan(decimal.NewFromInt(100)) {
		return shared.Validationf(fmt.Sprintf("line %d: discount must be between 0 and 100", i+1))
	}
	return nil
}

// validateReceipt checks every received item before anything is written and
// returns the items that take stock in.
func validateReceipt(po PurchaseOrder, items []ReceiveItem) ([]ReceiveItem, error) {
	lines := make(map[int64]POLine, len(po.Lines))
	for _, l := range po.Lines {
		lines[l.ID] = l
	}
	seen := make(map[int64]struct{}, len(items))
	received := make([]ReceiveItem, 0, len(items))
	for _, item := range items {
		line, ok := lines[item.LineID]
		if !ok {
			return nil, shared.Validationf(fmt.Sprintf("line %d does not belong to purchase order %s", item.LineID, po.Number))
		}
		if _, dup := seen[item.LineID]; dup {
			return nil, shared.Validationf(fmt.Sprintf("line %d is listed more than once", line.LineOrder))
		}
		seen[item.LineID] = struct{}{}
		if !item.Received {
			continue
		}
		item.LotNumber = strings.TrimSpace(item.LotNumber)
		if item.LotNumber == "" {
			return nil, shared.Validationf(fmt.Sprintf("line %d: lot number is required", line.LineOrder))
		}
		if item.ExpirationDate.IsZero() {
			return nil, shared.Validationf(fmt.Sprintf("line %d: expiration date is required", line.LineOrder))
		}
		if !item.MeasuredQuantity.IsPositive() {
			return nil, shared.Validationf(fmt.Sprintf("line %d: measured quantity must be greater than zero", line.LineOrder))
		}
		received = append(received, item)
	}
	if len(received) == 0 {
		return nil, shared.Validationf("mark at least one line as received")
	}
	return received, nil
}

func (po *PurchaseOrder) applyBreakdown(b pricing.Breakdown) {
	po.Subtotal = b.Subtotal
	po.TaxAmount = b.TotalTax
	po.LineDiscount = b.LineDiscount
	po.GlobalDiscount = b.GlobalDiscount
	po.PreDiscountTotal = b.PreDiscountTotal
	po.TotalAmount = b.Total
}

func guard(po PurchaseOrder, to POStatus) error {
	if po.Status.CanTransitionTo(to) {
		return nil
	}
	return shared.InvalidStatef(fmt.Sprintf("purchase order %s cannot move from %s to %s", po.Number, po.Status, to))
}

func applyChange(po *PurchaseOrder, change StatusChange) {
	at := change.At
	switch po.Status {
	case POStatusInTransit:
		po.InTransitAt = &at
		po.DeliveryDate = change.DeliveryDate
		po.LogisticsProvider = change.LogisticsProvider
	case POStatusReceived:
		po.ReceivedAt = &at
	case POStatusCancelled:
		po.CancelledAt = &at
		po.CancellationReason = change.Reason
	}
}

func applyReceipts(po *PurchaseOrder, receipts []LineReceipt) {
	byLine := make(map[int64]LineReceipt, len(receipts))
	for _, r := range receipts {
		byLine[r.LineID] = r
	}
	for i, l := range po.Lines {
		r, ok := byLine[l.ID]
		if !ok {
			continue
		}
		measured := r.MeasuredQuantity
		po.Lines[i].Received = true
		po.Lines[i].LotID = r.LotID
		po.Lines[i].LotNumber = r.LotNumber
		po.Lines[i].ExpirationDate = r.ExpirationDate
		po.Lines[i].ReceivedMeasuredQuantity = &measured
	}
}

func (s *Service) afterTransition(ctx context.Context, orgID int64, po PurchaseOrder, from POStatus) {
	s.deps.Metrics.ObserveTransition("purchase", string(from), string(po.Status))
	s.deps.Logger.Info("purchase order transition",
		slog.Int64("org_id", orgID),
		slog.Int64("purchase_order_id", po.ID),
		slog.String("from", string(from)),
		slog.String("to", string(po.Status)),
	)
	s.recordAudit(ctx, orgID, "PO_"+string(po.Status), po.ID, map[string]any{"from": string(from), "number": po.Number})
}

func (s *Service) recordAudit(ctx context.Context, orgID int64, action string, entityID int64, meta map[string]any) {
	if s.deps.Audit == nil {
		return
	}
	if err := s.deps.Audit.Record(ctx, shared.AuditLog{OrgID: orgID, Action: action, Entity: "purchase_order", EntityID: entityID, Meta: meta}); err != nil {
		s.deps.Logger.Warn("record audit", slog.String("action", action), slog.Any("error", err))
	}
}

func withOrderID(lines []POLine, taxes []POTax, id int64) ([]POLine, []POTax) {
	for i := range lines {
		lines[i].PurchaseOrderID = id
	}
	for i := range taxes {
		taxes[i].PurchaseOrderID = id
	}
	return lines, taxes
}

func generateNumber(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, strings.ToUpper(uuid.NewString()[:8]))
}
