// Package dashboard assembles the per-organization operations summary.
package dashboard

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/odyssey-erp/backoffice/internal/accounts"
	"github.com/odyssey-erp/backoffice/internal/procurement"
	"github.com/odyssey-erp/backoffice/internal/sales"
)

// SalesCounter counts sales orders per status.
type SalesCounter interface {
	CountByStatus(ctx context.Context, orgID int64) (map[sales.SalesOrderStatus]int, error)
}

// PurchaseCounter counts purchase orders per status.
type PurchaseCounter interface {
	CountByStatus(ctx context.Context, orgID int64) (map[procurement.POStatus]int, error)
}

// AgingSource reports outstanding balances by age.
type AgingSource interface {
	Aging(ctx context.Context, orgID int64, kind accounts.Kind, asOf time.Time) (accounts.AgingBucket, error)
}

// Balance summarises one side of the ledger.
type Balance struct {
	Pending   decimal.Decimal      `json:"pending"`
	Formatted string               `json:"formatted"`
	Aging     accounts.AgingBucket `json:"aging"`
}

// Summary is the dashboard payload.
type Summary struct {
	AsOf           time.Time                      `json:"as_of"`
	SalesOrders    map[sales.SalesOrderStatus]int `json:"sales_orders"`
	PurchaseOrders map[procurement.POStatus]int   `json:"purchase_orders"`
	Receivable     Balance                        `json:"receivable"`
	Payable        Balance                        `json:"payable"`
}

// Service computes summaries by fanning out to the owning modules.
type Service struct {
	sales     SalesCounter
	purchases PurchaseCounter
	aging     AgingSource
	printer   *message.Printer
	now       func() time.Time
}

// NewService wires the summary sources. Amounts are formatted for tag.
func NewService(salesCounter SalesCounter, purchaseCounter PurchaseCounter, aging AgingSource, tag language.Tag) *Service {
	return &Service{
		sales:     salesCounter,
		purchases: purchaseCounter,
		aging:     aging,
		printer:   message.NewPrinter(tag),
		now:       time.Now,
	}
}

// Summary loads every section concurrently; the first failure cancels the rest.
func (s *Service) Summary(ctx context.Context, orgID int64) (Summary, error) {
	out := Summary{AsOf: s.now().UTC()}
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		counts, err := s.sales.CountByStatus(ctx, orgID)
		out.SalesOrders = counts
		return err
	})
	g.Go(func() error {
		counts, err := s.purchases.CountByStatus(ctx, orgID)
		out.PurchaseOrders = counts
		return err
	})
	g.Go(func() error {
		bucket, err := s.aging.Aging(ctx, orgID, accounts.KindReceivable, out.AsOf)
		out.Receivable = s.balance(bucket)
		return err
	})
	g.Go(func() error {
		bucket, err := s.aging.Aging(ctx, orgID, accounts.KindPayable, out.AsOf)
		out.Payable = s.balance(bucket)
		return err
	})

	if err := g.Wait(); err != nil {
		return Summary{}, err
	}
	return out, nil
}

func (s *Service) balance(bucket accounts.AgingBucket) Balance {
	pending := bucket.Total()
	return Balance{Pending: pending, Formatted: s.Format(pending), Aging: bucket}
}

// Format renders amount with locale grouping and two decimals.
func (s *Service) Format(amount decimal.Decimal) string {
	amount = amount.Round(2)
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Abs()
	}
	whole := amount.Truncate(0)
	cents := amount.Sub(whole).Shift(2).IntPart()
	return sign + s.printer.Sprintf("%d", whole.IntPart()) + s.printer.Sprintf("%.2f", float64(cents)/100)[1:]
}
