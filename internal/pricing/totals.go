package pricing

import "github.com/shopspring/decimal"

// OrderKind selects which totals policy applies.
type OrderKind string

const (
	OrderKindSales    OrderKind = "SALES"
	OrderKindPurchase OrderKind = "PURCHASE"
)

// TaxRate is a tax snapshot copied onto an order when it is applied.
type TaxRate struct {
	TaxID int64           `json:"tax_id"`
	Name  string          `json:"name"`
	Rate  decimal.Decimal `json:"rate"`
}

// TaxAmount is the computed amount for one applied tax.
type TaxAmount struct {
	TaxID  int64           `json:"tax_id"`
	Name   string          `json:"name"`
	Rate   decimal.Decimal `json:"rate"`
	Amount decimal.Decimal `json:"amount"`
}

// Breakdown is the full totals summary of an order.
type Breakdown struct {
	Subtotal         decimal.Decimal `json:"subtotal"`
	Taxes            []TaxAmount     `json:"taxes"`
	TotalTax         decimal.Decimal `json:"total_tax"`
	LineDiscount     decimal.Decimal `json:"line_discount"`
	GlobalDiscount   decimal.Decimal `json:"global_discount"`
	TotalDiscount    decimal.Decimal `json:"total_discount"`
	PreDiscountTotal decimal.Decimal `json:"pre_discount_total"`
	Total            decimal.Decimal `json:"total"`
}

// Policy folds priced lines, taxes and an order discount into a Breakdown.
type Policy interface {
	Kind() OrderKind
	Compute(lines []LinePrice, taxes []TaxRate, globalDiscountPercent decimal.Decimal) Breakdown
}

// PurchasePolicy discounts before tax and taxes the undiscounted subtotal.
type PurchasePolicy struct{}

// SalesPolicy taxes the line-discounted subtotal and applies the order
// discount to the taxed total.
type SalesPolicy struct{}

// PolicyFor returns the policy for an order kind. Unknown kinds use SalesPolicy.
func PolicyFor(kind OrderKind) Policy {
	if kind == OrderKindPurchase {
		return PurchasePolicy{}
	}
	return SalesPolicy{}
}

// Kind implements Policy.
func (PurchasePolicy) Kind() OrderKind { return OrderKindPurchase }

// Compute implements Policy.
func (PurchasePolicy) Compute(lines []LinePrice, taxes []TaxRate, globalDiscountPercent decimal.Decimal) Breakdown {
	subtotal, lineDiscount := sumLines(lines)
	globalDiscount := Discount(subtotal, globalDiscountPercent)
	taxAmounts, totalTax := applyTaxes(subtotal, taxes)

	preDiscount := subtotal.Add(totalTax)
	total := ClampNonNegative(subtotal.Sub(globalDiscount).Add(totalTax))
	return finish(Breakdown{
		Subtotal:         subtotal,
		Taxes:            taxAmounts,
		TotalTax:         totalTax,
		LineDiscount:     lineDiscount,
		GlobalDiscount:   globalDiscount,
		PreDiscountTotal: preDiscount,
		Total:            total,
	})
}

// Kind implements Policy.
func (SalesPolicy) Kind() OrderKind { return OrderKindSales }

// Compute implements Policy.
func (SalesPolicy) Compute(lines []LinePrice, taxes []TaxRate, globalDiscountPercent decimal.Decimal) Breakdown {
	subtotal, lineDiscount := sumLines(lines)
	taxAmounts, totalTax := applyTaxes(subtotal, taxes)

	preDiscount := subtotal.Add(totalTax)
	globalDiscount := Discount(preDiscount, globalDiscountPercent)
	total := ClampNonNegative(preDiscount.Sub(globalDiscount))
	return finish(Breakdown{
		Subtotal:         subtotal,
		Taxes:            taxAmounts,
		TotalTax:         totalTax,
		LineDiscount:     lineDiscount,
		GlobalDiscount:   globalDiscount,
		PreDiscountTotal: preDiscount,
		Total:            total,
	})
}

func sumLines(lines []LinePrice) (subtotal, discount decimal.Decimal) {
	subtotal, discount = decimal.Zero, decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(ClampNonNegative(l.Subtotal))
		discount = discount.Add(ClampNonNegative(l.DiscountAmount))
	}
	return subtotal, discount
}

// applyTaxes rounds each tax before summing so the stored rows add up to
// the order's total tax.
func applyTaxes(base decimal.Decimal, taxes []TaxRate) ([]TaxAmount, decimal.Decimal) {
	total := decimal.Zero
	out := make([]TaxAmount, 0, len(taxes))
	for _, t := range taxes {
		rate := ClampNonNegative(t.Rate)
		amount := RoundMoney(PercentOf(base, rate))
		out = append(out, TaxAmount{TaxID: t.TaxID, Name: t.Name, Rate: rate, Amount: amount})
		total = total.Add(amount)
	}
	return out, total
}

// finish rounds the persisted amounts once, after all arithmetic is done.
func finish(b Breakdown) Breakdown {
	b.Subtotal = RoundMoney(b.Subtotal)
	b.TotalTax = RoundMoney(b.TotalTax)
	b.LineDiscount = RoundMoney(b.LineDiscount)
	b.GlobalDiscount = RoundMoney(b.GlobalDiscount)
	b.TotalDiscount = b.LineDiscount.Add(b.GlobalDiscount)
	b.PreDiscountTotal = RoundMoney(b.PreDiscountTotal)
	b.Total = RoundMoney(b.Total)
	return b
}

// Compute applies the policy selected by kind.
func Compute(kind OrderKind, lines []LinePrice, taxes []TaxRate, globalDiscountPercent decimal.Decimal) Breakdown {
	return PolicyFor(kind).Compute(lines, taxes, globalDiscountPercent)
}
