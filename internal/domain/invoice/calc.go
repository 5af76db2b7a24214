package invoice

import (
	"time"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/money"
	"github.com/shopspring/decimal"
)

// discountAmount resolves a flat or percentage discount against base, capped at base
func discountAmount(kind DiscountType, value, base decimal.Decimal) decimal.Decimal {
	var amount decimal.Decimal
	if kind == DiscountPercentage {
		amount = money.Percent(base, value)
	} else {
		amount = money.Round(value)
	}
	return money.Max(decimal.Zero, money.Min(amount, base))
}

// Calculate fills the derived amounts of the item for the given tax mode
func (it *Item) Calculate(mode TaxMode) {
	line := money.Round(it.Quantity.Mul(it.UnitPrice))
	it.DiscountAmount = discountAmount(it.DiscountType, it.DiscountValue, line)
	afterDiscount := line.Sub(it.DiscountAmount)

	if mode == TaxInclusive {
		divisor := decimal.NewFromInt(1).Add(it.TaxRate.Div(money.Hundred))
		base := money.Round(afterDiscount.Div(divisor))
		it.Subtotal = base
		it.TaxAmount = afterDiscount.Sub(base)
		it.Total = afterDiscount
		return
	}

	it.TaxAmount = money.Percent(afterDiscount, it.TaxRate)
	it.Subtotal = afterDiscount
	it.Total = money.Round(afterDiscount.Add(it.TaxAmount))
}

// Recalculate recomputes every item and the invoice totals, keeping amount_paid
func (i *Invoice) Recalculate() {
	subtotal := decimal.Zero
	taxTotal := decimal.Zero
	lineDiscounts := decimal.Zero

	for idx := range i.Items {
		i.Items[idx].Calculate(i.TaxMode)
		subtotal = subtotal.Add(i.Items[idx].Subtotal)
		taxTotal = taxTotal.Add(i.Items[idx].TaxAmount)
		lineDiscounts = lineDiscounts.Add(i.Items[idx].DiscountAmount)
	}

	i.Subtotal = subtotal
	i.TaxTotal = taxTotal
	i.GlobalDiscountAmount = discountAmount(i.DiscountType, i.GlobalDiscountValue, subtotal)
	i.DiscountTotal = lineDiscounts.Add(i.GlobalDiscountAmount)
	i.TotalAmount = money.Max(decimal.Zero, money.Round(subtotal.Add(taxTotal).Sub(i.GlobalDiscountAmount)))
	i.AmountDue = money.Max(decimal.Zero, i.TotalAmount.Sub(i.AmountPaid))
}

// ApplyPayment adds amount to amount_paid and moves the invoice to paid or part_paid
func (i *Invoice) ApplyPayment(amount decimal.Decimal, at time.Time) {
	i.AmountPaid = i.AmountPaid.Add(amount)
	i.AmountDue = money.Max(decimal.Zero, i.TotalAmount.Sub(i.AmountPaid))
	if i.AmountDue.IsZero() {
		i.Status = StatusPaid
		i.PaidAt = &at
		return
	}
	if i.AmountPaid.IsPositive() {
		i.Status = StatusPartPaid
	}
}
