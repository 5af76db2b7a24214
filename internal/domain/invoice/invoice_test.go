package invoice

import (
	"testing"
	"time"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/validator"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestStatusTransitions(t *testing.T) {
	allowed := map[Status][]Status{
		StatusDraft:    {StatusSent, StatusVoid},
		StatusSent:     {StatusViewed, StatusPartPaid, StatusPaid, StatusOverdue, StatusVoid},
		StatusViewed:   {StatusPartPaid, StatusPaid, StatusOverdue, StatusVoid},
		StatusPartPaid: {StatusPaid, StatusOverdue, StatusVoid, StatusWriteOff},
		StatusOverdue:  {StatusPartPaid, StatusPaid, StatusVoid, StatusWriteOff},
	}
	all := []Status{StatusDraft, StatusSent, StatusViewed, StatusPartPaid, StatusPaid, StatusOverdue, StatusVoid, StatusWriteOff}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, ok := range allowed[from] {
				if ok == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}

	assert.True(t, StatusPaid.IsTerminal())
	assert.True(t, StatusVoid.IsTerminal())
	assert.True(t, StatusWriteOff.IsTerminal())
	assert.False(t, StatusOverdue.IsTerminal())
	assert.False(t, Status("archived").IsValid())
}

func TestItemCalculateExclusive(t *testing.T) {
	item := Item{Quantity: d("3"), UnitPrice: d("19.99"), TaxRate: d("7.5"), DiscountType: DiscountPercentage, DiscountValue: d("10")}
	item.Calculate(TaxExclusive)

	assert.Equal(t, "6", item.DiscountAmount.String())
	assert.Equal(t, "53.97", item.Subtotal.String())
	assert.Equal(t, "4.05", item.TaxAmount.String())
	assert.Equal(t, "58.02", item.Total.String())
}

func TestItemCalculateInclusive(t *testing.T) {
	item := Item{Quantity: d("1"), UnitPrice: d("107.5"), TaxRate: d("7.5"), DiscountType: DiscountFlat}
	item.Calculate(TaxInclusive)

	assert.Equal(t, "100", item.Subtotal.String())
	assert.Equal(t, "7.5", item.TaxAmount.String())
	assert.Equal(t, "107.5", item.Total.String())
}

func TestItemDiscountCappedAtLine(t *testing.T) {
	item := Item{Quantity: d("1"), UnitPrice: d("20"), DiscountType: DiscountFlat, DiscountValue: d("50")}
	item.Calculate(TaxExclusive)

	assert.Equal(t, "20", item.DiscountAmount.String())
	assert.True(t, item.Total.IsZero())
}

func TestInvoiceRecalculate(t *testing.T) {
	inv := Invoice{
		TaxMode:             TaxExclusive,
		DiscountType:        DiscountPercentage,
		GlobalDiscountValue: d("10"),
		AmountPaid:          d("50"),
		Items: []Item{
			{Quantity: d("2"), UnitPrice: d("100"), TaxRate: d("10"), DiscountType: DiscountFlat},
			{Quantity: d("1"), UnitPrice: d("50"), DiscountType: DiscountFlat, DiscountValue: d("5")},
		},
	}
	inv.Recalculate()

	assert.Equal(t, "245", inv.Subtotal.String())
	assert.Equal(t, "20", inv.TaxTotal.String())
	assert.Equal(t, "24.5", inv.GlobalDiscountAmount.String())
	assert.Equal(t, "29.5", inv.DiscountTotal.String())
	assert.Equal(t, "240.5", inv.TotalAmount.String())
	assert.Equal(t, "190.5", inv.AmountDue.String())
}

func TestInvoiceTotalNeverNegative(t *testing.T) {
	inv := Invoice{
		TaxMode:             TaxExclusive,
		DiscountType:        DiscountFlat,
		GlobalDiscountValue: d("500"),
		Items:               []Item{{Quantity: d("1"), UnitPrice: d("10"), DiscountType: DiscountFlat}},
	}
	inv.Recalculate()

	assert.Equal(t, "10", inv.GlobalDiscountAmount.String())
	assert.True(t, inv.TotalAmount.IsZero())
	assert.True(t, inv.AmountDue.IsZero())
}

func TestApplyPayment(t *testing.T) {
	now := time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)
	inv := Invoice{Status: StatusSent, TotalAmount: d("100"), AmountDue: d("100")}

	inv.ApplyPayment(d("40"), now)
	assert.Equal(t, StatusPartPaid, inv.Status)
	assert.Equal(t, "60", inv.AmountDue.String())
	assert.Nil(t, inv.PaidAt)

	inv.ApplyPayment(d("60"), now)
	assert.Equal(t, StatusPaid, inv.Status)
	assert.True(t, inv.AmountDue.IsZero())
	require.NotNil(t, inv.PaidAt)
	assert.Equal(t, now, *inv.PaidAt)
}

func TestIsOverdueOn(t *testing.T) {
	due := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	inv := Invoice{Status: StatusSent, DueDate: due, AmountDue: d("10")}

	assert.False(t, inv.IsOverdueOn(due))
	assert.True(t, inv.IsOverdueOn(due.AddDate(0, 0, 1)))

	inv.AmountDue = decimal.Zero
	assert.False(t, inv.IsOverdueOn(due.AddDate(0, 0, 1)))

	inv = Invoice{Status: StatusDraft, DueDate: due, AmountDue: d("10")}
	assert.False(t, inv.IsOverdueOn(due.AddDate(0, 0, 5)))
}

func TestCreateInvoiceRequestValidate(t *testing.T) {
	req := CreateInvoiceRequest{
		ClientID:  "0190b1a4-8d3b-7c2e-9f00-000000000001",
		IssueDate: "2024-03-10",
		DueDate:   "2024-03-01",
		Items: []ItemInput{
			{Description: "", Quantity: d("0"), UnitPrice: d("-1")},
		},
	}

	var errs validator.ValidationErrors
	require.ErrorAs(t, req.Validate(), &errs)
	m := errs.ToMap()
	assert.Equal(t, "due_date cannot be before issue_date", m["due_date"])
	assert.Equal(t, "description is required", m["items[0].description"])
	assert.Equal(t, "quantity must be greater than 0", m["items[0].quantity"])
	assert.Equal(t, "unit_price cannot be negative", m["items[0].unit_price"])

	req = CreateInvoiceRequest{
		ClientID: "0190b1a4-8d3b-7c2e-9f00-000000000001",
		DueDate:  "2024-03-01",
		Items:    []ItemInput{{Description: "Design", Quantity: d("1"), UnitPrice: d("100")}},
	}
	assert.NoError(t, req.Validate())
}
