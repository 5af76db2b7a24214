package expense

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCalculate(t *testing.T) {
	e := Expense{
		Amount:        d("200"),
		TaxRate:       d("7.5"),
		ExchangeRate:  d("1.5"),
		IsBillable:    true,
		MarkupPercent: d("10"),
	}
	e.Calculate()

	assert.True(t, d("15").Equal(e.TaxAmount))
	assert.True(t, d("215").Equal(e.TotalAmount))
	assert.True(t, d("322.5").Equal(e.BaseCurrencyAmount))
	assert.True(t, d("236.5").Equal(e.BillableAmount))
}

func TestCalculate_NotBillableAndDefaultRate(t *testing.T) {
	e := Expense{Amount: d("99.99")}
	e.Calculate()

	assert.True(t, d("99.99").Equal(e.TotalAmount))
	assert.True(t, d("1").Equal(e.ExchangeRate))
	assert.True(t, d("99.99").Equal(e.BaseCurrencyAmount))
	assert.True(t, e.BillableAmount.IsZero())
}

func TestWorkflow(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	e := Expense{Status: StatusDraft}

	require.ErrorIs(t, e.Approve("u1", now), ErrInvalidTransition)
	require.NoError(t, e.Submit(now))
	assert.Equal(t, StatusPending, e.Status)
	require.ErrorIs(t, e.Submit(now), ErrInvalidTransition)

	require.ErrorIs(t, e.Reject("  "), ErrRejectionReasonRequired)
	require.NoError(t, e.Approve("u1", now))
	assert.Equal(t, "u1", *e.ApprovedBy)

	require.ErrorIs(t, e.Reject("late"), ErrInvalidTransition)
	require.NoError(t, e.Reimburse("TRX-1", now))
	assert.Equal(t, StatusReimbursed, e.Status)
	assert.False(t, e.IsEditable())
}

func TestCanBill(t *testing.T) {
	tests := []struct {
		name    string
		expense Expense
		wantErr error
	}{
		{"approved billable", Expense{Status: StatusApproved, IsBillable: true}, nil},
		{"pending billable", Expense{Status: StatusPending, IsBillable: true}, nil},
		{"not billable", Expense{Status: StatusApproved}, ErrNotBillable},
		{"already billed", Expense{Status: StatusApproved, IsBillable: true, IsBilled: true}, ErrAlreadyBilled},
		{"draft", Expense{Status: StatusDraft, IsBillable: true}, ErrInvalidTransition},
		{"rejected", Expense{Status: StatusRejected, IsBillable: true}, ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.expense.CanBill()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestInvoiceLineDescription(t *testing.T) {
	e := Expense{
		Description: "Flight to Lagos",
		VendorName:  "Air Peace",
		ExpenseDate: time.Date(2025, 2, 14, 0, 0, 0, 0, time.UTC),
	}
	assert.Equal(t, "Expense: Flight to Lagos (Vendor: Air Peace) - 2025-02-14", e.InvoiceLineDescription())

	e.VendorName = ""
	assert.Equal(t, "Expense: Flight to Lagos - 2025-02-14", e.InvoiceLineDescription())
}

func TestAttachmentUploadValidate(t *testing.T) {
	ok := AttachmentUpload{ContentType: "application/pdf", Size: 1024}
	assert.NoError(t, ok.Validate())

	big := AttachmentUpload{ContentType: "image/png", Size: MaxAttachmentSize + 1}
	assert.ErrorIs(t, big.Validate(), ErrAttachmentTooLarge)

	exe := AttachmentUpload{ContentType: "application/x-msdownload", Size: 10}
	assert.ErrorIs(t, exe.Validate(), ErrAttachmentType)
}

func TestMargin(t *testing.T) {
	assert.True(t, d("25").Equal(Margin(d("250"), d("1000"))))
	assert.True(t, Margin(d("-10"), decimal.Zero).IsZero())
}
