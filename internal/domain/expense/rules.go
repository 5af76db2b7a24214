package expense

import (
	"fmt"
	"strings"
	"time"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/money"
	"github.com/shopspring/decimal"
)

// Calculate derives tax, total, base-currency and billable amounts
func (e *Expense) Calculate() {
	e.TaxAmount = money.Percent(e.Amount, e.TaxRate)
	e.TotalAmount = e.Amount.Add(e.TaxAmount)
	rate := e.ExchangeRate
	if rate.IsZero() {
		rate = decimal.NewFromInt(1)
		e.ExchangeRate = rate
	}
	e.BaseCurrencyAmount = money.Round(e.TotalAmount.Mul(rate))
	if e.IsBillable {
		markup := decimal.NewFromInt(1).Add(e.MarkupPercent.Div(money.Hundred))
		e.BillableAmount = money.Round(e.TotalAmount.Mul(markup))
	} else {
		e.BillableAmount = decimal.Zero
	}
}

// IsEditable reports whether the expense details may still change
func (e *Expense) IsEditable() bool {
	return e.Status != StatusBilled && e.Status != StatusReimbursed
}

func (e *Expense) Submit(now time.Time) error {
	if e.Status != StatusDraft {
		return ErrInvalidTransition
	}
	e.Status = StatusPending
	e.SubmittedAt = &now
	return nil
}

func (e *Expense) Approve(approverID string, now time.Time) error {
	if e.Status != StatusPending {
		return ErrInvalidTransition
	}
	e.Status = StatusApproved
	e.ApprovedBy = &approverID
	e.ApprovedAt = &now
	e.RejectionReason = ""
	return nil
}

func (e *Expense) Reject(reason string) error {
	if e.Status != StatusPending {
		return ErrInvalidTransition
	}
	if strings.TrimSpace(reason) == "" {
		return ErrRejectionReasonRequired
	}
	e.Status = StatusRejected
	e.RejectionReason = strings.TrimSpace(reason)
	return nil
}

func (e *Expense) Reimburse(reference string, now time.Time) error {
	if e.Status != StatusApproved {
		return ErrInvalidTransition
	}
	e.Status = StatusReimbursed
	e.ReimbursedAt = &now
	e.ReimbursementReference = strings.TrimSpace(reference)
	return nil
}

// CanBill checks the expense side of billing to an invoice
func (e *Expense) CanBill() error {
	if !e.IsBillable {
		return ErrNotBillable
	}
	if e.IsBilled || e.Status == StatusBilled {
		return ErrAlreadyBilled
	}
	if e.Status != StatusApproved && e.Status != StatusPending {
		return ErrInvalidTransition
	}
	return nil
}

func (e *Expense) MarkBilled(invoiceID string) {
	e.Status = StatusBilled
	e.IsBilled = true
	e.InvoiceID = &invoiceID
}

// InvoiceLineDescription is the text of the invoice line created when billing
func (e *Expense) InvoiceLineDescription() string {
	desc := "Expense: " + e.Description
	if e.VendorName != "" {
		desc += fmt.Sprintf(" (Vendor: %s)", e.VendorName)
	}
	return desc + " - " + e.ExpenseDate.Format(time.DateOnly)
}
