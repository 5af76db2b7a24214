package estimate

import (
	"time"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/money"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusDraft    Status = "draft"
	StatusSent     Status = "sent"
	StatusViewed   Status = "viewed"
	StatusApproved Status = "approved"
	StatusDeclined Status = "declined"
	StatusExpired  Status = "expired"
	StatusInvoiced Status = "invoiced"
	StatusVoid     Status = "void"
)

// ConversionDueDays is the payment window of an invoice created from an estimate
const ConversionDueDays = 14

type Estimate struct {
	ID                 string
	WorkspaceID        string
	ClientID           string
	CreatedBy          *string
	EstimateNumber     string
	Status             Status
	IssueDate          time.Time
	ExpiryDate         time.Time
	SentAt             *time.Time
	ViewedAt           *time.Time
	ApprovedAt         *time.Time
	DeclinedAt         *time.Time
	Currency           string
	Subtotal           decimal.Decimal
	TaxTotal           decimal.Decimal
	DiscountTotal      decimal.Decimal
	TotalAmount        decimal.Decimal
	ClientNotes        string
	InternalNotes      string
	TermsConditions    string
	PublicToken        string
	ConvertedInvoiceID *string
	CreatedAt          time.Time
	UpdatedAt          time.Time

	Items []Item

	// Join
	ClientName  string
	ClientEmail string
}

type Item struct {
	ID          string
	EstimateID  string
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	TaxRate     decimal.Decimal
	Subtotal    decimal.Decimal
	Total       decimal.Decimal
	SortOrder   int
}

type Activity struct {
	ID         string
	EstimateID string
	UserID     *string
	Action     string
	Details    string
	IPAddress  string
	CreatedAt  time.Time
}

// Recalculate computes item and estimate totals with exclusive tax
func (e *Estimate) Recalculate() {
	subtotal := decimal.Zero
	tax := decimal.Zero
	for i := range e.Items {
		it := &e.Items[i]
		it.Subtotal = money.Round(it.Quantity.Mul(it.UnitPrice))
		lineTax := money.Percent(it.Subtotal, it.TaxRate)
		it.Total = it.Subtotal.Add(lineTax)
		subtotal = subtotal.Add(it.Subtotal)
		tax = tax.Add(lineTax)
	}
	e.Subtotal = subtotal
	e.TaxTotal = tax
	e.DiscountTotal = decimal.Zero
	e.TotalAmount = subtotal.Add(tax)
}

// CanRespond reports whether the client may still approve or decline
func (e *Estimate) CanRespond(today time.Time) bool {
	if e.Status != StatusSent && e.Status != StatusViewed {
		return false
	}
	return !today.After(e.ExpiryDate)
}

// CanConvert reports whether an invoice may be created from the estimate
func (e *Estimate) CanConvert() error {
	switch e.Status {
	case StatusInvoiced:
		return ErrAlreadyInvoiced
	case StatusVoid, StatusDeclined:
		return ErrCannotConvert
	}
	return nil
}
