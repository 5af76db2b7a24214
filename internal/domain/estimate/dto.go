package estimate

import (
	"strings"
	"time"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/money"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

type ItemInput struct {
	Description string          `json:"description" validate:"required,max=500"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
}

type EstimateRequest struct {
	ClientID        string      `json:"client_id" validate:"required,uuid"`
	IssueDate       string      `json:"issue_date"`
	ExpiryDate      string      `json:"expiry_date"`
	Currency        string      `json:"currency"`
	ClientNotes     string      `json:"client_notes" validate:"max=5000"`
	InternalNotes   string      `json:"internal_notes" validate:"max=5000"`
	TermsConditions string      `json:"terms_conditions" validate:"max=5000"`
	Items           []ItemInput `json:"items" validate:"required,min=1,dive"`
}

func (r *EstimateRequest) Validate() error {
	errs := validator.Struct(r)

	issue := time.Time{}
	if r.IssueDate != "" {
		var ok bool
		if issue, ok = validator.IsValidDate(r.IssueDate); !ok {
			errs.Add("issue_date", "issue_date must be YYYY-MM-DD")
		}
	}
	if expiry, ok := validator.IsValidDate(r.ExpiryDate); !ok {
		errs.Add("expiry_date", "expiry_date must be YYYY-MM-DD")
	} else if !issue.IsZero() && expiry.Before(issue) {
		errs.Add("expiry_date", "expiry_date cannot be before issue_date")
	}
	if r.Currency != "" && !money.IsValidCurrency(r.Currency) {
		errs.Add("currency", "unsupported currency")
	}
	for i, item := range r.Items {
		prefix := "items[" + validator.Itoa(i) + "]."
		if !item.Quantity.IsPositive() {
			errs.Add(prefix+"quantity", "quantity must be greater than 0")
		}
		if item.UnitPrice.IsNegative() {
			errs.Add(prefix+"unit_price", "unit_price cannot be negative")
		}
		if item.TaxRate.IsNegative() || item.TaxRate.GreaterThan(money.Hundred) {
			errs.Add(prefix+"tax_rate", "tax_rate must be between 0 and 100")
		}
	}

	return errs.OrNil()
}

// Apply copies the request onto e and replaces its items
func (r *EstimateRequest) Apply(e *Estimate, today time.Time, defaultCurrency string) {
	e.ClientID = r.ClientID
	e.IssueDate = today
	if r.IssueDate != "" {
		e.IssueDate, _ = validator.IsValidDate(r.IssueDate)
	}
	e.ExpiryDate, _ = validator.IsValidDate(r.ExpiryDate)
	e.Currency = defaultCurrency
	if r.Currency != "" {
		e.Currency = money.NormalizeCurrency(r.Currency)
	}
	e.ClientNotes = r.ClientNotes
	e.InternalNotes = r.InternalNotes
	e.TermsConditions = r.TermsConditions
	e.Items = make([]Item, 0, len(r.Items))
	for i, in := range r.Items {
		e.Items = append(e.Items, Item{
			Description: strings.TrimSpace(in.Description),
			Quantity:    in.Quantity,
			UnitPrice:   in.UnitPrice,
			TaxRate:     in.TaxRate,
			SortOrder:   i,
		})
	}
	e.Recalculate()
}

type EstimateFilter struct {
	WorkspaceID string
	Status      *Status
	ClientID    *string
	Search      string
	Page        int
	Limit       int
}

type ItemResponse struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Total       decimal.Decimal `json:"total"`
}

type EstimateResponse struct {
	ID                 string          `json:"id"`
	EstimateNumber     string          `json:"estimate_number"`
	Status             Status          `json:"status"`
	ClientID           string          `json:"client_id"`
	ClientName         string          `json:"client_name,omitempty"`
	IssueDate          string          `json:"issue_date"`
	ExpiryDate         string          `json:"expiry_date"`
	Currency           string          `json:"currency"`
	Subtotal           decimal.Decimal `json:"subtotal"`
	TaxTotal           decimal.Decimal `json:"tax_total"`
	TotalAmount        decimal.Decimal `json:"total_amount"`
	TotalFormatted     string          `json:"total_formatted"`
	ClientNotes        string          `json:"client_notes"`
	InternalNotes      string          `json:"internal_notes,omitempty"`
	TermsConditions    string          `json:"terms_conditions"`
	PublicToken        string          `json:"public_token,omitempty"`
	ConvertedInvoiceID *string         `json:"converted_invoice_id,omitempty"`
	Items              []ItemResponse  `json:"items,omitempty"`
	CreatedAt          string          `json:"created_at"`
	UpdatedAt          string          `json:"updated_at"`
}

func (e *Estimate) ToResponse() EstimateResponse {
	resp := EstimateResponse{
		ID:                 e.ID,
		EstimateNumber:     e.EstimateNumber,
		Status:             e.Status,
		ClientID:           e.ClientID,
		ClientName:         e.ClientName,
		IssueDate:          e.IssueDate.Format(time.DateOnly),
		ExpiryDate:         e.ExpiryDate.Format(time.DateOnly),
		Currency:           e.Currency,
		Subtotal:           e.Subtotal,
		TaxTotal:           e.TaxTotal,
		TotalAmount:        e.TotalAmount,
		TotalFormatted:     money.Format(e.TotalAmount, e.Currency),
		ClientNotes:        e.ClientNotes,
		InternalNotes:      e.InternalNotes,
		TermsConditions:    e.TermsConditions,
		PublicToken:        e.PublicToken,
		ConvertedInvoiceID: e.ConvertedInvoiceID,
		CreatedAt:          e.CreatedAt.Format(time.RFC3339),
		UpdatedAt:          e.UpdatedAt.Format(time.RFC3339),
	}
	for _, it := range e.Items {
		resp.Items = append(resp.Items, ItemResponse{
			ID:          it.ID,
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			TaxRate:     it.TaxRate,
			Subtotal:    it.Subtotal,
			Total:       it.Total,
		})
	}
	return resp
}

// PublicEstimateResponse hides internal fields
type PublicEstimateResponse struct {
	Estimate     EstimateResponse `json:"estimate"`
	BusinessName string           `json:"business_name"`
	CanRespond   bool             `json:"can_respond"`
}

type DeclineRequest struct {
	Reason string `json:"reason" validate:"max=1000"`
}

type ConversionResponse struct {
	EstimateID    string `json:"estimate_id"`
	InvoiceID     string `json:"invoice_id"`
	InvoiceNumber string `json:"invoice_number"`
}
