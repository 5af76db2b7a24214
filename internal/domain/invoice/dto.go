package invoice

import (
	"strings"
	"time"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/money"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

type ItemInput struct {
	Description   string          `json:"description"`
	Quantity      decimal.Decimal `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
	DiscountType  DiscountType    `json:"discount_type"`
	DiscountValue decimal.Decimal `json:"discount_value"`
}

func validateItems(errs *validator.ValidationErrors, items []ItemInput) {
	if len(items) == 0 {
		errs.Add("items", "at least one line item is required")
		return
	}
	for i, item := range items {
		prefix := "items[" + validator.Itoa(i) + "]."
		if strings.TrimSpace(item.Description) == "" {
			errs.Add(prefix+"description", "description is required")
		} else if len(item.Description) > 500 {
			errs.Add(prefix+"description", "description must be at most 500 characters")
		}
		if !item.Quantity.IsPositive() {
			errs.Add(prefix+"quantity", "quantity must be greater than 0")
		}
		if item.UnitPrice.IsNegative() {
			errs.Add(prefix+"unit_price", "unit_price cannot be negative")
		}
		if item.TaxRate.IsNegative() || item.TaxRate.GreaterThan(money.Hundred) {
			errs.Add(prefix+"tax_rate", "tax_rate must be between 0 and 100")
		}
		if item.DiscountType != "" && item.DiscountType != DiscountFlat && item.DiscountType != DiscountPercentage {
			errs.Add(prefix+"discount_type", "discount_type must be flat or percentage")
		}
		if item.DiscountValue.IsNegative() {
			errs.Add(prefix+"discount_value", "discount_value cannot be negative")
		}
	}
}

// ToItems converts inputs into unsaved items in input order
func ToItems(inputs []ItemInput) []Item {
	items := make([]Item, 0, len(inputs))
	for i, in := range inputs {
		kind := in.DiscountType
		if kind == "" {
			kind = DiscountFlat
		}
		items = append(items, Item{
			Description:   strings.TrimSpace(in.Description),
			Quantity:      in.Quantity,
			UnitPrice:     in.UnitPrice,
			TaxRate:       in.TaxRate,
			DiscountType:  kind,
			DiscountValue: in.DiscountValue,
			SortOrder:     i,
		})
	}
	return items
}

type CreateInvoiceRequest struct {
	ClientID            string          `json:"client_id" validate:"required,uuid"`
	IssueDate           string          `json:"issue_date"`
	DueDate             string          `json:"due_date"`
	Currency            string          `json:"currency"`
	ExchangeRate        decimal.Decimal `json:"exchange_rate"`
	TaxMode             TaxMode         `json:"tax_mode"`
	DiscountType        DiscountType    `json:"discount_type"`
	GlobalDiscountValue decimal.Decimal `json:"global_discount_value"`
	ClientMemo          string          `json:"client_memo" validate:"max=5000"`
	InternalNotes       string          `json:"internal_notes" validate:"max=5000"`
	TermsConditions     string          `json:"terms_conditions" validate:"max=5000"`
	Items               []ItemInput     `json:"items"`
}

func validateHeader(errs *validator.ValidationErrors, issue, due, currency string, mode TaxMode, kind DiscountType, discount decimal.Decimal) {
	issueDate, issueOK := time.Time{}, true
	if issue != "" {
		issueDate, issueOK = validator.IsValidDate(issue)
		if !issueOK {
			errs.Add("issue_date", "issue_date must be YYYY-MM-DD")
		}
	}
	if due == "" {
		errs.Add("due_date", "due_date is required")
	} else if dueDate, ok := validator.IsValidDate(due); !ok {
		errs.Add("due_date", "due_date must be YYYY-MM-DD")
	} else if issue != "" && issueOK && dueDate.Before(issueDate) {
		errs.Add("due_date", "due_date cannot be before issue_date")
	}
	if currency != "" && !money.IsValidCurrency(currency) {
		errs.Add("currency", "unsupported currency")
	}
	if mode != "" && mode != TaxExclusive && mode != TaxInclusive {
		errs.Add("tax_mode", "tax_mode must be exclusive or inclusive")
	}
	if kind != "" && kind != DiscountFlat && kind != DiscountPercentage {
		errs.Add("discount_type", "discount_type must be flat or percentage")
	}
	if discount.IsNegative() {
		errs.Add("global_discount_value", "global_discount_value cannot be negative")
	}
}

func (r *CreateInvoiceRequest) Validate() error {
	errs := validator.Struct(r)
	validateHeader(&errs, r.IssueDate, r.DueDate, r.Currency, r.TaxMode, r.DiscountType, r.GlobalDiscountValue)
	if r.ExchangeRate.IsNegative() {
		errs.Add("exchange_rate", "exchange_rate cannot be negative")
	}
	validateItems(&errs, r.Items)
	return errs.OrNil()
}

// UpdateInvoiceRequest replaces the header and the items of a draft
type UpdateInvoiceRequest struct {
	IssueDate           string          `json:"issue_date"`
	DueDate             string          `json:"due_date"`
	Currency            string          `json:"currency"`
	TaxMode             TaxMode         `json:"tax_mode"`
	DiscountType        DiscountType    `json:"discount_type"`
	GlobalDiscountValue decimal.Decimal `json:"global_discount_value"`
	ClientMemo          string          `json:"client_memo" validate:"max=5000"`
	InternalNotes       string          `json:"internal_notes" validate:"max=5000"`
	TermsConditions     string          `json:"terms_conditions" validate:"max=5000"`
	Items               []ItemInput     `json:"items"`
}

func (r *UpdateInvoiceRequest) Validate() error {
	errs := validator.Struct(r)
	validateHeader(&errs, r.IssueDate, r.DueDate, r.Currency, r.TaxMode, r.DiscountType, r.GlobalDiscountValue)
	validateItems(&errs, r.Items)
	return errs.OrNil()
}

// GenerateRequest creates an invoice on behalf of another module (recurring billing, estimate conversion)
type GenerateRequest struct {
	WorkspaceID     string
	ClientID        string
	CreatedBy       *string
	InvoiceNumber   string
	Source          SourceType
	SourceID        *string
	IssueDate       time.Time
	DueDate         time.Time
	Currency        string
	ClientMemo      string
	TermsConditions string
	Items           []ItemInput
}

type TransitionRequest struct {
	Status Status `json:"status"`
	Reason string `json:"reason" validate:"max=1000"`
}

func (r *TransitionRequest) Validate() error {
	errs := validator.Struct(r)
	if !r.Status.IsValid() {
		errs.Add("status", "unknown status")
	}
	return errs.OrNil()
}

type ReasonRequest struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

func (r *ReasonRequest) Validate() error {
	errs := validator.Struct(r)
	if len(errs) == 0 && strings.TrimSpace(r.Reason) == "" {
		errs.Add("reason", "reason is required")
	}
	return errs.OrNil()
}

type RecordPaymentRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	TipAmount   decimal.Decimal `json:"tip_amount"`
	Method      string          `json:"method" validate:"required,oneof=bank_transfer cash cheque other"`
	Reference   string          `json:"reference" validate:"max=100"`
	PaymentDate string          `json:"payment_date"`
	Notes       string          `json:"notes" validate:"max=1000"`
}

func (r *RecordPaymentRequest) Validate() error {
	errs := validator.Struct(r)
	if !r.Amount.IsPositive() {
		errs.Add("amount", "amount must be greater than 0")
	}
	if r.TipAmount.IsNegative() {
		errs.Add("tip_amount", "tip_amount cannot be negative")
	}
	if r.PaymentDate != "" {
		if _, ok := validator.IsValidDate(r.PaymentDate); !ok {
			errs.Add("payment_date", "payment_date must be YYYY-MM-DD")
		}
	}
	return errs.OrNil()
}

type DuplicateRequest struct {
	PaymentTermsDays *int `json:"payment_terms_days" validate:"omitempty,min=0,max=365"`
}

type InvoiceFilter struct {
	WorkspaceID string
	Status      *Status
	ClientID    *string
	DateFrom    *time.Time
	DateTo      *time.Time
	Search      string
	Page        int
	Limit       int
}

type ItemResponse struct {
	ID             string          `json:"id"`
	Description    string          `json:"description"`
	Quantity       decimal.Decimal `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	TaxRate        decimal.Decimal `json:"tax_rate"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	DiscountType   DiscountType    `json:"discount_type"`
	DiscountValue  decimal.Decimal `json:"discount_value"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	Total          decimal.Decimal `json:"total"`
}

type InvoiceResponse struct {
	ID                   string          `json:"id"`
	InvoiceNumber        string          `json:"invoice_number"`
	Status               Status          `json:"status"`
	StatusLabel          string          `json:"status_label"`
	ClientID             string          `json:"client_id"`
	ClientName           string          `json:"client_name,omitempty"`
	ClientEmail          string          `json:"client_email,omitempty"`
	SourceType           SourceType      `json:"source_type"`
	SourceID             *string         `json:"source_id,omitempty"`
	IssueDate            string          `json:"issue_date"`
	DueDate              string          `json:"due_date"`
	SentAt               *string         `json:"sent_at,omitempty"`
	FirstViewedAt        *string         `json:"first_viewed_at,omitempty"`
	PaidAt               *string         `json:"paid_at,omitempty"`
	VoidReason           string          `json:"void_reason,omitempty"`
	Currency             string          `json:"currency"`
	Subtotal             decimal.Decimal `json:"subtotal"`
	TaxTotal             decimal.Decimal `json:"tax_total"`
	DiscountTotal        decimal.Decimal `json:"discount_total"`
	GlobalDiscountAmount decimal.Decimal `json:"global_discount_amount"`
	TotalAmount          decimal.Decimal `json:"total_amount"`
	AmountPaid           decimal.Decimal `json:"amount_paid"`
	AmountDue            decimal.Decimal `json:"amount_due"`
	TotalFormatted       string          `json:"total_formatted"`
	TaxMode              TaxMode         `json:"tax_mode"`
	ClientMemo           string          `json:"client_memo"`
	InternalNotes        string          `json:"internal_notes,omitempty"`
	TermsConditions      string          `json:"terms_conditions"`
	PublicToken          string          `json:"public_token,omitempty"`
	ViewCount            int             `json:"view_count"`
	Items                []ItemResponse  `json:"items,omitempty"`
	CreatedAt            string          `json:"created_at"`
	UpdatedAt            string          `json:"updated_at"`
}

func timePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

func (i *Invoice) ToResponse() InvoiceResponse {
	resp := InvoiceResponse{
		ID:                   i.ID,
		InvoiceNumber:        i.InvoiceNumber,
		Status:               i.Status,
		StatusLabel:          money.Label(string(i.Status)),
		ClientID:             i.ClientID,
		ClientName:           i.ClientName,
		ClientEmail:          i.ClientEmail,
		SourceType:           i.SourceType,
		SourceID:             i.SourceID,
		IssueDate:            i.IssueDate.Format(time.DateOnly),
		DueDate:              i.DueDate.Format(time.DateOnly),
		SentAt:               timePtr(i.SentAt),
		FirstViewedAt:        timePtr(i.FirstViewedAt),
		PaidAt:               timePtr(i.PaidAt),
		VoidReason:           i.VoidReason,
		Currency:             i.Currency,
		Subtotal:             i.Subtotal,
		TaxTotal:             i.TaxTotal,
		DiscountTotal:        i.DiscountTotal,
		GlobalDiscountAmount: i.GlobalDiscountAmount,
		TotalAmount:          i.TotalAmount,
		AmountPaid:           i.AmountPaid,
		AmountDue:            i.AmountDue,
		TotalFormatted:       money.Format(i.TotalAmount, i.Currency),
		TaxMode:              i.TaxMode,
		ClientMemo:           i.ClientMemo,
		InternalNotes:        i.InternalNotes,
		TermsConditions:      i.TermsConditions,
		PublicToken:          i.PublicToken,
		ViewCount:            i.ViewCount,
		CreatedAt:            i.CreatedAt.Format(time.RFC3339),
		UpdatedAt:            i.UpdatedAt.Format(time.RFC3339),
	}
	for _, it := range i.Items {
		resp.Items = append(resp.Items, ItemResponse{
			ID:             it.ID,
			Description:    it.Description,
			Quantity:       it.Quantity,
			UnitPrice:      it.UnitPrice,
			TaxRate:        it.TaxRate,
			TaxAmount:      it.TaxAmount,
			DiscountType:   it.DiscountType,
			DiscountValue:  it.DiscountValue,
			DiscountAmount: it.DiscountAmount,
			Subtotal:       it.Subtotal,
			Total:          it.Total,
		})
	}
	return resp
}

// PublicInvoiceResponse is what a client sees through the public link
type PublicInvoiceResponse struct {
	Invoice       InvoiceResponse `json:"invoice"`
	BusinessName  string          `json:"business_name"`
	BusinessEmail string          `json:"business_email"`
	PrimaryColor  string          `json:"primary_color"`
	CanPay        bool            `json:"can_pay"`
}

type ActivityResponse struct {
	ID         string  `json:"id"`
	Action     string  `json:"action"`
	FromStatus Status  `json:"from_status,omitempty"`
	ToStatus   Status  `json:"to_status,omitempty"`
	Details    string  `json:"details,omitempty"`
	UserID     *string `json:"user_id,omitempty"`
	CreatedAt  string  `json:"created_at"`
}

func (a *Activity) ToResponse() ActivityResponse {
	return ActivityResponse{
		ID:         a.ID,
		Action:     a.Action,
		FromStatus: a.FromStatus,
		ToStatus:   a.ToStatus,
		Details:    a.Details,
		UserID:     a.UserID,
		CreatedAt:  a.CreatedAt.Format(time.RFC3339),
	}
}

// PaymentApplied describes an offline payment recorded against an invoice
type PaymentApplied struct {
	Invoice           Invoice
	Amount            decimal.Decimal
	TipAmount         decimal.Decimal
	TransactionAmount decimal.Decimal
	PreviousStatus    Status
}
