package client

import (
	"strings"
	"time"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/money"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

type CreateClientRequest struct {
	Name            string          `json:"name" validate:"required,max=255"`
	Email           string          `json:"email" validate:"required,email,max=255"`
	Phone           string          `json:"phone"`
	TaxID           string          `json:"tax_id" validate:"max=50"`
	BillingAddress  string          `json:"billing_address"`
	BillingCity     string          `json:"billing_city" validate:"max=100"`
	BillingState    string          `json:"billing_state" validate:"max=100"`
	BillingCountry  string          `json:"billing_country" validate:"max=100"`
	BillingZip      string          `json:"billing_zip" validate:"max=20"`
	ShippingAddress string          `json:"shipping_address"`
	Currency        string          `json:"currency"`
	DiscountRate    decimal.Decimal `json:"discount_rate"`
	Notes           string          `json:"notes"`
	Tags            []string        `json:"tags" validate:"max=20,dive,max=50"`
}

func validateCommon(errs *validator.ValidationErrors, phone, currency string, discount decimal.Decimal) {
	if phone != "" && !validator.IsValidPhoneNumber(phone) {
		errs.Add("phone", "invalid phone number")
	}
	if currency != "" && !money.IsValidCurrency(currency) {
		errs.Add("currency", "unsupported currency")
	}
	if discount.IsNegative() || discount.GreaterThan(money.Hundred) {
		errs.Add("discount_rate", "discount_rate must be between 0 and 100")
	}
}

func (r *CreateClientRequest) Validate() error {
	errs := validator.Struct(r)
	validateCommon(&errs, r.Phone, r.Currency, r.DiscountRate)
	return errs.OrNil()
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func (r *CreateClientRequest) ToClient(workspaceID, defaultCurrency string) Client {
	currency := r.Currency
	if currency == "" {
		currency = defaultCurrency
	}
	return Client{
		WorkspaceID:     workspaceID,
		Name:            strings.TrimSpace(r.Name),
		Email:           strings.ToLower(strings.TrimSpace(r.Email)),
		Phone:           r.Phone,
		TaxID:           r.TaxID,
		BillingAddress:  r.BillingAddress,
		BillingCity:     r.BillingCity,
		BillingState:    r.BillingState,
		BillingCountry:  r.BillingCountry,
		BillingZip:      r.BillingZip,
		ShippingAddress: r.ShippingAddress,
		Currency:        money.NormalizeCurrency(currency),
		DiscountRate:    r.DiscountRate,
		Notes:           r.Notes,
		Tags:            normalizeTags(r.Tags),
	}
}

// UpdateClientRequest is a partial update; nil fields are left unchanged
type UpdateClientRequest struct {
	Name            *string          `json:"name" validate:"omitempty,min=1,max=255"`
	Email           *string          `json:"email" validate:"omitempty,email,max=255"`
	Phone           *string          `json:"phone"`
	TaxID           *string          `json:"tax_id" validate:"omitempty,max=50"`
	BillingAddress  *string          `json:"billing_address"`
	BillingCity     *string          `json:"billing_city" validate:"omitempty,max=100"`
	BillingState    *string          `json:"billing_state" validate:"omitempty,max=100"`
	BillingCountry  *string          `json:"billing_country" validate:"omitempty,max=100"`
	BillingZip      *string          `json:"billing_zip" validate:"omitempty,max=20"`
	ShippingAddress *string          `json:"shipping_address"`
	Currency        *string          `json:"currency"`
	DiscountRate    *decimal.Decimal `json:"discount_rate"`
	Notes           *string          `json:"notes"`
	Tags            []string         `json:"tags" validate:"omitempty,max=20,dive,max=50"`
}

func (r *UpdateClientRequest) Validate() error {
	errs := validator.Struct(r)
	phone, currency, discount := "", "", decimal.Zero
	if r.Phone != nil {
		phone = *r.Phone
	}
	if r.Currency != nil {
		currency = *r.Currency
	}
	if r.DiscountRate != nil {
		discount = *r.DiscountRate
	}
	validateCommon(&errs, phone, currency, discount)
	return errs.OrNil()
}

func (r *UpdateClientRequest) Apply(c *Client) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&c.Name, r.Name)
	set(&c.Phone, r.Phone)
	set(&c.TaxID, r.TaxID)
	set(&c.BillingAddress, r.BillingAddress)
	set(&c.BillingCity, r.BillingCity)
	set(&c.BillingState, r.BillingState)
	set(&c.BillingCountry, r.BillingCountry)
	set(&c.BillingZip, r.BillingZip)
	set(&c.ShippingAddress, r.ShippingAddress)
	set(&c.Notes, r.Notes)
	if r.Email != nil {
		c.Email = strings.ToLower(strings.TrimSpace(*r.Email))
	}
	if r.Currency != nil {
		c.Currency = money.NormalizeCurrency(*r.Currency)
	}
	if r.DiscountRate != nil {
		c.DiscountRate = *r.DiscountRate
	}
	if r.Tags != nil {
		c.Tags = normalizeTags(r.Tags)
	}
}

type ClientFilter struct {
	WorkspaceID string
	Search      string
	Tag         string
	Page        int
	Limit       int
}

type AddNoteRequest struct {
	Content string `json:"content" validate:"required,max=5000"`
}

func (r *AddNoteRequest) Validate() error {
	return validator.Struct(r).OrNil()
}

type ClientResponse struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Email           string          `json:"email"`
	Phone           string          `json:"phone"`
	TaxID           string          `json:"tax_id"`
	BillingAddress  string          `json:"billing_address"`
	BillingCity     string          `json:"billing_city"`
	BillingState    string          `json:"billing_state"`
	BillingCountry  string          `json:"billing_country"`
	BillingZip      string          `json:"billing_zip"`
	ShippingAddress string          `json:"shipping_address"`
	Currency        string          `json:"currency"`
	DiscountRate    decimal.Decimal `json:"discount_rate"`
	Notes           string          `json:"notes"`
	Tags            []string        `json:"tags"`
	CreatedAt       string          `json:"created_at"`
	UpdatedAt       string          `json:"updated_at"`
}

func (c *Client) ToResponse() ClientResponse {
	tags := c.Tags
	if tags == nil {
		tags = []string{}
	}
	return ClientResponse{
		ID:              c.ID,
		Name:            c.Name,
		Email:           c.Email,
		Phone:           c.Phone,
		TaxID:           c.TaxID,
		BillingAddress:  c.BillingAddress,
		BillingCity:     c.BillingCity,
		BillingState:    c.BillingState,
		BillingCountry:  c.BillingCountry,
		BillingZip:      c.BillingZip,
		ShippingAddress: c.ShippingAddress,
		Currency:        c.Currency,
		DiscountRate:    c.DiscountRate,
		Notes:           c.Notes,
		Tags:            tags,
		CreatedAt:       c.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       c.UpdatedAt.Format(time.RFC3339),
	}
}

type NoteResponse struct {
	ID        string  `json:"id"`
	Content   string  `json:"content"`
	UserID    *string `json:"user_id,omitempty"`
	CreatedAt string  `json:"created_at"`
}

func (n *Note) ToResponse() NoteResponse {
	return NoteResponse{ID: n.ID, Content: n.Content, UserID: n.UserID, CreatedAt: n.CreatedAt.Format(time.RFC3339)}
}

// StatementLine is one invoice or payment on a client statement
type StatementLine struct {
	Date        string          `json:"date"`
	Kind        string          `json:"kind"`
	Reference   string          `json:"reference"`
	Description string          `json:"description"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Balance     decimal.Decimal `json:"balance"`
}

type StatementResponse struct {
	Client        ClientResponse  `json:"client"`
	Currency      string          `json:"currency"`
	TotalInvoiced decimal.Decimal `json:"total_invoiced"`
	TotalPaid     decimal.Decimal `json:"total_paid"`
	BalanceDue    decimal.Decimal `json:"balance_due"`
	Lines         []StatementLine `json:"lines"`
}
