package payment

import (
	"strings"
	"time"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

type InitializePaymentRequest struct {
	InvoiceID      string          `json:"invoice_id" validate:"required,uuid"`
	Amount         decimal.Decimal `json:"amount"`
	Provider       string          `json:"provider" validate:"omitempty,oneof=paystack stripe xendit"`
	CallbackURL    string          `json:"callback_url" validate:"omitempty,url"`
	IdempotencyKey string          `json:"-"`
}

func (r *InitializePaymentRequest) Validate() error {
	errs := validator.Struct(r)
	if !r.Amount.IsPositive() {
		errs.Add("amount", "amount must be greater than 0")
	}
	return errs.OrNil()
}

type InitializePaymentResponse struct {
	PaymentID   string          `json:"payment_id"`
	Reference   string          `json:"reference"`
	Provider    string          `json:"provider"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	CheckoutURL string          `json:"checkout_url"`
}

// WebhookRequest is a raw inbound provider notification
type WebhookRequest struct {
	Provider string
	Header   map[string][]string
	Body     []byte
	IP       string
}

// WebhookResult reports how an accepted webhook was handled
type WebhookResult struct {
	Message   string `json:"message"`
	EventID   string `json:"event_id,omitempty"`
	Reference string `json:"reference,omitempty"`
	PaymentID string `json:"payment_id,omitempty"`
}

const (
	WebhookAlreadyProcessed = "Already processed"
	WebhookIgnored          = "ignored"
	WebhookAlreadySucceeded = "Payment already successful"
	WebhookNotVerified      = "Payment not verified"
	WebhookProcessed        = "Payment processed"
)

type PaymentFilter struct {
	WorkspaceID string
	InvoiceID   *string
	Status      *Status
	Method      *Method
	Page        int
	Limit       int
}

type PaymentResponse struct {
	ID                string          `json:"id"`
	InvoiceID         string          `json:"invoice_id"`
	InvoiceNumber     string          `json:"invoice_number,omitempty"`
	Amount            decimal.Decimal `json:"amount"`
	TipAmount         decimal.Decimal `json:"tip_amount"`
	Currency          string          `json:"currency"`
	Status            Status          `json:"status"`
	Method            Method          `json:"method"`
	Reference         string          `json:"reference"`
	ProviderReference string          `json:"provider_reference,omitempty"`
	FeeAmount         decimal.Decimal `json:"fee_amount"`
	NetAmount         decimal.Decimal `json:"net_amount"`
	Notes             string          `json:"notes,omitempty"`
	PaidAt            *string         `json:"paid_at,omitempty"`
	CreatedAt         string          `json:"created_at"`
}

func (p *Payment) ToResponse() PaymentResponse {
	resp := PaymentResponse{
		ID:                p.ID,
		InvoiceID:         p.InvoiceID,
		InvoiceNumber:     p.InvoiceNumber,
		Amount:            p.Amount,
		TipAmount:         p.TipAmount,
		Currency:          p.Currency,
		Status:            p.Status,
		Method:            p.Method,
		Reference:         p.Reference,
		ProviderReference: p.ProviderReference,
		FeeAmount:         p.FeeAmount,
		NetAmount:         p.NetAmount,
		Notes:             p.Notes,
		CreatedAt:         p.CreatedAt.Format(time.RFC3339),
	}
	if p.PaidAt != nil {
		s := p.PaidAt.Format(time.RFC3339)
		resp.PaidAt = &s
	}
	return resp
}

type TransactionResponse struct {
	ID          string          `json:"id"`
	PaymentID   *string         `json:"payment_id,omitempty"`
	Type        TransactionType `json:"transaction_type"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Status      string          `json:"status"`
	ExternalID  string          `json:"external_id,omitempty"`
	Description string          `json:"description"`
	CreatedAt   string          `json:"created_at"`
}

func (t *Transaction) ToResponse() TransactionResponse {
	return TransactionResponse{
		ID:          t.ID,
		PaymentID:   t.PaymentID,
		Type:        t.Type,
		Amount:      t.Amount,
		Currency:    t.Currency,
		Status:      t.Status,
		ExternalID:  t.ExternalID,
		Description: t.Description,
		CreatedAt:   t.CreatedAt.Format(time.RFC3339),
	}
}

type AuditLogResponse struct {
	ID        string         `json:"id"`
	UserID    *string        `json:"user_id,omitempty"`
	Action    string         `json:"action"`
	Details   map[string]any `json:"details"`
	IPAddress string         `json:"ip_address,omitempty"`
	CreatedAt string         `json:"created_at"`
}

func (a *AuditLog) ToResponse() AuditLogResponse {
	return AuditLogResponse{
		ID:        a.ID,
		UserID:    a.UserID,
		Action:    a.Action,
		Details:   a.Details,
		IPAddress: a.IPAddress,
		CreatedAt: a.CreatedAt.Format(time.RFC3339),
	}
}

type ReconciliationResponse struct {
	ID             string               `json:"id"`
	PaymentID      string               `json:"payment_id"`
	Result         ReconciliationResult `json:"result"`
	AmountMatch    bool                 `json:"amount_match"`
	CurrencyMatch  bool                 `json:"currency_match"`
	StatusMatch    bool                 `json:"status_match"`
	ErrorCode      string               `json:"error_code,omitempty"`
	ErrorMessage   string               `json:"error_message,omitempty"`
	RecoveryQueued bool                 `json:"recovery_queued"`
}

type ReconcileSummary struct {
	Checked  int `json:"checked"`
	Verified int `json:"verified"`
	Mismatch int `json:"mismatch"`
	Failed   int `json:"failed"`
}

type RecoverySummary struct {
	Attempted  int `json:"attempted"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// GenerateReference builds "inv_{invoice}_{user}_{suffix}" with dashes removed from the ids
func GenerateReference(invoiceID, userID, suffix string) string {
	clean := func(s string) string { return strings.ReplaceAll(s, "-", "") }
	return "inv_" + clean(invoiceID) + "_" + clean(userID) + "_" + suffix
}
