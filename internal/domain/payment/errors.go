package payment

import "errors"

var (
	ErrPaymentNotFound        = errors.New("payment not found")
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	ErrInvoiceNotPayable      = errors.New("invoice cannot accept payments")
	ErrAmountMustMatchDue     = errors.New("payment amount must equal the invoice amount due")
	ErrUnknownProvider        = errors.New("unknown payment provider")
	ErrProviderNotConfigured  = errors.New("payment provider is not configured")
	ErrProviderUnavailable    = errors.New("payment provider unavailable")

	// Webhook handling
	ErrRateLimited      = errors.New("too many webhook requests")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrInvalidPayload   = errors.New("invalid webhook payload")
	ErrMissingEventID   = errors.New("webhook event id is missing")
	ErrMissingReference = errors.New("payment reference is missing")
	ErrAmountMismatch   = errors.New("payment amount mismatch")
	ErrCurrencyMismatch = errors.New("payment currency mismatch")
)
