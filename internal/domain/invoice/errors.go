package invoice

import "errors"

var (
	ErrInvoiceNotFound         = errors.New("invoice not found")
	ErrInvalidTransition       = errors.New("invalid invoice status transition")
	ErrNotDraft                = errors.New("only draft invoices can be changed")
	ErrCannotSend              = errors.New("invoice cannot be sent in its current status")
	ErrCannotRecordPayment     = errors.New("payments cannot be recorded in the current invoice status")
	ErrPaymentExceedsAmountDue = errors.New("payment amount exceeds amount due")
	ErrInvalidPaymentAmount    = errors.New("payment amount must be greater than 0")
	ErrReasonRequired          = errors.New("a reason is required")
	ErrClientNotFound          = errors.New("client not found")
	ErrClientEmailMissing      = errors.New("client has no email address")
	ErrPDFUnavailable          = errors.New("invoice PDF is not available")
	ErrDuplicateNumber         = errors.New("invoice number already exists")
)
