package payment

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusSuccess  Status = "success"
	StatusFailed   Status = "failed"
	StatusRefunded Status = "refunded"
)

type Method string

const (
	MethodPaystack     Method = "paystack"
	MethodStripe       Method = "stripe"
	MethodXendit       Method = "xendit"
	MethodBankTransfer Method = "bank_transfer"
	MethodCash         Method = "cash"
	MethodCheque       Method = "cheque"
	MethodOther        Method = "other"
)

// IsGateway reports whether payments with this method are confirmed by a provider
func (m Method) IsGateway() bool {
	return m == MethodPaystack || m == MethodStripe || m == MethodXendit
}

type TransactionType string

const (
	TransactionPayment    TransactionType = "payment"
	TransactionRefund     TransactionType = "refund"
	TransactionChargeback TransactionType = "chargeback"
	TransactionPayout     TransactionType = "payout"
)

type ReconciliationResult string

const (
	ResultVerified  ReconciliationResult = "VERIFIED"
	ResultMismatch  ReconciliationResult = "MISMATCH"
	ResultFailed    ReconciliationResult = "FAILED"
	ResultRecovered ReconciliationResult = "RECOVERED"
)

const (
	ErrorCodeNotVerified      = "NOT_VERIFIED"
	ErrorCodeAmountMismatch   = "AMOUNT_MISMATCH"
	ErrorCodeCurrencyMismatch = "CURRENCY_MISMATCH"
	ErrorCodeRecoveryError    = "RECOVERY_ERROR"
)

type RecoveryStatus string

const (
	RecoveryPending   RecoveryStatus = "pending"
	RecoverySucceeded RecoveryStatus = "succeeded"
	RecoveryFailed    RecoveryStatus = "failed"
)

const (
	RecoveryStrategyWebhookRetry = "webhook_retry"
	MaxRecoveryAttempts          = 3
	// RecoveryBackoff is multiplied by the attempt number
	RecoveryBackoff              = 30 * time.Second
)

// Audit actions
const (
	AuditInitialized        = "payment_initialized"
	AuditWebhookReceived    = "webhook_received"
	AuditVerified           = "payment_verified"
	AuditVerificationFailed = "verification_failed"
	AuditAmountMismatch     = "amount_mismatch"
	AuditCurrencyMismatch   = "currency_mismatch"
	AuditOfflineRecorded    = "offline_payment_recorded"
	AuditReconciled         = "payment_reconciled"
	AuditRecovered          = "payment_recovered"
	AuditRecoveryFailed     = "recovery_failed"
)

type Payment struct {
	ID                string
	WorkspaceID       string
	InvoiceID         string
	InitiatedBy       *string
	Amount            decimal.Decimal
	TipAmount         decimal.Decimal
	Currency          string
	Status            Status
	Method            Method
	Reference         string
	ProviderReference string
	CheckoutURL       string
	FeeAmount         decimal.Decimal
	NetAmount         decimal.Decimal
	Notes             string
	Metadata          map[string]any
	PaidAt            *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time

	// Join
	InvoiceNumber string
}

type Transaction struct {
	ID          string
	WorkspaceID string
	PaymentID   *string
	Type        TransactionType
	Amount      decimal.Decimal
	Currency    string
	Status      string
	ExternalID  string
	Description string
	CreatedAt   time.Time
}

type AuditLog struct {
	ID        string
	PaymentID string
	UserID    *string
	Action    string
	Details   map[string]any
	IPAddress string
	CreatedAt time.Time
}

type WebhookEvent struct {
	ID          string
	Provider    string
	EventID     string
	EventType   string
	Reference   string
	PayloadHash string
	IPAddress   string
	ProcessedAt time.Time
}

type Reconciliation struct {
	ID               string
	PaymentID        string
	ExpectedAmount   decimal.Decimal
	ActualAmount     *decimal.Decimal
	ExpectedCurrency string
	ActualCurrency   string
	ExpectedStatus   Status
	ActualStatus     string
	AmountMatch      bool
	CurrencyMatch    bool
	StatusMatch      bool
	Result           ReconciliationResult
	ErrorCode        string
	ErrorMessage     string
	RetryCount       int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type Recovery struct {
	ID               string
	PaymentID        string
	ReconciliationID *string
	AttemptNumber    int
	MaxAttempts      int
	Strategy         string
	Status           RecoveryStatus
	NextRetryAt      time.Time
	LastError        string
	CompletedAt      *time.Time
	CreatedAt        time.Time
}

// CanRetry reports whether another attempt follows this one
func (r *Recovery) CanRetry() bool {
	return r.AttemptNumber < r.MaxAttempts
}

// NextAttemptAt is the time of the attempt after this one
func (r *Recovery) NextAttemptAt(now time.Time) time.Time {
	return now.Add(time.Duration(r.AttemptNumber) * RecoveryBackoff)
}
