package recurring

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

type IntervalType string

const (
	IntervalWeekly    IntervalType = "weekly"
	IntervalBiweekly  IntervalType = "biweekly"
	IntervalMonthly   IntervalType = "monthly"
	IntervalQuarterly IntervalType = "quarterly"
	IntervalYearly    IntervalType = "yearly"
	IntervalCustom    IntervalType = "custom"
)

var validIntervals = []IntervalType{
	IntervalWeekly, IntervalBiweekly, IntervalMonthly,
	IntervalQuarterly, IntervalYearly, IntervalCustom,
}

func (t IntervalType) IsValid() bool {
	for _, v := range validIntervals {
		if v == t {
			return true
		}
	}
	return false
}

type ExecutionStatus string

const (
	ExecutionPending ExecutionStatus = "pending"
	ExecutionSuccess ExecutionStatus = "success"
	ExecutionFailed  ExecutionStatus = "failed"
	ExecutionSkipped ExecutionStatus = "skipped"
)

type AttemptStatus string

const (
	AttemptPending AttemptStatus = "pending"
	AttemptSuccess AttemptStatus = "success"
	AttemptFailed  AttemptStatus = "failed"
)

type AuditAction string

const (
	ActionCreated          AuditAction = "created"
	ActionUpdated          AuditAction = "updated"
	ActionPaused           AuditAction = "paused"
	ActionResumed          AuditAction = "resumed"
	ActionCancelled        AuditAction = "cancelled"
	ActionCompleted        AuditAction = "completed"
	ActionInvoiceGenerated AuditAction = "invoice_generated"
	ActionPaymentAttempted AuditAction = "payment_attempted"
	ActionPaymentSuccess   AuditAction = "payment_success"
	ActionPaymentFailed    AuditAction = "payment_failed"
	ActionRetryScheduled   AuditAction = "retry_scheduled"
	ActionRetryExhausted   AuditAction = "retry_exhausted"
	ActionNotificationSent AuditAction = "notification_sent"
)

// Payment failure codes recorded by the dunning loop
const (
	ErrorCodeOverdue = "OVERDUE"
	ErrorCodeUnpaid  = "UNPAID"
)

const (
	DefaultCurrency          = "USD"
	DefaultPaymentTermsDays  = 30
	DefaultMaxRetryAttempts  = 3
	DefaultRetryIntervalHour = 24
	DefaultCustomDays        = 30
)

// DefaultBackoffMultiplier is applied per retry
var DefaultBackoffMultiplier = decimal.NewFromInt(2)

// LineItemTemplate is copied onto every generated invoice
type LineItemTemplate struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
}

type Schedule struct {
	ID                      string
	WorkspaceID             string
	ClientID                string
	CreatedBy               *string
	ScheduleNumber          int64
	Description             string
	IntervalType            IntervalType
	CustomIntervalDays      *int
	StartDate               time.Time
	EndDate                 *time.Time
	MaxOccurrences          *int
	NextRunDate             time.Time
	LastRunDate             *time.Time
	Status                  Status
	PausedAt                *time.Time
	PauseReason             string
	CancelledAt             *time.Time
	CancellationReason      string
	ProrationEnabled        bool
	AnchorDay               *int
	Currency                string
	BaseAmount              decimal.Decimal
	TaxRate                 decimal.Decimal
	LineItemsTemplate       []LineItemTemplate
	InvoiceTerms            string
	InvoiceNotes            string
	PaymentTermsDays        int
	AutoSend                bool
	RetryEnabled            bool
	MaxRetryAttempts        int
	RetryIntervalHours      int
	RetryBackoffMultiplier  decimal.Decimal
	CurrentRetryCount       int
	NextRetryAt             *time.Time
	DunningExecutionID      *string
	FailureNotificationSent bool
	TotalInvoicesGenerated  int
	TotalAmountBilled       decimal.Decimal
	CreatedAt               time.Time
	UpdatedAt               time.Time

	// Join
	ClientName  string
	ClientEmail string
}

type Execution struct {
	ID              string
	ScheduleID      string
	InvoiceID       *string
	PeriodStart     time.Time
	PeriodEnd       time.Time
	ScheduledDate   time.Time
	Status          ExecutionStatus
	AmountGenerated *decimal.Decimal
	ProratedAmount  *decimal.Decimal
	ErrorMessage    string
	IdempotencyKey  string
	ExecutedAt      time.Time
}

type PaymentAttempt struct {
	ID                    string
	ExecutionID           string
	InvoiceID             *string
	AttemptNumber         int
	Status                AttemptStatus
	Amount                decimal.Decimal
	Currency              string
	Provider              string
	ProviderTransactionID string
	ErrorCode             string
	ErrorMessage          string
	NextRetryAt           *time.Time
	AttemptedAt           time.Time
}

type AuditLog struct {
	ID          string
	ScheduleID  string
	UserID      *string
	Action      AuditAction
	Description string
	InvoiceID   *string
	ExecutionID *string
	OldValues   map[string]any
	NewValues   map[string]any
	IPAddress   string
	CreatedAt   time.Time
}
