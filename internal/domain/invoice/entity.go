package invoice

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusDraft    Status = "draft"
	StatusSent     Status = "sent"
	StatusViewed   Status = "viewed"
	StatusPartPaid Status = "part_paid"
	StatusPaid     Status = "paid"
	StatusOverdue  Status = "overdue"
	StatusVoid     Status = "void"
	StatusWriteOff Status = "write_off"
)

// transitions lists the states reachable from each state
var transitions = map[Status][]Status{
	StatusDraft:    {StatusSent, StatusVoid},
	StatusSent:     {StatusViewed, StatusPartPaid, StatusPaid, StatusOverdue, StatusVoid},
	StatusViewed:   {StatusPartPaid, StatusPaid, StatusOverdue, StatusVoid},
	StatusPartPaid: {StatusPaid, StatusOverdue, StatusVoid, StatusWriteOff},
	StatusOverdue:  {StatusPartPaid, StatusPaid, StatusVoid, StatusWriteOff},
	StatusPaid:     {},
	StatusVoid:     {},
	StatusWriteOff: {},
}

func (s Status) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransitionTo reports whether target is reachable from s in one step
func (s Status) CanTransitionTo(target Status) bool {
	for _, next := range transitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// IsOpen reports whether an invoice in s still expects money
func (s Status) IsOpen() bool {
	switch s {
	case StatusSent, StatusViewed, StatusPartPaid, StatusOverdue:
		return true
	}
	return false
}

type SourceType string

const (
	SourceManual    SourceType = "manual"
	SourceRecurring SourceType = "recurring"
	SourceEstimate  SourceType = "estimate"
	SourceDuplicate SourceType = "duplicate"
)

type TaxMode string

const (
	TaxExclusive TaxMode = "exclusive"
	TaxInclusive TaxMode = "inclusive"
)

type DiscountType string

const (
	DiscountFlat       DiscountType = "flat"
	DiscountPercentage DiscountType = "percentage"
)

// Activity actions
const (
	ActivityCreated         = "created"
	ActivityUpdated         = "updated"
	ActivitySent            = "sent"
	ActivityViewed          = "viewed"
	ActivityStatusChanged   = "status_changed"
	ActivityPaymentReceived = "payment_received"
	ActivityVoided          = "voided"
	ActivityWrittenOff      = "written_off"
	ActivityDuplicated      = "duplicated"
	ActivityTokenRotated    = "public_token_regenerated"
	ActivityExpenseBilled   = "expense_billed"
	ActivityReminderSent    = "reminder_sent"
)

type Invoice struct {
	ID                   string
	WorkspaceID          string
	ClientID             string
	CreatedBy            *string
	InvoiceNumber        string
	Status               Status
	SourceType           SourceType
	SourceID             *string
	IssueDate            time.Time
	DueDate              time.Time
	SentAt               *time.Time
	FirstViewedAt        *time.Time
	PaidAt               *time.Time
	VoidedAt             *time.Time
	VoidReason           string
	Currency             string
	ExchangeRate         decimal.Decimal
	Subtotal             decimal.Decimal
	TaxTotal             decimal.Decimal
	DiscountTotal        decimal.Decimal
	TotalAmount          decimal.Decimal
	AmountPaid           decimal.Decimal
	AmountDue            decimal.Decimal
	TaxMode              TaxMode
	DiscountType         DiscountType
	GlobalDiscountValue  decimal.Decimal
	GlobalDiscountAmount decimal.Decimal
	ClientMemo           string
	InternalNotes        string
	TermsConditions      string
	PublicToken          string
	ViewCount            int
	LastViewedAt         *time.Time
	LastViewedIP         *string
	PDFKey               *string
	CreatedAt            time.Time
	UpdatedAt            time.Time

	Items []Item

	// Join
	ClientName  string
	ClientEmail string
}

type Item struct {
	ID             string
	InvoiceID      string
	Description    string
	Quantity       decimal.Decimal
	UnitPrice      decimal.Decimal
	TaxRate        decimal.Decimal
	TaxAmount      decimal.Decimal
	DiscountType   DiscountType
	DiscountValue  decimal.Decimal
	DiscountAmount decimal.Decimal
	Subtotal       decimal.Decimal
	Total          decimal.Decimal
	SortOrder      int
}

type Activity struct {
	ID         string
	InvoiceID  string
	UserID     *string
	Action     string
	FromStatus Status
	ToStatus   Status
	Details    string
	IPAddress  string
	CreatedAt  time.Time
}

// IsOverdueOn reports whether the invoice should be flagged overdue on day
func (i *Invoice) IsOverdueOn(day time.Time) bool {
	switch i.Status {
	case StatusSent, StatusViewed, StatusPartPaid:
	default:
		return false
	}
	return i.AmountDue.IsPositive() && i.DueDate.Before(day)
}

// CanRecordPayment reports whether money may be applied in the current status
func (i *Invoice) CanRecordPayment() bool {
	return i.Status.IsOpen()
}
