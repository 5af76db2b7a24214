package notification

import "time"

// Kind identifies what happened; clients use it to pick an icon and a link
type Kind string

const (
	KindPaymentReceived       Kind = "payment_received"
	KindInvoiceOverdue        Kind = "invoice_overdue"
	KindInvoiceViewed         Kind = "invoice_viewed"
	KindRecurringGenerated    Kind = "recurring_invoice_generated"
	KindRecurringFailed       Kind = "recurring_failed"
	KindEstimateApproved      Kind = "estimate_approved"
	KindEstimateDeclined      Kind = "estimate_declined"
	KindExpenseSubmitted      Kind = "expense_submitted"
	KindExpenseApproved       Kind = "expense_approved"
	KindExpenseRejected       Kind = "expense_rejected"
	KindInvitationAccepted    Kind = "invitation_accepted"
	KindPaymentReconciliation Kind = "payment_reconciliation"
)

var kinds = map[Kind]struct{}{
	KindPaymentReceived: {}, KindInvoiceOverdue: {}, KindInvoiceViewed: {},
	KindRecurringGenerated: {}, KindRecurringFailed: {}, KindEstimateApproved: {},
	KindEstimateDeclined: {}, KindExpenseSubmitted: {}, KindExpenseApproved: {},
	KindExpenseRejected: {}, KindInvitationAccepted: {}, KindPaymentReconciliation: {},
}

func (k Kind) IsValid() bool {
	_, ok := kinds[k]
	return ok
}

// Notice is a notification that has not been stored yet
type Notice struct {
	WorkspaceID  string
	UserID       string
	Kind         Kind
	Title        string
	Body         string
	ResourceType string
	ResourceID   string
	Data         map[string]any
}

type Notification struct {
	ID           string
	UserID       string
	WorkspaceID  string // empty for account level notices
	Kind         Kind
	Title        string
	Body         string
	ResourceType string
	ResourceID   string
	Data         map[string]any
	ReadAt       *time.Time
	CreatedAt    time.Time
}

func (n Notification) Unread() bool {
	return n.ReadAt == nil
}
