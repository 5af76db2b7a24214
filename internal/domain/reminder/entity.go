package reminder

import (
	"strings"
	"time"
)

type Trigger string

const (
	TriggerBeforeDue Trigger = "before_due"
	TriggerOnDue     Trigger = "on_due"
	TriggerAfterDue  Trigger = "after_due"
)

func (t Trigger) IsValid() bool {
	return t == TriggerBeforeDue || t == TriggerOnDue || t == TriggerAfterDue
}

const (
	LogSent   = "sent"
	LogFailed = "failed"
)

type Rule struct {
	ID           string
	WorkspaceID  string
	Name         string
	Trigger      Trigger
	DaysDelta    int
	IsActive     bool
	EmailSubject string
	EmailBody    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TargetDueDate is the due date an invoice must have for the rule to fire on today
func (r *Rule) TargetDueDate(today time.Time) time.Time {
	today = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	switch r.Trigger {
	case TriggerBeforeDue:
		return today.AddDate(0, 0, r.DaysDelta)
	case TriggerAfterDue:
		return today.AddDate(0, 0, -r.DaysDelta)
	default:
		return today
	}
}

type Log struct {
	ID        string
	RuleID    string
	InvoiceID string
	SentOn    time.Time
	Status    string
	Error     string
	CreatedAt time.Time
}

// TemplateData fills the placeholders of reminder subjects and bodies
type TemplateData struct {
	InvoiceNumber string
	ClientName    string
	AmountDue     string
	DueDate       string
	BusinessName  string
	PaymentLink   string
}

// Render replaces {invoice_number}, {client_name}, {amount_due}, {due_date},
// {business_name} and {payment_link} in tmpl
func (d TemplateData) Render(tmpl string) string {
	return strings.NewReplacer(
		"{invoice_number}", d.InvoiceNumber,
		"{client_name}", d.ClientName,
		"{amount_due}", d.AmountDue,
		"{due_date}", d.DueDate,
		"{business_name}", d.BusinessName,
		"{payment_link}", d.PaymentLink,
	).Replace(tmpl)
}
