package reminder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTargetDueDate(t *testing.T) {
	today := time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)

	before := Rule{Trigger: TriggerBeforeDue, DaysDelta: 3}
	on := Rule{Trigger: TriggerOnDue}
	after := Rule{Trigger: TriggerAfterDue, DaysDelta: 7}

	assert.Equal(t, time.Date(2025, 6, 13, 0, 0, 0, 0, time.UTC), before.TargetDueDate(today))
	assert.Equal(t, time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), on.TargetDueDate(today))
	assert.Equal(t, time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC), after.TargetDueDate(today))
}

func TestRender(t *testing.T) {
	data := TemplateData{
		InvoiceNumber: "INV-2025-0007",
		ClientName:    "Acme",
		AmountDue:     "$120.00",
		DueDate:       "2025-06-13",
		BusinessName:  "Studio",
		PaymentLink:   "https://app/pay/abc",
	}

	got := data.Render("Hi {client_name}, {invoice_number} for {amount_due} is due {due_date}. Pay: {payment_link} - {business_name}")
	assert.Equal(t, "Hi Acme, INV-2025-0007 for $120.00 is due 2025-06-13. Pay: https://app/pay/abc - Studio", got)
}

func TestRuleRequestValidate(t *testing.T) {
	req := RuleRequest{Name: "On due", Trigger: TriggerOnDue, DaysDelta: 2, EmailSubject: "s", EmailBody: "b"}
	assert.Error(t, req.Validate())

	req.DaysDelta = 0
	assert.NoError(t, req.Validate())

	bad := RuleRequest{Name: "x", Trigger: "sometime", EmailSubject: "s", EmailBody: "b"}
	assert.Error(t, bad.Validate())
}
