package fixtures

import (
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/expense"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/reminder"
)

// ==========================================
// DEFAULT EXPENSE CATEGORIES
// ==========================================

type categorySeed struct {
	name       string
	color      string
	icon       string
	deductible bool
}

var defaultCategories = []categorySeed{
	{"Travel", "#3b82f6", "plane", true},
	{"Meals & Entertainment", "#ef4444", "utensils", true},
	{"Office Supplies", "#10b981", "paperclip", true},
	{"Software & Subscriptions", "#8b5cf6", "laptop", true},
	{"Professional Services", "#f59e0b", "briefcase", true},
	{"Marketing & Advertising", "#ec4899", "megaphone", true},
	{"Equipment", "#6366f1", "tools", true},
	{"Utilities", "#14b8a6", "bolt", true},
	{"Insurance", "#64748b", "shield", true},
	{"Other", "#9ca3af", "ellipsis", false},
}

// GetDefaultCategories returns the expense categories every new workspace starts with
func GetDefaultCategories(workspaceID string) []expense.Category {
	categories := make([]expense.Category, 0, len(defaultCategories))
	for i, seed := range defaultCategories {
		categories = append(categories, expense.Category{
			WorkspaceID:     workspaceID,
			Name:            seed.name,
			Color:           seed.color,
			Icon:            seed.icon,
			IsActive:        true,
			IsTaxDeductible: seed.deductible,
			SortOrder:       i,
		})
	}
	return categories
}

// ==========================================
// DEFAULT REMINDER RULES
// ==========================================

// GetDefaultReminderRules returns a before, on and after due reminder set
func GetDefaultReminderRules(workspaceID string) []reminder.Rule {
	return []reminder.Rule{
		{
			WorkspaceID:  workspaceID,
			Name:         "Upcoming payment",
			Trigger:      reminder.TriggerBeforeDue,
			DaysDelta:    3,
			IsActive:     true,
			EmailSubject: "Invoice {invoice_number} is due on {due_date}",
			EmailBody: "Hi {client_name},\n\n" +
				"This is a friendly reminder that invoice {invoice_number} for {amount_due} is due on {due_date}.\n\n" +
				"You can view and pay it here: {payment_link}\n\n" +
				"Thank you,\n{business_name}",
		},
		{
			WorkspaceID:  workspaceID,
			Name:         "Due today",
			Trigger:      reminder.TriggerOnDue,
			DaysDelta:    0,
			IsActive:     true,
			EmailSubject: "Invoice {invoice_number} is due today",
			EmailBody: "Hi {client_name},\n\n" +
				"Invoice {invoice_number} for {amount_due} is due today.\n\n" +
				"Pay online: {payment_link}\n\n" +
				"Thank you,\n{business_name}",
		},
		{
			WorkspaceID:  workspaceID,
			Name:         "Overdue",
			Trigger:      reminder.TriggerAfterDue,
			DaysDelta:    7,
			IsActive:     false,
			EmailSubject: "Invoice {invoice_number} is overdue",
			EmailBody: "Hi {client_name},\n\n" +
				"Invoice {invoice_number} was due on {due_date} and {amount_due} is still outstanding.\n\n" +
				"Please settle it here: {payment_link}\n\n" +
				"Regards,\n{business_name}",
		},
	}
}
