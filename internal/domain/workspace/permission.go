package workspace

type Permission string

const (
	// Invoicing
	PermissionInvoiceView   Permission = "invoice.view"
	PermissionInvoiceManage Permission = "invoice.manage"
	PermissionInvoiceVoid   Permission = "invoice.void"
	PermissionEstimate      Permission = "estimate.manage"
	PermissionClientManage  Permission = "client.manage"

	// Payments and recurring billing
	PermissionPaymentRecord   Permission = "payment.record"
	PermissionPaymentView     Permission = "payment.view"
	PermissionRecurringManage Permission = "recurring.manage"

	// Expenses
	PermissionExpenseManage  Permission = "expense.manage"
	PermissionExpenseApprove Permission = "expense.approve"

	// Reports
	PermissionReportsView  Permission = "reports.view"
	PermissionReportsShare Permission = "reports.share"

	// Workspace administration
	PermissionWorkspaceManage Permission = "workspace.manage"
	PermissionMemberManage    Permission = "member.manage"
	PermissionMemberRole      Permission = "member.role"
	PermissionReminderManage  Permission = "reminder.manage"
	PermissionWebhookManage   Permission = "webhook.manage"
)

// RolePermissions maps roles to their permissions
var RolePermissions = map[Role][]Permission{
	RoleOwner: {
		// Owner has all permissions
		PermissionInvoiceView,
		PermissionInvoiceManage,
		PermissionInvoiceVoid,
		PermissionEstimate,
		PermissionClientManage,
		PermissionPaymentRecord,
		PermissionPaymentView,
		PermissionRecurringManage,
		PermissionExpenseManage,
		PermissionExpenseApprove,
		PermissionReportsView,
		PermissionReportsShare,
		PermissionWorkspaceManage,
		PermissionMemberManage,
		PermissionMemberRole,
		PermissionReminderManage,
		PermissionWebhookManage,
	},
	RoleAdmin: {
		PermissionInvoiceView,
		PermissionInvoiceManage,
		PermissionInvoiceVoid,
		PermissionEstimate,
		PermissionClientManage,
		PermissionPaymentRecord,
		PermissionPaymentView,
		PermissionRecurringManage,
		PermissionExpenseManage,
		PermissionExpenseApprove,
		PermissionReportsView,
		PermissionReportsShare,
		PermissionWorkspaceManage,
		PermissionMemberManage,
		PermissionReminderManage,
		PermissionWebhookManage,
	},
	RoleMember: {
		PermissionInvoiceView,
		PermissionInvoiceManage,
		PermissionEstimate,
		PermissionClientManage,
		PermissionPaymentView,
		PermissionExpenseManage,
	},
}

// HasPermission checks if a role has a specific permission
func HasPermission(role Role, permission Permission) bool {
	permissions, exists := RolePermissions[role]
	if !exists {
		return false
	}

	for _, p := range permissions {
		if p == permission {
			return true
		}
	}

	return false
}
