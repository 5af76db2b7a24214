package recurring

import (
	"context"
	"time"
)

type RecurringService interface {
	Create(ctx context.Context, workspaceID, userID string, req CreateScheduleRequest) (ScheduleResponse, error)
	Get(ctx context.Context, workspaceID, id string) (ScheduleResponse, error)
	List(ctx context.Context, filter ScheduleFilter) ([]ScheduleResponse, int64, error)
	Update(ctx context.Context, workspaceID, userID, id string, req UpdateScheduleRequest) (ScheduleResponse, error)
	Pause(ctx context.Context, workspaceID, userID, id string, req PauseRequest) (ScheduleResponse, error)
	Resume(ctx context.Context, workspaceID, userID, id string) (ScheduleResponse, error)
	Cancel(ctx context.Context, workspaceID, userID, id string, req CancelRequest) (ScheduleResponse, error)

	// ==================== Billing engine ====================

	// ProcessDue generates the invoices of every schedule due on day
	ProcessDue(ctx context.Context, day time.Time) (ProcessResult, error)
	// ProcessOne runs a single schedule for day; ErrAlreadyGenerated reports an idempotent skip
	ProcessOne(ctx context.Context, scheduleID string, day time.Time) (ExecutionResponse, error)
	// RunNow runs a schedule of the workspace for today regardless of its next run date
	RunNow(ctx context.Context, workspaceID, userID, id string) (ExecutionResponse, error)
	RecordPaymentFailure(ctx context.Context, invoiceID, errorCode, message string) error
	RecordPaymentSuccess(ctx context.Context, invoiceID, provider, providerTransactionID string) error
	ProcessRetries(ctx context.Context, now time.Time) (RetryResult, error)

	// ==================== Inspection ====================

	GetRetryPlan(ctx context.Context, workspaceID, id string) (RetryPlan, error)
	ListExecutions(ctx context.Context, workspaceID, id string, page, limit int) ([]ExecutionResponse, int64, error)
	ListAuditLogs(ctx context.Context, workspaceID, id string, page, limit int) ([]AuditLogResponse, int64, error)
}
