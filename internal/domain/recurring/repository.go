package recurring

import (
	"context"
	"time"
)

type ScheduleRepository interface {
	// Create inserts the schedule and returns it with its generated schedule number
	Create(ctx context.Context, s Schedule) (Schedule, error)
	GetByID(ctx context.Context, workspaceID, id string) (Schedule, error)
	// GetByIDForUpdate locks the schedule row for the current transaction
	GetByIDForUpdate(ctx context.Context, id string) (Schedule, error)
	List(ctx context.Context, filter ScheduleFilter) ([]Schedule, int64, error)
	Update(ctx context.Context, s Schedule) error
	// ListDue returns the ids of active schedules whose next run date is on or before day
	ListDue(ctx context.Context, day time.Time) ([]string, error)
	// ListRetryDue returns the ids of active schedules whose next retry is due at now
	ListRetryDue(ctx context.Context, now time.Time) ([]string, error)
	ListActive(ctx context.Context, workspaceID string) ([]Schedule, error)

	// ==================== Executions ====================

	SuccessfulExecutionExists(ctx context.Context, idempotencyKey string) (bool, error)
	CreateExecution(ctx context.Context, e Execution) (Execution, error)
	GetExecutionByID(ctx context.Context, id string) (Execution, error)
	GetExecutionByInvoiceID(ctx context.Context, invoiceID string) (Execution, error)
	GetLatestSuccessfulExecution(ctx context.Context, scheduleID string) (Execution, error)
	ListExecutions(ctx context.Context, scheduleID string, page, limit int) ([]Execution, int64, error)

	// ==================== Attempts and audit ====================

	CountAttempts(ctx context.Context, executionID string) (int, error)
	CreateAttempt(ctx context.Context, a PaymentAttempt) error
	CreateAuditLog(ctx context.Context, log AuditLog) error
	ListAuditLogs(ctx context.Context, scheduleID string, page, limit int) ([]AuditLog, int64, error)
}
