package postgresql

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/recurring"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/database"
)

const scheduleSelect = `
	SELECT s.id, s.workspace_id, s.client_id, s.created_by, s.schedule_number, s.description, s.interval_type,
		   s.custom_interval_days, s.start_date, s.end_date, s.max_occurrences, s.next_run_date, s.last_run_date,
		   s.status, s.paused_at, s.pause_reason, s.cancelled_at, s.cancellation_reason, s.proration_enabled,
		   s.anchor_day, s.currency, s.base_amount, s.tax_rate, s.line_items_template, s.invoice_terms,
		   s.invoice_notes, s.payment_terms_days, s.auto_send, s.retry_enabled, s.max_retry_attempts,
		   s.retry_interval_hours, s.retry_backoff_multiplier, s.current_retry_count, s.next_retry_at,
		   s.dunning_execution_id, s.failure_notification_sent, s.total_invoices_generated, s.total_amount_billed, s.created_at, s.updated_at,
		   c.name, c.email
	FROM recurring_schedules s
	JOIN clients c ON c.id = s.client_id
`

type scheduleRepositoryImpl struct {
	db *database.DB
}

func NewScheduleRepository(db *database.DB) recurring.ScheduleRepository {
	return &scheduleRepositoryImpl{db: db}
}

func scanSchedule(row interface{ Scan(dest ...any) error }) (recurring.Schedule, error) {
	var s recurring.Schedule
	var template []byte
	err := row.Scan(
		&s.ID, &s.WorkspaceID, &s.ClientID, &s.CreatedBy, &s.ScheduleNumber, &s.Description, &s.IntervalType,
		&s.CustomIntervalDays, &s.StartDate, &s.EndDate, &s.MaxOccurrences, &s.NextRunDate, &s.LastRunDate,
		&s.Status, &s.PausedAt, &s.PauseReason, &s.CancelledAt, &s.CancellationReason, &s.ProrationEnabled,
		&s.AnchorDay, &s.Currency, &s.BaseAmount, &s.TaxRate, &template, &s.InvoiceTerms,
		&s.InvoiceNotes, &s.PaymentTermsDays, &s.AutoSend, &s.RetryEnabled, &s.MaxRetryAttempts,
		&s.RetryIntervalHours, &s.RetryBackoffMultiplier, &s.CurrentRetryCount, &s.NextRetryAt,
		&s.DunningExecutionID, &s.FailureNotificationSent, &s.TotalInvoicesGenerated, &s.TotalAmountBilled, &s.CreatedAt, &s.UpdatedAt,
		&s.ClientName, &s.ClientEmail,
	)
	if err != nil {
		return recurring.Schedule{}, err
	}
	if len(template) > 0 {
		if err := json.Unmarshal(template, &s.LineItemsTemplate); err != nil {
			return recurring.Schedule{}, fmt.Errorf("failed to decode line items template: %w", err)
		}
	}
	return s, nil
}

func (r *scheduleRepositoryImpl) listSchedules(ctx context.Context, query string, args ...any) ([]recurring.Schedule, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	defer rows.Close()

	var schedules []recurring.Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, s)
	}
	return schedules, rows.Err()
}

func (r *scheduleRepositoryImpl) listIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Create implements recurring.ScheduleRepository.
func (r *scheduleRepositoryImpl) Create(ctx context.Context, s recurring.Schedule) (recurring.Schedule, error) {
	q := GetQuerier(ctx, r.db)

	template, err := json.Marshal(orEmptySlice(s.LineItemsTemplate))
	if err != nil {
		return recurring.Schedule{}, err
	}

	s.ID = newID(s.ID)
	query := `
		INSERT INTO recurring_schedules (
			id, workspace_id, client_id, created_by, description, interval_type, custom_interval_days,
			start_date, end_date, max_occurrences, next_run_date, status, proration_enabled, anchor_day,
			currency, base_amount, tax_rate, line_items_template, invoice_terms, invoice_notes,
			payment_terms_days, auto_send, retry_enabled, max_retry_attempts, retry_interval_hours,
			retry_backoff_multiplier
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
				$21, $22, $23, $24, $25, $26)
	`
	_, err = q.Exec(ctx, query,
		s.ID, s.WorkspaceID, s.ClientID, s.CreatedBy, s.Description, s.IntervalType, s.CustomIntervalDays,
		s.StartDate, s.EndDate, s.MaxOccurrences, s.NextRunDate, s.Status, s.ProrationEnabled, s.AnchorDay,
		s.Currency, s.BaseAmount, s.TaxRate, template, s.InvoiceTerms, s.InvoiceNotes,
		s.PaymentTermsDays, s.AutoSend, s.RetryEnabled, s.MaxRetryAttempts, s.RetryIntervalHours,
		s.RetryBackoffMultiplier,
	)
	if err != nil {
		return recurring.Schedule{}, fmt.Errorf("failed to insert schedule: %w", err)
	}
	return scanSchedule(q.QueryRow(ctx, scheduleSelect+` WHERE s.id = $1`, s.ID))
}

// GetByID implements recurring.ScheduleRepository.
func (r *scheduleRepositoryImpl) GetByID(ctx context.Context, workspaceID, id string) (recurring.Schedule, error) {
	q := GetQuerier(ctx, r.db)
	return scanSchedule(q.QueryRow(ctx, scheduleSelect+` WHERE s.id = $1 AND s.workspace_id = $2`, id, workspaceID))
}

// GetByIDForUpdate implements recurring.ScheduleRepository.
func (r *scheduleRepositoryImpl) GetByIDForUpdate(ctx context.Context, id string) (recurring.Schedule, error) {
	q := GetQuerier(ctx, r.db)
	return scanSchedule(q.QueryRow(ctx, scheduleSelect+` WHERE s.id = $1 FOR UPDATE OF s`, id))
}

// List implements recurring.ScheduleRepository.
func (r *scheduleRepositoryImpl) List(ctx context.Context, filter recurring.ScheduleFilter) ([]recurring.Schedule, int64, error) {
	q := GetQuerier(ctx, r.db)

	where := newWhere("s.workspace_id = ?", filter.WorkspaceID)
	if filter.Status != nil {
		where.add("s.status = ?", *filter.Status)
	}
	if filter.ClientID != nil {
		where.add("s.client_id = ?", *filter.ClientID)
	}

	var total int64
	if err := q.QueryRow(ctx, "SELECT COUNT(*) FROM recurring_schedules s WHERE "+where.String(), where.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count schedules: %w", err)
	}

	limit, offset := paginate(filter.Page, filter.Limit)
	query := fmt.Sprintf(`%s
		WHERE %s
		ORDER BY s.next_run_date, s.schedule_number
		LIMIT $%d OFFSET $%d`, scheduleSelect, where.String(), where.next(), where.next()+1)

	schedules, err := r.listSchedules(ctx, query, append(where.args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	return schedules, total, nil
}

// Update implements recurring.ScheduleRepository.
func (r *scheduleRepositoryImpl) Update(ctx context.Context, s recurring.Schedule) error {
	q := GetQuerier(ctx, r.db)

	template, err := json.Marshal(orEmptySlice(s.LineItemsTemplate))
	if err != nil {
		return err
	}

	query := `
		UPDATE recurring_schedules
		SET description = $1, interval_type = $2, custom_interval_days = $3, end_date = $4, max_occurrences = $5,
			next_run_date = $6, last_run_date = $7, status = $8, paused_at = $9, pause_reason = $10,
			cancelled_at = $11, cancellation_reason = $12, proration_enabled = $13, anchor_day = $14,
			base_amount = $15, tax_rate = $16, line_items_template = $17, invoice_terms = $18, invoice_notes = $19,
			payment_terms_days = $20, auto_send = $21, retry_enabled = $22, max_retry_attempts = $23,
			retry_interval_hours = $24, retry_backoff_multiplier = $25, current_retry_count = $26,
			next_retry_at = $27, failure_notification_sent = $28, total_invoices_generated = $29,
			total_amount_billed = $30, dunning_execution_id = $31, updated_at = NOW()
		WHERE id = $32
	`
	return execOne(ctx, q, query,
		s.Description, s.IntervalType, s.CustomIntervalDays, s.EndDate, s.MaxOccurrences,
		s.NextRunDate, s.LastRunDate, s.Status, s.PausedAt, s.PauseReason,
		s.CancelledAt, s.CancellationReason, s.ProrationEnabled, s.AnchorDay,
		s.BaseAmount, s.TaxRate, template, s.InvoiceTerms, s.InvoiceNotes,
		s.PaymentTermsDays, s.AutoSend, s.RetryEnabled, s.MaxRetryAttempts,
		s.RetryIntervalHours, s.RetryBackoffMultiplier, s.CurrentRetryCount,
		s.NextRetryAt, s.FailureNotificationSent, s.TotalInvoicesGenerated,
		s.TotalAmountBilled, s.DunningExecutionID, s.ID,
	)
}

// ListDue implements recurring.ScheduleRepository.
func (r *scheduleRepositoryImpl) ListDue(ctx context.Context, day time.Time) ([]string, error) {
	return r.listIDs(ctx, `
		SELECT id FROM recurring_schedules
		WHERE status = 'active' AND next_run_date <= $1
		ORDER BY next_run_date, schedule_number`, day)
}

// ListRetryDue implements recurring.ScheduleRepository.
func (r *scheduleRepositoryImpl) ListRetryDue(ctx context.Context, now time.Time) ([]string, error) {
	return r.listIDs(ctx, `
		SELECT id FROM recurring_schedules
		WHERE status = 'active' AND retry_enabled AND next_retry_at IS NOT NULL AND next_retry_at <= $1
		ORDER BY next_retry_at`, now)
}

// ListActive implements recurring.ScheduleRepository.
func (r *scheduleRepositoryImpl) ListActive(ctx context.Context, workspaceID string) ([]recurring.Schedule, error) {
	return r.listSchedules(ctx, scheduleSelect+`
		WHERE s.workspace_id = $1 AND s.status = 'active'
		ORDER BY s.next_run_date`, workspaceID)
}

// ==================== Executions ====================

const executionColumns = `id, schedule_id, invoice_id, period_start, period_end, scheduled_date, status,
		amount_generated, prorated_amount, error_message, idempotency_key, executed_at`

func scanExecution(row interface{ Scan(dest ...any) error }) (recurring.Execution, error) {
	var e recurring.Execution
	err := row.Scan(
		&e.ID, &e.ScheduleID, &e.InvoiceID, &e.PeriodStart, &e.PeriodEnd, &e.ScheduledDate, &e.Status,
		&e.AmountGenerated, &e.ProratedAmount, &e.ErrorMessage, &e.IdempotencyKey, &e.ExecutedAt,
	)
	return e, err
}

// SuccessfulExecutionExists implements recurring.ScheduleRepository.
func (r *scheduleRepositoryImpl) SuccessfulExecutionExists(ctx context.Context, idempotencyKey string) (bool, error) {
	q := GetQuerier(ctx, r.db)

	var exists bool
	err := q.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM schedule_executions WHERE idempotency_key = $1 AND status = 'success')`,
		idempotencyKey).Scan(&exists)
	return exists, err
}

// CreateExecution implements recurring.ScheduleRepository.
func (r *scheduleRepositoryImpl) CreateExecution(ctx context.Context, e recurring.Execution) (recurring.Execution, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO schedule_executions (
			id, schedule_id, invoice_id, period_start, period_end, scheduled_date, status,
			amount_generated, prorated_amount, error_message, idempotency_key
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + executionColumns

	return scanExecution(q.QueryRow(ctx, query,
		newID(e.ID), e.ScheduleID, e.InvoiceID, e.PeriodStart, e.PeriodEnd, e.ScheduledDate, e.Status,
		e.AmountGenerated, e.ProratedAmount, e.ErrorMessage, e.IdempotencyKey,
	))
}

// GetExecutionByID implements recurring.ScheduleRepository.
func (r *scheduleRepositoryImpl) GetExecutionByID(ctx context.Context, id string) (recurring.Execution, error) {
	q := GetQuerier(ctx, r.db)
	return scanExecution(q.QueryRow(ctx, `SELECT `+executionColumns+` FROM schedule_executions WHERE id = $1`, id))
}

// GetExecutionByInvoiceID implements recurring.ScheduleRepository.
func (r *scheduleRepositoryImpl) GetExecutionByInvoiceID(ctx context.Context, invoiceID string) (recurring.Execution, error) {
	q := GetQuerier(ctx, r.db)
	return scanExecution(q.QueryRow(ctx, `
		SELECT `+executionColumns+`
		FROM schedule_executions
		WHERE invoice_id = $1
		ORDER BY executed_at DESC
		LIMIT 1`, invoiceID))
}

// GetLatestSuccessfulExecution implements recurring.ScheduleRepository.
func (r *scheduleRepositoryImpl) GetLatestSuccessfulExecution(ctx context.Context, scheduleID string) (recurring.Execution, error) {
	q := GetQuerier(ctx, r.db)
	return scanExecution(q.QueryRow(ctx, `
		SELECT `+executionColumns+`
		FROM schedule_executions
		WHERE schedule_id = $1 AND status = 'success'
		ORDER BY executed_at DESC
		LIMIT 1`, scheduleID))
}

// ListExecutions implements recurring.ScheduleRepository.
func (r *scheduleRepositoryImpl) ListExecutions(ctx context.Context, scheduleID string, page, limit int) ([]recurring.Execution, int64, error) {
	q := GetQuerier(ctx, r.db)

	var total int64
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM schedule_executions WHERE schedule_id = $1`, scheduleID).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, offset := paginate(page, limit)
	rows, err := q.Query(ctx, `
		SELECT `+executionColumns+`
		FROM schedule_executions
		WHERE schedule_id = $1
		ORDER BY executed_at DESC
		LIMIT $2 OFFSET $3`, scheduleID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list executions: %w", err)
	}
	defer rows.Close()

	var executions []recurring.Execution
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, 0, err
		}
		executions = append(executions, e)
	}
	return executions, total, rows.Err()
}

// ==================== Attempts and audit ====================

// CountAttempts implements recurring.ScheduleRepository.
func (r *scheduleRepositoryImpl) CountAttempts(ctx context.Context, executionID string) (int, error) {
	q := GetQuerier(ctx, r.db)

	var count int
	err := q.QueryRow(ctx, `SELECT COUNT(*) FROM payment_attempts WHERE execution_id = $1`, executionID).Scan(&count)
	return count, err
}

// CreateAttempt implements recurring.ScheduleRepository.
func (r *scheduleRepositoryImpl) CreateAttempt(ctx context.Context, a recurring.PaymentAttempt) error {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO payment_attempts (
			id, execution_id, invoice_id, attempt_number, status, amount, currency, provider,
			provider_transaction_id, error_code, error_message, next_retry_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := q.Exec(ctx, query,
		newID(a.ID), a.ExecutionID, a.InvoiceID, a.AttemptNumber, a.Status, a.Amount, a.Currency, a.Provider,
		a.ProviderTransactionID, a.ErrorCode, a.ErrorMessage, a.NextRetryAt,
	)
	return err
}

// CreateAuditLog implements recurring.ScheduleRepository.
func (r *scheduleRepositoryImpl) CreateAuditLog(ctx context.Context, log recurring.AuditLog) error {
	q := GetQuerier(ctx, r.db)

	oldValues, err := json.Marshal(orEmptyMap(log.OldValues))
	if err != nil {
		return err
	}
	newValues, err := json.Marshal(orEmptyMap(log.NewValues))
	if err != nil {
		return err
	}

	query := `
		INSERT INTO recurring_audit_logs (
			id, schedule_id, user_id, action, description, invoice_id, execution_id, old_values, new_values, ip_address
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = q.Exec(ctx, query,
		newID(log.ID), log.ScheduleID, log.UserID, log.Action, log.Description, log.InvoiceID, log.ExecutionID,
		oldValues, newValues, log.IPAddress,
	)
	return err
}

// ListAuditLogs implements recurring.ScheduleRepository.
func (r *scheduleRepositoryImpl) ListAuditLogs(ctx context.Context, scheduleID string, page, limit int) ([]recurring.AuditLog, int64, error) {
	q := GetQuerier(ctx, r.db)

	var total int64
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM recurring_audit_logs WHERE schedule_id = $1`, scheduleID).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, offset := paginate(page, limit)
	rows, err := q.Query(ctx, `
		SELECT id, schedule_id, user_id, action, description, invoice_id, execution_id, old_values, new_values,
			   ip_address, created_at
		FROM recurring_audit_logs
		WHERE schedule_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, scheduleID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list audit logs: %w", err)
	}
	defer rows.Close()

	var logs []recurring.AuditLog
	for rows.Next() {
		var l recurring.AuditLog
		var oldValues, newValues []byte
		if err := rows.Scan(
			&l.ID, &l.ScheduleID, &l.UserID, &l.Action, &l.Description, &l.InvoiceID, &l.ExecutionID,
			&oldValues, &newValues, &l.IPAddress, &l.CreatedAt,
		); err != nil {
			return nil, 0, err
		}
		if err := json.Unmarshal(oldValues, &l.OldValues); err != nil {
			return nil, 0, err
		}
		if err := json.Unmarshal(newValues, &l.NewValues); err != nil {
			return nil, 0, err
		}
		logs = append(logs, l)
	}
	return logs, total, rows.Err()
}
