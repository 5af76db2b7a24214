package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/estimate"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/invitation"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/invoice"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/payment"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/recurring"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/reminder"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/webhook"
)

// Job names
const (
	JobProcessRecurring   = "process_recurring"
	JobProcessRetries     = "process_recurring_retries"
	JobMarkOverdue        = "mark_overdue_invoices"
	JobExpireEstimates    = "expire_estimates"
	JobProcessReminders   = "process_reminders"
	JobReconcilePayments  = "reconcile_payments"
	JobProcessRecoveries  = "process_payment_recoveries"
	JobDeliverWebhooks    = "deliver_webhooks"
	JobCleanupInvitations = "cleanup_expired_invitations"
)

// BillingJobs runs the periodic billing work. The CLI calls the same methods.
type BillingJobs struct {
	recurring  recurring.RecurringService
	invoices   invoice.InvoiceService
	estimates  estimate.EstimateService
	reminders  reminder.ReminderService
	payments   payment.PaymentService
	webhooks   webhook.WebhookService
	invitation invitation.InvitationService
	now        func() time.Time
}

func NewBillingJobs(
	recurringService recurring.RecurringService,
	invoiceService invoice.InvoiceService,
	estimateService estimate.EstimateService,
	reminderService reminder.ReminderService,
	paymentService payment.PaymentService,
	webhookService webhook.WebhookService,
	invitationService invitation.InvitationService,
) *BillingJobs {
	return &BillingJobs{
		recurring:  recurringService,
		invoices:   invoiceService,
		estimates:  estimateService,
		reminders:  reminderService,
		payments:   paymentService,
		webhooks:   webhookService,
		invitation: invitationService,
		now:        time.Now,
	}
}

// discard adapts a job method that reports a summary to the scheduler signature
func discard[T any](fn func(context.Context) (T, error)) func(context.Context) error {
	return func(ctx context.Context) error {
		_, err := fn(ctx)
		return err
	}
}

// Jobs lists the billing jobs with their cadence
func (j *BillingJobs) Jobs() []Job {
	recurringToday := func(ctx context.Context) (recurring.ProcessResult, error) {
		return j.ProcessRecurring(ctx, today(j.now()))
	}
	return []Job{
		{Name: JobProcessRecurring, Every: time.Hour, Timeout: 30 * time.Minute, Run: discard(recurringToday)},
		{Name: JobProcessRetries, Every: time.Hour, Timeout: 30 * time.Minute, Run: discard(j.ProcessRetries)},
		{Name: JobMarkOverdue, Every: time.Hour, Timeout: 10 * time.Minute, Run: discard(j.MarkOverdue)},
		{Name: JobExpireEstimates, Every: 6 * time.Hour, Timeout: 10 * time.Minute, Run: discard(j.ExpireEstimates)},
		{Name: JobProcessReminders, Every: time.Hour, Timeout: 30 * time.Minute, Run: discard(j.ProcessReminders)},
		{Name: JobReconcilePayments, Every: 30 * time.Minute, Timeout: 20 * time.Minute, Run: discard(j.ReconcilePayments)},
		{Name: JobProcessRecoveries, Every: time.Minute, Timeout: 50 * time.Second, Run: discard(j.ProcessRecoveries)},
		{Name: JobDeliverWebhooks, Every: time.Minute, Timeout: 50 * time.Second, Run: discard(j.DeliverWebhooks)},
		{Name: JobCleanupInvitations, Every: 24 * time.Hour, Timeout: 5 * time.Minute, Run: discard(j.CleanupInvitations)},
	}
}

// RegisterJobs registers every billing job on the scheduler
func (j *BillingJobs) RegisterJobs(scheduler *Scheduler) {
	for _, job := range j.Jobs() {
		scheduler.Register(job)
	}
}

func today(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (j *BillingJobs) ProcessRecurring(ctx context.Context, day time.Time) (recurring.ProcessResult, error) {
	result, err := j.recurring.ProcessDue(ctx, day)
	if err != nil {
		return result, fmt.Errorf("failed to process recurring schedules: %w", err)
	}
	if result.Total > 0 {
		slog.Info("Recurring schedules processed",
			"date", day.Format("2006-01-02"),
			"total", result.Total,
			"success", result.Success,
			"failed", result.Failed,
			"skipped", result.Skipped,
		)
	}
	return result, nil
}

func (j *BillingJobs) ProcessRetries(ctx context.Context) (recurring.RetryResult, error) {
	result, err := j.recurring.ProcessRetries(ctx, j.now())
	if err != nil {
		return result, fmt.Errorf("failed to process payment retries: %w", err)
	}
	if result.Processed > 0 {
		slog.Info("Payment retries processed",
			"processed", result.Processed,
			"recovered", result.Recovered,
			"retried", result.Retried,
			"exhausted", result.Exhausted,
		)
	}
	return result, nil
}

// MarkOverdue flags overdue invoices and feeds the ones generated by a schedule
// into the retry engine
func (j *BillingJobs) MarkOverdue(ctx context.Context) (int, error) {
	day := today(j.now())
	flagged, err := j.invoices.MarkOverdue(ctx, day)
	if err != nil {
		return 0, fmt.Errorf("failed to mark overdue invoices: %w", err)
	}

	for _, inv := range flagged {
		if inv.SourceType != invoice.SourceRecurring {
			continue
		}
		msg := fmt.Sprintf("invoice %s unpaid past due date %s", inv.InvoiceNumber, inv.DueDate.Format("2006-01-02"))
		if err := j.recurring.RecordPaymentFailure(ctx, inv.ID, recurring.ErrorCodeOverdue, msg); err != nil {
			slog.Error("Failed to record recurring payment failure", "invoice_id", inv.ID, "error", err)
		}
	}
	if len(flagged) > 0 {
		slog.Info("Invoices marked overdue", "count", len(flagged))
	}
	return len(flagged), nil
}

func (j *BillingJobs) ExpireEstimates(ctx context.Context) (int64, error) {
	n, err := j.estimates.ExpireStale(ctx, today(j.now()))
	if err != nil {
		return 0, fmt.Errorf("failed to expire estimates: %w", err)
	}
	return n, nil
}

func (j *BillingJobs) ProcessReminders(ctx context.Context) (reminder.ProcessResult, error) {
	result, err := j.reminders.ProcessReminders(ctx, today(j.now()))
	if err != nil {
		return result, fmt.Errorf("failed to process reminders: %w", err)
	}
	return result, nil
}

func (j *BillingJobs) ReconcilePayments(ctx context.Context) (payment.ReconcileSummary, error) {
	summary, err := j.payments.ReconcileRecent(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to reconcile payments: %w", err)
	}
	return summary, nil
}

func (j *BillingJobs) ProcessRecoveries(ctx context.Context) (payment.RecoverySummary, error) {
	summary, err := j.payments.ProcessPendingRecoveries(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to process payment recoveries: %w", err)
	}
	return summary, nil
}

func (j *BillingJobs) DeliverWebhooks(ctx context.Context) (webhook.DeliverResult, error) {
	result, err := j.webhooks.ProcessPendingDeliveries(ctx, j.now())
	if err != nil {
		return result, fmt.Errorf("failed to deliver webhooks: %w", err)
	}
	return result, nil
}

func (j *BillingJobs) CleanupInvitations(ctx context.Context) (int64, error) {
	n, err := j.invitation.CleanupExpired(ctx, j.now())
	if err != nil {
		return 0, fmt.Errorf("failed to clean up invitations: %w", err)
	}
	return n, nil
}
