package recurring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/client"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/invoice"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/notification"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/recurring"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/user"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/workspace"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/database"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/email"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/money"
)

type Repositories struct {
	Schedules  recurring.ScheduleRepository
	Clients    client.ClientRepository
	Workspaces workspace.WorkspaceRepository
	Users      user.UserRepository
}

type RecurringServiceImpl struct {
	db database.Transactor
	recurring.ScheduleRepository
	clientRepo     client.ClientRepository
	workspaceRepo  workspace.WorkspaceRepository
	userRepo       user.UserRepository
	invoiceService invoice.InvoiceService
	notifier       notification.Notifier
	emailService   email.EmailService
	now            func() time.Time
}

func NewRecurringService(
	db database.Transactor,
	repos Repositories,
	invoiceService invoice.InvoiceService,
	notifier notification.Notifier,
	emailService email.EmailService,
) recurring.RecurringService {
	return &RecurringServiceImpl{
		db:                 db,
		ScheduleRepository: repos.Schedules,
		clientRepo:         repos.Clients,
		workspaceRepo:      repos.Workspaces,
		userRepo:           repos.Users,
		invoiceService:     invoiceService,
		notifier:           notifier,
		emailService:       emailService,
		now:                time.Now,
	}
}

func (s *RecurringServiceImpl) today() time.Time {
	return recurring.DateOnly(s.now().UTC())
}

func (s *RecurringServiceImpl) get(ctx context.Context, workspaceID, id string) (recurring.Schedule, error) {
	sch, err := s.ScheduleRepository.GetByID(ctx, workspaceID, id)
	if err != nil {
		if database.IsNotFound(err) {
			return recurring.Schedule{}, recurring.ErrScheduleNotFound
		}
		return recurring.Schedule{}, fmt.Errorf("failed to get schedule: %w", err)
	}
	return sch, nil
}

// lock re-reads the schedule under a row lock; an empty workspaceID skips the tenant check
func (s *RecurringServiceImpl) lock(ctx context.Context, workspaceID, id string) (recurring.Schedule, error) {
	sch, err := s.ScheduleRepository.GetByIDForUpdate(ctx, id)
	if err != nil {
		if database.IsNotFound(err) {
			return recurring.Schedule{}, recurring.ErrScheduleNotFound
		}
		return recurring.Schedule{}, fmt.Errorf("failed to lock schedule: %w", err)
	}
	if workspaceID != "" && sch.WorkspaceID != workspaceID {
		return recurring.Schedule{}, recurring.ErrScheduleNotFound
	}
	return sch, nil
}

func (s *RecurringServiceImpl) audit(ctx context.Context, log recurring.AuditLog) error {
	if err := s.ScheduleRepository.CreateAuditLog(ctx, log); err != nil {
		return fmt.Errorf("failed to write schedule audit log: %w", err)
	}
	return nil
}

func userPtr(userID string) *string {
	if userID == "" {
		return nil
	}
	return &userID
}

func pagination(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}

// ==================== CRUD ====================

// Create implements recurring.RecurringService.
func (s *RecurringServiceImpl) Create(ctx context.Context, workspaceID, userID string, req recurring.CreateScheduleRequest) (recurring.ScheduleResponse, error) {
	if err := req.Validate(); err != nil {
		return recurring.ScheduleResponse{}, err
	}

	c, err := s.clientRepo.GetByID(ctx, workspaceID, req.ClientID)
	if err != nil {
		if database.IsNotFound(err) {
			return recurring.ScheduleResponse{}, recurring.ErrClientNotInWorkspace
		}
		return recurring.ScheduleResponse{}, fmt.Errorf("failed to get client: %w", err)
	}
	if req.Currency == "" {
		req.Currency = c.Currency
	}

	sch := req.ToSchedule(workspaceID, userID)
	var created recurring.Schedule
	err = s.db.WithTransaction(ctx, func(txCtx context.Context) error {
		created, err = s.ScheduleRepository.Create(txCtx, sch)
		if err != nil {
			return fmt.Errorf("failed to create schedule: %w", err)
		}
		return s.audit(txCtx, recurring.AuditLog{
			ScheduleID:  created.ID,
			UserID:      userPtr(userID),
			Action:      recurring.ActionCreated,
			Description: fmt.Sprintf("Schedule created, first run on %s", created.NextRunDate.Format(time.DateOnly)),
			NewValues: map[string]any{
				"interval_type": string(created.IntervalType),
				"base_amount":   created.BaseAmount.StringFixed(2),
				"currency":      created.Currency,
			},
		})
	})
	if err != nil {
		return recurring.ScheduleResponse{}, err
	}

	created.ClientName = c.Name
	created.ClientEmail = c.Email
	return created.ToResponse(), nil
}

// Get implements recurring.RecurringService.
func (s *RecurringServiceImpl) Get(ctx context.Context, workspaceID, id string) (recurring.ScheduleResponse, error) {
	sch, err := s.get(ctx, workspaceID, id)
	if err != nil {
		return recurring.ScheduleResponse{}, err
	}
	return sch.ToResponse(), nil
}

// List implements recurring.RecurringService.
func (s *RecurringServiceImpl) List(ctx context.Context, filter recurring.ScheduleFilter) ([]recurring.ScheduleResponse, int64, error) {
	filter.Page, filter.Limit = pagination(filter.Page, filter.Limit)
	schedules, total, err := s.ScheduleRepository.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list schedules: %w", err)
	}
	resp := make([]recurring.ScheduleResponse, 0, len(schedules))
	for i := range schedules {
		resp = append(resp, schedules[i].ToResponse())
	}
	return resp, total, nil
}

// Update implements recurring.RecurringService.
func (s *RecurringServiceImpl) Update(ctx context.Context, workspaceID, userID, id string, req recurring.UpdateScheduleRequest) (recurring.ScheduleResponse, error) {
	if err := req.Validate(); err != nil {
		return recurring.ScheduleResponse{}, err
	}

	var updated recurring.Schedule
	err := s.db.WithTransaction(ctx, func(txCtx context.Context) error {
		sch, err := s.lock(txCtx, workspaceID, id)
		if err != nil {
			return err
		}
		if sch.Status == recurring.StatusCancelled || sch.Status == recurring.StatusCompleted {
			return recurring.ErrScheduleNotEditable
		}

		changed := req.Apply(&sch)
		if len(changed) == 0 {
			updated = sch
			return nil
		}
		if err := s.ScheduleRepository.Update(txCtx, sch); err != nil {
			return fmt.Errorf("failed to update schedule: %w", err)
		}
		updated = sch
		return s.audit(txCtx, recurring.AuditLog{
			ScheduleID:  sch.ID,
			UserID:      userPtr(userID),
			Action:      recurring.ActionUpdated,
			Description: "Schedule updated",
			NewValues:   map[string]any{"changed_fields": changed},
		})
	})
	if err != nil {
		return recurring.ScheduleResponse{}, err
	}
	return updated.ToResponse(), nil
}

// transition applies a state change under lock and audits it
func (s *RecurringServiceImpl) transition(ctx context.Context, workspaceID, userID, id string, action recurring.AuditAction, reason string, apply func(*recurring.Schedule) error) (recurring.ScheduleResponse, error) {
	var updated recurring.Schedule
	err := s.db.WithTransaction(ctx, func(txCtx context.Context) error {
		sch, err := s.lock(txCtx, workspaceID, id)
		if err != nil {
			return err
		}
		from := sch.Status
		if err := apply(&sch); err != nil {
			return err
		}
		if err := s.ScheduleRepository.Update(txCtx, sch); err != nil {
			return fmt.Errorf("failed to update schedule: %w", err)
		}
		updated = sch

		description := fmt.Sprintf("Schedule %s", action)
		if reason != "" {
			description += ": " + reason
		}
		return s.audit(txCtx, recurring.AuditLog{
			ScheduleID:  sch.ID,
			UserID:      userPtr(userID),
			Action:      action,
			Description: description,
			OldValues:   map[string]any{"status": string(from)},
			NewValues:   map[string]any{"status": string(sch.Status), "next_run_date": sch.NextRunDate.Format(time.DateOnly)},
		})
	})
	if err != nil {
		return recurring.ScheduleResponse{}, err
	}
	return updated.ToResponse(), nil
}

// Pause implements recurring.RecurringService.
func (s *RecurringServiceImpl) Pause(ctx context.Context, workspaceID, userID, id string, req recurring.PauseRequest) (recurring.ScheduleResponse, error) {
	return s.transition(ctx, workspaceID, userID, id, recurring.ActionPaused, req.Reason, func(sch *recurring.Schedule) error {
		return sch.Pause(s.now(), req.Reason)
	})
}

// Resume implements recurring.RecurringService.
func (s *RecurringServiceImpl) Resume(ctx context.Context, workspaceID, userID, id string) (recurring.ScheduleResponse, error) {
	return s.transition(ctx, workspaceID, userID, id, recurring.ActionResumed, "", func(sch *recurring.Schedule) error {
		return sch.Resume(s.today())
	})
}

// Cancel implements recurring.RecurringService.
func (s *RecurringServiceImpl) Cancel(ctx context.Context, workspaceID, userID, id string, req recurring.CancelRequest) (recurring.ScheduleResponse, error) {
	return s.transition(ctx, workspaceID, userID, id, recurring.ActionCancelled, req.Reason, func(sch *recurring.Schedule) error {
		return sch.Cancel(s.now(), req.Reason)
	})
}

// ==================== Billing engine ====================

// ProcessDue implements recurring.RecurringService.
func (s *RecurringServiceImpl) ProcessDue(ctx context.Context, day time.Time) (recurring.ProcessResult, error) {
	ids, err := s.ScheduleRepository.ListDue(ctx, recurring.DateOnly(day))
	if err != nil {
		return recurring.ProcessResult{}, fmt.Errorf("failed to list due schedules: %w", err)
	}

	result := recurring.ProcessResult{Total: len(ids)}
	for _, id := range ids {
		_, err := s.ProcessOne(ctx, id, day)
		switch {
		case err == nil:
			result.Success++
		case errors.Is(err, recurring.ErrAlreadyGenerated), errors.Is(err, recurring.ErrNotDue), errors.Is(err, recurring.ErrScheduleClosed):
			result.Skipped++
		default:
			slog.Error("Recurring schedule failed", "schedule_id", id, "error", err)
			result.Failed++
		}
	}

	slog.Info("Recurring billing run finished",
		"day", recurring.DateOnly(day).Format(time.DateOnly),
		"total", result.Total, "success", result.Success, "failed", result.Failed, "skipped", result.Skipped)
	return result, nil
}

// ProcessOne implements recurring.RecurringService.
func (s *RecurringServiceImpl) ProcessOne(ctx context.Context, scheduleID string, day time.Time) (recurring.ExecutionResponse, error) {
	return s.run(ctx, scheduleID, "", day, false)
}

// RunNow implements recurring.RecurringService.
func (s *RecurringServiceImpl) RunNow(ctx context.Context, workspaceID, userID, id string) (recurring.ExecutionResponse, error) {
	sch, err := s.get(ctx, workspaceID, id)
	if err != nil {
		return recurring.ExecutionResponse{}, err
	}
	switch sch.Status {
	case recurring.StatusActive:
	case recurring.StatusPaused, recurring.StatusFailed:
		return recurring.ExecutionResponse{}, recurring.ErrScheduleNotRunnable
	default:
		return recurring.ExecutionResponse{}, recurring.ErrScheduleClosed
	}
	return s.run(ctx, id, userID, s.today(), true)
}

// generation is what a run hands to its post-commit steps
type generation struct {
	schedule  recurring.Schedule
	invoice   invoice.Invoice
	execution recurring.Execution
}

// run generates the invoice of a schedule for day; force skips the due-date check
func (s *RecurringServiceImpl) run(ctx context.Context, scheduleID, userID string, day time.Time, force bool) (recurring.ExecutionResponse, error) {
	runDate := recurring.DateOnly(day)
	key := recurring.IdempotencyKey(scheduleID, runDate)

	var gen *generation
	var prorated *decimal.Decimal
	ended := false
	err := s.db.WithTransaction(ctx, func(txCtx context.Context) error {
		sch, err := s.lock(txCtx, "", scheduleID)
		if err != nil {
			return err
		}
		if sch.Status != recurring.StatusActive {
			return recurring.ErrScheduleClosed
		}
		if !force && !sch.IsDue(runDate) {
			return recurring.ErrNotDue
		}
		if sch.HasEnded(runDate) {
			sch.Status = recurring.StatusCompleted
			if err := s.ScheduleRepository.Update(txCtx, sch); err != nil {
				return fmt.Errorf("failed to complete schedule: %w", err)
			}
			if err := s.audit(txCtx, recurring.AuditLog{
				ScheduleID:  sch.ID,
				Action:      recurring.ActionCompleted,
				Description: "Schedule reached its end",
			}); err != nil {
				return err
			}
			ended = true
			return nil
		}

		exists, err := s.ScheduleRepository.SuccessfulExecutionExists(txCtx, key)
		if err != nil {
			return fmt.Errorf("failed to check execution: %w", err)
		}
		if exists {
			return recurring.ErrAlreadyGenerated
		}

		amount, isProrated := sch.ProratedAmount(runDate)
		if isProrated {
			prorated = &amount
		}
		inv, err := s.invoiceService.Generate(txCtx, invoice.GenerateRequest{
			WorkspaceID:     sch.WorkspaceID,
			ClientID:        sch.ClientID,
			CreatedBy:       sch.CreatedBy,
			InvoiceNumber:   sch.InvoiceNumber(runDate),
			Source:          invoice.SourceRecurring,
			SourceID:        &sch.ID,
			IssueDate:       runDate,
			DueDate:         sch.DueDate(runDate),
			Currency:        sch.Currency,
			ClientMemo:      sch.InvoiceNotes,
			TermsConditions: sch.InvoiceTerms,
			Items:           lineItems(sch, amount, isProrated, runDate),
		})
		if err != nil {
			if errors.Is(err, invoice.ErrDuplicateNumber) {
				return recurring.ErrAlreadyGenerated
			}
			return fmt.Errorf("failed to generate invoice: %w", err)
		}

		total := inv.TotalAmount
		exec, err := s.ScheduleRepository.CreateExecution(txCtx, recurring.Execution{
			ScheduleID:      sch.ID,
			InvoiceID:       &inv.ID,
			PeriodStart:     runDate,
			PeriodEnd:       sch.CalculateNextRunDate(runDate).AddDate(0, 0, -1),
			ScheduledDate:   recurring.DateOnly(sch.NextRunDate),
			Status:          recurring.ExecutionSuccess,
			AmountGenerated: &total,
			ProratedAmount:  prorated,
			IdempotencyKey:  key,
			ExecutedAt:      s.now(),
		})
		if err != nil {
			return fmt.Errorf("failed to record execution: %w", err)
		}

		sch.MarkGenerated(runDate, total)
		if err := s.ScheduleRepository.Update(txCtx, sch); err != nil {
			return fmt.Errorf("failed to advance schedule: %w", err)
		}

		description := fmt.Sprintf("Generated invoice %s for %s", inv.InvoiceNumber, money.Format(total, inv.Currency))
		if isProrated {
			description += " (prorated)"
		}
		if err := s.audit(txCtx, recurring.AuditLog{
			ScheduleID:  sch.ID,
			UserID:      userPtr(userID),
			Action:      recurring.ActionInvoiceGenerated,
			Description: description,
			InvoiceID:   &inv.ID,
			ExecutionID: &exec.ID,
			NewValues: map[string]any{
				"next_run_date":            sch.NextRunDate.Format(time.DateOnly),
				"total_invoices_generated": sch.TotalInvoicesGenerated,
			},
		}); err != nil {
			return err
		}
		if sch.Status == recurring.StatusCompleted {
			if err := s.audit(txCtx, recurring.AuditLog{
				ScheduleID:  sch.ID,
				Action:      recurring.ActionCompleted,
				Description: "Schedule reached its maximum occurrences",
			}); err != nil {
				return err
			}
		}

		gen = &generation{schedule: sch, invoice: inv, execution: exec}
		return nil
	})
	if err != nil {
		if !errors.Is(err, recurring.ErrAlreadyGenerated) && !errors.Is(err, recurring.ErrNotDue) &&
			!errors.Is(err, recurring.ErrScheduleClosed) && !errors.Is(err, recurring.ErrScheduleNotFound) {
			s.recordFailedRun(ctx, scheduleID, runDate, key, err)
		}
		return recurring.ExecutionResponse{}, err
	}
	// The completion must commit before the run is reported as closed
	if ended {
		return recurring.ExecutionResponse{}, recurring.ErrScheduleClosed
	}

	s.afterGenerate(ctx, gen)
	return gen.execution.ToResponse(), nil
}

// lineItems copies the template, or bills the schedule amount as a single line
func lineItems(sch recurring.Schedule, amount decimal.Decimal, prorated bool, runDate time.Time) []invoice.ItemInput {
	if len(sch.LineItemsTemplate) > 0 && !prorated {
		items := make([]invoice.ItemInput, 0, len(sch.LineItemsTemplate))
		for _, t := range sch.LineItemsTemplate {
			rate := t.TaxRate
			if rate.IsZero() {
				rate = sch.TaxRate
			}
			items = append(items, invoice.ItemInput{
				Description: t.Description,
				Quantity:    t.Quantity,
				UnitPrice:   t.UnitPrice,
				TaxRate:     rate,
			})
		}
		return items
	}

	description := fmt.Sprintf("%s (%s)", sch.Description, runDate.Format("Jan 2, 2006"))
	if prorated {
		description += " - prorated"
	}
	return []invoice.ItemInput{{
		Description: description,
		Quantity:    decimal.NewFromInt(1),
		UnitPrice:   amount,
		TaxRate:     sch.TaxRate,
	}}
}

// recordFailedRun stores a failed execution outside the rolled back transaction
func (s *RecurringServiceImpl) recordFailedRun(ctx context.Context, scheduleID string, runDate time.Time, key string, cause error) {
	_, err := s.ScheduleRepository.CreateExecution(ctx, recurring.Execution{
		ScheduleID:     scheduleID,
		PeriodStart:    runDate,
		PeriodEnd:      runDate,
		ScheduledDate:  runDate,
		Status:         recurring.ExecutionFailed,
		ErrorMessage:   cause.Error(),
		IdempotencyKey: key,
		ExecutedAt:     s.now(),
	})
	if err != nil {
		slog.Error("Failed to record failed execution", "schedule_id", scheduleID, "error", err)
	}
}

func (s *RecurringServiceImpl) afterGenerate(ctx context.Context, gen *generation) {
	sch, inv := gen.schedule, gen.invoice
	if sch.AutoSend {
		if _, err := s.invoiceService.Send(ctx, sch.WorkspaceID, "", inv.ID); err != nil {
			slog.Warn("Failed to auto-send recurring invoice", "schedule_id", sch.ID, "invoice_id", inv.ID, "error", err)
		}
	}

	userID := ""
	if sch.CreatedBy != nil {
		userID = *sch.CreatedBy
	} else if ws, err := s.workspaceRepo.GetByID(ctx, sch.WorkspaceID); err == nil {
		userID = ws.OwnerID
	}
	if userID == "" {
		return
	}
	err := s.notifier.Notify(ctx, notification.Notice{
		WorkspaceID:  sch.WorkspaceID,
		UserID:       userID,
		Kind:         notification.KindRecurringGenerated,
		Title:        "Recurring invoice generated",
		Body:         fmt.Sprintf("Invoice %s was generated for %s", inv.InvoiceNumber, sch.Description),
		ResourceType: "invoice",
		ResourceID:   inv.ID,
		Data: map[string]any{
			"schedule_id":    sch.ID,
			"invoice_number": inv.InvoiceNumber,
		},
	})
	if err != nil {
		slog.Warn("Failed to queue recurring notification", "schedule_id", sch.ID, "error", err)
	}
}

// ==================== Dunning ====================

// attempt records one payment attempt against the locked schedule.
// It returns true when the failure exhausted the retries and the owner has not been told yet.
func (s *RecurringServiceImpl) attempt(ctx context.Context, sch *recurring.Schedule, exec recurring.Execution, success bool, provider, providerTxID, code, message string) (bool, error) {
	count, err := s.ScheduleRepository.CountAttempts(ctx, exec.ID)
	if err != nil {
		return false, fmt.Errorf("failed to count payment attempts: %w", err)
	}

	amount := decimal.Zero
	if exec.AmountGenerated != nil {
		amount = *exec.AmountGenerated
	}
	a := recurring.PaymentAttempt{
		ExecutionID:           exec.ID,
		InvoiceID:             exec.InvoiceID,
		AttemptNumber:         count + 1,
		Amount:                amount,
		Currency:              sch.Currency,
		Provider:              provider,
		ProviderTransactionID: providerTxID,
		ErrorCode:             code,
		ErrorMessage:          message,
		AttemptedAt:           s.now(),
	}

	logs := []recurring.AuditLog{{
		ScheduleID:  sch.ID,
		Action:      recurring.ActionPaymentAttempted,
		Description: fmt.Sprintf("Payment attempt %d", a.AttemptNumber),
		InvoiceID:   exec.InvoiceID,
		ExecutionID: &exec.ID,
	}}

	notify := false
	if success {
		a.Status = recurring.AttemptSuccess
		description := "Payment received"
		// Paying a newer invoice leaves an older overdue one under dunning
		if sch.InDunning(exec.ID) {
			sch.RegisterSuccess()
			description = "Payment received, retry state cleared"
		}
		logs = append(logs, recurring.AuditLog{
			ScheduleID:  sch.ID,
			Action:      recurring.ActionPaymentSuccess,
			Description: description,
			InvoiceID:   exec.InvoiceID,
			ExecutionID: &exec.ID,
		})
	} else {
		a.Status = recurring.AttemptFailed
		retried := sch.RegisterFailure(s.now(), exec.ID)
		a.NextRetryAt = sch.NextRetryAt
		logs = append(logs, recurring.AuditLog{
			ScheduleID:  sch.ID,
			Action:      recurring.ActionPaymentFailed,
			Description: fmt.Sprintf("%s: %s", code, message),
			InvoiceID:   exec.InvoiceID,
			ExecutionID: &exec.ID,
		})
		if retried {
			logs = append(logs, recurring.AuditLog{
				ScheduleID:  sch.ID,
				Action:      recurring.ActionRetryScheduled,
				Description: fmt.Sprintf("Retry %d of %d scheduled for %s", sch.CurrentRetryCount, sch.MaxRetryAttempts, sch.NextRetryAt.Format(time.RFC3339)),
				InvoiceID:   exec.InvoiceID,
				ExecutionID: &exec.ID,
				NewValues:   map[string]any{"current_retry_count": sch.CurrentRetryCount},
			})
		} else {
			logs = append(logs, recurring.AuditLog{
				ScheduleID:  sch.ID,
				Action:      recurring.ActionRetryExhausted,
				Description: "Retries exhausted, schedule failed",
				InvoiceID:   exec.InvoiceID,
				ExecutionID: &exec.ID,
				NewValues:   map[string]any{"status": string(sch.Status)},
			})
			if !sch.FailureNotificationSent {
				sch.FailureNotificationSent = true
				notify = true
				logs = append(logs, recurring.AuditLog{
					ScheduleID:  sch.ID,
					Action:      recurring.ActionNotificationSent,
					Description: "Owner notified of the failed schedule",
				})
			}
		}
	}

	if err := s.ScheduleRepository.CreateAttempt(ctx, a); err != nil {
		return false, fmt.Errorf("failed to record payment attempt: %w", err)
	}
	if err := s.ScheduleRepository.Update(ctx, *sch); err != nil {
		return false, fmt.Errorf("failed to update schedule retry state: %w", err)
	}
	for _, log := range logs {
		if err := s.audit(ctx, log); err != nil {
			return false, err
		}
	}
	return notify, nil
}

func (s *RecurringServiceImpl) executionFor(ctx context.Context, invoiceID string) (recurring.Execution, error) {
	exec, err := s.ScheduleRepository.GetExecutionByInvoiceID(ctx, invoiceID)
	if err != nil {
		if database.IsNotFound(err) {
			return recurring.Execution{}, recurring.ErrExecutionNotFound
		}
		return recurring.Execution{}, fmt.Errorf("failed to get execution: %w", err)
	}
	return exec, nil
}

// RecordPaymentFailure implements recurring.RecurringService.
func (s *RecurringServiceImpl) RecordPaymentFailure(ctx context.Context, invoiceID, errorCode, message string) error {
	exec, err := s.executionFor(ctx, invoiceID)
	if err != nil {
		return err
	}

	var failed *recurring.Schedule
	err = s.db.WithTransaction(ctx, func(txCtx context.Context) error {
		sch, err := s.lock(txCtx, "", exec.ScheduleID)
		if err != nil {
			return err
		}
		if sch.Status != recurring.StatusActive {
			return nil
		}
		notify, err := s.attempt(txCtx, &sch, exec, false, "", "", errorCode, message)
		if err != nil {
			return err
		}
		if notify {
			failed = &sch
		}
		return nil
	})
	if err != nil {
		return err
	}
	if failed != nil {
		s.notifyFailure(ctx, *failed, message)
	}
	return nil
}

// RecordPaymentSuccess implements recurring.RecurringService.
func (s *RecurringServiceImpl) RecordPaymentSuccess(ctx context.Context, invoiceID, provider, providerTransactionID string) error {
	exec, err := s.executionFor(ctx, invoiceID)
	if err != nil {
		return err
	}
	return s.db.WithTransaction(ctx, func(txCtx context.Context) error {
		sch, err := s.lock(txCtx, "", exec.ScheduleID)
		if err != nil {
			return err
		}
		_, err = s.attempt(txCtx, &sch, exec, true, provider, providerTransactionID, "", "")
		return err
	})
}

// ProcessRetries implements recurring.RecurringService.
func (s *RecurringServiceImpl) ProcessRetries(ctx context.Context, now time.Time) (recurring.RetryResult, error) {
	ids, err := s.ScheduleRepository.ListRetryDue(ctx, now)
	if err != nil {
		return recurring.RetryResult{}, fmt.Errorf("failed to list retry-due schedules: %w", err)
	}

	var result recurring.RetryResult
	for _, id := range ids {
		outcome, err := s.retry(ctx, id, now)
		if err != nil {
			slog.Error("Recurring retry failed", "schedule_id", id, "error", err)
			continue
		}
		result.Processed++
		switch outcome {
		case retryRecovered:
			result.Recovered++
		case retryScheduled:
			result.Retried++
		case retryExhausted:
			result.Exhausted++
		}
	}

	slog.Info("Recurring retries processed",
		"processed", result.Processed, "recovered", result.Recovered, "retried", result.Retried, "exhausted", result.Exhausted)
	return result, nil
}

type retryOutcome int

const (
	retrySkipped retryOutcome = iota
	retryRecovered
	retryScheduled
	retryExhausted
)

func (s *RecurringServiceImpl) retry(ctx context.Context, scheduleID string, now time.Time) (retryOutcome, error) {
	outcome := retrySkipped
	var resend *invoice.Invoice
	var failed *recurring.Schedule

	err := s.db.WithTransaction(ctx, func(txCtx context.Context) error {
		sch, err := s.lock(txCtx, "", scheduleID)
		if err != nil {
			return err
		}
		if sch.Status != recurring.StatusActive || sch.NextRetryAt == nil || sch.NextRetryAt.After(now) {
			return nil
		}

		exec, err := s.dunningExecution(txCtx, sch)
		if err != nil {
			return err
		}
		if exec.InvoiceID == nil {
			return recurring.ErrNoExecution
		}
		inv, err := s.invoiceService.GetInvoice(txCtx, sch.WorkspaceID, *exec.InvoiceID)
		if err != nil {
			return err
		}

		switch {
		case inv.Status == invoice.StatusPaid:
			if _, err := s.attempt(txCtx, &sch, exec, true, "", "", "", ""); err != nil {
				return err
			}
			outcome = retryRecovered
		case !inv.Status.IsOpen():
			// Voided or written off invoices will never be paid
			sch.RegisterSuccess()
			if err := s.ScheduleRepository.Update(txCtx, sch); err != nil {
				return fmt.Errorf("failed to clear retry state: %w", err)
			}
		default:
			notify, err := s.attempt(txCtx, &sch, exec, false, "", "", recurring.ErrorCodeUnpaid,
				fmt.Sprintf("invoice %s is still unpaid", inv.InvoiceNumber))
			if err != nil {
				return err
			}
			if sch.Status == recurring.StatusFailed {
				outcome = retryExhausted
			} else {
				outcome = retryScheduled
				resend = &inv
			}
			if notify {
				failed = &sch
			}
		}
		return nil
	})
	if err != nil {
		return retrySkipped, err
	}

	if resend != nil {
		if _, err := s.invoiceService.Send(ctx, resend.WorkspaceID, "", resend.ID); err != nil {
			slog.Warn("Failed to re-send unpaid recurring invoice", "invoice_id", resend.ID, "error", err)
		}
	}
	if failed != nil {
		s.notifyFailure(ctx, *failed, "the invoice remained unpaid after every retry")
	}
	return outcome, nil
}

// dunningExecution returns the execution whose invoice the retries chase.
// Schedules without a recorded target fall back to the newest generated invoice.
func (s *RecurringServiceImpl) dunningExecution(ctx context.Context, sch recurring.Schedule) (recurring.Execution, error) {
	var exec recurring.Execution
	var err error
	if sch.DunningExecutionID != nil {
		exec, err = s.ScheduleRepository.GetExecutionByID(ctx, *sch.DunningExecutionID)
	} else {
		exec, err = s.ScheduleRepository.GetLatestSuccessfulExecution(ctx, sch.ID)
	}
	if err != nil {
		if database.IsNotFound(err) {
			return recurring.Execution{}, recurring.ErrNoExecution
		}
		return recurring.Execution{}, fmt.Errorf("failed to get dunning execution: %w", err)
	}
	return exec, nil
}

// notifyFailure tells the workspace owner in-app and by email that a schedule failed
func (s *RecurringServiceImpl) notifyFailure(ctx context.Context, sch recurring.Schedule, reason string) {
	ws, err := s.workspaceRepo.GetByID(ctx, sch.WorkspaceID)
	if err != nil {
		slog.Warn("Failed to load workspace for failure notice", "schedule_id", sch.ID, "error", err)
		return
	}

	err = s.notifier.Notify(ctx, notification.Notice{
		WorkspaceID:  sch.WorkspaceID,
		UserID:       ws.OwnerID,
		Kind:         notification.KindRecurringFailed,
		Title:        "Recurring schedule failed",
		Body:         fmt.Sprintf("%s stopped after %d failed payment attempts", sch.Description, sch.CurrentRetryCount),
		ResourceType: "recurring_schedule",
		ResourceID:   sch.ID,
	})
	if err != nil {
		slog.Warn("Failed to queue failure notification", "schedule_id", sch.ID, "error", err)
	}

	owner, err := s.userRepo.GetByID(ctx, ws.OwnerID)
	if err != nil {
		slog.Warn("Failed to load workspace owner", "schedule_id", sch.ID, "error", err)
		return
	}
	err = s.emailService.SendRecurringFailed(owner.Email, email.RecurringFailedEmail{
		Branding:     email.Branding{BusinessName: ws.DisplayName(), BrandColor: ws.PrimaryColor},
		ScheduleName: sch.Description,
		ClientName:   sch.ClientName,
		Reason:       reason,
	})
	if err != nil {
		slog.Error("Failed to email failure notice", "schedule_id", sch.ID, "to", owner.Email, "error", err)
	}
}

// ==================== Inspection ====================

// GetRetryPlan implements recurring.RecurringService.
func (s *RecurringServiceImpl) GetRetryPlan(ctx context.Context, workspaceID, id string) (recurring.RetryPlan, error) {
	sch, err := s.get(ctx, workspaceID, id)
	if err != nil {
		return recurring.RetryPlan{}, err
	}
	return sch.RetryPlan(s.now()), nil
}

// ListExecutions implements recurring.RecurringService.
func (s *RecurringServiceImpl) ListExecutions(ctx context.Context, workspaceID, id string, page, limit int) ([]recurring.ExecutionResponse, int64, error) {
	if _, err := s.get(ctx, workspaceID, id); err != nil {
		return nil, 0, err
	}
	page, limit = pagination(page, limit)
	execs, total, err := s.ScheduleRepository.ListExecutions(ctx, id, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list executions: %w", err)
	}
	resp := make([]recurring.ExecutionResponse, 0, len(execs))
	for i := range execs {
		resp = append(resp, execs[i].ToResponse())
	}
	return resp, total, nil
}

// ListAuditLogs implements recurring.RecurringService.
func (s *RecurringServiceImpl) ListAuditLogs(ctx context.Context, workspaceID, id string, page, limit int) ([]recurring.AuditLogResponse, int64, error) {
	if _, err := s.get(ctx, workspaceID, id); err != nil {
		return nil, 0, err
	}
	page, limit = pagination(page, limit)
	logs, total, err := s.ScheduleRepository.ListAuditLogs(ctx, id, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list schedule audit logs: %w", err)
	}
	resp := make([]recurring.AuditLogResponse, 0, len(logs))
	for i := range logs {
		resp = append(resp, logs[i].ToResponse())
	}
	return resp, total, nil
}
