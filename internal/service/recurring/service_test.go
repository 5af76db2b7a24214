package recurring

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/client"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/invoice"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/notification"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/recurring"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/user"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/workspace"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/testutil"
)

const clientID = "6f1c2d3e-4b5a-4c7d-8e9f-0a1b2c3d4e5f"

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(y int, m time.Month, day int) time.Time {
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

// ==================== fakes ====================

type fakeScheduleRepo struct {
	recurring.ScheduleRepository
	schedules  map[string]recurring.Schedule
	executions []recurring.Execution
	attempts   []recurring.PaymentAttempt
	audits     []recurring.AuditLog
	seq        int
}

func newFakeScheduleRepo() *fakeScheduleRepo {
	return &fakeScheduleRepo{schedules: map[string]recurring.Schedule{}}
}

func (f *fakeScheduleRepo) Create(_ context.Context, s recurring.Schedule) (recurring.Schedule, error) {
	f.seq++
	s.ID = fmt.Sprintf("sch-%d", f.seq)
	s.ScheduleNumber = int64(f.seq)
	f.schedules[s.ID] = s
	return s, nil
}

func (f *fakeScheduleRepo) GetByID(_ context.Context, workspaceID, id string) (recurring.Schedule, error) {
	s, ok := f.schedules[id]
	if !ok || s.WorkspaceID != workspaceID {
		return recurring.Schedule{}, pgx.ErrNoRows
	}
	return s, nil
}

func (f *fakeScheduleRepo) GetByIDForUpdate(_ context.Context, id string) (recurring.Schedule, error) {
	s, ok := f.schedules[id]
	if !ok {
		return recurring.Schedule{}, pgx.ErrNoRows
	}
	return s, nil
}

func (f *fakeScheduleRepo) Update(_ context.Context, s recurring.Schedule) error {
	f.schedules[s.ID] = s
	return nil
}

func (f *fakeScheduleRepo) ListDue(_ context.Context, day time.Time) ([]string, error) {
	var ids []string
	for _, s := range f.schedules {
		if s.IsDue(day) {
			ids = append(ids, s.ID)
		}
	}
	return ids, nil
}

func (f *fakeScheduleRepo) ListRetryDue(_ context.Context, now time.Time) ([]string, error) {
	var ids []string
	for _, s := range f.schedules {
		if s.Status == recurring.StatusActive && s.NextRetryAt != nil && !s.NextRetryAt.After(now) {
			ids = append(ids, s.ID)
		}
	}
	return ids, nil
}

func (f *fakeScheduleRepo) SuccessfulExecutionExists(_ context.Context, key string) (bool, error) {
	for _, e := range f.executions {
		if e.IdempotencyKey == key && e.Status == recurring.ExecutionSuccess {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeScheduleRepo) CreateExecution(_ context.Context, e recurring.Execution) (recurring.Execution, error) {
	e.ID = fmt.Sprintf("exec-%d", len(f.executions)+1)
	f.executions = append(f.executions, e)
	return e, nil
}

func (f *fakeScheduleRepo) GetExecutionByID(_ context.Context, id string) (recurring.Execution, error) {
	for _, e := range f.executions {
		if e.ID == id {
			return e, nil
		}
	}
	return recurring.Execution{}, pgx.ErrNoRows
}

func (f *fakeScheduleRepo) GetExecutionByInvoiceID(_ context.Context, invoiceID string) (recurring.Execution, error) {
	for _, e := range f.executions {
		if e.InvoiceID != nil && *e.InvoiceID == invoiceID {
			return e, nil
		}
	}
	return recurring.Execution{}, pgx.ErrNoRows
}

func (f *fakeScheduleRepo) GetLatestSuccessfulExecution(_ context.Context, scheduleID string) (recurring.Execution, error) {
	for i := len(f.executions) - 1; i >= 0; i-- {
		e := f.executions[i]
		if e.ScheduleID == scheduleID && e.Status == recurring.ExecutionSuccess {
			return e, nil
		}
	}
	return recurring.Execution{}, pgx.ErrNoRows
}

func (f *fakeScheduleRepo) CountAttempts(_ context.Context, executionID string) (int, error) {
	n := 0
	for _, a := range f.attempts {
		if a.ExecutionID == executionID {
			n++
		}
	}
	return n, nil
}

func (f *fakeScheduleRepo) CreateAttempt(_ context.Context, a recurring.PaymentAttempt) error {
	f.attempts = append(f.attempts, a)
	return nil
}

func (f *fakeScheduleRepo) CreateAuditLog(_ context.Context, log recurring.AuditLog) error {
	f.audits = append(f.audits, log)
	return nil
}

func (f *fakeScheduleRepo) actions() []recurring.AuditAction {
	out := make([]recurring.AuditAction, 0, len(f.audits))
	for _, a := range f.audits {
		out = append(out, a.Action)
	}
	return out
}

type fakeInvoiceService struct {
	invoice.InvoiceService
	invoices  map[string]invoice.Invoice
	generated []invoice.GenerateRequest
	sent      []string
}

func (f *fakeInvoiceService) Generate(_ context.Context, req invoice.GenerateRequest) (invoice.Invoice, error) {
	for _, inv := range f.invoices {
		if inv.InvoiceNumber == req.InvoiceNumber {
			return invoice.Invoice{}, invoice.ErrDuplicateNumber
		}
	}
	f.generated = append(f.generated, req)
	inv := invoice.Invoice{
		ID:            fmt.Sprintf("inv-%d", len(f.generated)),
		WorkspaceID:   req.WorkspaceID,
		ClientID:      req.ClientID,
		InvoiceNumber: req.InvoiceNumber,
		Status:        invoice.StatusDraft,
		SourceType:    req.Source,
		SourceID:      req.SourceID,
		IssueDate:     req.IssueDate,
		DueDate:       req.DueDate,
		Currency:      req.Currency,
		ExchangeRate:  decimal.NewFromInt(1),
		TaxMode:       invoice.TaxExclusive,
		DiscountType:  invoice.DiscountFlat,
		Items:         invoice.ToItems(req.Items),
	}
	inv.Recalculate()
	f.invoices[inv.ID] = inv
	return inv, nil
}

func (f *fakeInvoiceService) Send(_ context.Context, _, _, id string) (invoice.InvoiceResponse, error) {
	f.sent = append(f.sent, id)
	inv := f.invoices[id]
	if inv.Status == invoice.StatusDraft {
		inv.Status = invoice.StatusSent
		f.invoices[id] = inv
	}
	return inv.ToResponse(), nil
}

func (f *fakeInvoiceService) GetInvoice(_ context.Context, workspaceID, id string) (invoice.Invoice, error) {
	inv, ok := f.invoices[id]
	if !ok || inv.WorkspaceID != workspaceID {
		return invoice.Invoice{}, invoice.ErrInvoiceNotFound
	}
	return inv, nil
}

func (f *fakeInvoiceService) setStatus(id string, status invoice.Status) {
	inv := f.invoices[id]
	inv.Status = status
	f.invoices[id] = inv
}

type fakeClientRepo struct {
	client.ClientRepository
}

func (fakeClientRepo) GetByID(_ context.Context, workspaceID, id string) (client.Client, error) {
	if workspaceID != "ws-1" || id != clientID {
		return client.Client{}, pgx.ErrNoRows
	}
	return client.Client{ID: clientID, WorkspaceID: "ws-1", Name: "Globex", Email: "ap@globex.test", Currency: "EUR"}, nil
}

type fakeWorkspaceRepo struct {
	workspace.WorkspaceRepository
}

func (fakeWorkspaceRepo) GetByID(_ context.Context, id string) (workspace.Workspace, error) {
	if id != "ws-1" {
		return workspace.Workspace{}, pgx.ErrNoRows
	}
	return workspace.Workspace{ID: "ws-1", Name: "Acme", OwnerID: "owner-1"}, nil
}

type fakeUserRepo struct {
	user.UserRepository
}

func (fakeUserRepo) GetByID(_ context.Context, id string) (user.User, error) {
	return user.User{ID: id, Email: "owner@acme.test"}, nil
}

// ==================== harness ====================

type harness struct {
	svc      *RecurringServiceImpl
	repo     *fakeScheduleRepo
	invoices *fakeInvoiceService
	notifier *testutil.Notifier
	mailer   *testutil.Mailer
	clock    *testutil.Clock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		repo:     newFakeScheduleRepo(),
		invoices: &fakeInvoiceService{invoices: map[string]invoice.Invoice{}},
		notifier: &testutil.Notifier{},
		mailer:   &testutil.Mailer{},
		clock:    testutil.NewClock(time.Date(2025, 1, 31, 6, 0, 0, 0, time.UTC)),
	}
	svc := NewRecurringService(&testutil.Transactor{}, Repositories{
		Schedules:  h.repo,
		Clients:    fakeClientRepo{},
		Workspaces: fakeWorkspaceRepo{},
		Users:      fakeUserRepo{},
	}, h.invoices, h.notifier, h.mailer)
	h.svc = svc.(*RecurringServiceImpl)
	h.svc.now = h.clock.Now
	return h
}

// seed stores an active monthly schedule of 100 at 10% tax starting on start
func (h *harness) seed(start time.Time, edit func(*recurring.Schedule)) recurring.Schedule {
	owner := "owner-1"
	s := recurring.Schedule{
		WorkspaceID:            "ws-1",
		ClientID:               clientID,
		CreatedBy:              &owner,
		Description:            "Retainer",
		IntervalType:           recurring.IntervalMonthly,
		StartDate:              start,
		NextRunDate:            start,
		Status:                 recurring.StatusActive,
		Currency:               "USD",
		BaseAmount:             d("100"),
		TaxRate:                d("10"),
		PaymentTermsDays:       30,
		AutoSend:               true,
		RetryEnabled:           true,
		MaxRetryAttempts:       3,
		RetryIntervalHours:     24,
		RetryBackoffMultiplier: recurring.DefaultBackoffMultiplier,
		TotalAmountBilled:      decimal.Zero,
	}
	if edit != nil {
		edit(&s)
	}
	created, _ := h.repo.Create(context.Background(), s)
	return created
}

// ==================== tests ====================

func TestCreate(t *testing.T) {
	h := newHarness(t)

	resp, err := h.svc.Create(context.Background(), "ws-1", "user-1", recurring.CreateScheduleRequest{
		ClientID:     clientID,
		Description:  "Hosting",
		IntervalType: recurring.IntervalMonthly,
		StartDate:    "2025-02-01",
		BaseAmount:   d("49.99"),
	})
	require.NoError(t, err)
	assert.Equal(t, "EUR", resp.Currency)
	assert.Equal(t, "2025-02-01", resp.NextRunDate)
	assert.Equal(t, recurring.StatusActive, resp.Status)
	assert.Equal(t, "Globex", resp.ClientName)
	assert.Equal(t, []recurring.AuditAction{recurring.ActionCreated}, h.repo.actions())

	_, err = h.svc.Create(context.Background(), "ws-2", "user-1", recurring.CreateScheduleRequest{
		ClientID:     clientID,
		Description:  "Hosting",
		IntervalType: recurring.IntervalMonthly,
		StartDate:    "2025-02-01",
		BaseAmount:   d("49.99"),
	})
	assert.ErrorIs(t, err, recurring.ErrClientNotInWorkspace)
}

func TestProcessDue_GeneratesOncePerRunDate(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	sch := h.seed(date(2025, 1, 31), nil)

	result, err := h.svc.ProcessDue(ctx, date(2025, 1, 31))
	require.NoError(t, err)
	assert.Equal(t, recurring.ProcessResult{Total: 1, Success: 1}, result)

	require.Len(t, h.invoices.generated, 1)
	req := h.invoices.generated[0]
	assert.Equal(t, "REC-1-20250131", req.InvoiceNumber)
	assert.Equal(t, invoice.SourceRecurring, req.Source)
	assert.Equal(t, date(2025, 3, 2), req.DueDate)

	inv := h.invoices.invoices["inv-1"]
	assert.True(t, d("110").Equal(inv.TotalAmount))
	assert.Equal(t, []string{"inv-1"}, h.invoices.sent)

	updated := h.repo.schedules[sch.ID]
	assert.Equal(t, date(2025, 2, 28), updated.NextRunDate)
	assert.Equal(t, 1, updated.TotalInvoicesGenerated)
	assert.True(t, d("110").Equal(updated.TotalAmountBilled))

	require.Len(t, h.repo.executions, 1)
	exec := h.repo.executions[0]
	assert.Equal(t, recurring.ExecutionSuccess, exec.Status)
	assert.Equal(t, sch.ID+"-2025-01-31", exec.IdempotencyKey)
	assert.Equal(t, date(2025, 2, 27), exec.PeriodEnd)
	assert.Nil(t, exec.ProratedAmount)
	assert.Equal(t, []notification.Kind{notification.KindRecurringGenerated}, h.notifier.Kinds())

	// A second tick on the same day finds nothing due
	result, err = h.svc.ProcessDue(ctx, date(2025, 1, 31))
	require.NoError(t, err)
	assert.Equal(t, recurring.ProcessResult{}, result)

	// Forcing the run date back still skips the existing execution
	rewound := h.repo.schedules[sch.ID]
	rewound.NextRunDate = date(2025, 1, 31)
	h.repo.schedules[sch.ID] = rewound
	result, err = h.svc.ProcessDue(ctx, date(2025, 1, 31))
	require.NoError(t, err)
	assert.Equal(t, recurring.ProcessResult{Total: 1, Skipped: 1}, result)
	assert.Len(t, h.invoices.generated, 1)
}

func TestProcessOne_Prorated(t *testing.T) {
	h := newHarness(t)
	last := date(2025, 1, 1)
	sch := h.seed(date(2025, 1, 1), func(s *recurring.Schedule) {
		s.ProrationEnabled = true
		s.LastRunDate = &last
		s.NextRunDate = date(2025, 2, 16)
		s.LineItemsTemplate = []recurring.LineItemTemplate{{Description: "Seat", Quantity: d("1"), UnitPrice: d("100")}}
	})

	resp, err := h.svc.ProcessOne(context.Background(), sch.ID, date(2025, 2, 16))
	require.NoError(t, err)

	require.NotNil(t, resp.ProratedAmount)
	// 100 * 46 / 31
	assert.True(t, d("148.39").Equal(*resp.ProratedAmount), resp.ProratedAmount.String())
	items := h.invoices.generated[0].Items
	require.Len(t, items, 1)
	assert.True(t, d("148.39").Equal(items[0].UnitPrice))
	assert.Contains(t, items[0].Description, "prorated")
	assert.Equal(t, date(2025, 3, 16), h.repo.schedules[sch.ID].NextRunDate)
}

func TestProcessOne_Completion(t *testing.T) {
	ctx := context.Background()

	t.Run("max occurrences", func(t *testing.T) {
		h := newHarness(t)
		sch := h.seed(date(2025, 1, 31), func(s *recurring.Schedule) { s.MaxOccurrences = testutil.Ptr(1) })

		_, err := h.svc.ProcessOne(ctx, sch.ID, date(2025, 1, 31))
		require.NoError(t, err)
		assert.Equal(t, recurring.StatusCompleted, h.repo.schedules[sch.ID].Status)
		assert.Contains(t, h.repo.actions(), recurring.ActionCompleted)
	})

	t.Run("end date passed", func(t *testing.T) {
		h := newHarness(t)
		end := date(2025, 1, 15)
		sch := h.seed(date(2025, 1, 31), func(s *recurring.Schedule) { s.EndDate = &end })

		_, err := h.svc.ProcessOne(ctx, sch.ID, date(2025, 1, 31))
		assert.ErrorIs(t, err, recurring.ErrScheduleClosed)
		assert.Equal(t, recurring.StatusCompleted, h.repo.schedules[sch.ID].Status)
		assert.Empty(t, h.invoices.generated)
	})

	t.Run("not due", func(t *testing.T) {
		h := newHarness(t)
		sch := h.seed(date(2025, 2, 10), nil)
		_, err := h.svc.ProcessOne(ctx, sch.ID, date(2025, 1, 31))
		assert.ErrorIs(t, err, recurring.ErrNotDue)
	})
}

func TestRunNow(t *testing.T) {
	h := newHarness(t)
	sch := h.seed(date(2025, 3, 1), nil)

	resp, err := h.svc.RunNow(context.Background(), "ws-1", "user-1", sch.ID)
	require.NoError(t, err)
	assert.Equal(t, "2025-01-31", resp.PeriodStart)

	paused := h.seed(date(2025, 3, 1), func(s *recurring.Schedule) { s.Status = recurring.StatusPaused })
	_, err = h.svc.RunNow(context.Background(), "ws-1", "user-1", paused.ID)
	assert.ErrorIs(t, err, recurring.ErrScheduleNotRunnable)
}

func TestDunning_RetriesUntilExhausted(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	sch := h.seed(date(2025, 1, 31), nil)
	_, err := h.svc.ProcessOne(ctx, sch.ID, date(2025, 1, 31))
	require.NoError(t, err)
	h.invoices.setStatus("inv-1", invoice.StatusOverdue)

	require.NoError(t, h.svc.RecordPaymentFailure(ctx, "inv-1", recurring.ErrorCodeOverdue, "past due date"))
	s := h.repo.schedules[sch.ID]
	assert.Equal(t, 1, s.CurrentRetryCount)
	require.NotNil(t, s.NextRetryAt)
	assert.Equal(t, h.clock.Now().Add(48*time.Hour), *s.NextRetryAt)

	// Not yet due
	result, err := h.svc.ProcessRetries(ctx, h.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, recurring.RetryResult{}, result)

	h.clock.Advance(48 * time.Hour)
	result, err = h.svc.ProcessRetries(ctx, h.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, recurring.RetryResult{Processed: 1, Retried: 1}, result)
	assert.Equal(t, 2, h.repo.schedules[sch.ID].CurrentRetryCount)
	assert.Equal(t, []string{"inv-1", "inv-1"}, h.invoices.sent)

	h.clock.Advance(96 * time.Hour)
	result, err = h.svc.ProcessRetries(ctx, h.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Retried)
	assert.Equal(t, 3, h.repo.schedules[sch.ID].CurrentRetryCount)

	h.clock.Advance(192 * time.Hour)
	result, err = h.svc.ProcessRetries(ctx, h.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, recurring.RetryResult{Processed: 1, Exhausted: 1}, result)

	s = h.repo.schedules[sch.ID]
	assert.Equal(t, recurring.StatusFailed, s.Status)
	assert.True(t, s.FailureNotificationSent)
	assert.Nil(t, s.NextRetryAt)
	assert.Equal(t, 1, h.mailer.Count("recurring_failed"))
	assert.Contains(t, h.notifier.Kinds(), notification.KindRecurringFailed)

	require.Len(t, h.repo.attempts, 4)
	for i, a := range h.repo.attempts {
		assert.Equal(t, i+1, a.AttemptNumber)
		assert.Equal(t, recurring.AttemptFailed, a.Status)
	}
	assert.Equal(t, recurring.ErrorCodeOverdue, h.repo.attempts[0].ErrorCode)
	assert.Equal(t, recurring.ErrorCodeUnpaid, h.repo.attempts[3].ErrorCode)

	// Failed schedules are left alone
	require.NoError(t, h.svc.RecordPaymentFailure(ctx, "inv-1", recurring.ErrorCodeOverdue, "again"))
	assert.Len(t, h.repo.attempts, 4)
	assert.Equal(t, 1, h.mailer.Count("recurring_failed"))
}

func TestDunning_PaidInvoiceRecovers(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	sch := h.seed(date(2025, 1, 31), nil)
	_, err := h.svc.ProcessOne(ctx, sch.ID, date(2025, 1, 31))
	require.NoError(t, err)
	require.NoError(t, h.svc.RecordPaymentFailure(ctx, "inv-1", recurring.ErrorCodeOverdue, "past due date"))

	h.invoices.setStatus("inv-1", invoice.StatusPaid)
	h.clock.Advance(48 * time.Hour)
	result, err := h.svc.ProcessRetries(ctx, h.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, recurring.RetryResult{Processed: 1, Recovered: 1}, result)

	s := h.repo.schedules[sch.ID]
	assert.Equal(t, 0, s.CurrentRetryCount)
	assert.Nil(t, s.NextRetryAt)
	assert.Equal(t, recurring.AttemptSuccess, h.repo.attempts[len(h.repo.attempts)-1].Status)
}

func TestDunning_FollowsOverdueInvoiceAcrossCycles(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	sch := h.seed(date(2025, 1, 1), nil)

	_, err := h.svc.ProcessOne(ctx, sch.ID, date(2025, 1, 1))
	require.NoError(t, err)
	h.invoices.setStatus("inv-1", invoice.StatusOverdue)
	require.NoError(t, h.svc.RecordPaymentFailure(ctx, "inv-1", recurring.ErrorCodeOverdue, "past due date"))
	retryAt := *h.repo.schedules[sch.ID].NextRetryAt

	// The next cycle keeps the pending retry
	_, err = h.svc.ProcessOne(ctx, sch.ID, date(2025, 2, 1))
	require.NoError(t, err)
	s := h.repo.schedules[sch.ID]
	assert.Equal(t, 1, s.CurrentRetryCount)
	require.NotNil(t, s.NextRetryAt)
	assert.Equal(t, retryAt, *s.NextRetryAt)
	assert.Equal(t, []string{"inv-1", "inv-2"}, h.invoices.sent)

	h.clock.Advance(48 * time.Hour)
	result, err := h.svc.ProcessRetries(ctx, h.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, recurring.RetryResult{Processed: 1, Retried: 1}, result)
	last := h.repo.attempts[len(h.repo.attempts)-1]
	require.NotNil(t, last.InvoiceID)
	assert.Equal(t, "inv-1", *last.InvoiceID)
	assert.Equal(t, recurring.ErrorCodeUnpaid, last.ErrorCode)
	assert.Equal(t, []string{"inv-1", "inv-2", "inv-1"}, h.invoices.sent)

	// Paying the newer invoice does not settle the overdue one
	require.NoError(t, h.svc.RecordPaymentSuccess(ctx, "inv-2", "stripe", "pi_2"))
	assert.Equal(t, 2, h.repo.schedules[sch.ID].CurrentRetryCount)
	assert.NotNil(t, h.repo.schedules[sch.ID].NextRetryAt)

	h.invoices.setStatus("inv-1", invoice.StatusPaid)
	h.clock.Advance(96 * time.Hour)
	result, err = h.svc.ProcessRetries(ctx, h.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, recurring.RetryResult{Processed: 1, Recovered: 1}, result)

	s = h.repo.schedules[sch.ID]
	assert.Equal(t, recurring.StatusActive, s.Status)
	assert.Equal(t, 0, s.CurrentRetryCount)
	assert.Nil(t, s.NextRetryAt)
	assert.Nil(t, s.DunningExecutionID)
}

func TestRecordPaymentSuccess(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	sch := h.seed(date(2025, 1, 31), nil)
	_, err := h.svc.ProcessOne(ctx, sch.ID, date(2025, 1, 31))
	require.NoError(t, err)
	require.NoError(t, h.svc.RecordPaymentFailure(ctx, "inv-1", recurring.ErrorCodeOverdue, "past due date"))

	require.NoError(t, h.svc.RecordPaymentSuccess(ctx, "inv-1", "stripe", "pi_123"))
	s := h.repo.schedules[sch.ID]
	assert.Equal(t, 0, s.CurrentRetryCount)
	assert.Nil(t, s.NextRetryAt)

	last := h.repo.attempts[len(h.repo.attempts)-1]
	assert.Equal(t, recurring.AttemptSuccess, last.Status)
	assert.Equal(t, "stripe", last.Provider)
	assert.Equal(t, "pi_123", last.ProviderTransactionID)
	assert.Contains(t, h.repo.actions(), recurring.ActionPaymentSuccess)

	assert.ErrorIs(t, h.svc.RecordPaymentSuccess(ctx, "inv-404", "stripe", ""), recurring.ErrExecutionNotFound)
}

func TestLifecycle(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	sch := h.seed(date(2025, 1, 10), nil)

	resp, err := h.svc.Pause(ctx, "ws-1", "user-1", sch.ID, recurring.PauseRequest{Reason: "client on holiday"})
	require.NoError(t, err)
	assert.Equal(t, recurring.StatusPaused, resp.Status)
	assert.Equal(t, "client on holiday", resp.PauseReason)

	_, err = h.svc.Pause(ctx, "ws-1", "user-1", sch.ID, recurring.PauseRequest{})
	assert.ErrorIs(t, err, recurring.ErrScheduleNotActive)

	resp, err = h.svc.Resume(ctx, "ws-1", "user-1", sch.ID)
	require.NoError(t, err)
	assert.Equal(t, recurring.StatusActive, resp.Status)
	assert.Equal(t, "2025-01-31", resp.NextRunDate)

	resp, err = h.svc.Cancel(ctx, "ws-1", "user-1", sch.ID, recurring.CancelRequest{Reason: "contract ended"})
	require.NoError(t, err)
	assert.Equal(t, recurring.StatusCancelled, resp.Status)

	_, err = h.svc.Cancel(ctx, "ws-1", "user-1", sch.ID, recurring.CancelRequest{})
	assert.ErrorIs(t, err, recurring.ErrScheduleClosed)

	desc := "New"
	_, err = h.svc.Update(ctx, "ws-1", "user-1", sch.ID, recurring.UpdateScheduleRequest{Description: &desc})
	assert.ErrorIs(t, err, recurring.ErrScheduleNotEditable)

	_, err = h.svc.Pause(ctx, "ws-2", "user-1", sch.ID, recurring.PauseRequest{})
	assert.ErrorIs(t, err, recurring.ErrScheduleNotFound)

	assert.Equal(t, []recurring.AuditAction{
		recurring.ActionPaused, recurring.ActionResumed, recurring.ActionCancelled,
	}, h.repo.actions())
}

func TestGetRetryPlan(t *testing.T) {
	h := newHarness(t)
	sch := h.seed(date(2025, 1, 31), nil)

	plan, err := h.svc.GetRetryPlan(context.Background(), "ws-1", sch.ID)
	require.NoError(t, err)
	assert.True(t, plan.Enabled)
	assert.Equal(t, 3, plan.Remaining)
	assert.Equal(t, []recurring.RetryStep{
		{Attempt: 1, DelayHours: 24},
		{Attempt: 2, DelayHours: 48},
		{Attempt: 3, DelayHours: 96},
	}, plan.RetrySchedule)
	assert.Len(t, plan.PlannedRetries, 3)
}
