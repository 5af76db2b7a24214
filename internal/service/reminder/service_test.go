package reminder

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/invoice"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/reminder"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/workspace"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/email"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/testutil"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type logKey struct {
	rule, invoice, day string
}

type fakeReminderRepo struct {
	reminder.ReminderRepository
	rules map[string]reminder.Rule
	logs  map[logKey]reminder.Log
	seq   int
}

func newFakeReminderRepo() *fakeReminderRepo {
	return &fakeReminderRepo{rules: map[string]reminder.Rule{}, logs: map[logKey]reminder.Log{}}
}

func (f *fakeReminderRepo) Create(_ context.Context, r reminder.Rule) (reminder.Rule, error) {
	f.seq++
	r.ID = fmt.Sprintf("rule-%d", f.seq)
	f.rules[r.ID] = r
	return r, nil
}

func (f *fakeReminderRepo) CreateMany(ctx context.Context, rules []reminder.Rule) error {
	for _, r := range rules {
		if _, err := f.Create(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeReminderRepo) GetByID(_ context.Context, workspaceID, id string) (reminder.Rule, error) {
	r, ok := f.rules[id]
	if !ok || r.WorkspaceID != workspaceID {
		return reminder.Rule{}, pgx.ErrNoRows
	}
	return r, nil
}

func (f *fakeReminderRepo) List(_ context.Context, workspaceID string) ([]reminder.Rule, error) {
	var out []reminder.Rule
	for i := 1; i <= f.seq; i++ {
		if r, ok := f.rules[fmt.Sprintf("rule-%d", i)]; ok && r.WorkspaceID == workspaceID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeReminderRepo) ListActive(_ context.Context) ([]reminder.Rule, error) {
	var out []reminder.Rule
	for i := 1; i <= f.seq; i++ {
		if r, ok := f.rules[fmt.Sprintf("rule-%d", i)]; ok && r.IsActive {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeReminderRepo) Update(_ context.Context, r reminder.Rule) error {
	if _, ok := f.rules[r.ID]; !ok {
		return pgx.ErrNoRows
	}
	f.rules[r.ID] = r
	return nil
}

func (f *fakeReminderRepo) Delete(_ context.Context, workspaceID, id string) error {
	r, ok := f.rules[id]
	if !ok || r.WorkspaceID != workspaceID {
		return pgx.ErrNoRows
	}
	delete(f.rules, id)
	return nil
}

func (f *fakeReminderRepo) CreateLog(_ context.Context, l reminder.Log) error {
	key := logKey{l.RuleID, l.InvoiceID, l.SentOn.Format(time.DateOnly)}
	if _, ok := f.logs[key]; ok {
		return reminder.ErrAlreadyLogged
	}
	f.logs[key] = l
	return nil
}

func (f *fakeReminderRepo) LogExists(_ context.Context, ruleID, invoiceID string, day time.Time) (bool, error) {
	_, ok := f.logs[logKey{ruleID, invoiceID, day.Format(time.DateOnly)}]
	return ok, nil
}

type fakeInvoiceRepo struct {
	invoice.InvoiceRepository
	invoices   []invoice.Invoice
	activities []invoice.Activity
}

func (f *fakeInvoiceRepo) ListOpenDueOn(_ context.Context, workspaceID string, day time.Time) ([]invoice.Invoice, error) {
	var out []invoice.Invoice
	for _, inv := range f.invoices {
		if inv.WorkspaceID == workspaceID && inv.DueDate.Equal(day) && inv.AmountDue.IsPositive() {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (f *fakeInvoiceRepo) CreateActivity(_ context.Context, a invoice.Activity) error {
	f.activities = append(f.activities, a)
	return nil
}

type fakeWorkspaceRepo struct {
	workspace.WorkspaceRepository
}

func (fakeWorkspaceRepo) GetByID(_ context.Context, id string) (workspace.Workspace, error) {
	if id != "ws-1" {
		return workspace.Workspace{}, pgx.ErrNoRows
	}
	return workspace.Workspace{ID: id, Name: "Studio", BusinessEmail: "billing@studio.test"}, nil
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func rule(trigger reminder.Trigger, days int) reminder.RuleRequest {
	return reminder.RuleRequest{
		Name:         string(trigger),
		Trigger:      trigger,
		DaysDelta:    days,
		EmailSubject: "Invoice {invoice_number}",
		EmailBody:    "Hi {client_name}, pay at {payment_link}",
	}
}

func setup(t *testing.T) (*ReminderServiceImpl, *fakeReminderRepo, *fakeInvoiceRepo, *testutil.Mailer) {
	t.Helper()
	reminders := newFakeReminderRepo()
	invoices := &fakeInvoiceRepo{invoices: []invoice.Invoice{
		{ID: "inv-1", WorkspaceID: "ws-1", InvoiceNumber: "INV-2025-0001", ClientName: "Acme", ClientEmail: "ap@acme.test",
			DueDate: date(2025, 6, 13), AmountDue: decimal.NewFromInt(120), Currency: "USD", PublicToken: "tok-1"},
		{ID: "inv-2", WorkspaceID: "ws-1", InvoiceNumber: "INV-2025-0002", ClientName: "Nobody",
			DueDate: date(2025, 6, 3), AmountDue: decimal.NewFromInt(80), Currency: "USD"},
		{ID: "inv-3", WorkspaceID: "ws-1", InvoiceNumber: "INV-2025-0003", ClientName: "Paid", ClientEmail: "paid@x.test",
			DueDate: date(2025, 6, 10), AmountDue: decimal.Zero, Currency: "USD"},
	}}
	mailer := &testutil.Mailer{}
	svc := NewReminderService(reminders, invoices, fakeWorkspaceRepo{}, mailer, "https://app.test/").(*ReminderServiceImpl)
	return svc, reminders, invoices, mailer
}

func TestRuleCRUD(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := setup(t)

	created, err := svc.Create(ctx, "ws-1", rule(reminder.TriggerBeforeDue, 3))
	require.NoError(t, err)
	assert.True(t, created.IsActive)

	_, err = svc.Create(ctx, "ws-1", rule(reminder.TriggerOnDue, 2))
	assert.Error(t, err)

	req := rule(reminder.TriggerAfterDue, 5)
	req.IsActive = testutil.Ptr(false)
	updated, err := svc.Update(ctx, "ws-1", created.ID, req)
	require.NoError(t, err)
	assert.Equal(t, reminder.TriggerAfterDue, updated.Trigger)
	assert.False(t, updated.IsActive)

	_, err = svc.Update(ctx, "ws-2", created.ID, req)
	assert.ErrorIs(t, err, reminder.ErrRuleNotFound)

	require.NoError(t, svc.SeedDefaultRules(ctx, "ws-1"))
	list, err := svc.List(ctx, "ws-1")
	require.NoError(t, err)
	assert.Len(t, list, 4)

	require.NoError(t, svc.Delete(ctx, "ws-1", created.ID))
	assert.ErrorIs(t, svc.Delete(ctx, "ws-1", created.ID), reminder.ErrRuleNotFound)
}

func TestProcessReminders(t *testing.T) {
	ctx := context.Background()
	svc, reminders, invoices, mailer := setup(t)
	today := time.Date(2025, 6, 10, 7, 30, 0, 0, time.UTC)

	_, err := svc.Create(ctx, "ws-1", rule(reminder.TriggerBeforeDue, 3))
	require.NoError(t, err)
	_, err = svc.Create(ctx, "ws-1", rule(reminder.TriggerAfterDue, 7))
	require.NoError(t, err)
	_, err = svc.Create(ctx, "ws-1", rule(reminder.TriggerOnDue, 0))
	require.NoError(t, err)

	result, err := svc.ProcessReminders(ctx, today)
	require.NoError(t, err)
	assert.Equal(t, reminder.ProcessResult{Processed: 2, Sent: 1, Failed: 1}, result)

	sent, ok := mailer.Last("reminder")
	require.True(t, ok)
	assert.Equal(t, "ap@acme.test", sent.To)
	data := sent.Data.(email.ReminderEmail)
	assert.Equal(t, "Invoice INV-2025-0001", data.Subject)
	assert.Equal(t, "Hi Acme, pay at https://app.test/public/invoices/tok-1", data.Body)
	assert.Equal(t, "billing@studio.test", data.ReplyTo)

	require.Len(t, invoices.activities, 1)
	assert.Equal(t, invoice.ActivityReminderSent, invoices.activities[0].Action)
	assert.Len(t, reminders.logs, 2)

	t.Run("once per day", func(t *testing.T) {
		again, err := svc.ProcessReminders(ctx, today.Add(3*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, reminder.ProcessResult{}, again)
		assert.Equal(t, 1, mailer.Count("reminder"))
	})

	t.Run("delivery failure", func(t *testing.T) {
		mailer.Err = errors.New("smtp down")
		defer func() { mailer.Err = nil }()

		next, err := svc.ProcessReminders(ctx, date(2025, 6, 20))
		require.NoError(t, err)
		assert.Equal(t, reminder.ProcessResult{Processed: 1, Failed: 1}, next)
		assert.Equal(t, reminder.LogFailed, reminders.logs[logKey{"rule-2", "inv-1", "2025-06-20"}].Status)
	})
}
