package postgresql_test

import (
	"context"
	"testing"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/invoice"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/payment"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/reminder"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/repository/postgresql"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository_GetByIdentifier(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := postgresql.NewUserRepository(f.db)

	byEmail, err := repo.GetByIdentifier(ctx, "OWNER@example.com")
	require.NoError(t, err)
	assert.Equal(t, f.user.ID, byEmail.ID)

	byUsername, err := repo.GetByIdentifier(ctx, "owner")
	require.NoError(t, err)
	assert.Equal(t, f.user.ID, byUsername.ID)

	_, err = repo.GetByIdentifier(ctx, "nobody")
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestWorkspaceRepository_NextSequence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := postgresql.NewWorkspaceRepository(f.db)

	for want := 1; want <= 3; want++ {
		got, err := repo.NextSequence(ctx, f.workspace.ID, "invoice", 2025)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	other, err := repo.NextSequence(ctx, f.workspace.ID, "invoice", 2026)
	require.NoError(t, err)
	assert.Equal(t, 1, other, "sequences restart every year")
}

func TestInvoiceRepository_CreateAndList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := postgresql.NewInvoiceRepository(f.db)

	created := f.invoice(t, "INV-2025-0001", invoice.StatusSent, date(2025, 3, 1), "150.00")
	f.invoice(t, "INV-2025-0002", invoice.StatusDraft, date(2025, 4, 1), "80.00")

	got, err := repo.GetByID(ctx, f.workspace.ID, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Globex", got.ClientName)
	require.Len(t, got.Items, 1)
	assert.True(t, got.Items[0].Total.Equal(decimal.RequireFromString("150")))

	sent := invoice.StatusSent
	list, total, err := repo.List(ctx, invoice.InvoiceFilter{WorkspaceID: f.workspace.ID, Status: &sent})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, "INV-2025-0001", list[0].InvoiceNumber)

	overdue, err := repo.ListOverdueCandidates(ctx, date(2025, 3, 2))
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, created.ID, overdue[0].ID)

	_, err = repo.GetByID(ctx, "00000000-0000-0000-0000-000000000000", created.ID)
	assert.ErrorIs(t, err, pgx.ErrNoRows, "invoices are scoped to their workspace")
}

func TestPaymentRepository_WebhookEventIsRecordedOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := postgresql.NewPaymentRepository(f.db)

	event := payment.WebhookEvent{Provider: "paystack", EventID: "evt_1", EventType: "charge.success", PayloadHash: "abc"}

	first, err := repo.CreateWebhookEvent(ctx, event)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := repo.CreateWebhookEvent(ctx, event)
	require.NoError(t, err)
	assert.False(t, second)

	exists, err := repo.WebhookEventExists(ctx, "paystack", "evt_1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestPaymentRepository_CreateAndLock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := postgresql.NewPaymentRepository(f.db)
	inv := f.invoice(t, "INV-2025-0003", invoice.StatusSent, date(2025, 5, 1), "99.00")

	created, err := repo.Create(ctx, payment.Payment{
		WorkspaceID: f.workspace.ID,
		InvoiceID:   inv.ID,
		Amount:      decimal.RequireFromString("99"),
		Currency:    "USD",
		Status:      payment.StatusPending,
		Method:      payment.MethodPaystack,
		Reference:   "ref-1",
		Metadata:    map[string]any{"source": "test"},
	})
	require.NoError(t, err)
	assert.Equal(t, "INV-2025-0003", created.InvoiceNumber)

	err = postgresql.NewTransactor(f.db).WithTransaction(ctx, func(ctx context.Context) error {
		locked, err := repo.GetByReferenceForUpdate(ctx, "ref-1")
		if err != nil {
			return err
		}
		locked.Status = payment.StatusSuccess
		return repo.Update(ctx, locked)
	})
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, f.workspace.ID, created.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusSuccess, got.Status)
	assert.Equal(t, "test", got.Metadata["source"])
}

func TestReminderRepository_CreateLogRejectsDuplicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := postgresql.NewReminderRepository(f.db)
	inv := f.invoice(t, "INV-2025-0004", invoice.StatusSent, date(2025, 6, 1), "10.00")

	rule, err := repo.Create(ctx, reminder.Rule{
		WorkspaceID:  f.workspace.ID,
		Name:         "Due today",
		Trigger:      reminder.TriggerOnDue,
		IsActive:     true,
		EmailSubject: "Invoice {invoice_number}",
		EmailBody:    "Hi {client_name}",
	})
	require.NoError(t, err)

	log := reminder.Log{RuleID: rule.ID, InvoiceID: inv.ID, SentOn: date(2025, 6, 1), Status: reminder.LogSent}
	require.NoError(t, repo.CreateLog(ctx, log))
	assert.ErrorIs(t, repo.CreateLog(ctx, log), reminder.ErrAlreadyLogged)

	exists, err := repo.LogExists(ctx, rule.ID, inv.ID, date(2025, 6, 1))
	require.NoError(t, err)
	assert.True(t, exists)
}
