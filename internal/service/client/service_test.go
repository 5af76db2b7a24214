package client

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/client"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/invoice"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/payment"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/workspace"
)

type fakeClientRepo struct {
	client.ClientRepository
	clients map[string]client.Client
	deleted []string
}

func (f *fakeClientRepo) Create(_ context.Context, c client.Client) (client.Client, error) {
	c.ID = "client-1"
	f.clients[c.ID] = c
	return c, nil
}

func (f *fakeClientRepo) GetByID(_ context.Context, workspaceID, id string) (client.Client, error) {
	c, ok := f.clients[id]
	if !ok || c.WorkspaceID != workspaceID {
		return client.Client{}, pgx.ErrNoRows
	}
	return c, nil
}

func (f *fakeClientRepo) Update(_ context.Context, c client.Client) error {
	f.clients[c.ID] = c
	return nil
}

func (f *fakeClientRepo) Delete(_ context.Context, _, id string) error {
	f.deleted = append(f.deleted, id)
	delete(f.clients, id)
	return nil
}

type fakeWorkspaceRepo struct {
	workspace.WorkspaceRepository
}

func (fakeWorkspaceRepo) GetByID(_ context.Context, id string) (workspace.Workspace, error) {
	return workspace.Workspace{ID: id, DefaultCurrency: "NGN"}, nil
}

type fakeInvoiceRepo struct {
	invoice.InvoiceRepository
	invoices []invoice.Invoice
}

func (f *fakeInvoiceRepo) ListByClient(_ context.Context, _, clientID string) ([]invoice.Invoice, error) {
	var out []invoice.Invoice
	for _, inv := range f.invoices {
		if inv.ClientID == clientID {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (f *fakeInvoiceRepo) CountActiveByClient(_ context.Context, clientID string) (int, error) {
	n := 0
	for _, inv := range f.invoices {
		if inv.ClientID == clientID && inv.Status != invoice.StatusVoid {
			n++
		}
	}
	return n, nil
}

type fakePaymentRepo struct {
	payment.PaymentRepository
	payments map[string][]payment.Payment
}

func (f *fakePaymentRepo) ListByInvoice(_ context.Context, invoiceID string) ([]payment.Payment, error) {
	return f.payments[invoiceID], nil
}

func date(s string) time.Time {
	t, _ := time.Parse(time.DateOnly, s)
	return t
}

func TestCreateUsesWorkspaceCurrency(t *testing.T) {
	repo := &fakeClientRepo{clients: map[string]client.Client{}}
	svc := NewClientService(repo, fakeWorkspaceRepo{}, &fakeInvoiceRepo{}, &fakePaymentRepo{})

	resp, err := svc.Create(context.Background(), "ws-1", client.CreateClientRequest{
		Name:  " Acme Ltd ",
		Email: "Billing@Acme.test",
		Tags:  []string{"VIP", " vip ", "retail"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Acme Ltd", resp.Name)
	assert.Equal(t, "billing@acme.test", resp.Email)
	assert.Equal(t, "NGN", resp.Currency)
	assert.Equal(t, []string{"vip", "retail"}, resp.Tags)
}

func TestDeleteRejectsClientWithInvoices(t *testing.T) {
	repo := &fakeClientRepo{clients: map[string]client.Client{
		"c1": {ID: "c1", WorkspaceID: "ws-1"},
		"c2": {ID: "c2", WorkspaceID: "ws-1"},
	}}
	invoices := &fakeInvoiceRepo{invoices: []invoice.Invoice{
		{ID: "i1", ClientID: "c1", Status: invoice.StatusSent},
		{ID: "i2", ClientID: "c2", Status: invoice.StatusVoid},
	}}
	svc := NewClientService(repo, fakeWorkspaceRepo{}, invoices, &fakePaymentRepo{})
	ctx := context.Background()

	assert.ErrorIs(t, svc.Delete(ctx, "ws-1", "c1"), client.ErrClientHasInvoices)
	assert.NoError(t, svc.Delete(ctx, "ws-1", "c2"))
	assert.Equal(t, []string{"c2"}, repo.deleted)
	assert.ErrorIs(t, svc.Delete(ctx, "ws-2", "c1"), client.ErrClientNotFound)
}

func TestStatement(t *testing.T) {
	repo := &fakeClientRepo{clients: map[string]client.Client{
		"c1": {ID: "c1", WorkspaceID: "ws-1", Currency: "USD"},
	}}
	paidAt := date("2025-02-10")
	invoices := &fakeInvoiceRepo{invoices: []invoice.Invoice{
		{ID: "i1", ClientID: "c1", InvoiceNumber: "INV-2025-0001", Status: invoice.StatusPartPaid, IssueDate: date("2025-02-01"), TotalAmount: decimal.NewFromInt(500)},
		{ID: "i2", ClientID: "c1", InvoiceNumber: "INV-2025-0002", Status: invoice.StatusSent, IssueDate: date("2025-03-01"), TotalAmount: decimal.NewFromInt(200)},
		{ID: "i3", ClientID: "c1", InvoiceNumber: "INV-2025-0003", Status: invoice.StatusDraft, IssueDate: date("2025-03-02"), TotalAmount: decimal.NewFromInt(999)},
	}}
	payments := &fakePaymentRepo{payments: map[string][]payment.Payment{
		"i1": {
			{Reference: "pay-1", Amount: decimal.NewFromInt(150), Status: payment.StatusSuccess, PaidAt: &paidAt},
			{Reference: "pay-2", Amount: decimal.NewFromInt(350), Status: payment.StatusPending, CreatedAt: paidAt},
		},
	}}
	svc := NewClientService(repo, fakeWorkspaceRepo{}, invoices, payments)

	st, err := svc.Statement(context.Background(), "ws-1", "c1")
	require.NoError(t, err)

	require.Len(t, st.Lines, 3)
	assert.Equal(t, "INV-2025-0001", st.Lines[0].Reference)
	assert.Equal(t, "pay-1", st.Lines[1].Reference)
	assert.True(t, st.Lines[1].Balance.Equal(decimal.NewFromInt(350)))
	assert.Equal(t, "INV-2025-0002", st.Lines[2].Reference)

	assert.True(t, st.TotalInvoiced.Equal(decimal.NewFromInt(700)))
	assert.True(t, st.TotalPaid.Equal(decimal.NewFromInt(150)))
	assert.True(t, st.BalanceDue.Equal(decimal.NewFromInt(550)))
}
