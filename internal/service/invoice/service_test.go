package invoice

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
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/webhook"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/workspace"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/email"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/service/file"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/testutil"
)

type fakeInvoiceRepo struct {
	invoice.InvoiceRepository
	clients    map[string]client.Client
	invoices   map[string]invoice.Invoice
	activities []invoice.Activity
	seq        int
}

func (f *fakeInvoiceRepo) Create(_ context.Context, inv invoice.Invoice) (invoice.Invoice, error) {
	for _, existing := range f.invoices {
		if existing.WorkspaceID == inv.WorkspaceID && existing.InvoiceNumber == inv.InvoiceNumber {
			return invoice.Invoice{}, fmt.Errorf("duplicate %s", inv.InvoiceNumber)
		}
	}
	f.seq++
	inv.ID = fmt.Sprintf("inv-%d", f.seq)
	if c, ok := f.clients[inv.ClientID]; ok {
		inv.ClientName, inv.ClientEmail = c.Name, c.Email
	}
	f.invoices[inv.ID] = inv
	return f.copyOf(inv), nil
}

func (f *fakeInvoiceRepo) copyOf(inv invoice.Invoice) invoice.Invoice {
	inv.Items = append([]invoice.Item(nil), inv.Items...)
	return inv
}

func (f *fakeInvoiceRepo) GetByID(_ context.Context, workspaceID, id string) (invoice.Invoice, error) {
	inv, ok := f.invoices[id]
	if !ok || inv.WorkspaceID != workspaceID {
		return invoice.Invoice{}, pgx.ErrNoRows
	}
	return f.copyOf(inv), nil
}

func (f *fakeInvoiceRepo) GetByIDForUpdate(_ context.Context, id string) (invoice.Invoice, error) {
	inv, ok := f.invoices[id]
	if !ok {
		return invoice.Invoice{}, pgx.ErrNoRows
	}
	return f.copyOf(inv), nil
}

func (f *fakeInvoiceRepo) GetByPublicToken(_ context.Context, token string) (invoice.Invoice, error) {
	for _, inv := range f.invoices {
		if inv.PublicToken == token {
			return f.copyOf(inv), nil
		}
	}
	return invoice.Invoice{}, pgx.ErrNoRows
}

func (f *fakeInvoiceRepo) Update(_ context.Context, inv invoice.Invoice) error {
	existing, ok := f.invoices[inv.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	inv.Items = existing.Items
	f.invoices[inv.ID] = inv
	return nil
}

func (f *fakeInvoiceRepo) ReplaceItems(_ context.Context, invoiceID string, items []invoice.Item) error {
	inv := f.invoices[invoiceID]
	inv.Items = append([]invoice.Item(nil), items...)
	f.invoices[invoiceID] = inv
	return nil
}

func (f *fakeInvoiceRepo) Delete(_ context.Context, _, id string) error {
	delete(f.invoices, id)
	return nil
}

func (f *fakeInvoiceRepo) ListOverdueCandidates(_ context.Context, day time.Time) ([]invoice.Invoice, error) {
	var out []invoice.Invoice
	for _, inv := range f.invoices {
		if inv.IsOverdueOn(day) {
			out = append(out, f.copyOf(inv))
		}
	}
	return out, nil
}

func (f *fakeInvoiceRepo) CreateActivity(_ context.Context, a invoice.Activity) error {
	f.activities = append(f.activities, a)
	return nil
}

func (f *fakeInvoiceRepo) ListActivities(_ context.Context, invoiceID string) ([]invoice.Activity, error) {
	var out []invoice.Activity
	for _, a := range f.activities {
		if a.InvoiceID == invoiceID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeInvoiceRepo) actions(invoiceID string) []string {
	var out []string
	for _, a := range f.activities {
		if a.InvoiceID == invoiceID {
			out = append(out, a.Action)
		}
	}
	return out
}

type fakeClientRepo struct {
	client.ClientRepository
	clients map[string]client.Client
}

func (f *fakeClientRepo) GetByID(_ context.Context, workspaceID, id string) (client.Client, error) {
	c, ok := f.clients[id]
	if !ok || c.WorkspaceID != workspaceID {
		return client.Client{}, pgx.ErrNoRows
	}
	return c, nil
}

type fakeWorkspaceRepo struct {
	workspace.WorkspaceRepository
	ws   workspace.Workspace
	seqs map[string]int
}

func (f *fakeWorkspaceRepo) GetByID(_ context.Context, id string) (workspace.Workspace, error) {
	if id != f.ws.ID {
		return workspace.Workspace{}, pgx.ErrNoRows
	}
	return f.ws, nil
}

func (f *fakeWorkspaceRepo) NextSequence(_ context.Context, workspaceID, kind string, year int) (int, error) {
	key := fmt.Sprintf("%s/%s/%d", workspaceID, kind, year)
	f.seqs[key]++
	return f.seqs[key], nil
}

type fakeFileService struct {
	file.FileService
	stored map[string][]byte
}

func (f *fakeFileService) StorePDF(_ context.Context, key string, data []byte) error {
	f.stored[key] = data
	return nil
}

func (f *fakeFileService) GetFileURL(_ context.Context, path string, _ time.Duration) (string, error) {
	return "/uploads/" + path, nil
}

type harness struct {
	svc      *InvoiceServiceImpl
	repo     *fakeInvoiceRepo
	hooks    *testutil.Dispatcher
	notifier *testutil.Notifier
	reports  *testutil.Invalidator
	mailer   *testutil.Mailer
	renderer *testutil.Renderer
	files    *fakeFileService
	now      time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clients := map[string]client.Client{
		clientID:  {ID: clientID, WorkspaceID: "ws-1", Name: "Globex", Email: "ap@globex.test", Currency: "USD"},
		"other-1": {ID: "other-1", WorkspaceID: "ws-2", Name: "Other"},
	}
	h := &harness{
		repo:     &fakeInvoiceRepo{clients: clients, invoices: map[string]invoice.Invoice{}},
		hooks:    &testutil.Dispatcher{},
		notifier: &testutil.Notifier{},
		reports:  &testutil.Invalidator{},
		mailer:   &testutil.Mailer{},
		renderer: &testutil.Renderer{},
		files:    &fakeFileService{stored: map[string][]byte{}},
		now:      time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
	}
	wsRepo := &fakeWorkspaceRepo{
		ws: workspace.Workspace{
			ID:              "ws-1",
			Name:            "Acme",
			OwnerID:         "owner-1",
			CompanyName:     "Acme Studio",
			BusinessEmail:   "billing@acme.test",
			PrimaryColor:    "#112233",
			InvoicePrefix:   "INV",
			DefaultCurrency: "USD",
			PaymentProvider: "paystack",
		},
		seqs: map[string]int{},
	}
	svc := NewInvoiceService(
		&testutil.Transactor{},
		Repositories{Invoices: h.repo, Clients: &fakeClientRepo{clients: clients}, Workspaces: wsRepo},
		h.hooks, h.notifier, h.reports, h.mailer, h.renderer, h.files,
		"https://app.invoiceflow.test/",
	)
	h.svc = svc.(*InvoiceServiceImpl)
	h.svc.now = func() time.Time { return h.now }
	return h
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

const clientID = "8b0c2a34-8f0e-4d5c-9a4e-2f5b7c1d9e01"

func createRequest() invoice.CreateInvoiceRequest {
	return invoice.CreateInvoiceRequest{
		ClientID:  clientID,
		IssueDate: "2025-03-01",
		DueDate:   "2025-03-31",
		Items: []invoice.ItemInput{
			{Description: "Design", Quantity: d("2"), UnitPrice: d("100"), TaxRate: d("10")},
			{Description: "Hosting", Quantity: d("1"), UnitPrice: d("50")},
		},
	}
}

func (h *harness) create(t *testing.T) invoice.InvoiceResponse {
	t.Helper()
	resp, err := h.svc.Create(context.Background(), "ws-1", "user-1", createRequest())
	require.NoError(t, err)
	return resp
}

func (h *harness) setStatus(id string, status invoice.Status) {
	inv := h.repo.invoices[id]
	inv.Status = status
	h.repo.invoices[id] = inv
}

func TestCreate(t *testing.T) {
	h := newHarness(t)

	first := h.create(t)
	second := h.create(t)

	assert.Equal(t, "INV-2025-0001", first.InvoiceNumber)
	assert.Equal(t, "INV-2025-0002", second.InvoiceNumber)
	assert.Equal(t, invoice.StatusDraft, first.Status)
	assert.Equal(t, invoice.SourceManual, first.SourceType)
	assert.Equal(t, "USD", first.Currency)
	assert.True(t, first.Subtotal.Equal(d("250")))
	assert.True(t, first.TaxTotal.Equal(d("20")))
	assert.True(t, first.TotalAmount.Equal(d("270")))
	assert.True(t, first.AmountDue.Equal(d("270")))
	assert.NotEmpty(t, first.PublicToken)
	assert.NotEqual(t, first.PublicToken, second.PublicToken)

	assert.Equal(t, []string{invoice.ActivityCreated}, h.repo.actions(first.ID))
	assert.Equal(t, []webhook.Event{webhook.EventInvoiceCreated, webhook.EventInvoiceCreated}, h.hooks.Names())
	assert.Contains(t, h.reports.Workspaces, "ws-1")
}

func TestCreate_UnknownClient(t *testing.T) {
	h := newHarness(t)

	req := createRequest()
	req.ClientID = "00000000-0000-4000-8000-000000000000"
	_, err := h.svc.Create(context.Background(), "ws-1", "user-1", req)
	assert.ErrorIs(t, err, invoice.ErrClientNotFound)
}

func TestUpdate_DraftOnly(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	created := h.create(t)

	updated, err := h.svc.Update(ctx, "ws-1", "user-1", created.ID, invoice.UpdateInvoiceRequest{
		DueDate:             "2025-04-15",
		DiscountType:        invoice.DiscountPercentage,
		GlobalDiscountValue: d("10"),
		Items:               []invoice.ItemInput{{Description: "Audit", Quantity: d("1"), UnitPrice: d("400")}},
	})
	require.NoError(t, err)
	assert.Equal(t, "2025-04-15", updated.DueDate)
	assert.True(t, updated.TotalAmount.Equal(d("360")))
	require.Len(t, h.repo.invoices[created.ID].Items, 1)

	h.setStatus(created.ID, invoice.StatusSent)
	_, err = h.svc.Update(ctx, "ws-1", "user-1", created.ID, invoice.UpdateInvoiceRequest{
		DueDate: "2025-04-15",
		Items:   []invoice.ItemInput{{Description: "Audit", Quantity: d("1"), UnitPrice: d("1")}},
	})
	assert.ErrorIs(t, err, invoice.ErrNotDraft)
	assert.ErrorIs(t, h.svc.Delete(ctx, "ws-1", "user-1", created.ID), invoice.ErrNotDraft)
}

func TestSend(t *testing.T) {
	h := newHarness(t)
	created := h.create(t)

	sent, err := h.svc.Send(context.Background(), "ws-1", "user-1", created.ID)
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusSent, sent.Status)
	require.NotNil(t, sent.SentAt)

	mail, ok := h.mailer.Last("invoice")
	require.True(t, ok)
	assert.Equal(t, "ap@globex.test", mail.To)
	data := mail.Data.(email.InvoiceEmail)
	assert.Equal(t, "https://app.invoiceflow.test/public/invoices/"+created.PublicToken, data.Link)
	assert.Equal(t, "Acme Studio", data.BusinessName)
	assert.Equal(t, "$270.00", data.AmountDue)
	require.NotNil(t, mail.Attachment)
	assert.Equal(t, "INV-2025-0001.pdf", mail.Attachment.FileName)
	assert.Contains(t, h.files.stored, "invoices/ws-1/INV-2025-0001.pdf")

	assert.Contains(t, h.hooks.Names(), webhook.EventInvoiceSent)
	assert.Equal(t, []string{invoice.ActivityCreated, invoice.ActivitySent}, h.repo.actions(created.ID))

	// Resending a viewed invoice keeps its status
	h.setStatus(created.ID, invoice.StatusViewed)
	again, err := h.svc.Send(context.Background(), "ws-1", "user-1", created.ID)
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusViewed, again.Status)
	assert.Equal(t, 2, h.mailer.Count("invoice"))
}

func TestSend_Rejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	created := h.create(t)

	h.setStatus(created.ID, invoice.StatusPaid)
	_, err := h.svc.Send(ctx, "ws-1", "", created.ID)
	assert.ErrorIs(t, err, invoice.ErrCannotSend)

	h.setStatus(created.ID, invoice.StatusDraft)
	inv := h.repo.invoices[created.ID]
	inv.ClientEmail = ""
	h.repo.invoices[created.ID] = inv
	_, err = h.svc.Send(ctx, "ws-1", "", created.ID)
	assert.ErrorIs(t, err, invoice.ErrClientEmailMissing)
}

func TestTransition(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	created := h.create(t)

	_, err := h.svc.Transition(ctx, "ws-1", "user-1", created.ID, invoice.TransitionRequest{Status: invoice.StatusPaid})
	assert.ErrorIs(t, err, invoice.ErrInvalidTransition)

	_, err = h.svc.Void(ctx, "ws-1", "user-1", created.ID, "  ")
	assert.ErrorIs(t, err, invoice.ErrReasonRequired)

	voided, err := h.svc.Void(ctx, "ws-1", "user-1", created.ID, "client cancelled")
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusVoid, voided.Status)
	assert.Equal(t, "client cancelled", voided.VoidReason)
	assert.Contains(t, h.hooks.Names(), webhook.EventInvoiceVoided)

	_, err = h.svc.Transition(ctx, "ws-1", "user-1", created.ID, invoice.TransitionRequest{Status: invoice.StatusSent})
	assert.ErrorIs(t, err, invoice.ErrInvalidTransition)
}

func TestWriteOff(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	created := h.create(t)
	h.setStatus(created.ID, invoice.StatusOverdue)

	written, err := h.svc.WriteOff(ctx, "ws-1", "user-1", created.ID, "uncollectable")
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusWriteOff, written.Status)

	activities, err := h.svc.ListActivity(ctx, "ws-1", created.ID)
	require.NoError(t, err)
	last := activities[len(activities)-1]
	assert.Equal(t, invoice.ActivityWrittenOff, last.Action)
	assert.Equal(t, invoice.StatusOverdue, last.FromStatus)
	assert.Equal(t, "uncollectable", last.Details)
}

func TestRecordPayment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	created := h.create(t)

	_, err := h.svc.RecordPayment(ctx, "ws-1", "user-1", created.ID, invoice.RecordPaymentRequest{Amount: d("10"), Method: "cash"})
	assert.ErrorIs(t, err, invoice.ErrCannotRecordPayment, "drafts cannot take payments")

	h.setStatus(created.ID, invoice.StatusSent)

	_, err = h.svc.RecordPayment(ctx, "ws-1", "user-1", created.ID, invoice.RecordPaymentRequest{Amount: d("270.01"), Method: "cash"})
	assert.ErrorIs(t, err, invoice.ErrPaymentExceedsAmountDue)

	partial, err := h.svc.RecordPayment(ctx, "ws-1", "user-1", created.ID, invoice.RecordPaymentRequest{
		Amount:    d("100"),
		TipAmount: d("5"),
		Method:    "bank_transfer",
	})
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusPartPaid, partial.Invoice.Status)
	assert.Equal(t, invoice.StatusSent, partial.PreviousStatus)
	assert.True(t, partial.Invoice.AmountDue.Equal(d("170")))
	assert.True(t, partial.TransactionAmount.Equal(d("105")))
	assert.True(t, partial.TipAmount.Equal(d("5")))

	full, err := h.svc.RecordPayment(ctx, "ws-1", "user-1", created.ID, invoice.RecordPaymentRequest{
		Amount:      d("170"),
		Method:      "cheque",
		PaymentDate: "2025-03-09",
	})
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusPaid, full.Invoice.Status)
	assert.True(t, full.Invoice.AmountDue.IsZero())
	require.NotNil(t, full.Invoice.PaidAt)
	assert.Equal(t, "2025-03-09", full.Invoice.PaidAt.Format(time.DateOnly))

	assert.Equal(t, []webhook.Event{
		webhook.EventInvoiceCreated,
		webhook.EventPaymentReceived,
		webhook.EventPaymentReceived,
		webhook.EventInvoicePaid,
	}, h.hooks.Names())
}

func TestApplyGatewayPayment(t *testing.T) {
	h := newHarness(t)
	created := h.create(t)
	h.setStatus(created.ID, invoice.StatusViewed)
	invalidated := len(h.reports.Workspaces)

	inv, err := h.svc.ApplyGatewayPayment(context.Background(), created.ID, d("270"))
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusPaid, inv.Status)
	assert.Equal(t, invoice.StatusPaid, h.repo.invoices[created.ID].Status)
	assert.Contains(t, h.hooks.Names(), webhook.EventInvoicePaid)
	assert.Len(t, h.reports.Workspaces, invalidated, "reports are cleared by the caller after commit")

	_, err = h.svc.ApplyGatewayPayment(context.Background(), created.ID, d("1"))
	assert.ErrorIs(t, err, invoice.ErrCannotRecordPayment)
}

func TestAddLine(t *testing.T) {
	h := newHarness(t)
	created := h.create(t)

	inv, err := h.svc.AddLine(context.Background(), "ws-1", "user-1", created.ID, invoice.ItemInput{
		Description: "Expense: Taxi (Vendor: Uber) - 2025-03-02",
		Quantity:    d("1"),
		UnitPrice:   d("30"),
	}, invoice.ActivityExpenseBilled)
	require.NoError(t, err)

	require.Len(t, inv.Items, 3)
	assert.Equal(t, 2, inv.Items[2].SortOrder)
	assert.True(t, inv.TotalAmount.Equal(d("300")))
	assert.Contains(t, h.repo.actions(created.ID), invoice.ActivityExpenseBilled)
}

func TestGetByPublicToken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	created := h.create(t)

	_, err := h.svc.GetByPublicToken(ctx, created.PublicToken, "10.0.0.1")
	assert.ErrorIs(t, err, invoice.ErrInvoiceNotFound, "drafts are not public")

	_, err = h.svc.Send(ctx, "ws-1", "user-1", created.ID)
	require.NoError(t, err)

	view, err := h.svc.GetByPublicToken(ctx, created.PublicToken, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusViewed, view.Invoice.Status)
	assert.Equal(t, 1, view.Invoice.ViewCount)
	assert.Empty(t, view.Invoice.InternalNotes)
	assert.Equal(t, "Acme Studio", view.BusinessName)
	assert.True(t, view.CanPay)

	stored := h.repo.invoices[created.ID]
	require.NotNil(t, stored.FirstViewedAt)
	require.NotNil(t, stored.LastViewedIP)
	assert.Equal(t, "10.0.0.1", *stored.LastViewedIP)

	again, err := h.svc.GetByPublicToken(ctx, created.PublicToken, "10.0.0.2")
	require.NoError(t, err)
	assert.Equal(t, 2, again.Invoice.ViewCount)
	assert.Equal(t, []notification.Kind{notification.KindInvoiceViewed}, h.notifier.Kinds())

	_, err = h.svc.GetByPublicToken(ctx, "unknown", "")
	assert.ErrorIs(t, err, invoice.ErrInvoiceNotFound)
}

func TestRegeneratePublicToken(t *testing.T) {
	h := newHarness(t)
	created := h.create(t)

	rotated, err := h.svc.RegeneratePublicToken(context.Background(), "ws-1", "user-1", created.ID)
	require.NoError(t, err)
	assert.NotEqual(t, created.PublicToken, rotated.PublicToken)
	assert.Contains(t, h.repo.actions(created.ID), invoice.ActivityTokenRotated)
}

func TestMarkOverdue(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	due := h.create(t)
	notDue := h.create(t)
	h.setStatus(due.ID, invoice.StatusSent)
	h.setStatus(notDue.ID, invoice.StatusSent)

	later := h.repo.invoices[notDue.ID]
	later.DueDate = time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	h.repo.invoices[notDue.ID] = later

	flagged, err := h.svc.MarkOverdue(ctx, time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, flagged, 1)
	assert.Equal(t, due.ID, flagged[0].ID)
	assert.Equal(t, invoice.StatusOverdue, h.repo.invoices[due.ID].Status)
	assert.Equal(t, invoice.StatusSent, h.repo.invoices[notDue.ID].Status)
	assert.Contains(t, h.hooks.Names(), webhook.EventInvoiceOverdue)
	assert.Equal(t, []notification.Kind{notification.KindInvoiceOverdue}, h.notifier.Kinds())
	assert.Equal(t, "user-1", h.notifier.Notices[0].UserID)
}

func TestDuplicate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	created := h.create(t)

	dup, err := h.svc.Duplicate(ctx, "ws-1", "user-1", created.ID, invoice.DuplicateRequest{})
	require.NoError(t, err)
	assert.Equal(t, "INV-2025-0002", dup.InvoiceNumber)
	assert.Equal(t, invoice.SourceDuplicate, dup.SourceType)
	assert.Equal(t, "2025-03-10", dup.IssueDate)
	assert.Equal(t, "2025-04-09", dup.DueDate)
	assert.True(t, dup.TotalAmount.Equal(created.TotalAmount))
	require.NotNil(t, dup.SourceID)
	assert.Equal(t, created.ID, *dup.SourceID)
	assert.Contains(t, h.repo.actions(created.ID), invoice.ActivityDuplicated)

	week := 7
	dup2, err := h.svc.Duplicate(ctx, "ws-1", "user-1", created.ID, invoice.DuplicateRequest{PaymentTermsDays: &week})
	require.NoError(t, err)
	assert.Equal(t, "2025-03-17", dup2.DueDate)
}

func TestGenerate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	scheduleID := "sched-1"

	req := invoice.GenerateRequest{
		WorkspaceID:   "ws-1",
		ClientID:      clientID,
		InvoiceNumber: "REC-7-20250310",
		Source:        invoice.SourceRecurring,
		SourceID:      &scheduleID,
		IssueDate:     time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		DueDate:       time.Date(2025, 4, 9, 0, 0, 0, 0, time.UTC),
		Items:         []invoice.ItemInput{{Description: "Retainer", Quantity: d("1"), UnitPrice: d("1000"), TaxRate: d("7.5")}},
	}
	inv, err := h.svc.Generate(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "REC-7-20250310", inv.InvoiceNumber)
	assert.True(t, inv.TotalAmount.Equal(d("1075")))
	assert.Equal(t, "USD", inv.Currency)
	assert.Empty(t, h.svc.workspaceRepo.(*fakeWorkspaceRepo).seqs, "explicit numbers skip the counter")
}

func TestRenderPDF(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	created := h.create(t)

	data, name, err := h.svc.RenderPDF(ctx, "ws-1", created.ID)
	require.NoError(t, err)
	assert.Equal(t, "INV-2025-0001.pdf", name)
	assert.Contains(t, string(data), "INV-2025-0001")

	doc := h.renderer.Docs[0]
	assert.Equal(t, "#112233", doc.BrandColor)
	assert.Equal(t, "Globex", doc.ClientName)
	assert.Equal(t, "$270.00", doc.Totals[len(doc.Totals)-1].Amount)
	require.NotNil(t, h.repo.invoices[created.ID].PDFKey)

	h.renderer.Disabled = true
	_, _, err = h.svc.RenderPDF(ctx, "ws-1", created.ID)
	assert.ErrorIs(t, err, invoice.ErrPDFUnavailable)
}
