package estimate

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
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/estimate"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/invoice"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/notification"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/webhook"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/workspace"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/email"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/service/file"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/testutil"
)

const clientID = "5f1c8e2a-3b4d-4c6e-8f9a-0b1c2d3e4f50"

type fakeEstimateRepo struct {
	estimate.EstimateRepository
	estimates  map[string]estimate.Estimate
	activities []estimate.Activity
	client     client.Client
	seq        int
}

func (f *fakeEstimateRepo) Create(_ context.Context, e estimate.Estimate) (estimate.Estimate, error) {
	f.seq++
	e.ID = fmt.Sprintf("est-%d", f.seq)
	e.ClientName, e.ClientEmail = f.client.Name, f.client.Email
	f.estimates[e.ID] = e
	return e, nil
}

func (f *fakeEstimateRepo) GetByID(_ context.Context, workspaceID, id string) (estimate.Estimate, error) {
	e, ok := f.estimates[id]
	if !ok || e.WorkspaceID != workspaceID {
		return estimate.Estimate{}, pgx.ErrNoRows
	}
	return e, nil
}

func (f *fakeEstimateRepo) GetByIDForUpdate(ctx context.Context, workspaceID, id string) (estimate.Estimate, error) {
	return f.GetByID(ctx, workspaceID, id)
}

func (f *fakeEstimateRepo) GetByPublicToken(_ context.Context, token string) (estimate.Estimate, error) {
	for _, e := range f.estimates {
		if e.PublicToken == token {
			return e, nil
		}
	}
	return estimate.Estimate{}, pgx.ErrNoRows
}

func (f *fakeEstimateRepo) Update(_ context.Context, e estimate.Estimate) error {
	f.estimates[e.ID] = e
	return nil
}

func (f *fakeEstimateRepo) ReplaceItems(context.Context, string, []estimate.Item) error {
	return nil
}

func (f *fakeEstimateRepo) ExpireBefore(_ context.Context, day time.Time) (int64, error) {
	var n int64
	for id, e := range f.estimates {
		if (e.Status == estimate.StatusSent || e.Status == estimate.StatusViewed) && e.ExpiryDate.Before(day) {
			e.Status = estimate.StatusExpired
			f.estimates[id] = e
			n++
		}
	}
	return n, nil
}

func (f *fakeEstimateRepo) CreateActivity(_ context.Context, a estimate.Activity) error {
	f.activities = append(f.activities, a)
	return nil
}

type fakeClientRepo struct {
	client.ClientRepository
	client client.Client
}

func (f *fakeClientRepo) GetByID(_ context.Context, workspaceID, id string) (client.Client, error) {
	if id != f.client.ID || workspaceID != f.client.WorkspaceID {
		return client.Client{}, pgx.ErrNoRows
	}
	return f.client, nil
}

type fakeWorkspaceRepo struct {
	workspace.WorkspaceRepository
	seq int
}

func (f *fakeWorkspaceRepo) GetByID(_ context.Context, id string) (workspace.Workspace, error) {
	return workspace.Workspace{ID: id, Name: "Acme", OwnerID: "owner-1", DefaultCurrency: "EUR", PrimaryColor: "#000000"}, nil
}

func (f *fakeWorkspaceRepo) NextSequence(context.Context, string, string, int) (int, error) {
	f.seq++
	return f.seq, nil
}

type fakeInvoiceService struct {
	invoice.InvoiceService
	generated []invoice.GenerateRequest
}

func (f *fakeInvoiceService) Generate(_ context.Context, req invoice.GenerateRequest) (invoice.Invoice, error) {
	f.generated = append(f.generated, req)
	return invoice.Invoice{ID: "inv-1", InvoiceNumber: req.InvoiceNumber}, nil
}

type fakeFileService struct {
	file.FileService
	stored []string
}

func (f *fakeFileService) StorePDF(_ context.Context, key string, _ []byte) error {
	f.stored = append(f.stored, key)
	return nil
}

type harness struct {
	svc      *EstimateServiceImpl
	repo     *fakeEstimateRepo
	invoices *fakeInvoiceService
	hooks    *testutil.Dispatcher
	notifier *testutil.Notifier
	mailer   *testutil.Mailer
	files    *fakeFileService
	now      time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	c := client.Client{ID: clientID, WorkspaceID: "ws-1", Name: "Globex", Email: "buyer@globex.test"}
	h := &harness{
		repo:     &fakeEstimateRepo{estimates: map[string]estimate.Estimate{}, client: c},
		invoices: &fakeInvoiceService{},
		hooks:    &testutil.Dispatcher{},
		notifier: &testutil.Notifier{},
		mailer:   &testutil.Mailer{},
		files:    &fakeFileService{},
		now:      time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC),
	}
	svc := NewEstimateService(
		&testutil.Transactor{}, h.repo, &fakeClientRepo{client: c}, &fakeWorkspaceRepo{},
		h.invoices, h.hooks, h.notifier, h.mailer, &testutil.Renderer{}, h.files,
		"https://app.invoiceflow.test",
	)
	h.svc = svc.(*EstimateServiceImpl)
	h.svc.now = func() time.Time { return h.now }
	return h
}

func (h *harness) create(t *testing.T) estimate.EstimateResponse {
	t.Helper()
	resp, err := h.svc.Create(context.Background(), "ws-1", "user-1", estimate.EstimateRequest{
		ClientID:   clientID,
		ExpiryDate: "2025-06-30",
		Items: []estimate.ItemInput{
			{Description: "Website", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(2000), TaxRate: decimal.NewFromInt(5)},
		},
	})
	require.NoError(t, err)
	return resp
}

func (h *harness) setStatus(id string, status estimate.Status) {
	e := h.repo.estimates[id]
	e.Status = status
	h.repo.estimates[id] = e
}

func TestCreate(t *testing.T) {
	h := newHarness(t)

	first := h.create(t)
	second := h.create(t)

	assert.Equal(t, "EST-2025-0001", first.EstimateNumber)
	assert.Equal(t, "EST-2025-0002", second.EstimateNumber)
	assert.Equal(t, estimate.StatusDraft, first.Status)
	assert.Equal(t, "2025-06-02", first.IssueDate)
	assert.Equal(t, "EUR", first.Currency, "falls back to the workspace currency")
	assert.True(t, first.TotalAmount.Equal(decimal.NewFromInt(2100)))
}

func TestSendAndView(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	created := h.create(t)

	_, err := h.svc.GetByPublicToken(ctx, created.PublicToken, "")
	assert.ErrorIs(t, err, estimate.ErrEstimateNotFound, "drafts are not public")

	sent, err := h.svc.Send(ctx, "ws-1", "user-1", created.ID)
	require.NoError(t, err)
	assert.Equal(t, estimate.StatusSent, sent.Status)

	mail, ok := h.mailer.Last("estimate")
	require.True(t, ok)
	data := mail.Data.(email.EstimateEmail)
	assert.Equal(t, "https://app.invoiceflow.test/public/estimates/"+created.PublicToken, data.Link)
	assert.Equal(t, "Jun 30, 2025", data.ExpiryDate)

	view, err := h.svc.GetByPublicToken(ctx, created.PublicToken, "10.1.1.1")
	require.NoError(t, err)
	assert.Equal(t, estimate.StatusViewed, view.Estimate.Status)
	assert.True(t, view.CanRespond)
	assert.Equal(t, "10.1.1.1", h.repo.activities[len(h.repo.activities)-1].IPAddress)

	h.setStatus(created.ID, estimate.StatusDeclined)
	_, err = h.svc.Send(ctx, "ws-1", "user-1", created.ID)
	assert.ErrorIs(t, err, estimate.ErrCannotSend)
}

func TestApprove(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	created := h.create(t)
	_, err := h.svc.Send(ctx, "ws-1", "user-1", created.ID)
	require.NoError(t, err)

	approved, err := h.svc.Approve(ctx, created.PublicToken, "10.1.1.1")
	require.NoError(t, err)
	assert.Equal(t, estimate.StatusApproved, approved.Estimate.Status)
	assert.False(t, approved.CanRespond)
	assert.NotNil(t, h.repo.estimates[created.ID].ApprovedAt)
	assert.Equal(t, []webhook.Event{webhook.EventEstimateApproved}, h.hooks.Names())
	assert.Equal(t, []notification.Kind{notification.KindEstimateApproved}, h.notifier.Kinds())

	_, err = h.svc.Decline(ctx, created.PublicToken, "", estimate.DeclineRequest{})
	assert.ErrorIs(t, err, estimate.ErrCannotRespond)
}

func TestDecline_AfterExpiry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	created := h.create(t)
	_, err := h.svc.Send(ctx, "ws-1", "user-1", created.ID)
	require.NoError(t, err)

	h.now = time.Date(2025, 7, 1, 8, 0, 0, 0, time.UTC)
	_, err = h.svc.Decline(ctx, created.PublicToken, "", estimate.DeclineRequest{Reason: "too late"})
	assert.ErrorIs(t, err, estimate.ErrCannotRespond)

	h.now = time.Date(2025, 6, 30, 8, 0, 0, 0, time.UTC)
	declined, err := h.svc.Decline(ctx, created.PublicToken, "", estimate.DeclineRequest{Reason: "over budget"})
	require.NoError(t, err)
	assert.Equal(t, estimate.StatusDeclined, declined.Estimate.Status)
	assert.Contains(t, h.notifier.Notices[0].Body, "over budget")
}

func TestConvertToInvoice(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	created := h.create(t)
	h.setStatus(created.ID, estimate.StatusApproved)

	conv, err := h.svc.ConvertToInvoice(ctx, "ws-1", "user-1", created.ID)
	require.NoError(t, err)
	assert.Equal(t, "INV-EST-2025-0001", conv.InvoiceNumber)
	assert.Equal(t, "inv-1", conv.InvoiceID)

	require.Len(t, h.invoices.generated, 1)
	req := h.invoices.generated[0]
	assert.Equal(t, invoice.SourceEstimate, req.Source)
	assert.Equal(t, "2025-06-16", req.DueDate.Format(time.DateOnly))
	require.Len(t, req.Items, 1)
	assert.True(t, req.Items[0].TaxRate.Equal(decimal.NewFromInt(5)))

	stored := h.repo.estimates[created.ID]
	assert.Equal(t, estimate.StatusInvoiced, stored.Status)
	require.NotNil(t, stored.ConvertedInvoiceID)
	assert.Equal(t, "inv-1", *stored.ConvertedInvoiceID)

	_, err = h.svc.ConvertToInvoice(ctx, "ws-1", "user-1", created.ID)
	assert.ErrorIs(t, err, estimate.ErrAlreadyInvoiced)

	h.setStatus(created.ID, estimate.StatusDeclined)
	_, err = h.svc.ConvertToInvoice(ctx, "ws-1", "user-1", created.ID)
	assert.ErrorIs(t, err, estimate.ErrCannotConvert)
}

func TestUpdateAndDelete_DraftOnly(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	created := h.create(t)

	updated, err := h.svc.Update(ctx, "ws-1", "user-1", created.ID, estimate.EstimateRequest{
		ClientID:   clientID,
		ExpiryDate: "2025-07-15",
		Items:      []estimate.ItemInput{{Description: "Logo", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(150)}},
	})
	require.NoError(t, err)
	assert.True(t, updated.TotalAmount.Equal(decimal.NewFromInt(300)))
	assert.Equal(t, "2025-06-02", updated.IssueDate)

	h.setStatus(created.ID, estimate.StatusSent)
	assert.ErrorIs(t, h.svc.Delete(ctx, "ws-1", created.ID), estimate.ErrNotDraft)
}

func TestExpireStaleAndRender(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	created := h.create(t)
	h.setStatus(created.ID, estimate.StatusSent)

	n, err := h.svc.ExpireStale(ctx, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, name, err := h.svc.RenderPDF(ctx, "ws-1", created.ID)
	require.NoError(t, err)
	assert.Equal(t, "EST-2025-0001.pdf", name)
	assert.Equal(t, []string{"estimates/ws-1/EST-2025-0001.pdf"}, h.files.stored)
}
