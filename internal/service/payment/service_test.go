package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/invoice"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/notification"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/payment"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/webhook"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/workspace"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/cache"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/testutil"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// ==================== fakes ====================

type fakePaymentRepo struct {
	payment.PaymentRepository
	payments        map[string]payment.Payment
	transactions    []payment.Transaction
	audits          []payment.AuditLog
	events          map[string]payment.WebhookEvent
	reconciliations map[string]payment.Reconciliation
	recoveries      map[string]payment.Recovery
	seq             int
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{
		payments:        map[string]payment.Payment{},
		events:          map[string]payment.WebhookEvent{},
		reconciliations: map[string]payment.Reconciliation{},
		recoveries:      map[string]payment.Recovery{},
	}
}

func (f *fakePaymentRepo) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

func (f *fakePaymentRepo) Create(_ context.Context, p payment.Payment) (payment.Payment, error) {
	p.ID = f.nextID("pay")
	p.CreatedAt = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	f.payments[p.ID] = p
	return p, nil
}

func (f *fakePaymentRepo) GetByID(_ context.Context, workspaceID, id string) (payment.Payment, error) {
	p, ok := f.payments[id]
	if !ok || p.WorkspaceID != workspaceID {
		return payment.Payment{}, pgx.ErrNoRows
	}
	return p, nil
}

func (f *fakePaymentRepo) GetByIDForUpdate(_ context.Context, id string) (payment.Payment, error) {
	p, ok := f.payments[id]
	if !ok {
		return payment.Payment{}, pgx.ErrNoRows
	}
	return p, nil
}

func (f *fakePaymentRepo) GetByReferenceForUpdate(_ context.Context, reference string) (payment.Payment, error) {
	for _, p := range f.payments {
		if p.Reference == reference {
			return p, nil
		}
	}
	return payment.Payment{}, pgx.ErrNoRows
}

func (f *fakePaymentRepo) ListForReconciliation(_ context.Context, _ time.Time, _ int) ([]payment.Payment, error) {
	var out []payment.Payment
	for _, p := range f.payments {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakePaymentRepo) Update(_ context.Context, p payment.Payment) error {
	f.payments[p.ID] = p
	return nil
}

func (f *fakePaymentRepo) CreateTransaction(_ context.Context, t payment.Transaction) error {
	f.transactions = append(f.transactions, t)
	return nil
}

func (f *fakePaymentRepo) CreateAuditLog(_ context.Context, a payment.AuditLog) error {
	f.audits = append(f.audits, a)
	return nil
}

func (f *fakePaymentRepo) actions() []string {
	out := make([]string, 0, len(f.audits))
	for _, a := range f.audits {
		out = append(out, a.Action)
	}
	return out
}

func (f *fakePaymentRepo) WebhookEventExists(_ context.Context, provider, eventID string) (bool, error) {
	_, ok := f.events[provider+"/"+eventID]
	return ok, nil
}

func (f *fakePaymentRepo) CreateWebhookEvent(_ context.Context, e payment.WebhookEvent) (bool, error) {
	key := e.Provider + "/" + e.EventID
	if _, ok := f.events[key]; ok {
		return false, nil
	}
	f.events[key] = e
	return true, nil
}

func (f *fakePaymentRepo) CreateReconciliation(_ context.Context, r payment.Reconciliation) (payment.Reconciliation, error) {
	r.ID = f.nextID("rec")
	f.reconciliations[r.ID] = r
	return r, nil
}

func (f *fakePaymentRepo) UpdateReconciliation(_ context.Context, r payment.Reconciliation) error {
	f.reconciliations[r.ID] = r
	return nil
}

func (f *fakePaymentRepo) GetReconciliation(_ context.Context, id string) (payment.Reconciliation, error) {
	r, ok := f.reconciliations[id]
	if !ok {
		return payment.Reconciliation{}, pgx.ErrNoRows
	}
	return r, nil
}

func (f *fakePaymentRepo) CreateRecovery(_ context.Context, r payment.Recovery) error {
	r.ID = f.nextID("recovery")
	f.recoveries[r.ID] = r
	return nil
}

func (f *fakePaymentRepo) UpdateRecovery(_ context.Context, r payment.Recovery) error {
	f.recoveries[r.ID] = r
	return nil
}

func (f *fakePaymentRepo) ListDueRecoveries(_ context.Context, now time.Time, _ int) ([]payment.Recovery, error) {
	var out []payment.Recovery
	for _, r := range f.recoveries {
		if r.Status == payment.RecoveryPending && !r.NextRetryAt.After(now) {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeInvoiceService struct {
	invoice.InvoiceService
	invoices map[string]invoice.Invoice
	applied  []decimal.Decimal
}

func (f *fakeInvoiceService) GetInvoice(_ context.Context, workspaceID, id string) (invoice.Invoice, error) {
	inv, ok := f.invoices[id]
	if !ok || inv.WorkspaceID != workspaceID {
		return invoice.Invoice{}, invoice.ErrInvoiceNotFound
	}
	return inv, nil
}

func (f *fakeInvoiceService) ApplyGatewayPayment(_ context.Context, invoiceID string, amount decimal.Decimal) (invoice.Invoice, error) {
	inv := f.invoices[invoiceID]
	if !inv.CanRecordPayment() {
		return invoice.Invoice{}, invoice.ErrCannotRecordPayment
	}
	inv.ApplyPayment(amount, time.Now())
	f.invoices[invoiceID] = inv
	f.applied = append(f.applied, amount)
	return inv, nil
}

func (f *fakeInvoiceService) RecordPayment(_ context.Context, workspaceID, _, id string, req invoice.RecordPaymentRequest) (invoice.PaymentApplied, error) {
	inv, ok := f.invoices[id]
	if !ok || inv.WorkspaceID != workspaceID {
		return invoice.PaymentApplied{}, invoice.ErrInvoiceNotFound
	}
	from := inv.Status
	inv.ApplyPayment(req.Amount, time.Now())
	f.invoices[id] = inv
	return invoice.PaymentApplied{
		Invoice:           inv,
		Amount:            req.Amount,
		TipAmount:         req.TipAmount,
		TransactionAmount: req.Amount.Add(req.TipAmount),
		PreviousStatus:    from,
	}, nil
}

type fakeWorkspaceRepo struct {
	workspace.WorkspaceRepository
	ws workspace.Workspace
}

func (f *fakeWorkspaceRepo) GetByID(_ context.Context, id string) (workspace.Workspace, error) {
	if id != f.ws.ID {
		return workspace.Workspace{}, pgx.ErrNoRows
	}
	return f.ws, nil
}

type fakeGateway struct {
	sigErr       error
	event        payment.Event
	verification payment.Verification
	verifyErr    error
	checkouts    int
}

func (g *fakeGateway) Name() string { return "paystack" }

func (g *fakeGateway) InitializeCheckout(_ context.Context, req payment.CheckoutRequest) (payment.CheckoutSession, error) {
	g.checkouts++
	return payment.CheckoutSession{CheckoutURL: "https://checkout.test/" + req.Reference, ProviderReference: "ps_" + req.Reference}, nil
}

func (g *fakeGateway) VerifySignature(http.Header, []byte) error { return g.sigErr }

func (g *fakeGateway) ParseEvent([]byte) (payment.Event, error) { return g.event, nil }

func (g *fakeGateway) Verify(context.Context, string, string) (payment.Verification, error) {
	return g.verification, g.verifyErr
}

type fakeGateways struct {
	gw *fakeGateway
}

func (f fakeGateways) Get(name string) (payment.Gateway, error) {
	if name != "paystack" {
		return nil, payment.ErrProviderNotConfigured
	}
	return f.gw, nil
}

type fakeRecurring struct {
	successes []string
}

func (f *fakeRecurring) RecordPaymentSuccess(_ context.Context, invoiceID, _, _ string) error {
	f.successes = append(f.successes, invoiceID)
	return nil
}

// ==================== harness ====================

type harness struct {
	svc       *PaymentServiceImpl
	repo      *fakePaymentRepo
	invoices  *fakeInvoiceService
	gateway   *fakeGateway
	hooks     *testutil.Dispatcher
	notifier  *testutil.Notifier
	mailer    *testutil.Mailer
	recurring *fakeRecurring
	tx        *testutil.Transactor
	reports   *commitReports
	clock     *testutil.Clock
}

// commitReports records invalidations and whether a transaction was still open
type commitReports struct {
	tx         *testutil.Transactor
	workspaces []string
	inTx       []bool
}

func (c *commitReports) InvalidateWorkspace(_ context.Context, workspaceID string) {
	c.workspaces = append(c.workspaces, workspaceID)
	c.inTx = append(c.inTx, c.tx.Open())
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		repo: newFakePaymentRepo(),
		invoices: &fakeInvoiceService{invoices: map[string]invoice.Invoice{
			"inv-1": {
				ID:            "inv-1",
				WorkspaceID:   "ws-1",
				InvoiceNumber: "INV-2025-0001",
				Status:        invoice.StatusSent,
				SourceType:    invoice.SourceManual,
				Currency:      "USD",
				TotalAmount:   d("100"),
				AmountDue:     d("100"),
				ClientName:    "Globex",
				ClientEmail:   "ap@globex.test",
			},
		}},
		gateway:   &fakeGateway{},
		hooks:     &testutil.Dispatcher{},
		notifier:  &testutil.Notifier{},
		mailer:    &testutil.Mailer{},
		recurring: &fakeRecurring{},
		tx:        &testutil.Transactor{},
		clock:     testutil.NewClock(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)),
	}
	h.reports = &commitReports{tx: h.tx}
	store := cache.NewMemoryStore()
	svc := NewPaymentService(h.tx, h.repo, h.invoices, &fakeWorkspaceRepo{
		ws: workspace.Workspace{ID: "ws-1", Name: "Acme", OwnerID: "owner-1", PaymentProvider: "paystack"},
	}, Dependencies{
		Gateways:    fakeGateways{gw: h.gateway},
		Idempotency: store,
		Limiter:     store,
		Webhooks:    h.hooks,
		Notifier:    h.notifier,
		Recurring:   h.recurring,
		Reports:     h.reports,
		Email:       h.mailer,
	})
	h.svc = svc.(*PaymentServiceImpl)
	h.svc.now = h.clock.Now
	return h
}

// pending seeds a gateway payment awaiting its webhook
func (h *harness) pending(reference string) payment.Payment {
	p, _ := h.repo.Create(context.Background(), payment.Payment{
		WorkspaceID: "ws-1",
		InvoiceID:   "inv-1",
		Amount:      d("100"),
		Currency:    "USD",
		Status:      payment.StatusPending,
		Method:      payment.MethodPaystack,
		Reference:   reference,
	})
	return p
}

func webhookRequest(ip string) payment.WebhookRequest {
	return payment.WebhookRequest{Provider: "paystack", Body: []byte(`{"event":"charge.success"}`), IP: ip}
}

// ==================== tests ====================

func TestInitializePayment(t *testing.T) {
	ctx := context.Background()

	t.Run("requires an idempotency key", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.svc.InitializePayment(ctx, "ws-1", "user-1", payment.InitializePaymentRequest{
			InvoiceID: "0b5b3b66-1b4a-4b7e-9a51-1c2d3e4f5a6b",
			Amount:    d("100"),
		})
		assert.ErrorIs(t, err, payment.ErrIdempotencyKeyRequired)
	})

	t.Run("amount must equal amount due", func(t *testing.T) {
		h := newHarness(t)
		inv := h.invoices.invoices["inv-1"]
		inv.ID = "0b5b3b66-1b4a-4b7e-9a51-1c2d3e4f5a6b"
		h.invoices.invoices[inv.ID] = inv

		_, err := h.svc.InitializePayment(ctx, "ws-1", "user-1", payment.InitializePaymentRequest{
			InvoiceID:      inv.ID,
			Amount:         d("40"),
			IdempotencyKey: "k1",
		})
		assert.ErrorIs(t, err, payment.ErrAmountMustMatchDue)
	})

	t.Run("paid invoices are not payable", func(t *testing.T) {
		h := newHarness(t)
		inv := h.invoices.invoices["inv-1"]
		inv.ID = "0b5b3b66-1b4a-4b7e-9a51-1c2d3e4f5a6b"
		inv.Status = invoice.StatusPaid
		h.invoices.invoices[inv.ID] = inv

		_, err := h.svc.InitializePayment(ctx, "ws-1", "user-1", payment.InitializePaymentRequest{
			InvoiceID:      inv.ID,
			Amount:         d("100"),
			IdempotencyKey: "k1",
		})
		assert.ErrorIs(t, err, payment.ErrInvoiceNotPayable)
	})

	t.Run("repeat key returns cached response", func(t *testing.T) {
		h := newHarness(t)
		inv := h.invoices.invoices["inv-1"]
		inv.ID = "0b5b3b66-1b4a-4b7e-9a51-1c2d3e4f5a6b"
		h.invoices.invoices[inv.ID] = inv

		req := payment.InitializePaymentRequest{InvoiceID: inv.ID, Amount: d("100"), IdempotencyKey: "k1"}
		first, err := h.svc.InitializePayment(ctx, "ws-1", "user-1", req)
		require.NoError(t, err)
		assert.Equal(t, "paystack", first.Provider)
		assert.Regexp(t, `^inv_0b5b3b661b4a4b7e9a511c2d3e4f5a6b_user1_[0-9a-f]{8}$`, first.Reference)
		assert.Equal(t, "https://checkout.test/"+first.Reference, first.CheckoutURL)

		second, err := h.svc.InitializePayment(ctx, "ws-1", "user-1", req)
		require.NoError(t, err)
		assert.Equal(t, first.PaymentID, second.PaymentID)
		assert.Equal(t, 1, h.gateway.checkouts)
		assert.Len(t, h.repo.payments, 1)

		p := h.repo.payments[first.PaymentID]
		assert.Equal(t, payment.StatusPending, p.Status)
		assert.Equal(t, "ps_"+first.Reference, p.ProviderReference)
		assert.Equal(t, []string{payment.AuditInitialized}, h.repo.actions())
	})
}

func TestHandleWebhook_Settles(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	inv := h.invoices.invoices["inv-1"]
	inv.SourceType = invoice.SourceRecurring
	h.invoices.invoices["inv-1"] = inv
	p := h.pending("ref-1")

	h.gateway.event = payment.Event{ID: "evt-1", Type: "charge.success", Reference: "ref-1", ChargeSucceeded: true}
	h.gateway.verification = payment.Verification{Verified: true, Status: "success", AmountMinor: 10000, Currency: "usd", ProviderReference: "trx-9", FeeMinor: 290}

	res, err := h.svc.HandleWebhook(ctx, webhookRequest("10.0.0.1"))
	require.NoError(t, err)
	assert.Equal(t, payment.WebhookProcessed, res.Message)
	assert.Equal(t, p.ID, res.PaymentID)

	settledPayment := h.repo.payments[p.ID]
	assert.Equal(t, payment.StatusSuccess, settledPayment.Status)
	assert.Equal(t, "trx-9", settledPayment.ProviderReference)
	assert.True(t, d("2.90").Equal(settledPayment.FeeAmount))
	assert.True(t, d("97.10").Equal(settledPayment.NetAmount))
	require.NotNil(t, settledPayment.PaidAt)

	assert.Equal(t, invoice.StatusPaid, h.invoices.invoices["inv-1"].Status)
	require.Len(t, h.repo.transactions, 1)
	assert.Equal(t, payment.TransactionPayment, h.repo.transactions[0].Type)
	assert.Equal(t, []string{payment.AuditWebhookReceived, payment.AuditVerified}, h.repo.actions())

	event := h.repo.events["paystack/evt-1"]
	assert.Len(t, event.PayloadHash, 64)
	assert.Equal(t, "10.0.0.1", event.IPAddress)

	assert.Equal(t, []webhook.Event{webhook.EventPaymentReceived}, h.hooks.Names())
	require.Len(t, h.notifier.Notices, 1)
	assert.Equal(t, notification.KindPaymentReceived, h.notifier.Notices[0].Kind)
	assert.Equal(t, "owner-1", h.notifier.Notices[0].UserID)
	assert.Equal(t, 1, h.mailer.Count("receipt"))
	assert.Equal(t, []string{"inv-1"}, h.recurring.successes)
	assert.Equal(t, []string{"ws-1"}, h.reports.workspaces)
	assert.Equal(t, []bool{false}, h.reports.inTx, "reports are invalidated after commit")

	again, err := h.svc.HandleWebhook(ctx, webhookRequest("10.0.0.1"))
	require.NoError(t, err)
	assert.Equal(t, payment.WebhookAlreadyProcessed, again.Message)
	assert.Len(t, h.invoices.applied, 1)
}

func TestHandleWebhook_Rejections(t *testing.T) {
	ctx := context.Background()

	t.Run("bad signature", func(t *testing.T) {
		h := newHarness(t)
		h.gateway.sigErr = errors.New("nope")
		_, err := h.svc.HandleWebhook(ctx, webhookRequest("10.0.0.1"))
		assert.ErrorIs(t, err, payment.ErrInvalidSignature)
	})

	t.Run("missing event id", func(t *testing.T) {
		h := newHarness(t)
		h.gateway.event = payment.Event{Reference: "ref-1", ChargeSucceeded: true}
		_, err := h.svc.HandleWebhook(ctx, webhookRequest("10.0.0.1"))
		assert.ErrorIs(t, err, payment.ErrMissingEventID)
	})

	t.Run("other events are ignored", func(t *testing.T) {
		h := newHarness(t)
		h.gateway.event = payment.Event{ID: "evt-2", Type: "transfer.success"}
		res, err := h.svc.HandleWebhook(ctx, webhookRequest("10.0.0.1"))
		require.NoError(t, err)
		assert.Equal(t, payment.WebhookIgnored, res.Message)
	})

	t.Run("missing reference", func(t *testing.T) {
		h := newHarness(t)
		h.gateway.event = payment.Event{ID: "evt-3", ChargeSucceeded: true}
		_, err := h.svc.HandleWebhook(ctx, webhookRequest("10.0.0.1"))
		assert.ErrorIs(t, err, payment.ErrMissingReference)
	})

	t.Run("unknown reference", func(t *testing.T) {
		h := newHarness(t)
		h.gateway.event = payment.Event{ID: "evt-4", Reference: "nope", ChargeSucceeded: true}
		_, err := h.svc.HandleWebhook(ctx, webhookRequest("10.0.0.1"))
		assert.ErrorIs(t, err, payment.ErrPaymentNotFound)
	})

	t.Run("provider down", func(t *testing.T) {
		h := newHarness(t)
		h.pending("ref-1")
		h.gateway.event = payment.Event{ID: "evt-5", Reference: "ref-1", ChargeSucceeded: true}
		h.gateway.verifyErr = errors.New("timeout")
		_, err := h.svc.HandleWebhook(ctx, webhookRequest("10.0.0.1"))
		assert.ErrorIs(t, err, payment.ErrProviderUnavailable)
	})

	t.Run("rate limited per ip", func(t *testing.T) {
		h := newHarness(t)
		h.gateway.event = payment.Event{ID: "evt-6", Type: "transfer.success"}
		for i := 0; i < webhookRateLimit; i++ {
			_, err := h.svc.HandleWebhook(ctx, webhookRequest("10.0.0.9"))
			require.NoError(t, err)
		}
		_, err := h.svc.HandleWebhook(ctx, webhookRequest("10.0.0.9"))
		assert.ErrorIs(t, err, payment.ErrRateLimited)

		_, err = h.svc.HandleWebhook(ctx, webhookRequest("10.0.0.10"))
		assert.NoError(t, err)
	})
}

func TestHandleWebhook_FailedVerification(t *testing.T) {
	ctx := context.Background()

	t.Run("not verified", func(t *testing.T) {
		h := newHarness(t)
		p := h.pending("ref-1")
		h.gateway.event = payment.Event{ID: "evt-1", Reference: "ref-1", ChargeSucceeded: true}
		h.gateway.verification = payment.Verification{Verified: false, Status: "abandoned"}

		res, err := h.svc.HandleWebhook(ctx, webhookRequest("10.0.0.1"))
		require.NoError(t, err)
		assert.Equal(t, payment.WebhookNotVerified, res.Message)
		assert.Equal(t, payment.StatusFailed, h.repo.payments[p.ID].Status)
		require.Len(t, h.repo.reconciliations, 1)
		for _, rec := range h.repo.reconciliations {
			assert.Equal(t, payment.ResultFailed, rec.Result)
			assert.Equal(t, payment.ErrorCodeNotVerified, rec.ErrorCode)
		}
		assert.Contains(t, h.repo.events, "paystack/evt-1")
	})

	t.Run("amount mismatch", func(t *testing.T) {
		h := newHarness(t)
		p := h.pending("ref-1")
		h.gateway.event = payment.Event{ID: "evt-1", Reference: "ref-1", ChargeSucceeded: true}
		h.gateway.verification = payment.Verification{Verified: true, Status: "success", AmountMinor: 5000, Currency: "USD"}

		_, err := h.svc.HandleWebhook(ctx, webhookRequest("10.0.0.1"))
		assert.ErrorIs(t, err, payment.ErrAmountMismatch)
		assert.Equal(t, payment.StatusFailed, h.repo.payments[p.ID].Status)
		for _, rec := range h.repo.reconciliations {
			assert.Equal(t, payment.ResultMismatch, rec.Result)
			assert.Equal(t, payment.ErrorCodeAmountMismatch, rec.ErrorCode)
		}
		assert.Contains(t, h.repo.actions(), payment.AuditAmountMismatch)
		assert.Empty(t, h.invoices.applied)
	})

	t.Run("currency mismatch", func(t *testing.T) {
		h := newHarness(t)
		h.pending("ref-1")
		h.gateway.event = payment.Event{ID: "evt-1", Reference: "ref-1", ChargeSucceeded: true}
		h.gateway.verification = payment.Verification{Verified: true, Status: "success", AmountMinor: 10000, Currency: "NGN"}

		_, err := h.svc.HandleWebhook(ctx, webhookRequest("10.0.0.1"))
		assert.ErrorIs(t, err, payment.ErrCurrencyMismatch)
		assert.Empty(t, h.invoices.applied)
	})
}

func TestRecordOfflinePayment(t *testing.T) {
	h := newHarness(t)

	resp, err := h.svc.RecordOfflinePayment(context.Background(), "ws-1", "user-1", "inv-1", invoice.RecordPaymentRequest{
		Amount:      d("60"),
		TipAmount:   d("5"),
		Method:      "bank_transfer",
		Reference:   "WIRE-77",
		PaymentDate: "2025-03-08",
	})
	require.NoError(t, err)
	assert.Equal(t, payment.StatusSuccess, resp.Status)
	assert.Equal(t, payment.MethodBankTransfer, resp.Method)
	assert.True(t, d("60").Equal(resp.Amount))
	assert.True(t, d("5").Equal(resp.TipAmount))
	assert.Equal(t, "WIRE-77", resp.ProviderReference)
	require.NotNil(t, resp.PaidAt)
	assert.Equal(t, "2025-03-08T00:00:00Z", *resp.PaidAt)

	require.Len(t, h.repo.transactions, 1)
	assert.True(t, d("65").Equal(h.repo.transactions[0].Amount))
	assert.Equal(t, []string{payment.AuditOfflineRecorded}, h.repo.actions())
	assert.Equal(t, invoice.StatusPartPaid, h.invoices.invoices["inv-1"].Status)
	assert.Equal(t, 1, h.mailer.Count("receipt"))
	assert.Empty(t, h.recurring.successes)
	assert.Equal(t, []string{"ws-1"}, h.reports.workspaces)
	assert.Equal(t, []bool{false}, h.reports.inTx)
}

func TestRecordOfflinePayment_SettlesRecurringInvoice(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	inv := h.invoices.invoices["inv-1"]
	inv.SourceType = invoice.SourceRecurring
	inv.Status = invoice.StatusOverdue
	h.invoices.invoices["inv-1"] = inv

	_, err := h.svc.RecordOfflinePayment(ctx, "ws-1", "user-1", "inv-1", invoice.RecordPaymentRequest{
		Amount: d("40"),
		Method: "cash",
	})
	require.NoError(t, err)
	assert.Empty(t, h.recurring.successes, "a partial payment leaves the invoice under dunning")

	_, err = h.svc.RecordOfflinePayment(ctx, "ws-1", "user-1", "inv-1", invoice.RecordPaymentRequest{
		Amount:    d("60"),
		Method:    "bank_transfer",
		Reference: "WIRE-78",
	})
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusPaid, h.invoices.invoices["inv-1"].Status)
	assert.Equal(t, []string{"inv-1"}, h.recurring.successes)
}

func TestReconcilePayment(t *testing.T) {
	ctx := context.Background()

	t.Run("verified charge still pending queues a recovery", func(t *testing.T) {
		h := newHarness(t)
		p := h.pending("ref-1")
		h.gateway.verification = payment.Verification{Verified: true, Status: "success", AmountMinor: 10000, Currency: "USD"}

		resp, err := h.svc.ReconcilePayment(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, payment.ResultMismatch, resp.Result)
		assert.True(t, resp.AmountMatch)
		assert.False(t, resp.StatusMatch)
		assert.True(t, resp.RecoveryQueued)
		require.Len(t, h.repo.recoveries, 1)
		for _, r := range h.repo.recoveries {
			assert.Equal(t, 1, r.AttemptNumber)
			assert.Equal(t, h.clock.Now().Add(payment.RecoveryBackoff), r.NextRetryAt)
		}
	})

	t.Run("settled charge verifies", func(t *testing.T) {
		h := newHarness(t)
		p := h.pending("ref-1")
		p.Status = payment.StatusSuccess
		h.repo.payments[p.ID] = p
		h.gateway.verification = payment.Verification{Verified: true, Status: "success", AmountMinor: 10000, Currency: "USD"}

		resp, err := h.svc.ReconcilePayment(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, payment.ResultVerified, resp.Result)
		assert.False(t, resp.RecoveryQueued)
		assert.Empty(t, h.repo.recoveries)
	})

	t.Run("verification error fails and queues", func(t *testing.T) {
		h := newHarness(t)
		p := h.pending("ref-1")
		h.gateway.verifyErr = errors.New("502")

		resp, err := h.svc.ReconcilePayment(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, payment.ResultFailed, resp.Result)
		assert.True(t, resp.RecoveryQueued)
	})

	t.Run("offline payments are skipped by the batch", func(t *testing.T) {
		h := newHarness(t)
		p := h.pending("ref-1")
		p.Method = payment.MethodCash
		h.repo.payments[p.ID] = p

		summary, err := h.svc.ReconcileRecent(ctx)
		require.NoError(t, err)
		assert.Equal(t, payment.ReconcileSummary{}, summary)
	})
}

func TestProcessPendingRecoveries(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	p := h.pending("ref-1")
	h.gateway.verification = payment.Verification{Verified: true, Status: "success", AmountMinor: 10000, Currency: "USD"}
	_, err := h.svc.ReconcilePayment(ctx, p.ID)
	require.NoError(t, err)

	// Not due yet
	summary, err := h.svc.ProcessPendingRecoveries(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Attempted)

	// Provider stops confirming the charge
	h.gateway.verification = payment.Verification{Verified: false, Status: "pending"}
	h.clock.Advance(payment.RecoveryBackoff)
	summary, err = h.svc.ProcessPendingRecoveries(ctx)
	require.NoError(t, err)
	assert.Equal(t, payment.RecoverySummary{Attempted: 1, Failed: 1}, summary)
	for _, r := range h.repo.recoveries {
		assert.Equal(t, 2, r.AttemptNumber)
		assert.Equal(t, payment.RecoveryPending, r.Status)
		assert.Equal(t, h.clock.Now().Add(2*payment.RecoveryBackoff), r.NextRetryAt)
	}

	h.gateway.verification = payment.Verification{Verified: true, Status: "success", AmountMinor: 10000, Currency: "USD", ProviderReference: "trx-1"}
	h.clock.Advance(2 * payment.RecoveryBackoff)
	summary, err = h.svc.ProcessPendingRecoveries(ctx)
	require.NoError(t, err)
	assert.Equal(t, payment.RecoverySummary{Attempted: 1, Successful: 1}, summary)

	assert.Equal(t, payment.StatusSuccess, h.repo.payments[p.ID].Status)
	assert.Equal(t, invoice.StatusPaid, h.invoices.invoices["inv-1"].Status)
	for _, r := range h.repo.recoveries {
		assert.Equal(t, payment.RecoverySucceeded, r.Status)
	}
	for _, rec := range h.repo.reconciliations {
		assert.Equal(t, payment.ResultRecovered, rec.Result)
		assert.Equal(t, 2, rec.RetryCount)
	}
	assert.Contains(t, h.repo.actions(), payment.AuditRecovered)
}

func TestProcessPendingRecoveries_Exhausted(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	p := h.pending("ref-1")
	h.gateway.verifyErr = errors.New("down")
	_, err := h.svc.ReconcilePayment(ctx, p.ID)
	require.NoError(t, err)

	for i := 0; i < payment.MaxRecoveryAttempts; i++ {
		h.clock.Advance(time.Hour)
		summary, err := h.svc.ProcessPendingRecoveries(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, summary.Failed)
	}

	for _, r := range h.repo.recoveries {
		assert.Equal(t, payment.RecoveryFailed, r.Status)
		assert.Equal(t, payment.MaxRecoveryAttempts, r.AttemptNumber)
		assert.Equal(t, "down", r.LastError)
	}
	assert.Contains(t, h.repo.actions(), payment.AuditRecoveryFailed)

	h.clock.Advance(time.Hour)
	summary, err := h.svc.ProcessPendingRecoveries(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Attempted)
}
