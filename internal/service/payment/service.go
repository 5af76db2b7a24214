package payment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/invoice"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/notification"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/payment"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/report"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/webhook"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/workspace"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/database"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/email"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/money"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/validator"
)

const (
	webhookRateLimit  = 120
	webhookRateWindow = 60 * time.Second

	initCacheTTL   = 24 * time.Hour
	eventMarkerTTL = 72 * time.Hour

	reconcileWindow = 7 * 24 * time.Hour
	reconcileBatch  = 100
	recoveryBatch   = 50
)

// GatewayResolver returns the configured integration for a provider name
type GatewayResolver interface {
	Get(name string) (payment.Gateway, error)
}

// RecurringHook is told when a gateway payment settles an invoice
type RecurringHook interface {
	RecordPaymentSuccess(ctx context.Context, invoiceID, provider, providerTransactionID string) error
}

type Dependencies struct {
	Gateways    GatewayResolver
	Idempotency payment.IdempotencyStore
	Limiter     payment.RateLimiter
	Webhooks    webhook.Dispatcher
	Notifier    notification.Notifier
	Recurring   RecurringHook
	Reports     report.Invalidator
	Email       email.EmailService
}

type PaymentServiceImpl struct {
	db database.Transactor
	payment.PaymentRepository
	invoiceService invoice.InvoiceService
	workspaceRepo  workspace.WorkspaceRepository
	gateways       GatewayResolver
	idempotency    payment.IdempotencyStore
	limiter        payment.RateLimiter
	webhooks       webhook.Dispatcher
	notifier       notification.Notifier
	recurring      RecurringHook
	reports        report.Invalidator
	emailService   email.EmailService
	now            func() time.Time
}

func NewPaymentService(
	db database.Transactor,
	paymentRepo payment.PaymentRepository,
	invoiceService invoice.InvoiceService,
	workspaceRepo workspace.WorkspaceRepository,
	deps Dependencies,
) payment.PaymentService {
	return &PaymentServiceImpl{
		db:                db,
		PaymentRepository: paymentRepo,
		invoiceService:    invoiceService,
		workspaceRepo:     workspaceRepo,
		gateways:          deps.Gateways,
		idempotency:       deps.Idempotency,
		limiter:           deps.Limiter,
		webhooks:          deps.Webhooks,
		notifier:          deps.Notifier,
		recurring:         deps.Recurring,
		reports:           deps.Reports,
		emailService:      deps.Email,
		now:               time.Now,
	}
}

func (s *PaymentServiceImpl) audit(ctx context.Context, paymentID string, userID *string, action string, details map[string]any, ip string) error {
	if err := s.PaymentRepository.CreateAuditLog(ctx, payment.AuditLog{
		PaymentID: paymentID,
		UserID:    userID,
		Action:    action,
		Details:   details,
		IPAddress: ip,
	}); err != nil {
		return fmt.Errorf("failed to write payment audit log: %w", err)
	}
	return nil
}

func (s *PaymentServiceImpl) lockPayment(ctx context.Context, id string) (payment.Payment, error) {
	p, err := s.PaymentRepository.GetByIDForUpdate(ctx, id)
	if err != nil {
		if database.IsNotFound(err) {
			return payment.Payment{}, payment.ErrPaymentNotFound
		}
		return payment.Payment{}, fmt.Errorf("failed to lock payment: %w", err)
	}
	return p, nil
}

func referenceSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// ==================== Initialization ====================

// InitializePayment implements payment.PaymentService.
func (s *PaymentServiceImpl) InitializePayment(ctx context.Context, workspaceID, userID string, req payment.InitializePaymentRequest) (payment.InitializePaymentResponse, error) {
	if strings.TrimSpace(req.IdempotencyKey) == "" {
		return payment.InitializePaymentResponse{}, payment.ErrIdempotencyKeyRequired
	}
	if err := req.Validate(); err != nil {
		return payment.InitializePaymentResponse{}, err
	}

	cacheKey := "payment_init:" + userID + ":" + req.IdempotencyKey
	if cached, ok, err := s.idempotency.Get(ctx, cacheKey); err != nil {
		slog.Warn("Idempotency lookup failed", "key", cacheKey, "error", err)
	} else if ok {
		var resp payment.InitializePaymentResponse
		if err := json.Unmarshal(cached, &resp); err == nil {
			return resp, nil
		}
	}

	inv, err := s.invoiceService.GetInvoice(ctx, workspaceID, req.InvoiceID)
	if err != nil {
		return payment.InitializePaymentResponse{}, err
	}
	if !inv.CanRecordPayment() {
		return payment.InitializePaymentResponse{}, payment.ErrInvoiceNotPayable
	}
	amount := money.Round(req.Amount)
	if !amount.Equal(inv.AmountDue) {
		return payment.InitializePaymentResponse{}, payment.ErrAmountMustMatchDue
	}

	provider := req.Provider
	if provider == "" {
		ws, err := s.workspaceRepo.GetByID(ctx, workspaceID)
		if err != nil {
			if database.IsNotFound(err) {
				return payment.InitializePaymentResponse{}, workspace.ErrWorkspaceNotFound
			}
			return payment.InitializePaymentResponse{}, fmt.Errorf("failed to get workspace: %w", err)
		}
		provider = ws.PaymentProvider
	}
	if provider == "" {
		return payment.InitializePaymentResponse{}, payment.ErrProviderNotConfigured
	}
	gw, err := s.gateways.Get(provider)
	if err != nil {
		return payment.InitializePaymentResponse{}, err
	}

	reference := payment.GenerateReference(inv.ID, userID, referenceSuffix())
	session, err := gw.InitializeCheckout(ctx, payment.CheckoutRequest{
		Reference:   reference,
		Amount:      amount,
		Currency:    inv.Currency,
		Email:       inv.ClientEmail,
		Description: "Invoice " + inv.InvoiceNumber,
		CallbackURL: req.CallbackURL,
		Metadata: map[string]string{
			"invoice_id":   inv.ID,
			"workspace_id": workspaceID,
		},
	})
	if err != nil {
		slog.Error("Failed to open checkout", "provider", provider, "invoice_id", inv.ID, "error", err)
		return payment.InitializePaymentResponse{}, fmt.Errorf("%w: %v", payment.ErrProviderUnavailable, err)
	}

	var created payment.Payment
	err = s.db.WithTransaction(ctx, func(txCtx context.Context) error {
		created, err = s.PaymentRepository.Create(txCtx, payment.Payment{
			WorkspaceID:       workspaceID,
			InvoiceID:         inv.ID,
			InitiatedBy:       &userID,
			Amount:            amount,
			Currency:          inv.Currency,
			Status:            payment.StatusPending,
			Method:            payment.Method(provider),
			Reference:         reference,
			ProviderReference: session.ProviderReference,
			CheckoutURL:       session.CheckoutURL,
		})
		if err != nil {
			return fmt.Errorf("failed to create payment: %w", err)
		}
		return s.audit(txCtx, created.ID, &userID, payment.AuditInitialized, map[string]any{
			"provider": provider,
			"amount":   amount.StringFixed(2),
			"currency": inv.Currency,
		}, "")
	})
	if err != nil {
		return payment.InitializePaymentResponse{}, err
	}

	resp := payment.InitializePaymentResponse{
		PaymentID:   created.ID,
		Reference:   reference,
		Provider:    provider,
		Amount:      amount,
		Currency:    inv.Currency,
		CheckoutURL: session.CheckoutURL,
	}
	if body, err := json.Marshal(resp); err == nil {
		if err := s.idempotency.Set(ctx, cacheKey, body, initCacheTTL); err != nil {
			slog.Warn("Failed to cache payment initialization", "key", cacheKey, "error", err)
		}
	}
	return resp, nil
}

// ==================== Webhooks ====================

func eventKey(provider, eventID string) string {
	return "webhook_event:" + provider + ":" + eventID
}

// eventProcessed checks the cache marker first and the event table second
func (s *PaymentServiceImpl) eventProcessed(ctx context.Context, provider, eventID string) (bool, error) {
	if _, ok, err := s.idempotency.Get(ctx, eventKey(provider, eventID)); err != nil {
		slog.Warn("Webhook marker lookup failed", "provider", provider, "event_id", eventID, "error", err)
	} else if ok {
		return true, nil
	}
	exists, err := s.PaymentRepository.WebhookEventExists(ctx, provider, eventID)
	if err != nil {
		return false, fmt.Errorf("failed to check webhook event: %w", err)
	}
	return exists, nil
}

// settled carries what happens after a successful webhook commit
type settled struct {
	payment payment.Payment
	invoice invoice.Invoice
}

// HandleWebhook implements payment.PaymentService.
func (s *PaymentServiceImpl) HandleWebhook(ctx context.Context, req payment.WebhookRequest) (payment.WebhookResult, error) {
	if req.IP != "" {
		allowed, err := s.limiter.Allow(ctx, "webhook_rate:"+req.IP, webhookRateLimit, webhookRateWindow)
		if err != nil {
			slog.Warn("Webhook rate limiter unavailable", "ip", req.IP, "error", err)
		} else if !allowed {
			return payment.WebhookResult{}, payment.ErrRateLimited
		}
	}

	gw, err := s.gateways.Get(req.Provider)
	if err != nil {
		return payment.WebhookResult{}, err
	}
	if err := gw.VerifySignature(http.Header(req.Header), req.Body); err != nil {
		slog.Warn("Rejected webhook signature", "provider", req.Provider, "ip", req.IP)
		return payment.WebhookResult{}, payment.ErrInvalidSignature
	}
	event, err := gw.ParseEvent(req.Body)
	if err != nil {
		return payment.WebhookResult{}, payment.ErrInvalidPayload
	}
	if event.ID == "" {
		return payment.WebhookResult{}, payment.ErrMissingEventID
	}

	result := payment.WebhookResult{EventID: event.ID, Reference: event.Reference}
	processed, err := s.eventProcessed(ctx, req.Provider, event.ID)
	if err != nil {
		return payment.WebhookResult{}, err
	}
	if processed {
		result.Message = payment.WebhookAlreadyProcessed
		return result, nil
	}
	if !event.ChargeSucceeded {
		result.Message = payment.WebhookIgnored
		return result, nil
	}
	if event.Reference == "" {
		return payment.WebhookResult{}, payment.ErrMissingReference
	}

	sum := sha256.Sum256(req.Body)
	record := payment.WebhookEvent{
		Provider:    req.Provider,
		EventID:     event.ID,
		EventType:   event.Type,
		Reference:   event.Reference,
		PayloadHash: hex.EncodeToString(sum[:]),
		IPAddress:   req.IP,
	}

	// outcome is returned after commit so failure records persist
	var outcome error
	var done *settled
	err = s.db.WithTransaction(ctx, func(txCtx context.Context) error {
		p, err := s.PaymentRepository.GetByReferenceForUpdate(txCtx, event.Reference)
		if err != nil {
			if database.IsNotFound(err) {
				return payment.ErrPaymentNotFound
			}
			return fmt.Errorf("failed to lock payment: %w", err)
		}
		result.PaymentID = p.ID
		if p.Status == payment.StatusSuccess {
			result.Message = payment.WebhookAlreadySucceeded
			return nil
		}

		inserted, err := s.PaymentRepository.CreateWebhookEvent(txCtx, record)
		if err != nil {
			return fmt.Errorf("failed to record webhook event: %w", err)
		}
		if !inserted {
			result.Message = payment.WebhookAlreadyProcessed
			return nil
		}
		if err := s.audit(txCtx, p.ID, nil, payment.AuditWebhookReceived, map[string]any{
			"event_id":   event.ID,
			"event_type": event.Type,
		}, req.IP); err != nil {
			return err
		}

		v, err := gw.Verify(txCtx, p.Reference, p.ProviderReference)
		if err != nil {
			slog.Error("Provider verification failed", "provider", req.Provider, "reference", p.Reference, "error", err)
			return payment.ErrProviderUnavailable
		}

		rec, _ := compare(p, v)
		switch {
		case !v.Verified:
			result.Message = payment.WebhookNotVerified
			return s.reject(txCtx, &p, rec, payment.ResultFailed, payment.ErrorCodeNotVerified, payment.AuditVerificationFailed, req.IP)
		case !rec.AmountMatch:
			outcome = payment.ErrAmountMismatch
			return s.reject(txCtx, &p, rec, payment.ResultMismatch, payment.ErrorCodeAmountMismatch, payment.AuditAmountMismatch, req.IP)
		case !rec.CurrencyMatch:
			outcome = payment.ErrCurrencyMismatch
			return s.reject(txCtx, &p, rec, payment.ResultMismatch, payment.ErrorCodeCurrencyMismatch, payment.AuditCurrencyMismatch, req.IP)
		}

		inv, err := s.settle(txCtx, &p, v, payment.AuditVerified, req.IP)
		if err != nil {
			return err
		}
		rec.Result = payment.ResultVerified
		if _, err := s.PaymentRepository.CreateReconciliation(txCtx, rec); err != nil {
			return fmt.Errorf("failed to record reconciliation: %w", err)
		}
		result.Message = payment.WebhookProcessed
		done = &settled{payment: p, invoice: inv}
		return nil
	})
	if err != nil {
		return payment.WebhookResult{}, err
	}

	if err := s.idempotency.Set(ctx, eventKey(req.Provider, event.ID), []byte("1"), eventMarkerTTL); err != nil {
		slog.Warn("Failed to mark webhook event", "event_id", event.ID, "error", err)
	}
	if done != nil {
		s.afterSettle(ctx, done.payment, done.invoice)
	}
	if outcome != nil {
		return result, outcome
	}
	return result, nil
}

// compare builds the reconciliation row for a provider verification
func compare(p payment.Payment, v payment.Verification) (payment.Reconciliation, bool) {
	actual := money.FromMinor(v.AmountMinor)
	rec := payment.Reconciliation{
		PaymentID:        p.ID,
		ExpectedAmount:   p.Amount,
		ActualAmount:     &actual,
		ExpectedCurrency: p.Currency,
		ActualCurrency:   v.Currency,
		ExpectedStatus:   p.Status,
		ActualStatus:     v.Status,
		AmountMatch:      actual.Equal(p.Amount),
		CurrencyMatch:    strings.EqualFold(v.Currency, p.Currency),
		StatusMatch:      (v.Verified && p.Status == payment.StatusSuccess) || (!v.Verified && p.Status == payment.StatusPending),
	}
	return rec, !(rec.AmountMatch && rec.CurrencyMatch && rec.StatusMatch)
}

// reject fails a pending payment and stores the reconciliation explaining why
func (s *PaymentServiceImpl) reject(ctx context.Context, p *payment.Payment, rec payment.Reconciliation, result payment.ReconciliationResult, code, action, ip string) error {
	p.Status = payment.StatusFailed
	if err := s.PaymentRepository.Update(ctx, *p); err != nil {
		return fmt.Errorf("failed to mark payment failed: %w", err)
	}

	rec.Result = result
	rec.ErrorCode = code
	rec.ErrorMessage = fmt.Sprintf("expected %s %s, provider reported %s %s (%s)",
		rec.ExpectedAmount.StringFixed(2), rec.ExpectedCurrency, actualAmount(rec), rec.ActualCurrency, rec.ActualStatus)
	if _, err := s.PaymentRepository.CreateReconciliation(ctx, rec); err != nil {
		return fmt.Errorf("failed to record reconciliation: %w", err)
	}

	slog.Warn("Gateway payment rejected", "payment_id", p.ID, "reference", p.Reference, "code", code)
	return s.audit(ctx, p.ID, nil, action, map[string]any{
		"expected_amount":   rec.ExpectedAmount.StringFixed(2),
		"actual_amount":     actualAmount(rec),
		"expected_currency": rec.ExpectedCurrency,
		"actual_currency":   rec.ActualCurrency,
	}, ip)
}

func actualAmount(rec payment.Reconciliation) string {
	if rec.ActualAmount == nil {
		return ""
	}
	return rec.ActualAmount.StringFixed(2)
}

// settle marks a verified payment successful and applies it to its invoice
func (s *PaymentServiceImpl) settle(ctx context.Context, p *payment.Payment, v payment.Verification, action, ip string) (invoice.Invoice, error) {
	now := s.now()
	p.Status = payment.StatusSuccess
	p.PaidAt = &now
	if v.ProviderReference != "" {
		p.ProviderReference = v.ProviderReference
	}
	p.FeeAmount = money.FromMinor(v.FeeMinor)
	p.NetAmount = p.Amount.Sub(p.FeeAmount)
	if err := s.PaymentRepository.Update(ctx, *p); err != nil {
		return invoice.Invoice{}, fmt.Errorf("failed to mark payment successful: %w", err)
	}

	inv, err := s.invoiceService.ApplyGatewayPayment(ctx, p.InvoiceID, p.Amount)
	if err != nil {
		return invoice.Invoice{}, err
	}

	paymentID := p.ID
	if err := s.PaymentRepository.CreateTransaction(ctx, payment.Transaction{
		WorkspaceID: p.WorkspaceID,
		PaymentID:   &paymentID,
		Type:        payment.TransactionPayment,
		Amount:      p.Amount,
		Currency:    p.Currency,
		Status:      string(payment.StatusSuccess),
		ExternalID:  p.ProviderReference,
		Description: "Payment for invoice " + inv.InvoiceNumber,
	}); err != nil {
		return invoice.Invoice{}, fmt.Errorf("failed to record transaction: %w", err)
	}

	if err := s.audit(ctx, p.ID, nil, action, map[string]any{
		"provider":           string(p.Method),
		"amount":             p.Amount.StringFixed(2),
		"fee":                p.FeeAmount.StringFixed(2),
		"provider_reference": p.ProviderReference,
		"invoice_status":     string(inv.Status),
	}, ip); err != nil {
		return invoice.Invoice{}, err
	}
	return inv, nil
}

// afterSettle runs the side effects of a settled gateway payment once committed
func (s *PaymentServiceImpl) afterSettle(ctx context.Context, p payment.Payment, inv invoice.Invoice) {
	s.invalidateReports(ctx, p.WorkspaceID)
	s.webhooks.Dispatch(ctx, p.WorkspaceID, webhook.EventPaymentReceived, p.ToResponse())

	ws, err := s.workspaceRepo.GetByID(ctx, p.WorkspaceID)
	if err != nil {
		slog.Warn("Failed to load workspace after payment", "payment_id", p.ID, "error", err)
	} else {
		err := s.notifier.Notify(ctx, notification.Notice{
			WorkspaceID:  p.WorkspaceID,
			UserID:       ws.OwnerID,
			Kind:         notification.KindPaymentReceived,
			Title:        "Payment received",
			Body:         fmt.Sprintf("%s received for invoice %s", money.Format(p.Amount, p.Currency), inv.InvoiceNumber),
			ResourceType: "invoice",
			ResourceID:   inv.ID,
			Data: map[string]any{
				"payment_id":     p.ID,
				"invoice_number": inv.InvoiceNumber,
			},
		})
		if err != nil {
			slog.Warn("Failed to queue payment notification", "payment_id", p.ID, "error", err)
		}
		s.receipt(ctx, ws, p)
	}

	if inv.SourceType == invoice.SourceRecurring && s.recurring != nil {
		if err := s.recurring.RecordPaymentSuccess(ctx, inv.ID, string(p.Method), p.ProviderReference); err != nil {
			slog.Warn("Failed to reset recurring retry state", "invoice_id", inv.ID, "error", err)
		}
	}
}

func (s *PaymentServiceImpl) invalidateReports(ctx context.Context, workspaceID string) {
	if s.reports != nil {
		s.reports.InvalidateWorkspace(ctx, workspaceID)
	}
}

// receipt emails the client a confirmation of a successful payment
func (s *PaymentServiceImpl) receipt(ctx context.Context, ws workspace.Workspace, p payment.Payment) {
	inv, err := s.invoiceService.GetInvoice(ctx, p.WorkspaceID, p.InvoiceID)
	if err != nil || inv.ClientEmail == "" {
		return
	}
	paidAt := s.now()
	if p.PaidAt != nil {
		paidAt = *p.PaidAt
	}
	err = s.emailService.SendPaymentReceipt(inv.ClientEmail, email.ReceiptEmail{
		Branding:   email.Branding{BusinessName: ws.DisplayName(), BrandColor: ws.PrimaryColor},
		ClientName: inv.ClientName,
		Number:     inv.InvoiceNumber,
		Amount:     money.Format(p.Amount.Add(p.TipAmount), p.Currency),
		Reference:  p.Reference,
		PaidAt:     paidAt.Format("Jan 2, 2006"),
		Balance:    money.Format(inv.AmountDue, inv.Currency),
	})
	if err != nil {
		slog.Error("Failed to email payment receipt", "payment_id", p.ID, "to", inv.ClientEmail, "error", err)
	}
}

// ==================== Offline payments ====================

// RecordOfflinePayment implements payment.PaymentService.
func (s *PaymentServiceImpl) RecordOfflinePayment(ctx context.Context, workspaceID, userID, invoiceID string, req invoice.RecordPaymentRequest) (payment.PaymentResponse, error) {
	var created payment.Payment
	var settled invoice.Invoice
	err := s.db.WithTransaction(ctx, func(txCtx context.Context) error {
		applied, err := s.invoiceService.RecordPayment(txCtx, workspaceID, userID, invoiceID, req)
		if err != nil {
			return err
		}
		settled = applied.Invoice

		paidAt := s.now()
		if date, ok := validator.IsValidDate(req.PaymentDate); ok {
			paidAt = date
		}
		created, err = s.PaymentRepository.Create(txCtx, payment.Payment{
			WorkspaceID:       workspaceID,
			InvoiceID:         invoiceID,
			InitiatedBy:       &userID,
			Amount:            applied.Amount,
			TipAmount:         applied.TipAmount,
			Currency:          applied.Invoice.Currency,
			Status:            payment.StatusSuccess,
			Method:            payment.Method(req.Method),
			Reference:         payment.GenerateReference(invoiceID, userID, referenceSuffix()),
			ProviderReference: req.Reference,
			NetAmount:         applied.TransactionAmount,
			Notes:             req.Notes,
			PaidAt:            &paidAt,
		})
		if err != nil {
			return fmt.Errorf("failed to create payment: %w", err)
		}
		created.InvoiceNumber = applied.Invoice.InvoiceNumber

		paymentID := created.ID
		if err := s.PaymentRepository.CreateTransaction(txCtx, payment.Transaction{
			WorkspaceID: workspaceID,
			PaymentID:   &paymentID,
			Type:        payment.TransactionPayment,
			Amount:      applied.TransactionAmount,
			Currency:    created.Currency,
			Status:      string(payment.StatusSuccess),
			ExternalID:  req.Reference,
			Description: "Offline payment for invoice " + applied.Invoice.InvoiceNumber,
		}); err != nil {
			return fmt.Errorf("failed to record transaction: %w", err)
		}

		return s.audit(txCtx, created.ID, &userID, payment.AuditOfflineRecorded, map[string]any{
			"method":          req.Method,
			"amount":          applied.Amount.StringFixed(2),
			"tip_amount":      applied.TipAmount.StringFixed(2),
			"previous_status": string(applied.PreviousStatus),
			"invoice_status":  string(applied.Invoice.Status),
		}, "")
	})
	if err != nil {
		return payment.PaymentResponse{}, err
	}

	s.invalidateReports(ctx, workspaceID)
	if ws, err := s.workspaceRepo.GetByID(ctx, workspaceID); err == nil {
		s.receipt(ctx, ws, created)
	}
	if settled.SourceType == invoice.SourceRecurring && settled.Status == invoice.StatusPaid && s.recurring != nil {
		if err := s.recurring.RecordPaymentSuccess(ctx, settled.ID, string(created.Method), req.Reference); err != nil {
			slog.Warn("Failed to reset recurring retry state", "invoice_id", settled.ID, "error", err)
		}
	}
	return created.ToResponse(), nil
}

// ==================== Reconciliation ====================

// ReconcilePayment implements payment.PaymentService.
func (s *PaymentServiceImpl) ReconcilePayment(ctx context.Context, paymentID string) (payment.ReconciliationResponse, error) {
	var resp payment.ReconciliationResponse
	err := s.db.WithTransaction(ctx, func(txCtx context.Context) error {
		p, err := s.lockPayment(txCtx, paymentID)
		if err != nil {
			return err
		}
		if !p.Method.IsGateway() {
			return payment.ErrUnknownProvider
		}
		gw, err := s.gateways.Get(string(p.Method))
		if err != nil {
			return err
		}

		var rec payment.Reconciliation
		v, verr := gw.Verify(txCtx, p.Reference, p.ProviderReference)
		if verr != nil {
			rec = payment.Reconciliation{
				PaymentID:        p.ID,
				ExpectedAmount:   p.Amount,
				ExpectedCurrency: p.Currency,
				ExpectedStatus:   p.Status,
				Result:           payment.ResultFailed,
				ErrorCode:        payment.ErrorCodeRecoveryError,
				ErrorMessage:     verr.Error(),
			}
		} else {
			var mismatch bool
			rec, mismatch = compare(p, v)
			rec.Result = payment.ResultVerified
			if mismatch {
				rec.Result = payment.ResultMismatch
				switch {
				case !rec.AmountMatch:
					rec.ErrorCode = payment.ErrorCodeAmountMismatch
				case !rec.CurrencyMatch:
					rec.ErrorCode = payment.ErrorCodeCurrencyMismatch
				default:
					rec.ErrorCode = payment.ErrorCodeNotVerified
				}
				rec.ErrorMessage = fmt.Sprintf("payment is %s, provider reports %s", p.Status, v.Status)
			}
		}

		rec, err = s.PaymentRepository.CreateReconciliation(txCtx, rec)
		if err != nil {
			return fmt.Errorf("failed to record reconciliation: %w", err)
		}

		queued := false
		if rec.Result == payment.ResultMismatch || (rec.Result == payment.ResultFailed && rec.RetryCount < payment.MaxRecoveryAttempts) {
			recID := rec.ID
			if err := s.PaymentRepository.CreateRecovery(txCtx, payment.Recovery{
				PaymentID:        p.ID,
				ReconciliationID: &recID,
				AttemptNumber:    1,
				MaxAttempts:      payment.MaxRecoveryAttempts,
				Strategy:         payment.RecoveryStrategyWebhookRetry,
				Status:           payment.RecoveryPending,
				NextRetryAt:      s.now().Add(payment.RecoveryBackoff),
			}); err != nil {
				return fmt.Errorf("failed to schedule recovery: %w", err)
			}
			queued = true
		}

		if err := s.audit(txCtx, p.ID, nil, payment.AuditReconciled, map[string]any{
			"result":          string(rec.Result),
			"error_code":      rec.ErrorCode,
			"recovery_queued": queued,
		}, ""); err != nil {
			return err
		}

		resp = payment.ReconciliationResponse{
			ID:             rec.ID,
			PaymentID:      p.ID,
			Result:         rec.Result,
			AmountMatch:    rec.AmountMatch,
			CurrencyMatch:  rec.CurrencyMatch,
			StatusMatch:    rec.StatusMatch,
			ErrorCode:      rec.ErrorCode,
			ErrorMessage:   rec.ErrorMessage,
			RecoveryQueued: queued,
		}
		return nil
	})
	if err != nil {
		return payment.ReconciliationResponse{}, err
	}
	return resp, nil
}

// ReconcileRecent implements payment.PaymentService.
func (s *PaymentServiceImpl) ReconcileRecent(ctx context.Context) (payment.ReconcileSummary, error) {
	payments, err := s.PaymentRepository.ListForReconciliation(ctx, s.now().Add(-reconcileWindow), reconcileBatch)
	if err != nil {
		return payment.ReconcileSummary{}, fmt.Errorf("failed to list payments for reconciliation: %w", err)
	}

	var summary payment.ReconcileSummary
	for _, p := range payments {
		if !p.Method.IsGateway() {
			continue
		}
		summary.Checked++
		resp, err := s.ReconcilePayment(ctx, p.ID)
		if err != nil {
			slog.Error("Failed to reconcile payment", "payment_id", p.ID, "error", err)
			summary.Failed++
			continue
		}
		switch resp.Result {
		case payment.ResultVerified:
			summary.Verified++
		case payment.ResultMismatch:
			summary.Mismatch++
		default:
			summary.Failed++
		}
	}

	slog.Info("Payment reconciliation finished",
		"checked", summary.Checked, "verified", summary.Verified, "mismatch", summary.Mismatch, "failed", summary.Failed)
	return summary, nil
}

// ProcessPendingRecoveries implements payment.PaymentService.
func (s *PaymentServiceImpl) ProcessPendingRecoveries(ctx context.Context) (payment.RecoverySummary, error) {
	recoveries, err := s.PaymentRepository.ListDueRecoveries(ctx, s.now(), recoveryBatch)
	if err != nil {
		return payment.RecoverySummary{}, fmt.Errorf("failed to list due recoveries: %w", err)
	}

	var summary payment.RecoverySummary
	for _, r := range recoveries {
		summary.Attempted++
		ok, err := s.attemptRecovery(ctx, r)
		if err != nil {
			slog.Error("Payment recovery errored", "recovery_id", r.ID, "payment_id", r.PaymentID, "error", err)
			summary.Failed++
			continue
		}
		if ok {
			summary.Successful++
		} else {
			summary.Failed++
		}
	}
	return summary, nil
}

var errNotRecoverable = errors.New("provider does not confirm the charge")

// attemptRecovery runs one recovery attempt and reports whether the payment settled
func (s *PaymentServiceImpl) attemptRecovery(ctx context.Context, r payment.Recovery) (bool, error) {
	var done *settled
	succeeded := false
	err := s.db.WithTransaction(ctx, func(txCtx context.Context) error {
		p, err := s.lockPayment(txCtx, r.PaymentID)
		if err != nil {
			return err
		}

		var rec *payment.Reconciliation
		if r.ReconciliationID != nil {
			found, err := s.PaymentRepository.GetReconciliation(txCtx, *r.ReconciliationID)
			if err != nil && !database.IsNotFound(err) {
				return fmt.Errorf("failed to get reconciliation: %w", err)
			}
			if err == nil {
				rec = &found
			}
		}

		attemptErr := errNotRecoverable
		var v payment.Verification
		if p.Status == payment.StatusSuccess {
			attemptErr = nil
		} else if gw, err := s.gateways.Get(string(p.Method)); err != nil {
			attemptErr = err
		} else if v, err = gw.Verify(txCtx, p.Reference, p.ProviderReference); err != nil {
			attemptErr = err
		} else if v.Verified && money.FromMinor(v.AmountMinor).Equal(p.Amount) && strings.EqualFold(v.Currency, p.Currency) {
			attemptErr = nil
		}

		now := s.now()
		if attemptErr == nil {
			if p.Status != payment.StatusSuccess {
				inv, err := s.settle(txCtx, &p, v, payment.AuditRecovered, "")
				if err != nil {
					return err
				}
				done = &settled{payment: p, invoice: inv}
			}
			r.Status = payment.RecoverySucceeded
			r.CompletedAt = &now
			r.LastError = ""
			if rec != nil {
				rec.Result = payment.ResultRecovered
				rec.RetryCount++
			}
			succeeded = true
		} else {
			r.LastError = attemptErr.Error()
			if r.CanRetry() {
				r.AttemptNumber++
				r.NextRetryAt = r.NextAttemptAt(now)
			} else {
				r.Status = payment.RecoveryFailed
				r.CompletedAt = &now
				if err := s.audit(txCtx, p.ID, nil, payment.AuditRecoveryFailed, map[string]any{
					"attempts": r.AttemptNumber,
					"error":    r.LastError,
				}, ""); err != nil {
					return err
				}
			}
			if rec != nil {
				rec.RetryCount++
			}
		}

		if err := s.PaymentRepository.UpdateRecovery(txCtx, r); err != nil {
			return fmt.Errorf("failed to update recovery: %w", err)
		}
		if rec != nil {
			if err := s.PaymentRepository.UpdateReconciliation(txCtx, *rec); err != nil {
				return fmt.Errorf("failed to update reconciliation: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if done != nil {
		s.afterSettle(ctx, done.payment, done.invoice)
	}
	return succeeded, nil
}

// ==================== Queries ====================

// Get implements payment.PaymentService.
func (s *PaymentServiceImpl) Get(ctx context.Context, workspaceID, id string) (payment.PaymentResponse, error) {
	p, err := s.PaymentRepository.GetByID(ctx, workspaceID, id)
	if err != nil {
		if database.IsNotFound(err) {
			return payment.PaymentResponse{}, payment.ErrPaymentNotFound
		}
		return payment.PaymentResponse{}, fmt.Errorf("failed to get payment: %w", err)
	}
	return p.ToResponse(), nil
}

// List implements payment.PaymentService.
func (s *PaymentServiceImpl) List(ctx context.Context, filter payment.PaymentFilter) ([]payment.PaymentResponse, int64, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 || filter.Limit > 100 {
		filter.Limit = 20
	}
	payments, total, err := s.PaymentRepository.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list payments: %w", err)
	}
	resp := make([]payment.PaymentResponse, 0, len(payments))
	for i := range payments {
		resp = append(resp, payments[i].ToResponse())
	}
	return resp, total, nil
}

// ListByInvoice implements payment.PaymentService.
func (s *PaymentServiceImpl) ListByInvoice(ctx context.Context, workspaceID, invoiceID string) ([]payment.PaymentResponse, error) {
	if _, err := s.invoiceService.GetInvoice(ctx, workspaceID, invoiceID); err != nil {
		return nil, err
	}
	payments, err := s.PaymentRepository.ListByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoice payments: %w", err)
	}
	resp := make([]payment.PaymentResponse, 0, len(payments))
	for i := range payments {
		resp = append(resp, payments[i].ToResponse())
	}
	return resp, nil
}

// ListTransactions implements payment.PaymentService.
func (s *PaymentServiceImpl) ListTransactions(ctx context.Context, workspaceID string, page, limit int) ([]payment.TransactionResponse, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	txs, total, err := s.PaymentRepository.ListTransactions(ctx, workspaceID, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list transactions: %w", err)
	}
	resp := make([]payment.TransactionResponse, 0, len(txs))
	for i := range txs {
		resp = append(resp, txs[i].ToResponse())
	}
	return resp, total, nil
}

// ListAuditLogs implements payment.PaymentService.
func (s *PaymentServiceImpl) ListAuditLogs(ctx context.Context, workspaceID, paymentID string) ([]payment.AuditLogResponse, error) {
	if _, err := s.Get(ctx, workspaceID, paymentID); err != nil {
		return nil, err
	}
	logs, err := s.PaymentRepository.ListAuditLogs(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment audit logs: %w", err)
	}
	resp := make([]payment.AuditLogResponse, 0, len(logs))
	for i := range logs {
		resp = append(resp, logs[i].ToResponse())
	}
	return resp, nil
}
