package invoice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/client"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/invoice"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/notification"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/report"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/webhook"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/workspace"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/database"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/email"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/money"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/pdf"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/utils"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/service/file"
)

const (
	defaultTermsDays = 30
	tokenBytes       = 24
	dueDateLayout    = "Jan 2, 2006"
)

type Repositories struct {
	Invoices   invoice.InvoiceRepository
	Clients    client.ClientRepository
	Workspaces workspace.WorkspaceRepository
}

type InvoiceServiceImpl struct {
	db database.Transactor
	invoice.InvoiceRepository
	clientRepo    client.ClientRepository
	workspaceRepo workspace.WorkspaceRepository
	webhooks      webhook.Dispatcher
	notifier      notification.Notifier
	reports       report.Invalidator
	emailService  email.EmailService
	renderer      pdf.Renderer
	fileService   file.FileService
	publicURL     string
	now           func() time.Time
}

func NewInvoiceService(
	db database.Transactor,
	repos Repositories,
	webhooks webhook.Dispatcher,
	notifier notification.Notifier,
	reports report.Invalidator,
	emailService email.EmailService,
	renderer pdf.Renderer,
	fileService file.FileService,
	frontendURL string,
) invoice.InvoiceService {
	return &InvoiceServiceImpl{
		db:                db,
		InvoiceRepository: repos.Invoices,
		clientRepo:        repos.Clients,
		workspaceRepo:     repos.Workspaces,
		webhooks:          webhooks,
		notifier:          notifier,
		reports:           reports,
		emailService:      emailService,
		renderer:          renderer,
		fileService:       fileService,
		publicURL:         strings.TrimRight(frontendURL, "/") + "/public/invoices/",
		now:               time.Now,
	}
}

func (s *InvoiceServiceImpl) today() time.Time {
	y, m, d := s.now().UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (s *InvoiceServiceImpl) get(ctx context.Context, workspaceID, id string) (invoice.Invoice, error) {
	inv, err := s.InvoiceRepository.GetByID(ctx, workspaceID, id)
	if err != nil {
		if database.IsNotFound(err) {
			return invoice.Invoice{}, invoice.ErrInvoiceNotFound
		}
		return invoice.Invoice{}, fmt.Errorf("failed to get invoice: %w", err)
	}
	return inv, nil
}

// lock re-reads the invoice with a row lock; callers must hold a transaction
func (s *InvoiceServiceImpl) lock(ctx context.Context, workspaceID, id string) (invoice.Invoice, error) {
	inv, err := s.InvoiceRepository.GetByIDForUpdate(ctx, id)
	if err != nil {
		if database.IsNotFound(err) {
			return invoice.Invoice{}, invoice.ErrInvoiceNotFound
		}
		return invoice.Invoice{}, fmt.Errorf("failed to lock invoice: %w", err)
	}
	if workspaceID != "" && inv.WorkspaceID != workspaceID {
		return invoice.Invoice{}, invoice.ErrInvoiceNotFound
	}
	return inv, nil
}

func (s *InvoiceServiceImpl) getWorkspace(ctx context.Context, workspaceID string) (workspace.Workspace, error) {
	ws, err := s.workspaceRepo.GetByID(ctx, workspaceID)
	if err != nil {
		if database.IsNotFound(err) {
			return workspace.Workspace{}, workspace.ErrWorkspaceNotFound
		}
		return workspace.Workspace{}, fmt.Errorf("failed to get workspace: %w", err)
	}
	return ws, nil
}

func (s *InvoiceServiceImpl) getClient(ctx context.Context, workspaceID, clientID string) (client.Client, error) {
	c, err := s.clientRepo.GetByID(ctx, workspaceID, clientID)
	if err != nil {
		if database.IsNotFound(err) {
			return client.Client{}, invoice.ErrClientNotFound
		}
		return client.Client{}, fmt.Errorf("failed to get client: %w", err)
	}
	return c, nil
}

// nextNumber allocates {prefix}-{year}-{seq:0000} from the workspace counter row
func (s *InvoiceServiceImpl) nextNumber(ctx context.Context, ws workspace.Workspace, issued time.Time) (string, error) {
	seq, err := s.workspaceRepo.NextSequence(ctx, ws.ID, workspace.SequenceInvoice, issued.Year())
	if err != nil {
		return "", fmt.Errorf("failed to allocate invoice number: %w", err)
	}
	prefix := ws.InvoicePrefix
	if prefix == "" {
		prefix = "INV"
	}
	return fmt.Sprintf("%s-%d-%04d", prefix, issued.Year(), seq), nil
}

func (s *InvoiceServiceImpl) activity(ctx context.Context, inv invoice.Invoice, userID, action string, from invoice.Status, details string) error {
	a := invoice.Activity{
		InvoiceID:  inv.ID,
		Action:     action,
		FromStatus: from,
		ToStatus:   inv.Status,
		Details:    details,
	}
	if userID != "" {
		a.UserID = &userID
	}
	if err := s.InvoiceRepository.CreateActivity(ctx, a); err != nil {
		return fmt.Errorf("failed to record invoice activity: %w", err)
	}
	return nil
}

// changed notifies subscribers of a committed invoice write
func (s *InvoiceServiceImpl) changed(ctx context.Context, inv invoice.Invoice, events ...webhook.Event) {
	for _, e := range events {
		s.webhooks.Dispatch(ctx, inv.WorkspaceID, e, inv.ToResponse())
	}
	s.reports.InvalidateWorkspace(ctx, inv.WorkspaceID)
}

// notify sends an in-app notification to the invoice creator, or the workspace owner
func (s *InvoiceServiceImpl) notify(ctx context.Context, inv invoice.Invoice, kind notification.Kind, title, message string) {
	userID := ""
	if inv.CreatedBy != nil {
		userID = *inv.CreatedBy
	} else if ws, err := s.workspaceRepo.GetByID(ctx, inv.WorkspaceID); err == nil {
		userID = ws.OwnerID
	}
	if userID == "" {
		return
	}
	err := s.notifier.Notify(ctx, notification.Notice{
		WorkspaceID:  inv.WorkspaceID,
		UserID:       userID,
		Kind:         kind,
		Title:        title,
		Body:         message,
		ResourceType: "invoice",
		ResourceID:   inv.ID,
		Data:         map[string]any{"invoice_number": inv.InvoiceNumber},
	})
	if err != nil {
		slog.Warn("Failed to queue invoice notification", "invoice_id", inv.ID, "type", kind, "error", err)
	}
}

func parseDate(value string, fallback time.Time) time.Time {
	if value == "" {
		return fallback
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return fallback
	}
	return t
}

func statusEvent(status invoice.Status) webhook.Event {
	switch status {
	case invoice.StatusSent:
		return webhook.EventInvoiceSent
	case invoice.StatusPaid:
		return webhook.EventInvoicePaid
	case invoice.StatusOverdue:
		return webhook.EventInvoiceOverdue
	case invoice.StatusVoid:
		return webhook.EventInvoiceVoided
	}
	return webhook.EventInvoiceUpdated
}

// Create implements invoice.InvoiceService.
// Subtle: this method shadows the method (InvoiceRepository).Create of InvoiceServiceImpl.InvoiceRepository.
func (s *InvoiceServiceImpl) Create(ctx context.Context, workspaceID, userID string, req invoice.CreateInvoiceRequest) (invoice.InvoiceResponse, error) {
	if err := req.Validate(); err != nil {
		return invoice.InvoiceResponse{}, err
	}

	ws, err := s.getWorkspace(ctx, workspaceID)
	if err != nil {
		return invoice.InvoiceResponse{}, err
	}
	c, err := s.getClient(ctx, workspaceID, req.ClientID)
	if err != nil {
		return invoice.InvoiceResponse{}, err
	}

	currency := req.Currency
	if currency == "" {
		currency = c.Currency
	}
	if currency == "" {
		currency = ws.DefaultCurrency
	}
	rate := req.ExchangeRate
	if !rate.IsPositive() {
		rate = decimal.NewFromInt(1)
	}
	issue := parseDate(req.IssueDate, s.today())

	inv := invoice.Invoice{
		WorkspaceID:         workspaceID,
		ClientID:            c.ID,
		Status:              invoice.StatusDraft,
		SourceType:          invoice.SourceManual,
		IssueDate:           issue,
		DueDate:             parseDate(req.DueDate, issue.AddDate(0, 0, defaultTermsDays)),
		Currency:            money.NormalizeCurrency(currency),
		ExchangeRate:        rate,
		TaxMode:             req.TaxMode,
		DiscountType:        req.DiscountType,
		GlobalDiscountValue: req.GlobalDiscountValue,
		ClientMemo:          req.ClientMemo,
		InternalNotes:       req.InternalNotes,
		TermsConditions:     req.TermsConditions,
		Items:               invoice.ToItems(req.Items),
	}
	if userID != "" {
		inv.CreatedBy = &userID
	}

	created, err := s.insert(ctx, ws, inv, userID, "")
	if err != nil {
		return invoice.InvoiceResponse{}, err
	}
	return created.ToResponse(), nil
}

// insert numbers, totals and stores a new draft, then announces it
func (s *InvoiceServiceImpl) insert(ctx context.Context, ws workspace.Workspace, inv invoice.Invoice, userID, details string) (invoice.Invoice, error) {
	if inv.TaxMode == "" {
		inv.TaxMode = invoice.TaxExclusive
	}
	if inv.DiscountType == "" {
		inv.DiscountType = invoice.DiscountFlat
	}
	if inv.ExchangeRate.IsZero() {
		inv.ExchangeRate = decimal.NewFromInt(1)
	}
	inv.AmountPaid = decimal.Zero
	inv.Recalculate()

	token, err := utils.RandomToken(tokenBytes)
	if err != nil {
		return invoice.Invoice{}, fmt.Errorf("failed to generate public token: %w", err)
	}
	inv.PublicToken = token

	var created invoice.Invoice
	err = s.db.WithTransaction(ctx, func(txCtx context.Context) error {
		if inv.InvoiceNumber == "" {
			number, err := s.nextNumber(txCtx, ws, inv.IssueDate)
			if err != nil {
				return err
			}
			inv.InvoiceNumber = number
		}

		created, err = s.InvoiceRepository.Create(txCtx, inv)
		if err != nil {
			if database.IsUniqueViolation(err, "invoices_workspace_id_invoice_number_key") {
				return invoice.ErrDuplicateNumber
			}
			return fmt.Errorf("failed to create invoice: %w", err)
		}
		return s.activity(txCtx, created, userID, invoice.ActivityCreated, "", details)
	})
	if err != nil {
		return invoice.Invoice{}, err
	}

	s.changed(ctx, created, webhook.EventInvoiceCreated)
	return created, nil
}

// Generate implements invoice.InvoiceService.
func (s *InvoiceServiceImpl) Generate(ctx context.Context, req invoice.GenerateRequest) (invoice.Invoice, error) {
	if len(req.Items) == 0 {
		return invoice.Invoice{}, errors.New("generated invoice needs at least one item")
	}

	ws, err := s.getWorkspace(ctx, req.WorkspaceID)
	if err != nil {
		return invoice.Invoice{}, err
	}
	c, err := s.getClient(ctx, req.WorkspaceID, req.ClientID)
	if err != nil {
		return invoice.Invoice{}, err
	}

	currency := req.Currency
	if currency == "" {
		currency = c.Currency
	}
	if currency == "" {
		currency = ws.DefaultCurrency
	}
	due := req.DueDate
	if due.IsZero() {
		due = req.IssueDate.AddDate(0, 0, defaultTermsDays)
	}

	userID := ""
	if req.CreatedBy != nil {
		userID = *req.CreatedBy
	}

	return s.insert(ctx, ws, invoice.Invoice{
		WorkspaceID:     req.WorkspaceID,
		ClientID:        c.ID,
		CreatedBy:       req.CreatedBy,
		InvoiceNumber:   req.InvoiceNumber,
		Status:          invoice.StatusDraft,
		SourceType:      req.Source,
		SourceID:        req.SourceID,
		IssueDate:       req.IssueDate,
		DueDate:         due,
		Currency:        money.NormalizeCurrency(currency),
		ClientMemo:      req.ClientMemo,
		TermsConditions: req.TermsConditions,
		Items:           invoice.ToItems(req.Items),
	}, userID, "generated from "+string(req.Source))
}

// Get implements invoice.InvoiceService.
func (s *InvoiceServiceImpl) Get(ctx context.Context, workspaceID, id string) (invoice.InvoiceResponse, error) {
	inv, err := s.get(ctx, workspaceID, id)
	if err != nil {
		return invoice.InvoiceResponse{}, err
	}
	return inv.ToResponse(), nil
}

// GetInvoice implements invoice.InvoiceService.
func (s *InvoiceServiceImpl) GetInvoice(ctx context.Context, workspaceID, id string) (invoice.Invoice, error) {
	return s.get(ctx, workspaceID, id)
}

// List implements invoice.InvoiceService.
func (s *InvoiceServiceImpl) List(ctx context.Context, filter invoice.InvoiceFilter) ([]invoice.InvoiceResponse, int64, error) {
	if filter.Status != nil && !filter.Status.IsValid() {
		filter.Status = nil
	}
	invoices, total, err := s.InvoiceRepository.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list invoices: %w", err)
	}

	resp := make([]invoice.InvoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		r := inv.ToResponse()
		r.Items = nil
		resp = append(resp, r)
	}
	return resp, total, nil
}

// Update implements invoice.InvoiceService.
// Subtle: this method shadows the method (InvoiceRepository).Update of InvoiceServiceImpl.InvoiceRepository.
func (s *InvoiceServiceImpl) Update(ctx context.Context, workspaceID, userID, id string, req invoice.UpdateInvoiceRequest) (invoice.InvoiceResponse, error) {
	if err := req.Validate(); err != nil {
		return invoice.InvoiceResponse{}, err
	}

	var updated invoice.Invoice
	err := s.db.WithTransaction(ctx, func(txCtx context.Context) error {
		inv, err := s.lock(txCtx, workspaceID, id)
		if err != nil {
			return err
		}
		if inv.Status != invoice.StatusDraft {
			return invoice.ErrNotDraft
		}

		inv.IssueDate = parseDate(req.IssueDate, inv.IssueDate)
		inv.DueDate = parseDate(req.DueDate, inv.DueDate)
		if req.Currency != "" {
			inv.Currency = money.NormalizeCurrency(req.Currency)
		}
		if req.TaxMode != "" {
			inv.TaxMode = req.TaxMode
		}
		if req.DiscountType != "" {
			inv.DiscountType = req.DiscountType
		}
		inv.GlobalDiscountValue = req.GlobalDiscountValue
		inv.ClientMemo = req.ClientMemo
		inv.InternalNotes = req.InternalNotes
		inv.TermsConditions = req.TermsConditions
		inv.Items = invoice.ToItems(req.Items)
		inv.Recalculate()

		if err := s.InvoiceRepository.Update(txCtx, inv); err != nil {
			return fmt.Errorf("failed to update invoice: %w", err)
		}
		if err := s.InvoiceRepository.ReplaceItems(txCtx, inv.ID, inv.Items); err != nil {
			return fmt.Errorf("failed to replace invoice items: %w", err)
		}
		if err := s.activity(txCtx, inv, userID, invoice.ActivityUpdated, inv.Status, ""); err != nil {
			return err
		}
		updated = inv
		return nil
	})
	if err != nil {
		return invoice.InvoiceResponse{}, err
	}

	s.changed(ctx, updated, webhook.EventInvoiceUpdated)
	return updated.ToResponse(), nil
}

// Delete implements invoice.InvoiceService.
// Subtle: this method shadows the method (InvoiceRepository).Delete of InvoiceServiceImpl.InvoiceRepository.
func (s *InvoiceServiceImpl) Delete(ctx context.Context, workspaceID, userID, id string) error {
	inv, err := s.get(ctx, workspaceID, id)
	if err != nil {
		return err
	}
	if inv.Status != invoice.StatusDraft {
		return invoice.ErrNotDraft
	}

	if err := s.InvoiceRepository.Delete(ctx, workspaceID, id); err != nil {
		if database.IsNotFound(err) {
			return invoice.ErrInvoiceNotFound
		}
		return fmt.Errorf("failed to delete invoice: %w", err)
	}

	slog.Info("Invoice deleted", "invoice_id", id, "workspace_id", workspaceID, "user_id", userID)
	s.changed(ctx, inv, webhook.EventInvoiceDeleted)
	return nil
}

// Duplicate implements invoice.InvoiceService.
func (s *InvoiceServiceImpl) Duplicate(ctx context.Context, workspaceID, userID, id string, req invoice.DuplicateRequest) (invoice.InvoiceResponse, error) {
	src, err := s.get(ctx, workspaceID, id)
	if err != nil {
		return invoice.InvoiceResponse{}, err
	}
	ws, err := s.getWorkspace(ctx, workspaceID)
	if err != nil {
		return invoice.InvoiceResponse{}, err
	}

	terms := defaultTermsDays
	if req.PaymentTermsDays != nil {
		terms = *req.PaymentTermsDays
	}
	issue := s.today()

	items := make([]invoice.Item, 0, len(src.Items))
	for _, it := range src.Items {
		items = append(items, invoice.Item{
			Description:   it.Description,
			Quantity:      it.Quantity,
			UnitPrice:     it.UnitPrice,
			TaxRate:       it.TaxRate,
			DiscountType:  it.DiscountType,
			DiscountValue: it.DiscountValue,
			SortOrder:     it.SortOrder,
		})
	}

	dup := invoice.Invoice{
		WorkspaceID:         workspaceID,
		ClientID:            src.ClientID,
		Status:              invoice.StatusDraft,
		SourceType:          invoice.SourceDuplicate,
		SourceID:            &src.ID,
		IssueDate:           issue,
		DueDate:             issue.AddDate(0, 0, terms),
		Currency:            src.Currency,
		ExchangeRate:        src.ExchangeRate,
		TaxMode:             src.TaxMode,
		DiscountType:        src.DiscountType,
		GlobalDiscountValue: src.GlobalDiscountValue,
		ClientMemo:          src.ClientMemo,
		InternalNotes:       src.InternalNotes,
		TermsConditions:     src.TermsConditions,
		Items:               items,
	}
	if userID != "" {
		dup.CreatedBy = &userID
	}

	created, err := s.insert(ctx, ws, dup, userID, "duplicated from "+src.InvoiceNumber)
	if err != nil {
		return invoice.InvoiceResponse{}, err
	}
	if err := s.activity(ctx, src, userID, invoice.ActivityDuplicated, src.Status, "duplicated as "+created.InvoiceNumber); err != nil {
		slog.Warn("Failed to record duplicate activity", "invoice_id", src.ID, "error", err)
	}
	return created.ToResponse(), nil
}

// ==================== Lifecycle ====================

// moveTo applies a validated transition and its timestamps to inv
func (s *InvoiceServiceImpl) moveTo(inv *invoice.Invoice, target invoice.Status, reason string) error {
	if !inv.Status.CanTransitionTo(target) {
		return invoice.ErrInvalidTransition
	}
	if (target == invoice.StatusVoid || target == invoice.StatusWriteOff) && strings.TrimSpace(reason) == "" {
		return invoice.ErrReasonRequired
	}

	now := s.now()
	switch target {
	case invoice.StatusSent:
		inv.SentAt = &now
	case invoice.StatusPaid:
		inv.AmountPaid = inv.TotalAmount
		inv.AmountDue = decimal.Zero
		inv.PaidAt = &now
	case invoice.StatusVoid:
		inv.VoidedAt = &now
		inv.VoidReason = strings.TrimSpace(reason)
	}
	inv.Status = target
	return nil
}

func activityFor(target invoice.Status) string {
	switch target {
	case invoice.StatusSent:
		return invoice.ActivitySent
	case invoice.StatusVoid:
		return invoice.ActivityVoided
	case invoice.StatusWriteOff:
		return invoice.ActivityWrittenOff
	}
	return invoice.ActivityStatusChanged
}

func (s *InvoiceServiceImpl) transition(ctx context.Context, workspaceID, userID, id string, target invoice.Status, reason string) (invoice.Invoice, error) {
	var (
		updated invoice.Invoice
		from    invoice.Status
	)
	err := s.db.WithTransaction(ctx, func(txCtx context.Context) error {
		inv, err := s.lock(txCtx, workspaceID, id)
		if err != nil {
			return err
		}
		from = inv.Status
		if err := s.moveTo(&inv, target, reason); err != nil {
			return err
		}
		if err := s.InvoiceRepository.Update(txCtx, inv); err != nil {
			return fmt.Errorf("failed to update invoice status: %w", err)
		}
		if err := s.activity(txCtx, inv, userID, activityFor(target), from, strings.TrimSpace(reason)); err != nil {
			return err
		}
		updated = inv
		return nil
	})
	if err != nil {
		return invoice.Invoice{}, err
	}

	slog.Info("Invoice status changed", "invoice_id", id, "from", from, "to", target)
	s.changed(ctx, updated, statusEvent(target))
	return updated, nil
}

// Transition implements invoice.InvoiceService.
func (s *InvoiceServiceImpl) Transition(ctx context.Context, workspaceID, userID, id string, req invoice.TransitionRequest) (invoice.InvoiceResponse, error) {
	if err := req.Validate(); err != nil {
		return invoice.InvoiceResponse{}, err
	}
	inv, err := s.transition(ctx, workspaceID, userID, id, req.Status, req.Reason)
	if err != nil {
		return invoice.InvoiceResponse{}, err
	}
	return inv.ToResponse(), nil
}

// Void implements invoice.InvoiceService.
func (s *InvoiceServiceImpl) Void(ctx context.Context, workspaceID, userID, id, reason string) (invoice.InvoiceResponse, error) {
	inv, err := s.transition(ctx, workspaceID, userID, id, invoice.StatusVoid, reason)
	if err != nil {
		return invoice.InvoiceResponse{}, err
	}
	return inv.ToResponse(), nil
}

// WriteOff implements invoice.InvoiceService.
func (s *InvoiceServiceImpl) WriteOff(ctx context.Context, workspaceID, userID, id, reason string) (invoice.InvoiceResponse, error) {
	inv, err := s.transition(ctx, workspaceID, userID, id, invoice.StatusWriteOff, reason)
	if err != nil {
		return invoice.InvoiceResponse{}, err
	}
	return inv.ToResponse(), nil
}

// Send implements invoice.InvoiceService.
// Drafts move to sent; open invoices are emailed again without a status change.
func (s *InvoiceServiceImpl) Send(ctx context.Context, workspaceID, userID, id string) (invoice.InvoiceResponse, error) {
	current, err := s.get(ctx, workspaceID, id)
	if err != nil {
		return invoice.InvoiceResponse{}, err
	}
	if current.Status != invoice.StatusDraft && !current.Status.IsOpen() {
		return invoice.InvoiceResponse{}, invoice.ErrCannotSend
	}
	if strings.TrimSpace(current.ClientEmail) == "" {
		return invoice.InvoiceResponse{}, invoice.ErrClientEmailMissing
	}
	ws, err := s.getWorkspace(ctx, workspaceID)
	if err != nil {
		return invoice.InvoiceResponse{}, err
	}

	var sent invoice.Invoice
	err = s.db.WithTransaction(ctx, func(txCtx context.Context) error {
		inv, err := s.lock(txCtx, workspaceID, id)
		if err != nil {
			return err
		}
		from := inv.Status
		if inv.Status == invoice.StatusDraft {
			if err := s.moveTo(&inv, invoice.StatusSent, ""); err != nil {
				return err
			}
		} else {
			now := s.now()
			inv.SentAt = &now
		}
		if err := s.InvoiceRepository.Update(txCtx, inv); err != nil {
			return fmt.Errorf("failed to mark invoice sent: %w", err)
		}
		if err := s.activity(txCtx, inv, userID, invoice.ActivitySent, from, "sent to "+inv.ClientEmail); err != nil {
			return err
		}
		sent = inv
		return nil
	})
	if err != nil {
		return invoice.InvoiceResponse{}, err
	}

	s.deliver(ctx, ws, sent)
	s.changed(ctx, sent, webhook.EventInvoiceSent)
	return sent.ToResponse(), nil
}

// deliver emails the invoice to the client with its PDF when rendering is enabled
func (s *InvoiceServiceImpl) deliver(ctx context.Context, ws workspace.Workspace, inv invoice.Invoice) {
	var attachment *email.Attachment
	if s.renderer.Enabled() {
		data, name, err := s.render(ctx, ws, &inv)
		if err != nil {
			slog.Warn("Failed to render invoice PDF for email", "invoice_id", inv.ID, "error", err)
		} else {
			attachment = &email.Attachment{FileName: name, ContentType: "application/pdf", Data: data}
		}
	}

	err := s.emailService.SendInvoice(inv.ClientEmail, email.InvoiceEmail{
		Branding:   email.Branding{BusinessName: ws.DisplayName(), BrandColor: ws.PrimaryColor},
		ClientName: inv.ClientName,
		Number:     inv.InvoiceNumber,
		AmountDue:  money.Format(inv.AmountDue, inv.Currency),
		DueDate:    inv.DueDate.Format(dueDateLayout),
		Message:    inv.ClientMemo,
		Link:       s.publicURL + inv.PublicToken,
		ReplyTo:    ws.BusinessEmail,
	}, attachment)
	if err != nil {
		slog.Error("Failed to email invoice", "invoice_id", inv.ID, "to", inv.ClientEmail, "error", err)
	}
}

// MarkOverdue implements invoice.InvoiceService.
func (s *InvoiceServiceImpl) MarkOverdue(ctx context.Context, day time.Time) ([]invoice.Invoice, error) {
	candidates, err := s.InvoiceRepository.ListOverdueCandidates(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue candidates: %w", err)
	}

	var flagged []invoice.Invoice
	for _, candidate := range candidates {
		var updated invoice.Invoice
		err := s.db.WithTransaction(ctx, func(txCtx context.Context) error {
			inv, err := s.lock(txCtx, "", candidate.ID)
			if err != nil {
				return err
			}
			if !inv.IsOverdueOn(day) {
				return nil
			}
			from := inv.Status
			if err := s.moveTo(&inv, invoice.StatusOverdue, ""); err != nil {
				return err
			}
			if err := s.InvoiceRepository.Update(txCtx, inv); err != nil {
				return fmt.Errorf("failed to mark invoice overdue: %w", err)
			}
			if err := s.activity(txCtx, inv, "", invoice.ActivityStatusChanged, from, "past due date"); err != nil {
				return err
			}
			updated = inv
			return nil
		})
		if err != nil {
			slog.Error("Failed to mark invoice overdue", "invoice_id", candidate.ID, "error", err)
			continue
		}
		if updated.ID == "" {
			continue
		}

		flagged = append(flagged, updated)
		s.changed(ctx, updated, webhook.EventInvoiceOverdue)
		s.notify(ctx, updated, notification.KindInvoiceOverdue,
			"Invoice overdue",
			fmt.Sprintf("Invoice %s for %s is overdue (%s due)", updated.InvoiceNumber, updated.ClientName, money.Format(updated.AmountDue, updated.Currency)))
	}
	return flagged, nil
}

// ==================== Payments ====================

// RecordPayment implements invoice.InvoiceService.
// The tip is not applied to the balance; it only raises the transaction amount.
func (s *InvoiceServiceImpl) RecordPayment(ctx context.Context, workspaceID, userID, id string, req invoice.RecordPaymentRequest) (invoice.PaymentApplied, error) {
	if err := req.Validate(); err != nil {
		return invoice.PaymentApplied{}, err
	}
	amount := money.Round(req.Amount)
	tip := money.Round(req.TipAmount)
	if !amount.IsPositive() {
		return invoice.PaymentApplied{}, invoice.ErrInvalidPaymentAmount
	}

	var applied invoice.PaymentApplied
	err := s.db.WithTransaction(ctx, func(txCtx context.Context) error {
		inv, err := s.lock(txCtx, workspaceID, id)
		if err != nil {
			return err
		}
		if !inv.CanRecordPayment() {
			return invoice.ErrCannotRecordPayment
		}
		if amount.GreaterThan(inv.AmountDue) {
			return invoice.ErrPaymentExceedsAmountDue
		}

		from := inv.Status
		paidAt := s.now()
		if req.PaymentDate != "" {
			paidAt = parseDate(req.PaymentDate, paidAt)
		}
		inv.ApplyPayment(amount, paidAt)

		if err := s.InvoiceRepository.Update(txCtx, inv); err != nil {
			return fmt.Errorf("failed to apply payment: %w", err)
		}
		details := fmt.Sprintf("%s payment of %s", req.Method, money.Format(amount, inv.Currency))
		if err := s.activity(txCtx, inv, userID, invoice.ActivityPaymentReceived, from, details); err != nil {
			return err
		}

		applied = invoice.PaymentApplied{
			Invoice:           inv,
			Amount:            amount,
			TipAmount:         tip,
			TransactionAmount: amount.Add(tip),
			PreviousStatus:    from,
		}
		return nil
	})
	if err != nil {
		return invoice.PaymentApplied{}, err
	}

	events := []webhook.Event{webhook.EventPaymentReceived}
	if applied.Invoice.Status == invoice.StatusPaid {
		events = append(events, webhook.EventInvoicePaid)
	}
	s.changed(ctx, applied.Invoice, events...)
	return applied, nil
}

// ApplyGatewayPayment implements invoice.InvoiceService.
func (s *InvoiceServiceImpl) ApplyGatewayPayment(ctx context.Context, invoiceID string, amount decimal.Decimal) (invoice.Invoice, error) {
	inv, err := s.lock(ctx, "", invoiceID)
	if err != nil {
		return invoice.Invoice{}, err
	}
	if !inv.CanRecordPayment() {
		return invoice.Invoice{}, invoice.ErrCannotRecordPayment
	}

	from := inv.Status
	inv.ApplyPayment(money.Round(amount), s.now())
	if err := s.InvoiceRepository.Update(ctx, inv); err != nil {
		return invoice.Invoice{}, fmt.Errorf("failed to apply gateway payment: %w", err)
	}
	details := "gateway payment of " + money.Format(amount, inv.Currency)
	if err := s.activity(ctx, inv, "", invoice.ActivityPaymentReceived, from, details); err != nil {
		return invoice.Invoice{}, err
	}

	if inv.Status == invoice.StatusPaid {
		s.webhooks.Dispatch(ctx, inv.WorkspaceID, webhook.EventInvoicePaid, inv.ToResponse())
	}
	return inv, nil
}

// AddLine implements invoice.InvoiceService.
func (s *InvoiceServiceImpl) AddLine(ctx context.Context, workspaceID, userID, invoiceID string, item invoice.ItemInput, action string) (invoice.Invoice, error) {
	var updated invoice.Invoice
	err := s.db.WithTransaction(ctx, func(txCtx context.Context) error {
		inv, err := s.lock(txCtx, workspaceID, invoiceID)
		if err != nil {
			return err
		}
		if inv.Status != invoice.StatusDraft {
			return invoice.ErrNotDraft
		}

		line := invoice.ToItems([]invoice.ItemInput{item})[0]
		line.SortOrder = len(inv.Items)
		inv.Items = append(inv.Items, line)
		inv.Recalculate()

		if err := s.InvoiceRepository.ReplaceItems(txCtx, inv.ID, inv.Items); err != nil {
			return fmt.Errorf("failed to add invoice line: %w", err)
		}
		if err := s.InvoiceRepository.Update(txCtx, inv); err != nil {
			return fmt.Errorf("failed to update invoice totals: %w", err)
		}
		if err := s.activity(txCtx, inv, userID, action, inv.Status, line.Description); err != nil {
			return err
		}
		updated = inv
		return nil
	})
	if err != nil {
		return invoice.Invoice{}, err
	}

	s.changed(ctx, updated, webhook.EventInvoiceUpdated)
	return updated, nil
}

// ==================== Public access ====================

func (s *InvoiceServiceImpl) byToken(ctx context.Context, token string) (invoice.Invoice, error) {
	inv, err := s.InvoiceRepository.GetByPublicToken(ctx, token)
	if err != nil {
		if database.IsNotFound(err) {
			return invoice.Invoice{}, invoice.ErrInvoiceNotFound
		}
		return invoice.Invoice{}, fmt.Errorf("failed to get invoice by token: %w", err)
	}
	if inv.Status == invoice.StatusDraft {
		return invoice.Invoice{}, invoice.ErrInvoiceNotFound
	}
	return inv, nil
}

// GetByPublicToken implements invoice.InvoiceService.
// Subtle: this method shadows the method (InvoiceRepository).GetByPublicToken of InvoiceServiceImpl.InvoiceRepository.
func (s *InvoiceServiceImpl) GetByPublicToken(ctx context.Context, token, ip string) (invoice.PublicInvoiceResponse, error) {
	found, err := s.byToken(ctx, token)
	if err != nil {
		return invoice.PublicInvoiceResponse{}, err
	}

	var (
		viewed    invoice.Invoice
		firstView bool
	)
	err = s.db.WithTransaction(ctx, func(txCtx context.Context) error {
		inv, err := s.lock(txCtx, found.WorkspaceID, found.ID)
		if err != nil {
			return err
		}

		now := s.now()
		inv.ViewCount++
		inv.LastViewedAt = &now
		if ip != "" {
			inv.LastViewedIP = &ip
		}
		if inv.FirstViewedAt == nil {
			inv.FirstViewedAt = &now
		}

		from := inv.Status
		if inv.Status == invoice.StatusSent {
			inv.Status = invoice.StatusViewed
			firstView = true
		}
		if err := s.InvoiceRepository.Update(txCtx, inv); err != nil {
			return fmt.Errorf("failed to record invoice view: %w", err)
		}
		if firstView {
			err := s.InvoiceRepository.CreateActivity(txCtx, invoice.Activity{
				InvoiceID:  inv.ID,
				Action:     invoice.ActivityViewed,
				FromStatus: from,
				ToStatus:   inv.Status,
				IPAddress:  ip,
			})
			if err != nil {
				return fmt.Errorf("failed to record invoice activity: %w", err)
			}
		}
		viewed = inv
		return nil
	})
	if err != nil {
		return invoice.PublicInvoiceResponse{}, err
	}

	if firstView {
		s.changed(ctx, viewed, webhook.EventInvoiceUpdated)
		s.notify(ctx, viewed, notification.KindInvoiceViewed,
			"Invoice viewed",
			fmt.Sprintf("%s viewed invoice %s", viewed.ClientName, viewed.InvoiceNumber))
	}

	ws, err := s.getWorkspace(ctx, viewed.WorkspaceID)
	if err != nil {
		return invoice.PublicInvoiceResponse{}, err
	}

	resp := viewed.ToResponse()
	resp.InternalNotes = ""
	return invoice.PublicInvoiceResponse{
		Invoice:       resp,
		BusinessName:  ws.DisplayName(),
		BusinessEmail: ws.BusinessEmail,
		PrimaryColor:  ws.PrimaryColor,
		CanPay:        viewed.CanRecordPayment() && viewed.AmountDue.IsPositive() && ws.PaymentProvider != "",
	}, nil
}

// RegeneratePublicToken implements invoice.InvoiceService.
func (s *InvoiceServiceImpl) RegeneratePublicToken(ctx context.Context, workspaceID, userID, id string) (invoice.InvoiceResponse, error) {
	token, err := utils.RandomToken(tokenBytes)
	if err != nil {
		return invoice.InvoiceResponse{}, fmt.Errorf("failed to generate public token: %w", err)
	}

	var updated invoice.Invoice
	err = s.db.WithTransaction(ctx, func(txCtx context.Context) error {
		inv, err := s.lock(txCtx, workspaceID, id)
		if err != nil {
			return err
		}
		inv.PublicToken = token
		if err := s.InvoiceRepository.Update(txCtx, inv); err != nil {
			return fmt.Errorf("failed to rotate public token: %w", err)
		}
		if err := s.activity(txCtx, inv, userID, invoice.ActivityTokenRotated, inv.Status, ""); err != nil {
			return err
		}
		updated = inv
		return nil
	})
	if err != nil {
		return invoice.InvoiceResponse{}, err
	}
	return updated.ToResponse(), nil
}

// RenderPDF implements invoice.InvoiceService.
func (s *InvoiceServiceImpl) RenderPDF(ctx context.Context, workspaceID, id string) ([]byte, string, error) {
	inv, err := s.get(ctx, workspaceID, id)
	if err != nil {
		return nil, "", err
	}
	ws, err := s.getWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, "", err
	}
	return s.render(ctx, ws, &inv)
}

// RenderPublicPDF implements invoice.InvoiceService.
func (s *InvoiceServiceImpl) RenderPublicPDF(ctx context.Context, token string) ([]byte, string, error) {
	inv, err := s.byToken(ctx, token)
	if err != nil {
		return nil, "", err
	}
	ws, err := s.getWorkspace(ctx, inv.WorkspaceID)
	if err != nil {
		return nil, "", err
	}
	return s.render(ctx, ws, &inv)
}

// ListActivity implements invoice.InvoiceService.
func (s *InvoiceServiceImpl) ListActivity(ctx context.Context, workspaceID, id string) ([]invoice.ActivityResponse, error) {
	if _, err := s.get(ctx, workspaceID, id); err != nil {
		return nil, err
	}

	activities, err := s.InvoiceRepository.ListActivities(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoice activity: %w", err)
	}
	resp := make([]invoice.ActivityResponse, 0, len(activities))
	for _, a := range activities {
		resp = append(resp, a.ToResponse())
	}
	return resp, nil
}
