package estimate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/client"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/estimate"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/invoice"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/notification"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/webhook"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/workspace"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/database"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/email"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/money"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/pdf"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/storage"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/utils"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/service/file"
)

// Activity actions
const (
	actionCreated   = "created"
	actionUpdated   = "updated"
	actionSent      = "sent"
	actionViewed    = "viewed"
	actionApproved  = "approved"
	actionDeclined  = "declined"
	actionConverted = "converted"
)

const (
	tokenBytes = 24
	dateLayout = "Jan 2, 2006"
)

type EstimateServiceImpl struct {
	db database.Transactor
	estimate.EstimateRepository
	clientRepo     client.ClientRepository
	workspaceRepo  workspace.WorkspaceRepository
	invoiceService invoice.InvoiceService
	webhooks       webhook.Dispatcher
	notifier       notification.Notifier
	emailService   email.EmailService
	renderer       pdf.Renderer
	fileService    file.FileService
	publicURL      string
	now            func() time.Time
}

func NewEstimateService(
	db database.Transactor,
	estimateRepository estimate.EstimateRepository,
	clientRepository client.ClientRepository,
	workspaceRepository workspace.WorkspaceRepository,
	invoiceService invoice.InvoiceService,
	webhooks webhook.Dispatcher,
	notifier notification.Notifier,
	emailService email.EmailService,
	renderer pdf.Renderer,
	fileService file.FileService,
	frontendURL string,
) estimate.EstimateService {
	return &EstimateServiceImpl{
		db:                 db,
		EstimateRepository: estimateRepository,
		clientRepo:         clientRepository,
		workspaceRepo:      workspaceRepository,
		invoiceService:     invoiceService,
		webhooks:           webhooks,
		notifier:           notifier,
		emailService:       emailService,
		renderer:           renderer,
		fileService:        fileService,
		publicURL:          strings.TrimRight(frontendURL, "/") + "/public/estimates/",
		now:                time.Now,
	}
}

func (s *EstimateServiceImpl) today() time.Time {
	y, m, d := s.now().UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func mapNotFound(err error, action string) error {
	if database.IsNotFound(err) {
		return estimate.ErrEstimateNotFound
	}
	return fmt.Errorf("failed to %s estimate: %w", action, err)
}

func (s *EstimateServiceImpl) get(ctx context.Context, workspaceID, id string) (estimate.Estimate, error) {
	e, err := s.EstimateRepository.GetByID(ctx, workspaceID, id)
	if err != nil {
		return estimate.Estimate{}, mapNotFound(err, "get")
	}
	return e, nil
}

func (s *EstimateServiceImpl) lock(ctx context.Context, workspaceID, id string) (estimate.Estimate, error) {
	e, err := s.EstimateRepository.GetByIDForUpdate(ctx, workspaceID, id)
	if err != nil {
		return estimate.Estimate{}, mapNotFound(err, "lock")
	}
	return e, nil
}

// byToken resolves a public link; drafts are never public
func (s *EstimateServiceImpl) byToken(ctx context.Context, token string) (estimate.Estimate, error) {
	e, err := s.EstimateRepository.GetByPublicToken(ctx, token)
	if err != nil {
		return estimate.Estimate{}, mapNotFound(err, "get")
	}
	if e.Status == estimate.StatusDraft {
		return estimate.Estimate{}, estimate.ErrEstimateNotFound
	}
	return e, nil
}

func (s *EstimateServiceImpl) getWorkspace(ctx context.Context, workspaceID string) (workspace.Workspace, error) {
	ws, err := s.workspaceRepo.GetByID(ctx, workspaceID)
	if err != nil {
		if database.IsNotFound(err) {
			return workspace.Workspace{}, workspace.ErrWorkspaceNotFound
		}
		return workspace.Workspace{}, fmt.Errorf("failed to get workspace: %w", err)
	}
	return ws, nil
}

func (s *EstimateServiceImpl) activity(ctx context.Context, e estimate.Estimate, userID, action, details, ip string) error {
	a := estimate.Activity{EstimateID: e.ID, Action: action, Details: details, IPAddress: ip}
	if userID != "" {
		a.UserID = &userID
	}
	if err := s.EstimateRepository.CreateActivity(ctx, a); err != nil {
		return fmt.Errorf("failed to record estimate activity: %w", err)
	}
	return nil
}

func (s *EstimateServiceImpl) notify(ctx context.Context, e estimate.Estimate, kind notification.Kind, title, message string) {
	userID := ""
	if e.CreatedBy != nil {
		userID = *e.CreatedBy
	} else if ws, err := s.workspaceRepo.GetByID(ctx, e.WorkspaceID); err == nil {
		userID = ws.OwnerID
	}
	if userID == "" {
		return
	}
	err := s.notifier.Notify(ctx, notification.Notice{
		WorkspaceID:  e.WorkspaceID,
		UserID:       userID,
		Kind:         kind,
		Title:        title,
		Body:         message,
		ResourceType: "estimate",
		ResourceID:   e.ID,
		Data:         map[string]any{"estimate_number": e.EstimateNumber},
	})
	if err != nil {
		slog.Warn("Failed to queue estimate notification", "estimate_id", e.ID, "error", err)
	}
}

// Create implements estimate.EstimateService.
// Subtle: this method shadows the method (EstimateRepository).Create of EstimateServiceImpl.EstimateRepository.
func (s *EstimateServiceImpl) Create(ctx context.Context, workspaceID, userID string, req estimate.EstimateRequest) (estimate.EstimateResponse, error) {
	if err := req.Validate(); err != nil {
		return estimate.EstimateResponse{}, err
	}
	ws, err := s.getWorkspace(ctx, workspaceID)
	if err != nil {
		return estimate.EstimateResponse{}, err
	}
	c, err := s.clientRepo.GetByID(ctx, workspaceID, req.ClientID)
	if err != nil {
		if database.IsNotFound(err) {
			return estimate.EstimateResponse{}, estimate.ErrClientNotFound
		}
		return estimate.EstimateResponse{}, fmt.Errorf("failed to get client: %w", err)
	}

	token, err := utils.RandomToken(tokenBytes)
	if err != nil {
		return estimate.EstimateResponse{}, fmt.Errorf("failed to generate public token: %w", err)
	}

	currency := c.Currency
	if currency == "" {
		currency = ws.DefaultCurrency
	}
	e := estimate.Estimate{WorkspaceID: workspaceID, Status: estimate.StatusDraft, PublicToken: token}
	if userID != "" {
		e.CreatedBy = &userID
	}
	req.Apply(&e, s.today(), currency)

	var created estimate.Estimate
	err = s.db.WithTransaction(ctx, func(txCtx context.Context) error {
		seq, err := s.workspaceRepo.NextSequence(txCtx, workspaceID, workspace.SequenceEstimate, e.IssueDate.Year())
		if err != nil {
			return fmt.Errorf("failed to allocate estimate number: %w", err)
		}
		e.EstimateNumber = fmt.Sprintf("EST-%d-%04d", e.IssueDate.Year(), seq)

		created, err = s.EstimateRepository.Create(txCtx, e)
		if err != nil {
			return fmt.Errorf("failed to create estimate: %w", err)
		}
		return s.activity(txCtx, created, userID, actionCreated, "", "")
	})
	if err != nil {
		return estimate.EstimateResponse{}, err
	}
	return created.ToResponse(), nil
}

// Get implements estimate.EstimateService.
func (s *EstimateServiceImpl) Get(ctx context.Context, workspaceID, id string) (estimate.EstimateResponse, error) {
	e, err := s.get(ctx, workspaceID, id)
	if err != nil {
		return estimate.EstimateResponse{}, err
	}
	return e.ToResponse(), nil
}

// List implements estimate.EstimateService.
func (s *EstimateServiceImpl) List(ctx context.Context, filter estimate.EstimateFilter) ([]estimate.EstimateResponse, int64, error) {
	estimates, total, err := s.EstimateRepository.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list estimates: %w", err)
	}
	resp := make([]estimate.EstimateResponse, 0, len(estimates))
	for _, e := range estimates {
		resp = append(resp, e.ToResponse())
	}
	return resp, total, nil
}

// Update implements estimate.EstimateService.
// Subtle: this method shadows the method (EstimateRepository).Update of EstimateServiceImpl.EstimateRepository.
func (s *EstimateServiceImpl) Update(ctx context.Context, workspaceID, userID, id string, req estimate.EstimateRequest) (estimate.EstimateResponse, error) {
	if err := req.Validate(); err != nil {
		return estimate.EstimateResponse{}, err
	}

	var updated estimate.Estimate
	err := s.db.WithTransaction(ctx, func(txCtx context.Context) error {
		e, err := s.lock(txCtx, workspaceID, id)
		if err != nil {
			return err
		}
		if e.Status != estimate.StatusDraft {
			return estimate.ErrNotDraft
		}
		if req.ClientID != e.ClientID {
			if _, err := s.clientRepo.GetByID(txCtx, workspaceID, req.ClientID); err != nil {
				if database.IsNotFound(err) {
					return estimate.ErrClientNotFound
				}
				return fmt.Errorf("failed to get client: %w", err)
			}
		}

		req.Apply(&e, e.IssueDate, e.Currency)
		if err := s.EstimateRepository.Update(txCtx, e); err != nil {
			return mapNotFound(err, "update")
		}
		if err := s.EstimateRepository.ReplaceItems(txCtx, e.ID, e.Items); err != nil {
			return fmt.Errorf("failed to replace estimate items: %w", err)
		}
		updated = e
		return s.activity(txCtx, e, userID, actionUpdated, "", "")
	})
	if err != nil {
		return estimate.EstimateResponse{}, err
	}
	return updated.ToResponse(), nil
}

// Delete implements estimate.EstimateService.
// Subtle: this method shadows the method (EstimateRepository).Delete of EstimateServiceImpl.EstimateRepository.
func (s *EstimateServiceImpl) Delete(ctx context.Context, workspaceID, id string) error {
	e, err := s.get(ctx, workspaceID, id)
	if err != nil {
		return err
	}
	if e.Status != estimate.StatusDraft {
		return estimate.ErrNotDraft
	}
	if err := s.EstimateRepository.Delete(ctx, workspaceID, id); err != nil {
		return mapNotFound(err, "delete")
	}
	return nil
}

// Send implements estimate.EstimateService.
func (s *EstimateServiceImpl) Send(ctx context.Context, workspaceID, userID, id string) (estimate.EstimateResponse, error) {
	ws, err := s.getWorkspace(ctx, workspaceID)
	if err != nil {
		return estimate.EstimateResponse{}, err
	}

	var sent estimate.Estimate
	err = s.db.WithTransaction(ctx, func(txCtx context.Context) error {
		e, err := s.lock(txCtx, workspaceID, id)
		if err != nil {
			return err
		}
		switch e.Status {
		case estimate.StatusDraft:
			e.Status = estimate.StatusSent
		case estimate.StatusSent, estimate.StatusViewed:
		default:
			return estimate.ErrCannotSend
		}
		if strings.TrimSpace(e.ClientEmail) == "" {
			return estimate.ErrClientEmailMissing
		}

		now := s.now()
		e.SentAt = &now
		if err := s.EstimateRepository.Update(txCtx, e); err != nil {
			return mapNotFound(err, "send")
		}
		sent = e
		return s.activity(txCtx, e, userID, actionSent, "sent to "+e.ClientEmail, "")
	})
	if err != nil {
		return estimate.EstimateResponse{}, err
	}

	err = s.emailService.SendEstimate(sent.ClientEmail, email.EstimateEmail{
		Branding:   email.Branding{BusinessName: ws.DisplayName(), BrandColor: ws.PrimaryColor},
		ClientName: sent.ClientName,
		Number:     sent.EstimateNumber,
		Total:      money.Format(sent.TotalAmount, sent.Currency),
		ExpiryDate: sent.ExpiryDate.Format(dateLayout),
		Link:       s.publicURL + sent.PublicToken,
		ReplyTo:    ws.BusinessEmail,
	})
	if err != nil {
		slog.Error("Failed to email estimate", "estimate_id", sent.ID, "to", sent.ClientEmail, "error", err)
	}
	return sent.ToResponse(), nil
}

// ConvertToInvoice implements estimate.EstimateService.
func (s *EstimateServiceImpl) ConvertToInvoice(ctx context.Context, workspaceID, userID, id string) (estimate.ConversionResponse, error) {
	var resp estimate.ConversionResponse
	err := s.db.WithTransaction(ctx, func(txCtx context.Context) error {
		e, err := s.lock(txCtx, workspaceID, id)
		if err != nil {
			return err
		}
		if err := e.CanConvert(); err != nil {
			return err
		}

		items := make([]invoice.ItemInput, 0, len(e.Items))
		for _, it := range e.Items {
			items = append(items, invoice.ItemInput{
				Description:  it.Description,
				Quantity:     it.Quantity,
				UnitPrice:    it.UnitPrice,
				TaxRate:      it.TaxRate,
				DiscountType: invoice.DiscountFlat,
			})
		}

		today := s.today()
		req := invoice.GenerateRequest{
			WorkspaceID:     workspaceID,
			ClientID:        e.ClientID,
			InvoiceNumber:   "INV-" + e.EstimateNumber,
			Source:          invoice.SourceEstimate,
			SourceID:        &e.ID,
			IssueDate:       today,
			DueDate:         today.AddDate(0, 0, estimate.ConversionDueDays),
			Currency:        e.Currency,
			ClientMemo:      e.ClientNotes,
			TermsConditions: e.TermsConditions,
			Items:           items,
		}
		if userID != "" {
			req.CreatedBy = &userID
		}
		inv, err := s.invoiceService.Generate(txCtx, req)
		if err != nil {
			return err
		}

		e.Status = estimate.StatusInvoiced
		e.ConvertedInvoiceID = &inv.ID
		if err := s.EstimateRepository.Update(txCtx, e); err != nil {
			return mapNotFound(err, "convert")
		}
		if err := s.activity(txCtx, e, userID, actionConverted, inv.InvoiceNumber, ""); err != nil {
			return err
		}

		resp = estimate.ConversionResponse{EstimateID: e.ID, InvoiceID: inv.ID, InvoiceNumber: inv.InvoiceNumber}
		return nil
	})
	if err != nil {
		return estimate.ConversionResponse{}, err
	}

	slog.Info("Estimate converted to invoice", "estimate_id", id, "invoice_id", resp.InvoiceID)
	return resp, nil
}

// ==================== Public access ====================

func (s *EstimateServiceImpl) public(ctx context.Context, e estimate.Estimate) (estimate.PublicEstimateResponse, error) {
	ws, err := s.getWorkspace(ctx, e.WorkspaceID)
	if err != nil {
		return estimate.PublicEstimateResponse{}, err
	}
	resp := e.ToResponse()
	resp.InternalNotes = ""
	return estimate.PublicEstimateResponse{
		Estimate:     resp,
		BusinessName: ws.DisplayName(),
		CanRespond:   e.CanRespond(s.today()),
	}, nil
}

// GetByPublicToken implements estimate.EstimateService.
// Subtle: this method shadows the method (EstimateRepository).GetByPublicToken of EstimateServiceImpl.EstimateRepository.
func (s *EstimateServiceImpl) GetByPublicToken(ctx context.Context, token, ip string) (estimate.PublicEstimateResponse, error) {
	found, err := s.byToken(ctx, token)
	if err != nil {
		return estimate.PublicEstimateResponse{}, err
	}
	if found.Status != estimate.StatusSent {
		return s.public(ctx, found)
	}

	var viewed estimate.Estimate
	err = s.db.WithTransaction(ctx, func(txCtx context.Context) error {
		e, err := s.lock(txCtx, found.WorkspaceID, found.ID)
		if err != nil {
			return err
		}
		if e.Status == estimate.StatusSent {
			now := s.now()
			e.Status = estimate.StatusViewed
			e.ViewedAt = &now
			if err := s.EstimateRepository.Update(txCtx, e); err != nil {
				return mapNotFound(err, "view")
			}
			if err := s.activity(txCtx, e, "", actionViewed, "", ip); err != nil {
				return err
			}
		}
		viewed = e
		return nil
	})
	if err != nil {
		return estimate.PublicEstimateResponse{}, err
	}
	return s.public(ctx, viewed)
}

// respond records the client's answer on a sent or viewed estimate
func (s *EstimateServiceImpl) respond(ctx context.Context, token, ip string, target estimate.Status, reason string) (estimate.Estimate, error) {
	found, err := s.byToken(ctx, token)
	if err != nil {
		return estimate.Estimate{}, err
	}

	var answered estimate.Estimate
	err = s.db.WithTransaction(ctx, func(txCtx context.Context) error {
		e, err := s.lock(txCtx, found.WorkspaceID, found.ID)
		if err != nil {
			return err
		}
		if !e.CanRespond(s.today()) {
			return estimate.ErrCannotRespond
		}

		now := s.now()
		e.Status = target
		action := actionApproved
		if target == estimate.StatusApproved {
			e.ApprovedAt = &now
		} else {
			e.DeclinedAt = &now
			action = actionDeclined
		}
		if err := s.EstimateRepository.Update(txCtx, e); err != nil {
			return mapNotFound(err, "update")
		}
		answered = e
		return s.activity(txCtx, e, "", action, strings.TrimSpace(reason), ip)
	})
	return answered, err
}

// Approve implements estimate.EstimateService.
func (s *EstimateServiceImpl) Approve(ctx context.Context, token, ip string) (estimate.PublicEstimateResponse, error) {
	e, err := s.respond(ctx, token, ip, estimate.StatusApproved, "")
	if err != nil {
		return estimate.PublicEstimateResponse{}, err
	}

	s.webhooks.Dispatch(ctx, e.WorkspaceID, webhook.EventEstimateApproved, e.ToResponse())
	s.notify(ctx, e, notification.KindEstimateApproved,
		"Estimate approved",
		fmt.Sprintf("%s approved estimate %s", e.ClientName, e.EstimateNumber))
	return s.public(ctx, e)
}

// Decline implements estimate.EstimateService.
func (s *EstimateServiceImpl) Decline(ctx context.Context, token, ip string, req estimate.DeclineRequest) (estimate.PublicEstimateResponse, error) {
	e, err := s.respond(ctx, token, ip, estimate.StatusDeclined, req.Reason)
	if err != nil {
		return estimate.PublicEstimateResponse{}, err
	}

	message := fmt.Sprintf("%s declined estimate %s", e.ClientName, e.EstimateNumber)
	if r := strings.TrimSpace(req.Reason); r != "" {
		message += ": " + r
	}
	s.notify(ctx, e, notification.KindEstimateDeclined, "Estimate declined", message)
	return s.public(ctx, e)
}

// ExpireStale implements estimate.EstimateService.
func (s *EstimateServiceImpl) ExpireStale(ctx context.Context, day time.Time) (int64, error) {
	n, err := s.EstimateRepository.ExpireBefore(ctx, day)
	if err != nil {
		return 0, fmt.Errorf("failed to expire estimates: %w", err)
	}
	if n > 0 {
		slog.Info("Estimates expired", "count", n, "date", day.Format(time.DateOnly))
	}
	return n, nil
}

// RenderPDF implements estimate.EstimateService.
func (s *EstimateServiceImpl) RenderPDF(ctx context.Context, workspaceID, id string) ([]byte, string, error) {
	if !s.renderer.Enabled() {
		return nil, "", estimate.ErrPDFUnavailable
	}
	e, err := s.get(ctx, workspaceID, id)
	if err != nil {
		return nil, "", err
	}
	ws, err := s.getWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, "", err
	}

	data, err := s.renderer.Render(ctx, document(ws, e))
	if err != nil {
		if errors.Is(err, pdf.ErrPDFDisabled) {
			return nil, "", estimate.ErrPDFUnavailable
		}
		return nil, "", fmt.Errorf("failed to render estimate pdf: %w", err)
	}
	if err := s.fileService.StorePDF(ctx, storage.DocumentPDFKey("estimates", ws.ID, e.EstimateNumber), data); err != nil {
		slog.Warn("Failed to store estimate PDF", "estimate_id", e.ID, "error", err)
	}
	return data, e.EstimateNumber + ".pdf", nil
}

func document(ws workspace.Workspace, e estimate.Estimate) pdf.Document {
	doc := pdf.Document{
		Title:           "ESTIMATE",
		Number:          e.EstimateNumber,
		Status:          money.Label(string(e.Status)),
		BrandColor:      ws.PrimaryColor,
		BusinessName:    ws.DisplayName(),
		BusinessAddress: ws.BusinessAddress,
		BusinessEmail:   ws.BusinessEmail,
		BusinessPhone:   ws.BusinessPhone,
		TaxID:           ws.TaxIDNumber,
		ClientName:      e.ClientName,
		ClientEmail:     e.ClientEmail,
		IssueDate:       e.IssueDate.Format(dateLayout),
		DateLabel:       "Valid until",
		Date:            e.ExpiryDate.Format(dateLayout),
		Notes:           e.ClientNotes,
		Terms:           e.TermsConditions,
	}
	for _, it := range e.Items {
		doc.Lines = append(doc.Lines, pdf.Line{
			Description: it.Description,
			Quantity:    it.Quantity.String(),
			UnitPrice:   money.Format(it.UnitPrice, e.Currency),
			TaxRate:     it.TaxRate.String() + "%",
			Total:       money.Format(it.Total, e.Currency),
		})
	}
	doc.Totals = []pdf.Total{
		{Label: "Subtotal", Amount: money.Format(e.Subtotal, e.Currency)},
		{Label: "Tax", Amount: money.Format(e.TaxTotal, e.Currency)},
		{Label: "Total", Amount: money.Format(e.TotalAmount, e.Currency), Strong: true},
	}
	return doc
}
