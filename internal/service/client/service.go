package client

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/client"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/invoice"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/payment"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/workspace"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/database"
)

type ClientServiceImpl struct {
	client.ClientRepository
	workspaceRepo workspace.WorkspaceRepository
	invoiceRepo   invoice.InvoiceRepository
	paymentRepo   payment.PaymentRepository
}

func NewClientService(clientRepository client.ClientRepository, workspaceRepository workspace.WorkspaceRepository, invoiceRepository invoice.InvoiceRepository, paymentRepository payment.PaymentRepository) client.ClientService {
	return &ClientServiceImpl{
		ClientRepository: clientRepository,
		workspaceRepo:    workspaceRepository,
		invoiceRepo:      invoiceRepository,
		paymentRepo:      paymentRepository,
	}
}

func (s *ClientServiceImpl) get(ctx context.Context, workspaceID, id string) (client.Client, error) {
	c, err := s.ClientRepository.GetByID(ctx, workspaceID, id)
	if err != nil {
		if database.IsNotFound(err) {
			return client.Client{}, client.ErrClientNotFound
		}
		return client.Client{}, fmt.Errorf("failed to get client: %w", err)
	}
	return c, nil
}

// Create implements client.ClientService.
func (s *ClientServiceImpl) Create(ctx context.Context, workspaceID string, req client.CreateClientRequest) (client.ClientResponse, error) {
	if err := req.Validate(); err != nil {
		return client.ClientResponse{}, err
	}

	ws, err := s.workspaceRepo.GetByID(ctx, workspaceID)
	if err != nil {
		if database.IsNotFound(err) {
			return client.ClientResponse{}, workspace.ErrWorkspaceNotFound
		}
		return client.ClientResponse{}, fmt.Errorf("failed to get workspace: %w", err)
	}

	created, err := s.ClientRepository.Create(ctx, req.ToClient(workspaceID, ws.DefaultCurrency))
	if err != nil {
		return client.ClientResponse{}, fmt.Errorf("failed to create client: %w", err)
	}
	return created.ToResponse(), nil
}

// Get implements client.ClientService.
func (s *ClientServiceImpl) Get(ctx context.Context, workspaceID, id string) (client.ClientResponse, error) {
	c, err := s.get(ctx, workspaceID, id)
	if err != nil {
		return client.ClientResponse{}, err
	}
	return c.ToResponse(), nil
}

// List implements client.ClientService.
func (s *ClientServiceImpl) List(ctx context.Context, filter client.ClientFilter) ([]client.ClientResponse, int64, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 || filter.Limit > 100 {
		filter.Limit = 20
	}

	clients, total, err := s.ClientRepository.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list clients: %w", err)
	}

	resp := make([]client.ClientResponse, 0, len(clients))
	for _, c := range clients {
		resp = append(resp, c.ToResponse())
	}
	return resp, total, nil
}

// Update implements client.ClientService.
func (s *ClientServiceImpl) Update(ctx context.Context, workspaceID, id string, req client.UpdateClientRequest) (client.ClientResponse, error) {
	if err := req.Validate(); err != nil {
		return client.ClientResponse{}, err
	}

	c, err := s.get(ctx, workspaceID, id)
	if err != nil {
		return client.ClientResponse{}, err
	}
	req.Apply(&c)

	if err := s.ClientRepository.Update(ctx, c); err != nil {
		return client.ClientResponse{}, fmt.Errorf("failed to update client: %w", err)
	}
	return c.ToResponse(), nil
}

// Delete implements client.ClientService.
func (s *ClientServiceImpl) Delete(ctx context.Context, workspaceID, id string) error {
	c, err := s.get(ctx, workspaceID, id)
	if err != nil {
		return err
	}

	active, err := s.invoiceRepo.CountActiveByClient(ctx, c.ID)
	if err != nil {
		return fmt.Errorf("failed to count client invoices: %w", err)
	}
	if active > 0 {
		return client.ErrClientHasInvoices
	}

	if err := s.ClientRepository.Delete(ctx, workspaceID, id); err != nil {
		if database.IsForeignKeyViolation(err) {
			return client.ErrClientHasInvoices
		}
		if database.IsNotFound(err) {
			return client.ErrClientNotFound
		}
		return fmt.Errorf("failed to delete client: %w", err)
	}
	return nil
}

// AddNote implements client.ClientService.
func (s *ClientServiceImpl) AddNote(ctx context.Context, workspaceID, userID, clientID string, req client.AddNoteRequest) (client.NoteResponse, error) {
	if err := req.Validate(); err != nil {
		return client.NoteResponse{}, err
	}
	if _, err := s.get(ctx, workspaceID, clientID); err != nil {
		return client.NoteResponse{}, err
	}

	note := client.Note{ClientID: clientID, Content: req.Content}
	if userID != "" {
		note.UserID = &userID
	}
	created, err := s.ClientRepository.AddNote(ctx, note)
	if err != nil {
		return client.NoteResponse{}, fmt.Errorf("failed to add note: %w", err)
	}
	return created.ToResponse(), nil
}

// ListNotes implements client.ClientService.
func (s *ClientServiceImpl) ListNotes(ctx context.Context, workspaceID, clientID string) ([]client.NoteResponse, error) {
	if _, err := s.get(ctx, workspaceID, clientID); err != nil {
		return nil, err
	}

	notes, err := s.ClientRepository.ListNotes(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	resp := make([]client.NoteResponse, 0, len(notes))
	for _, n := range notes {
		resp = append(resp, n.ToResponse())
	}
	return resp, nil
}

type statementEntry struct {
	at   time.Time
	line client.StatementLine
}

// Statement implements client.ClientService.
// Drafts and void invoices are left out; only successful payments count as credit.
func (s *ClientServiceImpl) Statement(ctx context.Context, workspaceID, clientID string) (client.StatementResponse, error) {
	c, err := s.get(ctx, workspaceID, clientID)
	if err != nil {
		return client.StatementResponse{}, err
	}

	invoices, err := s.invoiceRepo.ListByClient(ctx, workspaceID, clientID)
	if err != nil {
		return client.StatementResponse{}, fmt.Errorf("failed to list client invoices: %w", err)
	}

	var entries []statementEntry
	resp := client.StatementResponse{
		Client:        c.ToResponse(),
		Currency:      c.Currency,
		TotalInvoiced: decimal.Zero,
		TotalPaid:     decimal.Zero,
		BalanceDue:    decimal.Zero,
		Lines:         []client.StatementLine{},
	}

	for _, inv := range invoices {
		if inv.Status == invoice.StatusDraft || inv.Status == invoice.StatusVoid {
			continue
		}
		entries = append(entries, statementEntry{
			at: inv.IssueDate,
			line: client.StatementLine{
				Date:        inv.IssueDate.Format(time.DateOnly),
				Kind:        "invoice",
				Reference:   inv.InvoiceNumber,
				Description: "Invoice " + inv.InvoiceNumber,
				Debit:       inv.TotalAmount,
				Credit:      decimal.Zero,
			},
		})
		resp.TotalInvoiced = resp.TotalInvoiced.Add(inv.TotalAmount)

		payments, err := s.paymentRepo.ListByInvoice(ctx, inv.ID)
		if err != nil {
			return client.StatementResponse{}, fmt.Errorf("failed to list invoice payments: %w", err)
		}
		for _, p := range payments {
			if p.Status != payment.StatusSuccess {
				continue
			}
			at := p.CreatedAt
			if p.PaidAt != nil {
				at = *p.PaidAt
			}
			entries = append(entries, statementEntry{
				at: at,
				line: client.StatementLine{
					Date:        at.Format(time.DateOnly),
					Kind:        "payment",
					Reference:   p.Reference,
					Description: "Payment for " + inv.InvoiceNumber,
					Debit:       decimal.Zero,
					Credit:      p.Amount,
				},
			})
			resp.TotalPaid = resp.TotalPaid.Add(p.Amount)
		}
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].at.Before(entries[j].at) })

	balance := decimal.Zero
	for _, e := range entries {
		balance = balance.Add(e.line.Debit).Sub(e.line.Credit)
		e.line.Balance = balance
		resp.Lines = append(resp.Lines, e.line)
	}
	resp.BalanceDue = balance
	return resp, nil
}
