package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/invoice"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/reminder"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/workspace"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/fixtures"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/database"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/email"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/money"
)

const dueDateLayout = "Jan 2, 2006"

type ReminderServiceImpl struct {
	reminder.ReminderRepository
	invoiceRepo   invoice.InvoiceRepository
	workspaceRepo workspace.WorkspaceRepository
	emailService  email.EmailService
	publicURL     string
	now           func() time.Time
}

func NewReminderService(
	reminderRepo reminder.ReminderRepository,
	invoiceRepo invoice.InvoiceRepository,
	workspaceRepo workspace.WorkspaceRepository,
	emailService email.EmailService,
	frontendURL string,
) reminder.ReminderService {
	return &ReminderServiceImpl{
		ReminderRepository: reminderRepo,
		invoiceRepo:        invoiceRepo,
		workspaceRepo:      workspaceRepo,
		emailService:       emailService,
		publicURL:          strings.TrimRight(frontendURL, "/") + "/public/invoices/",
		now:                time.Now,
	}
}

// Create implements reminder.ReminderService.
func (s *ReminderServiceImpl) Create(ctx context.Context, workspaceID string, req reminder.RuleRequest) (reminder.RuleResponse, error) {
	if err := req.Validate(); err != nil {
		return reminder.RuleResponse{}, err
	}

	rule := reminder.Rule{WorkspaceID: workspaceID}
	req.Apply(&rule)

	created, err := s.ReminderRepository.Create(ctx, rule)
	if err != nil {
		return reminder.RuleResponse{}, fmt.Errorf("failed to create reminder rule: %w", err)
	}
	return created.ToResponse(), nil
}

// List implements reminder.ReminderService.
func (s *ReminderServiceImpl) List(ctx context.Context, workspaceID string) ([]reminder.RuleResponse, error) {
	rules, err := s.ReminderRepository.List(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	out := make([]reminder.RuleResponse, 0, len(rules))
	for i := range rules {
		out = append(out, rules[i].ToResponse())
	}
	return out, nil
}

// Update implements reminder.ReminderService.
func (s *ReminderServiceImpl) Update(ctx context.Context, workspaceID, id string, req reminder.RuleRequest) (reminder.RuleResponse, error) {
	if err := req.Validate(); err != nil {
		return reminder.RuleResponse{}, err
	}

	rule, err := s.GetByID(ctx, workspaceID, id)
	if err != nil {
		if database.IsNotFound(err) {
			return reminder.RuleResponse{}, reminder.ErrRuleNotFound
		}
		return reminder.RuleResponse{}, fmt.Errorf("failed to get reminder rule: %w", err)
	}
	req.Apply(&rule)

	if err := s.ReminderRepository.Update(ctx, rule); err != nil {
		if database.IsNotFound(err) {
			return reminder.RuleResponse{}, reminder.ErrRuleNotFound
		}
		return reminder.RuleResponse{}, fmt.Errorf("failed to update reminder rule: %w", err)
	}
	return rule.ToResponse(), nil
}

// Delete implements reminder.ReminderService.
func (s *ReminderServiceImpl) Delete(ctx context.Context, workspaceID, id string) error {
	if err := s.ReminderRepository.Delete(ctx, workspaceID, id); err != nil {
		if database.IsNotFound(err) {
			return reminder.ErrRuleNotFound
		}
		return fmt.Errorf("failed to delete reminder rule: %w", err)
	}
	return nil
}

// SeedDefaultRules implements reminder.ReminderService.
func (s *ReminderServiceImpl) SeedDefaultRules(ctx context.Context, workspaceID string) error {
	if err := s.CreateMany(ctx, fixtures.GetDefaultReminderRules(workspaceID)); err != nil {
		return fmt.Errorf("failed to seed reminder rules: %w", err)
	}
	return nil
}

// ProcessReminders implements reminder.ReminderService.
// Every matching invoice is logged, failed deliveries included, so a rule fires at most once per invoice and day.
func (s *ReminderServiceImpl) ProcessReminders(ctx context.Context, day time.Time) (reminder.ProcessResult, error) {
	today := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	result := reminder.ProcessResult{}

	rules, err := s.ListActive(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to list reminder rules: %w", err)
	}

	workspaces := make(map[string]*workspace.Workspace)
	for i := range rules {
		rule := &rules[i]

		ws, ok := workspaces[rule.WorkspaceID]
		if !ok {
			w, err := s.workspaceRepo.GetByID(ctx, rule.WorkspaceID)
			if err != nil {
				slog.Error("Failed to load workspace for reminders", "workspace_id", rule.WorkspaceID, "error", err)
				workspaces[rule.WorkspaceID] = nil
				continue
			}
			ws = &w
			workspaces[rule.WorkspaceID] = ws
		}
		if ws == nil {
			continue
		}

		invoices, err := s.invoiceRepo.ListOpenDueOn(ctx, rule.WorkspaceID, rule.TargetDueDate(today))
		if err != nil {
			slog.Error("Failed to list invoices for reminder", "rule_id", rule.ID, "error", err)
			continue
		}

		for j := range invoices {
			inv := &invoices[j]
			exists, err := s.LogExists(ctx, rule.ID, inv.ID, today)
			if err != nil {
				slog.Error("Failed to check reminder log", "rule_id", rule.ID, "invoice_id", inv.ID, "error", err)
				continue
			}
			if exists {
				continue
			}

			result.Processed++
			sendErr := s.send(ws, rule, inv)

			log := reminder.Log{RuleID: rule.ID, InvoiceID: inv.ID, SentOn: today, Status: reminder.LogSent}
			if sendErr != nil {
				log.Status, log.Error = reminder.LogFailed, sendErr.Error()
			}
			if err := s.CreateLog(ctx, log); err != nil {
				if errors.Is(err, reminder.ErrAlreadyLogged) {
					result.Processed--
					continue
				}
				slog.Error("Failed to record reminder", "rule_id", rule.ID, "invoice_id", inv.ID, "error", err)
			}

			if sendErr != nil {
				result.Failed++
				slog.Warn("Failed to send reminder", "rule_id", rule.ID, "invoice_id", inv.ID, "error", sendErr)
				continue
			}
			result.Sent++

			err = s.invoiceRepo.CreateActivity(ctx, invoice.Activity{
				InvoiceID: inv.ID,
				Action:    invoice.ActivityReminderSent,
				Details:   rule.Name,
			})
			if err != nil {
				slog.Warn("Failed to record reminder activity", "invoice_id", inv.ID, "error", err)
			}
		}
	}

	slog.Info("Reminders processed", "processed", result.Processed, "sent", result.Sent, "failed", result.Failed)
	return result, nil
}

func (s *ReminderServiceImpl) send(ws *workspace.Workspace, rule *reminder.Rule, inv *invoice.Invoice) error {
	if inv.ClientEmail == "" {
		return errors.New("client has no email address")
	}

	link := s.publicURL + inv.PublicToken
	data := reminder.TemplateData{
		InvoiceNumber: inv.InvoiceNumber,
		ClientName:    inv.ClientName,
		AmountDue:     money.Format(inv.AmountDue, inv.Currency),
		DueDate:       inv.DueDate.Format(dueDateLayout),
		BusinessName:  ws.DisplayName(),
		PaymentLink:   link,
	}
	return s.emailService.SendReminder(inv.ClientEmail, email.ReminderEmail{
		Branding: email.Branding{BusinessName: ws.DisplayName(), BrandColor: ws.PrimaryColor},
		Subject:  data.Render(rule.EmailSubject),
		Body:     data.Render(rule.EmailBody),
		Link:     link,
		ReplyTo:  ws.BusinessEmail,
	})
}
