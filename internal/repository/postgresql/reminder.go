package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/reminder"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const reminderRuleColumns = `id, workspace_id, name, trigger_type, days_delta, is_active, email_subject, email_body, created_at, updated_at`

type reminderRepositoryImpl struct {
	db *database.DB
}

func NewReminderRepository(db *database.DB) reminder.ReminderRepository {
	return &reminderRepositoryImpl{db: db}
}

func scanRule(row interface{ Scan(dest ...any) error }) (reminder.Rule, error) {
	var r reminder.Rule
	err := row.Scan(&r.ID, &r.WorkspaceID, &r.Name, &r.Trigger, &r.DaysDelta, &r.IsActive, &r.EmailSubject, &r.EmailBody, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

func (r *reminderRepositoryImpl) listRules(ctx context.Context, query string, args ...any) ([]reminder.Rule, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reminder rules: %w", err)
	}
	defer rows.Close()

	var rules []reminder.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// Create implements reminder.ReminderRepository.
func (r *reminderRepositoryImpl) Create(ctx context.Context, rule reminder.Rule) (reminder.Rule, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO reminder_rules (id, workspace_id, name, trigger_type, days_delta, is_active, email_subject, email_body)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + reminderRuleColumns

	return scanRule(q.QueryRow(ctx, query,
		newID(rule.ID), rule.WorkspaceID, rule.Name, rule.Trigger, rule.DaysDelta, rule.IsActive, rule.EmailSubject, rule.EmailBody,
	))
}

// CreateMany implements reminder.ReminderRepository.
func (r *reminderRepositoryImpl) CreateMany(ctx context.Context, rules []reminder.Rule) error {
	q := GetQuerier(ctx, r.db)

	batch := &pgx.Batch{}
	for _, rule := range rules {
		batch.Queue(`
			INSERT INTO reminder_rules (id, workspace_id, name, trigger_type, days_delta, is_active, email_subject, email_body)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			newID(rule.ID), rule.WorkspaceID, rule.Name, rule.Trigger, rule.DaysDelta, rule.IsActive, rule.EmailSubject, rule.EmailBody,
		)
	}
	return sendBatch(ctx, q, batch)
}

// GetByID implements reminder.ReminderRepository.
func (r *reminderRepositoryImpl) GetByID(ctx context.Context, workspaceID, id string) (reminder.Rule, error) {
	q := GetQuerier(ctx, r.db)
	return scanRule(q.QueryRow(ctx, `SELECT `+reminderRuleColumns+` FROM reminder_rules WHERE id = $1 AND workspace_id = $2`, id, workspaceID))
}

// List implements reminder.ReminderRepository.
func (r *reminderRepositoryImpl) List(ctx context.Context, workspaceID string) ([]reminder.Rule, error) {
	return r.listRules(ctx, `
		SELECT `+reminderRuleColumns+`
		FROM reminder_rules
		WHERE workspace_id = $1
		ORDER BY trigger_type, days_delta`, workspaceID)
}

// ListActive implements reminder.ReminderRepository.
func (r *reminderRepositoryImpl) ListActive(ctx context.Context) ([]reminder.Rule, error) {
	return r.listRules(ctx, `
		SELECT `+reminderRuleColumns+`
		FROM reminder_rules
		WHERE is_active
		ORDER BY workspace_id, trigger_type, days_delta`)
}

// Update implements reminder.ReminderRepository.
func (r *reminderRepositoryImpl) Update(ctx context.Context, rule reminder.Rule) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE reminder_rules
		SET name = $1, trigger_type = $2, days_delta = $3, is_active = $4, email_subject = $5, email_body = $6,
			updated_at = NOW()
		WHERE id = $7 AND workspace_id = $8
	`
	return execOne(ctx, q, query, rule.Name, rule.Trigger, rule.DaysDelta, rule.IsActive, rule.EmailSubject, rule.EmailBody, rule.ID, rule.WorkspaceID)
}

// Delete implements reminder.ReminderRepository.
func (r *reminderRepositoryImpl) Delete(ctx context.Context, workspaceID, id string) error {
	q := GetQuerier(ctx, r.db)
	return execOne(ctx, q, `DELETE FROM reminder_rules WHERE id = $1 AND workspace_id = $2`, id, workspaceID)
}

// CreateLog implements reminder.ReminderRepository.
func (r *reminderRepositoryImpl) CreateLog(ctx context.Context, l reminder.Log) error {
	q := GetQuerier(ctx, r.db)

	_, err := q.Exec(ctx, `
		INSERT INTO reminder_logs (id, rule_id, invoice_id, sent_on, status, error)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		newID(l.ID), l.RuleID, l.InvoiceID, l.SentOn, l.Status, l.Error,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return reminder.ErrAlreadyLogged
	}
	return err
}

// LogExists implements reminder.ReminderRepository.
func (r *reminderRepositoryImpl) LogExists(ctx context.Context, ruleID, invoiceID string, day time.Time) (bool, error) {
	q := GetQuerier(ctx, r.db)

	var exists bool
	err := q.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM reminder_logs WHERE rule_id = $1 AND invoice_id = $2 AND sent_on = $3)`,
		ruleID, invoiceID, day).Scan(&exists)
	return exists, err
}
