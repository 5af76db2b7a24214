package reminder

import (
	"context"
	"time"
)

type ReminderService interface {
	Create(ctx context.Context, workspaceID string, req RuleRequest) (RuleResponse, error)
	List(ctx context.Context, workspaceID string) ([]RuleResponse, error)
	Update(ctx context.Context, workspaceID, id string, req RuleRequest) (RuleResponse, error)
	Delete(ctx context.Context, workspaceID, id string) error
	SeedDefaultRules(ctx context.Context, workspaceID string) error
	// ProcessReminders emails every reminder due on day once per rule and invoice
	ProcessReminders(ctx context.Context, day time.Time) (ProcessResult, error)
}
