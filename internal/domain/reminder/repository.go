package reminder

import (
	"context"
	"time"
)

type ReminderRepository interface {
	Create(ctx context.Context, r Rule) (Rule, error)
	CreateMany(ctx context.Context, rules []Rule) error
	GetByID(ctx context.Context, workspaceID, id string) (Rule, error)
	List(ctx context.Context, workspaceID string) ([]Rule, error)
	ListActive(ctx context.Context) ([]Rule, error)
	Update(ctx context.Context, r Rule) error
	Delete(ctx context.Context, workspaceID, id string) error

	// CreateLog returns ErrAlreadyLogged when (rule, invoice, day) exists
	CreateLog(ctx context.Context, l Log) error
	LogExists(ctx context.Context, ruleID, invoiceID string, day time.Time) (bool, error)
}
