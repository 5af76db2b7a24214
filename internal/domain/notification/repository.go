package notification

import (
	"context"
	"time"
)

type Repository interface {
	// Insert stores every notification in one round trip
	Insert(ctx context.Context, notifications ...*Notification) error
	List(ctx context.Context, filter Filter) ([]Notification, int64, error)
	CountUnread(ctx context.Context, userID, workspaceID string) (int64, error)
	MarkRead(ctx context.Context, userID string, ids []string, at time.Time) (int64, error)
	MarkAllRead(ctx context.Context, userID, workspaceID string, at time.Time) (int64, error)
	Delete(ctx context.Context, userID, id string) error
}
