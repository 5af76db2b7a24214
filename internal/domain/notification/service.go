package notification

import "context"

// Notifier is the write side used by billing modules; delivery is asynchronous
type Notifier interface {
	Notify(ctx context.Context, notice Notice) error
}

type NotificationService interface {
	Notifier
	List(ctx context.Context, filter Filter) (ListResponse, error)
	UnreadCount(ctx context.Context, userID, workspaceID string) (int64, error)
	MarkRead(ctx context.Context, userID string, req MarkReadRequest) (MarkReadResponse, error)
	MarkAllRead(ctx context.Context, userID, workspaceID string) (MarkReadResponse, error)
	Delete(ctx context.Context, userID, id string) error
	// Subscribe streams notifications stored for userID from now on
	Subscribe(ctx context.Context, userID, workspaceID string) (<-chan Event, func())
	// Stop flushes queued notices and waits for the workers
	Stop()
}
