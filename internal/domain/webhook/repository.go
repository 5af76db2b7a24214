package webhook

import (
	"context"
	"time"
)

type WebhookRepository interface {
	CreateEndpoint(ctx context.Context, ep Endpoint) (Endpoint, error)
	GetEndpoint(ctx context.Context, workspaceID, id string) (Endpoint, error)
	ListEndpoints(ctx context.Context, workspaceID string) ([]Endpoint, error)
	ListActiveEndpoints(ctx context.Context, workspaceID string) ([]Endpoint, error)
	UpdateEndpoint(ctx context.Context, ep Endpoint) error
	DeleteEndpoint(ctx context.Context, workspaceID, id string) error

	CreateDelivery(ctx context.Context, d Delivery) error
	GetDelivery(ctx context.Context, workspaceID, id string) (Delivery, error)
	ListDeliveries(ctx context.Context, endpointID string, page, limit int) ([]Delivery, int64, error)
	// ListDueDeliveries returns pending and retrying deliveries due at now, joined with their endpoint
	ListDueDeliveries(ctx context.Context, now time.Time, limit int) ([]Delivery, error)
	UpdateDelivery(ctx context.Context, d Delivery) error
}
