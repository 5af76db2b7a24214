package webhook

import (
	"context"
	"time"
)

// Dispatcher queues an event for every subscribed endpoint of a workspace
type Dispatcher interface {
	Dispatch(ctx context.Context, workspaceID string, event Event, data any)
}

type WebhookService interface {
	Dispatcher

	CreateEndpoint(ctx context.Context, workspaceID string, req EndpointRequest) (EndpointResponse, error)
	ListEndpoints(ctx context.Context, workspaceID string) ([]EndpointResponse, error)
	UpdateEndpoint(ctx context.Context, workspaceID, id string, req EndpointRequest) (EndpointResponse, error)
	DeleteEndpoint(ctx context.Context, workspaceID, id string) error
	ListDeliveries(ctx context.Context, workspaceID, endpointID string, page, limit int) ([]DeliveryResponse, int64, error)
	Redeliver(ctx context.Context, workspaceID, deliveryID string) (DeliveryResponse, error)
	ProcessPendingDeliveries(ctx context.Context, now time.Time) (DeliverResult, error)
}
