package estimate

import (
	"context"
	"time"
)

type EstimateService interface {
	Create(ctx context.Context, workspaceID, userID string, req EstimateRequest) (EstimateResponse, error)
	Get(ctx context.Context, workspaceID, id string) (EstimateResponse, error)
	List(ctx context.Context, filter EstimateFilter) ([]EstimateResponse, int64, error)
	Update(ctx context.Context, workspaceID, userID, id string, req EstimateRequest) (EstimateResponse, error)
	Delete(ctx context.Context, workspaceID, id string) error
	Send(ctx context.Context, workspaceID, userID, id string) (EstimateResponse, error)
	ConvertToInvoice(ctx context.Context, workspaceID, userID, id string) (ConversionResponse, error)
	RenderPDF(ctx context.Context, workspaceID, id string) ([]byte, string, error)

	// Public access by token
	GetByPublicToken(ctx context.Context, token, ip string) (PublicEstimateResponse, error)
	Approve(ctx context.Context, token, ip string) (PublicEstimateResponse, error)
	Decline(ctx context.Context, token, ip string, req DeclineRequest) (PublicEstimateResponse, error)

	ExpireStale(ctx context.Context, day time.Time) (int64, error)
}
