package estimate

import (
	"context"
	"time"
)

type EstimateRepository interface {
	Create(ctx context.Context, e Estimate) (Estimate, error)
	GetByID(ctx context.Context, workspaceID, id string) (Estimate, error)
	GetByIDForUpdate(ctx context.Context, workspaceID, id string) (Estimate, error)
	GetByPublicToken(ctx context.Context, token string) (Estimate, error)
	List(ctx context.Context, filter EstimateFilter) ([]Estimate, int64, error)
	Update(ctx context.Context, e Estimate) error
	ReplaceItems(ctx context.Context, estimateID string, items []Item) error
	Delete(ctx context.Context, workspaceID, id string) error
	// ExpireBefore marks sent and viewed estimates with an expiry date before day as expired
	ExpireBefore(ctx context.Context, day time.Time) (int64, error)

	CreateActivity(ctx context.Context, a Activity) error
}
