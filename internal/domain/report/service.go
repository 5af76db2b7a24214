package report

import (
	"context"
)

type ReportService interface {
	Revenue(ctx context.Context, workspaceID string, r DateRange, groupBy string) (RevenueReport, error)
	Aging(ctx context.Context, workspaceID string) (AgingReport, error)
	CashFlow(ctx context.Context, workspaceID string, r DateRange) (CashFlowReport, error)
	Profitability(ctx context.Context, workspaceID string, r DateRange) (ProfitabilityReport, error)
	Tax(ctx context.Context, workspaceID string, r DateRange) (TaxReport, error)
	Expenses(ctx context.Context, workspaceID string, r DateRange) (ExpenseReport, error)
	Forecast(ctx context.Context, workspaceID string, days int) (ForecastReport, error)

	// Run dispatches q to the matching report
	Run(ctx context.Context, q Query) (any, error)
	ExportCSV(ctx context.Context, q Query) ([]byte, string, error)

	InvalidateWorkspace(ctx context.Context, workspaceID string)

	// ==================== Shared links ====================

	CreateSharedLink(ctx context.Context, workspaceID, userID string, req CreateSharedLinkRequest) (SharedLinkResponse, error)
	ListSharedLinks(ctx context.Context, workspaceID string) ([]SharedLinkResponse, error)
	DeactivateSharedLink(ctx context.Context, workspaceID, id string) error
	GetSharedReport(ctx context.Context, token, password, ip, userAgent string) (SharedReportResponse, error)
}
