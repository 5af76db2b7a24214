package report

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ReportRepository runs the aggregate queries behind each report.
// Ranges are inclusive calendar days.
type ReportRepository interface {
	// Revenue
	RevenueSummary(ctx context.Context, workspaceID string, from, to time.Time) (RevenueSummary, error)
	CollectedSummary(ctx context.Context, workspaceID string, from, to time.Time) (total decimal.Decimal, count int, err error)
	InvoiceStatusBreakdown(ctx context.Context, workspaceID string, from, to time.Time) ([]GroupTotal, error)
	RevenueTrend(ctx context.Context, workspaceID string, from, to time.Time, groupBy string) ([]TrendPoint, error)
	RevenueByClient(ctx context.Context, workspaceID string, from, to time.Time, limit int) ([]GroupTotal, error)
	RevenueByCurrency(ctx context.Context, workspaceID string, from, to time.Time) ([]GroupTotal, error)

	// Receivables
	OpenInvoices(ctx context.Context, workspaceID string) ([]OpenInvoice, error)

	// Cash flow
	PaymentsByMonth(ctx context.Context, workspaceID string, from, to time.Time) ([]PeriodTotal, error)
	PaymentsByMethod(ctx context.Context, workspaceID string, from, to time.Time) ([]GroupTotal, error)
	ExpensesByMonth(ctx context.Context, workspaceID string, from, to time.Time) ([]PeriodTotal, error)
	ExpensesByCategory(ctx context.Context, workspaceID string, from, to time.Time) ([]GroupTotal, error)

	ClientProfitability(ctx context.Context, workspaceID string, from, to time.Time) ([]ClientProfit, error)

	// Tax
	TaxCollected(ctx context.Context, workspaceID string, from, to time.Time) (TaxTotals, error)
	TaxByRate(ctx context.Context, workspaceID string, from, to time.Time) ([]TaxRateTotal, error)
	TaxCollectedByMonth(ctx context.Context, workspaceID string, from, to time.Time) ([]PeriodTotal, error)
	TaxPaid(ctx context.Context, workspaceID string, from, to time.Time) (TaxTotals, error)
	TaxPaidByMonth(ctx context.Context, workspaceID string, from, to time.Time) ([]PeriodTotal, error)

	// Expenses
	ExpenseTotals(ctx context.Context, workspaceID string, from, to time.Time) (ExpenseTotals, error)
	ExpensesByStatus(ctx context.Context, workspaceID string, from, to time.Time) ([]GroupTotal, error)
	ExpensesByVendor(ctx context.Context, workspaceID string, from, to time.Time) ([]GroupTotal, error)

	// Shared links
	CreateSharedLink(ctx context.Context, link SharedLink) (SharedLink, error)
	GetSharedLinkByToken(ctx context.Context, token string) (SharedLink, error)
	ListSharedLinks(ctx context.Context, workspaceID string) ([]SharedLink, error)
	RecordView(ctx context.Context, linkID string, at time.Time) error
	DeactivateSharedLink(ctx context.Context, workspaceID, id string) error
	LogAccess(ctx context.Context, log AccessLog) error
}

// Cache stores rendered report results per workspace
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	InvalidateWorkspace(ctx context.Context, workspaceID string) error
}

// Invalidator is implemented by the report service for writers of billing data
type Invalidator interface {
	InvalidateWorkspace(ctx context.Context, workspaceID string)
}
