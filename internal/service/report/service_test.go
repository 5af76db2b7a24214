package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/recurring"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/report"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/cache"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/testutil"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const workspaceID = "ws-1"

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type fakeReportRepo struct {
	report.ReportRepository
	calls map[string]int

	summary   report.RevenueSummary
	collected decimal.Decimal
	payments  int
	breakdown []report.GroupTotal
	open      []report.OpenInvoice
	inflows   []report.PeriodTotal
	outflows  []report.PeriodTotal
	profits   []report.ClientProfit

	links  map[string]report.SharedLink
	views  int
	access []report.AccessLog
}

func newFakeReportRepo() *fakeReportRepo {
	return &fakeReportRepo{calls: map[string]int{}, links: map[string]report.SharedLink{}}
}

func (r *fakeReportRepo) RevenueSummary(_ context.Context, _ string, _, _ time.Time) (report.RevenueSummary, error) {
	r.calls["revenue"]++
	return r.summary, nil
}

func (r *fakeReportRepo) CollectedSummary(_ context.Context, _ string, _, _ time.Time) (decimal.Decimal, int, error) {
	return r.collected, r.payments, nil
}

func (r *fakeReportRepo) InvoiceStatusBreakdown(_ context.Context, _ string, _, _ time.Time) ([]report.GroupTotal, error) {
	return r.breakdown, nil
}

func (r *fakeReportRepo) RevenueTrend(_ context.Context, _ string, _, _ time.Time, _ string) ([]report.TrendPoint, error) {
	return nil, nil
}

func (r *fakeReportRepo) RevenueByClient(_ context.Context, _ string, _, _ time.Time, _ int) ([]report.GroupTotal, error) {
	return nil, nil
}

func (r *fakeReportRepo) RevenueByCurrency(_ context.Context, _ string, _, _ time.Time) ([]report.GroupTotal, error) {
	return nil, nil
}

func (r *fakeReportRepo) OpenInvoices(_ context.Context, _ string) ([]report.OpenInvoice, error) {
	return r.open, nil
}

func (r *fakeReportRepo) PaymentsByMonth(_ context.Context, _ string, _, _ time.Time) ([]report.PeriodTotal, error) {
	return r.inflows, nil
}

func (r *fakeReportRepo) PaymentsByMethod(_ context.Context, _ string, _, _ time.Time) ([]report.GroupTotal, error) {
	return nil, nil
}

func (r *fakeReportRepo) ExpensesByMonth(_ context.Context, _ string, _, _ time.Time) ([]report.PeriodTotal, error) {
	return r.outflows, nil
}

func (r *fakeReportRepo) ExpensesByCategory(_ context.Context, _ string, _, _ time.Time) ([]report.GroupTotal, error) {
	return nil, nil
}

func (r *fakeReportRepo) ClientProfitability(_ context.Context, _ string, _, _ time.Time) ([]report.ClientProfit, error) {
	return r.profits, nil
}

func (r *fakeReportRepo) CreateSharedLink(_ context.Context, link report.SharedLink) (report.SharedLink, error) {
	link.ID = "link-1"
	r.links[link.Token] = link
	return link, nil
}

func (r *fakeReportRepo) GetSharedLinkByToken(_ context.Context, token string) (report.SharedLink, error) {
	link, ok := r.links[token]
	if !ok {
		return report.SharedLink{}, pgx.ErrNoRows
	}
	return link, nil
}

func (r *fakeReportRepo) DeactivateSharedLink(_ context.Context, ws, id string) error {
	for token, link := range r.links {
		if link.ID == id && link.WorkspaceID == ws {
			link.IsActive = false
			r.links[token] = link
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (r *fakeReportRepo) RecordView(_ context.Context, _ string, _ time.Time) error {
	r.views++
	return nil
}

func (r *fakeReportRepo) LogAccess(_ context.Context, log report.AccessLog) error {
	r.access = append(r.access, log)
	return nil
}

type fakeSchedules struct {
	schedules []recurring.Schedule
}

func (f *fakeSchedules) ListActive(_ context.Context, _ string) ([]recurring.Schedule, error) {
	return f.schedules, nil
}

func newService(t *testing.T, repo *fakeReportRepo, schedules ScheduleSource) (*ReportServiceImpl, *testutil.Clock) {
	t.Helper()
	clock := testutil.NewClock(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	svc := NewReportService(repo, cache.NewMemoryStore(), schedules).(*ReportServiceImpl)
	svc.now = clock.Now
	return svc, clock
}

func revenueRepo() *fakeReportRepo {
	repo := newFakeReportRepo()
	repo.summary = report.RevenueSummary{TotalInvoiced: dec("1000"), InvoiceCount: 3}
	repo.collected, repo.payments = dec("400"), 2
	repo.breakdown = []report.GroupTotal{
		{Key: "sent", Count: 2, Total: dec("600"), Collected: decimal.Zero},
		{Key: "paid", Count: 1, Total: dec("400"), Collected: dec("400")},
	}
	return repo
}

func TestRevenue(t *testing.T) {
	ctx := context.Background()
	svc, clock := newService(t, revenueRepo(), nil)
	r := report.FromPreset(report.PresetThisMonth, clock.Now())

	out, err := svc.Revenue(ctx, workspaceID, r, "")
	require.NoError(t, err)
	assert.Equal(t, report.GroupByMonth, out.GroupBy)
	assert.True(t, dec("600").Equal(out.Summary.Outstanding))
	assert.True(t, dec("40").Equal(out.Summary.CollectionRate))
	assert.True(t, dec("200").Equal(out.Summary.AvgPayment))
	assert.NotNil(t, out.Trend)

	_, err = svc.Revenue(ctx, workspaceID, r, "hour")
	assert.ErrorIs(t, err, report.ErrInvalidGroupBy)
}

func TestRevenue_CachedUntilInvalidated(t *testing.T) {
	ctx := context.Background()
	repo := revenueRepo()
	svc, clock := newService(t, repo, nil)
	r := report.FromPreset(report.PresetThisMonth, clock.Now())

	first, err := svc.Revenue(ctx, workspaceID, r, report.GroupByWeek)
	require.NoError(t, err)
	second, err := svc.Revenue(ctx, workspaceID, r, report.GroupByWeek)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.calls["revenue"])
	assert.Equal(t, first.DateRange, second.DateRange)
	assert.True(t, first.Summary.TotalCollected.Equal(second.Summary.TotalCollected))

	_, err = svc.Revenue(ctx, workspaceID, r, report.GroupByDay)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.calls["revenue"], "different params miss the cache")

	svc.InvalidateWorkspace(ctx, workspaceID)
	_, err = svc.Revenue(ctx, workspaceID, r, report.GroupByWeek)
	require.NoError(t, err)
	assert.Equal(t, 3, repo.calls["revenue"])
}

func TestProfitability_TopAndLeast(t *testing.T) {
	repo := newFakeReportRepo()
	for i, paid := range []string{"100", "700", "300", "50", "900", "400"} {
		repo.profits = append(repo.profits, report.ClientProfit{
			ClientID:       string(rune('a' + i)),
			TotalCollected: dec(paid),
			TotalExpenses:  dec("40"),
			InvoiceCount:   1,
		})
	}
	svc, clock := newService(t, repo, nil)

	out, err := svc.Profitability(context.Background(), workspaceID, report.FromPreset(report.PresetThisYear, clock.Now()))
	require.NoError(t, err)
	require.Len(t, out.Clients, 6)
	require.Len(t, out.TopProfitable, 5)
	require.Len(t, out.LeastProfitable, 5)
	assert.Equal(t, "e", out.TopProfitable[0].ClientID)
	assert.Equal(t, "d", out.LeastProfitable[0].ClientID)
	assert.True(t, dec("2210").Equal(out.Totals.TotalProfit))
}

func TestForecast_ProjectsRecurringRuns(t *testing.T) {
	repo := newFakeReportRepo()
	repo.open = []report.OpenInvoice{{ID: "inv-1", DueDate: date(2025, 3, 20), AmountDue: dec("50")}}
	schedules := &fakeSchedules{schedules: []recurring.Schedule{{
		ID:                     "sch-1",
		IntervalType:           recurring.IntervalMonthly,
		NextRunDate:            date(2025, 3, 15),
		BaseAmount:             dec("100"),
		TaxRate:                dec("10"),
		MaxOccurrences:         testutil.Ptr(3),
		TotalInvoicesGenerated: 1,
		Status:                 recurring.StatusActive,
	}}}
	svc, _ := newService(t, repo, schedules)

	out, err := svc.Forecast(context.Background(), workspaceID, 0)
	require.NoError(t, err)
	assert.Equal(t, report.ForecastDays, out.DaysAhead)
	assert.Equal(t, "2025-03-10", out.Today)
	assert.Equal(t, 1, out.InvoiceCount)
	assert.True(t, dec("270").Equal(out.TotalExpected), out.TotalExpected.String())

	var recurringRuns int
	for _, w := range out.Weeks {
		recurringRuns += w.RecurringCount
	}
	assert.Equal(t, 2, recurringRuns, "occurrence cap stops the third run")
}

func TestRun_UnknownType(t *testing.T) {
	svc, _ := newService(t, newFakeReportRepo(), nil)
	_, err := svc.Run(context.Background(), report.Query{WorkspaceID: workspaceID, Type: "payroll"})
	assert.ErrorIs(t, err, report.ErrUnknownReportType)
}

func TestExportCSV_CashFlow(t *testing.T) {
	repo := newFakeReportRepo()
	repo.inflows = []report.PeriodTotal{{Period: "2025-01", Count: 1, Total: dec("100")}, {Period: "2025-02", Count: 1, Total: dec("20")}}
	repo.outflows = []report.PeriodTotal{{Period: "2025-01", Count: 2, Total: dec("40")}}
	svc, _ := newService(t, repo, nil)

	r, err := report.Custom(date(2025, 1, 1), date(2025, 2, 28))
	require.NoError(t, err)
	data, name, err := svc.ExportCSV(context.Background(), report.Query{WorkspaceID: workspaceID, Type: report.TypeCashFlow, Range: r})
	require.NoError(t, err)
	assert.Equal(t, "cashflow_2025-01-01_2025-02-28.csv", name)

	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"period", "inflow", "outflow", "net", "running_balance"}, rows[0])
	assert.Equal(t, []string{"2025-01", "100.00", "40.00", "60.00", "60.00"}, rows[1])
	assert.Equal(t, []string{"2025-02", "20.00", "0.00", "20.00", "80.00"}, rows[2])
}

func TestSharedLinks(t *testing.T) {
	ctx := context.Background()
	repo := revenueRepo()
	svc, clock := newService(t, repo, nil)

	_, err := svc.CreateSharedLink(ctx, workspaceID, "user-1", report.CreateSharedLinkRequest{ReportType: "payroll"})
	assert.Error(t, err)

	link, err := svc.CreateSharedLink(ctx, workspaceID, "user-1", report.CreateSharedLinkRequest{
		ReportType: report.TypeRevenue,
		Preset:     report.PresetLastMonth,
		Password:   "s3cret",
	})
	require.NoError(t, err)
	assert.Len(t, link.Token, 43)
	assert.True(t, link.HasPassword)
	assert.Equal(t, "Revenue report (Last Month)", link.Name)
	assert.Equal(t, clock.Now().AddDate(0, 0, 7).Format(time.RFC3339), link.ExpiresAt)

	t.Run("password", func(t *testing.T) {
		_, err := svc.GetSharedReport(ctx, link.Token, "", "1.2.3.4", "curl")
		assert.ErrorIs(t, err, report.ErrPasswordRequired)
		_, err = svc.GetSharedReport(ctx, link.Token, "wrong", "1.2.3.4", "curl")
		assert.ErrorIs(t, err, report.ErrInvalidPassword)
	})

	t.Run("view", func(t *testing.T) {
		out, err := svc.GetSharedReport(ctx, link.Token, "s3cret", "1.2.3.4", "curl")
		require.NoError(t, err)
		rev, ok := out.Data.(report.RevenueReport)
		require.True(t, ok)
		assert.Equal(t, date(2025, 2, 1), rev.DateRange.Start)
		assert.Equal(t, 1, repo.views)
		require.Len(t, repo.access, 1)
		assert.Equal(t, "1.2.3.4", repo.access[0].IPAddress)
		assert.Equal(t, "curl", repo.access[0].UserAgent)
	})

	t.Run("unknown token", func(t *testing.T) {
		_, err := svc.GetSharedReport(ctx, "nope", "", "", "")
		assert.ErrorIs(t, err, report.ErrSharedLinkNotFound)
	})

	t.Run("expired", func(t *testing.T) {
		clock.Advance(8 * 24 * time.Hour)
		defer clock.Advance(-8 * 24 * time.Hour)
		_, err := svc.GetSharedReport(ctx, link.Token, "s3cret", "", "")
		assert.ErrorIs(t, err, report.ErrSharedLinkExpired)
	})

	t.Run("deactivated", func(t *testing.T) {
		require.NoError(t, svc.DeactivateSharedLink(ctx, workspaceID, link.ID))
		_, err := svc.GetSharedReport(ctx, link.Token, "s3cret", "", "")
		assert.ErrorIs(t, err, report.ErrSharedLinkInactive)
		assert.ErrorIs(t, svc.DeactivateSharedLink(ctx, "ws-other", link.ID), report.ErrSharedLinkNotFound)
	})
}
