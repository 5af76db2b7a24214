package report

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/recurring"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/report"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/database"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/money"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/utils"
	"github.com/shopspring/decimal"
)

const (
	cacheTTL           = 300 * time.Second
	topClientLimit     = 10
	profitabilityTop   = 5
	sharedTokenBytes   = 32
	defaultLinkExpires = 7
)

// ScheduleSource lists the active recurring schedules of a workspace for the forecast
type ScheduleSource interface {
	ListActive(ctx context.Context, workspaceID string) ([]recurring.Schedule, error)
}

type ReportServiceImpl struct {
	report.ReportRepository
	cache     report.Cache
	schedules ScheduleSource
	now       func() time.Time
}

// NewReportService builds the report service. cache may be nil, results are then computed on every call.
func NewReportService(reportRepo report.ReportRepository, cache report.Cache, schedules ScheduleSource) report.ReportService {
	return &ReportServiceImpl{
		ReportRepository: reportRepo,
		cache:            cache,
		schedules:        schedules,
		now:              time.Now,
	}
}

func (s *ReportServiceImpl) today() time.Time {
	return recurring.DateOnly(s.now())
}

// cached returns the cached result of q, or builds and stores it
func cached[T any](ctx context.Context, s *ReportServiceImpl, q report.Query, build func() (T, error)) (T, error) {
	key := q.CacheKey()
	if s.cache != nil {
		data, found, err := s.cache.Get(ctx, key)
		if err != nil {
			slog.Warn("Failed to read report cache", "key", key, "error", err)
		} else if found {
			var out T
			if err := json.Unmarshal(data, &out); err == nil {
				return out, nil
			}
		}
	}

	out, err := build()
	if err != nil {
		return out, err
	}

	if s.cache != nil {
		data, err := json.Marshal(out)
		if err == nil {
			err = s.cache.Set(ctx, key, data, cacheTTL)
		}
		if err != nil {
			slog.Warn("Failed to write report cache", "key", key, "error", err)
		}
	}
	return out, nil
}

// InvalidateWorkspace drops every cached report of the workspace
func (s *ReportServiceImpl) InvalidateWorkspace(ctx context.Context, workspaceID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateWorkspace(ctx, workspaceID); err != nil {
		slog.Warn("Failed to invalidate report cache", "workspace_id", workspaceID, "error", err)
	}
}

// ==================== Reports ====================

// Revenue implements report.ReportService.
func (s *ReportServiceImpl) Revenue(ctx context.Context, workspaceID string, r report.DateRange, groupBy string) (report.RevenueReport, error) {
	if groupBy == "" {
		groupBy = report.GroupByMonth
	}
	switch groupBy {
	case report.GroupByDay, report.GroupByWeek, report.GroupByMonth:
	default:
		return report.RevenueReport{}, report.ErrInvalidGroupBy
	}

	q := report.Query{WorkspaceID: workspaceID, Type: report.TypeRevenue, Range: r, GroupBy: groupBy}
	return cached(ctx, s, q, func() (report.RevenueReport, error) {
		summary, err := s.RevenueSummary(ctx, workspaceID, r.Start, r.End)
		if err != nil {
			return report.RevenueReport{}, err
		}
		collected, payments, err := s.CollectedSummary(ctx, workspaceID, r.Start, r.End)
		if err != nil {
			return report.RevenueReport{}, fmt.Errorf("failed to summarize collections: %w", err)
		}
		breakdown, err := s.InvoiceStatusBreakdown(ctx, workspaceID, r.Start, r.End)
		if err != nil {
			return report.RevenueReport{}, fmt.Errorf("failed to get status breakdown: %w", err)
		}
		trend, err := s.RevenueTrend(ctx, workspaceID, r.Start, r.End, groupBy)
		if err != nil {
			return report.RevenueReport{}, fmt.Errorf("failed to get revenue trend: %w", err)
		}
		clients, err := s.RevenueByClient(ctx, workspaceID, r.Start, r.End, topClientLimit)
		if err != nil {
			return report.RevenueReport{}, fmt.Errorf("failed to get revenue by client: %w", err)
		}
		currencies, err := s.RevenueByCurrency(ctx, workspaceID, r.Start, r.End)
		if err != nil {
			return report.RevenueReport{}, fmt.Errorf("failed to get revenue by currency: %w", err)
		}

		summary.TotalCollected = collected
		summary.PaymentCount = payments
		summary.AvgPayment = decimal.Zero
		if payments > 0 {
			summary.AvgPayment = money.Round(collected.Div(decimal.NewFromInt(int64(payments))))
		}
		summary.Outstanding = decimal.Zero
		for _, b := range breakdown {
			summary.Outstanding = summary.Outstanding.Add(money.Max(b.Total.Sub(b.Collected), decimal.Zero))
		}
		summary.CollectionRate = report.Rate(collected, summary.TotalInvoiced)

		return report.RevenueReport{
			DateRange:       r,
			GroupBy:         groupBy,
			Summary:         summary,
			StatusBreakdown: orEmpty(breakdown),
			Trend:           orEmpty(trend),
			TopClients:      orEmpty(clients),
			ByCurrency:      orEmpty(currencies),
		}, nil
	})
}

// Aging implements report.ReportService.
func (s *ReportServiceImpl) Aging(ctx context.Context, workspaceID string) (report.AgingReport, error) {
	today := s.today()
	q := report.Query{WorkspaceID: workspaceID, Type: report.TypeAging, Range: report.FromPreset(report.PresetToday, today)}
	return cached(ctx, s, q, func() (report.AgingReport, error) {
		invoices, err := s.OpenInvoices(ctx, workspaceID)
		if err != nil {
			return report.AgingReport{}, fmt.Errorf("failed to list open invoices: %w", err)
		}
		return report.BuildAging(invoices, today), nil
	})
}

// CashFlow implements report.ReportService.
func (s *ReportServiceImpl) CashFlow(ctx context.Context, workspaceID string, r report.DateRange) (report.CashFlowReport, error) {
	q := report.Query{WorkspaceID: workspaceID, Type: report.TypeCashFlow, Range: r}
	return cached(ctx, s, q, func() (report.CashFlowReport, error) {
		inflows, err := s.PaymentsByMonth(ctx, workspaceID, r.Start, r.End)
		if err != nil {
			return report.CashFlowReport{}, fmt.Errorf("failed to get payments by month: %w", err)
		}
		outflows, err := s.ExpensesByMonth(ctx, workspaceID, r.Start, r.End)
		if err != nil {
			return report.CashFlowReport{}, fmt.Errorf("failed to get expenses by month: %w", err)
		}
		methods, err := s.PaymentsByMethod(ctx, workspaceID, r.Start, r.End)
		if err != nil {
			return report.CashFlowReport{}, fmt.Errorf("failed to get payments by method: %w", err)
		}
		categories, err := s.ExpensesByCategory(ctx, workspaceID, r.Start, r.End)
		if err != nil {
			return report.CashFlowReport{}, fmt.Errorf("failed to get expenses by category: %w", err)
		}

		periods, summary := report.BuildCashFlow(inflows, outflows)
		return report.CashFlowReport{
			DateRange:          r,
			Periods:            periods,
			Summary:            summary,
			ByPaymentMethod:    orEmpty(methods),
			ExpensesByCategory: orEmpty(categories),
		}, nil
	})
}

// Profitability implements report.ReportService.
func (s *ReportServiceImpl) Profitability(ctx context.Context, workspaceID string, r report.DateRange) (report.ProfitabilityReport, error) {
	q := report.Query{WorkspaceID: workspaceID, Type: report.TypeProfitability, Range: r}
	return cached(ctx, s, q, func() (report.ProfitabilityReport, error) {
		rows, err := s.ClientProfitability(ctx, workspaceID, r.Start, r.End)
		if err != nil {
			return report.ProfitabilityReport{}, err
		}

		clients, totals := report.BuildProfitability(rows)
		top := clients[:min(profitabilityTop, len(clients))]
		least := make([]report.ClientProfit, 0, profitabilityTop)
		for i := len(clients) - 1; i >= 0 && len(least) < profitabilityTop; i-- {
			least = append(least, clients[i])
		}

		return report.ProfitabilityReport{
			DateRange:       r,
			Clients:         clients,
			Totals:          totals,
			TopProfitable:   top,
			LeastProfitable: least,
		}, nil
	})
}

// Tax implements report.ReportService.
func (s *ReportServiceImpl) Tax(ctx context.Context, workspaceID string, r report.DateRange) (report.TaxReport, error) {
	q := report.Query{WorkspaceID: workspaceID, Type: report.TypeTax, Range: r}
	return cached(ctx, s, q, func() (report.TaxReport, error) {
		collected, err := s.TaxCollected(ctx, workspaceID, r.Start, r.End)
		if err != nil {
			return report.TaxReport{}, err
		}
		paid, err := s.TaxPaid(ctx, workspaceID, r.Start, r.End)
		if err != nil {
			return report.TaxReport{}, err
		}
		byRate, err := s.TaxByRate(ctx, workspaceID, r.Start, r.End)
		if err != nil {
			return report.TaxReport{}, err
		}
		collectedMonthly, err := s.TaxCollectedByMonth(ctx, workspaceID, r.Start, r.End)
		if err != nil {
			return report.TaxReport{}, fmt.Errorf("failed to get tax collected by month: %w", err)
		}
		paidMonthly, err := s.TaxPaidByMonth(ctx, workspaceID, r.Start, r.End)
		if err != nil {
			return report.TaxReport{}, fmt.Errorf("failed to get tax paid by month: %w", err)
		}

		return report.TaxReport{
			DateRange:       r,
			TaxCollected:    collected,
			TaxPaid:         paid,
			NetTaxLiability: collected.TotalTax.Sub(paid.TotalTax),
			ByRate:          orEmpty(byRate),
			Monthly:         report.BuildTaxMonths(collectedMonthly, paidMonthly),
		}, nil
	})
}

// Expenses implements report.ReportService.
func (s *ReportServiceImpl) Expenses(ctx context.Context, workspaceID string, r report.DateRange) (report.ExpenseReport, error) {
	q := report.Query{WorkspaceID: workspaceID, Type: report.TypeExpenses, Range: r}
	return cached(ctx, s, q, func() (report.ExpenseReport, error) {
		totals, err := s.ExpenseTotals(ctx, workspaceID, r.Start, r.End)
		if err != nil {
			return report.ExpenseReport{}, err
		}
		byStatus, err := s.ExpensesByStatus(ctx, workspaceID, r.Start, r.End)
		if err != nil {
			return report.ExpenseReport{}, fmt.Errorf("failed to get expenses by status: %w", err)
		}
		byCategory, err := s.ExpensesByCategory(ctx, workspaceID, r.Start, r.End)
		if err != nil {
			return report.ExpenseReport{}, fmt.Errorf("failed to get expenses by category: %w", err)
		}
		byVendor, err := s.ExpensesByVendor(ctx, workspaceID, r.Start, r.End)
		if err != nil {
			return report.ExpenseReport{}, fmt.Errorf("failed to get expenses by vendor: %w", err)
		}
		byMonth, err := s.ExpensesByMonth(ctx, workspaceID, r.Start, r.End)
		if err != nil {
			return report.ExpenseReport{}, fmt.Errorf("failed to get expenses by month: %w", err)
		}

		return report.ExpenseReport{
			DateRange:  r,
			Summary:    totals,
			ByStatus:   orEmpty(byStatus),
			ByCategory: orEmpty(byCategory),
			ByVendor:   orEmpty(byVendor),
			ByMonth:    orEmpty(byMonth),
		}, nil
	})
}

// Forecast implements report.ReportService.
func (s *ReportServiceImpl) Forecast(ctx context.Context, workspaceID string, days int) (report.ForecastReport, error) {
	if days <= 0 {
		days = report.ForecastDays
	}
	today := s.today()
	end := today.AddDate(0, 0, days)
	q := report.Query{WorkspaceID: workspaceID, Type: report.TypeForecast, Range: report.DateRange{Preset: report.PresetCustom, Start: today, End: end}}

	return cached(ctx, s, q, func() (report.ForecastReport, error) {
		invoices, err := s.OpenInvoices(ctx, workspaceID)
		if err != nil {
			return report.ForecastReport{}, fmt.Errorf("failed to list open invoices: %w", err)
		}

		var charges []report.ScheduledCharge
		if s.schedules != nil {
			schedules, err := s.schedules.ListActive(ctx, workspaceID)
			if err != nil {
				return report.ForecastReport{}, fmt.Errorf("failed to list active schedules: %w", err)
			}
			for i := range schedules {
				charges = append(charges, scheduledCharges(&schedules[i], today, end)...)
			}
		}
		return report.BuildForecast(invoices, charges, today, days), nil
	})
}

// scheduledCharges projects the runs of sch between today and end, stopping at its end date or occurrence cap
func scheduledCharges(sch *recurring.Schedule, today, end time.Time) []report.ScheduledCharge {
	amount := sch.BaseAmount.Add(money.Percent(sch.BaseAmount, sch.TaxRate))
	projected := *sch

	var charges []report.ScheduledCharge
	for run := recurring.DateOnly(sch.NextRunDate); !run.After(end); run = projected.CalculateNextRunDate(run) {
		if projected.HasEnded(run) {
			break
		}
		if !run.Before(today) {
			charges = append(charges, report.ScheduledCharge{ScheduleID: sch.ID, Date: run, Amount: amount})
		}
		projected.TotalInvoicesGenerated++
	}
	return charges
}

// Run implements report.ReportService.
func (s *ReportServiceImpl) Run(ctx context.Context, q report.Query) (any, error) {
	switch q.Type {
	case report.TypeRevenue:
		return s.Revenue(ctx, q.WorkspaceID, q.Range, q.GroupBy)
	case report.TypeAging:
		return s.Aging(ctx, q.WorkspaceID)
	case report.TypeCashFlow:
		return s.CashFlow(ctx, q.WorkspaceID, q.Range)
	case report.TypeProfitability:
		return s.Profitability(ctx, q.WorkspaceID, q.Range)
	case report.TypeTax:
		return s.Tax(ctx, q.WorkspaceID, q.Range)
	case report.TypeExpenses:
		return s.Expenses(ctx, q.WorkspaceID, q.Range)
	case report.TypeForecast:
		return s.Forecast(ctx, q.WorkspaceID, report.ForecastDays)
	}
	return nil, report.ErrUnknownReportType
}

// ExportCSV implements report.ReportService. It returns the file content and its name.
func (s *ReportServiceImpl) ExportCSV(ctx context.Context, q report.Query) ([]byte, string, error) {
	data, err := s.Run(ctx, q)
	if err != nil {
		return nil, "", err
	}

	var rows [][]string
	switch rep := data.(type) {
	case report.RevenueReport:
		rows = append(rows, []string{"period", "invoiced", "collected", "count"})
		for _, p := range rep.Trend {
			rows = append(rows, []string{p.Period, p.Invoiced.StringFixed(2), p.Collected.StringFixed(2), strconv.Itoa(p.Count)})
		}
		rows = append(rows, []string{"total", rep.Summary.TotalInvoiced.StringFixed(2), rep.Summary.TotalCollected.StringFixed(2), strconv.Itoa(rep.Summary.InvoiceCount)})
	case report.AgingReport:
		rows = append(rows, []string{"bucket", "invoice_number", "client", "due_date", "days_overdue", "amount_due", "currency"})
		for _, b := range rep.Buckets {
			for _, inv := range b.Invoices {
				rows = append(rows, []string{b.Key, inv.InvoiceNumber, inv.ClientName, inv.DueDate.Format(time.DateOnly),
					strconv.Itoa(inv.DaysOverdue), inv.AmountDue.StringFixed(2), inv.Currency})
			}
		}
	case report.CashFlowReport:
		rows = append(rows, []string{"period", "inflow", "outflow", "net", "running_balance"})
		for _, p := range rep.Periods {
			rows = append(rows, []string{p.Period, p.Inflow.StringFixed(2), p.Outflow.StringFixed(2), p.Net.StringFixed(2), p.RunningBalance.StringFixed(2)})
		}
	case report.ProfitabilityReport:
		rows = append(rows, []string{"client", "invoiced", "collected", "expenses", "profit", "margin"})
		for _, c := range rep.Clients {
			rows = append(rows, []string{c.ClientName, c.TotalInvoiced.StringFixed(2), c.TotalCollected.StringFixed(2),
				c.TotalExpenses.StringFixed(2), c.Profit.StringFixed(2), c.Margin.StringFixed(1)})
		}
	case report.TaxReport:
		rows = append(rows, []string{"period", "tax_collected", "tax_paid", "net_tax"})
		for _, m := range rep.Monthly {
			rows = append(rows, []string{m.Period, m.TaxCollected.StringFixed(2), m.TaxPaid.StringFixed(2), m.NetTax.StringFixed(2)})
		}
		rows = append(rows, []string{"total", rep.TaxCollected.TotalTax.StringFixed(2), rep.TaxPaid.TotalTax.StringFixed(2), rep.NetTaxLiability.StringFixed(2)})
	case report.ExpenseReport:
		rows = append(rows, []string{"group", "key", "count", "total"})
		for _, g := range []struct {
			name   string
			totals []report.GroupTotal
		}{{"category", rep.ByCategory}, {"vendor", rep.ByVendor}, {"status", rep.ByStatus}} {
			for _, t := range g.totals {
				label := t.Label
				if label == "" {
					label = t.Key
				}
				rows = append(rows, []string{g.name, label, strconv.Itoa(t.Count), t.Total.StringFixed(2)})
			}
		}
		for _, m := range rep.ByMonth {
			rows = append(rows, []string{"month", m.Period, strconv.Itoa(m.Count), m.Total.StringFixed(2)})
		}
	case report.ForecastReport:
		rows = append(rows, []string{"week_start", "week_end", "invoice_amount", "recurring_amount", "expected_amount"})
		for _, w := range rep.Weeks {
			rows = append(rows, []string{w.WeekStart, w.WeekEnd, w.InvoiceAmount.StringFixed(2), w.RecurringAmount.StringFixed(2), w.ExpectedAmount.StringFixed(2)})
		}
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return nil, "", fmt.Errorf("failed to write csv: %w", err)
	}

	name := fmt.Sprintf("%s_%s_%s.csv", q.Type, q.Range.Start.Format(time.DateOnly), q.Range.End.Format(time.DateOnly))
	if q.Type == report.TypeAging || q.Type == report.TypeForecast {
		name = fmt.Sprintf("%s_%s.csv", q.Type, s.today().Format(time.DateOnly))
	}
	return buf.Bytes(), name, nil
}

// ==================== Shared links ====================

// CreateSharedLink implements report.ReportService.
func (s *ReportServiceImpl) CreateSharedLink(ctx context.Context, workspaceID, userID string, req report.CreateSharedLinkRequest) (report.SharedLinkResponse, error) {
	if err := req.Validate(); err != nil {
		return report.SharedLinkResponse{}, err
	}
	r, err := report.Resolve(req.Preset, req.StartDate, req.EndDate, s.today())
	if err != nil {
		return report.SharedLinkResponse{}, err
	}

	token, err := utils.RandomToken(sharedTokenBytes)
	if err != nil {
		return report.SharedLinkResponse{}, err
	}
	days := req.ExpiresInDays
	if days == 0 {
		days = defaultLinkExpires
	}
	name := req.Name
	if name == "" {
		name = fmt.Sprintf("%s report (%s)", money.Label(string(req.ReportType)), r.Label)
	}

	link := report.SharedLink{
		WorkspaceID:  workspaceID,
		CreatedBy:    &userID,
		Token:        token,
		ReportType:   req.ReportType,
		ReportParams: report.Query{Type: req.ReportType, Range: r, GroupBy: req.GroupBy}.Params(),
		Name:         name,
		IsActive:     true,
		ExpiresAt:    s.now().AddDate(0, 0, days),
	}
	if req.Password != "" {
		hash := utils.HashToken(req.Password)
		link.PasswordHash = &hash
	}

	created, err := s.ReportRepository.CreateSharedLink(ctx, link)
	if err != nil {
		return report.SharedLinkResponse{}, fmt.Errorf("failed to create shared link: %w", err)
	}
	slog.Info("Shared report link created", "link_id", created.ID, "workspace_id", workspaceID, "report_type", req.ReportType)
	return created.ToResponse(), nil
}

// ListSharedLinks implements report.ReportService.
func (s *ReportServiceImpl) ListSharedLinks(ctx context.Context, workspaceID string) ([]report.SharedLinkResponse, error) {
	links, err := s.ReportRepository.ListSharedLinks(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list shared links: %w", err)
	}
	out := make([]report.SharedLinkResponse, 0, len(links))
	for i := range links {
		out = append(out, links[i].ToResponse())
	}
	return out, nil
}

// DeactivateSharedLink implements report.ReportService.
func (s *ReportServiceImpl) DeactivateSharedLink(ctx context.Context, workspaceID, id string) error {
	if err := s.ReportRepository.DeactivateSharedLink(ctx, workspaceID, id); err != nil {
		if database.IsNotFound(err) {
			return report.ErrSharedLinkNotFound
		}
		return fmt.Errorf("failed to deactivate shared link: %w", err)
	}
	return nil
}

// GetSharedReport implements report.ReportService.
// Preset links are evaluated relative to the day they are viewed, custom links keep their dates.
func (s *ReportServiceImpl) GetSharedReport(ctx context.Context, token, password, ip, userAgent string) (report.SharedReportResponse, error) {
	link, err := s.GetSharedLinkByToken(ctx, token)
	if err != nil {
		if database.IsNotFound(err) {
			return report.SharedReportResponse{}, report.ErrSharedLinkNotFound
		}
		return report.SharedReportResponse{}, fmt.Errorf("failed to get shared link: %w", err)
	}

	now := s.now()
	if !link.IsActive {
		return report.SharedReportResponse{}, report.ErrSharedLinkInactive
	}
	if now.After(link.ExpiresAt) {
		return report.SharedReportResponse{}, report.ErrSharedLinkExpired
	}
	if link.PasswordHash != nil {
		if password == "" {
			return report.SharedReportResponse{}, report.ErrPasswordRequired
		}
		if subtle.ConstantTimeCompare([]byte(utils.HashToken(password)), []byte(*link.PasswordHash)) != 1 {
			return report.SharedReportResponse{}, report.ErrInvalidPassword
		}
	}

	p := link.ReportParams
	start, end := "", ""
	if p["preset"] == report.PresetCustom {
		start, end = p["start_date"], p["end_date"]
	}
	r, err := report.Resolve(p["preset"], start, end, s.today())
	if err != nil {
		return report.SharedReportResponse{}, err
	}

	data, err := s.Run(ctx, report.Query{WorkspaceID: link.WorkspaceID, Type: link.ReportType, Range: r, GroupBy: p["group_by"]})
	if err != nil {
		return report.SharedReportResponse{}, err
	}

	if err := s.RecordView(ctx, link.ID, now); err != nil {
		slog.Warn("Failed to record shared report view", "link_id", link.ID, "error", err)
	}
	if err := s.LogAccess(ctx, report.AccessLog{SharedLinkID: link.ID, IPAddress: ip, UserAgent: userAgent, AccessedAt: now}); err != nil {
		slog.Warn("Failed to log shared report access", "link_id", link.ID, "error", err)
	}

	return report.SharedReportResponse{Name: link.Name, ReportType: link.ReportType, Data: data}, nil
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
