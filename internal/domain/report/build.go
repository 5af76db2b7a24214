package report

import (
	"sort"
	"time"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/money"
	"github.com/shopspring/decimal"
)

// rateScale is the decimal places of percentages and averages
const rateScale = 1

// Rate returns part / whole * 100 rounded to 0.1, or 0 when whole is not positive
func Rate(part, whole decimal.Decimal) decimal.Decimal {
	if !whole.IsPositive() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(money.Hundred).Round(rateScale)
}

var agingBuckets = []struct{ key, label string }{
	{"current", "Current (Not Yet Due)"},
	{"1_30", "1-30 Days"},
	{"31_60", "31-60 Days"},
	{"61_90", "61-90 Days"},
	{"over_90", "Over 90 Days"},
}

func agingBucketIndex(daysOverdue int) int {
	switch {
	case daysOverdue <= 0:
		return 0
	case daysOverdue <= 30:
		return 1
	case daysOverdue <= 60:
		return 2
	case daysOverdue <= 90:
		return 3
	default:
		return 4
	}
}

const agingClientLimit = 20

// BuildAging buckets open invoices by days past due as of today
func BuildAging(invoices []OpenInvoice, today time.Time) AgingReport {
	today = day(today)
	report := AgingReport{
		AsOf:             today.Format(time.DateOnly),
		Buckets:          make([]AgingBucket, len(agingBuckets)),
		TotalOutstanding: decimal.Zero,
		ByClient:         []ClientAging{},
		AvgDaysOverdue:   decimal.Zero,
	}
	for i, b := range agingBuckets {
		report.Buckets[i] = AgingBucket{Key: b.key, Label: b.label, Total: decimal.Zero, Invoices: []OpenInvoice{}}
	}

	clients := make(map[string]*ClientAging)
	var order []string
	overdueDays, overdueCount := 0, 0

	for _, inv := range invoices {
		days := int(today.Sub(day(inv.DueDate)).Hours() / 24)
		inv.DaysOverdue = max(0, days)

		b := &report.Buckets[agingBucketIndex(days)]
		b.Invoices = append(b.Invoices, inv)
		b.Total = b.Total.Add(inv.AmountDue)
		b.Count++
		report.TotalOutstanding = report.TotalOutstanding.Add(inv.AmountDue)
		report.InvoiceCount++

		if days > 0 {
			overdueDays += days
			overdueCount++
		}

		c, ok := clients[inv.ClientID]
		if !ok {
			c = &ClientAging{ClientID: inv.ClientID, ClientName: inv.ClientName, TotalDue: decimal.Zero}
			clients[inv.ClientID] = c
			order = append(order, inv.ClientID)
		}
		c.TotalDue = c.TotalDue.Add(inv.AmountDue)
		c.InvoiceCount++
		if c.OldestIssueDate.IsZero() || inv.IssueDate.Before(c.OldestIssueDate) {
			c.OldestIssueDate = inv.IssueDate
			c.OldestDueDate = inv.DueDate
		}
	}

	for _, id := range order {
		report.ByClient = append(report.ByClient, *clients[id])
	}
	sort.SliceStable(report.ByClient, func(i, j int) bool {
		return report.ByClient[i].TotalDue.GreaterThan(report.ByClient[j].TotalDue)
	})
	if len(report.ByClient) > agingClientLimit {
		report.ByClient = report.ByClient[:agingClientLimit]
	}

	if overdueCount > 0 {
		report.AvgDaysOverdue = decimal.NewFromInt(int64(overdueDays)).
			Div(decimal.NewFromInt(int64(overdueCount))).Round(rateScale)
	}
	return report
}

// BuildCashFlow merges monthly inflows and outflows (periods "YYYY-MM") with a running balance
func BuildCashFlow(inflows, outflows []PeriodTotal) ([]CashFlowPoint, CashFlowSummary) {
	in := make(map[string]decimal.Decimal)
	out := make(map[string]decimal.Decimal)
	periods := make(map[string]bool)
	for _, p := range inflows {
		in[p.Period] = in[p.Period].Add(p.Total)
		periods[p.Period] = true
	}
	for _, p := range outflows {
		out[p.Period] = out[p.Period].Add(p.Total)
		periods[p.Period] = true
	}

	keys := make([]string, 0, len(periods))
	for k := range periods {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	summary := CashFlowSummary{
		TotalInflows:  decimal.Zero,
		TotalOutflows: decimal.Zero,
		NetCashFlow:   decimal.Zero,
		EndingBalance: decimal.Zero,
	}
	points := make([]CashFlowPoint, 0, len(keys))
	balance := decimal.Zero
	for _, k := range keys {
		inflow, outflow := in[k], out[k]
		net := inflow.Sub(outflow)
		balance = balance.Add(net)
		summary.TotalInflows = summary.TotalInflows.Add(inflow)
		summary.TotalOutflows = summary.TotalOutflows.Add(outflow)
		points = append(points, CashFlowPoint{
			Period:         k,
			PeriodLabel:    PeriodLabel(k),
			Inflow:         inflow,
			Outflow:        outflow,
			Net:            net,
			RunningBalance: balance,
		})
	}
	summary.NetCashFlow = summary.TotalInflows.Sub(summary.TotalOutflows)
	summary.EndingBalance = balance
	return points, summary
}

// PeriodLabel turns "2025-03" into "Mar 2025"
func PeriodLabel(period string) string {
	t, err := time.Parse("2006-01", period)
	if err != nil {
		return period
	}
	return t.Format("Jan 2006")
}

// BuildProfitability computes per-client profit and margins, most profitable first
func BuildProfitability(rows []ClientProfit) ([]ClientProfit, ProfitabilityTotals) {
	totals := ProfitabilityTotals{
		TotalRevenue:  decimal.Zero,
		TotalExpenses: decimal.Zero,
		TotalProfit:   decimal.Zero,
		OverallMargin: decimal.Zero,
	}
	clients := make([]ClientProfit, 0, len(rows))
	for _, r := range rows {
		if r.InvoiceCount == 0 && r.ExpenseCount == 0 {
			continue
		}
		r.Profit = r.TotalCollected.Sub(r.TotalExpenses)
		r.Margin = Rate(r.Profit, r.TotalCollected)
		clients = append(clients, r)

		totals.TotalRevenue = totals.TotalRevenue.Add(r.TotalCollected)
		totals.TotalExpenses = totals.TotalExpenses.Add(r.TotalExpenses)
		totals.TotalProfit = totals.TotalProfit.Add(r.Profit)
		if r.InvoiceCount > 0 {
			totals.ClientCount++
		}
	}
	sort.SliceStable(clients, func(i, j int) bool {
		return clients[i].Profit.GreaterThan(clients[j].Profit)
	})
	totals.OverallMargin = Rate(totals.TotalProfit, totals.TotalRevenue)
	return clients, totals
}

// BuildTaxMonths joins monthly tax collected with tax paid on expenses
func BuildTaxMonths(collected, paid []PeriodTotal) []TaxMonth {
	paidByPeriod := make(map[string]decimal.Decimal)
	for _, p := range paid {
		paidByPeriod[p.Period] = p.Total
	}
	months := make([]TaxMonth, 0, len(collected))
	for _, c := range collected {
		taxPaid := paidByPeriod[c.Period]
		months = append(months, TaxMonth{
			Period:       c.Period,
			PeriodLabel:  PeriodLabel(c.Period),
			TaxCollected: c.Total,
			TaxPaid:      taxPaid,
			NetTax:       c.Total.Sub(taxPaid),
		})
	}
	return months
}

const ForecastDays = 90

// BuildForecast groups expected inflows into 7-day buckets from today through today+days
func BuildForecast(invoices []OpenInvoice, charges []ScheduledCharge, today time.Time, days int) ForecastReport {
	today = day(today)
	end := today.AddDate(0, 0, days)
	report := ForecastReport{
		Today:         today.Format(time.DateOnly),
		ForecastEnd:   end.Format(time.DateOnly),
		DaysAhead:     days,
		TotalExpected: decimal.Zero,
		Weeks:         []ForecastWeek{},
	}

	for start := today; !start.After(end); start = start.AddDate(0, 0, 7) {
		weekEnd := start.AddDate(0, 0, 6)
		w := ForecastWeek{
			WeekStart:       start.Format(time.DateOnly),
			WeekEnd:         weekEnd.Format(time.DateOnly),
			InvoiceAmount:   decimal.Zero,
			RecurringAmount: decimal.Zero,
		}
		for _, inv := range invoices {
			due := day(inv.DueDate)
			if due.Before(start) || due.After(weekEnd) || due.After(end) {
				continue
			}
			w.InvoiceAmount = w.InvoiceAmount.Add(inv.AmountDue)
			w.InvoiceCount++
		}
		for _, c := range charges {
			d := day(c.Date)
			if d.Before(start) || d.After(weekEnd) || d.After(end) {
				continue
			}
			w.RecurringAmount = w.RecurringAmount.Add(c.Amount)
			w.RecurringCount++
		}
		w.ExpectedAmount = w.InvoiceAmount.Add(w.RecurringAmount)
		report.TotalExpected = report.TotalExpected.Add(w.ExpectedAmount)
		report.InvoiceCount += w.InvoiceCount
		report.Weeks = append(report.Weeks, w)
	}
	return report
}
