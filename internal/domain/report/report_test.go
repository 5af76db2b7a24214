package report

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestFromPreset(t *testing.T) {
	// Wednesday
	today := time.Date(2025, 5, 14, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		preset     string
		start, end time.Time
	}{
		{PresetToday, date(2025, 5, 14), date(2025, 5, 14)},
		{PresetYesterday, date(2025, 5, 13), date(2025, 5, 13)},
		{PresetThisWeek, date(2025, 5, 12), date(2025, 5, 14)},
		{PresetLastWeek, date(2025, 5, 5), date(2025, 5, 11)},
		{PresetThisMonth, date(2025, 5, 1), date(2025, 5, 14)},
		{PresetLastMonth, date(2025, 4, 1), date(2025, 4, 30)},
		{PresetThisQuarter, date(2025, 4, 1), date(2025, 5, 14)},
		{PresetLastQuarter, date(2025, 1, 1), date(2025, 3, 31)},
		{PresetThisYear, date(2025, 1, 1), date(2025, 5, 14)},
		{PresetLastYear, date(2024, 1, 1), date(2024, 12, 31)},
		{PresetLast30Days, date(2025, 4, 14), date(2025, 5, 14)},
		{PresetLast90Days, date(2025, 2, 13), date(2025, 5, 14)},
		{"unknown", date(2025, 4, 14), date(2025, 5, 14)},
	}

	for _, tt := range tests {
		t.Run(tt.preset, func(t *testing.T) {
			r := FromPreset(tt.preset, today)
			assert.Equal(t, tt.start, r.Start)
			assert.Equal(t, tt.end, r.End)
			assert.NotEmpty(t, r.Label)
		})
	}

	assert.Equal(t, PresetLast30Days, FromPreset("", today).Preset)
}

func TestCustom(t *testing.T) {
	r, err := Custom(date(2025, 1, 1), date(2025, 1, 31))
	require.NoError(t, err)
	assert.Equal(t, PresetCustom, r.Preset)
	assert.Equal(t, "2025-01-31", r.Params()["end_date"])

	_, err = Custom(date(2025, 2, 1), date(2025, 1, 1))
	assert.ErrorIs(t, err, ErrInvalidDateRange)
}

func TestResolve(t *testing.T) {
	today := date(2025, 5, 14)

	r, err := Resolve(PresetLastMonth, "", "", today)
	require.NoError(t, err)
	assert.Equal(t, date(2025, 4, 1), r.Start)

	r, err = Resolve(PresetLastMonth, "2025-02-01", "2025-02-10", today)
	require.NoError(t, err)
	assert.Equal(t, PresetCustom, r.Preset)
	assert.Equal(t, date(2025, 2, 10), r.End)

	_, err = Resolve("", "2025-02-01", "02/10/2025", today)
	assert.ErrorIs(t, err, ErrInvalidDateRange)
}

func TestDateRange_JSONRoundTrip(t *testing.T) {
	r := FromPreset(PresetLastQuarter, date(2025, 5, 14))
	data, err := json.Marshal(r)
	require.NoError(t, err)

	var back DateRange
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, r, back)
}

func TestQuery_CacheKey(t *testing.T) {
	r := FromPreset(PresetThisMonth, date(2025, 5, 14))
	q := Query{WorkspaceID: "ws-1", Type: TypeRevenue, Range: r, GroupBy: GroupByWeek}

	key := q.CacheKey()
	assert.Regexp(t, `^reports:ws-1:revenue:[0-9a-f]{8}$`, key)
	assert.Equal(t, key, q.CacheKey())

	q.GroupBy = GroupByMonth
	assert.NotEqual(t, key, q.CacheKey())
	assert.True(t, strings.HasPrefix(q.CacheKey(), CachePrefix("ws-1")))
}

func TestRate(t *testing.T) {
	assert.True(t, dec("33.3").Equal(Rate(dec("1"), dec("3"))))
	assert.True(t, Rate(dec("10"), decimal.Zero).IsZero())
}

func TestBuildAging(t *testing.T) {
	today := date(2025, 5, 14)
	invoices := []OpenInvoice{
		{ID: "a", ClientID: "c1", ClientName: "Acme", IssueDate: date(2025, 5, 1), DueDate: date(2025, 5, 20), AmountDue: dec("100")},
		{ID: "b", ClientID: "c1", ClientName: "Acme", IssueDate: date(2025, 4, 1), DueDate: date(2025, 5, 1), AmountDue: dec("50")},
		{ID: "c", ClientID: "c2", ClientName: "Globex", IssueDate: date(2025, 2, 1), DueDate: date(2025, 3, 1), AmountDue: dec("300")},
		{ID: "d", ClientID: "c3", ClientName: "Initech", IssueDate: date(2024, 12, 1), DueDate: date(2025, 1, 1), AmountDue: dec("25")},
	}

	r := BuildAging(invoices, today)

	require.Len(t, r.Buckets, 5)
	assert.Equal(t, 1, r.Buckets[0].Count)
	assert.Equal(t, 0, r.Buckets[0].Invoices[0].DaysOverdue)
	assert.Equal(t, 13, r.Buckets[1].Invoices[0].DaysOverdue)
	assert.Equal(t, 0, r.Buckets[2].Count)
	assert.Equal(t, 74, r.Buckets[3].Invoices[0].DaysOverdue)
	assert.Equal(t, 133, r.Buckets[4].Invoices[0].DaysOverdue)

	assert.True(t, dec("475").Equal(r.TotalOutstanding))
	assert.Equal(t, 4, r.InvoiceCount)
	assert.True(t, dec("73.3").Equal(r.AvgDaysOverdue))

	require.Len(t, r.ByClient, 3)
	assert.Equal(t, "Globex", r.ByClient[0].ClientName)
	assert.Equal(t, "Acme", r.ByClient[1].ClientName)
	assert.Equal(t, 2, r.ByClient[1].InvoiceCount)
	assert.Equal(t, date(2025, 4, 1), r.ByClient[1].OldestIssueDate)
}

func TestBuildCashFlow(t *testing.T) {
	points, summary := BuildCashFlow(
		[]PeriodTotal{{Period: "2025-01", Total: dec("100")}, {Period: "2025-03", Total: dec("50")}},
		[]PeriodTotal{{Period: "2025-01", Total: dec("40")}, {Period: "2025-02", Total: dec("30")}},
	)

	require.Len(t, points, 3)
	assert.Equal(t, "Jan 2025", points[0].PeriodLabel)
	assert.True(t, dec("60").Equal(points[0].RunningBalance))
	assert.True(t, dec("-30").Equal(points[1].Net))
	assert.True(t, dec("30").Equal(points[1].RunningBalance))
	assert.True(t, dec("80").Equal(points[2].RunningBalance))

	assert.True(t, dec("150").Equal(summary.TotalInflows))
	assert.True(t, dec("70").Equal(summary.TotalOutflows))
	assert.True(t, dec("80").Equal(summary.NetCashFlow))
	assert.True(t, dec("80").Equal(summary.EndingBalance))
}

func TestBuildProfitability(t *testing.T) {
	clients, totals := BuildProfitability([]ClientProfit{
		{ClientID: "a", TotalCollected: dec("1000"), TotalExpenses: dec("250"), InvoiceCount: 2, ExpenseCount: 1},
		{ClientID: "b", TotalCollected: dec("200"), TotalExpenses: dec("300"), InvoiceCount: 1, ExpenseCount: 2},
		{ClientID: "idle"},
	})

	require.Len(t, clients, 2)
	assert.Equal(t, "a", clients[0].ClientID)
	assert.True(t, dec("75").Equal(clients[0].Margin))
	assert.True(t, dec("-50").Equal(clients[1].Margin))
	assert.True(t, dec("650").Equal(totals.TotalProfit))
	assert.True(t, dec("54.2").Equal(totals.OverallMargin))
	assert.Equal(t, 2, totals.ClientCount)
}

func TestBuildTaxMonths(t *testing.T) {
	months := BuildTaxMonths(
		[]PeriodTotal{{Period: "2025-01", Total: dec("75")}, {Period: "2025-02", Total: dec("20")}},
		[]PeriodTotal{{Period: "2025-01", Total: dec("15")}},
	)

	require.Len(t, months, 2)
	assert.True(t, dec("60").Equal(months[0].NetTax))
	assert.True(t, dec("20").Equal(months[1].NetTax))
}

func TestBuildForecast(t *testing.T) {
	today := date(2025, 5, 12)
	invoices := []OpenInvoice{
		{DueDate: date(2025, 5, 13), AmountDue: dec("100")},
		{DueDate: date(2025, 5, 26), AmountDue: dec("50")},
		{DueDate: date(2025, 5, 27), AmountDue: dec("70")},
	}
	charges := []ScheduledCharge{{ScheduleID: "s", Date: date(2025, 5, 20), Amount: dec("200")}}

	r := BuildForecast(invoices, charges, today, 14)

	require.Len(t, r.Weeks, 3)
	assert.True(t, dec("100").Equal(r.Weeks[0].ExpectedAmount))
	assert.True(t, dec("200").Equal(r.Weeks[1].RecurringAmount))
	assert.Equal(t, 1, r.Weeks[1].RecurringCount)
	assert.True(t, dec("50").Equal(r.Weeks[2].ExpectedAmount))
	assert.True(t, dec("350").Equal(r.TotalExpected))
	assert.Equal(t, 2, r.InvoiceCount)
	assert.Equal(t, "2025-05-26", r.ForecastEnd)
}
