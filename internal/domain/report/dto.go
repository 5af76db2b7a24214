package report

import (
	"crypto/md5"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

type Type string

const (
	TypeRevenue       Type = "revenue"
	TypeAging         Type = "aging"
	TypeCashFlow      Type = "cashflow"
	TypeProfitability Type = "profitability"
	TypeTax           Type = "tax"
	TypeExpenses      Type = "expenses"
	TypeForecast      Type = "forecast"
)

func (t Type) IsValid() bool {
	switch t {
	case TypeRevenue, TypeAging, TypeCashFlow, TypeProfitability, TypeTax, TypeExpenses, TypeForecast:
		return true
	}
	return false
}

const (
	GroupByDay   = "day"
	GroupByWeek  = "week"
	GroupByMonth = "month"
)

// Query selects a report and its parameters
type Query struct {
	WorkspaceID string
	Type        Type
	Range       DateRange
	GroupBy     string
}

// Params is the canonical parameter map used in cache keys and shared links
func (q Query) Params() map[string]string {
	p := q.Range.Params()
	if q.GroupBy != "" {
		p["group_by"] = q.GroupBy
	}
	return p
}

// CachePrefix namespaces every cached report of a workspace
func CachePrefix(workspaceID string) string {
	return "reports:" + workspaceID + ":"
}

// CacheKey is reports:{workspace}:{type}:{md5(params)[:8]}
func (q Query) CacheKey() string {
	p := q.Params()
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k + "=" + p[k] + "&")
	}
	sum := md5.Sum([]byte(b.String()))
	return CachePrefix(q.WorkspaceID) + string(q.Type) + ":" + hex.EncodeToString(sum[:])[:8]
}

// ==================== Revenue ====================

type RevenueSummary struct {
	TotalInvoiced  decimal.Decimal `json:"total_invoiced"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	TaxTotal       decimal.Decimal `json:"tax_total"`
	DiscountTotal  decimal.Decimal `json:"discount_total"`
	InvoiceCount   int             `json:"invoice_count"`
	AvgInvoice     decimal.Decimal `json:"avg_invoice"`
	MaxInvoice     decimal.Decimal `json:"max_invoice"`
	MinInvoice     decimal.Decimal `json:"min_invoice"`
	TotalCollected decimal.Decimal `json:"total_collected"`
	PaymentCount   int             `json:"payment_count"`
	AvgPayment     decimal.Decimal `json:"avg_payment"`
	Outstanding    decimal.Decimal `json:"total_outstanding"`
	CollectionRate decimal.Decimal `json:"collection_rate"`
}

type GroupTotal struct {
	Key       string          `json:"key"`
	Label     string          `json:"label,omitempty"`
	Count     int             `json:"count"`
	Total     decimal.Decimal `json:"total"`
	Collected decimal.Decimal `json:"collected,omitempty"`
}

type TrendPoint struct {
	Period    string          `json:"period"`
	Invoiced  decimal.Decimal `json:"invoiced"`
	Collected decimal.Decimal `json:"collected"`
	Count     int             `json:"count"`
}

type RevenueReport struct {
	DateRange       DateRange      `json:"date_range"`
	GroupBy         string         `json:"group_by"`
	Summary         RevenueSummary `json:"summary"`
	StatusBreakdown []GroupTotal   `json:"status_breakdown"`
	Trend           []TrendPoint   `json:"revenue_trend"`
	TopClients      []GroupTotal   `json:"by_client"`
	ByCurrency      []GroupTotal   `json:"by_currency"`
}

// ==================== Aging ====================

// OpenInvoice is an invoice with a balance due
type OpenInvoice struct {
	ID            string          `json:"id"`
	InvoiceNumber string          `json:"invoice_number"`
	ClientID      string          `json:"client_id"`
	ClientName    string          `json:"client_name"`
	IssueDate     time.Time       `json:"issue_date"`
	DueDate       time.Time       `json:"due_date"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	AmountDue     decimal.Decimal `json:"amount_due"`
	Currency      string          `json:"currency"`
	DaysOverdue   int             `json:"days_overdue"`
}

type AgingBucket struct {
	Key      string          `json:"key"`
	Label    string          `json:"label"`
	Count    int             `json:"count"`
	Total    decimal.Decimal `json:"total"`
	Invoices []OpenInvoice   `json:"invoices"`
}

type ClientAging struct {
	ClientID        string          `json:"client_id"`
	ClientName      string          `json:"client_name"`
	TotalDue        decimal.Decimal `json:"total_due"`
	InvoiceCount    int             `json:"invoice_count"`
	OldestIssueDate time.Time       `json:"oldest_invoice_date"`
	OldestDueDate   time.Time       `json:"oldest_due_date"`
}

type AgingReport struct {
	AsOf             string          `json:"as_of_date"`
	Buckets          []AgingBucket   `json:"buckets"`
	TotalOutstanding decimal.Decimal `json:"total_outstanding"`
	InvoiceCount     int             `json:"invoice_count"`
	ByClient         []ClientAging   `json:"by_client"`
	AvgDaysOverdue   decimal.Decimal `json:"avg_days_overdue"`
}

// ==================== Cash flow ====================

type PeriodTotal struct {
	Period string          `json:"period"`
	Count  int             `json:"count"`
	Total  decimal.Decimal `json:"total"`
}

type CashFlowPoint struct {
	Period         string          `json:"period"`
	PeriodLabel    string          `json:"period_label"`
	Inflow         decimal.Decimal `json:"inflow"`
	Outflow        decimal.Decimal `json:"outflow"`
	Net            decimal.Decimal `json:"net"`
	RunningBalance decimal.Decimal `json:"running_balance"`
}

type CashFlowSummary struct {
	TotalInflows  decimal.Decimal `json:"total_inflows"`
	TotalOutflows decimal.Decimal `json:"total_outflows"`
	NetCashFlow   decimal.Decimal `json:"net_cashflow"`
	EndingBalance decimal.Decimal `json:"ending_balance"`
}

type CashFlowReport struct {
	DateRange          DateRange       `json:"date_range"`
	Periods            []CashFlowPoint `json:"cashflow_data"`
	Summary            CashFlowSummary `json:"summary"`
	ByPaymentMethod    []GroupTotal    `json:"by_payment_method"`
	ExpensesByCategory []GroupTotal    `json:"expenses_by_category"`
}

// ==================== Profitability ====================

type ClientProfit struct {
	ClientID       string          `json:"client_id"`
	ClientName     string          `json:"client_name"`
	TotalInvoiced  decimal.Decimal `json:"total_invoiced"`
	TotalCollected decimal.Decimal `json:"total_collected"`
	TotalExpenses  decimal.Decimal `json:"total_expenses"`
	Profit         decimal.Decimal `json:"profit"`
	Margin         decimal.Decimal `json:"margin"`
	InvoiceCount   int             `json:"invoice_count"`
	ExpenseCount   int             `json:"expense_count"`
}

type ProfitabilityTotals struct {
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
	TotalExpenses decimal.Decimal `json:"total_expenses"`
	TotalProfit   decimal.Decimal `json:"total_profit"`
	OverallMargin decimal.Decimal `json:"overall_margin"`
	ClientCount   int             `json:"client_count"`
}

type ProfitabilityReport struct {
	DateRange       DateRange           `json:"date_range"`
	Clients         []ClientProfit      `json:"clients"`
	Totals          ProfitabilityTotals `json:"totals"`
	TopProfitable   []ClientProfit      `json:"top_profitable"`
	LeastProfitable []ClientProfit      `json:"least_profitable"`
}

// ==================== Tax ====================

type TaxRateTotal struct {
	TaxRate       decimal.Decimal `json:"tax_rate"`
	TaxAmount     decimal.Decimal `json:"total_tax"`
	TaxableAmount decimal.Decimal `json:"taxable_amount"`
	ItemCount     int             `json:"item_count"`
}

type TaxTotals struct {
	TotalTax    decimal.Decimal `json:"total_tax"`
	Count       int             `json:"count"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

type TaxMonth struct {
	Period       string          `json:"period"`
	PeriodLabel  string          `json:"period_label"`
	TaxCollected decimal.Decimal `json:"tax_collected"`
	TaxPaid      decimal.Decimal `json:"tax_paid"`
	NetTax       decimal.Decimal `json:"net_tax"`
}

type TaxReport struct {
	DateRange       DateRange       `json:"date_range"`
	TaxCollected    TaxTotals       `json:"tax_collected"`
	TaxPaid         TaxTotals       `json:"tax_paid"`
	NetTaxLiability decimal.Decimal `json:"net_tax_liability"`
	ByRate          []TaxRateTotal  `json:"by_rate"`
	Monthly         []TaxMonth      `json:"monthly_data"`
}

// ==================== Expenses ====================

type ExpenseTotals struct {
	TotalAmount  decimal.Decimal `json:"total_amount"`
	TotalTax     decimal.Decimal `json:"total_tax"`
	TotalWithTax decimal.Decimal `json:"total_with_tax"`
	ExpenseCount int             `json:"expense_count"`
	AvgExpense   decimal.Decimal `json:"avg_expense"`
}

type ExpenseReport struct {
	DateRange  DateRange     `json:"date_range"`
	Summary    ExpenseTotals `json:"summary"`
	ByStatus   []GroupTotal  `json:"by_status"`
	ByCategory []GroupTotal  `json:"by_category"`
	ByVendor   []GroupTotal  `json:"by_vendor"`
	ByMonth    []PeriodTotal `json:"by_month"`
}

// ==================== Forecast ====================

// ScheduledCharge is a future inflow from an active recurring schedule
type ScheduledCharge struct {
	ScheduleID string          `json:"schedule_id"`
	Date       time.Time       `json:"date"`
	Amount     decimal.Decimal `json:"amount"`
}

type ForecastWeek struct {
	WeekStart       string          `json:"week_start"`
	WeekEnd         string          `json:"week_end"`
	InvoiceAmount   decimal.Decimal `json:"invoice_amount"`
	RecurringAmount decimal.Decimal `json:"recurring_amount"`
	ExpectedAmount  decimal.Decimal `json:"expected_amount"`
	InvoiceCount    int             `json:"invoice_count"`
	RecurringCount  int             `json:"recurring_count"`
}

type ForecastReport struct {
	Today         string          `json:"today"`
	ForecastEnd   string          `json:"forecast_end"`
	DaysAhead     int             `json:"days_ahead"`
	TotalExpected decimal.Decimal `json:"total_expected"`
	InvoiceCount  int             `json:"invoice_count"`
	Weeks         []ForecastWeek  `json:"weekly_forecast"`
}

// ==================== Shared links ====================

type SharedLink struct {
	ID           string
	WorkspaceID  string
	CreatedBy    *string
	Token        string
	ReportType   Type
	ReportParams map[string]string
	Name         string
	IsActive     bool
	ExpiresAt    time.Time
	PasswordHash *string
	ViewCount    int
	LastViewedAt *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type AccessLog struct {
	ID           string
	SharedLinkID string
	IPAddress    string
	UserAgent    string
	AccessedAt   time.Time
}

type CreateSharedLinkRequest struct {
	ReportType    Type   `json:"report_type" validate:"required"`
	Preset        string `json:"preset"`
	StartDate     string `json:"start_date"`
	EndDate       string `json:"end_date"`
	GroupBy       string `json:"group_by" validate:"omitempty,oneof=day week month"`
	Name          string `json:"name" validate:"max=255"`
	ExpiresInDays int    `json:"expires_in_days" validate:"gte=0,lte=365"`
	Password      string `json:"password" validate:"max=128"`
}

func (r *CreateSharedLinkRequest) Validate() error {
	errs := validator.Struct(r)
	if r.ReportType != "" && !r.ReportType.IsValid() {
		errs.Add("report_type", "unknown report type")
	}
	if r.StartDate != "" {
		if _, ok := validator.IsValidDate(r.StartDate); !ok {
			errs.Add("start_date", "start_date must be YYYY-MM-DD")
		}
	}
	if r.EndDate != "" {
		if _, ok := validator.IsValidDate(r.EndDate); !ok {
			errs.Add("end_date", "end_date must be YYYY-MM-DD")
		}
	}
	return errs.OrNil()
}

type SharedLinkResponse struct {
	ID          string            `json:"id"`
	Token       string            `json:"token"`
	URL         string            `json:"url"`
	ReportType  Type              `json:"report_type"`
	Params      map[string]string `json:"report_params"`
	Name        string            `json:"name"`
	IsActive    bool              `json:"is_active"`
	HasPassword bool              `json:"has_password"`
	ExpiresAt   string            `json:"expires_at"`
	ViewCount   int               `json:"view_count"`
	CreatedAt   string            `json:"created_at"`
}

func (l *SharedLink) ToResponse() SharedLinkResponse {
	return SharedLinkResponse{
		ID:          l.ID,
		Token:       l.Token,
		URL:         "/api/v1/public/reports/" + l.Token,
		ReportType:  l.ReportType,
		Params:      l.ReportParams,
		Name:        l.Name,
		IsActive:    l.IsActive,
		HasPassword: l.PasswordHash != nil,
		ExpiresAt:   l.ExpiresAt.Format(time.RFC3339),
		ViewCount:   l.ViewCount,
		CreatedAt:   l.CreatedAt.Format(time.RFC3339),
	}
}

type SharedReportResponse struct {
	Name       string `json:"name"`
	ReportType Type   `json:"report_type"`
	Data       any    `json:"data"`
}
