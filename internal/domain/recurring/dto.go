package recurring

import (
	"strings"
	"time"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/money"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

type CreateScheduleRequest struct {
	ClientID               string             `json:"client_id" validate:"required,uuid"`
	Description            string             `json:"description" validate:"required,max=255"`
	IntervalType           IntervalType       `json:"interval_type"`
	CustomIntervalDays     *int               `json:"custom_interval_days" validate:"omitempty,min=1,max=365"`
	StartDate              string             `json:"start_date"`
	EndDate                *string            `json:"end_date"`
	MaxOccurrences         *int               `json:"max_occurrences" validate:"omitempty,min=1"`
	ProrationEnabled       bool               `json:"proration_enabled"`
	AnchorDay              *int               `json:"anchor_day" validate:"omitempty,min=1,max=31"`
	Currency               string             `json:"currency"`
	BaseAmount             decimal.Decimal    `json:"base_amount"`
	TaxRate                decimal.Decimal    `json:"tax_rate"`
	LineItems              []LineItemTemplate `json:"line_items" validate:"dive"`
	InvoiceTerms           string             `json:"invoice_terms"`
	InvoiceNotes           string             `json:"invoice_notes"`
	PaymentTermsDays       *int               `json:"payment_terms_days" validate:"omitempty,min=0,max=365"`
	AutoSend               *bool              `json:"auto_send"`
	RetryEnabled           *bool              `json:"retry_enabled"`
	MaxRetryAttempts       *int               `json:"max_retry_attempts" validate:"omitempty,min=0,max=10"`
	RetryIntervalHours     *int               `json:"retry_interval_hours" validate:"omitempty,min=1,max=720"`
	RetryBackoffMultiplier *decimal.Decimal   `json:"retry_backoff_multiplier"`
}

func (r *CreateScheduleRequest) Validate() error {
	errs := validator.Struct(r)

	if !r.IntervalType.IsValid() {
		errs.Add("interval_type", "interval_type must be one of: weekly, biweekly, monthly, quarterly, yearly, custom")
	}
	if r.IntervalType == IntervalCustom && r.CustomIntervalDays == nil {
		errs.Add("custom_interval_days", "custom_interval_days is required for custom intervals")
	}
	start, startOK := validator.IsValidDate(r.StartDate)
	if !startOK {
		errs.Add("start_date", "start_date must be YYYY-MM-DD")
	}
	if r.EndDate != nil && *r.EndDate != "" {
		end, ok := validator.IsValidDate(*r.EndDate)
		if !ok {
			errs.Add("end_date", "end_date must be YYYY-MM-DD")
		} else if startOK && end.Before(start) {
			errs.Add("end_date", "end_date must not be before start_date")
		}
	}
	if r.Currency != "" && !money.IsValidCurrency(r.Currency) {
		errs.Add("currency", "unsupported currency")
	}
	if len(r.LineItems) == 0 && !r.BaseAmount.IsPositive() {
		errs.Add("base_amount", "base_amount must be greater than 0")
	}
	if r.TaxRate.IsNegative() || r.TaxRate.GreaterThan(money.Hundred) {
		errs.Add("tax_rate", "tax_rate must be between 0 and 100")
	}
	for i, item := range r.LineItems {
		if strings.TrimSpace(item.Description) == "" {
			errs.Add("line_items["+validator.Itoa(i)+"].description", "description is required")
		}
		if !item.Quantity.IsPositive() {
			errs.Add("line_items["+validator.Itoa(i)+"].quantity", "quantity must be greater than 0")
		}
		if item.UnitPrice.IsNegative() {
			errs.Add("line_items["+validator.Itoa(i)+"].unit_price", "unit_price must not be negative")
		}
	}
	if r.RetryBackoffMultiplier != nil && r.RetryBackoffMultiplier.LessThan(decimal.NewFromInt(1)) {
		errs.Add("retry_backoff_multiplier", "retry_backoff_multiplier must be at least 1")
	}

	return errs.OrNil()
}

// ToSchedule builds a new active schedule; the first run is on the start date
func (r *CreateScheduleRequest) ToSchedule(workspaceID, userID string) Schedule {
	start, _ := validator.IsValidDate(r.StartDate)
	s := Schedule{
		WorkspaceID:        workspaceID,
		ClientID:           r.ClientID,
		CreatedBy:          &userID,
		Description:        strings.TrimSpace(r.Description),
		IntervalType:       r.IntervalType,
		CustomIntervalDays: r.CustomIntervalDays,
		StartDate:          start,
		NextRunDate:        start,
		MaxOccurrences:     r.MaxOccurrences,
		ProrationEnabled:   r.ProrationEnabled,
		AnchorDay:          r.AnchorDay,
		Currency:           money.NormalizeCurrency(r.Currency),
		BaseAmount:         money.Round(r.BaseAmount),
		TaxRate:            r.TaxRate,
		LineItemsTemplate:  r.LineItems,
		InvoiceTerms:       r.InvoiceTerms,
		InvoiceNotes:       r.InvoiceNotes,
		PaymentTermsDays:   DefaultPaymentTermsDays,
		AutoSend:           true,
		RetryEnabled:       true,
		MaxRetryAttempts:   DefaultMaxRetryAttempts,
		RetryIntervalHours: DefaultRetryIntervalHour,
		Status:             StatusActive,
		TotalAmountBilled:  decimal.Zero,
	}
	if s.Currency == "" {
		s.Currency = DefaultCurrency
	}
	if r.EndDate != nil && *r.EndDate != "" {
		end, _ := validator.IsValidDate(*r.EndDate)
		s.EndDate = &end
	}
	if r.PaymentTermsDays != nil {
		s.PaymentTermsDays = *r.PaymentTermsDays
	}
	if r.AutoSend != nil {
		s.AutoSend = *r.AutoSend
	}
	if r.RetryEnabled != nil {
		s.RetryEnabled = *r.RetryEnabled
	}
	if r.MaxRetryAttempts != nil {
		s.MaxRetryAttempts = *r.MaxRetryAttempts
	}
	if r.RetryIntervalHours != nil {
		s.RetryIntervalHours = *r.RetryIntervalHours
	}
	s.RetryBackoffMultiplier = DefaultBackoffMultiplier
	if r.RetryBackoffMultiplier != nil {
		s.RetryBackoffMultiplier = *r.RetryBackoffMultiplier
	}
	if len(s.LineItemsTemplate) > 0 && s.BaseAmount.IsZero() {
		s.BaseAmount = TemplateSubtotal(s.LineItemsTemplate)
	}
	return s
}

// TemplateSubtotal is the sum of quantity * unit price over the template items
func TemplateSubtotal(items []LineItemTemplate) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Quantity.Mul(item.UnitPrice))
	}
	return money.Round(total)
}

// UpdateScheduleRequest is a partial update; nil fields are left unchanged
type UpdateScheduleRequest struct {
	Description            *string            `json:"description" validate:"omitempty,min=1,max=255"`
	EndDate                *string            `json:"end_date"`
	MaxOccurrences         *int               `json:"max_occurrences" validate:"omitempty,min=1"`
	NextRunDate            *string            `json:"next_run_date"`
	ProrationEnabled       *bool              `json:"proration_enabled"`
	AnchorDay              *int               `json:"anchor_day" validate:"omitempty,min=1,max=31"`
	BaseAmount             *decimal.Decimal   `json:"base_amount"`
	TaxRate                *decimal.Decimal   `json:"tax_rate"`
	LineItems              []LineItemTemplate `json:"line_items"`
	InvoiceTerms           *string            `json:"invoice_terms"`
	InvoiceNotes           *string            `json:"invoice_notes"`
	PaymentTermsDays       *int               `json:"payment_terms_days" validate:"omitempty,min=0,max=365"`
	AutoSend               *bool              `json:"auto_send"`
	RetryEnabled           *bool              `json:"retry_enabled"`
	MaxRetryAttempts       *int               `json:"max_retry_attempts" validate:"omitempty,min=0,max=10"`
	RetryIntervalHours     *int               `json:"retry_interval_hours" validate:"omitempty,min=1,max=720"`
	RetryBackoffMultiplier *decimal.Decimal   `json:"retry_backoff_multiplier"`
}

func (r *UpdateScheduleRequest) Validate() error {
	errs := validator.Struct(r)

	if r.EndDate != nil && *r.EndDate != "" {
		if _, ok := validator.IsValidDate(*r.EndDate); !ok {
			errs.Add("end_date", "end_date must be YYYY-MM-DD")
		}
	}
	if r.NextRunDate != nil {
		if _, ok := validator.IsValidDate(*r.NextRunDate); !ok {
			errs.Add("next_run_date", "next_run_date must be YYYY-MM-DD")
		}
	}
	if r.BaseAmount != nil && !r.BaseAmount.IsPositive() {
		errs.Add("base_amount", "base_amount must be greater than 0")
	}
	if r.TaxRate != nil && (r.TaxRate.IsNegative() || r.TaxRate.GreaterThan(money.Hundred)) {
		errs.Add("tax_rate", "tax_rate must be between 0 and 100")
	}
	if r.RetryBackoffMultiplier != nil && r.RetryBackoffMultiplier.LessThan(decimal.NewFromInt(1)) {
		errs.Add("retry_backoff_multiplier", "retry_backoff_multiplier must be at least 1")
	}

	return errs.OrNil()
}

// Apply copies the set fields onto s and returns the changed field names
func (r *UpdateScheduleRequest) Apply(s *Schedule) []string {
	var changed []string
	if r.Description != nil {
		s.Description = strings.TrimSpace(*r.Description)
		changed = append(changed, "description")
	}
	if r.EndDate != nil {
		if *r.EndDate == "" {
			s.EndDate = nil
		} else {
			end, _ := validator.IsValidDate(*r.EndDate)
			s.EndDate = &end
		}
		changed = append(changed, "end_date")
	}
	if r.MaxOccurrences != nil {
		s.MaxOccurrences = r.MaxOccurrences
		changed = append(changed, "max_occurrences")
	}
	if r.NextRunDate != nil {
		next, _ := validator.IsValidDate(*r.NextRunDate)
		s.NextRunDate = next
		changed = append(changed, "next_run_date")
	}
	if r.ProrationEnabled != nil {
		s.ProrationEnabled = *r.ProrationEnabled
		changed = append(changed, "proration_enabled")
	}
	if r.AnchorDay != nil {
		s.AnchorDay = r.AnchorDay
		changed = append(changed, "anchor_day")
	}
	if r.BaseAmount != nil {
		s.BaseAmount = money.Round(*r.BaseAmount)
		changed = append(changed, "base_amount")
	}
	if r.TaxRate != nil {
		s.TaxRate = *r.TaxRate
		changed = append(changed, "tax_rate")
	}
	if r.LineItems != nil {
		s.LineItemsTemplate = r.LineItems
		changed = append(changed, "line_items_template")
	}
	if r.InvoiceTerms != nil {
		s.InvoiceTerms = *r.InvoiceTerms
		changed = append(changed, "invoice_terms")
	}
	if r.InvoiceNotes != nil {
		s.InvoiceNotes = *r.InvoiceNotes
		changed = append(changed, "invoice_notes")
	}
	if r.PaymentTermsDays != nil {
		s.PaymentTermsDays = *r.PaymentTermsDays
		changed = append(changed, "payment_terms_days")
	}
	if r.AutoSend != nil {
		s.AutoSend = *r.AutoSend
		changed = append(changed, "auto_send")
	}
	if r.RetryEnabled != nil {
		s.RetryEnabled = *r.RetryEnabled
		changed = append(changed, "retry_enabled")
	}
	if r.MaxRetryAttempts != nil {
		s.MaxRetryAttempts = *r.MaxRetryAttempts
		changed = append(changed, "max_retry_attempts")
	}
	if r.RetryIntervalHours != nil {
		s.RetryIntervalHours = *r.RetryIntervalHours
		changed = append(changed, "retry_interval_hours")
	}
	if r.RetryBackoffMultiplier != nil {
		s.RetryBackoffMultiplier = *r.RetryBackoffMultiplier
		changed = append(changed, "retry_backoff_multiplier")
	}
	return changed
}

type PauseRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type CancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type ScheduleFilter struct {
	WorkspaceID string
	Status      *Status
	ClientID    *string
	Page        int
	Limit       int
}

type ScheduleResponse struct {
	ID                      string             `json:"id"`
	ScheduleNumber          int64              `json:"schedule_number"`
	ClientID                string             `json:"client_id"`
	ClientName              string             `json:"client_name,omitempty"`
	Description             string             `json:"description"`
	IntervalType            IntervalType       `json:"interval_type"`
	CustomIntervalDays      *int               `json:"custom_interval_days,omitempty"`
	StartDate               string             `json:"start_date"`
	EndDate                 *string            `json:"end_date,omitempty"`
	MaxOccurrences          *int               `json:"max_occurrences,omitempty"`
	NextRunDate             string             `json:"next_run_date"`
	LastRunDate             *string            `json:"last_run_date,omitempty"`
	Status                  Status             `json:"status"`
	PauseReason             string             `json:"pause_reason,omitempty"`
	CancellationReason      string             `json:"cancellation_reason,omitempty"`
	ProrationEnabled        bool               `json:"proration_enabled"`
	AnchorDay               *int               `json:"anchor_day,omitempty"`
	Currency                string             `json:"currency"`
	BaseAmount              decimal.Decimal    `json:"base_amount"`
	TaxRate                 decimal.Decimal    `json:"tax_rate"`
	LineItems               []LineItemTemplate `json:"line_items"`
	PaymentTermsDays        int                `json:"payment_terms_days"`
	AutoSend                bool               `json:"auto_send"`
	RetryEnabled            bool               `json:"retry_enabled"`
	MaxRetryAttempts        int                `json:"max_retry_attempts"`
	RetryIntervalHours      int                `json:"retry_interval_hours"`
	RetryBackoffMultiplier  decimal.Decimal    `json:"retry_backoff_multiplier"`
	CurrentRetryCount       int                `json:"current_retry_count"`
	NextRetryAt             *string            `json:"next_retry_at,omitempty"`
	FailureNotificationSent bool               `json:"failure_notification_sent"`
	TotalInvoicesGenerated  int                `json:"total_invoices_generated"`
	TotalAmountBilled       decimal.Decimal    `json:"total_amount_billed"`
	CreatedAt               string             `json:"created_at"`
	UpdatedAt               string             `json:"updated_at"`
}

func formatDatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.DateOnly)
	return &s
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

func (s *Schedule) ToResponse() ScheduleResponse {
	items := s.LineItemsTemplate
	if items == nil {
		items = []LineItemTemplate{}
	}
	return ScheduleResponse{
		ID:                      s.ID,
		ScheduleNumber:          s.ScheduleNumber,
		ClientID:                s.ClientID,
		ClientName:              s.ClientName,
		Description:             s.Description,
		IntervalType:            s.IntervalType,
		CustomIntervalDays:      s.CustomIntervalDays,
		StartDate:               s.StartDate.Format(time.DateOnly),
		EndDate:                 formatDatePtr(s.EndDate),
		MaxOccurrences:          s.MaxOccurrences,
		NextRunDate:             s.NextRunDate.Format(time.DateOnly),
		LastRunDate:             formatDatePtr(s.LastRunDate),
		Status:                  s.Status,
		PauseReason:             s.PauseReason,
		CancellationReason:      s.CancellationReason,
		ProrationEnabled:        s.ProrationEnabled,
		AnchorDay:               s.AnchorDay,
		Currency:                s.Currency,
		BaseAmount:              s.BaseAmount,
		TaxRate:                 s.TaxRate,
		LineItems:               items,
		PaymentTermsDays:        s.PaymentTermsDays,
		AutoSend:                s.AutoSend,
		RetryEnabled:            s.RetryEnabled,
		MaxRetryAttempts:        s.MaxRetryAttempts,
		RetryIntervalHours:      s.RetryIntervalHours,
		RetryBackoffMultiplier:  s.RetryBackoffMultiplier,
		CurrentRetryCount:       s.CurrentRetryCount,
		NextRetryAt:             formatTimePtr(s.NextRetryAt),
		FailureNotificationSent: s.FailureNotificationSent,
		TotalInvoicesGenerated:  s.TotalInvoicesGenerated,
		TotalAmountBilled:       s.TotalAmountBilled,
		CreatedAt:               s.CreatedAt.Format(time.RFC3339),
		UpdatedAt:               s.UpdatedAt.Format(time.RFC3339),
	}
}

type ExecutionResponse struct {
	ID              string           `json:"id"`
	InvoiceID       *string          `json:"invoice_id,omitempty"`
	PeriodStart     string           `json:"period_start"`
	PeriodEnd       string           `json:"period_end"`
	ScheduledDate   string           `json:"scheduled_date"`
	Status          ExecutionStatus  `json:"status"`
	AmountGenerated *decimal.Decimal `json:"amount_generated,omitempty"`
	ProratedAmount  *decimal.Decimal `json:"prorated_amount,omitempty"`
	ErrorMessage    string           `json:"error_message,omitempty"`
	ExecutedAt      string           `json:"executed_at"`
}

func (e *Execution) ToResponse() ExecutionResponse {
	return ExecutionResponse{
		ID:              e.ID,
		InvoiceID:       e.InvoiceID,
		PeriodStart:     e.PeriodStart.Format(time.DateOnly),
		PeriodEnd:       e.PeriodEnd.Format(time.DateOnly),
		ScheduledDate:   e.ScheduledDate.Format(time.DateOnly),
		Status:          e.Status,
		AmountGenerated: e.AmountGenerated,
		ProratedAmount:  e.ProratedAmount,
		ErrorMessage:    e.ErrorMessage,
		ExecutedAt:      e.ExecutedAt.Format(time.RFC3339),
	}
}

type AuditLogResponse struct {
	ID          string         `json:"id"`
	Action      AuditAction    `json:"action"`
	Description string         `json:"description"`
	UserID      *string        `json:"user_id,omitempty"`
	InvoiceID   *string        `json:"invoice_id,omitempty"`
	ExecutionID *string        `json:"execution_id,omitempty"`
	OldValues   map[string]any `json:"old_values,omitempty"`
	NewValues   map[string]any `json:"new_values,omitempty"`
	CreatedAt   string         `json:"created_at"`
}

func (a *AuditLog) ToResponse() AuditLogResponse {
	return AuditLogResponse{
		ID:          a.ID,
		Action:      a.Action,
		Description: a.Description,
		UserID:      a.UserID,
		InvoiceID:   a.InvoiceID,
		ExecutionID: a.ExecutionID,
		OldValues:   a.OldValues,
		NewValues:   a.NewValues,
		CreatedAt:   a.CreatedAt.Format(time.RFC3339),
	}
}

// ProcessResult summarises one batch run
type ProcessResult struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// RetryResult summarises one dunning pass
type RetryResult struct {
	Processed int `json:"processed"`
	Recovered int `json:"recovered"`
	Retried   int `json:"retried"`
	Exhausted int `json:"exhausted"`
}

type RetryPlan struct {
	Enabled           bool            `json:"enabled"`
	CurrentRetryCount int             `json:"current_retry_count"`
	MaxAttempts       int             `json:"max_attempts"`
	Remaining         int             `json:"remaining"`
	NextDelayHours    int             `json:"next_delay_hours"`
	NextRetryAt       *string         `json:"next_retry_at,omitempty"`
	BackoffMultiplier decimal.Decimal `json:"backoff_multiplier"`
	RetrySchedule     []RetryStep     `json:"retry_schedule"`
	PlannedRetries    []string        `json:"planned_retries"`
}

// RetryPlan describes the remaining retries as seen at now
func (s *Schedule) RetryPlan(now time.Time) RetryPlan {
	plan := RetryPlan{
		Enabled:           s.RetryEnabled,
		CurrentRetryCount: s.CurrentRetryCount,
		MaxAttempts:       s.MaxRetryAttempts,
		Remaining:         max(0, s.MaxRetryAttempts-s.CurrentRetryCount),
		NextDelayHours:    s.RetryDelayHours(),
		NextRetryAt:       formatTimePtr(s.NextRetryAt),
		BackoffMultiplier: s.RetryBackoffMultiplier,
		RetrySchedule:     s.RetrySchedule(),
		PlannedRetries:    []string{},
	}
	if !s.RetryEnabled {
		return plan
	}
	at := now
	if s.NextRetryAt != nil {
		at = *s.NextRetryAt
		plan.PlannedRetries = append(plan.PlannedRetries, at.Format(time.RFC3339))
	}
	for count := s.CurrentRetryCount + 1; count <= s.MaxRetryAttempts; count++ {
		at = at.Add(time.Duration(retryDelay(s.RetryIntervalHours, s.RetryBackoffMultiplier, count)) * time.Hour)
		plan.PlannedRetries = append(plan.PlannedRetries, at.Format(time.RFC3339))
	}
	return plan
}
