package expense

import (
	"strings"
	"time"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/money"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

// ==================== Expense ====================

type ExpenseRequest struct {
	ExpenseDate     string          `json:"expense_date"`
	Description     string          `json:"description" validate:"required,max=500"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	TaxRate         decimal.Decimal `json:"tax_rate"`
	ExchangeRate    decimal.Decimal `json:"exchange_rate"`
	PaymentMethod   PaymentMethod   `json:"payment_method" validate:"omitempty,oneof=cash card bank_transfer cheque other"`
	ReferenceNumber string          `json:"reference_number" validate:"max=100"`
	CategoryID      *string         `json:"category_id" validate:"omitempty,uuid"`
	VendorID        *string         `json:"vendor_id" validate:"omitempty,uuid"`
	ClientID        *string         `json:"client_id" validate:"omitempty,uuid"`
	IsBillable      bool            `json:"is_billable"`
	MarkupPercent   decimal.Decimal `json:"markup_percent"`
	IsReimbursable  bool            `json:"is_reimbursable"`
	Tags            []string        `json:"tags" validate:"max=20,dive,max=50"`
	Notes           string          `json:"notes" validate:"max=5000"`
}

func (r *ExpenseRequest) Validate() error {
	errs := validator.Struct(r)

	if _, ok := validator.IsValidDate(r.ExpenseDate); !ok {
		errs.Add("expense_date", "expense_date must be YYYY-MM-DD")
	}
	if !r.Amount.IsPositive() {
		errs.Add("amount", "amount must be greater than 0")
	}
	if r.Currency != "" && !money.IsValidCurrency(r.Currency) {
		errs.Add("currency", "unsupported currency")
	}
	if r.TaxRate.IsNegative() || r.TaxRate.GreaterThan(money.Hundred) {
		errs.Add("tax_rate", "tax_rate must be between 0 and 100")
	}
	if r.ExchangeRate.IsNegative() {
		errs.Add("exchange_rate", "exchange_rate cannot be negative")
	}
	if r.MarkupPercent.IsNegative() {
		errs.Add("markup_percent", "markup_percent cannot be negative")
	}

	return errs.OrNil()
}

// Apply copies the request onto e and recalculates its amounts
func (r *ExpenseRequest) Apply(e *Expense, defaultCurrency string) {
	e.ExpenseDate, _ = validator.IsValidDate(r.ExpenseDate)
	e.Description = strings.TrimSpace(r.Description)
	e.Amount = r.Amount
	e.Currency = defaultCurrency
	if r.Currency != "" {
		e.Currency = money.NormalizeCurrency(r.Currency)
	}
	e.TaxRate = r.TaxRate
	e.ExchangeRate = r.ExchangeRate
	e.PaymentMethod = r.PaymentMethod
	if e.PaymentMethod == "" {
		e.PaymentMethod = PaymentOther
	}
	e.ReferenceNumber = strings.TrimSpace(r.ReferenceNumber)
	e.CategoryID = r.CategoryID
	e.VendorID = r.VendorID
	e.ClientID = r.ClientID
	e.IsBillable = r.IsBillable
	e.MarkupPercent = r.MarkupPercent
	e.IsReimbursable = r.IsReimbursable
	e.Tags = normalizeTags(r.Tags)
	e.Notes = r.Notes
	e.Calculate()
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool)
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

type RejectRequest struct {
	Reason string `json:"reason" validate:"max=1000"`
}

func (r *RejectRequest) Validate() error {
	errs := validator.Struct(r)
	if strings.TrimSpace(r.Reason) == "" {
		errs.Add("reason", "reason is required")
	}
	return errs.OrNil()
}

type ReimburseRequest struct {
	Reference string `json:"reference" validate:"required,max=100"`
}

func (r *ReimburseRequest) Validate() error {
	return validator.Struct(r).OrNil()
}

type BillRequest struct {
	InvoiceID string `json:"invoice_id" validate:"required,uuid"`
}

func (r *BillRequest) Validate() error {
	return validator.Struct(r).OrNil()
}

type ExpenseFilter struct {
	WorkspaceID string
	Status      *Status
	CategoryID  *string
	VendorID    *string
	ClientID    *string
	IsBillable  *bool
	IsBilled    *bool
	DateFrom    *time.Time
	DateTo      *time.Time
	MinAmount   *decimal.Decimal
	MaxAmount   *decimal.Decimal
	Search      string
	Tags        []string
	Page        int
	Limit       int
}

type ExpenseResponse struct {
	ID                     string          `json:"id"`
	ExpenseNumber          string          `json:"expense_number"`
	Status                 Status          `json:"status"`
	StatusLabel            string          `json:"status_label"`
	ExpenseDate            string          `json:"expense_date"`
	Description            string          `json:"description"`
	Amount                 decimal.Decimal `json:"amount"`
	Currency               string          `json:"currency"`
	TaxRate                decimal.Decimal `json:"tax_rate"`
	TaxAmount              decimal.Decimal `json:"tax_amount"`
	TotalAmount            decimal.Decimal `json:"total_amount"`
	TotalFormatted         string          `json:"total_formatted"`
	ExchangeRate           decimal.Decimal `json:"exchange_rate"`
	BaseCurrencyAmount     decimal.Decimal `json:"base_currency_amount"`
	PaymentMethod          PaymentMethod   `json:"payment_method"`
	ReferenceNumber        string          `json:"reference_number"`
	CategoryID             *string         `json:"category_id,omitempty"`
	CategoryName           string          `json:"category_name,omitempty"`
	VendorID               *string         `json:"vendor_id,omitempty"`
	VendorName             string          `json:"vendor_name,omitempty"`
	ClientID               *string         `json:"client_id,omitempty"`
	IsBillable             bool            `json:"is_billable"`
	MarkupPercent          decimal.Decimal `json:"markup_percent"`
	BillableAmount         decimal.Decimal `json:"billable_amount"`
	IsBilled               bool            `json:"is_billed"`
	InvoiceID              *string         `json:"invoice_id,omitempty"`
	IsReimbursable         bool            `json:"is_reimbursable"`
	HasReceipt             bool            `json:"has_receipt"`
	Tags                   []string        `json:"tags"`
	Notes                  string          `json:"notes"`
	ApprovedBy             *string         `json:"approved_by,omitempty"`
	RejectionReason        string          `json:"rejection_reason,omitempty"`
	ReimbursementReference string          `json:"reimbursement_reference,omitempty"`
	CreatedAt              string          `json:"created_at"`
	UpdatedAt              string          `json:"updated_at"`
}

func (e *Expense) ToResponse() ExpenseResponse {
	return ExpenseResponse{
		ID:                     e.ID,
		ExpenseNumber:          e.ExpenseNumber,
		Status:                 e.Status,
		StatusLabel:            money.Label(string(e.Status)),
		ExpenseDate:            e.ExpenseDate.Format(time.DateOnly),
		Description:            e.Description,
		Amount:                 e.Amount,
		Currency:               e.Currency,
		TaxRate:                e.TaxRate,
		TaxAmount:              e.TaxAmount,
		TotalAmount:            e.TotalAmount,
		TotalFormatted:         money.Format(e.TotalAmount, e.Currency),
		ExchangeRate:           e.ExchangeRate,
		BaseCurrencyAmount:     e.BaseCurrencyAmount,
		PaymentMethod:          e.PaymentMethod,
		ReferenceNumber:        e.ReferenceNumber,
		CategoryID:             e.CategoryID,
		CategoryName:           e.CategoryName,
		VendorID:               e.VendorID,
		VendorName:             e.VendorName,
		ClientID:               e.ClientID,
		IsBillable:             e.IsBillable,
		MarkupPercent:          e.MarkupPercent,
		BillableAmount:         e.BillableAmount,
		IsBilled:               e.IsBilled,
		InvoiceID:              e.InvoiceID,
		IsReimbursable:         e.IsReimbursable,
		HasReceipt:             e.HasReceipt,
		Tags:                   e.Tags,
		Notes:                  e.Notes,
		ApprovedBy:             e.ApprovedBy,
		RejectionReason:        e.RejectionReason,
		ReimbursementReference: e.ReimbursementReference,
		CreatedAt:              e.CreatedAt.Format(time.RFC3339),
		UpdatedAt:              e.UpdatedAt.Format(time.RFC3339),
	}
}

// ==================== Attachments ====================

type AttachmentUpload struct {
	FileName    string
	ContentType string
	Size        int64
	Data        []byte
}

// Validate checks the declared size and the sniffed content type
func (u *AttachmentUpload) Validate() error {
	if u.Size > MaxAttachmentSize || int64(len(u.Data)) > MaxAttachmentSize {
		return ErrAttachmentTooLarge
	}
	if _, ok := AllowedAttachmentTypes[u.ContentType]; !ok {
		return ErrAttachmentType
	}
	return nil
}

type AttachmentResponse struct {
	ID          string `json:"id"`
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
	IsPrimary   bool   `json:"is_primary"`
	URL         string `json:"url,omitempty"`
	CreatedAt   string `json:"created_at"`
}

func (a *Attachment) ToResponse(url string) AttachmentResponse {
	return AttachmentResponse{
		ID:          a.ID,
		FileName:    a.FileName,
		ContentType: a.ContentType,
		SizeBytes:   a.SizeBytes,
		IsPrimary:   a.IsPrimary,
		URL:         url,
		CreatedAt:   a.CreatedAt.Format(time.RFC3339),
	}
}

type AuditLogResponse struct {
	ID        string         `json:"id"`
	UserID    *string        `json:"user_id,omitempty"`
	Action    string         `json:"action"`
	Details   map[string]any `json:"details"`
	CreatedAt string         `json:"created_at"`
}

func (a *AuditLog) ToResponse() AuditLogResponse {
	return AuditLogResponse{
		ID:        a.ID,
		UserID:    a.UserID,
		Action:    a.Action,
		Details:   a.Details,
		CreatedAt: a.CreatedAt.Format(time.RFC3339),
	}
}

// ==================== Categories ====================

type CategoryRequest struct {
	Name            string `json:"name" validate:"required,max=100"`
	Description     string `json:"description" validate:"max=1000"`
	Color           string `json:"color"`
	Icon            string `json:"icon" validate:"max=50"`
	IsActive        *bool  `json:"is_active"`
	IsTaxDeductible bool   `json:"is_tax_deductible"`
	SortOrder       int    `json:"sort_order" validate:"gte=0"`
}

func (r *CategoryRequest) Validate() error {
	errs := validator.Struct(r)
	if r.Color != "" && !validator.IsValidHexColor(r.Color) {
		errs.Add("color", "color must be a hex value like #6366f1")
	}
	return errs.OrNil()
}

func (r *CategoryRequest) Apply(c *Category) {
	c.Name = strings.TrimSpace(r.Name)
	c.Description = r.Description
	if r.Color != "" {
		c.Color = r.Color
	}
	if c.Color == "" {
		c.Color = "#6366f1"
	}
	c.Icon = r.Icon
	c.IsActive = true
	if r.IsActive != nil {
		c.IsActive = *r.IsActive
	}
	c.IsTaxDeductible = r.IsTaxDeductible
	c.SortOrder = r.SortOrder
}

type CategoryResponse struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	Color           string `json:"color"`
	Icon            string `json:"icon"`
	IsActive        bool   `json:"is_active"`
	IsTaxDeductible bool   `json:"is_tax_deductible"`
	SortOrder       int    `json:"sort_order"`
}

func (c *Category) ToResponse() CategoryResponse {
	return CategoryResponse{
		ID:              c.ID,
		Name:            c.Name,
		Description:     c.Description,
		Color:           c.Color,
		Icon:            c.Icon,
		IsActive:        c.IsActive,
		IsTaxDeductible: c.IsTaxDeductible,
		SortOrder:       c.SortOrder,
	}
}

// ==================== Vendors ====================

type VendorRequest struct {
	Name              string  `json:"name" validate:"required,max=255"`
	ContactName       string  `json:"contact_name" validate:"max=255"`
	Email             string  `json:"email" validate:"omitempty,email,max=255"`
	Phone             string  `json:"phone" validate:"max=50"`
	Website           string  `json:"website" validate:"omitempty,url,max=255"`
	Address           string  `json:"address" validate:"max=2000"`
	TaxID             string  `json:"tax_id" validate:"max=50"`
	PaymentTerms      string  `json:"payment_terms" validate:"max=100"`
	DefaultCategoryID *string `json:"default_category_id" validate:"omitempty,uuid"`
	Notes             string  `json:"notes" validate:"max=5000"`
	IsActive          *bool   `json:"is_active"`
}

func (r *VendorRequest) Validate() error {
	errs := validator.Struct(r)
	if r.Phone != "" && !validator.IsValidPhoneNumber(r.Phone) {
		errs.Add("phone", "invalid phone number")
	}
	return errs.OrNil()
}

func (r *VendorRequest) Apply(v *Vendor) {
	v.Name = strings.TrimSpace(r.Name)
	v.ContactName = r.ContactName
	v.Email = strings.ToLower(strings.TrimSpace(r.Email))
	v.Phone = r.Phone
	v.Website = r.Website
	v.Address = r.Address
	v.TaxID = r.TaxID
	v.PaymentTerms = r.PaymentTerms
	v.DefaultCategoryID = r.DefaultCategoryID
	v.Notes = r.Notes
	v.IsActive = true
	if r.IsActive != nil {
		v.IsActive = *r.IsActive
	}
}

type VendorResponse struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	ContactName       string          `json:"contact_name"`
	Email             string          `json:"email"`
	Phone             string          `json:"phone"`
	Website           string          `json:"website"`
	Address           string          `json:"address"`
	TaxID             string          `json:"tax_id"`
	PaymentTerms      string          `json:"payment_terms"`
	DefaultCategoryID *string         `json:"default_category_id,omitempty"`
	Notes             string          `json:"notes"`
	IsActive          bool            `json:"is_active"`
	TotalExpenses     decimal.Decimal `json:"total_expenses"`
	ExpenseCount      int             `json:"expense_count"`
}

func (v *Vendor) ToResponse() VendorResponse {
	return VendorResponse{
		ID:                v.ID,
		Name:              v.Name,
		ContactName:       v.ContactName,
		Email:             v.Email,
		Phone:             v.Phone,
		Website:           v.Website,
		Address:           v.Address,
		TaxID:             v.TaxID,
		PaymentTerms:      v.PaymentTerms,
		DefaultCategoryID: v.DefaultCategoryID,
		Notes:             v.Notes,
		IsActive:          v.IsActive,
		TotalExpenses:     v.TotalExpenses,
		ExpenseCount:      v.ExpenseCount,
	}
}

// ==================== Summaries ====================

type StatusTotal struct {
	Status Status          `json:"status"`
	Count  int             `json:"count"`
	Total  decimal.Decimal `json:"total"`
}

type CategoryTotal struct {
	CategoryID   *string         `json:"category_id"`
	CategoryName string          `json:"category_name"`
	Count        int             `json:"count"`
	Total        decimal.Decimal `json:"total"`
}

type Summary struct {
	StartDate      string          `json:"start_date"`
	EndDate        string          `json:"end_date"`
	TotalCount     int             `json:"total_count"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	BillableAmount decimal.Decimal `json:"billable_amount"`
	UnbilledAmount decimal.Decimal `json:"unbilled_amount"`
	ByStatus       []StatusTotal   `json:"by_status"`
	ByCategory     []CategoryTotal `json:"by_category"`
}

type ProfitAndLoss struct {
	StartDate    string          `json:"start_date"`
	EndDate      string          `json:"end_date"`
	Revenue      decimal.Decimal `json:"revenue"`
	Expenses     decimal.Decimal `json:"expenses"`
	NetProfit    decimal.Decimal `json:"net_profit"`
	ProfitMargin decimal.Decimal `json:"profit_margin"`
	ByCategory   []CategoryTotal `json:"expenses_by_category"`
}

// Margin returns profit / revenue * 100 rounded to 0.01, or 0 without revenue
func Margin(profit, revenue decimal.Decimal) decimal.Decimal {
	if !revenue.IsPositive() {
		return decimal.Zero
	}
	return money.Round(profit.Div(revenue).Mul(money.Hundred))
}
