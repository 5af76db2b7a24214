package expense

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusDraft      Status = "draft"
	StatusPending    Status = "pending"
	StatusApproved   Status = "approved"
	StatusRejected   Status = "rejected"
	StatusReimbursed Status = "reimbursed"
	StatusBilled     Status = "billed"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusApproved, StatusRejected, StatusReimbursed, StatusBilled:
		return true
	}
	return false
}

// CountsAsSpend reports whether the expense is money actually spent
func (s Status) CountsAsSpend() bool {
	return s == StatusApproved || s == StatusReimbursed || s == StatusBilled
}

type PaymentMethod string

const (
	PaymentCash         PaymentMethod = "cash"
	PaymentCard         PaymentMethod = "card"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
	PaymentCheque       PaymentMethod = "cheque"
	PaymentOther        PaymentMethod = "other"
)

// Audit actions
const (
	AuditCreated           = "created"
	AuditUpdated           = "updated"
	AuditSubmitted         = "submitted"
	AuditApproved          = "approved"
	AuditRejected          = "rejected"
	AuditReimbursed        = "reimbursed"
	AuditBilled            = "billed"
	AuditAttachmentAdded   = "attachment_added"
	AuditAttachmentRemoved = "attachment_removed"
)

const MaxAttachmentSize = 10 << 20

var AllowedAttachmentTypes = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/gif":       ".gif",
	"image/webp":      ".webp",
	"application/pdf": ".pdf",
}

type Category struct {
	ID              string
	WorkspaceID     string
	Name            string
	Description     string
	Color           string
	Icon            string
	IsActive        bool
	IsTaxDeductible bool
	SortOrder       int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Vendor struct {
	ID                string
	WorkspaceID       string
	Name              string
	ContactName       string
	Email             string
	Phone             string
	Website           string
	Address           string
	TaxID             string
	PaymentTerms      string
	DefaultCategoryID *string
	Notes             string
	IsActive          bool
	TotalExpenses     decimal.Decimal
	ExpenseCount      int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type Expense struct {
	ID                     string
	WorkspaceID            string
	CreatedBy              *string
	ExpenseNumber          string
	Status                 Status
	ExpenseDate            time.Time
	Description            string
	Amount                 decimal.Decimal
	Currency               string
	TaxRate                decimal.Decimal
	TaxAmount              decimal.Decimal
	TotalAmount            decimal.Decimal
	ExchangeRate           decimal.Decimal
	BaseCurrencyAmount     decimal.Decimal
	PaymentMethod          PaymentMethod
	ReferenceNumber        string
	CategoryID             *string
	VendorID               *string
	ClientID               *string
	IsBillable             bool
	MarkupPercent          decimal.Decimal
	BillableAmount         decimal.Decimal
	IsBilled               bool
	InvoiceID              *string
	IsReimbursable         bool
	Tags                   []string
	Notes                  string
	SubmittedAt            *time.Time
	ApprovedBy             *string
	ApprovedAt             *time.Time
	RejectionReason        string
	ReimbursedAt           *time.Time
	ReimbursementReference string
	CreatedAt              time.Time
	UpdatedAt              time.Time

	// Join
	CategoryName string
	VendorName   string
	HasReceipt   bool
}

type Attachment struct {
	ID          string
	ExpenseID   string
	FileName    string
	ContentType string
	SizeBytes   int64
	StorageKey  string
	IsPrimary   bool
	UploadedBy  *string
	CreatedAt   time.Time
}

type AuditLog struct {
	ID        string
	ExpenseID string
	UserID    *string
	Action    string
	Details   map[string]any
	CreatedAt time.Time
}
