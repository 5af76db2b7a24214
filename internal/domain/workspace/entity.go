package workspace

import (
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleOwner  Role = "owner"  // Workspace owner - full access
	RoleAdmin  Role = "admin"  // Manages billing, members and settings
	RoleMember Role = "member" // Day to day invoicing and expenses
)

// IsValid reports whether r is one of the known roles
func (r Role) IsValid() bool {
	return r == RoleOwner || r == RoleAdmin || r == RoleMember
}

// Sequence kinds used for per-workspace document numbering
const (
	SequenceInvoice  = "invoice"
	SequenceEstimate = "estimate"
	SequenceExpense  = "expense"
)

type Workspace struct {
	ID              string
	Name            string
	Slug            string
	OwnerID         string
	CompanyName     string
	BusinessEmail   string
	BusinessPhone   string
	BusinessAddress string
	BusinessCountry string
	LogoKey         *string
	PrimaryColor    string
	InvoicePrefix   string
	DefaultCurrency string
	VATRate         decimal.Decimal
	TaxIDNumber     string
	PaymentProvider string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// DisplayName is the name printed on invoices
func (w *Workspace) DisplayName() string {
	if w.CompanyName != "" {
		return w.CompanyName
	}
	return w.Name
}

type Member struct {
	ID          string
	WorkspaceID string
	UserID      string
	Role        Role
	CreatedAt   time.Time

	// Join
	Email     string
	Username  string
	FirstName string
	LastName  string
}

// Membership is a workspace seen from one of its members
type Membership struct {
	Workspace Workspace
	Role      Role
}
