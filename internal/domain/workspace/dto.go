package workspace

import (
	"strings"
	"time"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/money"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

// WorkspaceResponse represents workspace data in API responses
type WorkspaceResponse struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Slug            string          `json:"slug"`
	OwnerID         string          `json:"owner_id"`
	CompanyName     string          `json:"company_name"`
	BusinessEmail   string          `json:"business_email"`
	BusinessPhone   string          `json:"business_phone"`
	BusinessAddress string          `json:"business_address"`
	BusinessCountry string          `json:"business_country"`
	LogoURL         *string         `json:"logo_url,omitempty"`
	PrimaryColor    string          `json:"primary_color"`
	InvoicePrefix   string          `json:"invoice_prefix"`
	DefaultCurrency string          `json:"default_currency"`
	VATRate         decimal.Decimal `json:"vat_rate"`
	TaxIDNumber     string          `json:"tax_id_number"`
	PaymentProvider string          `json:"payment_provider"`
	Role            Role            `json:"role,omitempty"`
	CreatedAt       string          `json:"created_at"`
	UpdatedAt       string          `json:"updated_at"`
}

func (w *Workspace) ToResponse() WorkspaceResponse {
	return WorkspaceResponse{
		ID:              w.ID,
		Name:            w.Name,
		Slug:            w.Slug,
		OwnerID:         w.OwnerID,
		CompanyName:     w.CompanyName,
		BusinessEmail:   w.BusinessEmail,
		BusinessPhone:   w.BusinessPhone,
		BusinessAddress: w.BusinessAddress,
		BusinessCountry: w.BusinessCountry,
		PrimaryColor:    w.PrimaryColor,
		InvoicePrefix:   w.InvoicePrefix,
		DefaultCurrency: w.DefaultCurrency,
		VATRate:         w.VATRate,
		TaxIDNumber:     w.TaxIDNumber,
		PaymentProvider: w.PaymentProvider,
		CreatedAt:       w.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       w.UpdatedAt.Format(time.RFC3339),
	}
}

// MemberResponse represents a workspace member in API responses
type MemberResponse struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Role     Role   `json:"role"`
	JoinedAt string `json:"joined_at"`
}

func (m *Member) ToResponse() MemberResponse {
	return MemberResponse{
		UserID:   m.UserID,
		Email:    m.Email,
		Username: m.Username,
		FullName: strings.TrimSpace(m.FirstName + " " + m.LastName),
		Role:     m.Role,
		JoinedAt: m.CreatedAt.Format(time.RFC3339),
	}
}

var supportedProviders = []string{"paystack", "stripe", "xendit"}

// UpdateWorkspaceRequest is a partial update; nil fields are left unchanged
type UpdateWorkspaceRequest struct {
	Name            *string          `json:"name" validate:"omitempty,min=2,max=255"`
	CompanyName     *string          `json:"company_name" validate:"omitempty,max=255"`
	BusinessEmail   *string          `json:"business_email" validate:"omitempty,email"`
	BusinessPhone   *string          `json:"business_phone"`
	BusinessAddress *string          `json:"business_address"`
	BusinessCountry *string          `json:"business_country" validate:"omitempty,max=100"`
	PrimaryColor    *string          `json:"primary_color"`
	InvoicePrefix   *string          `json:"invoice_prefix" validate:"omitempty,min=1,max=20,alphanum"`
	DefaultCurrency *string          `json:"default_currency"`
	VATRate         *decimal.Decimal `json:"vat_rate"`
	TaxIDNumber     *string          `json:"tax_id_number" validate:"omitempty,max=50"`
	PaymentProvider *string          `json:"payment_provider"`
}

func (r *UpdateWorkspaceRequest) Validate() error {
	errs := validator.Struct(r)

	if r.BusinessPhone != nil && *r.BusinessPhone != "" && !validator.IsValidPhoneNumber(*r.BusinessPhone) {
		errs.Add("business_phone", "invalid phone number")
	}
	if r.PrimaryColor != nil && !validator.IsValidHexColor(*r.PrimaryColor) {
		errs.Add("primary_color", "primary_color must be a hex color like #6366f1")
	}
	if r.DefaultCurrency != nil && !money.IsValidCurrency(*r.DefaultCurrency) {
		errs.Add("default_currency", "unsupported currency")
	}
	if r.VATRate != nil && (r.VATRate.IsNegative() || r.VATRate.GreaterThan(money.Hundred)) {
		errs.Add("vat_rate", "vat_rate must be between 0 and 100")
	}
	if r.PaymentProvider != nil && !validator.IsInSlice(*r.PaymentProvider, supportedProviders) {
		errs.Add("payment_provider", "payment_provider must be one of: paystack, stripe, xendit")
	}

	return errs.OrNil()
}

// Apply copies the set fields onto w
func (r *UpdateWorkspaceRequest) Apply(w *Workspace) {
	if r.Name != nil {
		w.Name = strings.TrimSpace(*r.Name)
	}
	if r.CompanyName != nil {
		w.CompanyName = *r.CompanyName
	}
	if r.BusinessEmail != nil {
		w.BusinessEmail = strings.ToLower(*r.BusinessEmail)
	}
	if r.BusinessPhone != nil {
		w.BusinessPhone = *r.BusinessPhone
	}
	if r.BusinessAddress != nil {
		w.BusinessAddress = *r.BusinessAddress
	}
	if r.BusinessCountry != nil {
		w.BusinessCountry = *r.BusinessCountry
	}
	if r.PrimaryColor != nil {
		w.PrimaryColor = *r.PrimaryColor
	}
	if r.InvoicePrefix != nil {
		w.InvoicePrefix = strings.ToUpper(*r.InvoicePrefix)
	}
	if r.DefaultCurrency != nil {
		w.DefaultCurrency = money.NormalizeCurrency(*r.DefaultCurrency)
	}
	if r.VATRate != nil {
		w.VATRate = *r.VATRate
	}
	if r.TaxIDNumber != nil {
		w.TaxIDNumber = *r.TaxIDNumber
	}
	if r.PaymentProvider != nil {
		w.PaymentProvider = *r.PaymentProvider
	}
}

type UpdateMemberRoleRequest struct {
	Role Role `json:"role"`
}

func (r *UpdateMemberRoleRequest) Validate() error {
	var errs validator.ValidationErrors
	if !r.Role.IsValid() {
		errs.Add("role", "role must be one of: admin, member")
	} else if r.Role == RoleOwner {
		errs.Add("role", "owner role cannot be assigned")
	}
	return errs.OrNil()
}
