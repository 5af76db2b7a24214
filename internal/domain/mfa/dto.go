package mfa

import "github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/validator"

const (
	Issuer            = "InvoiceFlow"
	RecoveryCodeCount = 8
)

type SetupResponse struct {
	Secret          string `json:"secret"`
	ProvisioningURI string `json:"provisioning_uri"`
}

type CodeRequest struct {
	Code string `json:"code" validate:"required,max=20"`
}

func (r *CodeRequest) Validate() error {
	return validator.Struct(r).OrNil()
}

type PasswordRequest struct {
	Password string `json:"password" validate:"required"`
}

func (r *PasswordRequest) Validate() error {
	return validator.Struct(r).OrNil()
}

// RecoveryCodesResponse is the only time plain recovery codes leave the server
type RecoveryCodesResponse struct {
	RecoveryCodes []string `json:"recovery_codes"`
}

type StatusResponse struct {
	Enabled                bool    `json:"enabled"`
	RecoveryCodesRemaining int     `json:"recovery_codes_remaining"`
	LastUsedAt             *string `json:"last_used_at,omitempty"`
}
