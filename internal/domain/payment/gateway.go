package payment

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"
)

// CheckoutRequest is what a provider needs to open a hosted checkout
type CheckoutRequest struct {
	Reference   string
	Amount      decimal.Decimal
	Currency    string
	Email       string
	Description string
	CallbackURL string
	Metadata    map[string]string
}

type CheckoutSession struct {
	CheckoutURL       string
	ProviderReference string
}

// Event is a parsed webhook notification
type Event struct {
	ID        string
	Type      string
	Reference string
	// ChargeSucceeded is true for the provider's successful charge event
	ChargeSucceeded bool
}

// Verification is the provider's server-side view of a charge
type Verification struct {
	Verified          bool
	Status            string
	AmountMinor       int64
	Currency          string
	ProviderReference string
	FeeMinor          int64
}

// Gateway is implemented by each payment provider integration
type Gateway interface {
	Name() string
	InitializeCheckout(ctx context.Context, req CheckoutRequest) (CheckoutSession, error)
	// VerifySignature authenticates a raw webhook request
	VerifySignature(header http.Header, body []byte) error
	ParseEvent(body []byte) (Event, error)
	// Verify fetches the charge by our reference or by the id the provider
	// returned from InitializeCheckout, whichever the provider keys on
	Verify(ctx context.Context, reference, providerReference string) (Verification, error)
}
