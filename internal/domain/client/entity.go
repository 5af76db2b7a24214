package client

import (
	"time"

	"github.com/shopspring/decimal"
)

type Client struct {
	ID              string
	WorkspaceID     string
	Name            string
	Email           string
	Phone           string
	TaxID           string
	BillingAddress  string
	BillingCity     string
	BillingState    string
	BillingCountry  string
	BillingZip      string
	ShippingAddress string
	Currency        string
	DiscountRate    decimal.Decimal
	Notes           string
	Tags            []string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Note struct {
	ID        string
	ClientID  string
	UserID    *string
	Content   string
	CreatedAt time.Time
}
