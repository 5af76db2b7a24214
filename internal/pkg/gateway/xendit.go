package gateway

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	xenditSDK "github.com/xendit/xendit-go/v7"
	"github.com/xendit/xendit-go/v7/invoice"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/config"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/payment"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/money"
)

const (
	xenditCallbackHeader = "X-Callback-Token"

	// Invoice statuses
	xenditStatusPaid    = "PAID"
	xenditStatusSettled = "SETTLED"
)

// XenditClient wraps the official Xendit SDK invoice API
type XenditClient struct {
	invoiceAPI    invoice.InvoiceApi
	callbackToken string
	successURL    string
	failureURL    string
}

func NewXendit(cfg config.XenditConfig) *XenditClient {
	sdk := xenditSDK.NewClient(cfg.SecretKey)
	return &XenditClient{
		invoiceAPI:    sdk.InvoiceApi,
		callbackToken: cfg.CallbackToken,
		successURL:    cfg.SuccessURL,
		failureURL:    cfg.FailureURL,
	}
}

func (x *XenditClient) Name() string { return Xendit }

func (x *XenditClient) InitializeCheckout(ctx context.Context, req payment.CheckoutRequest) (payment.CheckoutSession, error) {
	amount, _ := money.Round(req.Amount).Float64()

	sdkReq := *invoice.NewCreateInvoiceRequest(req.Reference, amount)
	sdkReq.SetCurrency(req.Currency)
	if req.Email != "" {
		sdkReq.SetPayerEmail(req.Email)
	}
	if req.Description != "" {
		sdkReq.SetDescription(req.Description)
	}
	success := req.CallbackURL
	if success == "" {
		success = x.successURL
	}
	if success != "" {
		sdkReq.SetSuccessRedirectUrl(success)
	}
	if x.failureURL != "" {
		sdkReq.SetFailureRedirectUrl(x.failureURL)
	}
	if len(req.Metadata) > 0 {
		metadata := make(map[string]interface{}, len(req.Metadata))
		for k, v := range req.Metadata {
			metadata[k] = v
		}
		sdkReq.SetMetadata(metadata)
	}

	resp, _, sdkErr := x.invoiceAPI.CreateInvoice(ctx).
		CreateInvoiceRequest(sdkReq).
		Execute()
	if sdkErr != nil {
		return payment.CheckoutSession{}, fmt.Errorf("%w: failed to create xendit invoice: %s", payment.ErrProviderUnavailable, sdkErr.Error())
	}

	return payment.CheckoutSession{
		CheckoutURL:       resp.GetInvoiceUrl(),
		ProviderReference: resp.GetId(),
	}, nil
}

// VerifySignature compares the x-callback-token header with the dashboard token
func (x *XenditClient) VerifySignature(header http.Header, _ []byte) error {
	token := strings.TrimSpace(header.Get(xenditCallbackHeader))
	if token == "" || x.callbackToken == "" {
		return payment.ErrInvalidSignature
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(strings.TrimSpace(x.callbackToken))) != 1 {
		return payment.ErrInvalidSignature
	}
	return nil
}

// invoiceCallback is the body Xendit posts for invoice status changes
type invoiceCallback struct {
	ID         string  `json:"id"`
	ExternalID string  `json:"external_id"`
	Status     string  `json:"status"`
	Amount     float64 `json:"amount"`
	PaidAmount float64 `json:"paid_amount"`
	Currency   string  `json:"currency"`
}

func (x *XenditClient) ParseEvent(body []byte) (payment.Event, error) {
	var cb invoiceCallback
	if err := json.Unmarshal(body, &cb); err != nil {
		return payment.Event{}, payment.ErrInvalidPayload
	}
	id := ""
	if cb.ID != "" {
		// one callback per invoice status transition
		id = cb.ID + ":" + cb.Status
	}
	return payment.Event{
		ID:              id,
		Type:            "invoice." + strings.ToLower(cb.Status),
		Reference:       cb.ExternalID,
		ChargeSucceeded: isXenditPaid(cb.Status),
	}, nil
}

// Verify fetches the Xendit invoice by the id returned at checkout
func (x *XenditClient) Verify(ctx context.Context, _, providerReference string) (payment.Verification, error) {
	if providerReference == "" {
		return payment.Verification{}, errors.New("xendit verification needs the invoice id")
	}
	inv, _, sdkErr := x.invoiceAPI.GetInvoiceById(ctx, providerReference).Execute()
	if sdkErr != nil {
		return payment.Verification{}, fmt.Errorf("%w: failed to get xendit invoice: %s", payment.ErrProviderUnavailable, sdkErr.Error())
	}

	status := string(inv.GetStatus())
	return payment.Verification{
		Verified:          isXenditPaid(status),
		Status:            status,
		AmountMinor:       money.ToMinor(decimal.NewFromFloat(inv.GetAmount())),
		Currency:          strings.ToUpper(string(inv.GetCurrency())),
		ProviderReference: inv.GetId(),
	}, nil
}

func isXenditPaid(status string) bool {
	return status == xenditStatusPaid || status == xenditStatusSettled
}
