package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
	"github.com/stripe/stripe-go/v81/webhook"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/config"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/payment"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/money"
)

const stripeSignatureHeader = "Stripe-Signature"

// StripeClient opens Stripe Checkout sessions in payment mode
type StripeClient struct {
	api           *client.API
	webhookSecret string
	successURL    string
	cancelURL     string
}

func NewStripe(cfg config.StripeConfig) *StripeClient {
	return newStripe(cfg, nil)
}

func newStripe(cfg config.StripeConfig, backends *stripe.Backends) *StripeClient {
	return &StripeClient{
		api:           client.New(cfg.SecretKey, backends),
		webhookSecret: cfg.WebhookSecret,
		successURL:    cfg.SuccessURL,
		cancelURL:     cfg.CancelURL,
	}
}

func (s *StripeClient) Name() string { return Stripe }

func (s *StripeClient) InitializeCheckout(ctx context.Context, req payment.CheckoutRequest) (payment.CheckoutSession, error) {
	successURL := req.CallbackURL
	if successURL == "" {
		successURL = s.successURL
	}
	cancelURL := s.cancelURL
	if cancelURL == "" {
		cancelURL = successURL
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(req.Reference),
		SuccessURL:        stripe.String(successURL),
		CancelURL:         stripe.String(cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(strings.ToLower(req.Currency)),
					UnitAmount: stripe.Int64(money.ToMinor(req.Amount)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Description),
					},
				},
			},
		},
	}
	if req.Email != "" {
		params.CustomerEmail = stripe.String(req.Email)
	}
	params.Context = ctx
	params.AddMetadata("reference", req.Reference)
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return payment.CheckoutSession{}, s.wrap("create checkout session", err)
	}
	return payment.CheckoutSession{
		CheckoutURL:       sess.URL,
		ProviderReference: sess.ID,
	}, nil
}

// VerifySignature checks the Stripe-Signature header, including its timestamp tolerance.
// Without a webhook secret every event is rejected.
func (s *StripeClient) VerifySignature(header http.Header, body []byte) error {
	if s.webhookSecret == "" {
		return payment.ErrInvalidSignature
	}
	if err := webhook.ValidatePayload(body, header.Get(stripeSignatureHeader), s.webhookSecret); err != nil {
		return payment.ErrInvalidSignature
	}
	return nil
}

func (s *StripeClient) ParseEvent(body []byte) (payment.Event, error) {
	var event stripe.Event
	if err := json.Unmarshal(body, &event); err != nil {
		return payment.Event{}, payment.ErrInvalidPayload
	}

	out := payment.Event{ID: event.ID, Type: string(event.Type)}
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted, stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		var sess stripe.CheckoutSession
		if event.Data == nil || json.Unmarshal(event.Data.Raw, &sess) != nil {
			return payment.Event{}, payment.ErrInvalidPayload
		}
		out.Reference = sess.ClientReferenceID
		if out.Reference == "" {
			out.Reference = sess.Metadata["reference"]
		}
		out.ChargeSucceeded = sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid
	}
	return out, nil
}

// Verify retrieves the checkout session created for the payment
func (s *StripeClient) Verify(ctx context.Context, _, providerReference string) (payment.Verification, error) {
	if providerReference == "" {
		return payment.Verification{}, errors.New("stripe verification needs the checkout session id")
	}
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	sess, err := s.api.CheckoutSessions.Get(providerReference, params)
	if err != nil {
		return payment.Verification{}, s.wrap("retrieve checkout session", err)
	}

	v := payment.Verification{
		Verified:          sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		Status:            string(sess.PaymentStatus),
		AmountMinor:       sess.AmountTotal,
		Currency:          strings.ToUpper(string(sess.Currency)),
		ProviderReference: sess.ID,
	}
	if sess.PaymentIntent != nil && sess.PaymentIntent.ID != "" {
		v.ProviderReference = sess.PaymentIntent.ID
	}
	return v, nil
}

func (s *StripeClient) wrap(op string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode >= http.StatusInternalServerError || stripeErr.HTTPStatusCode == 0 {
			return fmt.Errorf("%w: %s", payment.ErrProviderUnavailable, stripeErr.Msg)
		}
		return &APIError{Provider: Stripe, StatusCode: stripeErr.HTTPStatusCode, Message: stripeErr.Msg}
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
