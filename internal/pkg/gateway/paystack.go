package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/config"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/payment"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/money"
)

const (
	paystackBaseURL         = "https://api.paystack.co"
	paystackSignatureHeader = "X-Paystack-Signature"
	paystackChargeSuccess   = "charge.success"
)

// PaystackClient talks to the Paystack transaction API
type PaystackClient struct {
	secretKey   string
	baseURL     string
	callbackURL string
	http        *http.Client
}

func NewPaystack(cfg config.PaystackConfig, client *http.Client) *PaystackClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = paystackBaseURL
	}
	return &PaystackClient{
		secretKey:   cfg.SecretKey,
		baseURL:     strings.TrimRight(baseURL, "/"),
		callbackURL: cfg.CallbackURL,
		http:        client,
	}
}

func (p *PaystackClient) Name() string { return Paystack }

type paystackEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type paystackInitData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type paystackTransaction struct {
	ID        json.Number `json:"id"`
	Status    string      `json:"status"`
	Reference string      `json:"reference"`
	Amount    int64       `json:"amount"`
	Currency  string      `json:"currency"`
	Fees      int64       `json:"fees"`
}

func (p *PaystackClient) InitializeCheckout(ctx context.Context, req payment.CheckoutRequest) (payment.CheckoutSession, error) {
	callback := req.CallbackURL
	if callback == "" {
		callback = p.callbackURL
	}
	body := map[string]any{
		"email":     req.Email,
		"amount":    money.ToMinor(req.Amount),
		"currency":  req.Currency,
		"reference": req.Reference,
		"metadata":  req.Metadata,
	}
	if callback != "" {
		body["callback_url"] = callback
	}

	var data paystackInitData
	if err := p.do(ctx, http.MethodPost, "/transaction/initialize", body, &data); err != nil {
		return payment.CheckoutSession{}, err
	}
	return payment.CheckoutSession{
		CheckoutURL:       data.AuthorizationURL,
		ProviderReference: data.AccessCode,
	}, nil
}

// VerifySignature checks the hex HMAC-SHA512 of the body keyed with the secret key
func (p *PaystackClient) VerifySignature(header http.Header, body []byte) error {
	signature := header.Get(paystackSignatureHeader)
	if signature == "" {
		return payment.ErrInvalidSignature
	}
	mac := hmac.New(sha512.New, []byte(p.secretKey))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(signature))) {
		return payment.ErrInvalidSignature
	}
	return nil
}

func (p *PaystackClient) ParseEvent(body []byte) (payment.Event, error) {
	var raw struct {
		ID    json.Number `json:"id"`
		Event string      `json:"event"`
		Data  struct {
			ID        json.Number `json:"id"`
			Reference string      `json:"reference"`
		} `json:"data"`
	}
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	if err := decoder.Decode(&raw); err != nil {
		return payment.Event{}, payment.ErrInvalidPayload
	}

	id := raw.Data.ID.String()
	if id == "" {
		id = raw.ID.String()
	}
	return payment.Event{
		ID:              id,
		Type:            raw.Event,
		Reference:       raw.Data.Reference,
		ChargeSucceeded: raw.Event == paystackChargeSuccess,
	}, nil
}

// Verify looks the transaction up by our reference
func (p *PaystackClient) Verify(ctx context.Context, reference, _ string) (payment.Verification, error) {
	var tx paystackTransaction
	if err := p.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil, &tx); err != nil {
		return payment.Verification{}, err
	}
	return payment.Verification{
		Verified:          tx.Status == "success",
		Status:            tx.Status,
		AmountMinor:       tx.Amount,
		Currency:          strings.ToUpper(tx.Currency),
		ProviderReference: tx.ID.String(),
		FeeMinor:          tx.Fees,
	}, nil
}

func (p *PaystackClient) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode paystack request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build paystack request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", payment.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	var env paystackEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("failed to decode paystack response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: paystack returned %d", payment.ErrProviderUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= http.StatusBadRequest || !env.Status {
		return &APIError{Provider: Paystack, StatusCode: resp.StatusCode, Message: env.Message}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to decode paystack data: %w", err)
		}
	}
	return nil
}

// APIError represents a rejected provider call
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error [%d]: %s", e.Provider, e.StatusCode, e.Message)
}
