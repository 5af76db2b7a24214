package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v81/webhook"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/config"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/payment"
)

func TestRegistry_Get(t *testing.T) {
	reg := NewRegistry(NewPaystack(config.PaystackConfig{SecretKey: "sk_test"}, http.DefaultClient), nil)

	g, err := reg.Get(Paystack)
	require.NoError(t, err)
	assert.Equal(t, Paystack, g.Name())

	_, err = reg.Get(Stripe)
	assert.ErrorIs(t, err, payment.ErrProviderNotConfigured)

	_, err = reg.Get("flutterwave")
	assert.ErrorIs(t, err, payment.ErrUnknownProvider)

	assert.Equal(t, []string{Paystack}, reg.Names())
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestPaystack_VerifySignature(t *testing.T) {
	p := NewPaystack(config.PaystackConfig{SecretKey: "sk_test_secret"}, http.DefaultClient)
	body := []byte(`{"event":"charge.success","data":{"id":1,"reference":"ref"}}`)

	header := http.Header{}
	header.Set(paystackSignatureHeader, sign("sk_test_secret", body))
	assert.NoError(t, p.VerifySignature(header, body))

	header.Set(paystackSignatureHeader, sign("other", body))
	assert.ErrorIs(t, p.VerifySignature(header, body), payment.ErrInvalidSignature)

	assert.ErrorIs(t, p.VerifySignature(http.Header{}, body), payment.ErrInvalidSignature)
}

func TestPaystack_ParseEvent(t *testing.T) {
	p := NewPaystack(config.PaystackConfig{SecretKey: "sk"}, http.DefaultClient)

	ev, err := p.ParseEvent([]byte(`{"event":"charge.success","data":{"id":302961,"reference":"inv_abc"}}`))
	require.NoError(t, err)
	assert.Equal(t, "302961", ev.ID)
	assert.Equal(t, "inv_abc", ev.Reference)
	assert.True(t, ev.ChargeSucceeded)

	ev, err = p.ParseEvent([]byte(`{"event":"transfer.success","data":{"id":7}}`))
	require.NoError(t, err)
	assert.False(t, ev.ChargeSucceeded)

	_, err = p.ParseEvent([]byte(`not json`))
	assert.ErrorIs(t, err, payment.ErrInvalidPayload)
}

func TestPaystack_InitializeAndVerify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk_live", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/transaction/initialize":
			raw, _ := io.ReadAll(r.Body)
			var body map[string]any
			require.NoError(t, json.Unmarshal(raw, &body))
			assert.Equal(t, float64(1050025), body["amount"])
			assert.Equal(t, "NGN", body["currency"])
			_, _ = w.Write([]byte(`{"status":true,"message":"ok","data":{"authorization_url":"https://checkout.paystack.com/x","access_code":"acc_1","reference":"ref_1"}}`))
		case "/transaction/verify/ref_1":
			_, _ = w.Write([]byte(`{"status":true,"message":"ok","data":{"id":99,"status":"success","reference":"ref_1","amount":1050025,"currency":"ngn","fees":1500}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"status":false,"message":"not found"}`))
		}
	}))
	defer srv.Close()

	p := NewPaystack(config.PaystackConfig{SecretKey: "sk_live", BaseURL: srv.URL}, srv.Client())

	sess, err := p.InitializeCheckout(context.Background(), payment.CheckoutRequest{
		Reference: "ref_1",
		Amount:    decimal.RequireFromString("10500.25"),
		Currency:  "NGN",
		Email:     "payer@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.paystack.com/x", sess.CheckoutURL)

	v, err := p.Verify(context.Background(), "ref_1", "")
	require.NoError(t, err)
	assert.True(t, v.Verified)
	assert.Equal(t, int64(1050025), v.AmountMinor)
	assert.Equal(t, "NGN", v.Currency)
	assert.Equal(t, int64(1500), v.FeeMinor)
	assert.Equal(t, "99", v.ProviderReference)

	_, err = p.Verify(context.Background(), "missing", "")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestStripe_VerifySignatureAndParse(t *testing.T) {
	s := NewStripe(config.StripeConfig{SecretKey: "sk_test", WebhookSecret: "whsec_test"})
	body := []byte(`{
		"id": "evt_1",
		"object": "event",
		"type": "checkout.session.completed",
		"data": {"object": {"id": "cs_1", "object": "checkout.session", "client_reference_id": "inv_ref", "payment_status": "paid"}}
	}`)

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   body,
		Secret:    "whsec_test",
		Timestamp: time.Now(),
	})
	header := http.Header{}
	header.Set(stripeSignatureHeader, signed.Header)
	require.NoError(t, s.VerifySignature(header, body))

	header.Set(stripeSignatureHeader, "t=1,v1=deadbeef")
	assert.ErrorIs(t, s.VerifySignature(header, body), payment.ErrInvalidSignature)

	ev, err := s.ParseEvent(body)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", ev.ID)
	assert.Equal(t, "inv_ref", ev.Reference)
	assert.True(t, ev.ChargeSucceeded)
}

func TestStripe_EmptyWebhookSecretRejectsEverything(t *testing.T) {
	s := NewStripe(config.StripeConfig{SecretKey: "sk_test"})
	body := []byte(`{"id":"evt_1","object":"event","type":"checkout.session.completed"}`)

	// A signature computed with the empty key must not pass
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   body,
		Secret:    "",
		Timestamp: time.Now(),
	})
	header := http.Header{}
	header.Set(stripeSignatureHeader, signed.Header)
	assert.ErrorIs(t, s.VerifySignature(header, body), payment.ErrInvalidSignature)
}

func TestXendit_CallbackToken(t *testing.T) {
	x := NewXendit(config.XenditConfig{SecretKey: "xnd_test", CallbackToken: "cb-token"})

	header := http.Header{}
	header.Set(xenditCallbackHeader, "cb-token")
	assert.NoError(t, x.VerifySignature(header, nil))

	header.Set(xenditCallbackHeader, "wrong")
	assert.ErrorIs(t, x.VerifySignature(header, nil), payment.ErrInvalidSignature)

	ev, err := x.ParseEvent([]byte(`{"id":"579c8d61f23fa4ca35e52da4","external_id":"inv_ref","status":"PAID","amount":50000}`))
	require.NoError(t, err)
	assert.Equal(t, "579c8d61f23fa4ca35e52da4:PAID", ev.ID)
	assert.Equal(t, "inv_ref", ev.Reference)
	assert.True(t, ev.ChargeSucceeded)
}
