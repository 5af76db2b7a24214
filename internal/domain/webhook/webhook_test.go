package webhook

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSign(t *testing.T) {
	assert.Equal(t, Sign("secret", []byte(`{"a":1}`)), Sign("secret", []byte(`{"a":1}`)))
	assert.NotEqual(t, Sign("secret", []byte(`{"a":1}`)), Sign("other", []byte(`{"a":1}`)))
	assert.Len(t, Sign("secret", []byte("x")), 64)
}

func TestRegisterFailureBackoff(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	d := Delivery{Status: DeliveryPending}

	d.RegisterFailure(now, nil, "timeout")
	assert.Equal(t, DeliveryRetrying, d.Status)
	assert.Equal(t, now.Add(2*time.Minute), d.NextAttemptAt)

	d.RegisterFailure(now, nil, "timeout")
	assert.Equal(t, now.Add(4*time.Minute), d.NextAttemptAt)

	for d.Status != DeliveryFailed {
		d.RegisterFailure(now, nil, "timeout")
	}
	assert.Equal(t, MaxAttempts, d.Attempts)
}

func TestRegisterSuccess(t *testing.T) {
	now := time.Now()
	d := Delivery{Status: DeliveryRetrying, Attempts: 2, LastError: "boom"}
	d.RegisterSuccess(now, 204)

	assert.Equal(t, DeliveryDelivered, d.Status)
	assert.Equal(t, 3, d.Attempts)
	assert.Equal(t, 204, *d.ResponseCode)
	assert.Empty(t, d.LastError)
}

func TestSubscribes(t *testing.T) {
	all := Endpoint{IsActive: true}
	assert.True(t, all.Subscribes(EventInvoicePaid))

	some := Endpoint{IsActive: true, Events: []Event{EventPaymentReceived}}
	assert.True(t, some.Subscribes(EventPaymentReceived))
	assert.False(t, some.Subscribes(EventInvoiceCreated))

	off := Endpoint{Events: []Event{EventPaymentReceived}}
	assert.False(t, off.Subscribes(EventPaymentReceived))
}
