package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

type Event string

const (
	EventInvoiceCreated   Event = "invoice.created"
	EventInvoiceUpdated   Event = "invoice.updated"
	EventInvoiceDeleted   Event = "invoice.deleted"
	EventInvoiceSent      Event = "invoice.sent"
	EventInvoicePaid      Event = "invoice.paid"
	EventInvoiceOverdue   Event = "invoice.overdue"
	EventInvoiceVoided    Event = "invoice.voided"
	EventPaymentReceived  Event = "payment.received"
	EventEstimateApproved Event = "estimate.approved"
	EventExpenseApproved  Event = "expense.approved"
)

var AllEvents = []Event{
	EventInvoiceCreated,
	EventInvoiceUpdated,
	EventInvoiceDeleted,
	EventInvoiceSent,
	EventInvoicePaid,
	EventInvoiceOverdue,
	EventInvoiceVoided,
	EventPaymentReceived,
	EventEstimateApproved,
	EventExpenseApproved,
}

func (e Event) IsValid() bool {
	for _, known := range AllEvents {
		if e == known {
			return true
		}
	}
	return false
}

type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryFailed    DeliveryStatus = "failed"
	DeliveryRetrying  DeliveryStatus = "retrying"
)

const (
	SignatureHeader = "X-InvoiceFlow-Signature"
	EventHeader     = "X-InvoiceFlow-Event"
	DeliveryHeader  = "X-InvoiceFlow-Delivery"
	MaxAttempts     = 5
	DeliveryTimeout = 10 * time.Second
	RetryBase       = time.Minute
)

type Endpoint struct {
	ID          string
	WorkspaceID string
	URL         string
	Secret      string
	Events      []Event
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Subscribes reports whether the endpoint receives e; no events means all
func (ep *Endpoint) Subscribes(e Event) bool {
	if !ep.IsActive {
		return false
	}
	if len(ep.Events) == 0 {
		return true
	}
	for _, s := range ep.Events {
		if s == e {
			return true
		}
	}
	return false
}

type Delivery struct {
	ID            string
	EndpointID    string
	Event         Event
	Payload       []byte
	Status        DeliveryStatus
	Attempts      int
	ResponseCode  *int
	LastError     string
	NextAttemptAt time.Time
	DeliveredAt   *time.Time
	CreatedAt     time.Time

	// Join
	URL    string
	Secret string
}

// Sign returns the hex HMAC-SHA256 of payload under secret
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// RegisterFailure records a failed attempt and schedules the next one
// after RetryBase * 2^attempts, or fails the delivery once MaxAttempts is reached
func (d *Delivery) RegisterFailure(now time.Time, code *int, errMsg string) {
	d.Attempts++
	d.ResponseCode = code
	d.LastError = errMsg
	if d.Attempts >= MaxAttempts {
		d.Status = DeliveryFailed
		return
	}
	d.Status = DeliveryRetrying
	d.NextAttemptAt = now.Add(RetryBase * time.Duration(1<<d.Attempts))
}

func (d *Delivery) RegisterSuccess(now time.Time, code int) {
	d.Attempts++
	d.ResponseCode = &code
	d.LastError = ""
	d.Status = DeliveryDelivered
	d.DeliveredAt = &now
}
