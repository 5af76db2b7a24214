package testutil

import (
	"context"
	"sync"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/notification"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/webhook"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/email"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/pdf"
)

type DispatchedEvent struct {
	WorkspaceID string
	Event       webhook.Event
	Data        any
}

// Dispatcher records outbound webhook events
type Dispatcher struct {
	mu     sync.Mutex
	Events []DispatchedEvent
}

func (d *Dispatcher) Dispatch(_ context.Context, workspaceID string, event webhook.Event, data any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Events = append(d.Events, DispatchedEvent{WorkspaceID: workspaceID, Event: event, Data: data})
}

func (d *Dispatcher) Names() []webhook.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	names := make([]webhook.Event, 0, len(d.Events))
	for _, e := range d.Events {
		names = append(names, e.Event)
	}
	return names
}

// Notifier records sent notices
type Notifier struct {
	mu      sync.Mutex
	Notices []notification.Notice
}

func (n *Notifier) Notify(_ context.Context, notice notification.Notice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Notices = append(n.Notices, notice)
	return nil
}

func (n *Notifier) Kinds() []notification.Kind {
	n.mu.Lock()
	defer n.mu.Unlock()
	kinds := make([]notification.Kind, 0, len(n.Notices))
	for _, notice := range n.Notices {
		kinds = append(kinds, notice.Kind)
	}
	return kinds
}

// Invalidator records report cache invalidations
type Invalidator struct {
	mu         sync.Mutex
	Workspaces []string
}

func (i *Invalidator) InvalidateWorkspace(_ context.Context, workspaceID string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.Workspaces = append(i.Workspaces, workspaceID)
}

type SentEmail struct {
	To         string
	Kind       string
	Data       any
	Attachment *email.Attachment
}

// Mailer records every email instead of delivering it; Err fails every send
type Mailer struct {
	mu   sync.Mutex
	Sent []SentEmail
	Err  error
}

func (m *Mailer) record(to, kind string, data any, attachment *email.Attachment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, SentEmail{To: to, Kind: kind, Data: data, Attachment: attachment})
	return nil
}

// Last returns the most recent email of kind
func (m *Mailer) Last(kind string) (SentEmail, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.Sent) - 1; i >= 0; i-- {
		if m.Sent[i].Kind == kind {
			return m.Sent[i], true
		}
	}
	return SentEmail{}, false
}

func (m *Mailer) Count(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.Sent {
		if s.Kind == kind {
			n++
		}
	}
	return n
}

func (m *Mailer) SendVerification(to string, data email.VerificationEmail) error {
	return m.record(to, "verification", data, nil)
}

func (m *Mailer) SendPasswordReset(to string, data email.PasswordResetEmail) error {
	return m.record(to, "password_reset", data, nil)
}

func (m *Mailer) SendInvitation(to string, data email.InvitationEmail) error {
	return m.record(to, "invitation", data, nil)
}

func (m *Mailer) SendInvoice(to string, data email.InvoiceEmail, attachment *email.Attachment) error {
	return m.record(to, "invoice", data, attachment)
}

func (m *Mailer) SendEstimate(to string, data email.EstimateEmail) error {
	return m.record(to, "estimate", data, nil)
}

func (m *Mailer) SendReminder(to string, data email.ReminderEmail) error {
	return m.record(to, "reminder", data, nil)
}

func (m *Mailer) SendPaymentReceipt(to string, data email.ReceiptEmail) error {
	return m.record(to, "receipt", data, nil)
}

func (m *Mailer) SendRecurringFailed(to string, data email.RecurringFailedEmail) error {
	return m.record(to, "recurring_failed", data, nil)
}

// Renderer returns a fixed PDF body and keeps the documents it was asked to print
type Renderer struct {
	mu       sync.Mutex
	Disabled bool
	Docs     []pdf.Document
}

func (r *Renderer) Enabled() bool { return !r.Disabled }

func (r *Renderer) Render(_ context.Context, doc pdf.Document) ([]byte, error) {
	if r.Disabled {
		return nil, pdf.ErrPDFDisabled
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Docs = append(r.Docs, doc)
	return []byte("%PDF-1.4 " + doc.Number), nil
}
