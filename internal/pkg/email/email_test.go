package email

import (
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/config"
)

type captured struct {
	calls int
	to    []string
	msg   string
}

func (c *captured) sender(fail int) Sender {
	return func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		c.calls++
		if c.calls <= fail {
			return errors.New("connection refused")
		}
		c.to = to
		c.msg = string(msg)
		return nil
	}
}

var testSMTP = config.SMTPConfig{Host: "smtp.test", Port: 587, FromEmail: "billing@invoiceflow.app", FromName: "InvoiceFlow"}

func TestSendInvoice_WithAttachment(t *testing.T) {
	c := &captured{}
	svc, err := newEmailService(testSMTP, c.sender(0), 0)
	require.NoError(t, err)

	err = svc.SendInvoice("client@example.com", InvoiceEmail{
		Branding:   Branding{BusinessName: "Acme Studio", BrandColor: "#0f766e"},
		ClientName: "Globex",
		Number:     "INV-2025-0001",
		AmountDue:  "$1,250.00",
		DueDate:    "Jun 30, 2025",
		Link:       "https://app.invoiceflow.app/pay/abc",
		ReplyTo:    "owner@acme.test",
	}, &Attachment{FileName: "INV-2025-0001.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4")})
	require.NoError(t, err)

	assert.Equal(t, []string{"client@example.com"}, c.to)
	assert.Contains(t, c.msg, "Reply-To: owner@acme.test")
	assert.Contains(t, c.msg, "multipart/mixed")
	assert.Contains(t, c.msg, `filename="INV-2025-0001.pdf"`)
	assert.Contains(t, c.msg, "INV-2025-0001")
	assert.Contains(t, c.msg, "#0f766e")
}

func TestSendReminder_SplitsParagraphs(t *testing.T) {
	c := &captured{}
	svc, err := newEmailService(testSMTP, c.sender(0), 0)
	require.NoError(t, err)

	err = svc.SendReminder("client@example.com", ReminderEmail{
		Subject: "Invoice INV-1 is due tomorrow",
		Body:    "Hello Globex,\n\nA friendly reminder.",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(c.msg, "<p>"))
	assert.Contains(t, c.msg, "A friendly reminder.")
}

func TestDeliver_Retries(t *testing.T) {
	c := &captured{}
	svc, err := newEmailService(testSMTP, c.sender(2), 0)
	require.NoError(t, err)

	require.NoError(t, svc.SendPasswordReset("u@example.com", PasswordResetEmail{Link: "https://x", ExpiresAt: "soon"}))
	assert.Equal(t, 3, c.calls)

	c2 := &captured{}
	svc, _ = newEmailService(testSMTP, c2.sender(5), 0)
	assert.Error(t, svc.SendPasswordReset("u@example.com", PasswordResetEmail{}))
	assert.Equal(t, maxRetries, c2.calls)
}

func TestDeliver_SkipsWithoutHost(t *testing.T) {
	c := &captured{}
	svc, err := newEmailService(config.SMTPConfig{}, c.sender(0), 0)
	require.NoError(t, err)
	require.NoError(t, svc.SendVerification("u@example.com", VerificationEmail{Name: "Ada"}))
	assert.Zero(t, c.calls)
}
