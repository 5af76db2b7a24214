package email

import (
	"bytes"
	"embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/config"
)

//go:embed templates/*.html
var templateFS embed.FS

const maxRetries = 3

// Branding fills the shared header of every template
type Branding struct {
	BusinessName string
	BrandColor   string
}

type Attachment struct {
	FileName    string
	ContentType string
	Data        []byte
}

type VerificationEmail struct {
	Branding
	Name      string
	Link      string
	ExpiresAt string
}

type PasswordResetEmail struct {
	Branding
	Link      string
	ExpiresAt string
}

type InvitationEmail struct {
	Branding
	InviterName   string
	WorkspaceName string
	Role          string
	Link          string
	ExpiresAt     string
}

type InvoiceEmail struct {
	Branding
	ClientName string
	Number     string
	AmountDue  string
	DueDate    string
	Message    string
	Link       string
	ReplyTo    string
}

type EstimateEmail struct {
	Branding
	ClientName string
	Number     string
	Total      string
	ExpiryDate string
	Link       string
	ReplyTo    string
}

type ReminderEmail struct {
	Branding
	Subject string
	Body    string
	Link    string
	ReplyTo string
}

type ReceiptEmail struct {
	Branding
	ClientName string
	Number     string
	Amount     string
	Reference  string
	PaidAt     string
	Balance    string
}

type RecurringFailedEmail struct {
	Branding
	ScheduleName string
	ClientName   string
	Reason       string
	NextRetry    string
}

// EmailService defines the interface for sending emails
type EmailService interface {
	SendVerification(to string, data VerificationEmail) error
	SendPasswordReset(to string, data PasswordResetEmail) error
	SendInvitation(to string, data InvitationEmail) error
	SendInvoice(to string, data InvoiceEmail, pdf *Attachment) error
	SendEstimate(to string, data EstimateEmail) error
	SendReminder(to string, data ReminderEmail) error
	SendPaymentReceipt(to string, data ReceiptEmail) error
	SendRecurringFailed(to string, data RecurringFailedEmail) error
}

// Sender delivers a fully built message; smtp.SendMail in production
type Sender func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type emailServiceImpl struct {
	cfg       config.SMTPConfig
	templates *template.Template
	send      Sender
	backoff   time.Duration
}

// NewEmailService creates a new email service instance
func NewEmailService(cfg config.SMTPConfig) (EmailService, error) {
	return newEmailService(cfg, smtp.SendMail, time.Second)
}

func newEmailService(cfg config.SMTPConfig, send Sender, backoff time.Duration) (*emailServiceImpl, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse email templates: %w", err)
	}

	return &emailServiceImpl{
		cfg:       cfg,
		templates: tmpl,
		send:      send,
		backoff:   backoff,
	}, nil
}

func (s *emailServiceImpl) SendVerification(to string, data VerificationEmail) error {
	return s.render(to, "Verify your email address", "verify_email.html", data, "", nil)
}

func (s *emailServiceImpl) SendPasswordReset(to string, data PasswordResetEmail) error {
	return s.render(to, "Reset your password", "password_reset.html", data, "", nil)
}

func (s *emailServiceImpl) SendInvitation(to string, data InvitationEmail) error {
	subject := fmt.Sprintf("You're invited to join %s", data.WorkspaceName)
	return s.render(to, subject, "invitation.html", data, "", nil)
}

func (s *emailServiceImpl) SendInvoice(to string, data InvoiceEmail, pdf *Attachment) error {
	subject := fmt.Sprintf("Invoice %s from %s", data.Number, data.BusinessName)
	return s.render(to, subject, "invoice.html", data, data.ReplyTo, pdf)
}

func (s *emailServiceImpl) SendEstimate(to string, data EstimateEmail) error {
	subject := fmt.Sprintf("Estimate %s from %s", data.Number, data.BusinessName)
	return s.render(to, subject, "estimate.html", data, data.ReplyTo, nil)
}

// SendReminder wraps the rule's plain text body into paragraphs
func (s *emailServiceImpl) SendReminder(to string, data ReminderEmail) error {
	view := struct {
		Branding
		Paragraphs []string
		Link       string
	}{Branding: data.Branding, Link: data.Link}
	for _, p := range strings.Split(data.Body, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			view.Paragraphs = append(view.Paragraphs, p)
		}
	}
	return s.render(to, data.Subject, "reminder.html", view, data.ReplyTo, nil)
}

func (s *emailServiceImpl) SendPaymentReceipt(to string, data ReceiptEmail) error {
	subject := fmt.Sprintf("Payment received for invoice %s", data.Number)
	return s.render(to, subject, "receipt.html", data, "", nil)
}

func (s *emailServiceImpl) SendRecurringFailed(to string, data RecurringFailedEmail) error {
	subject := fmt.Sprintf("Recurring invoice %s failed", data.ScheduleName)
	return s.render(to, subject, "recurring_failed.html", data, "", nil)
}

func (s *emailServiceImpl) render(to, subject, name string, data any, replyTo string, attachment *Attachment) error {
	var body bytes.Buffer
	if err := s.templates.ExecuteTemplate(&body, name, data); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}
	msg, err := s.build(to, subject, body.String(), replyTo, attachment)
	if err != nil {
		return err
	}
	return s.deliver(to, subject, msg)
}

func (s *emailServiceImpl) build(to, subject, htmlBody, replyTo string, attachment *Attachment) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "From: %s <%s>\r\n", mime.QEncoding.Encode("utf-8", s.cfg.FromName), s.cfg.FromEmail)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	if replyTo != "" {
		fmt.Fprintf(&buf, "Reply-To: %s\r\n", replyTo)
	}
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	buf.WriteString("MIME-Version: 1.0\r\n")

	if attachment == nil {
		buf.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
		buf.WriteString(htmlBody)
		return buf.Bytes(), nil
	}

	mw := multipart.NewWriter(&buf)
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", mw.Boundary())

	htmlPart, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"text/html; charset=\"UTF-8\""},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create html part: %w", err)
	}
	htmlPart.Write([]byte(htmlBody))

	filePart, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {attachment.ContentType},
		"Content-Transfer-Encoding": {"base64"},
		"Content-Disposition":       {fmt.Sprintf("attachment; filename=%q", attachment.FileName)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create attachment part: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(attachment.Data)
	for len(encoded) > 76 {
		filePart.Write([]byte(encoded[:76] + "\r\n"))
		encoded = encoded[76:]
	}
	filePart.Write([]byte(encoded))

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart message: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *emailServiceImpl) deliver(to, subject string, message []byte) error {
	// Skip sending if SMTP is not configured
	if s.cfg.Host == "" {
		slog.Warn("SMTP not configured, skipping email send", "to", to, "subject", subject)
		return nil
	}

	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		err := s.send(addr, auth, s.cfg.FromEmail, []string{to}, message)
		if err == nil {
			slog.Info("Email sent successfully", "to", to, "subject", subject, "attempt", attempt)
			return nil
		}

		lastErr = err
		slog.Error("Failed to send email",
			"to", to,
			"subject", subject,
			"attempt", attempt,
			"max_retries", maxRetries,
			"error", err,
		)

		// Wait before retrying (exponential backoff: 1s, 2s, 4s)
		if attempt < maxRetries {
			time.Sleep(time.Duration(1<<(attempt-1)) * s.backoff)
		}
	}

	return fmt.Errorf("failed to send email after %d attempts: %w", maxRetries, lastErr)
}
