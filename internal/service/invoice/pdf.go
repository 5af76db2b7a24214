package invoice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/invoice"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/workspace"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/money"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/pdf"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/storage"
)

const logoURLExpiry = time.Hour

// render prints inv and keeps the latest copy in storage
func (s *InvoiceServiceImpl) render(ctx context.Context, ws workspace.Workspace, inv *invoice.Invoice) ([]byte, string, error) {
	if !s.renderer.Enabled() {
		return nil, "", invoice.ErrPDFUnavailable
	}

	logoURL := ""
	if ws.LogoKey != nil {
		if url, err := s.fileService.GetFileURL(ctx, *ws.LogoKey, logoURLExpiry); err == nil {
			logoURL = url
		}
	}

	data, err := s.renderer.Render(ctx, document(ws, *inv, logoURL))
	if err != nil {
		if errors.Is(err, pdf.ErrPDFDisabled) {
			return nil, "", invoice.ErrPDFUnavailable
		}
		return nil, "", fmt.Errorf("failed to render invoice pdf: %w", err)
	}

	key := storage.DocumentPDFKey("invoices", ws.ID, inv.InvoiceNumber)
	if err := s.fileService.StorePDF(ctx, key, data); err != nil {
		slog.Warn("Failed to store invoice PDF", "invoice_id", inv.ID, "error", err)
	} else if inv.PDFKey == nil || *inv.PDFKey != key {
		inv.PDFKey = &key
		if err := s.InvoiceRepository.Update(ctx, *inv); err != nil {
			slog.Warn("Failed to save invoice PDF key", "invoice_id", inv.ID, "error", err)
		}
	}
	return data, inv.InvoiceNumber + ".pdf", nil
}

// document lays out an invoice for the PDF template
func document(ws workspace.Workspace, inv invoice.Invoice, logoURL string) pdf.Document {
	doc := pdf.Document{
		Title:           "INVOICE",
		Number:          inv.InvoiceNumber,
		Status:          money.Label(string(inv.Status)),
		BrandColor:      ws.PrimaryColor,
		LogoURL:         logoURL,
		BusinessName:    ws.DisplayName(),
		BusinessAddress: ws.BusinessAddress,
		BusinessEmail:   ws.BusinessEmail,
		BusinessPhone:   ws.BusinessPhone,
		TaxID:           ws.TaxIDNumber,
		ClientName:      inv.ClientName,
		ClientEmail:     inv.ClientEmail,
		IssueDate:       inv.IssueDate.Format(dueDateLayout),
		DateLabel:       "Due date",
		Date:            inv.DueDate.Format(dueDateLayout),
		Notes:           inv.ClientMemo,
		Terms:           inv.TermsConditions,
	}

	for _, it := range inv.Items {
		doc.Lines = append(doc.Lines, pdf.Line{
			Description: it.Description,
			Quantity:    it.Quantity.String(),
			UnitPrice:   money.Format(it.UnitPrice, inv.Currency),
			TaxRate:     it.TaxRate.String() + "%",
			Total:       money.Format(it.Total, inv.Currency),
		})
	}

	add := func(label string, amount string, strong bool) {
		doc.Totals = append(doc.Totals, pdf.Total{Label: label, Amount: amount, Strong: strong})
	}
	add("Subtotal", money.Format(inv.Subtotal, inv.Currency), false)
	if inv.TaxTotal.IsPositive() {
		label := "Tax"
		if inv.TaxMode == invoice.TaxInclusive {
			label = "Tax (included)"
		}
		add(label, money.Format(inv.TaxTotal, inv.Currency), false)
	}
	if inv.GlobalDiscountAmount.IsPositive() {
		add("Discount", "-"+money.Format(inv.GlobalDiscountAmount, inv.Currency), false)
	}
	add("Total", money.Format(inv.TotalAmount, inv.Currency), true)
	if inv.AmountPaid.IsPositive() {
		add("Paid", money.Format(inv.AmountPaid, inv.Currency), false)
		add("Amount due", money.Format(inv.AmountDue, inv.Currency), true)
	}

	if inv.VoidReason != "" {
		doc.Notes = strings.TrimSpace(doc.Notes + "\n\nVoided: " + inv.VoidReason)
	}
	return doc
}
