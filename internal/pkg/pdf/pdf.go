// Package pdf renders invoices and estimates to PDF with headless Chrome.
package pdf

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/config"
)

//go:embed templates/*.html
var templateFS embed.FS

var documentTemplate = template.Must(template.ParseFS(templateFS, "templates/document.html"))

var ErrPDFDisabled = errors.New("pdf rendering is disabled")

const defaultTimeout = 30 * time.Second

// A4 in inches
const (
	paperWidth  = 8.27
	paperHeight = 11.69
	margin      = 0.4
)

type Line struct {
	Description string
	Quantity    string
	UnitPrice   string
	TaxRate     string
	Total       string
}

type Total struct {
	Label  string
	Amount string
	Strong bool
}

// Document is a print-ready invoice or estimate; every amount is already formatted
type Document struct {
	Title      string
	Number     string
	Status     string
	BrandColor string
	LogoURL    string

	BusinessName    string
	BusinessAddress string
	BusinessEmail   string
	BusinessPhone   string
	TaxID           string

	ClientName    string
	ClientEmail   string
	ClientAddress string

	IssueDate string
	DateLabel string
	Date      string

	Lines  []Line
	Totals []Total

	Notes string
	Terms string
}

type Renderer interface {
	Render(ctx context.Context, doc Document) ([]byte, error)
	Enabled() bool
}

// New returns a Chrome renderer, or a disabled one when cfg.Enabled is false
func New(cfg config.PDFConfig) Renderer {
	if !cfg.Enabled {
		return disabled{}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &ChromeRenderer{chromePath: cfg.ChromePath, timeout: timeout}
}

// RenderHTML executes the document template
func RenderHTML(doc Document) (string, error) {
	if doc.BrandColor == "" {
		doc.BrandColor = "#6366f1"
	}
	var buf bytes.Buffer
	if err := documentTemplate.Execute(&buf, doc); err != nil {
		return "", fmt.Errorf("execute document template: %w", err)
	}
	return buf.String(), nil
}

type disabled struct{}

func (disabled) Render(context.Context, Document) ([]byte, error) { return nil, ErrPDFDisabled }
func (disabled) Enabled() bool                                    { return false }

// ChromeRenderer launches a headless Chrome per render
type ChromeRenderer struct {
	chromePath string
	timeout    time.Duration
}

func (r *ChromeRenderer) Enabled() bool { return true }

// Render implements Renderer.
func (r *ChromeRenderer) Render(ctx context.Context, doc Document) ([]byte, error) {
	html, err := RenderHTML(doc)
	if err != nil {
		return nil, err
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("font-render-hinting", "none"),
	)
	if r.chromePath != "" {
		opts = append(opts, chromedp.ExecPath(r.chromePath))
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...any) {
		slog.Debug(fmt.Sprintf(format, args...))
	}))
	defer browserCancel()

	var pdf []byte
	err = chromedp.Run(browserCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, html).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			data, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(paperWidth).
				WithPaperHeight(paperHeight).
				WithMarginTop(margin).
				WithMarginBottom(margin).
				WithMarginLeft(margin).
				WithMarginRight(margin).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = data
			return nil
		}),
	)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("pdf rendering timed out after %v: %w", r.timeout, err)
		}
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return pdf, nil
}
