package pdf

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/config"
)

func TestRenderHTML(t *testing.T) {
	html, err := RenderHTML(Document{
		Title:        "INVOICE",
		Number:       "INV-2025-0001",
		BusinessName: "Acme <Studio>",
		ClientName:   "Globex",
		IssueDate:    "Mar 1, 2025",
		DateLabel:    "Due date",
		Date:         "Mar 31, 2025",
		Lines: []Line{
			{Description: "Design", Quantity: "2", UnitPrice: "$50.00", TaxRate: "10%", Total: "$110.00"},
		},
		Totals: []Total{{Label: "Total", Amount: "$110.00", Strong: true}},
	})
	require.NoError(t, err)

	assert.Contains(t, html, "INV-2025-0001")
	assert.Contains(t, html, "Acme &lt;Studio&gt;", "business name is escaped")
	assert.Contains(t, html, "#6366f1", "default brand color")
	assert.Contains(t, html, `class="strong"`)
	assert.Contains(t, html, "$110.00")
}

func TestNew_Disabled(t *testing.T) {
	r := New(config.PDFConfig{Enabled: false})
	assert.False(t, r.Enabled())

	_, err := r.Render(context.Background(), Document{})
	assert.ErrorIs(t, err, ErrPDFDisabled)
}
