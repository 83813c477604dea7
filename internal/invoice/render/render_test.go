package render

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	companydomain "github.com/smallbiznis/invoiceflow/internal/company/domain"
	invoicedomain "github.com/smallbiznis/invoiceflow/internal/invoice/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleInput() RenderInput {
	due := time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC)
	return RenderInput{
		Invoice: invoicedomain.Invoice{
			InvoiceNumber: "INV-2026-001",
			InvoiceDate:   time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
			DueDate:       &due,
			Status:        invoicedomain.StatusSent,
			Subtotal:      decimal.RequireFromString("125"),
			TaxRate:       decimal.RequireFromString("10"),
			TaxAmount:     decimal.RequireFromString("12.5"),
			Discount:      decimal.RequireFromString("5"),
			Total:         decimal.RequireFromString("132.5"),
			Notes:         `<script>alert("x")</script>`,
		},
		Items: []invoicedomain.InvoiceItem{
			{Description: "Consulting & design", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(50), Amount: decimal.NewFromInt(100)},
		},
		Company: &companydomain.Company{CompanyName: "Acme <Corp>", City: "Springfield", Country: "US"},
	}
}

func TestRenderHTMLEscapesFreeText(t *testing.T) {
	out, err := NewRenderer().RenderHTML(sampleInput())
	require.NoError(t, err)

	assert.Contains(t, out, "INV-2026-001")
	assert.Contains(t, out, "132.50")
	assert.Contains(t, out, "Springfield, US")
	assert.Contains(t, out, "Acme &lt;Corp&gt;")
	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, "Consulting &amp; design")
}

func TestRenderHTMLWithoutCompany(t *testing.T) {
	input := sampleInput()
	input.Company = nil
	input.Invoice.DueDate = nil

	out, err := NewRenderer().RenderHTML(input)
	require.NoError(t, err)
	assert.True(t, strings.Contains(out, "due -"))
}

func TestRenderPDF(t *testing.T) {
	out, err := NewRenderer().RenderPDF(sampleInput())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}
