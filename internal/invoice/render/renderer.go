// Package render turns a computed invoice aggregate into a document.
package render

import (
	companydomain "github.com/smallbiznis/invoiceflow/internal/company/domain"
	invoicedomain "github.com/smallbiznis/invoiceflow/internal/invoice/domain"
)

const defaultIssuer = "InvoiceFlow"

// RenderInput is read-only. Notes, terms, descriptions and company fields
// are untrusted display data and each renderer must escape them.
type RenderInput struct {
	Issuer  string
	Invoice invoicedomain.Invoice
	Items   []invoicedomain.InvoiceItem
	Company *companydomain.Company
}

type Renderer interface {
	RenderHTML(input RenderInput) (string, error)
	RenderPDF(input RenderInput) ([]byte, error)
}

type documentRenderer struct {
	*HTMLRenderer
	*PDFRenderer
}

func NewRenderer() Renderer {
	return &documentRenderer{
		HTMLRenderer: NewHTMLRenderer(),
		PDFRenderer:  NewPDFRenderer(),
	}
}
