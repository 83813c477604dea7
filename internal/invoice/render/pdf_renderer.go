package render

import (
	"strings"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	companydomain "github.com/smallbiznis/invoiceflow/internal/company/domain"
)

// PDFRenderer lays the invoice out with maroto. Text is drawn as plain
// glyphs, so free-text fields cannot inject markup.
type PDFRenderer struct{}

func NewPDFRenderer() *PDFRenderer {
	return &PDFRenderer{}
}

func (r *PDFRenderer) RenderPDF(input RenderInput) ([]byte, error) {
	issuer := strings.TrimSpace(input.Issuer)
	if issuer == "" {
		issuer = defaultIssuer
	}
	invoice := input.Invoice

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()
	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(8, "Invoice", props.Text{Size: 20, Style: fontstyle.Bold, Align: align.Left}),
		text.NewCol(4, issuer, props.Text{Size: 12, Style: fontstyle.Bold, Align: align.Right}),
	)

	m.AddRow(20,
		col.New(6).Add(
			text.New("Invoice number: "+invoice.InvoiceNumber, props.Text{Top: 0}),
			text.New("Date of issue: "+formatDay(invoice.InvoiceDate), props.Text{Top: 4}),
			text.New("Date due: "+formatDate(invoice.DueDate), props.Text{Top: 8}),
			text.New("Status: "+string(invoice.Status), props.Text{Top: 12}),
		),
		col.New(6).Add(billTo(input.Company)...),
	)

	m.AddRow(15,
		text.NewCol(12, formatMoney(invoice.Total)+" due "+formatDate(invoice.DueDate), props.Text{
			Size:  14,
			Style: fontstyle.Bold,
			Top:   5,
		}),
	)

	m.AddRow(10,
		text.NewCol(6, "Description", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Qty", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Unit price", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	for _, item := range input.Items {
		m.AddRow(8,
			text.NewCol(6, item.Description, props.Text{Size: 9}),
			text.NewCol(2, formatQuantity(item.Quantity), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, formatMoney(item.UnitPrice), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, formatMoney(item.Amount), props.Text{Size: 9, Align: align.Right}),
		)
	}

	totalRow := func(label, value string, style fontstyle.Type) {
		m.AddRow(8,
			col.New(7),
			text.NewCol(3, label, props.Text{Size: 9, Style: style}),
			text.NewCol(2, value, props.Text{Size: 9, Style: style, Align: align.Right}),
		)
	}
	totalRow("Subtotal", formatMoney(invoice.Subtotal), fontstyle.Normal)
	totalRow("Tax ("+formatQuantity(invoice.TaxRate)+"%)", formatMoney(invoice.TaxAmount), fontstyle.Normal)
	if !invoice.Discount.IsZero() {
		totalRow("Discount", "-"+formatMoney(invoice.Discount), fontstyle.Normal)
	}
	totalRow("Total", formatMoney(invoice.Total), fontstyle.Bold)

	if notes := strings.TrimSpace(invoice.Notes); notes != "" {
		m.AddRow(15, text.NewCol(12, "Notes: "+notes, props.Text{Size: 8, Top: 5}))
	}
	if terms := strings.TrimSpace(invoice.Terms); terms != "" {
		m.AddRow(15, text.NewCol(12, "Terms: "+terms, props.Text{Size: 8, Top: 5}))
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}

func billTo(company *companydomain.Company) []core.Component {
	if company == nil {
		return []core.Component{text.New("Bill to: -", props.Text{Style: fontstyle.Bold})}
	}
	return []core.Component{
		text.New("Bill to", props.Text{Style: fontstyle.Bold}),
		text.New(company.CompanyName, props.Text{Top: 4}),
		text.New(company.ContactPerson, props.Text{Top: 8}),
		text.New(companydomain.FullAddress(*company), props.Text{Top: 12}),
		text.New(company.Email, props.Text{Top: 16}),
	}
}
