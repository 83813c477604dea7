package render

import (
	"bytes"
	"html/template"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	companydomain "github.com/smallbiznis/invoiceflow/internal/company/domain"
)

const invoiceHTMLTemplate = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>Invoice {{.Invoice.InvoiceNumber}}</title>
  <style>
    :root {
      --font: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif;
    }
    * { box-sizing: border-box; }
    body {
      margin: 0;
      padding: 40px;
      font-family: var(--font);
      color: #1a1f36;
      background: #f7f9fc;
      -webkit-font-smoothing: antialiased;
    }
    .invoice-card {
      background: #ffffff;
      max-width: 760px;
      margin: 0 auto;
      padding: 60px;
      box-shadow: 0 2px 5px rgba(0,0,0,0.04);
      border-radius: 4px;
    }
    .header {
      display: flex;
      justify-content: space-between;
      margin-bottom: 40px;
    }
    .header-left h1 {
      margin: 0;
      font-size: 24px;
      font-weight: 700;
      color: #1a1f36;
    }
    .header-right {
      text-align: right;
      font-weight: 600;
      color: #8792a2;
      font-size: 16px;
    }
    
    .meta-grid {
      display: flex;
      justify-content: space-between;
      margin-bottom: 40px;
    }
    .col {
      flex: 1;
    }
    .label {
      font-size: 11px;
      text-transform: uppercase;
      color: #8792a2;
      margin-bottom: 6px;
      font-weight: 600;
      letter-spacing: 0.3px;
    }
    .value {
      font-size: 14px;
      line-height: 1.5;
      color: #1a1f36;
    }
    
    .amount-section {
      margin-bottom: 40px;
    }
    .amount-large {
      font-size: 32px;
      font-weight: 700;
      color: #1a1f36;
      margin-bottom: 4px;
    }
    .status {
      margin-top: 8px;
      font-size: 12px;
      text-transform: uppercase;
      letter-spacing: 0.3px;
    }
    .pre { white-space: pre-wrap; }
    
    table {
      width: 100%;
      border-collapse: collapse;
      margin-bottom: 30px;
    }
    th {
      text-align: left;
      text-transform: uppercase;
      font-size: 11px;
      color: #8792a2;
      border-bottom: 1px solid #e3e8ee;
      padding: 10px 0;
      font-weight: 600;
      letter-spacing: 0.3px;
    }
    td {
      padding: 16px 0;
      border-bottom: 1px solid #e3e8ee;
      font-size: 14px;
      color: #1a1f36;
      vertical-align: top;
    }
    .td-right { text-align: right; }
    
    .item-title { font-weight: 600; margin-bottom: 2px; }
    
    .totals {
      width: 100%;
      display: flex;
      flex-direction: column;
      align-items: flex-end;
    }
    .total-row {
      display: flex;
      justify-content: space-between;
      width: 250px;
      padding: 6px 0;
      font-size: 14px;
    }
    .total-label { color: #697386; }
    .total-value { color: #1a1f36; text-align: right; font-weight: 500; }
    .total-final {
      border-top: 1px solid #e3e8ee;
      margin-top: 10px;
      padding-top: 10px;
      font-weight: 700;
      font-size: 16px;
      color: #1a1f36;
    }
    
    .footer {
      margin-top: 60px;
      font-size: 12px;
      color: #8792a2;
      border-top: 1px solid #e3e8ee;
      padding-top: 20px;
    }

    .mt-4 { margin-top: 4px; }
  </style>
</head>
<body>
  <div class="invoice-card">
    <div class="header">
      <div class="header-left">
        <h1>Invoice</h1>
        <div class="label mt-4" style="margin-top: 12px;">Invoice number</div>
        <div class="value">{{.Invoice.InvoiceNumber}}</div>
      </div>
      <div class="header-right">
        {{.Issuer}}
        <div class="status">{{.Invoice.Status}}</div>
      </div>
    </div>

    <div class="meta-grid">
      <div class="col">
        <div class="label">Bill to</div>
        <div class="value">
          {{with .Company}}
          <strong>{{.CompanyName}}</strong><br>
          {{if .ContactPerson}}{{.ContactPerson}}<br>{{end}}
          {{if .Email}}{{.Email}}<br>{{end}}
          {{fullAddress .}}
          {{else}}-{{end}}
        </div>
      </div>
      <div class="col" style="flex: 0 0 200px;">
        <div class="label">Date due</div>
        <div class="value">{{formatDate .Invoice.DueDate}}</div>

        <div class="label" style="margin-top: 16px;">Date issued</div>
        <div class="value">{{formatDay .Invoice.InvoiceDate}}</div>
      </div>
    </div>

    <div class="amount-section">
      <div class="amount-large">{{formatMoney .Invoice.Total}}</div>
      <div class="value" style="color: #697386;">due {{formatDate .Invoice.DueDate}}</div>
    </div>

    <table>
      <thead>
        <tr>
          <th style="width: 50%;">Description</th>
          <th class="td-right">Qty</th>
          <th class="td-right">Unit Price</th>
          <th class="td-right">Amount</th>
        </tr>
      </thead>
      <tbody>
        {{range .Items}}
        <tr>
          <td><div class="item-title">{{.Description}}</div></td>
          <td class="td-right">{{formatQuantity .Quantity}}</td>
          <td class="td-right">{{formatMoney .UnitPrice}}</td>
          <td class="td-right" style="font-weight: 500;">{{formatMoney .Amount}}</td>
        </tr>
        {{end}}
      </tbody>
    </table>

    <div class="totals">
      <div class="total-row">
        <span class="total-label">Subtotal</span>
        <span class="total-value">{{formatMoney .Invoice.Subtotal}}</span>
      </div>
      <div class="total-row">
        <span class="total-label">Tax ({{formatQuantity .Invoice.TaxRate}}%)</span>
        <span class="total-value">{{formatMoney .Invoice.TaxAmount}}</span>
      </div>
      {{if not .Invoice.Discount.IsZero}}
      <div class="total-row">
        <span class="total-label">Discount</span>
        <span class="total-value">-{{formatMoney .Invoice.Discount}}</span>
      </div>
      {{end}}
      <div class="total-row total-final">
        <span class="total-label" style="color: #1a1f36;">Total</span>
        <span class="total-value">{{formatMoney .Invoice.Total}}</span>
      </div>
    </div>

    {{if or .Invoice.Notes .Invoice.Terms}}
    <div class="footer">
      {{if .Invoice.Notes}}<div class="label">Notes</div><div class="pre">{{.Invoice.Notes}}</div>{{end}}
      {{if .Invoice.Terms}}<div class="label" style="margin-top: 12px;">Terms</div><div class="pre">{{.Invoice.Terms}}</div>{{end}}
    </div>
    {{end}}
  </div>
</body>
</html>
`

// HTMLRenderer renders the invoice document with html/template, which
// escapes every free-text field as untrusted display data.
type HTMLRenderer struct {
	tpl *template.Template
}

func NewHTMLRenderer() *HTMLRenderer {
	funcs := template.FuncMap{
		"formatMoney":    formatMoney,
		"formatDate":     formatDate,
		"formatDay":      formatDay,
		"formatQuantity": formatQuantity,
		"fullAddress":    companydomain.FullAddress,
	}
	return &HTMLRenderer{
		tpl: template.Must(template.New("invoice").Funcs(funcs).Parse(invoiceHTMLTemplate)),
	}
}

func (r *HTMLRenderer) RenderHTML(input RenderInput) (string, error) {
	if strings.TrimSpace(input.Issuer) == "" {
		input.Issuer = defaultIssuer
	}

	var buf bytes.Buffer
	if err := r.tpl.Execute(&buf, input); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func formatMoney(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}

func formatDate(value *time.Time) string {
	if value == nil || value.IsZero() {
		return "-"
	}
	return value.UTC().Format("2006-01-02")
}

func formatDay(value time.Time) string {
	return formatDate(&value)
}

func formatQuantity(value decimal.Decimal) string {
	return value.String()
}
