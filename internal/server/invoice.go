package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	invoicedomain "github.com/smallbiznis/invoiceflow/internal/invoice/domain"
	"github.com/smallbiznis/invoiceflow/pkg/db/pagination"
)

type invoiceItemRequest struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type invoiceRequest struct {
	CompanyID   string               `json:"company_id"`
	InvoiceDate string               `json:"invoice_date" binding:"required"`
	DueDate     string               `json:"due_date"`
	TaxRate     decimal.Decimal      `json:"tax_rate"`
	Discount    decimal.Decimal      `json:"discount"`
	Notes       string               `json:"notes"`
	Terms       string               `json:"terms"`
	Items       []invoiceItemRequest `json:"items"`
}

type invoiceStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type invoiceAttachmentRequest struct {
	Filename string `json:"filename" binding:"required"`
}

type listInvoicesQuery struct {
	pagination.Pagination
	Status string `form:"status"`
}

// toDomain converts wire fields; malformed ids and dates surface as the
// same validation errors the invoice service uses.
func (r invoiceRequest) toDomain() (invoicedomain.InvoiceFields, []invoicedomain.ItemInput, error) {
	companyID, err := parseOptionalSnowflakeID(r.CompanyID)
	if err != nil {
		return invoicedomain.InvoiceFields{}, nil, invoicedomain.ErrInvalidCompanyID
	}
	invoiceDate, err := parseDate(r.InvoiceDate)
	if err != nil {
		return invoicedomain.InvoiceFields{}, nil, invoicedomain.ErrInvalidInvoiceDate
	}
	dueDate, err := parseOptionalDate(r.DueDate)
	if err != nil {
		return invoicedomain.InvoiceFields{}, nil, invoicedomain.ErrInvalidDueDate
	}

	items := make([]invoicedomain.ItemInput, 0, len(r.Items))
	for _, item := range r.Items {
		items = append(items, invoicedomain.ItemInput{
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}

	return invoicedomain.InvoiceFields{
		CompanyID:   companyID,
		InvoiceDate: invoiceDate,
		DueDate:     dueDate,
		TaxRate:     r.TaxRate,
		Discount:    r.Discount,
		Notes:       r.Notes,
		Terms:       r.Terms,
	}, items, nil
}

func (s *Server) CreateInvoice(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	var req invoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}
	fields, items, err := req.toDomain()
	if err != nil {
		AbortWithError(c, unprocessable(err))
		return
	}

	detail, err := s.invoiceSvc.Create(c.Request.Context(), actor, invoicedomain.CreateInvoiceRequest{
		InvoiceFields: fields,
		Items:         items,
	})
	if err != nil {
		AbortWithError(c, unprocessable(err))
		return
	}

	c.JSON(http.StatusCreated, gin.H{"invoice": detail.Invoice, "items": detail.Items})
}

// ListInvoices searches when a search parameter is present, otherwise pages
// through the caller's invoices with an optional status filter.
func (s *Server) ListInvoices(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	if term, searching := c.GetQuery("search"); searching {
		invoices, err := s.invoiceSvc.Search(c.Request.Context(), actor, invoicedomain.SearchRequest{Term: term})
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"invoices": invoices})
		return
	}

	var query listInvoicesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}
	status, err := parseStatusFilter(query.Status)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.invoiceSvc.List(c.Request.Context(), actor, invoicedomain.ListInvoiceRequest{
		Pagination: query.Pagination,
		Status:     status,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetInvoice(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	detail, err := s.invoiceSvc.Get(c.Request.Context(), actor, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

func (s *Server) UpdateInvoice(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req invoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}
	fields, items, err := req.toDomain()
	if err != nil {
		AbortWithError(c, unprocessable(err))
		return
	}

	detail, err := s.invoiceSvc.Update(c.Request.Context(), actor, id, invoicedomain.UpdateInvoiceRequest{
		InvoiceFields: fields,
		Items:         items,
	})
	if err != nil {
		AbortWithError(c, unprocessable(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"invoice": detail.Invoice, "items": detail.Items})
}

func (s *Server) SetInvoiceStatus(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req invoiceStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}

	invoice, err := s.invoiceSvc.SetStatus(c.Request.Context(), actor, id, invoicedomain.Status(req.Status))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"invoice": invoice})
}

func (s *Server) SetInvoiceAttachment(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req invoiceAttachmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindingError(err))
		return
	}

	invoice, err := s.invoiceSvc.SetAttachment(c.Request.Context(), actor, id, req.Filename)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"invoice": invoice})
}

func (s *Server) InvoicePDF(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	pdf, err := s.invoiceSvc.RenderPDF(c.Request.Context(), actor, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="invoice-%s.pdf"`, id))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

func (s *Server) InvoiceHTML(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	html, err := s.invoiceSvc.RenderHTML(c.Request.Context(), actor, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("X-Content-Type-Options", "nosniff")
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

func (s *Server) DeleteInvoice(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := s.invoiceSvc.Delete(c.Request.Context(), actor, id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func parseStatusFilter(value string) (invoicedomain.Status, error) {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	if trimmed == "" {
		return "", nil
	}
	status := invoicedomain.Status(trimmed)
	if !status.Valid() {
		return "", invoicedomain.ErrInvalidStatus
	}
	return status, nil
}
