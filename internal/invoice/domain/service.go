package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/invoiceflow/internal/authorization"
	"github.com/smallbiznis/invoiceflow/pkg/db/pagination"
)

// InvoiceFields is the whitelist of caller-editable invoice header fields.
type InvoiceFields struct {
	CompanyID   *snowflake.ID
	InvoiceDate time.Time
	DueDate     *time.Time
	TaxRate     decimal.Decimal
	Discount    decimal.Decimal
	Notes       string
	Terms       string
}

type CreateInvoiceRequest struct {
	InvoiceFields
	Items []ItemInput
}

type UpdateInvoiceRequest struct {
	InvoiceFields
	Items []ItemInput
}

type SearchRequest struct {
	// OwnerID defaults to the actor.
	OwnerID snowflake.ID
	Term    string
}

type ListInvoiceRequest struct {
	pagination.Pagination
	Status Status
	// OwnerID restricts ListAll to one owner; ignored by List.
	OwnerID snowflake.ID
}

type ListInvoiceResponse struct {
	pagination.PageInfo
	Invoices []InvoiceView `json:"invoices"`
}

type Service interface {
	Create(ctx context.Context, actor authorization.Actor, req CreateInvoiceRequest) (*InvoiceDetail, error)
	Update(ctx context.Context, actor authorization.Actor, id snowflake.ID, req UpdateInvoiceRequest) (*InvoiceDetail, error)
	SetStatus(ctx context.Context, actor authorization.Actor, id snowflake.ID, status Status) (*Invoice, error)
	Delete(ctx context.Context, actor authorization.Actor, id snowflake.ID) error
	Get(ctx context.Context, actor authorization.Actor, id snowflake.ID) (*InvoiceDetail, error)
	Search(ctx context.Context, actor authorization.Actor, req SearchRequest) ([]InvoiceView, error)
	List(ctx context.Context, actor authorization.Actor, req ListInvoiceRequest) (ListInvoiceResponse, error)
	ListAll(ctx context.Context, actor authorization.Actor, req ListInvoiceRequest) (ListInvoiceResponse, error)
	SetAttachment(ctx context.Context, actor authorization.Actor, id snowflake.ID, filename string) (*Invoice, error)
	RenderHTML(ctx context.Context, actor authorization.Actor, id snowflake.ID) (string, error)
	RenderPDF(ctx context.Context, actor authorization.Actor, id snowflake.ID) ([]byte, error)
}

var (
	ErrInvalidQuantity    = errors.New("invalid_quantity")
	ErrInvalidUnitPrice   = errors.New("invalid_unit_price")
	ErrInvalidDescription = errors.New("invalid_description")
	ErrInvalidTaxRate     = errors.New("invalid_tax_rate")
	ErrInvalidDiscount    = errors.New("invalid_discount")
	ErrInvalidTotal       = errors.New("invalid_total")
	ErrInvalidStatus      = errors.New("invalid_status")
	ErrInvalidInvoiceDate = errors.New("invalid_invoice_date")
	ErrInvalidDueDate     = errors.New("invalid_due_date")
	ErrInvalidCompanyID   = errors.New("invalid_company_id")
	ErrInvalidNotes       = errors.New("invalid_notes")
	ErrInvalidTerms       = errors.New("invalid_terms")
	ErrInvalidFilename    = errors.New("invalid_filename")
	ErrInvalidSearch      = errors.New("invalid_search")
	ErrInvalidID          = errors.New("invalid_id")

	ErrNotFound             = errors.New("not_found")
	ErrDuplicateNumber      = errors.New("invoice_number_taken")
	ErrTransitionNotAllowed = errors.New("status_transition_not_allowed")
)

// IsValidation reports whether err is a caller input problem rather than a
// storage or authorization failure.
func IsValidation(err error) bool {
	var itemErr *ItemError
	if errors.As(err, &itemErr) {
		return true
	}
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

var validationErrors = []error{
	ErrInvalidQuantity,
	ErrInvalidUnitPrice,
	ErrInvalidDescription,
	ErrInvalidTaxRate,
	ErrInvalidDiscount,
	ErrInvalidTotal,
	ErrInvalidStatus,
	ErrInvalidInvoiceDate,
	ErrInvalidDueDate,
	ErrInvalidCompanyID,
	ErrInvalidNotes,
	ErrInvalidTerms,
	ErrInvalidFilename,
	ErrInvalidSearch,
	ErrInvalidID,
}
