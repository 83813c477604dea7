// Package domain contains the invoice aggregate and its rules.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	companydomain "github.com/smallbiznis/invoiceflow/internal/company/domain"
)

// Status is the invoice lifecycle state.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSent      Status = "sent"
	StatusPaid      Status = "paid"
	StatusOverdue   Status = "overdue"
	StatusCancelled Status = "cancelled"
)

var statuses = []Status{StatusDraft, StatusSent, StatusPaid, StatusOverdue, StatusCancelled}

func (s Status) Valid() bool {
	for _, candidate := range statuses {
		if s == candidate {
			return true
		}
	}
	return false
}

// Statuses returns the closed status set in lifecycle order.
func Statuses() []Status {
	out := make([]Status, len(statuses))
	copy(out, statuses)
	return out
}

type Invoice struct {
	ID             snowflake.ID    `gorm:"primaryKey;autoIncrement:false" json:"id"`
	UserID         snowflake.ID    `gorm:"column:user_id;not null;index" json:"user_id"`
	CompanyID      *snowflake.ID   `gorm:"column:company_id;index" json:"company_id,omitempty"`
	InvoiceNumber  string          `gorm:"column:invoice_number;type:varchar(64);not null;uniqueIndex:ux_invoices_year_number" json:"invoice_number"`
	InvoiceYear    int             `gorm:"column:invoice_year;not null;uniqueIndex:ux_invoices_year_number" json:"-"`
	InvoiceSeq     int64           `gorm:"column:invoice_seq;not null;default:0" json:"-"`
	InvoiceDate    time.Time       `gorm:"column:invoice_date;not null" json:"invoice_date"`
	DueDate        *time.Time      `gorm:"column:due_date" json:"due_date,omitempty"`
	Status         Status          `gorm:"type:varchar(16);not null;index" json:"status"`
	Subtotal       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"subtotal"`
	TaxRate        decimal.Decimal `gorm:"column:tax_rate;type:numeric(5,2);not null" json:"tax_rate"`
	TaxAmount      decimal.Decimal `gorm:"column:tax_amount;type:numeric(12,2);not null" json:"tax_amount"`
	Discount       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"discount"`
	Total          decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total"`
	Notes          string          `gorm:"type:text;not null;default:''" json:"notes"`
	Terms          string          `gorm:"type:text;not null;default:''" json:"terms"`
	AttachmentPath string          `gorm:"column:attachment_path;type:varchar(512);not null;default:''" json:"attachment_path,omitempty"`
	CreatedAt      time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"not null" json:"updated_at"`
}

func (Invoice) TableName() string { return "invoices" }

type InvoiceItem struct {
	ID          snowflake.ID    `gorm:"primaryKey;autoIncrement:false" json:"id"`
	InvoiceID   snowflake.ID    `gorm:"column:invoice_id;not null;index" json:"invoice_id"`
	Description string          `gorm:"type:text;not null" json:"description"`
	Quantity    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null" json:"unit_price"`
	Amount      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	SortOrder   int             `gorm:"column:sort_order;not null;default:0" json:"sort_order"`
}

func (InvoiceItem) TableName() string { return "invoice_items" }

// InvoiceView is an invoice row joined with display names for listings.
type InvoiceView struct {
	Invoice
	CompanyName string `gorm:"column:company_name" json:"company_name,omitempty"`
	Username    string `gorm:"column:username" json:"username,omitempty"`
}

// InvoiceDetail is the read-only aggregate handed to callers and renderers.
type InvoiceDetail struct {
	Invoice Invoice                `json:"invoice"`
	Items   []InvoiceItem          `json:"items"`
	Company *companydomain.Company `json:"company,omitempty"`
}
