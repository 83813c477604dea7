package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/invoiceflow/internal/authorization"
	invoicedomain "github.com/smallbiznis/invoiceflow/internal/invoice/domain"
)

const DefaultRecentLimit = 5

// Stats is the per-owner rollup. Sums over an empty set are zero.
type Stats struct {
	TotalInvoices     int64           `json:"total_invoices"`
	PaidInvoices      int64           `json:"paid_invoices"`
	PendingInvoices   int64           `json:"pending_invoices"`
	OverdueInvoices   int64           `json:"overdue_invoices"`
	TotalRevenue      decimal.Decimal `json:"total_revenue"`
	OutstandingAmount decimal.Decimal `json:"outstanding_amount"`
}

// SystemStats spans every owner.
type SystemStats struct {
	TotalUsers     int64           `json:"total_users"`
	TotalInvoices  int64           `json:"total_invoices"`
	TotalCompanies int64           `json:"total_companies"`
	TotalRevenue   decimal.Decimal `json:"total_revenue"`
	PendingRevenue decimal.Decimal `json:"pending_revenue"`
}

type Service interface {
	GetDashboardStats(ctx context.Context, actor authorization.Actor, userID snowflake.ID) (Stats, error)
	RecentInvoices(ctx context.Context, actor authorization.Actor, userID snowflake.ID, limit int) ([]invoicedomain.InvoiceView, error)
	GetSystemStats(ctx context.Context, actor authorization.Actor) (SystemStats, error)
}
