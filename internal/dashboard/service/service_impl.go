package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/invoiceflow/internal/authorization"
	dashboard "github.com/smallbiznis/invoiceflow/internal/dashboard/domain"
	invoicedomain "github.com/smallbiznis/invoiceflow/internal/invoice/domain"
	"github.com/smallbiznis/invoiceflow/pkg/db"
	"github.com/smallbiznis/invoiceflow/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Guard       *authorization.Guard
	InvoiceRepo invoicedomain.Repository
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	guard       *authorization.Guard
	invoiceRepo invoicedomain.Repository
}

func NewService(p Params) dashboard.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("dashboard.service"),
		guard:       p.Guard,
		invoiceRepo: p.InvoiceRepo,
	}
}

type statsRow struct {
	TotalInvoices     int64           `gorm:"column:total_invoices"`
	PaidInvoices      int64           `gorm:"column:paid_invoices"`
	PendingInvoices   int64           `gorm:"column:pending_invoices"`
	OverdueInvoices   int64           `gorm:"column:overdue_invoices"`
	TotalRevenue      decimal.Decimal `gorm:"column:total_revenue"`
	OutstandingAmount decimal.Decimal `gorm:"column:outstanding_amount"`
}

// GetDashboardStats is a point-in-time read over one owner's invoices.
// Pending counts sent invoices; outstanding sums sent and overdue totals.
func (s *Service) GetDashboardStats(ctx context.Context, actor authorization.Actor, userID snowflake.ID) (dashboard.Stats, error) {
	if err := s.guard.Check(actor, authorization.ActionRead, authorization.Resource{Object: authorization.ObjectInvoice, OwnerID: userID}); err != nil {
		return dashboard.Stats{}, err
	}

	query := `
		SELECT COUNT(*) AS total_invoices,
		       COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS paid_invoices,
		       COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS pending_invoices,
		       COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS overdue_invoices,
		       COALESCE(SUM(CASE WHEN status = ? THEN total ELSE 0 END), 0) AS total_revenue,
		       COALESCE(SUM(CASE WHEN status IN (?, ?) THEN total ELSE 0 END), 0) AS outstanding_amount
		FROM invoices
		WHERE user_id = ?`

	var row statsRow
	err := db.RetryRead(ctx, func(ctx context.Context) error {
		return s.db.WithContext(ctx).Raw(
			query,
			invoicedomain.StatusPaid,
			invoicedomain.StatusSent,
			invoicedomain.StatusOverdue,
			invoicedomain.StatusPaid,
			invoicedomain.StatusSent,
			invoicedomain.StatusOverdue,
			userID,
		).Scan(&row).Error
	})
	if err != nil {
		return dashboard.Stats{}, err
	}

	return dashboard.Stats{
		TotalInvoices:     row.TotalInvoices,
		PaidInvoices:      row.PaidInvoices,
		PendingInvoices:   row.PendingInvoices,
		OverdueInvoices:   row.OverdueInvoices,
		TotalRevenue:      money(row.TotalRevenue),
		OutstandingAmount: money(row.OutstandingAmount),
	}, nil
}

// RecentInvoices returns the owner's latest invoices, newest first.
func (s *Service) RecentInvoices(ctx context.Context, actor authorization.Actor, userID snowflake.ID, limit int) ([]invoicedomain.InvoiceView, error) {
	if err := s.guard.Check(actor, authorization.ActionRead, authorization.Resource{Object: authorization.ObjectInvoice, OwnerID: userID}); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = dashboard.DefaultRecentLimit
	}

	page := pagination.Pagination{PageSize: limit}
	rows, err := s.invoiceRepo.List(ctx, s.db, invoicedomain.ListFilter{OwnerID: userID}, page)
	if err != nil {
		return nil, err
	}
	rows, _ = pagination.BuildPageInfo(rows, page.Limit(), func(v invoicedomain.InvoiceView) snowflake.ID { return v.ID })
	if rows == nil {
		rows = []invoicedomain.InvoiceView{}
	}
	return rows, nil
}

type systemStatsRow struct {
	TotalUsers     int64           `gorm:"column:total_users"`
	TotalInvoices  int64           `gorm:"column:total_invoices"`
	TotalCompanies int64           `gorm:"column:total_companies"`
	TotalRevenue   decimal.Decimal `gorm:"column:total_revenue"`
	PendingRevenue decimal.Decimal `gorm:"column:pending_revenue"`
}

// GetSystemStats is restricted to administrators. Pending revenue sums
// draft and sent totals.
func (s *Service) GetSystemStats(ctx context.Context, actor authorization.Actor) (dashboard.SystemStats, error) {
	if err := s.guard.Check(actor, authorization.ActionAdmin, authorization.Resource{Object: authorization.ObjectSystem}); err != nil {
		return dashboard.SystemStats{}, err
	}

	query := `
		SELECT (SELECT COUNT(*) FROM users) AS total_users,
		       (SELECT COUNT(*) FROM invoices) AS total_invoices,
		       (SELECT COUNT(*) FROM companies) AS total_companies,
		       (SELECT COALESCE(SUM(total), 0) FROM invoices WHERE status = ?) AS total_revenue,
		       (SELECT COALESCE(SUM(total), 0) FROM invoices WHERE status IN (?, ?)) AS pending_revenue`

	var row systemStatsRow
	err := db.RetryRead(ctx, func(ctx context.Context) error {
		return s.db.WithContext(ctx).Raw(
			query,
			invoicedomain.StatusPaid,
			invoicedomain.StatusDraft,
			invoicedomain.StatusSent,
		).Scan(&row).Error
	})
	if err != nil {
		return dashboard.SystemStats{}, err
	}

	return dashboard.SystemStats{
		TotalUsers:     row.TotalUsers,
		TotalInvoices:  row.TotalInvoices,
		TotalCompanies: row.TotalCompanies,
		TotalRevenue:   money(row.TotalRevenue),
		PendingRevenue: money(row.PendingRevenue),
	}, nil
}

func money(value decimal.Decimal) decimal.Decimal {
	return value.Round(2)
}
