package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoiceflow/internal/invoice/domain"
	"github.com/smallbiznis/invoiceflow/pkg/db"
	"github.com/smallbiznis/invoiceflow/pkg/db/pagination"
	"gorm.io/gorm"
)

const (
	invoiceColumns = `id, user_id, company_id, invoice_number, invoice_year, invoice_seq,
		invoice_date, due_date, status, subtotal, tax_rate, tax_amount, discount, total,
		notes, terms, attachment_path, created_at, updated_at`

	// numberingLockBase offsets the advisory lock key so it cannot collide
	// with other users of pg_advisory_xact_lock.
	numberingLockBase = 7_340_000
)

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

// NextSequence returns the next sequence for a numbering year. On
// PostgreSQL the year is serialized with a transaction-scoped advisory lock;
// elsewhere the unique index turns a race into ErrDuplicateNumber.
func (r *repo) NextSequence(ctx context.Context, conn *gorm.DB, year int) (int64, error) {
	if conn.Dialector.Name() == "postgres" {
		if err := conn.WithContext(ctx).Exec(`SELECT pg_advisory_xact_lock(?)`, numberingLockBase+year).Error; err != nil {
			return 0, err
		}
	}

	var next int64
	err := conn.WithContext(ctx).Raw(
		`SELECT COALESCE(MAX(invoice_seq), 0) + 1
		 FROM invoices
		 WHERE invoice_year = ?`,
		year,
	).Scan(&next).Error
	if err != nil {
		return 0, err
	}
	return next, nil
}

func (r *repo) NumberTaken(ctx context.Context, conn *gorm.DB, year int, number string) (bool, error) {
	var n int64
	err := conn.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM invoices WHERE invoice_year = ? AND invoice_number = ?`,
		year, number,
	).Scan(&n).Error
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, invoice *domain.Invoice) error {
	err := conn.WithContext(ctx).Exec(
		`INSERT INTO invoices (`+invoiceColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		invoice.ID,
		invoice.UserID,
		invoice.CompanyID,
		invoice.InvoiceNumber,
		invoice.InvoiceYear,
		invoice.InvoiceSeq,
		invoice.InvoiceDate,
		invoice.DueDate,
		invoice.Status,
		invoice.Subtotal,
		invoice.TaxRate,
		invoice.TaxAmount,
		invoice.Discount,
		invoice.Total,
		invoice.Notes,
		invoice.Terms,
		invoice.AttachmentPath,
		invoice.CreatedAt,
		invoice.UpdatedAt,
	).Error
	if db.IsDuplicateKeyErr(err) {
		return domain.ErrDuplicateNumber
	}
	return err
}

func (r *repo) Update(ctx context.Context, conn *gorm.DB, invoice *domain.Invoice) error {
	res := conn.WithContext(ctx).Exec(
		`UPDATE invoices
		 SET company_id = ?, invoice_number = ?, invoice_year = ?, invoice_seq = ?,
		     invoice_date = ?, due_date = ?,
		     subtotal = ?, tax_rate = ?, tax_amount = ?, discount = ?, total = ?,
		     notes = ?, terms = ?, updated_at = ?
		 WHERE id = ?`,
		invoice.CompanyID,
		invoice.InvoiceNumber,
		invoice.InvoiceYear,
		invoice.InvoiceSeq,
		invoice.InvoiceDate,
		invoice.DueDate,
		invoice.Subtotal,
		invoice.TaxRate,
		invoice.TaxAmount,
		invoice.Discount,
		invoice.Total,
		invoice.Notes,
		invoice.Terms,
		invoice.UpdatedAt,
		invoice.ID,
	)
	return affectedOne(res, true)
}

func (r *repo) UpdateStatus(ctx context.Context, conn *gorm.DB, invoice *domain.Invoice) error {
	res := conn.WithContext(ctx).Exec(
		`UPDATE invoices SET status = ?, updated_at = ? WHERE id = ?`,
		invoice.Status,
		invoice.UpdatedAt,
		invoice.ID,
	)
	return affectedOne(res, false)
}

func (r *repo) UpdateAttachment(ctx context.Context, conn *gorm.DB, invoice *domain.Invoice) error {
	res := conn.WithContext(ctx).Exec(
		`UPDATE invoices SET attachment_path = ?, updated_at = ? WHERE id = ?`,
		invoice.AttachmentPath,
		invoice.UpdatedAt,
		invoice.ID,
	)
	return affectedOne(res, false)
}

func (r *repo) Delete(ctx context.Context, conn *gorm.DB, id snowflake.ID) error {
	// Items go first so engines without cascading foreign keys stay consistent.
	if err := conn.WithContext(ctx).Exec(`DELETE FROM invoice_items WHERE invoice_id = ?`, id).Error; err != nil {
		return err
	}
	res := conn.WithContext(ctx).Exec(`DELETE FROM invoices WHERE id = ?`, id)
	return affectedOne(res, false)
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	var invoice domain.Invoice
	err := db.RetryRead(ctx, func(ctx context.Context) error {
		return conn.WithContext(ctx).Raw(
			`SELECT `+invoiceColumns+` FROM invoices WHERE id = ?`,
			id,
		).Scan(&invoice).Error
	})
	if err != nil {
		return nil, err
	}
	if invoice.ID == 0 {
		return nil, nil
	}
	return &invoice, nil
}

func (r *repo) ReplaceItems(ctx context.Context, conn *gorm.DB, invoiceID snowflake.ID, items []domain.InvoiceItem) error {
	if err := conn.WithContext(ctx).Exec(`DELETE FROM invoice_items WHERE invoice_id = ?`, invoiceID).Error; err != nil {
		return err
	}
	for _, item := range items {
		if err := conn.WithContext(ctx).Exec(
			`INSERT INTO invoice_items (id, invoice_id, description, quantity, unit_price, amount, sort_order)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			item.ID,
			invoiceID,
			item.Description,
			item.Quantity,
			item.UnitPrice,
			item.Amount,
			item.SortOrder,
		).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *repo) ListItems(ctx context.Context, conn *gorm.DB, invoiceID snowflake.ID) ([]domain.InvoiceItem, error) {
	var items []domain.InvoiceItem
	err := db.RetryRead(ctx, func(ctx context.Context) error {
		items = items[:0]
		return conn.WithContext(ctx).Raw(
			`SELECT id, invoice_id, description, quantity, unit_price, amount, sort_order
			 FROM invoice_items
			 WHERE invoice_id = ?
			 ORDER BY sort_order ASC, id ASC`,
			invoiceID,
		).Scan(&items).Error
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// Search matches term case-insensitively against the invoice number, notes
// and company name. The term is always a bound parameter with LIKE
// wildcards escaped, so it only ever matches literally.
func (r *repo) Search(ctx context.Context, conn *gorm.DB, ownerID snowflake.ID, term string, limit int) ([]domain.InvoiceView, error) {
	pattern := "%" + likeEscaper.Replace(strings.ToLower(term)) + "%"

	var rows []domain.InvoiceView
	err := db.RetryRead(ctx, func(ctx context.Context) error {
		rows = rows[:0]
		return conn.WithContext(ctx).Raw(
			`SELECT i.*, c.company_name
			 FROM invoices i
			 LEFT JOIN companies c ON c.id = i.company_id
			 WHERE i.user_id = ?
			   AND (LOWER(i.invoice_number) LIKE ? ESCAPE '!'
			        OR LOWER(i.notes) LIKE ? ESCAPE '!'
			        OR LOWER(COALESCE(c.company_name, '')) LIKE ? ESCAPE '!')
			 ORDER BY i.id DESC
			 LIMIT ?`,
			ownerID,
			pattern,
			pattern,
			pattern,
			limit,
		).Scan(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) List(ctx context.Context, conn *gorm.DB, filter domain.ListFilter, page pagination.Pagination) ([]domain.InvoiceView, error) {
	var rows []domain.InvoiceView
	err := db.RetryRead(ctx, func(ctx context.Context) error {
		rows = rows[:0]
		stmt := conn.WithContext(ctx).
			Table("invoices AS i").
			Select("i.*, c.company_name, u.username").
			Joins("LEFT JOIN companies c ON c.id = i.company_id").
			Joins("LEFT JOIN users u ON u.id = i.user_id")
		if filter.OwnerID != 0 {
			stmt = stmt.Where("i.user_id = ?", filter.OwnerID)
		}
		if filter.Status != "" {
			stmt = stmt.Where("i.status = ?", filter.Status)
		}
		stmt, err := pagination.Apply(stmt, "i.id", page)
		if err != nil {
			return err
		}
		return stmt.Scan(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func affectedOne(res *gorm.DB, numberChange bool) error {
	if res.Error != nil {
		if numberChange && db.IsDuplicateKeyErr(res.Error) {
			return domain.ErrDuplicateNumber
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
