package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoiceflow/internal/company/domain"
	"github.com/smallbiznis/invoiceflow/pkg/db"
	"github.com/smallbiznis/invoiceflow/pkg/db/pagination"
	"gorm.io/gorm"
)

const companyColumns = `id, user_id, company_name, contact_person, email, phone,
	address, city, state, zip_code, country, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, company *domain.Company) error {
	return conn.WithContext(ctx).Exec(
		`INSERT INTO companies (`+companyColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		company.ID,
		company.UserID,
		company.CompanyName,
		company.ContactPerson,
		company.Email,
		company.Phone,
		company.Address,
		company.City,
		company.State,
		company.ZipCode,
		company.Country,
		company.CreatedAt,
		company.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*domain.Company, error) {
	var company domain.Company
	err := db.RetryRead(ctx, func(ctx context.Context) error {
		return conn.WithContext(ctx).Raw(
			`SELECT `+companyColumns+` FROM companies WHERE id = ?`,
			id,
		).Scan(&company).Error
	})
	if err != nil {
		return nil, err
	}
	if company.ID == 0 {
		return nil, nil
	}
	return &company, nil
}

func (r *repo) List(ctx context.Context, conn *gorm.DB, ownerID snowflake.ID, page pagination.Pagination) ([]domain.Company, error) {
	var companies []domain.Company
	err := db.RetryRead(ctx, func(ctx context.Context) error {
		companies = companies[:0]
		stmt, err := pagination.Apply(
			conn.WithContext(ctx).Model(&domain.Company{}).Where("user_id = ?", ownerID),
			"id",
			page,
		)
		if err != nil {
			return err
		}
		return stmt.Find(&companies).Error
	})
	if err != nil {
		return nil, err
	}
	return companies, nil
}

func (r *repo) Update(ctx context.Context, conn *gorm.DB, company *domain.Company) error {
	res := conn.WithContext(ctx).Exec(
		`UPDATE companies
		 SET company_name = ?, contact_person = ?, email = ?, phone = ?,
		     address = ?, city = ?, state = ?, zip_code = ?, country = ?, updated_at = ?
		 WHERE id = ?`,
		company.CompanyName,
		company.ContactPerson,
		company.Email,
		company.Phone,
		company.Address,
		company.City,
		company.State,
		company.ZipCode,
		company.Country,
		company.UpdatedAt,
		company.ID,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *repo) Delete(ctx context.Context, conn *gorm.DB, id snowflake.ID) error {
	res := conn.WithContext(ctx).Exec(`DELETE FROM companies WHERE id = ?`, id)
	if res.Error != nil {
		if db.IsForeignKeyErr(res.Error) {
			return domain.ErrInUse
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *repo) CountInvoices(ctx context.Context, conn *gorm.DB, id snowflake.ID) (int64, error) {
	var count int64
	err := conn.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM invoices WHERE company_id = ?`,
		id,
	).Scan(&count).Error
	return count, err
}
