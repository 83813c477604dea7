package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoiceflow/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListFilter struct {
	// OwnerID of zero lists every owner.
	OwnerID snowflake.ID
	Status  Status
}

type Repository interface {
	NextSequence(ctx context.Context, db *gorm.DB, year int) (int64, error)
	NumberTaken(ctx context.Context, db *gorm.DB, year int, number string) (bool, error)
	Insert(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	Update(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	UpdateStatus(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	UpdateAttachment(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)

	ReplaceItems(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID, items []InvoiceItem) error
	ListItems(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]InvoiceItem, error)

	Search(ctx context.Context, db *gorm.DB, ownerID snowflake.ID, term string, limit int) ([]InvoiceView, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter, page pagination.Pagination) ([]InvoiceView, error)
}
