package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoiceflow/internal/authorization"
	"github.com/smallbiznis/invoiceflow/pkg/db/pagination"
)

type ListCompanyRequest struct {
	pagination.Pagination
}

type ListCompanyResponse struct {
	pagination.PageInfo
	Companies []Company `json:"companies"`
}

type Service interface {
	Create(ctx context.Context, actor authorization.Actor, fields CompanyFields) (*Company, error)
	Get(ctx context.Context, actor authorization.Actor, id snowflake.ID) (*Company, error)
	List(ctx context.Context, actor authorization.Actor, req ListCompanyRequest) (ListCompanyResponse, error)
	Update(ctx context.Context, actor authorization.Actor, id snowflake.ID, fields CompanyFields) (*Company, error)
	Delete(ctx context.Context, actor authorization.Actor, id snowflake.ID) error
}

var (
	ErrInvalidCompanyName   = errors.New("invalid_company_name")
	ErrInvalidEmail         = errors.New("invalid_email")
	ErrInvalidContactPerson = errors.New("invalid_contact_person")
	ErrInvalidPhone         = errors.New("invalid_phone")
	ErrInvalidAddress       = errors.New("invalid_address")
	ErrInvalidID            = errors.New("invalid_id")
	ErrNotFound             = errors.New("not_found")
	ErrInUse                = errors.New("company_in_use")
)
