package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	activitydomain "github.com/smallbiznis/invoiceflow/internal/activity/domain"
	"github.com/smallbiznis/invoiceflow/internal/authorization"
	"github.com/smallbiznis/invoiceflow/internal/clock"
	"github.com/smallbiznis/invoiceflow/internal/company/domain"
	"github.com/smallbiznis/invoiceflow/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	maxNameLength    = 255
	maxPhoneLength   = 64
	maxShortLength   = 128
	maxZipLength     = 32
	maxAddressLength = 1024
)

var validate = validator.New()

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     domain.Repository
	Guard    *authorization.Guard
	Clock    clock.Clock
	Activity activitydomain.Recorder `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     domain.Repository
	guard    *authorization.Guard
	clock    clock.Clock
	activity activitydomain.Recorder
}

func New(p Params) domain.Service {
	activity := p.Activity
	if activity == nil {
		activity = activitydomain.NopRecorder{}
	}
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("company.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		guard:    p.Guard,
		clock:    p.Clock,
		activity: activity,
	}
}

func (s *Service) Create(ctx context.Context, actor authorization.Actor, fields domain.CompanyFields) (*domain.Company, error) {
	if err := s.guard.Check(actor, authorization.ActionWrite, authorization.Resource{Object: authorization.ObjectCompany, OwnerID: actor.UserID}); err != nil {
		return nil, err
	}

	fields, err := normalizeFields(fields)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	company := domain.Company{
		ID:        s.genID.Generate(),
		UserID:    actor.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	apply(&company, fields)

	if err := s.repo.Insert(ctx, s.db, &company); err != nil {
		return nil, err
	}

	s.activity.Record(ctx, activitydomain.Record{
		UserID:       actor.UserID,
		Action:       activitydomain.ActionCreateCompany,
		ResourceType: activitydomain.ResourceCompany,
		ResourceID:   company.ID.String(),
	})
	return &company, nil
}

func (s *Service) Get(ctx context.Context, actor authorization.Actor, id snowflake.ID) (*domain.Company, error) {
	return s.load(ctx, actor, authorization.ActionRead, id)
}

func (s *Service) List(ctx context.Context, actor authorization.Actor, req domain.ListCompanyRequest) (domain.ListCompanyResponse, error) {
	if err := s.guard.Check(actor, authorization.ActionRead, authorization.Resource{Object: authorization.ObjectCompany, OwnerID: actor.UserID}); err != nil {
		return domain.ListCompanyResponse{}, err
	}

	items, err := s.repo.List(ctx, s.db, actor.UserID, req.Pagination)
	if err != nil {
		return domain.ListCompanyResponse{}, err
	}

	companies, pageInfo := pagination.BuildPageInfo(items, req.Limit(), func(c domain.Company) snowflake.ID { return c.ID })
	return domain.ListCompanyResponse{PageInfo: pageInfo, Companies: companies}, nil
}

func (s *Service) Update(ctx context.Context, actor authorization.Actor, id snowflake.ID, fields domain.CompanyFields) (*domain.Company, error) {
	company, err := s.load(ctx, actor, authorization.ActionWrite, id)
	if err != nil {
		return nil, err
	}

	fields, err = normalizeFields(fields)
	if err != nil {
		return nil, err
	}
	apply(company, fields)
	company.UpdatedAt = s.clock.Now().UTC()

	if err := s.repo.Update(ctx, s.db, company); err != nil {
		return nil, err
	}

	s.activity.Record(ctx, activitydomain.Record{
		UserID:       actor.UserID,
		Action:       activitydomain.ActionUpdateCompany,
		ResourceType: activitydomain.ResourceCompany,
		ResourceID:   company.ID.String(),
	})
	return company, nil
}

// Delete refuses while any invoice still references the company.
func (s *Service) Delete(ctx context.Context, actor authorization.Actor, id snowflake.ID) error {
	company, err := s.load(ctx, actor, authorization.ActionDelete, id)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		count, err := s.repo.CountInvoices(ctx, tx, company.ID)
		if err != nil {
			return err
		}
		if count > 0 {
			return domain.ErrInUse
		}
		return s.repo.Delete(ctx, tx, company.ID)
	})
	if err != nil {
		return err
	}

	s.activity.Record(ctx, activitydomain.Record{
		UserID:       actor.UserID,
		Action:       activitydomain.ActionDeleteCompany,
		ResourceType: activitydomain.ResourceCompany,
		ResourceID:   company.ID.String(),
		Details:      company.CompanyName,
	})
	return nil
}

// load fetches a company and runs the guard before anything is returned.
// Absent and foreign companies both surface as ErrNotFound.
func (s *Service) load(ctx context.Context, actor authorization.Actor, action authorization.Action, id snowflake.ID) (*domain.Company, error) {
	if id <= 0 {
		return nil, domain.ErrNotFound
	}

	company, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}

	resource := authorization.Resource{Object: authorization.ObjectCompany}
	if company != nil {
		resource.OwnerID = company.UserID
	}
	decision := s.guard.Authorize(actor, action, resource)
	if company == nil || !decision.Allowed {
		if !decision.Allowed {
			s.log.Debug("company access denied",
				zap.String("company_id", id.String()),
				zap.String("reason", string(decision.Reason)),
			)
		}
		return nil, domain.ErrNotFound
	}
	return company, nil
}

func normalizeFields(in domain.CompanyFields) (domain.CompanyFields, error) {
	out := domain.CompanyFields{
		CompanyName:   strings.TrimSpace(in.CompanyName),
		ContactPerson: strings.TrimSpace(in.ContactPerson),
		Email:         strings.TrimSpace(in.Email),
		Phone:         strings.TrimSpace(in.Phone),
		Address:       strings.TrimSpace(in.Address),
		City:          strings.TrimSpace(in.City),
		State:         strings.TrimSpace(in.State),
		ZipCode:       strings.TrimSpace(in.ZipCode),
		Country:       strings.TrimSpace(in.Country),
	}

	switch {
	case out.CompanyName == "" || len(out.CompanyName) > maxNameLength:
		return out, domain.ErrInvalidCompanyName
	case len(out.ContactPerson) > maxNameLength:
		return out, domain.ErrInvalidContactPerson
	case len(out.Phone) > maxPhoneLength:
		return out, domain.ErrInvalidPhone
	case len(out.Address) > maxAddressLength,
		len(out.City) > maxShortLength,
		len(out.State) > maxShortLength,
		len(out.Country) > maxShortLength,
		len(out.ZipCode) > maxZipLength:
		return out, domain.ErrInvalidAddress
	}

	if out.Email != "" {
		if len(out.Email) > maxNameLength || validate.Var(out.Email, "email") != nil {
			return out, domain.ErrInvalidEmail
		}
	}
	return out, nil
}

func apply(company *domain.Company, fields domain.CompanyFields) {
	company.CompanyName = fields.CompanyName
	company.ContactPerson = fields.ContactPerson
	company.Email = fields.Email
	company.Phone = fields.Phone
	company.Address = fields.Address
	company.City = fields.City
	company.State = fields.State
	company.ZipCode = fields.ZipCode
	company.Country = fields.Country
}
