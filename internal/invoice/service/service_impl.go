package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	activitydomain "github.com/smallbiznis/invoiceflow/internal/activity/domain"
	"github.com/smallbiznis/invoiceflow/internal/authorization"
	"github.com/smallbiznis/invoiceflow/internal/clock"
	companydomain "github.com/smallbiznis/invoiceflow/internal/company/domain"
	"github.com/smallbiznis/invoiceflow/internal/config"
	"github.com/smallbiznis/invoiceflow/internal/invoice/attachment"
	invoicedomain "github.com/smallbiznis/invoiceflow/internal/invoice/domain"
	"github.com/smallbiznis/invoiceflow/internal/invoice/format"
	"github.com/smallbiznis/invoiceflow/internal/invoice/render"
	"github.com/smallbiznis/invoiceflow/internal/observability/metrics"
	"github.com/smallbiznis/invoiceflow/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	maxFreeTextLength = 10000
	maxSearchLength   = 200
	searchLimit       = 100
	maxNumberAttempts = 50
)

type ServiceParam struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Repo        invoicedomain.Repository
	CompanyRepo companydomain.Repository
	Guard       *authorization.Guard
	Clock       clock.Clock
	Policy      *config.PolicyConfigHolder
	Renderer    render.Renderer
	Activity    activitydomain.Recorder `optional:"true"`
	Metrics     *metrics.Metrics        `optional:"true"`
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID       *snowflake.Node
	repo        invoicedomain.Repository
	companyRepo companydomain.Repository
	guard       *authorization.Guard
	clock       clock.Clock
	policy      *config.PolicyConfigHolder
	renderer    render.Renderer
	activity    activitydomain.Recorder
	metrics     *metrics.Metrics
}

func NewService(p ServiceParam) invoicedomain.Service {
	activity := p.Activity
	if activity == nil {
		activity = activitydomain.NopRecorder{}
	}
	return &Service{
		db:  p.DB,
		log: p.Log.Named("invoice.service"),

		genID:       p.GenID,
		repo:        p.Repo,
		companyRepo: p.CompanyRepo,
		guard:       p.Guard,
		clock:       p.Clock,
		policy:      p.Policy,
		renderer:    p.Renderer,
		activity:    activity,
		metrics:     p.Metrics,
	}
}

// Create validates and computes everything before opening the transaction;
// numbering, the invoice row and its items then commit as one unit.
func (s *Service) Create(ctx context.Context, actor authorization.Actor, req invoicedomain.CreateInvoiceRequest) (*invoicedomain.InvoiceDetail, error) {
	if err := s.guard.Check(actor, authorization.ActionWrite, authorization.Resource{Object: authorization.ObjectInvoice, OwnerID: actor.UserID}); err != nil {
		return nil, err
	}

	fields, err := normalizeFields(req.InvoiceFields)
	if err != nil {
		return nil, err
	}
	items, err := invoicedomain.BuildItems(req.Items)
	if err != nil {
		return nil, err
	}
	totals, err := invoicedomain.ComputeTotals(items, fields.TaxRate, fields.Discount)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	invoice := invoicedomain.Invoice{
		ID:        s.genID.Generate(),
		UserID:    actor.UserID,
		Status:    invoicedomain.StatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyFields(&invoice, fields, totals)

	var company *companydomain.Company
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if company, err = s.ownedCompany(ctx, tx, invoice.UserID, fields.CompanyID); err != nil {
			return err
		}
		if err := s.assignNumber(ctx, tx, &invoice); err != nil {
			return err
		}
		if err := s.repo.Insert(ctx, tx, &invoice); err != nil {
			return err
		}
		return s.repo.ReplaceItems(ctx, tx, invoice.ID, s.stampItems(invoice.ID, items))
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordInvoiceCreated(ctx, string(invoice.Status), invoice.Total.InexactFloat64())
	s.activity.Record(ctx, activitydomain.Record{
		UserID:       actor.UserID,
		Action:       activitydomain.ActionCreateInvoice,
		ResourceType: activitydomain.ResourceInvoice,
		ResourceID:   invoice.ID.String(),
		Details:      invoice.InvoiceNumber,
	})
	s.log.Info("invoice created",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.Int("items", len(items)),
	)

	return &invoicedomain.InvoiceDetail{Invoice: invoice, Items: items, Company: company}, nil
}

// Update replaces the header fields and the full item set; the invoice keeps
// the number it was issued with. Validation runs before any write, so a
// rejected update leaves the stored invoice as it was.
// Concurrent updates are last-writer-wins; a version column compared on the
// header UPDATE is where optimistic locking would go.
func (s *Service) Update(ctx context.Context, actor authorization.Actor, id snowflake.ID, req invoicedomain.UpdateInvoiceRequest) (*invoicedomain.InvoiceDetail, error) {
	invoice, err := s.load(ctx, s.db, actor, authorization.ActionWrite, id)
	if err != nil {
		return nil, err
	}

	fields, err := normalizeFields(req.InvoiceFields)
	if err != nil {
		return nil, err
	}
	items, err := invoicedomain.BuildItems(req.Items)
	if err != nil {
		return nil, err
	}
	totals, err := invoicedomain.ComputeTotals(items, fields.TaxRate, fields.Discount)
	if err != nil {
		return nil, err
	}

	applyFields(invoice, fields, totals)
	invoice.UpdatedAt = s.clock.Now().UTC()

	var company *companydomain.Company
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if company, err = s.ownedCompany(ctx, tx, invoice.UserID, fields.CompanyID); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, tx, invoice); err != nil {
			return err
		}
		return s.repo.ReplaceItems(ctx, tx, invoice.ID, s.stampItems(invoice.ID, items))
	})
	if err != nil {
		return nil, err
	}

	s.activity.Record(ctx, activitydomain.Record{
		UserID:       actor.UserID,
		Action:       activitydomain.ActionUpdateInvoice,
		ResourceType: activitydomain.ResourceInvoice,
		ResourceID:   invoice.ID.String(),
		Details:      invoice.InvoiceNumber,
	})

	return &invoicedomain.InvoiceDetail{Invoice: *invoice, Items: items, Company: company}, nil
}

func (s *Service) SetStatus(ctx context.Context, actor authorization.Actor, id snowflake.ID, status invoicedomain.Status) (*invoicedomain.Invoice, error) {
	status = invoicedomain.Status(strings.ToLower(strings.TrimSpace(string(status))))
	if !status.Valid() {
		return nil, invoicedomain.ErrInvalidStatus
	}

	invoice, err := s.load(ctx, s.db, actor, authorization.ActionWrite, id)
	if err != nil {
		return nil, err
	}

	from := invoice.Status
	if err := invoicedomain.TransitionPolicyFor(s.policy.Get().TransitionPolicy).Allow(from, status); err != nil {
		return nil, err
	}
	if from == status {
		return invoice, nil
	}

	invoice.Status = status
	invoice.UpdatedAt = s.clock.Now().UTC()
	if err := s.repo.UpdateStatus(ctx, s.db, invoice); err != nil {
		return nil, err
	}

	s.metrics.RecordInvoiceStatusChange(ctx, string(from), string(status))
	s.activity.Record(ctx, activitydomain.Record{
		UserID:       actor.UserID,
		Action:       activitydomain.ActionUpdateInvoiceStatus,
		ResourceType: activitydomain.ResourceInvoice,
		ResourceID:   invoice.ID.String(),
		Metadata: map[string]any{
			"from": string(from),
			"to":   string(status),
		},
	})
	return invoice, nil
}

// Delete removes the items and the invoice together. A missing invoice is
// ErrNotFound, the same answer a non-owner gets.
func (s *Service) Delete(ctx context.Context, actor authorization.Actor, id snowflake.ID) error {
	var number string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.load(ctx, tx, actor, authorization.ActionDelete, id)
		if err != nil {
			return err
		}
		number = invoice.InvoiceNumber
		return s.repo.Delete(ctx, tx, invoice.ID)
	})
	if err != nil {
		return err
	}

	s.metrics.RecordInvoiceDeleted(ctx)
	s.activity.Record(ctx, activitydomain.Record{
		UserID:       actor.UserID,
		Action:       activitydomain.ActionDeleteInvoice,
		ResourceType: activitydomain.ResourceInvoice,
		ResourceID:   id.String(),
		Details:      number,
	})
	return nil
}

func (s *Service) Get(ctx context.Context, actor authorization.Actor, id snowflake.ID) (*invoicedomain.InvoiceDetail, error) {
	invoice, err := s.load(ctx, s.db, actor, authorization.ActionRead, id)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, invoice)
}

// Search is owner scoped. An empty term matches every invoice of the owner.
func (s *Service) Search(ctx context.Context, actor authorization.Actor, req invoicedomain.SearchRequest) ([]invoicedomain.InvoiceView, error) {
	ownerID := req.OwnerID
	if ownerID == 0 {
		ownerID = actor.UserID
	}
	if err := s.guard.Check(actor, authorization.ActionRead, authorization.Resource{Object: authorization.ObjectInvoice, OwnerID: ownerID}); err != nil {
		return nil, err
	}

	term := strings.TrimSpace(req.Term)
	if len(term) > maxSearchLength {
		return nil, invoicedomain.ErrInvalidSearch
	}

	invoices, err := s.repo.Search(ctx, s.db, ownerID, term, searchLimit)
	if err != nil {
		return nil, err
	}
	if invoices == nil {
		invoices = []invoicedomain.InvoiceView{}
	}
	return invoices, nil
}

func (s *Service) List(ctx context.Context, actor authorization.Actor, req invoicedomain.ListInvoiceRequest) (invoicedomain.ListInvoiceResponse, error) {
	if err := s.guard.Check(actor, authorization.ActionRead, authorization.Resource{Object: authorization.ObjectInvoice, OwnerID: actor.UserID}); err != nil {
		return invoicedomain.ListInvoiceResponse{}, err
	}
	return s.list(ctx, invoicedomain.ListFilter{OwnerID: actor.UserID, Status: req.Status}, req)
}

// ListAll spans every owner and is restricted to administrators.
func (s *Service) ListAll(ctx context.Context, actor authorization.Actor, req invoicedomain.ListInvoiceRequest) (invoicedomain.ListInvoiceResponse, error) {
	if err := s.guard.Check(actor, authorization.ActionAdmin, authorization.Resource{Object: authorization.ObjectSystem}); err != nil {
		return invoicedomain.ListInvoiceResponse{}, err
	}
	return s.list(ctx, invoicedomain.ListFilter{OwnerID: req.OwnerID, Status: req.Status}, req)
}

// SetAttachment records a logical storage key for a validated file name.
// The bytes are written by the storage collaborator under that key.
func (s *Service) SetAttachment(ctx context.Context, actor authorization.Actor, id snowflake.ID, filename string) (*invoicedomain.Invoice, error) {
	ext, ok := attachment.ValidateName(filename, s.policy.Get())
	if !ok {
		return nil, invoicedomain.ErrInvalidFilename
	}

	invoice, err := s.load(ctx, s.db, actor, authorization.ActionWrite, id)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	invoice.AttachmentPath = attachment.Key(invoice.ID, filename, ext, now)
	invoice.UpdatedAt = now
	if err := s.repo.UpdateAttachment(ctx, s.db, invoice); err != nil {
		return nil, err
	}

	s.activity.Record(ctx, activitydomain.Record{
		UserID:       actor.UserID,
		Action:       activitydomain.ActionSetAttachment,
		ResourceType: activitydomain.ResourceInvoice,
		ResourceID:   invoice.ID.String(),
		Details:      invoice.AttachmentPath,
	})
	return invoice, nil
}

func (s *Service) list(ctx context.Context, filter invoicedomain.ListFilter, req invoicedomain.ListInvoiceRequest) (invoicedomain.ListInvoiceResponse, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return invoicedomain.ListInvoiceResponse{}, invoicedomain.ErrInvalidStatus
	}

	rows, err := s.repo.List(ctx, s.db, filter, req.Pagination)
	if err != nil {
		return invoicedomain.ListInvoiceResponse{}, err
	}

	invoices, pageInfo := pagination.BuildPageInfo(rows, req.Limit(), func(v invoicedomain.InvoiceView) snowflake.ID { return v.ID })
	if invoices == nil {
		invoices = []invoicedomain.InvoiceView{}
	}
	return invoicedomain.ListInvoiceResponse{PageInfo: pageInfo, Invoices: invoices}, nil
}

// load fetches an invoice and runs the guard before anything is returned.
// Absent and foreign invoices both surface as ErrNotFound.
func (s *Service) load(ctx context.Context, conn *gorm.DB, actor authorization.Actor, action authorization.Action, id snowflake.ID) (*invoicedomain.Invoice, error) {
	if id <= 0 {
		return nil, invoicedomain.ErrNotFound
	}

	invoice, err := s.repo.FindByID(ctx, conn, id)
	if err != nil {
		return nil, err
	}

	resource := authorization.Resource{Object: authorization.ObjectInvoice}
	if invoice != nil {
		resource.OwnerID = invoice.UserID
	}
	decision := s.guard.Authorize(actor, action, resource)
	if invoice == nil || !decision.Allowed {
		if !decision.Allowed {
			s.log.Debug("invoice access denied",
				zap.String("invoice_id", id.String()),
				zap.String("reason", string(decision.Reason)),
			)
		}
		return nil, invoicedomain.ErrNotFound
	}
	return invoice, nil
}

func (s *Service) detail(ctx context.Context, invoice *invoicedomain.Invoice) (*invoicedomain.InvoiceDetail, error) {
	items, err := s.repo.ListItems(ctx, s.db, invoice.ID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []invoicedomain.InvoiceItem{}
	}

	var company *companydomain.Company
	if invoice.CompanyID != nil {
		company, err = s.companyRepo.FindByID(ctx, s.db, *invoice.CompanyID)
		if err != nil {
			return nil, err
		}
	}
	return &invoicedomain.InvoiceDetail{Invoice: *invoice, Items: items, Company: company}, nil
}

// ownedCompany resolves the optional company reference. A company that is
// missing or belongs to someone else is rejected the same way.
func (s *Service) ownedCompany(ctx context.Context, tx *gorm.DB, ownerID snowflake.ID, companyID *snowflake.ID) (*companydomain.Company, error) {
	if companyID == nil {
		return nil, nil
	}
	company, err := s.companyRepo.FindByID(ctx, tx, *companyID)
	if err != nil {
		return nil, err
	}
	if company == nil || company.UserID != ownerID {
		return nil, invoicedomain.ErrInvalidCompanyID
	}
	return company, nil
}

// assignNumber takes the next sequence of the issue date's year and renders
// it through the policy template. Numbers already present in the year, such
// as rows written under an older template, are skipped.
func (s *Service) assignNumber(ctx context.Context, tx *gorm.DB, invoice *invoicedomain.Invoice) error {
	invoice.InvoiceYear = invoice.InvoiceDate.Year()

	seq, err := s.repo.NextSequence(ctx, tx, invoice.InvoiceYear)
	if err != nil {
		return err
	}
	template := s.numberTemplate()
	for attempt := 0; attempt < maxNumberAttempts; attempt, seq = attempt+1, seq+1 {
		number, err := format.FormatInvoiceNumber(template, invoice.InvoiceDate, seq)
		if err != nil {
			return err
		}
		taken, err := s.repo.NumberTaken(ctx, tx, invoice.InvoiceYear, number)
		if err != nil {
			return err
		}
		if !taken {
			invoice.InvoiceNumber = number
			invoice.InvoiceSeq = seq
			return nil
		}
	}
	return invoicedomain.ErrDuplicateNumber
}

func (s *Service) numberTemplate() string {
	template := strings.TrimSpace(s.policy.Get().NumberTemplate)
	if template == "" {
		return format.DefaultInvoiceNumberTemplate
	}
	return template
}

func (s *Service) stampItems(invoiceID snowflake.ID, items []invoicedomain.InvoiceItem) []invoicedomain.InvoiceItem {
	for i := range items {
		items[i].ID = s.genID.Generate()
		items[i].InvoiceID = invoiceID
	}
	return items
}

func normalizeFields(in invoicedomain.InvoiceFields) (invoicedomain.InvoiceFields, error) {
	out := in
	out.TaxRate = in.TaxRate.Round(2)
	out.Discount = in.Discount.Round(2)
	out.Notes = strings.TrimSpace(in.Notes)
	out.Terms = strings.TrimSpace(in.Terms)

	if out.InvoiceDate.IsZero() {
		return out, invoicedomain.ErrInvalidInvoiceDate
	}
	out.InvoiceDate = out.InvoiceDate.UTC()
	if out.DueDate != nil {
		due := out.DueDate.UTC()
		if due.Before(out.InvoiceDate) {
			return out, invoicedomain.ErrInvalidDueDate
		}
		out.DueDate = &due
	}
	if out.CompanyID != nil && *out.CompanyID <= 0 {
		return out, invoicedomain.ErrInvalidCompanyID
	}
	if len(out.Notes) > maxFreeTextLength {
		return out, invoicedomain.ErrInvalidNotes
	}
	if len(out.Terms) > maxFreeTextLength {
		return out, invoicedomain.ErrInvalidTerms
	}
	return out, nil
}

func applyFields(invoice *invoicedomain.Invoice, fields invoicedomain.InvoiceFields, totals invoicedomain.Totals) {
	invoice.CompanyID = fields.CompanyID
	invoice.InvoiceDate = fields.InvoiceDate
	invoice.DueDate = fields.DueDate
	invoice.TaxRate = fields.TaxRate
	invoice.Discount = fields.Discount
	invoice.Notes = fields.Notes
	invoice.Terms = fields.Terms
	invoice.Subtotal = totals.Subtotal
	invoice.TaxAmount = totals.TaxAmount
	invoice.Total = totals.Total
}
