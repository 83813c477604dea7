package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	authdomain "github.com/smallbiznis/invoiceflow/internal/auth/domain"
	"github.com/smallbiznis/invoiceflow/internal/authorization"
	"github.com/smallbiznis/invoiceflow/internal/clock"
	companydomain "github.com/smallbiznis/invoiceflow/internal/company/domain"
	companyrepository "github.com/smallbiznis/invoiceflow/internal/company/repository"
	"github.com/smallbiznis/invoiceflow/internal/config"
	invoicedomain "github.com/smallbiznis/invoiceflow/internal/invoice/domain"
	"github.com/smallbiznis/invoiceflow/internal/invoice/render"
	"github.com/smallbiznis/invoiceflow/internal/invoice/repository"
	"github.com/smallbiznis/invoiceflow/pkg/db"
	"github.com/smallbiznis/invoiceflow/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	owner    = authorization.Actor{UserID: 100, Role: authorization.RoleUser}
	stranger = authorization.Actor{UserID: 200, Role: authorization.RoleUser}
	admin    = authorization.Actor{UserID: 300, Role: authorization.RoleAdmin}

	issued = time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC)
)

type testEnv struct {
	svc   invoicedomain.Service
	db    *gorm.DB
	genID *snowflake.Node
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	return newTestEnvWithPolicy(t, config.DefaultInvoicePolicy())
}

func newTestEnvWithPolicy(t *testing.T, invoicePolicy config.InvoicePolicy) testEnv {
	t.Helper()

	conn := db.NewTest(t,
		&authdomain.User{},
		&companydomain.Company{},
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceItem{},
	)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	guard, err := authorization.NewDefaultGuard()
	require.NoError(t, err)
	policy := config.NewStaticPolicyHolder(invoicePolicy)

	svc := NewService(ServiceParam{
		DB:          conn,
		Log:         zap.NewNop(),
		GenID:       node,
		Repo:        repository.Provide(),
		CompanyRepo: companyrepository.Provide(),
		Guard:       guard,
		Clock:       clock.NewFakeClock(time.Date(2026, 4, 20, 10, 0, 0, 0, time.UTC)),
		Policy:      policy,
		Renderer:    render.NewRenderer(),
	})
	return testEnv{svc: svc, db: conn, genID: node}
}

func (e testEnv) company(t *testing.T, ownerID snowflake.ID, name string) snowflake.ID {
	t.Helper()
	company := companydomain.Company{
		ID:          e.genID.Generate(),
		UserID:      ownerID,
		CompanyName: name,
		CreatedAt:   issued,
		UpdatedAt:   issued,
	}
	require.NoError(t, companyrepository.Provide().Insert(context.Background(), e.db, &company))
	return company.ID
}

func (e testEnv) count(t *testing.T, table string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Table(table).Count(&n).Error)
	return n
}

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func sampleRequest() invoicedomain.CreateInvoiceRequest {
	return invoicedomain.CreateInvoiceRequest{
		InvoiceFields: invoicedomain.InvoiceFields{
			InvoiceDate: issued,
			TaxRate:     dec("10"),
			Discount:    dec("5"),
			Notes:       "Thanks for your business",
		},
		Items: []invoicedomain.ItemInput{
			{Description: "Consulting", Quantity: dec("2"), UnitPrice: dec("50")},
			{Description: "Hosting", Quantity: dec("1"), UnitPrice: dec("25")},
		},
	}
}

func TestCreateComputesTotalsAndNumbers(t *testing.T) {
	env := newTestEnv(t)

	created, err := env.svc.Create(context.Background(), owner, sampleRequest())
	require.NoError(t, err)

	invoice := created.Invoice
	assert.Equal(t, invoicedomain.StatusDraft, invoice.Status)
	assert.Equal(t, "INV-2026-001", invoice.InvoiceNumber)
	assert.Equal(t, "125.00", invoice.Subtotal.StringFixed(2))
	assert.Equal(t, "12.50", invoice.TaxAmount.StringFixed(2))
	assert.Equal(t, "132.50", invoice.Total.StringFixed(2))
	require.Len(t, created.Items, 2)
	assert.Equal(t, "100.00", created.Items[0].Amount.StringFixed(2))
	assert.NotZero(t, created.Items[0].ID)

	got, err := env.svc.Get(context.Background(), owner, invoice.ID)
	require.NoError(t, err)
	assert.True(t, got.Invoice.Total.Equal(dec("132.5")))
	require.Len(t, got.Items, 2)
	assert.Equal(t, "Consulting", got.Items[0].Description)

	second, err := env.svc.Create(context.Background(), owner, sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "INV-2026-002", second.Invoice.InvoiceNumber)

	nextYear := sampleRequest()
	nextYear.InvoiceDate = time.Date(2027, 1, 2, 0, 0, 0, 0, time.UTC)
	third, err := env.svc.Create(context.Background(), stranger, nextYear)
	require.NoError(t, err)
	assert.Equal(t, "INV-2027-001", third.Invoice.InvoiceNumber)
}

func TestCreateRejectsInvalidItemsWithoutWriting(t *testing.T) {
	env := newTestEnv(t)

	req := sampleRequest()
	req.Items[1].Quantity = dec("0")
	_, err := env.svc.Create(context.Background(), owner, req)

	var itemErr *invoicedomain.ItemError
	require.True(t, errors.As(err, &itemErr))
	assert.Equal(t, 1, itemErr.Index)
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidQuantity)
	assert.True(t, invoicedomain.IsValidation(err))

	req = sampleRequest()
	req.Items[0].UnitPrice = dec("-1")
	_, err = env.svc.Create(context.Background(), owner, req)
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidUnitPrice)

	assert.Zero(t, env.count(t, "invoices"))
	assert.Zero(t, env.count(t, "invoice_items"))
}

func TestCreateRejectsNegativeTotal(t *testing.T) {
	env := newTestEnv(t)

	req := sampleRequest()
	req.Discount = dec("1000")
	_, err := env.svc.Create(context.Background(), owner, req)
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidTotal)
	assert.Zero(t, env.count(t, "invoices"))
}

func TestCreateRejectsBadHeaderFields(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name   string
		mutate func(*invoicedomain.CreateInvoiceRequest)
		want   error
	}{
		{"missing date", func(r *invoicedomain.CreateInvoiceRequest) { r.InvoiceDate = time.Time{} }, invoicedomain.ErrInvalidInvoiceDate},
		{"due before issue", func(r *invoicedomain.CreateInvoiceRequest) {
			due := issued.AddDate(0, 0, -1)
			r.DueDate = &due
		}, invoicedomain.ErrInvalidDueDate},
		{"tax over 100", func(r *invoicedomain.CreateInvoiceRequest) { r.TaxRate = dec("100.01") }, invoicedomain.ErrInvalidTaxRate},
		{"negative discount", func(r *invoicedomain.CreateInvoiceRequest) { r.Discount = dec("-1") }, invoicedomain.ErrInvalidDiscount},
		{"long notes", func(r *invoicedomain.CreateInvoiceRequest) { r.Notes = strings.Repeat("n", maxFreeTextLength+1) }, invoicedomain.ErrInvalidNotes},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := sampleRequest()
			tc.mutate(&req)
			_, err := env.svc.Create(context.Background(), owner, req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestCreateWithCompanyRequiresOwnership(t *testing.T) {
	env := newTestEnv(t)
	own := env.company(t, owner.UserID, "Acme")
	foreign := env.company(t, stranger.UserID, "Globex")

	req := sampleRequest()
	req.CompanyID = &foreign
	_, err := env.svc.Create(context.Background(), owner, req)
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidCompanyID)

	req.CompanyID = &own
	created, err := env.svc.Create(context.Background(), owner, req)
	require.NoError(t, err)
	require.NotNil(t, created.Company)
	assert.Equal(t, "Acme", created.Company.CompanyName)
}

func TestNumberingSkipsNumbersAlreadyTaken(t *testing.T) {
	env := newTestEnv(t)

	legacy := invoicedomain.Invoice{
		ID:            env.genID.Generate(),
		UserID:        stranger.UserID,
		InvoiceNumber: "INV-2026-001",
		InvoiceYear:   2026,
		InvoiceDate:   issued,
		Status:        invoicedomain.StatusDraft,
		CreatedAt:     issued,
		UpdatedAt:     issued,
	}
	require.NoError(t, repository.Provide().Insert(context.Background(), env.db, &legacy))

	var numbers []string
	for i := 0; i < 3; i++ {
		created, err := env.svc.Create(context.Background(), owner, sampleRequest())
		require.NoError(t, err)
		numbers = append(numbers, created.Invoice.InvoiceNumber)
	}
	assert.Equal(t, []string{"INV-2026-002", "INV-2026-003", "INV-2026-004"}, numbers)
	assert.Equal(t, int64(4), env.count(t, "invoices"))
}

func TestStoredTaxAmountFollowsStoredRate(t *testing.T) {
	env := newTestEnv(t)

	req := sampleRequest()
	req.TaxRate = dec("10.004")
	req.Discount = dec("0.004")
	req.Items = []invoicedomain.ItemInput{{Description: "Retainer", Quantity: dec("1"), UnitPrice: dec("1000")}}
	created, err := env.svc.Create(context.Background(), owner, req)
	require.NoError(t, err)

	stored, err := repository.Provide().FindByID(context.Background(), env.db, created.Invoice.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)

	assert.Equal(t, "10.00", stored.TaxRate.StringFixed(2))
	assert.Equal(t, "0.00", stored.Discount.StringFixed(2))
	want := stored.Subtotal.Mul(stored.TaxRate).Div(decimal.NewFromInt(100)).Round(2)
	assert.True(t, stored.TaxAmount.Equal(want), "tax_amount %s, want %s", stored.TaxAmount, want)
	assert.True(t, stored.Total.Equal(stored.Subtotal.Add(stored.TaxAmount).Sub(stored.Discount)))
	assert.Equal(t, "1100.00", stored.Total.StringFixed(2))
}

func TestUpdateReplacesItemsAtomically(t *testing.T) {
	env := newTestEnv(t)
	created, err := env.svc.Create(context.Background(), owner, sampleRequest())
	require.NoError(t, err)

	update := invoicedomain.UpdateInvoiceRequest{
		InvoiceFields: invoicedomain.InvoiceFields{
			InvoiceDate: issued,
			TaxRate:     dec("0"),
		},
		Items: []invoicedomain.ItemInput{
			{Description: "Audit", Quantity: dec("3"), UnitPrice: dec("10.005")},
		},
	}
	updated, err := env.svc.Update(context.Background(), owner, created.Invoice.ID, update)
	require.NoError(t, err)
	assert.Equal(t, created.Invoice.InvoiceNumber, updated.Invoice.InvoiceNumber)
	assert.Equal(t, "30.03", updated.Invoice.Total.StringFixed(2))

	got, err := env.svc.Get(context.Background(), owner, created.Invoice.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Audit", got.Items[0].Description)
	assert.Equal(t, int64(1), env.count(t, "invoice_items"))

	bad := update
	bad.Items = []invoicedomain.ItemInput{
		{Description: "Fine", Quantity: dec("1"), UnitPrice: dec("1")},
		{Description: "Broken", Quantity: dec("-2"), UnitPrice: dec("1")},
	}
	_, err = env.svc.Update(context.Background(), owner, created.Invoice.ID, bad)
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidQuantity)

	got, err = env.svc.Get(context.Background(), owner, created.Invoice.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Audit", got.Items[0].Description)
	assert.Equal(t, "30.03", got.Invoice.Total.StringFixed(2))
}

func TestUpdateWithSamePayloadIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	created, err := env.svc.Create(context.Background(), owner, sampleRequest())
	require.NoError(t, err)

	update := invoicedomain.UpdateInvoiceRequest{
		InvoiceFields: invoicedomain.InvoiceFields{
			InvoiceDate: issued,
			TaxRate:     dec("8.25"),
			Discount:    dec("3"),
		},
		Items: []invoicedomain.ItemInput{
			{Description: "Design", Quantity: dec("4"), UnitPrice: dec("75")},
			{Description: "Review", Quantity: dec("1.5"), UnitPrice: dec("40")},
			{Description: "Travel", Quantity: dec("1"), UnitPrice: dec("120")},
		},
	}

	first, err := env.svc.Update(context.Background(), owner, created.Invoice.ID, update)
	require.NoError(t, err)
	itemsAfterFirst := env.count(t, "invoice_items")

	second, err := env.svc.Update(context.Background(), owner, created.Invoice.ID, update)
	require.NoError(t, err)

	assert.Equal(t, int64(3), itemsAfterFirst)
	assert.Equal(t, itemsAfterFirst, env.count(t, "invoice_items"))
	assert.True(t, first.Invoice.Total.Equal(second.Invoice.Total))
	assert.Equal(t, "516.60", second.Invoice.Total.StringFixed(2))

	got, err := env.svc.Get(context.Background(), owner, created.Invoice.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 3)
	assert.True(t, got.Invoice.Total.Equal(first.Invoice.Total))
	assert.True(t, got.Invoice.TaxAmount.Equal(first.Invoice.TaxAmount))
}

func TestForeignInvoiceLooksMissing(t *testing.T) {
	env := newTestEnv(t)
	created, err := env.svc.Create(context.Background(), owner, sampleRequest())
	require.NoError(t, err)
	id := created.Invoice.ID

	_, err = env.svc.Get(context.Background(), stranger, id)
	assert.ErrorIs(t, err, invoicedomain.ErrNotFound)

	_, missingErr := env.svc.Get(context.Background(), stranger, 123456789)
	assert.Equal(t, err.Error(), missingErr.Error())

	_, err = env.svc.Update(context.Background(), stranger, id, invoicedomain.UpdateInvoiceRequest{InvoiceFields: invoicedomain.InvoiceFields{InvoiceDate: issued}})
	assert.ErrorIs(t, err, invoicedomain.ErrNotFound)

	_, err = env.svc.SetStatus(context.Background(), stranger, id, invoicedomain.StatusPaid)
	assert.ErrorIs(t, err, invoicedomain.ErrNotFound)

	assert.ErrorIs(t, env.svc.Delete(context.Background(), stranger, id), invoicedomain.ErrNotFound)

	_, err = env.svc.RenderHTML(context.Background(), stranger, id)
	assert.ErrorIs(t, err, invoicedomain.ErrNotFound)

	got, err := env.svc.Get(context.Background(), admin, id)
	require.NoError(t, err)
	assert.Equal(t, id, got.Invoice.ID)
}

func TestDeleteRemovesItemsAndIsNotFoundAfterwards(t *testing.T) {
	env := newTestEnv(t)
	created, err := env.svc.Create(context.Background(), owner, sampleRequest())
	require.NoError(t, err)

	require.NoError(t, env.svc.Delete(context.Background(), owner, created.Invoice.ID))
	assert.Zero(t, env.count(t, "invoices"))
	assert.Zero(t, env.count(t, "invoice_items"))

	assert.ErrorIs(t, env.svc.Delete(context.Background(), owner, created.Invoice.ID), invoicedomain.ErrNotFound)
}

func TestSetStatusPermissiveByDefault(t *testing.T) {
	env := newTestEnv(t)
	created, err := env.svc.Create(context.Background(), owner, sampleRequest())
	require.NoError(t, err)
	id := created.Invoice.ID

	for _, status := range []invoicedomain.Status{invoicedomain.StatusPaid, invoicedomain.StatusDraft, invoicedomain.StatusCancelled} {
		updated, err := env.svc.SetStatus(context.Background(), owner, id, status)
		require.NoError(t, err)
		assert.Equal(t, status, updated.Status)
	}

	_, err = env.svc.SetStatus(context.Background(), owner, id, "archived")
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidStatus)
}

func TestSetStatusStrictPolicy(t *testing.T) {
	policy := config.DefaultInvoicePolicy()
	policy.TransitionPolicy = config.TransitionPolicyStrict
	env := newTestEnvWithPolicy(t, policy)

	created, err := env.svc.Create(context.Background(), owner, sampleRequest())
	require.NoError(t, err)
	id := created.Invoice.ID

	_, err = env.svc.SetStatus(context.Background(), owner, id, invoicedomain.StatusPaid)
	assert.ErrorIs(t, err, invoicedomain.ErrTransitionNotAllowed)

	_, err = env.svc.SetStatus(context.Background(), owner, id, invoicedomain.StatusSent)
	require.NoError(t, err)
	_, err = env.svc.SetStatus(context.Background(), owner, id, invoicedomain.StatusPaid)
	require.NoError(t, err)
	_, err = env.svc.SetStatus(context.Background(), owner, id, invoicedomain.StatusDraft)
	assert.ErrorIs(t, err, invoicedomain.ErrTransitionNotAllowed)
}

func TestSearchMatchesNumberNotesAndCompany(t *testing.T) {
	env := newTestEnv(t)
	acme := env.company(t, owner.UserID, "Acme Widgets")

	withCompany := sampleRequest()
	withCompany.CompanyID = &acme
	withCompany.Notes = "quarterly retainer"
	first, err := env.svc.Create(context.Background(), owner, withCompany)
	require.NoError(t, err)

	plain := sampleRequest()
	plain.Notes = "100% prepaid"
	second, err := env.svc.Create(context.Background(), owner, plain)
	require.NoError(t, err)

	_, err = env.svc.Create(context.Background(), stranger, withCompanyless("acme lookalike"))
	require.NoError(t, err)

	cases := []struct {
		term string
		want []snowflake.ID
	}{
		{"ACME", []snowflake.ID{first.Invoice.ID}},
		{"Retainer", []snowflake.ID{first.Invoice.ID}},
		{"inv-2026-002", []snowflake.ID{second.Invoice.ID}},
		{"100%", []snowflake.ID{second.Invoice.ID}},
		{"%", []snowflake.ID{second.Invoice.ID}},
		{"' OR 1=1 --", nil},
	}
	for _, tc := range cases {
		t.Run(tc.term, func(t *testing.T) {
			rows, err := env.svc.Search(context.Background(), owner, invoicedomain.SearchRequest{Term: tc.term})
			require.NoError(t, err)
			ids := make([]snowflake.ID, 0, len(rows))
			for _, row := range rows {
				ids = append(ids, row.ID)
			}
			assert.ElementsMatch(t, tc.want, ids)
		})
	}

	rows, err := env.svc.Search(context.Background(), owner, invoicedomain.SearchRequest{Term: "acme"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Acme Widgets", rows[0].CompanyName)

	_, err = env.svc.Search(context.Background(), stranger, invoicedomain.SearchRequest{OwnerID: owner.UserID, Term: "acme"})
	assert.ErrorIs(t, err, authorization.ErrDenied)

	_, err = env.svc.Search(context.Background(), owner, invoicedomain.SearchRequest{Term: strings.Repeat("a", maxSearchLength+1)})
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidSearch)
}

func withCompanyless(notes string) invoicedomain.CreateInvoiceRequest {
	req := sampleRequest()
	req.Notes = notes
	return req
}

func TestListIsOwnerScopedAndPaged(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 3; i++ {
		_, err := env.svc.Create(context.Background(), owner, sampleRequest())
		require.NoError(t, err)
	}
	_, err := env.svc.Create(context.Background(), stranger, sampleRequest())
	require.NoError(t, err)

	page, err := env.svc.List(context.Background(), owner, invoicedomain.ListInvoiceRequest{Pagination: pagination.Pagination{PageSize: 2}})
	require.NoError(t, err)
	require.Len(t, page.Invoices, 2)
	assert.True(t, page.HasMore)
	assert.Greater(t, page.Invoices[0].ID, page.Invoices[1].ID)

	next, err := env.svc.List(context.Background(), owner, invoicedomain.ListInvoiceRequest{Pagination: pagination.Pagination{PageSize: 2, PageToken: page.NextPageToken}})
	require.NoError(t, err)
	require.Len(t, next.Invoices, 1)
	assert.False(t, next.HasMore)

	drafts, err := env.svc.List(context.Background(), owner, invoicedomain.ListInvoiceRequest{Status: invoicedomain.StatusPaid})
	require.NoError(t, err)
	assert.Empty(t, drafts.Invoices)

	_, err = env.svc.ListAll(context.Background(), owner, invoicedomain.ListInvoiceRequest{})
	assert.ErrorIs(t, err, authorization.ErrDenied)

	all, err := env.svc.ListAll(context.Background(), admin, invoicedomain.ListInvoiceRequest{})
	require.NoError(t, err)
	assert.Len(t, all.Invoices, 4)
}

func TestSetAttachmentValidatesName(t *testing.T) {
	env := newTestEnv(t)
	created, err := env.svc.Create(context.Background(), owner, sampleRequest())
	require.NoError(t, err)
	id := created.Invoice.ID

	for _, name := range []string{"../../etc/passwd", ".hidden.pdf", "run.sh", "", "a b.pdf"} {
		_, err := env.svc.SetAttachment(context.Background(), owner, id, name)
		assert.ErrorIs(t, err, invoicedomain.ErrInvalidFilename, name)
	}

	updated, err := env.svc.SetAttachment(context.Background(), owner, id, "Signed-Contract.pdf")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(updated.AttachmentPath, "invoices/"+id.String()+"/"))
	assert.True(t, strings.HasSuffix(updated.AttachmentPath, "-signed-contract.pdf"))
}

func TestRenderEscapesUntrustedText(t *testing.T) {
	env := newTestEnv(t)
	req := sampleRequest()
	req.Notes = "<img src=x onerror=alert(1)>"
	created, err := env.svc.Create(context.Background(), owner, req)
	require.NoError(t, err)

	html, err := env.svc.RenderHTML(context.Background(), owner, created.Invoice.ID)
	require.NoError(t, err)
	assert.NotContains(t, html, "<img src=x")
	assert.Contains(t, html, "&lt;img src=x onerror=alert(1)&gt;")

	pdf, err := env.svc.RenderPDF(context.Background(), owner, created.Invoice.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(pdf), "%PDF"))
}
