package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	activityrepository "github.com/smallbiznis/invoiceflow/internal/activity/repository"
	activityservice "github.com/smallbiznis/invoiceflow/internal/activity/service"
	authdomain "github.com/smallbiznis/invoiceflow/internal/auth/domain"
	"github.com/smallbiznis/invoiceflow/internal/auth/mocks"
	"github.com/smallbiznis/invoiceflow/internal/auth/session"
	"github.com/smallbiznis/invoiceflow/internal/authorization"
	"github.com/smallbiznis/invoiceflow/internal/clock"
	companyrepository "github.com/smallbiznis/invoiceflow/internal/company/repository"
	companyservice "github.com/smallbiznis/invoiceflow/internal/company/service"
	"github.com/smallbiznis/invoiceflow/internal/config"
	dashboardservice "github.com/smallbiznis/invoiceflow/internal/dashboard/service"
	invoicedomain "github.com/smallbiznis/invoiceflow/internal/invoice/domain"
	"github.com/smallbiznis/invoiceflow/internal/invoice/render"
	invoicerepository "github.com/smallbiznis/invoiceflow/internal/invoice/repository"
	invoiceservice "github.com/smallbiznis/invoiceflow/internal/invoice/service"
	"github.com/smallbiznis/invoiceflow/internal/migration"
	"github.com/smallbiznis/invoiceflow/internal/observability"
	obsmetrics "github.com/smallbiznis/invoiceflow/internal/observability/metrics"
	"github.com/smallbiznis/invoiceflow/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	ownerToken    = "owner-token"
	strangerToken = "stranger-token"
	adminToken    = "admin-token"
)

var identities = map[string]authdomain.Identity{
	ownerToken:    {UserID: 100, Username: "owner", Role: authdomain.RoleUser},
	strangerToken: {UserID: 200, Username: "stranger", Role: authdomain.RoleUser},
	adminToken:    {UserID: 300, Username: "root", Role: authdomain.RoleAdmin},
}

type testServer struct {
	engine *gin.Engine
	auth   *mocks.MockService
}

func newTestServer(t *testing.T) testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctrl := gomock.NewController(t)
	authSvc := mocks.NewMockService(ctrl)
	authSvc.EXPECT().ResolveSession(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, token string) (*authdomain.Identity, error) {
			identity, ok := identities[token]
			if !ok {
				return nil, authdomain.ErrInvalidSession
			}
			return &identity, nil
		}).AnyTimes()

	conn := db.NewTest(t, migration.Models()...)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	guard, err := authorization.NewDefaultGuard()
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 4, 20, 10, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	activitySvc := activityservice.NewService(activityservice.Params{
		DB:    conn,
		Log:   log,
		GenID: node,
		Repo:  activityrepository.Provide(),
		Guard: guard,
		Clock: clk,
	})
	companySvc := companyservice.New(companyservice.Params{
		DB:       conn,
		Log:      log,
		GenID:    node,
		Repo:     companyrepository.Provide(),
		Guard:    guard,
		Clock:    clk,
		Activity: activitySvc,
	})
	invoiceRepo := invoicerepository.Provide()
	invoiceSvc := invoiceservice.NewService(invoiceservice.ServiceParam{
		DB:          conn,
		Log:         log,
		GenID:       node,
		Repo:        invoiceRepo,
		CompanyRepo: companyrepository.Provide(),
		Guard:       guard,
		Clock:       clk,
		Policy:      config.NewStaticPolicyHolder(config.DefaultInvoicePolicy()),
		Renderer:    render.NewRenderer(),
		Activity:    activitySvc,
	})
	dashboardSvc := dashboardservice.NewService(dashboardservice.Params{
		DB:          conn,
		Log:         log,
		Guard:       guard,
		InvoiceRepo: invoiceRepo,
	})

	httpMetrics, err := obsmetrics.NewHTTPMetrics(obsmetrics.Config{})
	require.NoError(t, err)

	srv := NewServer(ServerParams{
		Gin:          NewEngine(observability.Config{}, httpMetrics),
		Log:          log,
		Sessions:     session.NewManager(config.Config{}, clk),
		Guard:        guard,
		AuthSvc:      authSvc,
		CompanySvc:   companySvc,
		InvoiceSvc:   invoiceSvc,
		DashboardSvc: dashboardSvc,
		ActivitySvc:  activitySvc,
	})
	return testServer{engine: srv.Engine(), auth: authSvc}
}

func (s testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	return rec
}

type invoiceBody struct {
	Invoice struct {
		ID            snowflake.ID    `json:"id"`
		InvoiceNumber string          `json:"invoice_number"`
		Status        string          `json:"status"`
		Subtotal      decimal.Decimal `json:"subtotal"`
		TaxAmount     decimal.Decimal `json:"tax_amount"`
		Total         decimal.Decimal `json:"total"`
	} `json:"invoice"`
	Items []struct {
		Amount decimal.Decimal `json:"amount"`
	} `json:"items"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func sampleInvoice() gin.H {
	return gin.H{
		"invoice_date": "2026-04-15",
		"due_date":     "2026-05-15",
		"tax_rate":     "10",
		"discount":     "5",
		"items": []gin.H{
			{"description": "Design", "quantity": "2", "unit_price": "50"},
			{"description": "Hosting", "quantity": "1", "unit_price": "25"},
		},
	}
}

func (s testServer) createInvoice(t *testing.T, token string, body gin.H) invoiceBody {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/invoices", token, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create invoice: status %d body %s", rec.Code, rec.Body.String())
	}
	return decode[invoiceBody](t, rec)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/invoices", "/companies", "/dashboard", "/me", "/admin/stats"} {
		rec := s.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)

		rec = s.do(t, http.MethodGet, path, "expired-token", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		body := decode[errorResponse](t, rec)
		assert.Equal(t, "unauthorized", body.Error.Type)
	}
}

func TestLoginSetsSessionCookie(t *testing.T) {
	s := newTestServer(t)
	expires := time.Date(2026, 4, 21, 10, 0, 0, 0, time.UTC)
	s.auth.EXPECT().Login(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req authdomain.LoginRequest) (*authdomain.LoginResult, error) {
			assert.Equal(t, "owner", req.Handle)
			assert.Equal(t, "correct horse", req.Credential)
			return &authdomain.LoginResult{
				User:  &authdomain.User{ID: 100, Username: "owner", Role: authdomain.RoleUser, IsActive: true},
				Token: authdomain.SessionToken{RawToken: ownerToken, SessionID: 1, ExpiresAt: expires},
			}, nil
		})

	rec := s.do(t, http.MethodPost, "/session", "", gin.H{"handle": " owner ", "credential": "correct horse"})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode[loginResponse](t, rec)
	assert.Equal(t, ownerToken, body.Token)
	assert.True(t, body.ExpiresAt.Equal(expires))
	assert.NotContains(t, rec.Body.String(), "password")

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, session.DefaultCookieName, cookies[0].Name)
	assert.Equal(t, ownerToken, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
}

func TestLoginFailureIsUniform(t *testing.T) {
	s := newTestServer(t)
	s.auth.EXPECT().Login(gomock.Any(), gomock.Any()).Return(nil, authdomain.ErrInvalidCredentials).Times(2)

	unknown := s.do(t, http.MethodPost, "/session", "", gin.H{"handle": "ghost", "credential": "whatever"})
	wrong := s.do(t, http.MethodPost, "/session", "", gin.H{"handle": "owner", "credential": "wrong"})

	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, unknown.Code, wrong.Code)
	assert.Equal(t, unknown.Body.String(), wrong.Body.String())
}

func TestLoginEmptyCredentialMatchesWrongCredential(t *testing.T) {
	s := newTestServer(t)
	s.auth.EXPECT().Login(gomock.Any(), gomock.Any()).Return(nil, authdomain.ErrInvalidCredentials).Times(3)

	wrong := s.do(t, http.MethodPost, "/session", "", gin.H{"handle": "owner", "credential": "wrong"})
	empty := s.do(t, http.MethodPost, "/session", "", gin.H{"handle": "owner", "credential": ""})
	missing := s.do(t, http.MethodPost, "/session", "", gin.H{"handle": "owner"})

	req := httptest.NewRequest(http.MethodPost, "/session", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	garbled := httptest.NewRecorder()
	s.engine.ServeHTTP(garbled, req)

	for _, rec := range []*httptest.ResponseRecorder{empty, missing, garbled} {
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, wrong.Body.String(), rec.Body.String())
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	s := newTestServer(t)
	s.auth.EXPECT().DeleteSession(gomock.Any(), "").Return(nil)
	s.auth.EXPECT().DeleteSession(gomock.Any(), ownerToken).Return(nil)

	rec := s.do(t, http.MethodDelete, "/session", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodDelete, "/session", ownerToken, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestUpdateMeIgnoresRole(t *testing.T) {
	s := newTestServer(t)
	s.auth.EXPECT().UpdateProfile(gomock.Any(), snowflake.ID(100), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ snowflake.ID, req authdomain.ProfileUpdate) (*authdomain.User, error) {
			require.NotNil(t, req.FullName)
			assert.Equal(t, "Owner Name", *req.FullName)
			assert.Nil(t, req.Email)
			assert.Nil(t, req.Password)
			return &authdomain.User{ID: 100, Username: "owner", FullName: *req.FullName, Role: authdomain.RoleUser}, nil
		})

	rec := s.do(t, http.MethodPatch, "/me", ownerToken, gin.H{"full_name": "Owner Name", "role": "admin"})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"role":"user"`)
}

func TestCreateInvoiceComputesTotals(t *testing.T) {
	s := newTestServer(t)

	body := s.createInvoice(t, ownerToken, sampleInvoice())

	assert.True(t, body.Invoice.Subtotal.Equal(decimal.NewFromInt(125)), body.Invoice.Subtotal.String())
	assert.True(t, body.Invoice.TaxAmount.Equal(decimal.RequireFromString("12.5")), body.Invoice.TaxAmount.String())
	assert.True(t, body.Invoice.Total.Equal(decimal.RequireFromString("132.5")), body.Invoice.Total.String())
	assert.Equal(t, "draft", body.Invoice.Status)
	assert.NotEmpty(t, body.Invoice.InvoiceNumber)
	require.Len(t, body.Items, 2)
	assert.True(t, body.Items[0].Amount.Equal(decimal.NewFromInt(100)))
}

func TestCallerCannotPickInvoiceNumber(t *testing.T) {
	s := newTestServer(t)

	squat := sampleInvoice()
	squat["invoice_number"] = "INV-2026-001"
	first := s.createInvoice(t, strangerToken, squat)
	assert.Equal(t, "INV-2026-001", first.Invoice.InvoiceNumber)

	var numbers []string
	for i := 0; i < 3; i++ {
		squat["invoice_number"] = "INV-2026-002"
		numbers = append(numbers, s.createInvoice(t, ownerToken, squat).Invoice.InvoiceNumber)
	}
	assert.Equal(t, []string{"INV-2026-002", "INV-2026-003", "INV-2026-004"}, numbers)
}

func TestCreateInvoiceRejectsMalformedDate(t *testing.T) {
	s := newTestServer(t)
	payload := sampleInvoice()
	payload["invoice_date"] = "15/04/2026"

	rec := s.do(t, http.MethodPost, "/invoices", ownerToken, payload)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decode[errorResponse](t, rec)
	require.Len(t, body.Error.Errors, 1)
	assert.Equal(t, "invoice_date", body.Error.Errors[0].Field)
}

func TestUpdateInvoiceReportsItemField(t *testing.T) {
	s := newTestServer(t)
	created := s.createInvoice(t, ownerToken, sampleInvoice())

	payload := sampleInvoice()
	payload["items"] = []gin.H{
		{"description": "Design", "quantity": "2", "unit_price": "50"},
		{"description": "Broken", "quantity": "0", "unit_price": "25"},
	}
	rec := s.do(t, http.MethodPut, "/invoices/"+created.Invoice.ID.String(), ownerToken, payload)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	body := decode[errorResponse](t, rec)
	assert.Equal(t, "validation_error", body.Error.Type)
	require.Len(t, body.Error.Errors, 1)
	assert.Equal(t, "items[1].quantity", body.Error.Errors[0].Field)
	assert.Equal(t, "invalid_quantity", body.Error.Errors[0].Code)

	get := s.do(t, http.MethodGet, "/invoices/"+created.Invoice.ID.String(), ownerToken, nil)
	require.Equal(t, http.StatusOK, get.Code)
	unchanged := decode[invoiceBody](t, get)
	assert.True(t, unchanged.Invoice.Total.Equal(created.Invoice.Total))
}

func TestForeignInvoiceIsNotFound(t *testing.T) {
	s := newTestServer(t)
	created := s.createInvoice(t, ownerToken, sampleInvoice())
	path := "/invoices/" + created.Invoice.ID.String()

	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		rec := s.do(t, method, path, strangerToken, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, method)
		assert.NotContains(t, rec.Body.String(), created.Invoice.InvoiceNumber)
	}

	missing := s.do(t, http.MethodGet, "/invoices/987654321", strangerToken, nil)
	assert.Equal(t, http.StatusNotFound, missing.Code)
	assert.Equal(t, missing.Body.String(), s.do(t, http.MethodGet, path, strangerToken, nil).Body.String())

	rec := s.do(t, http.MethodGet, path, adminToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestInvalidInvoiceIDIsBadRequest(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/invoices/not-a-number", ownerToken, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[errorResponse](t, rec)
	require.Len(t, body.Error.Errors, 1)
	assert.Equal(t, "invalid_id", body.Error.Errors[0].Code)
}

func TestDeleteInvoice(t *testing.T) {
	s := newTestServer(t)
	created := s.createInvoice(t, ownerToken, sampleInvoice())
	path := "/invoices/" + created.Invoice.ID.String()

	rec := s.do(t, http.MethodDelete, path, ownerToken, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, path, ownerToken, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, path, ownerToken, nil).Code)
}

func TestListAndSearchInvoices(t *testing.T) {
	s := newTestServer(t)
	created := s.createInvoice(t, ownerToken, sampleInvoice())
	s.createInvoice(t, strangerToken, sampleInvoice())

	rec := s.do(t, http.MethodGet, "/invoices", ownerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	list := decode[struct {
		Invoices []struct {
			ID snowflake.ID `json:"id"`
		} `json:"invoices"`
	}](t, rec)
	require.Len(t, list.Invoices, 1)
	assert.Equal(t, created.Invoice.ID, list.Invoices[0].ID)

	rec = s.do(t, http.MethodGet, "/invoices?search="+created.Invoice.InvoiceNumber, ownerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), created.Invoice.ID.String())

	rec = s.do(t, http.MethodGet, "/invoices?status=archived", ownerToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInvoiceStatusTransitions(t *testing.T) {
	s := newTestServer(t)
	created := s.createInvoice(t, ownerToken, sampleInvoice())
	path := "/invoices/" + created.Invoice.ID.String() + "/status"

	rec := s.do(t, http.MethodPatch, path, ownerToken, gin.H{"status": "paid"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"status":"paid"`)

	rec = s.do(t, http.MethodPatch, path, ownerToken, gin.H{"status": "unknown"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInvoiceHTMLIsEscaped(t *testing.T) {
	s := newTestServer(t)
	payload := sampleInvoice()
	payload["notes"] = "<script>alert(1)</script>"
	created := s.createInvoice(t, ownerToken, payload)

	rec := s.do(t, http.MethodGet, "/invoices/"+created.Invoice.ID.String()+"/html", ownerToken, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotContains(t, rec.Body.String(), "<script>alert(1)</script>")
}

func TestInvoicePDF(t *testing.T) {
	s := newTestServer(t)
	created := s.createInvoice(t, ownerToken, sampleInvoice())

	rec := s.do(t, http.MethodGet, "/invoices/"+created.Invoice.ID.String()+"/pdf", ownerToken, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))
}

func TestCompanyInUseCannotBeDeleted(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/companies", ownerToken, gin.H{"company_name": "Acme"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	company := decode[struct {
		Company struct {
			ID snowflake.ID `json:"id"`
		} `json:"company"`
	}](t, rec).Company

	payload := sampleInvoice()
	payload["company_id"] = company.ID.String()
	s.createInvoice(t, ownerToken, payload)

	path := "/companies/" + company.ID.String()
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, path, strangerToken, nil).Code)

	rec = s.do(t, http.MethodDelete, path, ownerToken, nil)
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	body := decode[errorResponse](t, rec)
	require.Len(t, body.Error.Errors, 1)
	assert.Equal(t, "company_in_use", body.Error.Errors[0].Code)
}

func TestCreateCompanyRequiresName(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/companies", ownerToken, gin.H{"email": "a@b.test"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[errorResponse](t, rec)
	require.NotEmpty(t, body.Error.Errors)
	assert.Equal(t, "company_name", body.Error.Errors[0].Field)
}

func TestDashboardForNewUser(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/dashboard", strangerToken, nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode[struct {
		Stats struct {
			TotalInvoices     int64           `json:"total_invoices"`
			TotalRevenue      decimal.Decimal `json:"total_revenue"`
			OutstandingAmount decimal.Decimal `json:"outstanding_amount"`
		} `json:"stats"`
		RecentInvoices []json.RawMessage `json:"recent_invoices"`
	}](t, rec)
	assert.Zero(t, body.Stats.TotalInvoices)
	assert.True(t, body.Stats.TotalRevenue.IsZero())
	assert.True(t, body.Stats.OutstandingAmount.IsZero())
	assert.Empty(t, body.RecentInvoices)
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	s := newTestServer(t)
	s.createInvoice(t, ownerToken, sampleInvoice())
	s.auth.EXPECT().ListUsers(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, actor authorization.Actor, _ authdomain.ListUsersRequest) ([]authdomain.User, error) {
			assert.True(t, actor.IsAdmin())
			return []authdomain.User{{ID: 300, Username: "root", Role: authdomain.RoleAdmin}}, nil
		})

	for _, path := range []string{"/admin/users", "/admin/invoices", "/admin/activity", "/admin/stats"} {
		rec := s.do(t, http.MethodGet, path, ownerToken, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code, path)

		rec = s.do(t, http.MethodGet, path, adminToken, nil)
		assert.Equal(t, http.StatusOK, rec.Code, "%s: %s", path, rec.Body.String())
	}

	rec := s.do(t, http.MethodGet, "/admin/activity?action=create_invoice", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "create_invoice")
}

func TestUnknownRouteIsJSONNotFound(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/nope", ownerToken, nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decode[errorResponse](t, rec)
	assert.Equal(t, "not_found", body.Error.Type)
}

func TestPanicsDoNotLeakDetail(t *testing.T) {
	s := newTestServer(t)
	s.engine.GET("/boom", func(*gin.Context) {
		panic("pq: connection to 10.0.0.5 refused")
	})

	rec := s.do(t, http.MethodGet, "/boom", "", nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.5")
	assert.NotContains(t, rec.Body.String(), "goroutine")
	body := decode[errorResponse](t, rec)
	assert.Equal(t, "internal_error", body.Error.Type)
}

func TestMapError(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		status   int
		typ      string
		wantCode string
	}{
		{"unknown", errors.New("dial tcp 10.0.0.5:5432: refused"), http.StatusInternalServerError, "internal_error", ""},
		{"credentials", authdomain.ErrInvalidCredentials, http.StatusUnauthorized, "unauthorized", ""},
		{"denied", authorization.ErrDenied, http.StatusForbidden, "forbidden", ""},
		{"user exists", authdomain.ErrUserExists, http.StatusConflict, "conflict", "user_exists"},
		{"rate limited", ErrRateLimited, http.StatusTooManyRequests, "rate_limited", ""},
		{"invoice validation", invoicedomain.ErrInvalidTaxRate, http.StatusBadRequest, "validation_error", "invalid_tax_rate"},
		{"unprocessable", unprocessable(invoicedomain.ErrInvalidTaxRate), http.StatusUnprocessableEntity, "validation_error", "invalid_tax_rate"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, payload := mapError(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.typ, payload.Type)
			if tc.wantCode != "" {
				require.NotEmpty(t, payload.Errors)
				assert.Equal(t, tc.wantCode, payload.Errors[0].Code)
			}
			assert.False(t, strings.Contains(payload.Message, "10.0.0.5"))
		})
	}
}
