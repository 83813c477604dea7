package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/invoiceflow/internal/activity"
	activitydomain "github.com/smallbiznis/invoiceflow/internal/activity/domain"
	"github.com/smallbiznis/invoiceflow/internal/auth"
	authdomain "github.com/smallbiznis/invoiceflow/internal/auth/domain"
	"github.com/smallbiznis/invoiceflow/internal/auth/session"
	"github.com/smallbiznis/invoiceflow/internal/authorization"
	"github.com/smallbiznis/invoiceflow/internal/company"
	companydomain "github.com/smallbiznis/invoiceflow/internal/company/domain"
	"github.com/smallbiznis/invoiceflow/internal/config"
	"github.com/smallbiznis/invoiceflow/internal/dashboard"
	dashboarddomain "github.com/smallbiznis/invoiceflow/internal/dashboard/domain"
	"github.com/smallbiznis/invoiceflow/internal/invoice"
	invoicedomain "github.com/smallbiznis/invoiceflow/internal/invoice/domain"
	"github.com/smallbiznis/invoiceflow/internal/metricsexport"
	"github.com/smallbiznis/invoiceflow/internal/observability"
	obslogger "github.com/smallbiznis/invoiceflow/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/invoiceflow/internal/observability/metrics"
	obstracing "github.com/smallbiznis/invoiceflow/internal/observability/tracing"
	"github.com/smallbiznis/invoiceflow/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

var Module = fx.Module("http.server",
	authorization.Module,
	activity.Module,
	auth.Module,
	company.Module,
	invoice.Module,
	dashboard.Module,
	ratelimit.Module,
	metricsexport.Module,
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	setupValidator()

	r := gin.New()
	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		obslogger.FromContext(c.Request.Context()).Error("panic recovered", zap.Any("panic", recovered))
		_, payload := mapError(ErrInternal)
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{Error: payload})
	}))
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
		SkipRoutes:      []string{"/health", httpMetrics.Path()},
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET(httpMetrics.Path(), gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, s *Server, shutdowner fx.Shutdowner, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine       *gin.Engine
	cfg          config.Config
	log          *zap.Logger
	sessions     *session.Manager
	guard        *authorization.Guard
	authSvc      authdomain.Service
	companySvc   companydomain.Service
	invoiceSvc   invoicedomain.Service
	dashboardSvc dashboarddomain.Service
	activitySvc  activitydomain.Service
	authLimiter  *ratelimit.AuthLimiter
	obsMetrics   *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	Log          *zap.Logger
	Sessions     *session.Manager
	Guard        *authorization.Guard
	AuthSvc      authdomain.Service
	CompanySvc   companydomain.Service
	InvoiceSvc   invoicedomain.Service
	DashboardSvc dashboarddomain.Service
	ActivitySvc  activitydomain.Service
	AuthLimiter  *ratelimit.AuthLimiter `optional:"true"`
	ObsMetrics   *obsmetrics.Metrics    `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		log:          log.Named("http"),
		sessions:     p.Sessions,
		guard:        p.Guard,
		authSvc:      p.AuthSvc,
		companySvc:   p.CompanySvc,
		invoiceSvc:   p.InvoiceSvc,
		dashboardSvc: p.DashboardSvc,
		activitySvc:  p.ActivitySvc,
		authLimiter:  p.AuthLimiter,
		obsMetrics:   p.ObsMetrics,
	}

	svc.registerAuthRoutes()
	svc.registerAPIRoutes()
	svc.registerAdminRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAuthRoutes() {
	s.engine.POST("/session", s.AuthRateLimit(ratelimit.ScopeLogin), s.Login)
	s.engine.DELETE("/session", s.Logout)
	s.engine.POST("/register", s.AuthRateLimit(ratelimit.ScopeRegister), s.Register)

	me := s.engine.Group("/me", s.AuthRequired())
	{
		me.GET("", s.Me)
		me.PATCH("", s.UpdateMe)
	}
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("", s.AuthRequired())

	// -------- Invoices --------
	api.POST("/invoices", s.CreateInvoice)
	api.GET("/invoices", s.ListInvoices)
	api.GET("/invoices/:id", s.GetInvoice)
	api.PUT("/invoices/:id", s.UpdateInvoice)
	api.DELETE("/invoices/:id", s.DeleteInvoice)
	api.PATCH("/invoices/:id/status", s.SetInvoiceStatus)
	api.PUT("/invoices/:id/attachment", s.SetInvoiceAttachment)
	api.GET("/invoices/:id/pdf", s.InvoicePDF)
	api.GET("/invoices/:id/html", s.InvoiceHTML)

	// -------- Companies --------
	api.GET("/companies", s.ListCompanies)
	api.POST("/companies", s.CreateCompany)
	api.GET("/companies/:id", s.GetCompany)
	api.PUT("/companies/:id", s.UpdateCompany)
	api.DELETE("/companies/:id", s.DeleteCompany)

	// -------- Dashboard --------
	api.GET("/dashboard", s.Dashboard)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin", s.AuthRequired(), s.AdminRequired())

	admin.GET("/users", s.AdminListUsers)
	admin.PUT("/users/:id", s.AdminUpdateUser)
	admin.DELETE("/users/:id", s.AdminDeleteUser)
	admin.GET("/invoices", s.AdminListInvoices)
	admin.GET("/activity", s.AdminListActivity)
	admin.GET("/stats", s.AdminStats)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
	s.engine.NoMethod(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
