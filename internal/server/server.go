package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	aggregatedomain "github.com/lukasai/lukas/internal/aggregate/domain"
	assistantdomain "github.com/lukasai/lukas/internal/assistant/domain"
	auditdomain "github.com/lukasai/lukas/internal/audit/domain"
	"github.com/lukasai/lukas/internal/auth"
	"github.com/lukasai/lukas/internal/config"
	"github.com/lukasai/lukas/internal/observability"
	obslogger "github.com/lukasai/lukas/internal/observability/logger"
	obsmetrics "github.com/lukasai/lukas/internal/observability/metrics"
	obstracing "github.com/lukasai/lukas/internal/observability/tracing"
	paymentdomain "github.com/lukasai/lukas/internal/payment/domain"
	plandomain "github.com/lukasai/lukas/internal/plan/domain"
	quotadomain "github.com/lukasai/lukas/internal/quota/domain"
	"github.com/lukasai/lukas/internal/ratelimit"
	reportdomain "github.com/lukasai/lukas/internal/report/domain"
	subscriptiondomain "github.com/lukasai/lukas/internal/subscription/domain"
	usagedomain "github.com/lukasai/lukas/internal/usage/domain"
)

// Module serves every route from one process.
var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server) {
		s.RegisterRoutes()
	}),
	fx.Invoke(RunHTTP),
)

func NewEngine(obsCfg observability.Config, cfg config.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware(obstracing.MiddlewareConfig{
		ServiceName: obsCfg.ServiceName,
		RouteParams: obsCfg.TraceRouteParams,
	}))
	r.Use(httpMetrics.GinMiddleware())
	r.Use(CORS(cfg.CORSAllowedOrigins))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

// RunHTTP serves the engine for the lifetime of the application.
func RunHTTP(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	verifier        *auth.Verifier
	usageSvc        usagedomain.Service
	aggregateSvc    aggregatedomain.Service
	quotaSvc        quotadomain.Service
	reportSvc       reportdomain.Service
	planSvc         plandomain.Service
	subscriptionSvc subscriptiondomain.Service
	assistantSvc    assistantdomain.Service
	paymentSvc      paymentdomain.Service
	auditSvc        auditdomain.Service
	webhookLimiter  *ratelimit.WebhookLimiter
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	Verifier        *auth.Verifier
	UsageSvc        usagedomain.Service
	AggregateSvc    aggregatedomain.Service
	QuotaSvc        quotadomain.Service
	ReportSvc       reportdomain.Service
	PlanSvc         plandomain.Service
	SubscriptionSvc subscriptiondomain.Service
	AssistantSvc    assistantdomain.Service
	PaymentSvc      paymentdomain.Service
	AuditSvc        auditdomain.Service       `optional:"true"`
	WebhookLimiter  *ratelimit.WebhookLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		verifier:        p.Verifier,
		usageSvc:        p.UsageSvc,
		aggregateSvc:    p.AggregateSvc,
		quotaSvc:        p.QuotaSvc,
		reportSvc:       p.ReportSvc,
		planSvc:         p.PlanSvc,
		subscriptionSvc: p.SubscriptionSvc,
		assistantSvc:    p.AssistantSvc,
		paymentSvc:      p.PaymentSvc,
		auditSvc:        p.AuditSvc,
		webhookLimiter:  p.WebhookLimiter,
	}
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) RegisterRoutes() {
	s.RegisterAPIRoutes()
	s.RegisterAdminRoutes()
	s.RegisterPublicRoutes()
}

func (s *Server) RegisterAPIRoutes() {
	api := s.engine.Group("/api", s.AuthRequired())

	// -------- Usage --------
	api.POST("/usage", s.RecordUsage)
	api.GET("/usage", s.ListUsage)
	api.GET("/usage/aggregate", s.AggregateUsage)
	api.GET("/usage/:id", s.GetUsage)
	api.POST("/usage/:id/compensate", s.CompensateUsage)

	// -------- Quota --------
	api.GET("/quota/:feature", s.CheckQuota)

	// -------- Reports --------
	api.GET("/reports/summary", s.GetSummary)
	api.GET("/reports/summary.pdf", s.GetSummaryPDF)

	// -------- Suggestions --------
	api.GET("/suggestions", s.ListSuggestions)
	api.POST("/suggestions", s.CreateSuggestion)
	api.GET("/suggestions/:id", s.GetSuggestion)
	api.PATCH("/suggestions/:id", s.UpdateSuggestion)
	api.DELETE("/suggestions/:id", s.DeleteSuggestion)
	api.POST("/suggestions/:id/apply", s.ApplySuggestion)

	// -------- Assistant --------
	api.POST("/assistant/:feature", s.InvokeAssistant)

	// -------- Plans & subscriptions --------
	api.GET("/plans", s.ListPlans)
	api.GET("/subscription", s.GetCurrentSubscription)
	api.GET("/subscriptions", s.ListSubscriptions)
	api.POST("/subscriptions/:id/cancel", s.CancelSubscription)
}

// RegisterAdminRoutes mounts operator routes. Role checks happen in the
// services, so the group only requires authentication.
func (s *Server) RegisterAdminRoutes() {
	admin := s.engine.Group("/api/admin", s.AuthRequired())

	admin.PUT("/plans/:code", s.UpsertPlan)
	admin.POST("/subscriptions", s.AssignSubscription)
	admin.GET("/audit-logs", s.ListAuditLogs)
}

func (s *Server) RegisterPublicRoutes() {
	api := s.engine.Group("/api")

	// -------- Payment Webhooks --------
	api.POST("/payments/webhooks/:provider", s.WebhookRateLimit(), s.HandlePaymentWebhook)
}
