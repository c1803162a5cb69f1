package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	authdomain "github.com/metergate/metergate/internal/authsig/domain"
	balancedomain "github.com/metergate/metergate/internal/balance/domain"
	"github.com/metergate/metergate/internal/config"
	"github.com/metergate/metergate/internal/events"
	gatewaydomain "github.com/metergate/metergate/internal/gateway/domain"
	historydomain "github.com/metergate/metergate/internal/history/domain"
	"github.com/metergate/metergate/internal/observability"
	obsmiddleware "github.com/metergate/metergate/internal/observability/logger"
	obsmetrics "github.com/metergate/metergate/internal/observability/metrics"
	obstracing "github.com/metergate/metergate/internal/observability/tracing"
	registrydomain "github.com/metergate/metergate/internal/registry/domain"
	revenuedomain "github.com/metergate/metergate/internal/revenue/domain"
	treasurydomain "github.com/metergate/metergate/internal/treasury/domain"
	usagedomain "github.com/metergate/metergate/internal/usage/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

type Server struct {
	engine      *gin.Engine
	cfg         config.Config
	log         *zap.Logger
	registrySvc registrydomain.Service
	balanceSvc  balancedomain.Service
	usageSvc    usagedomain.Service
	revenueSvc  revenuedomain.Service
	treasurySvc treasurydomain.Service
	authSvc     authdomain.Service
	gatewaySvc  gatewaydomain.Service
	historySvc  historydomain.Service
	hub         *events.Hub
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	Log         *zap.Logger
	RegistrySvc registrydomain.Service
	BalanceSvc  balancedomain.Service
	UsageSvc    usagedomain.Service
	RevenueSvc  revenuedomain.Service
	TreasurySvc treasurydomain.Service
	AuthSvc     authdomain.Service
	GatewaySvc  gatewaydomain.Service
	HistorySvc  historydomain.Service
	Hub         *events.Hub `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		log:         p.Log.Named("http.server"),
		registrySvc: p.RegistrySvc,
		balanceSvc:  p.BalanceSvc,
		usageSvc:    p.UsageSvc,
		revenueSvc:  p.RevenueSvc,
		treasurySvc: p.TreasurySvc,
		authSvc:     p.AuthSvc,
		gatewaySvc:  p.GatewaySvc,
		historySvc:  p.HistorySvc,
		hub:         p.Hub,
	}

	svc.registerLedgerRoutes()
	svc.registerGatewayRoutes()

	return svc
}

func (s *Server) registerLedgerRoutes() {
	v1 := s.engine.Group("/v1")

	v1.POST("/apis", s.RegisterApi)
	v1.PATCH("/apis/:apiId", s.UpdateApiConfig)
	v1.GET("/apis/:apiId", s.GetApiConfig)

	v1.POST("/apis/:apiId/prepay", s.Prepay)
	v1.GET("/apis/:apiId/balances/:consumer", s.PrepaidUnits)

	v1.POST("/usage/report", s.ReportUsage)
	v1.POST("/usage/:usageId/settle", s.SettleUsage)
	v1.GET("/usage/:usageId", s.GetUsage)

	v1.POST("/apis/:apiId/withdraw", s.Withdraw)
	v1.GET("/apis/:apiId/revenue", s.RevenueBalance)

	v1.GET("/providers/me/apis", s.ProviderOverview)

	v1.POST("/treasury/deposit", s.TreasuryDeposit)
	v1.GET("/treasury/:unit/:account", s.TreasuryBalance)
}

func (s *Server) registerGatewayRoutes() {
	v1 := s.engine.Group("/v1")

	v1.POST("/call/:apiId", s.MeteredCall)
	v1.GET("/history", s.ListHistory)
	v1.GET("/events", s.StreamEvents)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
