package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	auditdomain "github.com/smallbiznis/paramstore/internal/audit/domain"
	"github.com/smallbiznis/paramstore/internal/authorization"
	"github.com/smallbiznis/paramstore/internal/config"
	"github.com/smallbiznis/paramstore/internal/observability"
	obsmiddleware "github.com/smallbiznis/paramstore/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/paramstore/internal/observability/metrics"
	obstracing "github.com/smallbiznis/paramstore/internal/observability/tracing"
	parameterdomain "github.com/smallbiznis/paramstore/internal/parameter/domain"
	"github.com/smallbiznis/paramstore/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const readinessTimeout = 2 * time.Second

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

func registerGin(cfg config.Config, obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
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

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	db            *gorm.DB
	parameterSvc  parameterdomain.Service
	auditSvc      auditdomain.Service
	authzSvc      authorization.Service
	clientLimiter *ratelimit.ClientLimiter
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	DB            *gorm.DB
	ParameterSvc  parameterdomain.Service
	AuditSvc      auditdomain.Service
	AuthzSvc      authorization.Service
	ClientLimiter *ratelimit.ClientLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		db:            p.DB,
		parameterSvc:  p.ParameterSvc,
		auditSvc:      p.AuditSvc,
		authzSvc:      p.AuthzSvc,
		clientLimiter: p.ClientLimiter,
	}

	svc.registerProbeRoutes()
	svc.registerClientRoutes()
	svc.registerAdminRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerProbeRoutes() {
	s.engine.GET("/ready", s.Ready)
}

func (s *Server) registerClientRoutes() {
	api := s.engine.Group("/api/v1", s.ClientAPIKeyRequired(), s.ClientRateLimit())

	api.GET("/config", s.GetClientConfig)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin/v1", s.AdminAuthRequired())

	// -------- Parameters --------
	admin.GET("/parameters", s.authorize(authorization.ObjectParameter, authorization.ActionParameterView), s.ListParameters)
	admin.POST("/parameters", s.authorize(authorization.ObjectParameter, authorization.ActionParameterCreate), s.CreateParameter)
	admin.GET("/parameters/:id", s.authorize(authorization.ObjectParameter, authorization.ActionParameterView), s.GetParameterByID)
	admin.PUT("/parameters/:id", s.authorize(authorization.ObjectParameter, authorization.ActionParameterUpdate), s.UpdateParameter)
	admin.DELETE("/parameters/:id", s.authorize(authorization.ObjectParameter, authorization.ActionParameterDelete), s.DeleteParameter)

	// -------- Country overrides --------
	admin.PUT("/parameters/:id/overrides/country/:code", s.authorize(authorization.ObjectParameter, authorization.ActionParameterOverride), s.SetCountryOverride)
	admin.DELETE("/parameters/:id/overrides/country/:code", s.authorize(authorization.ObjectParameter, authorization.ActionParameterOverride), s.DeleteCountryOverride)

	// -------- History --------
	admin.GET("/parameters/:id/history", s.authorize(authorization.ObjectHistory, authorization.ActionHistoryView), s.ListParameterHistory)
}

// Ready reports whether the database answers a ping.
func (s *Server) Ready(c *gin.Context) {
	if s.db == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		obsmiddleware.FromContext(ctx).Warn("readiness check failed", zap.Error(err))
		AbortWithError(c, ErrServiceUnavailable)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
