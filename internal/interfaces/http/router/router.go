// Package router 提供 HTTP 路由配置
package router

import (
	"bookforge-ai-api/internal/config"
	"bookforge-ai-api/internal/domain/repository"
	redispkg "bookforge-ai-api/internal/infrastructure/persistence/redis"
	"bookforge-ai-api/internal/interfaces/http/handler"
	"bookforge-ai-api/internal/interfaces/http/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router HTTP 路由器
type Router struct {
	engine *gin.Engine
	cfg    *config.Config
}

// Dependencies 路由依赖的处理器与基础设施
type Dependencies struct {
	Health    *handler.HealthHandler
	Book      *handler.BookHandler
	Chapter   *handler.ChapterHandler
	Question  *handler.QuestionHandler
	Job       *handler.JobHandler
	TabState  *handler.TabStateHandler
	Reconcile *handler.ReconcileHandler

	RateLimiter *redispkg.RateLimiter
	Transactor  repository.Transactor
}

// New 创建新的路由器
func New(cfg *config.Config, deps Dependencies) *Router {
	// 设置 Gin 模式
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	r := &Router{
		engine: engine,
		cfg:    cfg,
	}

	r.setupMiddleware(deps)
	r.setupRoutes(deps)

	return r
}

// Engine 返回 Gin Engine
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// setupMiddleware 配置中间件
func (r *Router) setupMiddleware(deps Dependencies) {
	// 基础中间件
	r.engine.Use(middleware.Recovery())
	r.engine.Use(middleware.RequestID())

	// CORS 中间件
	r.engine.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: r.cfg.Security.CORS.AllowedOrigins,
		AllowedMethods: r.cfg.Security.CORS.AllowedMethods,
		AllowedHeaders: r.cfg.Security.CORS.AllowedHeaders,
	}))

	// 追踪中间件
	if r.cfg.Observability.Tracing.Enabled {
		r.engine.Use(middleware.Trace(r.cfg.App.Name))
		r.engine.Use(middleware.TraceContext())
	}

	// 指标中间件
	if r.cfg.Observability.Metrics.Enabled {
		r.engine.Use(middleware.Metrics())
	}

	// 写作会话标识
	r.engine.Use(middleware.Session())

	// 认证中间件
	r.engine.Use(middleware.Auth(middleware.AuthConfig{
		Secret:    r.cfg.Security.JWT.Secret,
		Issuer:    r.cfg.Security.JWT.Issuer,
		SkipPaths: middleware.DefaultSkipPaths,
		Enabled:   r.cfg.Security.JWT.Secret != "",
	}))

	// 限流中间件
	if r.cfg.Security.RateLimit.Enabled && deps.RateLimiter != nil {
		r.engine.Use(middleware.NewRateLimitMiddleware(middleware.RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: r.cfg.Security.RateLimit.RequestsPerSecond,
			Burst:             r.cfg.Security.RateLimit.Burst,
			KeyPrefix:         "ratelimit",
		}, deps.RateLimiter))
	}

	// 审计日志
	r.engine.Use(middleware.Audit())
}

// setupRoutes 配置路由
func (r *Router) setupRoutes(deps Dependencies) {
	// 系统端点
	r.engine.GET("/health", deps.Health.Health)
	r.engine.GET("/ready", deps.Health.Ready)
	r.engine.GET("/live", deps.Health.Live)

	// Prometheus 指标端点
	if r.cfg.Observability.Metrics.Enabled {
		r.engine.GET(r.cfg.Observability.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	// API v1 路由组
	v1 := r.engine.Group("/v1")
	RegisterV1Routes(v1, deps, r.cfg.Security.JWT.Secret != "")
}
