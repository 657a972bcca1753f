package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/helpdesk-api/internal/handler"
	"github.com/jwalitptl/helpdesk-api/internal/middleware"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type Config struct {
	RateLimit rate.Limit
	RateBurst int
}

type Router struct {
	engine        *gin.Engine
	auth          *middleware.AuthMiddleware
	health        *handler.HealthHandler
	notificationH Handler
	config        Config
}

func NewRouter(
	auth *middleware.AuthMiddleware,
	health *handler.HealthHandler,
	notificationH Handler,
	config Config,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		middleware.ErrorHandler(),
	)
	if config.RateLimit > 0 {
		engine.Use(middleware.RateLimiter(config.RateLimit, config.RateBurst))
	}

	return &Router{
		engine:        engine,
		auth:          auth,
		health:        health,
		notificationH: notificationH,
		config:        config,
	}
}

func (r *Router) Setup() {
	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.engine.Group("/api/v1")

	health := api.Group("/health")
	{
		health.GET("/live", r.health.Live)
		health.GET("/ready", r.health.Ready)
	}

	protected := api.Group("")
	protected.Use(r.auth.RequireService())
	r.notificationH.RegisterRoutes(protected)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
