package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/turngame/internal/config"
	"github.com/wfunc/turngame/internal/errors"
	"github.com/wfunc/turngame/internal/middleware"
	"github.com/wfunc/turngame/internal/monitor"
	"github.com/wfunc/turngame/internal/service"
	"go.uber.org/zap"
)

// HealthChecker reports whether the backing stores answer.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Router owns the gin engine and the handlers mounted on it.
type Router struct {
	engine         *gin.Engine
	prefix         string
	services       *service.Services
	health         HealthChecker
	metrics        *monitor.Metrics
	gameHandler    *GameHandler
	aboutHandler   *AboutHandler
	authMiddleware *middleware.AuthMiddleware
	log            *zap.Logger
}

// NewRouter builds the engine. metrics may be nil, which disables /metrics.
func NewRouter(cfg *config.ServerConfig, services *service.Services, health HealthChecker, about AboutInfo, metrics *monitor.Metrics, log *zap.Logger) *Router {
	engine := gin.New()

	r := &Router{
		engine:         engine,
		prefix:         "/" + strings.Trim(cfg.RoutePrefix, "/"),
		services:       services,
		health:         health,
		metrics:        metrics,
		gameHandler:    NewGameHandler(services.Games, log.Named("games")),
		aboutHandler:   NewAboutHandler(about),
		authMiddleware: middleware.NewAuthMiddleware(services.Auth, log.Named("auth")),
		log:            log,
	}

	engine.Use(middleware.RequestID(log))
	engine.Use(middleware.AccessLog(log, "/health", r.prefix+"/ping/:token"))
	engine.Use(middleware.Recovery())
	if metrics != nil {
		engine.Use(middleware.Metrics(metrics))
	}

	r.setupRoutes()
	return r
}

func (r *Router) setupRoutes() {
	r.engine.GET("/health", r.healthCheck)
	if r.metrics != nil {
		r.engine.GET("/metrics", gin.WrapH(r.metrics.Handler()))
	}

	r.engine.GET("/about", r.aboutHandler.About)

	v1 := r.engine.Group(r.prefix)
	{
		v1.GET("/about", r.aboutHandler.About)
		v1.GET("/ping/:token", r.aboutHandler.Ping)
		v1.HEAD("/ping/:token", r.aboutHandler.Ping)

		games := v1.Group("/auth/:authToken/games/:gameId")
		games.Use(r.authMiddleware.RequireAuth())
		{
			games.POST("", r.gameHandler.CreateGame)
			games.GET("", r.gameHandler.GetGame)
			games.GET("/moves", r.gameHandler.GetMoves)
			games.POST("/moves", r.gameHandler.SubmitMove)
		}
	}

	r.engine.NoRoute(func(c *gin.Context) {
		middleware.RespondError(c, errors.New(errors.ErrNotFound, c.Request.URL.Path))
	})
}

func (r *Router) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := r.health.Ping(ctx); err != nil {
		middleware.GetLogger(c, r.log).Error("health check failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "unhealthy",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
	})
}

// Handler returns the engine as an http.Handler.
func (r *Router) Handler() http.Handler {
	return r.engine
}

// GetEngine exposes the engine for tests.
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
