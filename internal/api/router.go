package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/wfunc/if-gateway/internal/config"
	"github.com/wfunc/if-gateway/internal/game"
	"github.com/wfunc/if-gateway/internal/middleware"
	"github.com/wfunc/if-gateway/internal/utils"
)

// Router 管理API路由器
type Router struct {
	engine         *gin.Engine
	authHandler    *AuthHandler
	adminHandler   *AdminHandler
	authMiddleware *middleware.AuthMiddleware
	log            *zap.Logger
}

// NewRouter 创建路由器
func NewRouter(cfg *config.Config, registry *game.Registry, orch *game.Orchestrator, log *zap.Logger) *Router {
	if cfg.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(gin.Logger())

	jwtManager := utils.NewJWTManager(cfg.Security.JWT.Secret,
		time.Duration(cfg.Security.JWT.ExpireHours)*time.Hour)

	router := &Router{
		engine:         engine,
		authHandler:    NewAuthHandler(&cfg.Security, jwtManager, log),
		adminHandler:   NewAdminHandler(registry, orch, log),
		authMiddleware: middleware.NewAuthMiddleware(jwtManager),
		log:            log,
	}
	router.setupRoutes()
	return router
}

// setupRoutes 设置路由
func (r *Router) setupRoutes() {
	r.engine.GET("/health", r.healthCheck)

	v1 := r.engine.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/login", r.authHandler.Login)
		}

		admin := v1.Group("")
		admin.Use(r.authMiddleware.RequireAuth())
		{
			admin.GET("/games", r.adminHandler.ListGames)
			admin.DELETE("/games/:ref", r.adminHandler.DeleteGame)
			admin.GET("/guilds/:guild/sessions", r.adminHandler.ListSessions)
			admin.GET("/guilds/:guild/sessions/:id", r.adminHandler.SessionStatus)
			admin.DELETE("/guilds/:guild/sessions/:id", r.adminHandler.DeleteSession)
			admin.GET("/channels", r.adminHandler.ListChannels)
			admin.POST("/channels", r.adminHandler.EnableChannel)
			admin.DELETE("/channels/:guild/:channel", r.adminHandler.DisableChannel)
		}
	}
}

// healthCheck 健康检查
func (r *Router) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// Engine 暴露底层引擎（HTTP服务器启动用）
func (r *Router) Engine() *gin.Engine {
	return r.engine
}
