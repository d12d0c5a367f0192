package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yungbote/carebridge-backend/internal/handlers"
	"github.com/yungbote/carebridge-backend/internal/logger"
	"github.com/yungbote/carebridge-backend/internal/middleware"
)

type RouterConfig struct {
	Log           *logger.Logger
	IntakeHandler *handlers.IntakeHandler
	PlanHandler   *handlers.PlanHandler
	RunHandler    *handlers.RunHandler
	SSEHandler    *handlers.SSEHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	if cfg.Log != nil {
		router.Use(middleware.RequestLogger(cfg.Log))
	}

	// Cors
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:80",
			"http://localhost:3000",
			"http://localhost:5174",
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")
	{
		// Intake
		api.POST("/clients", cfg.IntakeHandler.CreateClient)
		api.POST("/clients/:id/sessions", cfg.IntakeHandler.CreateSession)
		api.GET("/clients/:id/sessions", cfg.IntakeHandler.ListSessions)

		// Plans and versions
		api.GET("/clients/:id/plan", cfg.PlanHandler.GetByClient)
		api.GET("/plans/:id/versions", cfg.PlanHandler.ListVersions)
		api.GET("/plans/:id/versions/:number", cfg.PlanHandler.GetVersion)
		api.GET("/plans/:id/diff", cfg.PlanHandler.DiffVersions)
		api.POST("/plans/:id/restore", cfg.PlanHandler.RestoreVersion)
		api.POST("/plans/:id/edit", cfg.PlanHandler.ManualEdit)

		// Generation runs
		api.POST("/sessions/:id/generate", cfg.RunHandler.Generate)
		api.GET("/sessions/:id/run", cfg.RunHandler.GetLatestForSession)
		api.GET("/runs/:id", cfg.RunHandler.GetRun)
		api.POST("/runs/:id/cancel", cfg.RunHandler.Cancel)

		// SSE
		api.GET("/sse/stream", cfg.SSEHandler.Stream)
		api.POST("/sse/subscribe", cfg.SSEHandler.Subscribe)
		api.POST("/sse/unsubscribe", cfg.SSEHandler.Unsubscribe)
	}

	return router
}
